package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var envKeys = []string{
	"CONFIG_FILE", "CONSENT_SECRET", "SENDER_EMAIL", "STORE_DRIVER", "POSTGRES_DSN",
	"DATABASE_PATH", "LOG_LEVEL", "CONSENT_TOKEN_TTL", "DISCOVERY_THROTTLE_INTERVAL",
	"DISCOVERY_DEFAULT_DAYS", "PORT", "APP_PORT", "PUBLIC_BASE_URL", "REDIS_DB",
	"SMTP_HOST", "SMTP_PORT", "SMTP_SECURE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		check   func(t *testing.T, cfg *Config)
		wantErr error
	}{
		{
			name:    "missing secret",
			env:     map[string]string{},
			wantErr: ErrConfigurationMissing,
		},
		{
			name: "secret falls back to sender email",
			env:  map[string]string{"SENDER_EMAIL": "sender@example.com"},
			check: func(t *testing.T, cfg *Config) {
				if diff := cmp.Diff("sender@example.com", cfg.Consent.Secret); diff != "" {
					t.Errorf("secret mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name: "defaults applied",
			env:  map[string]string{"CONSENT_SECRET": "s3cret"},
			check: func(t *testing.T, cfg *Config) {
				want := DiscoveryConfig{
					ThrottleInterval: 1100 * time.Millisecond,
					FeedPath:         "/popular_shots",
					DefaultDays:      30,
					DefaultPerPage:   100,
					DefaultMaxPages:  10,
				}
				if diff := cmp.Diff(want, cfg.Discovery); diff != "" {
					t.Errorf("discovery mismatch (-want +got):\n%s", diff)
				}
				if cfg.Store.Driver != StoreDriverSQLite {
					t.Errorf("expected sqlite driver, got %q", cfg.Store.Driver)
				}
				if cfg.Consent.TokenTTL != 14*24*time.Hour {
					t.Errorf("unexpected token ttl %s", cfg.Consent.TokenTTL)
				}
			},
		},
		{
			name: "env overrides",
			env: map[string]string{
				"CONSENT_SECRET":              "s3cret",
				"CONSENT_TOKEN_TTL":           "2h",
				"DISCOVERY_THROTTLE_INTERVAL": "10ms",
				"DISCOVERY_DEFAULT_DAYS":      "7.5",
				"PORT":                        "9000",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Consent.TokenTTL != 2*time.Hour {
					t.Errorf("unexpected token ttl %s", cfg.Consent.TokenTTL)
				}
				if cfg.Discovery.ThrottleInterval != 10*time.Millisecond {
					t.Errorf("unexpected throttle %s", cfg.Discovery.ThrottleInterval)
				}
				if cfg.Discovery.DefaultDays != 7.5 {
					t.Errorf("unexpected days %v", cfg.Discovery.DefaultDays)
				}
				if diff := cmp.Diff("0.0.0.0:9000", cfg.App.Addr()); diff != "" {
					t.Errorf("addr mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name: "implicit tls relay",
			env:  map[string]string{"CONSENT_SECRET": "s", "SMTP_HOST": "smtp.example.org", "SMTP_SECURE": "true"},
			check: func(t *testing.T, cfg *Config) {
				want := SMTPConfig{Host: "smtp.example.org", Secure: true}
				if diff := cmp.Diff(want, cfg.SMTP); diff != "" {
					t.Errorf("smtp mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name:    "postgres requires dsn",
			env:     map[string]string{"CONSENT_SECRET": "s", "STORE_DRIVER": "postgres"},
			wantErr: ErrConfigurationMissing,
		},
		{
			name:    "invalid days",
			env:     map[string]string{"CONSENT_SECRET": "s", "DISCOVERY_DEFAULT_DAYS": "soon"},
			wantErr: errAny,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr != nil {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.wantErr != errAny && !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

var errAny = errors.New("any error")

func TestLoadFileOverlay(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
consent:
  secret: from-file
  tokenTtl: 48h
sender:
  brand: Pilot
discovery:
  defaultMaxPages: 3
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	got := struct {
		Secret   string
		TTL      time.Duration
		Brand    string
		MaxPages int
		Level    string
	}{cfg.Consent.Secret, cfg.Consent.TokenTTL, cfg.Sender.Brand, cfg.Discovery.DefaultMaxPages, cfg.Logger.Level}
	want := struct {
		Secret   string
		TTL      time.Duration
		Brand    string
		MaxPages int
		Level    string
	}{"from-file", 48 * time.Hour, "Pilot", 3, "debug"}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("overlay mismatch (-want +got):\n%s", diff)
	}
}
