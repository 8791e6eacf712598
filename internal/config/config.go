package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrConfigurationMissing reports a required setting that was not provided.
var ErrConfigurationMissing = errors.New("configuration missing")

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Store     StoreConfig     `yaml:"store"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Redis     RedisConfig     `yaml:"redis"`
	Logger    LoggerConfig    `yaml:"logger"`
	Auth      AuthConfig      `yaml:"auth"`
	Consent   ConsentConfig   `yaml:"consent"`
	Sender    SenderConfig    `yaml:"sender"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Dribbble  DribbbleConfig  `yaml:"dribbble"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Outreach  OutreachConfig  `yaml:"outreach"`
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string `yaml:"name"`
	Env                   string `yaml:"env"`
	Host                  string `yaml:"host"`
	Port                  string `yaml:"port"`
	Version               string `yaml:"version"`
	PublicBaseURL         string `yaml:"publicBaseUrl"`
	RequestTimeoutSeconds int    `yaml:"requestTimeoutSeconds"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	MaxConns       int32  `yaml:"maxConns"`
	MinConns       int32  `yaml:"minConns"`
	RunMigrations  bool   `yaml:"runMigrations"`
	ConnMaxIdleSec int32  `yaml:"connMaxIdleSeconds"`
	ConnMaxLifeSec int32  `yaml:"connMaxLifeSeconds"`
}

// SQLiteConfig holds the local database path.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

// AuthConfig defines operator authentication parameters.
type AuthConfig struct {
	JWTSecret             string `yaml:"jwtSecret"`
	AccessTokenTTLMinutes int    `yaml:"accessTokenTtlMinutes"`
	OperatorEmail         string `yaml:"operatorEmail"`
	OperatorPasswordHash  string `yaml:"operatorPasswordHash"`
}

// ConsentConfig holds consent token settings.
type ConsentConfig struct {
	Secret       string        `yaml:"secret"`
	TokenTTL     time.Duration `yaml:"tokenTtl"`
	DefaultScope string        `yaml:"defaultScope"`
}

// SenderConfig is the identity used when composing outreach.
type SenderConfig struct {
	Brand string `yaml:"brand"`
	Name  string `yaml:"name"`
	Role  string `yaml:"role"`
	Org   string `yaml:"org"`
	Email string `yaml:"email"`
}

// SMTPConfig holds outbound mail settings. An empty Host logs mail instead of sending it.
// Secure selects implicit TLS (port 465) over STARTTLS.
type SMTPConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Secure  bool   `yaml:"secure"`
	User    string `yaml:"user"`
	Pass    string `yaml:"pass"`
	From    string `yaml:"from"`
	Bcc     string `yaml:"bcc"`
	ReplyTo string `yaml:"replyTo"`
}

// DribbbleConfig holds design platform API and OAuth settings.
type DribbbleConfig struct {
	APIBaseURL   string `yaml:"apiBaseUrl"`
	AuthURL      string `yaml:"authUrl"`
	TokenURL     string `yaml:"tokenUrl"`
	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"`
	RedirectURI  string `yaml:"redirectUri"`
	AccessToken  string `yaml:"accessToken"`
}

// DiscoveryConfig holds crawl defaults.
type DiscoveryConfig struct {
	ThrottleInterval time.Duration `yaml:"throttleInterval"`
	FeedPath         string        `yaml:"feedPath"`
	DefaultDays      float64       `yaml:"defaultDays"`
	DefaultPerPage   int           `yaml:"defaultPerPage"`
	DefaultMaxPages  int           `yaml:"defaultMaxPages"`
}

// OutreachConfig holds on-disk artifact locations.
type OutreachConfig struct {
	LetterDir    string `yaml:"letterDir"`
	DownloadDir  string `yaml:"downloadDir"`
	TemplatePath string `yaml:"templatePath"`
}

// Load reads configuration from an optional YAML file and environment variables,
// applying defaults where possible. Environment values take precedence over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		App: AppConfig{
			Name:                  "dataset-manager",
			Env:                   "development",
			Host:                  "0.0.0.0",
			Port:                  "5173",
			Version:               "dev",
			PublicBaseURL:         "http://localhost:5173",
			RequestTimeoutSeconds: 30,
		},
		Store: StoreConfig{Driver: StoreDriverSQLite},
		Postgres: PostgresConfig{
			MaxConns:       10,
			MinConns:       2,
			RunMigrations:  true,
			ConnMaxIdleSec: 30,
			ConnMaxLifeSec: 300,
		},
		SQLite: SQLiteConfig{Path: "./data/dataset-manager.db"},
		Redis:  RedisConfig{Addr: "127.0.0.1:6379"},
		Logger: LoggerConfig{Level: "info", Encoding: "json"},
		Auth: AuthConfig{
			JWTSecret:             "dev-secret",
			AccessTokenTTLMinutes: 60,
		},
		Consent: ConsentConfig{
			TokenTTL:     14 * 24 * time.Hour,
			DefaultScope: "all_shots",
		},
		Sender: SenderConfig{
			Brand: "WeaveUI",
			Name:  "WeaveUI Research",
			Role:  "Researcher",
			Org:   "WeaveUI",
		},
		Dribbble: DribbbleConfig{
			APIBaseURL: "https://api.dribbble.com/v2",
			AuthURL:    "https://dribbble.com/oauth/authorize",
			TokenURL:   "https://dribbble.com/oauth/token",
		},
		Discovery: DiscoveryConfig{
			ThrottleInterval: 1100 * time.Millisecond,
			FeedPath:         "/popular_shots",
			DefaultDays:      30,
			DefaultPerPage:   100,
			DefaultMaxPages:  10,
		},
		Outreach: OutreachConfig{
			LetterDir:   "./datasets/sources/dribbble/pilot",
			DownloadDir: "./datasets/sources/dribbble/pilot",
		},
	}
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", strconv.Itoa(cfg.Redis.DB)))
	if err != nil {
		return fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.Redis.DB = redisDB

	days := cfg.Discovery.DefaultDays
	if raw := os.Getenv("DISCOVERY_DEFAULT_DAYS"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid DISCOVERY_DEFAULT_DAYS: %w", err)
		}
		days = parsed
	}

	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnv("PORT", getEnv("APP_PORT", cfg.App.Port))
	cfg.App.Version = getEnv("APP_VERSION", cfg.App.Version)
	cfg.App.PublicBaseURL = getEnv("PUBLIC_BASE_URL", cfg.App.PublicBaseURL)
	cfg.App.RequestTimeoutSeconds = getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", cfg.App.RequestTimeoutSeconds)

	cfg.Store.Driver = strings.ToLower(getEnv("STORE_DRIVER", cfg.Store.Driver))

	cfg.Postgres.DSN = getEnv("POSTGRES_DSN", cfg.Postgres.DSN)
	cfg.Postgres.MaxConns = int32(getEnvAsInt("POSTGRES_MAX_CONNS", int(cfg.Postgres.MaxConns)))
	cfg.Postgres.MinConns = int32(getEnvAsInt("POSTGRES_MIN_CONNS", int(cfg.Postgres.MinConns)))
	cfg.Postgres.RunMigrations = getEnvAsBool("POSTGRES_RUN_MIGRATIONS", cfg.Postgres.RunMigrations)
	cfg.Postgres.ConnMaxIdleSec = int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", int(cfg.Postgres.ConnMaxIdleSec)))
	cfg.Postgres.ConnMaxLifeSec = int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", int(cfg.Postgres.ConnMaxLifeSec)))

	cfg.SQLite.Path = getEnv("DATABASE_PATH", cfg.SQLite.Path)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)

	cfg.Logger.Level = getEnv("LOG_LEVEL", cfg.Logger.Level)
	cfg.Logger.Encoding = getEnv("LOG_ENCODING", cfg.Logger.Encoding)

	cfg.Auth.JWTSecret = getEnv("AUTH_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.AccessTokenTTLMinutes = getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", cfg.Auth.AccessTokenTTLMinutes)
	cfg.Auth.OperatorEmail = getEnv("OPERATOR_EMAIL", cfg.Auth.OperatorEmail)
	cfg.Auth.OperatorPasswordHash = getEnv("OPERATOR_PASSWORD_HASH", cfg.Auth.OperatorPasswordHash)

	cfg.Sender.Brand = getEnv("SENDER_BRAND", cfg.Sender.Brand)
	cfg.Sender.Name = getEnv("SENDER_NAME", cfg.Sender.Name)
	cfg.Sender.Role = getEnv("SENDER_ROLE", cfg.Sender.Role)
	cfg.Sender.Org = getEnv("SENDER_ORG", cfg.Sender.Org)
	cfg.Sender.Email = getEnv("SENDER_EMAIL", cfg.Sender.Email)

	// The sender address doubles as the signing secret when no dedicated one is set.
	cfg.Consent.Secret = getEnv("CONSENT_SECRET", getEnv("SENDER_EMAIL", cfg.Consent.Secret))
	cfg.Consent.TokenTTL = getEnvAsDuration("CONSENT_TOKEN_TTL", cfg.Consent.TokenTTL)
	cfg.Consent.DefaultScope = getEnv("CONSENT_DEFAULT_SCOPE", cfg.Consent.DefaultScope)

	cfg.SMTP.Host = getEnv("SMTP_HOST", cfg.SMTP.Host)
	cfg.SMTP.Port = getEnvAsInt("SMTP_PORT", cfg.SMTP.Port)
	cfg.SMTP.Secure = getEnvAsBool("SMTP_SECURE", cfg.SMTP.Secure)
	cfg.SMTP.User = getEnv("SMTP_USER", cfg.SMTP.User)
	cfg.SMTP.Pass = getEnv("SMTP_PASS", cfg.SMTP.Pass)
	cfg.SMTP.From = getEnv("SMTP_FROM", cfg.SMTP.From)
	cfg.SMTP.Bcc = getEnv("SMTP_BCC", cfg.SMTP.Bcc)
	cfg.SMTP.ReplyTo = getEnv("SMTP_REPLY_TO", cfg.SMTP.ReplyTo)

	cfg.Dribbble.APIBaseURL = getEnv("DRIBBBLE_API_BASE_URL", cfg.Dribbble.APIBaseURL)
	cfg.Dribbble.AuthURL = getEnv("DRIBBBLE_AUTH_URL", cfg.Dribbble.AuthURL)
	cfg.Dribbble.TokenURL = getEnv("DRIBBBLE_TOKEN_URL", cfg.Dribbble.TokenURL)
	cfg.Dribbble.ClientID = getEnv("DRIBBBLE_CLIENT_ID", cfg.Dribbble.ClientID)
	cfg.Dribbble.ClientSecret = getEnv("DRIBBBLE_CLIENT_SECRET", cfg.Dribbble.ClientSecret)
	cfg.Dribbble.RedirectURI = getEnv("DRIBBBLE_REDIRECT_URI", cfg.Dribbble.RedirectURI)
	cfg.Dribbble.AccessToken = getEnv("DRIBBBLE_ACCESS_TOKEN", cfg.Dribbble.AccessToken)

	cfg.Discovery.ThrottleInterval = getEnvAsDuration("DISCOVERY_THROTTLE_INTERVAL", cfg.Discovery.ThrottleInterval)
	cfg.Discovery.FeedPath = getEnv("DISCOVERY_FEED_PATH", cfg.Discovery.FeedPath)
	cfg.Discovery.DefaultDays = days
	cfg.Discovery.DefaultPerPage = getEnvAsInt("DISCOVERY_DEFAULT_PER_PAGE", cfg.Discovery.DefaultPerPage)
	cfg.Discovery.DefaultMaxPages = getEnvAsInt("DISCOVERY_DEFAULT_MAX_PAGES", cfg.Discovery.DefaultMaxPages)

	cfg.Outreach.LetterDir = getEnv("OUTREACH_LETTER_DIR", cfg.Outreach.LetterDir)
	cfg.Outreach.DownloadDir = getEnv("OUTREACH_DOWNLOAD_DIR", cfg.Outreach.DownloadDir)
	cfg.Outreach.TemplatePath = getEnv("OUTREACH_TEMPLATE_PATH", cfg.Outreach.TemplatePath)

	return nil
}

// Validate checks settings without which the service cannot start.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Consent.Secret) == "" {
		return fmt.Errorf("%w: CONSENT_SECRET", ErrConfigurationMissing)
	}
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("%w: POSTGRES_DSN", ErrConfigurationMissing)
		}
	case StoreDriverSQLite:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the operator token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	if a.AccessTokenTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
