package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/weaveui/dataset-manager/internal/auth"
	"github.com/weaveui/dataset-manager/internal/config"
	"github.com/weaveui/dataset-manager/internal/events"
	appmail "github.com/weaveui/dataset-manager/internal/mail"
	"github.com/weaveui/dataset-manager/internal/repository"
	"github.com/weaveui/dataset-manager/migrations"
	apperrors "github.com/weaveui/dataset-manager/pkg/util"
)

func newTestRepos(t *testing.T) repository.Set {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	if err := migrations.Run(db, migrations.SQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repository.NewSQLiteSet(db)
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		App:     config.AppConfig{PublicBaseURL: "https://consent.example.org/"},
		Consent: config.ConsentConfig{Secret: "test-secret", TokenTTL: 14 * 24 * time.Hour, DefaultScope: "all_shots"},
		Sender:  config.SenderConfig{Brand: "WeaveUI", Name: "Ola V", Role: "Student", Org: "Wesleyan", Email: "ola@example.edu"},
		Outreach: config.OutreachConfig{
			LetterDir:   dir,
			DownloadDir: dir,
		},
	}
}

func newTestTemplates(t *testing.T) *appmail.Templates {
	t.Helper()
	templates, err := appmail.LoadTemplates("")
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}
	return templates
}

func newTestCodec(t *testing.T, cfg *config.Config) *auth.ConsentCodec {
	t.Helper()
	codec, err := auth.NewConsentCodec(cfg.Consent)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	return codec
}

// recordingMailer keeps sent messages. Messages whose type header is listed in failKinds
// are rejected.
type recordingMailer struct {
	mu        sync.Mutex
	sent      []appmail.Message
	failKinds map[string]bool
}

func (m *recordingMailer) Send(_ context.Context, msg appmail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failKinds[msg.Headers["X-WeaveUI-Type"]] {
		return errors.New("smtp: 451 try again later")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []appmail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]appmail.Message(nil), m.sent...)
}

type staticToken string

func (s staticToken) AccessToken(context.Context) (string, error) {
	return string(s), nil
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected a DomainError, got %v", err)
	}
	return domainErr.Code
}

// failingDispatcher rejects every event.
type failingDispatcher struct{}

func (failingDispatcher) Publish(context.Context, events.Event) error {
	return errors.New("dispatcher closed")
}

func (failingDispatcher) Subscribe(events.EventType, events.EventHandler) {}
