package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/weaveui/dataset-manager/internal/domain"
	"github.com/weaveui/dataset-manager/internal/dribbble"
	"github.com/weaveui/dataset-manager/internal/events"
	"github.com/weaveui/dataset-manager/internal/repository"
)

func newShotServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/user/shots", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer oauth-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `[
			{"id": 1, "images": {"hidpi": "%[1]s/img/1-hidpi.png", "normal": "%[1]s/img/1.png"}},
			{"id": 2, "images": {"normal": "%[1]s/img/2"}},
			{"id": 3, "images": {}},
			{"id": 4, "images": {"two_x": "%[1]s/img/missing.gif"}}
		]`, srv.URL)
	})
	mux.HandleFunc("/img/1-hidpi.png", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("hidpi")) })
	mux.HandleFunc("/img/2", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("normal")) })
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func grant(t *testing.T, repos repository.Set, id string, granted bool) {
	t.Helper()
	ctx := context.Background()
	if err := repos.Entries.Upsert(ctx, &domain.Entry{ID: id}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	decision := domain.ConsentDecision{Granted: granted, Scope: "all_shots", Evidence: "web:approve", DecidedAt: time.Now()}
	if err := repos.Consents.RecordDecision(ctx, id, decision); err != nil {
		t.Fatalf("record: %v", err)
	}
}

func TestDownloadSavesBestRenditions(t *testing.T) {
	ctx := context.Background()
	srv := newShotServer(t)
	repos := newTestRepos(t)
	grant(t, repos, "001", true)
	dir := t.TempDir()

	dispatcher := events.NewInMemoryDispatcher(nil)
	var payloads []events.ImagesDownloadedPayload
	dispatcher.Subscribe(events.EventImagesDownloaded, func(_ context.Context, e events.Event) error {
		payloads = append(payloads, e.Payload.(events.ImagesDownloadedPayload))
		return nil
	})

	client := dribbble.NewClient(srv.Client(), srv.URL, "")
	svc := NewDownloadService(repos, client, staticToken("oauth-token"), dispatcher, dir, nil)

	res, err := svc.Download(ctx, "001")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if len(res.Saved) != 2 || res.Skipped != 2 {
		t.Fatalf("saved=%d skipped=%d", len(res.Saved), res.Skipped)
	}

	files := map[string]string{
		filepath.Join(dir, "001", "shot-1.png"): "hidpi",
		filepath.Join(dir, "001", "shot-2.jpg"): "normal",
	}
	for path, want := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if string(raw) != want {
			t.Errorf("%s = %q, want %q", path, raw, want)
		}
	}

	stored, err := repos.Downloads.ListByEntry(ctx, "001")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("expected 2 download records, got %d", len(stored))
	}
	if len(payloads) != 1 || payloads[0].Saved != 2 || payloads[0].Skipped != 2 {
		t.Errorf("events = %+v", payloads)
	}
}

func TestDownloadPreconditions(t *testing.T) {
	srv := newShotServer(t)
	repos := newTestRepos(t)
	grant(t, repos, "declined", false)
	grant(t, repos, "granted", true)
	client := dribbble.NewClient(srv.Client(), srv.URL, "")

	tests := []struct {
		name  string
		id    string
		token staticToken
		want  string
	}{
		{name: "unknown entry", id: "nobody", token: "oauth-token", want: "CONSENT_REQUIRED"},
		{name: "declined", id: "declined", token: "oauth-token", want: "CONSENT_REQUIRED"},
		{name: "no token", id: "granted", token: "", want: "MISSING_TOKEN"},
		{name: "rejected token", id: "granted", token: "stale", want: "UPSTREAM_UNAVAILABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewDownloadService(repos, client, tt.token, nil, t.TempDir(), nil)
			_, err := svc.Download(context.Background(), tt.id)
			if got := errorCode(t, err); got != tt.want {
				t.Fatalf("code = %s, want %s", got, tt.want)
			}
		})
	}
}
