package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/weaveui/dataset-manager/internal/discovery"
	"github.com/weaveui/dataset-manager/internal/domain"
	"github.com/weaveui/dataset-manager/internal/events"
)

func TestPrepareWritesLetterAndEntry(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	repos := newTestRepos(t)
	dispatcher := events.NewInMemoryDispatcher(nil)
	var prepared []events.Event
	dispatcher.Subscribe(events.EventEntryPrepared, func(_ context.Context, e events.Event) error {
		prepared = append(prepared, e)
		return nil
	})
	svc := NewOutreachService(cfg, repos.Entries, newTestTemplates(t), dispatcher, nil)

	res, err := svc.Prepare(ctx, PrepareInput{
		EntryID:     "001",
		Title:       "Banking dashboard",
		URL:         "https://dribbble.com/shots/1",
		CreatorName: "Jane",
		CreatorID:   "9",
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	wantPath := filepath.Join(cfg.Outreach.LetterDir, "001", "consent-request.txt")
	if res.LetterPath != wantPath {
		t.Errorf("path = %q, want %q", res.LetterPath, wantPath)
	}
	raw, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("read letter: %v", err)
	}
	for _, want := range []string{"Dear Jane,", `"Banking dashboard"`, "Ola V", "Student, Wesleyan"} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("letter is missing %q", want)
		}
	}

	entry, err := repos.Entries.GetByID(ctx, "001")
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	want := &domain.Entry{ID: "001", Title: "Banking dashboard", URL: "https://dribbble.com/shots/1", CreatorName: "Jane", CreatorID: "9"}
	if diff := cmp.Diff(want, entry, cmpopts.IgnoreFields(domain.Entry{}, "CreatedAt", "UpdatedAt")); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}
	if len(prepared) != 1 || prepared[0].EntryID != "001" {
		t.Errorf("prepared events = %+v", prepared)
	}
}

func TestPrepareRejectsUnsafeIDs(t *testing.T) {
	svc := NewOutreachService(newTestConfig(t), newTestRepos(t).Entries, newTestTemplates(t), nil, nil)
	for _, id := range []string{"", "../x", "a/b", ".hidden", "a..b"} {
		if _, err := svc.Prepare(context.Background(), PrepareInput{EntryID: id}); errorCode(t, err) != "VALIDATION_FAILED" {
			t.Errorf("id %q accepted", id)
		}
	}
}

func TestWriteArtifactUsesCandidate(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	repos := newTestRepos(t)
	svc := NewOutreachService(cfg, repos.Entries, newTestTemplates(t), nil, nil)

	handle := "jane"
	path, err := svc.WriteArtifact(ctx, discovery.Candidate{
		CreatorID:       "9",
		DisplayName:     "Jane",
		Handle:          &handle,
		SampleItemURL:   "https://dribbble.com/shots/42",
		SampleItemTitle: "Checkout",
		ShotID:          42,
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if path != filepath.Join(cfg.Outreach.LetterDir, "dribbble-42", "consent-request.txt") {
		t.Errorf("path = %q", path)
	}
	entry, err := repos.Entries.GetByID(ctx, "dribbble-42")
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if entry.CreatorHandle != "jane" || entry.CreatorID != "9" {
		t.Errorf("entry = %+v", entry)
	}
}

func TestWriteArtifactPropagatesFailures(t *testing.T) {
	cfg := newTestConfig(t)
	blocker := filepath.Join(cfg.Outreach.LetterDir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg.Outreach.LetterDir = blocker
	svc := NewOutreachService(cfg, newTestRepos(t).Entries, newTestTemplates(t), nil, nil)

	_, err := svc.WriteArtifact(context.Background(), discovery.Candidate{CreatorID: "9", ShotID: 1})
	if err == nil {
		t.Fatalf("expected a write failure, got %v", err)
	}
}

func TestPrepareLogsPublishFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	svc := NewOutreachService(newTestConfig(t), newTestRepos(t).Entries, newTestTemplates(t), failingDispatcher{}, zap.New(core))

	if _, err := svc.Prepare(context.Background(), PrepareInput{EntryID: "002", Title: "Onboarding", CreatorName: "Sam"}); err != nil {
		t.Fatalf("prepare should not fail on a publish error: %v", err)
	}

	failures := logs.FilterMessage("event publish failed").All()
	if len(failures) != 1 {
		t.Fatalf("expected one publish failure log, got %d", len(failures))
	}
	fields := failures[0].ContextMap()
	if fields["event_type"] != string(events.EventEntryPrepared) || fields["entry_id"] != "002" {
		t.Errorf("unexpected log fields %v", fields)
	}
}
