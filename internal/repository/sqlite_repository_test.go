package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	_ "modernc.org/sqlite"

	"github.com/weaveui/dataset-manager/internal/domain"
	"github.com/weaveui/dataset-manager/migrations"
)

var ignoreEntryTimestamps = cmpopts.IgnoreFields(domain.Entry{}, "CreatedAt", "UpdatedAt")

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	if err := migrations.Run(db, migrations.SQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSQLiteEntryUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteEntryRepository(newTestDB(t))

	entry := &domain.Entry{ID: "001", Title: "Landing", URL: "https://dribbble.com/shots/1", CreatorName: "Jane", CreatorID: "9"}
	if err := repo.Upsert(ctx, entry); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if entry.CreatedAt.IsZero() || entry.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be populated")
	}

	tests := []struct {
		name   string
		update domain.Entry
		want   domain.Entry
	}{
		{
			name:   "empty fields keep stored values",
			update: domain.Entry{ID: "001"},
			want:   domain.Entry{ID: "001", Title: "Landing", URL: "https://dribbble.com/shots/1", CreatorName: "Jane", CreatorID: "9"},
		},
		{
			name:   "non-empty fields overwrite",
			update: domain.Entry{ID: "001", Title: "Dashboard", CreatorHandle: "jane"},
			want:   domain.Entry{ID: "001", Title: "Dashboard", URL: "https://dribbble.com/shots/1", CreatorName: "Jane", CreatorHandle: "jane", CreatorID: "9"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update := tt.update
			if err := repo.Upsert(ctx, &update); err != nil {
				t.Fatalf("upsert: %v", err)
			}
			if diff := cmp.Diff(tt.want, update, ignoreEntryTimestamps); diff != "" {
				t.Errorf("upsert result mismatch (-want +got):\n%s", diff)
			}
			got, err := repo.GetByID(ctx, "001")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if diff := cmp.Diff(tt.want, *got, ignoreEntryTimestamps); diff != "" {
				t.Errorf("stored entry mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := repo.GetByID(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSQLiteConsentLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	set := NewSQLiteSet(db)

	if err := set.Entries.Upsert(ctx, &domain.Entry{ID: "001"}); err != nil {
		t.Fatalf("upsert entry: %v", err)
	}
	if _, err := set.Consents.GetByEntryID(ctx, "001"); !IsNotFound(err) {
		t.Fatalf("expected not found before outreach, got %v", err)
	}

	sentAt := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	if err := set.Consents.MarkSent(ctx, "001", sentAt); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	consent, err := set.Consents.GetByEntryID(ctx, "001")
	if err != nil {
		t.Fatalf("get consent: %v", err)
	}
	if consent.State() != domain.ConsentPending || consent.SentAt == nil || !consent.SentAt.Equal(sentAt) {
		t.Fatalf("unexpected consent after send: %+v", consent)
	}

	decidedAt := sentAt.Add(48 * time.Hour)
	decision := domain.ConsentDecision{Granted: true, Scope: "all_shots", Evidence: domain.EvidenceWebApprove, DecidedAt: decidedAt}
	if err := set.Consents.RecordDecision(ctx, "001", decision); err != nil {
		t.Fatalf("record decision: %v", err)
	}
	granted := true
	want := &domain.Consent{
		EntryID:   "001",
		SentAt:    &sentAt,
		Granted:   &granted,
		Scope:     "all_shots",
		Evidence:  domain.EvidenceWebApprove,
		DecidedAt: &decidedAt,
	}
	consent, err = set.Consents.GetByEntryID(ctx, "001")
	if err != nil {
		t.Fatalf("get consent: %v", err)
	}
	if diff := cmp.Diff(want, consent); diff != "" {
		t.Errorf("consent mismatch (-want +got):\n%s", diff)
	}

	decision.Granted = false
	decision.Evidence = domain.EvidenceWebDecline
	if err := set.Consents.RecordDecision(ctx, "001", decision); err != nil {
		t.Fatalf("record decline: %v", err)
	}
	consent, err = set.Consents.GetByEntryID(ctx, "001")
	if err != nil {
		t.Fatalf("get consent: %v", err)
	}
	if consent.State() != domain.ConsentDeclined {
		t.Errorf("expected declined after re-decision, got %s", consent.State())
	}
}

func TestSQLiteConsentRequiresEntry(t *testing.T) {
	set := NewSQLiteSet(newTestDB(t))
	if err := set.Consents.MarkSent(context.Background(), "ghost", time.Now()); err == nil {
		t.Fatal("expected foreign key violation")
	}
}

func TestSQLiteListFilters(t *testing.T) {
	ctx := context.Background()
	set := NewSQLiteSet(newTestDB(t))

	for _, id := range []string{"a", "b", "c", "d"} {
		if err := set.Entries.Upsert(ctx, &domain.Entry{ID: id, CreatorID: "creator-" + id}); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
	now := time.Now()
	if err := set.Consents.RecordDecision(ctx, "a", domain.ConsentDecision{Granted: true, DecidedAt: now}); err != nil {
		t.Fatalf("decide a: %v", err)
	}
	if err := set.Consents.RecordDecision(ctx, "b", domain.ConsentDecision{Granted: false, DecidedAt: now}); err != nil {
		t.Fatalf("decide b: %v", err)
	}
	if err := set.Consents.MarkSent(ctx, "c", now); err != nil {
		t.Fatalf("send c: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := set.Downloads.Create(ctx, &domain.Download{EntryID: "a", ShotID: "1", Status: domain.DownloadStatusSaved}); err != nil {
			t.Fatalf("download: %v", err)
		}
	}

	creatorB := "creator-b"
	tests := []struct {
		name   string
		filter EntryFilter
		want   []string
	}{
		{name: "granted", filter: EntryFilter{Consent: domain.ConsentGranted}, want: []string{"a"}},
		{name: "declined", filter: EntryFilter{Consent: domain.ConsentDeclined}, want: []string{"b"}},
		{name: "pending includes sent and untouched", filter: EntryFilter{Consent: domain.ConsentPending}, want: []string{"c", "d"}},
		{name: "by creator", filter: EntryFilter{CreatorID: &creatorB}, want: []string{"b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := set.Entries.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			got := make([]string, 0, len(records))
			for _, r := range records {
				got = append(got, r.Entry.ID)
			}
			if diff := cmp.Diff(tt.want, got, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}

	limited, err := set.Entries.List(ctx, EntryFilter{Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected 1 record with limit, got %d", len(limited))
	}

	records, err := set.Entries.List(ctx, EntryFilter{Consent: domain.ConsentGranted})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if records[0].DownloadCount != 2 || !records[0].Consent.IsGranted() {
		t.Errorf("unexpected granted record %+v", records[0])
	}
}

func TestSQLiteDownloads(t *testing.T) {
	ctx := context.Background()
	set := NewSQLiteSet(newTestDB(t))
	if err := set.Entries.Upsert(ctx, &domain.Entry{ID: "001"}); err != nil {
		t.Fatalf("upsert entry: %v", err)
	}

	d := &domain.Download{EntryID: "001", ShotID: "42", ImageURL: "https://cdn/x.png", FilePath: "/tmp/x.png", Status: domain.DownloadStatusSaved}
	if err := set.Downloads.Create(ctx, d); err != nil {
		t.Fatalf("create: %v", err)
	}
	if d.ID == "" || d.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", d)
	}

	got, err := set.Downloads.ListByEntry(ctx, "001")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff([]domain.Download{*d}, got, cmpopts.EquateApproxTime(time.Microsecond)); diff != "" {
		t.Errorf("downloads mismatch (-want +got):\n%s", diff)
	}
}
