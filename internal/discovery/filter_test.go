package discovery

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/weaveui/dataset-manager/internal/dribbble"
)

var filterNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func shotAt(id, creator int64, published time.Time, tags ...string) dribbble.Shot {
	s := dribbble.Shot{
		ID:          id,
		Title:       "shot",
		HTMLURL:     "https://dribbble.com/shots/x",
		PublishedAt: published.Format(time.RFC3339),
		Tags:        tags,
	}
	if creator != 0 {
		s.User = &dribbble.User{ID: creator, Name: "Creator", Login: "creator"}
	}
	return s
}

func TestFilterApply(t *testing.T) {
	day := 24 * time.Hour
	tests := []struct {
		name string
		tags []string
		days float64
		shot dribbble.Shot
		want SkipReason
	}{
		{
			name: "case insensitive tag match",
			tags: []string{"dashboard"},
			days: 30,
			shot: shotAt(1, 7, filterNow.Add(-day), "Dashboard", "ui"),
			want: Accepted,
		},
		{
			name: "filter tags are lowercased",
			tags: []string{"DASHBOARD"},
			days: 30,
			shot: shotAt(1, 7, filterNow.Add(-day), "dashboard"),
			want: Accepted,
		},
		{
			name: "no tag intersection",
			tags: []string{"dashboard"},
			days: 30,
			shot: shotAt(1, 7, filterNow.Add(-day), "branding"),
			want: SkipTagMismatch,
		},
		{
			name: "untagged shot",
			tags: []string{"dashboard"},
			days: 30,
			shot: shotAt(1, 7, filterNow.Add(-day)),
			want: SkipTagMismatch,
		},
		{
			name: "published 31 days ago",
			tags: []string{"ui"},
			days: 30,
			shot: shotAt(1, 7, filterNow.Add(-31*day), "ui"),
			want: SkipStale,
		},
		{
			name: "published 29 days ago",
			tags: []string{"ui"},
			days: 30,
			shot: shotAt(1, 7, filterNow.Add(-29*day), "ui"),
			want: Accepted,
		},
		{
			name: "NaN days bypasses recency",
			tags: []string{"ui"},
			days: math.NaN(),
			shot: shotAt(1, 7, filterNow.Add(-3650*day), "ui"),
			want: Accepted,
		},
		{
			name: "infinite days bypasses recency",
			tags: []string{"ui"},
			days: math.Inf(1),
			shot: shotAt(1, 7, filterNow.Add(-3650*day), "ui"),
			want: Accepted,
		},
		{
			name: "window at the duration limit does not overflow",
			tags: []string{"ui"},
			days: float64(math.MaxInt64) / float64(24*time.Hour),
			shot: shotAt(1, 7, filterNow.Add(-3650*day), "ui"),
			want: Accepted,
		},
		{
			name: "window beyond the duration limit bypasses recency",
			tags: []string{"ui"},
			days: 1e300,
			shot: shotAt(1, 7, filterNow.Add(-3650*day), "ui"),
			want: Accepted,
		},
		{
			name: "anonymous creator",
			tags: []string{"ui"},
			days: 30,
			shot: shotAt(1, 0, filterNow, "ui"),
			want: SkipNoCreator,
		},
		{
			name: "unparseable publish time is not stale",
			tags: []string{"ui"},
			days: 30,
			shot: dribbble.Shot{ID: 1, PublishedAt: "yesterday", Tags: []string{"ui"}, User: &dribbble.User{ID: 3}},
			want: Accepted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFilter(tt.tags, tt.days, filterNow)
			_, got := f.Apply(tt.shot)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFilterDeduplicatesCreators(t *testing.T) {
	f := NewFilter([]string{"ui"}, 30, filterNow)

	first, reason := f.Apply(shotAt(1, 7, filterNow.Add(-48*time.Hour), "ui"))
	if reason != Accepted {
		t.Fatalf("first shot rejected: %q", reason)
	}
	if _, reason := f.Apply(shotAt(2, 7, filterNow.Add(-time.Hour), "ui")); reason != SkipDuplicate {
		t.Fatalf("expected duplicate, got %q", reason)
	}
	if _, reason := f.Apply(shotAt(3, 8, filterNow, "ui")); reason != Accepted {
		t.Fatalf("second creator rejected: %q", reason)
	}
	if f.Seen() != 2 {
		t.Errorf("expected 2 creators seen, got %d", f.Seen())
	}

	handle := "creator"
	want := Candidate{
		CreatorID:       "7",
		DisplayName:     "Creator",
		Handle:          &handle,
		SampleItemURL:   "https://dribbble.com/shots/x",
		SampleItemTitle: "shot",
		PublishedAt:     filterNow.Add(-48 * time.Hour),
		ShotID:          1,
	}
	if diff := cmp.Diff(want, first); diff != "" {
		t.Errorf("candidate mismatch (-want +got):\n%s", diff)
	}
}

func TestCandidateFallbacks(t *testing.T) {
	f := NewFilter(nil, math.NaN(), filterNow)
	c, reason := f.Apply(dribbble.Shot{ID: 42, User: &dribbble.User{ID: 5, Login: "jd"}})
	if reason != Accepted {
		t.Fatalf("rejected: %q", reason)
	}
	if c.DisplayName != "jd" {
		t.Errorf("expected login as display name, got %q", c.DisplayName)
	}
	if c.SampleItemURL != "https://dribbble.com/shots/42" {
		t.Errorf("unexpected sample url %q", c.SampleItemURL)
	}

	c, _ = f.Apply(dribbble.Shot{ID: 43, User: &dribbble.User{ID: 6, Name: "No Handle"}})
	if c.Handle != nil {
		t.Errorf("expected nil handle, got %q", *c.Handle)
	}
}

func TestFilterCutoff(t *testing.T) {
	cutoff, ok := NewFilter([]string{"ui"}, 1.5, filterNow).Cutoff()
	if !ok || !cutoff.Equal(filterNow.Add(-36*time.Hour)) {
		t.Errorf("unexpected cutoff %s (%v)", cutoff, ok)
	}
	if _, ok := NewFilter([]string{"ui"}, math.NaN(), filterNow).Cutoff(); ok {
		t.Error("expected recency bypass for NaN days")
	}
}
