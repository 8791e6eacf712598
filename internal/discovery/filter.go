// Package discovery turns the shot feed into unique creator candidates for outreach.
package discovery

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/weaveui/dataset-manager/internal/dribbble"
)

// Candidate is one creator found by a crawl run.
type Candidate struct {
	CreatorID       string    `json:"creatorId"`
	DisplayName     string    `json:"displayName"`
	Handle          *string   `json:"handle"`
	SampleItemURL   string    `json:"sampleItemUrl"`
	SampleItemTitle string    `json:"sampleItemTitle"`
	PublishedAt     time.Time `json:"publishedAt"`
	ShotID          int64     `json:"shotId"`
}

// SkipReason says why the filter rejected a shot.
type SkipReason string

const (
	Accepted        SkipReason = ""
	SkipTagMismatch SkipReason = "tag_mismatch"
	SkipStale       SkipReason = "stale"
	SkipNoCreator   SkipReason = "no_creator"
	SkipDuplicate   SkipReason = "duplicate"
)

// Filter applies tag membership, a recency cutoff and per-run creator dedup. A Filter
// belongs to a single crawl run and is not safe for concurrent use.
type Filter struct {
	tags   map[string]struct{}
	cutoff time.Time
	bypass bool
	seen   map[string]struct{}
}

// NewFilter builds a filter for tags and a recency window of days before now. An empty
// tag list admits every tag set. A non-finite days value disables the recency check.
func NewFilter(tags []string, days float64, now time.Time) *Filter {
	f := &Filter{
		tags: make(map[string]struct{}, len(tags)),
		seen: make(map[string]struct{}),
	}
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			f.tags[t] = struct{}{}
		}
	}
	window := days * float64(24*time.Hour)
	if math.IsNaN(days) || math.IsInf(days, 0) || window >= math.MaxInt64 || window < math.MinInt64 {
		f.bypass = true
	} else {
		f.cutoff = now.Add(-time.Duration(window))
	}
	return f
}

// Cutoff returns the earliest accepted publish time and false when recency is bypassed.
func (f *Filter) Cutoff() (time.Time, bool) {
	return f.cutoff, !f.bypass
}

// Seen reports how many creators the run has emitted so far.
func (f *Filter) Seen() int {
	return len(f.seen)
}

// Apply checks one shot. On acceptance the creator joins the dedup set and the returned
// candidate is ready to emit.
func (f *Filter) Apply(shot dribbble.Shot) (Candidate, SkipReason) {
	if !f.matchesTags(shot.Tags) {
		return Candidate{}, SkipTagMismatch
	}

	published, err := shot.Published()
	// An unparseable timestamp never compares as older than the cutoff.
	if err == nil && !f.bypass && published.Before(f.cutoff) {
		return Candidate{}, SkipStale
	}

	creatorID := shot.CreatorID()
	if creatorID == "" {
		return Candidate{}, SkipNoCreator
	}
	if _, ok := f.seen[creatorID]; ok {
		return Candidate{}, SkipDuplicate
	}
	f.seen[creatorID] = struct{}{}

	return newCandidate(shot, creatorID, published), Accepted
}

func (f *Filter) matchesTags(tags []string) bool {
	if len(f.tags) == 0 {
		return true
	}
	for _, t := range tags {
		if _, ok := f.tags[strings.ToLower(t)]; ok {
			return true
		}
	}
	return false
}

func newCandidate(shot dribbble.Shot, creatorID string, published time.Time) Candidate {
	c := Candidate{
		CreatorID:       creatorID,
		DisplayName:     shot.User.Name,
		SampleItemURL:   shot.HTMLURL,
		SampleItemTitle: shot.Title,
		PublishedAt:     published,
		ShotID:          shot.ID,
	}
	if login := shot.User.Login; login != "" {
		c.Handle = &login
		if c.DisplayName == "" {
			c.DisplayName = login
		}
	}
	if c.SampleItemURL == "" {
		c.SampleItemURL = "https://dribbble.com/shots/" + strconv.FormatInt(shot.ID, 10)
	}
	return c
}
