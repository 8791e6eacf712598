package discovery

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/weaveui/dataset-manager/internal/config"
	"github.com/weaveui/dataset-manager/internal/dribbble"
	"github.com/weaveui/dataset-manager/internal/observability"
)

// MaxPerPage is the largest page size the feed API accepts.
const MaxPerPage = 100

var (
	// ErrNoTags is returned when a tag sweep is requested without tags.
	ErrNoTags = errors.New("at least one tag is required")
	// ErrNoReferences is returned when shot discovery is requested without references.
	ErrNoReferences = errors.New("at least one shot reference is required")
)

// ItemStatus is the outcome of one reference in a shot batch.
type ItemStatus string

const (
	StatusOK               ItemStatus = "ok"
	StatusBadURL           ItemStatus = "bad_url"
	StatusFetchFailed      ItemStatus = "fetch_failed"
	StatusSkippedDuplicate ItemStatus = "skipped_duplicate"
	StatusSkippedNoCreator ItemStatus = "skipped_no_creator"
)

// ShotSource is the slice of the Dribbble client the crawler needs.
type ShotSource interface {
	dribbble.PageFetcher
	GetShot(ctx context.Context, id int64) (*dribbble.Shot, error)
	FeedURL(feedPath string, perPage int) string
	HasAccessToken() bool
}

// ArtifactWriter produces the consent artifact for a new candidate and returns where it
// was stored.
type ArtifactWriter interface {
	WriteArtifact(ctx context.Context, candidate Candidate) (string, error)
}

// Artifact records the outcome of one artifact write.
type Artifact struct {
	CreatorID string `json:"creatorId"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
}

// TagSweepQuery describes a feed crawl.
type TagSweepQuery struct {
	Tags     []string
	Days     float64
	PerPage  int
	MaxPages int
	Send     bool
}

// TagSweepResult is returned on every termination path of a crawl. PagesVisited and
// ItemsScanned are kept next to the candidates because tags are matched client-side:
// most scanned items are discarded.
type TagSweepResult struct {
	RunID        string      `json:"runId"`
	Candidates   []Candidate `json:"candidates"`
	PagesVisited int         `json:"pagesVisited"`
	ItemsScanned int         `json:"itemsScanned"`
	FinalState   string      `json:"finalState"`
	Truncated    bool        `json:"truncated"`
	LastStatus   int         `json:"lastStatus,omitempty"`
	Error        string      `json:"error,omitempty"`
	Artifacts    []Artifact  `json:"artifacts,omitempty"`
}

// ShotResult is the outcome of one reference in a shot batch.
type ShotResult struct {
	Reference string     `json:"reference"`
	ShotID    int64      `json:"shotId,omitempty"`
	Status    ItemStatus `json:"status"`
	Candidate *Candidate `json:"candidate,omitempty"`
	Artifact  *Artifact  `json:"artifact,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// ShotBatchResult lists per-reference outcomes in input order.
type ShotBatchResult struct {
	RunID string       `json:"runId"`
	Items []ShotResult `json:"items"`
}

// Candidates returns the candidates of the batch in input order.
func (r *ShotBatchResult) Candidates() []Candidate {
	out := make([]Candidate, 0, len(r.Items))
	for _, item := range r.Items {
		if item.Candidate != nil {
			out = append(out, *item.Candidate)
		}
	}
	return out
}

// CrawlerDependencies bundles the collaborators of a Crawler.
type CrawlerDependencies struct {
	Source   ShotSource
	Throttle *dribbble.Throttle
	Writer   ArtifactWriter
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Config   config.DiscoveryConfig
}

// Crawler runs discovery sequentially: each item is throttled, fetched, filtered and
// optionally written before the next one starts.
type Crawler struct {
	source   ShotSource
	throttle *dribbble.Throttle
	writer   ArtifactWriter
	logger   *zap.Logger
	metrics  *observability.Metrics
	cfg      config.DiscoveryConfig
	now      func() time.Time
}

// NewCrawler creates a crawler.
func NewCrawler(deps CrawlerDependencies) *Crawler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	throttle := deps.Throttle
	if throttle == nil {
		throttle = dribbble.NewThrottle(deps.Config.ThrottleInterval)
	}
	return &Crawler{
		source:   deps.Source,
		throttle: throttle,
		writer:   deps.Writer,
		logger:   logger,
		metrics:  deps.Metrics,
		cfg:      deps.Config,
		now:      time.Now,
	}
}

// WithClock returns a copy of the crawler reading the current time from now.
func (c *Crawler) WithClock(now func() time.Time) *Crawler {
	clone := *c
	clone.now = now
	return &clone
}

// RunTagSweep walks the feed and returns the unique creators whose shots carry one of
// the query tags and were published within the recency window. Page failures end the
// walk and are reported in the result; only precondition failures return an error.
func (c *Crawler) RunTagSweep(ctx context.Context, q TagSweepQuery) (*TagSweepResult, error) {
	if !hasTag(q.Tags) {
		return nil, ErrNoTags
	}
	if c.source == nil || !c.source.HasAccessToken() {
		return nil, dribbble.ErrMissingAccessToken
	}
	q = c.withDefaults(q)

	filter := NewFilter(q.Tags, q.Days, c.now())
	seed := c.source.FeedURL(c.cfg.FeedPath, q.PerPage)
	walker := dribbble.NewWalker(c.source, c.throttle, seed, q.MaxPages)

	result := &TagSweepResult{RunID: uuid.NewString(), Candidates: []Candidate{}}
	logger := c.logger.With(zap.String("run_id", result.RunID))
	logger.Info("tag sweep started",
		zap.Strings("tags", q.Tags),
		zap.Float64("days", q.Days),
		zap.Int("per_page", q.PerPage),
		zap.Int("max_pages", q.MaxPages),
		zap.Duration("throttle", c.throttle.Interval()))

	for walker.Next(ctx) {
		for _, shot := range walker.Page().Shots {
			result.ItemsScanned++
			candidate, reason := filter.Apply(shot)
			if reason != Accepted {
				continue
			}
			result.Candidates = append(result.Candidates, candidate)
			if q.Send {
				result.Artifacts = append(result.Artifacts, c.writeArtifact(ctx, logger, candidate))
			}
		}
	}

	result.PagesVisited = walker.PagesVisited()
	result.FinalState = walker.State().String()
	result.Truncated = walker.Truncated()
	result.LastStatus = walker.LastStatus()
	if err := walker.Err(); err != nil {
		result.Error = err.Error()
		logger.Warn("tag sweep stopped on fetch failure",
			zap.String("page_url", walker.Cursor().NextURL),
			zap.Int("pages_visited", result.PagesVisited),
			zap.Int("last_status", result.LastStatus),
			zap.Error(err))
	}

	c.metrics.RecordCrawl(result.PagesVisited, result.ItemsScanned, len(result.Candidates), result.Truncated)
	logger.Info("tag sweep finished",
		zap.String("final_state", result.FinalState),
		zap.Int("pages_visited", result.PagesVisited),
		zap.Int("items_scanned", result.ItemsScanned),
		zap.Int("candidates", len(result.Candidates)))
	return result, nil
}

// DiscoverShots applies creator dedup to individually referenced shots. Every reference
// yields one result; a bad reference or failed fetch never stops the batch. Fetches are
// paced by the same throttle as feed pages.
func (c *Crawler) DiscoverShots(ctx context.Context, refs []string, send bool) (*ShotBatchResult, error) {
	if len(refs) == 0 {
		return nil, ErrNoReferences
	}
	if c.source == nil || !c.source.HasAccessToken() {
		return nil, dribbble.ErrMissingAccessToken
	}

	filter := NewFilter(nil, math.Inf(1), c.now())
	result := &ShotBatchResult{RunID: uuid.NewString(), Items: make([]ShotResult, 0, len(refs))}
	logger := c.logger.With(zap.String("run_id", result.RunID))

	for _, ref := range refs {
		item := ShotResult{Reference: ref}

		id, err := dribbble.ParseShotReference(ref)
		if err != nil {
			item.Status = StatusBadURL
			item.Error = err.Error()
			result.Items = append(result.Items, item)
			continue
		}
		item.ShotID = id

		shot, err := c.fetchShot(ctx, id)
		if err != nil {
			item.Status = StatusFetchFailed
			item.Error = err.Error()
			logger.Warn("shot fetch failed", zap.Int64("shot_id", id), zap.Error(err))
			result.Items = append(result.Items, item)
			continue
		}

		candidate, reason := filter.Apply(*shot)
		switch reason {
		case Accepted:
			item.Status = StatusOK
			item.Candidate = &candidate
			if send {
				artifact := c.writeArtifact(ctx, logger, candidate)
				item.Artifact = &artifact
			}
		case SkipDuplicate:
			item.Status = StatusSkippedDuplicate
		default:
			item.Status = StatusSkippedNoCreator
		}
		result.Items = append(result.Items, item)
	}

	logger.Info("shot discovery finished",
		zap.Int("references", len(refs)),
		zap.Int("candidates", filter.Seen()))
	return result, nil
}

func (c *Crawler) fetchShot(ctx context.Context, id int64) (*dribbble.Shot, error) {
	if err := c.throttle.Wait(ctx); err != nil {
		return nil, err
	}
	return c.source.GetShot(ctx, id)
}

func (c *Crawler) writeArtifact(ctx context.Context, logger *zap.Logger, candidate Candidate) Artifact {
	artifact := Artifact{CreatorID: candidate.CreatorID}
	if c.writer == nil {
		artifact.Error = "no artifact writer configured"
		return artifact
	}
	path, err := c.writer.WriteArtifact(ctx, candidate)
	if err != nil {
		artifact.Error = err.Error()
		logger.Warn("artifact write failed", zap.String("creator_id", candidate.CreatorID), zap.Error(err))
		return artifact
	}
	artifact.Path = path
	return artifact
}

func (c *Crawler) withDefaults(q TagSweepQuery) TagSweepQuery {
	if q.PerPage <= 0 {
		q.PerPage = c.cfg.DefaultPerPage
	}
	if q.PerPage <= 0 || q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	if q.MaxPages <= 0 {
		q.MaxPages = c.cfg.DefaultMaxPages
	}
	if q.MaxPages <= 0 {
		q.MaxPages = 10
	}
	return q
}

func hasTag(tags []string) bool {
	for _, t := range tags {
		if strings.TrimSpace(t) != "" {
			return true
		}
	}
	return false
}
