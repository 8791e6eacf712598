package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/weaveui/dataset-manager/internal/config"
	"github.com/weaveui/dataset-manager/internal/discovery"
	"github.com/weaveui/dataset-manager/internal/dribbble"
	"github.com/weaveui/dataset-manager/internal/observability"
	apperrors "github.com/weaveui/dataset-manager/pkg/util"
)

// TagSweepInput is a tag crawl request. A nil Days uses the configured window.
type TagSweepInput struct {
	Tags     []string
	Days     *float64
	PerPage  int
	MaxPages int
	Send     bool
}

// DiscoveryService runs crawls with the current access token. All runs share one
// throttle so concurrent requests still respect the API pacing.
type DiscoveryService struct {
	client   *dribbble.Client
	throttle *dribbble.Throttle
	tokens   AccessTokenSource
	writer   discovery.ArtifactWriter
	metrics  *observability.Metrics
	cfg      config.DiscoveryConfig
	logger   *zap.Logger
}

// NewDiscoveryService builds the service.
func NewDiscoveryService(cfg config.DiscoveryConfig, client *dribbble.Client, tokens AccessTokenSource, writer discovery.ArtifactWriter, metrics *observability.Metrics, logger *zap.Logger) *DiscoveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscoveryService{
		client:   client,
		throttle: dribbble.NewThrottle(cfg.ThrottleInterval),
		tokens:   tokens,
		writer:   writer,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger,
	}
}

// Tags runs a tag sweep over the configured feed.
func (s *DiscoveryService) Tags(ctx context.Context, in TagSweepInput) (*discovery.TagSweepResult, error) {
	crawler, err := s.crawler(ctx)
	if err != nil {
		return nil, err
	}
	days := s.cfg.DefaultDays
	if in.Days != nil {
		days = *in.Days
	}
	perPage := in.PerPage
	if perPage <= 0 {
		perPage = s.cfg.DefaultPerPage
	}
	result, err := crawler.RunTagSweep(ctx, discovery.TagSweepQuery{
		Tags:     in.Tags,
		Days:     days,
		PerPage:  perPage,
		MaxPages: in.MaxPages,
		Send:     in.Send,
	})
	if err != nil {
		return nil, mapDiscoveryError(err)
	}
	return result, nil
}

// Shots runs creator dedup over individually referenced shots.
func (s *DiscoveryService) Shots(ctx context.Context, refs []string, send bool) (*discovery.ShotBatchResult, error) {
	crawler, err := s.crawler(ctx)
	if err != nil {
		return nil, err
	}
	result, err := crawler.DiscoverShots(ctx, refs, send)
	if err != nil {
		return nil, mapDiscoveryError(err)
	}
	return result, nil
}

func (s *DiscoveryService) crawler(ctx context.Context) (*discovery.Crawler, error) {
	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return discovery.NewCrawler(discovery.CrawlerDependencies{
		Source:   s.client.WithAccessToken(token),
		Throttle: s.throttle,
		Writer:   s.writer,
		Logger:   s.logger,
		Metrics:  s.metrics,
		Config:   s.cfg,
	}), nil
}

func mapDiscoveryError(err error) error {
	switch {
	case errors.Is(err, discovery.ErrNoTags):
		return apperrors.NewValidationError(err.Error(), map[string]any{"field": "tags"})
	case errors.Is(err, discovery.ErrNoReferences):
		return apperrors.NewValidationError(err.Error(), map[string]any{"field": "urls"})
	case errors.Is(err, dribbble.ErrMissingAccessToken):
		return apperrors.NewPrecondition("MISSING_TOKEN", "no design platform access token; complete /oauth/start or set DRIBBBLE_ACCESS_TOKEN")
	default:
		return err
	}
}
