package service

import (
	"context"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/weaveui/dataset-manager/internal/domain"
	"github.com/weaveui/dataset-manager/internal/dribbble"
	"github.com/weaveui/dataset-manager/internal/events"
	"github.com/weaveui/dataset-manager/internal/repository"
	apperrors "github.com/weaveui/dataset-manager/pkg/util"
)

// DownloadResult summarizes one download run.
type DownloadResult struct {
	EntryID string
	Saved   []domain.Download
	Skipped int
}

// DownloadService fetches the images of a consenting creator.
type DownloadService struct {
	consents   repository.ConsentRepository
	downloads  repository.DownloadRepository
	client     *dribbble.Client
	tokens     AccessTokenSource
	dispatcher events.Dispatcher
	dir        string
	logger     *zap.Logger
	now        func() time.Time
}

// NewDownloadService builds the service. Images land under dir/<entryID>.
func NewDownloadService(repos repository.Set, client *dribbble.Client, tokens AccessTokenSource, dispatcher events.Dispatcher, dir string, logger *zap.Logger) *DownloadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DownloadService{
		consents:   repos.Consents,
		downloads:  repos.Downloads,
		client:     client,
		tokens:     tokens,
		dispatcher: dispatcher,
		dir:        dir,
		logger:     logger,
		now:        time.Now,
	}
}

// Download saves the best rendition of every shot of the authorized account. It refuses
// to run unless the entry's creator granted consent.
func (s *DownloadService) Download(ctx context.Context, entryID string) (*DownloadResult, error) {
	if err := validateEntryID(entryID); err != nil {
		return nil, err
	}
	consent, err := s.consents.GetByEntryID(ctx, entryID)
	if err != nil && !repository.IsNotFound(err) {
		return nil, err
	}
	if !consent.IsGranted() {
		return nil, apperrors.NewPrecondition("CONSENT_REQUIRED", "consent has not been granted for this entry")
	}

	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if token == "" {
		return nil, apperrors.NewPrecondition("MISSING_TOKEN", "no design platform access token; complete /oauth/start first")
	}
	client := s.client.WithAccessToken(token)

	shots, err := client.ListUserShots(ctx)
	if err != nil {
		return nil, apperrors.NewUpstreamError("listing shots failed", err)
	}

	outDir := filepath.Join(s.dir, entryID)
	result := &DownloadResult{EntryID: entryID, Saved: []domain.Download{}}
	for _, shot := range shots {
		imageURL := shot.BestImageURL()
		if imageURL == "" {
			result.Skipped++
			continue
		}
		shotID := strconv.FormatInt(shot.ID, 10)
		path, err := client.DownloadImage(ctx, imageURL, outDir, "shot-"+shotID)
		if err != nil {
			result.Skipped++
			s.logger.Warn("image download failed", zap.String("entry_id", entryID), zap.String("shot_id", shotID), zap.Error(err))
			continue
		}
		record := domain.Download{
			ID:        uuid.NewString(),
			EntryID:   entryID,
			ShotID:    shotID,
			ImageURL:  imageURL,
			FilePath:  path,
			Status:    domain.DownloadStatusSaved,
			CreatedAt: s.now().UTC(),
		}
		if err := s.downloads.Create(ctx, &record); err != nil {
			return nil, err
		}
		result.Saved = append(result.Saved, record)
	}

	publish(ctx, s.dispatcher, s.logger, events.New(events.EventImagesDownloaded, entryID, events.Actor{}, events.ImagesDownloadedPayload{
		Saved:   len(result.Saved),
		Skipped: result.Skipped,
	}))
	return result, nil
}
