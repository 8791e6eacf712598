package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/weaveui/dataset-manager/internal/config"
	"github.com/weaveui/dataset-manager/internal/discovery"
	"github.com/weaveui/dataset-manager/internal/domain"
	"github.com/weaveui/dataset-manager/internal/events"
	appmail "github.com/weaveui/dataset-manager/internal/mail"
	"github.com/weaveui/dataset-manager/internal/repository"
	apperrors "github.com/weaveui/dataset-manager/pkg/util"
)

const letterFileName = "consent-request.txt"

// PrepareInput describes the entry an outreach letter is written for.
type PrepareInput struct {
	EntryID       string
	Title         string
	URL           string
	CreatorName   string
	CreatorHandle string
	CreatorID     string
}

// PrepareResult is a written letter.
type PrepareResult struct {
	EntryID    string
	LetterPath string
	Letter     string
}

// OutreachService writes consent letters for entries. It is also the artifact writer
// used by discovery runs with send enabled.
type OutreachService struct {
	entries    repository.EntryRepository
	templates  *appmail.Templates
	dispatcher events.Dispatcher
	sender     config.SenderConfig
	letterDir  string
	logger     *zap.Logger
}

// NewOutreachService builds the service.
func NewOutreachService(cfg *config.Config, entries repository.EntryRepository, templates *appmail.Templates, dispatcher events.Dispatcher, logger *zap.Logger) *OutreachService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutreachService{
		entries:    entries,
		templates:  templates,
		dispatcher: dispatcher,
		sender:     cfg.Sender,
		letterDir:  cfg.Outreach.LetterDir,
		logger:     logger,
	}
}

// Prepare fills the letter template for an entry, records the entry and writes the
// letter to <LetterDir>/<entryID>/consent-request.txt.
func (s *OutreachService) Prepare(ctx context.Context, in PrepareInput) (*PrepareResult, error) {
	if err := validateEntryID(in.EntryID); err != nil {
		return nil, err
	}

	creatorName := in.CreatorName
	if creatorName == "" {
		creatorName = "there"
	}
	letter, err := s.templates.Letter(appmail.ConsentRequestData{
		CreatorName: creatorName,
		ShotTitle:   in.Title,
		ShotURL:     in.URL,
		Sender:      s.sender,
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	entry := &domain.Entry{
		ID:            in.EntryID,
		Title:         in.Title,
		URL:           in.URL,
		CreatorName:   in.CreatorName,
		CreatorHandle: in.CreatorHandle,
		CreatorID:     in.CreatorID,
	}
	if err := s.entries.Upsert(ctx, entry); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.letterDir, in.EntryID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("create letter dir: %w", err))
	}
	letterPath := filepath.Join(dir, letterFileName)
	if err := os.WriteFile(letterPath, []byte(letter), 0o644); err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("write letter: %w", err))
	}

	publish(ctx, s.dispatcher, s.logger, events.New(events.EventEntryPrepared, in.EntryID, events.Actor{}, events.EntryPreparedPayload{
		LetterPath: letterPath,
	}))
	s.logger.Info("letter prepared", zap.String("entry_id", in.EntryID), zap.String("path", letterPath))
	return &PrepareResult{EntryID: in.EntryID, LetterPath: letterPath, Letter: letter}, nil
}

// WriteArtifact prepares a letter for a discovered creator. The entry id is derived
// from the sample shot.
func (s *OutreachService) WriteArtifact(ctx context.Context, c discovery.Candidate) (string, error) {
	in := PrepareInput{
		EntryID:     CandidateEntryID(c),
		Title:       c.SampleItemTitle,
		URL:         c.SampleItemURL,
		CreatorName: c.DisplayName,
		CreatorID:   c.CreatorID,
	}
	if c.Handle != nil {
		in.CreatorHandle = *c.Handle
	}
	res, err := s.Prepare(ctx, in)
	if err != nil {
		return "", err
	}
	return res.LetterPath, nil
}

// CandidateEntryID names the entry created for a discovered candidate.
func CandidateEntryID(c discovery.Candidate) string {
	if c.ShotID > 0 {
		return "dribbble-" + strconv.FormatInt(c.ShotID, 10)
	}
	return "creator-" + c.CreatorID
}

var _ discovery.ArtifactWriter = (*OutreachService)(nil)
