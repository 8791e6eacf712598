package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/weaveui/dataset-manager/internal/domain"
	"github.com/weaveui/dataset-manager/internal/repository"
	apperrors "github.com/weaveui/dataset-manager/pkg/util"
)

// Entry ids become directory names, so they are limited to a safe alphabet.
var entryIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

func validateEntryID(id string) error {
	if !entryIDPattern.MatchString(id) || strings.Contains(id, "..") {
		return apperrors.NewValidationError("invalid entry id", map[string]any{"id": id})
	}
	return nil
}

// EntryStatus is the dashboard view of one entry.
type EntryStatus struct {
	ID         string
	Entry      *domain.Entry
	SentAt     *time.Time
	Consent    *domain.Consent
	Downloaded int
}

// EntryService serves the dashboard bookkeeping operations.
type EntryService struct {
	entries   repository.EntryRepository
	consents  repository.ConsentRepository
	downloads repository.DownloadRepository
	now       func() time.Time
}

// NewEntryService builds the service.
func NewEntryService(repos repository.Set) *EntryService {
	return &EntryService{
		entries:   repos.Entries,
		consents:  repos.Consents,
		downloads: repos.Downloads,
		now:       time.Now,
	}
}

// Status returns what is known about an entry. An unknown id yields an empty status.
func (s *EntryService) Status(ctx context.Context, id string) (*EntryStatus, error) {
	if err := validateEntryID(id); err != nil {
		return nil, err
	}
	status := &EntryStatus{ID: id}

	entry, err := s.entries.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return status, nil
		}
		return nil, err
	}
	status.Entry = entry

	consent, err := s.consents.GetByEntryID(ctx, id)
	switch {
	case err == nil:
		status.Consent = consent
		status.SentAt = consent.SentAt
	case !repository.IsNotFound(err):
		return nil, err
	}

	downloads, err := s.downloads.ListByEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	status.Downloaded = len(downloads)
	return status, nil
}

// List returns entries matching the filter.
func (s *EntryService) List(ctx context.Context, filter repository.EntryFilter) ([]domain.EntryRecord, error) {
	return s.entries.List(ctx, filter)
}

// MarkSent records that a consent request went out through some other channel.
func (s *EntryService) MarkSent(ctx context.Context, entry domain.Entry) error {
	if err := validateEntryID(entry.ID); err != nil {
		return err
	}
	if err := s.entries.Upsert(ctx, &entry); err != nil {
		return err
	}
	return s.consents.MarkSent(ctx, entry.ID, s.now().UTC())
}

// MarkConsent records a grant collected outside the web flow, e.g. an email reply. A
// zero at means now.
func (s *EntryService) MarkConsent(ctx context.Context, id, evidence, scope string, at time.Time) error {
	if err := validateEntryID(id); err != nil {
		return err
	}
	if at.IsZero() {
		at = s.now()
	}
	if err := s.entries.Upsert(ctx, &domain.Entry{ID: id}); err != nil {
		return err
	}
	return s.consents.RecordDecision(ctx, id, domain.ConsentDecision{
		Granted:   true,
		Scope:     scope,
		Evidence:  evidence,
		DecidedAt: at.UTC(),
	})
}
