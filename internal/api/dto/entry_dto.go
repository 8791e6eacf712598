package dto

import (
	"time"

	"github.com/weaveui/dataset-manager/internal/domain"
)

// EntryRequest identifies an entry and optionally updates its metadata.
type EntryRequest struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	CreatorName   string `json:"creator_name"`
	CreatorHandle string `json:"creator_handle"`
	CreatorID     string `json:"creator_id"`
}

// Entry converts the request into a domain entry.
func (r EntryRequest) Entry() domain.Entry {
	return domain.Entry{
		ID:            r.ID,
		Title:         r.Title,
		URL:           r.URL,
		CreatorName:   r.CreatorName,
		CreatorHandle: r.CreatorHandle,
		CreatorID:     r.CreatorID,
	}
}

// MarkConsentRequest records consent collected outside the web flow.
type MarkConsentRequest struct {
	ID        string     `json:"id"`
	Evidence  string     `json:"evidence"`
	Scope     string     `json:"scope"`
	DecidedAt *time.Time `json:"decided_at"`
}

// SendConsentRequest asks for a consent email to be sent.
type SendConsentRequest struct {
	EntryRequest
	To    string `json:"to"`
	Scope string `json:"scope"`
}

// DownloadRequest names the entry whose images should be fetched.
type DownloadRequest struct {
	ID string `json:"id"`
}

// EntryResponse is the public shape of an entry.
type EntryResponse struct {
	ID            string    `json:"id"`
	Title         string    `json:"title,omitempty"`
	URL           string    `json:"url,omitempty"`
	CreatorName   string    `json:"creator_name,omitempty"`
	CreatorHandle string    `json:"creator_handle,omitempty"`
	CreatorID     string    `json:"creator_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ConsentResponse is the public shape of a consent record.
type ConsentResponse struct {
	State     domain.ConsentState `json:"state"`
	Granted   *bool               `json:"granted"`
	Scope     string              `json:"scope,omitempty"`
	Evidence  string              `json:"evidence,omitempty"`
	SentAt    *time.Time          `json:"sent_at,omitempty"`
	DecidedAt *time.Time          `json:"decided_at,omitempty"`
}

// EntryStatusResponse answers GET /dashboard/status.
type EntryStatusResponse struct {
	ID         string           `json:"id"`
	Entry      *EntryResponse   `json:"entry"`
	SentAt     *time.Time       `json:"sent_at"`
	Consent    *ConsentResponse `json:"consent"`
	Downloaded int              `json:"downloaded"`
}

// EntryListItem is one row of GET /dashboard/entries.
type EntryListItem struct {
	EntryResponse
	Consent       *ConsentResponse `json:"consent"`
	DownloadCount int              `json:"download_count"`
}

// NewEntryResponse maps a domain entry.
func NewEntryResponse(e *domain.Entry) *EntryResponse {
	if e == nil {
		return nil
	}
	return &EntryResponse{
		ID:            e.ID,
		Title:         e.Title,
		URL:           e.URL,
		CreatorName:   e.CreatorName,
		CreatorHandle: e.CreatorHandle,
		CreatorID:     e.CreatorID,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

// NewConsentResponse maps a consent record. A nil record reads as pending.
func NewConsentResponse(c *domain.Consent) *ConsentResponse {
	if c == nil {
		return nil
	}
	return &ConsentResponse{
		State:     c.State(),
		Granted:   c.Granted,
		Scope:     c.Scope,
		Evidence:  c.Evidence,
		SentAt:    c.SentAt,
		DecidedAt: c.DecidedAt,
	}
}
