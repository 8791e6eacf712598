package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/weaveui/dataset-manager/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventEntryPrepared    EventType = "entry_prepared"
	EventConsentRequested EventType = "consent_requested"
	EventConsentDecided   EventType = "consent_decided"
	EventImagesDownloaded EventType = "images_downloaded"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type  domain.SubjectType `json:"type,omitempty"`
	Email string             `json:"email,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	EntryID   string      `json:"entry_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New builds an event with a fresh id and timestamp.
func New(eventType EventType, entryID string, actor Actor, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		EntryID:   entryID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// EntryPreparedPayload payload.
type EntryPreparedPayload struct {
	LetterPath string `json:"letter_path"`
}

// ConsentRequestedPayload payload.
type ConsentRequestedPayload struct {
	To        string    `json:"to"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ConsentDecidedPayload payload. To is the recipient of the decision receipt.
type ConsentDecidedPayload struct {
	To        string    `json:"to"`
	Granted   bool      `json:"granted"`
	Scope     string    `json:"scope"`
	Evidence  string    `json:"evidence"`
	DecidedAt time.Time `json:"decided_at"`
}

// ImagesDownloadedPayload payload.
type ImagesDownloadedPayload struct {
	Saved   int `json:"saved"`
	Skipped int `json:"skipped"`
}
