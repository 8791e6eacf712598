package domain

import "time"

// ConsentState summarizes where an entry is in the consent workflow.
type ConsentState string

const (
	ConsentPending  ConsentState = "pending"
	ConsentGranted  ConsentState = "granted"
	ConsentDeclined ConsentState = "declined"
)

// ParseConsentState validates a state name. The empty string is accepted and means any.
func ParseConsentState(s string) (ConsentState, bool) {
	switch ConsentState(s) {
	case "", ConsentPending, ConsentGranted, ConsentDeclined:
		return ConsentState(s), true
	default:
		return "", false
	}
}

// Consent is the recorded outreach and decision for one entry. Granted is nil until the
// creator decides.
type Consent struct {
	EntryID   string
	SentAt    *time.Time
	Granted   *bool
	Scope     string
	Evidence  string
	DecidedAt *time.Time
}

// State derives the workflow state.
func (c *Consent) State() ConsentState {
	switch {
	case c == nil || c.Granted == nil:
		return ConsentPending
	case *c.Granted:
		return ConsentGranted
	default:
		return ConsentDeclined
	}
}

// IsGranted reports whether the creator approved.
func (c *Consent) IsGranted() bool {
	return c.State() == ConsentGranted
}

// ConsentDecision is what gets recorded when a creator approves or declines.
type ConsentDecision struct {
	Granted   bool
	Scope     string
	Evidence  string
	DecidedAt time.Time
}

// Evidence channels recorded with a decision.
const (
	EvidenceWebApprove = "web:approve"
	EvidenceWebDecline = "web:decline"
)
