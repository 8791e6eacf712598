package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/weaveui/dataset-manager/internal/config"
)

// DefaultConsentScope is the grant extent used when a payload carries none.
const DefaultConsentScope = "all_shots"

const tokenDelimiter = "."

// Consent token failure kinds. Match with errors.Is.
var (
	ErrMalformedToken   = errors.New("malformed_token")
	ErrBadSignature     = errors.New("bad_signature")
	ErrMalformedPayload = errors.New("malformed_payload")
	ErrExpired          = errors.New("expired")
)

// ConsentTokenError carries the failure kind plus a human readable reason.
type ConsentTokenError struct {
	Kind   error
	Reason string
}

func (e *ConsentTokenError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *ConsentTokenError) Unwrap() error {
	return e.Kind
}

func tokenError(kind error, reason string) error {
	return &ConsentTokenError{Kind: kind, Reason: reason}
}

// ConsentTokenPayload is the entire state of a consent credential. It is never stored
// server-side.
type ConsentTokenPayload struct {
	EntryID   string `json:"entryId"`
	To        string `json:"to"`
	Scope     string `json:"scope,omitempty"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// NewConsentTokenPayload builds a payload valid from now for ttl.
func NewConsentTokenPayload(entryID, to, scope string, now time.Time, ttl time.Duration) ConsentTokenPayload {
	if scope == "" {
		scope = DefaultConsentScope
	}
	return ConsentTokenPayload{
		EntryID:   entryID,
		To:        to,
		Scope:     scope,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
}

// ScopeOrDefault returns the declared scope, falling back to DefaultConsentScope.
func (p ConsentTokenPayload) ScopeOrDefault() string {
	if p.Scope == "" {
		return DefaultConsentScope
	}
	return p.Scope
}

// ExpiresAtTime returns the expiry as a time.Time.
func (p ConsentTokenPayload) ExpiresAtTime() time.Time {
	return time.Unix(p.ExpiresAt, 0)
}

func (p ConsentTokenPayload) validate() error {
	switch {
	case p.EntryID == "":
		return tokenError(ErrMalformedPayload, "entryId is required")
	case p.To == "":
		return tokenError(ErrMalformedPayload, "to is required")
	case p.IssuedAt == 0:
		return tokenError(ErrMalformedPayload, "iat is required")
	case p.ExpiresAt == 0:
		return tokenError(ErrMalformedPayload, "exp is required")
	case p.ExpiresAt <= p.IssuedAt:
		return tokenError(ErrMalformedPayload, "exp must be after iat")
	}
	return nil
}

// ConsentCodec signs and verifies consent tokens of the form
// base64url(json payload) "." base64url(HMAC-SHA256(json payload)).
type ConsentCodec struct {
	secret []byte
	now    func() time.Time
}

// NewConsentCodec builds a codec from the consent configuration. A missing secret is a
// configuration error.
func NewConsentCodec(cfg config.ConsentConfig) (*ConsentCodec, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("%w: consent secret", config.ErrConfigurationMissing)
	}
	return &ConsentCodec{secret: []byte(cfg.Secret), now: time.Now}, nil
}

// WithClock returns a copy of the codec that reads the current time from now.
func (c *ConsentCodec) WithClock(now func() time.Time) *ConsentCodec {
	clone := *c
	clone.now = now
	return &clone
}

// Sign serializes and signs the payload.
func (c *ConsentCodec) Sign(payload ConsentTokenPayload) (string, error) {
	if err := payload.validate(); err != nil {
		return "", err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal consent payload: %w", err)
	}
	sig := c.mac(body)
	return encodeSegment(body) + tokenDelimiter + encodeSegment(sig), nil
}

// Verify checks the token signature and expiry and returns its payload. A token stays
// valid for any number of uses until it expires.
func (c *ConsentCodec) Verify(token string) (ConsentTokenPayload, error) {
	var payload ConsentTokenPayload

	rawBody, rawSig, found := strings.Cut(token, tokenDelimiter)
	if !found {
		return payload, tokenError(ErrMalformedToken, "missing delimiter")
	}
	if rawBody == "" || rawSig == "" {
		return payload, tokenError(ErrMalformedToken, "empty segment")
	}

	body, err := decodeSegment(rawBody)
	if err != nil {
		return payload, tokenError(ErrMalformedToken, "payload segment is not base64url")
	}
	sig, err := decodeSegment(rawSig)
	if err != nil {
		return payload, tokenError(ErrMalformedToken, "signature segment is not base64url")
	}

	// hmac.Equal does not short-circuit on the first differing byte.
	if !hmac.Equal(sig, c.mac(body)) {
		return payload, tokenError(ErrBadSignature, "signature mismatch")
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return ConsentTokenPayload{}, tokenError(ErrMalformedPayload, "payload is not valid json")
	}
	if err := payload.validate(); err != nil {
		return ConsentTokenPayload{}, err
	}

	if c.now().Unix() > payload.ExpiresAt {
		return ConsentTokenPayload{}, tokenError(ErrExpired, "link has expired")
	}
	return payload, nil
}

func (c *ConsentCodec) mac(body []byte) []byte {
	h := hmac.New(sha256.New, c.secret)
	h.Write(body)
	return h.Sum(nil)
}

func encodeSegment(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// decodeSegment accepts padded and unpadded base64url. Strict decoding rejects
// non-zero trailing bits so that no two segment strings decode to the same bytes.
func decodeSegment(s string) ([]byte, error) {
	return base64.RawURLEncoding.Strict().DecodeString(strings.TrimRight(s, "="))
}
