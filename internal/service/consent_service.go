package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/weaveui/dataset-manager/internal/auth"
	"github.com/weaveui/dataset-manager/internal/config"
	"github.com/weaveui/dataset-manager/internal/domain"
	"github.com/weaveui/dataset-manager/internal/events"
	appmail "github.com/weaveui/dataset-manager/internal/mail"
	"github.com/weaveui/dataset-manager/internal/repository"
	apperrors "github.com/weaveui/dataset-manager/pkg/util"
)

// ConsentDependencies bundles collaborators for the consent service.
type ConsentDependencies struct {
	Codec       *auth.ConsentCodec
	EntryRepo   repository.EntryRepository
	ConsentRepo repository.ConsentRepository
	Mailer      appmail.Mailer
	Composer    *appmail.Composer
	Templates   *appmail.Templates
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// ConsentService issues consent requests and records decisions.
type ConsentService struct {
	codec      *auth.ConsentCodec
	entries    repository.EntryRepository
	consents   repository.ConsentRepository
	mailer     appmail.Mailer
	composer   *appmail.Composer
	templates  *appmail.Templates
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        *config.Config
	now        func() time.Time
}

// NewConsentService builds the service. cfg supplies the public base URL, token
// lifetime, default scope and sender identity.
func NewConsentService(cfg *config.Config, deps ConsentDependencies) *ConsentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsentService{
		codec:      deps.Codec,
		entries:    deps.EntryRepo,
		consents:   deps.ConsentRepo,
		mailer:     deps.Mailer,
		composer:   deps.Composer,
		templates:  deps.Templates,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// SendRequestInput describes a consent request. Entry fields are optional and update
// the stored entry when set.
type SendRequestInput struct {
	EntryID     string
	To          string
	Scope       string
	Title       string
	URL         string
	CreatorName string
}

// SendRequestResult describes a delivered consent request.
type SendRequestResult struct {
	EntryID   string
	To        string
	Links     auth.ConsentLinks
	ExpiresAt time.Time
	SentAt    time.Time
}

// IssuedToken is a signed consent token and the links that carry it.
type IssuedToken struct {
	Token   string
	Payload auth.ConsentTokenPayload
	Links   auth.ConsentLinks
}

// IssueToken signs a consent token for entryID addressed to to.
func (s *ConsentService) IssueToken(entryID, to, scope string) (*IssuedToken, error) {
	if scope == "" {
		scope = s.cfg.Consent.DefaultScope
	}
	payload := auth.NewConsentTokenPayload(entryID, to, scope, s.now(), s.cfg.Consent.TokenTTL)
	token, err := s.codec.Sign(payload)
	if err != nil {
		return nil, err
	}
	return &IssuedToken{
		Token:   token,
		Payload: payload,
		Links:   auth.BuildConsentLinks(s.cfg.App.PublicBaseURL, token),
	}, nil
}

// SendRequest emails a consent request with approve and decline links and records the
// send time. Nothing is recorded when delivery fails.
func (s *ConsentService) SendRequest(ctx context.Context, in SendRequestInput) (*SendRequestResult, error) {
	if err := validateEntryID(in.EntryID); err != nil {
		return nil, err
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(in.To))
	if err != nil {
		return nil, apperrors.NewValidationError("invalid recipient address", map[string]any{"to": in.To})
	}

	entry := &domain.Entry{ID: in.EntryID, Title: in.Title, URL: in.URL, CreatorName: in.CreatorName}
	if err := s.entries.Upsert(ctx, entry); err != nil {
		return nil, err
	}

	issued, err := s.IssueToken(entry.ID, addr.Address, in.Scope)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	creatorName := entry.CreatorName
	if creatorName == "" {
		creatorName = "there"
	}
	subject, text, html, err := s.templates.ConsentRequest(appmail.ConsentRequestData{
		CreatorName: creatorName,
		ShotTitle:   entry.Title,
		ShotURL:     entry.URL,
		PageURL:     issued.Links.PageURL,
		ApproveURL:  issued.Links.ApproveURL,
		DeclineURL:  issued.Links.DeclineURL,
		ExpiresAt:   issued.Payload.ExpiresAtTime(),
		Sender:      s.cfg.Sender,
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	msg := s.composer.Compose(appmail.KindConsent, entry.ID, addr.Address, subject, text, html)
	if err := s.mailer.Send(ctx, msg); err != nil {
		return nil, apperrors.NewUpstreamError("consent email could not be sent", err)
	}

	sentAt := s.now().UTC()
	if err := s.consents.MarkSent(ctx, entry.ID, sentAt); err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.EventConsentRequested, entry.ID, events.Actor{}, events.ConsentRequestedPayload{
		To:        addr.Address,
		ExpiresAt: issued.Payload.ExpiresAtTime(),
	}))

	return &SendRequestResult{
		EntryID:   entry.ID,
		To:        addr.Address,
		Links:     issued.Links,
		ExpiresAt: issued.Payload.ExpiresAtTime(),
		SentAt:    sentAt,
	}, nil
}

// ConsentView is what the creator sees when opening the consent page.
type ConsentView struct {
	Payload auth.ConsentTokenPayload
	Entry   *domain.Entry
	Consent *domain.Consent
	Links   auth.ConsentLinks
}

// Inspect verifies token and loads the entry it refers to. Token failures are returned
// as *auth.ConsentTokenError.
func (s *ConsentService) Inspect(ctx context.Context, token string) (*ConsentView, error) {
	payload, err := s.codec.Verify(token)
	if err != nil {
		return nil, err
	}
	view := &ConsentView{Payload: payload, Links: auth.BuildConsentLinks(s.cfg.App.PublicBaseURL, token)}

	entry, err := s.entries.GetByID(ctx, payload.EntryID)
	switch {
	case err == nil:
		view.Entry = entry
	case !repository.IsNotFound(err):
		return nil, err
	}
	consent, err := s.consents.GetByEntryID(ctx, payload.EntryID)
	switch {
	case err == nil:
		view.Consent = consent
	case !repository.IsNotFound(err):
		return nil, err
	}
	return view, nil
}

// DecisionResult is a recorded decision.
type DecisionResult struct {
	EntryID   string
	To        string
	Granted   bool
	Scope     string
	Evidence  string
	DecidedAt time.Time
}

// Decide verifies token and records the creator's decision. channel names where the
// decision came from, e.g. "web", and is stored as "<channel>:approve" or
// "<channel>:decline". The same token may decide again until it expires; the latest
// decision wins. A receipt is sent to the token's recipient without affecting the
// outcome. Token failures are returned as *auth.ConsentTokenError and leave storage
// untouched.
func (s *ConsentService) Decide(ctx context.Context, token string, granted bool, channel string) (*DecisionResult, error) {
	payload, err := s.codec.Verify(token)
	if err != nil {
		return nil, err
	}

	action := "decline"
	if granted {
		action = "approve"
	}
	if channel == "" {
		channel = "web"
	}
	decision := domain.ConsentDecision{
		Granted:   granted,
		Scope:     payload.ScopeOrDefault(),
		Evidence:  channel + ":" + action,
		DecidedAt: s.now().UTC(),
	}

	if err := s.entries.Upsert(ctx, &domain.Entry{ID: payload.EntryID}); err != nil {
		return nil, err
	}
	if err := s.consents.RecordDecision(ctx, payload.EntryID, decision); err != nil {
		return nil, err
	}

	s.logger.Info("consent decision recorded",
		zap.String("entry_id", payload.EntryID),
		zap.Bool("granted", granted),
		zap.String("evidence", decision.Evidence))

	s.publish(ctx, events.New(events.EventConsentDecided, payload.EntryID, events.Actor{Email: payload.To}, events.ConsentDecidedPayload{
		To:        payload.To,
		Granted:   granted,
		Scope:     decision.Scope,
		Evidence:  decision.Evidence,
		DecidedAt: decision.DecidedAt,
	}))

	return &DecisionResult{
		EntryID:   payload.EntryID,
		To:        payload.To,
		Granted:   granted,
		Scope:     decision.Scope,
		Evidence:  decision.Evidence,
		DecidedAt: decision.DecidedAt,
	}, nil
}

func (s *ConsentService) publish(ctx context.Context, event events.Event) {
	publish(ctx, s.dispatcher, s.logger, event)
}

// publish delivers event and logs a failure. Timeline events never fail the operation
// that produced them.
func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event publish failed",
			zap.String("event_type", string(event.Type)),
			zap.String("entry_id", event.EntryID),
			zap.Error(err))
	}
}

// IsTokenError reports whether err is a consent token verification failure and returns it.
func IsTokenError(err error) (*auth.ConsentTokenError, bool) {
	var tokenErr *auth.ConsentTokenError
	if errors.As(err, &tokenErr) {
		return tokenErr, true
	}
	return nil, false
}

// TokenFailureMessage turns a token failure into a sentence for the creator.
func TokenFailureMessage(err *auth.ConsentTokenError) string {
	switch {
	case errors.Is(err, auth.ErrExpired):
		return "This consent link has expired. Reply to the original email and we will send a new one."
	case errors.Is(err, auth.ErrBadSignature):
		return "This consent link is not valid. Please use the link exactly as it appears in the email."
	default:
		return fmt.Sprintf("This consent link could not be read (%s).", err.Reason)
	}
}
