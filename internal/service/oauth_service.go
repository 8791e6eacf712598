package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/weaveui/dataset-manager/internal/config"
	"github.com/weaveui/dataset-manager/internal/repository"
	apperrors "github.com/weaveui/dataset-manager/pkg/util"
)

const oauthStateTTL = 10 * time.Minute

// AccessTokenSource yields the token used for design platform API calls.
type AccessTokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// OAuthResult describes a completed authorization.
type OAuthResult struct {
	TokenType string
	Scope     string
	ExpiresAt *time.Time
}

// OAuthService runs the authorization code flow against the design platform.
type OAuthService struct {
	conf     *oauth2.Config
	states   repository.OAuthStateRepository
	fallback string
	logger   *zap.Logger
}

// NewOAuthService builds the service.
func NewOAuthService(cfg config.DribbbleConfig, states repository.OAuthStateRepository, logger *zap.Logger) *OAuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuthService{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"public"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		states:   states,
		fallback: cfg.AccessToken,
		logger:   logger,
	}
}

// Start returns the authorize URL carrying a fresh state that the callback must present.
func (s *OAuthService) Start(ctx context.Context) (string, error) {
	if s.conf.ClientID == "" || s.conf.RedirectURL == "" {
		return "", apperrors.NewPrecondition("OAUTH_NOT_CONFIGURED", "DRIBBBLE_CLIENT_ID and DRIBBBLE_REDIRECT_URI are required")
	}
	state, err := newState()
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	if err := s.states.SaveState(ctx, state, oauthStateTTL); err != nil {
		return "", apperrors.NewInternalError(fmt.Errorf("save oauth state: %w", err))
	}
	return s.conf.AuthCodeURL(state), nil
}

// Callback consumes state, exchanges code for an access token and keeps the token for
// later API calls.
func (s *OAuthService) Callback(ctx context.Context, code, state string) (*OAuthResult, error) {
	if code == "" || state == "" {
		return nil, apperrors.NewValidationError("code and state are required", nil)
	}
	ok, err := s.states.ConsumeState(ctx, state)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("consume oauth state: %w", err))
	}
	if !ok {
		return nil, apperrors.NewValidationError("unknown or expired state", nil)
	}

	token, err := s.conf.Exchange(ctx, code)
	if err != nil {
		return nil, apperrors.NewUpstreamError("token exchange failed", err)
	}

	var ttl time.Duration
	result := &OAuthResult{TokenType: token.Type()}
	if scope, ok := token.Extra("scope").(string); ok {
		result.Scope = scope
	}
	if !token.Expiry.IsZero() {
		expiresAt := token.Expiry
		result.ExpiresAt = &expiresAt
		ttl = time.Until(expiresAt)
	}
	if err := s.states.SaveAccessToken(ctx, token.AccessToken, ttl); err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("save access token: %w", err))
	}
	s.logger.Info("oauth authorization completed", zap.String("scope", result.Scope))
	return result, nil
}

// AccessToken returns the token from the last authorization, falling back to the
// configured one.
func (s *OAuthService) AccessToken(ctx context.Context) (string, error) {
	token, err := s.states.AccessToken(ctx)
	if err != nil {
		s.logger.Warn("stored access token unavailable", zap.Error(err))
	}
	if token != "" {
		return token, nil
	}
	return s.fallback, nil
}

func newState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
