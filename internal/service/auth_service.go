package service

import (
	"context"
	"strings"
	"time"

	"github.com/weaveui/dataset-manager/internal/auth"
	"github.com/weaveui/dataset-manager/internal/config"
	"github.com/weaveui/dataset-manager/internal/domain"
	apperrors "github.com/weaveui/dataset-manager/pkg/util"
)

// LoginResult is an issued operator session.
type LoginResult struct {
	Operator  domain.Operator
	Token     string
	ExpiresAt time.Time
}

// AuthService authenticates the dashboard operator.
type AuthService struct {
	tokenMgr     *auth.TokenManager
	email        string
	passwordHash string
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, tokens *auth.TokenManager) *AuthService {
	return &AuthService{
		tokenMgr:     tokens,
		email:        strings.ToLower(strings.TrimSpace(cfg.OperatorEmail)),
		passwordHash: cfg.OperatorPasswordHash,
	}
}

// LoginOperator checks the operator credentials and returns a bearer token.
func (s *AuthService) LoginOperator(_ context.Context, email, password string) (*LoginResult, error) {
	if s.email == "" || s.passwordHash == "" {
		return nil, apperrors.NewPrecondition("OPERATOR_NOT_CONFIGURED", "operator login is not configured")
	}
	if !strings.EqualFold(strings.TrimSpace(email), s.email) {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if err := auth.ComparePassword(s.passwordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.issue(domain.SubjectTypeOperator)
}

// IssueCLIToken mints a token for scripted access without a password.
func (s *AuthService) IssueCLIToken() (*LoginResult, error) {
	if s.email == "" {
		return nil, apperrors.NewPrecondition("OPERATOR_NOT_CONFIGURED", "OPERATOR_EMAIL is not set")
	}
	return s.issue(domain.SubjectTypeCLI)
}

func (s *AuthService) issue(subject domain.SubjectType) (*LoginResult, error) {
	meta, token, err := s.tokenMgr.GenerateToken(s.email, subject)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{Operator: domain.Operator{Email: s.email}, Token: token, ExpiresAt: meta.ExpiresAt}, nil
}
