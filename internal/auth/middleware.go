package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/weaveui/dataset-manager/internal/domain"
	apperrors "github.com/weaveui/dataset-manager/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	SubjectType domain.SubjectType
	Operator    *domain.Operator
	TokenID     string
}

// AuthMiddleware validates operator bearer tokens.
type AuthMiddleware struct {
	tokens        *TokenManager
	operatorEmail string
}

// NewAuthMiddleware constructs middleware. Tokens for a subject other than the
// configured operator are rejected, so rotating OPERATOR_EMAIL revokes old tokens.
func NewAuthMiddleware(tokens *TokenManager, operatorEmail string) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, operatorEmail: strings.ToLower(strings.TrimSpace(operatorEmail))}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	principal := &Principal{SubjectType: claims.Subject, TokenID: claims.ID}

	switch claims.Subject {
	case domain.SubjectTypeOperator, domain.SubjectTypeCLI:
		if m.operatorEmail == "" || !strings.EqualFold(claims.SubjectID, m.operatorEmail) {
			return apperrors.NewUnauthorized("operator not recognized")
		}
		principal.Operator = &domain.Operator{Email: m.operatorEmail}
	default:
		return apperrors.NewUnauthorized("unknown subject")
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
