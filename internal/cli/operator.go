package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/weaveui/dataset-manager/internal/auth"
	"github.com/weaveui/dataset-manager/internal/service"
)

// NewOperatorTokenCmd creates the operator-token command. The token authenticates
// scripted calls to the dashboard and discovery routes.
func NewOperatorTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "operator-token",
		Short: "Mint a bearer token for the dashboard API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
			result, err := service.NewAuthService(cfg.Auth, tokens).IssueCLIToken()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"token":      result.Token,
				"operator":   result.Operator.Email,
				"expires_at": result.ExpiresAt.UTC().Format(time.RFC3339),
			})
		},
	}
}
