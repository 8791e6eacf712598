package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/weaveui/dataset-manager/internal/auth"
)

type signOutput struct {
	Token     string                   `json:"token"`
	Payload   auth.ConsentTokenPayload `json:"payload"`
	Links     auth.ConsentLinks        `json:"links"`
	ExpiresAt time.Time                `json:"expires_at"`
}

// NewTokenCmd creates the token command group.
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign and verify consent tokens",
	}
	cmd.AddCommand(newTokenSignCmd(), newTokenVerifyCmd())
	return cmd
}

func newTokenSignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign <entry-id> <email>",
		Short: "Sign a consent token",
		Long: `Sign a consent token for an entry and recipient and print it with its links.

Examples:
  consentctl token sign 001 creator@example.com
  consentctl token sign 001 creator@example.com --scope selected_shots --ttl 72h`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, _ := cmd.Flags().GetString("scope")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			codec, err := auth.NewConsentCodec(cfg.Consent)
			if err != nil {
				return err
			}
			if scope == "" {
				scope = cfg.Consent.DefaultScope
			}
			if ttl <= 0 {
				ttl = cfg.Consent.TokenTTL
			}

			payload := auth.NewConsentTokenPayload(args[0], args[1], scope, time.Now(), ttl)
			token, err := codec.Sign(payload)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), signOutput{
				Token:     token,
				Payload:   payload,
				Links:     auth.BuildConsentLinks(cfg.App.PublicBaseURL, token),
				ExpiresAt: payload.ExpiresAtTime().UTC(),
			})
		},
	}
	cmd.Flags().String("scope", "", "grant extent recorded in the token")
	cmd.Flags().Duration("ttl", 0, "token lifetime (defaults to CONSENT_TOKEN_TTL)")
	return cmd
}

func newTokenVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <token>",
		Short: "Verify a consent token and print its payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			codec, err := auth.NewConsentCodec(cfg.Consent)
			if err != nil {
				return err
			}
			payload, err := codec.Verify(args[0])
			if err != nil {
				return fmt.Errorf("token rejected: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), payload)
		},
	}
}

// NewLinksCmd creates the links command.
func NewLinksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "links <token>",
		Short: "Print the consent page, approve and decline URLs for a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), auth.BuildConsentLinks(cfg.App.PublicBaseURL, args[0]))
		},
	}
}
