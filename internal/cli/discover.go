package cli

import (
	"github.com/spf13/cobra"

	"github.com/weaveui/dataset-manager/internal/service"
)

// NewDiscoverCmd creates the discover command group.
func NewDiscoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find creators to contact",
	}
	cmd.AddCommand(newDiscoverTagsCmd(), newDiscoverShotsCmd())
	return cmd
}

func newDiscoverTagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags <tag>...",
		Short: "Sweep the shot feed for recent shots carrying any of the tags",
		Long: `Walk the paginated shot feed, keep shots tagged with any of the given tags
that were published within the window, and print one candidate per creator.

Examples:
  consentctl discover tags ui dashboard
  consentctl discover tags mobile --days 3 --max-pages 5 --send`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			perPage, _ := cmd.Flags().GetInt("per-page")
			maxPages, _ := cmd.Flags().GetInt("max-pages")
			send, _ := cmd.Flags().GetBool("send")

			in := service.TagSweepInput{Tags: args, PerPage: perPage, MaxPages: maxPages, Send: send}
			if cmd.Flags().Changed("days") {
				days, _ := cmd.Flags().GetFloat64("days")
				in.Days = &days
			}

			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.Discovery.Tags(cmd.Context(), in)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().Float64("days", 0, "recency window in days (defaults to DISCOVERY_DEFAULT_DAYS)")
	cmd.Flags().Int("per-page", 0, "items per feed page")
	cmd.Flags().Int("max-pages", 0, "maximum feed pages to fetch")
	cmd.Flags().Bool("send", false, "write an outreach letter for every candidate")
	return cmd
}

func newDiscoverShotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shots <url-or-id>...",
		Short: "Resolve individual shots to one candidate per creator",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			send, _ := cmd.Flags().GetBool("send")

			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.Discovery.Shots(cmd.Context(), args, send)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().Bool("send", false, "write an outreach letter for every candidate")
	return cmd
}
