package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/crafthaus/methodgraph/internal/proposal"
)

// NewReviewCommand creates the "review" command: decide a pending proposal.
func NewReviewCommand(opts *RootOptions) *cobra.Command {
	var (
		reviewer string
		notes    string
	)

	cmd := &cobra.Command{
		Use:   "review <proposal-id> <approve|reject>",
		Short: "Approve or reject a pending proposal",
		Long: "Decide a pending proposal. Approval creates a new version from the\n" +
			"proposal's change in the same transaction; rejection records the review\n" +
			"and creates nothing. Decisions are final.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, cleanup, err := openEnv(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			decided, created, err := env.proposals.Decide(
				cmd.Context(), args[0], proposal.Decision(args[1]), reviewer, notes)
			if err != nil {
				return err
			}
			out := struct {
				ProposalID string `json:"proposal_id"`
				Status     string `json:"status"`
				VersionID  string `json:"version_id,omitempty"`
				Version    string `json:"version,omitempty"`
			}{decided.ID, string(decided.Status), created.ID, ""}
			if created.ID != "" {
				out.Version = created.Number.String()
			}
			return emit(cmd, opts, out, func(w io.Writer) {
				if created.ID != "" {
					fprintf(w, "proposal %s approved; created version %s (%s)\n",
						decided.ID, created.Number, created.ID)
					return
				}
				fprintf(w, "proposal %s %s\n", decided.ID, decided.Status)
			})
		},
	}

	cmd.Flags().StringVar(&reviewer, "reviewer", "", "reviewer identity")
	cmd.Flags().StringVar(&notes, "notes", "", "review notes")
	cmd.MarkFlagRequired("reviewer")
	return cmd
}
