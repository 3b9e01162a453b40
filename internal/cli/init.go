package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// NewInitCommand creates the "init" command: create a methodology with its
// initial draft version.
func NewInitCommand(opts *RootOptions) *cobra.Command {
	var (
		category    string
		accessTier  string
		description string
	)

	cmd := &cobra.Command{
		Use:   "init <name>",
		Short: "Create a methodology with its 0.1 draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, cleanup, err := openEnv(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			methodology, initial, err := env.gate.CreateMethodology(
				cmd.Context(), args[0], category, accessTier, description)
			if err != nil {
				return err
			}

			out := struct {
				MethodologyID string `json:"methodology_id"`
				VersionID     string `json:"version_id"`
				Version       string `json:"version"`
			}{methodology.ID, initial.ID, initial.Number.String()}
			return emit(cmd, opts, out, func(w io.Writer) {
				fprintf(w, "created methodology %s (%s) at version %s\n",
					methodology.Name, methodology.ID, initial.Number)
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "methodology category")
	cmd.Flags().StringVar(&accessTier, "access", "private", "access tier (private|public)")
	cmd.Flags().StringVar(&description, "description", "", "initial version description")
	return cmd
}
