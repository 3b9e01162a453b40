package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// NewReleaseCommand creates the "release" command: promote the current draft
// to released status.
func NewReleaseCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "release <methodology-id>",
		Short: "Promote the current draft to 1.0",
		Long: "Promote the methodology's current draft to released status. Released\n" +
			"versions are immutable; further changes go through proposals.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, cleanup, err := openEnv(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			released, err := env.versions.Release(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := struct {
				VersionID string `json:"version_id"`
				Version   string `json:"version"`
			}{released.ID, released.Number.String()}
			return emit(cmd, opts, out, func(w io.Writer) {
				fprintf(w, "released version %s (%s)\n", released.Number, released.ID)
			})
		},
	}
}
