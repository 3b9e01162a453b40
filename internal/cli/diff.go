package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/crafthaus/methodgraph/internal/diff"
)

// NewDiffCommand creates the "diff" command: entity-level differences
// between two versions.
func NewDiffCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <version-a-id> <version-b-id>",
		Short: "Show entity-level changes between two versions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, cleanup, err := openEnv(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			changes, err := diff.Diff(cmd.Context(), env.store, args[0], args[1])
			if err != nil {
				return err
			}
			return emit(cmd, opts, changes, func(w io.Writer) {
				if len(changes) == 0 {
					fprintf(w, "no differences\n")
					return
				}
				tw := table(w)
				fprintf(tw, "KIND\tENTITY\tTYPE\tID\n")
				for _, c := range changes {
					fprintf(tw, "%s\t%s\t%s\t%s\n", c.Kind, c.Entity, c.EntityType, c.EntityID)
				}
				tw.Flush()
			})
		},
	}
}
