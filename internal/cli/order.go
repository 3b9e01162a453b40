package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/crafthaus/methodgraph/internal/depgraph"
)

// NewOrderCommand creates the "order" command: topologically order a
// workflow's activities by their dependencies.
func NewOrderCommand(opts *RootOptions) *cobra.Command {
	var versionID string

	cmd := &cobra.Command{
		Use:   "order <methodology-id> <workflow-node-id>",
		Short: "Print a workflow's activities in dependency order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, cleanup, err := openEnv(opts)
			if err != nil {
				return err
			}
			defer cleanup()
			ctx := cmd.Context()

			vid := versionID
			if vid == "" {
				methodology, err := env.store.GetMethodology(ctx, args[0])
				if err != nil {
					return err
				}
				vid = methodology.CurrentVersionID
			}

			order, err := depgraph.TopologicalOrder(depgraph.FromReader(ctx, env.store), vid, args[1])
			if err != nil {
				return err
			}
			return emit(cmd, opts, order, func(w io.Writer) {
				for i, id := range order {
					fprintf(w, "%d. %s\n", i+1, id)
				}
			})
		},
	}

	cmd.Flags().StringVar(&versionID, "version", "", "version id (defaults to the current version)")
	return cmd
}
