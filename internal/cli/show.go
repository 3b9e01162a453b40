package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/crafthaus/methodgraph/internal/model"
)

// NewShowCommand creates the "show" command: dump a methodology's current
// version, or a specific version by id.
func NewShowCommand(opts *RootOptions) *cobra.Command {
	var versionID string

	cmd := &cobra.Command{
		Use:   "show <methodology-id>",
		Short: "Show a version's nodes and edges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, cleanup, err := openEnv(opts)
			if err != nil {
				return err
			}
			defer cleanup()
			ctx := cmd.Context()

			methodology, err := env.store.GetMethodology(ctx, args[0])
			if err != nil {
				return err
			}
			vid := versionID
			if vid == "" {
				vid = methodology.CurrentVersionID
			}
			v, err := env.store.GetVersion(ctx, vid)
			if err != nil {
				return err
			}
			nodes, err := env.store.ListNodes(ctx, vid)
			if err != nil {
				return err
			}
			edges, err := env.store.ListEdges(ctx, vid)
			if err != nil {
				return err
			}

			out := struct {
				Methodology model.Methodology `json:"methodology"`
				Version     model.Version     `json:"version"`
				Nodes       []model.Node      `json:"nodes"`
				Edges       []model.Edge      `json:"edges"`
			}{methodology, v, nodes, edges}
			return emit(cmd, opts, out, func(w io.Writer) {
				fprintf(w, "%s version %s (%s)\n", methodology.Name, v.Number, v.ID)
				tw := table(w)
				fprintf(tw, "NODE\tTYPE\tATTRS\n")
				for _, n := range nodes {
					fprintf(tw, "%s\t%s\t%v\n", n.ID, n.EntityType, n.Attrs)
				}
				tw.Flush()
				tw = table(w)
				fprintf(tw, "EDGE\tFROM\tREL\tTO\n")
				for _, e := range edges {
					fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.FromNodeID, e.RelationshipType, e.ToNodeID)
				}
				tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&versionID, "version", "", "version id (defaults to the current version)")
	return cmd
}
