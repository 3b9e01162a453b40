package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/crafthaus/methodgraph/internal/model"
)

// NewEdgeCommand creates the "edge" command group: draft edge mutations.
func NewEdgeCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edge",
		Short: "Set or clear relationships in the current draft",
	}
	cmd.AddCommand(newEdgeSetCommand(opts))
	cmd.AddCommand(newEdgeClearCommand(opts))
	return cmd
}

func newEdgeSetCommand(opts *RootOptions) *cobra.Command {
	var attrPairs []string

	cmd := &cobra.Command{
		Use:   "set <methodology-id> <from-node-id> <relationship> <to-node-id>",
		Short: "Set a relationship edge in the current draft",
		Long: "Set a relationship edge. Dependency relationships (has_predecessor,\n" +
			"has_successor) are rejected if they would close a cycle among activities.",
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs, err := parseAttrs(attrPairs)
			if err != nil {
				return err
			}
			env, cleanup, err := openEnv(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			edge, next, err := env.gate.SetEdge(cmd.Context(),
				args[0], args[1], args[3], model.RelationshipType(args[2]), attrs)
			if err != nil {
				return err
			}
			out := struct {
				EdgeID    string `json:"edge_id"`
				VersionID string `json:"version_id"`
				Version   string `json:"version"`
			}{edge.ID, next.ID, next.Number.String()}
			return emit(cmd, opts, out, func(w io.Writer) {
				fprintf(w, "set %s -%s-> %s; draft is now %s\n",
					edge.FromNodeID, edge.RelationshipType, edge.ToNodeID, next.Number)
			})
		},
	}

	cmd.Flags().StringArrayVar(&attrPairs, "attr", nil, "edge attribute as key=value (repeatable)")
	return cmd
}

func newEdgeClearCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <methodology-id> <from-node-id> <relationship> <to-node-id>",
		Short: "Remove a relationship edge from the current draft",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, cleanup, err := openEnv(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			next, err := env.gate.ClearEdge(cmd.Context(),
				args[0], args[1], args[3], model.RelationshipType(args[2]))
			if err != nil {
				return err
			}
			out := struct {
				VersionID string `json:"version_id"`
				Version   string `json:"version"`
			}{next.ID, next.Number.String()}
			return emit(cmd, opts, out, func(w io.Writer) {
				fprintf(w, "cleared %s -%s-> %s; draft is now %s\n",
					args[1], args[2], args[3], next.Number)
			})
		},
	}
}
