package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/crafthaus/methodgraph/internal/model"
)

// NewNodeCommand creates the "node" command group: draft node mutations.
func NewNodeCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Add, update, or remove nodes in the current draft",
	}
	cmd.AddCommand(newNodeAddCommand(opts))
	cmd.AddCommand(newNodeUpdateCommand(opts))
	cmd.AddCommand(newNodeRemoveCommand(opts))
	return cmd
}

func newNodeAddCommand(opts *RootOptions) *cobra.Command {
	var attrPairs []string

	cmd := &cobra.Command{
		Use:   "add <methodology-id> <entity-type>",
		Short: "Add a node to the current draft",
		Args:  cobra.ExactArgs(2),
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

			node, next, err := env.gate.CreateNode(
				cmd.Context(), args[0], model.EntityType(args[1]), attrs)
			if err != nil {
				return err
			}
			return emitNodeResult(cmd, opts, node, next, "added")
		},
	}

	cmd.Flags().StringArrayVar(&attrPairs, "attr", nil, "node attribute as key=value (repeatable)")
	return cmd
}

func newNodeUpdateCommand(opts *RootOptions) *cobra.Command {
	var attrPairs []string

	cmd := &cobra.Command{
		Use:   "update <methodology-id> <node-id>",
		Short: "Replace a node's attributes in the current draft",
		Args:  cobra.ExactArgs(2),
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

			node, next, err := env.gate.UpdateNode(cmd.Context(), args[0], args[1], attrs)
			if err != nil {
				return err
			}
			return emitNodeResult(cmd, opts, node, next, "updated")
		},
	}

	cmd.Flags().StringArrayVar(&attrPairs, "attr", nil, "node attribute as key=value (repeatable)")
	return cmd
}

func newNodeRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <methodology-id> <node-id>",
		Short: "Remove a node and its edges from the current draft",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, cleanup, err := openEnv(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			next, err := env.gate.DeleteNode(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			out := struct {
				VersionID string `json:"version_id"`
				Version   string `json:"version"`
			}{next.ID, next.Number.String()}
			return emit(cmd, opts, out, func(w io.Writer) {
				fprintf(w, "removed node %s; draft is now %s\n", args[1], next.Number)
			})
		},
	}
}

func emitNodeResult(cmd *cobra.Command, opts *RootOptions, node model.Node, next model.Version, verb string) error {
	out := struct {
		NodeID    string `json:"node_id"`
		VersionID string `json:"version_id"`
		Version   string `json:"version"`
	}{node.ID, next.ID, next.Number.String()}
	return emit(cmd, opts, out, func(w io.Writer) {
		fprintf(w, "%s %s node %s; draft is now %s\n", verb, node.EntityType, node.ID, next.Number)
	})
}
