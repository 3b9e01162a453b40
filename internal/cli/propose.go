package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/crafthaus/methodgraph/internal/model"
	"github.com/crafthaus/methodgraph/internal/proposal"
)

// NewProposeCommand creates the "propose" command: open a change proposal
// against a released version.
func NewProposeCommand(opts *RootOptions) *cobra.Command {
	var (
		versionID      string
		changeKind     string
		entityType     string
		targetNodeID   string
		attrPairs      []string
		rationale      string
		trigger        string
		triggerContext string
	)

	cmd := &cobra.Command{
		Use:   "propose <methodology-id>",
		Short: "Open a change proposal against a released version",
		Args:  cobra.ExactArgs(1),
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
			ctx := cmd.Context()

			vid := versionID
			if vid == "" {
				methodology, err := env.store.GetMethodology(ctx, args[0])
				if err != nil {
					return err
				}
				vid = methodology.CurrentVersionID
			}

			p, err := env.proposals.Create(ctx, proposal.CreateParams{
				MethodologyID:  args[0],
				VersionID:      vid,
				TriggerKind:    model.TriggerKind(trigger),
				TriggerContext: triggerContext,
				ChangeKind:     model.ChangeKind(changeKind),
				TargetNodeID:   targetNodeID,
				Change: model.ProposedChange{
					EntityType: model.EntityType(entityType),
					Attrs:      attrs,
				},
				Rationale: rationale,
			})
			if err != nil {
				return err
			}
			out := struct {
				ProposalID string `json:"proposal_id"`
				Status     string `json:"status"`
			}{p.ID, string(p.Status)}
			return emit(cmd, opts, out, func(w io.Writer) {
				fprintf(w, "opened proposal %s (%s %s)\n", p.ID, p.ChangeKind, p.Status)
			})
		},
	}

	cmd.Flags().StringVar(&versionID, "version", "", "released version id (defaults to the current version)")
	cmd.Flags().StringVar(&changeKind, "change", "", "change kind (add|modify|delete)")
	cmd.Flags().StringVar(&entityType, "entity-type", "", "entity type for add changes")
	cmd.Flags().StringVar(&targetNodeID, "node", "", "target node id for modify and delete changes")
	cmd.Flags().StringArrayVar(&attrPairs, "attr", nil, "proposed attribute as key=value (repeatable)")
	cmd.Flags().StringVar(&rationale, "rationale", "", "why this change should happen")
	cmd.Flags().StringVar(&trigger, "trigger", string(model.TriggerManual), "trigger kind (manual|automated-suggestion)")
	cmd.Flags().StringVar(&triggerContext, "trigger-context", "", "opaque context from the triggering system")
	cmd.MarkFlagRequired("change")
	cmd.MarkFlagRequired("rationale")
	return cmd
}
