package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// NewListCommand creates the "list" command: list methodologies, or the
// version lineage of one.
func NewListCommand(opts *RootOptions) *cobra.Command {
	var versions bool

	cmd := &cobra.Command{
		Use:   "list [methodology-id]",
		Short: "List methodologies, or a methodology's versions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, cleanup, err := openEnv(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			if len(args) == 1 && versions {
				return listVersions(cmd, opts, env, args[0])
			}
			if len(args) == 1 {
				return listProposals(cmd, opts, env, args[0])
			}

			methodologies, err := env.store.ListMethodologies(cmd.Context())
			if err != nil {
				return err
			}
			return emit(cmd, opts, methodologies, func(w io.Writer) {
				tw := table(w)
				fprintf(tw, "ID\tNAME\tCATEGORY\tACCESS\tCURRENT VERSION\n")
				for _, m := range methodologies {
					fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
						m.ID, m.Name, m.Category, m.AccessTier, m.CurrentVersionID)
				}
				tw.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&versions, "versions", false, "list the methodology's version lineage instead of its proposals")
	return cmd
}

func listVersions(cmd *cobra.Command, opts *RootOptions, env *env, methodologyID string) error {
	lineage, err := env.store.ListVersions(cmd.Context(), methodologyID)
	if err != nil {
		return err
	}
	return emit(cmd, opts, lineage, func(w io.Writer) {
		tw := table(w)
		fprintf(tw, "VERSION\tID\tPARENT\tPROPOSAL\tDESCRIPTION\n")
		for _, v := range lineage {
			fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				v.Number, v.ID, v.ParentVersionID, v.CreatedFromProposalID, v.Description)
		}
		tw.Flush()
	})
}

func listProposals(cmd *cobra.Command, opts *RootOptions, env *env, methodologyID string) error {
	proposals, err := env.store.ListProposals(cmd.Context(), methodologyID)
	if err != nil {
		return err
	}
	return emit(cmd, opts, proposals, func(w io.Writer) {
		tw := table(w)
		fprintf(tw, "ID\tSTATUS\tCHANGE\tTARGET VERSION\tRATIONALE\n")
		for _, p := range proposals {
			fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				p.ID, p.Status, p.ChangeKind, p.VersionID, p.Rationale)
		}
		tw.Flush()
	})
}
