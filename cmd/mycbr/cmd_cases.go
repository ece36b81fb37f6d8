package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mycbr/internal/format"
	"mycbr/internal/table"
)

func (a *app) casesCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "cases [case-id]",
		Short: "Show the cases of the active casebase, or one case",
		Long: `Without arguments, lists every case of the active casebase with its
attribute values. With a case ID, shows that case only. --all lists the
cases of the active concept across all casebases.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.cbrClient(ctx)
			if err != nil {
				return err
			}
			var t *table.Table
			switch {
			case all:
				t, err = c.Concepts().AllCases(ctx)
			case len(args) == 1:
				t, err = c.Casebases().Case(ctx, args[0])
			default:
				t, err = c.Casebases().Cases(ctx)
			}
			if err != nil {
				return err
			}
			return a.emit(cmd, t)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "list the cases of the concept across all casebases")
	return cmd
}

func (a *app) casebaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "casebase",
		Short: "List, create and delete casebases, or compute their self-similarity",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the casebases of the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.cbrClient(cmd.Context())
			if err != nil {
				return err
			}
			ids, err := c.Casebases().List(cmd.Context())
			if err != nil {
				return err
			}
			return a.emitList(cmd, "casebase", ids)
		},
	}

	add := &cobra.Command{
		Use:   "add <casebase-id>",
		Short: "Create an empty casebase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.cbrClient(cmd.Context())
			if err != nil {
				return err
			}
			ok, err := c.Casebases().Add(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s add casebase %s\n", format.BoolMark(ok), args[0])
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <casebase-id>",
		Short: "Delete a casebase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.cbrClient(cmd.Context())
			if err != nil {
				return err
			}
			ok, err := c.Casebases().Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s delete casebase %s\n", format.BoolMark(ok), args[0])
			return nil
		},
	}

	cmd.AddCommand(list, add, del, a.selfSimilarityCmd())
	return cmd
}

func (a *app) selfSimilarityCmd() *cobra.Command {
	var (
		ordered  bool
		heatmap  bool
		ticks    int
		annotate bool
	)
	cmd := &cobra.Command{
		Use:   "self-similarity",
		Short: "Compute the case-by-case similarity matrix of the active casebase",
		Long: `Compute the similarity of every case of the casebase with every other.
--ordered sorts rows and columns by descending row sum so that clusters of
similar cases gather in the top-left corner. --heatmap draws the matrix as a
coloured grid instead of a table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c, err := a.cbrClient(ctx)
			if err != nil {
				return err
			}
			t, err := c.Casebases().SelfSimilarity(ctx, a.callOptions()...)
			if err != nil {
				return err
			}
			if ordered && !t.Empty() {
				if t, err = t.OrderByRowSum(); err != nil {
					return err
				}
			}
			if !heatmap {
				return a.emit(cmd, t)
			}
			out, err := format.Heatmap(t, format.HeatmapOptions{
				Title:        "self-similarity of " + c.Defaults().Casebase(),
				TickInterval: ticks,
				Annotate:     annotate,
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}
	f := cmd.Flags()
	f.BoolVar(&ordered, "ordered", false, "order rows and columns by descending row sum")
	f.BoolVar(&heatmap, "heatmap", false, "render a coloured heatmap instead of a table")
	f.IntVar(&ticks, "ticks", 1, "label every nth row and column of the heatmap")
	f.BoolVar(&annotate, "annotate", false, "print values inside heatmap cells")
	return cmd
}
