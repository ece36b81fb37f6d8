package main

import (
	"context"

	"github.com/spf13/cobra"

	"mycbr/internal/cbr"
	"mycbr/internal/table"
)

// tableCmd builds a leaf command whose result is a single table.
func (a *app) tableCmd(use, short string, args cobra.PositionalArgs, run func(ctx context.Context, c *cbr.Client, args []string, opts []cbr.CallOption) (*table.Table, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.cbrClient(cmd.Context())
			if err != nil {
				return err
			}
			t, err := run(cmd.Context(), c, args, a.callOptions())
			if err != nil {
				return err
			}
			return a.emit(cmd, t)
		},
	}
}

func (a *app) retrieveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retrieve",
		Short: "Retrieve similar cases from the active casebase",
	}
	cmd.AddCommand(
		a.tableCmd("by-case <case-id>", "Rank the cases of the casebase by similarity to a case", cobra.ExactArgs(1),
			func(ctx context.Context, c *cbr.Client, args []string, opts []cbr.CallOption) (*table.Table, error) {
				return c.Retrieval().ByCaseID(ctx, args[0], opts...)
			}),
		a.tableCmd("with-content <case-id>", "Like by-case, with the attribute values of every case", cobra.ExactArgs(1),
			func(ctx context.Context, c *cbr.Client, args []string, opts []cbr.CallOption) (*table.Table, error) {
				return c.Retrieval().ByCaseIDWithContent(ctx, args[0], opts...)
			}),
		a.tableCmd("by-cases <case-id>...", "Compare several query cases with the casebase, one column per query case", cobra.MinimumNArgs(1),
			func(ctx context.Context, c *cbr.Client, args []string, opts []cbr.CallOption) (*table.Table, error) {
				return c.Retrieval().ByMultipleCaseIDs(ctx, args, opts...)
			}),
		a.tableCmd("by-attribute <attribute> <value>", "Rank the cases by similarity to a single symbol attribute value", cobra.ExactArgs(2),
			func(ctx context.Context, c *cbr.Client, args []string, opts []cbr.CallOption) (*table.Table, error) {
				return c.Retrieval().ByAttribute(ctx, args[0], args[1], opts...)
			}),
	)
	return cmd
}

func (a *app) ephemeralCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ephemeral",
		Short: "Retrieve against an ad hoc set of cases instead of a whole casebase",
		Long: `Ephemeral commands take the case IDs to compare against on the command
line. Unless -k is given, every ephemeral case is returned.`,
	}

	var queryIDs []string
	byCases := a.tableCmd("by-cases <ephemeral-case-id>...", "Compare query cases with the ephemeral cases", cobra.MinimumNArgs(1),
		func(ctx context.Context, c *cbr.Client, args []string, opts []cbr.CallOption) (*table.Table, error) {
			return c.Ephemeral().RetrieveByCaseIDs(ctx, queryIDs, args, opts...)
		})
	byCases.Flags().StringSliceVarP(&queryIDs, "query", "q", nil, "query case IDs (comma-separated or repeated)")
	_ = byCases.MarkFlagRequired("query")

	cmd.AddCommand(
		a.tableCmd("retrieve <case-id> <ephemeral-case-id>...", "Rank the ephemeral cases by similarity to a case, with content", cobra.MinimumNArgs(2),
			func(ctx context.Context, c *cbr.Client, args []string, opts []cbr.CallOption) (*table.Table, error) {
				return c.Ephemeral().RetrieveWithContent(ctx, args[0], args[1:], opts...)
			}),
		byCases,
		a.tableCmd("self-similarity <ephemeral-case-id>...", "Compute the similarity matrix of the ephemeral cases", cobra.MinimumNArgs(1),
			func(ctx context.Context, c *cbr.Client, args []string, opts []cbr.CallOption) (*table.Table, error) {
				return c.Ephemeral().SelfSimilarity(ctx, args, opts...)
			}),
	)
	return cmd
}

func (a *app) compareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Explain similarity values attribute by attribute",
	}
	cmd.AddCommand(
		a.tableCmd("two <case-id> <case-id>", "Compare two cases attribute by attribute", cobra.ExactArgs(2),
			func(ctx context.Context, c *cbr.Client, args []string, opts []cbr.CallOption) (*table.Table, error) {
				return c.Analytics().CompareTwoCases(ctx, args[0], args[1], opts...)
			}),
		a.tableCmd("local <case-id> <case-id>", "Local similarity of two cases per attribute", cobra.ExactArgs(2),
			func(ctx context.Context, c *cbr.Client, args []string, opts []cbr.CallOption) (*table.Table, error) {
				return c.Analytics().LocalSimilarityOfTwoCases(ctx, args[0], args[1], opts...)
			}),
		a.tableCmd("global <case-id> <case-id>", "Global similarity of two cases", cobra.ExactArgs(2),
			func(ctx context.Context, c *cbr.Client, args []string, opts []cbr.CallOption) (*table.Table, error) {
				return c.Analytics().GlobalSimilarityOfTwoCases(ctx, args[0], args[1], opts...)
			}),
		a.tableCmd("ephemeral-local <case-id> <ephemeral-case-id>...", "Local similarities of a case with each ephemeral case", cobra.MinimumNArgs(2),
			func(ctx context.Context, c *cbr.Client, args []string, opts []cbr.CallOption) (*table.Table, error) {
				return c.Analytics().EphemeralLocalSimilarity(ctx, args[0], args[1:], opts...)
			}),
		a.tableCmd("ephemeral-global <case-id> <ephemeral-case-id>...", "Global similarity of a case with each ephemeral case", cobra.MinimumNArgs(2),
			func(ctx context.Context, c *cbr.Client, args []string, opts []cbr.CallOption) (*table.Table, error) {
				return c.Analytics().EphemeralGlobalSimilarity(ctx, args[0], args[1:], opts...)
			}),
		a.tableCmd("local-all <case-id>", "Local similarities of a case with every case of the casebase", cobra.ExactArgs(1),
			func(ctx context.Context, c *cbr.Client, args []string, opts []cbr.CallOption) (*table.Table, error) {
				return c.Analytics().LocalSimilarityWithAllCases(ctx, args[0], opts...)
			}),
		a.tableCmd("global-all <case-id>", "Global similarity of a case with every case of the casebase", cobra.ExactArgs(1),
			func(ctx context.Context, c *cbr.Client, args []string, opts []cbr.CallOption) (*table.Table, error) {
				return c.Analytics().GlobalSimilarityWithAllCases(ctx, args[0], opts...)
			}),
	)
	return cmd
}
