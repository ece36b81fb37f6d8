package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mycbr/internal/cbr"
	"mycbr/internal/table"
)

func (a *app) schemaCommands() []*cobra.Command {
	return []*cobra.Command{
		{
			Use:   "concepts",
			Short: "List the concepts of the server",
			Args:  cobra.NoArgs,
			RunE:  a.runConcepts,
		},
		{
			Use:   "functions",
			Short: "List the amalgamation functions of the active concept",
			Args:  cobra.NoArgs,
			RunE:  a.runFunctions,
		},
		{
			Use:   "attributes [attribute]",
			Short: "List the attributes of the active concept, or describe one",
			Args:  cobra.MaximumNArgs(1),
			RunE:  a.runAttributes,
		},
		{
			Use:   "similarity-functions [attribute]",
			Short: "List local similarity function IDs per attribute, or those of one attribute",
			Args:  cobra.MaximumNArgs(1),
			RunE:  a.runSimilarityFunctions,
		},
		{
			Use:   "active-attributes",
			Short: "Show the attribute weights of the active amalgamation function",
			Args:  cobra.NoArgs,
			RunE:  a.runActiveAttributes,
		},
		{
			Use:   "active-similarity-functions",
			Short: "Show the local similarity function each attribute uses in the active amalgamation function",
			Args:  cobra.NoArgs,
			RunE:  a.runActiveSimilarityFunctions,
		},
		{
			Use:   "columns",
			Short: "Show the result column names of the active concept",
			Args:  cobra.NoArgs,
			RunE:  a.runColumns,
		},
		{
			Use:   "schema",
			Short: "Summarise the attributes and amalgamation functions of every concept",
			Args:  cobra.NoArgs,
			RunE:  a.runSchema,
		},
	}
}

func (a *app) runConcepts(cmd *cobra.Command, _ []string) error {
	c, err := a.cbrClient(cmd.Context())
	if err != nil {
		return err
	}
	ids, err := c.Concepts().List(cmd.Context())
	if err != nil {
		return err
	}
	return a.emitList(cmd, "concept", ids)
}

func (a *app) runFunctions(cmd *cobra.Command, _ []string) error {
	c, err := a.cbrClient(cmd.Context())
	if err != nil {
		return err
	}
	ids, err := c.Concepts().AmalgamationFunctions(cmd.Context())
	if err != nil {
		return err
	}
	return a.emitList(cmd, "amalgamationFunction", ids)
}

func (a *app) runAttributes(cmd *cobra.Command, args []string) error {
	c, err := a.cbrClient(cmd.Context())
	if err != nil {
		return err
	}
	if len(args) == 1 {
		detail, err := c.Concepts().Attribute(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return writeRaw(cmd, detail)
	}
	attrs, err := c.Concepts().Attributes(cmd.Context())
	if err != nil {
		return err
	}
	t := table.NewIndexed(cbr.AttributeIDColumn, "type")
	for _, attr := range attrs {
		if err := t.AppendLabeled(attr.Name, table.V(attr.Type)); err != nil {
			return err
		}
	}
	return a.emit(cmd, t)
}

func (a *app) runSimilarityFunctions(cmd *cobra.Command, args []string) error {
	c, err := a.cbrClient(cmd.Context())
	if err != nil {
		return err
	}
	if len(args) == 1 {
		fns, err := c.Concepts().AttributeSimilarityFunctions(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return writeRaw(cmd, fns)
	}
	t, err := c.Concepts().SimilarityFunctionIDs(cmd.Context())
	if err != nil {
		return err
	}
	return a.emit(cmd, t)
}

func (a *app) runActiveAttributes(cmd *cobra.Command, _ []string) error {
	c, err := a.cbrClient(cmd.Context())
	if err != nil {
		return err
	}
	t, err := c.Concepts().ActiveAttributes(cmd.Context())
	if err != nil {
		return err
	}
	return a.emit(cmd, t)
}

func (a *app) runActiveSimilarityFunctions(cmd *cobra.Command, _ []string) error {
	c, err := a.cbrClient(cmd.Context())
	if err != nil {
		return err
	}
	t, err := c.Concepts().ActiveSimilarityFunctions(cmd.Context())
	if err != nil {
		return err
	}
	return a.emit(cmd, t)
}

func (a *app) runColumns(cmd *cobra.Command, _ []string) error {
	c, err := a.cbrClient(cmd.Context())
	if err != nil {
		return err
	}
	columns, err := c.ColumnNames(cmd.Context())
	if err != nil {
		return err
	}
	return a.emitList(cmd, "column", columns)
}

// conceptSchema is the summary of one concept.
type conceptSchema struct {
	attributes []cbr.Attribute
	functions  []string
}

// runSchema reads every concept in parallel. Each call names its concept
// explicitly so the client defaults are never touched from the workers.
func (a *app) runSchema(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	c, err := a.cbrClient(ctx)
	if err != nil {
		return err
	}
	concepts, err := c.Concepts().List(ctx)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	schemas := make(map[string]*conceptSchema, len(concepts))
	for _, id := range concepts {
		schemas[id] = &conceptSchema{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, id := range concepts {
		g.Go(func() error {
			attrs, err := c.Concepts().Attributes(gctx, cbr.InConcept(id))
			if err != nil {
				return fmt.Errorf("concept %s: %w", id, err)
			}
			mu.Lock()
			schemas[id].attributes = attrs
			mu.Unlock()
			return nil
		})
		g.Go(func() error {
			fns, err := c.Concepts().AmalgamationFunctions(gctx, cbr.InConcept(id))
			if err != nil {
				return fmt.Errorf("concept %s: %w", id, err)
			}
			mu.Lock()
			schemas[id].functions = fns
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	t := table.NewIndexed("concept", "attributes", "amalgamationFunctions")
	for _, id := range concepts {
		s := schemas[id]
		attrs := make([]string, len(s.attributes))
		for i, attr := range s.attributes {
			attrs[i] = attr.Name + ":" + attr.Type
		}
		if err := t.AppendLabeled(id, table.V(strings.Join(attrs, ", ")), table.V(strings.Join(s.functions, ", "))); err != nil {
			return err
		}
	}
	return a.emit(cmd, t)
}

// writeRaw prints a server reply that has no tabular shape as indented JSON.
func writeRaw(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
