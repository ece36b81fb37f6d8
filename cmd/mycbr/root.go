package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mycbr/internal/cbr"
	"mycbr/internal/config"
	"mycbr/internal/export"
	"mycbr/internal/format"
	"mycbr/internal/logging"
	"mycbr/internal/metrics"
	"mycbr/internal/table"
)

// globalFlags holds the persistent flags. Only flags the user set override
// the loaded profile.
type globalFlags struct {
	configPath string
	baseURL    string
	concept    string
	casebase   string
	function   string
	precision  int
	k          int
	output     string
	logLevel   string
	logFormat  string
	timeout    time.Duration
	exportPath string
}

// app is the state shared by every command of one invocation.
type app struct {
	flags   globalFlags
	profile *config.Profile
	client  *cbr.Client
	metrics *metrics.Collector
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "mycbr",
		Short: "Client for a myCBR similarity server",
		Long: `mycbr talks to the REST interface of a myCBR case-based reasoning server.
It lists the schema, manages casebases, runs similarity retrieval and
renders the results as tables.

Connection settings come from a YAML profile, MYCBR_* environment
variables and flags, in increasing order of precedence.`,
		SilenceUsage: true,
		Version:      version,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: a.setup,
	}

	f := root.PersistentFlags()
	f.StringVar(&a.flags.configPath, "config", "", "profile file (default $XDG_CONFIG_HOME/mycbr/config.yaml)")
	f.StringVar(&a.flags.baseURL, "base-url", "", "CBR server address")
	f.StringVar(&a.flags.concept, "concept", "", "concept ID (default: first concept the server reports)")
	f.StringVar(&a.flags.casebase, "casebase", "", "casebase ID")
	f.StringVar(&a.flags.function, "function", "", "amalgamation function ID")
	f.IntVar(&a.flags.precision, "precision", cbr.DefaultPrecision, "decimal places of similarity values (negative: unrounded)")
	f.IntVarP(&a.flags.k, "top-k", "k", cbr.AllCases, "number of cases to return (-1: all)")
	f.StringVarP(&a.flags.output, "output", "o", "", "output format: "+strings.Join(config.OutputFormats, ", "))
	f.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&a.flags.logFormat, "log-format", "", "log format: text, json")
	f.DurationVar(&a.flags.timeout, "timeout", 0, "HTTP timeout per request")
	f.StringVar(&a.flags.exportPath, "export", "", "also write table results to a .json, .csv or .db file")

	root.AddCommand(a.schemaCommands()...)
	root.AddCommand(a.casesCmd(), a.casebaseCmd())
	root.AddCommand(a.retrieveCmd(), a.ephemeralCmd(), a.compareCmd())
	root.AddCommand(a.mcpCmd(), a.configCmd())
	return root
}

// setup loads the profile and configures logging before any command runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := a.loadProfile(cmd); err != nil {
		return err
	}
	level, err := logging.ParseLevel(a.profile.Log.Level)
	if err != nil {
		return err
	}
	logging.Init(level, a.profile.Log.Format, cmd.ErrOrStderr())
	return nil
}

// loadProfile reads the profile and overlays the flags the user set.
func (a *app) loadProfile(cmd *cobra.Command) error {
	p, err := config.Load(a.flags.configPath)
	if err != nil {
		return err
	}
	a.applyFlags(cmd, p)
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	a.profile = p
	return nil
}

func (a *app) applyFlags(cmd *cobra.Command, p *config.Profile) {
	changed := cmd.Flags().Changed
	if changed("base-url") {
		p.BaseURL = a.flags.baseURL
	}
	if changed("concept") {
		p.Concept = a.flags.concept
	}
	if changed("casebase") {
		p.Casebase = a.flags.casebase
	}
	if changed("function") {
		p.Function = a.flags.function
	}
	if changed("precision") {
		p.Precision = a.flags.precision
	}
	if changed("top-k") {
		p.K = a.flags.k
	}
	if changed("output") {
		p.Output = a.flags.output
	}
	if changed("log-level") {
		p.Log.Level = a.flags.logLevel
	}
	if changed("log-format") {
		p.Log.Format = a.flags.logFormat
	}
	if changed("timeout") {
		p.Timeout = a.flags.timeout
	}
}

// cbrClient connects to the server on first use.
func (a *app) cbrClient(ctx context.Context) (*cbr.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	d := cbr.NewDefaults()
	d.SetConcept(a.profile.Concept)
	d.SetCasebase(a.profile.Casebase)
	d.SetFunction(a.profile.Function)

	opts := []cbr.Option{
		cbr.WithDefaults(d),
		cbr.WithTimeout(a.profile.Timeout),
		cbr.WithLogger(logging.New("cbr")),
	}
	if a.metrics != nil {
		opts = append(opts, cbr.WithMetrics(a.metrics))
	}
	c, err := cbr.New(ctx, a.profile.BaseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", a.profile.BaseURL, err)
	}
	a.client = c
	return c, nil
}

// callOptions turns the profile's k and precision into call options.
// k is left unset when it means "all" so ephemeral calls keep their own default.
func (a *app) callOptions() []cbr.CallOption {
	opts := []cbr.CallOption{cbr.Precision(a.profile.Precision)}
	if a.profile.K != cbr.AllCases {
		opts = append(opts, cbr.TopK(a.profile.K))
	}
	return opts
}

// emit writes t in the configured output format and, with --export, to a file.
func (a *app) emit(cmd *cobra.Command, t *table.Table) error {
	if a.flags.exportPath != "" {
		if err := export.ToFile(cmd.Context(), a.flags.exportPath, tableName(cmd), t); err != nil {
			return err
		}
		logging.New("cli").Info("exported result", "path", a.flags.exportPath, "rows", t.Len())
	}
	return writeTable(cmd.OutOrStdout(), t, a.profile.Output)
}

// emitList shows a list of identifiers as a one-column table.
func (a *app) emitList(cmd *cobra.Command, column string, ids []string) error {
	t := table.New(column)
	for _, id := range ids {
		if err := t.Append(table.V(id)); err != nil {
			return err
		}
	}
	return a.emit(cmd, t)
}

func writeTable(w io.Writer, t *table.Table, output string) error {
	switch output {
	case "json":
		return export.WriteJSON(w, t)
	case "csv":
		return export.WriteCSV(w, t)
	}
	mode, err := format.ParseMode(output)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, format.RenderTable(t, mode))
	return err
}

// tableName derives an export table name from the command path,
// e.g. "mycbr retrieve by-case" -> "retrieve_by_case".
func tableName(cmd *cobra.Command) string {
	path := strings.Fields(cmd.CommandPath())
	if len(path) > 1 {
		path = path[1:]
	}
	return strings.ReplaceAll(strings.Join(path, "_"), "-", "_")
}
