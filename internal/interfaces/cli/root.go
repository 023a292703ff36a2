// Package cli implements the kinkeep command line: member and memory
// management, search and timeline views, story import, exports, and a few
// operator commands (events, migrate).
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/turtacn/KinKeep/internal/application/family"
	"github.com/turtacn/KinKeep/internal/bootstrap"
	"github.com/turtacn/KinKeep/internal/config"
	"github.com/turtacn/KinKeep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KinKeep/pkg/client"
	"github.com/turtacn/KinKeep/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type cliContextKey struct{}

// annotationNoService marks commands that do not need the family service.
const annotationNoService = "kinkeep/no-service"

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	NoColor      bool
	Timeout      time.Duration
	ServerAddr   string
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	Service      family.Service
	OutputFormat string
	Verbose      bool
	NoColor      bool
	Timeout      time.Duration

	closer func() error
}

// ServiceOpener builds the family service a command runs against and a
// function that releases it.
type ServiceOpener func(ctx context.Context, opts *RootOptions, cfg *config.Config, logger logging.Logger) (family.Service, func() error, error)

// NewRootCommand creates the root command with all global flags and
// subcommands. A nil opener uses local storage, or the API server when
// --server is set.
func NewRootCommand(opener ServiceOpener) *cobra.Command {
	if opener == nil {
		opener = defaultOpener
	}
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "kinkeep",
		Short: "KinKeep keeps your family tree, stories and memories",
		Long: "KinKeep records the people in a family, how they are related and the\n" +
			"stories and photos that go with them. It can also read a free-text family\n" +
			"story and turn it into members with a language model.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts, opener)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPostRun(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./kinkeep.yaml, ~/.kinkeep/config.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "text", "output format (text, json, table)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable verbose output")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.DurationVar(&opts.Timeout, "timeout", 60*time.Second, "global operation timeout")
	pf.StringVar(&opts.ServerAddr, "server", "", "talk to a KinKeep API server instead of local storage (e.g. http://localhost:8080)")

	cmd.AddCommand(
		NewMemberCmd(),
		NewMemoryCmd(),
		NewSearchCmd(),
		NewTimelineCmd(),
		NewImportCmd(),
		NewExportCmd(),
		NewEventsCmd(),
		NewMigrateCmd(),
		NewVersionCmd(),
	)
	return cmd
}

// persistentPreRun initializes config, logger and service, then stores CLIContext.
func persistentPreRun(cmd *cobra.Command, opts *RootOptions, opener ServiceOpener) error {
	switch strings.ToLower(opts.OutputFormat) {
	case "text", "json", "table":
	default:
		return errors.InvalidParam("output must be text, json or table").WithDetail(opts.OutputFormat)
	}
	if opts.NoColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	cfg, err := initConfig(opts)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger, err := initLogger(opts)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}

	cliCtx := &CLIContext{
		Config:       cfg,
		Logger:       logger,
		OutputFormat: strings.ToLower(opts.OutputFormat),
		Verbose:      opts.Verbose,
		NoColor:      color.NoColor,
		Timeout:      opts.Timeout,
	}

	if !skipsService(cmd) {
		svc, closer, err := opener(cmd.Context(), opts, cfg, logger)
		if err != nil {
			return err
		}
		cliCtx.Service = svc
		cliCtx.closer = closer
	}

	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cliCtx))
	return nil
}

func persistentPostRun(cmd *cobra.Command) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil || cliCtx.closer == nil {
		return nil
	}
	return cliCtx.closer()
}

func skipsService(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if _, ok := c.Annotations[annotationNoService]; ok {
			return true
		}
	}
	return false
}

// initConfig loads configuration with priority: env > file > defaults.
func initConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}

	searchPaths := []string{"./kinkeep.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".kinkeep", "config.yaml"))
	}
	searchPaths = append(searchPaths, "/etc/kinkeep/config.yaml")

	for _, p := range searchPaths {
		if _, statErr := os.Stat(p); statErr == nil {
			return config.Load(p)
		}
	}
	return config.LoadFromEnv()
}

// initLogger creates a logger configured for CLI usage (output to stderr).
func initLogger(opts *RootOptions) (logging.Logger, error) {
	level := strings.ToLower(opts.LogLevel)
	if opts.Verbose {
		level = "debug"
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// defaultOpener talks to the API server when --server is set and otherwise
// opens the configured storage backend in-process.
func defaultOpener(ctx context.Context, opts *RootOptions, cfg *config.Config, logger logging.Logger) (family.Service, func() error, error) {
	if opts.ServerAddr != "" {
		c, err := client.NewClient(opts.ServerAddr, client.WithTimeout(opts.Timeout))
		if err != nil {
			return nil, nil, err
		}
		return NewRemoteService(c), nil, nil
	}

	container, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{Source: "cli"})
	if err != nil {
		return nil, nil, err
	}
	return container.Service, container.Close, nil
}

// GetCLIContext extracts CLIContext from a cobra command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.InvalidParam("command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.InvalidParam("CLIContext not found in command context")
	}
	return cliCtx, nil
}

// serviceFor returns the family service and a context bounded by --timeout.
func serviceFor(cmd *cobra.Command) (family.Service, context.Context, context.CancelFunc, error) {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	if cliCtx.Service == nil {
		return nil, nil, nil, errors.New(errors.ErrCodeServiceUnavailable, "family service not initialised")
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
	return cliCtx.Service, ctx, cancel, nil
}

// Execute is the main entry point for the CLI application.
func Execute() error {
	rootCmd := NewRootCommand(nil)
	if err := rootCmd.Execute(); err != nil {
		PrintError(rootCmd, err)
		return err
	}
	return nil
}

// tableProvider is implemented by results that render as a table.
type tableProvider interface {
	TableHeaders() []string
	TableRows() [][]string
}

// PrintResult outputs data in the format specified by CLIContext.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	format := "text"
	if cliCtx, err := GetCLIContext(cmd); err == nil {
		format = cliCtx.OutputFormat
	}

	switch format {
	case "json":
		return printJSON(cmd, data)
	case "table":
		return printTable(cmd, data)
	default:
		return printText(cmd, data)
	}
}

func printJSON(cmd *cobra.Command, data interface{}) error {
	if j, ok := data.(interface{ JSON() interface{} }); ok {
		data = j.JSON()
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printText(cmd *cobra.Command, data interface{}) error {
	switch v := data.(type) {
	case string:
		fmt.Fprintln(cmd.OutOrStdout(), v)
	case fmt.Stringer:
		fmt.Fprint(cmd.OutOrStdout(), v.String())
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", v)
	}
	return nil
}

// printTable renders table providers with tablewriter and falls back to text.
func printTable(cmd *cobra.Command, data interface{}) error {
	tp, ok := data.(tableProvider)
	if !ok {
		return printText(cmd, data)
	}
	fmt.Fprint(cmd.OutOrStdout(), renderTable(tp.TableHeaders(), tp.TableRows()))
	return nil
}

func renderTable(headers []string, rows [][]string) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.Header(headers)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
	return buf.String()
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
		if appErr.Detail != "" {
			msg += " (" + appErr.Detail + ")"
		}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.RedString("Error:"), msg)
}

// PrintSuccess writes a formatted success message to stdout.
func PrintSuccess(cmd *cobra.Command, msg string) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("OK:"), msg)
}

func truncateString(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
