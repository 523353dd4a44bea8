// Package commands implements the mcpcs CLI.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vikashloomba/mcpcs-go/pkg/logging"
	"github.com/vikashloomba/mcpcs-go/pkg/mcpconfig"
	"github.com/vikashloomba/mcpcs-go/pkg/mcpmgr"
)

const version = mcpmgr.DefaultClientVersion

var (
	v = viper.New()

	settingsFile string
	noColor      bool
)

func init() {
	mcpconfig.Init(v)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&settingsFile, "settings", "", "settings file (default $XDG_CONFIG_HOME/mcpcs/config.yaml)")
	flags.String("config-dir", "", "directory holding server documents (default ~/.mcpcsrs/mcps)")
	flags.Duration("timeout", 0, "per-server connect and query timeout (default 30s)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text, json")
	flags.Bool("strict", false, "fail resolution when any server could not be queried")
	flags.Bool("trace-rpc", false, "log every JSON-RPC message at debug level")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")

	for key, flag := range map[string]string{
		mcpconfig.KeyConfigDir:       "config-dir",
		mcpconfig.KeyTimeout:         "timeout",
		mcpconfig.KeyLogLevel:        "log-level",
		mcpconfig.KeyLogFormat:       "log-format",
		mcpconfig.KeyStrictDiscovery: "strict",
		mcpconfig.KeyTraceRPC:        "trace-rpc",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("mcpcs version {{.Version}}\n")
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}

var rootCmd = &cobra.Command{
	Use:   "mcpcs",
	Short: "Query and invoke tools, resources, and prompts across MCP servers",
	Long: `mcpcs connects to every MCP server described in the config directory and
presents their tools, resources, and prompts as one namespace.

Names that exist on a single server can be used bare. Names exposed by several
servers must be qualified as server/name; mcpcs never guesses.`,
	Example: `  mcpcs tools list
  mcpcs tools call search '{"query": "golang"}'
  mcpcs tools call github/search '{"query": "golang"}'
  mcpcs resources read file:///notes.md
  mcpcs prompts get review lang=go style="very strict"
  mcpcs serve --addr 127.0.0.1:8765`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setup(cmd)
	},
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// setup loads settings and configures logging and color for the run.
func setup(cmd *cobra.Command) error {
	settings, err := mcpconfig.Load(v, settingsFile)
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(settings.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(settings.LogFormat)
	if err != nil {
		return err
	}
	if settings.TraceRPC && level > slog.LevelDebug {
		level = slog.LevelDebug
	}
	logger := logging.New(logging.Config{Level: level, Format: format, Output: cmd.ErrOrStderr()})
	slog.SetDefault(logger)

	if noColor || !logging.SupportsColor(cmd.OutOrStdout()) {
		color.NoColor = true
	}

	current.settings = settings
	current.logger = logger
	return nil
}

// Execute runs the root command with a context cancelled on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		printError(rootCmd.ErrOrStderr(), err)
	}
	return err
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("Error:"), err)
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprintf(w, "  %s\n", color.New(color.Faint).Sprint(hint))
	}
}

// app carries what subcommands share once setup ran.
type app struct {
	settings    *mcpconfig.Settings
	logger      *slog.Logger
	fs          afero.Fs
	establisher mcpmgr.Establisher
}

var current = &app{fs: afero.NewOsFs()}

// connect loads every server document and establishes sessions. Servers that
// fail are logged and left out.
func (a *app) connect(ctx context.Context) (*mcpmgr.Manager, *mcpmgr.LoadReport, error) {
	loaded, err := mcpconfig.LoadDir(a.fs, a.settings.ConfigDir, a.logger)
	if err != nil {
		return nil, nil, err
	}
	mcpmgr.LogConfigErrors(a.logger, loaded.Errors)

	mode := mcpmgr.DiscoveryFailuresSkip
	if a.settings.StrictDiscovery {
		mode = mcpmgr.DiscoveryFailuresStrict
	}
	m := mcpmgr.NewManager(&mcpmgr.ManagerOptions{
		DefaultTimeout:    a.settings.Timeout,
		LogJSONRPC:        a.settings.TraceRPC,
		DiscoveryFailures: mode,
		Logger:            a.logger,
		Establisher:       a.establisher,
		FS:                a.fs,
	})
	if len(loaded.Servers) == 0 {
		a.logger.Warn("no servers configured", "dir", a.settings.ConfigDir)
	}
	return m, m.LoadAll(ctx, loaded.Servers), nil
}

// withManager runs fn against a freshly connected manager and closes every
// session afterwards.
func (a *app) withManager(ctx context.Context, fn func(*mcpmgr.Manager) error) error {
	m, _, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(context.WithoutCancel(ctx)); err != nil {
			a.logger.Debug("closing sessions", "error", err)
		}
	}()
	return fn(m)
}
