package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tgienger/tdl/internal/api"
	"github.com/tgienger/tdl/internal/config"
	"github.com/tgienger/tdl/internal/logging"
	"github.com/tgienger/tdl/internal/todo"
	"github.com/tgienger/tdl/internal/ui"
)

// Version information set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootFlags are shared by every command
type rootFlags struct {
	configPath string
	apiURL     string
	logLevel   string
	logFile    string
}

func main() {
	var flags rootFlags

	rootCmd := &cobra.Command{
		Use:           "tdl",
		Short:         "A terminal to-do list backed by a REST task store",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags, config.Overrides{})
			if err != nil {
				return err
			}
			return runTUI(cmd.Context(), cfg)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/tdl/config.toml)")
	pf.StringVar(&flags.apiURL, "api-url", "", "Task store base URL")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&flags.logFile, "log-file", "", "Log file (default tdl.log in the data dir)")
	pf.Duration("timeout", 0, "Per-request timeout, 0 disables")

	rootCmd.AddCommand(
		serveCmd(&flags),
		statusCmd(&flags),
		versionCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig layers the flags the user actually set over the config file and env
func loadConfig(cmd *cobra.Command, flags rootFlags, o config.Overrides) (*config.Config, error) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("api-url") {
		o.APIURL = &flags.apiURL
	}
	if changed("log-level") {
		o.LogLevel = &flags.logLevel
	}
	if changed("log-file") {
		o.LogFile = &flags.logFile
	}
	if changed("timeout") {
		d, err := cmd.Flags().GetDuration("timeout")
		if err != nil {
			return nil, err
		}
		o.RequestTimeout = &d
	}
	return config.Load(flags.configPath, o)
}

func runTUI(ctx context.Context, cfg *config.Config) error {
	logPath, err := cfg.ResolveLogFile()
	if err != nil {
		return err
	}
	logger, err := logging.OpenFile(logPath, logging.Options{
		Level:  cfg.LogLevel,
		Prefix: "tdl",
		JSON:   cfg.LogJSON,
	})
	if err != nil {
		return err
	}
	defer logger.Close()

	client := api.NewClient(cfg.APIURL, cfg.RequestTimeout.Duration)
	ctrl := todo.NewController(client, logger.Logger)
	logger.Info("starting", "version", version, "api_url", client.BaseURL())

	app := ui.NewApp(ctx, ctrl, client)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running application: %w", err)
	}
	return nil
}

// versionCmd implements 'tdl version'.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tdl %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
