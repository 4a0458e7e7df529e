package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tgienger/tdl/internal/api"
	"github.com/tgienger/tdl/internal/config"
	"github.com/tgienger/tdl/internal/db"
	"github.com/tgienger/tdl/internal/logging"
	"github.com/tgienger/tdl/internal/server"
	"github.com/tgienger/tdl/internal/todo"
)

// serveCmd implements 'tdl serve'.
func serveCmd(flags *rootFlags) *cobra.Command {
	var addr, dbPath string
	var noSeed bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the task store service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var o config.Overrides
			if cmd.Flags().Changed("addr") {
				o.Addr = &addr
			}
			if cmd.Flags().Changed("db") {
				o.DBPath = &dbPath
			}
			if noSeed {
				seed := false
				o.Seed = &seed
			}
			cfg, err := loadConfig(cmd, *flags, o)
			if err != nil {
				return err
			}

			logger, err := logging.New(os.Stderr, logging.Options{
				Level:           cfg.LogLevel,
				Prefix:          "tdl serve",
				ReportTimestamp: true,
				JSON:            cfg.LogJSON,
			})
			if err != nil {
				return err
			}

			path, err := cfg.ResolveDBPath()
			if err != nil {
				return err
			}
			database, err := db.New(path)
			if err != nil {
				return fmt.Errorf("initializing database: %w", err)
			}
			defer database.Close()
			logger.Debug("database open", "path", path)

			if cfg.Seed {
				if err := database.SeedTasks(); err != nil {
					return fmt.Errorf("seeding tasks: %w", err)
				}
			}

			h := server.NewHandler(database, logger).Routes()
			return server.Serve(cmd.Context(), cfg.Addr, h, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default :5000)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (default $XDG_DATA_HOME/tdl/tdl.db)")
	cmd.Flags().BoolVar(&noSeed, "no-seed", false, "Do not insert the sample tasks into a new database")
	return cmd
}

// statusCmd implements 'tdl status'.
func statusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the task store and list its tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, *flags, config.Overrides{})
			if err != nil {
				return err
			}
			client := api.NewClient(cfg.APIURL, cfg.RequestTimeout.Duration)

			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			tasks, err := client.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s (%d tasks)\n", client.BaseURL(), status.Status, status.TotalTodos)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, t := range tasks {
				check := " "
				if t.Completed {
					check = "x"
				}
				deadline := todo.FormatDeadline(t.DeadlineDate, t.DeadlineTime)
				fmt.Fprintf(tw, "%d\t[%s]\t%s\t%s\t%s\n", t.ID, check, t.Title, t.Priority, deadline)
			}
			return tw.Flush()
		},
	}
}
