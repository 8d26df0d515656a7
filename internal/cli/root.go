// Package cli provides the command-line interface for flinkwatch.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/flinkwatch/internal/client"
	"github.com/raphaelgruber/flinkwatch/internal/config"
	"github.com/raphaelgruber/flinkwatch/internal/db"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	configPath string

	// Global config and logger, set in PersistentPreRunE
	cfg      config.Config
	logger   = slog.Default()
	closeLog = func() error { return nil }

	// Lazy-initialized snapshot store
	dbClient *db.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "flinkwatch",
	Short: "Inspect and watch Flink jobs",
	Long: `flinkwatch reads job status from the Flink REST API, tolerating the field
type drift between Flink versions, and records state changes in SurrealDB.

Configuration is read from a TOML file (--config or FLINKWATCH_CONFIG) and
FLINKWATCH_* environment variables.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}

		logger, closeLog = config.SetupLogger(cfg)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
			dbClient = nil
		}
		if err := closeLog(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
	},
}

// flinkClient builds a REST client from the loaded config.
func flinkClient() *client.Client {
	return client.New(client.Config{
		BaseURL:  cfg.FlinkURL,
		Username: cfg.FlinkUser,
		Password: cfg.FlinkPassword,
		Timeout:  cfg.FlinkTimeout,
		Strict:   cfg.Strict,
	}, client.WithLogger(logger))
}

// storeClient connects to SurrealDB on first use.
func storeClient(ctx context.Context) (*db.Client, error) {
	if dbClient != nil {
		return dbClient, nil
	}

	c, err := db.NewClient(ctx, dbConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := c.InitSchema(ctx); err != nil {
		_ = c.Close(ctx)
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	dbClient = c
	return dbClient, nil
}

// dbConfig extracts the store settings.
func dbConfig(c config.Config) db.Config {
	return db.Config{
		URL:       c.SurrealDBURL,
		Namespace: c.SurrealDBNamespace,
		Database:  c.SurrealDBDatabase,
		Username:  c.SurrealDBUser,
		Password:  c.SurrealDBPass,
		AuthLevel: c.SurrealDBAuthLevel,
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to TOML config file")

	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
}
