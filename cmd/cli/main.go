package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/txconsumer/internal/app"
	"github.com/iho/txconsumer/internal/infrastructure/config"
	"github.com/iho/txconsumer/internal/infrastructure/logger"
)

// cli carries the state shared by every command.
type cli struct {
	logLevel string
	backend  string

	// loadConfig and buildApp are replaced in tests.
	loadConfig func() (*config.Config, error)
	buildApp   func(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app.App, error)
}

func main() {
	if err := newRootCmd(newCLI()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCLI() *cli {
	return &cli{
		loadConfig: config.Load,
		buildApp: func(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app.App, error) {
			return app.Build(ctx, cfg, log, app.Options{})
		},
	}
}

func newRootCmd(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "txconsumer-cli",
		Short:         "Transaction ledger processor CLI",
		Long:          `Replays transaction events into the ledger and inspects balances, event logs and object state.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Override LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&c.backend, "backend", "", "Override STORAGE_BACKEND (memory, dynamodb, postgres)")

	rootCmd.AddCommand(
		c.replayCmd(),
		c.balancesCmd(),
		c.eventsCmd(),
		c.reconcileCmd(),
		c.stateCmd(),
		c.migrateCmd(),
		c.tablesCmd(),
	)

	return rootCmd
}

// config loads configuration and applies flag overrides.
func (c *cli) config() (*config.Config, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if c.backend != "" {
		cfg.StorageBackend = c.backend
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *cli) logger(cfg *config.Config) zerolog.Logger {
	return logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  "console",
		Service: cfg.ServiceName,
		Output:  os.Stderr,
	})
}

// withApp builds the processor, runs fn and closes the processor.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}

	a, err := c.buildApp(cmd.Context(), cfg, c.logger(cfg))
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(cmd.Context(), a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
