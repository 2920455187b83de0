package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iho/txconsumer/internal/adapter/http/dto"
	"github.com/iho/txconsumer/internal/app"
	"github.com/iho/txconsumer/internal/infrastructure/dynamodb"
	"github.com/iho/txconsumer/internal/infrastructure/postgres"
)

func (c *cli) balancesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balances <account>",
		Short: "Show the actual and available balances of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				balances, err := a.Queries.GetBalances(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.AccountBalancesFromDomain(balances))
			})
		},
	}
}

func (c *cli) eventsCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "events <account>",
		Short: "List the event log of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				events, err := a.Queries.ListEvents(ctx, args[0], limit, offset)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.EventsFromDomain(events))
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of events")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of events to skip")

	return cmd
}

func (c *cli) reconcileCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "reconcile [account]",
		Short: "Compare stored balances with the sum of the event log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return fmt.Errorf("pass exactly one of <account> or --all")
			}

			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				var out []*dto.ReconciliationResponse
				if all {
					results, err := a.ReconcileAll(ctx)
					if err != nil {
						return err
					}
					out = dto.ReconciliationFromDomain(results)
				} else {
					results, err := a.Reconciliation.ReconcileAccount(ctx, args[0])
					if err != nil {
						return err
					}
					out = dto.ReconciliationFromDomain(results)
				}

				if err := printJSON(cmd.OutOrStdout(), out); err != nil {
					return err
				}
				for _, r := range out {
					if !r.IsReconciled {
						return fmt.Errorf("account %s %s balance is off by %s", r.AccountRef, r.Kind, r.Difference)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Reconcile every account the backend can list")

	return cmd
}

func (c *cli) stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state <object-key>",
		Short: "Show the processing state, audit trail and guard marker of a source object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				history, err := a.Queries.GetObjectState(ctx, args[0])
				if err != nil {
					return err
				}

				resp := dto.ObjectStateFromDomain(history)
				resp.GuardMarker, err = a.GuardStatus(ctx, history.State.SourceBucket, history.State.ObjectKey)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Postgres schema migrations",
	}

	run := func(op func(m *postgres.Migrator, cmd *cobra.Command) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			return op(postgres.NewMigrator(cfg.DatabaseURL, cfg.MigrationsPath, c.logger(cfg)), cmd)
		}
	}

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: run(func(m *postgres.Migrator, cmd *cobra.Command) error {
				return m.Up()
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revert the last migration",
			RunE: run(func(m *postgres.Migrator, cmd *cobra.Command) error {
				return m.Down()
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: run(func(m *postgres.Migrator, cmd *cobra.Command) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %v)\n", version, dirty)
				return nil
			}),
		},
	)

	return migrateCmd
}

func (c *cli) tablesCmd() *cobra.Command {
	tablesCmd := &cobra.Command{
		Use:   "tables",
		Short: "DynamoDB table management",
	}

	run := func(op func(ctx context.Context, client dynamodb.TableAPI, tables ...string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			client, err := dynamodb.NewClient(cmd.Context(), dynamodb.Config{
				Region:   cfg.AWSRegion,
				Endpoint: cfg.DynamoDBEndpoint,
			})
			if err != nil {
				return err
			}
			if err := op(cmd.Context(), client, cfg.DynamoDBLedgerTable, cfg.DynamoDBStateTable); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tables %s and %s ok\n", cfg.DynamoDBLedgerTable, cfg.DynamoDBStateTable)
			return nil
		}
	}

	tablesCmd.AddCommand(
		&cobra.Command{
			Use:   "create",
			Short: "Create the ledger and state tables if missing",
			RunE:  run(dynamodb.CreateTables),
		},
		&cobra.Command{
			Use:   "check",
			Short: "Verify the ledger and state tables exist",
			RunE:  run(dynamodb.CheckTables),
		},
	)

	return tablesCmd
}
