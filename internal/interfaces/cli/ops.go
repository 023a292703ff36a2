package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/KinKeep/internal/bootstrap"
	"github.com/turtacn/KinKeep/internal/domain/member"
	"github.com/turtacn/KinKeep/internal/infrastructure/database/postgres"
	"github.com/turtacn/KinKeep/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/KinKeep/pkg/errors"
)

var noService = map[string]string{annotationNoService: "true"}

// NewEventsCmd creates the events command
func NewEventsCmd() *cobra.Command {
	eventsCmd := &cobra.Command{
		Use:         "events",
		Short:       "Inspect the member change events published to Kafka",
		Annotations: noService,
	}

	var group string
	var fromLatest bool
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Print member events as they arrive until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			kc := cliCtx.Config.Kafka
			if len(kc.Brokers) == 0 || kc.Topic == "" {
				return errors.New(errors.ErrCodeFeatureDisabled, "kafka.brokers and kafka.topic must be configured")
			}
			consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
				Brokers:    kc.Brokers,
				GroupID:    group,
				Topic:      kc.Topic,
				FromLatest: fromLatest,
			}, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer consumer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return consumer.Run(ctx, func(_ context.Context, env *kafka.EventEnvelope) error {
				fmt.Fprintln(cmd.OutOrStdout(), formatEvent(env))
				return nil
			})
		},
	}
	tailCmd.Flags().StringVar(&group, "group", "kinkeep-cli", "consumer group id")
	tailCmd.Flags().BoolVar(&fromLatest, "from-latest", false, "skip events published before the group first joined")

	eventsCmd.AddCommand(tailCmd)
	return eventsCmd
}

// formatEvent renders one envelope as a single line.
func formatEvent(env *kafka.EventEnvelope) string {
	var evt member.Event
	if err := env.DecodePayload(&evt); err != nil {
		return fmt.Sprintf("%s %-16s <undecodable payload: %v>", env.Timestamp.Format("2006-01-02 15:04:05"), env.EventType, err)
	}
	label := env.EventType
	switch member.EventType(env.EventType) {
	case member.EventMemberCreated, member.EventMemberImported:
		label = color.GreenString("%-16s", label)
	case member.EventMemberDeleted:
		label = color.RedString("%-16s", label)
	default:
		label = color.YellowString("%-16s", label)
	}
	line := fmt.Sprintf("%s %s %s", env.Timestamp.Local().Format("2006-01-02 15:04:05"), label, evt.AggregateID())
	if evt.FullName != "" {
		line += "  " + evt.FullName
	}
	if env.Source != "" {
		line += color.HiBlackString("  (%s)", env.Source)
	}
	return line
}

// NewMigrateCmd creates the migrate command
func NewMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:         "migrate",
		Short:       "Manage the PostgreSQL schema used by the postgres backend",
		Annotations: noService,
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPostgres(cmd, func(conn *postgres.Connection, dir string) error {
				if err := conn.RunMigrations(dir); err != nil {
					return err
				}
				PrintSuccess(cmd, "migrations applied")
				return nil
			})
		},
	}

	var steps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return errors.InvalidParam("--steps must be at least 1")
			}
			return withPostgres(cmd, func(conn *postgres.Connection, dir string) error {
				if err := conn.RollbackMigrations(dir, steps); err != nil {
					return err
				}
				PrintSuccess(cmd, fmt.Sprintf("rolled back %d migration(s)", steps))
				return nil
			})
		},
	}
	downCmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPostgres(cmd, func(conn *postgres.Connection, dir string) error {
				version, dirty, err := conn.MigrationStatus(dir)
				if err != nil {
					return err
				}
				state := color.GreenString("clean")
				if dirty {
					state = color.RedString("dirty")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (%s)\n", version, state)
				return nil
			})
		},
	}

	migrateCmd.AddCommand(upCmd, downCmd, statusCmd)
	return migrateCmd
}

func withPostgres(cmd *cobra.Command, fn func(conn *postgres.Connection, dir string) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	db := cliCtx.Config.Database
	conn, err := postgres.NewConnection(bootstrap.PostgresConfig(db), cliCtx.Logger)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(conn, db.MigrationPath)
}

// NewVersionCmd prints build information.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: noService,
		Args:        cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kinkeep %s\n  commit: %s\n  built:  %s\n", Version, GitCommit, BuildDate)
		},
	}
}
