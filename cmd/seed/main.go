package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arnavshah/warplanner-api-go/pkg/config"
	"github.com/arnavshah/warplanner-api-go/pkg/database"
	"github.com/arnavshah/warplanner-api-go/pkg/logging"
	"github.com/arnavshah/warplanner-api-go/pkg/notify"
)

var announce bool

var rootCmd = &cobra.Command{
	Use:   "seed <fixture.yaml>",
	Short: "Load a guild roster and leave fixture into the database",
	Long: `Reads a YAML fixture and replaces the unit's leave records, upserting its
members and note.

Example fixture:

  unit: guild-1
  note: "[red] bring potions"
  members:
    - {id: 1, name: Alice, strength: 900, early: {team: 1, slot: 1}}
  leave:
    - {member: 1, date: "2026-10-24", variant: late, reason: travel}`,
	Args: cobra.ExactArgs(1),
	RunE: seed,
}

func init() {
	rootCmd.Flags().BoolVar(&announce, "announce", true, "publish roster and leave change events to Redis")
}

func seed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	fixture, err := database.ReadFixture(f)
	if err != nil {
		return err
	}

	db, err := database.InitDB(cfg.Database, logger)
	if err != nil {
		return err
	}
	ctx := context.Background()
	n, err := database.Seed(ctx, db, fixture)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	logger.Info("fixture loaded",
		zap.String("unit", fixture.Unit),
		zap.Int("members", n),
		zap.Int("leave", len(fixture.Leave)),
	)

	if announce {
		notifier, err := notify.Connect(ctx, cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer notifier.Close()
		for _, ev := range []string{notify.RosterChanged, notify.LeaveChanged} {
			if err := notifier.Publish(ctx, fixture.Unit, ev, nil); err != nil {
				logger.Warn("publish", zap.String("event", ev), zap.Error(err))
			}
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
