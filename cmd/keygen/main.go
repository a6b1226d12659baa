package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arnavshah/warplanner-api-go/pkg/auth"
	"github.com/arnavshah/warplanner-api-go/pkg/config"
	"github.com/arnavshah/warplanner-api-go/pkg/database"
	"github.com/arnavshah/warplanner-api-go/pkg/logging"
)

var (
	keyName string
	store   bool
)

var rootCmd = &cobra.Command{
	Use:   "keygen <unit-id>",
	Short: "Generate an API key bound to a guild unit",
	Long: `Signs a new API key for the unit with API_MASTER_SECRET.

With --store the key is also recorded in the configured database, which the
server requires before it accepts the key.`,
	Args: cobra.ExactArgs(1),
	RunE: generate,
}

func init() {
	rootCmd.Flags().StringVar(&keyName, "name", "", "display name of the key (defaults to the unit id)")
	rootCmd.Flags().BoolVar(&store, "store", false, "record the key in the database")
}

func generate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Auth.MasterSecret == "" {
		return fmt.Errorf("API_MASTER_SECRET is not set")
	}

	unitID := args[0]
	key, err := auth.NewSigner(cfg.Auth).GenerateKey(unitID)
	if err != nil {
		return err
	}

	if store {
		logger, err := logging.New("warn")
		if err != nil {
			return err
		}
		db, err := database.InitDB(cfg.Database, logger)
		if err != nil {
			return err
		}
		name := keyName
		if name == "" {
			name = unitID
		}
		rec := database.APIKey{Key: key, Name: name, KeyPreview: auth.Preview(key), UnitID: unitID}
		if err := db.Create(&rec).Error; err != nil {
			return fmt.Errorf("store key: %w", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Generated Key for %s:\n%s\n", unitID, key)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
