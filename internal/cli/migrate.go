package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables and seed guidance data",
	Long: `Create the conversation, lead and guidance tables if they do not exist and
seed budget and timeline guidance when those tables are empty.

Examples:
  presales migrate
  presales migrate --config ./configs/prod.yaml`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	// tables are created by the root pre-run
	seeded, err := seedGuidance(context.Background())
	if err != nil {
		return fmt.Errorf("seed guidance: %w", err)
	}
	if seeded {
		fmt.Println("Database migrated, guidance seeded.")
	} else {
		fmt.Println("Database migrated, guidance already present.")
	}
	return nil
}
