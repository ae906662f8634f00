// Package cli provides the command-line interface for the pre-sales
// chatbot.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"presales/internal/config"
	"presales/internal/guidance"
	"presales/internal/logger"
	"presales/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	configPath string
	logLevel   string

	cfg *config.Config
	log *zap.Logger
	db  *sql.DB
)

var rootCmd = &cobra.Command{
	Use:   "presales",
	Short: "Pre-sales chatbot server and tools",
	Long: `Presales runs the pre-sales chatbot API: it talks to prospective clients
through an LLM, keeps per-session history and captures qualified leads.

The same binary migrates the database, writes backups and lists leads.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		path := configPath
		if path == "" {
			path = os.Getenv("PRESALES_CONFIG")
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		level := cfg.Logging.Level
		if logLevel != "" {
			level = logLevel
		}
		log, err = logger.New(level, cfg.Logging.Format)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		db, err = storage.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		if err := storage.Migrate(db, cfg.Database.Driver); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			if err := db.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if log != nil {
			_ = log.Sync()
		}
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: config.yaml or $PRESALES_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(leadsCmd)
}

// seedGuidance fills empty guidance tables from the configured seed file.
func seedGuidance(ctx context.Context) (bool, error) {
	seed, err := guidance.LoadSeed(cfg.Guidance.SeedPath)
	if err != nil {
		return false, err
	}
	return storage.NewGuidanceRepo(db, cfg.Database.Driver).Seed(ctx, seed.Budget, seed.Timeline)
}
