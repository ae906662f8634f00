package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"presales/internal/storage"

	"github.com/spf13/cobra"
)

var (
	backupDir  string
	backupBase string
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a JSON backup of all tables",
	Long: `Dump conversations, leads and guidance to a timestamped JSON file.

Examples:
  presales backup
  presales backup --dir /var/backups/presales`,
	Args: cobra.NoArgs,
	RunE: runBackup,
}

func init() {
	backupCmd.Flags().StringVar(&backupDir, "dir", "", "backup directory (default: backup.dir)")
	backupCmd.Flags().StringVar(&backupBase, "name", "chatbot_db.json", "base file name")
}

func runBackup(cmd *cobra.Command, args []string) error {
	dir := backupDir
	if dir == "" {
		dir = cfg.Backup.Dir
	}
	res, err := storage.Backup(context.Background(), db, dir, backupBase, time.Now())
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
