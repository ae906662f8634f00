package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"presales/internal/models"
	"presales/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("database:\n  driver: sqlite3\n  dsn: chatbot.db\nlogging:\n  level: error\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return dir, path
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return Execute()
}

func TestMigrateSeedsGuidanceOnce(t *testing.T) {
	dir, path := writeConfig(t)

	require.NoError(t, run(t, "migrate", "--config", path))
	require.NoError(t, run(t, "migrate", "--config", path))

	db, err := storage.Open(cfg.Database)
	require.NoError(t, err)
	defer db.Close()
	rows, err := storage.NewGuidanceRepo(db, cfg.Database.Driver).AllBudget(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, filepath.Join(dir, "chatbot.db"), cfg.Database.DSN)
}

func TestBackupWritesFile(t *testing.T) {
	_, path := writeConfig(t)
	out := t.TempDir()

	require.NoError(t, run(t, "backup", "--config", path, "--dir", out))

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "chatbot_db.json.backup_")
}

func TestLeadsListsStoredLeads(t *testing.T) {
	_, path := writeConfig(t)
	require.NoError(t, run(t, "migrate", "--config", path))

	db, err := storage.Open(cfg.Database)
	require.NoError(t, err)
	_, err = storage.NewLeadRepo(db, cfg.Database.Driver).Add(context.Background(), &models.LeadRecord{
		SessionID:          "s1",
		ClientName:         models.StringPtr("John Smith"),
		ContactInformation: models.StringPtr("john@example.com"),
		ConfirmedFollowUp:  true,
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	assert.NoError(t, run(t, "leads", "--config", path, "--json"))
	assert.NoError(t, run(t, "leads", "--config", path))
}

func TestUnknownConfigFails(t *testing.T) {
	err := run(t, "migrate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestOrDash(t *testing.T) {
	assert.Equal(t, "-", orDash(""))
	assert.Equal(t, "x", orDash("x"))
}
