package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// BackupTables are exported by Backup, in this order.
var BackupTables = []string{"conversations", "leads", "budget_guidance", "timeline_guidance"}

// BackupResult describes a finished backup.
type BackupResult struct {
	Success    bool   `json:"success"`
	BackupPath string `json:"backup_path"`
	Timestamp  string `json:"timestamp"`
}

// Backup writes every table as one JSON document to
// dir/<base>.backup_<YYYYmmdd_HHMMSS>.
func Backup(ctx context.Context, db *sql.DB, dir, base string, now time.Time) (*BackupResult, error) {
	if base == "" {
		base = "chatbot_db.json"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	doc := make(map[string][]map[string]any, len(BackupTables))
	for _, table := range BackupTables {
		rows, err := dumpTable(ctx, db, table)
		if err != nil {
			return nil, err
		}
		doc[table] = rows
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}

	stamp := now.Format("20060102_150405")
	path := filepath.Join(dir, fmt.Sprintf("%s.backup_%s", base, stamp))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("write backup: %w", err)
	}
	return &BackupResult{Success: true, BackupPath: path, Timestamp: stamp}, nil
}

func dumpTable(ctx context.Context, db *sql.DB, table string) ([]map[string]any, error) {
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+table+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("dump %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("dump %s columns: %w", table, err)
	}
	out := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("dump %s row: %w", table, err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
