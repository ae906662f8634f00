package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"presales/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Open connects to the configured database and verifies the connection.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(cfg.Driver) {
	case "sqlite", DriverSQLite:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open(DriverSQLite, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if strings.Contains(cfg.DSN, ":memory:") {
			// every pooled connection would get its own empty database
			db.SetMaxOpenConns(1)
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	case DriverMySQL:
		dsn := cfg.DSN
		if dsn == "" {
			params := cfg.Params
			if params == "" {
				params = "parseTime=true&charset=utf8mb4"
			}
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
				cfg.Username,
				cfg.Password,
				cfg.Host,
				cfg.Port,
				cfg.DBName,
				params,
			)
		}
		db, err = sql.Open(DriverMySQL, dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	case DriverPostgres:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
				cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.DBName, cfg.SSLMode)
		}
		db, err = sql.Open(DriverPostgres, dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// NormalizeDriver maps driver aliases to their canonical name.
func NormalizeDriver(driver string) string {
	if strings.EqualFold(driver, "sqlite") {
		return DriverSQLite
	}
	return strings.ToLower(driver)
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch NormalizeDriver(driver) {
	case DriverSQLite:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS conversations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id TEXT NOT NULL UNIQUE,
				user_id TEXT NOT NULL,
				messages TEXT NOT NULL,
				version INTEGER NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id)`,
			`CREATE TABLE IF NOT EXISTS leads (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id TEXT UNIQUE,
				user_id TEXT,
				client_name TEXT,
				contact_information TEXT,
				document TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS budget_guidance (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				project_type TEXT NOT NULL,
				min_budget INTEGER NOT NULL,
				max_budget INTEGER NOT NULL,
				description TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_budget_guidance_type ON budget_guidance(project_type)`,
			`CREATE TABLE IF NOT EXISTS timeline_guidance (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				project_type TEXT NOT NULL,
				min_timeline TEXT NOT NULL,
				max_timeline TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_timeline_guidance_type ON timeline_guidance(project_type)`,
		}
	case DriverMySQL:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS conversations (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				session_id VARCHAR(64) NOT NULL,
				user_id VARCHAR(255) NOT NULL,
				messages MEDIUMTEXT NOT NULL,
				version BIGINT NOT NULL DEFAULT 1,
				created_at DATETIME(6) NOT NULL,
				updated_at DATETIME(6) NOT NULL,
				PRIMARY KEY (id),
				UNIQUE KEY uniq_conversations_session (session_id),
				INDEX idx_conversations_user (user_id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS leads (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				session_id VARCHAR(64) NULL,
				user_id VARCHAR(255) NULL,
				client_name VARCHAR(255) NULL,
				contact_information VARCHAR(255) NULL,
				document MEDIUMTEXT NOT NULL,
				created_at DATETIME(6) NOT NULL,
				updated_at DATETIME(6) NOT NULL,
				PRIMARY KEY (id),
				UNIQUE KEY uniq_leads_session (session_id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS budget_guidance (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				project_type VARCHAR(100) NOT NULL,
				min_budget BIGINT NOT NULL,
				max_budget BIGINT NOT NULL,
				description TEXT NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_budget_guidance_type (project_type)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS timeline_guidance (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				project_type VARCHAR(100) NOT NULL,
				min_timeline VARCHAR(100) NOT NULL,
				max_timeline VARCHAR(100) NOT NULL,
				description TEXT NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_timeline_guidance_type (project_type)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	case DriverPostgres:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS conversations (
				id BIGSERIAL PRIMARY KEY,
				session_id TEXT NOT NULL UNIQUE,
				user_id TEXT NOT NULL,
				messages TEXT NOT NULL,
				version BIGINT NOT NULL DEFAULT 1,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id)`,
			`CREATE TABLE IF NOT EXISTS leads (
				id BIGSERIAL PRIMARY KEY,
				session_id TEXT UNIQUE,
				user_id TEXT,
				client_name TEXT,
				contact_information TEXT,
				document TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS budget_guidance (
				id BIGSERIAL PRIMARY KEY,
				project_type TEXT NOT NULL,
				min_budget BIGINT NOT NULL,
				max_budget BIGINT NOT NULL,
				description TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_budget_guidance_type ON budget_guidance(project_type)`,
			`CREATE TABLE IF NOT EXISTS timeline_guidance (
				id BIGSERIAL PRIMARY KEY,
				project_type TEXT NOT NULL,
				min_timeline TEXT NOT NULL,
				max_timeline TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_timeline_guidance_type ON timeline_guidance(project_type)`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func rebind(driver, query string) string {
	if NormalizeDriver(driver) != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// insertID runs an INSERT and returns the new row id. Postgres has no
// LastInsertId, so the statement is extended with RETURNING id.
func insertID(ctx context.Context, db *sql.DB, driver, query string, args ...any) (int64, error) {
	if NormalizeDriver(driver) == DriverPostgres {
		var id int64
		if err := db.QueryRowContext(ctx, rebind(driver, query+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
