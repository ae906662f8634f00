package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"presales/internal/models"
)

// ErrVersionConflict reports that a conversation changed since it was read.
var ErrVersionConflict = errors.New("conversation version conflict")

// ConversationRepo persists conversations as one JSON message document per
// session, guarded by an optimistic version counter.
type ConversationRepo struct {
	db     *sql.DB
	driver string
}

func NewConversationRepo(db *sql.DB, driver string) *ConversationRepo {
	return &ConversationRepo{db: db, driver: NormalizeDriver(driver)}
}

// FindBySession returns the stored conversation or sql.ErrNoRows.
func (r *ConversationRepo) FindBySession(ctx context.Context, sessionID string) (*models.Conversation, error) {
	var (
		conv models.Conversation
		raw  string
	)
	err := r.db.QueryRowContext(ctx, rebind(r.driver,
		`SELECT session_id, user_id, messages, version, created_at, updated_at FROM conversations WHERE session_id = ?`),
		sessionID,
	).Scan(&conv.SessionID, &conv.UserID, &raw, &conv.Version, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &conv.Messages); err != nil {
		return nil, fmt.Errorf("decode conversation messages: %w", err)
	}
	return &conv, nil
}

// Upsert inserts a conversation with Version 0 or updates one whose stored
// version still equals conv.Version. On success conv.Version is advanced.
// A lost race returns ErrVersionConflict.
func (r *ConversationRepo) Upsert(ctx context.Context, conv *models.Conversation) error {
	if conv == nil || conv.SessionID == "" {
		return errors.New("session_id is required")
	}
	data, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("encode conversation messages: %w", err)
	}
	now := conv.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	created := conv.CreatedAt
	if created.IsZero() {
		created = now
	}

	if conv.Version == 0 {
		_, err := r.db.ExecContext(ctx, rebind(r.driver,
			`INSERT INTO conversations (session_id, user_id, messages, version, created_at, updated_at) VALUES (?, ?, ?, 1, ?, ?)`),
			conv.SessionID, conv.UserID, string(data), created, now,
		)
		if err != nil {
			if exists, lookupErr := r.exists(ctx, conv.SessionID); lookupErr == nil && exists {
				return ErrVersionConflict
			}
			return fmt.Errorf("insert conversation: %w", err)
		}
		conv.Version = 1
		conv.CreatedAt = created
		conv.UpdatedAt = now
		return nil
	}

	res, err := r.db.ExecContext(ctx, rebind(r.driver,
		`UPDATE conversations SET messages = ?, updated_at = ?, version = version + 1 WHERE session_id = ? AND user_id = ? AND version = ?`),
		string(data), now, conv.SessionID, conv.UserID, conv.Version,
	)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update conversation rows: %w", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	conv.Version++
	conv.UpdatedAt = now
	return nil
}

// ListByUser returns a user's conversations, most recent first, without
// their messages.
func (r *ConversationRepo) ListByUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, rebind(r.driver,
		`SELECT session_id, user_id, version, created_at, updated_at FROM conversations WHERE user_id = ? ORDER BY updated_at DESC`),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.SessionID, &c.UserID, &c.Version, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ConversationRepo) exists(ctx context.Context, sessionID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, rebind(r.driver,
		`SELECT 1 FROM conversations WHERE session_id = ?`), sessionID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
