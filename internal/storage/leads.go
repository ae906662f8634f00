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

// LeadRepo stores lead records as JSON documents. A session owns at most
// one lead row; later writes for the same session update it in place.
type LeadRepo struct {
	db     *sql.DB
	driver string
}

func NewLeadRepo(db *sql.DB, driver string) *LeadRepo {
	return &LeadRepo{db: db, driver: NormalizeDriver(driver)}
}

// Add stores lead and returns its id.
func (r *LeadRepo) Add(ctx context.Context, lead *models.LeadRecord) (int64, error) {
	id, _, err := r.Upsert(ctx, lead)
	return id, err
}

// Upsert stores lead and reports whether a new row was created.
func (r *LeadRepo) Upsert(ctx context.Context, lead *models.LeadRecord) (int64, bool, error) {
	if lead == nil {
		return 0, false, errors.New("lead is required")
	}
	now := time.Now().UTC()
	if lead.Timestamp.IsZero() {
		lead.Timestamp = now
	}
	doc, err := json.Marshal(lead)
	if err != nil {
		return 0, false, fmt.Errorf("encode lead: %w", err)
	}

	if lead.SessionID != "" {
		id, err := r.updateBySession(ctx, lead, doc, now)
		if err == nil {
			lead.ID = id
			return id, false, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, false, err
		}
	}

	id, err := insertID(ctx, r.db, r.driver,
		`INSERT INTO leads (session_id, user_id, client_name, contact_information, document, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullString(lead.SessionID), nullString(lead.UserID),
		nullString(models.StringValue(lead.ClientName)), nullString(models.StringValue(lead.ContactInformation)),
		string(doc), now, now,
	)
	if err != nil {
		if lead.SessionID != "" {
			// a concurrent turn may have inserted the session row first
			if id, uerr := r.updateBySession(ctx, lead, doc, now); uerr == nil {
				lead.ID = id
				return id, false, nil
			}
		}
		return 0, false, fmt.Errorf("insert lead: %w", err)
	}
	lead.ID = id
	return id, true, nil
}

func (r *LeadRepo) updateBySession(ctx context.Context, lead *models.LeadRecord, doc []byte, now time.Time) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, rebind(r.driver, `SELECT id FROM leads WHERE session_id = ?`), lead.SessionID).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("find lead: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, rebind(r.driver,
		`UPDATE leads SET user_id = ?, client_name = ?, contact_information = ?, document = ?, updated_at = ? WHERE id = ?`),
		nullString(lead.UserID), nullString(models.StringValue(lead.ClientName)),
		nullString(models.StringValue(lead.ContactInformation)), string(doc), now, id,
	); err != nil {
		return 0, fmt.Errorf("update lead: %w", err)
	}
	return id, nil
}

// Get returns one lead by id or sql.ErrNoRows.
func (r *LeadRepo) Get(ctx context.Context, id int64) (*models.LeadRecord, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, rebind(r.driver, `SELECT document FROM leads WHERE id = ?`), id).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get lead: %w", err)
	}
	var lead models.LeadRecord
	if err := json.Unmarshal([]byte(raw), &lead); err != nil {
		return nil, fmt.Errorf("decode lead: %w", err)
	}
	lead.ID = id
	return &lead, nil
}

// List returns up to limit leads, newest first.
func (r *LeadRepo) List(ctx context.Context, limit int) ([]models.LeadRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, rebind(r.driver, `SELECT id, document FROM leads ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	leads := make([]models.LeadRecord, 0)
	for rows.Next() {
		var (
			id  int64
			raw string
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		var lead models.LeadRecord
		if err := json.Unmarshal([]byte(raw), &lead); err != nil {
			return nil, fmt.Errorf("decode lead %d: %w", id, err)
		}
		lead.ID = id
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
