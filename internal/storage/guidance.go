package storage

import (
	"context"
	"database/sql"
	"fmt"

	"presales/internal/models"
)

// GuidanceRepo reads and seeds the budget and timeline reference tables.
type GuidanceRepo struct {
	db     *sql.DB
	driver string
}

func NewGuidanceRepo(db *sql.DB, driver string) *GuidanceRepo {
	return &GuidanceRepo{db: db, driver: NormalizeDriver(driver)}
}

func (r *GuidanceRepo) BudgetByProjectType(ctx context.Context, projectType string) ([]models.BudgetGuidance, error) {
	return r.queryBudget(ctx, `SELECT project_type, min_budget, max_budget, description FROM budget_guidance WHERE project_type = ? ORDER BY id`, projectType)
}

func (r *GuidanceRepo) AllBudget(ctx context.Context) ([]models.BudgetGuidance, error) {
	return r.queryBudget(ctx, `SELECT project_type, min_budget, max_budget, description FROM budget_guidance ORDER BY id`)
}

func (r *GuidanceRepo) TimelineByProjectType(ctx context.Context, projectType string) ([]models.TimelineGuidance, error) {
	return r.queryTimeline(ctx, `SELECT project_type, min_timeline, max_timeline, description FROM timeline_guidance WHERE project_type = ? ORDER BY id`, projectType)
}

func (r *GuidanceRepo) AllTimeline(ctx context.Context) ([]models.TimelineGuidance, error) {
	return r.queryTimeline(ctx, `SELECT project_type, min_timeline, max_timeline, description FROM timeline_guidance ORDER BY id`)
}

func (r *GuidanceRepo) queryBudget(ctx context.Context, query string, args ...any) ([]models.BudgetGuidance, error) {
	rows, err := r.db.QueryContext(ctx, rebind(r.driver, query), args...)
	if err != nil {
		return nil, fmt.Errorf("query budget guidance: %w", err)
	}
	defer rows.Close()

	var out []models.BudgetGuidance
	for rows.Next() {
		var g models.BudgetGuidance
		if err := rows.Scan(&g.ProjectType, &g.MinBudget, &g.MaxBudget, &g.Description); err != nil {
			return nil, fmt.Errorf("scan budget guidance: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *GuidanceRepo) queryTimeline(ctx context.Context, query string, args ...any) ([]models.TimelineGuidance, error) {
	rows, err := r.db.QueryContext(ctx, rebind(r.driver, query), args...)
	if err != nil {
		return nil, fmt.Errorf("query timeline guidance: %w", err)
	}
	defer rows.Close()

	var out []models.TimelineGuidance
	for rows.Next() {
		var g models.TimelineGuidance
		if err := rows.Scan(&g.ProjectType, &g.MinTimeline, &g.MaxTimeline, &g.Description); err != nil {
			return nil, fmt.Errorf("scan timeline guidance: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Seed fills empty guidance tables with the given rows. Tables that
// already hold data are left untouched. It reports whether anything was
// written.
func (r *GuidanceRepo) Seed(ctx context.Context, budget []models.BudgetGuidance, timeline []models.TimelineGuidance) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	seeded := false
	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM budget_guidance`).Scan(&count); err != nil {
		return false, fmt.Errorf("count budget guidance: %w", err)
	}
	if count == 0 {
		for _, g := range budget {
			if _, err := tx.ExecContext(ctx, rebind(r.driver,
				`INSERT INTO budget_guidance (project_type, min_budget, max_budget, description) VALUES (?, ?, ?, ?)`),
				g.ProjectType, g.MinBudget, g.MaxBudget, g.Description,
			); err != nil {
				return false, fmt.Errorf("insert budget guidance: %w", err)
			}
			seeded = true
		}
	}

	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM timeline_guidance`).Scan(&count); err != nil {
		return false, fmt.Errorf("count timeline guidance: %w", err)
	}
	if count == 0 {
		for _, g := range timeline {
			if _, err := tx.ExecContext(ctx, rebind(r.driver,
				`INSERT INTO timeline_guidance (project_type, min_timeline, max_timeline, description) VALUES (?, ?, ?, ?)`),
				g.ProjectType, g.MinTimeline, g.MaxTimeline, g.Description,
			); err != nil {
				return false, fmt.Errorf("insert timeline guidance: %w", err)
			}
			seeded = true
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit guidance seed: %w", err)
	}
	return seeded, nil
}
