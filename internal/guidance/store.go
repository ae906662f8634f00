package guidance

import (
	"context"
	"strings"

	"presales/internal/logger"
	"presales/internal/models"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	NoBudgetText   = "I'm sorry, I don't have specific budget information available at the moment."
	NoTimelineText = "I'm sorry, I don't have specific timeline information available at the moment."
)

// Repository is the read side of the guidance tables.
type Repository interface {
	BudgetByProjectType(ctx context.Context, projectType string) ([]models.BudgetGuidance, error)
	AllBudget(ctx context.Context) ([]models.BudgetGuidance, error)
	TimelineByProjectType(ctx context.Context, projectType string) ([]models.TimelineGuidance, error)
	AllTimeline(ctx context.Context) ([]models.TimelineGuidance, error)
}

// Store serves budget and timeline reference rows.
type Store struct {
	repo   Repository
	logger *zap.Logger
}

func NewStore(repo Repository, log *zap.Logger) *Store {
	return &Store{repo: repo, logger: logger.OrNop(log).Named("guidance")}
}

// Budget returns rows for projectType, or every row when it is empty.
func (s *Store) Budget(ctx context.Context, projectType string) ([]models.BudgetGuidance, error) {
	if projectType == "" {
		return s.repo.AllBudget(ctx)
	}
	return s.repo.BudgetByProjectType(ctx, projectType)
}

// Timeline returns rows for projectType, or every row when it is empty.
func (s *Store) Timeline(ctx context.Context, projectType string) ([]models.TimelineGuidance, error) {
	if projectType == "" {
		return s.repo.AllTimeline(ctx)
	}
	return s.repo.TimelineByProjectType(ctx, projectType)
}

// BudgetText formats budget guidance for projectType. Lookup failures
// degrade to the empty-result text.
func (s *Store) BudgetText(ctx context.Context, projectType string) string {
	rows, err := s.Budget(ctx, projectType)
	if err != nil {
		s.logger.Error("budget guidance lookup failed", zap.String("project_type", projectType), zap.Error(err))
		return NoBudgetText
	}
	return FormatBudget(rows)
}

// TimelineText formats timeline guidance for projectType.
func (s *Store) TimelineText(ctx context.Context, projectType string) string {
	rows, err := s.Timeline(ctx, projectType)
	if err != nil {
		s.logger.Error("timeline guidance lookup failed", zap.String("project_type", projectType), zap.Error(err))
		return NoTimelineText
	}
	return FormatTimeline(rows)
}

// FormatBudget renders rows as a bulleted list with grouped amounts.
func FormatBudget(rows []models.BudgetGuidance) string {
	if len(rows) == 0 {
		return NoBudgetText
	}
	p := message.NewPrinter(language.English)
	var b strings.Builder
	b.WriteString("Here's some guidance on project budgets:\n\n")
	for _, row := range rows {
		b.WriteString(p.Sprintf("- %s: $%d-$%d\n", row.ProjectType, row.MinBudget, row.MaxBudget))
		if row.Description != "" {
			b.WriteString("  (" + row.Description + ")\n")
		}
	}
	return b.String()
}

// FormatTimeline renders rows as a bulleted list of delivery windows.
func FormatTimeline(rows []models.TimelineGuidance) string {
	if len(rows) == 0 {
		return NoTimelineText
	}
	var b strings.Builder
	b.WriteString("Here's some guidance on project timelines:\n\n")
	for _, row := range rows {
		b.WriteString("- " + row.ProjectType + ": " + row.MinTimeline + " to " + row.MaxTimeline + "\n")
		if row.Description != "" {
			b.WriteString("  (" + row.Description + ")\n")
		}
	}
	return b.String()
}
