package guidance

import (
	"fmt"
	"os"

	"presales/internal/models"

	"gopkg.in/yaml.v3"
)

// Seed is the reference data loaded into the guidance tables.
type Seed struct {
	Budget   []models.BudgetGuidance   `yaml:"budget"`
	Timeline []models.TimelineGuidance `yaml:"timeline"`
}

// DefaultSeed returns the built-in reference rows.
func DefaultSeed() Seed {
	return Seed{
		Budget: []models.BudgetGuidance{
			{ProjectType: "e-commerce", MinBudget: 5000, MaxBudget: 15000, Description: "Basic e-commerce website with product listings and payment processing"},
			{ProjectType: "corporate", MinBudget: 3000, MaxBudget: 10000, Description: "Professional corporate website with company information and contact forms"},
			{ProjectType: "blog", MinBudget: 2000, MaxBudget: 5000, Description: "Blog website with content management system"},
		},
		Timeline: []models.TimelineGuidance{
			{ProjectType: "e-commerce", MinTimeline: "6 weeks", MaxTimeline: "3 months", Description: "Development timeline for a standard e-commerce website"},
			{ProjectType: "corporate", MinTimeline: "4 weeks", MaxTimeline: "2 months", Description: "Development timeline for a corporate website"},
			{ProjectType: "blog", MinTimeline: "2 weeks", MaxTimeline: "1 month", Description: "Development timeline for a blog website"},
		},
	}
}

// LoadSeed reads seed rows from a YAML file. An empty path yields
// DefaultSeed.
func LoadSeed(path string) (Seed, error) {
	if path == "" {
		return DefaultSeed(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read guidance seed: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("decode guidance seed: %w", err)
	}
	for i, row := range seed.Budget {
		if row.ProjectType == "" {
			return Seed{}, fmt.Errorf("budget row %d: project_type is required", i)
		}
		if row.MaxBudget < row.MinBudget {
			return Seed{}, fmt.Errorf("budget row %q: max_budget below min_budget", row.ProjectType)
		}
	}
	for i, row := range seed.Timeline {
		if row.ProjectType == "" {
			return Seed{}, fmt.Errorf("timeline row %d: project_type is required", i)
		}
	}
	return seed, nil
}
