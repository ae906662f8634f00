package models

// BudgetGuidance is a reference budget band for a project type.
type BudgetGuidance struct {
	ProjectType string `json:"project_type" yaml:"project_type"`
	MinBudget   int64  `json:"min_budget" yaml:"min_budget"`
	MaxBudget   int64  `json:"max_budget" yaml:"max_budget"`
	Description string `json:"description" yaml:"description"`
}

// TimelineGuidance is a reference delivery window for a project type.
type TimelineGuidance struct {
	ProjectType string `json:"project_type" yaml:"project_type"`
	MinTimeline string `json:"min_timeline" yaml:"min_timeline"`
	MaxTimeline string `json:"max_timeline" yaml:"max_timeline"`
	Description string `json:"description" yaml:"description"`
}
