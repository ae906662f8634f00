package classify

import "strings"

// Intent selects the response strategy for a turn.
type Intent string

const (
	IntentGeneral  Intent = "general"
	IntentBudget   Intent = "budget"
	IntentTimeline Intent = "timeline"
)

var (
	budgetKeywords   = []string{"budget", "cost", "price", "pricing", "how much", "expensive", "cheap", "afford"}
	timelineKeywords = []string{"timeline", "time", "duration", "how long", "schedule", "deadline", "when"}
)

// ClassifyIntent scans message for budget then timeline keywords. Budget
// wins when both match.
func ClassifyIntent(message string) Intent {
	lower := strings.ToLower(message)
	if containsAny(lower, budgetKeywords) {
		return IntentBudget
	}
	if containsAny(lower, timelineKeywords) {
		return IntentTimeline
	}
	return IntentGeneral
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
