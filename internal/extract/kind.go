// Package extract pulls structured lead fields out of free conversation
// text. Each entity kind is served by an ordered chain of strategies: an
// LLM-backed strategy first, then deterministic regular expressions.
package extract

// Kind names an entity to extract. The string value is what the extraction
// prompt shows to the model.
type Kind string

const (
	ClientName         Kind = "client name"
	BusinessName       Kind = "business name"
	ProjectDescription Kind = "project description"
	ProjectFeatures    Kind = "project features"
	ProjectTimeline    Kind = "project timeline"
	BudgetRange        Kind = "budget range"
	FollowUpConsent    Kind = "follow-up consent (yes/no)"
	ContactInformation Kind = "contact information"
)

// Kinds lists every kind the aggregator extracts, in record order.
var Kinds = []Kind{
	ClientName,
	BusinessName,
	ContactInformation,
	ProjectDescription,
	ProjectFeatures,
	ProjectTimeline,
	BudgetRange,
	FollowUpConsent,
}
