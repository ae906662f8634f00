package models

import "time"

// LeadRecord holds the structured sales lead derived from a conversation.
// Nil pointers mean the field has not been extracted yet.
type LeadRecord struct {
	ID                 int64     `json:"id,omitempty"`
	SessionID          string    `json:"session_id,omitempty"`
	UserID             string    `json:"user_id,omitempty"`
	ClientName         *string   `json:"client_name"`
	ClientBusiness     *string   `json:"client_business"`
	ContactInformation *string   `json:"contact_information"`
	ProjectDescription *string   `json:"project_description"`
	Features           []string  `json:"features"`
	Timeline           *string   `json:"timeline"`
	BudgetRange        *string   `json:"budget_range"`
	ConfirmedFollowUp  bool      `json:"confirmed_follow_up"`
	Timestamp          time.Time `json:"timestamp"`
	ProjectType        *string   `json:"project_type"`
}

// StringValue dereferences an optional field, returning "" when absent.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
