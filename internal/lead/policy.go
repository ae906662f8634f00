package lead

import (
	"strings"

	"presales/internal/models"
)

// Policy is the storage-eligibility gate.
type Policy struct {
	// RequireProjectInfo additionally demands a project description or a
	// detected project type.
	RequireProjectInfo bool
}

// Eligible reports whether rec may be persisted: a client name, contact
// information and confirmed follow-up are always required.
func (p Policy) Eligible(rec *models.LeadRecord) bool {
	if rec == nil {
		return false
	}
	if blank(rec.ClientName) || blank(rec.ContactInformation) || !rec.ConfirmedFollowUp {
		return false
	}
	if p.RequireProjectInfo && blank(rec.ProjectDescription) && blank(rec.ProjectType) {
		return false
	}
	return true
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
