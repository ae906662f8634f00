// Package classify assigns project types and turn intents from free text
// using case-insensitive substring scans.
package classify

import "strings"

// ProjectTypes is the fixed label set, in priority order.
var ProjectTypes = []string{
	"e-commerce",
	"corporate",
	"blog",
	"mobile app",
	"web application",
	"api",
	"dashboard",
}

// keywordGroups map loose vocabulary onto labels. They are consulted only
// when no label appears verbatim.
var keywordGroups = []struct {
	label    string
	keywords []string
}{
	{"e-commerce", []string{"shop", "store", "product", "cart", "checkout", "payment"}},
	{"corporate", []string{"company", "business", "corporate", "professional", "organization"}},
	{"blog", []string{"blog", "content", "article", "post", "cms"}},
}

// DetectProjectType returns the first label found in text, or false when
// nothing matches.
func DetectProjectType(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, label := range ProjectTypes {
		if strings.Contains(lower, label) {
			return label, true
		}
	}
	for _, group := range keywordGroups {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.label, true
			}
		}
	}
	return "", false
}
