package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectProjectType(t *testing.T) {
	cases := []struct {
		text string
		want string
		ok   bool
	}{
		{"I need an e-commerce website for my clothing store.", "e-commerce", true},
		{"We want a Corporate site", "corporate", true},
		{"Looking for a mobile app", "mobile app", true},
		{"an internal dashboard for ops", "dashboard", true},
		{"I sell products online and need a cart", "e-commerce", true},
		{"Our organization needs a new site", "corporate", true},
		{"A place to publish my articles", "blog", true},
		{"Hello", "", false},
	}
	for _, tc := range cases {
		got, ok := DetectProjectType(tc.text)
		assert.Equal(t, tc.ok, ok, tc.text)
		assert.Equal(t, tc.want, got, tc.text)
	}
}

func TestDetectProjectTypeLabelsBeatKeywords(t *testing.T) {
	// "store" would map to e-commerce, but the explicit label wins.
	got, ok := DetectProjectType("A blog for my store")
	assert.True(t, ok)
	assert.Equal(t, "blog", got)
}

func TestClassifyIntent(t *testing.T) {
	assert.Equal(t, IntentBudget, ClassifyIntent("How much would a shop cost?"))
	assert.Equal(t, IntentTimeline, ClassifyIntent("How long does it take?"))
	assert.Equal(t, IntentBudget, ClassifyIntent("What is the price and the timeline?"))
	assert.Equal(t, IntentGeneral, ClassifyIntent("Hi there!"))
	assert.Equal(t, IntentTimeline, ClassifyIntent("WHEN can you start"))
}
