package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegexStrategies(t *testing.T) {
	cases := []struct {
		name string
		kind Kind
		text string
		want string
		ok   bool
	}{
		{"name intro", ClientName, "My name is John Smith and I need a site.", "John Smith", true},
		{"name lowercase", ClientName, "hi, my name is jane doe.", "jane doe", true},
		{"name i am", ClientName, "I am Alice, the owner.", "Alice", true},
		{"name absent", ClientName, "Just browsing", "", false},
		{"business", BusinessName, "Our company is Blue Ocean Labs", "Blue Ocean Labs", true},
		{"business work for", BusinessName, "I work for Acme & Sons", "Acme & Sons", true},
		{"description", ProjectDescription, "We are looking to sell handmade soap online.", "sell handmade soap online", true},
		{"timeline", ProjectTimeline, "I need it in 2 months.", "2 months", true},
		{"timeline deadline", ProjectTimeline, "Our deadline is end of March.", "end of March", true},
		{"budget around", BudgetRange, "We have around $10,000 to spend", "10,000", true},
		{"budget is", BudgetRange, "The budget is 5k.", "5k", true},
		{"features", ProjectFeatures, "It needs features like cart, wishlist, reviews.", "cart, wishlist, reviews", true},
		{"features absent", ProjectFeatures, "Nothing specific yet", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Regex(tc.kind).Attempt(context.Background(), tc.text)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEmailStrategy(t *testing.T) {
	got, ok := Email().Attempt(context.Background(), "You can contact me at john@example.com for follow-up.")
	assert.True(t, ok)
	assert.Equal(t, "john@example.com", got)

	got, ok = Email().Attempt(context.Background(), "first a@b.io then c@d.org")
	assert.True(t, ok)
	assert.Equal(t, "a@b.io", got)

	_, ok = Email().Attempt(context.Background(), "call me maybe")
	assert.False(t, ok)
}

func TestConsentIsTotal(t *testing.T) {
	yes := []string{
		"Yes, you can contact me.",
		"sure please email me",
		"Feel free to call tomorrow",
		"I'm happy to discuss more next week",
	}
	for _, text := range yes {
		got, ok := Consent().Attempt(context.Background(), text)
		assert.True(t, ok)
		assert.Equal(t, "yes", got, text)
	}
	got, ok := Consent().Attempt(context.Background(), "No thanks, I'll reach out myself.")
	assert.True(t, ok)
	assert.Equal(t, "no", got)
}

func TestRegexRoutesSpecialKinds(t *testing.T) {
	assert.Equal(t, "email", Regex(ContactInformation).Name())
	assert.Equal(t, "consent", Regex(FollowUpConsent).Name())
	assert.Equal(t, "regex", Regex(ClientName).Name())
}
