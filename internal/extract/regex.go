package extract

import (
	"context"
	"regexp"
	"strings"

	"presales/internal/metrics"
)

// Patterns are tried in order; the first capture of the first matching
// pattern wins.
var (
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)my name is ([A-Za-z\s]+?)(?:\s+and|\s*,|\s*\.|$)`),
		regexp.MustCompile(`(?i)I'm ([A-Za-z\s]+?)(?:\s+and|\s*,|\s*\.|$)`),
		regexp.MustCompile(`(?i)I am ([A-Za-z\s]+?)(?:\s+and|\s*,|\s*\.|$)`),
		regexp.MustCompile(`(?i)([A-Za-z\s]+?) here`),
	}

	businessPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:my|our) (?:company|business) (?:is|name is) ([A-Za-z0-9\s&]+)`),
		regexp.MustCompile(`(?i)(?:I work for|I represent|I own) ([A-Za-z0-9\s&]+)`),
		regexp.MustCompile(`(?i)([A-Za-z0-9\s&]+) (?:company|business)`),
	}

	descriptionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:looking to|want to|need to|interested in) ([^.]+)`),
		regexp.MustCompile(`(?i)(?:build|create|develop) ([^.]+)`),
		regexp.MustCompile(`(?i)(?:project|website|application|app) (?:for|that) ([^.]+)`),
	}

	timelinePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:timeline|timeframe|deadline) (?:is|of) ([^.]+)`),
		regexp.MustCompile(`(?i)(?:complete|finish|deliver) (?:in|within) ([^.]+)`),
		regexp.MustCompile(`(?i)(?:need|want) it (?:in|within|by) ([^.]+)`),
	}

	budgetPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:budget|price|cost) (?:is|of) ([^.]+)`),
		regexp.MustCompile(`(?i)(?:willing to|can|could) (?:pay|spend) ([^.]+)`),
		regexp.MustCompile(`(?i)(?:around|about|approximately) \$([\d,]+(?:\s*-\s*\$?[\d,]+)?)`),
	}

	featurePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:features|functionality) (?:like|such as|including) ([^.]+)`),
		regexp.MustCompile(`(?i)(?:need|want|require) (?:to have|to include) ([^.]+)`),
		regexp.MustCompile(`(?i)(?:should have|must have|would like) ([^.]+)`),
	}

	consentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:yes|sure|okay|fine|alright)[,.]? (?:you can|please) (?:contact|email|call|follow up)`),
		regexp.MustCompile(`(?i)(?:feel free to|please) (?:contact|email|call|follow up)`),
		regexp.MustCompile(`(?i)(?:happy to|willing to) (?:discuss|talk|chat) (?:more|further|again)`),
	}

	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
)

var patternsByKind = map[Kind][]*regexp.Regexp{
	ClientName:         namePatterns,
	BusinessName:       businessPatterns,
	ProjectDescription: descriptionPatterns,
	ProjectTimeline:    timelinePatterns,
	BudgetRange:        budgetPatterns,
	ProjectFeatures:    featurePatterns,
}

// MatchFirst applies patterns in order and returns the trimmed first
// capture of the first pattern that matches.
func MatchFirst(patterns []*regexp.Regexp, text string) (string, bool) {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		if v := strings.TrimSpace(m[1]); v != "" {
			return v, true
		}
	}
	return "", false
}

// Regex returns the pattern strategy for kind. Contact information and
// consent have dedicated strategies; see Email and Consent.
func Regex(kind Kind) Strategy {
	switch kind {
	case ContactInformation:
		return Email()
	case FollowUpConsent:
		return Consent()
	}
	patterns := patternsByKind[kind]
	return regexStrategy{kind: kind, patterns: patterns}
}

type regexStrategy struct {
	kind     Kind
	patterns []*regexp.Regexp
}

func (s regexStrategy) Name() string { return "regex" }

func (s regexStrategy) Attempt(_ context.Context, text string) (string, bool) {
	v, ok := MatchFirst(s.patterns, text)
	recordOutcome(s.kind, "regex", ok)
	return v, ok
}

// Email returns the strategy that finds the first email address.
// It never consults the completion capability.
func Email() Strategy {
	return StrategyFunc("email", func(text string) (string, bool) {
		v := emailPattern.FindString(text)
		recordOutcome(ContactInformation, "email", v != "")
		return v, v != ""
	})
}

// Consent returns the affirmative-consent strategy. It is total: "yes"
// when a consent phrase is present and "no" otherwise.
func Consent() Strategy {
	return StrategyFunc("consent", func(text string) (string, bool) {
		for _, re := range consentPatterns {
			if re.MatchString(text) {
				recordOutcome(FollowUpConsent, "consent", true)
				return "yes", true
			}
		}
		recordOutcome(FollowUpConsent, "consent", false)
		return "no", true
	})
}

func recordOutcome(kind Kind, strategy string, found bool) {
	outcome := "absent"
	if found {
		outcome = "found"
	}
	metrics.ExtractionOutcomes.WithLabelValues(string(kind), strategy, outcome).Inc()
}
