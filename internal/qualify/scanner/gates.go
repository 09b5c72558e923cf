package scanner

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Gate identifiers, logged when a scan is dropped.
const (
	gateTooShort     = "too_short"
	gateRefusal      = "refusal"
	gateNoIndicators = "no_indicators"
	gateNoState      = "no_state"
	gateFlowActive   = "flow_active"
	gateNoSkips      = "no_skips"
)

// refusalPattern catches explicit privacy declines. A visitor who said they
// don't want to answer is not mined, full stop.
var refusalPattern = regexp.MustCompile(`(?i)\b(rather not|prefer not to|don'?t want to (answer|say|share|tell)|won'?t (answer|say|tell)|no comment|none of your business|not comfortable (sharing|saying)|keep (that|it) private)\b`)

// numericPattern matches any digit; answers to qualifying questions almost
// always carry one.
var numericPattern = regexp.MustCompile(`[0-9]`)

// indicatorVocabulary is business/quantity vocabulary that makes a message
// worth a model call even without digits. Tuned by inspection, not derived
// from labeled data; treat as a replaceable heuristic.
var indicatorVocabulary = []string{
	"employee", "headcount", "team", "staff", "people",
	"company", "business", "startup", "agency", "firm",
	"budget", "revenue", "spend", "pricing", "cost",
	"customer", "client", "user",
	"hundred", "thousand", "million", "dozen",
	"annual", "monthly", "per year", "per month",
	"industry", "sector",
}

// passesTextGates runs the cheap, purely local checks against the message.
// Returns the first failing gate name, or "" when the message is worth
// scanning. Cheapest checks run first; this ordering is cost control, not
// correctness.
func passesTextGates(message string, minLen int) string {
	if utf8.RuneCountInString(strings.TrimSpace(message)) < minLen {
		return gateTooShort
	}
	if refusalPattern.MatchString(message) {
		return gateRefusal
	}
	if !numericPattern.MatchString(message) && !containsIndicator(message) {
		return gateNoIndicators
	}
	return ""
}

func containsIndicator(message string) bool {
	msg := strings.ToLower(message)
	for _, word := range indicatorVocabulary {
		if strings.Contains(msg, word) {
			return true
		}
	}
	return false
}
