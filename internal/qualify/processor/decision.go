// Package processor adapts the Gemini JSON-mode call into structured
// qualification decisions. One model call per turn covers intent
// classification, answer extraction, criterion checking, and response
// drafting; splitting those into sequential calls would multiply the latency
// paid inside the visible chat turn.
package processor

import (
	"encoding/json"
	"fmt"
	"strings"

	"chatwidget_backend/internal/qualify/domain"
)

// Action is what the interceptor should do with the turn.
type Action string

const (
	ActionAccept   Action = "accept"
	ActionSkip     Action = "skip"
	ActionFollowup Action = "followup"
	ActionProbe    Action = "probe"
	ActionRedirect Action = "redirect"
)

// Decision is the structured output of one qualifying-message call.
// Qualified is only meaningful when Action is accept; it expresses whether
// the extracted answer met the tenant's acceptance criterion, independent of
// the question's mandatory flag (mandatory-ness only affects finalization).
type Decision struct {
	Intent          string `json:"intent"`
	ExtractedAnswer string `json:"extracted_answer,omitempty"`
	IsUncertain     bool   `json:"is_uncertain,omitempty"`
	Qualified       *bool  `json:"qualified,omitempty"`
	Action          Action `json:"action"`
	Response        string `json:"response"`
	Reasoning       string `json:"reasoning,omitempty"`
}

// Turn is one prior exchange line passed as context.
type Turn struct {
	Role string `json:"role"` // "visitor" or "assistant"
	Text string `json:"text"`
}

// Request carries everything the single call needs for one turn.
type Request struct {
	Question     domain.Question
	NextQuestion *domain.Question
	IsLast       bool
	RetryCount   int
	Message      string
	History      []Turn
}

// historyWindow is the number of prior messages passed to the model
// (roughly three exchanges).
const historyWindow = 6

// fallbackAnswerLimit caps the raw message stored by the fallback decision.
const fallbackAnswerLimit = 200

var validActions = map[Action]bool{
	ActionAccept:   true,
	ActionSkip:     true,
	ActionFollowup: true,
	ActionProbe:    true,
	ActionRedirect: true,
}

// parseDecision unmarshals and validates one model response. Malformed output
// is an error so the caller can substitute the fallback decision; it must
// never crash the turn.
func parseDecision(raw []byte, q domain.Question) (Decision, error) {
	var d Decision
	if err := json.Unmarshal(raw, &d); err != nil {
		return Decision{}, fmt.Errorf("unmarshal decision: %w", err)
	}

	d.Action = Action(strings.ToLower(strings.TrimSpace(string(d.Action))))
	if !validActions[d.Action] {
		return Decision{}, fmt.Errorf("invalid action %q", d.Action)
	}
	if strings.TrimSpace(d.Response) == "" {
		return Decision{}, fmt.Errorf("empty response text")
	}

	// The model may ask for an alternate phrasing the tenant never
	// configured; degrade those to a plain redirect so the interceptor's
	// retry bound stays tied to the configured alternates.
	if d.Action == ActionFollowup && strings.TrimSpace(q.Followup) == "" {
		d.Action = ActionRedirect
	}
	if d.Action == ActionProbe && strings.TrimSpace(q.Probe) == "" {
		d.Action = ActionRedirect
	}

	return d, nil
}

// fallbackDecision is the deterministic degraded decision used when the model
// call fails or returns malformed output. Accepting the raw (truncated)
// message at worst pollutes one answer field while keeping the flow alive;
// erroring the turn would break the visitor's chat.
func fallbackDecision(req Request) Decision {
	response := "Thanks, noted!"
	if req.IsLast {
		response = "Thanks, that's everything I needed."
	} else if req.NextQuestion != nil {
		response = "Got it, thanks. " + req.NextQuestion.Text
	}

	return Decision{
		Intent:          "answer",
		ExtractedAnswer: truncate(req.Message, fallbackAnswerLimit),
		IsUncertain:     true,
		Action:          ActionAccept,
		Response:        response,
		Reasoning:       "fallback decision after inference failure",
	}
}

func truncate(s string, limit int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit])
}
