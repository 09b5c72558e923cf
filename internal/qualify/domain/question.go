// Package domain provides core business rules for the qualification bounded context.
package domain

import "strings"

// Question is one tenant-configured interview question. The optional
// Followup and Probe rephrasings are offered, in that order, when the
// visitor fails to answer the primary phrasing.
type Question struct {
	Text              string `json:"text"`
	Enabled           bool   `json:"enabled"`
	Mandatory         bool   `json:"mandatory,omitempty"`
	QualifiedResponse string `json:"qualified_response,omitempty"`
	Followup          string `json:"followup,omitempty"`
	Probe             string `json:"probe,omitempty"`
}

// Alternates returns the configured rephrasings in the order they are
// offered. A question never allows more retries than it has alternates.
func (q Question) Alternates() []string {
	var alts []string
	if strings.TrimSpace(q.Followup) != "" {
		alts = append(alts, q.Followup)
	}
	if strings.TrimSpace(q.Probe) != "" {
		alts = append(alts, q.Probe)
	}
	return alts
}

// EffectiveText returns the phrasing offered at the given retry count:
// the primary text on retry 0 and successive alternates after that.
// Retry counts beyond the configured alternates fall back to the last one.
func (q Question) EffectiveText(retry int) string {
	if retry <= 0 {
		return q.Text
	}
	alts := q.Alternates()
	if len(alts) == 0 {
		return q.Text
	}
	if retry > len(alts) {
		retry = len(alts)
	}
	return alts[retry-1]
}

// FormField describes one field of the widget capture form.
type FormField struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Required bool   `json:"required,omitempty"`
}

// Settings is a tenant's qualification configuration.
type Settings struct {
	Enabled    bool        `json:"enabled"`
	Questions  []Question  `json:"questions"`
	FormFields []FormField `json:"form_fields,omitempty"`
}

// EnabledQuestions returns the live question sequence: enabled questions
// with non-empty text, in configured order. Order is significant; an
// in-progress visitor's index points into this slice.
func (s Settings) EnabledQuestions() []Question {
	out := make([]Question, 0, len(s.Questions))
	for _, q := range s.Questions {
		if q.Enabled && strings.TrimSpace(q.Text) != "" {
			out = append(out, q)
		}
	}
	return out
}

// HasQuestions reports whether the tenant has at least one live question.
func (s Settings) HasQuestions() bool {
	return s.Enabled && len(s.EnabledQuestions()) > 0
}
