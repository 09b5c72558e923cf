package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status is the overall capture status of a visitor.
type Status string

const (
	StatusPending       Status = "pending"
	StatusFormShown     Status = "form_shown"
	StatusFormCompleted Status = "form_completed"
	StatusQualifying    Status = "qualifying"
	StatusQualified     Status = "qualified"
	StatusNotQualified  Status = "not_qualified"
	StatusSkipped       Status = "skipped"
	StatusDeferred      Status = "deferred"
)

// QualifyingStatus is the sub-status of the question flow itself.
type QualifyingStatus string

const (
	QualifyingPending    QualifyingStatus = "pending"
	QualifyingInProgress QualifyingStatus = "in_progress"
	QualifyingCompleted  QualifyingStatus = "completed"
	QualifyingSkipped    QualifyingStatus = "skipped"
)

// Skip placeholders. An answer holding one of these is treated as unanswered
// by the finalizer and is eligible for late-answer promotion.
const (
	SkippedPlaceholder      = "[skipped]"
	NotAvailablePlaceholder = "N/A"
)

// Capture source tags.
const (
	SourceChat  = "chat"
	SourceForm  = "form"
	SourceVoice = "voice"
)

// qualifyingTransitions enumerates the legal sub-status transitions.
// Self-loops (advancing the index while in_progress) are implicit.
var qualifyingTransitions = map[QualifyingStatus][]QualifyingStatus{
	QualifyingPending:    {QualifyingInProgress, QualifyingSkipped},
	QualifyingInProgress: {QualifyingCompleted, QualifyingSkipped},
	QualifyingCompleted:  {},
	QualifyingSkipped:    {},
}

// IsSkipPlaceholder reports whether an answer value is a skip placeholder.
func IsSkipPlaceholder(value string) bool {
	v := strings.TrimSpace(value)
	return v == "" || strings.EqualFold(v, SkippedPlaceholder) || strings.EqualFold(v, NotAvailablePlaceholder)
}

// Answer is one recorded answer. At most one entry exists per distinct
// question text; later writes replace earlier ones.
type Answer struct {
	Question            string `json:"question"`
	Answer              string `json:"answer"`
	RawText             string `json:"raw_text,omitempty"`
	Qualified           *bool  `json:"qualified,omitempty"`
	Mandatory           bool   `json:"mandatory,omitempty"`
	ActualQuestionAsked string `json:"actual_question_asked,omitempty"`
	Reasoning           string `json:"reasoning,omitempty"`
}

// Skipped reports whether this entry is still a placeholder.
func (a Answer) Skipped() bool {
	return IsSkipPlaceholder(a.Answer)
}

// CaptureState is the single JSON-valued record tracking a visitor's progress
// through the qualification flow. The interceptor owns transitions; the
// scanner and finalizer also mutate it. The whole blob is read-modify-written,
// so every writer must base its modification on a freshly-read copy.
type CaptureState struct {
	Status                 Status           `json:"status"`
	QualifyingStatus       QualifyingStatus `json:"qualifying_status"`
	CurrentQualifyingIndex int              `json:"current_qualifying_index"`
	Answers                []Answer         `json:"answers,omitempty"`
	QuestionRetryCount     int              `json:"question_retry_count,omitempty"`
	QualificationReasoning string           `json:"qualification_reasoning,omitempty"`

	// Cascade bookkeeping.
	AskCount      int        `json:"ask_count,omitempty"`
	Visits        int        `json:"visits,omitempty"`
	DeferredUntil *time.Time `json:"deferred_until,omitempty"`
	CaptureSource string     `json:"capture_source,omitempty"`

	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// NewCaptureState returns the initial state for a just-created visitor.
func NewCaptureState() CaptureState {
	return CaptureState{
		Status:           StatusPending,
		QualifyingStatus: QualifyingPending,
	}
}

// TransitionQualifying moves the sub-status to the target state, rejecting
// transitions not present in the table.
func (s *CaptureState) TransitionQualifying(to QualifyingStatus) error {
	if s.QualifyingStatus == to {
		return nil
	}
	for _, allowed := range qualifyingTransitions[s.QualifyingStatus] {
		if allowed == to {
			s.QualifyingStatus = to
			return nil
		}
	}
	return fmt.Errorf("illegal qualifying transition %s -> %s", s.QualifyingStatus, to)
}

// StartQualifying transitions pending -> in_progress and resets the cursor.
func (s *CaptureState) StartQualifying() error {
	if err := s.TransitionQualifying(QualifyingInProgress); err != nil {
		return err
	}
	s.Status = StatusQualifying
	s.CurrentQualifyingIndex = 0
	s.QuestionRetryCount = 0
	return nil
}

// RecordAnswer upserts an answer keyed by question text. Duplicate
// near-simultaneous deliveries of the same utterance therefore collapse to
// one entry, with the later value winning.
func (s *CaptureState) RecordAnswer(ans Answer) {
	for i := range s.Answers {
		if strings.EqualFold(strings.TrimSpace(s.Answers[i].Question), strings.TrimSpace(ans.Question)) {
			s.Answers[i] = ans
			return
		}
	}
	s.Answers = append(s.Answers, ans)
}

// AnswerFor returns the recorded answer for a question text, if any.
func (s *CaptureState) AnswerFor(question string) (Answer, bool) {
	for _, a := range s.Answers {
		if strings.EqualFold(strings.TrimSpace(a.Question), strings.TrimSpace(question)) {
			return a, true
		}
	}
	return Answer{}, false
}

// PromoteLateAnswer overwrites the placeholder entry for a question with a
// mined answer. It refuses to touch a real prior answer: the first genuine
// answer wins regardless of the late answer's confidence.
func (s *CaptureState) PromoteLateAnswer(question, answer, rawText, source string) bool {
	for i := range s.Answers {
		if !strings.EqualFold(strings.TrimSpace(s.Answers[i].Question), strings.TrimSpace(question)) {
			continue
		}
		if !s.Answers[i].Skipped() {
			return false
		}
		s.Answers[i].Answer = answer
		s.Answers[i].RawText = rawText
		s.Answers[i].Reasoning = "recovered from later conversation (" + source + ")"
		return true
	}
	return false
}

// AdvanceQuestion moves the cursor to the next question and resets the
// per-question retry counter. The cursor is monotonically non-decreasing
// while in_progress.
func (s *CaptureState) AdvanceQuestion() {
	s.CurrentQualifyingIndex++
	s.QuestionRetryCount = 0
}

// SkippedQuestions returns the indices (into the enabled sequence) of
// questions whose recorded answer is still a placeholder.
func (s *CaptureState) SkippedQuestions(questions []Question) []int {
	var out []int
	for i, q := range questions {
		if a, ok := s.AnswerFor(q.Text); ok && a.Skipped() {
			out = append(out, i)
		}
	}
	return out
}

// UnansweredQuestions returns the indices of questions with no usable answer:
// either never recorded or still a placeholder.
func (s *CaptureState) UnansweredQuestions(questions []Question) []int {
	var out []int
	for i, q := range questions {
		a, ok := s.AnswerFor(q.Text)
		if !ok || a.Skipped() {
			out = append(out, i)
		}
	}
	return out
}

// Deferred reports whether the visitor deferred the flow and the deferral
// window has not yet elapsed.
func (s *CaptureState) Deferred(now time.Time) bool {
	return s.DeferredUntil != nil && now.Before(*s.DeferredUntil)
}
