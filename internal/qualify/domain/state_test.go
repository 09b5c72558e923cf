package domain

import (
	"testing"
	"time"
)

func TestRecordAnswer_ReplacesNotAppends(t *testing.T) {
	s := NewCaptureState()
	s.RecordAnswer(Answer{Question: "How many employees?", Answer: "ten"})
	s.RecordAnswer(Answer{Question: "how many employees?", Answer: "twelve"})

	if len(s.Answers) != 1 {
		t.Fatalf("expected 1 answer entry, got %d", len(s.Answers))
	}
	if s.Answers[0].Answer != "twelve" {
		t.Fatalf("expected later write to win, got %q", s.Answers[0].Answer)
	}
}

func TestTransitionQualifying_LegalPath(t *testing.T) {
	s := NewCaptureState()
	if err := s.StartQualifying(); err != nil {
		t.Fatalf("pending -> in_progress should be legal: %v", err)
	}
	if s.Status != StatusQualifying || s.QualifyingStatus != QualifyingInProgress {
		t.Fatalf("unexpected state after start: %s/%s", s.Status, s.QualifyingStatus)
	}
	if err := s.TransitionQualifying(QualifyingCompleted); err != nil {
		t.Fatalf("in_progress -> completed should be legal: %v", err)
	}
}

func TestTransitionQualifying_RejectsIllegal(t *testing.T) {
	s := NewCaptureState()
	if err := s.TransitionQualifying(QualifyingCompleted); err == nil {
		t.Fatal("pending -> completed must be rejected")
	}

	s.QualifyingStatus = QualifyingCompleted
	if err := s.TransitionQualifying(QualifyingInProgress); err == nil {
		t.Fatal("completed -> in_progress must be rejected")
	}
}

func TestTransitionQualifying_SelfTransitionIsNoop(t *testing.T) {
	s := NewCaptureState()
	if err := s.TransitionQualifying(QualifyingPending); err != nil {
		t.Fatalf("self transition should be a no-op: %v", err)
	}
}

func TestPromoteLateAnswer_OnlyOverPlaceholder(t *testing.T) {
	s := NewCaptureState()
	s.RecordAnswer(Answer{Question: "Budget?", Answer: SkippedPlaceholder})
	s.RecordAnswer(Answer{Question: "Industry?", Answer: "logistics"})

	if !s.PromoteLateAnswer("Budget?", "around 20k", "we have around 20k set aside", "late_single") {
		t.Fatal("expected promotion over placeholder")
	}
	if a, _ := s.AnswerFor("Budget?"); a.Answer != "around 20k" {
		t.Fatalf("placeholder not replaced: %q", a.Answer)
	}

	if s.PromoteLateAnswer("Industry?", "shipping", "raw", "late_single") {
		t.Fatal("must never replace a genuine prior answer")
	}
	if a, _ := s.AnswerFor("Industry?"); a.Answer != "logistics" {
		t.Fatalf("genuine answer was overwritten: %q", a.Answer)
	}

	if s.PromoteLateAnswer("Unknown question?", "x", "raw", "late_single") {
		t.Fatal("promotion requires an existing entry")
	}
}

func TestAdvanceQuestion_ResetsRetryCount(t *testing.T) {
	s := NewCaptureState()
	s.QuestionRetryCount = 2
	s.AdvanceQuestion()
	if s.CurrentQualifyingIndex != 1 || s.QuestionRetryCount != 0 {
		t.Fatalf("advance got index=%d retries=%d", s.CurrentQualifyingIndex, s.QuestionRetryCount)
	}
}

func TestSkippedAndUnansweredQuestions(t *testing.T) {
	questions := []Question{
		{Text: "Q1", Enabled: true},
		{Text: "Q2", Enabled: true},
		{Text: "Q3", Enabled: true},
	}
	s := NewCaptureState()
	s.RecordAnswer(Answer{Question: "Q1", Answer: "fine"})
	s.RecordAnswer(Answer{Question: "Q2", Answer: SkippedPlaceholder})

	skipped := s.SkippedQuestions(questions)
	if len(skipped) != 1 || skipped[0] != 1 {
		t.Fatalf("expected skipped=[1], got %v", skipped)
	}

	unanswered := s.UnansweredQuestions(questions)
	if len(unanswered) != 2 || unanswered[0] != 1 || unanswered[1] != 2 {
		t.Fatalf("expected unanswered=[1 2], got %v", unanswered)
	}
}

func TestDeferred(t *testing.T) {
	s := NewCaptureState()
	now := time.Now()
	if s.Deferred(now) {
		t.Fatal("fresh state must not be deferred")
	}
	until := now.Add(time.Hour)
	s.DeferredUntil = &until
	if !s.Deferred(now) {
		t.Fatal("expected deferred within window")
	}
	if s.Deferred(now.Add(2 * time.Hour)) {
		t.Fatal("deferral must expire")
	}
}

func TestEffectiveText_RetryLadder(t *testing.T) {
	q := Question{Text: "primary", Followup: "followup", Probe: "probe"}
	cases := []struct {
		retry int
		want  string
	}{
		{0, "primary"},
		{1, "followup"},
		{2, "probe"},
		{3, "probe"},
	}
	for _, c := range cases {
		if got := q.EffectiveText(c.retry); got != c.want {
			t.Fatalf("retry %d: expected %q, got %q", c.retry, c.want, got)
		}
	}

	noAlts := Question{Text: "primary"}
	if got := noAlts.EffectiveText(2); got != "primary" {
		t.Fatalf("question without alternates must fall back to primary, got %q", got)
	}
}

func TestEnabledQuestions_FiltersAndPreservesOrder(t *testing.T) {
	s := Settings{
		Enabled: true,
		Questions: []Question{
			{Text: "A", Enabled: true},
			{Text: "", Enabled: true},
			{Text: "B", Enabled: false},
			{Text: "C", Enabled: true},
		},
	}
	qs := s.EnabledQuestions()
	if len(qs) != 2 || qs[0].Text != "A" || qs[1].Text != "C" {
		t.Fatalf("unexpected enabled sequence: %+v", qs)
	}
}

func TestPickPhrase_FromApprovedSet(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		got := PickPhrase(seed, CompletionAcks)
		found := false
		for _, v := range CompletionAcks {
			if got == v {
				found = true
			}
		}
		if !found {
			t.Fatalf("seed %d picked %q outside approved set", seed, got)
		}
	}
	if PickPhrase(1, nil) != "" {
		t.Fatal("empty variant set must yield empty string")
	}
}
