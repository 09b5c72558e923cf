package processor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"chatwidget_backend/internal/qualify/domain"
	"chatwidget_backend/platform/logger"
)

type fakeLLM struct {
	response string
	err      error
	lastUser string
}

func (f *fakeLLM) GenerateJSON(_ context.Context, _ string, user string) ([]byte, error) {
	f.lastUser = user
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.response), nil
}

func testProcessor(llm Inference) *Processor {
	return New(llm, logger.New("development"))
}

func TestProcess_ParsesWellFormedDecision(t *testing.T) {
	llm := &fakeLLM{response: `{
		"intent": "answer",
		"extracted_answer": "3 employees",
		"is_uncertain": false,
		"qualified": false,
		"action": "accept",
		"response": "Got it. What's your budget?",
		"reasoning": "below the 10 employee criterion"
	}`}

	d := testProcessor(llm).Process(context.Background(), Request{
		Question: domain.Question{Text: "How many employees?", QualifiedResponse: "10+ employees"},
		Message:  "we're a 3-person shop",
	})

	if d.Action != ActionAccept {
		t.Fatalf("expected accept, got %s", d.Action)
	}
	if d.ExtractedAnswer != "3 employees" {
		t.Fatalf("unexpected extraction: %q", d.ExtractedAnswer)
	}
	if d.Qualified == nil || *d.Qualified {
		t.Fatalf("expected qualified=false, got %v", d.Qualified)
	}
}

func TestProcess_FallbackOnInferenceError(t *testing.T) {
	llm := &fakeLLM{err: errors.New("rate limited")}

	d := testProcessor(llm).Process(context.Background(), Request{
		Question: domain.Question{Text: "Budget?"},
		Message:  "around fifty thousand a year",
	})

	if d.Action != ActionAccept {
		t.Fatalf("fallback must accept, got %s", d.Action)
	}
	if d.ExtractedAnswer != "around fifty thousand a year" {
		t.Fatalf("fallback must keep the raw message: %q", d.ExtractedAnswer)
	}
	if d.Response == "" {
		t.Fatal("fallback response must be non-empty")
	}
}

func TestProcess_FallbackOnMalformedJSON(t *testing.T) {
	cases := []string{
		`not json at all`,
		`{"action": "explode", "response": "hi"}`,
		`{"action": "accept", "response": ""}`,
	}
	for _, response := range cases {
		llm := &fakeLLM{response: response}
		d := testProcessor(llm).Process(context.Background(), Request{
			Question: domain.Question{Text: "Q"},
			Message:  "msg",
		})
		if d.Action != ActionAccept || d.Response == "" {
			t.Fatalf("response %q: expected fallback decision, got %+v", response, d)
		}
	}
}

func TestProcess_FallbackTruncatesLongMessage(t *testing.T) {
	llm := &fakeLLM{err: errors.New("timeout")}
	long := strings.Repeat("a", 500)

	d := testProcessor(llm).Process(context.Background(), Request{
		Question: domain.Question{Text: "Q"},
		Message:  long,
	})
	if len([]rune(d.ExtractedAnswer)) != fallbackAnswerLimit {
		t.Fatalf("expected truncation to %d runes, got %d", fallbackAnswerLimit, len([]rune(d.ExtractedAnswer)))
	}
}

func TestProcess_UnconfiguredAlternateDegradesToRedirect(t *testing.T) {
	llm := &fakeLLM{response: `{"action": "probe", "response": "let me rephrase"}`}

	d := testProcessor(llm).Process(context.Background(), Request{
		Question: domain.Question{Text: "Q", Followup: "rephrased?"},
		Message:  "huh?",
	})
	if d.Action != ActionRedirect {
		t.Fatalf("probe without configured probe phrasing must degrade to redirect, got %s", d.Action)
	}
}

func TestProcess_HistoryWindowTruncated(t *testing.T) {
	llm := &fakeLLM{response: `{"action": "accept", "response": "ok"}`}

	history := make([]Turn, 10)
	for i := range history {
		history[i] = Turn{Role: "visitor", Text: strings.Repeat("x", 3) + string(rune('a'+i))}
	}

	testProcessor(llm).Process(context.Background(), Request{
		Question: domain.Question{Text: "Q"},
		Message:  "msg",
		History:  history,
	})

	if strings.Contains(llm.lastUser, "xxxa") {
		t.Fatal("oldest turns must be dropped from the prompt")
	}
	if !strings.Contains(llm.lastUser, "xxxj") {
		t.Fatal("newest turn must be present in the prompt")
	}
}

func TestMatchSkipped_FiltersByThresholdAndIndex(t *testing.T) {
	llm := &fakeLLM{response: `{"matches": [
		{"question_index": 1, "answer": "20 people", "confidence": 0.9},
		{"question_index": 1, "answer": "low conf", "confidence": 0.3},
		{"question_index": 7, "answer": "not skipped", "confidence": 0.95},
		{"question_index": 2, "answer": "", "confidence": 0.9}
	]}`}

	questions := []domain.Question{
		{Text: "Q0", Enabled: true},
		{Text: "Q1", Enabled: true},
		{Text: "Q2", Enabled: true},
	}

	matches, err := testProcessor(llm).MatchSkipped(context.Background(), questions, []int{1, 2}, "text", 0.6)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 surviving match, got %d: %+v", len(matches), matches)
	}
	if matches[0].QuestionIndex != 1 || matches[0].Answer != "20 people" {
		t.Fatalf("unexpected match: %+v", matches[0])
	}
}

func TestMatchSkipped_NoIndicesNoCall(t *testing.T) {
	llm := &fakeLLM{err: errors.New("must not be called")}
	matches, err := testProcessor(llm).MatchSkipped(context.Background(), nil, nil, "text", 0.6)
	if err != nil || matches != nil {
		t.Fatalf("expected silent no-op, got %v %v", matches, err)
	}
}

func TestMatchSkipped_ErrorSurfaces(t *testing.T) {
	llm := &fakeLLM{err: errors.New("unavailable")}
	if _, err := testProcessor(llm).MatchSkipped(context.Background(), []domain.Question{{Text: "Q"}}, []int{0}, "text", 0.6); err == nil {
		t.Fatal("matcher errors must surface to the out-of-band caller")
	}
}
