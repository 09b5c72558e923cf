package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"chatwidget_backend/internal/qualify/domain"
	"chatwidget_backend/platform/logger"
)

// Inference is the narrow view of the LLM service this subsystem consumes:
// one system+user prompt pair in, one JSON object out. No streaming.
type Inference interface {
	GenerateJSON(ctx context.Context, system, user string) ([]byte, error)
}

// Processor issues the qualification model calls.
type Processor struct {
	llm Inference
	log *logger.Logger
}

// New creates a processor over an inference client.
func New(llm Inference, log *logger.Logger) *Processor {
	return &Processor{llm: llm, log: log}
}

// Process runs the single qualifying-message call for one turn. It never
// returns an error: a failed or malformed call degrades to the deterministic
// fallback decision so the turn is always answered without retries (a retry
// is visible to the visitor as added latency).
func (p *Processor) Process(ctx context.Context, req Request) Decision {
	raw, err := p.llm.GenerateJSON(ctx, qualifySystemPrompt, buildQualifyPrompt(req))
	if err != nil {
		p.log.InferenceError("qualify_turn", err)
		return fallbackDecision(req)
	}

	decision, err := parseDecision(raw, req.Question)
	if err != nil {
		p.log.InferenceError("qualify_turn_parse", err)
		return fallbackDecision(req)
	}
	return decision
}

// Match is one detected late answer.
type Match struct {
	QuestionIndex int     `json:"question_index"`
	Answer        string  `json:"answer"`
	Confidence    float64 `json:"confidence"`
}

type matchEnvelope struct {
	Matches []Match `json:"matches"`
}

// MatchSkipped issues ONE batched call covering every skipped question
// against the given text, returning matches at or above the accept
// threshold. Unlike Process, failures surface as errors: the callers run
// out-of-band and simply log and drop the scan.
func (p *Processor) MatchSkipped(ctx context.Context, questions []domain.Question, indices []int, text string, acceptThreshold float64) ([]Match, error) {
	if len(indices) == 0 {
		return nil, nil
	}

	raw, err := p.llm.GenerateJSON(ctx, matchSystemPrompt, buildMatchPrompt(questions, indices, text))
	if err != nil {
		return nil, fmt.Errorf("match skipped questions: %w", err)
	}

	var envelope matchEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal matches: %w", err)
	}

	allowed := make(map[int]bool, len(indices))
	for _, idx := range indices {
		allowed[idx] = true
	}

	var out []Match
	for _, m := range envelope.Matches {
		if !allowed[m.QuestionIndex] {
			continue
		}
		if m.Answer == "" || m.Confidence < acceptThreshold {
			continue
		}
		if m.Confidence > 1 {
			m.Confidence = 1
		}
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].QuestionIndex < out[j].QuestionIndex })
	return out, nil
}
