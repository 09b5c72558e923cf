package voice

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"chatwidget_backend/internal/qualify/domain"
	"chatwidget_backend/internal/qualify/processor"
	"chatwidget_backend/internal/qualify/repository"
	"chatwidget_backend/internal/qualify/scanner"
	"chatwidget_backend/internal/qualify/settings"
	"chatwidget_backend/platform/apperr"
	"chatwidget_backend/platform/logger"
)

type voiceRepo struct {
	customer repository.Customer
	lead     repository.Lead
	hasLead  bool
	settings domain.Settings
	audit    []repository.AppendLateAnswerParams
}

func (r *voiceRepo) GetOrCreateCustomer(_ context.Context, _ uuid.UUID, _ string) (repository.Customer, error) {
	return r.customer, nil
}

func (r *voiceRepo) GetCustomer(_ context.Context, _ uuid.UUID, _ string) (repository.Customer, error) {
	return r.customer, nil
}

func (r *voiceRepo) SaveCaptureState(_ context.Context, _ uuid.UUID, _ string, state domain.CaptureState) error {
	r.customer.CaptureState = state
	return nil
}

func (r *voiceRepo) UpdateCustomerContact(_ context.Context, _ uuid.UUID, _ string, _, _ *string) error {
	return nil
}

func (r *voiceRepo) CreateLead(_ context.Context, _, _ uuid.UUID, _ map[string]string) (repository.Lead, error) {
	return r.lead, nil
}

func (r *voiceRepo) GetOpenLead(_ context.Context, _, _ uuid.UUID) (repository.Lead, error) {
	if !r.hasLead {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	return r.lead, nil
}

func (r *voiceRepo) UpdateLeadAnswers(_ context.Context, _, _ uuid.UUID, _ []domain.Answer, _ string, _ *string) error {
	return nil
}

func (r *voiceRepo) AppendLateAnswer(_ context.Context, params repository.AppendLateAnswerParams) (repository.LateAnswer, error) {
	r.audit = append(r.audit, params)
	return repository.LateAnswer{ID: uuid.New()}, nil
}

func (r *voiceRepo) GetSettings(_ context.Context, _ uuid.UUID) (domain.Settings, error) {
	return r.settings, nil
}

func (r *voiceRepo) TenantForWidgetKey(_ context.Context, _ string) (uuid.UUID, error) {
	return uuid.Nil, apperr.Unauthorized("unknown widget key")
}

type voiceMatcher struct {
	matches    []processor.Match
	called     bool
	transcript string
	indices    []int
}

func (m *voiceMatcher) MatchSkipped(_ context.Context, _ []domain.Question, indices []int, text string, _ float64) ([]processor.Match, error) {
	m.called = true
	m.transcript = text
	m.indices = indices
	return m.matches, nil
}

type recordingFinalizer struct {
	called bool
}

func (f *recordingFinalizer) FinalizeIfCovered(_ context.Context, _ uuid.UUID, _ string) error {
	f.called = true
	return nil
}

func voiceSettings() domain.Settings {
	return domain.Settings{
		Enabled: true,
		Questions: []domain.Question{
			{Text: "How many employees do you have?", Enabled: true, Mandatory: true},
			{Text: "What is your budget?", Enabled: true},
		},
	}
}

func newExtractor(repo *voiceRepo, matcher scanner.Matcher, fin Finalizer) *Extractor {
	resolver := settings.NewResolver(repo, time.Minute)
	return New(repo, resolver, matcher, fin, logger.New("test"), scanner.Thresholds{Accept: 0.6, Promote: 0.8, MinLen: 12})
}

func transcript() []TranscriptMessage {
	return []TranscriptMessage{
		{Role: "agent", Text: "Thanks for calling, how can I help?"},
		{Role: "visitor", Text: "We're a company of about 40 employees looking for a demo."},
	}
}

func TestExtractSavesConfidentAnswers(t *testing.T) {
	repo := &voiceRepo{
		customer: repository.Customer{ID: uuid.New(), CaptureState: domain.NewCaptureState()},
		lead:     repository.Lead{ID: uuid.New()},
		hasLead:  true,
		settings: voiceSettings(),
	}
	matcher := &voiceMatcher{matches: []processor.Match{
		{QuestionIndex: 0, Answer: "40 employees", Confidence: 0.9},
	}}
	fin := &recordingFinalizer{}
	e := newExtractor(repo, matcher, fin)

	if err := e.Extract(context.Background(), uuid.New(), "v1", transcript()); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if !matcher.called {
		t.Fatalf("matcher should run over the transcript")
	}
	if !strings.Contains(matcher.transcript, "visitor: We're a company") {
		t.Fatalf("transcript not flattened with roles: %q", matcher.transcript)
	}
	if len(matcher.indices) != 2 {
		t.Fatalf("both unanswered questions should be offered, got %v", matcher.indices)
	}

	ans, ok := repo.customer.CaptureState.AnswerFor("How many employees do you have?")
	if !ok || ans.Answer != "40 employees" {
		t.Fatalf("answer not saved: %+v", ans)
	}
	if repo.customer.CaptureState.CaptureSource != domain.SourceVoice {
		t.Fatalf("capture source = %q, want voice", repo.customer.CaptureState.CaptureSource)
	}
	if len(repo.audit) != 1 || !repo.audit[0].Promoted || repo.audit[0].CaptureType != repository.CaptureTypeEmbedded {
		t.Fatalf("unexpected audit rows: %+v", repo.audit)
	}
	if !fin.called {
		t.Fatalf("finalizer must run after extraction")
	}
}

func TestExtractAuditsWithoutSavingMidConfidence(t *testing.T) {
	repo := &voiceRepo{
		customer: repository.Customer{ID: uuid.New(), CaptureState: domain.NewCaptureState()},
		lead:     repository.Lead{ID: uuid.New()},
		hasLead:  true,
		settings: voiceSettings(),
	}
	matcher := &voiceMatcher{matches: []processor.Match{
		{QuestionIndex: 0, Answer: "40 employees", Confidence: 0.65},
	}}
	fin := &recordingFinalizer{}
	e := newExtractor(repo, matcher, fin)

	if err := e.Extract(context.Background(), uuid.New(), "v1", transcript()); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if _, ok := repo.customer.CaptureState.AnswerFor("How many employees do you have?"); ok {
		t.Fatalf("mid confidence must not write the capture state")
	}
	if len(repo.audit) != 1 || repo.audit[0].Promoted {
		t.Fatalf("expected one unpromoted audit row, got %+v", repo.audit)
	}
}

func TestExtractNeverOverwritesGenuineAnswer(t *testing.T) {
	state := domain.NewCaptureState()
	state.RecordAnswer(domain.Answer{Question: "How many employees do you have?", Answer: "12 employees"})
	repo := &voiceRepo{
		customer: repository.Customer{ID: uuid.New(), CaptureState: state},
		lead:     repository.Lead{ID: uuid.New()},
		hasLead:  true,
		settings: voiceSettings(),
	}
	matcher := &voiceMatcher{matches: []processor.Match{
		{QuestionIndex: 0, Answer: "40 employees", Confidence: 0.95},
	}}
	fin := &recordingFinalizer{}
	e := newExtractor(repo, matcher, fin)

	if err := e.Extract(context.Background(), uuid.New(), "v1", transcript()); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	ans, _ := repo.customer.CaptureState.AnswerFor("How many employees do you have?")
	if ans.Answer != "12 employees" {
		t.Fatalf("transcript overwrote a genuine answer: %q", ans.Answer)
	}
	// Only the budget question was unanswered, so only it is offered.
	if len(matcher.indices) != 1 || matcher.indices[0] != 1 {
		t.Fatalf("matcher indices = %v, want [1]", matcher.indices)
	}
}

func TestExtractSkipsWhenFullyCovered(t *testing.T) {
	state := domain.NewCaptureState()
	state.RecordAnswer(domain.Answer{Question: "How many employees do you have?", Answer: "12 employees"})
	state.RecordAnswer(domain.Answer{Question: "What is your budget?", Answer: "20k"})
	repo := &voiceRepo{
		customer: repository.Customer{ID: uuid.New(), CaptureState: state},
		settings: voiceSettings(),
	}
	matcher := &voiceMatcher{}
	fin := &recordingFinalizer{}
	e := newExtractor(repo, matcher, fin)

	if err := e.Extract(context.Background(), uuid.New(), "v1", transcript()); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if matcher.called {
		t.Fatalf("fully covered state must not reach the matcher")
	}
}

func TestExtractEmptyTranscriptNoop(t *testing.T) {
	repo := &voiceRepo{settings: voiceSettings()}
	matcher := &voiceMatcher{}
	e := newExtractor(repo, matcher, &recordingFinalizer{})

	if err := e.Extract(context.Background(), uuid.New(), "v1", nil); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if matcher.called {
		t.Fatalf("empty transcript must not reach the matcher")
	}
}
