package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"chatwidget_backend/internal/qualify/domain"
	"chatwidget_backend/internal/qualify/processor"
	"chatwidget_backend/internal/qualify/repository"
	"chatwidget_backend/internal/qualify/settings"
	"chatwidget_backend/platform/apperr"
	"chatwidget_backend/platform/logger"
)

func TestTextGates(t *testing.T) {
	cases := []struct {
		name    string
		message string
		want    string
	}{
		{"too short", "hi there", gateTooShort},
		{"refusal", "I'd rather not say how big we are", gateRefusal},
		{"refusal dont want", "I don't want to answer that question", gateRefusal},
		{"no indicators", "the weather is lovely this afternoon", gateNoIndicators},
		{"digits pass", "we are around 45 right now", ""},
		{"vocabulary pass", "our team keeps growing every quarter", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := passesTextGates(tc.message, 12); got != tc.want {
				t.Fatalf("passesTextGates(%q) = %q, want %q", tc.message, got, tc.want)
			}
		})
	}
}

// scanRepo is an in-memory Repository for scanner tests.
type scanRepo struct {
	customer    repository.Customer
	hasCustomer bool
	lead        repository.Lead
	hasLead     bool
	settings    domain.Settings
	audit       []repository.AppendLateAnswerParams
	mirrored    bool
}

func (r *scanRepo) GetOrCreateCustomer(_ context.Context, _ uuid.UUID, _ string) (repository.Customer, error) {
	return r.customer, nil
}

func (r *scanRepo) GetCustomer(_ context.Context, _ uuid.UUID, _ string) (repository.Customer, error) {
	if !r.hasCustomer {
		return repository.Customer{}, apperr.NotFound("visitor record not found")
	}
	return r.customer, nil
}

func (r *scanRepo) SaveCaptureState(_ context.Context, _ uuid.UUID, _ string, state domain.CaptureState) error {
	r.customer.CaptureState = state
	return nil
}

func (r *scanRepo) UpdateCustomerContact(_ context.Context, _ uuid.UUID, _ string, _, _ *string) error {
	return nil
}

func (r *scanRepo) CreateLead(_ context.Context, _, _ uuid.UUID, _ map[string]string) (repository.Lead, error) {
	return r.lead, nil
}

func (r *scanRepo) GetOpenLead(_ context.Context, _, _ uuid.UUID) (repository.Lead, error) {
	if !r.hasLead {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	return r.lead, nil
}

func (r *scanRepo) UpdateLeadAnswers(_ context.Context, _, _ uuid.UUID, _ []domain.Answer, _ string, _ *string) error {
	r.mirrored = true
	return nil
}

func (r *scanRepo) AppendLateAnswer(_ context.Context, params repository.AppendLateAnswerParams) (repository.LateAnswer, error) {
	r.audit = append(r.audit, params)
	return repository.LateAnswer{ID: uuid.New()}, nil
}

func (r *scanRepo) GetSettings(_ context.Context, _ uuid.UUID) (domain.Settings, error) {
	return r.settings, nil
}

func (r *scanRepo) TenantForWidgetKey(_ context.Context, _ string) (uuid.UUID, error) {
	return uuid.Nil, apperr.Unauthorized("unknown widget key")
}

// scriptedMatcher returns fixed matches and records whether it was called.
type scriptedMatcher struct {
	matches []processor.Match
	called  bool
	indices []int
}

func (m *scriptedMatcher) MatchSkipped(_ context.Context, _ []domain.Question, indices []int, _ string, _ float64) ([]processor.Match, error) {
	m.called = true
	m.indices = indices
	return m.matches, nil
}

func scanSettings() domain.Settings {
	return domain.Settings{
		Enabled: true,
		Questions: []domain.Question{
			{Text: "How many employees do you have?", Enabled: true, Mandatory: true},
			{Text: "What is your budget?", Enabled: true},
		},
	}
}

func newScanner(repo *scanRepo, matcher Matcher) *Scanner {
	resolver := settings.NewResolver(repo, time.Minute)
	return New(repo, resolver, matcher, nil, logger.New("test"), Thresholds{Accept: 0.6, Promote: 0.8, MinLen: 12})
}

func completedState() domain.CaptureState {
	state := domain.NewCaptureState()
	state.QualifyingStatus = domain.QualifyingCompleted
	state.Status = domain.StatusQualified
	state.Answers = []domain.Answer{
		{Question: "How many employees do you have?", Answer: domain.SkippedPlaceholder, Mandatory: true},
		{Question: "What is your budget?", Answer: "20k"},
	}
	return state
}

func seededRepo() *scanRepo {
	return &scanRepo{
		customer: repository.Customer{
			ID:           uuid.New(),
			CaptureState: completedState(),
		},
		hasCustomer: true,
		lead:        repository.Lead{ID: uuid.New()},
		hasLead:     true,
		settings:    scanSettings(),
	}
}

func TestScanSkipsWhenFlowActive(t *testing.T) {
	repo := seededRepo()
	repo.customer.CaptureState.QualifyingStatus = domain.QualifyingInProgress
	matcher := &scriptedMatcher{}
	s := newScanner(repo, matcher)

	if err := s.Scan(context.Background(), uuid.New(), "v1", "we have about 40 people"); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if matcher.called {
		t.Fatalf("active flow must not reach the matcher")
	}
}

func TestScanSkipsUnknownVisitor(t *testing.T) {
	repo := seededRepo()
	repo.hasCustomer = false
	matcher := &scriptedMatcher{}
	s := newScanner(repo, matcher)

	if err := s.Scan(context.Background(), uuid.New(), "v1", "we have about 40 people"); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if matcher.called {
		t.Fatalf("unknown visitor must not reach the matcher")
	}
}

func TestScanSkipsWithoutSkippedQuestions(t *testing.T) {
	repo := seededRepo()
	repo.customer.CaptureState.Answers[0].Answer = "40 employees"
	matcher := &scriptedMatcher{}
	s := newScanner(repo, matcher)

	if err := s.Scan(context.Background(), uuid.New(), "v1", "we have about 40 people"); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if matcher.called {
		t.Fatalf("nothing skipped, matcher must not be called")
	}
}

func TestScanPromotesConfidentMatch(t *testing.T) {
	repo := seededRepo()
	matcher := &scriptedMatcher{matches: []processor.Match{
		{QuestionIndex: 0, Answer: "40 employees", Confidence: 0.92},
	}}
	s := newScanner(repo, matcher)

	if err := s.Scan(context.Background(), uuid.New(), "v1", "by the way we have about 40 people"); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !matcher.called {
		t.Fatalf("matcher should run")
	}
	if len(matcher.indices) != 1 || matcher.indices[0] != 0 {
		t.Fatalf("matcher indices = %v, want [0]", matcher.indices)
	}

	ans, ok := repo.customer.CaptureState.AnswerFor("How many employees do you have?")
	if !ok || ans.Answer != "40 employees" {
		t.Fatalf("placeholder not promoted: %+v", ans)
	}
	if len(repo.audit) != 1 {
		t.Fatalf("audit rows = %d, want 1", len(repo.audit))
	}
	if !repo.audit[0].Promoted {
		t.Fatalf("audit row must record the promotion")
	}
	if repo.audit[0].CaptureType != repository.CaptureTypeLateSingle {
		t.Fatalf("capture type = %s, want late_single", repo.audit[0].CaptureType)
	}
	if !repo.mirrored {
		t.Fatalf("promoted answers must be mirrored onto the lead")
	}
}

func TestScanPromotesWhenLeadRowMissing(t *testing.T) {
	repo := seededRepo()
	repo.hasLead = false
	matcher := &scriptedMatcher{matches: []processor.Match{
		{QuestionIndex: 0, Answer: "40 employees", Confidence: 0.92},
	}}
	s := newScanner(repo, matcher)

	if err := s.Scan(context.Background(), uuid.New(), "v1", "by the way we have about 40 people"); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	ans, ok := repo.customer.CaptureState.AnswerFor("How many employees do you have?")
	if !ok || ans.Answer != "40 employees" {
		t.Fatalf("missing lead row must not block promotion, got %+v", ans)
	}
	if len(repo.audit) != 0 {
		t.Fatalf("audit rows are lead-bound, got %d", len(repo.audit))
	}
	if repo.mirrored {
		t.Fatalf("no lead row, mirror write must be skipped")
	}
}

func TestScanAuditsWithoutPromotingMidConfidence(t *testing.T) {
	repo := seededRepo()
	matcher := &scriptedMatcher{matches: []processor.Match{
		{QuestionIndex: 0, Answer: "40 employees", Confidence: 0.7},
	}}
	s := newScanner(repo, matcher)

	if err := s.Scan(context.Background(), uuid.New(), "v1", "by the way we have about 40 people"); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	ans, _ := repo.customer.CaptureState.AnswerFor("How many employees do you have?")
	if ans.Answer != domain.SkippedPlaceholder {
		t.Fatalf("mid confidence must not touch the state, got %q", ans.Answer)
	}
	if len(repo.audit) != 1 || repo.audit[0].Promoted {
		t.Fatalf("expected one unpromoted audit row, got %+v", repo.audit)
	}
	if repo.mirrored {
		t.Fatalf("nothing promoted, lead must not be rewritten")
	}
}

func TestScanNeverOverwritesGenuineAnswer(t *testing.T) {
	repo := seededRepo()
	// Both questions skipped so the budget question reaches the matcher, but
	// a concurrent writer fills it before the promotion write.
	repo.customer.CaptureState.Answers[1].Answer = domain.SkippedPlaceholder
	matcher := &scriptedMatcher{matches: []processor.Match{
		{QuestionIndex: 1, Answer: "99k", Confidence: 0.95},
	}}
	s := newScanner(repo, matcher)

	// Simulate the concurrent write via the re-read: the scanner re-reads the
	// record before promoting, and finds a genuine answer already there.
	repo.customer.CaptureState.Answers[1].Answer = "20k"

	if err := s.Scan(context.Background(), uuid.New(), "v1", "our budget is around 99k"); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	ans, _ := repo.customer.CaptureState.AnswerFor("What is your budget?")
	if ans.Answer != "20k" {
		t.Fatalf("genuine answer overwritten: %q", ans.Answer)
	}
	if len(repo.audit) != 1 || repo.audit[0].Promoted {
		t.Fatalf("expected unpromoted audit row, got %+v", repo.audit)
	}
}

func TestScanCaptureTypeMultiAnswer(t *testing.T) {
	repo := seededRepo()
	repo.customer.CaptureState.Answers[1].Answer = domain.SkippedPlaceholder
	matcher := &scriptedMatcher{matches: []processor.Match{
		{QuestionIndex: 0, Answer: "40 employees", Confidence: 0.9},
		{QuestionIndex: 1, Answer: "20k", Confidence: 0.9},
	}}
	s := newScanner(repo, matcher)

	if err := s.Scan(context.Background(), uuid.New(), "v1", "we're 40 people with a 20k budget"); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(repo.audit) != 2 {
		t.Fatalf("audit rows = %d, want 2", len(repo.audit))
	}
	for _, row := range repo.audit {
		if row.CaptureType != repository.CaptureTypeMultiAnswer {
			t.Fatalf("capture type = %s, want multi_answer", row.CaptureType)
		}
	}
}

func TestScanCaptureTypeReturnVisit(t *testing.T) {
	repo := seededRepo()
	repo.customer.CaptureState.Visits = 3
	matcher := &scriptedMatcher{matches: []processor.Match{
		{QuestionIndex: 0, Answer: "40 employees", Confidence: 0.9},
	}}
	s := newScanner(repo, matcher)

	if err := s.Scan(context.Background(), uuid.New(), "v1", "we have about 40 people"); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(repo.audit) != 1 || repo.audit[0].CaptureType != repository.CaptureTypeReturnVisit {
		t.Fatalf("expected return_visit capture, got %+v", repo.audit)
	}
}
