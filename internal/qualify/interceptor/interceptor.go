// Package interceptor owns the state machine for the active qualifying flow.
// It runs before normal chat handling: when a flow is in progress it owns the
// turn and returns the reply; otherwise it reports no opinion and the chat
// pipeline proceeds. Nothing here may ever surface an error to the visitor.
package interceptor

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatwidget_backend/internal/events"
	"chatwidget_backend/internal/qualify/domain"
	"chatwidget_backend/internal/qualify/processor"
	"chatwidget_backend/internal/qualify/repository"
	"chatwidget_backend/internal/qualify/settings"
	"chatwidget_backend/platform/apperr"
	"chatwidget_backend/platform/logger"
)

// askCountDeferLimit is how many widget loads may re-offer the capture form
// before the visitor is left alone for the deferral window.
const askCountDeferLimit = 3

// TurnProcessor is the single-call decision maker for one qualifying turn.
type TurnProcessor interface {
	Process(ctx context.Context, req processor.Request) processor.Decision
}

// Reply is a canned response the flow returns when it owns the turn.
type Reply struct {
	Text string `json:"text"`
}

// FormResult reports whether a form submission started the question flow.
type FormResult struct {
	StartedQualifying bool   `json:"started_qualifying"`
	FirstQuestion     string `json:"first_question,omitempty"`
}

// StatusResult is what the widget reads on load to decide whether to show
// the capture form.
type StatusResult struct {
	FormDone       bool   `json:"form_done"`
	QualifyingDone bool   `json:"qualifying_done"`
	ShowForm       bool   `json:"show_form"`
	State          string `json:"state"`
}

// Service drives the qualifying flow state machine.
type Service struct {
	repo     repository.Repository
	resolver *settings.Resolver
	proc     TurnProcessor
	bus      events.Bus
	log      *logger.Logger

	deferralWindow time.Duration
	seedFunc       func() int64
	nowFunc        func() time.Time
}

// New creates the interceptor service.
func New(repo repository.Repository, resolver *settings.Resolver, proc TurnProcessor, bus events.Bus, log *logger.Logger, deferralWindow time.Duration) *Service {
	return &Service{
		repo:           repo,
		resolver:       resolver,
		proc:           proc,
		bus:            bus,
		log:            log,
		deferralWindow: deferralWindow,
		seedFunc:       func() int64 { return time.Now().UnixNano() },
		nowFunc:        time.Now,
	}
}

// Intercept handles one inbound chat message. It returns a non-nil Reply when
// the flow owns the turn and nil when normal chat should proceed. A broken
// qualifying flow must never block a response to the user, so every failure
// inside falls through to nil.
func (s *Service) Intercept(ctx context.Context, organizationID uuid.UUID, visitorID, sessionID, message string, history []processor.Turn) *Reply {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("interceptor panic, falling through to chat", "panic", r)
		}
	}()

	reply, err := s.intercept(ctx, organizationID, visitorID, sessionID, message, history)
	if err != nil {
		s.log.Warn("interception aborted, falling through to chat",
			"tenant_id", organizationID.String(),
			"visitor_id", visitorID,
			"error", err.Error(),
		)
		return nil
	}
	return reply
}

func (s *Service) intercept(ctx context.Context, organizationID uuid.UUID, visitorID, sessionID, message string, history []processor.Turn) (*Reply, error) {
	// Handoff phrases bypass the flow entirely so the handoff path can run,
	// and skip the model call along the way.
	if containsHandoffIntent(message) {
		return nil, nil
	}

	cfg, err := s.resolver.Resolve(ctx, organizationID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}
	questions := cfg.EnabledQuestions()
	if !cfg.Enabled || len(questions) == 0 {
		return nil, nil
	}

	customer, err := s.repo.GetCustomer(ctx, organizationID, visitorID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}

	state := customer.CaptureState
	if state.QualifyingStatus != domain.QualifyingInProgress {
		return nil, nil
	}

	idx := state.CurrentQualifyingIndex
	if idx < 0 || idx >= len(questions) {
		// Defensive: should not occur under normal transitions. Finalize
		// with whatever was recorded and fall through.
		s.finalize(ctx, organizationID, visitorID, customer.ID, &state)
		return nil, nil
	}

	question := questions[idx]
	isLast := idx == len(questions)-1
	var next *domain.Question
	if !isLast {
		next = &questions[idx+1]
	}

	decision := s.proc.Process(ctx, processor.Request{
		Question:     question,
		NextQuestion: next,
		IsLast:       isLast,
		RetryCount:   state.QuestionRetryCount,
		Message:      message,
		History:      history,
	})

	// Safety override: a redirect that still extracted an answer is a false
	// negative on topicality, not evidence the user failed to answer.
	if decision.Action == processor.ActionRedirect && strings.TrimSpace(decision.ExtractedAnswer) != "" {
		decision.Action = processor.ActionAccept
	}

	switch decision.Action {
	case processor.ActionRedirect:
		// No state mutation: the user must still produce some answer.
		return &Reply{Text: decision.Response}, nil

	case processor.ActionFollowup, processor.ActionProbe:
		if state.QuestionRetryCount >= len(question.Alternates()) {
			// Alternates exhausted: the flow must advance. Accept whatever
			// was extracted, or record a skip.
			return s.resolveAnswer(ctx, organizationID, visitorID, customer.ID, &state, question, decision, message, isLast)
		}
		state.QuestionRetryCount++
		if err := s.repo.SaveCaptureState(ctx, organizationID, visitorID, state); err != nil {
			return nil, err
		}
		return &Reply{Text: decision.Response}, nil

	case processor.ActionAccept, processor.ActionSkip:
		return s.resolveAnswer(ctx, organizationID, visitorID, customer.ID, &state, question, decision, message, isLast)
	}

	return nil, nil
}

// resolveAnswer records the turn's answer and either advances the cursor or
// completes the flow.
func (s *Service) resolveAnswer(ctx context.Context, organizationID uuid.UUID, visitorID string, customerID uuid.UUID, state *domain.CaptureState, question domain.Question, decision processor.Decision, message string, isLast bool) (*Reply, error) {
	value := strings.TrimSpace(decision.ExtractedAnswer)
	var qualified *bool
	if decision.Action == processor.ActionSkip || value == "" {
		value = domain.SkippedPlaceholder
	} else {
		qualified = decision.Qualified
	}

	ans := domain.Answer{
		Question:  question.Text,
		Answer:    value,
		RawText:   message,
		Qualified: qualified,
		Mandatory: question.Mandatory,
		Reasoning: decision.Reasoning,
	}
	if state.QuestionRetryCount > 0 {
		ans.ActualQuestionAsked = question.EffectiveText(state.QuestionRetryCount)
	}
	state.RecordAnswer(ans)

	if isLast {
		s.finalize(ctx, organizationID, visitorID, customerID, state)
		text := strings.TrimSpace(decision.Response)
		if text == "" {
			text = domain.PickPhrase(s.seedFunc(), domain.CompletionAcks)
		}
		return &Reply{Text: text}, nil
	}

	state.AdvanceQuestion()
	if err := s.repo.SaveCaptureState(ctx, organizationID, visitorID, *state); err != nil {
		return nil, err
	}
	s.log.QualifyTransition(organizationID.String(), visitorID, string(domain.QualifyingInProgress), string(domain.QualifyingInProgress), state.CurrentQualifyingIndex)
	return &Reply{Text: decision.Response}, nil
}

// finalize computes the terminal verdict, persists it, mirrors it onto the
// reporting lead, and publishes the completion event. Storage failures here
// are logged and swallowed: the conversation continues either way.
func (s *Service) finalize(ctx context.Context, organizationID uuid.UUID, visitorID string, customerID uuid.UUID, state *domain.CaptureState) {
	verdict := domain.Finalize(state.Answers)

	if err := state.TransitionQualifying(domain.QualifyingCompleted); err != nil {
		s.log.Warn("finalize on non-finalizable state", "error", err.Error())
	}
	state.Status = verdict.Status
	state.QualificationReasoning = verdict.Reasoning
	state.UpdatedAt = s.nowFunc()

	if err := s.repo.SaveCaptureState(ctx, organizationID, visitorID, *state); err != nil {
		s.log.DatabaseError("finalize_save_state", err)
		return
	}
	s.log.QualifyTransition(organizationID.String(), visitorID, string(domain.QualifyingInProgress), string(domain.QualifyingCompleted), state.CurrentQualifyingIndex)

	lead, err := s.repo.GetOpenLead(ctx, organizationID, customerID)
	if err != nil {
		// Reporting row missing: skip the mirror write, keep the conversation.
		s.log.DatabaseError("finalize_get_lead", err)
		return
	}
	reasoning := verdict.Reasoning
	if err := s.repo.UpdateLeadAnswers(ctx, organizationID, lead.ID, state.Answers, string(verdict.Status), &reasoning); err != nil {
		s.log.DatabaseError("finalize_update_lead", err)
		return
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.QualificationCompleted{
			BaseEvent:      events.NewBaseEvent(),
			OrganizationID: organizationID,
			VisitorID:      visitorID,
			LeadID:         lead.ID,
			Status:         string(verdict.Status),
			Reasoning:      verdict.Reasoning,
		})
	}
}

// SubmitForm records a capture form submission (or inline email capture) and
// transitions pending -> in_progress when the tenant has live questions.
func (s *Service) SubmitForm(ctx context.Context, organizationID uuid.UUID, visitorID, sessionID string, form map[string]string) (FormResult, error) {
	customer, err := s.repo.GetOrCreateCustomer(ctx, organizationID, visitorID)
	if err != nil {
		return FormResult{}, err
	}

	var email, name *string
	if v, ok := form["email"]; ok && strings.TrimSpace(v) != "" {
		trimmed := strings.TrimSpace(v)
		email = &trimmed
	}
	if v, ok := form["name"]; ok && strings.TrimSpace(v) != "" {
		trimmed := strings.TrimSpace(v)
		name = &trimmed
	}
	if email != nil || name != nil {
		if err := s.repo.UpdateCustomerContact(ctx, organizationID, visitorID, email, name); err != nil {
			s.log.DatabaseError("submit_form_contact", err)
		}
	}

	state := customer.CaptureState
	if state.QualifyingStatus != domain.QualifyingPending {
		// Duplicate submit or a flow already underway: report current shape.
		return FormResult{StartedQualifying: state.QualifyingStatus == domain.QualifyingInProgress}, nil
	}

	lead, err := s.repo.CreateLead(ctx, organizationID, customer.ID, form)
	if err != nil {
		return FormResult{}, err
	}

	cfg, err := s.resolver.Resolve(ctx, organizationID)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return FormResult{}, err
	}
	questions := cfg.EnabledQuestions()

	if !cfg.Enabled || len(questions) == 0 {
		state.Status = domain.StatusFormCompleted
		if err := state.TransitionQualifying(domain.QualifyingSkipped); err != nil {
			return FormResult{}, err
		}
		state.CaptureSource = domain.SourceForm
		state.UpdatedAt = s.nowFunc()
		if err := s.repo.SaveCaptureState(ctx, organizationID, visitorID, state); err != nil {
			return FormResult{}, err
		}
		return FormResult{StartedQualifying: false}, nil
	}

	if err := state.StartQualifying(); err != nil {
		return FormResult{}, err
	}
	state.CaptureSource = domain.SourceForm
	state.UpdatedAt = s.nowFunc()
	if err := s.repo.SaveCaptureState(ctx, organizationID, visitorID, state); err != nil {
		return FormResult{}, err
	}
	s.log.QualifyTransition(organizationID.String(), visitorID, string(domain.QualifyingPending), string(domain.QualifyingInProgress), 0)

	if s.bus != nil {
		s.bus.Publish(ctx, events.QualifyingStarted{
			BaseEvent:      events.NewBaseEvent(),
			OrganizationID: organizationID,
			VisitorID:      visitorID,
			LeadID:         lead.ID,
			QuestionCount:  len(questions),
		})
	}

	leadIn := domain.PickPhrase(s.seedFunc(), domain.FirstQuestionLeadIns)
	return FormResult{
		StartedQualifying: true,
		FirstQuestion:     leadIn + " " + questions[0].Text,
	}, nil
}

// Status is read by the widget on load. It lazily creates the visitor
// record, counts the visit, and applies the ask-count deferral cascade.
func (s *Service) Status(ctx context.Context, organizationID uuid.UUID, visitorID string) (StatusResult, error) {
	customer, err := s.repo.GetOrCreateCustomer(ctx, organizationID, visitorID)
	if err != nil {
		return StatusResult{}, err
	}

	state := customer.CaptureState
	now := s.nowFunc()
	state.Visits++

	showForm := false
	if (state.Status == domain.StatusPending || state.Status == domain.StatusFormShown) && !state.Deferred(now) {
		state.AskCount++
		if state.AskCount > askCountDeferLimit {
			until := now.Add(s.deferralWindow)
			state.DeferredUntil = &until
			state.Status = domain.StatusDeferred
		} else {
			showForm = true
			state.Status = domain.StatusFormShown
		}
	} else if state.Status == domain.StatusDeferred && !state.Deferred(now) {
		// Window elapsed: offer the form one more round.
		state.Status = domain.StatusFormShown
		state.AskCount = 1
		state.DeferredUntil = nil
		showForm = true
	}

	state.UpdatedAt = now
	if err := s.repo.SaveCaptureState(ctx, organizationID, visitorID, state); err != nil {
		return StatusResult{}, err
	}

	formDone := state.Status == domain.StatusFormCompleted ||
		state.QualifyingStatus != domain.QualifyingPending
	return StatusResult{
		FormDone:       formDone,
		QualifyingDone: state.QualifyingStatus == domain.QualifyingCompleted || state.QualifyingStatus == domain.QualifyingSkipped,
		ShowForm:       showForm,
		State:          string(state.Status),
	}, nil
}

// FinalizeIfCovered recomputes the verdict when every enabled question has a
// usable answer. The voice extractor calls this after saving its finds, so
// terminal verdicts are computed identically regardless of channel.
func (s *Service) FinalizeIfCovered(ctx context.Context, organizationID uuid.UUID, visitorID string) error {
	cfg, err := s.resolver.Resolve(ctx, organizationID)
	if err != nil {
		return err
	}
	questions := cfg.EnabledQuestions()
	if len(questions) == 0 {
		return nil
	}

	customer, err := s.repo.GetCustomer(ctx, organizationID, visitorID)
	if err != nil {
		return err
	}
	state := customer.CaptureState
	if state.QualifyingStatus == domain.QualifyingCompleted {
		return nil
	}
	if len(state.UnansweredQuestions(questions)) > 0 {
		return nil
	}

	// Coverage is complete; make completion reachable from any live state.
	if state.QualifyingStatus == domain.QualifyingPending {
		if err := state.StartQualifying(); err != nil {
			return err
		}
		state.CurrentQualifyingIndex = len(questions)
	}
	s.finalize(ctx, organizationID, visitorID, customer.ID, &state)
	return nil
}
