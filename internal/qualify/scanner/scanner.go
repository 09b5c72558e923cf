// Package scanner mines ordinary chat messages for answers to questions the
// visitor previously skipped. It always runs out-of-band from the chat turn:
// its failures are logged and swallowed, never surfaced to the visitor.
package scanner

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"chatwidget_backend/internal/events"
	"chatwidget_backend/internal/qualify/domain"
	"chatwidget_backend/internal/qualify/processor"
	"chatwidget_backend/internal/qualify/repository"
	"chatwidget_backend/internal/qualify/settings"
	"chatwidget_backend/platform/apperr"
	"chatwidget_backend/platform/logger"
)

// Matcher is the batched matching primitive shared with the voice extractor.
type Matcher interface {
	MatchSkipped(ctx context.Context, questions []domain.Question, indices []int, text string, acceptThreshold float64) ([]processor.Match, error)
}

// Thresholds carries the two confidence bars: matches at or above Accept are
// audit-logged; only matches at or above Promote replace a canonical
// placeholder.
type Thresholds struct {
	Accept  float64
	Promote float64
	MinLen  int
}

// Scanner is the late-answer recovery service.
type Scanner struct {
	repo     repository.Repository
	resolver *settings.Resolver
	matcher  Matcher
	bus      events.Bus
	log      *logger.Logger
	limits   Thresholds
}

// New creates a scanner.
func New(repo repository.Repository, resolver *settings.Resolver, matcher Matcher, bus events.Bus, log *logger.Logger, limits Thresholds) *Scanner {
	return &Scanner{
		repo:     repo,
		resolver: resolver,
		matcher:  matcher,
		bus:      bus,
		log:      log,
		limits:   limits,
	}
}

// Scan checks one ordinary chat message for late answers. Gates run cheapest
// first and short-circuit before any model call.
func (s *Scanner) Scan(ctx context.Context, organizationID uuid.UUID, visitorID, message string) error {
	if gate := passesTextGates(message, s.limits.MinLen); gate != "" {
		s.log.ScannerSkipped(organizationID.String(), visitorID, gate)
		return nil
	}

	customer, err := s.repo.GetCustomer(ctx, organizationID, visitorID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.log.ScannerSkipped(organizationID.String(), visitorID, gateNoState)
			return nil
		}
		return err
	}
	state := customer.CaptureState

	// An in-progress flow already owns this message via the interceptor.
	if state.QualifyingStatus == domain.QualifyingInProgress {
		s.log.ScannerSkipped(organizationID.String(), visitorID, gateFlowActive)
		return nil
	}
	if len(state.Answers) == 0 {
		s.log.ScannerSkipped(organizationID.String(), visitorID, gateNoSkips)
		return nil
	}

	cfg, err := s.resolver.Resolve(ctx, organizationID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}
	questions := cfg.EnabledQuestions()

	skipped := state.SkippedQuestions(questions)
	if len(skipped) == 0 {
		s.log.ScannerSkipped(organizationID.String(), visitorID, gateNoSkips)
		return nil
	}

	matches, err := s.matcher.MatchSkipped(ctx, questions, skipped, message, s.limits.Accept)
	if err != nil || len(matches) == 0 {
		return err
	}

	captureType := repository.CaptureTypeLateSingle
	if len(matches) > 1 {
		captureType = repository.CaptureTypeMultiAnswer
	} else if state.Visits > 1 {
		captureType = repository.CaptureTypeReturnVisit
	}

	return s.saveMatches(ctx, organizationID, visitorID, customer.ID, questions, matches, message, captureType)
}

// saveMatches audit-logs every match and promotes the confident ones into
// the canonical capture state. The record is re-read before each promotion:
// the blob is whole-record read-modify-write, so a writer must never base a
// mutation on a copy read earlier in the pipeline.
func (s *Scanner) saveMatches(ctx context.Context, organizationID uuid.UUID, visitorID string, customerID uuid.UUID, questions []domain.Question, matches []processor.Match, rawMessage, captureType string) error {
	lead, leadErr := s.repo.GetOpenLead(ctx, organizationID, customerID)
	if leadErr != nil {
		// No reporting row: promotions still land in the capture state,
		// only the lead-bound audit and mirror writes are skipped.
		s.log.DatabaseError("late_answer_get_lead", leadErr)
	}

	promotedAny := false
	for _, m := range matches {
		if m.QuestionIndex < 0 || m.QuestionIndex >= len(questions) {
			continue
		}
		question := questions[m.QuestionIndex]

		promoted := false
		if m.Confidence >= s.limits.Promote {
			fresh, err := s.repo.GetCustomer(ctx, organizationID, visitorID)
			if err != nil {
				s.log.DatabaseError("late_answer_reread", err)
			} else {
				state := fresh.CaptureState
				if state.PromoteLateAnswer(question.Text, strings.TrimSpace(m.Answer), rawMessage, captureType) {
					if err := s.repo.SaveCaptureState(ctx, organizationID, visitorID, state); err != nil {
						s.log.DatabaseError("late_answer_promote", err)
					} else {
						promoted = true
						promotedAny = true
					}
				}
			}
		}

		if leadErr == nil {
			if _, err := s.repo.AppendLateAnswer(ctx, repository.AppendLateAnswerParams{
				OrganizationID: organizationID,
				LeadID:         lead.ID,
				QuestionIndex:  m.QuestionIndex,
				Question:       question.Text,
				Answer:         strings.TrimSpace(m.Answer),
				RawMessage:     rawMessage,
				Confidence:     m.Confidence,
				CaptureType:    captureType,
				Promoted:       promoted,
			}); err != nil {
				s.log.DatabaseError("late_answer_append", err)
			}
		}

		if promoted && s.bus != nil {
			s.bus.Publish(ctx, events.LateAnswerPromoted{
				BaseEvent:      events.NewBaseEvent(),
				OrganizationID: organizationID,
				VisitorID:      visitorID,
				LeadID:         lead.ID,
				Question:       question.Text,
				Confidence:     m.Confidence,
				CaptureType:    captureType,
			})
		}
	}

	if promotedAny && leadErr == nil {
		// Mirror the refreshed answers onto the reporting row.
		fresh, err := s.repo.GetCustomer(ctx, organizationID, visitorID)
		if err != nil {
			s.log.DatabaseError("late_answer_mirror_read", err)
			return nil
		}
		if err := s.repo.UpdateLeadAnswers(ctx, organizationID, lead.ID, fresh.CaptureState.Answers, string(fresh.CaptureState.Status), nil); err != nil {
			s.log.DatabaseError("late_answer_mirror", err)
		}
	}
	return nil
}
