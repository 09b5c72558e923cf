// Package voice extracts qualifying answers from completed call transcripts.
// It is the post-call batch variant of the late-answer scanner: one matcher
// call over the whole transcript, no per-message gates (a full transcript is
// assumed worth scanning), and the shared finalizer when coverage completes.
package voice

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"chatwidget_backend/internal/qualify/domain"
	"chatwidget_backend/internal/qualify/processor"
	"chatwidget_backend/internal/qualify/repository"
	"chatwidget_backend/internal/qualify/scanner"
	"chatwidget_backend/internal/qualify/settings"
	"chatwidget_backend/platform/apperr"
	"chatwidget_backend/platform/logger"
)

// TranscriptMessage is one utterance of a completed call.
type TranscriptMessage struct {
	Role string `json:"role"` // "visitor" or "agent"
	Text string `json:"text"`
}

// Finalizer recomputes the terminal verdict when every question is covered.
// The interceptor service implements it, so chat and voice verdicts are
// computed by the same code path.
type Finalizer interface {
	FinalizeIfCovered(ctx context.Context, organizationID uuid.UUID, visitorID string) error
}

// Extractor runs once per completed voice call.
type Extractor struct {
	repo      repository.Repository
	resolver  *settings.Resolver
	matcher   scanner.Matcher
	finalizer Finalizer
	log       *logger.Logger
	limits    scanner.Thresholds
}

// New creates a transcript extractor.
func New(repo repository.Repository, resolver *settings.Resolver, matcher scanner.Matcher, finalizer Finalizer, log *logger.Logger, limits scanner.Thresholds) *Extractor {
	return &Extractor{
		repo:      repo,
		resolver:  resolver,
		matcher:   matcher,
		finalizer: finalizer,
		log:       log,
		limits:    limits,
	}
}

// Extract scans the transcript for answers to every question that still
// lacks one, saves the confident finds, and finalizes when coverage is
// complete. Invoked out-of-band from the call-ended webhook.
func (e *Extractor) Extract(ctx context.Context, organizationID uuid.UUID, visitorID string, messages []TranscriptMessage) error {
	transcript := flattenTranscript(messages)
	if strings.TrimSpace(transcript) == "" {
		return nil
	}

	cfg, err := e.resolver.Resolve(ctx, organizationID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}
	questions := cfg.EnabledQuestions()
	if len(questions) == 0 {
		return nil
	}

	customer, err := e.repo.GetOrCreateCustomer(ctx, organizationID, visitorID)
	if err != nil {
		return err
	}

	unanswered := customer.CaptureState.UnansweredQuestions(questions)
	if len(unanswered) == 0 {
		return nil
	}

	matches, err := e.matcher.MatchSkipped(ctx, questions, unanswered, transcript, e.limits.Accept)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return nil
	}

	lead, leadErr := e.repo.GetOpenLead(ctx, organizationID, customer.ID)

	for _, m := range matches {
		if m.QuestionIndex < 0 || m.QuestionIndex >= len(questions) {
			continue
		}
		question := questions[m.QuestionIndex]
		answer := strings.TrimSpace(m.Answer)

		saved := false
		if m.Confidence >= e.limits.Promote {
			// Re-read before every write: the blob is whole-record
			// read-modify-write and another channel may have advanced it.
			fresh, err := e.repo.GetCustomer(ctx, organizationID, visitorID)
			if err != nil {
				e.log.DatabaseError("voice_reread", err)
				continue
			}
			state := fresh.CaptureState
			if existing, ok := state.AnswerFor(question.Text); ok && !existing.Skipped() {
				// First genuine answer wins; a transcript never overwrites it.
				continue
			}
			state.RecordAnswer(domain.Answer{
				Question:  question.Text,
				Answer:    answer,
				RawText:   answer,
				Mandatory: question.Mandatory,
				Reasoning: "extracted from voice transcript",
			})
			state.CaptureSource = domain.SourceVoice
			if err := e.repo.SaveCaptureState(ctx, organizationID, visitorID, state); err != nil {
				e.log.DatabaseError("voice_save", err)
				continue
			}
			saved = true
		}

		if leadErr == nil {
			if _, err := e.repo.AppendLateAnswer(ctx, repository.AppendLateAnswerParams{
				OrganizationID: organizationID,
				LeadID:         lead.ID,
				QuestionIndex:  m.QuestionIndex,
				Question:       question.Text,
				Answer:         answer,
				RawMessage:     transcript,
				Confidence:     m.Confidence,
				CaptureType:    repository.CaptureTypeEmbedded,
				Promoted:       saved,
			}); err != nil {
				e.log.DatabaseError("voice_append_audit", err)
			}
		}
	}

	return e.finalizer.FinalizeIfCovered(ctx, organizationID, visitorID)
}

func flattenTranscript(messages []TranscriptMessage) string {
	var b strings.Builder
	for _, m := range messages {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// Ensure the matcher contract stays aligned with the scanner's.
var _ scanner.Matcher = (*processor.Processor)(nil)
