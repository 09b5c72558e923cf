package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"chatwidget_backend/internal/qualify/scanner"
	"chatwidget_backend/internal/qualify/voice"
	"chatwidget_backend/platform/config"
	"chatwidget_backend/platform/logger"
)

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scanner   *scanner.Scanner
	extractor *voice.Extractor
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, scan *scanner.Scanner, extractor *voice.Extractor, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		scanner:   scan,
		extractor: extractor,
		log:       log,
	}

	mux.HandleFunc(TaskLateAnswerScan, w.handleLateAnswerScan)
	mux.HandleFunc(TaskVoiceTranscript, w.handleVoiceTranscript)

	return w, nil
}

// handleLateAnswerScan runs the scanner for one mined chat message. Scan
// failures are logged and dropped, not retried: the recovery is an optional
// enhancement and a stale message loses value fast.
func (w *Worker) handleLateAnswerScan(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseLateAnswerScanPayload(task)
	if err != nil {
		return err
	}

	organizationID, err := uuid.Parse(payload.OrganizationID)
	if err != nil {
		return err
	}

	if err := w.scanner.Scan(ctx, organizationID, payload.VisitorID, payload.Message); err != nil {
		w.log.Warn("late answer scan failed",
			"tenant_id", payload.OrganizationID,
			"visitor_id", payload.VisitorID,
			"error", err.Error(),
		)
	}
	return nil
}

func (w *Worker) handleVoiceTranscript(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseVoiceTranscriptPayload(task)
	if err != nil {
		return err
	}

	organizationID, err := uuid.Parse(payload.OrganizationID)
	if err != nil {
		return err
	}

	if err := w.extractor.Extract(ctx, organizationID, payload.VisitorID, payload.Messages); err != nil {
		w.log.Warn("voice transcript extraction failed",
			"tenant_id", payload.OrganizationID,
			"visitor_id", payload.VisitorID,
			"error", err.Error(),
		)
	}
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
