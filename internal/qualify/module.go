// Package qualify provides the lead qualification conversation engine.
package qualify

import (
	"context"

	"chatwidget_backend/internal/events"
	apphttp "chatwidget_backend/internal/http"
	"chatwidget_backend/internal/qualify/handler"
	"chatwidget_backend/internal/qualify/interceptor"
	"chatwidget_backend/internal/qualify/processor"
	"chatwidget_backend/internal/qualify/repository"
	"chatwidget_backend/internal/qualify/scanner"
	"chatwidget_backend/internal/qualify/settings"
	"chatwidget_backend/internal/qualify/voice"
	"chatwidget_backend/internal/scheduler"
	"chatwidget_backend/platform/config"
	"chatwidget_backend/platform/logger"
	"chatwidget_backend/platform/validator"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ModuleConfig combines the config interfaces the module needs.
type ModuleConfig interface {
	config.QualifyConfig
}

// Module wires the qualification engine: settings resolution, the in-chat
// interceptor, the out-of-band scanner, and voice transcript extraction.
type Module struct {
	handler     *handler.Handler
	interceptor *interceptor.Service
	scanner     *scanner.Scanner
	extractor   *voice.Extractor
	resolver    *settings.Resolver
	log         *logger.Logger
}

// NewModule creates the qualify module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, llm processor.Inference, dispatcher scheduler.Dispatcher, eventBus events.Bus, cfg ModuleConfig, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	resolver := settings.NewResolver(repo, cfg.GetSettingsCacheTTL())
	proc := processor.New(llm, log)

	svc := interceptor.New(repo, resolver, proc, eventBus, log, cfg.GetDeferralWindow())

	limits := scanner.Thresholds{
		Accept:  cfg.GetLateAnswerAcceptThreshold(),
		Promote: cfg.GetLateAnswerPromoteThreshold(),
		MinLen:  cfg.GetScannerMinMessageLen(),
	}
	scan := scanner.New(repo, resolver, proc, eventBus, log, limits)
	extractor := voice.New(repo, resolver, proc, svc, log, limits)

	h := handler.New(svc, dispatcher, val, log)

	return &Module{
		handler:     h,
		interceptor: svc,
		scanner:     scan,
		extractor:   extractor,
		resolver:    resolver,
		log:         log,
	}
}

// RegisterHandlers subscribes the module to its own lifecycle events so the
// qualification trail shows up in the structured log stream.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.QualifyingStarted{}.EventName(), m)
	bus.Subscribe(events.QualificationCompleted{}.EventName(), m)
	bus.Subscribe(events.LateAnswerPromoted{}.EventName(), m)
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(_ context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.QualifyingStarted:
		m.log.Info("qualifying flow started",
			"organization_id", e.OrganizationID.String(),
			"visitor_id", e.VisitorID,
			"lead_id", e.LeadID.String(),
			"question_count", e.QuestionCount)
	case events.QualificationCompleted:
		m.log.Info("qualification completed",
			"organization_id", e.OrganizationID.String(),
			"visitor_id", e.VisitorID,
			"lead_id", e.LeadID.String(),
			"status", e.Status)
	case events.LateAnswerPromoted:
		m.log.Info("late answer promoted",
			"organization_id", e.OrganizationID.String(),
			"visitor_id", e.VisitorID,
			"question", e.Question,
			"confidence", e.Confidence,
			"capture_type", e.CaptureType)
	}
	return nil
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "qualify"
}

// RegisterRoutes registers the module's routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Widget.Group("/qualify"))
	m.handler.RegisterWebhookRoutes(ctx.Webhook)
}

// Resolver exposes the settings resolver so the router can authenticate
// widget keys against cached tenant settings.
func (m *Module) Resolver() *settings.Resolver {
	return m.resolver
}

// Scanner returns the late-answer scanner for the background worker.
func (m *Module) Scanner() *scanner.Scanner {
	return m.scanner
}

// Extractor returns the voice transcript extractor for the background worker.
func (m *Module) Extractor() *voice.Extractor {
	return m.extractor
}

// InvalidateSettings drops a tenant's cached settings after an update.
func (m *Module) InvalidateSettings(tenantID uuid.UUID) {
	m.resolver.Invalidate(tenantID)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
