package handler

import (
	"net/http"

	"chatwidget_backend/internal/qualify/interceptor"
	"chatwidget_backend/internal/qualify/processor"
	"chatwidget_backend/internal/qualify/transport"
	"chatwidget_backend/internal/qualify/voice"
	"chatwidget_backend/internal/scheduler"
	"chatwidget_backend/platform/httpkit"
	"chatwidget_backend/platform/logger"
	"chatwidget_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for the qualify module.
type Handler struct {
	svc        *interceptor.Service
	dispatcher scheduler.Dispatcher
	val        *validator.Validator
	log        *logger.Logger
}

// New creates a new qualify handler.
func New(svc *interceptor.Service, dispatcher scheduler.Dispatcher, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{svc: svc, dispatcher: dispatcher, val: val, log: log}
}

// RegisterRoutes registers the widget-facing routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/intercept", h.Intercept)
	rg.POST("/form", h.SubmitForm)
	rg.GET("/status/:visitorId", h.Status)
}

// RegisterWebhookRoutes registers the server-to-server callback routes.
func (h *Handler) RegisterWebhookRoutes(rg *gin.RouterGroup) {
	rg.POST("/voice/call-ended", h.CallEnded)
}

// Intercept handles one inbound widget message. It never fails the chat: a
// non-intercepted response tells the widget to continue with normal chat.
func (h *Handler) Intercept(c *gin.Context) {
	tenantID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return
	}

	var req transport.InterceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	history := make([]processor.Turn, 0, len(req.History))
	for _, turn := range req.History {
		history = append(history, processor.Turn{Role: turn.Role, Text: turn.Text})
	}

	reply := h.svc.Intercept(c.Request.Context(), tenantID, req.VisitorID, req.SessionID, req.Message, history)
	if reply != nil {
		httpkit.OK(c, transport.InterceptResponse{Intercepted: true, Reply: reply.Text})
		return
	}

	// Ordinary chat turn. Hand the message to the late-answer scanner out of
	// band so a slow scan never delays the chat response.
	if err := h.dispatcher.DispatchLateAnswerScan(c.Request.Context(), scheduler.LateAnswerScanPayload{
		OrganizationID: tenantID.String(),
		VisitorID:      req.VisitorID,
		Message:        req.Message,
	}); err != nil {
		h.log.Warn("failed to enqueue late answer scan",
			"tenant_id", tenantID.String(),
			"visitor_id", req.VisitorID,
			"error", err.Error(),
		)
	}

	httpkit.OK(c, transport.InterceptResponse{Intercepted: false})
}

func (h *Handler) SubmitForm(c *gin.Context) {
	tenantID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return
	}

	var req transport.FormSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.SubmitForm(c.Request.Context(), tenantID, req.VisitorID, req.SessionID, req.Fields)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FormSubmitResponse{
		StartedQualifying: result.StartedQualifying,
		FirstQuestion:     result.FirstQuestion,
	})
}

func (h *Handler) Status(c *gin.Context) {
	tenantID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return
	}

	visitorID := c.Param("visitorId")
	if err := h.val.Var(visitorID, "required,min=1,max=200"); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.Status(c.Request.Context(), tenantID, visitorID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.StatusResponse{
		FormDone:       result.FormDone,
		QualifyingDone: result.QualifyingDone,
		ShowForm:       result.ShowForm,
		State:          result.State,
	})
}

// CallEnded accepts a completed voice transcript and enqueues extraction.
func (h *Handler) CallEnded(c *gin.Context) {
	var req transport.CallEndedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	if _, err := uuid.Parse(req.OrganizationID); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	messages := make([]voice.TranscriptMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, voice.TranscriptMessage{Role: m.Role, Text: m.Text})
	}

	if err := h.dispatcher.DispatchVoiceTranscript(c.Request.Context(), scheduler.VoiceTranscriptPayload{
		OrganizationID: req.OrganizationID,
		VisitorID:      req.VisitorID,
		Messages:       messages,
	}); err != nil {
		h.log.Error("failed to enqueue voice transcript",
			"tenant_id", req.OrganizationID,
			"visitor_id", req.VisitorID,
			"error", err.Error(),
		)
		httpkit.Error(c, http.StatusServiceUnavailable, "transcript intake unavailable", nil)
		return
	}

	httpkit.Accepted(c)
}
