// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"github.com/google/uuid"

	"chatwidget_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Qualification Domain Events
// =============================================================================

// QualifyingStarted is published when a visitor's form submission (or inline
// email capture) kicks off the question flow.
type QualifyingStarted struct {
	BaseEvent
	OrganizationID uuid.UUID `json:"organizationId"`
	VisitorID      string    `json:"visitorId"`
	LeadID         uuid.UUID `json:"leadId"`
	QuestionCount  int       `json:"questionCount"`
}

func (e QualifyingStarted) EventName() string { return "qualify.started" }

// QualificationCompleted is published when the finalizer computes a terminal
// verdict, regardless of channel (chat or voice).
type QualificationCompleted struct {
	BaseEvent
	OrganizationID uuid.UUID `json:"organizationId"`
	VisitorID      string    `json:"visitorId"`
	LeadID         uuid.UUID `json:"leadId"`
	Status         string    `json:"status"`
	Reasoning      string    `json:"reasoning"`
}

func (e QualificationCompleted) EventName() string { return "qualify.completed" }

// LateAnswerPromoted is published when a mined answer replaces a canonical
// placeholder.
type LateAnswerPromoted struct {
	BaseEvent
	OrganizationID uuid.UUID `json:"organizationId"`
	VisitorID      string    `json:"visitorId"`
	LeadID         uuid.UUID `json:"leadId"`
	Question       string    `json:"question"`
	Confidence     float64   `json:"confidence"`
	CaptureType    string    `json:"captureType"`
}

func (e LateAnswerPromoted) EventName() string { return "qualify.late_answer.promoted" }
