package repository

import (
	"time"

	"github.com/google/uuid"

	"chatwidget_backend/internal/qualify/domain"
)

// Customer is the durable visitor record. CaptureState is stored as one JSONB
// blob and read-modify-written as a whole; flow control reads it, never the
// lead row.
type Customer struct {
	ID             uuid.UUID           `json:"id"`
	OrganizationID uuid.UUID           `json:"organization_id"`
	VisitorID      string              `json:"visitor_id"`
	Email          *string             `json:"email,omitempty"`
	Name           *string             `json:"name,omitempty"`
	CaptureState   domain.CaptureState `json:"capture_state"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// Lead is the reporting-facing record: a denormalized mirror of form fields
// and qualifying answers. It is not the source of truth for flow control.
type Lead struct {
	ID                     uuid.UUID         `json:"id"`
	OrganizationID         uuid.UUID         `json:"organization_id"`
	CustomerID             uuid.UUID         `json:"customer_id"`
	FormData               map[string]string `json:"form_data,omitempty"`
	Answers                []domain.Answer   `json:"answers,omitempty"`
	Status                 string            `json:"status"`
	QualificationReasoning *string           `json:"qualification_reasoning,omitempty"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at"`
}

// LateAnswer is one append-only audit row for a mined answer. Promoted marks
// whether it also replaced the canonical placeholder.
type LateAnswer struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	LeadID         uuid.UUID `json:"lead_id"`
	QuestionIndex  int       `json:"question_index"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	RawMessage     string    `json:"raw_message"`
	Confidence     float64   `json:"confidence"`
	CaptureType    string    `json:"capture_type"`
	Promoted       bool      `json:"promoted"`
	CreatedAt      time.Time `json:"created_at"`
}

// Capture-type tags for late answers.
const (
	CaptureTypeLateSingle  = "late_single"
	CaptureTypeEmbedded    = "embedded"
	CaptureTypeMultiAnswer = "multi_answer"
	CaptureTypeOutOfOrder  = "out_of_order"
	CaptureTypeReturnVisit = "return_visit"
)

// AppendLateAnswerParams carries the fields for one audit row.
type AppendLateAnswerParams struct {
	OrganizationID uuid.UUID
	LeadID         uuid.UUID
	QuestionIndex  int
	Question       string
	Answer         string
	RawMessage     string
	Confidence     float64
	CaptureType    string
	Promoted       bool
}
