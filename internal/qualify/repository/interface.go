package repository

import (
	"context"

	"github.com/google/uuid"

	"chatwidget_backend/internal/qualify/domain"
)

// CustomerStore persists visitor records and their capture state blobs.
type CustomerStore interface {
	// GetOrCreateCustomer lazily creates the visitor record with an initial
	// capture state on first lookup.
	GetOrCreateCustomer(ctx context.Context, organizationID uuid.UUID, visitorID string) (Customer, error)
	GetCustomer(ctx context.Context, organizationID uuid.UUID, visitorID string) (Customer, error)
	// SaveCaptureState writes the whole blob. Last write wins; callers must
	// base their modification on a freshly-read copy.
	SaveCaptureState(ctx context.Context, organizationID uuid.UUID, visitorID string, state domain.CaptureState) error
	UpdateCustomerContact(ctx context.Context, organizationID uuid.UUID, visitorID string, email, name *string) error
}

// LeadStore persists the reporting-facing lead rows and the late-answer
// audit log.
type LeadStore interface {
	CreateLead(ctx context.Context, organizationID, customerID uuid.UUID, formData map[string]string) (Lead, error)
	// GetOpenLead returns the most recent lead for a customer.
	GetOpenLead(ctx context.Context, organizationID, customerID uuid.UUID) (Lead, error)
	UpdateLeadAnswers(ctx context.Context, organizationID, leadID uuid.UUID, answers []domain.Answer, status string, reasoning *string) error
	AppendLateAnswer(ctx context.Context, params AppendLateAnswerParams) (LateAnswer, error)
}

// SettingsStore reads tenant widget configuration.
type SettingsStore interface {
	GetSettings(ctx context.Context, organizationID uuid.UUID) (domain.Settings, error)
	TenantForWidgetKey(ctx context.Context, widgetKey string) (uuid.UUID, error)
}

// Repository is the full persistence surface of the qualify context.
type Repository interface {
	CustomerStore
	LeadStore
	SettingsStore
}
