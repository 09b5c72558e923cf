// Package repository provides PostgreSQL persistence for the qualify context.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatwidget_backend/internal/qualify/domain"
	"chatwidget_backend/platform/apperr"
)

const (
	customerNotFoundMessage = "visitor record not found"
	leadNotFoundMessage     = "lead not found"
	settingsNotFoundMessage = "tenant settings not found"
)

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new qualify repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// =============================================================================
// Customers / capture state
// =============================================================================

// GetOrCreateCustomer returns the visitor record, inserting a fresh one with
// an initial capture state when none exists.
func (r *Repo) GetOrCreateCustomer(ctx context.Context, organizationID uuid.UUID, visitorID string) (Customer, error) {
	initial, err := json.Marshal(domain.NewCaptureState())
	if err != nil {
		return Customer{}, fmt.Errorf("marshal initial capture state: %w", err)
	}

	query := `
		INSERT INTO widget_customers (id, organization_id, visitor_id, capture_state)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (organization_id, visitor_id)
		DO UPDATE SET updated_at = now()
		RETURNING id, organization_id, visitor_id, email, name, capture_state, created_at, updated_at`

	return r.scanCustomer(r.pool.QueryRow(ctx, query, uuid.New(), organizationID, visitorID, initial))
}

// GetCustomer retrieves the visitor record without creating it.
func (r *Repo) GetCustomer(ctx context.Context, organizationID uuid.UUID, visitorID string) (Customer, error) {
	query := `
		SELECT id, organization_id, visitor_id, email, name, capture_state, created_at, updated_at
		FROM widget_customers
		WHERE organization_id = $1 AND visitor_id = $2`

	c, err := r.scanCustomer(r.pool.QueryRow(ctx, query, organizationID, visitorID))
	if err != nil {
		return Customer{}, err
	}
	return c, nil
}

// SaveCaptureState writes the whole capture state blob (last write wins).
func (r *Repo) SaveCaptureState(ctx context.Context, organizationID uuid.UUID, visitorID string, state domain.CaptureState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal capture state: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE widget_customers
		SET capture_state = $3, updated_at = now()
		WHERE organization_id = $1 AND visitor_id = $2`,
		organizationID, visitorID, blob)
	if err != nil {
		return fmt.Errorf("save capture state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(customerNotFoundMessage)
	}
	return nil
}

// UpdateCustomerContact sets contact fields captured by the form or inline
// email capture. Nil fields are left untouched.
func (r *Repo) UpdateCustomerContact(ctx context.Context, organizationID uuid.UUID, visitorID string, email, name *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE widget_customers
		SET email = COALESCE($3, email), name = COALESCE($4, name), updated_at = now()
		WHERE organization_id = $1 AND visitor_id = $2`,
		organizationID, visitorID, email, name)
	if err != nil {
		return fmt.Errorf("update customer contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(customerNotFoundMessage)
	}
	return nil
}

func (r *Repo) scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	var stateBlob []byte

	err := row.Scan(&c.ID, &c.OrganizationID, &c.VisitorID, &c.Email, &c.Name, &stateBlob, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, apperr.NotFound(customerNotFoundMessage)
		}
		return Customer{}, fmt.Errorf("scan customer: %w", err)
	}

	if len(stateBlob) > 0 {
		if err := json.Unmarshal(stateBlob, &c.CaptureState); err != nil {
			return Customer{}, fmt.Errorf("unmarshal capture state: %w", err)
		}
	} else {
		c.CaptureState = domain.NewCaptureState()
	}
	return c, nil
}

// =============================================================================
// Leads (reporting)
// =============================================================================

// CreateLead inserts a new reporting row for a customer.
func (r *Repo) CreateLead(ctx context.Context, organizationID, customerID uuid.UUID, formData map[string]string) (Lead, error) {
	formBlob, err := json.Marshal(formData)
	if err != nil {
		return Lead{}, fmt.Errorf("marshal form data: %w", err)
	}

	query := `
		INSERT INTO widget_leads (id, organization_id, customer_id, form_data, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, organization_id, customer_id, form_data, answers, status, qualification_reasoning, created_at, updated_at`

	return r.scanLead(r.pool.QueryRow(ctx, query, uuid.New(), organizationID, customerID, formBlob, string(domain.StatusQualifying)))
}

// GetOpenLead returns the most recent lead for a customer.
func (r *Repo) GetOpenLead(ctx context.Context, organizationID, customerID uuid.UUID) (Lead, error) {
	query := `
		SELECT id, organization_id, customer_id, form_data, answers, status, qualification_reasoning, created_at, updated_at
		FROM widget_leads
		WHERE organization_id = $1 AND customer_id = $2
		ORDER BY created_at DESC
		LIMIT 1`

	return r.scanLead(r.pool.QueryRow(ctx, query, organizationID, customerID))
}

// UpdateLeadAnswers mirrors the qualifying answers and terminal state onto
// the reporting row.
func (r *Repo) UpdateLeadAnswers(ctx context.Context, organizationID, leadID uuid.UUID, answers []domain.Answer, status string, reasoning *string) error {
	answersBlob, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE widget_leads
		SET answers = $3, status = $4, qualification_reasoning = COALESCE($5, qualification_reasoning), updated_at = now()
		WHERE organization_id = $1 AND id = $2`,
		organizationID, leadID, answersBlob, status, reasoning)
	if err != nil {
		return fmt.Errorf("update lead answers: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFoundMessage)
	}
	return nil
}

func (r *Repo) scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	var formBlob, answersBlob []byte

	err := row.Scan(&l.ID, &l.OrganizationID, &l.CustomerID, &formBlob, &answersBlob, &l.Status, &l.QualificationReasoning, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return Lead{}, fmt.Errorf("scan lead: %w", err)
	}

	if len(formBlob) > 0 {
		if err := json.Unmarshal(formBlob, &l.FormData); err != nil {
			return Lead{}, fmt.Errorf("unmarshal form data: %w", err)
		}
	}
	if len(answersBlob) > 0 {
		if err := json.Unmarshal(answersBlob, &l.Answers); err != nil {
			return Lead{}, fmt.Errorf("unmarshal answers: %w", err)
		}
	}
	return l, nil
}

// =============================================================================
// Late answers (append-only audit log)
// =============================================================================

// AppendLateAnswer records one mined answer, promoted or not.
func (r *Repo) AppendLateAnswer(ctx context.Context, params AppendLateAnswerParams) (LateAnswer, error) {
	query := `
		INSERT INTO widget_late_answers
			(id, organization_id, lead_id, question_index, question, answer, raw_message, confidence, capture_type, promoted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, organization_id, lead_id, question_index, question, answer, raw_message, confidence, capture_type, promoted, created_at`

	var la LateAnswer
	err := r.pool.QueryRow(ctx, query,
		uuid.New(), params.OrganizationID, params.LeadID, params.QuestionIndex, params.Question,
		params.Answer, params.RawMessage, params.Confidence, params.CaptureType, params.Promoted,
	).Scan(&la.ID, &la.OrganizationID, &la.LeadID, &la.QuestionIndex, &la.Question, &la.Answer,
		&la.RawMessage, &la.Confidence, &la.CaptureType, &la.Promoted, &la.CreatedAt)
	if err != nil {
		return LateAnswer{}, fmt.Errorf("append late answer: %w", err)
	}
	return la, nil
}

// =============================================================================
// Tenant settings
// =============================================================================

// GetSettings loads the tenant's qualification configuration.
func (r *Repo) GetSettings(ctx context.Context, organizationID uuid.UUID) (domain.Settings, error) {
	var blob []byte
	err := r.pool.QueryRow(ctx, `
		SELECT qualify_settings
		FROM widget_tenant_settings
		WHERE organization_id = $1`, organizationID).Scan(&blob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Settings{}, apperr.NotFound(settingsNotFoundMessage)
		}
		return domain.Settings{}, fmt.Errorf("get tenant settings: %w", err)
	}

	var settings domain.Settings
	if len(blob) > 0 {
		if err := json.Unmarshal(blob, &settings); err != nil {
			return domain.Settings{}, fmt.Errorf("unmarshal tenant settings: %w", err)
		}
	}
	return settings, nil
}

// TenantForWidgetKey resolves a public widget key to its tenant.
func (r *Repo) TenantForWidgetKey(ctx context.Context, widgetKey string) (uuid.UUID, error) {
	var organizationID uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT organization_id
		FROM widget_tenant_settings
		WHERE widget_key = $1`, widgetKey).Scan(&organizationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, apperr.Unauthorized("unknown widget key")
		}
		return uuid.Nil, fmt.Errorf("resolve widget key: %w", err)
	}
	return organizationID, nil
}
