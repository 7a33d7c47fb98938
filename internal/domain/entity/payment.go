package entity

import "time"

// Payment status values the engine writes as side effects of workflow
// transitions. The payments table itself is owned by the procurement app;
// the engine only touches these denormalized columns.
const (
	PaymentAwaitingApproval = "awaiting_approval"
	PaymentApproved         = "approved"
	PaymentRejected         = "rejected"
	PaymentCancelled        = "cancelled"
)

// Payment is the engine's view of a payment row: the amount snapshot source,
// the matching dimensions for template resolution, and the denormalized
// status columns.
type Payment struct {
	ID               int64      `json:"id"`
	AmountCents      int64      `json:"amount_cents"`
	InvoiceTypeID    int64      `json:"invoice_type_id"`
	ContractorTypeID int64      `json:"contractor_type_id"`
	ProjectID        *int64     `json:"project_id,omitempty"`
	InvoiceID        *int64     `json:"invoice_id,omitempty"`
	Status           string     `json:"status"`
	WorkflowStatus   string     `json:"workflow_status"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
