package entity

import "time"

// Instance status values. InProgress is the only non-terminal status.
const (
	StatusInProgress = "in_progress"
	StatusApproved   = "approved"
	StatusRejected   = "rejected"
	StatusCancelled  = "cancelled"
)

// Decision actions recorded in the progress log.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionCancel  = "cancel"
)

// WorkflowInstance is one running (or completed) approval process bound to
// exactly one payment. Instances are never deleted; terminal instances are
// retained as the audit trail.
type WorkflowInstance struct {
	ID                   int64      `json:"id"`
	PublicID             string     `json:"public_id"`
	PaymentID            int64      `json:"payment_id"`
	InvoiceID            *int64     `json:"invoice_id,omitempty"`
	TemplateID           int64      `json:"template_id"`
	CurrentStageID       *int64     `json:"current_stage_id,omitempty"`
	CurrentStagePosition int        `json:"current_stage_position"`
	StagesTotal          int        `json:"stages_total"`
	StagesCompleted      int        `json:"stages_completed"`
	Status               string     `json:"status"`
	AmountCents          int64      `json:"amount_cents"`
	StartedAt            time.Time  `json:"started_at"`
	StartedBy            string     `json:"started_by"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	CompletedBy          *string    `json:"completed_by,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// IsActive reports whether the instance still accepts decisions.
func (i *WorkflowInstance) IsActive() bool {
	return i.Status == StatusInProgress
}

// ProgressEntry is one immutable record in an instance's approval progress
// log. Entries are append-only: the engine exposes no update or delete path.
type ProgressEntry struct {
	ID         int64     `json:"id"`
	InstanceID int64     `json:"instance_id"`
	StageID    int64     `json:"stage_id"`
	StageName  string    `json:"stage_name"`
	UserID     string    `json:"user_id"`
	Action     string    `json:"action"`
	Note       string    `json:"note"`
	CreatedAt  time.Time `json:"created_at"`
}

// Transition describes the outcome of a decide or cancel call.
type Transition struct {
	FromStageID   *int64 `json:"from_stage_id,omitempty"`
	FromStageName string `json:"from_stage_name,omitempty"`
	ToStageID     *int64 `json:"to_stage_id,omitempty"`
	ToStageName   string `json:"to_stage_name,omitempty"`
	FromStatus    string `json:"from_status"`
	ToStatus      string `json:"to_status"`
	Completed     bool   `json:"completed"`
}
