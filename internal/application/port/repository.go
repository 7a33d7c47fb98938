package port

import (
	"context"
	"time"

	"github.com/payhub/approval-engine/internal/domain/entity"
)

// TemplateRepository defines persistence operations for WorkflowTemplate.
// Templates are read-only from the engine's perspective at decision time;
// only administration flows write them.
type TemplateRepository interface {
	// Create inserts a template together with its ordered stages.
	Create(ctx context.Context, tpl *entity.WorkflowTemplate) error

	// GetByID retrieves a template including its stages. Returns nil when
	// the template does not exist. Inactive templates are still resolvable
	// so historical instances stay readable.
	GetByID(ctx context.Context, id int64) (*entity.WorkflowTemplate, error)

	// ListActive returns all active templates including their stages.
	ListActive(ctx context.Context) ([]*entity.WorkflowTemplate, error)

	// List returns all templates, optionally including inactive ones.
	List(ctx context.Context, includeInactive bool) ([]*entity.WorkflowTemplate, error)

	// SetActive soft-enables or soft-disables a template.
	SetActive(ctx context.Context, id int64, active bool) error
}

// ActionableCandidate is one in-progress instance joined with its current
// stage's assignment sets and the owning payment's project, as needed by the
// visibility filter.
type ActionableCandidate struct {
	Instance  *entity.WorkflowInstance
	Stage     *entity.StageDefinition
	ProjectID *int64
}

// InstanceRepository defines persistence operations for WorkflowInstance and
// its append-only progress log.
type InstanceRepository interface {
	Create(ctx context.Context, inst *entity.WorkflowInstance) error

	// GetByID returns nil when the instance does not exist.
	GetByID(ctx context.Context, id int64) (*entity.WorkflowInstance, error)

	// GetActiveByPaymentID returns the in_progress instance for a payment,
	// or nil when the payment has none.
	GetActiveByPaymentID(ctx context.Context, paymentID int64) (*entity.WorkflowInstance, error)

	// AdvanceStage moves an in_progress instance from the stage at
	// fromPosition to the given next stage. The update is guarded: it only
	// applies while status is in_progress and the current position still
	// equals fromPosition. Returns false when the guard did not match.
	AdvanceStage(ctx context.Context, id int64, fromPosition int, toStageID int64, toPosition int) (bool, error)

	// Complete moves an in_progress instance to a terminal status, clearing
	// the current stage and stamping completion. Guarded like AdvanceStage.
	Complete(ctx context.Context, id int64, fromPosition int, status string, stagesCompleted int, completedBy string, completedAt time.Time) (bool, error)

	// ListInProgress returns all in_progress instances joined with their
	// current stage and payment project, ordered by started_at descending.
	ListInProgress(ctx context.Context) ([]*ActionableCandidate, error)

	// AppendProgress appends one immutable entry to the progress log.
	AppendProgress(ctx context.Context, entry *entity.ProgressEntry) error

	// ListProgress returns the progress log in append order.
	ListProgress(ctx context.Context, instanceID int64) ([]*entity.ProgressEntry, error)
}

// PaymentRepository covers the denormalized payment columns the engine
// writes as transition side effects.
type PaymentRepository interface {
	// GetByID returns nil when the payment does not exist.
	GetByID(ctx context.Context, id int64) (*entity.Payment, error)

	// UpdateStatus sets the payment's status/workflow_status columns and,
	// when approvedAt is non-nil, stamps approved_at.
	UpdateStatus(ctx context.Context, id int64, status, workflowStatus string, approvedAt *time.Time) error
}

// UserRepository resolves users from the identity store.
type UserRepository interface {
	// GetByID returns nil when the user does not exist.
	GetByID(ctx context.Context, id string) (*entity.User, error)

	// BatchGet resolves a set of user ids in one query; missing ids are
	// simply absent from the result map.
	BatchGet(ctx context.Context, ids []string) (map[string]*entity.User, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
