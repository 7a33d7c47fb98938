package repository

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/payhub/approval-engine/internal/application/port"
	"github.com/payhub/approval-engine/internal/domain/entity"
	"github.com/payhub/approval-engine/pkg/database"
)

// SQLiteInstanceRepository implements port.InstanceRepository using SQLite
type SQLiteInstanceRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewSQLiteInstanceRepository creates a new instance repository
func NewSQLiteInstanceRepository(db *database.DB, logger *zap.Logger) port.InstanceRepository {
	return &SQLiteInstanceRepository{
		db:     db,
		logger: logger,
	}
}

const instanceColumns = `
	id, public_id, payment_id, invoice_id, template_id,
	current_stage_id, current_stage_position, stages_total, stages_completed,
	status, amount_cents, started_at, started_by, completed_at, completed_by,
	created_at, updated_at
`

// Create inserts a new workflow instance.
func (r *SQLiteInstanceRepository) Create(ctx context.Context, inst *entity.WorkflowInstance) error {
	exec := database.ExecutorFromContext(ctx, r.db.DB)

	result, err := exec.ExecContext(ctx, `
		INSERT INTO workflow_instances (
			public_id, payment_id, invoice_id, template_id,
			current_stage_id, current_stage_position, stages_total, stages_completed,
			status, amount_cents, started_at, started_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, inst.PublicID, inst.PaymentID, inst.InvoiceID, inst.TemplateID,
		inst.CurrentStageID, inst.CurrentStagePosition, inst.StagesTotal, inst.StagesCompleted,
		inst.Status, inst.AmountCents, inst.StartedAt, inst.StartedBy)
	if err != nil {
		r.logger.Error("Failed to create instance",
			zap.Int64("payment_id", inst.PaymentID),
			zap.Error(err))
		return dbErr("failed to create instance", err)
	}

	if inst.ID, err = result.LastInsertId(); err != nil {
		return dbErr("failed to get instance id", err)
	}
	return nil
}

// GetByID returns the instance, or nil when missing.
func (r *SQLiteInstanceRepository) GetByID(ctx context.Context, id int64) (*entity.WorkflowInstance, error) {
	exec := database.ExecutorFromContext(ctx, r.db.DB)

	row := exec.QueryRowContext(ctx,
		"SELECT "+instanceColumns+" FROM workflow_instances WHERE id = ?", id)

	inst, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, dbErr("failed to get instance", err)
	}
	return inst, nil
}

// GetActiveByPaymentID returns the payment's in_progress instance, or nil.
func (r *SQLiteInstanceRepository) GetActiveByPaymentID(ctx context.Context, paymentID int64) (*entity.WorkflowInstance, error) {
	exec := database.ExecutorFromContext(ctx, r.db.DB)

	row := exec.QueryRowContext(ctx,
		"SELECT "+instanceColumns+` FROM workflow_instances
		WHERE payment_id = ? AND status = ?`, paymentID, entity.StatusInProgress)

	inst, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, dbErr("failed to get active instance", err)
	}
	return inst, nil
}

// AdvanceStage moves the instance to the next stage with a guarded update.
// The WHERE clause re-checks status and position so a concurrent transition
// loses cleanly instead of double-advancing.
func (r *SQLiteInstanceRepository) AdvanceStage(ctx context.Context, id int64, fromPosition int, toStageID int64, toPosition int) (bool, error) {
	exec := database.ExecutorFromContext(ctx, r.db.DB)

	result, err := exec.ExecContext(ctx, `
		UPDATE workflow_instances
		SET current_stage_id = ?,
		    current_stage_position = ?,
		    stages_completed = stages_completed + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ? AND current_stage_position = ?
	`, toStageID, toPosition, id, entity.StatusInProgress, fromPosition)
	if err != nil {
		r.logger.Error("Failed to advance instance",
			zap.Int64("instance_id", id),
			zap.Error(err))
		return false, dbErr("failed to advance instance", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, dbErr("failed to advance instance", err)
	}
	return affected == 1, nil
}

// Complete moves the instance to a terminal status with a guarded update.
func (r *SQLiteInstanceRepository) Complete(ctx context.Context, id int64, fromPosition int, status string, stagesCompleted int, completedBy string, completedAt time.Time) (bool, error) {
	exec := database.ExecutorFromContext(ctx, r.db.DB)

	result, err := exec.ExecContext(ctx, `
		UPDATE workflow_instances
		SET status = ?,
		    stages_completed = ?,
		    current_stage_id = NULL,
		    completed_at = ?,
		    completed_by = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ? AND current_stage_position = ?
	`, status, stagesCompleted, completedAt, completedBy,
		id, entity.StatusInProgress, fromPosition)
	if err != nil {
		r.logger.Error("Failed to complete instance",
			zap.Int64("instance_id", id),
			zap.String("status", status),
			zap.Error(err))
		return false, dbErr("failed to complete instance", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, dbErr("failed to complete instance", err)
	}
	return affected == 1, nil
}

// ListInProgress returns every in_progress instance joined with its current
// stage assignments and owning payment's project.
func (r *SQLiteInstanceRepository) ListInProgress(ctx context.Context) ([]*port.ActionableCandidate, error) {
	exec := database.ExecutorFromContext(ctx, r.db.DB)

	rows, err := exec.QueryContext(ctx, `
		SELECT i.id, i.public_id, i.payment_id, i.invoice_id, i.template_id,
		       i.current_stage_id, i.current_stage_position, i.stages_total, i.stages_completed,
		       i.status, i.amount_cents, i.started_at, i.started_by, i.completed_at, i.completed_by,
		       i.created_at, i.updated_at,
		       s.id, s.template_id, s.position, s.name, s.assigned_user_ids, s.assigned_role_codes,
		       p.project_id
		FROM workflow_instances i
		JOIN workflow_stages s ON s.id = i.current_stage_id
		LEFT JOIN payments p ON p.id = i.payment_id
		WHERE i.status = ?
		ORDER BY i.started_at DESC, i.id DESC
	`, entity.StatusInProgress)
	if err != nil {
		return nil, dbErr("failed to list in-progress instances", err)
	}
	defer rows.Close()

	var candidates []*port.ActionableCandidate
	for rows.Next() {
		var inst entity.WorkflowInstance
		var stage entity.StageDefinition
		var users, roles string
		var projectID sql.NullInt64

		err := rows.Scan(
			&inst.ID, &inst.PublicID, &inst.PaymentID, &inst.InvoiceID, &inst.TemplateID,
			&inst.CurrentStageID, &inst.CurrentStagePosition, &inst.StagesTotal, &inst.StagesCompleted,
			&inst.Status, &inst.AmountCents, &inst.StartedAt, &inst.StartedBy, &inst.CompletedAt, &inst.CompletedBy,
			&inst.CreatedAt, &inst.UpdatedAt,
			&stage.ID, &stage.TemplateID, &stage.Position, &stage.Name, &users, &roles,
			&projectID,
		)
		if err != nil {
			return nil, dbErr("failed to scan candidate", err)
		}
		if stage.AssignedUserIDs, err = unmarshalStrings(users); err != nil {
			return nil, err
		}
		if stage.AssignedRoleCodes, err = unmarshalStrings(roles); err != nil {
			return nil, err
		}

		candidate := &port.ActionableCandidate{
			Instance: &inst,
			Stage:    &stage,
		}
		if projectID.Valid {
			candidate.ProjectID = &projectID.Int64
		}
		candidates = append(candidates, candidate)
	}
	return candidates, rows.Err()
}

// AppendProgress appends one entry to the progress log.
func (r *SQLiteInstanceRepository) AppendProgress(ctx context.Context, entry *entity.ProgressEntry) error {
	exec := database.ExecutorFromContext(ctx, r.db.DB)

	result, err := exec.ExecContext(ctx, `
		INSERT INTO workflow_progress (
			instance_id, stage_id, stage_name, user_id, action, note, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.InstanceID, entry.StageID, entry.StageName,
		entry.UserID, entry.Action, entry.Note, entry.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to append progress entry",
			zap.Int64("instance_id", entry.InstanceID),
			zap.Error(err))
		return dbErr("failed to append progress entry", err)
	}

	if entry.ID, err = result.LastInsertId(); err != nil {
		return dbErr("failed to get progress entry id", err)
	}
	return nil
}

// ListProgress returns the progress log in append order.
func (r *SQLiteInstanceRepository) ListProgress(ctx context.Context, instanceID int64) ([]*entity.ProgressEntry, error) {
	exec := database.ExecutorFromContext(ctx, r.db.DB)

	rows, err := exec.QueryContext(ctx, `
		SELECT id, instance_id, stage_id, stage_name, user_id, action, note, created_at
		FROM workflow_progress
		WHERE instance_id = ?
		ORDER BY id
	`, instanceID)
	if err != nil {
		return nil, dbErr("failed to list progress", err)
	}
	defer rows.Close()

	var entries []*entity.ProgressEntry
	for rows.Next() {
		var entry entity.ProgressEntry
		if err := rows.Scan(&entry.ID, &entry.InstanceID, &entry.StageID, &entry.StageName,
			&entry.UserID, &entry.Action, &entry.Note, &entry.CreatedAt); err != nil {
			return nil, dbErr("failed to scan progress entry", err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func scanInstance(row rowScanner) (*entity.WorkflowInstance, error) {
	var inst entity.WorkflowInstance
	err := row.Scan(
		&inst.ID, &inst.PublicID, &inst.PaymentID, &inst.InvoiceID, &inst.TemplateID,
		&inst.CurrentStageID, &inst.CurrentStagePosition, &inst.StagesTotal, &inst.StagesCompleted,
		&inst.Status, &inst.AmountCents, &inst.StartedAt, &inst.StartedBy, &inst.CompletedAt, &inst.CompletedBy,
		&inst.CreatedAt, &inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inst, nil
}
