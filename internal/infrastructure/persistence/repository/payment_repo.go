package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/payhub/approval-engine/internal/application/port"
	"github.com/payhub/approval-engine/internal/domain/entity"
	"github.com/payhub/approval-engine/pkg/database"
)

// SQLitePaymentRepository implements port.PaymentRepository using SQLite
type SQLitePaymentRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewSQLitePaymentRepository creates a new payment repository
func NewSQLitePaymentRepository(db *database.DB, logger *zap.Logger) port.PaymentRepository {
	return &SQLitePaymentRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID returns the payment, or nil when missing.
func (r *SQLitePaymentRepository) GetByID(ctx context.Context, id int64) (*entity.Payment, error) {
	exec := database.ExecutorFromContext(ctx, r.db.DB)

	row := exec.QueryRowContext(ctx, `
		SELECT id, amount_cents, invoice_type_id, contractor_type_id,
		       project_id, invoice_id, status, workflow_status, approved_at,
		       created_at, updated_at
		FROM payments
		WHERE id = ?
	`, id)

	var p entity.Payment
	err := row.Scan(&p.ID, &p.AmountCents, &p.InvoiceTypeID, &p.ContractorTypeID,
		&p.ProjectID, &p.InvoiceID, &p.Status, &p.WorkflowStatus, &p.ApprovedAt,
		&p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, dbErr("failed to get payment", err)
	}
	return &p, nil
}

// UpdateStatus writes the denormalized status columns. approved_at is only
// stamped when the caller passes a timestamp; it is never cleared.
func (r *SQLitePaymentRepository) UpdateStatus(ctx context.Context, id int64, status, workflowStatus string, approvedAt *time.Time) error {
	exec := database.ExecutorFromContext(ctx, r.db.DB)

	var result sql.Result
	var err error
	if approvedAt != nil {
		result, err = exec.ExecContext(ctx, `
			UPDATE payments
			SET status = ?, workflow_status = ?, approved_at = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, status, workflowStatus, approvedAt, id)
	} else {
		result, err = exec.ExecContext(ctx, `
			UPDATE payments
			SET status = ?, workflow_status = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, status, workflowStatus, id)
	}
	if err != nil {
		r.logger.Error("Failed to update payment status",
			zap.Int64("payment_id", id),
			zap.String("status", status),
			zap.Error(err))
		return dbErr("failed to update payment status", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return dbErr("failed to update payment status", err)
	}
	if affected == 0 {
		return fmt.Errorf("payment %d: %w", id, port.ErrNotFound)
	}
	return nil
}
