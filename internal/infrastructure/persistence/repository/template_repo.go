package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/payhub/approval-engine/internal/application/port"
	"github.com/payhub/approval-engine/internal/domain/entity"
	"github.com/payhub/approval-engine/pkg/database"
)

// SQLiteTemplateRepository implements port.TemplateRepository using SQLite
type SQLiteTemplateRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewSQLiteTemplateRepository creates a new template repository
func NewSQLiteTemplateRepository(db *database.DB, logger *zap.Logger) port.TemplateRepository {
	return &SQLiteTemplateRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a template and its stages atomically.
func (r *SQLiteTemplateRepository) Create(ctx context.Context, tpl *entity.WorkflowTemplate) error {
	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := database.ExecutorFromContext(txCtx, r.db.DB)

		invoiceTypes, err := marshalInt64s(tpl.InvoiceTypeIDs)
		if err != nil {
			return err
		}
		contractorTypes, err := marshalInt64s(tpl.ContractorTypeIDs)
		if err != nil {
			return err
		}
		projects, err := marshalInt64s(tpl.ProjectIDs)
		if err != nil {
			return err
		}

		result, err := exec.ExecContext(txCtx, `
			INSERT INTO workflow_templates (
				name, description, is_active, priority,
				invoice_type_ids, contractor_type_ids, project_ids
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`, tpl.Name, tpl.Description, tpl.IsActive, tpl.Priority,
			invoiceTypes, contractorTypes, projects)
		if err != nil {
			r.logger.Error("Failed to create template", zap.Error(err))
			return dbErr("failed to create template", err)
		}

		templateID, err := result.LastInsertId()
		if err != nil {
			return dbErr("failed to get template id", err)
		}
		tpl.ID = templateID

		for i := range tpl.Stages {
			stage := &tpl.Stages[i]
			stage.TemplateID = templateID

			users, err := marshalStrings(stage.AssignedUserIDs)
			if err != nil {
				return err
			}
			roles, err := marshalStrings(stage.AssignedRoleCodes)
			if err != nil {
				return err
			}

			res, err := exec.ExecContext(txCtx, `
				INSERT INTO workflow_stages (
					template_id, position, name, assigned_user_ids, assigned_role_codes
				) VALUES (?, ?, ?, ?, ?)
			`, templateID, stage.Position, stage.Name, users, roles)
			if err != nil {
				r.logger.Error("Failed to create stage",
					zap.Int64("template_id", templateID),
					zap.Int("position", stage.Position),
					zap.Error(err))
				return dbErr(fmt.Sprintf("failed to create stage at position %d", stage.Position), err)
			}
			if stage.ID, err = res.LastInsertId(); err != nil {
				return dbErr("failed to get stage id", err)
			}
		}

		return nil
	})
}

// GetByID retrieves a template including its stages, or nil when missing.
func (r *SQLiteTemplateRepository) GetByID(ctx context.Context, id int64) (*entity.WorkflowTemplate, error) {
	exec := database.ExecutorFromContext(ctx, r.db.DB)

	row := exec.QueryRowContext(ctx, `
		SELECT id, name, description, is_active, priority,
		       invoice_type_ids, contractor_type_ids, project_ids,
		       created_at, updated_at
		FROM workflow_templates
		WHERE id = ?
	`, id)

	tpl, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, dbErr("failed to get template", err)
	}

	stages, err := r.loadStages(ctx, exec, []int64{tpl.ID})
	if err != nil {
		return nil, err
	}
	tpl.Stages = stages[tpl.ID]

	return tpl, nil
}

// ListActive returns all active templates with their stages.
func (r *SQLiteTemplateRepository) ListActive(ctx context.Context) ([]*entity.WorkflowTemplate, error) {
	return r.list(ctx, false)
}

// List returns all templates, optionally including inactive ones.
func (r *SQLiteTemplateRepository) List(ctx context.Context, includeInactive bool) ([]*entity.WorkflowTemplate, error) {
	return r.list(ctx, includeInactive)
}

func (r *SQLiteTemplateRepository) list(ctx context.Context, includeInactive bool) ([]*entity.WorkflowTemplate, error) {
	exec := database.ExecutorFromContext(ctx, r.db.DB)

	query := `
		SELECT id, name, description, is_active, priority,
		       invoice_type_ids, contractor_type_ids, project_ids,
		       created_at, updated_at
		FROM workflow_templates
	`
	if !includeInactive {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY priority DESC, created_at DESC"

	rows, err := exec.QueryContext(ctx, query)
	if err != nil {
		return nil, dbErr("failed to list templates", err)
	}
	defer rows.Close()

	var templates []*entity.WorkflowTemplate
	var ids []int64
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, dbErr("failed to scan template", err)
		}
		templates = append(templates, tpl)
		ids = append(ids, tpl.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("failed to list templates", err)
	}

	if len(ids) == 0 {
		return templates, nil
	}

	stages, err := r.loadStages(ctx, exec, ids)
	if err != nil {
		return nil, err
	}
	for _, tpl := range templates {
		tpl.Stages = stages[tpl.ID]
	}

	return templates, nil
}

// SetActive soft-enables or soft-disables a template.
func (r *SQLiteTemplateRepository) SetActive(ctx context.Context, id int64, active bool) error {
	exec := database.ExecutorFromContext(ctx, r.db.DB)

	result, err := exec.ExecContext(ctx, `
		UPDATE workflow_templates
		SET is_active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, active, id)
	if err != nil {
		return dbErr("failed to update template", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return dbErr("failed to update template", err)
	}
	if affected == 0 {
		return fmt.Errorf("template %d: %w", id, port.ErrNotFound)
	}
	return nil
}

func (r *SQLiteTemplateRepository) loadStages(ctx context.Context, exec database.Executor, templateIDs []int64) (map[int64][]entity.StageDefinition, error) {
	query, args := inClause(`
		SELECT id, template_id, position, name, assigned_user_ids, assigned_role_codes
		FROM workflow_stages
		WHERE template_id IN (%s)
		ORDER BY template_id, position
	`, templateIDs)

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbErr("failed to load stages", err)
	}
	defer rows.Close()

	stages := make(map[int64][]entity.StageDefinition)
	for rows.Next() {
		var stage entity.StageDefinition
		var users, roles string
		if err := rows.Scan(&stage.ID, &stage.TemplateID, &stage.Position,
			&stage.Name, &users, &roles); err != nil {
			return nil, dbErr("failed to scan stage", err)
		}
		if stage.AssignedUserIDs, err = unmarshalStrings(users); err != nil {
			return nil, err
		}
		if stage.AssignedRoleCodes, err = unmarshalStrings(roles); err != nil {
			return nil, err
		}
		stages[stage.TemplateID] = append(stages[stage.TemplateID], stage)
	}
	return stages, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner) (*entity.WorkflowTemplate, error) {
	var tpl entity.WorkflowTemplate
	var invoiceTypes, contractorTypes, projects string

	err := row.Scan(&tpl.ID, &tpl.Name, &tpl.Description, &tpl.IsActive, &tpl.Priority,
		&invoiceTypes, &contractorTypes, &projects,
		&tpl.CreatedAt, &tpl.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if tpl.InvoiceTypeIDs, err = unmarshalInt64s(invoiceTypes); err != nil {
		return nil, err
	}
	if tpl.ContractorTypeIDs, err = unmarshalInt64s(contractorTypes); err != nil {
		return nil, err
	}
	if tpl.ProjectIDs, err = unmarshalInt64s(projects); err != nil {
		return nil, err
	}

	return &tpl, nil
}

func inClause(query string, ids []int64) (string, []interface{}) {
	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]interface{}, 0, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, id)
	}
	return fmt.Sprintf(query, string(placeholders)), args
}
