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

// SQLiteUserRepository implements port.UserRepository using SQLite
type SQLiteUserRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewSQLiteUserRepository creates a new user repository
func NewSQLiteUserRepository(db *database.DB, logger *zap.Logger) port.UserRepository {
	return &SQLiteUserRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = `
	id, display_name, email, role_code, lark_open_id,
	view_own_project_only, project_ids
`

// GetByID returns the user, or nil when missing.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	exec := database.ExecutorFromContext(ctx, r.db.DB)

	row := exec.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, dbErr("failed to get user", err)
	}
	return user, nil
}

// BatchGet resolves a set of user ids in one query. Missing ids are simply
// absent from the result map.
func (r *SQLiteUserRepository) BatchGet(ctx context.Context, ids []string) (map[string]*entity.User, error) {
	users := make(map[string]*entity.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	exec := database.ExecutorFromContext(ctx, r.db.DB)

	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]interface{}, 0, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, id)
	}

	query := fmt.Sprintf("SELECT "+userColumns+" FROM users WHERE id IN (%s)", string(placeholders))
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbErr("failed to batch get users", err)
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, dbErr("failed to scan user", err)
		}
		users[user.ID] = user
	}
	return users, rows.Err()
}

func scanUser(row rowScanner) (*entity.User, error) {
	var user entity.User
	var larkOpenID sql.NullString
	var projects string

	err := row.Scan(&user.ID, &user.DisplayName, &user.Email, &user.RoleCode,
		&larkOpenID, &user.ViewOwnProjectOnly, &projects)
	if err != nil {
		return nil, err
	}

	user.LarkOpenID = larkOpenID.String
	if user.ProjectIDs, err = unmarshalInt64s(projects); err != nil {
		return nil, err
	}
	return &user, nil
}
