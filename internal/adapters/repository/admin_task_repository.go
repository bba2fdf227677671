package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cyclepact/core/internal/domain/entities"
	"github.com/cyclepact/core/internal/ports"
)

// AdminTaskRepositoryImpl implements the AdminTaskRepository interface
type AdminTaskRepositoryImpl struct {
	db *sqlx.DB
}

// NewAdminTaskRepository creates a new admin task repository
func NewAdminTaskRepository(db *sqlx.DB) ports.AdminTaskRepository {
	return &AdminTaskRepositoryImpl{db: db}
}

func (r *AdminTaskRepositoryImpl) Create(ctx context.Context, task *entities.AdminTask) error {
	query := `
		INSERT INTO admin_tasks (id, kind, title, description, reward, scope, target_id,
			due_date, time_of_day, location, active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at`

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}

	err := r.db.QueryRowContext(ctx, query,
		task.ID, task.Kind, task.Title, task.Description, task.Reward,
		task.Scope, task.TargetID, task.DueDate, task.TimeOfDay,
		task.Location, task.Active, task.CreatedBy,
	).Scan(&task.CreatedAt)

	if err != nil {
		return fmt.Errorf("create admin task: %w", err)
	}

	return nil
}

func (r *AdminTaskRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*entities.AdminTask, error) {
	query := `
		SELECT id, kind, title, description, reward, scope, target_id,
			due_date, time_of_day, location, active, created_by, created_at
		FROM admin_tasks
		WHERE id = $1`

	var task entities.AdminTask
	err := r.db.GetContext(ctx, &task, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrAdminTaskNotFound
		}
		return nil, fmt.Errorf("get admin task by id: %w", err)
	}

	return &task, nil
}

func (r *AdminTaskRepositoryImpl) ListActive(ctx context.Context) ([]*entities.AdminTask, error) {
	query := `
		SELECT id, kind, title, description, reward, scope, target_id,
			due_date, time_of_day, location, active, created_by, created_at
		FROM admin_tasks
		WHERE active = true
		ORDER BY due_date ASC`

	var tasks []*entities.AdminTask
	err := r.db.SelectContext(ctx, &tasks, query)
	if err != nil {
		return nil, fmt.Errorf("list active admin tasks: %w", err)
	}

	return tasks, nil
}
