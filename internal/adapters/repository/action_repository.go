package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cyclepact/core/internal/domain/entities"
	"github.com/cyclepact/core/internal/domain/schedule"
	"github.com/cyclepact/core/internal/ports"
)

// ActionRepositoryImpl implements the ActionRepository interface
type ActionRepositoryImpl struct {
	db *sqlx.DB
}

// NewActionRepository creates a new action repository
func NewActionRepository(db *sqlx.DB) ports.ActionRepository {
	return &ActionRepositoryImpl{db: db}
}

// actionRow stores the frequency rule as a JSON document; the rule is a
// tagged variant and has no natural relational shape.
type actionRow struct {
	ID            uuid.UUID       `db:"id"`
	GoalID        uuid.UUID       `db:"goal_id"`
	ParticipantID uuid.UUID       `db:"participant_id"`
	Text          string          `db:"text"`
	Frequency     json.RawMessage `db:"frequency"`
	CreatedAt     sql.NullTime    `db:"created_at"`
}

func (row actionRow) toEntity() (*entities.Action, error) {
	var rule schedule.Rule
	if err := json.Unmarshal(row.Frequency, &rule); err != nil {
		return nil, fmt.Errorf("decode frequency rule: %w", err)
	}

	action := &entities.Action{
		ID:            row.ID,
		GoalID:        row.GoalID,
		ParticipantID: row.ParticipantID,
		Text:          row.Text,
		Frequency:     rule,
	}
	if row.CreatedAt.Valid {
		action.CreatedAt = row.CreatedAt.Time
	}
	return action, nil
}

// Upsert mirrors the external goal provider's action definition into
// the engine's store. Re-registering refreshes text and rule.
func (r *ActionRepositoryImpl) Upsert(ctx context.Context, action *entities.Action) error {
	frequency, err := json.Marshal(action.Frequency)
	if err != nil {
		return fmt.Errorf("encode frequency rule: %w", err)
	}

	query := `
		INSERT INTO actions (id, goal_id, participant_id, text, frequency)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET text = EXCLUDED.text, frequency = EXCLUDED.frequency
		RETURNING created_at`

	err = r.db.QueryRowContext(ctx, query,
		action.ID, action.GoalID, action.ParticipantID, action.Text, frequency,
	).Scan(&action.CreatedAt)

	if err != nil {
		return fmt.Errorf("upsert action: %w", err)
	}

	return nil
}

func (r *ActionRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*entities.Action, error) {
	query := `
		SELECT id, goal_id, participant_id, text, frequency, created_at
		FROM actions
		WHERE id = $1`

	var row actionRow
	err := r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrActionNotFound
		}
		return nil, fmt.Errorf("get action by id: %w", err)
	}

	return row.toEntity()
}

func (r *ActionRepositoryImpl) ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]*entities.Action, error) {
	query := `
		SELECT id, goal_id, participant_id, text, frequency, created_at
		FROM actions
		WHERE participant_id = $1
		ORDER BY created_at ASC`

	var rows []actionRow
	err := r.db.SelectContext(ctx, &rows, query, participantID)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}

	actions := make([]*entities.Action, 0, len(rows))
	for _, row := range rows {
		action, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}

	return actions, nil
}
