package calendar

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, ev *Event) error
	ListByUser(ctx context.Context, userID string, params ListParams) ([]*Event, error)
	Delete(ctx context.Context, userID string, id uuid.UUID) (bool, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Create(ctx context.Context, ev *Event) error {
	query := `
		INSERT INTO events (id, user_id, title, description, start_time, end_time, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		ev.ID, ev.UserID, ev.Title, ev.Description,
		ev.StartTime, ev.EndTime, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID string, params ListParams) ([]*Event, error) {
	query := `
		SELECT id, user_id, title, COALESCE(description, ''), start_time, end_time, created_at
		FROM events
		WHERE user_id = $1
		  AND ($2::timestamptz IS NULL OR end_time > $2)
		  AND ($3::timestamptz IS NULL OR start_time < $3)
		ORDER BY start_time ASC`

	rows, err := r.pool.Query(ctx, query, userID, params.From, params.To)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	events := make([]*Event, 0)
	for rows.Next() {
		ev := &Event{}
		err := rows.Scan(
			&ev.ID, &ev.UserID, &ev.Title, &ev.Description,
			&ev.StartTime, &ev.EndTime, &ev.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *postgresRepository) Delete(ctx context.Context, userID string, id uuid.UUID) (bool, error) {
	query := `DELETE FROM events WHERE id = $1 AND user_id = $2`

	result, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("deleting event: %w", err)
	}
	return result.RowsAffected() > 0, nil
}
