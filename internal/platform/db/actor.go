package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/billtrack/billtrack/internal/shared"
)

// ActorColumns lists the actors columns read by ScanActor, in order.
const ActorColumns = `id, email, name, role, account_status, created_at, updated_at`

// ScanActor reads one actors row selected with ActorColumns.
func ScanActor(row pgx.Row) (shared.Actor, error) {
	var (
		actor        shared.Actor
		role, status string
	)
	if err := row.Scan(&actor.ID, &actor.Email, &actor.Name, &role, &status, &actor.CreatedAt, &actor.UpdatedAt); err != nil {
		return shared.Actor{}, err
	}
	actor.Role = shared.Role(role)
	actor.AccountStatus = shared.AccountStatus(status)
	return actor, nil
}

// LoadActor reads an actor through q, optionally locking the row.
func LoadActor(ctx context.Context, q Querier, id int64, forUpdate bool) (shared.Actor, error) {
	query := `SELECT ` + ActorColumns + ` FROM actors WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	actor, err := ScanActor(q.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return shared.Actor{}, fmt.Errorf("actor %d: %w", id, shared.ErrNotFound)
		}
		return shared.Actor{}, err
	}
	return actor, nil
}

// CollectActors drains rows selected with ActorColumns.
func CollectActors(rows pgx.Rows) ([]shared.Actor, error) {
	defer rows.Close()
	actors := []shared.Actor{}
	for rows.Next() {
		actor, err := ScanActor(rows)
		if err != nil {
			return nil, err
		}
		actors = append(actors, actor)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return actors, nil
}
