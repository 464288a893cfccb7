package accounts

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/billtrack/billtrack/internal/adoption"
	"github.com/billtrack/billtrack/internal/platform/db"
	"github.com/billtrack/billtrack/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx runs fn in a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// GetActor returns an actor by id.
func (r *Repository) GetActor(ctx context.Context, id int64) (shared.Actor, error) {
	return db.LoadActor(ctx, r.pool, id, false)
}

// ListActors returns actors, optionally filtered by status, oldest first.
func (r *Repository) ListActors(ctx context.Context, status shared.AccountStatus) ([]shared.Actor, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+db.ActorColumns+` FROM actors
WHERE ($1::text = '' OR account_status = $1)
ORDER BY created_at, id`, string(status))
	if err != nil {
		return nil, err
	}
	return db.CollectActors(rows)
}

// ListPendingEscalations returns outstanding requests for role, oldest first.
func (r *Repository) ListPendingEscalations(ctx context.Context, role shared.Role) ([]PendingEscalation, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.email, a.name, a.role, a.account_status, a.created_at, a.updated_at,
e.actor_id, e.target_role, e.state, e.decision, e.requested_at, e.decided_at, e.decided_by
FROM role_escalations e
JOIN actors a ON a.id = e.actor_id
WHERE e.target_role = $1 AND e.state = 'requested'
ORDER BY e.requested_at, e.actor_id`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []PendingEscalation{}
	for rows.Next() {
		var (
			item          PendingEscalation
			actorRole     string
			status        string
			target, state string
			decision      *string
		)
		if err := rows.Scan(&item.Actor.ID, &item.Actor.Email, &item.Actor.Name, &actorRole, &status, &item.Actor.CreatedAt, &item.Actor.UpdatedAt,
			&item.Escalation.ActorID, &target, &state, &decision, &item.Escalation.RequestedAt, &item.Escalation.DecidedAt, &item.Escalation.DecidedBy); err != nil {
			return nil, err
		}
		item.Actor.Role = shared.Role(actorRole)
		item.Actor.AccountStatus = shared.AccountStatus(status)
		item.Escalation.TargetRole = shared.Role(target)
		item.Escalation.State = EscalationState(state)
		item.Escalation.Decision = toDecision(decision)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *txRepo) LockActor(ctx context.Context, id int64) (shared.Actor, error) {
	return db.LoadActor(ctx, t.tx, id, true)
}

func (t *txRepo) SetAccountStatus(ctx context.Context, id int64, status shared.AccountStatus) (shared.Actor, error) {
	return t.updateActor(ctx, `UPDATE actors SET account_status = $2, updated_at = NOW() WHERE id = $1 RETURNING `+db.ActorColumns, id, string(status))
}

func (t *txRepo) SetRole(ctx context.Context, id int64, role shared.Role) (shared.Actor, error) {
	return t.updateActor(ctx, `UPDATE actors SET role = $2, updated_at = NOW() WHERE id = $1 RETURNING `+db.ActorColumns, id, string(role))
}

func (t *txRepo) updateActor(ctx context.Context, query string, id int64, value string) (shared.Actor, error) {
	actor, err := db.ScanActor(t.tx.QueryRow(ctx, query, id, value))
	if err != nil {
		if db.IsNoRows(err) {
			return shared.Actor{}, fmt.Errorf("accounts: actor %d: %w", id, shared.ErrNotFound)
		}
		return shared.Actor{}, err
	}
	return actor, nil
}

// LockEscalation returns the locked request row, or a none-state value when
// the actor never asked for role.
func (t *txRepo) LockEscalation(ctx context.Context, actorID int64, role shared.Role) (Escalation, error) {
	var (
		e             Escalation
		target, state string
		decision      *string
	)
	err := t.tx.QueryRow(ctx, `SELECT actor_id, target_role, state, decision, requested_at, decided_at, decided_by
FROM role_escalations WHERE actor_id = $1 AND target_role = $2 FOR UPDATE`, actorID, string(role)).
		Scan(&e.ActorID, &target, &state, &decision, &e.RequestedAt, &e.DecidedAt, &e.DecidedBy)
	if err != nil {
		if db.IsNoRows(err) {
			return Escalation{ActorID: actorID, TargetRole: role, State: EscalationNone}, nil
		}
		return Escalation{}, err
	}
	e.TargetRole = shared.Role(target)
	e.State = EscalationState(state)
	e.Decision = toDecision(decision)
	return e, nil
}

func (t *txRepo) SaveEscalation(ctx context.Context, e Escalation) error {
	var decision *string
	if e.Decision != nil {
		d := string(*e.Decision)
		decision = &d
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO role_escalations (actor_id, target_role, state, decision, requested_at, decided_at, decided_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (actor_id, target_role) DO UPDATE
SET state = EXCLUDED.state, decision = EXCLUDED.decision, requested_at = EXCLUDED.requested_at,
    decided_at = EXCLUDED.decided_at, decided_by = EXCLUDED.decided_by`,
		e.ActorID, string(e.TargetRole), string(e.State), decision, e.RequestedAt, e.DecidedAt, e.DecidedBy)
	return err
}

func (t *txRepo) DropAdoption(ctx context.Context, userID int64) error {
	return adoption.RemoveForUser(ctx, t.tx, userID)
}

func (t *txRepo) DropSupervisedLinks(ctx context.Context, supervisorID int64) error {
	return adoption.RemoveForSupervisor(ctx, t.tx, supervisorID)
}

func toDecision(raw *string) *EscalationDecision {
	if raw == nil {
		return nil
	}
	d := EscalationDecision(*raw)
	return &d
}

// PromoteAdmin activates the account registered under email and grants it
// the admin role. It backs the operator bootstrap command. Any adoption link
// held by the account, as user or as supervisor, is removed.
func (r *Repository) PromoteAdmin(ctx context.Context, email string) (shared.Actor, error) {
	var actor shared.Actor
	err := db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		var err error
		actor, err = db.ScanActor(tx.QueryRow(ctx, `UPDATE actors
SET role = 'admin', account_status = 'active', updated_at = NOW()
WHERE lower(email) = lower($1)
RETURNING `+db.ActorColumns, email))
		if err != nil {
			if db.IsNoRows(err) {
				return fmt.Errorf("accounts: actor %q: %w", email, shared.ErrNotFound)
			}
			return err
		}
		if err := adoption.RemoveForUser(ctx, tx, actor.ID); err != nil {
			return err
		}
		return adoption.RemoveForSupervisor(ctx, tx, actor.ID)
	})
	return actor, err
}
