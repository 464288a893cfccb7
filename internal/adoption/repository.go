package adoption

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/billtrack/billtrack/internal/platform/db"
	"github.com/billtrack/billtrack/internal/shared"
)

const (
	linkColumns = `id, supervisor_id, user_id, created_at`
	pairKey     = "adoption_links_pair_key"
	userKey     = "adoption_links_user_key"
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

func (t *txRepo) LockActor(ctx context.Context, id int64) (shared.Actor, error) {
	return db.LoadActor(ctx, t.tx, id, true)
}

func (t *txRepo) Insert(ctx context.Context, supervisorID, userID int64) (Link, error) {
	return insertLink(ctx, t.tx, supervisorID, userID)
}

func (t *txRepo) FindByUser(ctx context.Context, userID int64) (Link, error) {
	return findByUser(ctx, t.tx, userID)
}

// GetActor reads an actor by id.
func (r *Repository) GetActor(ctx context.Context, id int64) (shared.Actor, error) {
	return db.LoadActor(ctx, r.pool, id, false)
}

// insertLink creates a link. Either uniqueness constraint firing means the
// user already has a supervisor.
func insertLink(ctx context.Context, q db.Querier, supervisorID, userID int64) (Link, error) {
	row := q.QueryRow(ctx, `INSERT INTO adoption_links (supervisor_id, user_id) VALUES ($1, $2)
RETURNING `+linkColumns, supervisorID, userID)
	link, err := scanLink(row)
	if err != nil {
		if db.IsUniqueViolation(err, userKey) || db.IsUniqueViolation(err, pairKey) {
			return Link{}, fmt.Errorf("adoption: user %d: %w", userID, shared.ErrAlreadyAdopted)
		}
		if db.IsForeignKeyViolation(err) {
			return Link{}, fmt.Errorf("adoption: user %d: %w", userID, shared.ErrNotFound)
		}
		return Link{}, err
	}
	return link, nil
}

// Delete removes the link owned by supervisorID, reporting whether one existed.
func (r *Repository) Delete(ctx context.Context, supervisorID, userID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM adoption_links WHERE supervisor_id = $1 AND user_id = $2`, supervisorID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// FindByUser returns the link for userID.
func (r *Repository) FindByUser(ctx context.Context, userID int64) (Link, error) {
	return findByUser(ctx, r.pool, userID)
}

func findByUser(ctx context.Context, q db.Querier, userID int64) (Link, error) {
	link, err := scanLink(q.QueryRow(ctx, `SELECT `+linkColumns+` FROM adoption_links WHERE user_id = $1`, userID))
	if err != nil {
		if db.IsNoRows(err) {
			return Link{}, fmt.Errorf("adoption: user %d: %w", userID, shared.ErrNotFound)
		}
		return Link{}, err
	}
	return link, nil
}

// ListAdopted returns the users overseen by supervisorID.
func (r *Repository) ListAdopted(ctx context.Context, supervisorID int64) ([]shared.Actor, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+db.ActorColumns+` FROM actors
WHERE id IN (SELECT user_id FROM adoption_links WHERE supervisor_id = $1)
ORDER BY name, id`, supervisorID)
	if err != nil {
		return nil, err
	}
	return db.CollectActors(rows)
}

// ListAvailable returns active users with no supervisor.
func (r *Repository) ListAvailable(ctx context.Context) ([]shared.Actor, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+db.ActorColumns+` FROM actors
WHERE role = 'user' AND account_status = 'active'
  AND NOT EXISTS (SELECT 1 FROM adoption_links l WHERE l.user_id = actors.id)
ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	return db.CollectActors(rows)
}

// RemoveForUser deletes any link for userID through q. Role changes call it
// inside their own transaction.
func RemoveForUser(ctx context.Context, q db.Querier, userID int64) error {
	_, err := q.Exec(ctx, `DELETE FROM adoption_links WHERE user_id = $1`, userID)
	return err
}

// RemoveForSupervisor deletes every link owned by supervisorID through q.
// Called when the supervisor leaves the role or loses the account.
func RemoveForSupervisor(ctx context.Context, q db.Querier, supervisorID int64) error {
	_, err := q.Exec(ctx, `DELETE FROM adoption_links WHERE supervisor_id = $1`, supervisorID)
	return err
}

func scanLink(row pgx.Row) (Link, error) {
	var link Link
	if err := row.Scan(&link.ID, &link.SupervisorID, &link.UserID, &link.CreatedAt); err != nil {
		return Link{}, err
	}
	return link, nil
}
