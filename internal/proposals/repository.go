package proposals

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/billtrack/billtrack/internal/bills"
	"github.com/billtrack/billtrack/internal/platform/db"
	"github.com/billtrack/billtrack/internal/shared"
)

const (
	proposalColumns = `p.id, p.bill_id, p.proposer_id, p.current_stage_snapshot, p.proposed_stage,
p.approval_status, p.note, p.approved_by, p.proposed_at, p.approved_at`
	pendingKey = "proposals_pending_key"
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

// WithTx runs fn in a read-committed transaction. Row locks and the stage
// compare-and-set serialize competing approvals; any error rolls back.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// GetBill reads the live bill.
func (r *Repository) GetBill(ctx context.Context, id int64) (bills.Bill, error) {
	return bills.Load(ctx, r.pool, id, false)
}

// HasPending reports whether a pending proposal exists for the triple.
func (r *Repository) HasPending(ctx context.Context, billID, proposerID int64, stage bills.Stage) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM proposals WHERE bill_id = $1 AND proposer_id = $2 AND proposed_stage = $3 AND approval_status = 'pending')`,
		billID, proposerID, string(stage)).Scan(&exists)
	return exists, err
}

// Insert stores a pending proposal. The partial unique index on pending
// triples settles concurrent duplicates.
func (r *Repository) Insert(ctx context.Context, p Proposal) (Proposal, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO proposals AS p (bill_id, proposer_id, current_stage_snapshot, proposed_stage, approval_status, note)
VALUES ($1, $2, $3, $4, 'pending', $5)
RETURNING `+proposalColumns,
		p.BillID, p.ProposerID, string(p.CurrentStageSnapshot), string(p.ProposedStage), p.Note)
	created, err := scanProposal(row)
	if err != nil {
		if db.IsUniqueViolation(err, pendingKey) {
			return Proposal{}, fmt.Errorf("proposals: bill %d stage %s: %w", p.BillID, p.ProposedStage, shared.ErrDuplicateProposal)
		}
		if db.IsForeignKeyViolation(err) {
			return Proposal{}, fmt.Errorf("proposals: bill %d: %w", p.BillID, shared.ErrNotFound)
		}
		return Proposal{}, err
	}
	return created, nil
}

// Get returns a proposal by id.
func (r *Repository) Get(ctx context.Context, id int64) (Proposal, error) {
	return loadProposal(ctx, r.pool, id, false)
}

// ListPendingPage returns up to limit pending proposals after filter.After.
func (r *Repository) ListPendingPage(ctx context.Context, filter Filter, limit int) ([]Proposal, error) {
	after := filter.After
	if after.IsZero() {
		after = Cursor{ProposedAt: time.Unix(0, 0).UTC()}
	}
	rows, err := r.pool.Query(ctx, `SELECT `+proposalColumns+`
FROM proposals p
JOIN actors a ON a.id = p.proposer_id
LEFT JOIN adoption_links l ON l.user_id = p.proposer_id
WHERE p.approval_status = 'pending'
  AND ($1::bigint = 0 OR p.bill_id = $1)
  AND ($2::bigint = 0 OR p.proposer_id = $2)
  AND ($3::bigint = 0 OR a.role <> 'user' OR l.supervisor_id = $3)
  AND (p.proposed_at, p.id) > ($4::timestamptz, $5::bigint)
ORDER BY p.proposed_at, p.id
LIMIT $6`, filter.BillID, filter.ProposerID, filter.SupervisorID, after.ProposedAt, after.ID, limit)
	if err != nil {
		return nil, err
	}
	return collectProposals(rows)
}

// History returns every proposal filed against a bill, newest first.
func (r *Repository) History(ctx context.Context, billID int64) ([]Proposal, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+proposalColumns+`
FROM proposals p WHERE p.bill_id = $1 ORDER BY p.proposed_at DESC, p.id DESC`, billID)
	if err != nil {
		return nil, err
	}
	return collectProposals(rows)
}

func (t *txRepo) LockProposal(ctx context.Context, id int64) (Proposal, error) {
	return loadProposal(ctx, t.tx, id, true)
}

func (t *txRepo) LoadBill(ctx context.Context, id int64) (bills.Bill, error) {
	return bills.Load(ctx, t.tx, id, false)
}

func (t *txRepo) AdvanceBill(ctx context.Context, id int64, newStage, expected bills.Stage) (bills.Bill, error) {
	return bills.AdvanceStage(ctx, t.tx, id, newStage, expected)
}

func (t *txRepo) MarkResolved(ctx context.Context, id int64, status Status, approverID int64, at time.Time) (Proposal, error) {
	row := t.tx.QueryRow(ctx, `UPDATE proposals AS p
SET approval_status = $2, approved_by = $3, approved_at = $4
WHERE p.id = $1 AND p.approval_status = 'pending'
RETURNING `+proposalColumns, id, string(status), approverID, at)
	updated, err := scanProposal(row)
	if err != nil {
		if db.IsNoRows(err) {
			return Proposal{}, fmt.Errorf("proposals: proposal %d: %w", id, shared.ErrAlreadyResolved)
		}
		return Proposal{}, err
	}
	return updated, nil
}

func loadProposal(ctx context.Context, q db.Querier, id int64, forUpdate bool) (Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals p WHERE p.id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	p, err := scanProposal(q.QueryRow(ctx, query, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Proposal{}, fmt.Errorf("proposals: proposal %d: %w", id, shared.ErrNotFound)
		}
		return Proposal{}, err
	}
	return p, nil
}

func collectProposals(rows pgx.Rows) ([]Proposal, error) {
	defer rows.Close()
	var out []Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanProposal(row pgx.Row) (Proposal, error) {
	var (
		p                Proposal
		snapshot, target string
		status           string
	)
	if err := row.Scan(&p.ID, &p.BillID, &p.ProposerID, &snapshot, &target, &status, &p.Note, &p.ApprovedBy, &p.ProposedAt, &p.ApprovedAt); err != nil {
		return Proposal{}, err
	}
	p.CurrentStageSnapshot = bills.Stage(snapshot)
	p.ProposedStage = bills.Stage(target)
	p.ApprovalStatus = Status(status)
	return p, nil
}
