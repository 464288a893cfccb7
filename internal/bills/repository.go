package bills

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/billtrack/billtrack/internal/platform/db"
	"github.com/billtrack/billtrack/internal/shared"
)

const billColumns = `id, bill_number, bill_title, current_stage, created_at, updated_at`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns a bill by id.
func (r *Repository) Get(ctx context.Context, id int64) (Bill, error) {
	return Load(ctx, r.pool, id, false)
}

// GetByNumber returns a bill by its bill number.
func (r *Repository) GetByNumber(ctx context.Context, number string) (Bill, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE bill_number = $1`, number)
	bill, err := scanBill(row)
	if err != nil {
		if db.IsNoRows(err) {
			return Bill{}, fmt.Errorf("bills: %s: %w", number, shared.ErrNotFound)
		}
		return Bill{}, err
	}
	return bill, nil
}

// List returns a page of bills ordered by bill number.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Bill, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+billColumns+` FROM bills ORDER BY bill_number LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bills []Bill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bills, nil
}

// Count returns the total number of bills.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bills`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// Register inserts the bill unless its number already exists, in which case
// the stored bill is returned untouched.
func (r *Repository) Register(ctx context.Context, in RegisterInput) (Bill, bool, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO bills (bill_number, bill_title, current_stage)
VALUES ($1, $2, $3)
ON CONFLICT (bill_number) DO NOTHING
RETURNING `+billColumns, in.BillNumber, in.BillTitle, string(in.Stage))
	bill, err := scanBill(row)
	if err == nil {
		return bill, true, nil
	}
	if !db.IsNoRows(err) {
		return Bill{}, false, err
	}
	existing, err := r.GetByNumber(ctx, in.BillNumber)
	if err != nil {
		return Bill{}, false, err
	}
	return existing, false, nil
}

// Load reads a bill through q, optionally locking the row for the rest of
// the caller's transaction.
func Load(ctx context.Context, q db.Querier, id int64, forUpdate bool) (Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	bill, err := scanBill(q.QueryRow(ctx, query, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Bill{}, fmt.Errorf("bills: bill %d: %w", id, shared.ErrNotFound)
		}
		return Bill{}, err
	}
	return bill, nil
}

// AdvanceStage moves the bill to newStage only if its live stage still equals
// expected. It must run inside the approval transaction; a mismatch returns
// shared.ErrConflict and writes nothing.
func AdvanceStage(ctx context.Context, q db.Querier, id int64, newStage, expected Stage) (Bill, error) {
	if !newStage.Valid() {
		return Bill{}, fmt.Errorf("bills: stage %q: %w", newStage, shared.ErrInvalidInput)
	}
	if !expected.Valid() {
		return Bill{}, fmt.Errorf("bills: expected stage %q: %w", expected, shared.ErrInvalidInput)
	}
	row := q.QueryRow(ctx, `UPDATE bills SET current_stage = $2, updated_at = NOW()
WHERE id = $1 AND current_stage = $3
RETURNING `+billColumns, id, string(newStage), string(expected))
	bill, err := scanBill(row)
	if err == nil {
		return bill, nil
	}
	if !db.IsNoRows(err) {
		return Bill{}, err
	}
	var live string
	if err := q.QueryRow(ctx, `SELECT current_stage FROM bills WHERE id = $1`, id).Scan(&live); err != nil {
		if db.IsNoRows(err) {
			return Bill{}, fmt.Errorf("bills: bill %d: %w", id, shared.ErrNotFound)
		}
		return Bill{}, err
	}
	return Bill{}, fmt.Errorf("bills: bill %d is at %s, expected %s: %w", id, live, expected, shared.ErrConflict)
}

func scanBill(row pgx.Row) (Bill, error) {
	var (
		bill  Bill
		stage string
	)
	if err := row.Scan(&bill.ID, &bill.BillNumber, &bill.BillTitle, &stage, &bill.CreatedAt, &bill.UpdatedAt); err != nil {
		return Bill{}, err
	}
	bill.CurrentStage = Stage(stage)
	return bill, nil
}
