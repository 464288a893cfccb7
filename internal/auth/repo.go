package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/billtrack/billtrack/internal/platform/db"
	"github.com/billtrack/billtrack/internal/shared"
)

const emailKey = "actors_email_key"

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	CreateActor(ctx context.Context, in RegisterInput, passwordHash string) (shared.Actor, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches an account by email, case-insensitively.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	var account Account
	row := r.pool.QueryRow(ctx, `SELECT `+db.ActorColumns+`, password_hash FROM actors WHERE lower(email) = lower($1)`, email)
	var role, status string
	err := row.Scan(&account.Actor.ID, &account.Actor.Email, &account.Actor.Name, &role, &status,
		&account.Actor.CreatedAt, &account.Actor.UpdatedAt, &account.PasswordHash)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	account.Actor.Role = shared.Role(role)
	account.Actor.AccountStatus = shared.AccountStatus(status)
	return &account, nil
}

// CreateActor inserts a pending user account.
func (r *PGRepository) CreateActor(ctx context.Context, in RegisterInput, passwordHash string) (shared.Actor, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO actors (email, name, password_hash, role, account_status)
VALUES ($1, $2, $3, 'user', 'pending')
RETURNING `+db.ActorColumns, strings.TrimSpace(in.Email), strings.TrimSpace(in.Name), passwordHash)
	actor, err := db.ScanActor(row)
	if err != nil {
		if db.IsUniqueViolation(err, emailKey) {
			return shared.Actor{}, fmt.Errorf("auth: email already registered: %w", shared.ErrInvalidInput)
		}
		return shared.Actor{}, err
	}
	return actor, nil
}

var _ Repository = (*PGRepository)(nil)
