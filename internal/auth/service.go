package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/billtrack/billtrack/internal/shared"
)

// Service wraps registration and credential checks.
type Service struct {
	repo Repository
	cost int
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost}
}

// Register creates a pending user account with a bcrypt hashed password.
func (s *Service) Register(ctx context.Context, in RegisterInput) (shared.Actor, error) {
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" || in.Password == "" {
		return shared.Actor{}, fmt.Errorf("auth: email and password required: %w", shared.ErrInvalidInput)
	}
	if existing, err := s.repo.FindByEmail(ctx, in.Email); err == nil && existing != nil {
		return shared.Actor{}, fmt.Errorf("auth: email already registered: %w", shared.ErrInvalidInput)
	} else if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return shared.Actor{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return shared.Actor{}, fmt.Errorf("auth: hash password: %w", err)
	}
	return s.repo.CreateActor(ctx, in, string(hash))
}

// Authenticate validates email/password credentials. Accounts in any status
// may log in; each operation gates on status itself.
func (s *Service) Authenticate(ctx context.Context, email, password string) (shared.Actor, error) {
	account, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.Actor{}, shared.ErrInvalidCredentials
		}
		return shared.Actor{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return shared.Actor{}, shared.ErrInvalidCredentials
	}
	return account.Actor, nil
}
