package adoption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/billtrack/billtrack/internal/rbac"
	"github.com/billtrack/billtrack/internal/shared"
)

// RepositoryPort describes the persistence operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetActor(ctx context.Context, id int64) (shared.Actor, error)
	Delete(ctx context.Context, supervisorID, userID int64) (bool, error)
	FindByUser(ctx context.Context, userID int64) (Link, error)
	ListAdopted(ctx context.Context, supervisorID int64) ([]shared.Actor, error)
	ListAvailable(ctx context.Context) ([]shared.Actor, error)
}

// TxRepository is the transactional view used by Adopt.
type TxRepository interface {
	LockActor(ctx context.Context, id int64) (shared.Actor, error)
	FindByUser(ctx context.Context, userID int64) (Link, error)
	Insert(ctx context.Context, supervisorID, userID int64) (Link, error)
}

// Service manages supervisor oversight of users.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService constructs the adoption registry.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Adopt links userID to supervisor. Only active users without a supervisor
// are eligible. Both actor rows are locked so a concurrent role or account
// decision cannot slip between the eligibility check and the insert.
func (s *Service) Adopt(ctx context.Context, supervisor shared.Actor, userID int64) (Link, error) {
	if err := rbac.Check(supervisor, rbac.CapAdopt); err != nil {
		return Link{}, err
	}
	if userID <= 0 {
		return Link{}, fmt.Errorf("adoption: user id required: %w", shared.ErrInvalidInput)
	}
	var link Link
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := lockActors(ctx, tx, supervisor.ID, userID)
		if err != nil {
			return err
		}
		if err := rbac.Check(locked[supervisor.ID], rbac.CapAdopt); err != nil {
			return err
		}
		target := locked[userID]
		if target.Role != shared.RoleUser || !target.IsActive() {
			return fmt.Errorf("adoption: actor %d is %s/%s: %w", target.ID, target.Role, target.AccountStatus, shared.ErrInvalidTarget)
		}
		if existing, err := tx.FindByUser(ctx, userID); err == nil {
			return fmt.Errorf("adoption: user %d overseen by %d: %w", userID, existing.SupervisorID, shared.ErrAlreadyAdopted)
		} else if !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		link, err = tx.Insert(ctx, supervisor.ID, userID)
		return err
	})
	if err != nil {
		return Link{}, err
	}
	s.logger.Info("user adopted", slog.Int64("supervisor_id", supervisor.ID), slog.Int64("user_id", userID))
	return link, nil
}

// lockActors locks the given actor rows in id order.
func lockActors(ctx context.Context, tx TxRepository, ids ...int64) (map[int64]shared.Actor, error) {
	ordered := slices.Clone(ids)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)
	out := make(map[int64]shared.Actor, len(ordered))
	for _, id := range ordered {
		actor, err := tx.LockActor(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = actor
	}
	return out, nil
}

// Drop removes the link between supervisor and userID. Links owned by other
// supervisors are reported as not found.
func (s *Service) Drop(ctx context.Context, supervisor shared.Actor, userID int64) error {
	if err := rbac.Check(supervisor, rbac.CapAdopt); err != nil {
		return err
	}
	removed, err := s.repo.Delete(ctx, supervisor.ID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("adoption: supervisor %d does not oversee user %d: %w", supervisor.ID, userID, shared.ErrNotFound)
	}
	s.logger.Info("user dropped", slog.Int64("supervisor_id", supervisor.ID), slog.Int64("user_id", userID))
	return nil
}

// ListAvailable returns active users nobody has adopted.
func (s *Service) ListAvailable(ctx context.Context, supervisor shared.Actor) ([]shared.Actor, error) {
	if err := rbac.Check(supervisor, rbac.CapAdopt); err != nil {
		return nil, err
	}
	return s.repo.ListAvailable(ctx)
}

// ListAdopted returns the users supervisor oversees.
func (s *Service) ListAdopted(ctx context.Context, supervisor shared.Actor) ([]shared.Actor, error) {
	if err := rbac.Check(supervisor, rbac.CapAdopt); err != nil {
		return nil, err
	}
	return s.repo.ListAdopted(ctx, supervisor.ID)
}

// IsAdopted reports whether userID is overseen. Actors above role user
// always count as adopted.
func (s *Service) IsAdopted(ctx context.Context, userID int64) (bool, error) {
	actor, err := s.repo.GetActor(ctx, userID)
	if err != nil {
		return false, err
	}
	if actor.Role != shared.RoleUser {
		return true, nil
	}
	_, ok, err := s.SupervisorOf(ctx, userID)
	return ok, err
}

// SupervisorOf returns the supervisor overseeing userID, if any.
func (s *Service) SupervisorOf(ctx context.Context, userID int64) (int64, bool, error) {
	link, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return link.SupervisorID, true, nil
}
