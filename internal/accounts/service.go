package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/billtrack/billtrack/internal/rbac"
	"github.com/billtrack/billtrack/internal/shared"
)

// RepositoryPort describes the persistence operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetActor(ctx context.Context, id int64) (shared.Actor, error)
	ListActors(ctx context.Context, status shared.AccountStatus) ([]shared.Actor, error)
	ListPendingEscalations(ctx context.Context, role shared.Role) ([]PendingEscalation, error)
}

// TxRepository is the transactional view used by account decisions.
type TxRepository interface {
	LockActor(ctx context.Context, id int64) (shared.Actor, error)
	SetAccountStatus(ctx context.Context, id int64, status shared.AccountStatus) (shared.Actor, error)
	SetRole(ctx context.Context, id int64, role shared.Role) (shared.Actor, error)
	LockEscalation(ctx context.Context, actorID int64, role shared.Role) (Escalation, error)
	SaveEscalation(ctx context.Context, e Escalation) error
	DropAdoption(ctx context.Context, userID int64) error
	DropSupervisedLinks(ctx context.Context, supervisorID int64) error
}

// Notifier is told about committed account decisions.
type Notifier interface {
	AccountDecided(ctx context.Context, actor shared.Actor) error
}

// Service is the role and account directory.
type Service struct {
	repo     RepositoryPort
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the directory. notifier may be nil.
func NewService(repo RepositoryPort, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, notifier: notifier, logger: logger, now: time.Now}
}

// GetActor returns the actor or shared.ErrNotFound.
func (s *Service) GetActor(ctx context.Context, id int64) (shared.Actor, error) {
	if id <= 0 {
		return shared.Actor{}, fmt.Errorf("accounts: actor id required: %w", shared.ErrInvalidInput)
	}
	return s.repo.GetActor(ctx, id)
}

// ListAccounts returns accounts in status, or all accounts when status is empty.
func (s *Service) ListAccounts(ctx context.Context, admin shared.Actor, status shared.AccountStatus) ([]shared.Actor, error) {
	if err := rbac.Check(admin, rbac.CapDecideAccount); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("accounts: status %q: %w", status, shared.ErrInvalidInput)
	}
	return s.repo.ListActors(ctx, status)
}

// ApproveAccount activates a registration.
func (s *Service) ApproveAccount(ctx context.Context, admin shared.Actor, actorID int64) (shared.Actor, error) {
	return s.decideAccount(ctx, admin, actorID, shared.AccountActive)
}

// DenyAccount refuses a registration. Admins cannot deny themselves.
func (s *Service) DenyAccount(ctx context.Context, admin shared.Actor, actorID int64) (shared.Actor, error) {
	if admin.ID == actorID {
		if err := rbac.Check(admin, rbac.CapDecideAccount); err != nil {
			return shared.Actor{}, err
		}
		return shared.Actor{}, fmt.Errorf("accounts: actor %d cannot deny own account: %w", actorID, shared.ErrInvalidTarget)
	}
	return s.decideAccount(ctx, admin, actorID, shared.AccountDenied)
}

func (s *Service) decideAccount(ctx context.Context, admin shared.Actor, actorID int64, status shared.AccountStatus) (shared.Actor, error) {
	if err := rbac.Check(admin, rbac.CapDecideAccount); err != nil {
		return shared.Actor{}, err
	}
	var (
		updated shared.Actor
		changed bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockActor(ctx, actorID)
		if err != nil {
			return err
		}
		if current.AccountStatus == status {
			updated = current
			return nil
		}
		if status == shared.AccountDenied && current.Role == shared.RoleSupervisor {
			if err := tx.DropSupervisedLinks(ctx, actorID); err != nil {
				return err
			}
		}
		updated, err = tx.SetAccountStatus(ctx, actorID, status)
		changed = err == nil
		return err
	})
	if err != nil {
		return shared.Actor{}, err
	}
	if changed {
		s.logger.Info("account decided", slog.Int64("actor_id", actorID), slog.String("status", string(status)), slog.Int64("admin_id", admin.ID))
		s.notifyAccount(ctx, updated)
	}
	return updated, nil
}

// RequestEscalation opens a request for target. Repeating an outstanding
// request is a no-op; a decided request starts a new cycle.
func (s *Service) RequestEscalation(ctx context.Context, actor shared.Actor, target shared.Role) (Escalation, error) {
	if err := rbac.Check(actor, rbac.CapRequestRole); err != nil {
		return Escalation{}, err
	}
	if !target.Valid() || target == shared.RoleUser {
		return Escalation{}, fmt.Errorf("accounts: role %q cannot be requested: %w", target, shared.ErrInvalidInput)
	}
	var result Escalation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockActor(ctx, actor.ID)
		if err != nil {
			return err
		}
		if current.Role == target {
			return fmt.Errorf("accounts: actor %d already holds %s: %w", actor.ID, target, shared.ErrAlreadyGranted)
		}
		e, err := tx.LockEscalation(ctx, actor.ID, target)
		if err != nil {
			return err
		}
		if e.State == EscalationRequested {
			result = e
			return nil
		}
		now := s.now().UTC()
		result = Escalation{ActorID: actor.ID, TargetRole: target, State: EscalationRequested, RequestedAt: &now}
		return tx.SaveEscalation(ctx, result)
	})
	if err != nil {
		return Escalation{}, err
	}
	return result, nil
}

// ListPendingEscalations returns outstanding requests for target.
func (s *Service) ListPendingEscalations(ctx context.Context, admin shared.Actor, target shared.Role) ([]PendingEscalation, error) {
	if err := rbac.Check(admin, rbac.CapDecideEscalation); err != nil {
		return nil, err
	}
	if !target.Valid() || target == shared.RoleUser {
		return nil, fmt.Errorf("accounts: role %q: %w", target, shared.ErrInvalidInput)
	}
	return s.repo.ListPendingEscalations(ctx, target)
}

// DecideEscalation closes an outstanding request. Approval grants the role
// and clears adoption links tied to the role being left: the actor's own
// link when leaving user, the links it owns when leaving supervisor.
func (s *Service) DecideEscalation(ctx context.Context, admin shared.Actor, actorID int64, target shared.Role, decision Decision) (Escalation, error) {
	if err := rbac.Check(admin, rbac.CapDecideEscalation); err != nil {
		return Escalation{}, err
	}
	if decision != DecisionApprove && decision != DecisionDeny {
		return Escalation{}, fmt.Errorf("accounts: decision %q: %w", decision, shared.ErrInvalidInput)
	}
	var result Escalation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		e, err := tx.LockEscalation(ctx, actorID, target)
		if err != nil {
			return err
		}
		if e.State != EscalationRequested {
			return fmt.Errorf("accounts: no outstanding %s request for actor %d: %w", target, actorID, shared.ErrNotFound)
		}
		subject, err := tx.LockActor(ctx, actorID)
		if err != nil {
			return err
		}
		verdict := EscalationDenied
		if decision == DecisionApprove {
			verdict = EscalationApproved
			if _, err := tx.SetRole(ctx, actorID, target); err != nil {
				return err
			}
			if err := releaseLinks(ctx, tx, subject, target); err != nil {
				return err
			}
		}
		now := s.now().UTC()
		decidedBy := admin.ID
		e.State = EscalationDecided
		e.Decision = &verdict
		e.DecidedAt = &now
		e.DecidedBy = &decidedBy
		result = e
		return tx.SaveEscalation(ctx, e)
	})
	if err != nil {
		return Escalation{}, err
	}
	s.logger.Info("escalation decided",
		slog.Int64("actor_id", actorID),
		slog.String("role", string(target)),
		slog.String("decision", string(*result.Decision)),
		slog.Int64("admin_id", admin.ID))
	return result, nil
}

func releaseLinks(ctx context.Context, tx TxRepository, subject shared.Actor, target shared.Role) error {
	switch {
	case subject.Role == shared.RoleUser && target != shared.RoleUser:
		return tx.DropAdoption(ctx, subject.ID)
	case subject.Role == shared.RoleSupervisor && target != shared.RoleSupervisor:
		return tx.DropSupervisedLinks(ctx, subject.ID)
	}
	return nil
}

func (s *Service) notifyAccount(ctx context.Context, actor shared.Actor) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.AccountDecided(context.WithoutCancel(ctx), actor); err != nil {
		s.logger.Warn("notify account decided", slog.Int64("actor_id", actor.ID), slog.Any("error", err))
	}
}
