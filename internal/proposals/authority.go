package proposals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/billtrack/billtrack/internal/bills"
	"github.com/billtrack/billtrack/internal/rbac"
	"github.com/billtrack/billtrack/internal/shared"
)

// Authority decides proposals. Approval is the only path that changes a
// bill's stage.
type Authority struct {
	repo     RepositoryPort
	notifier Notifier
	metrics  Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthority constructs the approval authority.
func NewAuthority(repo RepositoryPort, notifier Notifier, metrics Metrics, logger *slog.Logger) *Authority {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Authority{repo: repo, notifier: notifier, metrics: metrics, logger: logger, now: time.Now}
}

// Approve moves the bill to the proposed stage and closes the proposal in a
// single transaction. A bill that moved since the proposal was filed yields
// shared.ErrStaleProposal and leaves both records untouched.
func (a *Authority) Approve(ctx context.Context, proposalID int64, approver shared.Actor) (Outcome, error) {
	if err := rbac.Check(approver, rbac.CapApprove); err != nil {
		return Outcome{}, err
	}
	var (
		resolved Proposal
		bill     bills.Bill
	)
	err := a.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.LockProposal(ctx, proposalID)
		if err != nil {
			return err
		}
		if !p.Pending() {
			return fmt.Errorf("proposals: proposal %d is %s: %w", p.ID, p.ApprovalStatus, shared.ErrAlreadyResolved)
		}
		live, err := tx.LoadBill(ctx, p.BillID)
		if err != nil {
			return err
		}
		if live.CurrentStage != p.CurrentStageSnapshot {
			return staleError(p, live.CurrentStage)
		}
		bill, err = tx.AdvanceBill(ctx, p.BillID, p.ProposedStage, p.CurrentStageSnapshot)
		if err != nil {
			if errors.Is(err, shared.ErrConflict) {
				return fmt.Errorf("proposals: proposal %d: %w", p.ID, errors.Join(shared.ErrStaleProposal, err))
			}
			return err
		}
		resolved, err = tx.MarkResolved(ctx, p.ID, StatusApproved, approver.ID, a.now().UTC())
		return err
	})
	if err != nil {
		err = staleOnConflict(err, proposalID)
		if errors.Is(err, shared.ErrStaleProposal) {
			a.metrics.ProposalStale()
		}
		return Outcome{}, err
	}
	a.metrics.ProposalResolved(string(StatusApproved))
	a.logger.Info("proposal approved",
		slog.Int64("proposal_id", resolved.ID),
		slog.Int64("bill_id", bill.ID),
		slog.Int64("approver_id", approver.ID),
		slog.String("stage", string(bill.CurrentStage)))
	a.notify(ctx, resolved, bill)
	return Outcome{Proposal: resolved, Bill: &bill}, nil
}

// Reject closes a pending proposal without touching the bill.
func (a *Authority) Reject(ctx context.Context, proposalID int64, approver shared.Actor) (Proposal, error) {
	if err := rbac.Check(approver, rbac.CapApprove); err != nil {
		return Proposal{}, err
	}
	var (
		resolved Proposal
		bill     bills.Bill
	)
	err := a.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.LockProposal(ctx, proposalID)
		if err != nil {
			return err
		}
		if !p.Pending() {
			return fmt.Errorf("proposals: proposal %d is %s: %w", p.ID, p.ApprovalStatus, shared.ErrAlreadyResolved)
		}
		resolved, err = tx.MarkResolved(ctx, p.ID, StatusRejected, approver.ID, a.now().UTC())
		if err != nil {
			return err
		}
		bill, err = tx.LoadBill(ctx, p.BillID)
		return err
	})
	if err != nil {
		if shared.Kind(err) == shared.ErrConflict {
			return Proposal{}, fmt.Errorf("proposals: reject %d: %w", proposalID, err)
		}
		return Proposal{}, err
	}
	a.metrics.ProposalResolved(string(StatusRejected))
	a.logger.Info("proposal rejected",
		slog.Int64("proposal_id", resolved.ID),
		slog.Int64("bill_id", resolved.BillID),
		slog.Int64("approver_id", approver.ID))
	a.notify(ctx, resolved, bill)
	return resolved, nil
}

// staleOnConflict reports a contention abort during approval as a stale
// proposal: another writer got to the bill or the proposal first.
func staleOnConflict(err error, proposalID int64) error {
	if shared.Kind(err) == shared.ErrConflict {
		return fmt.Errorf("proposals: proposal %d: %w", proposalID, errors.Join(shared.ErrStaleProposal, err))
	}
	return err
}

func (a *Authority) notify(ctx context.Context, p Proposal, bill bills.Bill) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.ProposalResolved(context.WithoutCancel(ctx), p, bill); err != nil {
		a.logger.Warn("notify proposal resolved", slog.Int64("proposal_id", p.ID), slog.Any("error", err))
	}
}

func staleError(p Proposal, live bills.Stage) error {
	return fmt.Errorf("proposals: proposal %d snapshot %s but bill is at %s: %w", p.ID, p.CurrentStageSnapshot, live, shared.ErrStaleProposal)
}
