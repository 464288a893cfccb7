package proposals

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/billtrack/billtrack/internal/bills"
	"github.com/billtrack/billtrack/internal/rbac"
	"github.com/billtrack/billtrack/internal/shared"
)

const defaultPageSize = 50

// RepositoryPort describes the persistence operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBill(ctx context.Context, id int64) (bills.Bill, error)
	HasPending(ctx context.Context, billID, proposerID int64, stage bills.Stage) (bool, error)
	Insert(ctx context.Context, p Proposal) (Proposal, error)
	Get(ctx context.Context, id int64) (Proposal, error)
	ListPendingPage(ctx context.Context, filter Filter, limit int) ([]Proposal, error)
	History(ctx context.Context, billID int64) ([]Proposal, error)
}

// TxRepository is the transactional view used while resolving a proposal.
type TxRepository interface {
	LockProposal(ctx context.Context, id int64) (Proposal, error)
	LoadBill(ctx context.Context, id int64) (bills.Bill, error)
	AdvanceBill(ctx context.Context, id int64, newStage, expected bills.Stage) (bills.Bill, error)
	MarkResolved(ctx context.Context, id int64, status Status, approverID int64, at time.Time) (Proposal, error)
}

// Notifier is told about committed resolutions. Failures never affect the
// workflow.
type Notifier interface {
	ProposalResolved(ctx context.Context, p Proposal, bill bills.Bill) error
}

// Metrics receives workflow counters. *observability.Workflow satisfies it.
type Metrics interface {
	ProposalCreated()
	ProposalResolved(outcome string)
	ProposalStale()
}

// Service is the proposal engine: it accepts, deduplicates and lists
// stage-change requests and hands resolution to the Authority.
type Service struct {
	repo      RepositoryPort
	authority *Authority
	metrics   Metrics
	logger    *slog.Logger
	pageSize  int
}

// NewService constructs the engine. notifier and metrics may be nil.
func NewService(repo RepositoryPort, notifier Notifier, metrics Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Service{
		repo:      repo,
		authority: NewAuthority(repo, notifier, metrics, logger),
		metrics:   metrics,
		logger:    logger,
		pageSize:  defaultPageSize,
	}
}

// Authority exposes the approval authority used by Resolve.
func (s *Service) Authority() *Authority {
	return s.authority
}

// Create files a pending proposal to move a bill to another stage.
func (s *Service) Create(ctx context.Context, actor shared.Actor, in CreateInput) (Proposal, error) {
	if err := rbac.Check(actor, rbac.CapPropose); err != nil {
		return Proposal{}, err
	}
	if err := in.Validate(); err != nil {
		return Proposal{}, err
	}
	bill, err := s.repo.GetBill(ctx, in.BillID)
	if err != nil {
		return Proposal{}, err
	}
	if bill.CurrentStage == in.ProposedStage {
		return Proposal{}, fmt.Errorf("proposals: bill %s is already at %s: %w", bill.BillNumber, bill.CurrentStage, shared.ErrInvalidInput)
	}
	exists, err := s.repo.HasPending(ctx, bill.ID, actor.ID, in.ProposedStage)
	if err != nil {
		return Proposal{}, err
	}
	if exists {
		return Proposal{}, fmt.Errorf("proposals: bill %s stage %s: %w", bill.BillNumber, in.ProposedStage, shared.ErrDuplicateProposal)
	}
	p := Proposal{
		BillID:               bill.ID,
		ProposerID:           actor.ID,
		CurrentStageSnapshot: bill.CurrentStage,
		ProposedStage:        in.ProposedStage,
		ApprovalStatus:       StatusPending,
	}
	if note := strings.TrimSpace(in.Note); note != "" {
		p.Note = &note
	}
	created, err := s.repo.Insert(ctx, p)
	if err != nil {
		return Proposal{}, err
	}
	s.metrics.ProposalCreated()
	s.logger.Info("proposal created",
		slog.Int64("proposal_id", created.ID),
		slog.Int64("bill_id", created.BillID),
		slog.Int64("proposer_id", created.ProposerID),
		slog.String("from", string(created.CurrentStageSnapshot)),
		slog.String("to", string(created.ProposedStage)))
	return created, nil
}

// ListPending returns pending proposals oldest first. The sequence fetches
// pages lazily and restarts from filter.After on every iteration.
func (s *Service) ListPending(ctx context.Context, filter Filter) iter.Seq2[Proposal, error] {
	return func(yield func(Proposal, error) bool) {
		cursor := filter.After
		for {
			page := filter
			page.After = cursor
			items, err := s.repo.ListPendingPage(ctx, page, s.pageSize)
			if err != nil {
				yield(Proposal{}, err)
				return
			}
			for _, p := range items {
				if !yield(p, nil) {
					return
				}
			}
			if len(items) < s.pageSize {
				return
			}
			cursor = CursorOf(items[len(items)-1])
		}
	}
}

// ReviewQueue returns the pending proposals visible to reviewer. Admins see
// everything; supervisors see proposals from non-user roles and from their
// adopted users.
func (s *Service) ReviewQueue(ctx context.Context, reviewer shared.Actor, after Cursor) (iter.Seq2[Proposal, error], error) {
	if err := rbac.Check(reviewer, rbac.CapApprove); err != nil {
		return nil, err
	}
	filter := Filter{After: after}
	if reviewer.Role != shared.RoleAdmin {
		filter.SupervisorID = reviewer.ID
	}
	return s.ListPending(ctx, filter), nil
}

// History returns every proposal of a bill, newest first.
func (s *Service) History(ctx context.Context, billID int64) ([]Proposal, error) {
	if billID <= 0 {
		return nil, fmt.Errorf("proposals: bill id required: %w", shared.ErrInvalidInput)
	}
	if _, err := s.repo.GetBill(ctx, billID); err != nil {
		return nil, err
	}
	items, err := s.repo.History(ctx, billID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Proposal{}
	}
	return items, nil
}

// Get returns a single proposal.
func (s *Service) Get(ctx context.Context, id int64) (Proposal, error) {
	if id <= 0 {
		return Proposal{}, fmt.Errorf("proposals: proposal id required: %w", shared.ErrInvalidInput)
	}
	return s.repo.Get(ctx, id)
}

// Resolve applies decision to a pending proposal through the Authority.
func (s *Service) Resolve(ctx context.Context, id int64, decision Decision, approver shared.Actor) (Outcome, error) {
	switch decision {
	case DecisionApprove:
		return s.authority.Approve(ctx, id, approver)
	case DecisionReject:
		p, err := s.authority.Reject(ctx, id, approver)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Proposal: p}, nil
	}
	return Outcome{}, fmt.Errorf("proposals: decision %q: %w", decision, shared.ErrInvalidInput)
}

// Collect drains seq into a slice, stopping at the first error or after
// limit items when limit is positive.
func Collect(seq iter.Seq2[Proposal, error], limit int) ([]Proposal, error) {
	out := []Proposal{}
	for p, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, p)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type noopMetrics struct{}

func (noopMetrics) ProposalCreated()        {}
func (noopMetrics) ProposalResolved(string) {}
func (noopMetrics) ProposalStale()          {}
