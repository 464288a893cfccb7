package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/billtrack/billtrack/internal/bills"
	"github.com/billtrack/billtrack/internal/proposals"
	"github.com/billtrack/billtrack/internal/shared"
)

// taskNamespace seeds deterministic task ids so a decision is queued once
// even if the caller retries.
var taskNamespace = uuid.MustParse("6f1c1f9e-5a53-4c55-9a0b-8f3a3c2b7d41")

// Enqueuer is the subset of *asynq.Client used by Notifier.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Notifier turns committed workflow decisions into queued notification tasks.
type Notifier struct {
	queue  Enqueuer
	logger *slog.Logger
}

// NewNotifier constructs a Notifier.
func NewNotifier(queue Enqueuer, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{queue: queue, logger: logger}
}

// ProposalResolved enqueues a notification for the proposer.
func (n *Notifier) ProposalResolved(ctx context.Context, p proposals.Proposal, bill bills.Bill) error {
	payload := ProposalResolvedPayload{
		ProposalID:    p.ID,
		ProposerID:    p.ProposerID,
		BillID:        bill.ID,
		BillNumber:    bill.BillNumber,
		BillTitle:     bill.BillTitle,
		FromStage:     string(p.CurrentStageSnapshot),
		ProposedStage: string(p.ProposedStage),
		CurrentStage:  string(bill.CurrentStage),
		Status:        string(p.ApprovalStatus),
	}
	if p.ApprovedBy != nil {
		payload.ResolvedBy = *p.ApprovedBy
	}
	if p.ApprovedAt != nil {
		payload.ResolvedAt = *p.ApprovedAt
	}
	task, err := NewProposalResolvedTask(payload)
	if err != nil {
		return err
	}
	return n.enqueue(ctx, task, TaskKey(TaskProposalResolved, p.ID, string(p.ApprovalStatus)))
}

// AccountDecided enqueues a notification for the account holder.
func (n *Notifier) AccountDecided(ctx context.Context, actor shared.Actor) error {
	payload := AccountDecidedPayload{
		ActorID:   actor.ID,
		Email:     actor.Email,
		Name:      actor.Name,
		Status:    string(actor.AccountStatus),
		DecidedAt: actor.UpdatedAt,
	}
	task, err := NewAccountDecidedTask(payload)
	if err != nil {
		return err
	}
	return n.enqueue(ctx, task, TaskKey(TaskAccountDecided, actor.ID, payload.outcome()))
}

func (n *Notifier) enqueue(ctx context.Context, task *asynq.Task, taskID string) error {
	info, err := n.queue.EnqueueContext(ctx, task,
		asynq.Queue(QueueNotifications),
		asynq.TaskID(taskID),
		asynq.MaxRetry(8),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			n.logger.Debug("notification already queued", slog.String("task_id", taskID))
			return nil
		}
		return fmt.Errorf("jobs: enqueue %s: %w", task.Type(), err)
	}
	n.logger.Info("notification queued", slog.String("type", task.Type()), slog.String("task_id", info.ID))
	return nil
}

// TaskKey derives the stable id of a notification task.
func TaskKey(taskType string, subjectID int64, outcome string) string {
	return uuid.NewSHA1(taskNamespace, []byte(fmt.Sprintf("%s:%d:%s", taskType, subjectID, outcome))).String()
}
