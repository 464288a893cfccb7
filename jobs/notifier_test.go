package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/billtrack/billtrack/internal/bills"
	"github.com/billtrack/billtrack/internal/proposals"
	"github.com/billtrack/billtrack/internal/shared"
)

type enqueued struct {
	task *asynq.Task
	opts map[asynq.OptionType]any
}

type fakeEnqueuer struct {
	calls []enqueued
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	values := make(map[asynq.OptionType]any, len(opts))
	for _, opt := range opts {
		values[opt.Type()] = opt.Value()
	}
	f.calls = append(f.calls, enqueued{task: task, opts: values})
	if f.err != nil {
		return nil, f.err
	}
	id, _ := values[asynq.TaskIDOpt].(string)
	return &asynq.TaskInfo{ID: id, Type: task.Type()}, nil
}

func resolvedProposal() (proposals.Proposal, bills.Bill) {
	approver := int64(9)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := proposals.Proposal{
		ID:                   42,
		BillID:               7,
		ProposerID:           3,
		CurrentStageSnapshot: bills.StageIntroduced,
		ProposedStage:        bills.StageCommitteeScheduled,
		ApprovalStatus:       proposals.StatusApproved,
		ApprovedBy:           &approver,
		ProposedAt:           at.Add(-time.Hour),
		ApprovedAt:           &at,
	}
	b := bills.Bill{ID: 7, BillNumber: "HB1", BillTitle: "Roads", CurrentStage: bills.StageCommitteeScheduled}
	return p, b
}

func TestNotifierProposalResolvedQueuesTask(t *testing.T) {
	queue := &fakeEnqueuer{}
	n := NewNotifier(queue, nil)
	p, b := resolvedProposal()

	require.NoError(t, n.ProposalResolved(context.Background(), p, b))
	require.Len(t, queue.calls, 1)

	call := queue.calls[0]
	require.Equal(t, TaskProposalResolved, call.task.Type())
	require.Equal(t, QueueNotifications, call.opts[asynq.QueueOpt])
	require.Equal(t, TaskKey(TaskProposalResolved, 42, "approved"), call.opts[asynq.TaskIDOpt])

	var payload ProposalResolvedPayload
	require.NoError(t, json.Unmarshal(call.task.Payload(), &payload))
	require.Equal(t, int64(42), payload.ProposalID)
	require.Equal(t, int64(3), payload.ProposerID)
	require.Equal(t, "HB1", payload.BillNumber)
	require.Equal(t, "introduced", payload.FromStage)
	require.Equal(t, "committee_scheduled", payload.CurrentStage)
	require.Equal(t, int64(9), payload.ResolvedBy)
}

func TestNotifierTreatsDuplicateTaskIDAsQueued(t *testing.T) {
	queue := &fakeEnqueuer{err: asynq.ErrTaskIDConflict}
	n := NewNotifier(queue, nil)
	p, b := resolvedProposal()

	require.NoError(t, n.ProposalResolved(context.Background(), p, b))
}

func TestNotifierSurfacesQueueErrors(t *testing.T) {
	boom := errors.New("redis down")
	queue := &fakeEnqueuer{err: boom}
	n := NewNotifier(queue, nil)

	err := n.AccountDecided(context.Background(), shared.Actor{ID: 5, Email: "a@b.c", AccountStatus: shared.AccountActive})
	require.ErrorIs(t, err, boom)
}

func TestNotifierAccountDecided(t *testing.T) {
	queue := &fakeEnqueuer{}
	n := NewNotifier(queue, nil)

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, n.AccountDecided(context.Background(), shared.Actor{ID: 5, Email: "a@b.c", Name: "Ada", AccountStatus: shared.AccountDenied, UpdatedAt: at}))
	require.Len(t, queue.calls, 1)
	require.Equal(t, TaskAccountDecided, queue.calls[0].task.Type())

	var payload AccountDecidedPayload
	require.NoError(t, json.Unmarshal(queue.calls[0].task.Payload(), &payload))
	require.Equal(t, AccountDecidedPayload{ActorID: 5, Email: "a@b.c", Name: "Ada", Status: "denied", DecidedAt: at}, payload)
}

func TestNotifierRepeatedAccountStatusGetsNewTask(t *testing.T) {
	queue := &fakeEnqueuer{}
	n := NewNotifier(queue, nil)
	ctx := context.Background()
	first := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	denied := shared.Actor{ID: 5, Email: "a@b.c", AccountStatus: shared.AccountDenied, UpdatedAt: first}
	require.NoError(t, n.AccountDecided(ctx, denied))
	require.NoError(t, n.AccountDecided(ctx, denied))
	deniedAgain := denied
	deniedAgain.UpdatedAt = first.Add(48 * time.Hour)
	require.NoError(t, n.AccountDecided(ctx, deniedAgain))

	require.Len(t, queue.calls, 3)
	ids := make([]string, 0, 3)
	for _, call := range queue.calls {
		ids = append(ids, call.opts[asynq.TaskIDOpt].(string))
	}
	require.Equal(t, ids[0], ids[1])
	require.NotEqual(t, ids[0], ids[2])
}

func TestTaskKeyIsStable(t *testing.T) {
	a := TaskKey(TaskProposalResolved, 1, "approved")
	require.Equal(t, a, TaskKey(TaskProposalResolved, 1, "approved"))
	require.NotEqual(t, a, TaskKey(TaskProposalResolved, 1, "rejected"))
	require.NotEqual(t, a, TaskKey(TaskAccountDecided, 1, "approved"))
}
