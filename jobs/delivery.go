package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/billtrack/billtrack/internal/jobs"
	"github.com/billtrack/billtrack/internal/shared"
)

const idempotencyModule = "notifications"

// ActorLookup resolves recipients.
type ActorLookup interface {
	GetActor(ctx context.Context, id int64) (shared.Actor, error)
}

// Claimer guards side effects that must run at most once.
// *shared.IdempotencyStore satisfies it.
type Claimer interface {
	Claim(ctx context.Context, key, module string) error
	Release(ctx context.Context, key string) error
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// DeliveryJob sends queued notifications.
type DeliveryJob struct {
	Actors  ActorLookup
	Mailer  Mailer
	Claims  Claimer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewDeliveryJob wires dependencies for the notification handlers.
func NewDeliveryJob(actors ActorLookup, mailer Mailer, claims Claimer, logger *slog.Logger, metrics *jobmetrics.Metrics) *DeliveryJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeliveryJob{Actors: actors, Mailer: mailer, Claims: claims, Logger: logger, Metrics: metrics}
}

// Handlers lists the task handlers served by the job.
func (j *DeliveryJob) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskProposalResolved, Handler: j.HandleProposalResolved},
		{Type: TaskAccountDecided, Handler: j.HandleAccountDecided},
		{Type: TaskIdempotencyCleanup, Handler: j.HandleCleanup},
	}
}

// HandleProposalResolved mails the proposer about a decision.
func (j *DeliveryJob) HandleProposalResolved(ctx context.Context, t *asynq.Task) (err error) {
	tracker := j.Metrics.Track(TaskProposalResolved)
	defer func() { err = tracker.End(err) }()

	var payload ProposalResolvedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.ProposalID <= 0 {
		return fmt.Errorf("jobs: bad %s payload: %w", TaskProposalResolved, asynq.SkipRetry)
	}
	logger := j.Logger.With(slog.Int64("proposal_id", payload.ProposalID), slog.String("status", payload.Status))

	proposer, err := j.Actors.GetActor(ctx, payload.ProposerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			logger.Warn("proposer gone, dropping notification")
			return nil
		}
		return err
	}
	key := fmt.Sprintf("%s:%d:%s", TaskProposalResolved, payload.ProposalID, payload.Status)
	return j.deliver(ctx, logger, key, proposalMessage(proposer, payload))
}

// HandleAccountDecided mails the account holder about a registration decision.
func (j *DeliveryJob) HandleAccountDecided(ctx context.Context, t *asynq.Task) (err error) {
	tracker := j.Metrics.Track(TaskAccountDecided)
	defer func() { err = tracker.End(err) }()

	var payload AccountDecidedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.ActorID <= 0 || payload.Email == "" {
		return fmt.Errorf("jobs: bad %s payload: %w", TaskAccountDecided, asynq.SkipRetry)
	}
	logger := j.Logger.With(slog.Int64("actor_id", payload.ActorID), slog.String("status", payload.Status))
	key := fmt.Sprintf("%s:%d:%s", TaskAccountDecided, payload.ActorID, payload.outcome())
	return j.deliver(ctx, logger, key, accountMessage(payload))
}

// HandleCleanup prunes delivery keys past retention.
func (j *DeliveryJob) HandleCleanup(ctx context.Context, t *asynq.Task) (err error) {
	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	defer func() { err = tracker.End(err) }()

	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.RetentionHours <= 0 {
		return fmt.Errorf("jobs: bad %s payload: %w", TaskIdempotencyCleanup, asynq.SkipRetry)
	}
	removed, err := j.Claims.Cleanup(ctx, time.Duration(payload.RetentionHours)*time.Hour)
	if err != nil {
		return err
	}
	j.Logger.Info("idempotency keys pruned", slog.Int64("removed", removed))
	return nil
}

func (j *DeliveryJob) deliver(ctx context.Context, logger *slog.Logger, key string, msg Message) error {
	if err := j.Claims.Claim(ctx, key, idempotencyModule); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			logger.Info("notification already delivered", slog.String("key", key))
			return nil
		}
		return err
	}
	if err := j.Mailer.Send(ctx, msg); err != nil {
		if releaseErr := j.Claims.Release(context.WithoutCancel(ctx), key); releaseErr != nil {
			logger.Error("release delivery key", slog.String("key", key), slog.Any("error", releaseErr))
		}
		logger.Warn("notification delivery failed", slog.Any("error", err))
		return err
	}
	logger.Info("notification delivered", slog.String("to", msg.To))
	return nil
}

func proposalMessage(to shared.Actor, p ProposalResolvedPayload) Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Hello %s,\n\n", displayName(to))
	fmt.Fprintf(&body, "Your proposal to move %s (%s) from %s to %s was %s.\n",
		p.BillNumber, p.BillTitle, p.FromStage, p.ProposedStage, p.Status)
	fmt.Fprintf(&body, "The bill is now at %s.\n", p.CurrentStage)
	return Message{
		To:      to.Email,
		Subject: fmt.Sprintf("Proposal for %s %s", p.BillNumber, p.Status),
		Body:    body.String(),
	}
}

func accountMessage(p AccountDecidedPayload) Message {
	var body string
	switch shared.AccountStatus(p.Status) {
	case shared.AccountActive:
		body = "Your billtrack account has been approved. You can now sign in and propose stage changes.\n"
	default:
		body = "Your billtrack account request was not approved.\n"
	}
	name := p.Name
	if name == "" {
		name = p.Email
	}
	return Message{
		To:      p.Email,
		Subject: "Your billtrack account was " + p.Status,
		Body:    "Hello " + name + ",\n\n" + body,
	}
}

func displayName(a shared.Actor) string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}
