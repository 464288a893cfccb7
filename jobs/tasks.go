package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueNotifications carries outbound notifications.
	QueueNotifications = "notifications"

	// TaskProposalResolved tells a proposer their proposal was decided.
	TaskProposalResolved = "notify:proposal_resolved"
	// TaskAccountDecided tells an account holder their registration was decided.
	TaskAccountDecided = "notify:account_decided"
	// TaskIdempotencyCleanup prunes old delivery keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// ProposalResolvedPayload describes a committed approve or reject decision.
type ProposalResolvedPayload struct {
	ProposalID    int64     `json:"proposal_id"`
	ProposerID    int64     `json:"proposer_id"`
	BillID        int64     `json:"bill_id"`
	BillNumber    string    `json:"bill_number"`
	BillTitle     string    `json:"bill_title"`
	FromStage     string    `json:"from_stage"`
	ProposedStage string    `json:"proposed_stage"`
	CurrentStage  string    `json:"current_stage"`
	Status        string    `json:"status"`
	ResolvedBy    int64     `json:"resolved_by"`
	ResolvedAt    time.Time `json:"resolved_at"`
}

// AccountDecidedPayload describes an approve or deny decision on an account.
type AccountDecidedPayload struct {
	ActorID   int64     `json:"actor_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	DecidedAt time.Time `json:"decided_at"`
}

// outcome identifies one decision. An account can reach the same status more
// than once, so the decision time is part of it.
func (p AccountDecidedPayload) outcome() string {
	return p.Status + "@" + p.DecidedAt.UTC().Format(time.RFC3339Nano)
}

// IdempotencyCleanupPayload configures the retention window.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewProposalResolvedTask constructs an Asynq task.
func NewProposalResolvedTask(payload ProposalResolvedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("jobs: encode %s: %w", TaskProposalResolved, err)
	}
	return asynq.NewTask(TaskProposalResolved, data), nil
}

// NewAccountDecidedTask constructs an Asynq task.
func NewAccountDecidedTask(payload AccountDecidedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("jobs: encode %s: %w", TaskAccountDecided, err)
	}
	return asynq.NewTask(TaskAccountDecided, data), nil
}

// NewIdempotencyCleanupTask constructs the periodic cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	hours := int(retention / time.Hour)
	if hours <= 0 {
		hours = 24 * 30
	}
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: hours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
