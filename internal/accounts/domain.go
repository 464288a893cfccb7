package accounts

import (
	"fmt"
	"strings"
	"time"

	"github.com/billtrack/billtrack/internal/shared"
)

// EscalationState tracks one request cycle per actor and target role.
type EscalationState string

const (
	EscalationNone      EscalationState = "none"
	EscalationRequested EscalationState = "requested"
	EscalationDecided   EscalationState = "decided"
)

// EscalationDecision records how a decided request ended.
type EscalationDecision string

const (
	EscalationApproved EscalationDecision = "approved"
	EscalationDenied   EscalationDecision = "denied"
)

// Escalation is the request state of an actor for one target role.
type Escalation struct {
	ActorID     int64               `json:"actor_id"`
	TargetRole  shared.Role         `json:"target_role"`
	State       EscalationState     `json:"state"`
	Decision    *EscalationDecision `json:"decision,omitempty"`
	RequestedAt *time.Time          `json:"requested_at,omitempty"`
	DecidedAt   *time.Time          `json:"decided_at,omitempty"`
	DecidedBy   *int64              `json:"decided_by,omitempty"`
}

// PendingEscalation pairs an outstanding request with its actor.
type PendingEscalation struct {
	Actor      shared.Actor `json:"actor"`
	Escalation Escalation   `json:"escalation"`
}

// Decision is an admin verdict on an escalation request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDeny    Decision = "deny"
)

// ParseDecision validates a decision name.
func ParseDecision(raw string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(raw))); d {
	case DecisionApprove, DecisionDeny:
		return d, nil
	}
	return "", fmt.Errorf("accounts: decision %q: %w", raw, shared.ErrInvalidInput)
}

// ParseTargetRole validates a role an actor may request.
func ParseTargetRole(raw string) (shared.Role, error) {
	role, err := shared.ParseRole(raw)
	if err != nil {
		return "", err
	}
	if role == shared.RoleUser {
		return "", fmt.Errorf("accounts: role %q cannot be requested: %w", raw, shared.ErrInvalidInput)
	}
	return role, nil
}
