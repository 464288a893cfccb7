package proposals

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/billtrack/billtrack/internal/bills"
	"github.com/billtrack/billtrack/internal/shared"
)

// MaxNoteLength bounds the free-text note in characters.
const MaxNoteLength = 1000

// Status is the approval state of a proposal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Decision is the outcome requested by a reviewer.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ParseDecision validates a decision name.
func ParseDecision(raw string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(raw))); d {
	case DecisionApprove, DecisionReject:
		return d, nil
	}
	return "", fmt.Errorf("proposals: decision %q: %w", raw, shared.ErrInvalidInput)
}

// Proposal is a request to move a bill to another stage.
type Proposal struct {
	ID                   int64       `json:"id"`
	BillID               int64       `json:"bill_id"`
	ProposerID           int64       `json:"proposer_id"`
	CurrentStageSnapshot bills.Stage `json:"current_stage_snapshot"`
	ProposedStage        bills.Stage `json:"proposed_stage"`
	ApprovalStatus       Status      `json:"approval_status"`
	Note                 *string     `json:"note,omitempty"`
	ApprovedBy           *int64      `json:"approved_by,omitempty"`
	ProposedAt           time.Time   `json:"proposed_at"`
	ApprovedAt           *time.Time  `json:"approved_at,omitempty"`
}

// Pending reports whether p still awaits a decision.
func (p Proposal) Pending() bool {
	return p.ApprovalStatus == StatusPending
}

// CreateInput carries a new stage-change request.
type CreateInput struct {
	BillID        int64
	ProposedStage bills.Stage
	Note          string
}

// Validate checks the request shape before any storage access.
func (in CreateInput) Validate() error {
	if in.BillID <= 0 {
		return fmt.Errorf("proposals: bill id required: %w", shared.ErrInvalidInput)
	}
	if !in.ProposedStage.Valid() {
		return fmt.Errorf("proposals: stage %q: %w", in.ProposedStage, shared.ErrInvalidInput)
	}
	if len([]rune(in.Note)) > MaxNoteLength {
		return fmt.Errorf("proposals: note exceeds %d characters: %w", MaxNoteLength, shared.ErrInvalidInput)
	}
	return nil
}

// Filter narrows pending listings. Zero fields match everything.
type Filter struct {
	BillID     int64
	ProposerID int64
	// SupervisorID restricts results to proposals a supervisor reviews:
	// proposals from non-user roles and from users the supervisor adopted.
	SupervisorID int64
	After        Cursor
}

// Cursor is a keyset position in (proposed_at, id) order.
type Cursor struct {
	ProposedAt time.Time
	ID         int64
}

// CursorOf returns the position just after p.
func CursorOf(p Proposal) Cursor {
	return Cursor{ProposedAt: p.ProposedAt, ID: p.ID}
}

// IsZero reports whether c is the start of the listing.
func (c Cursor) IsZero() bool {
	return c.ID == 0 && c.ProposedAt.IsZero()
}

// Less orders cursors the same way the listing does.
func (c Cursor) Less(other Cursor) bool {
	if c.ProposedAt.Equal(other.ProposedAt) {
		return c.ID < other.ID
	}
	return c.ProposedAt.Before(other.ProposedAt)
}

// Encode renders c as an opaque token.
func (c Cursor) Encode() string {
	if c.IsZero() {
		return ""
	}
	raw := strconv.FormatInt(c.ProposedAt.UnixNano(), 10) + ":" + strconv.FormatInt(c.ID, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor decodes a token produced by Cursor.Encode.
func ParseCursor(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("proposals: cursor: %w", shared.ErrInvalidInput)
	}
	nanos, id, ok := strings.Cut(string(raw), ":")
	if !ok {
		return Cursor{}, fmt.Errorf("proposals: cursor: %w", shared.ErrInvalidInput)
	}
	ns, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("proposals: cursor: %w", shared.ErrInvalidInput)
	}
	pid, err := strconv.ParseInt(id, 10, 64)
	if err != nil || pid <= 0 {
		return Cursor{}, fmt.Errorf("proposals: cursor: %w", shared.ErrInvalidInput)
	}
	return Cursor{ProposedAt: time.Unix(0, ns).UTC(), ID: pid}, nil
}

// Outcome is the result of resolving a proposal. Bill is set only when the
// bill stage changed.
type Outcome struct {
	Proposal Proposal    `json:"proposal"`
	Bill     *bills.Bill `json:"bill,omitempty"`
}
