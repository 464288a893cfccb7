package proposals

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/billtrack/billtrack/internal/bills"
	"github.com/billtrack/billtrack/internal/shared"
)

// memoryRepo serializes transactions behind a mutex and restores its maps
// when fn fails, mirroring a database rollback.
type memoryRepo struct {
	mu        sync.Mutex
	bills     map[int64]bills.Bill
	proposals map[int64]Proposal
	roles     map[int64]shared.Role
	adoptions map[int64]int64
	nextID    int64
	clock     time.Time

	failMark    error
	afterLookup func()
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		bills:     make(map[int64]bills.Bill),
		proposals: make(map[int64]Proposal),
		roles:     make(map[int64]shared.Role),
		adoptions: make(map[int64]int64),
		clock:     time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
	}
}

func (r *memoryRepo) addBill(number string, stage bills.Stage) bills.Bill {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	bill := bills.Bill{ID: r.nextID, BillNumber: number, CurrentStage: stage}
	r.bills[bill.ID] = bill
	return bill
}

func (r *memoryRepo) bill(id int64) bills.Bill {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bills[id]
}

func (r *memoryRepo) proposal(id int64) Proposal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.proposals[id]
}

func (r *memoryRepo) countPending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.proposals {
		if p.Pending() {
			n++
		}
	}
	return n
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	billsSnap := make(map[int64]bills.Bill, len(r.bills))
	for k, v := range r.bills {
		billsSnap[k] = v
	}
	propSnap := make(map[int64]Proposal, len(r.proposals))
	for k, v := range r.proposals {
		propSnap[k] = v
	}
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.bills = billsSnap
		r.proposals = propSnap
		return err
	}
	return nil
}

func (r *memoryRepo) GetBill(ctx context.Context, id int64) (bills.Bill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bill, ok := r.bills[id]
	if !ok {
		return bills.Bill{}, fmt.Errorf("bill %d: %w", id, shared.ErrNotFound)
	}
	return bill, nil
}

func (r *memoryRepo) HasPending(ctx context.Context, billID, proposerID int64, stage bills.Stage) (bool, error) {
	if r.afterLookup != nil {
		defer r.afterLookup()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasPendingLocked(billID, proposerID, stage), nil
}

func (r *memoryRepo) hasPendingLocked(billID, proposerID int64, stage bills.Stage) bool {
	for _, p := range r.proposals {
		if p.Pending() && p.BillID == billID && p.ProposerID == proposerID && p.ProposedStage == stage {
			return true
		}
	}
	return false
}

func (r *memoryRepo) Insert(ctx context.Context, p Proposal) (Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bills[p.BillID]; !ok {
		return Proposal{}, shared.ErrNotFound
	}
	if r.hasPendingLocked(p.BillID, p.ProposerID, p.ProposedStage) {
		return Proposal{}, shared.ErrDuplicateProposal
	}
	r.nextID++
	r.clock = r.clock.Add(time.Minute)
	p.ID = r.nextID
	p.ProposedAt = r.clock
	p.ApprovalStatus = StatusPending
	r.proposals[p.ID] = p
	return p, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proposals[id]
	if !ok {
		return Proposal{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) ListPendingPage(ctx context.Context, filter Filter, limit int) ([]Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Proposal
	for _, p := range r.proposals {
		if !p.Pending() {
			continue
		}
		if filter.BillID != 0 && p.BillID != filter.BillID {
			continue
		}
		if filter.ProposerID != 0 && p.ProposerID != filter.ProposerID {
			continue
		}
		if filter.SupervisorID != 0 && r.roles[p.ProposerID] == shared.RoleUser && r.adoptions[p.ProposerID] != filter.SupervisorID {
			continue
		}
		if !filter.After.IsZero() && !filter.After.Less(CursorOf(p)) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return CursorOf(out[i]).Less(CursorOf(out[j])) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepo) History(ctx context.Context, billID int64) ([]Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Proposal
	for _, p := range r.proposals {
		if p.BillID == billID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return CursorOf(out[j]).Less(CursorOf(out[i])) })
	return out, nil
}

func (t *memoryTx) LockProposal(ctx context.Context, id int64) (Proposal, error) {
	p, ok := t.repo.proposals[id]
	if !ok {
		return Proposal{}, fmt.Errorf("proposal %d: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

func (t *memoryTx) LoadBill(ctx context.Context, id int64) (bills.Bill, error) {
	bill, ok := t.repo.bills[id]
	if !ok {
		return bills.Bill{}, fmt.Errorf("bill %d: %w", id, shared.ErrNotFound)
	}
	return bill, nil
}

func (t *memoryTx) AdvanceBill(ctx context.Context, id int64, newStage, expected bills.Stage) (bills.Bill, error) {
	bill, ok := t.repo.bills[id]
	if !ok {
		return bills.Bill{}, shared.ErrNotFound
	}
	if bill.CurrentStage != expected {
		return bills.Bill{}, shared.ErrConflict
	}
	bill.CurrentStage = newStage
	t.repo.bills[id] = bill
	return bill, nil
}

func (t *memoryTx) MarkResolved(ctx context.Context, id int64, status Status, approverID int64, at time.Time) (Proposal, error) {
	if t.repo.failMark != nil {
		return Proposal{}, t.repo.failMark
	}
	p, ok := t.repo.proposals[id]
	if !ok || !p.Pending() {
		return Proposal{}, shared.ErrAlreadyResolved
	}
	p.ApprovalStatus = status
	p.ApprovedBy = &approverID
	p.ApprovedAt = &at
	t.repo.proposals[id] = p
	return p, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Proposal
	err    error
}

func (n *recordingNotifier) ProposalResolved(ctx context.Context, p Proposal, bill bills.Bill) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, p)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

var errStorage = errors.New("storage unavailable")
