package production

import (
	"time"

	"github.com/warp/orderflow/catalog"
	"github.com/warp/orderflow/core"
)

// =============================================================================
// ORDER
// =============================================================================

// Order is one unit to produce. Its Status only changes via TransitionTo.
type Order struct {
	ID          core.OrderID      `json:"id"`
	ProductID   catalog.ProductID `json:"product_id"`
	VariantID   catalog.VariantID `json:"variant_id"`
	Embroidery  bool              `json:"embroidery"`
	Urgent      bool              `json:"urgent"`
	Marketplace bool              `json:"marketplace"`
	Comment     string            `json:"comment,omitempty"`
	Status      Status            `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
	SalesLineID core.SalesLineID  `json:"sales_line_id,omitempty"`
}

// IsFinished reports whether the order reached the terminal status.
func (o Order) IsFinished() bool { return IsTerminal(o.Status) }

// HistoryEntry is one append-only status change.
type HistoryEntry struct {
	OrderID core.OrderID
	Status  Status
	Actor   core.Actor
	At      time.Time
}

// ComputeFinishedAt returns the finish time implied by moving to next:
// the existing time (or now) for the terminal status, nil otherwise.
func ComputeFinishedAt(next Status, current *time.Time, now time.Time) *time.Time {
	if !IsTerminal(next) {
		return nil
	}
	if current != nil {
		t := *current
		return &t
	}
	return &now
}

// TransitionTo moves the order to next.
//
// Returns changed=true when the order must be persisted, and a history
// entry when a real transition happened. Re-asserting the current status
// writes no history but normalizes FinishedAt.
//
// On error the order is left untouched.
func (o *Order) TransitionTo(next Status, actor core.Actor, now time.Time) (changed bool, entry *HistoryEntry, err error) {
	if _, ok := Lookup(next); !ok {
		return false, nil, &UnknownStatusError{Value: string(next)}
	}

	finishedAt := ComputeFinishedAt(next, o.FinishedAt, now)

	if next == o.Status {
		if sameTime(finishedAt, o.FinishedAt) {
			return false, nil, nil
		}
		o.FinishedAt = finishedAt
		return true, nil, nil
	}

	if !IsAllowedTransition(o.Status, next) {
		return false, nil, &InvalidTransitionError{OrderID: o.ID, Current: o.Status, Attempted: next}
	}

	o.Status = next
	o.FinishedAt = finishedAt
	return true, &HistoryEntry{OrderID: o.ID, Status: next, Actor: actor, At: now}, nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
