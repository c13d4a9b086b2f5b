package production

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/warp/orderflow/core"
)

// =============================================================================
// CONSISTENCY CHECK - cached status vs history
// =============================================================================
//
// History is the source of truth. An order's expected status is the status
// of its latest history row. Orders without history but with a finish time
// are expected FINISHED; otherwise they are counted as missing history.

// CheckOptions configures CheckConsistency.
type CheckOptions struct {
	Fix   bool // rewrite the cached status of mismatched orders
	Limit int  // check at most Limit orders; 0 checks all
}

// Mismatch is one order whose cached status disagrees with its history.
type Mismatch struct {
	OrderID  core.OrderID `json:"order_id"`
	Cached   Status       `json:"cached"`
	Expected Status       `json:"expected"`
}

// CheckReport summarizes a consistency run.
type CheckReport struct {
	Checked        int            `json:"checked"`
	MissingHistory int            `json:"missing_history"`
	Mismatches     []Mismatch     `json:"mismatches"`
	Fixed          int            `json:"fixed"`
	Missing        []core.OrderID `json:"missing,omitempty"`
}

// OK reports whether no drift was found.
func (r CheckReport) OK() bool { return len(r.Mismatches) == 0 && r.MissingHistory == 0 }

// CheckConsistency compares every order's cached status with its history.
// With Fix set, mismatched orders are corrected in one unit.
func (s *Service) CheckConsistency(ctx context.Context, opts CheckOptions) (*CheckReport, error) {
	report := &CheckReport{}

	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		orders, err := s.store.ListOrders(ctx, OrderFilter{Limit: opts.Limit})
		if err != nil {
			return err
		}

		for i := range orders {
			o := &orders[i]
			report.Checked++

			expected, ok, err := s.expectedStatus(ctx, o)
			if err != nil {
				return err
			}
			if !ok {
				report.MissingHistory++
				report.Missing = append(report.Missing, o.ID)
				continue
			}
			if expected == o.Status {
				continue
			}

			report.Mismatches = append(report.Mismatches, Mismatch{OrderID: o.ID, Cached: o.Status, Expected: expected})
			s.log.WithFields(logrus.Fields{
				"order_id": o.ID,
				"cached":   o.Status,
				"expected": expected,
			}).Warn("order status mismatch")

			if !opts.Fix {
				continue
			}
			o.Status = expected
			o.FinishedAt = ComputeFinishedAt(expected, o.FinishedAt, s.clock.Now())
			if err := s.store.SaveOrder(ctx, *o); err != nil {
				return fmt.Errorf("failed to fix order %s: %w", o.ID, err)
			}
			report.Fixed++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (s *Service) expectedStatus(ctx context.Context, o *Order) (Status, bool, error) {
	history, err := s.store.ListHistory(ctx, o.ID)
	if err != nil {
		return "", false, err
	}
	if len(history) > 0 {
		return history[len(history)-1].Status, true, nil
	}
	if o.FinishedAt != nil {
		return StatusFinished, true, nil
	}
	return "", false, nil
}
