/*
auditor.go - Periodic consistency audit

PURPOSE:
  Periodically compares cached state with its source of truth and reports
  drift:
  - production orders: cached status vs latest history row
  - stock records:     cached quantity vs sum of movements

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Runs once immediately on start
  - Read-only unless Fix is set; Fix only rewrites order statuses, stock
    drift is reported for an operator to correct with adjustments
  - Every run is logged; drift at warn level

USAGE:
  auditor := NewAuditor(orders, ledger)
  auditor.Start()
  // ... later
  auditor.Stop()

SEE ALSO:
  - admin.go:            manual trigger endpoints
  - cmd/audit:           one-shot CLI
  - production/check.go: CheckConsistency
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/orderflow/core"
	"github.com/warp/orderflow/inventory"
	"github.com/warp/orderflow/production"
)

// AuditReport is the result of one audit run.
type AuditReport struct {
	Orders *production.CheckReport `json:"orders"`
	Stock  []inventory.Discrepancy `json:"stock_drift"`
	RanAt  time.Time               `json:"ran_at"`
}

// OK reports whether the run found no drift.
func (r AuditReport) OK() bool {
	return (r.Orders == nil || r.Orders.OK()) && len(r.Stock) == 0
}

// Auditor runs consistency checks on an interval.
type Auditor struct {
	Orders   *production.Service
	Ledger   *inventory.Ledger
	Interval time.Duration
	Fix      bool
	Limit    int

	log    *logrus.Entry
	clock  core.Clock
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	last   *AuditReport
}

// NewAuditor creates an auditor with a one hour interval.
func NewAuditor(orders *production.Service, ledger *inventory.Ledger) *Auditor {
	return &Auditor{
		Orders:   orders,
		Ledger:   ledger,
		Interval: time.Hour,
		log:      logrus.WithField("component", "auditor"),
		clock:    core.SystemClock{},
	}
}

func (a *Auditor) SetLogger(e *logrus.Entry) { a.log = e }
func (a *Auditor) SetClock(c core.Clock) { a.clock = c }

// Start begins periodic runs. A non-positive interval disables them.
func (a *Auditor) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.Interval <= 0 {
		a.log.Info("periodic audit disabled")
		return
	}
	if a.ticker != nil {
		return
	}

	a.ticker = time.NewTicker(a.Interval)
	a.stop = make(chan struct{})
	a.wg.Add(1)
	go a.run(a.ticker.C, a.stop)

	a.log.WithField("interval", a.Interval).Info("auditor started")
}

// Stop stops periodic runs and waits for the current one.
func (a *Auditor) Stop() {
	a.mu.Lock()
	ticker, stop := a.ticker, a.stop
	a.ticker, a.stop = nil, nil
	a.mu.Unlock()

	if ticker == nil {
		return
	}
	ticker.Stop()
	close(stop)
	a.wg.Wait()
	a.log.Info("auditor stopped")
}

func (a *Auditor) run(tick <-chan time.Time, stop <-chan struct{}) {
	defer a.wg.Done()

	a.runLogged()
	for {
		select {
		case <-tick:
			a.runLogged()
		case <-stop:
			return
		}
	}
}

func (a *Auditor) runLogged() {
	if _, err := a.RunNow(context.Background(), a.Fix); err != nil {
		a.log.WithError(err).Error("audit failed")
	}
}

// RunNow runs one audit synchronously.
func (a *Auditor) RunNow(ctx context.Context, fix bool) (*AuditReport, error) {
	orders, err := a.Orders.CheckConsistency(ctx, production.CheckOptions{Fix: fix, Limit: a.Limit})
	if err != nil {
		return nil, err
	}
	drift, err := a.Ledger.Reconcile(ctx)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{Orders: orders, Stock: drift, RanAt: a.clock.Now()}

	entry := a.log.WithFields(logrus.Fields{
		"checked":         orders.Checked,
		"mismatches":      len(orders.Mismatches),
		"missing_history": orders.MissingHistory,
		"fixed":           orders.Fixed,
		"stock_drift":     len(drift),
	})
	if report.OK() {
		entry.Info("audit completed")
	} else {
		entry.Warn("audit found drift")
	}

	a.mu.Lock()
	a.last = report
	a.mu.Unlock()
	return report, nil
}

// Last returns the most recent report, nil before the first run.
func (a *Auditor) Last() *AuditReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}
