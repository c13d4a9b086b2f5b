package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/orderflow/catalog"
	"github.com/warp/orderflow/core"
	"github.com/warp/orderflow/inventory"
	"github.com/warp/orderflow/production"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// StockReader reads balances. *inventory.Book satisfies it.
type StockReader interface {
	QuantityOf(ctx context.Context, key inventory.StockKey) (decimal.Decimal, error)
}

// Orders creates and lists production orders. *production.Service satisfies it.
type Orders interface {
	CreateOrder(ctx context.Context, in production.NewOrder, actor core.Actor) (*production.Order, error)
	ListOrders(ctx context.Context, filter production.OrderFilter) ([]production.Order, error)
}

// =============================================================================
// AVAILABILITY CACHE - valid for one provisioning call
// =============================================================================

type availability struct {
	stock    StockReader
	location inventory.LocationID
	left     map[inventory.StockKey]decimal.Decimal
}

func newAvailability(stock StockReader, location inventory.LocationID) *availability {
	return &availability{stock: stock, location: location, left: make(map[inventory.StockKey]decimal.Decimal)}
}

// toProduce returns how many units of req must be produced under mode.
// In auto mode the stock it covers is consumed from the cache.
func (a *availability) toProduce(ctx context.Context, mode ProductionMode, req Requirement) (int, error) {
	switch mode {
	case ModeForce:
		return req.Quantity, nil
	case ModeManual:
		return 0, nil
	}

	key := inventory.StockKey{Location: a.location, Variant: req.VariantID}
	avail, ok := a.left[key]
	if !ok {
		q, err := a.stock.QuantityOf(ctx, key)
		if err != nil {
			return 0, err
		}
		avail = q
	}

	required := decimal.NewFromInt(int64(req.Quantity))
	used := decimal.Min(required, avail)
	if used.IsNegative() {
		used = decimal.Zero
	}
	a.left[key] = avail.Sub(used)
	return int(required.Sub(used).Ceil().IntPart()), nil
}

// =============================================================================
// PROVISIONER
// =============================================================================

// Provisioner creates the production orders a sales line still needs and
// keeps line and sales order statuses derived from those orders.
type Provisioner struct {
	store    Store
	expander *Expander
	stock    StockReader
	orders   Orders
	locker   core.Locker
	location inventory.LocationID
	clock    core.Clock
	log      *logrus.Entry
}

// ProvisionerConfig holds the provisioner's settings.
type ProvisionerConfig struct {
	// StockLocation is the pool auto mode draws from.
	StockLocation inventory.LocationID
}

func NewProvisioner(store Store, expander *Expander, stock StockReader, orders Orders, cfg ProvisionerConfig) *Provisioner {
	if cfg.StockLocation == "" {
		cfg.StockLocation = "MAIN"
	}
	return &Provisioner{
		store:    store,
		expander: expander,
		stock:    stock,
		orders:   orders,
		locker:   core.NopLocker{},
		location: cfg.StockLocation,
		clock:    core.SystemClock{},
		log:      logrus.WithField("component", "provisioning"),
	}
}

func (p *Provisioner) SetLocker(l core.Locker) { p.locker = l }
func (p *Provisioner) SetClock(c core.Clock) { p.clock = c }
func (p *Provisioner) SetLogger(e *logrus.Entry) { p.log = e }

// Provision creates the missing production orders of one line.
// All orders are created in one unit; any failure creates none.
func (p *Provisioner) Provision(ctx context.Context, lineID core.SalesLineID, actor core.Actor) ([]production.Order, error) {
	line, err := p.loadLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	unlock, err := p.lock(ctx, line.OrderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var created []production.Order
	err = p.store.WithTx(ctx, func(ctx context.Context) error {
		line, err := p.loadLine(ctx, lineID)
		if err != nil {
			return err
		}
		created, err = p.provisionLine(ctx, line, newAvailability(p.stock, p.location), actor)
		if err != nil {
			return err
		}
		if err := p.syncLine(ctx, line); err != nil {
			return err
		}
		return p.SyncOrder(ctx, line.OrderID)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ProvisionOrder provisions every line of a sales order with one shared
// availability cache.
func (p *Provisioner) ProvisionOrder(ctx context.Context, orderID SalesOrderID, actor core.Actor) ([]production.Order, error) {
	unlock, err := p.lock(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var created []production.Order
	err = p.store.WithTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = p.provisionOrder(ctx, orderID, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// provisionOrder runs inside a unit.
func (p *Provisioner) provisionOrder(ctx context.Context, orderID SalesOrderID, actor core.Actor) ([]production.Order, error) {
	if _, err := p.loadOrder(ctx, orderID); err != nil {
		return nil, err
	}
	lines, err := p.store.ListLines(ctx, orderID)
	if err != nil {
		return nil, err
	}

	cache := newAvailability(p.stock, p.location)
	var created []production.Order
	for i := range lines {
		orders, err := p.provisionLine(ctx, &lines[i], cache, actor)
		if err != nil {
			return nil, err
		}
		created = append(created, orders...)
		if err := p.syncLine(ctx, &lines[i]); err != nil {
			return nil, err
		}
	}
	if err := p.SyncOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return created, nil
}

func (p *Provisioner) provisionLine(ctx context.Context, line *Line, cache *availability, actor core.Actor) ([]production.Order, error) {
	reqs, err := p.expander.Expand(ctx, *line)
	if err != nil {
		return nil, err
	}

	var created []production.Order
	for _, req := range reqs {
		n, err := cache.toProduce(ctx, line.Mode, req)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			o, err := p.orders.CreateOrder(ctx, production.NewOrder{
				Item:        catalog.RefID(req.VariantID),
				Comment:     fmt.Sprintf("Sales order %s, line %s", line.OrderID, line.ID),
				SalesLineID: line.ID,
			}, actor)
			if err != nil {
				return nil, err
			}
			created = append(created, *o)
		}
		p.log.WithFields(logrus.Fields{
			"line_id":  line.ID,
			"variant":  req.VariantID,
			"required": req.Quantity,
			"produce":  n,
			"mode":     line.Mode,
		}).Info("requirement provisioned")
	}
	return created, nil
}

// =============================================================================
// ROLL-UP
// =============================================================================

// SyncLine re-derives a line's production status and its sales order's
// status. Idempotent.
func (p *Provisioner) SyncLine(ctx context.Context, id core.SalesLineID) error {
	return p.store.WithTx(ctx, func(ctx context.Context) error {
		line, err := p.loadLine(ctx, id)
		if err != nil {
			return err
		}
		if err := p.syncLine(ctx, line); err != nil {
			return err
		}
		return p.SyncOrder(ctx, line.OrderID)
	})
}

func (p *Provisioner) syncLine(ctx context.Context, line *Line) error {
	orders, err := p.orders.ListOrders(ctx, production.OrderFilter{SalesLineID: line.ID})
	if err != nil {
		return err
	}
	finished := 0
	for _, o := range orders {
		if o.IsFinished() {
			finished++
		}
	}

	next := ResolveLineProductionStatus(line.Mode, len(orders), finished)
	if next == line.ProductionStatus {
		return nil
	}
	line.ProductionStatus = next
	return p.store.SaveLine(ctx, *line)
}

// SyncOrder re-derives a sales order's status from its lines. Idempotent.
func (p *Provisioner) SyncOrder(ctx context.Context, id SalesOrderID) error {
	return p.store.WithTx(ctx, func(ctx context.Context) error {
		order, err := p.loadOrder(ctx, id)
		if err != nil {
			return err
		}
		lines, err := p.store.ListLines(ctx, id)
		if err != nil {
			return err
		}
		statuses := make([]ProductionStatus, len(lines))
		for i, l := range lines {
			statuses[i] = l.ProductionStatus
		}

		next, ok := ResolveSalesOrderStatus(order.Status, statuses)
		if !ok {
			return nil
		}
		p.log.WithFields(logrus.Fields{
			"sales_order_id": id,
			"from":           order.Status,
			"to":             next,
		}).Info("sales order status derived")
		order.Status = next
		order.UpdatedAt = p.clock.Now()
		return p.store.SaveSalesOrder(ctx, *order)
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (p *Provisioner) lock(ctx context.Context, id SalesOrderID) (func(), error) {
	unlock, err := p.locker.Lock(ctx, "provision:"+string(id))
	if err != nil {
		if errors.Is(err, core.ErrLockHeld) {
			return nil, fmt.Errorf("%w: sales order %s", ErrProvisionInProgress, id)
		}
		return nil, err
	}
	return unlock, nil
}

func (p *Provisioner) loadLine(ctx context.Context, id core.SalesLineID) (*Line, error) {
	l, err := p.store.GetLine(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("%w: %s", ErrLineNotFound, id)
	}
	return l, nil
}

func (p *Provisioner) loadOrder(ctx context.Context, id SalesOrderID) (*SalesOrder, error) {
	o, err := p.store.GetSalesOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("%w: %s", ErrSalesOrderNotFound, id)
	}
	return o, nil
}
