package sales

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/warp/orderflow/core"
	"github.com/warp/orderflow/production"
)

// Service manages sales orders. Provisioning is delegated to a Provisioner.
type Service struct {
	store       Store
	expander    *Expander
	provisioner *Provisioner
	clock       core.Clock
	log         *logrus.Entry
}

func NewService(store Store, expander *Expander, provisioner *Provisioner) *Service {
	return &Service{
		store:       store,
		expander:    expander,
		provisioner: provisioner,
		clock:       core.SystemClock{},
		log:         logrus.WithField("component", "sales"),
	}
}

func (s *Service) SetClock(c core.Clock) { s.clock = c }
func (s *Service) SetLogger(e *logrus.Entry) { s.log = e }

// NewSalesOrder is the input to CreateSalesOrder.
type NewSalesOrder struct {
	Source       Source
	CustomerInfo string
	Notes        string
	// Lines carry product, color and bundle fields; ID, OrderID and
	// ProductionStatus are assigned. Mode defaults to auto.
	Lines []Line
	// Provision creates the missing production orders in the same unit.
	Provision bool
}

// CreateSalesOrder stores an order with its lines. Every line is expanded
// up front, so an unresolvable variant or bundle fails the whole order.
// Bundle lines are stored with their resolved component choices.
func (s *Service) CreateSalesOrder(ctx context.Context, in NewSalesOrder, actor core.Actor) (*SalesOrder, []production.Order, error) {
	if !in.Source.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown source %q", ErrInvalidSalesOrder, in.Source)
	}
	if len(in.Lines) == 0 {
		return nil, nil, fmt.Errorf("%w: at least one line is required", ErrInvalidSalesOrder)
	}

	var (
		order   *SalesOrder
		created []production.Order
	)
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		now := s.clock.Now()
		o := SalesOrder{
			ID:           SalesOrderID(core.NewID("so")),
			Source:       in.Source,
			CustomerInfo: in.CustomerInfo,
			Notes:        in.Notes,
			Status:       StatusNew,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.store.SaveSalesOrder(ctx, o); err != nil {
			return fmt.Errorf("failed to save sales order: %w", err)
		}

		for _, l := range in.Lines {
			line := l
			line.ID = core.SalesLineID(core.NewID("sl"))
			line.OrderID = o.ID
			line.ProductionStatus = ProductionPending
			if line.Mode == "" {
				line.Mode = ModeAuto
			}
			if !line.Mode.Valid() {
				return fmt.Errorf("%w: unknown production mode %q", ErrInvalidLine, line.Mode)
			}

			reqs, err := s.expander.Expand(ctx, line)
			if err != nil {
				return err
			}
			if line, err = s.expander.Pin(ctx, line); err != nil {
				return err
			}
			if len(reqs) == 1 && reqs[0].ProductID == line.ProductID {
				line.VariantID = reqs[0].VariantID
			}
			if err := s.store.SaveLine(ctx, line); err != nil {
				return fmt.Errorf("failed to save sales line: %w", err)
			}
		}

		if in.Provision {
			var err error
			if created, err = s.provisioner.provisionOrder(ctx, o.ID, actor); err != nil {
				return err
			}
		}

		stored, err := s.store.GetSalesOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		order = stored
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.WithFields(logrus.Fields{
		"sales_order_id": order.ID,
		"lines":          len(in.Lines),
		"orders_created": len(created),
		"actor":          actor,
	}).Info("sales order created")
	return order, created, nil
}

// SetStatus moves a sales order manually (shipping, completion, cancellation).
// Cancelled orders are closed.
func (s *Service) SetStatus(ctx context.Context, id SalesOrderID, status Status, actor core.Actor) (*SalesOrder, error) {
	if !knownStatuses[status] {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidSalesOrder, status)
	}

	var out *SalesOrder
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		o, err := s.provisioner.loadOrder(ctx, id)
		if err != nil {
			return err
		}
		if o.Status == StatusCancelled && status != StatusCancelled {
			return fmt.Errorf("%w: %s", ErrSalesOrderClosed, id)
		}
		if o.Status != status {
			s.log.WithFields(logrus.Fields{
				"sales_order_id": id,
				"from":           o.Status,
				"to":             status,
				"actor":          actor,
			}).Info("sales order status set")
			o.Status = status
			o.UpdatedAt = s.clock.Now()
			if err := s.store.SaveSalesOrder(ctx, *o); err != nil {
				return err
			}
		}
		out = o
		return nil
	})
	return out, err
}

// GetSalesOrder returns an order with its lines.
func (s *Service) GetSalesOrder(ctx context.Context, id SalesOrderID) (*SalesOrder, []Line, error) {
	o, err := s.provisioner.loadOrder(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	lines, err := s.store.ListLines(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return o, lines, nil
}

func (s *Service) ListSalesOrders(ctx context.Context) ([]SalesOrder, error) {
	return s.store.ListSalesOrders(ctx)
}
