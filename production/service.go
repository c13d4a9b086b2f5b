package production

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/orderflow/catalog"
	"github.com/warp/orderflow/core"
	"github.com/warp/orderflow/inventory"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// VariantResolver resolves order items. *catalog.Resolver satisfies it.
type VariantResolver interface {
	Resolve(ctx context.Context, ref catalog.VariantRef) (catalog.VariantID, error)
	Variant(ctx context.Context, id catalog.VariantID) (*catalog.Variant, error)
}

// StockPoster receives the finished unit. *inventory.Book satisfies it.
type StockPoster interface {
	Add(ctx context.Context, p inventory.Posting) (decimal.Decimal, error)
}

// LineSyncer re-derives a sales line's status after one of its orders
// finishes. Implemented by the sales provisioner.
type LineSyncer interface {
	SyncLine(ctx context.Context, id core.SalesLineID) error
}

// Config holds deployment settings of the service.
type Config struct {
	// ProductionLocation receives the production_in posting of finished orders.
	ProductionLocation inventory.LocationID
	// OrdersURL is attached to order_created events when set.
	OrdersURL string
}

// =============================================================================
// SERVICE
// =============================================================================

// Service is the order lifecycle engine's entry point.
type Service struct {
	store    Store
	variants VariantResolver
	stock    StockPoster
	lines    LineSyncer
	notifier Notifier
	clock    core.Clock
	log      *logrus.Entry
	cfg      Config
}

func NewService(store Store, variants VariantResolver, stock StockPoster, cfg Config) *Service {
	if cfg.ProductionLocation == "" {
		cfg.ProductionLocation = "MAIN"
	}
	return &Service{
		store:    store,
		variants: variants,
		stock:    stock,
		clock:    core.SystemClock{},
		log:      logrus.WithField("component", "production"),
		cfg:      cfg,
	}
}

func (s *Service) SetClock(c core.Clock) { s.clock = c }
func (s *Service) SetLogger(e *logrus.Entry) { s.log = e }
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }
func (s *Service) SetLineSyncer(l LineSyncer) { s.lines = l }
func (s *Service) Clock() core.Clock { return s.clock }
func (s *Service) Config() Config { return s.cfg }

// NewOrder is the input to CreateOrder.
type NewOrder struct {
	Item        catalog.VariantRef
	Embroidery  bool
	Urgent      bool
	Marketplace bool
	Comment     string
	SalesLineID core.SalesLineID
}

// CreateOrder creates an order in status NEW with its first history row.
// The order_created event fires after the surrounding unit commits.
func (s *Service) CreateOrder(ctx context.Context, in NewOrder, actor core.Actor) (*Order, error) {
	var out *Order
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		variantID, err := s.variants.Resolve(ctx, in.Item)
		if err != nil {
			return err
		}
		variant, err := s.variants.Variant(ctx, variantID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		o := Order{
			ID:          core.OrderID(core.NewID("ord")),
			ProductID:   variant.Key.ProductID,
			VariantID:   variantID,
			Embroidery:  in.Embroidery,
			Urgent:      in.Urgent,
			Marketplace: in.Marketplace,
			Comment:     in.Comment,
			Status:      StatusNew,
			CreatedAt:   now,
			SalesLineID: in.SalesLineID,
		}
		if err := s.store.SaveOrder(ctx, o); err != nil {
			return fmt.Errorf("failed to save order: %w", err)
		}
		if err := s.store.AppendHistory(ctx, HistoryEntry{OrderID: o.ID, Status: StatusNew, Actor: actor, At: now}); err != nil {
			return fmt.Errorf("failed to append history: %w", err)
		}

		s.afterCommit(ctx, Event{Kind: EventOrderCreated, Order: o, OrdersURL: s.cfg.OrdersURL, At: now})
		out = &o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ChangeOrderStatus moves every order in ids to status in one unit.
// The first failure rolls back the whole batch.
func (s *Service) ChangeOrderStatus(ctx context.Context, ids []core.OrderID, status string, actor core.Actor) ([]Order, error) {
	if len(ids) == 0 {
		return nil, ErrNoOrders
	}
	next, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}

	var out []Order
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		out = out[:0]
		for _, id := range ids {
			o, err := s.transition(ctx, id, next, actor)
			if err != nil {
				return err
			}
			out = append(out, *o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Transition moves a single order.
func (s *Service) Transition(ctx context.Context, id core.OrderID, status string, actor core.Actor) (*Order, error) {
	orders, err := s.ChangeOrderStatus(ctx, []core.OrderID{id}, status, actor)
	if err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// transition runs inside a unit.
func (s *Service) transition(ctx context.Context, id core.OrderID, next Status, actor core.Actor) (*Order, error) {
	o, err := s.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	changed, entry, err := o.TransitionTo(next, actor, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		return o, nil
	}
	if err := s.store.SaveOrder(ctx, *o); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	if entry == nil {
		s.log.WithFields(logrus.Fields{
			"order_id":    o.ID,
			"status":      o.Status,
			"finished_at": o.FinishedAt,
			"actor":       actor,
		}).Warn("finished_at normalized on status re-assert")
		return o, nil
	}

	if err := s.store.AppendHistory(ctx, *entry); err != nil {
		return nil, fmt.Errorf("failed to append history: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"order_id": o.ID,
		"status":   o.Status,
		"actor":    actor,
	}).Info("order status changed")

	if o.IsFinished() {
		if err := s.onFinished(ctx, o, actor, now); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// onFinished posts the produced unit and re-derives the sales line.
func (s *Service) onFinished(ctx context.Context, o *Order, actor core.Actor, now time.Time) error {
	if s.stock != nil {
		_, err := s.stock.Add(ctx, inventory.Posting{
			Location:    s.cfg.ProductionLocation,
			Item:        catalog.RefID(o.VariantID),
			Quantity:    decimal.NewFromInt(1),
			Reason:      inventory.ReasonProductionIn,
			OrderID:     o.ID,
			SalesLineID: o.SalesLineID,
			Actor:       actor,
		})
		if err != nil {
			return fmt.Errorf("failed to post finished order %s: %w", o.ID, err)
		}
	}
	if o.SalesLineID != "" && s.lines != nil {
		if err := s.lines.SyncLine(ctx, o.SalesLineID); err != nil {
			return err
		}
	}
	s.afterCommit(ctx, Event{Kind: EventOrderFinished, Order: *o, At: now})
	return nil
}

func (s *Service) afterCommit(ctx context.Context, e Event) {
	if s.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	core.AfterCommit(ctx, func() {
		if err := s.notifier.Notify(ctx, e); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"order_id": e.Order.ID,
				"event":    e.Kind,
			}).Warn("notification failed")
		}
	})
}

// =============================================================================
// QUERIES
// =============================================================================

func (s *Service) GetOrder(ctx context.Context, id core.OrderID) (*Order, error) {
	return s.loadOrder(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error) {
	return s.store.ListOrders(ctx, filter)
}

// ActiveOrders lists non-terminal orders grouped by ActiveListOrder.
func (s *Service) ActiveOrders(ctx context.Context) ([]Order, error) {
	orders, err := s.store.ListOrders(ctx, OrderFilter{Statuses: ActiveListOrder})
	if err != nil {
		return nil, err
	}
	rank := make(map[Status]int, len(ActiveListOrder))
	for i, st := range ActiveListOrder {
		rank[st] = i
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return rank[orders[i].Status] < rank[orders[j].Status]
	})
	return orders, nil
}

func (s *Service) History(ctx context.Context, id core.OrderID) ([]HistoryEntry, error) {
	if _, err := s.loadOrder(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListHistory(ctx, id)
}

func (s *Service) loadOrder(ctx context.Context, id core.OrderID) (*Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return o, nil
}
