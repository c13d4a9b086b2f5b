package production_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/orderflow/catalog"
	"github.com/warp/orderflow/core"
	"github.com/warp/orderflow/inventory"
	"github.com/warp/orderflow/production"
	"github.com/warp/orderflow/store/memory"
)

// =============================================================================
// TEST INFRASTRUCTURE
// =============================================================================

var start = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

var tote = catalog.RefKey(catalog.MaterialKey("tote", "canvas-black", ""))

type fixture struct {
	store   *memory.Memory
	clock   *core.FixedClock
	ledger  *inventory.Ledger
	service *production.Service
	events  []production.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.SaveProduct(ctx, catalog.Product{ID: "tote", Name: "Tote", PrimaryMaterialID: "canvas"}))
	require.NoError(t, store.SaveMaterialColor(ctx, catalog.MaterialColor{ID: "canvas-black", MaterialID: "canvas", Name: "Black"}))

	clock := core.NewFixedClock(start)
	variants := catalog.NewResolver(store, clock)
	ledger := inventory.NewLedger(store, variants, inventory.WithClock(clock))

	f := &fixture{store: store, clock: clock, ledger: ledger}
	f.service = production.NewService(store, variants, ledger.Finished(), production.Config{
		ProductionLocation: "MAIN",
		OrdersURL:          "https://atelier.example/orders",
	})
	f.service.SetClock(clock)
	f.service.SetNotifier(production.NotifierFunc(func(_ context.Context, e production.Event) error {
		f.events = append(f.events, e)
		return nil
	}))
	return f
}

func (f *fixture) create(t *testing.T) *production.Order {
	t.Helper()
	o, err := f.service.CreateOrder(context.Background(), production.NewOrder{Item: tote}, "ops")
	require.NoError(t, err)
	return o
}

func (f *fixture) stock(t *testing.T) decimal.Decimal {
	t.Helper()
	q, err := f.ledger.Finished().Quantity(context.Background(), "MAIN", tote)
	require.NoError(t, err)
	return q
}

// =============================================================================
// CREATION
// =============================================================================

func TestCreateOrder_StartsNewWithHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.create(t)

	assert.Equal(t, production.StatusNew, o.Status)
	assert.Equal(t, catalog.ProductID("tote"), o.ProductID)
	assert.NotEmpty(t, o.VariantID)
	assert.Nil(t, o.FinishedAt)

	history, err := f.service.History(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, production.StatusNew, history[0].Status)

	require.Len(t, f.events, 1)
	assert.Equal(t, production.EventOrderCreated, f.events[0].Kind)
	assert.Equal(t, "https://atelier.example/orders", f.events[0].OrdersURL)
}

func TestCreateOrder_InvalidItemCreatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.CreateOrder(ctx, production.NewOrder{Item: catalog.RefKey(catalog.ColorKey("hat", "red"))}, "ops")

	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	assert.True(t, production.IsNotFound(err))
	orders, err := f.service.ListOrders(ctx, production.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Empty(t, f.events)
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func TestTransition_FinishPostsOneUnit(t *testing.T) {
	// GIVEN: a NEW order
	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t)
	f.clock.Advance(2 * time.Hour)

	// WHEN: it is finished
	done, err := f.service.Transition(ctx, o.ID, "finished", "ops")
	require.NoError(t, err)

	// THEN: finishedAt is set and one FINISHED history row exists
	require.NotNil(t, done.FinishedAt)
	assert.True(t, done.FinishedAt.Equal(start.Add(2*time.Hour)))
	history, err := f.service.History(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, production.StatusFinished, history[1].Status)
	assert.Equal(t, core.Actor("ops"), history[1].Actor)

	// AND: the ledger received exactly one production_in of +1
	movements, err := f.ledger.Finished().History(ctx, inventory.MovementFilter{OrderID: o.ID})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, inventory.ReasonProductionIn, movements[0].Reason)
	assert.True(t, movements[0].Change.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, inventory.LocationID("MAIN"), movements[0].Location)
	assert.Equal(t, o.VariantID, movements[0].Variant)
	assert.True(t, f.stock(t).Equal(decimal.NewFromInt(1)))

	require.Len(t, f.events, 2)
	assert.Equal(t, production.EventOrderFinished, f.events[1].Kind)
}

func TestTransition_OutOfTerminalFails(t *testing.T) {
	// GIVEN: a FINISHED order
	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t)
	_, err := f.service.Transition(ctx, o.ID, "finished", "ops")
	require.NoError(t, err)

	// WHEN: moving it to EMBROIDERY
	_, err = f.service.Transition(ctx, o.ID, "embroidery", "ops")

	// THEN: the transition is rejected with both statuses
	var invalid *production.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, production.StatusFinished, invalid.Current)
	assert.Equal(t, production.StatusEmbroidery, invalid.Attempted)
	assert.True(t, production.IsClientError(err))

	// AND: order and history are unchanged
	stored, err := f.service.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, production.StatusFinished, stored.Status)
	history, err := f.service.History(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.True(t, f.stock(t).Equal(decimal.NewFromInt(1)))
}

func TestTransition_ReassertWritesNoHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t)
	_, err := f.service.Transition(ctx, o.ID, "doing", "ops")
	require.NoError(t, err)

	again, err := f.service.Transition(ctx, o.ID, "DOING", "ops")
	require.NoError(t, err)

	assert.Equal(t, production.StatusDoing, again.Status)
	history, err := f.service.History(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestTransition_ReassertFinishedKeepsTimestampAndStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t)
	first, err := f.service.Transition(ctx, o.ID, "finished", "ops")
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	again, err := f.service.Transition(ctx, o.ID, "finished", "ops")
	require.NoError(t, err)

	assert.True(t, again.FinishedAt.Equal(*first.FinishedAt))
	assert.True(t, f.stock(t).Equal(decimal.NewFromInt(1)), "re-assert must not post again")
}

func TestTransition_ReassertRepairsMissingFinishedAt(t *testing.T) {
	// GIVEN: a finished order whose finishedAt was lost
	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t)
	_, err := f.service.Transition(ctx, o.ID, "finished", "ops")
	require.NoError(t, err)
	broken, err := f.store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	broken.FinishedAt = nil
	require.NoError(t, f.store.SaveOrder(ctx, *broken))

	// WHEN: finished is asserted again
	f.clock.Advance(time.Hour)
	fixed, err := f.service.Transition(ctx, o.ID, "finished", "ops")
	require.NoError(t, err)

	// THEN: finishedAt is restored without a history row
	require.NotNil(t, fixed.FinishedAt)
	assert.True(t, fixed.FinishedAt.Equal(start.Add(time.Hour)))
	history, err := f.service.History(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestTransition_UnknownStatusAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t)

	_, err := f.service.Transition(ctx, o.ID, "shipped", "ops")
	assert.ErrorIs(t, err, production.ErrUnknownStatus)

	_, err = f.service.Transition(ctx, "ord-missing", "doing", "ops")
	assert.ErrorIs(t, err, production.ErrOrderNotFound)

	_, err = f.service.ChangeOrderStatus(ctx, nil, "doing", "ops")
	assert.ErrorIs(t, err, production.ErrNoOrders)
}

func TestChangeOrderStatus_BatchIsAtomic(t *testing.T) {
	// GIVEN: one NEW order and one FINISHED order
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t)
	b := f.create(t)
	_, err := f.service.Transition(ctx, b.ID, "finished", "ops")
	require.NoError(t, err)
	f.events = nil

	// WHEN: both are moved to DOING in one batch
	_, err = f.service.ChangeOrderStatus(ctx, []core.OrderID{a.ID, b.ID}, "doing", "ops")

	// THEN: the batch fails and the first order did not move
	assert.ErrorIs(t, err, production.ErrInvalidTransition)
	stored, err := f.service.GetOrder(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, production.StatusNew, stored.Status)
	history, err := f.service.History(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Empty(t, f.events)
}

func TestChangeOrderStatus_BatchFinishPostsEach(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t)
	b := f.create(t)

	orders, err := f.service.ChangeOrderStatus(ctx, []core.OrderID{a.ID, b.ID}, "finished", "ops")
	require.NoError(t, err)

	require.Len(t, orders, 2)
	for _, o := range orders {
		assert.True(t, o.IsFinished())
	}
	assert.True(t, f.stock(t).Equal(decimal.NewFromInt(2)))
}

// =============================================================================
// COLLABORATOR FAILURES
// =============================================================================

func TestNotifierFailure_DoesNotFailTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.service.SetNotifier(production.NotifierFunc(func(context.Context, production.Event) error {
		return errors.New("chat is down")
	}))

	o := f.create(t)
	done, err := f.service.Transition(ctx, o.ID, "finished", "ops")

	require.NoError(t, err)
	assert.True(t, done.IsFinished())
}

type failingSyncer struct{ err error }

func (s failingSyncer) SyncLine(context.Context, core.SalesLineID) error { return s.err }

func TestLineSyncFailure_RollsBackFinish(t *testing.T) {
	// GIVEN: an order linked to a sales line whose roll-up fails
	f := newFixture(t)
	ctx := context.Background()
	boom := errors.New("roll-up failed")
	f.service.SetLineSyncer(failingSyncer{err: boom})
	o, err := f.service.CreateOrder(ctx, production.NewOrder{Item: tote, SalesLineID: "sl-1"}, "ops")
	require.NoError(t, err)
	f.events = nil

	// WHEN: the order is finished
	_, err = f.service.Transition(ctx, o.ID, "finished", "ops")

	// THEN: status, history and stock all roll back and no event fires
	assert.ErrorIs(t, err, boom)
	stored, err := f.service.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, production.StatusNew, stored.Status)
	assert.Nil(t, stored.FinishedAt)
	assert.True(t, f.stock(t).IsZero())
	assert.Empty(t, f.events)
}

// =============================================================================
// QUERIES AND CHECKS
// =============================================================================

func TestActiveOrders_GroupedByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t)
	b := f.create(t)
	c := f.create(t)
	_, err := f.service.Transition(ctx, a.ID, "on_hold", "ops")
	require.NoError(t, err)
	_, err = f.service.Transition(ctx, c.ID, "finished", "ops")
	require.NoError(t, err)

	active, err := f.service.ActiveOrders(ctx)
	require.NoError(t, err)

	require.Len(t, active, 2)
	assert.Equal(t, b.ID, active[0].ID)
	assert.Equal(t, a.ID, active[1].ID)
}

func TestCheckConsistency_ReportsAndFixes(t *testing.T) {
	// GIVEN: an order whose cached status drifted from its history
	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t)
	_, err := f.service.Transition(ctx, o.ID, "doing", "ops")
	require.NoError(t, err)
	drifted, err := f.store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	drifted.Status = production.StatusOnHold
	require.NoError(t, f.store.SaveOrder(ctx, *drifted))

	// AND: an order with no history at all
	require.NoError(t, f.store.SaveOrder(ctx, production.Order{ID: "ord-orphan", ProductID: "tote", VariantID: o.VariantID, Status: production.StatusNew, CreatedAt: start}))

	// WHEN: checking without fixing
	report, err := f.service.CheckConsistency(ctx, production.CheckOptions{})
	require.NoError(t, err)

	// THEN: both problems are reported
	assert.False(t, report.OK())
	assert.Equal(t, 2, report.Checked)
	require.Len(t, report.Mismatches, 1)
	assert.Equal(t, production.Mismatch{OrderID: o.ID, Cached: production.StatusOnHold, Expected: production.StatusDoing}, report.Mismatches[0])
	assert.Equal(t, 1, report.MissingHistory)
	assert.Equal(t, []core.OrderID{"ord-orphan"}, report.Missing)
	assert.Zero(t, report.Fixed)

	// WHEN: fixing
	report, err = f.service.CheckConsistency(ctx, production.CheckOptions{Fix: true})
	require.NoError(t, err)

	// THEN: the cached status follows history again
	assert.Equal(t, 1, report.Fixed)
	stored, err := f.service.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, production.StatusDoing, stored.Status)
}
