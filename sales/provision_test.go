package sales_test

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
	"github.com/warp/orderflow/sales"
	"github.com/warp/orderflow/store/memory"
)

// =============================================================================
// TEST INFRASTRUCTURE
// =============================================================================

// Catalog:
//
//	tote   canvas material (canvas-black)
//	scarf  sold by color
//	pouch  sold by color
//	set    bundle of scarf x1 and pouch x2
//	       color "red" maps to a red scarf and a red pouch
//	       preset "classic" is a black tote, preset "empty" has no components
//	duo    bundle without components
type fixture struct {
	store       *memory.Memory
	clock       *core.FixedClock
	ledger      *inventory.Ledger
	orders      *production.Service
	expander    *sales.Expander
	provisioner *sales.Provisioner
	service     *sales.Service
}

var (
	redScarf = catalog.ColorKey("scarf", "red")
	redPouch = catalog.ColorKey("pouch", "red")
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	require.NoError(t, store.SaveProduct(ctx, catalog.Product{ID: "tote", Name: "Tote", PrimaryMaterialID: "canvas"}))
	require.NoError(t, store.SaveProduct(ctx, catalog.Product{ID: "scarf", Name: "Scarf"}))
	require.NoError(t, store.SaveProduct(ctx, catalog.Product{ID: "pouch", Name: "Pouch"}))
	require.NoError(t, store.SaveProduct(ctx, catalog.Product{ID: "set", Name: "Gift set", IsBundle: true}))
	require.NoError(t, store.SaveProduct(ctx, catalog.Product{ID: "duo", Name: "Duo", IsBundle: true}))
	require.NoError(t, store.SaveMaterialColor(ctx, catalog.MaterialColor{ID: "canvas-black", MaterialID: "canvas", Name: "Black"}))
	require.NoError(t, store.SaveColor(ctx, catalog.Color{ID: "red", Name: "Red"}))

	require.NoError(t, store.SaveBundleComponent(ctx, catalog.BundleComponent{BundleID: "set", ComponentID: "scarf", Quantity: 1}))
	require.NoError(t, store.SaveBundleComponent(ctx, catalog.BundleComponent{BundleID: "set", ComponentID: "pouch", Quantity: 2}))
	require.NoError(t, store.SaveBundleColorMapping(ctx, catalog.BundleColorMapping{BundleID: "set", BundleColorID: "red", ComponentID: "scarf", ComponentColorID: "red"}))
	require.NoError(t, store.SaveBundleColorMapping(ctx, catalog.BundleColorMapping{BundleID: "set", BundleColorID: "red", ComponentID: "pouch", ComponentColorID: "red"}))
	require.NoError(t, store.SaveBundlePreset(ctx, catalog.BundlePreset{ID: "classic", BundleID: "set", Name: "Classic"}))
	require.NoError(t, store.SaveBundlePresetComponent(ctx, catalog.BundlePresetComponent{PresetID: "classic", ComponentID: "tote", PrimaryMaterialColorID: "canvas-black"}))
	require.NoError(t, store.SaveBundlePreset(ctx, catalog.BundlePreset{ID: "empty", BundleID: "set", Name: "Empty"}))

	clock := core.NewFixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	variants := catalog.NewResolver(store, clock)
	ledger := inventory.NewLedger(store, variants, inventory.WithClock(clock))

	orders := production.NewService(store, variants, ledger.Finished(), production.Config{ProductionLocation: "MAIN"})
	orders.SetClock(clock)

	expander := sales.NewExpander(store, variants)
	provisioner := sales.NewProvisioner(store, expander, ledger.Finished(), orders, sales.ProvisionerConfig{StockLocation: "MAIN"})
	provisioner.SetClock(clock)
	orders.SetLineSyncer(provisioner)

	service := sales.NewService(store, expander, provisioner)
	service.SetClock(clock)

	return &fixture{
		store:       store,
		clock:       clock,
		ledger:      ledger,
		orders:      orders,
		expander:    expander,
		provisioner: provisioner,
		service:     service,
	}
}

func (f *fixture) stock(t *testing.T, key catalog.VariantKey, n int64) {
	t.Helper()
	_, err := f.ledger.Finished().Add(context.Background(), inventory.Posting{
		Location: "MAIN",
		Item:     catalog.RefKey(key),
		Quantity: decimal.NewFromInt(n),
		Reason:   inventory.ReasonProductionIn,
	})
	require.NoError(t, err)
}

func (f *fixture) line(t *testing.T, id core.SalesLineID) *sales.Line {
	t.Helper()
	l, err := f.store.GetLine(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, l)
	return l
}

func (f *fixture) salesOrder(t *testing.T, id sales.SalesOrderID) *sales.SalesOrder {
	t.Helper()
	o, _, err := f.service.GetSalesOrder(context.Background(), id)
	require.NoError(t, err)
	return o
}

func scarfLine(qty int, mode sales.ProductionMode) sales.Line {
	return sales.Line{ProductID: "scarf", ColorID: "red", Quantity: qty, Mode: mode}
}

// =============================================================================
// PROVISIONING
// =============================================================================

func TestProvision_AutoNetsExistingStock(t *testing.T) {
	// GIVEN: 1 red scarf in stock and a line for 3
	f := newFixture(t)
	ctx := context.Background()
	f.stock(t, redScarf, 1)
	so, _, err := f.service.CreateSalesOrder(ctx, sales.NewSalesOrder{
		Source: sales.SourceSite,
		Lines:  []sales.Line{scarfLine(3, sales.ModeAuto)},
	}, "ops")
	require.NoError(t, err)
	_, lines, err := f.service.GetSalesOrder(ctx, so.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)

	// WHEN: the line is provisioned
	created, err := f.provisioner.Provision(ctx, lines[0].ID, "ops")
	require.NoError(t, err)

	// THEN: exactly 2 orders exist and the line is pending
	require.Len(t, created, 2)
	for _, o := range created {
		assert.Equal(t, lines[0].ID, o.SalesLineID)
		assert.Equal(t, lines[0].VariantID, o.VariantID)
		assert.Contains(t, o.Comment, string(so.ID))
	}
	assert.Equal(t, sales.ProductionPending, f.line(t, lines[0].ID).ProductionStatus)
	assert.Equal(t, sales.StatusProduction, f.salesOrder(t, so.ID).Status)

	// WHEN: both orders finish
	for _, o := range created {
		_, err := f.orders.Transition(ctx, o.ID, "finished", "ops")
		require.NoError(t, err)
	}

	// THEN: the line is done and the sales order is ready
	assert.Equal(t, sales.ProductionDone, f.line(t, lines[0].ID).ProductionStatus)
	assert.Equal(t, sales.StatusReady, f.salesOrder(t, so.ID).Status)
}

func TestProvision_PartialFinishIsInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	so, created, err := f.service.CreateSalesOrder(ctx, sales.NewSalesOrder{
		Source:    sales.SourceEtsy,
		Lines:     []sales.Line{scarfLine(2, sales.ModeAuto)},
		Provision: true,
	}, "ops")
	require.NoError(t, err)
	require.Len(t, created, 2)

	_, err = f.orders.Transition(ctx, created[0].ID, "finished", "ops")
	require.NoError(t, err)

	assert.Equal(t, sales.ProductionInProgress, f.line(t, created[0].SalesLineID).ProductionStatus)
	assert.Equal(t, sales.StatusProduction, f.salesOrder(t, so.ID).Status)
}

func TestProvision_ForcedBundleIgnoresStock(t *testing.T) {
	// GIVEN: plenty of stock for both components
	f := newFixture(t)
	ctx := context.Background()
	f.stock(t, redScarf, 10)
	f.stock(t, redPouch, 10)

	// WHEN: a forced bundle line (scarf x1, pouch x2) is provisioned
	_, created, err := f.service.CreateSalesOrder(ctx, sales.NewSalesOrder{
		Source: sales.SourceWholesale,
		Lines: []sales.Line{{
			ProductID: "set",
			Components: []sales.ComponentSelection{
				{ComponentID: "scarf", ColorID: "red"},
				{ComponentID: "pouch", ColorID: "red"},
			},
			Quantity: 1,
			Mode:     sales.ModeForce,
		}},
		Provision: true,
	}, "ops")
	require.NoError(t, err)

	// THEN: 3 orders are created regardless of stock
	require.Len(t, created, 3)
	byProduct := map[catalog.ProductID]int{}
	for _, o := range created {
		byProduct[o.ProductID]++
	}
	assert.Equal(t, 1, byProduct["scarf"])
	assert.Equal(t, 2, byProduct["pouch"])
}

func TestProvisionOrder_SharesAvailabilityAcrossLines(t *testing.T) {
	// GIVEN: 2 red scarves and two lines each asking for 2
	f := newFixture(t)
	ctx := context.Background()
	f.stock(t, redScarf, 2)

	// WHEN: the whole order is provisioned
	so, created, err := f.service.CreateSalesOrder(ctx, sales.NewSalesOrder{
		Source:    sales.SourceSite,
		Lines:     []sales.Line{scarfLine(2, sales.ModeAuto), scarfLine(2, sales.ModeAuto)},
		Provision: true,
	}, "ops")
	require.NoError(t, err)

	// THEN: the stock is counted once: the first line is covered, the second is not
	require.Len(t, created, 2)
	_, lines, err := f.service.GetSalesOrder(ctx, so.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, sales.ProductionDone, lines[0].ProductionStatus)
	assert.Equal(t, sales.ProductionPending, lines[1].ProductionStatus)
	for _, o := range created {
		assert.Equal(t, lines[1].ID, o.SalesLineID)
	}
	assert.Equal(t, sales.StatusProduction, f.salesOrder(t, so.ID).Status)
}

func TestProvision_StockCoveredLineIsDone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.stock(t, redScarf, 5)

	so, created, err := f.service.CreateSalesOrder(ctx, sales.NewSalesOrder{
		Source:    sales.SourceSite,
		Lines:     []sales.Line{scarfLine(3, sales.ModeAuto)},
		Provision: true,
	}, "ops")
	require.NoError(t, err)

	assert.Empty(t, created)
	assert.Equal(t, sales.StatusReady, f.salesOrder(t, so.ID).Status)
}

func TestProvision_ManualCreatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	so, created, err := f.service.CreateSalesOrder(ctx, sales.NewSalesOrder{
		Source:    sales.SourceSite,
		Lines:     []sales.Line{scarfLine(3, sales.ModeManual)},
		Provision: true,
	}, "ops")
	require.NoError(t, err)

	assert.Empty(t, created)
	_, lines, err := f.service.GetSalesOrder(ctx, so.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.ProductionPending, lines[0].ProductionStatus)
	assert.Equal(t, sales.StatusProduction, f.salesOrder(t, so.ID).Status)
}

// flakyOrders fails the nth CreateOrder call.
type flakyOrders struct {
	sales.Orders
	failAt int
	calls  int
}

func (o *flakyOrders) CreateOrder(ctx context.Context, in production.NewOrder, actor core.Actor) (*production.Order, error) {
	o.calls++
	if o.calls == o.failAt {
		return nil, errors.New("workshop offline")
	}
	return o.Orders.CreateOrder(ctx, in, actor)
}

func TestProvision_FailureCreatesNoOrders(t *testing.T) {
	// GIVEN: a provisioner whose third order creation fails
	f := newFixture(t)
	ctx := context.Background()
	flaky := &flakyOrders{Orders: f.orders, failAt: 3}
	provisioner := sales.NewProvisioner(f.store, f.expander, f.ledger.Finished(), flaky, sales.ProvisionerConfig{})
	so, _, err := f.service.CreateSalesOrder(ctx, sales.NewSalesOrder{
		Source: sales.SourceSite,
		Lines:  []sales.Line{scarfLine(2, sales.ModeForce), scarfLine(2, sales.ModeForce)},
	}, "ops")
	require.NoError(t, err)

	// WHEN: the order is provisioned
	_, err = provisioner.ProvisionOrder(ctx, so.ID, "ops")

	// THEN: no order survives and statuses are untouched
	require.Error(t, err)
	orders, err := f.orders.ListOrders(ctx, production.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
	_, lines, err := f.service.GetSalesOrder(ctx, so.ID)
	require.NoError(t, err)
	for _, l := range lines {
		assert.Equal(t, sales.ProductionPending, l.ProductionStatus)
	}
	assert.Equal(t, sales.StatusNew, f.salesOrder(t, so.ID).Status)
}

type heldLocker struct{}

func (heldLocker) Lock(context.Context, string) (func(), error) { return nil, core.ErrLockHeld }

func TestProvision_LockHeldIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	so, _, err := f.service.CreateSalesOrder(ctx, sales.NewSalesOrder{
		Source: sales.SourceSite,
		Lines:  []sales.Line{scarfLine(1, sales.ModeAuto)},
	}, "ops")
	require.NoError(t, err)
	f.provisioner.SetLocker(heldLocker{})

	_, err = f.provisioner.ProvisionOrder(ctx, so.ID, "ops")

	assert.ErrorIs(t, err, sales.ErrProvisionInProgress)
	assert.True(t, sales.IsConflict(err))
}

func TestProvision_UnknownLine(t *testing.T) {
	f := newFixture(t)
	_, err := f.provisioner.Provision(context.Background(), "sl-missing", "ops")
	assert.ErrorIs(t, err, sales.ErrLineNotFound)
	assert.True(t, sales.IsNotFound(err))
}

// =============================================================================
// BUNDLE EXPANSION
// =============================================================================

func TestExpand_BundleSourcePrecedence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		line     sales.Line
		products []catalog.ProductID
		qty      []int
	}{
		{
			name: "components win over color and preset",
			line: sales.Line{ProductID: "set", ColorID: "red", PresetID: "classic", Quantity: 1,
				Components: []sales.ComponentSelection{{ComponentID: "pouch", ColorID: "red"}}},
			products: []catalog.ProductID{"pouch"},
			qty:      []int{2},
		},
		{
			name:     "color mapping wins over preset",
			line:     sales.Line{ProductID: "set", ColorID: "red", PresetID: "classic", Quantity: 2},
			products: []catalog.ProductID{"pouch", "scarf"},
			qty:      []int{4, 2},
		},
		{
			name:     "preset with default multiplier",
			line:     sales.Line{ProductID: "set", PresetID: "classic", Quantity: 3},
			products: []catalog.ProductID{"tote"},
			qty:      []int{3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqs, err := f.expander.Expand(ctx, tt.line)
			require.NoError(t, err)
			require.Len(t, reqs, len(tt.products))
			for i, r := range reqs {
				assert.Equal(t, tt.products[i], r.ProductID)
				assert.Equal(t, tt.qty[i], r.Quantity)
				assert.NotEmpty(t, r.VariantID)
			}
		})
	}
}

func TestExpand_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		line sales.Line
		want error
	}{
		{"zero quantity", sales.Line{ProductID: "scarf", ColorID: "red"}, sales.ErrInvalidLine},
		{"preset on plain product", sales.Line{ProductID: "scarf", ColorID: "red", PresetID: "classic", Quantity: 1}, sales.ErrInvalidLine},
		{"unknown product", sales.Line{ProductID: "hat", ColorID: "red", Quantity: 1}, catalog.ErrProductNotFound},
		{"bundle without source", sales.Line{ProductID: "set", Quantity: 1}, sales.ErrBundleExpansion},
		{"unmapped bundle color", sales.Line{ProductID: "set", ColorID: "blue", Quantity: 1}, sales.ErrBundleExpansion},
		{"missing preset", sales.Line{ProductID: "set", PresetID: "nope", Quantity: 1}, sales.ErrBundleExpansion},
		{"preset of another bundle", sales.Line{ProductID: "duo", PresetID: "classic", Quantity: 1}, sales.ErrBundleExpansion},
		{"empty preset", sales.Line{ProductID: "set", PresetID: "empty", Quantity: 1}, sales.ErrBundleExpansion},
		{"unresolvable component", sales.Line{ProductID: "set", Quantity: 1,
			Components: []sales.ComponentSelection{{ComponentID: "tote", ColorID: "red", PrimaryMaterialColorID: "canvas-black"}}}, sales.ErrBundleExpansion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.expander.Expand(ctx, tt.line)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// =============================================================================
// SALES ORDERS
// =============================================================================

func TestCreateSalesOrder_InvalidLineStoresNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.service.CreateSalesOrder(ctx, sales.NewSalesOrder{
		Source:    sales.SourceSite,
		Lines:     []sales.Line{scarfLine(1, sales.ModeAuto), {ProductID: "set", Quantity: 1}},
		Provision: true,
	}, "ops")

	assert.ErrorIs(t, err, sales.ErrBundleExpansion)
	assert.True(t, sales.IsClientError(err))
	list, err := f.service.ListSalesOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	orders, err := f.orders.ListOrders(ctx, production.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCreateSalesOrder_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.service.CreateSalesOrder(ctx, sales.NewSalesOrder{Source: "fax", Lines: []sales.Line{scarfLine(1, "")}}, "ops")
	assert.ErrorIs(t, err, sales.ErrInvalidSalesOrder)

	_, _, err = f.service.CreateSalesOrder(ctx, sales.NewSalesOrder{Source: sales.SourceSite}, "ops")
	assert.ErrorIs(t, err, sales.ErrInvalidSalesOrder)

	_, _, err = f.service.CreateSalesOrder(ctx, sales.NewSalesOrder{Source: sales.SourceSite, Lines: []sales.Line{scarfLine(1, "sometimes")}}, "ops")
	assert.ErrorIs(t, err, sales.ErrInvalidLine)
}

func TestCreateSalesOrder_DefaultsAndVariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	so, _, err := f.service.CreateSalesOrder(ctx, sales.NewSalesOrder{
		Source:       sales.SourceSite,
		CustomerInfo: "A. Client",
		Lines:        []sales.Line{scarfLine(1, "")},
	}, "ops")
	require.NoError(t, err)

	assert.Equal(t, sales.StatusNew, so.Status)
	_, lines, err := f.service.GetSalesOrder(ctx, so.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, sales.ModeAuto, lines[0].Mode)
	assert.Equal(t, sales.ProductionPending, lines[0].ProductionStatus)
	assert.NotEmpty(t, lines[0].VariantID)
}

func TestCreateSalesOrder_PinsBundleSelections(t *testing.T) {
	// GIVEN: a red gift set ordered while red maps to a red scarf and pouch
	f := newFixture(t)
	ctx := context.Background()
	so, _, err := f.service.CreateSalesOrder(ctx, sales.NewSalesOrder{
		Source: sales.SourceSite,
		Lines:  []sales.Line{{ProductID: "set", ColorID: "red", Quantity: 1, Mode: sales.ModeForce}},
	}, "ops")
	require.NoError(t, err)
	_, lines, err := f.service.GetSalesOrder(ctx, so.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, []sales.ComponentSelection{
		{ComponentID: "pouch", ColorID: "red"},
		{ComponentID: "scarf", ColorID: "red"},
	}, lines[0].Components)

	// WHEN: the mapping is edited before the line is provisioned
	require.NoError(t, f.store.SaveColor(ctx, catalog.Color{ID: "blue", Name: "Blue"}))
	require.NoError(t, f.store.SaveBundleColorMapping(ctx, catalog.BundleColorMapping{BundleID: "set", BundleColorID: "red", ComponentID: "scarf", ComponentColorID: "blue"}))
	created, err := f.provisioner.Provision(ctx, lines[0].ID, "ops")
	require.NoError(t, err)

	// THEN: production follows the choices made when the order was placed
	scarf, err := f.store.FindVariant(ctx, redScarf)
	require.NoError(t, err)
	require.NotNil(t, scarf)
	blue, err := f.store.FindVariant(ctx, catalog.ColorKey("scarf", "blue"))
	require.NoError(t, err)
	assert.Nil(t, blue)
	require.Len(t, created, 3)
	scarves := 0
	for _, o := range created {
		if o.ProductID == "scarf" {
			scarves++
			assert.Equal(t, scarf.ID, o.VariantID)
		}
	}
	assert.Equal(t, 1, scarves)
}

func TestSetStatus_TerminalIsNotRolledUp(t *testing.T) {
	// GIVEN: a shipped sales order with an open production order
	f := newFixture(t)
	ctx := context.Background()
	so, created, err := f.service.CreateSalesOrder(ctx, sales.NewSalesOrder{
		Source:    sales.SourceSite,
		Lines:     []sales.Line{scarfLine(1, sales.ModeForce)},
		Provision: true,
	}, "ops")
	require.NoError(t, err)
	require.Len(t, created, 1)
	_, err = f.service.SetStatus(ctx, so.ID, sales.StatusShipped, "ops")
	require.NoError(t, err)

	// WHEN: the production order finishes
	_, err = f.orders.Transition(ctx, created[0].ID, "finished", "ops")
	require.NoError(t, err)

	// THEN: the line rolls up but the order stays shipped
	assert.Equal(t, sales.ProductionDone, f.line(t, created[0].SalesLineID).ProductionStatus)
	assert.Equal(t, sales.StatusShipped, f.salesOrder(t, so.ID).Status)
}

func TestSetStatus_CancelledIsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	so, _, err := f.service.CreateSalesOrder(ctx, sales.NewSalesOrder{Source: sales.SourceSite, Lines: []sales.Line{scarfLine(1, "")}}, "ops")
	require.NoError(t, err)

	_, err = f.service.SetStatus(ctx, so.ID, sales.StatusCancelled, "ops")
	require.NoError(t, err)
	_, err = f.service.SetStatus(ctx, so.ID, sales.StatusProcessing, "ops")
	assert.ErrorIs(t, err, sales.ErrSalesOrderClosed)

	_, err = f.service.SetStatus(ctx, so.ID, "lost", "ops")
	assert.ErrorIs(t, err, sales.ErrInvalidSalesOrder)

	_, err = f.service.SetStatus(ctx, "so-missing", sales.StatusShipped, "ops")
	assert.ErrorIs(t, err, sales.ErrSalesOrderNotFound)
}
