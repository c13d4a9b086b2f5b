// Package memory provides an in-memory Store for tests and development.
//
// One Memory value implements catalog.Store, inventory.Store,
// production.Store and sales.Store, so units opened by any service join
// each other through the context.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/orderflow/catalog"
	"github.com/warp/orderflow/core"
	"github.com/warp/orderflow/inventory"
	"github.com/warp/orderflow/production"
	"github.com/warp/orderflow/sales"
)

// =============================================================================
// MEMORY STORE - snapshot + rollback units
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	s  *state
}

type recordKey struct {
	Family inventory.Family
	Key    inventory.StockKey
}

type state struct {
	products         map[catalog.ProductID]catalog.Product
	colors           map[catalog.ColorID]catalog.Color
	materialColors   map[catalog.MaterialColorID]catalog.MaterialColor
	variants         map[catalog.VariantID]catalog.Variant
	variantKeys      map[catalog.VariantKey]catalog.VariantID
	bundleComponents []catalog.BundleComponent
	colorMappings    []catalog.BundleColorMapping
	presets          map[catalog.PresetID]catalog.BundlePreset
	presetComponents []catalog.BundlePresetComponent

	records   map[recordKey]inventory.StockRecord
	movements []inventory.Movement
	transfers map[inventory.TransferID]inventory.Transfer
	trfOrder  []inventory.TransferID

	orders   map[core.OrderID]production.Order
	orderSeq []core.OrderID
	history  map[core.OrderID][]production.HistoryEntry
	salesOrd map[sales.SalesOrderID]sales.SalesOrder
	salesSeq []sales.SalesOrderID
	lines    map[core.SalesLineID]sales.Line
	lineSeq  []core.SalesLineID
}

func newState() *state {
	return &state{
		products:       make(map[catalog.ProductID]catalog.Product),
		colors:         make(map[catalog.ColorID]catalog.Color),
		materialColors: make(map[catalog.MaterialColorID]catalog.MaterialColor),
		variants:       make(map[catalog.VariantID]catalog.Variant),
		variantKeys:    make(map[catalog.VariantKey]catalog.VariantID),
		presets:        make(map[catalog.PresetID]catalog.BundlePreset),
		records:        make(map[recordKey]inventory.StockRecord),
		transfers:      make(map[inventory.TransferID]inventory.Transfer),
		orders:         make(map[core.OrderID]production.Order),
		history:        make(map[core.OrderID][]production.HistoryEntry),
		salesOrd:       make(map[sales.SalesOrderID]sales.SalesOrder),
		lines:          make(map[core.SalesLineID]sales.Line),
	}
}

// clone copies every container. Stored values are replaced on write, never
// mutated in place, so a shallow copy of each container is a full snapshot.
func (s *state) clone() *state {
	c := &state{
		products:         cloneMap(s.products),
		colors:           cloneMap(s.colors),
		materialColors:   cloneMap(s.materialColors),
		variants:         cloneMap(s.variants),
		variantKeys:      cloneMap(s.variantKeys),
		bundleComponents: append([]catalog.BundleComponent(nil), s.bundleComponents...),
		colorMappings:    append([]catalog.BundleColorMapping(nil), s.colorMappings...),
		presets:          cloneMap(s.presets),
		presetComponents: append([]catalog.BundlePresetComponent(nil), s.presetComponents...),
		records:          cloneMap(s.records),
		movements:        append([]inventory.Movement(nil), s.movements...),
		transfers:        cloneMap(s.transfers),
		trfOrder:         append([]inventory.TransferID(nil), s.trfOrder...),
		orders:           cloneMap(s.orders),
		orderSeq:         append([]core.OrderID(nil), s.orderSeq...),
		history:          make(map[core.OrderID][]production.HistoryEntry, len(s.history)),
		salesOrd:         cloneMap(s.salesOrd),
		salesSeq:         append([]sales.SalesOrderID(nil), s.salesSeq...),
		lines:            cloneMap(s.lines),
		lineSeq:          append([]core.SalesLineID(nil), s.lineSeq...),
	}
	for k, v := range s.history {
		c.history[k] = append([]production.HistoryEntry(nil), v...)
	}
	return c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func New() *Memory {
	return &Memory{s: newState()}
}

// =============================================================================
// UNITS
// =============================================================================

type unitKey struct{}

// WithTx executes fn as one unit. The store is locked for the whole unit;
// on error or panic the state is restored from the snapshot taken at the
// start. Nested calls on the same store join the outer unit.
func (m *Memory) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.inUnit(ctx) {
		return fn(ctx)
	}

	hooks, err := m.runUnit(ctx, fn)
	if err != nil {
		return err
	}
	hooks.Run()
	return nil
}

func (m *Memory) runUnit(ctx context.Context, fn func(ctx context.Context) error) (*core.CommitHooks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.s.clone()
	committed := false
	defer func() {
		if !committed {
			m.s = snapshot
		}
	}()

	ctx = context.WithValue(ctx, unitKey{}, m)
	ctx, hooks := core.WithCommitHooks(ctx)

	if err := fn(ctx); err != nil {
		return nil, err
	}
	committed = true
	return hooks, nil
}

func (m *Memory) inUnit(ctx context.Context) bool {
	owner, _ := ctx.Value(unitKey{}).(*Memory)
	return owner == m
}

// read and write take the store lock unless ctx already holds it.
func (m *Memory) read(ctx context.Context) func() {
	if m.inUnit(ctx) {
		return func() {}
	}
	m.mu.RLock()
	return m.mu.RUnlock
}

func (m *Memory) write(ctx context.Context) func() {
	if m.inUnit(ctx) {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

// =============================================================================
// CATALOG
// =============================================================================

func (m *Memory) SaveProduct(ctx context.Context, p catalog.Product) error {
	defer m.write(ctx)()
	m.s.products[p.ID] = p
	return nil
}

func (m *Memory) GetProduct(ctx context.Context, id catalog.ProductID) (*catalog.Product, error) {
	defer m.read(ctx)()
	p, ok := m.s.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) SaveColor(ctx context.Context, c catalog.Color) error {
	defer m.write(ctx)()
	m.s.colors[c.ID] = c
	return nil
}

func (m *Memory) SaveMaterialColor(ctx context.Context, c catalog.MaterialColor) error {
	defer m.write(ctx)()
	m.s.materialColors[c.ID] = c
	return nil
}

func (m *Memory) GetMaterialColor(ctx context.Context, id catalog.MaterialColorID) (*catalog.MaterialColor, error) {
	defer m.read(ctx)()
	c, ok := m.s.materialColors[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) SaveVariant(ctx context.Context, v catalog.Variant) error {
	defer m.write(ctx)()
	if existing, ok := m.s.variantKeys[v.Key]; ok && existing != v.ID {
		return catalog.ErrVariantKeyConflict
	}
	m.s.variants[v.ID] = v
	m.s.variantKeys[v.Key] = v.ID
	return nil
}

func (m *Memory) GetVariant(ctx context.Context, id catalog.VariantID) (*catalog.Variant, error) {
	defer m.read(ctx)()
	v, ok := m.s.variants[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (m *Memory) FindVariant(ctx context.Context, key catalog.VariantKey) (*catalog.Variant, error) {
	defer m.read(ctx)()
	id, ok := m.s.variantKeys[key]
	if !ok {
		return nil, nil
	}
	v := m.s.variants[id]
	return &v, nil
}

func (m *Memory) SaveBundleComponent(ctx context.Context, c catalog.BundleComponent) error {
	defer m.write(ctx)()
	for i, existing := range m.s.bundleComponents {
		if existing.BundleID == c.BundleID && existing.ComponentID == c.ComponentID {
			m.s.bundleComponents[i] = c
			return nil
		}
	}
	m.s.bundleComponents = append(m.s.bundleComponents, c)
	return nil
}

func (m *Memory) ListBundleComponents(ctx context.Context, bundleID catalog.ProductID) ([]catalog.BundleComponent, error) {
	defer m.read(ctx)()
	var out []catalog.BundleComponent
	for _, c := range m.s.bundleComponents {
		if c.BundleID == bundleID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ComponentID < out[j].ComponentID })
	return out, nil
}

func (m *Memory) SaveBundleColorMapping(ctx context.Context, mp catalog.BundleColorMapping) error {
	defer m.write(ctx)()
	for i, existing := range m.s.colorMappings {
		if existing.BundleID == mp.BundleID && existing.BundleColorID == mp.BundleColorID && existing.ComponentID == mp.ComponentID {
			m.s.colorMappings[i] = mp
			return nil
		}
	}
	m.s.colorMappings = append(m.s.colorMappings, mp)
	return nil
}

func (m *Memory) ListBundleColorMappings(ctx context.Context, bundleID catalog.ProductID, bundleColorID catalog.ColorID) ([]catalog.BundleColorMapping, error) {
	defer m.read(ctx)()
	var out []catalog.BundleColorMapping
	for _, mp := range m.s.colorMappings {
		if mp.BundleID == bundleID && mp.BundleColorID == bundleColorID {
			out = append(out, mp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ComponentID < out[j].ComponentID })
	return out, nil
}

func (m *Memory) SaveBundlePreset(ctx context.Context, p catalog.BundlePreset) error {
	defer m.write(ctx)()
	m.s.presets[p.ID] = p
	return nil
}

func (m *Memory) GetBundlePreset(ctx context.Context, id catalog.PresetID) (*catalog.BundlePreset, error) {
	defer m.read(ctx)()
	p, ok := m.s.presets[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) SaveBundlePresetComponent(ctx context.Context, c catalog.BundlePresetComponent) error {
	defer m.write(ctx)()
	for i, existing := range m.s.presetComponents {
		if existing.PresetID == c.PresetID && existing.ComponentID == c.ComponentID {
			m.s.presetComponents[i] = c
			return nil
		}
	}
	m.s.presetComponents = append(m.s.presetComponents, c)
	return nil
}

func (m *Memory) ListBundlePresetComponents(ctx context.Context, presetID catalog.PresetID) ([]catalog.BundlePresetComponent, error) {
	defer m.read(ctx)()
	var out []catalog.BundlePresetComponent
	for _, c := range m.s.presetComponents {
		if c.PresetID == presetID {
			out = append(out, c)
		}
	}
	return out, nil
}

// =============================================================================
// INVENTORY
// =============================================================================

func (m *Memory) GetStockRecord(ctx context.Context, family inventory.Family, key inventory.StockKey) (*inventory.StockRecord, error) {
	defer m.read(ctx)()
	r, ok := m.s.records[recordKey{Family: family, Key: key}]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Memory) SaveStockRecord(ctx context.Context, rec inventory.StockRecord) error {
	defer m.write(ctx)()
	m.s.records[recordKey{Family: rec.Family, Key: rec.Key()}] = rec
	return nil
}

func (m *Memory) ListStockRecords(ctx context.Context, family inventory.Family) ([]inventory.StockRecord, error) {
	defer m.read(ctx)()
	var out []inventory.StockRecord
	for k, r := range m.s.records {
		if k.Family == family {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Location != out[j].Location {
			return out[i].Location < out[j].Location
		}
		return out[i].Variant < out[j].Variant
	})
	return out, nil
}

func (m *Memory) AppendMovement(ctx context.Context, mv inventory.Movement) error {
	defer m.write(ctx)()
	m.s.movements = append(m.s.movements, mv)
	return nil
}

func (m *Memory) ListMovements(ctx context.Context, filter inventory.MovementFilter) ([]inventory.Movement, error) {
	defer m.read(ctx)()
	var out []inventory.Movement
	for _, mv := range m.s.movements {
		if filter.Match(mv) {
			out = append(out, mv)
		}
	}
	return out, nil
}

func (m *Memory) SaveTransfer(ctx context.Context, t inventory.Transfer) error {
	defer m.write(ctx)()
	if _, ok := m.s.transfers[t.ID]; !ok {
		m.s.trfOrder = append(m.s.trfOrder, t.ID)
	}
	t.Lines = append([]inventory.TransferLine(nil), t.Lines...)
	m.s.transfers[t.ID] = t
	return nil
}

func (m *Memory) GetTransfer(ctx context.Context, id inventory.TransferID) (*inventory.Transfer, error) {
	defer m.read(ctx)()
	t, ok := m.s.transfers[id]
	if !ok {
		return nil, nil
	}
	t.Lines = append([]inventory.TransferLine(nil), t.Lines...)
	return &t, nil
}

func (m *Memory) ListTransfers(ctx context.Context, family inventory.Family) ([]inventory.Transfer, error) {
	defer m.read(ctx)()
	var out []inventory.Transfer
	for _, id := range m.s.trfOrder {
		t := m.s.transfers[id]
		if family == "" || t.Family == family {
			t.Lines = append([]inventory.TransferLine(nil), t.Lines...)
			out = append(out, t)
		}
	}
	return out, nil
}

// =============================================================================
// PRODUCTION
// =============================================================================

func (m *Memory) SaveOrder(ctx context.Context, o production.Order) error {
	defer m.write(ctx)()
	if _, ok := m.s.orders[o.ID]; !ok {
		m.s.orderSeq = append(m.s.orderSeq, o.ID)
	}
	m.s.orders[o.ID] = o
	return nil
}

func (m *Memory) GetOrder(ctx context.Context, id core.OrderID) (*production.Order, error) {
	defer m.read(ctx)()
	o, ok := m.s.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *Memory) ListOrders(ctx context.Context, filter production.OrderFilter) ([]production.Order, error) {
	defer m.read(ctx)()
	var out []production.Order
	for _, id := range m.s.orderSeq {
		o := m.s.orders[id]
		if !filter.Match(o) {
			continue
		}
		out = append(out, o)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) AppendHistory(ctx context.Context, h production.HistoryEntry) error {
	defer m.write(ctx)()
	m.s.history[h.OrderID] = append(m.s.history[h.OrderID], h)
	return nil
}

func (m *Memory) ListHistory(ctx context.Context, id core.OrderID) ([]production.HistoryEntry, error) {
	defer m.read(ctx)()
	return append([]production.HistoryEntry(nil), m.s.history[id]...), nil
}

// =============================================================================
// SALES
// =============================================================================

func (m *Memory) SaveSalesOrder(ctx context.Context, o sales.SalesOrder) error {
	defer m.write(ctx)()
	if _, ok := m.s.salesOrd[o.ID]; !ok {
		m.s.salesSeq = append(m.s.salesSeq, o.ID)
	}
	m.s.salesOrd[o.ID] = o
	return nil
}

func (m *Memory) GetSalesOrder(ctx context.Context, id sales.SalesOrderID) (*sales.SalesOrder, error) {
	defer m.read(ctx)()
	o, ok := m.s.salesOrd[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *Memory) ListSalesOrders(ctx context.Context) ([]sales.SalesOrder, error) {
	defer m.read(ctx)()
	out := make([]sales.SalesOrder, 0, len(m.s.salesSeq))
	for i := len(m.s.salesSeq) - 1; i >= 0; i-- {
		out = append(out, m.s.salesOrd[m.s.salesSeq[i]])
	}
	return out, nil
}

func (m *Memory) SaveLine(ctx context.Context, l sales.Line) error {
	defer m.write(ctx)()
	if _, ok := m.s.lines[l.ID]; !ok {
		m.s.lineSeq = append(m.s.lineSeq, l.ID)
	}
	l.Components = append([]sales.ComponentSelection(nil), l.Components...)
	m.s.lines[l.ID] = l
	return nil
}

func (m *Memory) GetLine(ctx context.Context, id core.SalesLineID) (*sales.Line, error) {
	defer m.read(ctx)()
	l, ok := m.s.lines[id]
	if !ok {
		return nil, nil
	}
	l.Components = append([]sales.ComponentSelection(nil), l.Components...)
	return &l, nil
}

func (m *Memory) ListLines(ctx context.Context, orderID sales.SalesOrderID) ([]sales.Line, error) {
	defer m.read(ctx)()
	var out []sales.Line
	for _, id := range m.s.lineSeq {
		l := m.s.lines[id]
		if l.OrderID == orderID {
			l.Components = append([]sales.ComponentSelection(nil), l.Components...)
			out = append(out, l)
		}
	}
	return out, nil
}

// Compile-time interface checks.
var (
	_ catalog.Store    = (*Memory)(nil)
	_ inventory.Store  = (*Memory)(nil)
	_ production.Store = (*Memory)(nil)
	_ sales.Store      = (*Memory)(nil)
)
