package inventory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/orderflow/catalog"
	"github.com/warp/orderflow/core"
)

// VariantResolver turns refs into canonical variant IDs.
// *catalog.Resolver satisfies it.
type VariantResolver interface {
	Resolve(ctx context.Context, ref catalog.VariantRef) (catalog.VariantID, error)
	Lookup(ctx context.Context, ref catalog.VariantRef) (catalog.VariantID, error)
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger owns the two books. All writes go through a Book.
type Ledger struct {
	store    Store
	variants VariantResolver
	clock    core.Clock
	log      *logrus.Entry

	finished *Book
	wip      *Book
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithClock(c core.Clock) Option { return func(l *Ledger) { l.clock = c } }
func WithLogger(e *logrus.Entry) Option { return func(l *Ledger) { l.log = e } }

func NewLedger(store Store, variants VariantResolver, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		variants: variants,
		clock:    core.SystemClock{},
		log:      logrus.WithField("component", "inventory"),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.finished = &Book{family: FamilyFinished, l: l}
	l.wip = &Book{family: FamilyWIP, l: l}
	return l
}

// Finished returns the finished-goods book.
func (l *Ledger) Finished() *Book { return l.finished }

// WIP returns the work-in-progress book.
func (l *Ledger) WIP() *Book { return l.wip }

// Book returns the book for family f.
func (l *Ledger) Book(f Family) (*Book, error) {
	switch f {
	case FamilyFinished:
		return l.finished, nil
	case FamilyWIP:
		return l.wip, nil
	}
	return nil, fmt.Errorf("%w: unknown family %q", ErrReasonDirection, f)
}

// =============================================================================
// BOOK - One family's operations
// =============================================================================

// Book is the add/remove/transfer operation set for one family.
type Book struct {
	family Family
	l      *Ledger
}

func (b *Book) Family() Family { return b.family }

// Quantity returns the balance for (location, item). Absence is zero.
// Never creates a variant or a record.
func (b *Book) Quantity(ctx context.Context, location LocationID, item catalog.VariantRef) (decimal.Decimal, error) {
	variant, err := b.l.variants.Lookup(ctx, item)
	if err != nil {
		return decimal.Zero, err
	}
	if variant == "" {
		return decimal.Zero, nil
	}
	return b.QuantityOf(ctx, StockKey{Location: location, Variant: variant})
}

// QuantityOf returns the balance for a resolved key.
func (b *Book) QuantityOf(ctx context.Context, key StockKey) (decimal.Decimal, error) {
	rec, err := b.l.store.GetStockRecord(ctx, b.family, key)
	if err != nil {
		return decimal.Zero, err
	}
	if rec == nil {
		return decimal.Zero, nil
	}
	return rec.Quantity, nil
}

// Records lists every record of the family.
func (b *Book) Records(ctx context.Context) ([]StockRecord, error) {
	return b.l.store.ListStockRecords(ctx, b.family)
}

// History returns the family's movements matching filter.
func (b *Book) History(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	filter.Family = b.family
	return b.l.store.ListMovements(ctx, filter)
}

// Add increases the balance and returns the new quantity.
func (b *Book) Add(ctx context.Context, p Posting) (decimal.Decimal, error) {
	return b.post(ctx, p, true)
}

// Remove decreases the balance and returns the new quantity.
// Fails with InsufficientStockError when the balance is too low.
func (b *Book) Remove(ctx context.Context, p Posting) (decimal.Decimal, error) {
	return b.post(ctx, p, false)
}

func (b *Book) post(ctx context.Context, p Posting, inbound bool) (decimal.Decimal, error) {
	if !p.Quantity.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidQuantity, p.Quantity)
	}
	if !p.Reason.ValidFor(b.family) || p.Reason.Inbound() != inbound {
		return decimal.Zero, fmt.Errorf("%w: %s on %s book", ErrReasonDirection, p.Reason, b.family)
	}

	var result decimal.Decimal
	err := b.l.store.WithTx(ctx, func(ctx context.Context) error {
		variant, err := b.l.variants.Resolve(ctx, p.Item)
		if err != nil {
			return err
		}
		result, err = b.apply(ctx, StockKey{Location: p.Location, Variant: variant}, p, inbound)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return result, nil
}

// apply mutates one record and appends its movement. Must run inside a unit.
func (b *Book) apply(ctx context.Context, key StockKey, p Posting, inbound bool) (decimal.Decimal, error) {
	now := b.l.clock.Now()

	rec, err := b.l.store.GetStockRecord(ctx, b.family, key)
	if err != nil {
		return decimal.Zero, err
	}

	change := p.Quantity
	if !inbound {
		available := decimal.Zero
		if rec != nil {
			available = rec.Quantity
		}
		if p.Quantity.GreaterThan(available) {
			return decimal.Zero, &InsufficientStockError{
				Family:    b.family,
				Location:  key.Location,
				Variant:   key.Variant,
				Available: available,
				Requested: p.Quantity,
			}
		}
		change = p.Quantity.Neg()
	}

	if rec == nil {
		rec = &StockRecord{
			ID:       RecordID(core.NewID("rec")),
			Family:   b.family,
			Location: key.Location,
			Variant:  key.Variant,
			Quantity: decimal.Zero,
		}
	}
	rec.Quantity = rec.Quantity.Add(change)
	rec.UpdatedAt = now

	if err := b.l.store.SaveStockRecord(ctx, *rec); err != nil {
		return decimal.Zero, fmt.Errorf("failed to save stock record: %w", err)
	}
	m := Movement{
		ID:          MovementID(core.NewID("mov")),
		RecordID:    rec.ID,
		Family:      b.family,
		Location:    key.Location,
		Variant:     key.Variant,
		Change:      change,
		Reason:      p.Reason,
		OrderID:     p.OrderID,
		SalesLineID: p.SalesLineID,
		TransferID:  p.TransferID,
		Notes:       p.Notes,
		Actor:       p.Actor,
		CreatedAt:   now,
	}
	if err := b.l.store.AppendMovement(ctx, m); err != nil {
		return decimal.Zero, fmt.Errorf("failed to append movement: %w", err)
	}

	b.l.log.WithFields(logrus.Fields{
		"family":   b.family,
		"location": key.Location,
		"variant":  key.Variant,
		"change":   change.String(),
		"reason":   p.Reason,
		"balance":  rec.Quantity.String(),
	}).Debug("stock movement recorded")

	return rec.Quantity, nil
}
