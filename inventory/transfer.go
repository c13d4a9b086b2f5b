package inventory

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/warp/orderflow/core"
)

// =============================================================================
// TRANSFERS
// =============================================================================
//
// Lifecycle:
//
//   draft --complete--> in_transit --> completed
//     \
//      +--cancel--> cancelled
//
// Completion removes at the source (transfer_out) and adds at the
// destination (transfer_in) for every line, inside one unit. A failed
// removal rolls back the whole completion, including the status change.

// Transfer creates and completes a transfer in one unit. If any source
// removal fails, no transfer, movement or quantity change remains.
func (b *Book) Transfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	var out *Transfer
	err := b.l.store.WithTx(ctx, func(ctx context.Context) error {
		t, err := b.newTransfer(ctx, req, TransferInTransit)
		if err != nil {
			return err
		}
		if err := b.l.store.SaveTransfer(ctx, *t); err != nil {
			return fmt.Errorf("failed to save transfer: %w", err)
		}
		out, err = b.complete(ctx, t, req.Actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DraftTransfer records a transfer without moving stock.
func (b *Book) DraftTransfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	var out *Transfer
	err := b.l.store.WithTx(ctx, func(ctx context.Context) error {
		t, err := b.newTransfer(ctx, req, TransferDraft)
		if err != nil {
			return err
		}
		if err := b.l.store.SaveTransfer(ctx, *t); err != nil {
			return fmt.Errorf("failed to save transfer: %w", err)
		}
		out = t
		return nil
	})
	return out, err
}

// CompleteTransfer moves the stock of a draft transfer.
func (b *Book) CompleteTransfer(ctx context.Context, id TransferID, actor core.Actor) (*Transfer, error) {
	var out *Transfer
	err := b.l.store.WithTx(ctx, func(ctx context.Context) error {
		t, err := b.loadTransfer(ctx, id)
		if err != nil {
			return err
		}
		if t.Status != TransferDraft {
			return &TransferStateError{ID: id, Current: t.Status, Action: "complete"}
		}
		t.Status = TransferInTransit
		if err := b.l.store.SaveTransfer(ctx, *t); err != nil {
			return err
		}
		out, err = b.complete(ctx, t, actor)
		return err
	})
	return out, err
}

// CancelTransfer cancels a draft transfer. No stock moves.
func (b *Book) CancelTransfer(ctx context.Context, id TransferID, actor core.Actor) (*Transfer, error) {
	var out *Transfer
	err := b.l.store.WithTx(ctx, func(ctx context.Context) error {
		t, err := b.loadTransfer(ctx, id)
		if err != nil {
			return err
		}
		if t.Status != TransferDraft {
			return &TransferStateError{ID: id, Current: t.Status, Action: "cancel"}
		}
		t.Status = TransferCancelled
		if err := b.l.store.SaveTransfer(ctx, *t); err != nil {
			return err
		}
		b.l.log.WithFields(logrus.Fields{"transfer_id": id, "actor": actor}).Info("transfer cancelled")
		out = t
		return nil
	})
	return out, err
}

// Transfers lists the family's transfers.
func (b *Book) Transfers(ctx context.Context) ([]Transfer, error) {
	return b.l.store.ListTransfers(ctx, b.family)
}

// GetTransfer loads one transfer of this family.
func (b *Book) GetTransfer(ctx context.Context, id TransferID) (*Transfer, error) {
	return b.loadTransfer(ctx, id)
}

func (b *Book) loadTransfer(ctx context.Context, id TransferID) (*Transfer, error) {
	t, err := b.l.store.GetTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil || t.Family != b.family {
		return nil, fmt.Errorf("%w: %s", ErrTransferNotFound, id)
	}
	return t, nil
}

func (b *Book) newTransfer(ctx context.Context, req TransferRequest, status TransferStatus) (*Transfer, error) {
	if req.From == req.To {
		return nil, fmt.Errorf("%w: %s", ErrSameLocation, req.From)
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyTransfer
	}

	t := &Transfer{
		ID:        TransferID(core.NewID("trf")),
		Family:    b.family,
		From:      req.From,
		To:        req.To,
		Status:    status,
		Actor:     req.Actor,
		Notes:     req.Notes,
		CreatedAt: b.l.clock.Now(),
	}
	for _, item := range req.Items {
		if !item.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, item.Quantity)
		}
		variant, err := b.l.variants.Resolve(ctx, item.Item)
		if err != nil {
			return nil, err
		}
		t.Lines = append(t.Lines, TransferLine{Variant: variant, Quantity: item.Quantity})
	}
	return t, nil
}

// complete posts the paired movements and marks t completed. Runs inside a unit.
func (b *Book) complete(ctx context.Context, t *Transfer, actor core.Actor) (*Transfer, error) {
	for _, line := range t.Lines {
		out := Posting{
			Quantity:   line.Quantity,
			Reason:     ReasonTransferOut,
			TransferID: t.ID,
			Notes:      t.Notes,
			Actor:      actor,
		}
		if _, err := b.apply(ctx, StockKey{Location: t.From, Variant: line.Variant}, out, false); err != nil {
			return nil, err
		}
		in := out
		in.Reason = ReasonTransferIn
		if _, err := b.apply(ctx, StockKey{Location: t.To, Variant: line.Variant}, in, true); err != nil {
			return nil, err
		}
	}

	now := b.l.clock.Now()
	t.Status = TransferCompleted
	t.CompletedAt = &now
	if err := b.l.store.SaveTransfer(ctx, *t); err != nil {
		return nil, fmt.Errorf("failed to complete transfer: %w", err)
	}

	b.l.log.WithFields(logrus.Fields{
		"transfer_id": t.ID,
		"family":      b.family,
		"from":        t.From,
		"to":          t.To,
		"lines":       len(t.Lines),
	}).Info("transfer completed")
	return t, nil
}
