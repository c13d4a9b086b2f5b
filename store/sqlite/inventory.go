package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/orderflow/inventory"
)

// =============================================================================
// STOCK RECORDS (inventory.Store interface)
// =============================================================================

func (s *Store) GetStockRecord(ctx context.Context, family inventory.Family, key inventory.StockKey) (*inventory.StockRecord, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, family, location, variant_id, quantity, updated_at
		FROM stock_records WHERE family = ? AND location = ? AND variant_id = ?
	`, family, key.Location, key.Variant)

	rec, err := scanStockRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock record: %w", err)
	}
	return rec, nil
}

func (s *Store) SaveStockRecord(ctx context.Context, rec inventory.StockRecord) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO stock_records (id, family, location, variant_id, quantity, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET quantity = excluded.quantity, updated_at = excluded.updated_at
	`, rec.ID, rec.Family, rec.Location, rec.Variant, rec.Quantity.String(), formatTime(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save stock record: %w", err)
	}
	return nil
}

func (s *Store) ListStockRecords(ctx context.Context, family inventory.Family) ([]inventory.StockRecord, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, family, location, variant_id, quantity, updated_at
		FROM stock_records WHERE family = ?
		ORDER BY location, variant_id
	`, family)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []inventory.StockRecord
	for rows.Next() {
		rec, err := scanStockRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStockRecord(row scanner) (*inventory.StockRecord, error) {
	var (
		rec       inventory.StockRecord
		qty       string
		updatedAt string
	)
	if err := row.Scan(&rec.ID, &rec.Family, &rec.Location, &rec.Variant, &qty, &updatedAt); err != nil {
		return nil, err
	}
	q, err := decimal.NewFromString(qty)
	if err != nil {
		return nil, fmt.Errorf("invalid quantity %q on record %s: %w", qty, rec.ID, err)
	}
	rec.Quantity = q
	rec.UpdatedAt = parseTime(updatedAt)
	return &rec, nil
}

// =============================================================================
// MOVEMENTS
// =============================================================================

// AppendMovement inserts a movement. There is no update path.
func (s *Store) AppendMovement(ctx context.Context, m inventory.Movement) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO stock_movements (id, record_id, family, location, variant_id, change, reason,
			order_id, sales_line_id, transfer_id, notes, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.RecordID, m.Family, m.Location, m.Variant, m.Change.String(), m.Reason,
		m.OrderID, m.SalesLineID, m.TransferID, m.Notes, m.Actor, formatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to append movement: %w", err)
	}
	return nil
}

func (s *Store) ListMovements(ctx context.Context, filter inventory.MovementFilter) ([]inventory.Movement, error) {
	var (
		where []string
		args  []any
	)
	add := func(column string, value string) {
		if value != "" {
			where = append(where, column+" = ?")
			args = append(args, value)
		}
	}
	add("family", string(filter.Family))
	add("location", string(filter.Location))
	add("variant_id", string(filter.Variant))
	add("reason", string(filter.Reason))
	add("order_id", string(filter.OrderID))
	add("sales_line_id", string(filter.SalesLineID))
	add("transfer_id", string(filter.TransferID))
	add("record_id", string(filter.RecordID))

	query := `
		SELECT id, record_id, family, location, variant_id, change, reason,
			order_id, sales_line_id, transfer_id, notes, actor, created_at
		FROM stock_movements`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq"

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []inventory.Movement
	for rows.Next() {
		var (
			m         inventory.Movement
			change    string
			createdAt string
		)
		if err := rows.Scan(&m.ID, &m.RecordID, &m.Family, &m.Location, &m.Variant, &change, &m.Reason,
			&m.OrderID, &m.SalesLineID, &m.TransferID, &m.Notes, &m.Actor, &createdAt); err != nil {
			return nil, err
		}
		if m.Change, err = decimal.NewFromString(change); err != nil {
			return nil, fmt.Errorf("invalid change %q on movement %s: %w", change, m.ID, err)
		}
		m.CreatedAt = parseTime(createdAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

// =============================================================================
// TRANSFERS
// =============================================================================

// SaveTransfer upserts the header and rewrites its lines.
func (s *Store) SaveTransfer(ctx context.Context, t inventory.Transfer) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		db := s.conn(ctx)
		_, err := db.ExecContext(ctx, `
			INSERT INTO transfers (id, family, from_location, to_location, status, actor, notes, created_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				status = excluded.status,
				notes = excluded.notes,
				completed_at = excluded.completed_at
		`, t.ID, t.Family, t.From, t.To, t.Status, t.Actor, t.Notes, formatTime(t.CreatedAt), nullTime(t.CompletedAt))
		if err != nil {
			return fmt.Errorf("failed to save transfer: %w", err)
		}

		if _, err := db.ExecContext(ctx, `DELETE FROM transfer_lines WHERE transfer_id = ?`, t.ID); err != nil {
			return err
		}
		for i, l := range t.Lines {
			if _, err := db.ExecContext(ctx, `
				INSERT INTO transfer_lines (transfer_id, line_no, variant_id, quantity) VALUES (?, ?, ?, ?)
			`, t.ID, i, l.Variant, l.Quantity.String()); err != nil {
				return fmt.Errorf("failed to save transfer line: %w", err)
			}
		}
		return nil
	})
}

const transferColumns = `id, family, from_location, to_location, status, actor, notes, created_at, completed_at`

func (s *Store) GetTransfer(ctx context.Context, id inventory.TransferID) (*inventory.Transfer, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = ?`, id)
	t, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transfer: %w", err)
	}
	if t.Lines, err = s.transferLines(ctx, t.ID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) ListTransfers(ctx context.Context, family inventory.Family) ([]inventory.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers`
	var args []any
	if family != "" {
		query += ` WHERE family = ?`
		args = append(args, family)
	}
	query += ` ORDER BY seq`

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var out []inventory.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *t)
	}
	// Close before loading lines: the pool holds a single connection.
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Lines, err = s.transferLines(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scanTransfer(row scanner) (*inventory.Transfer, error) {
	var (
		t         inventory.Transfer
		createdAt string
		completed sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Family, &t.From, &t.To, &t.Status, &t.Actor, &t.Notes, &createdAt, &completed); err != nil {
		return nil, err
	}
	t.CreatedAt = parseTime(createdAt)
	t.CompletedAt = parseNullTime(completed)
	return &t, nil
}

func (s *Store) transferLines(ctx context.Context, id inventory.TransferID) ([]inventory.TransferLine, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT variant_id, quantity FROM transfer_lines WHERE transfer_id = ? ORDER BY line_no`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []inventory.TransferLine
	for rows.Next() {
		var (
			l   inventory.TransferLine
			qty string
		)
		if err := rows.Scan(&l.Variant, &qty); err != nil {
			return nil, err
		}
		if l.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("invalid quantity %q on transfer %s: %w", qty, id, err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
