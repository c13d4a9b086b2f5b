package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/warp/orderflow/core"
	"github.com/warp/orderflow/production"
)

// =============================================================================
// PRODUCTION ORDERS (production.Store interface)
// =============================================================================

func (s *Store) SaveOrder(ctx context.Context, o production.Order) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO orders (id, product_id, variant_id, embroidery, urgent, marketplace, comment,
			status, created_at, finished_at, sales_line_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			embroidery = excluded.embroidery,
			urgent = excluded.urgent,
			marketplace = excluded.marketplace,
			comment = excluded.comment,
			status = excluded.status,
			finished_at = excluded.finished_at
	`, o.ID, o.ProductID, o.VariantID, boolInt(o.Embroidery), boolInt(o.Urgent), boolInt(o.Marketplace),
		o.Comment, o.Status, formatTime(o.CreatedAt), nullTime(o.FinishedAt), o.SalesLineID)
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

const orderColumns = `id, product_id, variant_id, embroidery, urgent, marketplace, comment,
	status, created_at, finished_at, sales_line_id`

func (s *Store) GetOrder(ctx context.Context, id core.OrderID) (*production.Order, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, filter production.OrderFilter) ([]production.Order, error) {
	var (
		where []string
		args  []any
	)
	if filter.SalesLineID != "" {
		where = append(where, "sales_line_id = ?")
		args = append(args, filter.SalesLineID)
	}
	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			marks[i] = "?"
			args = append(args, st)
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []production.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func scanOrder(row scanner) (*production.Order, error) {
	var (
		o                               production.Order
		embroidery, urgent, marketplace int
		createdAt                       string
		finishedAt                      sql.NullString
	)
	if err := row.Scan(&o.ID, &o.ProductID, &o.VariantID, &embroidery, &urgent, &marketplace, &o.Comment,
		&o.Status, &createdAt, &finishedAt, &o.SalesLineID); err != nil {
		return nil, err
	}
	o.Embroidery = embroidery == 1
	o.Urgent = urgent == 1
	o.Marketplace = marketplace == 1
	o.CreatedAt = parseTime(createdAt)
	o.FinishedAt = parseNullTime(finishedAt)
	return &o, nil
}

// =============================================================================
// STATUS HISTORY
// =============================================================================

// AppendHistory inserts a history row. There is no update path.
func (s *Store) AppendHistory(ctx context.Context, h production.HistoryEntry) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO order_status_history (order_id, status, actor, changed_at) VALUES (?, ?, ?, ?)
	`, h.OrderID, h.Status, h.Actor, formatTime(h.At))
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

func (s *Store) ListHistory(ctx context.Context, id core.OrderID) ([]production.HistoryEntry, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT order_id, status, actor, changed_at FROM order_status_history
		WHERE order_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []production.HistoryEntry
	for rows.Next() {
		var (
			h  production.HistoryEntry
			at string
		)
		if err := rows.Scan(&h.OrderID, &h.Status, &h.Actor, &at); err != nil {
			return nil, err
		}
		h.At = parseTime(at)
		out = append(out, h)
	}
	return out, rows.Err()
}
