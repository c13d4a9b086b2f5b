package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/warp/orderflow/core"
	"github.com/warp/orderflow/sales"
)

// =============================================================================
// SALES ORDERS (sales.Store interface)
// =============================================================================

func (s *Store) SaveSalesOrder(ctx context.Context, o sales.SalesOrder) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO sales_orders (id, source, customer_info, notes, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			customer_info = excluded.customer_info,
			notes = excluded.notes,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, o.ID, o.Source, o.CustomerInfo, o.Notes, o.Status, formatTime(o.CreatedAt), formatTime(o.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save sales order: %w", err)
	}
	return nil
}

const salesOrderColumns = `id, source, customer_info, notes, status, created_at, updated_at`

func (s *Store) GetSalesOrder(ctx context.Context, id sales.SalesOrderID) (*sales.SalesOrder, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+salesOrderColumns+` FROM sales_orders WHERE id = ?`, id)
	o, err := scanSalesOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sales order: %w", err)
	}
	return o, nil
}

func (s *Store) ListSalesOrders(ctx context.Context) ([]sales.SalesOrder, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT `+salesOrderColumns+` FROM sales_orders ORDER BY seq DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sales.SalesOrder
	for rows.Next() {
		o, err := scanSalesOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func scanSalesOrder(row scanner) (*sales.SalesOrder, error) {
	var (
		o                    sales.SalesOrder
		createdAt, updatedAt string
	)
	if err := row.Scan(&o.ID, &o.Source, &o.CustomerInfo, &o.Notes, &o.Status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	o.CreatedAt = parseTime(createdAt)
	o.UpdatedAt = parseTime(updatedAt)
	return &o, nil
}

// =============================================================================
// SALES LINES
// =============================================================================

// SaveLine upserts a line. Component selections are stored as JSON.
func (s *Store) SaveLine(ctx context.Context, l sales.Line) error {
	components, err := json.Marshal(l.Components)
	if err != nil {
		return fmt.Errorf("failed to encode components: %w", err)
	}
	if l.Components == nil {
		components = []byte("[]")
	}

	_, err = s.conn(ctx).ExecContext(ctx, `
		INSERT INTO sales_lines (id, order_id, product_id, variant_id, color_id, primary_material_color_id,
			secondary_material_color_id, preset_id, components_json, quantity, production_mode, production_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			variant_id = excluded.variant_id,
			quantity = excluded.quantity,
			production_mode = excluded.production_mode,
			production_status = excluded.production_status
	`, l.ID, l.OrderID, l.ProductID, l.VariantID, l.ColorID, l.PrimaryMaterialColorID,
		l.SecondaryMaterialColorID, l.PresetID, string(components), l.Quantity, l.Mode, l.ProductionStatus)
	if err != nil {
		return fmt.Errorf("failed to save sales line: %w", err)
	}
	return nil
}

const lineColumns = `id, order_id, product_id, variant_id, color_id, primary_material_color_id,
	secondary_material_color_id, preset_id, components_json, quantity, production_mode, production_status`

func (s *Store) GetLine(ctx context.Context, id core.SalesLineID) (*sales.Line, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+lineColumns+` FROM sales_lines WHERE id = ?`, id)
	l, err := scanLine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sales line: %w", err)
	}
	return l, nil
}

func (s *Store) ListLines(ctx context.Context, orderID sales.SalesOrderID) ([]sales.Line, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+lineColumns+` FROM sales_lines WHERE order_id = ? ORDER BY seq`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sales.Line
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func scanLine(row scanner) (*sales.Line, error) {
	var (
		l          sales.Line
		components string
	)
	if err := row.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.VariantID, &l.ColorID, &l.PrimaryMaterialColorID,
		&l.SecondaryMaterialColorID, &l.PresetID, &components, &l.Quantity, &l.Mode, &l.ProductionStatus); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(components), &l.Components); err != nil {
		return nil, fmt.Errorf("invalid components on line %s: %w", l.ID, err)
	}
	if len(l.Components) == 0 {
		l.Components = nil
	}
	return &l, nil
}
