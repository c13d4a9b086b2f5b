package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/warp/orderflow/catalog"
)

// =============================================================================
// CATALOG (catalog.Store interface)
// =============================================================================

func (s *Store) SaveProduct(ctx context.Context, p catalog.Product) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO products (id, name, is_bundle, primary_material_id, secondary_material_id, archived_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			is_bundle = excluded.is_bundle,
			primary_material_id = excluded.primary_material_id,
			secondary_material_id = excluded.secondary_material_id,
			archived_at = excluded.archived_at
	`, p.ID, p.Name, boolInt(p.IsBundle), p.PrimaryMaterialID, p.SecondaryMaterialID, nullTime(p.ArchivedAt))
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id catalog.ProductID) (*catalog.Product, error) {
	var (
		p        catalog.Product
		isBundle int
		archived sql.NullString
	)
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, name, is_bundle, primary_material_id, secondary_material_id, archived_at
		FROM products WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &isBundle, &p.PrimaryMaterialID, &p.SecondaryMaterialID, &archived)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	p.IsBundle = isBundle == 1
	p.ArchivedAt = parseNullTime(archived)
	return &p, nil
}

func (s *Store) SaveColor(ctx context.Context, c catalog.Color) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO colors (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, c.ID, c.Name)
	return err
}

func (s *Store) SaveMaterialColor(ctx context.Context, c catalog.MaterialColor) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO material_colors (id, material_id, name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET material_id = excluded.material_id, name = excluded.name
	`, c.ID, c.MaterialID, c.Name)
	return err
}

func (s *Store) GetMaterialColor(ctx context.Context, id catalog.MaterialColorID) (*catalog.MaterialColor, error) {
	var c catalog.MaterialColor
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT id, material_id, name FROM material_colors WHERE id = ?`, id,
	).Scan(&c.ID, &c.MaterialID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get material color: %w", err)
	}
	return &c, nil
}

// SaveVariant inserts a variant. The attribute key is unique.
func (s *Store) SaveVariant(ctx context.Context, v catalog.Variant) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO variants (id, product_id, color_id, primary_material_color_id, secondary_material_color_id, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, v.ID, v.Key.ProductID, v.Key.ColorID, v.Key.PrimaryMaterialColorID, v.Key.SecondaryMaterialColorID,
		boolInt(v.Active), formatTime(v.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return catalog.ErrVariantKeyConflict
		}
		return fmt.Errorf("failed to save variant: %w", err)
	}
	return nil
}

const variantColumns = `id, product_id, color_id, primary_material_color_id, secondary_material_color_id, active, created_at`

func (s *Store) GetVariant(ctx context.Context, id catalog.VariantID) (*catalog.Variant, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+variantColumns+` FROM variants WHERE id = ?`, id)
	return scanVariant(row)
}

func (s *Store) FindVariant(ctx context.Context, key catalog.VariantKey) (*catalog.Variant, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT `+variantColumns+` FROM variants
		WHERE product_id = ? AND color_id = ? AND primary_material_color_id = ? AND secondary_material_color_id = ?
	`, key.ProductID, key.ColorID, key.PrimaryMaterialColorID, key.SecondaryMaterialColorID)
	return scanVariant(row)
}

func scanVariant(row *sql.Row) (*catalog.Variant, error) {
	var (
		v         catalog.Variant
		active    int
		createdAt string
	)
	err := row.Scan(&v.ID, &v.Key.ProductID, &v.Key.ColorID, &v.Key.PrimaryMaterialColorID,
		&v.Key.SecondaryMaterialColorID, &active, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan variant: %w", err)
	}
	v.Active = active == 1
	v.CreatedAt = parseTime(createdAt)
	return &v, nil
}

// =============================================================================
// BUNDLES
// =============================================================================

func (s *Store) SaveBundleComponent(ctx context.Context, c catalog.BundleComponent) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO bundle_components (bundle_id, component_id, quantity) VALUES (?, ?, ?)
		ON CONFLICT(bundle_id, component_id) DO UPDATE SET quantity = excluded.quantity
	`, c.BundleID, c.ComponentID, c.Quantity)
	return err
}

func (s *Store) ListBundleComponents(ctx context.Context, bundleID catalog.ProductID) ([]catalog.BundleComponent, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT bundle_id, component_id, quantity FROM bundle_components WHERE bundle_id = ? ORDER BY component_id`, bundleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.BundleComponent
	for rows.Next() {
		var c catalog.BundleComponent
		if err := rows.Scan(&c.BundleID, &c.ComponentID, &c.Quantity); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) SaveBundleColorMapping(ctx context.Context, m catalog.BundleColorMapping) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO bundle_color_mappings (bundle_id, bundle_color_id, component_id, component_color_id) VALUES (?, ?, ?, ?)
		ON CONFLICT(bundle_id, bundle_color_id, component_id) DO UPDATE SET component_color_id = excluded.component_color_id
	`, m.BundleID, m.BundleColorID, m.ComponentID, m.ComponentColorID)
	return err
}

func (s *Store) ListBundleColorMappings(ctx context.Context, bundleID catalog.ProductID, bundleColorID catalog.ColorID) ([]catalog.BundleColorMapping, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT bundle_id, bundle_color_id, component_id, component_color_id
		FROM bundle_color_mappings WHERE bundle_id = ? AND bundle_color_id = ?
		ORDER BY component_id
	`, bundleID, bundleColorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.BundleColorMapping
	for rows.Next() {
		var m catalog.BundleColorMapping
		if err := rows.Scan(&m.BundleID, &m.BundleColorID, &m.ComponentID, &m.ComponentColorID); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) SaveBundlePreset(ctx context.Context, p catalog.BundlePreset) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO bundle_presets (id, bundle_id, name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET bundle_id = excluded.bundle_id, name = excluded.name
	`, p.ID, p.BundleID, p.Name)
	return err
}

func (s *Store) GetBundlePreset(ctx context.Context, id catalog.PresetID) (*catalog.BundlePreset, error) {
	var p catalog.BundlePreset
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT id, bundle_id, name FROM bundle_presets WHERE id = ?`, id,
	).Scan(&p.ID, &p.BundleID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bundle preset: %w", err)
	}
	return &p, nil
}

func (s *Store) SaveBundlePresetComponent(ctx context.Context, c catalog.BundlePresetComponent) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO bundle_preset_components (preset_id, component_id, primary_material_color_id, secondary_material_color_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(preset_id, component_id) DO UPDATE SET
			primary_material_color_id = excluded.primary_material_color_id,
			secondary_material_color_id = excluded.secondary_material_color_id
	`, c.PresetID, c.ComponentID, c.PrimaryMaterialColorID, c.SecondaryMaterialColorID)
	return err
}

func (s *Store) ListBundlePresetComponents(ctx context.Context, presetID catalog.PresetID) ([]catalog.BundlePresetComponent, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT preset_id, component_id, primary_material_color_id, secondary_material_color_id
		FROM bundle_preset_components WHERE preset_id = ? ORDER BY seq
	`, presetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.BundlePresetComponent
	for rows.Next() {
		var c catalog.BundlePresetComponent
		if err := rows.Scan(&c.PresetID, &c.ComponentID, &c.PrimaryMaterialColorID, &c.SecondaryMaterialColorID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
