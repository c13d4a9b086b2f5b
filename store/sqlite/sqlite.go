/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  One Store implements catalog.Store, inventory.Store, production.Store and
  sales.Store over a single database, so a unit opened by any service
  covers the writes of all of them.

UNITS:
  WithTx begins a *sql.Tx and carries it in the context. Every method
  resolves its executor from the context: inside a unit it uses the tx,
  outside it uses the pool. Nested WithTx calls join the outer tx; only the
  outermost one commits. After-commit hooks run once the commit succeeds.

APPEND-ONLY ENFORCEMENT:
  stock_movements and order_status_history are only ever INSERTed.
  stock_records.quantity and orders.status are caches of those tables and
  are updated in the same tx as the row that justifies them.

KEY TABLES:
  variants:             canonical variant per (product, color, primary, secondary)
  stock_records:        cached balance per (family, location, variant)
  stock_movements:      immutable ledger of balance changes
  transfers:            transfer headers + transfer_lines
  orders:               production orders (status is a cache of history)
  order_status_history: immutable status changes
  sales_orders:         sales orders + sales_lines

CONCURRENCY:
  Writers serialize on a mutex for the whole unit, and the pool is capped
  at one connection so ":memory:" databases are shared by every query.

USAGE:
  store, err := sqlite.New("./data/orderflow.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - store/memory: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/orderflow/catalog"
	"github.com/warp/orderflow/core"
	"github.com/warp/orderflow/inventory"
	"github.com/warp/orderflow/production"
	"github.com/warp/orderflow/sales"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Catalog
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		is_bundle INTEGER NOT NULL DEFAULT 0,
		primary_material_id TEXT NOT NULL DEFAULT '',
		secondary_material_id TEXT NOT NULL DEFAULT '',
		archived_at TEXT
	);

	CREATE TABLE IF NOT EXISTS colors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS material_colors (
		id TEXT PRIMARY KEY,
		material_id TEXT NOT NULL,
		name TEXT NOT NULL
	);

	-- Empty strings, not NULL, so the unique key treats "no color" as a value
	CREATE TABLE IF NOT EXISTS variants (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		color_id TEXT NOT NULL DEFAULT '',
		primary_material_color_id TEXT NOT NULL DEFAULT '',
		secondary_material_color_id TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		UNIQUE (product_id, color_id, primary_material_color_id, secondary_material_color_id)
	);

	CREATE TABLE IF NOT EXISTS bundle_components (
		bundle_id TEXT NOT NULL,
		component_id TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (bundle_id, component_id)
	);

	CREATE TABLE IF NOT EXISTS bundle_color_mappings (
		bundle_id TEXT NOT NULL,
		bundle_color_id TEXT NOT NULL,
		component_id TEXT NOT NULL,
		component_color_id TEXT NOT NULL,
		PRIMARY KEY (bundle_id, bundle_color_id, component_id)
	);

	CREATE TABLE IF NOT EXISTS bundle_presets (
		id TEXT PRIMARY KEY,
		bundle_id TEXT NOT NULL,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bundle_preset_components (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		preset_id TEXT NOT NULL,
		component_id TEXT NOT NULL,
		primary_material_color_id TEXT NOT NULL DEFAULT '',
		secondary_material_color_id TEXT NOT NULL DEFAULT '',
		UNIQUE (preset_id, component_id)
	);

	-- Ledger
	CREATE TABLE IF NOT EXISTS stock_records (
		id TEXT PRIMARY KEY,
		family TEXT NOT NULL,
		location TEXT NOT NULL,
		variant_id TEXT NOT NULL,
		quantity TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (family, location, variant_id)
	);

	CREATE TABLE IF NOT EXISTS stock_movements (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		record_id TEXT NOT NULL REFERENCES stock_records(id),
		family TEXT NOT NULL,
		location TEXT NOT NULL,
		variant_id TEXT NOT NULL,
		change TEXT NOT NULL,
		reason TEXT NOT NULL,
		order_id TEXT NOT NULL DEFAULT '',
		sales_line_id TEXT NOT NULL DEFAULT '',
		transfer_id TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		actor TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_movements_record ON stock_movements(record_id);
	CREATE INDEX IF NOT EXISTS idx_movements_order ON stock_movements(order_id) WHERE order_id != '';

	CREATE TABLE IF NOT EXISTS transfers (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		family TEXT NOT NULL,
		from_location TEXT NOT NULL,
		to_location TEXT NOT NULL,
		status TEXT NOT NULL,
		actor TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		completed_at TEXT,
		CHECK (from_location != to_location)
	);

	CREATE TABLE IF NOT EXISTS transfer_lines (
		transfer_id TEXT NOT NULL REFERENCES transfers(id),
		line_no INTEGER NOT NULL,
		variant_id TEXT NOT NULL,
		quantity TEXT NOT NULL,
		PRIMARY KEY (transfer_id, line_no)
	);

	-- Production
	CREATE TABLE IF NOT EXISTS orders (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		product_id TEXT NOT NULL,
		variant_id TEXT NOT NULL,
		embroidery INTEGER NOT NULL DEFAULT 0,
		urgent INTEGER NOT NULL DEFAULT 0,
		marketplace INTEGER NOT NULL DEFAULT 0,
		comment TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		finished_at TEXT,
		sales_line_id TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
	CREATE INDEX IF NOT EXISTS idx_orders_sales_line ON orders(sales_line_id) WHERE sales_line_id != '';

	CREATE TABLE IF NOT EXISTS order_status_history (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT NOT NULL REFERENCES orders(id),
		status TEXT NOT NULL,
		actor TEXT NOT NULL DEFAULT '',
		changed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_order ON order_status_history(order_id);

	-- Sales
	CREATE TABLE IF NOT EXISTS sales_orders (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL,
		customer_info TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sales_lines (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		order_id TEXT NOT NULL REFERENCES sales_orders(id),
		product_id TEXT NOT NULL,
		variant_id TEXT NOT NULL DEFAULT '',
		color_id TEXT NOT NULL DEFAULT '',
		primary_material_color_id TEXT NOT NULL DEFAULT '',
		secondary_material_color_id TEXT NOT NULL DEFAULT '',
		preset_id TEXT NOT NULL DEFAULT '',
		components_json TEXT NOT NULL DEFAULT '[]',
		quantity INTEGER NOT NULL,
		production_mode TEXT NOT NULL,
		production_status TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_lines_order ON sales_lines(order_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// UNITS
// =============================================================================

type unitKey struct{}

type unit struct {
	owner *Store
	tx    *sql.Tx
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx executes fn within a database transaction. Nested calls join.
// After-commit hooks run once the store is unlocked.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if u, ok := ctx.Value(unitKey{}).(*unit); ok && u.owner == s {
		return fn(ctx)
	}

	hooks, err := s.runUnit(ctx, fn)
	if err != nil {
		return err
	}
	hooks.Run()
	return nil
}

// runUnit holds the store lock for one transaction. The deferred rollback
// is a no-op after a successful commit and also covers a panicking fn.
func (s *Store) runUnit(ctx context.Context, fn func(ctx context.Context) error) (*core.CommitHooks, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	ctx = context.WithValue(ctx, unitKey{}, &unit{owner: s, tx: sqlTx})
	ctx, hooks := core.WithCommitHooks(ctx)

	if err := fn(ctx); err != nil {
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return hooks, nil
}

// conn returns the unit's tx when ctx carries one, else the pool.
func (s *Store) conn(ctx context.Context) executor {
	if u, ok := ctx.Value(unitKey{}).(*unit); ok && u.owner == s {
		return u.tx
	}
	return s.db
}

// Reset deletes all data. Used by tests and demo resets.
func (s *Store) Reset(ctx context.Context) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		for _, table := range []string{
			"transfer_lines", "transfers", "stock_movements", "stock_records",
			"order_status_history", "orders", "sales_lines", "sales_orders",
			"bundle_preset_components", "bundle_presets", "bundle_color_mappings",
			"bundle_components", "variants", "material_colors", "colors", "products",
		} {
			if _, err := s.conn(ctx).ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to reset %s: %w", table, err)
			}
		}
		return nil
	})
}

// =============================================================================
// HELPERS
// =============================================================================

const timeFormat = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(v string) time.Time {
	t, _ := time.Parse(timeFormat, v)
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t := parseTime(v.String)
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

// Compile-time interface checks.
var (
	_ catalog.Store    = (*Store)(nil)
	_ inventory.Store  = (*Store)(nil)
	_ production.Store = (*Store)(nil)
	_ sales.Store      = (*Store)(nil)
)
