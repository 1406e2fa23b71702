// Package sqlstore implements the order and result stores on top of
// database/sql. SQLite (modernc.org/sqlite) and PostgreSQL (pgx) are
// supported; both share one schema.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/kilianp07/recsizing/config"
	"github.com/kilianp07/recsizing/core/model"
	"github.com/kilianp07/recsizing/core/store"
)

// Store persists orders and results in a SQL database.
type Store struct {
	db *sql.DB
	d  dialect
}

var _ store.Store = (*Store)(nil)

// Open connects to the configured database and ensures the schema exists.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	var d dialect
	switch cfg.Driver {
	case "sqlite", "":
		d = sqliteDialect
	case "postgres":
		d = postgresDialect
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
	db, err := sql.Open(d.driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.name, err)
	}
	s := &Store{db: db, d: d}
	if err := s.init(ctx, cfg); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context, cfg config.StoreConfig) error {
	if s.d.name == "sqlite" {
		// SQLite allows one writer; a single connection serialises job commits.
		s.db.SetMaxOpenConns(1)
		pragmas := []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"}
		if !strings.Contains(cfg.DSN, "mode=memory") && cfg.DSN != ":memory:" {
			pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
		}
		for _, p := range pragmas {
			if _, err := s.db.ExecContext(ctx, p); err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
		}
	} else if cfg.MaxOpenConns > 0 {
		s.db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	for _, stmt := range s.d.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) CreateOrder(ctx context.Context, id string, clustered bool) error {
	res, err := s.db.ExecContext(ctx, s.d.rebind(
		`INSERT INTO Orders (order_id, processed, error, message, clustered) VALUES (?, ?, '', '', ?)
		ON CONFLICT (order_id) DO NOTHING`), id, false, clustered)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	if n == 0 {
		return store.ErrDuplicateOrder
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (model.Order, error) {
	o := model.Order{ID: id}
	var code string
	err := s.db.QueryRowContext(ctx, s.d.rebind(
		`SELECT processed, error, message, clustered FROM Orders WHERE order_id = ?`), id).
		Scan(&o.Processed, &code, &o.Message, &o.Clustered)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, store.ErrOrderNotFound
	}
	if err != nil {
		return model.Order{}, fmt.Errorf("get order: %w", err)
	}
	o.Error = model.ErrorCode(code)
	return o, nil
}

func (s *Store) MarkError(ctx context.Context, id string, code model.ErrorCode, message string) error {
	return s.finish(ctx, s.db, id, code, message)
}

func (s *Store) MarkSuccess(ctx context.Context, id string) error {
	return s.finish(ctx, s.db, id, model.CodeNone, "")
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// finish performs the single terminal transition of an order.
func (s *Store) finish(ctx context.Context, db execer, id string, code model.ErrorCode, message string) error {
	res, err := db.ExecContext(ctx, s.d.rebind(
		`UPDATE Orders SET processed = ?, error = ?, message = ? WHERE order_id = ? AND processed = ?`),
		true, string(code), message, id, false)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if n == 1 {
		return nil
	}
	var exists int
	err = db.QueryRowContext(ctx, s.d.rebind(`SELECT 1 FROM Orders WHERE order_id = ?`), id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup order: %w", err)
	}
	return store.ErrAlreadyProcessed
}
