// Package postgres provides a PostgreSQL room inventory built on pgx.
package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/aretw0/bpmnchat/pkg/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of *pgxpool.Pool the inventory uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	schemaSQL = `
CREATE TABLE IF NOT EXISTS rooms (
    id          INTEGER PRIMARY KEY,
    occupied    BOOLEAN NOT NULL DEFAULT FALSE,
    description TEXT NOT NULL,
    reserved_at TIMESTAMPTZ
)`

	clearSQL = `DELETE FROM rooms`

	seedSQL = `INSERT INTO rooms (id, occupied, description) VALUES ($1, $2, $3)`

	listSQL = `SELECT id, occupied, description FROM rooms WHERE NOT occupied ORDER BY id`

	// The outer SELECT sees the pre-update snapshot, so "found" is true for
	// occupied rooms too while "reserved" is only true for the caller that flipped the flag.
	reserveSQL = `
WITH updated AS (
    UPDATE rooms SET occupied = TRUE, reserved_at = now()
    WHERE id = $1 AND NOT occupied
    RETURNING id
)
SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1), EXISTS (SELECT 1 FROM updated)`
)

// Connect opens a connection pool for dsn.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	return pool, nil
}

// Inventory implements ports.Inventory on a "rooms" table.
type Inventory struct {
	db Querier
}

// NewInventory creates an inventory on db.
func NewInventory(db Querier) *Inventory {
	return &Inventory{db: db}
}

// EnsureSchema creates the rooms table if it does not exist.
func (inv *Inventory) EnsureSchema(ctx context.Context) error {
	if _, err := inv.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Seed replaces the inventory with items. Item ids must be integers.
func (inv *Inventory) Seed(ctx context.Context, items []domain.Item) error {
	if _, err := inv.db.Exec(ctx, clearSQL); err != nil {
		return fmt.Errorf("failed to clear rooms: %w", err)
	}
	for _, it := range items {
		id, err := strconv.Atoi(it.ID)
		if err != nil {
			return fmt.Errorf("item id %q is not an integer", it.ID)
		}
		if _, err := inv.db.Exec(ctx, seedSQL, id, it.Occupied, it.Description); err != nil {
			return fmt.Errorf("failed to seed item %d: %w", id, err)
		}
	}
	return nil
}

// ListAvailable returns the unoccupied rooms ordered by id.
func (inv *Inventory) ListAvailable(ctx context.Context) ([]domain.Item, error) {
	rows, err := inv.db.Query(ctx, listSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var (
			id   int
			item domain.Item
		)
		if err := rows.Scan(&id, &item.Occupied, &item.Description); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		item.ID = strconv.Itoa(id)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return items, nil
}

// Reserve marks the room as occupied in a single statement.
func (inv *Inventory) Reserve(ctx context.Context, id string) (domain.Reservation, error) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return domain.Reservation{}, domain.ErrItemNotFound
	}

	var found, reserved bool
	if err := inv.db.QueryRow(ctx, reserveSQL, n).Scan(&found, &reserved); err != nil {
		return domain.Reservation{}, fmt.Errorf("failed to reserve room %d: %w", n, err)
	}
	switch {
	case !found:
		return domain.Reservation{}, domain.ErrItemNotFound
	case !reserved:
		return domain.Reservation{ItemID: id, Status: ports.StatusAlreadyReserved}, nil
	}
	return domain.Reservation{ItemID: id, Status: ports.StatusReserved}, nil
}
