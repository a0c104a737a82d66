package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/AlexTLDR/seatplan/internal/seating"
)

// ListTables retrieves all dining tables ordered by id.
func (db *DB) ListTables(ctx context.Context) ([]seating.TableRecord, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, capacity, side, created_at FROM dining_tables ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}
	defer rows.Close()

	var tables []seating.TableRecord
	for rows.Next() {
		var r TableRow
		if err := rows.Scan(&r.ID, &r.Name, &r.Capacity, &r.Side, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, r.record())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tables: %w", err)
	}

	return tables, nil
}

// CreateTable inserts a table and returns it with its id.
func (db *DB) CreateTable(ctx context.Context, t seating.TableRecord) (seating.TableRecord, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	err := db.QueryRowContext(ctx,
		`INSERT INTO dining_tables (name, capacity, side, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		t.Name, t.Capacity, nullString(t.Side.Stored()), t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return seating.TableRecord{}, fmt.Errorf("failed to create table: %w", err)
	}
	return t, nil
}

// UpdateTable writes name, capacity and side of an existing table.
func (db *DB) UpdateTable(ctx context.Context, t seating.TableRecord) error {
	res, err := db.ExecContext(ctx,
		`UPDATE dining_tables SET name = $1, capacity = $2, side = $3 WHERE id = $4`,
		t.Name, t.Capacity, nullString(t.Side.Stored()), t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update table: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTable removes a table together with the assignments pointing at it.
func (db *DB) DeleteTable(ctx context.Context, id int64) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM seat_assignments WHERE table_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete seat assignments: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM dining_tables WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete table: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
		return nil
	})
}
