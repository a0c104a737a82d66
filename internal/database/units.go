package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/AlexTLDR/seatplan/internal/guests"
)

// CreateUnit creates an invitation unit with its principal and companions
// in one transaction.
func (db *DB) CreateUnit(ctx context.Context, principal guests.Person, companions []guests.Person) (guests.Unit, error) {
	var unit guests.Unit
	now := time.Now().UTC()

	err := db.inTx(ctx, func(tx *sql.Tx) error {
		var unitID int64
		err := tx.QueryRowContext(ctx, `INSERT INTO units (created_at) VALUES ($1) RETURNING id`, now).Scan(&unitID)
		if err != nil {
			return fmt.Errorf("failed to create unit: %w", err)
		}
		unit.ID = unitID

		principal.UnitID = unitID
		principal.Role = guests.RolePrincipal
		principal.CreatedAt = now
		p, err := insertPerson(ctx, tx, principal)
		if err != nil {
			return err
		}
		unit.Principal = p

		for _, c := range companions {
			c.UnitID = unitID
			c.Role = guests.RoleCompanion
			c.CreatedAt = now
			inserted, err := insertPerson(ctx, tx, c)
			if err != nil {
				return err
			}
			unit.Companions = append(unit.Companions, inserted)
		}
		return nil
	})
	if err != nil {
		return guests.Unit{}, err
	}

	return unit, nil
}

// SaveUnit updates existing members of a unit and inserts new companions in
// one transaction.
func (db *DB) SaveUnit(ctx context.Context, unitID int64, updated []guests.Person, added []guests.Person) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM units WHERE id = $1)`, unitID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check unit: %w", err)
		}
		if !exists {
			return ErrNotFound
		}

		if err := updatePersons(ctx, tx, updated); err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, c := range added {
			c.UnitID = unitID
			c.Role = guests.RoleCompanion
			if c.CreatedAt.IsZero() {
				c.CreatedAt = now
			}
			if _, err := insertPerson(ctx, tx, c); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteUnit deletes a unit, all its persons and their seat assignments.
func (db *DB) DeleteUnit(ctx context.Context, unitID int64) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		// Delete dependent rows first
		_, err := tx.ExecContext(ctx,
			`DELETE FROM seat_assignments WHERE person_id IN (SELECT id FROM persons WHERE unit_id = $1)`, unitID)
		if err != nil {
			return fmt.Errorf("failed to delete seat assignments: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM persons WHERE unit_id = $1`, unitID); err != nil {
			return fmt.Errorf("failed to delete persons: %w", err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM units WHERE id = $1`, unitID)
		if err != nil {
			return fmt.Errorf("failed to delete unit: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
		return nil
	})
}
