package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/AlexTLDR/seatplan/internal/guests"
)

const personColumns = `id, unit_id, is_principal, display_name, category, age_group, phone, confirmed, note, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(s scanner) (PersonRow, error) {
	var r PersonRow
	err := s.Scan(&r.ID, &r.UnitID, &r.IsPrincipal, &r.DisplayName, &r.Category,
		&r.AgeGroup, &r.Phone, &r.Confirmed, &r.Note, &r.CreatedAt)
	return r, err
}

// ListPersons retrieves every person in insertion order.
func (db *DB) ListPersons(ctx context.Context) ([]guests.Person, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+personColumns+` FROM persons ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get persons: %w", err)
	}
	defer rows.Close()

	var persons []guests.Person
	for rows.Next() {
		r, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		persons = append(persons, r.Person())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate persons: %w", err)
	}

	return persons, nil
}

// ListPersonRows returns raw rows, for maintenance scripts that inspect the
// stored note encoding.
func (db *DB) ListPersonRows(ctx context.Context) ([]PersonRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+personColumns+` FROM persons ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get persons: %w", err)
	}
	defer rows.Close()

	var out []PersonRow
	for rows.Next() {
		r, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func insertPerson(ctx context.Context, tx *sql.Tx, p guests.Person) (guests.Person, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	r := personRow(p)

	err := tx.QueryRowContext(ctx,
		`INSERT INTO persons (unit_id, is_principal, display_name, category, age_group, phone, confirmed, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		r.UnitID, r.IsPrincipal, r.DisplayName, r.Category, r.AgeGroup, r.Phone, r.Confirmed, r.Note, r.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return guests.Person{}, fmt.Errorf("failed to insert person: %w", err)
	}
	return p, nil
}

// UpdatePersons writes the mutable fields of each person in one transaction.
// Every targeted row must exist.
func (db *DB) UpdatePersons(ctx context.Context, persons []guests.Person) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		return updatePersons(ctx, tx, persons)
	})
}

func updatePersons(ctx context.Context, tx *sql.Tx, persons []guests.Person) error {
	for _, p := range persons {
		r := personRow(p)
		res, err := tx.ExecContext(ctx,
			`UPDATE persons SET display_name = $1, category = $2, age_group = $3, phone = $4, confirmed = $5, note = $6
			 WHERE id = $7`,
			r.DisplayName, r.Category, r.AgeGroup, r.Phone, r.Confirmed, r.Note, r.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update person %d: %w", p.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to update person %d: %w", p.ID, err)
		}
		if n == 0 {
			return fmt.Errorf("failed to update person %d: %w", p.ID, ErrNotFound)
		}
	}
	return nil
}

// UpdateNote rewrites the raw note column of one person.
func (db *DB) UpdateNote(ctx context.Context, id int64, note string) error {
	_, err := db.ExecContext(ctx, `UPDATE persons SET note = $1 WHERE id = $2`, note, id)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	return nil
}

// DeletePersons removes persons and their seat assignments.
func (db *DB) DeletePersons(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	return db.inTx(ctx, func(tx *sql.Tx) error {
		in := placeholders(1, len(ids))
		if _, err := tx.ExecContext(ctx, `DELETE FROM seat_assignments WHERE person_id IN (`+in+`)`, int64Args(ids)...); err != nil {
			return fmt.Errorf("failed to delete seat assignments: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM persons WHERE id IN (`+in+`)`, int64Args(ids)...); err != nil {
			return fmt.Errorf("failed to delete persons: %w", err)
		}
		return nil
	})
}
