package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/AlexTLDR/seatplan/internal/seating"
)

// ListAssignments retrieves every seat assignment.
func (db *DB) ListAssignments(ctx context.Context) ([]seating.Assignment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, person_id, table_id, seat_number, created_at FROM seat_assignments ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get seat assignments: %w", err)
	}
	defer rows.Close()

	var out []seating.Assignment
	for rows.Next() {
		var r AssignmentRow
		if err := rows.Scan(&r.ID, &r.PersonID, &r.TableID, &r.SeatNumber, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan seat assignment: %w", err)
		}
		out = append(out, r.assignment())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate seat assignments: %w", err)
	}

	return out, nil
}

// SaveAssignment seats a person, replacing any assignment the person
// already had. The unique person_id column keeps one seat per person.
func (db *DB) SaveAssignment(ctx context.Context, a seating.Assignment) error {
	var seat sql.NullInt64
	if a.Seat != nil {
		seat = sql.NullInt64{Int64: int64(*a.Seat), Valid: true}
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO seat_assignments (person_id, table_id, seat_number, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (person_id) DO UPDATE SET table_id = excluded.table_id, seat_number = excluded.seat_number`,
		a.PersonID, a.TableID, seat, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save seat assignment: %w", err)
	}
	return nil
}

// DeleteAssignment unseats a person. Deleting a missing assignment is not
// an error.
func (db *DB) DeleteAssignment(ctx context.Context, personID int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM seat_assignments WHERE person_id = $1`, personID); err != nil {
		return fmt.Errorf("failed to delete seat assignment: %w", err)
	}
	return nil
}
