// Package seating assigns confirmed guests to tables of fixed capacity.
//
// The Manager keeps an in-memory copy of tables and assignments that is
// authoritative for the running process. Every change is written through to
// a Store before it is applied, so a failed write leaves the Manager as it
// was.
package seating

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrTableFull             = errors.New("seating: table is full")
	ErrNotConfirmed          = errors.New("seating: person is not confirmed")
	ErrSeatTaken             = errors.New("seating: seat already taken")
	ErrInvalidSeat           = errors.New("seating: seat number out of range")
	ErrInvalidCapacity       = errors.New("seating: capacity must be positive")
	ErrCapacityBelowAssigned = errors.New("seating: capacity below assigned guests")
	ErrUnknownPerson         = errors.New("seating: unknown person")
	ErrUnknownTable          = errors.New("seating: unknown table")
)

// PersistenceError reports a failed write. The Manager state is unchanged.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("seating: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Side is the part of the room a table stands in.
type Side string

const (
	SideGroom  Side = "groom"
	SideBride  Side = "bride"
	SideCenter Side = "center"
)

// Sides lists every side.
var Sides = []Side{SideGroom, SideBride, SideCenter}

var storedSides = map[Side]string{
	SideGroom:  "sposo",
	SideBride:  "sposa",
	SideCenter: "centro",
}

// Stored returns the column value for s.
func (s Side) Stored() string {
	if v, ok := storedSides[s]; ok {
		return v
	}
	return storedSides[SideCenter]
}

// ParseSide accepts either the English name or the stored value. Anything
// else, including an empty value, is the center.
func ParseSide(s string) Side {
	s = strings.ToLower(strings.TrimSpace(s))
	for side, stored := range storedSides {
		if s == string(side) || s == stored {
			return side
		}
	}
	return SideCenter
}

// TableRecord is a table as stored, without its guests.
type TableRecord struct {
	ID        int64
	Name      string
	Capacity  int
	Side      Side
	CreatedAt time.Time
}

// Assignment seats a person at a table. Seat is optional and 1-based.
type Assignment struct {
	PersonID int64
	TableID  int64
	Seat     *int
}

func (a Assignment) clone() Assignment {
	if a.Seat != nil {
		s := *a.Seat
		a.Seat = &s
	}
	return a
}

// Table is a table together with the persons assigned to it, in the order
// they were seated.
type Table struct {
	TableRecord
	Assignments []Assignment
}

// Assigned returns the number of persons at the table.
func (t Table) Assigned() int {
	return len(t.Assignments)
}

// Available returns the number of free places.
func (t Table) Available() int {
	return t.Capacity - len(t.Assignments)
}

func (t Table) clone() Table {
	out := Table{TableRecord: t.TableRecord, Assignments: make([]Assignment, len(t.Assignments))}
	for i, a := range t.Assignments {
		out.Assignments[i] = a.clone()
	}
	return out
}
