package database

import (
	"database/sql"
	"time"

	"github.com/AlexTLDR/seatplan/internal/guests"
	"github.com/AlexTLDR/seatplan/internal/notes"
	"github.com/AlexTLDR/seatplan/internal/seating"
)

type UnitRow struct {
	ID        int64
	CreatedAt time.Time
}

// PersonRow mirrors the persons table. Code outside this package works with
// guests.Person; Person is the only way a row becomes one.
type PersonRow struct {
	ID          int64
	UnitID      int64
	IsPrincipal bool
	DisplayName string
	Category    sql.NullString
	AgeGroup    sql.NullString
	Phone       sql.NullString
	Confirmed   bool
	Note        sql.NullString
	CreatedAt   time.Time
}

// Person maps a raw row to the domain type, decoding the note column.
func (r PersonRow) Person() guests.Person {
	note := notes.Decode(r.Note.String)

	role := guests.RoleCompanion
	if r.IsPrincipal {
		role = guests.RolePrincipal
	}

	return guests.Person{
		ID:        r.ID,
		UnitID:    r.UnitID,
		Role:      role,
		Name:      r.DisplayName,
		Category:  guests.ParseCategory(r.Category.String),
		AgeGroup:  guests.ParseAgeGroup(r.AgeGroup.String),
		Phone:     r.Phone.String,
		Allergies: note.Allergies,
		Confirmed: r.Confirmed,
		DeletedAt: note.DeletedAt,
		CreatedAt: r.CreatedAt,
	}
}

// personRow is the inverse of PersonRow.Person. The note is always written
// in the structured format, which migrates legacy values on their next write.
func personRow(p guests.Person) PersonRow {
	return PersonRow{
		ID:          p.ID,
		UnitID:      p.UnitID,
		IsPrincipal: p.IsPrincipal(),
		DisplayName: p.Name,
		Category:    nullString(string(p.Category)),
		AgeGroup:    nullString(string(p.AgeGroup)),
		Phone:       nullString(p.Phone),
		Confirmed:   p.Confirmed,
		Note:        nullString(notes.Encode(notes.Note{Allergies: p.Allergies, DeletedAt: p.DeletedAt})),
		CreatedAt:   p.CreatedAt,
	}
}

type TableRow struct {
	ID        int64
	Name      string
	Capacity  int
	Side      sql.NullString
	CreatedAt time.Time
}

func (r TableRow) record() seating.TableRecord {
	return seating.TableRecord{
		ID:        r.ID,
		Name:      r.Name,
		Capacity:  r.Capacity,
		Side:      seating.ParseSide(r.Side.String),
		CreatedAt: r.CreatedAt,
	}
}

type AssignmentRow struct {
	ID         int64
	PersonID   int64
	TableID    int64
	SeatNumber sql.NullInt64
	CreatedAt  time.Time
}

func (r AssignmentRow) assignment() seating.Assignment {
	a := seating.Assignment{PersonID: r.PersonID, TableID: r.TableID}
	if r.SeatNumber.Valid {
		seat := int(r.SeatNumber.Int64)
		a.Seat = &seat
	}
	return a
}
