package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AlexTLDR/seatplan/internal/guests"
	"github.com/AlexTLDR/seatplan/internal/notes"
	"github.com/AlexTLDR/seatplan/internal/seating"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "seatplan.db") + "?_foreign_keys=on"
	db, err := New(context.Background(), DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), "mysql", "")
	require.Error(t, err)
}

func TestCreateUnitAndList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	unit, err := db.CreateUnit(ctx,
		guests.Person{Name: "Marco", Category: guests.CategoryFamilyHis, Phone: "+393331234567", Allergies: "noci"},
		[]guests.Person{{Name: "Anna", AgeGroup: guests.AgeChild}},
	)
	require.NoError(t, err)
	require.NotZero(t, unit.ID)
	require.True(t, unit.Principal.IsPrincipal())
	require.Len(t, unit.Companions, 1)

	persons, err := db.ListPersons(ctx)
	require.NoError(t, err)
	require.Len(t, persons, 2)

	marco := persons[0]
	require.Equal(t, unit.Principal.ID, marco.ID)
	require.Equal(t, guests.RolePrincipal, marco.Role)
	require.Equal(t, guests.CategoryFamilyHis, marco.Category)
	require.Equal(t, "+393331234567", marco.Phone)
	require.Equal(t, "noci", marco.Allergies)
	require.Equal(t, guests.StatusPending, marco.Status())

	anna := persons[1]
	require.Equal(t, guests.RoleCompanion, anna.Role)
	require.Equal(t, guests.AgeChild, anna.AgeGroup)
	require.Equal(t, unit.ID, anna.UnitID)
}

func TestUpdatePersonsWritesStructuredNote(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	unit, err := db.CreateUnit(ctx, guests.Person{Name: "Marco"}, nil)
	require.NoError(t, err)

	p := unit.Principal
	deleted := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	p.DeletedAt = &deleted
	p.Allergies = "glutine"
	p.Confirmed = true
	require.NoError(t, db.UpdatePersons(ctx, []guests.Person{p}))

	rows, err := db.ListPersonRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	note, format := notes.Parse(rows[0].Note.String)
	require.Equal(t, notes.FormatStructured, format)
	require.Equal(t, "glutine", note.Allergies)
	require.True(t, note.DeletedAt.Equal(deleted))

	persons, err := db.ListPersons(ctx)
	require.NoError(t, err)
	require.Equal(t, guests.StatusDeleted, persons[0].Status())
}

func TestUpdatePersonsMissingRowRollsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	unit, err := db.CreateUnit(ctx, guests.Person{Name: "Marco"}, nil)
	require.NoError(t, err)

	p := unit.Principal
	p.Name = "Changed"
	err = db.UpdatePersons(ctx, []guests.Person{p, {ID: 999, Name: "Ghost"}})
	require.ErrorIs(t, err, ErrNotFound)

	persons, err := db.ListPersons(ctx)
	require.NoError(t, err)
	require.Equal(t, "Marco", persons[0].Name)
}

func TestLegacyNoteIsDecoded(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	unit, err := db.CreateUnit(ctx, guests.Person{Name: "Marco"}, nil)
	require.NoError(t, err)
	require.NoError(t, db.UpdateNote(ctx, unit.Principal.ID, "deleted_at:2024-05-01T10:00:00Z"))

	persons, err := db.ListPersons(ctx)
	require.NoError(t, err)
	require.Equal(t, guests.StatusDeleted, persons[0].Status())
}

func TestSaveUnit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	unit, err := db.CreateUnit(ctx, guests.Person{Name: "Marco"}, []guests.Person{{Name: "Anna"}})
	require.NoError(t, err)

	anna := unit.Companions[0]
	anna.Name = "Anna Maria"
	err = db.SaveUnit(ctx, unit.ID, []guests.Person{anna}, []guests.Person{{Name: "Luca"}})
	require.NoError(t, err)

	persons, err := db.ListPersons(ctx)
	require.NoError(t, err)
	require.Len(t, persons, 3)
	require.Equal(t, "Anna Maria", persons[1].Name)
	require.Equal(t, "Luca", persons[2].Name)
	require.Equal(t, guests.RoleCompanion, persons[2].Role)

	require.ErrorIs(t, db.SaveUnit(ctx, 999, nil, nil), ErrNotFound)
}

func TestSeatingRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	unit, err := db.CreateUnit(ctx, guests.Person{Name: "Marco"}, []guests.Person{{Name: "Anna"}})
	require.NoError(t, err)

	table, err := db.CreateTable(ctx, seating.TableRecord{Name: "Sposi", Capacity: 4, Side: seating.SideBride})
	require.NoError(t, err)
	require.NotZero(t, table.ID)

	seat := 2
	require.NoError(t, db.SaveAssignment(ctx, seating.Assignment{PersonID: unit.Principal.ID, TableID: table.ID, Seat: &seat}))
	require.NoError(t, db.SaveAssignment(ctx, seating.Assignment{PersonID: unit.Companions[0].ID, TableID: table.ID}))

	other, err := db.CreateTable(ctx, seating.TableRecord{Name: "Amici", Capacity: 8})
	require.NoError(t, err)
	// Saving again moves the person.
	require.NoError(t, db.SaveAssignment(ctx, seating.Assignment{PersonID: unit.Companions[0].ID, TableID: other.ID}))

	tables, err := db.ListTables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	require.Equal(t, seating.SideBride, tables[0].Side)
	require.Equal(t, seating.SideCenter, tables[1].Side)

	assignments, err := db.ListAssignments(ctx)
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	require.Equal(t, table.ID, assignments[0].TableID)
	require.Equal(t, 2, *assignments[0].Seat)
	require.Equal(t, other.ID, assignments[1].TableID)
	require.Nil(t, assignments[1].Seat)

	table.Capacity = 6
	require.NoError(t, db.UpdateTable(ctx, table))
	require.ErrorIs(t, db.UpdateTable(ctx, seating.TableRecord{ID: 999, Name: "x", Capacity: 1}), ErrNotFound)

	require.NoError(t, db.DeleteTable(ctx, table.ID))
	assignments, err = db.ListAssignments(ctx)
	require.NoError(t, err)
	require.Len(t, assignments, 1)

	require.NoError(t, db.DeleteAssignment(ctx, unit.Companions[0].ID))
	require.NoError(t, db.DeleteAssignment(ctx, unit.Companions[0].ID))
}

func TestDeleteUnitRemovesEverything(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	unit, err := db.CreateUnit(ctx, guests.Person{Name: "Marco"}, []guests.Person{{Name: "Anna"}})
	require.NoError(t, err)
	table, err := db.CreateTable(ctx, seating.TableRecord{Name: "T1", Capacity: 2})
	require.NoError(t, err)
	require.NoError(t, db.SaveAssignment(ctx, seating.Assignment{PersonID: unit.Principal.ID, TableID: table.ID}))

	require.NoError(t, db.DeleteUnit(ctx, unit.ID))

	persons, err := db.ListPersons(ctx)
	require.NoError(t, err)
	require.Empty(t, persons)
	assignments, err := db.ListAssignments(ctx)
	require.NoError(t, err)
	require.Empty(t, assignments)

	require.ErrorIs(t, db.DeleteUnit(ctx, unit.ID), ErrNotFound)
}

func TestDeletePersons(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	unit, err := db.CreateUnit(ctx, guests.Person{Name: "Marco"}, []guests.Person{{Name: "Anna"}, {Name: "Luca"}})
	require.NoError(t, err)

	require.NoError(t, db.DeletePersons(ctx, []int64{unit.Companions[0].ID, unit.Companions[1].ID}))
	require.NoError(t, db.DeletePersons(ctx, nil))

	persons, err := db.ListPersons(ctx)
	require.NoError(t, err)
	require.Len(t, persons, 1)
}

func TestPlaceholders(t *testing.T) {
	require.Equal(t, "$1, $2, $3", placeholders(1, 3))
	require.Equal(t, "$4", placeholders(4, 1))
	require.Equal(t, "", placeholders(1, 0))
}

func TestOnePrincipalPerUnit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	unit, err := db.CreateUnit(ctx, guests.Person{Name: "Marco"}, []guests.Person{{Name: "Anna"}})
	require.NoError(t, err)
	_, err = db.CreateUnit(ctx, guests.Person{Name: "Giulia"}, nil)
	require.NoError(t, err)

	anna := unit.Companions[0]
	anna.Role = guests.RolePrincipal
	anna.Confirmed = true
	require.Error(t, db.UpdatePersons(ctx, []guests.Person{anna}))

	persons, err := db.ListPersons(ctx)
	require.NoError(t, err)
	principals := 0
	for _, p := range persons {
		if p.UnitID == unit.ID && p.IsPrincipal() {
			principals++
		}
		if p.ID == anna.ID {
			require.False(t, p.Confirmed)
		}
	}
	require.Equal(t, 1, principals)
}
