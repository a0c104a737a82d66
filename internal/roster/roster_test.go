package roster

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AlexTLDR/seatplan/internal/guests"
)

var errRefused = errors.New("write refused")

// memRows is an in-memory RowStore. Setting fail makes every write return
// errRefused; beforeWrite runs at the start of each write.
type memRows struct {
	mu          sync.Mutex
	persons     map[int64]guests.Person
	nextID      int64
	fail        bool
	failList    bool
	beforeWrite func()
	writes      int
}

func newMemRows() *memRows {
	return &memRows{persons: map[int64]guests.Person{}}
}

func (m *memRows) write() error {
	if m.beforeWrite != nil {
		m.beforeWrite()
	}
	m.writes++
	if m.fail {
		return errRefused
	}
	return nil
}

func (m *memRows) ListPersons(context.Context) ([]guests.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList {
		return nil, errRefused
	}
	out := make([]guests.Person, 0, len(m.persons))
	for _, p := range m.persons {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRows) insert(p guests.Person) guests.Person {
	m.nextID++
	p.ID = m.nextID
	if p.CreatedAt.IsZero() {
		p.CreatedAt = base.Add(time.Duration(p.ID) * time.Minute)
	}
	m.persons[p.ID] = p.Clone()
	return p
}

func (m *memRows) CreateUnit(_ context.Context, principal guests.Person, companions []guests.Person) (guests.Unit, error) {
	if err := m.write(); err != nil {
		return guests.Unit{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	unitID := m.nextID * 100
	principal.UnitID = unitID
	u := guests.Unit{ID: unitID, Principal: m.insert(principal)}
	for _, c := range companions {
		c.UnitID = unitID
		u.Companions = append(u.Companions, m.insert(c))
	}
	return u, nil
}

func (m *memRows) SaveUnit(_ context.Context, unitID int64, updated, added []guests.Person) error {
	if err := m.write(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range updated {
		m.persons[p.ID] = p.Clone()
	}
	for _, c := range added {
		c.UnitID = unitID
		c.Role = guests.RoleCompanion
		m.insert(c)
	}
	return nil
}

func (m *memRows) UpdatePersons(_ context.Context, persons []guests.Person) error {
	if err := m.write(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range persons {
		m.persons[p.ID] = p.Clone()
	}
	return nil
}

func (m *memRows) DeletePersons(_ context.Context, ids []int64) error {
	if err := m.write(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.persons, id)
	}
	return nil
}

func (m *memRows) DeleteUnit(_ context.Context, unitID int64) error {
	if err := m.write(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.persons {
		if p.UnitID == unitID {
			delete(m.persons, id)
		}
	}
	return nil
}

var base = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) byLevel(level Level) []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notice
	for _, n := range r.notices {
		if n.Level == level {
			out = append(out, n)
		}
	}
	return out
}

// fixture seeds unit 100: principal Marco (pending) with Anna (pending),
// Luca (confirmed) and Sara (deleted).
func fixture(t *testing.T) (*Store, *memRows, *recorder) {
	t.Helper()
	rows := newMemRows()
	gone := base.Add(-time.Hour)
	rows.persons = map[int64]guests.Person{
		1: {ID: 1, UnitID: 100, Role: guests.RolePrincipal, Name: "Marco", Category: guests.CategoryFriends, CreatedAt: base},
		2: {ID: 2, UnitID: 100, Name: "Anna", Category: guests.CategoryFriends, Allergies: "noci", CreatedAt: base},
		3: {ID: 3, UnitID: 100, Name: "Luca", Category: guests.CategoryFriends, Confirmed: true, CreatedAt: base},
		4: {ID: 4, UnitID: 100, Name: "Sara", Category: guests.CategoryFriends, DeletedAt: &gone, CreatedAt: base},
	}
	rows.nextID = 10

	rec := &recorder{}
	s := New(rows, Options{Notifier: rec, Logger: zap.NewNop()})
	require.NoError(t, s.Load(context.Background()))
	return s, rows, rec
}

func statusOf(t *testing.T, s *Store, id int64) guests.Status {
	t.Helper()
	st, ok := s.PersonStatus(id)
	require.True(t, ok, "person %d missing", id)
	return st
}

func TestLoadPartitionsUnits(t *testing.T) {
	s, _, _ := fixture(t)

	views := s.Views()
	require.Len(t, views, 3)
	require.Equal(t, "100_pending", views[0].ID)
	require.Equal(t, "100_confirmed", views[1].ID)
	require.Equal(t, "100_deleted", views[2].ID)
	require.Equal(t, "Companions of Marco", views[1].Name)

	require.Len(t, s.GuestsByStatus(guests.StatusConfirmed), 1)
	stats := s.Stats()
	require.Equal(t, 1, stats.Units)
	require.Equal(t, 2, stats.Pending)
	require.Equal(t, 1, stats.Confirmed)
	require.Equal(t, 1, stats.Deleted)
}

func TestSoftDeleteFailureRestoresViews(t *testing.T) {
	s, rows, rec := fixture(t)
	before := s.Views()

	rows.fail = true
	err := s.SoftDeleteCompanion(context.Background(), 2)

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "delete_companion", perr.Op)
	require.ErrorIs(t, err, errRefused)

	require.Equal(t, before, s.Views())
	require.Len(t, rec.byLevel(LevelError), 1)
	require.Equal(t, CodeSaveFailed, rec.byLevel(LevelError)[0].Code)
	require.Empty(t, rec.byLevel(LevelSuccess))
}

func TestProjectionVisibleDuringWrite(t *testing.T) {
	s, rows, _ := fixture(t)

	var during guests.Status
	rows.beforeWrite = func() { during, _ = s.PersonStatus(2) }

	require.NoError(t, s.SoftDeleteCompanion(context.Background(), 2))
	require.Equal(t, guests.StatusDeleted, during)
	require.Equal(t, guests.StatusDeleted, statusOf(t, s, 2))

	p, _ := s.Person(2)
	require.Equal(t, "noci", p.Allergies)
}

func TestConfirmPrincipalOnlyLeavesCompanions(t *testing.T) {
	s, _, rec := fixture(t)
	before := map[int64]guests.Status{}
	for _, id := range []int64{2, 3, 4} {
		before[id] = statusOf(t, s, id)
	}

	require.NoError(t, s.ConfirmPrincipalOnly(context.Background(), "100_pending"))

	require.Equal(t, guests.StatusConfirmed, statusOf(t, s, 1))
	for id, st := range before {
		require.Equal(t, st, statusOf(t, s, id))
	}

	// The principal moved to the confirmed card.
	v, ok := s.View("100_confirmed")
	require.True(t, ok)
	require.True(t, v.ContainsPrimary)
	require.Equal(t, "Marco", v.Name)
	require.Len(t, rec.byLevel(LevelSuccess), 1)

	require.NoError(t, s.RevertPrincipalOnly(context.Background(), "100"))
	require.Equal(t, guests.StatusPending, statusOf(t, s, 1))
}

func TestConfirmAllInGroup(t *testing.T) {
	s, rows, _ := fixture(t)

	require.NoError(t, s.ConfirmAllInGroup(context.Background(), "100_pending"))

	require.Equal(t, guests.StatusConfirmed, statusOf(t, s, 1))
	require.Equal(t, guests.StatusConfirmed, statusOf(t, s, 2))
	require.Equal(t, guests.StatusConfirmed, statusOf(t, s, 3))
	require.Equal(t, guests.StatusDeleted, statusOf(t, s, 4))

	// Nothing left to confirm: no write.
	writes := rows.writes
	require.NoError(t, s.ConfirmAllInGroup(context.Background(), "100_confirmed"))
	require.Equal(t, writes, rows.writes)
}

func TestStaleReference(t *testing.T) {
	s, rows, rec := fixture(t)
	before := s.Views()

	err := s.ConfirmPrincipalOnly(context.Background(), "999_pending")
	require.ErrorIs(t, err, ErrStaleReference)

	// The unit exists but the card does not.
	err = s.SoftDeleteUnit(context.Background(), "100_unknown")
	require.ErrorIs(t, err, ErrInvalidInput)

	err = s.RevertCompanion(context.Background(), 42)
	require.ErrorIs(t, err, ErrStaleReference)

	require.Equal(t, before, s.Views())
	require.Zero(t, rows.writes)
	require.Len(t, rec.byLevel(LevelInfo), 2)
	require.Empty(t, rec.byLevel(LevelError))
}

func TestStaleViewStatus(t *testing.T) {
	s, _, _ := fixture(t)
	require.NoError(t, s.ConfirmPrincipalOnly(context.Background(), "100_pending"))

	// Anna still holds the pending card, so it exists; now confirm her and
	// the card is gone.
	require.NoError(t, s.ConfirmCompanion(context.Background(), 2))
	err := s.SoftDeleteUnit(context.Background(), "100_pending")
	require.ErrorIs(t, err, ErrStaleReference)
}

func TestTransitionsFromDeleted(t *testing.T) {
	s, rows, _ := fixture(t)
	ctx := context.Background()

	require.ErrorIs(t, s.ConfirmCompanion(ctx, 4), ErrInvalidTransition)
	require.ErrorIs(t, s.RevertCompanion(ctx, 4), ErrInvalidTransition)
	require.ErrorIs(t, s.PermanentlyDeleteCompanion(ctx, 2), ErrInvalidTransition)
	require.ErrorIs(t, s.PermanentlyDeleteUnit(ctx, "100"), ErrInvalidTransition)
	require.ErrorIs(t, s.ConfirmCompanion(ctx, 1), ErrInvalidInput)

	require.NoError(t, s.SoftDeleteUnit(ctx, "100"))
	require.ErrorIs(t, s.ConfirmPrincipalOnly(ctx, "100"), ErrInvalidTransition)
	require.ErrorIs(t, s.ConfirmAllInGroup(ctx, "100"), ErrInvalidTransition)

	writes := rows.writes
	require.NoError(t, s.SoftDeleteCompanion(ctx, 2))
	require.Equal(t, writes, rows.writes)
}

func TestSoftDeleteAndRestoreUnit(t *testing.T) {
	s, _, _ := fixture(t)
	ctx := context.Background()

	require.NoError(t, s.SoftDeleteUnit(ctx, "100_confirmed"))
	views := s.Views()
	require.Len(t, views, 1)
	require.Equal(t, "100_deleted", views[0].ID)
	require.Len(t, views[0].Companions, 3)

	require.NoError(t, s.RestoreUnit(ctx, "100_deleted"))
	for _, id := range []int64{1, 2, 3, 4} {
		require.Equal(t, guests.StatusPending, statusOf(t, s, id))
	}
	p, _ := s.Person(2)
	require.Equal(t, "noci", p.Allergies)
}

func TestRestoreCompanion(t *testing.T) {
	s, _, _ := fixture(t)
	require.NoError(t, s.RestoreCompanion(context.Background(), 4))
	require.Equal(t, guests.StatusPending, statusOf(t, s, 4))
	_, ok := s.View("100_deleted")
	require.False(t, ok)
}

func TestPermanentDelete(t *testing.T) {
	s, rows, _ := fixture(t)
	ctx := context.Background()

	require.NoError(t, s.PermanentlyDeleteCompanion(ctx, 4))
	_, ok := s.Person(4)
	require.False(t, ok)
	require.NotContains(t, rows.persons, int64(4))

	require.NoError(t, s.SoftDeleteUnit(ctx, "100"))
	require.NoError(t, s.PermanentlyDeleteUnit(ctx, "100_deleted"))
	require.Empty(t, s.Views())
	require.Empty(t, rows.persons)
}

func TestPermanentDeleteFailureRestores(t *testing.T) {
	s, rows, rec := fixture(t)
	before := s.Views()

	rows.fail = true
	err := s.PermanentlyDeleteCompanion(context.Background(), 4)
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, before, s.Views())
	require.Len(t, rec.byLevel(LevelError), 1)
}

func TestAddGuest(t *testing.T) {
	s, _, _ := fixture(t)

	v, err := s.AddGuest(context.Background(), GuestInput{
		Name:     " Giulia ",
		Category: guests.CategoryColleagues,
		Companions: []CompanionInput{
			{Name: "Paolo", AgeGroup: guests.AgeChild},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "Giulia", v.Name)
	require.Equal(t, guests.StatusPending, v.Status)
	require.True(t, v.ContainsPrimary)
	require.Len(t, v.Companions, 1)
	require.Equal(t, guests.CategoryColleagues, v.Companions[0].Category)

	// Newest unit first.
	require.Equal(t, v.ID, s.Views()[0].ID)

	_, err = s.AddGuest(context.Background(), GuestInput{Name: "  "})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.AddGuest(context.Background(), GuestInput{Name: "X", Companions: []CompanionInput{{}}})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestAddGuestFailure(t *testing.T) {
	s, rows, rec := fixture(t)
	before := s.Views()
	rows.fail = true

	_, err := s.AddGuest(context.Background(), GuestInput{Name: "Giulia"})
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, before, s.Views())
	require.Len(t, rec.byLevel(LevelError), 1)
}

func TestUpdateRosterGrowAndShrink(t *testing.T) {
	s, rows, _ := fixture(t)
	ctx := context.Background()

	// Four companions where there were three: Sara comes back, one is new.
	err := s.UpdateRoster(ctx, 100, []CompanionInput{
		{Name: "Anna"}, {Name: "Luca"}, {Name: "Sara", Allergies: "glutine"}, {Name: "Nuovo"},
	})
	require.NoError(t, err)
	u, ok := s.Unit(100)
	require.True(t, ok)
	require.Len(t, u.Companions, 4)
	require.Equal(t, guests.StatusPending, statusOf(t, s, 4))
	require.Equal(t, guests.StatusConfirmed, statusOf(t, s, 3))
	require.Equal(t, "Nuovo", u.Companions[3].Name)

	// Shrink to one: the rest are soft-deleted, never removed.
	count := len(rows.persons)
	require.NoError(t, s.UpdateRoster(ctx, 100, []CompanionInput{{Name: "Anna"}}))
	require.Len(t, rows.persons, count)
	u, _ = s.Unit(100)
	require.Equal(t, guests.StatusPending, u.Companions[0].Status())
	for _, c := range u.Companions[1:] {
		require.Equal(t, guests.StatusDeleted, c.Status())
	}
}

func TestUpdateGuest(t *testing.T) {
	s, _, _ := fixture(t)
	ctx := context.Background()

	err := s.UpdateGuest(ctx, "100_pending", GuestInput{
		Name:       "Marco Rossi",
		Category:   guests.CategoryFamilyHis,
		Phone:      "+393331234567",
		Companions: []CompanionInput{{Name: "Anna"}},
	})
	require.NoError(t, err)

	u, _ := s.Unit(100)
	require.Equal(t, "Marco Rossi", u.Principal.Name)
	require.Equal(t, "+393331234567", u.Principal.Phone)
	for _, c := range u.Companions {
		require.Equal(t, guests.CategoryFamilyHis, c.Category)
	}
	require.Equal(t, guests.StatusDeleted, statusOf(t, s, 3))
}

func TestReloadFailureKeepsState(t *testing.T) {
	s, rows, _ := fixture(t)
	before := s.Views()
	rows.failList = true

	require.Error(t, s.Reload(context.Background()))
	require.Equal(t, before, s.Views())
}

func TestConfirmedPersons(t *testing.T) {
	s, _, _ := fixture(t)
	confirmed := s.ConfirmedPersons()
	require.Len(t, confirmed, 1)
	require.Equal(t, "Luca", confirmed[0].Name)
}
