package seating

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/AlexTLDR/seatplan/internal/guests"
	"github.com/AlexTLDR/seatplan/internal/logger"
	"github.com/AlexTLDR/seatplan/internal/metrics"
)

// Store persists tables and assignments.
type Store interface {
	ListTables(ctx context.Context) ([]TableRecord, error)
	CreateTable(ctx context.Context, t TableRecord) (TableRecord, error)
	UpdateTable(ctx context.Context, t TableRecord) error
	DeleteTable(ctx context.Context, id int64) error
	ListAssignments(ctx context.Context) ([]Assignment, error)
	SaveAssignment(ctx context.Context, a Assignment) error
	DeleteAssignment(ctx context.Context, personID int64) error
}

// StatusSource tells the Manager the current RSVP status of a person.
type StatusSource interface {
	PersonStatus(id int64) (guests.Status, bool)
}

type Options struct {
	// ReleaseUnconfirmed makes Reconcile drop the seats of persons that are
	// no longer confirmed. Seats of persons that no longer exist are always
	// dropped.
	ReleaseUnconfirmed bool
	Logger             *zap.Logger
}

type Manager struct {
	store   Store
	people  StatusSource
	release bool
	log     *zap.Logger

	// mu serialises mutations; stateMu guards the fields below it.
	mu       sync.Mutex
	stateMu  sync.RWMutex
	tables   map[int64]*Table
	byPerson map[int64]int64
}

func NewManager(store Store, people StatusSource, opts Options) *Manager {
	log := opts.Logger
	if log == nil {
		log = logger.WithModule("seating")
	}
	return &Manager{
		store:    store,
		people:   people,
		release:  opts.ReleaseUnconfirmed,
		log:      log,
		tables:   make(map[int64]*Table),
		byPerson: make(map[int64]int64),
	}
}

// Load replaces the in-memory state with the stored tables and assignments.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.store.ListTables(ctx)
	if err != nil {
		return &PersistenceError{Op: "load tables", Err: err}
	}
	assignments, err := m.store.ListAssignments(ctx)
	if err != nil {
		return &PersistenceError{Op: "load assignments", Err: err}
	}

	tables := make(map[int64]*Table, len(records))
	for _, r := range records {
		tables[r.ID] = &Table{TableRecord: r, Assignments: []Assignment{}}
	}
	byPerson := make(map[int64]int64, len(assignments))
	for _, a := range assignments {
		t, ok := tables[a.TableID]
		if !ok {
			m.log.Warn("ignoring assignment to unknown table",
				zap.Int64("person_id", a.PersonID), zap.Int64("table_id", a.TableID))
			continue
		}
		if _, dup := byPerson[a.PersonID]; dup {
			continue
		}
		t.Assignments = append(t.Assignments, a.clone())
		byPerson[a.PersonID] = a.TableID
	}

	m.stateMu.Lock()
	m.tables = tables
	m.byPerson = byPerson
	m.stateMu.Unlock()

	metrics.SeatedGuests.Set(float64(len(byPerson)))
	m.log.Info("seating loaded", zap.Int("tables", len(tables)), zap.Int("assignments", len(byPerson)))
	return nil
}

// CreateTable adds an empty table.
func (m *Manager) CreateTable(ctx context.Context, rec TableRecord) (Table, error) {
	rec.Name = strings.TrimSpace(rec.Name)
	if rec.Capacity <= 0 {
		m.reject("invalid_capacity")
		return Table{}, ErrInvalidCapacity
	}
	if rec.Side == "" {
		rec.Side = SideCenter
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	created, err := m.store.CreateTable(ctx, rec)
	if err != nil {
		return Table{}, &PersistenceError{Op: "create table", Err: err}
	}

	t := &Table{TableRecord: created, Assignments: []Assignment{}}
	m.stateMu.Lock()
	m.tables[created.ID] = t
	m.stateMu.Unlock()

	m.log.Info("table created", zap.Int64("table_id", created.ID), zap.Int("capacity", created.Capacity))
	return t.clone(), nil
}

// UpdateTable changes name, capacity and side. Capacity may not drop below
// the number of persons already seated, nor below any assigned seat number.
func (m *Manager) UpdateTable(ctx context.Context, rec TableRecord) (Table, error) {
	rec.Name = strings.TrimSpace(rec.Name)
	if rec.Capacity <= 0 {
		m.reject("invalid_capacity")
		return Table{}, ErrInvalidCapacity
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stateMu.RLock()
	current, ok := m.tables[rec.ID]
	var snapshot Table
	if ok {
		snapshot = current.clone()
	}
	m.stateMu.RUnlock()
	if !ok {
		m.reject("unknown_table")
		return Table{}, ErrUnknownTable
	}

	if rec.Capacity < snapshot.Assigned() {
		m.reject("capacity_below_assigned")
		return Table{}, ErrCapacityBelowAssigned
	}
	for _, a := range snapshot.Assignments {
		if a.Seat != nil && *a.Seat > rec.Capacity {
			m.reject("capacity_below_assigned")
			return Table{}, ErrCapacityBelowAssigned
		}
	}
	if rec.Side == "" {
		rec.Side = snapshot.Side
	}
	rec.CreatedAt = snapshot.CreatedAt

	if err := m.store.UpdateTable(ctx, rec); err != nil {
		return Table{}, &PersistenceError{Op: "update table", Err: err}
	}

	m.stateMu.Lock()
	current.TableRecord = rec
	updated := current.clone()
	m.stateMu.Unlock()

	return updated, nil
}

// DeleteTable removes a table and unseats everyone assigned to it.
func (m *Manager) DeleteTable(ctx context.Context, tableID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stateMu.RLock()
	_, ok := m.tables[tableID]
	m.stateMu.RUnlock()
	if !ok {
		m.reject("unknown_table")
		return ErrUnknownTable
	}

	if err := m.store.DeleteTable(ctx, tableID); err != nil {
		return &PersistenceError{Op: "delete table", Err: err}
	}

	m.stateMu.Lock()
	t := m.tables[tableID]
	for _, a := range t.Assignments {
		delete(m.byPerson, a.PersonID)
	}
	delete(m.tables, tableID)
	seated := len(m.byPerson)
	m.stateMu.Unlock()

	metrics.SeatedGuests.Set(float64(seated))
	m.log.Info("table deleted", zap.Int64("table_id", tableID), zap.Int("released", len(t.Assignments)))
	return nil
}

// Assign seats a confirmed person at a table, moving them off any other
// table. Re-assigning a person to the table they already sit at only changes
// the seat number and never counts against capacity.
func (m *Manager) Assign(ctx context.Context, personID, tableID int64, seat *int) (Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.people.PersonStatus(personID)
	if !ok {
		m.reject("unknown_person")
		return Assignment{}, ErrUnknownPerson
	}
	if status != guests.StatusConfirmed {
		m.reject("not_confirmed")
		return Assignment{}, ErrNotConfirmed
	}

	m.stateMu.RLock()
	err := m.checkAssign(personID, tableID, seat)
	m.stateMu.RUnlock()
	if err != nil {
		return Assignment{}, err
	}

	a := Assignment{PersonID: personID, TableID: tableID, Seat: seat}.clone()
	if err := m.store.SaveAssignment(ctx, a); err != nil {
		return Assignment{}, &PersistenceError{Op: "assign", Err: err}
	}

	m.stateMu.Lock()
	m.detach(personID)
	t := m.tables[tableID]
	t.Assignments = append(t.Assignments, a)
	m.byPerson[personID] = tableID
	seated := len(m.byPerson)
	m.stateMu.Unlock()

	metrics.SeatedGuests.Set(float64(seated))
	m.log.Debug("person seated", zap.Int64("person_id", personID), zap.Int64("table_id", tableID))
	return a.clone(), nil
}

// checkAssign must be called with stateMu held.
func (m *Manager) checkAssign(personID, tableID int64, seat *int) error {
	t, ok := m.tables[tableID]
	if !ok {
		m.reject("unknown_table")
		return ErrUnknownTable
	}

	if seat != nil {
		if *seat < 1 || *seat > t.Capacity {
			m.reject("invalid_seat")
			return ErrInvalidSeat
		}
		for _, a := range t.Assignments {
			if a.PersonID != personID && a.Seat != nil && *a.Seat == *seat && m.known(a.PersonID) {
				m.reject("seat_taken")
				return ErrSeatTaken
			}
		}
	}

	if current, seated := m.byPerson[personID]; seated && current == tableID {
		return nil
	}
	occupied := 0
	for _, a := range t.Assignments {
		if m.known(a.PersonID) {
			occupied++
		}
	}
	if occupied >= t.Capacity {
		m.reject("table_full")
		return ErrTableFull
	}
	return nil
}

// known reports whether the person still exists. Seats of purged persons
// stay in memory until the next Reconcile but no longer hold a place.
func (m *Manager) known(personID int64) bool {
	_, ok := m.people.PersonStatus(personID)
	return ok
}

// Unassign removes a person from their table. Unseated persons are a no-op.
func (m *Manager) Unassign(ctx context.Context, personID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stateMu.RLock()
	_, seated := m.byPerson[personID]
	m.stateMu.RUnlock()
	if !seated {
		return nil
	}

	if err := m.store.DeleteAssignment(ctx, personID); err != nil {
		return &PersistenceError{Op: "unassign", Err: err}
	}

	m.stateMu.Lock()
	m.detach(personID)
	remaining := len(m.byPerson)
	m.stateMu.Unlock()

	metrics.SeatedGuests.Set(float64(remaining))
	return nil
}

// detach must be called with stateMu held for writing.
func (m *Manager) detach(personID int64) {
	tableID, ok := m.byPerson[personID]
	if !ok {
		return
	}
	delete(m.byPerson, personID)

	t := m.tables[tableID]
	if t == nil {
		return
	}
	kept := t.Assignments[:0]
	for _, a := range t.Assignments {
		if a.PersonID != personID {
			kept = append(kept, a)
		}
	}
	t.Assignments = kept
}

// Reconcile drops assignments of persons that no longer exist and, when
// configured, of persons that are no longer confirmed. It returns the ids of
// the persons that were unseated.
func (m *Manager) Reconcile(ctx context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stateMu.RLock()
	var stale []int64
	for personID := range m.byPerson {
		status, ok := m.people.PersonStatus(personID)
		if !ok || (m.release && status != guests.StatusConfirmed) {
			stale = append(stale, personID)
		}
	}
	m.stateMu.RUnlock()
	sort.Slice(stale, func(i, j int) bool { return stale[i] < stale[j] })

	var errs error
	released := make([]int64, 0, len(stale))
	for _, personID := range stale {
		if err := m.store.DeleteAssignment(ctx, personID); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		m.stateMu.Lock()
		m.detach(personID)
		m.stateMu.Unlock()
		released = append(released, personID)
	}

	if len(released) > 0 {
		m.stateMu.RLock()
		metrics.SeatedGuests.Set(float64(len(m.byPerson)))
		m.stateMu.RUnlock()
		m.log.Info("released seats", zap.Int64s("person_ids", released))
	}
	if errs != nil {
		return released, &PersistenceError{Op: "reconcile", Err: errs}
	}
	return released, nil
}

func (m *Manager) reject(reason string) {
	metrics.SeatingRejections.WithLabelValues(reason).Inc()
}
