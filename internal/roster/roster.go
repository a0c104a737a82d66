// Package roster owns the guest list of a running process.
//
// Store keeps the units read from the row store and the guest views derived
// from them. Every mutation is projected locally first, then written, then
// followed by a full reload. A failed write puts the previous state back and
// emits exactly one error notice.
package roster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AlexTLDR/seatplan/internal/guests"
	"github.com/AlexTLDR/seatplan/internal/logger"
	"github.com/AlexTLDR/seatplan/internal/metrics"
)

var (
	// ErrStaleReference means the addressed guest view or person is not in
	// the current state, usually because another client changed it.
	ErrStaleReference = errors.New("roster: stale reference")
	// ErrInvalidTransition means the status change is not allowed from the
	// person's current status.
	ErrInvalidTransition = errors.New("roster: invalid status transition")
	ErrInvalidInput      = errors.New("roster: invalid input")
)

// PersistenceError reports a write the row store refused. The in-memory state
// is back to what it was before the call.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("roster: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// RowStore is the authoritative storage of units and persons.
type RowStore interface {
	ListPersons(ctx context.Context) ([]guests.Person, error)
	CreateUnit(ctx context.Context, principal guests.Person, companions []guests.Person) (guests.Unit, error)
	SaveUnit(ctx context.Context, unitID int64, updated []guests.Person, added []guests.Person) error
	UpdatePersons(ctx context.Context, persons []guests.Person) error
	DeletePersons(ctx context.Context, ids []int64) error
	DeleteUnit(ctx context.Context, unitID int64) error
}

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice codes.
const (
	CodeSaved          = "saved"
	CodeSaveFailed     = "save_failed"
	CodeStaleReference = "stale_reference"
)

// Notice is a user-facing message about the outcome of a mutation.
type Notice struct {
	ID     string    `json:"id"`
	Level  Level     `json:"level"`
	Code   string    `json:"code"`
	Op     string    `json:"op"`
	Detail string    `json:"detail,omitempty"`
	Time   time.Time `json:"time"`
}

type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

type Options struct {
	Label    guests.Labeler
	Notifier Notifier
	Logger   *zap.Logger
}

// state is never modified after it is published; changes build a new one.
type state struct {
	units   []guests.Unit
	views   []guests.GuestView
	persons map[int64]guests.Person
}

type Store struct {
	rows   RowStore
	label  guests.Labeler
	notify Notifier
	log    *zap.Logger

	// mu serialises mutations and reloads. stateMu guards cur only, so
	// readers see an optimistic projection while its write is in flight.
	mu      sync.Mutex
	stateMu sync.RWMutex
	cur     *state
}

func New(rows RowStore, opts Options) *Store {
	s := &Store{
		rows:   rows,
		label:  opts.Label,
		notify: opts.Notifier,
		log:    opts.Logger,
	}
	if s.label == nil {
		s.label = guests.DefaultLabel
	}
	if s.notify == nil {
		s.notify = NotifierFunc(func(Notice) {})
	}
	if s.log == nil {
		s.log = logger.WithModule("roster")
	}
	s.cur = s.build(nil)
	return s
}

func (s *Store) build(units []guests.Unit) *state {
	st := &state{
		units:   units,
		views:   guests.PartitionAll(units, s.label),
		persons: make(map[int64]guests.Person),
	}
	for _, u := range units {
		for _, p := range u.Members() {
			st.persons[p.ID] = p
		}
	}
	return st
}

func (s *Store) current() *state {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.cur
}

func (s *Store) publish(st *state) {
	s.stateMu.Lock()
	s.cur = st
	s.stateMu.Unlock()
}

// Reload rebuilds every unit and view from the row store.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reload(ctx, "invalidation")
}

// reload must be called with mu held.
func (s *Store) reload(ctx context.Context, trigger string) error {
	start := time.Now()
	persons, err := s.rows.ListPersons(ctx)
	metrics.ReloadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Reloads.WithLabelValues(trigger, "error").Inc()
		return fmt.Errorf("failed to reload guests: %w", err)
	}

	s.publish(s.build(guests.GroupUnits(persons)))
	metrics.Reloads.WithLabelValues(trigger, "ok").Inc()
	s.log.Debug("guests reloaded", zap.String("trigger", trigger), zap.Int("persons", len(persons)))
	return nil
}

// Load performs the initial reload.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reload(ctx, "startup")
}

// commit runs one mutation: publish the projection of the current units,
// write, then reload. project may be nil when nothing can be shown before
// the write returns (new rows have no ids yet).
//
// Must be called with mu held.
func (s *Store) commit(ctx context.Context, op string, project func([]guests.Unit) []guests.Unit, write func(context.Context) error) error {
	snapshot := s.current()

	if project != nil {
		s.publish(s.build(project(cloneUnits(snapshot.units))))
	}

	if err := write(ctx); err != nil {
		s.publish(snapshot)
		metrics.Mutations.WithLabelValues(op, "rolled_back").Inc()
		s.log.Warn("mutation rolled back", zap.String("op", op), zap.Error(err))

		perr := &PersistenceError{Op: op, Err: err}
		s.emit(LevelError, CodeSaveFailed, op, err.Error())
		return perr
	}
	metrics.Mutations.WithLabelValues(op, "ok").Inc()

	// The write is durable at this point; a failed reload keeps the
	// projection until the next invalidation.
	if err := s.reload(ctx, "mutation"); err != nil {
		s.log.Error("reload after mutation failed", zap.String("op", op), zap.Error(err))
		return nil
	}

	s.emit(LevelSuccess, CodeSaved, op, "")
	return nil
}

// stale reports a reference to something that is gone. The state is
// refreshed so the caller's view catches up.
//
// Must be called with mu held.
func (s *Store) stale(ctx context.Context, op string, ref string) error {
	metrics.Mutations.WithLabelValues(op, "stale").Inc()
	s.emit(LevelInfo, CodeStaleReference, op, ref)
	if err := s.reload(ctx, "stale"); err != nil {
		s.log.Warn("refresh after stale reference failed", zap.Error(err))
	}
	return fmt.Errorf("%w: %s", ErrStaleReference, ref)
}

func (s *Store) emit(level Level, code, op, detail string) {
	s.notify.Notify(Notice{
		ID:     uuid.NewString(),
		Level:  level,
		Code:   code,
		Op:     op,
		Detail: detail,
		Time:   time.Now().UTC(),
	})
}

func cloneUnits(units []guests.Unit) []guests.Unit {
	out := make([]guests.Unit, len(units))
	for i, u := range units {
		out[i] = u.Clone()
	}
	return out
}

// replacePersons returns a projection that swaps in the given persons by id.
func replacePersons(persons []guests.Person) func([]guests.Unit) []guests.Unit {
	byID := make(map[int64]guests.Person, len(persons))
	for _, p := range persons {
		byID[p.ID] = p
	}
	return func(units []guests.Unit) []guests.Unit {
		for i := range units {
			u := &units[i]
			if p, ok := byID[u.Principal.ID]; ok {
				u.Principal = p.Clone()
			}
			for j := range u.Companions {
				if p, ok := byID[u.Companions[j].ID]; ok {
					u.Companions[j] = p.Clone()
				}
			}
		}
		return units
	}
}

// removePersons returns a projection without the given persons. A unit whose
// principal is removed disappears.
func removePersons(ids ...int64) func([]guests.Unit) []guests.Unit {
	gone := make(map[int64]bool, len(ids))
	for _, id := range ids {
		gone[id] = true
	}
	return func(units []guests.Unit) []guests.Unit {
		out := units[:0]
		for _, u := range units {
			if gone[u.Principal.ID] {
				continue
			}
			kept := u.Companions[:0]
			for _, c := range u.Companions {
				if !gone[c.ID] {
					kept = append(kept, c)
				}
			}
			u.Companions = kept
			out = append(out, u)
		}
		return out
	}
}
