package roster

import (
	"github.com/AlexTLDR/seatplan/internal/guests"
)

// Views returns every guest view, newest unit first.
func (s *Store) Views() []guests.GuestView {
	st := s.current()
	out := make([]guests.GuestView, len(st.views))
	for i, v := range st.views {
		out[i] = v.Clone()
	}
	return out
}

// GuestsByStatus returns the views holding the given status.
func (s *Store) GuestsByStatus(status guests.Status) []guests.GuestView {
	return guests.FilterByStatus(s.Views(), status)
}

// View returns one guest view by its id.
func (s *Store) View(id string) (guests.GuestView, bool) {
	for _, v := range s.current().views {
		if v.ID == id {
			return v.Clone(), true
		}
	}
	return guests.GuestView{}, false
}

// Unit returns one unit by id.
func (s *Store) Unit(id int64) (guests.Unit, bool) {
	for _, u := range s.current().units {
		if u.ID == id {
			return u.Clone(), true
		}
	}
	return guests.Unit{}, false
}

// Stats aggregates the current views.
func (s *Store) Stats() guests.Stats {
	return guests.ComputeStats(s.current().views)
}

// Person returns one person by id.
func (s *Store) Person(id int64) (guests.Person, bool) {
	p, ok := s.current().persons[id]
	if !ok {
		return guests.Person{}, false
	}
	return p.Clone(), true
}

// PersonStatus returns the derived status of a person.
func (s *Store) PersonStatus(id int64) (guests.Status, bool) {
	p, ok := s.current().persons[id]
	if !ok {
		return "", false
	}
	return p.Status(), true
}

// ConfirmedPersons returns every confirmed person in unit order.
func (s *Store) ConfirmedPersons() []guests.Person {
	var out []guests.Person
	for _, u := range s.current().units {
		for _, p := range u.Members() {
			if p.Status() == guests.StatusConfirmed {
				out = append(out, p.Clone())
			}
		}
	}
	return out
}
