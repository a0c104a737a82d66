package seating

import (
	"sort"

	"github.com/AlexTLDR/seatplan/internal/guests"
)

// Tables returns every table ordered by id.
func (m *Manager) Tables() []Table {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()

	out := make([]Table, 0, len(m.tables))
	for _, t := range m.tables {
		out = append(out, t.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Table returns one table.
func (m *Manager) Table(id int64) (Table, bool) {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()

	t, ok := m.tables[id]
	if !ok {
		return Table{}, false
	}
	return t.clone(), true
}

// TableOf returns the assignment of a person, if any.
func (m *Manager) TableOf(personID int64) (Assignment, bool) {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()

	tableID, ok := m.byPerson[personID]
	if !ok {
		return Assignment{}, false
	}
	for _, a := range m.tables[tableID].Assignments {
		if a.PersonID == personID {
			return a.clone(), true
		}
	}
	return Assignment{}, false
}

type SideStats struct {
	Tables   int `json:"tables"`
	Capacity int `json:"capacity"`
	Occupied int `json:"occupied"`
}

type Stats struct {
	Tables    int                `json:"tables"`
	Capacity  int                `json:"capacity"`
	Occupied  int                `json:"occupied"`
	Available int                `json:"available"`
	BySide    map[Side]SideStats `json:"by_side"`
}

// Stats summarises table usage.
func (m *Manager) Stats() Stats {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()

	stats := Stats{BySide: make(map[Side]SideStats, len(Sides))}
	for _, side := range Sides {
		stats.BySide[side] = SideStats{}
	}
	for _, t := range m.tables {
		stats.Tables++
		stats.Capacity += t.Capacity
		stats.Occupied += len(t.Assignments)

		s := stats.BySide[t.Side]
		s.Tables++
		s.Capacity += t.Capacity
		s.Occupied += len(t.Assignments)
		stats.BySide[t.Side] = s
	}
	stats.Available = stats.Capacity - stats.Occupied
	return stats
}

type GuestStats struct {
	Confirmed  int `json:"confirmed"`
	Assigned   int `json:"assigned"`
	Unassigned int `json:"unassigned"`
}

// GuestStats counts which of the given persons are confirmed and seated.
// Persons that are not confirmed are ignored.
func (m *Manager) GuestStats(persons []guests.Person) GuestStats {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()

	var stats GuestStats
	for _, p := range persons {
		if p.Status() != guests.StatusConfirmed {
			continue
		}
		stats.Confirmed++
		if _, ok := m.byPerson[p.ID]; ok {
			stats.Assigned++
		}
	}
	stats.Unassigned = stats.Confirmed - stats.Assigned
	return stats
}
