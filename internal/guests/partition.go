package guests

import (
	"fmt"
	"sort"
)

// Labeler names a card that holds only companions.
type Labeler func(principalName string) string

// DefaultLabel is used when no Labeler is supplied.
func DefaultLabel(principalName string) string {
	return fmt.Sprintf("Companions of %s", principalName)
}

// Partition splits a unit into one guest view per status present among its
// members, in pending, confirmed, deleted order. The principal appears in the
// view matching its own status; every companion appears in exactly one view.
func Partition(u Unit, label Labeler) []GuestView {
	if label == nil {
		label = DefaultLabel
	}

	principalStatus := u.Principal.Status()
	byStatus := make(map[Status][]Person, len(Statuses))
	for _, c := range u.Companions {
		s := c.Status()
		byStatus[s] = append(byStatus[s], c.Clone())
	}

	views := make([]GuestView, 0, len(Statuses))
	for _, status := range Statuses {
		companions := byStatus[status]
		holdsPrincipal := principalStatus == status
		if !holdsPrincipal && len(companions) == 0 {
			continue
		}

		v := GuestView{
			ID:              ViewID{UnitID: u.ID, Status: status}.String(),
			UnitID:          u.ID,
			Status:          status,
			ContainsPrimary: holdsPrincipal,
			Category:        u.Principal.Category,
			Companions:      companions,
			CreatedAt:       u.Principal.CreatedAt,
		}
		if v.Companions == nil {
			v.Companions = []Person{}
		}
		if holdsPrincipal {
			p := u.Principal.Clone()
			v.Principal = &p
			v.Name = p.Name
		} else {
			v.Name = label(u.Principal.Name)
		}
		views = append(views, v)
	}
	return views
}

// PartitionAll partitions every unit, keeping the order of units.
func PartitionAll(units []Unit, label Labeler) []GuestView {
	var views []GuestView
	for _, u := range units {
		views = append(views, Partition(u, label)...)
	}
	return views
}

// GroupUnits assembles units from decoded rows. Units are ordered newest
// first by principal creation time, then by id; companions keep row order.
//
// A unit without a principal-flagged row promotes its earliest row. When more
// than one row is flagged, the first wins and the rest are companions.
func GroupUnits(persons []Person) []Unit {
	order := make([]int64, 0)
	rows := make(map[int64][]Person)
	for _, p := range persons {
		if p.UnitID == 0 {
			continue
		}
		if _, ok := rows[p.UnitID]; !ok {
			order = append(order, p.UnitID)
		}
		rows[p.UnitID] = append(rows[p.UnitID], p)
	}

	units := make([]Unit, 0, len(order))
	for _, unitID := range order {
		members := rows[unitID]
		principalIdx := -1
		for i, p := range members {
			if p.Role == RolePrincipal {
				principalIdx = i
				break
			}
		}
		if principalIdx < 0 {
			principalIdx = earliest(members)
		}

		u := Unit{ID: unitID, Principal: members[principalIdx].Clone()}
		u.Principal.Role = RolePrincipal
		for i, p := range members {
			if i == principalIdx {
				continue
			}
			c := p.Clone()
			c.Role = RoleCompanion
			u.Companions = append(u.Companions, c)
		}
		units = append(units, u)
	}

	sort.SliceStable(units, func(i, j int) bool {
		a, b := units[i].Principal.CreatedAt, units[j].Principal.CreatedAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return units[i].ID > units[j].ID
	})
	return units
}

func earliest(members []Person) int {
	idx := 0
	for i, p := range members {
		first := members[idx]
		if p.CreatedAt.Before(first.CreatedAt) || (p.CreatedAt.Equal(first.CreatedAt) && p.ID < first.ID) {
			idx = i
		}
	}
	return idx
}
