package handlers

import (
	"time"

	"github.com/AlexTLDR/seatplan/internal/guests"
	"github.com/AlexTLDR/seatplan/internal/roster"
	"github.com/AlexTLDR/seatplan/internal/seating"
)

type personJSON struct {
	ID        int64      `json:"id"`
	UnitID    int64      `json:"unit_id"`
	Role      string     `json:"role"`
	Name      string     `json:"name"`
	Category  string     `json:"category"`
	AgeGroup  string     `json:"age_group,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Allergies string     `json:"allergies,omitempty"`
	Status    string     `json:"status"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func toPersonJSON(p guests.Person) personJSON {
	return personJSON{
		ID:        p.ID,
		UnitID:    p.UnitID,
		Role:      p.Role.String(),
		Name:      p.Name,
		Category:  string(p.Category),
		AgeGroup:  string(p.AgeGroup),
		Phone:     p.Phone,
		Allergies: p.Allergies,
		Status:    string(p.Status()),
		DeletedAt: p.DeletedAt,
		CreatedAt: p.CreatedAt,
	}
}

type guestViewJSON struct {
	ID              string       `json:"id"`
	UnitID          int64        `json:"unit_id"`
	Status          string       `json:"status"`
	ContainsPrimary bool         `json:"contains_primary"`
	Name            string       `json:"name"`
	Category        string       `json:"category"`
	Principal       *personJSON  `json:"principal,omitempty"`
	Companions      []personJSON `json:"companions"`
	CreatedAt       time.Time    `json:"created_at"`
}

func toGuestViewJSON(v guests.GuestView) guestViewJSON {
	out := guestViewJSON{
		ID:              v.ID,
		UnitID:          v.UnitID,
		Status:          string(v.Status),
		ContainsPrimary: v.ContainsPrimary,
		Name:            v.Name,
		Category:        string(v.Category),
		Companions:      make([]personJSON, 0, len(v.Companions)),
		CreatedAt:       v.CreatedAt,
	}
	if v.Principal != nil {
		p := toPersonJSON(*v.Principal)
		out.Principal = &p
	}
	for _, c := range v.Companions {
		out.Companions = append(out.Companions, toPersonJSON(c))
	}
	return out
}

func toGuestViewsJSON(views []guests.GuestView) []guestViewJSON {
	out := make([]guestViewJSON, 0, len(views))
	for _, v := range views {
		out = append(out, toGuestViewJSON(v))
	}
	return out
}

type assignmentJSON struct {
	PersonID int64  `json:"person_id"`
	TableID  int64  `json:"table_id"`
	Seat     *int   `json:"seat,omitempty"`
	Name     string `json:"name,omitempty"`
}

type tableJSON struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Capacity    int              `json:"capacity"`
	Side        string           `json:"side"`
	Assigned    int              `json:"assigned"`
	Available   int              `json:"available"`
	Assignments []assignmentJSON `json:"assignments"`
	CreatedAt   time.Time        `json:"created_at"`
}

func toAssignmentJSON(a seating.Assignment, people *roster.Store) assignmentJSON {
	out := assignmentJSON{PersonID: a.PersonID, TableID: a.TableID, Seat: a.Seat}
	if p, ok := people.Person(a.PersonID); ok {
		out.Name = p.Name
	}
	return out
}

func toTableJSON(t seating.Table, people *roster.Store) tableJSON {
	out := tableJSON{
		ID:          t.ID,
		Name:        t.Name,
		Capacity:    t.Capacity,
		Side:        string(t.Side),
		Assigned:    t.Assigned(),
		Available:   t.Available(),
		Assignments: make([]assignmentJSON, 0, len(t.Assignments)),
		CreatedAt:   t.CreatedAt,
	}
	for _, a := range t.Assignments {
		out.Assignments = append(out.Assignments, toAssignmentJSON(a, people))
	}
	return out
}

type seatedGuestJSON struct {
	personJSON
	TableID *int64 `json:"table_id"`
	Seat    *int   `json:"seat,omitempty"`
}
