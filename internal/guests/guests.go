// Package guests holds the guest-list domain model and the partition engine
// that turns one invitation unit into the guest cards shown to organisers.
package guests

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status is the RSVP state derived from a person's stored fields.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDeleted   Status = "deleted"
)

// Statuses lists every status in partition order.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusDeleted}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusConfirmed:
		return StatusConfirmed, nil
	case StatusDeleted:
		return StatusDeleted, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Category is the affiliation group of an invitation unit.
type Category string

const (
	CategoryFamilyHis  Category = "family-his"
	CategoryFamilyHers Category = "family-hers"
	CategoryFriends    Category = "friends"
	CategoryColleagues Category = "colleagues"
)

// Categories lists the known categories.
var Categories = []Category{CategoryFamilyHis, CategoryFamilyHers, CategoryFriends, CategoryColleagues}

// ParseCategory maps a stored value to a Category, defaulting to friends.
func ParseCategory(s string) Category {
	for _, c := range Categories {
		if string(c) == s {
			return c
		}
	}
	return CategoryFriends
}

// AgeGroup is the optional age bracket of a person. The values are the
// stored enum labels.
type AgeGroup string

const (
	AgeUnknown AgeGroup = ""
	AgeAdult   AgeGroup = "Adulto"
	AgeTeen    AgeGroup = "Ragazzo"
	AgeChild   AgeGroup = "Bambino"
)

// ParseAgeGroup maps a stored value to an AgeGroup; unknown values are unset.
func ParseAgeGroup(s string) AgeGroup {
	switch AgeGroup(s) {
	case AgeAdult, AgeTeen, AgeChild:
		return AgeGroup(s)
	}
	return AgeUnknown
}

// Role tags a person as the principal of its unit or one of its companions.
type Role int

const (
	RoleCompanion Role = iota
	RolePrincipal
)

func (r Role) String() string {
	if r == RolePrincipal {
		return "principal"
	}
	return "companion"
}

// Person is one invitee row after decoding.
type Person struct {
	ID        int64
	UnitID    int64
	Role      Role
	Name      string
	Category  Category
	AgeGroup  AgeGroup
	Phone     string
	Allergies string
	Confirmed bool
	DeletedAt *time.Time
	CreatedAt time.Time
}

// IsPrincipal reports whether p is its unit's principal.
func (p Person) IsPrincipal() bool {
	return p.Role == RolePrincipal
}

// Status derives the RSVP status: a soft-delete marker wins over the
// confirmed flag.
func (p Person) Status() Status {
	if p.DeletedAt != nil {
		return StatusDeleted
	}
	if p.Confirmed {
		return StatusConfirmed
	}
	return StatusPending
}

// Clone returns a copy that shares no pointers with p.
func (p Person) Clone() Person {
	if p.DeletedAt != nil {
		t := *p.DeletedAt
		p.DeletedAt = &t
	}
	return p
}

// Unit is an invitation unit: exactly one principal and its companions.
type Unit struct {
	ID         int64
	Principal  Person
	Companions []Person
}

// Members returns the principal followed by the companions.
func (u Unit) Members() []Person {
	out := make([]Person, 0, len(u.Companions)+1)
	out = append(out, u.Principal)
	return append(out, u.Companions...)
}

// Member finds a person of the unit by id.
func (u Unit) Member(id int64) (Person, bool) {
	for _, p := range u.Members() {
		if p.ID == id {
			return p, true
		}
	}
	return Person{}, false
}

// Clone deep-copies the unit.
func (u Unit) Clone() Unit {
	out := Unit{ID: u.ID, Principal: u.Principal.Clone()}
	if u.Companions != nil {
		out.Companions = make([]Person, len(u.Companions))
		for i, c := range u.Companions {
			out.Companions[i] = c.Clone()
		}
	}
	return out
}

// ViewID identifies a guest view: one per unit and status.
type ViewID struct {
	UnitID int64
	Status Status
}

func (id ViewID) String() string {
	return strconv.FormatInt(id.UnitID, 10) + "_" + string(id.Status)
}

// ParseViewID reads "<unit>_<status>". A bare unit id is accepted with an
// empty status, since every operation addressed by view acts on the unit.
func ParseViewID(s string) (ViewID, error) {
	unitPart, statusPart, hasStatus := strings.Cut(strings.TrimSpace(s), "_")
	unitID, err := strconv.ParseInt(unitPart, 10, 64)
	if err != nil || unitID <= 0 {
		return ViewID{}, fmt.Errorf("invalid guest id %q", s)
	}
	if !hasStatus {
		return ViewID{UnitID: unitID}, nil
	}
	status, err := ParseStatus(statusPart)
	if err != nil {
		return ViewID{}, fmt.Errorf("invalid guest id %q: %w", s, err)
	}
	return ViewID{UnitID: unitID, Status: status}, nil
}

// GuestView is a derived guest card. It is rebuilt on every load and never
// stored.
type GuestView struct {
	ID              string
	UnitID          int64
	Status          Status
	ContainsPrimary bool
	Name            string
	Category        Category
	Principal       *Person
	Companions      []Person
	CreatedAt       time.Time
}

// Members returns every person represented by the view.
func (v GuestView) Members() []Person {
	out := make([]Person, 0, len(v.Companions)+1)
	if v.ContainsPrimary && v.Principal != nil {
		out = append(out, *v.Principal)
	}
	return append(out, v.Companions...)
}

// Clone deep-copies the view.
func (v GuestView) Clone() GuestView {
	out := v
	if v.Principal != nil {
		p := v.Principal.Clone()
		out.Principal = &p
	}
	out.Companions = make([]Person, len(v.Companions))
	for i, c := range v.Companions {
		out.Companions[i] = c.Clone()
	}
	return out
}
