package roster

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AlexTLDR/seatplan/internal/guests"
)

// GuestInput is the data of the add/edit guest form.
type GuestInput struct {
	Name       string
	Category   guests.Category
	AgeGroup   guests.AgeGroup
	Phone      string
	Allergies  string
	Companions []CompanionInput
}

type CompanionInput struct {
	Name      string
	AgeGroup  guests.AgeGroup
	Allergies string
}

func (in GuestInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	return validateCompanions(in.Companions)
}

func validateCompanions(companions []CompanionInput) error {
	for i, c := range companions {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: companion %d has no name", ErrInvalidInput, i+1)
		}
	}
	return nil
}

// resolveUnit finds the unit addressed by a guest view id. Must be called
// with mu held.
func (s *Store) resolveUnit(ctx context.Context, op, viewID string) (guests.Unit, error) {
	id, err := guests.ParseViewID(viewID)
	if err != nil {
		return guests.Unit{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	st := s.current()
	for _, u := range st.units {
		if u.ID != id.UnitID {
			continue
		}
		if id.Status == "" {
			return u.Clone(), nil
		}
		for _, v := range st.views {
			if v.ID == id.String() {
				return u.Clone(), nil
			}
		}
		break
	}
	return guests.Unit{}, s.stale(ctx, op, viewID)
}

// resolveCompanion finds a companion by person id. Must be called with mu
// held.
func (s *Store) resolveCompanion(ctx context.Context, op string, personID int64) (guests.Person, error) {
	p, ok := s.current().persons[personID]
	if !ok {
		return guests.Person{}, s.stale(ctx, op, fmt.Sprintf("person %d", personID))
	}
	if p.IsPrincipal() {
		return guests.Person{}, fmt.Errorf("%w: person %d is a principal", ErrInvalidInput, personID)
	}
	return p.Clone(), nil
}

// updatePersons commits new values for existing persons. Must be called
// with mu held.
func (s *Store) updatePersons(ctx context.Context, op string, persons []guests.Person) error {
	if len(persons) == 0 {
		return nil
	}
	return s.commit(ctx, op, replacePersons(persons), func(ctx context.Context) error {
		return s.rows.UpdatePersons(ctx, persons)
	})
}

// AddGuest creates a unit with its principal and companions, all pending.
// It returns the view holding the new principal.
func (s *Store) AddGuest(ctx context.Context, in GuestInput) (guests.GuestView, error) {
	if err := in.validate(); err != nil {
		return guests.GuestView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	category := in.Category
	if category == "" {
		category = guests.CategoryFriends
	}
	principal := guests.Person{
		Role:      guests.RolePrincipal,
		Name:      strings.TrimSpace(in.Name),
		Category:  category,
		AgeGroup:  in.AgeGroup,
		Phone:     in.Phone,
		Allergies: strings.TrimSpace(in.Allergies),
	}
	companions := make([]guests.Person, 0, len(in.Companions))
	for _, c := range in.Companions {
		companions = append(companions, newCompanion(c, category))
	}

	var created guests.Unit
	err := s.commit(ctx, "add_guest", nil, func(ctx context.Context) error {
		var err error
		created, err = s.rows.CreateUnit(ctx, principal, companions)
		return err
	})
	if err != nil {
		return guests.GuestView{}, err
	}

	for _, v := range s.current().views {
		if v.UnitID == created.ID && v.ContainsPrimary {
			return v.Clone(), nil
		}
	}
	// The reload did not run; derive the view from what was written.
	views := guests.Partition(created, s.label)
	return views[0], nil
}

func newCompanion(c CompanionInput, category guests.Category) guests.Person {
	return guests.Person{
		Role:      guests.RoleCompanion,
		Name:      strings.TrimSpace(c.Name),
		Category:  category,
		AgeGroup:  c.AgeGroup,
		Allergies: strings.TrimSpace(c.Allergies),
	}
}

// UpdateGuest rewrites the principal's fields and reconciles the companion
// list, as UpdateRoster does, in a single write. Editing a deleted principal
// restores it as pending.
func (s *Store) UpdateGuest(ctx context.Context, viewID string, in GuestInput) error {
	if err := in.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.resolveUnit(ctx, "update_guest", viewID)
	if err != nil {
		return err
	}

	category := in.Category
	if category == "" {
		category = u.Principal.Category
	}

	p := u.Principal
	p.Name = strings.TrimSpace(in.Name)
	p.Category = category
	p.AgeGroup = in.AgeGroup
	p.Phone = in.Phone
	p.Allergies = strings.TrimSpace(in.Allergies)
	if p.DeletedAt != nil {
		p.DeletedAt = nil
		p.Confirmed = false
	}

	updated, added := reconcileCompanions(u.Companions, in.Companions, category)
	return s.saveUnit(ctx, "update_guest", u.ID, append([]guests.Person{p}, updated...), added)
}

// UpdateRoster reconciles a unit's companions against a new list, by
// position: existing companions take the new values (a deleted one comes
// back as pending), extra entries become new companions and companions past
// the end of the list are soft-deleted. Rows are never removed.
func (s *Store) UpdateRoster(ctx context.Context, unitID int64, companions []CompanionInput) error {
	if err := validateCompanions(companions); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.resolveUnit(ctx, "update_roster", fmt.Sprint(unitID))
	if err != nil {
		return err
	}

	updated, added := reconcileCompanions(u.Companions, companions, u.Principal.Category)
	return s.saveUnit(ctx, "update_roster", u.ID, updated, added)
}

func reconcileCompanions(existing []guests.Person, in []CompanionInput, category guests.Category) (updated, added []guests.Person) {
	deletedAt := time.Now().UTC()
	for i, c := range existing {
		c = c.Clone()
		c.Category = category
		if i < len(in) {
			c.Name = strings.TrimSpace(in[i].Name)
			c.AgeGroup = in[i].AgeGroup
			c.Allergies = strings.TrimSpace(in[i].Allergies)
			if c.DeletedAt != nil {
				c.DeletedAt = nil
				c.Confirmed = false
			}
		} else if c.DeletedAt == nil {
			at := deletedAt
			c.DeletedAt = &at
		}
		updated = append(updated, c)
	}
	for i := len(existing); i < len(in); i++ {
		added = append(added, newCompanion(in[i], category))
	}
	return updated, added
}

// saveUnit must be called with mu held.
func (s *Store) saveUnit(ctx context.Context, op string, unitID int64, updated, added []guests.Person) error {
	return s.commit(ctx, op, replacePersons(updated), func(ctx context.Context) error {
		return s.rows.SaveUnit(ctx, unitID, updated, added)
	})
}

// ConfirmPrincipalOnly confirms the principal of the unit and leaves every
// companion as it is.
func (s *Store) ConfirmPrincipalOnly(ctx context.Context, viewID string) error {
	return s.setPrincipalConfirmed(ctx, "confirm_principal", viewID, true)
}

// RevertPrincipalOnly moves a confirmed principal back to pending.
func (s *Store) RevertPrincipalOnly(ctx context.Context, viewID string) error {
	return s.setPrincipalConfirmed(ctx, "revert_principal", viewID, false)
}

func (s *Store) setPrincipalConfirmed(ctx context.Context, op, viewID string, confirmed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.resolveUnit(ctx, op, viewID)
	if err != nil {
		return err
	}

	p := u.Principal
	if p.Status() == guests.StatusDeleted {
		return fmt.Errorf("%w: principal of unit %d is deleted", ErrInvalidTransition, u.ID)
	}
	if p.Confirmed == confirmed {
		return nil
	}
	p.Confirmed = confirmed
	return s.updatePersons(ctx, op, []guests.Person{p})
}

// ConfirmAllInGroup confirms the principal and every pending companion.
// Deleted companions stay deleted.
func (s *Store) ConfirmAllInGroup(ctx context.Context, viewID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.resolveUnit(ctx, "confirm_all", viewID)
	if err != nil {
		return err
	}
	if u.Principal.Status() == guests.StatusDeleted {
		return fmt.Errorf("%w: principal of unit %d is deleted", ErrInvalidTransition, u.ID)
	}

	var changed []guests.Person
	for _, p := range u.Members() {
		if p.Status() == guests.StatusPending {
			p.Confirmed = true
			changed = append(changed, p)
		}
	}
	return s.updatePersons(ctx, "confirm_all", changed)
}

// SoftDeleteUnit marks every live member of the unit deleted.
func (s *Store) SoftDeleteUnit(ctx context.Context, viewID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.resolveUnit(ctx, "delete_guest", viewID)
	if err != nil {
		return err
	}

	at := time.Now().UTC()
	var changed []guests.Person
	for _, p := range u.Members() {
		if p.DeletedAt == nil {
			p.DeletedAt = &at
			changed = append(changed, p)
		}
	}
	return s.updatePersons(ctx, "delete_guest", changed)
}

// RestoreUnit brings every deleted member of the unit back as pending.
// Allergy notes survive the round trip.
func (s *Store) RestoreUnit(ctx context.Context, viewID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.resolveUnit(ctx, "restore_guest", viewID)
	if err != nil {
		return err
	}

	var changed []guests.Person
	for _, p := range u.Members() {
		if p.DeletedAt != nil {
			p.DeletedAt = nil
			p.Confirmed = false
			changed = append(changed, p)
		}
	}
	return s.updatePersons(ctx, "restore_guest", changed)
}

// PermanentlyDeleteUnit removes a deleted unit and all its persons.
func (s *Store) PermanentlyDeleteUnit(ctx context.Context, viewID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.resolveUnit(ctx, "purge_guest", viewID)
	if err != nil {
		return err
	}
	if u.Principal.Status() != guests.StatusDeleted {
		return fmt.Errorf("%w: unit %d is not deleted", ErrInvalidTransition, u.ID)
	}

	ids := make([]int64, 0, len(u.Companions)+1)
	for _, p := range u.Members() {
		ids = append(ids, p.ID)
	}
	err = s.commit(ctx, "purge_guest", removePersons(ids...), func(ctx context.Context) error {
		return s.rows.DeleteUnit(ctx, u.ID)
	})
	if err == nil {
		s.log.Info("unit permanently deleted", zap.Int64("unit_id", u.ID), zap.Int("persons", len(ids)))
	}
	return err
}

// ConfirmCompanion confirms a pending companion.
func (s *Store) ConfirmCompanion(ctx context.Context, personID int64) error {
	return s.setCompanionConfirmed(ctx, "confirm_companion", personID, true)
}

// RevertCompanion moves a confirmed companion back to pending.
func (s *Store) RevertCompanion(ctx context.Context, personID int64) error {
	return s.setCompanionConfirmed(ctx, "revert_companion", personID, false)
}

func (s *Store) setCompanionConfirmed(ctx context.Context, op string, personID int64, confirmed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.resolveCompanion(ctx, op, personID)
	if err != nil {
		return err
	}
	if c.Status() == guests.StatusDeleted {
		return fmt.Errorf("%w: person %d is deleted", ErrInvalidTransition, personID)
	}
	if c.Confirmed == confirmed {
		return nil
	}
	c.Confirmed = confirmed
	return s.updatePersons(ctx, op, []guests.Person{c})
}

// SoftDeleteCompanion marks one companion deleted.
func (s *Store) SoftDeleteCompanion(ctx context.Context, personID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.resolveCompanion(ctx, "delete_companion", personID)
	if err != nil {
		return err
	}
	if c.DeletedAt != nil {
		return nil
	}
	at := time.Now().UTC()
	c.DeletedAt = &at
	return s.updatePersons(ctx, "delete_companion", []guests.Person{c})
}

// RestoreCompanion brings a deleted companion back as pending.
func (s *Store) RestoreCompanion(ctx context.Context, personID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.resolveCompanion(ctx, "restore_companion", personID)
	if err != nil {
		return err
	}
	if c.DeletedAt == nil {
		return nil
	}
	c.DeletedAt = nil
	c.Confirmed = false
	return s.updatePersons(ctx, "restore_companion", []guests.Person{c})
}

// PermanentlyDeleteCompanion removes a deleted companion.
func (s *Store) PermanentlyDeleteCompanion(ctx context.Context, personID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.resolveCompanion(ctx, "purge_companion", personID)
	if err != nil {
		return err
	}
	if c.Status() != guests.StatusDeleted {
		return fmt.Errorf("%w: person %d is not deleted", ErrInvalidTransition, personID)
	}
	return s.commit(ctx, "purge_companion", removePersons(c.ID), func(ctx context.Context) error {
		return s.rows.DeletePersons(ctx, []int64{c.ID})
	})
}
