package handlers

import (
	"context"
	"net/http"

	"github.com/AlexTLDR/seatplan/internal/guests"
	"github.com/AlexTLDR/seatplan/internal/i18n"
	"github.com/AlexTLDR/seatplan/internal/roster"
)

// HandleListGuests lists guest views, optionally filtered by ?status=
func HandleListGuests(s Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views := s.GetRoster().Views()

		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := guests.ParseStatus(raw)
			if err != nil {
				handleError(s, w, r, errBadRequest)
				return
			}
			views = guests.FilterByStatus(views, status)
		}

		writeJSON(w, http.StatusOK, toGuestViewsJSON(views))
	}
}

// HandleGetGuest returns one guest view
func HandleGetGuest(s Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, ok := s.GetRoster().View(r.PathValue("id"))
		if !ok {
			writeError(w, language(s, r), http.StatusNotFound, i18n.MsgNotFound)
			return
		}
		writeJSON(w, http.StatusOK, toGuestViewJSON(v))
	}
}

// HandleCreateGuest adds a new invitation unit
func HandleCreateGuest(s Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var form guestForm
		if err := decodeJSON(r, &form); err != nil {
			handleError(s, w, r, err)
			return
		}

		in, err := form.input(s.GetConfig().PhoneRegion)
		if err != nil {
			handleError(s, w, r, err)
			return
		}

		view, err := s.GetRoster().AddGuest(r.Context(), in)
		if err != nil {
			handleError(s, w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toGuestViewJSON(view))
	}
}

// HandleUpdateGuest edits the principal and reconciles the companion list
func HandleUpdateGuest(s Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var form guestForm
		if err := decodeJSON(r, &form); err != nil {
			handleError(s, w, r, err)
			return
		}

		in, err := form.input(s.GetConfig().PhoneRegion)
		if err != nil {
			handleError(s, w, r, err)
			return
		}

		viewID := r.PathValue("id")
		if err := s.GetRoster().UpdateGuest(r.Context(), viewID, in); err != nil {
			handleError(s, w, r, err)
			return
		}

		respondUnit(s, w, viewID)
	}
}

// HandleUpdateRoster replaces the companion list of a unit
func HandleUpdateRoster(s Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var form struct {
			Companions []companionForm `json:"companions" validate:"max=30,dive"`
		}
		if err := decodeJSON(r, &form); err != nil {
			handleError(s, w, r, err)
			return
		}

		unitID, err := parseID(r, "unit")
		if err != nil {
			handleError(s, w, r, err)
			return
		}

		if err := s.GetRoster().UpdateRoster(r.Context(), unitID, companionInputs(form.Companions)); err != nil {
			handleError(s, w, r, err)
			return
		}

		respondUnit(s, w, r.PathValue("unit"))
	}
}

type unitAction func(store *roster.Store, ctx context.Context, viewID string) error

// Unit-scoped status actions, addressed by guest view id.
var (
	ConfirmPrincipal unitAction = (*roster.Store).ConfirmPrincipalOnly
	RevertPrincipal  unitAction = (*roster.Store).RevertPrincipalOnly
	ConfirmAll       unitAction = (*roster.Store).ConfirmAllInGroup
	DeleteUnit       unitAction = (*roster.Store).SoftDeleteUnit
	RestoreUnit      unitAction = (*roster.Store).RestoreUnit
	PurgeUnit        unitAction = (*roster.Store).PermanentlyDeleteUnit
)

// HandleGuestAction runs a unit-scoped status action and returns the
// unit's guest views afterwards.
func HandleGuestAction(s Server, action unitAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewID := r.PathValue("id")
		if err := action(s.GetRoster(), r.Context(), viewID); err != nil {
			handleError(s, w, r, err)
			return
		}
		respondUnit(s, w, viewID)
	}
}

type companionAction func(store *roster.Store, ctx context.Context, personID int64) error

// Companion-scoped status actions, addressed by person id.
var (
	ConfirmCompanion companionAction = (*roster.Store).ConfirmCompanion
	RevertCompanion  companionAction = (*roster.Store).RevertCompanion
	DeleteCompanion  companionAction = (*roster.Store).SoftDeleteCompanion
	RestoreCompanion companionAction = (*roster.Store).RestoreCompanion
	PurgeCompanion   companionAction = (*roster.Store).PermanentlyDeleteCompanion
)

// HandleCompanionAction runs a companion-scoped status action
func HandleCompanionAction(s Server, action companionAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		personID, err := parseID(r, "id")
		if err != nil {
			handleError(s, w, r, err)
			return
		}

		store := s.GetRoster()
		unitID := int64(0)
		if p, ok := store.Person(personID); ok {
			unitID = p.UnitID
		}

		if err := action(store, r.Context(), personID); err != nil {
			handleError(s, w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, unitViews(store, unitID))
	}
}

// HandleStats returns aggregate guest counts
func HandleStats(s Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.GetRoster().Stats())
	}
}

// respondUnit writes the current views of the unit addressed by viewID. A
// purged unit yields an empty list.
func respondUnit(s Server, w http.ResponseWriter, viewID string) {
	id, err := guests.ParseViewID(viewID)
	if err != nil {
		writeJSON(w, http.StatusOK, []guestViewJSON{})
		return
	}
	writeJSON(w, http.StatusOK, unitViews(s.GetRoster(), id.UnitID))
}

func unitViews(store *roster.Store, unitID int64) []guestViewJSON {
	var views []guests.GuestView
	for _, v := range store.Views() {
		if v.UnitID == unitID {
			views = append(views, v)
		}
	}
	return toGuestViewsJSON(views)
}
