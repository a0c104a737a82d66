package handlers

import (
	"net/http"

	"github.com/AlexTLDR/seatplan/internal/i18n"
	"github.com/AlexTLDR/seatplan/internal/realtime"
)

func seatingChanged(s Server) {
	s.Broadcast(realtime.StreamSeating, realtime.Message{Event: realtime.EventChanged})
}

// HandleListTables lists tables with their assigned guests
func HandleListTables(s Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		people := s.GetRoster()
		tables := s.GetSeating().Tables()

		out := make([]tableJSON, 0, len(tables))
		for _, t := range tables {
			out = append(out, toTableJSON(t, people))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// HandleCreateTable adds a table
func HandleCreateTable(s Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var form tableForm
		if err := decodeJSON(r, &form); err != nil {
			handleError(s, w, r, err)
			return
		}

		t, err := s.GetSeating().CreateTable(r.Context(), form.record(0))
		if err != nil {
			handleError(s, w, r, err)
			return
		}

		seatingChanged(s)
		writeJSON(w, http.StatusCreated, toTableJSON(t, s.GetRoster()))
	}
}

// HandleUpdateTable changes name, capacity or side of a table
func HandleUpdateTable(s Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "id")
		if err != nil {
			handleError(s, w, r, err)
			return
		}

		var form tableForm
		if err := decodeJSON(r, &form); err != nil {
			handleError(s, w, r, err)
			return
		}

		t, err := s.GetSeating().UpdateTable(r.Context(), form.record(id))
		if err != nil {
			handleError(s, w, r, err)
			return
		}

		seatingChanged(s)
		writeJSON(w, http.StatusOK, toTableJSON(t, s.GetRoster()))
	}
}

// HandleDeleteTable removes a table and unseats its guests
func HandleDeleteTable(s Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "id")
		if err != nil {
			handleError(s, w, r, err)
			return
		}

		if err := s.GetSeating().DeleteTable(r.Context(), id); err != nil {
			handleError(s, w, r, err)
			return
		}

		seatingChanged(s)
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleAssign seats a confirmed person at a table
func HandleAssign(s Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tableID, err := parseID(r, "id")
		if err != nil {
			handleError(s, w, r, err)
			return
		}

		var form assignForm
		if err := decodeJSON(r, &form); err != nil {
			handleError(s, w, r, err)
			return
		}

		a, err := s.GetSeating().Assign(r.Context(), form.PersonID, tableID, form.Seat)
		if err != nil {
			handleError(s, w, r, err)
			return
		}

		seatingChanged(s)
		writeJSON(w, http.StatusOK, toAssignmentJSON(a, s.GetRoster()))
	}
}

// HandleUnassign removes a person from their table
func HandleUnassign(s Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		personID, err := parseID(r, "personID")
		if err != nil {
			handleError(s, w, r, err)
			return
		}

		if err := s.GetSeating().Unassign(r.Context(), personID); err != nil {
			handleError(s, w, r, err)
			return
		}

		seatingChanged(s)
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleSeatingStats returns table usage
func HandleSeatingStats(s Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.GetSeating().Stats())
	}
}

// HandleSeatingGuests lists confirmed persons with their table, if any
func HandleSeatingGuests(s Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		seats := s.GetSeating()
		confirmed := s.GetRoster().ConfirmedPersons()

		list := make([]seatedGuestJSON, 0, len(confirmed))
		for _, p := range confirmed {
			g := seatedGuestJSON{personJSON: toPersonJSON(p)}
			if a, ok := seats.TableOf(p.ID); ok {
				tableID := a.TableID
				g.TableID = &tableID
				g.Seat = a.Seat
			}
			list = append(list, g)
		}

		if r.URL.Query().Get("unassigned") == "true" {
			unassigned := list[:0]
			for _, g := range list {
				if g.TableID == nil {
					unassigned = append(unassigned, g)
				}
			}
			list = unassigned
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"guests": list,
			"stats":  seats.GuestStats(confirmed),
		})
	}
}

// HandleNotFound answers unknown API routes in JSON
func HandleNotFound(s Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeError(w, language(s, r), http.StatusNotFound, i18n.MsgNotFound)
	}
}
