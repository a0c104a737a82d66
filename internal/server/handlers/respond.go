package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/AlexTLDR/seatplan/internal/i18n"
	"github.com/AlexTLDR/seatplan/internal/roster"
	"github.com/AlexTLDR/seatplan/internal/seating"
	"github.com/AlexTLDR/seatplan/internal/validate"
)

const maxBodySize = 1 << 20

type errorBody struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Fields  validate.Errors `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, lang i18n.Language, status int, key string) {
	writeJSON(w, status, errorBody{Code: key, Message: i18n.Message(lang, key)})
}

// decodeJSON reads a JSON body into v and validates it.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return validate.Struct(v)
}

var (
	errBadRequest   = errors.New("bad request")
	errInvalidPhone = errors.New("invalid phone")
)

type errorMapping struct {
	target error
	status int
	key    string
}

var errorMappings = []errorMapping{
	{errBadRequest, http.StatusBadRequest, i18n.MsgInvalidRequest},
	{errInvalidPhone, http.StatusBadRequest, i18n.MsgInvalidPhone},
	{roster.ErrInvalidInput, http.StatusBadRequest, i18n.MsgInvalidRequest},
	{roster.ErrStaleReference, http.StatusConflict, i18n.MsgStaleReference},
	{roster.ErrInvalidTransition, http.StatusConflict, i18n.MsgInvalidTransition},
	{seating.ErrUnknownPerson, http.StatusNotFound, i18n.MsgNotFound},
	{seating.ErrUnknownTable, http.StatusNotFound, i18n.MsgNotFound},
	{seating.ErrTableFull, http.StatusConflict, i18n.MsgTableFull},
	{seating.ErrNotConfirmed, http.StatusConflict, i18n.MsgNotConfirmed},
	{seating.ErrSeatTaken, http.StatusConflict, i18n.MsgSeatTaken},
	{seating.ErrInvalidSeat, http.StatusBadRequest, i18n.MsgInvalidRequest},
	{seating.ErrInvalidCapacity, http.StatusBadRequest, i18n.MsgInvalidRequest},
	{seating.ErrCapacityBelowAssigned, http.StatusConflict, i18n.MsgCapacityTooLow},
}

// handleError maps domain errors to a localized JSON response.
func handleError(s Server, w http.ResponseWriter, r *http.Request, err error) {
	lang := language(s, r)

	var fields validate.Errors
	if errors.As(err, &fields) {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Code:    i18n.MsgInvalidRequest,
			Message: i18n.Message(lang, i18n.MsgInvalidRequest),
			Fields:  fields,
		})
		return
	}

	var rosterErr *roster.PersistenceError
	var seatingErr *seating.PersistenceError
	if errors.As(err, &rosterErr) || errors.As(err, &seatingErr) {
		s.Logger().Warn("write failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, lang, http.StatusServiceUnavailable, i18n.MsgSaveFailed)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			writeError(w, lang, m.status, m.key)
			return
		}
	}

	s.Logger().Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeError(w, lang, http.StatusInternalServerError, i18n.MsgInternal)
}
