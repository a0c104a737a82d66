package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/AlexTLDR/seatplan/internal/config"
	"github.com/AlexTLDR/seatplan/internal/i18n"
	"github.com/AlexTLDR/seatplan/internal/realtime"
	"github.com/AlexTLDR/seatplan/internal/roster"
	"github.com/AlexTLDR/seatplan/internal/seating"
)

// Server interface defines the methods needed by handlers
type Server interface {
	GetRoster() *roster.Store
	GetSeating() *seating.Manager
	GetConfig() *config.Config
	Broadcast(stream string, msg realtime.Message)
	Logger() *zap.Logger
}

// parseID parses a positive numeric path value
func parseID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, raw)
	}
	if id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s: must be positive", errBadRequest, name)
	}
	return id, nil
}

func language(s Server, r *http.Request) i18n.Language {
	return i18n.GetLanguageFromRequest(r, i18n.Parse(s.GetConfig().DefaultLanguage, i18n.Italian))
}

// HandleHealth reports liveness.
func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
