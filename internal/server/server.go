package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/AlexTLDR/seatplan/internal/config"
	"github.com/AlexTLDR/seatplan/internal/i18n"
	"github.com/AlexTLDR/seatplan/internal/logger"
	"github.com/AlexTLDR/seatplan/internal/realtime"
	"github.com/AlexTLDR/seatplan/internal/roster"
	"github.com/AlexTLDR/seatplan/internal/seating"
	"github.com/AlexTLDR/seatplan/internal/server/handlers"
)

const sessionName = "auth-session"

type Server struct {
	config       *config.Config
	roster       *roster.Store
	seating      *seating.Manager
	hub          *realtime.Hub
	sessionStore *sessions.CookieStore
	router       *http.ServeMux
	httpServer   *http.Server
	log          *zap.Logger
}

// GetRoster implements handlers.Server interface
func (s *Server) GetRoster() *roster.Store {
	return s.roster
}

// GetSeating implements handlers.Server interface
func (s *Server) GetSeating() *seating.Manager {
	return s.seating
}

// GetConfig implements handlers.Server interface
func (s *Server) GetConfig() *config.Config {
	return s.config
}

// Broadcast implements handlers.Server interface
func (s *Server) Broadcast(stream string, msg realtime.Message) {
	s.hub.Broadcast(stream, msg)
}

// Logger implements handlers.Server interface
func (s *Server) Logger() *zap.Logger {
	return s.log
}

// GetCurrentUser returns the email and name stored in the session.
func (s *Server) GetCurrentUser(r *http.Request) (string, string) {
	session, _ := s.sessionStore.Get(r, sessionName)
	email, _ := session.Values["email"].(string)
	name, _ := session.Values["name"].(string)
	return email, name
}

func New(cfg *config.Config, people *roster.Store, seats *seating.Manager, hub *realtime.Hub) *Server {
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	s := &Server{
		config:       cfg,
		roster:       people,
		seating:      seats,
		hub:          hub,
		sessionStore: store,
		router:       http.NewServeMux(),
		log:          logger.WithModule("server"),
	}

	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	// Public routes
	s.router.HandleFunc("GET /healthz", handlers.HandleHealth())
	if s.config.MetricsPublic {
		s.router.Handle("GET /metrics", promhttp.Handler())
	} else {
		s.router.Handle("GET /metrics", s.requireAuth(promhttp.Handler().ServeHTTP))
	}

	// Auth routes
	s.router.HandleFunc("GET /auth/google", s.handleGoogleLogin)
	s.router.HandleFunc("GET /auth/google/callback", s.handleGoogleCallback)
	s.router.HandleFunc("/auth/logout", s.handleLogout)

	// Realtime invalidations (protected)
	s.router.Handle("GET /ws", s.requireAuth(s.hub.ServeHTTP))

	// Guests (protected)
	s.router.HandleFunc("GET /api/guests", s.requireAuth(handlers.HandleListGuests(s)))
	s.router.HandleFunc("POST /api/guests", s.requireAuth(handlers.HandleCreateGuest(s)))
	s.router.HandleFunc("GET /api/guests/{id}", s.requireAuth(handlers.HandleGetGuest(s)))
	s.router.HandleFunc("PUT /api/guests/{id}", s.requireAuth(handlers.HandleUpdateGuest(s)))
	s.router.HandleFunc("DELETE /api/guests/{id}", s.requireAuth(handlers.HandleGuestAction(s, handlers.PurgeUnit)))
	s.router.HandleFunc("POST /api/guests/{id}/confirm-principal", s.requireAuth(handlers.HandleGuestAction(s, handlers.ConfirmPrincipal)))
	s.router.HandleFunc("POST /api/guests/{id}/revert-principal", s.requireAuth(handlers.HandleGuestAction(s, handlers.RevertPrincipal)))
	s.router.HandleFunc("POST /api/guests/{id}/confirm-all", s.requireAuth(handlers.HandleGuestAction(s, handlers.ConfirmAll)))
	s.router.HandleFunc("POST /api/guests/{id}/delete", s.requireAuth(handlers.HandleGuestAction(s, handlers.DeleteUnit)))
	s.router.HandleFunc("POST /api/guests/{id}/restore", s.requireAuth(handlers.HandleGuestAction(s, handlers.RestoreUnit)))
	s.router.HandleFunc("PUT /api/units/{unit}/companions", s.requireAuth(handlers.HandleUpdateRoster(s)))
	s.router.HandleFunc("GET /api/stats", s.requireAuth(handlers.HandleStats(s)))

	// Companions (protected)
	s.router.HandleFunc("POST /api/companions/{id}/confirm", s.requireAuth(handlers.HandleCompanionAction(s, handlers.ConfirmCompanion)))
	s.router.HandleFunc("POST /api/companions/{id}/revert", s.requireAuth(handlers.HandleCompanionAction(s, handlers.RevertCompanion)))
	s.router.HandleFunc("POST /api/companions/{id}/delete", s.requireAuth(handlers.HandleCompanionAction(s, handlers.DeleteCompanion)))
	s.router.HandleFunc("POST /api/companions/{id}/restore", s.requireAuth(handlers.HandleCompanionAction(s, handlers.RestoreCompanion)))
	s.router.HandleFunc("DELETE /api/companions/{id}", s.requireAuth(handlers.HandleCompanionAction(s, handlers.PurgeCompanion)))

	// Seating (protected)
	s.router.HandleFunc("GET /api/tables", s.requireAuth(handlers.HandleListTables(s)))
	s.router.HandleFunc("POST /api/tables", s.requireAuth(handlers.HandleCreateTable(s)))
	s.router.HandleFunc("PUT /api/tables/{id}", s.requireAuth(handlers.HandleUpdateTable(s)))
	s.router.HandleFunc("DELETE /api/tables/{id}", s.requireAuth(handlers.HandleDeleteTable(s)))
	s.router.HandleFunc("POST /api/tables/{id}/assignments", s.requireAuth(handlers.HandleAssign(s)))
	s.router.HandleFunc("DELETE /api/assignments/{personID}", s.requireAuth(handlers.HandleUnassign(s)))
	s.router.HandleFunc("GET /api/seating/stats", s.requireAuth(handlers.HandleSeatingStats(s)))
	s.router.HandleFunc("GET /api/seating/guests", s.requireAuth(handlers.HandleSeatingGuests(s)))

	s.router.HandleFunc("/api/", handlers.HandleNotFound(s))
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = observe(h, s.log)
	h = requestID(h)
	if len(s.config.CORSAllowedOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins:   s.config.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "Accept-Language", requestIDHeader},
			AllowCredentials: true,
		}).Handler(h)
	}
	return h
}

// Start serves on addr until Shutdown is called. It returns nil at once
// when Shutdown already ran.
func (s *Server) Start(addr string) error {
	if addr != "" {
		s.httpServer.Addr = addr
	}
	s.log.Info("starting server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requireAuth is a middleware that checks if user is authenticated
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, _ := s.GetCurrentUser(r)
		lang := i18n.GetLanguageFromRequest(r, i18n.Parse(s.config.DefaultLanguage, i18n.Italian))

		if email == "" {
			writeAuthError(w, lang, http.StatusUnauthorized, i18n.MsgUnauthorized)
			return
		}

		// Check if email is in whitelist
		if !s.config.IsAdmin(email) {
			s.log.Warn("rejected non-admin session", zap.String("email", email))
			writeAuthError(w, lang, http.StatusForbidden, i18n.MsgForbidden)
			return
		}

		next(w, r)
	}
}
