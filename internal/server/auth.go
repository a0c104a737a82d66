package server

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const userInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

func (s *Server) getGoogleOAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.config.GoogleClientID,
		ClientSecret: s.config.GoogleClientSecret,
		RedirectURL:  s.config.GoogleRedirectURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

func newState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := newState()
	if err != nil {
		s.log.Error("failed to generate oauth state", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	session, _ := s.sessionStore.Get(r, sessionName)
	session.Values["state"] = state
	if err := session.Save(r, w); err != nil {
		s.log.Error("failed to save session", zap.Error(err))
		http.Error(w, "Failed to save session", http.StatusInternalServerError)
		return
	}

	url := s.getGoogleOAuthConfig().AuthCodeURL(state, oauth2.AccessTypeOnline)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

type userInfo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *Server) fetchUserInfo(r *http.Request, code string) (userInfo, error) {
	oauthConfig := s.getGoogleOAuthConfig()
	token, err := oauthConfig.Exchange(r.Context(), code)
	if err != nil {
		return userInfo{}, fmt.Errorf("failed to exchange token: %w", err)
	}

	resp, err := oauthConfig.Client(r.Context(), token).Get(userInfoURL)
	if err != nil {
		return userInfo{}, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return userInfo{}, fmt.Errorf("user info returned %s", resp.Status)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return userInfo{}, fmt.Errorf("failed to parse user info: %w", err)
	}
	return info, nil
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	session, _ := s.sessionStore.Get(r, sessionName)
	expected, _ := session.Values["state"].(string)
	delete(session.Values, "state")
	if expected == "" || r.URL.Query().Get("state") != expected {
		http.Error(w, "Invalid state", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Code not found", http.StatusBadRequest)
		return
	}

	info, err := s.fetchUserInfo(r, code)
	if err != nil {
		s.log.Error("google login failed", zap.Error(err))
		http.Error(w, "Login failed", http.StatusInternalServerError)
		return
	}

	// Check if email is in whitelist
	if !s.config.IsAdmin(info.Email) {
		s.log.Warn("login from non-admin account", zap.String("email", info.Email))
		http.Error(w, "Unauthorized: Your email is not whitelisted", http.StatusUnauthorized)
		return
	}

	session.Values["email"] = info.Email
	session.Values["name"] = info.Name
	if err := session.Save(r, w); err != nil {
		s.log.Error("failed to save session", zap.Error(err))
		http.Error(w, "Failed to save session", http.StatusInternalServerError)
		return
	}

	s.log.Info("admin signed in", zap.String("email", info.Email))
	http.Redirect(w, r, s.config.BaseURL, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := s.sessionStore.Get(r, sessionName)
	session.Values["email"] = ""
	session.Values["name"] = ""
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		s.log.Warn("failed to clear session", zap.Error(err))
	}

	w.WriteHeader(http.StatusNoContent)
}
