package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rewind/internal/models"
	"github.com/desertthunder/rewind/internal/repositories"
	"github.com/desertthunder/rewind/internal/services"
	"github.com/desertthunder/rewind/internal/shared"
)

// EnrollHandler serves the persistent signup flow: GET /login redirects
// to the consent page and GET /callback completes the handshake, fetches
// the new user's profile, and upserts them into the credential store.
//
// Re-authentication of an existing user takes the same path; the upsert
// refreshes their display name, email, and credentials.
type EnrollHandler struct {
	service services.Service
	users   *repositories.UserRepository
	logger  *log.Logger

	mu     sync.Mutex
	states map[string]struct{}
}

// NewEnrollHandler creates an EnrollHandler over the given service and user store.
func NewEnrollHandler(service services.Service, users *repositories.UserRepository, logger *log.Logger) *EnrollHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &EnrollHandler{
		service: service,
		users:   users,
		logger:  logger,
		states:  make(map[string]struct{}),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *EnrollHandler) Routes() []string {
	return []string{"/login", "/callback"}
}

// ServeHTTP dispatches between the login redirect and the callback.
func (h *EnrollHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/login":
		h.login(w, r)
	case "/callback":
		h.callback(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *EnrollHandler) login(w http.ResponseWriter, r *http.Request) {
	state := shared.GenerateID()

	h.mu.Lock()
	h.states[state] = struct{}{}
	h.mu.Unlock()

	http.Redirect(w, r, h.service.AuthURL(state), http.StatusTemporaryRedirect)
}

// consumeState validates and invalidates a state token in one step.
func (h *EnrollHandler) consumeState(state string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.states[state]; !ok {
		return false
	}
	delete(h.states, state)
	return true
}

func (h *EnrollHandler) callback(w http.ResponseWriter, r *http.Request) {
	if !h.consumeState(r.URL.Query().Get("state")) {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "No authorization code provided", http.StatusBadRequest)
		return
	}

	token, err := h.service.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("code exchange failed", "error", err)
		http.Error(w, "Token exchange failed", http.StatusBadGateway)
		return
	}

	profile, err := h.service.Profile(r.Context(), token.AccessToken)
	if err != nil || profile.ID == "" {
		h.logger.Error("profile fetch failed", "error", err)
		http.Error(w, "Could not fetch user profile", http.StatusBadGateway)
		return
	}

	user := &models.User{
		SpotifyUserID: profile.ID,
		DisplayName:   profile.DisplayName,
		Email:         profile.Email,
		AccessToken:   token.AccessToken,
		RefreshToken:  token.RefreshToken,
	}

	if err := h.users.Upsert(r.Context(), user); err != nil {
		h.logger.Error("failed to store user", "spotify_user_id", profile.ID, "error", err)
		http.Error(w, "Failed to save signup", http.StatusInternalServerError)
		return
	}

	h.logger.Info("user enrolled", "spotify_user_id", profile.ID, "display_name", profile.DisplayName)

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}
