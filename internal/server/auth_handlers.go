package server

import (
	"net/http"
	"strings"

	"github.com/pavithrahatharasinghe/MediaMaestro/internal/errs"
	"github.com/pavithrahatharasinghe/MediaMaestro/internal/spotify"

	"github.com/google/uuid"
)

// handleAuthLogin serves GET /auth/spotify/login: redirect the browser
// to the Spotify consent page with a fresh state parameter.
func (ms *MediaServer) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state := uuid.New().String()
	url, err := ms.catalog.AuthURL(state)
	if err != nil {
		ms.respondError(w, r, err)
		return
	}

	ms.authMu.Lock()
	ms.authState = state
	ms.authMu.Unlock()

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// handleAuthCallback serves GET /auth/spotify/callback: verify state and
// exchange the authorization code for tokens.
func (ms *MediaServer) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	if errParam := query.Get("error"); errParam != "" {
		ms.respondError(w, r, errs.Ef(errs.KindUnauthenticated, "authorization denied: %s", errParam))
		return
	}

	ms.authMu.Lock()
	expected := ms.authState
	ms.authState = ""
	ms.authMu.Unlock()

	state := query.Get("state")
	if expected == "" || state != expected {
		ms.respondError(w, r, errs.Ef(errs.KindInvalidInput, "state mismatch"))
		return
	}

	code := query.Get("code")
	if code == "" {
		ms.respondError(w, r, errs.Ef(errs.KindInvalidInput, "missing authorization code"))
		return
	}

	if err := ms.catalog.Exchange(r.Context(), code); err != nil {
		ms.respondError(w, r, err)
		return
	}

	ms.logger.Info("Spotify authorization completed")
	ms.respondJSON(w, map[string]interface{}{"status": string(spotify.StatusAuthenticated)})
}

// handleAuthStatus serves GET /auth/spotify/status.
func (ms *MediaServer) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ms.respondJSON(w, map[string]interface{}{"status": string(ms.catalog.Status())})
}

// handleAuthLogout serves POST /auth/spotify/logout: drop the cached
// tokens. Never fails, even when nothing was cached.
func (ms *MediaServer) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ms.catalog.Logout()
	ms.respondJSON(w, map[string]interface{}{"status": string(ms.catalog.Status())})
}

// handleSpotifySearch serves GET /api/spotify/search?q=...&artist=...
func (ms *MediaServer) handleSpotifySearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		ms.respondError(w, r, errs.Ef(errs.KindInvalidInput, "q is required"))
		return
	}

	tracks, err := ms.catalog.Search(r.Context(), query, r.URL.Query().Get("artist"))
	if err != nil {
		ms.respondError(w, r, err)
		return
	}
	ms.respondJSON(w, tracks)
}

// handleSpotifyPlaylists serves GET /api/spotify/playlists: the
// authorized user's playlists.
func (ms *MediaServer) handleSpotifyPlaylists(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	playlists, err := ms.catalog.UserPlaylists(r.Context())
	if err != nil {
		ms.respondError(w, r, err)
		return
	}
	ms.respondJSON(w, playlists)
}

// handleSpotifyPlaylistTracks serves GET /api/spotify/playlists/{id}/tracks.
func (ms *MediaServer) handleSpotifyPlaylistTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/spotify/playlists/")
	id, ok := strings.CutSuffix(rest, "/tracks")
	if !ok || id == "" {
		ms.respondError(w, r, errs.Ef(errs.KindInvalidInput, "expected /api/spotify/playlists/{id}/tracks"))
		return
	}

	tracks, err := ms.catalog.PlaylistTracks(r.Context(), id)
	if err != nil {
		ms.respondError(w, r, err)
		return
	}
	ms.respondJSON(w, tracks)
}
