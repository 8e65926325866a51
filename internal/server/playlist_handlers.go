package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/pavithrahatharasinghe/MediaMaestro/internal/errs"
	"github.com/pavithrahatharasinghe/MediaMaestro/internal/spotify"
	"github.com/pavithrahatharasinghe/MediaMaestro/pkg/models"
)

// handlePlaylists serves GET (list) and POST (create) on /api/playlists.
func (ms *MediaServer) handlePlaylists(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		playlists, err := ms.db.GetAllPlaylists()
		if err != nil {
			ms.respondError(w, r, err)
			return
		}
		if playlists == nil {
			playlists = []models.Playlist{}
		}
		ms.respondJSON(w, playlists)

	case http.MethodPost:
		ms.handleCreatePlaylist(w, r)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleCreatePlaylist creates a new playlist, optionally mirroring it on
// the external service when requested and authenticated.
func (ms *MediaServer) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string `json:"name"`
		Key           string `json:"key"`
		Category      string `json:"category"`
		CreateSpotify bool   `json:"createSpotify"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ms.respondError(w, r, errs.E(errs.KindInvalidInput, "invalid JSON body", err))
		return
	}

	if req.Name == "" {
		ms.respondError(w, r, errs.Ef(errs.KindInvalidInput, "playlist name is required"))
		return
	}

	category := models.Category(req.Category)
	if !category.Valid() {
		ms.respondError(w, r, errs.Ef(errs.KindInvalidInput, "invalid category %q", req.Category))
		return
	}

	key := req.Key
	if key == "" {
		// regional playlists live in their category directory by default
		key = string(category)
	}

	playlist := models.Playlist{
		Name:     req.Name,
		Key:      key,
		Category: category,
	}

	if req.CreateSpotify && ms.catalog.Status() == spotify.StatusAuthenticated {
		spotifyID, err := ms.catalog.CreatePlaylist(r.Context(), req.Name, "MediaMaestro - "+category.DisplayName())
		if err != nil {
			ms.respondError(w, r, err)
			return
		}
		playlist.SpotifyID = spotifyID
	}

	id, err := ms.db.CreatePlaylist(playlist)
	if err != nil {
		ms.respondError(w, r, err)
		return
	}

	created, err := ms.db.GetPlaylistByID(id)
	if err != nil {
		ms.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(created); err != nil {
		ms.logger.WithError(err).Error("Failed to encode playlist")
	}
}

// playlistIDFromPath parses /api/playlists/{id}[/...] path segments.
func playlistIDFromPath(path string) (int, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 {
		return 0, errs.Ef(errs.KindInvalidInput, "missing playlist id")
	}
	id, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, errs.Ef(errs.KindInvalidInput, "invalid playlist id %q", parts[2])
	}
	return id, nil
}

// handlePlaylistByID serves DELETE /api/playlists/{id}. Deleting a
// playlist never touches the underlying files.
func (ms *MediaServer) handlePlaylistByID(w http.ResponseWriter, r *http.Request) {
	id, err := playlistIDFromPath(r.URL.Path)
	if err != nil {
		ms.respondError(w, r, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		playlist, err := ms.db.GetPlaylistByID(id)
		if err != nil {
			ms.respondError(w, r, err)
			return
		}
		ms.respondJSON(w, playlist)

	case http.MethodDelete:
		if err := ms.db.DeletePlaylist(id); err != nil {
			ms.respondError(w, r, err)
			return
		}
		ms.respondJSON(w, map[string]interface{}{"deleted": id, "filesRetained": true})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handlePlaylistSongs serves GET /api/playlists/{id}/songs.
func (ms *MediaServer) handlePlaylistSongs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := playlistIDFromPath(r.URL.Path)
	if err != nil {
		ms.respondError(w, r, err)
		return
	}

	if _, err := ms.db.GetPlaylistByID(id); err != nil {
		ms.respondError(w, r, err)
		return
	}

	songs, err := ms.db.GetSongsByPlaylist(id)
	if err != nil {
		ms.respondError(w, r, err)
		return
	}
	if songs == nil {
		songs = []models.Song{}
	}
	ms.respondJSON(w, songs)
}
