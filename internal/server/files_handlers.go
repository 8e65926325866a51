package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/pavithrahatharasinghe/MediaMaestro/internal/errs"
)

// handleScan serves GET /api/files/scan[?playlist=key]: the full managed
// tree inventory, or one playlist's.
func (ms *MediaServer) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if key := r.URL.Query().Get("playlist"); key != "" {
		inv, unclassified, warnings, err := ms.lib.Scan(key)
		if err != nil {
			ms.respondError(w, r, err)
			return
		}
		ms.respondJSON(w, map[string]interface{}{
			"playlist":     inv,
			"unclassified": unclassified,
			"warnings":     warnings,
		})
		return
	}

	inventory, err := ms.cachedInventory()
	if err != nil {
		ms.respondError(w, r, err)
		return
	}
	ms.respondJSON(w, inventory)
}

// handleMissingFormats serves GET /api/files/missing/{playlist-key}.
func (ms *MediaServer) handleMissingFormats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/api/files/missing/")
	if key == "" {
		ms.respondError(w, r, errs.Ef(errs.KindInvalidInput, "missing playlist key"))
		return
	}

	gaps, err := ms.lib.MissingFormats(key)
	if err != nil {
		ms.respondError(w, r, err)
		return
	}
	ms.respondJSON(w, map[string]interface{}{"playlist": key, "songs": gaps})
}

// handleIngest serves POST /api/files/ingest: copy external files into
// the managed tree with per-file outcomes.
func (ms *MediaServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		SourcePaths    []string `json:"sourcePaths"`
		TargetPlaylist string   `json:"targetPlaylist"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ms.respondError(w, r, errs.E(errs.KindInvalidInput, "invalid JSON body", err))
		return
	}
	if len(req.SourcePaths) == 0 {
		ms.respondError(w, r, errs.Ef(errs.KindInvalidInput, "sourcePaths is required"))
		return
	}
	if req.TargetPlaylist == "" {
		ms.respondError(w, r, errs.Ef(errs.KindInvalidInput, "targetPlaylist is required"))
		return
	}

	outcomes, err := ms.lib.Ingest(r.Context(), req.SourcePaths, req.TargetPlaylist)
	if err != nil {
		ms.respondError(w, r, err)
		return
	}

	ms.invalidateInventory()
	ms.respondJSON(w, map[string]interface{}{
		"playlist": req.TargetPlaylist,
		"outcomes": outcomes,
	})
}

// handleOrganize serves GET /api/files/organize/{playlist-id}: the format
// balance report.
func (ms *MediaServer) handleOrganize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/api/files/organize/")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		ms.respondError(w, r, errs.Ef(errs.KindInvalidInput, "invalid playlist id %q", idStr))
		return
	}

	playlist, err := ms.db.GetPlaylistByID(id)
	if err != nil {
		ms.respondError(w, r, err)
		return
	}

	report, err := ms.lib.Organize(playlist.Key)
	if err != nil {
		ms.respondError(w, r, err)
		return
	}
	ms.respondJSON(w, map[string]interface{}{
		"playlist": playlist.Key,
		"report":   report,
	})
}

// handleMatch serves POST /api/files/match: cross-reference a playlist's
// local files against an external catalog playlist. Requires a valid
// token.
func (ms *MediaServer) handleMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		PlaylistKey       string `json:"playlistKey"`
		SpotifyPlaylistID string `json:"spotifyPlaylistId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ms.respondError(w, r, errs.E(errs.KindInvalidInput, "invalid JSON body", err))
		return
	}
	if req.PlaylistKey == "" || req.SpotifyPlaylistID == "" {
		ms.respondError(w, r, errs.Ef(errs.KindInvalidInput, "playlistKey and spotifyPlaylistId are required"))
		return
	}

	external, err := ms.catalog.PlaylistTracks(r.Context(), req.SpotifyPlaylistID)
	if err != nil {
		ms.respondError(w, r, err)
		return
	}

	report, err := ms.lib.MatchExternal(req.PlaylistKey, external)
	if err != nil {
		ms.respondError(w, r, err)
		return
	}
	ms.respondJSON(w, report)
}
