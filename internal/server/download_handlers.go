package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/pavithrahatharasinghe/MediaMaestro/internal/downloader"
	"github.com/pavithrahatharasinghe/MediaMaestro/internal/errs"
	"github.com/pavithrahatharasinghe/MediaMaestro/pkg/models"
)

// handleDownload serves POST /api/download: start an async download job
// and return it immediately.
func (ms *MediaServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if ms.tracker == nil {
		ms.respondError(w, r, errs.Ef(errs.KindUnavailable, "downloader is not available (yt-dlp not found)"))
		return
	}

	var req struct {
		Source     string `json:"source"`
		Format     string `json:"format"`
		PlaylistID int    `json:"playlistId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ms.respondError(w, r, errs.E(errs.KindInvalidInput, "invalid JSON body", err))
		return
	}
	if req.Source == "" {
		ms.respondError(w, r, errs.Ef(errs.KindInvalidInput, "source is required"))
		return
	}

	job, err := ms.tracker.Start(req.Source, models.Format(req.Format), req.PlaylistID)
	if err != nil {
		ms.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(job); err != nil {
		ms.logger.WithError(err).Error("Failed to encode download job")
	}
}

// handleSourceSearch serves GET /api/youtube/search?q=...&limit=...:
// download candidates for a text query, found without downloading.
func (ms *MediaServer) handleSourceSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if ms.searcher == nil {
		ms.respondError(w, r, errs.Ef(errs.KindUnavailable, "downloader is not available (yt-dlp not found)"))
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		ms.respondError(w, r, errs.Ef(errs.KindInvalidInput, "q is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := ms.searcher.Search(r.Context(), query, limit)
	if err != nil {
		ms.respondError(w, r, errs.E(errs.KindExternal, "source search failed", err))
		return
	}
	if results == nil {
		results = []downloader.SearchResult{}
	}
	ms.respondJSON(w, results)
}

// handleGetDownloads serves GET /api/downloads: all tracked jobs, newest
// first.
func (ms *MediaServer) handleGetDownloads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if ms.tracker == nil {
		ms.respondJSON(w, []interface{}{})
		return
	}

	jobs := ms.tracker.GetAllJobs()
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	ms.respondJSON(w, jobs)
}

// handleDownloadByID serves GET /api/downloads/{id} and
// POST /api/downloads/{id}/cancel.
func (ms *MediaServer) handleDownloadByID(w http.ResponseWriter, r *http.Request) {
	if ms.tracker == nil {
		ms.respondError(w, r, errs.Ef(errs.KindUnavailable, "downloader is not available (yt-dlp not found)"))
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/downloads/")
	if cancelID, ok := strings.CutSuffix(rest, "/cancel"); ok {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := ms.tracker.Cancel(cancelID); err != nil {
			ms.respondError(w, r, err)
			return
		}
		job, _ := ms.tracker.GetJob(cancelID)
		ms.respondJSON(w, job)
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	job, ok := ms.tracker.GetJob(rest)
	if !ok {
		ms.respondError(w, r, errs.NotFound("download job", rest))
		return
	}
	ms.respondJSON(w, job)
}
