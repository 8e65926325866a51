package server

import (
	"net/http"
	"time"
)

var startTime = time.Now()

// handleHealth serves GET /health. Kept outside request logging so
// probes don't flood the log.
func (ms *MediaServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ms.respondJSON(w, map[string]interface{}{
		"status":        "ok",
		"uptimeSeconds": int(time.Since(startTime).Seconds()),
		"mediaRoot":     ms.cfg.Media.RootDir,
		"spotify":       string(ms.catalog.Status()),
		"downloader":    ms.tracker != nil,
	})
}
