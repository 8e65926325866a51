package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pavithrahatharasinghe/MediaMaestro/internal/config"
	"github.com/pavithrahatharasinghe/MediaMaestro/internal/database"
	"github.com/pavithrahatharasinghe/MediaMaestro/internal/downloader"
	"github.com/pavithrahatharasinghe/MediaMaestro/pkg/models"

	"github.com/sirupsen/logrus"
)

func newTestServer(t *testing.T) *MediaServer {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "test.db")
	cfg.Media.RootDir = filepath.Join(dir, "media")
	cfg.Media.WatchForChanges = false
	cfg.Downloader.Enabled = false
	cfg.Logging.RequestLogging = false

	if err := os.MkdirAll(cfg.Media.RootDir, 0755); err != nil {
		t.Fatalf("Failed to create media root: %v", err)
	}

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	ms, err := NewMediaServer(cfg, db, logger)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return ms
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestServer(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Health status = %d, want 200", rec.Code)
	}

	var body map[string]interface{}
	decode(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("Health body = %v", body)
	}
	if body["spotify"] != "not_configured" {
		t.Errorf("Unconfigured catalog should report not_configured, got %v", body["spotify"])
	}
}

func TestPlaylistEndpoints(t *testing.T) {
	handler := newTestServer(t).Handler()

	t.Run("EmptyList", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/api/playlists", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("List status = %d, want 200", rec.Code)
		}
		var playlists []models.Playlist
		decode(t, rec, &playlists)
		if len(playlists) != 0 {
			t.Errorf("Expected empty list, got %v", playlists)
		}
	})

	var created models.Playlist
	t.Run("Create", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/api/playlists", map[string]interface{}{
			"name":     "K-Pop Favorites",
			"category": "kpop",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("Create status = %d, want 201: %s", rec.Code, rec.Body.String())
		}
		decode(t, rec, &created)
		if created.ID == 0 || created.Key != "kpop" {
			t.Errorf("Created playlist = %+v", created)
		}
	})

	t.Run("InvalidCategory", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/api/playlists", map[string]interface{}{
			"name":     "Rock",
			"category": "rock",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Invalid category status = %d, want 400", rec.Code)
		}
		var body map[string]interface{}
		decode(t, rec, &body)
		if body["kind"] != "invalid_input" {
			t.Errorf("Error kind = %v, want invalid_input", body["kind"])
		}
	})

	t.Run("DuplicateKey", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/api/playlists", map[string]interface{}{
			"name":     "Another",
			"key":      "kpop",
			"category": "kpop",
		})
		if rec.Code != http.StatusConflict {
			t.Errorf("Duplicate key status = %d, want 409", rec.Code)
		}
	})

	t.Run("GetByID", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/playlists/%d", created.ID), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Get status = %d, want 200", rec.Code)
		}
		var p models.Playlist
		decode(t, rec, &p)
		if p.Name != "K-Pop Favorites" {
			t.Errorf("Got %+v", p)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/api/playlists/9999", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("Missing playlist status = %d, want 404", rec.Code)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodDelete, fmt.Sprintf("/api/playlists/%d", created.ID), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Delete status = %d, want 200", rec.Code)
		}
		var body map[string]interface{}
		decode(t, rec, &body)
		if body["filesRetained"] != true {
			t.Errorf("Delete response should note files are retained: %v", body)
		}
	})
}

func TestFileEndpoints(t *testing.T) {
	ms := newTestServer(t)
	handler := ms.Handler()

	// playlist plus two files on disk
	doJSON(t, handler, http.MethodPost, "/api/playlists", map[string]interface{}{
		"name":     "K-Pop",
		"category": "kpop",
	})
	lossyDir := filepath.Join(ms.cfg.Media.RootDir, "kpop", "lossy-audio")
	if err := os.MkdirAll(lossyDir, 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(lossyDir, "IU - Lilac.mp3"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	t.Run("ScanAll", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/api/files/scan", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Scan status = %d: %s", rec.Code, rec.Body.String())
		}
		var body struct {
			TotalFiles int `json:"totalFiles"`
		}
		decode(t, rec, &body)
		if body.TotalFiles != 1 {
			t.Errorf("TotalFiles = %d, want 1", body.TotalFiles)
		}
	})

	t.Run("ScanSinglePlaylist", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/api/files/scan?playlist=kpop", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Scan status = %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("MissingFormats", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/api/files/missing/kpop", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Missing status = %d: %s", rec.Code, rec.Body.String())
		}
		var body struct {
			Songs []struct {
				Title   string   `json:"title"`
				Missing []string `json:"missing"`
			} `json:"songs"`
		}
		decode(t, rec, &body)
		if len(body.Songs) != 1 || len(body.Songs[0].Missing) != 2 {
			t.Errorf("Missing formats body = %s", rec.Body.String())
		}
	})

	t.Run("Ingest", func(t *testing.T) {
		src := filepath.Join(t.TempDir(), "ATEEZ - Crazy Form.mp3")
		if err := os.WriteFile(src, []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to write source: %v", err)
		}

		rec := doJSON(t, handler, http.MethodPost, "/api/files/ingest", map[string]interface{}{
			"sourcePaths":    []string{src},
			"targetPlaylist": "kpop",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("Ingest status = %d: %s", rec.Code, rec.Body.String())
		}
		var body struct {
			Outcomes []struct {
				Status string `json:"status"`
			} `json:"outcomes"`
		}
		decode(t, rec, &body)
		if len(body.Outcomes) != 1 || body.Outcomes[0].Status != "copied" {
			t.Errorf("Ingest body = %s", rec.Body.String())
		}
	})

	t.Run("IngestValidation", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/api/files/ingest", map[string]interface{}{
			"sourcePaths": []string{},
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Empty ingest status = %d, want 400", rec.Code)
		}
	})

	t.Run("Organize", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/api/files/organize/1", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Organize status = %d: %s", rec.Code, rec.Body.String())
		}
		var body struct {
			Report struct {
				Balanced        bool     `json:"balanced"`
				Recommendations []string `json:"recommendations"`
			} `json:"report"`
		}
		decode(t, rec, &body)
		if body.Report.Balanced {
			t.Error("Playlist with only lossy files should be unbalanced")
		}
		if len(body.Report.Recommendations) == 0 {
			t.Error("Expected recommendations for missing formats")
		}
	})
}

func TestDownloadEndpointsWithoutExecutor(t *testing.T) {
	handler := newTestServer(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/downloads", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Downloads list without executor status = %d, want 200", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/download", map[string]interface{}{
		"source": "https://youtube.com/watch?v=abc", "format": "lossy-audio", "playlistId": 1,
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Download without executor status = %d, want 503", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/youtube/search?q=lilac", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Search without executor status = %d, want 503", rec.Code)
	}
}

// fakeSearcher serves canned search results.
type fakeSearcher struct {
	results []downloader.SearchResult
	err     error
	gotQ    string
	gotN    int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int) ([]downloader.SearchResult, error) {
	f.gotQ, f.gotN = query, limit
	return f.results, f.err
}

func TestSourceSearch(t *testing.T) {
	ms := newTestServer(t)
	searcher := &fakeSearcher{results: []downloader.SearchResult{
		{ID: "abc123", Title: "IU - Lilac", URL: "https://www.youtube.com/watch?v=abc123", Duration: 214},
	}}
	ms.searcher = searcher
	handler := ms.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/youtube/search?q=IU+Lilac&limit=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Search status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var results []downloader.SearchResult
	decode(t, rec, &results)
	if len(results) != 1 || results[0].ID != "abc123" {
		t.Errorf("Search body = %+v, want the canned result", results)
	}
	if searcher.gotQ != "IU Lilac" || searcher.gotN != 3 {
		t.Errorf("Searcher called with (%q, %d), want (\"IU Lilac\", 3)", searcher.gotQ, searcher.gotN)
	}

	// the query text is mandatory
	rec = doJSON(t, handler, http.MethodGet, "/api/youtube/search", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Search without q status = %d, want 400", rec.Code)
	}
}

func TestAuthStatusNotConfigured(t *testing.T) {
	handler := newTestServer(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/auth/spotify/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Auth status = %d, want 200", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["status"] != "not_configured" {
		t.Errorf("Auth status = %s, want not_configured", body["status"])
	}

	// without credentials the login redirect cannot be built
	rec = doJSON(t, handler, http.MethodGet, "/auth/spotify/login", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Login without credentials status = %d, want 400", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestServer(t).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/playlists", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("Preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("Preflight missing CORS headers")
	}
}
