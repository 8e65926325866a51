package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pavithrahatharasinghe/MediaMaestro/internal/config"
	"github.com/pavithrahatharasinghe/MediaMaestro/internal/database"
	"github.com/pavithrahatharasinghe/MediaMaestro/internal/downloader"
	"github.com/pavithrahatharasinghe/MediaMaestro/internal/library"
	"github.com/pavithrahatharasinghe/MediaMaestro/internal/spotify"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// SourceSearcher finds download candidates for a text query.
type SourceSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]downloader.SearchResult, error)
}

// MediaServer is the HTTP face of the reconciliation engine.
type MediaServer struct {
	cfg      *config.Config
	db       *database.Database
	lib      *library.Library
	tracker  *downloader.Tracker
	searcher SourceSearcher
	catalog  *spotify.Client
	logger   *logrus.Logger
	watcher  *fsnotify.Watcher

	// scan inventory cache, invalidated by the file watcher
	invMu        sync.Mutex
	inventory    *library.Inventory
	invGenerated time.Time

	// pending OAuth state, set by login and checked by the callback
	authMu    sync.Mutex
	authState string
}

// NewMediaServer wires the server together. The downloader may be nil
// when yt-dlp is unavailable; download endpoints then answer with a
// service-unavailable error instead of failing at startup.
func NewMediaServer(cfg *config.Config, db *database.Database, logger *logrus.Logger) (*MediaServer, error) {
	lib := library.NewLibrary(cfg.Media.RootDir, db)
	catalog := spotify.NewClient(cfg.Spotify)

	var tracker *downloader.Tracker
	var searcher SourceSearcher
	if cfg.Downloader.Enabled {
		executor, err := downloader.NewYtDlpExecutor(cfg.Downloader)
		if err != nil {
			logger.WithError(err).Warn("Downloader not available")
		} else {
			tracker = downloader.NewTracker(lib, db, executor, cfg.Downloader.MaxConcurrent)
			searcher = executor
		}
	}

	return &MediaServer{
		cfg:      cfg,
		db:       db,
		lib:      lib,
		tracker:  tracker,
		searcher: searcher,
		catalog:  catalog,
		logger:   logger,
	}, nil
}

// Library exposes the underlying library manager (used by tests and main).
func (ms *MediaServer) Library() *library.Library {
	return ms.lib
}

// Handler builds the full route table wrapped in the middleware chain.
func (ms *MediaServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ms.handleHealth)

	mux.HandleFunc("/api/playlists", ms.handlePlaylists)
	mux.HandleFunc("/api/playlists/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/songs") {
			ms.handlePlaylistSongs(w, r)
			return
		}
		ms.handlePlaylistByID(w, r)
	})

	mux.HandleFunc("/api/files/scan", ms.handleScan)
	mux.HandleFunc("/api/files/missing/", ms.handleMissingFormats)
	mux.HandleFunc("/api/files/ingest", ms.handleIngest)
	mux.HandleFunc("/api/files/organize/", ms.handleOrganize)
	mux.HandleFunc("/api/files/match", ms.handleMatch)

	mux.HandleFunc("/api/download", ms.handleDownload)
	mux.HandleFunc("/api/downloads", ms.handleGetDownloads)
	mux.HandleFunc("/api/downloads/", ms.handleDownloadByID)
	mux.HandleFunc("/api/youtube/search", ms.handleSourceSearch)

	mux.HandleFunc("/auth/spotify/login", ms.handleAuthLogin)
	mux.HandleFunc("/auth/spotify/callback", ms.handleAuthCallback)
	mux.HandleFunc("/auth/spotify/status", ms.handleAuthStatus)
	mux.HandleFunc("/auth/spotify/logout", ms.handleAuthLogout)

	mux.HandleFunc("/api/spotify/search", ms.handleSpotifySearch)
	mux.HandleFunc("/api/spotify/playlists", ms.handleSpotifyPlaylists)
	mux.HandleFunc("/api/spotify/playlists/", ms.handleSpotifyPlaylistTracks)

	return ms.requestLoggingMiddleware(ms.corsMiddleware(mux))
}

// Start runs the HTTP server. Blocks until the listener fails.
func (ms *MediaServer) Start() error {
	if ms.cfg.Media.WatchForChanges {
		if err := ms.startFileWatcher(); err != nil {
			ms.logger.WithError(err).Warn("Could not start file watcher")
		} else {
			defer ms.stopFileWatcher()
		}
	}

	server := &http.Server{
		Addr:        ms.cfg.GetAddress(),
		Handler:     ms.Handler(),
		ReadTimeout: time.Duration(ms.cfg.Server.ReadTimeout) * time.Second,
	}

	ms.logger.WithFields(logrus.Fields{
		"address":    ms.cfg.GetAddress(),
		"media_root": ms.cfg.Media.RootDir,
	}).Info("MediaMaestro server starting")

	return server.ListenAndServe()
}

// Shutdown stops background workers.
func (ms *MediaServer) Shutdown() {
	ms.logger.Info("Shutting down media server")
	ms.stopFileWatcher()
}

// cachedInventory returns the last full scan while the watcher has not
// observed a change, re-scanning otherwise. Without a watcher every call
// scans fresh.
func (ms *MediaServer) cachedInventory() (*library.Inventory, error) {
	ms.invMu.Lock()
	defer ms.invMu.Unlock()

	if ms.watcher != nil && ms.inventory != nil {
		return ms.inventory, nil
	}

	inv, err := ms.lib.ScanAll()
	if err != nil {
		return nil, err
	}
	if ms.watcher != nil {
		ms.inventory = inv
		ms.invGenerated = time.Now()
	}
	return inv, nil
}

// invalidateInventory drops the cached scan result.
func (ms *MediaServer) invalidateInventory() {
	ms.invMu.Lock()
	ms.inventory = nil
	ms.invMu.Unlock()
}
