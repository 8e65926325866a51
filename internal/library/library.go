// Package library implements the media reconciliation engine: scanning the
// managed tree, matching local files against catalog tracks, computing
// per-playlist format balance and ingesting external files.
package library

import (
	"path/filepath"
	"sync"

	"github.com/pavithrahatharasinghe/MediaMaestro/internal/database"
	"github.com/pavithrahatharasinghe/MediaMaestro/internal/metadata"
	"github.com/pavithrahatharasinghe/MediaMaestro/pkg/models"

	"github.com/sirupsen/logrus"
)

// Library owns the managed media tree rooted at rootDir. Scans are
// read-only and freely parallelizable; mutations (ingest, download
// completion) are serialized per playlist via playlistLocks.
type Library struct {
	rootDir   string
	db        *database.Database
	extractor *metadata.Extractor
	logger    *logrus.Logger

	playlistLocks sync.Map // playlist key -> *sync.Mutex
}

// NewLibrary creates a library manager over the given managed tree root.
func NewLibrary(rootDir string, db *database.Database) *Library {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Library{
		rootDir:   rootDir,
		db:        db,
		extractor: metadata.NewExtractor(),
		logger:    logger,
	}
}

// Root returns the managed tree root directory.
func (l *Library) Root() string {
	return l.rootDir
}

// PlaylistDir returns the on-disk directory for a playlist key.
func (l *Library) PlaylistDir(key string) string {
	return filepath.Join(l.rootDir, key)
}

// FormatDir returns the on-disk directory for one format of a playlist.
func (l *Library) FormatDir(key string, format models.Format) string {
	return filepath.Join(l.rootDir, key, format.Subdir())
}

// lockPlaylist acquires the mutation lock for a playlist key. Unrelated
// playlists proceed concurrently.
func (l *Library) lockPlaylist(key string) *sync.Mutex {
	mu, _ := l.playlistLocks.LoadOrStore(key, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m
}

// RecordFile creates or updates the Song for a file that has just been
// placed into the managed tree, matched by title/artist within the
// playlist. It acquires the playlist's mutation lock, so the
// find-or-create is race-free against a concurrent Ingest or another
// completion for the same song.
func (l *Library) RecordFile(playlist models.Playlist, format models.Format, destPath, title, artist, album string, duration int, size int64, youtubeID string) (models.Song, error) {
	mu := l.lockPlaylist(playlist.Key)
	defer mu.Unlock()
	return l.recordFileLocked(playlist, format, destPath, title, artist, album, duration, size, youtubeID)
}

// recordFileLocked is RecordFile for callers that already hold the
// playlist's mutation lock (Ingest).
func (l *Library) recordFileLocked(playlist models.Playlist, format models.Format, destPath, title, artist, album string, duration int, size int64, youtubeID string) (models.Song, error) {
	song, err := l.db.FindSong(playlist.ID, title, artist)
	if err != nil {
		// no existing song: create one
		song = models.Song{
			Title:      title,
			Artist:     artist,
			Album:      album,
			PlaylistID: playlist.ID,
		}
	}

	song.SetFormatPath(format, destPath)
	if duration > 0 {
		song.Duration = duration
	}
	if size > 0 {
		song.FileSize = size
	}
	if album != "" {
		song.Album = album
	}
	if youtubeID != "" {
		song.YouTubeID = youtubeID
	}

	if err := l.db.SaveSong(&song); err != nil {
		return models.Song{}, err
	}

	l.logger.WithFields(logrus.Fields{
		"playlist": playlist.Key,
		"format":   format,
		"title":    title,
		"artist":   artist,
		"song_id":  song.ID,
	}).Info("Recorded song format path")

	return song, nil
}
