package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pavithrahatharasinghe/MediaMaestro/internal/errs"
	"github.com/pavithrahatharasinghe/MediaMaestro/pkg/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// Database wraps a *sql.DB providing higher-level helper methods for the
// playlist and song tables. It is safe for concurrent use because the
// underlying *sql.DB is concurrency-safe.
type Database struct {
	conn   *sql.DB
	logger *logrus.Logger

	// Prepared statements for hot paths
	getSongByIDStmt   *sql.Stmt
	findSongStmt      *sql.Stmt
	updatePathsStmt   *sql.Stmt
	insertSongStmt    *sql.Stmt
	playlistByIDStmt  *sql.Stmt
	playlistByKeyStmt *sql.Stmt
}

// NewDatabase opens (or creates) a SQLite database at the provided path and
// ensures all required tables and indices exist. It also applies lightweight
// performance-oriented pragmas (WAL, cache sizing). Caller should Close() it
// when finished.
func NewDatabase(dbPath string) (*Database, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	conn, err := sql.Open("sqlite3", dbPath+"?cache=shared&mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works better with fewer connections
	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(15 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=2000;",
		"PRAGMA temp_store=memory;",
		"PRAGMA foreign_keys=ON;",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	db := &Database{
		conn:   conn,
		logger: logger,
	}

	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := db.prepareStatements(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithField("db_path", dbPath).Info("Database initialized successfully")
	return db, nil
}

// createTables creates tables and indices if they do not already exist.
// This is idempotent and safe to call multiple times.
func (db *Database) createTables() error {
	playlistsTable := `
	CREATE TABLE IF NOT EXISTS playlists (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		key TEXT NOT NULL UNIQUE,
		category TEXT NOT NULL,
		spotify_id TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	songsTable := `
	CREATE TABLE IF NOT EXISTS songs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		artist TEXT NOT NULL,
		album TEXT,
		lossy_path TEXT,
		lossless_path TEXT,
		video_path TEXT,
		spotify_id TEXT,
		youtube_id TEXT,
		duration INTEGER DEFAULT 0,
		file_size INTEGER DEFAULT 0,
		quality TEXT,
		playlist_id INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (playlist_id) REFERENCES playlists(id) ON DELETE CASCADE
	);`

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_songs_playlist ON songs(playlist_id);",
		"CREATE INDEX IF NOT EXISTS idx_songs_title_artist ON songs(playlist_id, title, artist);",
		"CREATE INDEX IF NOT EXISTS idx_songs_spotify ON songs(spotify_id);",
		"CREATE INDEX IF NOT EXISTS idx_playlists_key ON playlists(key);",
	}

	for _, table := range []string{playlistsTable, songsTable} {
		if _, err := db.conn.Exec(table); err != nil {
			return err
		}
	}

	for _, index := range indices {
		if _, err := db.conn.Exec(index); err != nil {
			return err
		}
	}

	return nil
}

// prepareStatements prepares commonly used SQL statements
func (db *Database) prepareStatements() error {
	var err error

	const songColumns = `id, title, artist, COALESCE(album, ''), COALESCE(lossy_path, ''),
		COALESCE(lossless_path, ''), COALESCE(video_path, ''), COALESCE(spotify_id, ''),
		COALESCE(youtube_id, ''), duration, file_size, COALESCE(quality, ''), playlist_id,
		created_at, updated_at`

	db.getSongByIDStmt, err = db.conn.Prepare(
		`SELECT ` + songColumns + ` FROM songs WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get song statement: %w", err)
	}

	db.findSongStmt, err = db.conn.Prepare(
		`SELECT ` + songColumns + ` FROM songs
		 WHERE playlist_id = ? AND LOWER(title) = LOWER(?) AND LOWER(artist) = LOWER(?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare find song statement: %w", err)
	}

	db.updatePathsStmt, err = db.conn.Prepare(
		`UPDATE songs SET lossy_path = NULLIF(?, ''), lossless_path = NULLIF(?, ''),
		 video_path = NULLIF(?, ''), duration = ?, file_size = ?, quality = NULLIF(?, ''),
		 spotify_id = COALESCE(NULLIF(?, ''), spotify_id),
		 youtube_id = COALESCE(NULLIF(?, ''), youtube_id),
		 updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare update paths statement: %w", err)
	}

	db.insertSongStmt, err = db.conn.Prepare(
		`INSERT INTO songs (title, artist, album, lossy_path, lossless_path, video_path,
		 spotify_id, youtube_id, duration, file_size, quality, playlist_id)
		 VALUES (?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''),
		 NULLIF(?, ''), NULLIF(?, ''), ?, ?, NULLIF(?, ''), ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert song statement: %w", err)
	}

	db.playlistByIDStmt, err = db.conn.Prepare(
		`SELECT p.id, p.name, p.key, p.category, COALESCE(p.spotify_id, ''), p.created_at,
		 (SELECT COUNT(*) FROM songs s WHERE s.playlist_id = p.id)
		 FROM playlists p WHERE p.id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare playlist by ID statement: %w", err)
	}

	db.playlistByKeyStmt, err = db.conn.Prepare(
		`SELECT p.id, p.name, p.key, p.category, COALESCE(p.spotify_id, ''), p.created_at,
		 (SELECT COUNT(*) FROM songs s WHERE s.playlist_id = p.id)
		 FROM playlists p WHERE p.key = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare playlist by key statement: %w", err)
	}

	return nil
}

// CreatePlaylist inserts a new playlist and returns its database ID. The
// category is fixed at creation and never updated afterwards.
func (db *Database) CreatePlaylist(p models.Playlist) (int, error) {
	if !p.Category.Valid() {
		return 0, errs.Ef(errs.KindInvalidInput, "invalid category %q", p.Category)
	}
	if !models.ValidPlaylistKey(p.Key) {
		return 0, errs.Ef(errs.KindInvalidInput, "invalid playlist key %q", p.Key)
	}

	res, err := db.conn.Exec(
		`INSERT INTO playlists (name, key, category, spotify_id) VALUES (?, ?, ?, NULLIF(?, ''))`,
		p.Name, p.Key, string(p.Category), p.SpotifyID)
	if err != nil {
		return 0, errs.E(errs.KindConflict, "playlist already exists or cannot be created", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	db.logger.WithFields(logrus.Fields{
		"playlist": p.Name,
		"key":      p.Key,
		"category": p.Category,
	}).Info("Created playlist")

	return int(id), nil
}

func scanPlaylist(row *sql.Row) (models.Playlist, error) {
	var p models.Playlist
	var category string
	err := row.Scan(&p.ID, &p.Name, &p.Key, &category, &p.SpotifyID, &p.CreatedAt, &p.SongCount)
	p.Category = models.Category(category)
	return p, err
}

// GetPlaylistByID returns the playlist with the given ID, including its
// derived song count.
func (db *Database) GetPlaylistByID(id int) (models.Playlist, error) {
	p, err := scanPlaylist(db.playlistByIDStmt.QueryRow(id))
	if err == sql.ErrNoRows {
		return p, errs.NotFound("playlist", id)
	}
	return p, err
}

// GetPlaylistByKey returns the playlist with the given storage key.
func (db *Database) GetPlaylistByKey(key string) (models.Playlist, error) {
	p, err := scanPlaylist(db.playlistByKeyStmt.QueryRow(key))
	if err == sql.ErrNoRows {
		return p, errs.NotFound("playlist", key)
	}
	return p, err
}

// GetAllPlaylists returns every playlist with derived song counts.
func (db *Database) GetAllPlaylists() ([]models.Playlist, error) {
	rows, err := db.conn.Query(
		`SELECT p.id, p.name, p.key, p.category, COALESCE(p.spotify_id, ''), p.created_at,
		 (SELECT COUNT(*) FROM songs s WHERE s.playlist_id = p.id)
		 FROM playlists p ORDER BY p.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var playlists []models.Playlist
	for rows.Next() {
		var p models.Playlist
		var category string
		if err := rows.Scan(&p.ID, &p.Name, &p.Key, &category, &p.SpotifyID, &p.CreatedAt, &p.SongCount); err != nil {
			return nil, err
		}
		p.Category = models.Category(category)
		playlists = append(playlists, p)
	}
	return playlists, rows.Err()
}

// DeletePlaylist removes a playlist record and its song rows. Files on
// disk are intentionally left untouched.
func (db *Database) DeletePlaylist(id int) error {
	res, err := db.conn.Exec(`DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.NotFound("playlist", id)
	}
	db.logger.WithField("playlist_id", id).Info("Deleted playlist (files retained)")
	return nil
}

func scanSongRow(scan func(...interface{}) error) (models.Song, error) {
	var s models.Song
	err := scan(&s.ID, &s.Title, &s.Artist, &s.Album, &s.LossyPath, &s.LosslessPath,
		&s.VideoPath, &s.SpotifyID, &s.YouTubeID, &s.Duration, &s.FileSize, &s.Quality,
		&s.PlaylistID, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// GetSongByID returns the song with the given ID.
func (db *Database) GetSongByID(id int) (models.Song, error) {
	s, err := scanSongRow(db.getSongByIDStmt.QueryRow(id).Scan)
	if err == sql.ErrNoRows {
		return s, errs.NotFound("song", id)
	}
	return s, err
}

// FindSong looks a song up by case-insensitive title/artist within a
// playlist. Returns KindNotFound when no match exists.
func (db *Database) FindSong(playlistID int, title, artist string) (models.Song, error) {
	s, err := scanSongRow(db.findSongStmt.QueryRow(playlistID, title, artist).Scan)
	if err == sql.ErrNoRows {
		return s, errs.NotFound("song", title)
	}
	return s, err
}

// GetSongsByPlaylist returns all songs in a playlist ordered by artist and
// title.
func (db *Database) GetSongsByPlaylist(playlistID int) ([]models.Song, error) {
	rows, err := db.conn.Query(
		`SELECT id, title, artist, COALESCE(album, ''), COALESCE(lossy_path, ''),
		 COALESCE(lossless_path, ''), COALESCE(video_path, ''), COALESCE(spotify_id, ''),
		 COALESCE(youtube_id, ''), duration, file_size, COALESCE(quality, ''), playlist_id,
		 created_at, updated_at
		 FROM songs WHERE playlist_id = ? ORDER BY artist, title`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var songs []models.Song
	for rows.Next() {
		s, err := scanSongRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		songs = append(songs, s)
	}
	return songs, rows.Err()
}

// SaveSong persists the song's current state. A song with no remaining
// format path is deleted rather than kept: zero-format songs must never
// persist. New songs (ID zero) must carry at least one format path.
func (db *Database) SaveSong(s *models.Song) error {
	if s.ID == 0 {
		if !s.HasAnyFormat() {
			return errs.Ef(errs.KindInvalidInput, "song %q has no format path", s.Title)
		}
		res, err := db.insertSongStmt.Exec(s.Title, s.Artist, s.Album, s.LossyPath,
			s.LosslessPath, s.VideoPath, s.SpotifyID, s.YouTubeID, s.Duration,
			s.FileSize, s.Quality, s.PlaylistID)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		s.ID = int(id)
		return nil
	}

	if !s.HasAnyFormat() {
		_, err := db.conn.Exec(`DELETE FROM songs WHERE id = ?`, s.ID)
		if err == nil {
			db.logger.WithField("song_id", s.ID).Info("Removed song with no remaining format paths")
		}
		return err
	}

	_, err := db.updatePathsStmt.Exec(s.LossyPath, s.LosslessPath, s.VideoPath,
		s.Duration, s.FileSize, s.Quality, s.SpotifyID, s.YouTubeID, s.ID)
	return err
}

// Close releases prepared statements and the underlying connection.
func (db *Database) Close() error {
	stmts := []*sql.Stmt{
		db.getSongByIDStmt, db.findSongStmt, db.updatePathsStmt,
		db.insertSongStmt, db.playlistByIDStmt, db.playlistByKeyStmt,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return db.conn.Close()
}
