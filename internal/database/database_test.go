package database

import (
	"path/filepath"
	"testing"

	"github.com/pavithrahatharasinghe/MediaMaestro/internal/errs"
	"github.com/pavithrahatharasinghe/MediaMaestro/pkg/models"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPlaylists(t *testing.T) {
	db := newTestDatabase(t)

	t.Run("CreateAndGet", func(t *testing.T) {
		id, err := db.CreatePlaylist(models.Playlist{
			Name:     "K-Pop Favorites",
			Key:      "kpop",
			Category: models.CategoryKPop,
		})
		if err != nil {
			t.Fatalf("Failed to create playlist: %v", err)
		}

		byID, err := db.GetPlaylistByID(id)
		if err != nil {
			t.Fatalf("Failed to get playlist by ID: %v", err)
		}
		if byID.Name != "K-Pop Favorites" || byID.Key != "kpop" {
			t.Errorf("Got %+v", byID)
		}
		if byID.SongCount != 0 {
			t.Errorf("Fresh playlist song count = %d, want 0", byID.SongCount)
		}

		byKey, err := db.GetPlaylistByKey("kpop")
		if err != nil {
			t.Fatalf("Failed to get playlist by key: %v", err)
		}
		if byKey.ID != id {
			t.Errorf("Key lookup returned ID %d, want %d", byKey.ID, id)
		}
	})

	t.Run("DuplicateKeyConflicts", func(t *testing.T) {
		_, err := db.CreatePlaylist(models.Playlist{
			Name:     "Another",
			Key:      "kpop",
			Category: models.CategoryKPop,
		})
		if !errs.Is(err, errs.KindConflict) {
			t.Errorf("Duplicate key error = %v, want conflict", err)
		}
	})

	t.Run("InvalidCategory", func(t *testing.T) {
		_, err := db.CreatePlaylist(models.Playlist{
			Name:     "Rock",
			Key:      "rock-hits",
			Category: "rock",
		})
		if !errs.Is(err, errs.KindInvalidInput) {
			t.Errorf("Invalid category error = %v, want invalid_input", err)
		}
	})

	t.Run("InvalidKey", func(t *testing.T) {
		_, err := db.CreatePlaylist(models.Playlist{
			Name:     "Bad",
			Key:      "../escape",
			Category: models.CategoryCustom,
		})
		if !errs.Is(err, errs.KindInvalidInput) {
			t.Errorf("Invalid key error = %v, want invalid_input", err)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		if _, err := db.GetPlaylistByID(9999); !errs.Is(err, errs.KindNotFound) {
			t.Errorf("Missing playlist error = %v, want not_found", err)
		}
		if _, err := db.GetPlaylistByKey("absent"); !errs.Is(err, errs.KindNotFound) {
			t.Errorf("Missing key error = %v, want not_found", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		id, err := db.CreatePlaylist(models.Playlist{
			Name:     "Temporary",
			Key:      "temp",
			Category: models.CategoryCustom,
		})
		if err != nil {
			t.Fatalf("Failed to create playlist: %v", err)
		}
		if err := db.DeletePlaylist(id); err != nil {
			t.Fatalf("Failed to delete playlist: %v", err)
		}
		if err := db.DeletePlaylist(id); !errs.Is(err, errs.KindNotFound) {
			t.Errorf("Second delete error = %v, want not_found", err)
		}
	})
}

func TestSongs(t *testing.T) {
	db := newTestDatabase(t)

	playlistID, err := db.CreatePlaylist(models.Playlist{
		Name:     "J-Pop",
		Key:      "jpop",
		Category: models.CategoryJPop,
	})
	if err != nil {
		t.Fatalf("Failed to create playlist: %v", err)
	}

	t.Run("InsertRequiresFormat", func(t *testing.T) {
		song := models.Song{Title: "Idol", Artist: "YOASOBI", PlaylistID: playlistID}
		if err := db.SaveSong(&song); !errs.Is(err, errs.KindInvalidInput) {
			t.Errorf("Zero-format insert error = %v, want invalid_input", err)
		}
	})

	t.Run("InsertAndFind", func(t *testing.T) {
		song := models.Song{
			Title:      "Idol",
			Artist:     "YOASOBI",
			Album:      "The Book 3",
			LossyPath:  "/m/jpop/lossy-audio/YOASOBI - Idol.mp3",
			Duration:   213,
			PlaylistID: playlistID,
		}
		if err := db.SaveSong(&song); err != nil {
			t.Fatalf("Failed to save song: %v", err)
		}
		if song.ID == 0 {
			t.Fatal("SaveSong did not assign an ID")
		}

		// lookup is case-insensitive
		found, err := db.FindSong(playlistID, "idol", "yoasobi")
		if err != nil {
			t.Fatalf("Case-insensitive find failed: %v", err)
		}
		if found.ID != song.ID {
			t.Errorf("Found ID %d, want %d", found.ID, song.ID)
		}
		if found.Album != "The Book 3" || found.Duration != 213 {
			t.Errorf("Fields lost on round trip: %+v", found)
		}
	})

	t.Run("UpdateAddsFormat", func(t *testing.T) {
		song, err := db.FindSong(playlistID, "Idol", "YOASOBI")
		if err != nil {
			t.Fatalf("Find failed: %v", err)
		}

		song.LosslessPath = "/m/jpop/lossless-audio/YOASOBI - Idol.flac"
		if err := db.SaveSong(&song); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		updated, err := db.GetSongByID(song.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if updated.LossyPath == "" || updated.LosslessPath == "" {
			t.Errorf("Both format paths should be present: %+v", updated)
		}
	})

	t.Run("SongCountIsDerived", func(t *testing.T) {
		p, err := db.GetPlaylistByID(playlistID)
		if err != nil {
			t.Fatalf("Get playlist failed: %v", err)
		}
		if p.SongCount != 1 {
			t.Errorf("Song count = %d, want 1", p.SongCount)
		}
	})

	t.Run("ClearingAllFormatsDeletes", func(t *testing.T) {
		song, err := db.FindSong(playlistID, "Idol", "YOASOBI")
		if err != nil {
			t.Fatalf("Find failed: %v", err)
		}

		song.LossyPath = ""
		song.LosslessPath = ""
		song.VideoPath = ""
		if err := db.SaveSong(&song); err != nil {
			t.Fatalf("Save with no formats failed: %v", err)
		}

		if _, err := db.GetSongByID(song.ID); !errs.Is(err, errs.KindNotFound) {
			t.Errorf("Song with no format paths must be removed, got %v", err)
		}
	})
}
