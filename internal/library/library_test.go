package library

import (
	"fmt"
	"sync"
	"testing"

	"github.com/pavithrahatharasinghe/MediaMaestro/pkg/models"
)

func TestRecordFileUpdatesExistingSong(t *testing.T) {
	lib, db := newTestLibrary(t, "kpop")
	playlist, err := db.GetPlaylistByKey("kpop")
	if err != nil {
		t.Fatalf("GetPlaylistByKey failed: %v", err)
	}

	first, err := lib.RecordFile(playlist, models.FormatLossyAudio,
		"/media/kpop/lossy-audio/IU - Lilac.mp3", "Lilac", "IU", "Lilac", 214, 4096, "")
	if err != nil {
		t.Fatalf("RecordFile failed: %v", err)
	}

	second, err := lib.RecordFile(playlist, models.FormatLosslessAudio,
		"/media/kpop/lossless-audio/IU - Lilac.flac", "Lilac", "IU", "", 0, 0, "")
	if err != nil {
		t.Fatalf("RecordFile failed: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("Second format created song %d, want update of song %d", second.ID, first.ID)
	}
	if second.LossyPath == "" || second.LosslessPath == "" {
		t.Errorf("Song missing a format path: %+v", second)
	}
}

func TestRecordFileConcurrentSameSong(t *testing.T) {
	lib, db := newTestLibrary(t, "kpop")
	playlist, err := db.GetPlaylistByKey("kpop")
	if err != nil {
		t.Fatalf("GetPlaylistByKey failed: %v", err)
	}

	// simultaneous recordings of the same song must collapse onto one row,
	// not race past each other's lookups
	var wg sync.WaitGroup
	errCh := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			format := models.Formats()[i%len(models.Formats())]
			path := fmt.Sprintf("/media/kpop/%s/IU - Lilac.%d", format, i)
			if _, err := lib.RecordFile(playlist, format,
				path, "Lilac", "IU", "", 214, 4096, ""); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("RecordFile failed: %v", err)
	}

	songs, err := db.GetSongsByPlaylist(playlist.ID)
	if err != nil {
		t.Fatalf("GetSongsByPlaylist failed: %v", err)
	}
	if len(songs) != 1 {
		t.Fatalf("Expected 1 song row, got %d", len(songs))
	}
	song := songs[0]
	if song.LossyPath == "" || song.LosslessPath == "" || song.VideoPath == "" {
		t.Errorf("Expected all format paths set, got %+v", song)
	}
}
