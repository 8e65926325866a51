package library

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pavithrahatharasinghe/MediaMaestro/internal/errs"
	"github.com/pavithrahatharasinghe/MediaMaestro/pkg/models"

	"github.com/sirupsen/logrus"
)

// IngestStatus is the per-file outcome of an ingestion batch.
type IngestStatus string

const (
	IngestCopied   IngestStatus = "copied"
	IngestRenamed  IngestStatus = "renamed" // destination name collided, suffix appended
	IngestRejected IngestStatus = "rejected"
	IngestFailed   IngestStatus = "failed"
)

// IngestOutcome reports what happened to one source file. Every input of a
// batch produces exactly one outcome; one bad file never aborts the batch.
type IngestOutcome struct {
	Source   string        `json:"source"`
	Status   IngestStatus  `json:"status"`
	Format   models.Format `json:"format,omitempty"`
	DestPath string        `json:"destPath,omitempty"`
	SongID   int           `json:"songId,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Ingest copies each source file into the playlist's directory for its
// detected format and records the resulting Song. Existing destination
// files are never overwritten: on a name collision the new file gets a
// numeric " (N)" suffix and the outcome is reported as renamed.
func (l *Library) Ingest(ctx context.Context, sources []string, playlistKey string) ([]IngestOutcome, error) {
	playlist, err := l.db.GetPlaylistByKey(playlistKey)
	if err != nil {
		return nil, err
	}

	mu := l.lockPlaylist(playlist.Key)
	defer mu.Unlock()

	outcomes := make([]IngestOutcome, 0, len(sources))
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, IngestOutcome{
				Source: source, Status: IngestFailed, Error: "cancelled",
			})
			continue
		}
		outcomes = append(outcomes, l.ingestOne(playlist, source))
	}

	return outcomes, nil
}

func (l *Library) ingestOne(playlist models.Playlist, source string) IngestOutcome {
	outcome := IngestOutcome{Source: source}

	format, ok := models.FormatForExtension(source)
	if !ok {
		outcome.Status = IngestRejected
		outcome.Error = errs.Ef(errs.KindInvalidInput, "unrecognized extension %q", filepath.Ext(source)).Error()
		return outcome
	}
	outcome.Format = format

	if _, err := os.Stat(source); err != nil {
		outcome.Status = IngestFailed
		outcome.Error = errs.E(errs.KindIOFailure, "source file unreadable", err).Error()
		return outcome
	}

	destDir := l.FormatDir(playlist.Key, format)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		outcome.Status = IngestFailed
		outcome.Error = errs.E(errs.KindIOFailure, "cannot create destination directory", err).Error()
		return outcome
	}

	destPath, renamed, err := l.copyNoOverwrite(source, destDir)
	if err != nil {
		outcome.Status = IngestFailed
		outcome.Error = errs.E(errs.KindIOFailure, "copy failed", err).Error()
		return outcome
	}
	outcome.DestPath = destPath
	if renamed {
		outcome.Status = IngestRenamed
	} else {
		outcome.Status = IngestCopied
	}

	artist, title := ParseFilename(filepath.Base(source))
	var album string
	var duration int
	var size int64
	if format.IsAudio() {
		if meta, err := l.extractor.ExtractAudio(destPath); err == nil {
			if meta.Title != "" {
				title = meta.Title
			}
			if meta.Artist != "" {
				artist = meta.Artist
			}
			album = meta.Album
			duration = meta.Duration
			size = meta.Size
		}
	}
	if size == 0 {
		if info, err := os.Stat(destPath); err == nil {
			size = info.Size()
		}
	}

	song, err := l.recordFileLocked(playlist, format, destPath, title, artist, album, duration, size, "")
	if err != nil {
		l.logger.WithError(err).WithFields(logrus.Fields{
			"source": source,
			"dest":   destPath,
		}).Error("Copied file but failed to record song")
		outcome.Error = "copied but song record failed: " + err.Error()
		return outcome
	}
	outcome.SongID = song.ID

	return outcome
}

// copyNoOverwrite copies src into destDir keeping its base name. If that
// name is taken, " (N)" is appended to the stem with the smallest free N.
// The destination is opened with O_EXCL so a concurrent writer can never
// clobber an existing file.
func (l *Library) copyNoOverwrite(src, destDir string) (string, bool, error) {
	base := filepath.Base(src)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for attempt := 0; attempt < 1000; attempt++ {
		name := base
		if attempt > 0 {
			name = fmt.Sprintf("%s (%d)%s", stem, attempt, ext)
		}
		destPath := filepath.Join(destDir, name)

		dst, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return "", false, err
		}

		in, err := os.Open(src)
		if err != nil {
			dst.Close()
			os.Remove(destPath)
			return "", false, err
		}

		_, copyErr := io.Copy(dst, in)
		in.Close()
		closeErr := dst.Close()
		if copyErr == nil {
			copyErr = closeErr
		}
		if copyErr != nil {
			os.Remove(destPath)
			return "", false, copyErr
		}

		return destPath, attempt > 0, nil
	}

	return "", false, fmt.Errorf("no free destination name for %s", base)
}
