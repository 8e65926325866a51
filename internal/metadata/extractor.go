package metadata

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"
)

// Info is the embedded metadata read from an audio file. Empty fields mean
// the tag did not carry them.
type Info struct {
	Title    string
	Artist   string
	Album    string
	Duration int // in seconds
	Size     int64
}

// Extractor reads embedded tags and computes durations for audio files.
type Extractor struct {
	logger *logrus.Logger
}

// NewExtractor creates a new metadata extractor
func NewExtractor() *Extractor {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Extractor{logger: logger}
}

// ExtractAudio reads the embedded tag and duration of an audio file. A
// file without a readable tag is not an error: the returned Info simply
// has empty title/artist and the caller falls back to filename parsing.
func (e *Extractor) ExtractAudio(filePath string) (Info, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return Info{}, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return Info{}, err
	}

	info := Info{Size: stat.Size()}

	dur, err := audioDuration(filePath)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Warn("Failed to calculate duration, setting to 0")
		dur = 0
	}
	info.Duration = int(dur / time.Second)

	meta, err := tag.ReadFrom(file)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Debug("No readable tag, caller should fall back to filename")
		return info, nil
	}

	info.Title = meta.Title()
	info.Artist = meta.Artist()
	info.Album = meta.Album()
	return info, nil
}

// audioDuration dispatches on extension to a per-container parser.
func audioDuration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		return mp3Duration(f)
	case ".flac":
		return flacDuration(path)
	case ".wav":
		return wavDuration(f)
	case ".m4a", ".aac":
		return mp4Duration(f)
	default:
		return 0, fmt.Errorf("unsupported format: %s", ext)
	}
}

// mp3Duration sums per-frame durations. MP3 carries no header-level length,
// so every frame must be walked; a stream where no frame decodes at all is
// an error, a truncated tail is not.
func mp3Duration(r io.Reader) (time.Duration, error) {
	dec := mp3.NewDecoder(r)

	var total time.Duration
	var frame mp3.Frame
	var skipped int
	decoded := false
	for {
		if err := dec.Decode(&frame, &skipped); err != nil {
			if !decoded {
				return 0, fmt.Errorf("no decodable mp3 frames: %w", err)
			}
			return total, nil
		}
		total += frame.Duration()
		decoded = true
	}
}

// flacDuration reads the STREAMINFO block, which states the total sample
// count up front.
func flacDuration(path string) (time.Duration, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	si := stream.Info
	if si.NSamples == 0 || si.SampleRate == 0 {
		return 0, fmt.Errorf("flac stream missing sample info")
	}
	return time.Duration(float64(si.NSamples) / float64(si.SampleRate) * float64(time.Second)), nil
}

// wavDuration lets the decoder derive length from the data chunk size.
func wavDuration(rs io.ReadSeeker) (time.Duration, error) {
	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file")
	}
	return dec.Duration()
}

// mp4Duration scans top-level MP4 boxes for moov/mvhd and reads the movie
// timescale and duration fields. Enough for m4a/aac files produced by
// yt-dlp; not a general MP4 parser.
func mp4Duration(r io.Reader) (time.Duration, error) {
	for {
		size, boxType, err := readBoxHeader(r)
		if err != nil {
			return 0, err
		}
		if boxType != "moov" {
			if err := discard(r, size); err != nil {
				return 0, err
			}
			continue
		}

		remaining := size
		for remaining > 0 {
			subSize, subType, err := readBoxHeader(r)
			if err != nil {
				return 0, err
			}
			if subType == "mvhd" {
				return parseMvhd(r)
			}
			if err := discard(r, subSize); err != nil {
				return 0, err
			}
			remaining -= subSize + 8
		}
		return 0, fmt.Errorf("moov box has no mvhd")
	}
}

// readBoxHeader returns the payload size and four-character type of the
// next box. 64-bit extended sizes and zero sizes are rejected.
func readBoxHeader(r io.Reader) (int64, string, error) {
	var head [8]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return 0, "", err
	}
	size := int64(binary.BigEndian.Uint32(head[0:4]))
	if size < 8 {
		return 0, "", fmt.Errorf("unsupported box size %d", size)
	}
	return size - 8, string(head[4:8]), nil
}

// parseMvhd reads timescale and duration from an mvhd payload whose header
// was already consumed.
func parseMvhd(r io.Reader) (time.Duration, error) {
	var versionFlags [4]byte
	if _, err := io.ReadFull(r, versionFlags[:]); err != nil {
		return 0, err
	}

	// creation and modification times precede the timescale; they and the
	// duration are 64-bit in version 1, 32-bit in version 0
	v1 := versionFlags[0] == 1
	timeFieldLen := int64(8)
	if v1 {
		timeFieldLen = 16
	}
	if err := discard(r, timeFieldLen); err != nil {
		return 0, err
	}

	var tsBuf [4]byte
	if _, err := io.ReadFull(r, tsBuf[:]); err != nil {
		return 0, err
	}
	timescale := binary.BigEndian.Uint32(tsBuf[:])
	if timescale == 0 {
		return 0, fmt.Errorf("mvhd timescale is zero")
	}

	var units uint64
	if v1 {
		var durBuf [8]byte
		if _, err := io.ReadFull(r, durBuf[:]); err != nil {
			return 0, err
		}
		units = binary.BigEndian.Uint64(durBuf[:])
	} else {
		var durBuf [4]byte
		if _, err := io.ReadFull(r, durBuf[:]); err != nil {
			return 0, err
		}
		units = uint64(binary.BigEndian.Uint32(durBuf[:]))
	}
	return time.Duration(float64(units) / float64(timescale) * float64(time.Second)), nil
}

func discard(r io.Reader, n int64) error {
	if n == 0 {
		return nil
	}
	if s, ok := r.(io.Seeker); ok {
		_, err := s.Seek(n, io.SeekCurrent)
		return err
	}
	_, err := io.CopyN(io.Discard, r, n)
	return err
}
