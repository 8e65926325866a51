package models

import (
	"path/filepath"
	"strings"
)

// Format identifies one of the three supported media kinds. The string
// value doubles as the on-disk subdirectory name inside a playlist folder.
type Format string

const (
	FormatLossyAudio    Format = "lossy-audio"
	FormatLosslessAudio Format = "lossless-audio"
	FormatVideo         Format = "video"
)

// Formats returns all supported formats in a fixed order.
func Formats() []Format {
	return []Format{FormatLossyAudio, FormatLosslessAudio, FormatVideo}
}

// Valid reports whether f is one of the supported formats.
func (f Format) Valid() bool {
	switch f {
	case FormatLossyAudio, FormatLosslessAudio, FormatVideo:
		return true
	}
	return false
}

// Subdir returns the format's directory name under a playlist folder.
func (f Format) Subdir() string {
	return string(f)
}

var (
	lossyExtensions    = []string{".mp3", ".m4a", ".aac", ".ogg"}
	losslessExtensions = []string{".flac", ".wav", ".alac"}
	videoExtensions    = []string{".mp4", ".mkv", ".avi", ".webm", ".mov"}
)

// FormatForExtension classifies a file path by its extension into exactly
// one format. The second return value is false for unrecognized extensions.
func FormatForExtension(path string) (Format, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range lossyExtensions {
		if ext == e {
			return FormatLossyAudio, true
		}
	}
	for _, e := range losslessExtensions {
		if ext == e {
			return FormatLosslessAudio, true
		}
	}
	for _, e := range videoExtensions {
		if ext == e {
			return FormatVideo, true
		}
	}
	return "", false
}

// IsAudio reports whether the format is one of the two audio kinds.
func (f Format) IsAudio() bool {
	return f == FormatLossyAudio || f == FormatLosslessAudio
}
