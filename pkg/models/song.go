package models

import "time"

// Song represents a single piece of music tracked by the library. Each of
// the three format paths is independently optional (empty means the format
// is not present locally); a Song with no format path at all is invalid
// and must never be persisted.
type Song struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album,omitempty"`

	LossyPath    string `json:"lossyPath,omitempty"`
	LosslessPath string `json:"losslessPath,omitempty"`
	VideoPath    string `json:"videoPath,omitempty"`

	SpotifyID string `json:"spotifyId,omitempty"`
	YouTubeID string `json:"youtubeId,omitempty"`

	Duration int    `json:"duration,omitempty"` // in seconds
	FileSize int64  `json:"fileSize,omitempty"`
	Quality  string `json:"quality,omitempty"`

	PlaylistID int       `json:"playlistId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// FormatPath returns the stored path for the given format, empty if the
// song does not have that format locally.
func (s *Song) FormatPath(f Format) string {
	switch f {
	case FormatLossyAudio:
		return s.LossyPath
	case FormatLosslessAudio:
		return s.LosslessPath
	case FormatVideo:
		return s.VideoPath
	}
	return ""
}

// SetFormatPath records path as the song's file for the given format.
func (s *Song) SetFormatPath(f Format, path string) {
	switch f {
	case FormatLossyAudio:
		s.LossyPath = path
	case FormatLosslessAudio:
		s.LosslessPath = path
	case FormatVideo:
		s.VideoPath = path
	}
}

// HasAnyFormat reports whether at least one format path is present.
func (s *Song) HasAnyFormat() bool {
	return s.LossyPath != "" || s.LosslessPath != "" || s.VideoPath != ""
}

// MissingFormats lists the formats the song has no local file for.
func (s *Song) MissingFormats() []Format {
	var missing []Format
	for _, f := range Formats() {
		if s.FormatPath(f) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}
