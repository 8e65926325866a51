package models

// MediaDirectoryEntry is one file discovered by a scan of the managed
// tree. Entries are derived state: they are regenerated on every scan and
// never persisted.
type MediaDirectoryEntry struct {
	PlaylistKey string `json:"playlistKey"`
	Format      Format `json:"format"`
	Path        string `json:"path"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album,omitempty"`
	Duration    int    `json:"duration,omitempty"` // in seconds
	Size        int64  `json:"size"`
}

// ExternalTrackRecord is a track fetched from the external catalog. Only
// the external identifier is ever stored locally (on the matching Song).
type ExternalTrackRecord struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Artists  []string `json:"artists"`
	Album    string   `json:"album,omitempty"`
	Duration int      `json:"duration,omitempty"` // in seconds
}
