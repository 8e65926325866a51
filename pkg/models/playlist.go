package models

import (
	"regexp"
	"time"
)

// Category is the fixed set of top-level groupings a playlist can belong
// to. The category determines which top-level directory the playlist maps
// to and is immutable after creation.
type Category string

const (
	CategoryKPop    Category = "kpop"
	CategoryJPop    Category = "jpop"
	CategoryCPop    Category = "cpop"
	CategoryEnglish Category = "english"
	CategoryCustom  Category = "custom"
)

// Categories returns all playlist categories in a fixed order.
func Categories() []Category {
	return []Category{CategoryKPop, CategoryJPop, CategoryCPop, CategoryEnglish, CategoryCustom}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryKPop, CategoryJPop, CategoryCPop, CategoryEnglish, CategoryCustom:
		return true
	}
	return false
}

// DisplayName returns the human-readable category name.
func (c Category) DisplayName() string {
	switch c {
	case CategoryKPop:
		return "K-Pop"
	case CategoryJPop:
		return "J-Pop"
	case CategoryCPop:
		return "C-Pop"
	case CategoryEnglish:
		return "English"
	case CategoryCustom:
		return "Custom"
	}
	return string(c)
}

// keyPattern constrains custom playlist keys so discovered directory names
// can never be path-traversal shaped.
var keyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ValidPlaylistKey reports whether key is an acceptable storage key: either
// one of the category tags or a lowercase alphanumeric custom key.
func ValidPlaylistKey(key string) bool {
	if Category(key).Valid() {
		return true
	}
	return keyPattern.MatchString(key)
}

// Playlist represents a user-created playlist. Key is the short identifier
// for its storage location under the managed tree, distinct from the
// display name. SongCount is derived at read time, never stored.
type Playlist struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	Category  Category  `json:"category"`
	SpotifyID string    `json:"spotifyId,omitempty"`
	SongCount int       `json:"songCount"`
	CreatedAt time.Time `json:"createdAt"`
}
