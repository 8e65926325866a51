package library

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pavithrahatharasinghe/MediaMaestro/internal/errs"
	"github.com/pavithrahatharasinghe/MediaMaestro/pkg/models"
)

// PlaylistInventory is the scan result for a single playlist directory.
type PlaylistInventory struct {
	Key      string                       `json:"key"`
	Entries  []models.MediaDirectoryEntry `json:"entries"`
	Counts   map[models.Format]int        `json:"counts"`
	Balanced bool                         `json:"balanced"`
}

// Inventory is the scan result for the whole managed tree.
type Inventory struct {
	Playlists    map[string]*PlaylistInventory `json:"playlists"`
	TotalFiles   int                           `json:"totalFiles"`
	Unclassified []string                      `json:"unclassified,omitempty"`
	Warnings     []string                      `json:"warnings,omitempty"`
}

// ParseFilename derives artist and title from a media filename. The rule
// is fixed so scans are reproducible: "Artist - Title.ext" splits on the
// first " - " separator; without a separator the whole stem becomes the
// title with an empty artist.
func ParseFilename(name string) (artist, title string) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if idx := strings.Index(stem, " - "); idx >= 0 {
		return strings.TrimSpace(stem[:idx]), strings.TrimSpace(stem[idx+3:])
	}
	return "", strings.TrimSpace(stem)
}

// Scan produces the inventory of a single playlist directory. Unreadable
// format subdirectories and recognized files sitting in the wrong format
// subdirectory are skipped with a recorded warning; files with
// unrecognized extensions are reported as unclassified, never silently
// dropped.
func (l *Library) Scan(playlistKey string) (*PlaylistInventory, []string, []string, error) {
	if !models.ValidPlaylistKey(playlistKey) {
		return nil, nil, nil, errs.Ef(errs.KindInvalidInput, "invalid playlist key %q", playlistKey)
	}

	inv := &PlaylistInventory{
		Key:    playlistKey,
		Counts: make(map[models.Format]int),
	}
	var unclassified, warnings []string

	for _, format := range models.Formats() {
		dir := l.FormatDir(playlistKey, format)
		dirents, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			warnings = append(warnings, dir+": "+err.Error())
			continue
		}

		for _, de := range dirents {
			if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
				continue
			}
			path := filepath.Join(dir, de.Name())

			detected, ok := models.FormatForExtension(de.Name())
			if !ok {
				unclassified = append(unclassified, path)
				continue
			}
			if detected != format {
				warnings = append(warnings, path+": "+string(detected)+" file in "+string(format)+" directory")
				continue
			}

			entry := models.MediaDirectoryEntry{
				PlaylistKey: playlistKey,
				Format:      format,
				Path:        path,
			}
			entry.Artist, entry.Title = ParseFilename(de.Name())
			if info, err := de.Info(); err == nil {
				entry.Size = info.Size()
			}

			// embedded tags, when readable, win over the filename parse
			if format.IsAudio() {
				if meta, err := l.extractor.ExtractAudio(path); err == nil {
					if meta.Title != "" {
						entry.Title = meta.Title
					}
					if meta.Artist != "" {
						entry.Artist = meta.Artist
					}
					entry.Album = meta.Album
					entry.Duration = meta.Duration
				}
			}

			inv.Entries = append(inv.Entries, entry)
			inv.Counts[format]++
		}
	}

	sort.Slice(inv.Entries, func(i, j int) bool { return inv.Entries[i].Path < inv.Entries[j].Path })

	inv.Balanced = inv.Counts[models.FormatLossyAudio] == inv.Counts[models.FormatLosslessAudio] &&
		inv.Counts[models.FormatLosslessAudio] == inv.Counts[models.FormatVideo]

	return inv, unclassified, warnings, nil
}

// ScanAll walks the managed tree root and scans every playlist directory
// whose name is a valid playlist key. Directory names that are
// traversal-shaped or otherwise invalid are rejected with a warning rather
// than walked.
func (l *Library) ScanAll() (*Inventory, error) {
	result := &Inventory{Playlists: make(map[string]*PlaylistInventory)}

	dirents, err := os.ReadDir(l.rootDir)
	if err != nil {
		return nil, errs.E(errs.KindIOFailure, "cannot read media root", err)
	}

	var keys []string
	for _, de := range dirents {
		if !de.IsDir() {
			continue
		}
		if !models.ValidPlaylistKey(de.Name()) {
			result.Warnings = append(result.Warnings, "ignoring invalid playlist directory: "+de.Name())
			continue
		}
		keys = append(keys, de.Name())
	}
	sort.Strings(keys)

	for _, key := range keys {
		inv, unclassified, warnings, err := l.Scan(key)
		if err != nil {
			result.Warnings = append(result.Warnings, key+": "+err.Error())
			continue
		}
		result.Playlists[key] = inv
		result.TotalFiles += len(inv.Entries)
		result.Unclassified = append(result.Unclassified, unclassified...)
		result.Warnings = append(result.Warnings, warnings...)
	}

	return result, nil
}

// FormatGap describes one song's per-format presence within a playlist.
type FormatGap struct {
	Title   string          `json:"title"`
	Artist  string          `json:"artist"`
	Have    []models.Format `json:"have"`
	Missing []models.Format `json:"missing,omitempty"`
}

// MissingFormats groups a playlist's scanned files by normalized
// artist/title and reports which formats each song is missing.
func (l *Library) MissingFormats(playlistKey string) ([]FormatGap, error) {
	inv, _, _, err := l.Scan(playlistKey)
	if err != nil {
		return nil, err
	}

	type group struct {
		title, artist string
		have          map[models.Format]bool
	}
	groups := make(map[string]*group)
	var order []string

	for _, entry := range inv.Entries {
		key := normalizeTrack(entry.Artist, entry.Title)
		g, ok := groups[key]
		if !ok {
			g = &group{title: entry.Title, artist: entry.Artist, have: make(map[models.Format]bool)}
			groups[key] = g
			order = append(order, key)
		}
		g.have[entry.Format] = true
	}
	sort.Strings(order)

	gaps := make([]FormatGap, 0, len(order))
	for _, key := range order {
		g := groups[key]
		gap := FormatGap{Title: g.title, Artist: g.artist}
		for _, f := range models.Formats() {
			if g.have[f] {
				gap.Have = append(gap.Have, f)
			} else {
				gap.Missing = append(gap.Missing, f)
			}
		}
		gaps = append(gaps, gap)
	}

	return gaps, nil
}
