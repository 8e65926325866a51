package library

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pavithrahatharasinghe/MediaMaestro/pkg/models"

	"github.com/agnivade/levenshtein"
)

// matchThreshold is the minimum similarity for an external track and a
// local entry to be considered the same song.
const matchThreshold = 0.80

var (
	bracketPattern    = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	nonWordPattern    = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// normalizeString lowercases s, strips bracketed annotations such as
// "(Official Video)" or "[Remastered]", drops punctuation and collapses
// whitespace.
func normalizeString(s string) string {
	s = strings.ToLower(s)
	s = bracketPattern.ReplaceAllString(s, " ")
	s = nonWordPattern.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// normalizeTrack builds the comparison key "artist - title" in normalized
// form.
func normalizeTrack(artist, title string) string {
	return strings.TrimSpace(normalizeString(artist) + " - " + normalizeString(title))
}

// similarity is the normalized Levenshtein ratio in [0,1]: identical
// strings score 1, fully dissimilar strings score 0.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// Match pairs one external track with its best local entry.
type Match struct {
	External   models.ExternalTrackRecord `json:"external"`
	Local      models.MediaDirectoryEntry `json:"local"`
	Confidence float64                    `json:"confidence"`
}

// MatchReport is the outcome of cross-referencing a playlist's scanned
// files against an external catalog playlist.
type MatchReport struct {
	Matched   []Match                      `json:"matched"`
	Missing   []models.ExternalTrackRecord `json:"missing"`   // missing from library
	LocalOnly []models.MediaDirectoryEntry `json:"localOnly"` // matching no external track
}

// MatchTracks matches scanned entries against external catalog tracks.
// For each external track the highest-scoring local entry above the
// threshold wins; ties are broken by exact normalized equality first, then
// by shortest edit distance, then by path so identical inputs always yield
// identical assignments.
func MatchTracks(entries []models.MediaDirectoryEntry, external []models.ExternalTrackRecord) MatchReport {
	local := make([]models.MediaDirectoryEntry, len(entries))
	copy(local, entries)
	sort.Slice(local, func(i, j int) bool { return local[i].Path < local[j].Path })

	localKeys := make([]string, len(local))
	for i, entry := range local {
		localKeys[i] = normalizeTrack(entry.Artist, entry.Title)
	}

	report := MatchReport{}
	matchedLocal := make([]bool, len(local))

	for _, ext := range external {
		extKey := normalizeTrack(strings.Join(ext.Artists, ", "), ext.Title)

		bestIdx := -1
		bestScore := 0.0
		bestExact := false
		bestDist := 0

		for i, key := range localKeys {
			score := similarity(extKey, key)
			if score < matchThreshold {
				continue
			}
			exact := extKey == key
			dist := levenshtein.ComputeDistance(extKey, key)

			better := false
			switch {
			case bestIdx < 0:
				better = true
			case exact != bestExact:
				better = exact
			case score != bestScore:
				better = score > bestScore
			case dist != bestDist:
				better = dist < bestDist
			}
			// equal on every criterion: the earlier (path-sorted) entry stays

			if better {
				bestIdx, bestScore, bestExact, bestDist = i, score, exact, dist
			}
		}

		if bestIdx < 0 {
			report.Missing = append(report.Missing, ext)
			continue
		}
		matchedLocal[bestIdx] = true
		report.Matched = append(report.Matched, Match{
			External:   ext,
			Local:      local[bestIdx],
			Confidence: bestScore,
		})
	}

	for i, entry := range local {
		if !matchedLocal[i] {
			report.LocalOnly = append(report.LocalOnly, entry)
		}
	}

	return report
}

// MatchExternal scans the playlist and matches its entries against the
// given external tracks.
func (l *Library) MatchExternal(playlistKey string, external []models.ExternalTrackRecord) (MatchReport, error) {
	inv, _, _, err := l.Scan(playlistKey)
	if err != nil {
		return MatchReport{}, err
	}
	return MatchTracks(inv.Entries, external), nil
}
