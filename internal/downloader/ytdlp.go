package downloader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pavithrahatharasinghe/MediaMaestro/internal/config"
	"github.com/pavithrahatharasinghe/MediaMaestro/pkg/models"
)

// YtDlpExecutor fetches and converts media through the yt-dlp binary.
type YtDlpExecutor struct {
	cfg       config.DownloaderConfig
	ytDlpPath string
}

// NewYtDlpExecutor verifies yt-dlp is installed and returns an executor.
func NewYtDlpExecutor(cfg config.DownloaderConfig) (*YtDlpExecutor, error) {
	e := &YtDlpExecutor{cfg: cfg}

	possiblePaths := []string{cfg.YtDlpPath, "yt-dlp", "./yt-dlp"}
	for _, path := range possiblePaths {
		if path == "" {
			continue
		}
		if _, err := exec.LookPath(path); err == nil {
			e.ytDlpPath = path
			return e, nil
		}
	}

	return nil, fmt.Errorf("yt-dlp not found in PATH. Please install yt-dlp")
}

// Validate checks that a source locator is a URL yt-dlp may handle and,
// when an allowlist is configured, that its host is on it.
func (e *YtDlpExecutor) Validate(source string) error {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return fmt.Errorf("invalid URL: must start with http:// or https://")
	}

	if len(e.cfg.AllowedDomains) > 0 {
		u, err := url.Parse(source)
		if err != nil {
			return fmt.Errorf("invalid URL: %w", err)
		}
		host := strings.TrimPrefix(u.Hostname(), "www.")
		allowed := false
		for _, domain := range e.cfg.AllowedDomains {
			if host == domain || strings.HasSuffix(host, "."+domain) {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("domain %s is not on the allowed list", host)
		}
	}

	return nil
}

type sourceMetadata struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Uploader string  `json:"uploader"`
	Duration float64 `json:"duration"`
}

// SearchResult is one candidate source found for a text query.
type SearchResult struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Uploader string `json:"uploader,omitempty"`
	Duration int    `json:"duration,omitempty"`
	URL      string `json:"url"`
}

const maxSearchResults = 25

// Search runs a yt-dlp text search and returns candidate sources without
// downloading anything.
func (e *YtDlpExecutor) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit < 1 {
		limit = 5
	}
	if limit > maxSearchResults {
		limit = maxSearchResults
	}

	cmd := exec.CommandContext(ctx, e.ytDlpPath,
		"--dump-json",
		"--flat-playlist",
		fmt.Sprintf("ytsearch%d:%s", limit, query),
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	return parseSearchResults(output)
}

// parseSearchResults decodes yt-dlp's newline-delimited JSON entries.
func parseSearchResults(output []byte) ([]SearchResult, error) {
	var results []SearchResult
	dec := json.NewDecoder(bytes.NewReader(output))
	for dec.More() {
		var entry struct {
			ID       string  `json:"id"`
			Title    string  `json:"title"`
			Uploader string  `json:"uploader"`
			Duration float64 `json:"duration"`
			URL      string  `json:"url"`
		}
		if err := dec.Decode(&entry); err != nil {
			return nil, fmt.Errorf("failed to parse search results: %w", err)
		}
		if entry.ID == "" {
			continue
		}
		link := entry.URL
		if link == "" {
			link = "https://www.youtube.com/watch?v=" + entry.ID
		}
		results = append(results, SearchResult{
			ID:       entry.ID,
			Title:    entry.Title,
			Uploader: entry.Uploader,
			Duration: int(entry.Duration),
			URL:      link,
		})
	}
	return results, nil
}

// probeMetadata extracts metadata from a URL without downloading.
func (e *YtDlpExecutor) probeMetadata(ctx context.Context, source string) (*sourceMetadata, error) {
	cmd := exec.CommandContext(ctx, e.ytDlpPath,
		"--dump-json",
		"--no-playlist",
		source,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}

	var meta sourceMetadata
	if err := json.Unmarshal(output, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	return &meta, nil
}

// Execute downloads the source into req.DestDir in the requested format.
// The output filename follows the "Artist - Title.ext" convention the
// scanner parses back.
func (e *YtDlpExecutor) Execute(ctx context.Context, req Request, report func(progress int)) (*Result, error) {
	meta, err := e.probeMetadata(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	report(25)

	artist := meta.Artist
	if artist == "" {
		artist = meta.Uploader
	}
	title := meta.Title
	if title == "" {
		title = "Unknown"
	}

	stem := sanitizeFilename(title)
	if artist != "" {
		stem = sanitizeFilename(artist) + " - " + stem
	}

	if err := os.MkdirAll(req.DestDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create destination directory: %w", err)
	}

	var ext string
	var args []string
	outputTemplate := filepath.Join(req.DestDir, stem+".%(ext)s")

	switch req.Format {
	case models.FormatLossyAudio:
		ext = "mp3"
		args = []string{
			"--format", "bestaudio",
			"--extract-audio",
			"--audio-format", "mp3",
			"--audio-quality", e.cfg.AudioQuality,
		}
	case models.FormatLosslessAudio:
		ext = "flac"
		args = []string{
			"--format", "bestaudio",
			"--extract-audio",
			"--audio-format", "flac",
		}
	case models.FormatVideo:
		ext = "mp4"
		args = []string{
			"--format", "best[height<=720]",
			"--remux-video", "mp4",
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", req.Format)
	}

	args = append(args,
		"--output", outputTemplate,
		"--no-playlist",
		"--no-overwrites",
		req.Source,
	)

	report(50)

	cmd := exec.CommandContext(ctx, e.ytDlpPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("download failed: %w\noutput: %s", err, string(output))
	}
	report(90)

	destPath := filepath.Join(req.DestDir, stem+"."+ext)
	info, err := os.Stat(destPath)
	if err != nil {
		return nil, fmt.Errorf("expected output file missing: %w", err)
	}

	return &Result{
		DestPath:  destPath,
		Title:     title,
		Artist:    artist,
		YouTubeID: meta.ID,
		Duration:  int(meta.Duration),
		Size:      info.Size(),
	}, nil
}

// sanitizeFilename removes invalid characters from filenames
func sanitizeFilename(filename string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := filename
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}
	return strings.TrimSpace(result)
}
