// Package spotify is the client for the external streaming-metadata
// catalog: OAuth token lifecycle plus the handful of Web API calls the
// reconciliation engine needs.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pavithrahatharasinghe/MediaMaestro/internal/config"
	"github.com/pavithrahatharasinghe/MediaMaestro/internal/errs"
	"github.com/pavithrahatharasinghe/MediaMaestro/pkg/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	authURL  = "https://accounts.spotify.com/authorize"
	tokenURL = "https://accounts.spotify.com/api/token"
	baseURL  = "https://api.spotify.com/v1"
)

var scopes = []string{
	"user-library-read",
	"playlist-read-private",
	"playlist-modify-public",
	"playlist-modify-private",
	"user-read-private",
}

// AuthStatus is the fixed enumeration of configuration/auth states.
type AuthStatus string

const (
	StatusNotConfigured   AuthStatus = "not_configured"
	StatusUnauthenticated AuthStatus = "configured_unauthenticated"
	StatusAuthenticated   AuthStatus = "authenticated"
)

// Client talks to the Spotify Web API. A zero-credential configuration
// produces a client whose Status is not_configured; catalog calls then
// fail with typed errors instead of a silent demo mode.
type Client struct {
	cfg        config.SpotifyConfig
	oauth      *oauth2.Config
	tokens     *TokenStore
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient builds a catalog client from credentials. Tokens holds the
// single process-wide credential; it is exposed so other components can be
// handed the same store.
func NewClient(cfg config.SpotifyConfig) *Client {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}

	return &Client{
		cfg:        cfg,
		oauth:      oauthCfg,
		tokens:     NewTokenStore(oauthCfg),
		httpClient: http.DefaultClient,
		logger:     logger,
	}
}

// Tokens returns the client's credential store.
func (c *Client) Tokens() *TokenStore {
	return c.tokens
}

// Status reports the tagged configuration/auth state.
func (c *Client) Status() AuthStatus {
	if !c.cfg.Configured() {
		return StatusNotConfigured
	}
	if !c.tokens.HasToken() {
		return StatusUnauthenticated
	}
	return StatusAuthenticated
}

// AuthURL returns the authorization URL to redirect the user to.
func (c *Client) AuthURL(state string) (string, error) {
	if !c.cfg.Configured() {
		return "", errs.Ef(errs.KindInvalidInput, "spotify credentials not configured")
	}
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// Exchange trades an authorization code for a token and installs it.
func (c *Client) Exchange(ctx context.Context, code string) error {
	if !c.cfg.Configured() {
		return errs.Ef(errs.KindInvalidInput, "spotify credentials not configured")
	}
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return errs.E(errs.KindExternal, "authorization code exchange failed", err)
	}
	c.tokens.SetToken(token)
	return nil
}

// Logout clears the cached credential.
func (c *Client) Logout() {
	c.tokens.Clear()
}

// doRequest performs an authenticated GET/POST against the Web API.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body io.Reader, result interface{}) error {
	token, err := c.tokens.ValidToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+endpoint, body)
	if err != nil {
		return errs.E(errs.KindExternal, "failed to create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.E(errs.KindExternal, "catalog request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errs.Ef(errs.KindAuthExpired, "catalog rejected credentials (status %d)", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return errs.Ef(errs.KindExternal, "catalog error: status %d on %s", resp.StatusCode, endpoint)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return errs.E(errs.KindExternal, "failed to decode catalog response", err)
		}
	}

	return nil
}

type apiArtist struct {
	Name string `json:"name"`
}

type apiAlbum struct {
	Name string `json:"name"`
}

type apiTrack struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Artists    []apiArtist `json:"artists"`
	Album      apiAlbum    `json:"album"`
	DurationMS int         `json:"duration_ms"`
}

func (t apiTrack) toRecord() models.ExternalTrackRecord {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	return models.ExternalTrackRecord{
		ID:       t.ID,
		Title:    t.Name,
		Artists:  artists,
		Album:    t.Album.Name,
		Duration: t.DurationMS / 1000,
	}
}

// PlaylistTracks fetches every track of an external playlist, following
// pagination.
func (c *Client) PlaylistTracks(ctx context.Context, playlistID string) ([]models.ExternalTrackRecord, error) {
	var tracks []models.ExternalTrackRecord
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=100", url.PathEscape(playlistID))

	for endpoint != "" {
		var page struct {
			Items []struct {
				Track apiTrack `json:"track"`
			} `json:"items"`
			Next *string `json:"next"`
		}
		if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			if item.Track.ID == "" {
				continue
			}
			tracks = append(tracks, item.Track.toRecord())
		}
		if page.Next == nil {
			break
		}
		endpoint = strings.TrimPrefix(*page.Next, baseURL)
	}

	return tracks, nil
}

// Search queries the catalog for tracks by title and optional artist.
func (c *Client) Search(ctx context.Context, query, artist string) ([]models.ExternalTrackRecord, error) {
	q := query
	if artist != "" {
		q = fmt.Sprintf("track:%s artist:%s", query, artist)
	}
	endpoint := fmt.Sprintf("/search?type=track&limit=10&q=%s", url.QueryEscape(q))

	var response struct {
		Tracks struct {
			Items []apiTrack `json:"items"`
		} `json:"tracks"`
	}
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	records := make([]models.ExternalTrackRecord, 0, len(response.Tracks.Items))
	for _, t := range response.Tracks.Items {
		records = append(records, t.toRecord())
	}
	return records, nil
}

// ExternalPlaylist is a playlist summary from the catalog.
type ExternalPlaylist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TrackCount  int    `json:"trackCount"`
}

// UserPlaylists lists the authorized user's playlists.
func (c *Client) UserPlaylists(ctx context.Context) ([]ExternalPlaylist, error) {
	var response struct {
		Items []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			Description string `json:"description"`
			Tracks      struct {
				Total int `json:"total"`
			} `json:"tracks"`
		} `json:"items"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/me/playlists?limit=50", nil, &response); err != nil {
		return nil, err
	}

	playlists := make([]ExternalPlaylist, 0, len(response.Items))
	for _, item := range response.Items {
		playlists = append(playlists, ExternalPlaylist{
			ID:          item.ID,
			Name:        item.Name,
			Description: item.Description,
			TrackCount:  item.Tracks.Total,
		})
	}
	return playlists, nil
}

// CreatePlaylist creates a playlist on the external service for the
// authorized user and returns its external identifier.
func (c *Client) CreatePlaylist(ctx context.Context, name, description string) (string, error) {
	var me struct {
		ID string `json:"id"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/me", nil, &me); err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]interface{}{
		"name":        name,
		"description": description,
		"public":      false,
	})
	if err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(me.ID))
	if err := c.doRequest(ctx, http.MethodPost, endpoint, strings.NewReader(string(payload)), &created); err != nil {
		return "", err
	}

	return created.ID, nil
}
