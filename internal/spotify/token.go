package spotify

import (
	"context"
	"sync"
	"time"

	"github.com/pavithrahatharasinghe/MediaMaestro/internal/errs"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// refreshMargin is the safety window before expiry within which a token is
// refreshed instead of returned as-is.
const refreshMargin = 60 * time.Second

// TokenStore owns the single cached external-service credential and
// refreshes it transparently before expiry. It is an explicitly owned
// object injected into components that need credentials; all operations
// are safe under concurrent invocation.
type TokenStore struct {
	oauth  *oauth2.Config
	logger *logrus.Logger

	mu    sync.Mutex
	token *oauth2.Token

	group singleflight.Group
}

// NewTokenStore creates an empty credential store backed by the given
// OAuth2 configuration.
func NewTokenStore(oauth *oauth2.Config) *TokenStore {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &TokenStore{oauth: oauth, logger: logger}
}

// SetToken installs a freshly authorized token, replacing any cached one.
func (s *TokenStore) SetToken(token *oauth2.Token) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	s.logger.WithField("expiry", token.Expiry).Info("Installed new access token")
}

// Clear removes the cached token (logout).
func (s *TokenStore) Clear() {
	s.mu.Lock()
	s.token = nil
	s.mu.Unlock()
	s.logger.Info("Cleared cached access token")
}

// HasToken reports whether a credential is currently cached.
func (s *TokenStore) HasToken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != nil
}

// ValidToken returns the cached token, synchronously refreshing it first
// when its expiry is within the safety margin. Concurrent callers in the
// same near-expiry window share a single refresh call; a failed refresh
// clears the cache, forcing re-authorization.
func (s *TokenStore) ValidToken(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()

	if token == nil {
		return nil, errs.Ef(errs.KindUnauthenticated, "no cached credential; authorize first")
	}

	if token.Expiry.IsZero() || time.Until(token.Expiry) > refreshMargin {
		copied := *token
		return &copied, nil
	}

	refreshed, err, _ := s.group.Do("refresh", func() (interface{}, error) {
		s.mu.Lock()
		current := s.token
		s.mu.Unlock()
		if current == nil {
			return nil, errs.Ef(errs.KindUnauthenticated, "no cached credential; authorize first")
		}
		if !current.Expiry.IsZero() && time.Until(current.Expiry) > refreshMargin {
			// another caller already refreshed within this window
			copied := *current
			return &copied, nil
		}

		fresh, err := s.oauth.TokenSource(ctx, current).Token()
		if err != nil {
			s.mu.Lock()
			s.token = nil
			s.mu.Unlock()
			s.logger.WithError(err).Warn("Token refresh failed, cache cleared")
			return nil, errs.E(errs.KindAuthExpired, "token refresh failed", err)
		}

		s.mu.Lock()
		s.token = fresh
		s.mu.Unlock()
		s.logger.WithField("expiry", fresh.Expiry).Debug("Refreshed access token")

		copied := *fresh
		return &copied, nil
	})
	if err != nil {
		return nil, err
	}

	return refreshed.(*oauth2.Token), nil
}
