package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotskill/internal/shared"
	"golang.org/x/oauth2"
)

// TokenStore loads and saves OAuth tokens per user key.
type TokenStore interface {
	Latest(ctx context.Context, user string) (*oauth2.Token, error)
	Save(ctx context.Context, user string, tok *oauth2.Token) error
}

// PersistingTokenSource is an [oauth2.TokenSource] that reads its first token from a [TokenStore]
// and writes back every token obtained by refreshing.
type PersistingTokenSource struct {
	ctx    context.Context
	config *oauth2.Config
	store  TokenStore
	user   string
	logger *log.Logger

	mu      sync.Mutex
	current *oauth2.Token
}

// NewPersistingTokenSource creates a token source for user. ctx is used for refresh requests and store access.
func NewPersistingTokenSource(ctx context.Context, config *oauth2.Config, store TokenStore, user string, logger *log.Logger) *PersistingTokenSource {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &PersistingTokenSource{
		ctx:    ctx,
		config: config,
		store:  store,
		user:   user,
		logger: logger.With("component", "tokens"),
	}
}

// Token returns a valid access token, refreshing and persisting it when the held one has expired.
func (s *PersistingTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		tok, err := s.store.Latest(s.ctx, s.user)
		if err != nil {
			tokenValid.Set(0)
			if errors.Is(err, shared.ErrTokenNotFound) {
				return nil, fmt.Errorf("%w: run the auth command first: %v", shared.ErrNotAuthenticated, err)
			}
			return nil, err
		}
		s.current = tok
	}

	if s.current.Valid() {
		tokenValid.Set(1)
		return copyToken(s.current), nil
	}

	fresh, err := s.config.TokenSource(s.ctx, s.current).Token()
	if err != nil {
		tokenRefreshFailure.Inc()
		tokenValid.Set(0)
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return nil, fmt.Errorf("%w: token refresh failed %d: %s", shared.ErrAuthFailed, retrieveErr.Response.StatusCode, retrieveErr.Body)
		}
		return nil, fmt.Errorf("%w: token refresh failed: %v", shared.ErrAuthFailed, err)
	}
	tokenRefreshSuccess.Inc()
	tokenValid.Set(1)

	if fresh.RefreshToken == "" {
		fresh.RefreshToken = s.current.RefreshToken
	}
	if err := s.store.Save(s.ctx, s.user, fresh); err != nil {
		s.logger.Warn("failed to persist refreshed token", "user", s.user, "error", err)
	}

	s.current = fresh
	s.logger.Debug("token refreshed", "user", s.user, "expiry", fresh.Expiry)
	return copyToken(fresh), nil
}

// Store saves a freshly exchanged token and makes it the current one.
func (s *PersistingTokenSource) Store(tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Save(s.ctx, s.user, tok); err != nil {
		return err
	}
	s.current = tok
	return nil
}

func copyToken(t *oauth2.Token) *oauth2.Token {
	c := *t
	return &c
}
