package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mailgate/gmailapi/internal/metrics"
	"github.com/mailgate/gmailapi/internal/user"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	// expiryBuffer is how close to expiry a token may get before it is
	// replaced ahead of use.
	expiryBuffer = 5 * time.Minute
	// defaultLifetime applies when the provider omits an expiry.
	defaultLifetime = time.Hour
	refreshTimeout  = 30 * time.Second
)

// Refresher performs the provider refresh-token grant.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

type tokenStore interface {
	UpdateTokens(ctx context.Context, id string, tokens user.OAuthTokens) error
}

// Manager hands out valid Gmail access tokens, refreshing and persisting
// them when they are about to expire. Concurrent refreshes for one user
// share a single provider call.
type Manager struct {
	store    tokenStore
	provider Refresher
	logger   *zap.Logger
	nowFunc  func() time.Time
	group    singleflight.Group
}

// NewManager constructs a Manager.
func NewManager(store tokenStore, provider Refresher, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:    store,
		provider: provider,
		logger:   logger,
		nowFunc:  time.Now,
	}
}

// AccessToken returns u's stored access token when it is valid for at least
// another five minutes, otherwise a freshly refreshed one.
func (m *Manager) AccessToken(ctx context.Context, u user.User) (string, error) {
	acc, ok := u.Google()
	if !ok {
		return "", ErrNoGoogleAccount
	}

	if acc.Tokens.AccessToken != "" && m.nowFunc().Add(expiryBuffer).Before(acc.Tokens.Expiry) {
		return acc.Tokens.AccessToken, nil
	}

	tokens, err := m.refresh(ctx, u.ID, acc.Tokens)
	if err != nil {
		return "", err
	}
	return tokens.AccessToken, nil
}

// Refresh unconditionally runs the refresh grant for u and persists the
// result.
func (m *Manager) Refresh(ctx context.Context, u user.User) (user.OAuthTokens, error) {
	acc, ok := u.Google()
	if !ok {
		return user.OAuthTokens{}, ErrNoGoogleAccount
	}
	return m.refresh(ctx, u.ID, acc.Tokens)
}

func (m *Manager) refresh(ctx context.Context, userID string, current user.OAuthTokens) (user.OAuthTokens, error) {
	ch := m.group.DoChan(userID, func() (any, error) {
		// The shared call outlives any single waiter.
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return m.doRefresh(callCtx, userID, current)
	})

	select {
	case <-ctx.Done():
		return user.OAuthTokens{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return user.OAuthTokens{}, res.Err
		}
		return res.Val.(user.OAuthTokens), nil
	}
}

func (m *Manager) doRefresh(ctx context.Context, userID string, current user.OAuthTokens) (user.OAuthTokens, error) {
	if current.RefreshToken == "" {
		metrics.TokenRefresh(false)
		return user.OAuthTokens{}, fmt.Errorf("%w: no refresh token stored", ErrTokenRefreshFailed)
	}

	tok, err := m.provider.Refresh(ctx, current.RefreshToken)
	if err != nil {
		metrics.TokenRefresh(false)
		m.logger.Warn("oauth token refresh failed", zap.String("user_id", userID), zap.Error(err))
		return user.OAuthTokens{}, fmt.Errorf("%w: %w", ErrTokenRefreshFailed, err)
	}
	if tok == nil || tok.AccessToken == "" {
		metrics.TokenRefresh(false)
		return user.OAuthTokens{}, fmt.Errorf("%w: provider returned no access token", ErrTokenRefreshFailed)
	}

	next := user.OAuthTokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
	}
	if next.Expiry.IsZero() {
		next.Expiry = m.nowFunc().Add(defaultLifetime)
	}

	if err := m.store.UpdateTokens(ctx, userID, next); err != nil {
		metrics.TokenRefresh(false)
		if errors.Is(err, user.ErrNotFound) {
			return user.OAuthTokens{}, err
		}
		return user.OAuthTokens{}, fmt.Errorf("persist refreshed tokens: %w", err)
	}

	metrics.TokenRefresh(true)
	m.logger.Debug("oauth token refreshed", zap.String("user_id", userID), zap.Time("expiry", next.Expiry))
	return next, nil
}
