package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/mailgate/gmailapi/internal/auth"
	"github.com/mailgate/gmailapi/internal/user"
	"go.uber.org/zap"
)

type identityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (Identity, error)
}

type userStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	FindByEmail(ctx context.Context, email string) (user.User, error)
	FindByGoogleID(ctx context.Context, subject string) (user.User, error)
	UpdateTokens(ctx context.Context, id string, tokens user.OAuthTokens) error
}

type tokenIssuer interface {
	IssueToken(u user.User) (auth.AuthResult, error)
}

// Flow drives the Google sign-in handshake from consent URL to bearer token.
type Flow struct {
	provider identityProvider
	store    userStore
	issuer   tokenIssuer
	logger   *zap.Logger
}

// NewFlow constructs a Flow.
func NewFlow(provider identityProvider, store userStore, issuer tokenIssuer, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{provider: provider, store: store, issuer: issuer, logger: logger}
}

// AuthCodeURL returns the provider consent URL for state.
func (f *Flow) AuthCodeURL(state string) string {
	return f.provider.AuthCodeURL(state)
}

// Complete exchanges code, finds or creates the local user keyed by Google
// subject and issues a bearer token. Nothing is written unless the exchange
// succeeded and the account is usable.
func (f *Flow) Complete(ctx context.Context, code string) (auth.AuthResult, error) {
	id, err := f.provider.Exchange(ctx, code)
	if err != nil {
		return auth.AuthResult{}, err
	}

	u, err := f.resolve(ctx, id)
	if err != nil {
		return auth.AuthResult{}, err
	}
	return f.issuer.IssueToken(u)
}

func (f *Flow) resolve(ctx context.Context, id Identity) (user.User, error) {
	existing, err := f.store.FindByGoogleID(ctx, id.Subject)
	switch {
	case err == nil:
		return f.updateTokens(ctx, existing, id.Tokens)
	case !errors.Is(err, user.ErrNotFound):
		return user.User{}, fmt.Errorf("find google user: %w", err)
	}

	if _, err := f.store.FindByEmail(ctx, id.Email); err == nil {
		return user.User{}, ErrAccountConflict
	} else if !errors.Is(err, user.ErrNotFound) {
		return user.User{}, fmt.Errorf("find user by email: %w", err)
	}

	created, err := f.store.Create(ctx, user.User{
		Profile: user.Profile{
			Email:      id.Email,
			Name:       id.Name,
			PictureURL: id.Picture,
		},
		Account: user.GoogleAccount{Subject: id.Subject, Tokens: id.Tokens},
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailExists) {
			return user.User{}, ErrAccountConflict
		}
		return user.User{}, fmt.Errorf("create google user: %w", err)
	}

	f.logger.Info("google user created", zap.String("user_id", created.ID))
	return created, nil
}

func (f *Flow) updateTokens(ctx context.Context, u user.User, tokens user.OAuthTokens) (user.User, error) {
	acc, _ := u.Google()
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = acc.Tokens.RefreshToken
	}
	if err := f.store.UpdateTokens(ctx, u.ID, tokens); err != nil {
		return user.User{}, fmt.Errorf("update google tokens: %w", err)
	}
	acc.Tokens = tokens
	u.Account = acc
	return u, nil
}
