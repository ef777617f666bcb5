package oauth

import (
	"context"
	"fmt"

	"github.com/mailgate/gmailapi/internal/config"
	"github.com/mailgate/gmailapi/internal/user"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// Scopes requested during the handshake.
var Scopes = []string{
	oauth2api.OpenIDScope,
	oauth2api.UserinfoProfileScope,
	oauth2api.UserinfoEmailScope,
	gmail.GmailReadonlyScope,
}

// Identity is the profile and credentials returned by a completed exchange.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Picture string
	Tokens  user.OAuthTokens
}

// Provider wraps the Google OAuth client registration.
type Provider struct {
	cfg *oauth2.Config
	// apiOptions are appended when calling the userinfo API.
	apiOptions []option.ClientOption
}

// NewProvider builds a Provider for the registered Google client.
func NewProvider(gc config.GoogleConfig) *Provider {
	return &Provider{
		cfg: &oauth2.Config{
			ClientID:     gc.ClientID,
			ClientSecret: gc.ClientSecret,
			RedirectURL:  gc.RedirectURL,
			Scopes:       Scopes,
			Endpoint:     google.Endpoint,
		},
	}
}

// AuthCodeURL returns the consent URL. Offline access and forced consent
// make Google issue a refresh token on every login.
func (p *Provider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades code for tokens and reads the user's Google profile.
func (p *Provider) Exchange(ctx context.Context, code string) (Identity, error) {
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}

	opts := append([]option.ClientOption{option.WithTokenSource(p.cfg.TokenSource(ctx, tok))}, p.apiOptions...)
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: userinfo client: %w", ErrExchangeFailed, err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return Identity{}, fmt.Errorf("%w: userinfo: %w", ErrExchangeFailed, err)
	}
	if info.Id == "" {
		return Identity{}, ErrMissingSubject
	}

	return Identity{
		Subject: info.Id,
		Email:   user.NormalizeEmail(info.Email),
		Name:    info.Name,
		Picture: info.Picture,
		Tokens: user.OAuthTokens{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			Expiry:       tok.Expiry,
		},
	}, nil
}

// Refresh runs the refresh-token grant.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	return p.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
}
