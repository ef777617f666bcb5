package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mailgate/gmailapi/internal/codec"
	"github.com/mailgate/gmailapi/internal/config"
	"github.com/mailgate/gmailapi/internal/user"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const maxPasswordLength = 72 // bcrypt limit

// userStore abstracts the persistence layer.
type userStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	FindByID(ctx context.Context, id string) (user.User, error)
	FindByEmail(ctx context.Context, email string) (user.User, error)
	Deactivate(ctx context.Context, id string) error
}

type tokenCodec interface {
	Issue(id codec.Identity) (string, time.Time, error)
	Verify(token string) (codec.Claims, error)
}

// tokenRefresher renews the Google credentials behind a session.
type tokenRefresher interface {
	Refresh(ctx context.Context, u user.User) (user.OAuthTokens, error)
}

// Service encapsulates authentication use cases.
type Service struct {
	store     userStore
	tokens    tokenCodec
	refresher tokenRefresher
	cfg       config.AuthConfig
	logger    *zap.Logger
}

// NewService creates a Service with dependencies.
func NewService(store userStore, tokens tokenCodec, refresher tokenRefresher, cfg config.AuthConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		tokens:    tokens,
		refresher: refresher,
		cfg:       cfg,
		logger:    logger,
	}
}

// RegisterInput carries data for user registration.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// LoginInput carries login credentials.
type LoginInput struct {
	Email    string
	Password string
}

// Register creates a password account and issues a bearer token for it.
func (s *Service) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	email := user.NormalizeEmail(input.Email)
	if email == "" || strings.TrimSpace(input.Password) == "" {
		return AuthResult{}, ErrInvalidInput
	}
	if len(input.Password) < s.cfg.MinPasswordLength || len(input.Password) > maxPasswordLength {
		return AuthResult{}, ErrInvalidInput
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cfg.BcryptCost)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.store.Create(ctx, user.User{
		Profile: user.Profile{
			Email: email,
			Name:  strings.TrimSpace(input.Name),
		},
		Account: user.PasswordAccount{PasswordHash: string(hashed)},
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailExists) {
			return AuthResult{}, ErrEmailAlreadyExists
		}
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", created.ID))
	return s.IssueToken(created)
}

// Login checks a password and issues a bearer token. Unknown, inactive and
// Google-only accounts all fail the same way.
func (s *Service) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	if strings.TrimSpace(input.Email) == "" || input.Password == "" {
		return AuthResult{}, ErrInvalidCredentials
	}

	found, err := s.store.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("find user: %w", err)
	}

	acc, ok := found.Password()
	if !ok || !found.Active {
		return AuthResult{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(input.Password)); err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	return s.IssueToken(found)
}

// IssueToken signs a bearer token for u.
func (s *Service) IssueToken(u user.User) (AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(codec.Identity{
		UserID: u.ID,
		Email:  u.Profile.Email,
		Name:   u.Profile.Name,
	})
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}
	return AuthResult{User: u.Safe(), AccessToken: token, ExpiresAt: expiresAt}, nil
}

// Authenticate resolves a bearer token to an active user. It returns
// ErrMissingToken, codec.ErrInvalidToken or ErrInvalidUser for the three
// rejection cases; any other error comes from the store.
func (s *Service) Authenticate(ctx context.Context, token string) (user.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return user.User{}, ErrMissingToken
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		return user.User{}, codec.ErrInvalidToken
	}

	found, err := s.store.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, ErrInvalidUser
		}
		return user.User{}, fmt.Errorf("load user: %w", err)
	}
	if !found.Active {
		return user.User{}, ErrInvalidUser
	}
	return found, nil
}

// RefreshSession renews u's Google credentials and issues a new bearer token.
func (s *Service) RefreshSession(ctx context.Context, u user.User) (AuthResult, error) {
	if _, err := s.refresher.Refresh(ctx, u); err != nil {
		return AuthResult{}, err
	}
	return s.IssueToken(u)
}

// Deactivate soft-deletes u. Outstanding bearer tokens stop working because
// the gate rejects inactive users.
func (s *Service) Deactivate(ctx context.Context, u user.User) error {
	if err := s.store.Deactivate(ctx, u.ID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidUser
		}
		return fmt.Errorf("deactivate user: %w", err)
	}
	s.logger.Info("user deactivated", zap.String("user_id", u.ID))
	return nil
}

// CookieConfig exposes the session cookie settings to other handlers.
func (s *Service) CookieConfig() config.AuthConfig {
	return s.cfg
}
