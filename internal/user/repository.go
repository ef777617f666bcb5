package user

import (
	"context"
	"time"
)

const defaultQueryTimeout = 5 * time.Second

// Repository persists users. Implementations encrypt OAuth tokens through a
// Sealer before anything reaches the backing store.
type Repository interface {
	Create(ctx context.Context, u User) (User, error)
	// FindByID returns inactive users too; callers decide what to do with them.
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByGoogleID(ctx context.Context, subject string) (User, error)
	UpdateTokens(ctx context.Context, id string, tokens OAuthTokens) error
	Deactivate(ctx context.Context, id string) error
}
