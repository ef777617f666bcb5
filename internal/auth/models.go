package auth

import (
	"time"

	"github.com/mailgate/gmailapi/internal/user"
)

// AuthResult pairs a user with a freshly issued bearer token.
type AuthResult struct {
	User        user.User
	AccessToken string
	ExpiresAt   time.Time
}

type userResponse struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name,omitempty"`
	Picture      string     `json:"picture,omitempty"`
	AuthProvider string     `json:"authProvider"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
}

func marshalUser(u user.User) userResponse {
	resp := userResponse{
		ID:           u.ID,
		Email:        u.Profile.Email,
		Name:         u.Profile.Name,
		Picture:      u.Profile.PictureURL,
		AuthProvider: "password",
	}
	if _, ok := u.Google(); ok {
		resp.AuthProvider = "google"
	}
	if !u.CreatedAt.IsZero() {
		created := u.CreatedAt.UTC()
		resp.CreatedAt = &created
	}
	return resp
}
