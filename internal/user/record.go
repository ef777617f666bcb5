package user

import (
	"fmt"
	"time"
)

// Sealer encrypts OAuth credentials at rest.
type Sealer interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// record is the persisted shape shared by every backend. Token fields only
// ever hold Sealer output.
type record struct {
	Email        string    `bson:"email"`
	Name         string    `bson:"name,omitempty"`
	Picture      string    `bson:"picture,omitempty"`
	PasswordHash string    `bson:"password,omitempty"`
	GoogleID     string    `bson:"googleId,omitempty"`
	AccessToken  string    `bson:"accessToken,omitempty"`
	RefreshToken string    `bson:"refreshToken,omitempty"`
	TokenExpiry  time.Time `bson:"tokenExpiry,omitempty"`
	IsActive     bool      `bson:"isActive"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

func toRecord(u User, sealer Sealer) (record, error) {
	rec := record{
		Email:     NormalizeEmail(u.Profile.Email),
		Name:      u.Profile.Name,
		Picture:   u.Profile.PictureURL,
		IsActive:  u.Active,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}

	switch acc := u.Account.(type) {
	case PasswordAccount:
		rec.PasswordHash = acc.PasswordHash
	case GoogleAccount:
		access, refresh, err := sealTokens(sealer, acc.Tokens)
		if err != nil {
			return record{}, err
		}
		rec.GoogleID = acc.Subject
		rec.AccessToken = access
		rec.RefreshToken = refresh
		rec.TokenExpiry = acc.Tokens.Expiry.UTC()
	default:
		return record{}, ErrInvalidAccount
	}

	return rec, nil
}

func (r record) toUser(id string, sealer Sealer) (User, error) {
	u := User{
		ID: id,
		Profile: Profile{
			Email:      r.Email,
			Name:       r.Name,
			PictureURL: r.Picture,
		},
		Active:    r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	if r.GoogleID == "" {
		u.Account = PasswordAccount{PasswordHash: r.PasswordHash}
		return u, nil
	}

	tokens := OAuthTokens{Expiry: r.TokenExpiry}
	var err error
	if r.AccessToken != "" {
		if tokens.AccessToken, err = sealer.Decrypt(r.AccessToken); err != nil {
			return User{}, fmt.Errorf("decrypt access token: %w", err)
		}
	}
	if r.RefreshToken != "" {
		if tokens.RefreshToken, err = sealer.Decrypt(r.RefreshToken); err != nil {
			return User{}, fmt.Errorf("decrypt refresh token: %w", err)
		}
	}
	u.Account = GoogleAccount{Subject: r.GoogleID, Tokens: tokens}
	return u, nil
}

func sealTokens(sealer Sealer, tokens OAuthTokens) (string, string, error) {
	var access, refresh string
	var err error
	if tokens.AccessToken != "" {
		if access, err = sealer.Encrypt(tokens.AccessToken); err != nil {
			return "", "", fmt.Errorf("encrypt access token: %w", err)
		}
	}
	if tokens.RefreshToken != "" {
		if refresh, err = sealer.Encrypt(tokens.RefreshToken); err != nil {
			return "", "", fmt.Errorf("encrypt refresh token: %w", err)
		}
	}
	return access, refresh, nil
}
