package user

import (
	"strings"
	"time"
)

// User is an application identity. Exactly one Account variant is set.
type User struct {
	ID        string
	Profile   Profile
	Account   Account
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile carries the fields shared by every account kind.
type Profile struct {
	Email      string
	Name       string
	PictureURL string
}

// Account is implemented by PasswordAccount and GoogleAccount only.
type Account interface {
	account()
}

// PasswordAccount authenticates with a bcrypt hash.
type PasswordAccount struct {
	PasswordHash string
}

// GoogleAccount authenticates through Google and holds Gmail credentials.
type GoogleAccount struct {
	Subject string
	Tokens  OAuthTokens
}

func (PasswordAccount) account() {}
func (GoogleAccount) account()   {}

// OAuthTokens are plaintext provider credentials. They are encrypted on the
// way into a store and decrypted on the way out.
type OAuthTokens struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Google returns the Google account when the user signed up through OAuth.
func (u User) Google() (GoogleAccount, bool) {
	acc, ok := u.Account.(GoogleAccount)
	return acc, ok
}

// Password returns the password account when the user registered with one.
func (u User) Password() (PasswordAccount, bool) {
	acc, ok := u.Account.(PasswordAccount)
	return acc, ok
}

// Safe drops credentials so the user can be logged or serialized.
func (u User) Safe() User {
	switch acc := u.Account.(type) {
	case PasswordAccount:
		u.Account = PasswordAccount{}
	case GoogleAccount:
		u.Account = GoogleAccount{Subject: acc.Subject, Tokens: OAuthTokens{Expiry: acc.Tokens.Expiry}}
	}
	return u
}

// NormalizeEmail lowercases and trims an address before writes and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
