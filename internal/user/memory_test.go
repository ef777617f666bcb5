package user

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestRepository(t *testing.T) *MemoryRepository {
	t.Helper()
	return NewMemoryRepository(newTestCipher(t))
}

func googleUser(email, subject string) User {
	return User{
		Profile: Profile{Email: email, Name: "Google User"},
		Account: GoogleAccount{
			Subject: subject,
			Tokens: OAuthTokens{
				AccessToken:  "ya29.access",
				RefreshToken: "1//refresh",
				Expiry:       time.Now().Add(time.Hour),
			},
		},
	}
}

func TestCreateNormalizesEmailAndRejectsDuplicates(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, User{
		Profile: Profile{Email: "  A@Test.com "},
		Account: PasswordAccount{PasswordHash: "hash"},
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if created.Profile.Email != "a@test.com" {
		t.Fatalf("expected lowercase email, got %q", created.Profile.Email)
	}
	if !created.Active || created.ID == "" {
		t.Fatalf("expected active user with id, got %+v", created)
	}

	_, err = repo.Create(ctx, User{
		Profile: Profile{Email: "a@TEST.com"},
		Account: PasswordAccount{PasswordHash: "other"},
	})
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
	if len(repo.records) != 1 {
		t.Fatalf("expected a single stored record, got %d", len(repo.records))
	}
}

func TestCreateRejectsMissingAccount(t *testing.T) {
	repo := newTestRepository(t)

	if _, err := repo.Create(context.Background(), User{Profile: Profile{Email: "x@test.com"}}); !errors.Is(err, ErrInvalidAccount) {
		t.Fatalf("expected ErrInvalidAccount, got %v", err)
	}
}

func TestTokensAreEncryptedAtRest(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, googleUser("g@test.com", "sub-1"))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	rec := repo.records[created.ID]
	if rec.AccessToken == "ya29.access" || rec.RefreshToken == "1//refresh" {
		t.Fatalf("expected encrypted tokens at rest, got %+v", rec)
	}
	if !strings.Contains(rec.AccessToken, ":") {
		t.Fatalf("expected iv:data format, got %q", rec.AccessToken)
	}

	loaded, err := repo.FindByGoogleID(ctx, "sub-1")
	if err != nil {
		t.Fatalf("FindByGoogleID error: %v", err)
	}
	acc, ok := loaded.Google()
	if !ok {
		t.Fatalf("expected google account, got %T", loaded.Account)
	}
	if acc.Tokens.AccessToken != "ya29.access" || acc.Tokens.RefreshToken != "1//refresh" {
		t.Fatalf("expected decrypted tokens, got %+v", acc.Tokens)
	}
}

func TestCreateRejectsDuplicateGoogleSubject(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if _, err := repo.Create(ctx, googleUser("one@test.com", "sub-dup")); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := repo.Create(ctx, googleUser("two@test.com", "sub-dup")); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists for duplicate subject, got %v", err)
	}
}

func TestUpdateTokensReplacesTriple(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, googleUser("g@test.com", "sub-2"))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	expiry := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := repo.UpdateTokens(ctx, created.ID, OAuthTokens{AccessToken: "new-access", RefreshToken: "new-refresh", Expiry: expiry}); err != nil {
		t.Fatalf("UpdateTokens error: %v", err)
	}

	loaded, err := repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	acc, _ := loaded.Google()
	if acc.Tokens.AccessToken != "new-access" || acc.Tokens.RefreshToken != "new-refresh" || !acc.Tokens.Expiry.Equal(expiry) {
		t.Fatalf("unexpected tokens after update: %+v", acc.Tokens)
	}

	if err := repo.UpdateTokens(ctx, "missing", OAuthTokens{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeactivateHidesUserFromIdentityLookups(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, googleUser("g@test.com", "sub-3"))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := repo.Deactivate(ctx, created.ID); err != nil {
		t.Fatalf("Deactivate error: %v", err)
	}

	if _, err := repo.FindByEmail(ctx, "g@test.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected inactive user hidden from email lookup, got %v", err)
	}
	if _, err := repo.FindByGoogleID(ctx, "sub-3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected inactive user hidden from subject lookup, got %v", err)
	}

	byID, err := repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	if byID.Active {
		t.Fatalf("expected inactive user from FindByID")
	}
}

func TestSafeStripsCredentials(t *testing.T) {
	u := googleUser("g@test.com", "sub-4").Safe()
	acc, _ := u.Google()
	if acc.Tokens.AccessToken != "" || acc.Tokens.RefreshToken != "" {
		t.Fatalf("expected tokens stripped, got %+v", acc.Tokens)
	}

	p := User{Account: PasswordAccount{PasswordHash: "hash"}}.Safe()
	if pw, _ := p.Password(); pw.PasswordHash != "" {
		t.Fatalf("expected password hash stripped")
	}
}
