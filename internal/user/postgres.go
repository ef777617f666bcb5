package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, name, picture, password_hash, google_id, access_token, refresh_token, token_expiry, is_active, created_at, updated_at`

// PostgresRepository stores users in the users table created by Migrate.
type PostgresRepository struct {
	pool    *pgxpool.Pool
	sealer  Sealer
	nowFunc func() time.Time
}

// NewPostgresRepository constructs a PostgresRepository.
func NewPostgresRepository(pool *pgxpool.Pool, sealer Sealer) *PostgresRepository {
	return &PostgresRepository{pool: pool, sealer: sealer, nowFunc: time.Now}
}

func (r *PostgresRepository) Create(ctx context.Context, u User) (User, error) {
	now := r.nowFunc().UTC()
	u.Active = true
	u.CreatedAt = now
	u.UpdatedAt = now

	rec, err := toRecord(u, r.sealer)
	if err != nil {
		return User{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
INSERT INTO users (email, name, picture, password_hash, google_id, access_token, refresh_token, token_expiry, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + userColumns + `;`

	row := r.pool.QueryRow(ctx, query,
		rec.Email,
		nullString(rec.Name),
		nullString(rec.Picture),
		nullString(rec.PasswordHash),
		nullString(rec.GoogleID),
		nullString(rec.AccessToken),
		nullString(rec.RefreshToken),
		nullTime(rec.TokenExpiry),
		rec.IsActive,
		rec.CreatedAt,
		rec.UpdatedAt,
	)

	created, err := r.scan(row)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrEmailExists
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1;`, parsed)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 AND is_active;`, NormalizeEmail(email))
}

func (r *PostgresRepository) FindByGoogleID(ctx context.Context, subject string) (User, error) {
	if subject == "" {
		return User{}, ErrNotFound
	}
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE google_id = $1 AND is_active;`, subject)
}

func (r *PostgresRepository) UpdateTokens(ctx context.Context, id string, tokens OAuthTokens) error {
	access, refresh, err := sealTokens(r.sealer, tokens)
	if err != nil {
		return err
	}

	query := `
UPDATE users
SET access_token = $2, refresh_token = $3, token_expiry = $4, updated_at = $5
WHERE id = $1;`

	return r.exec(ctx, id, query, nullString(access), nullString(refresh), nullTime(tokens.Expiry.UTC()), r.nowFunc().UTC())
}

func (r *PostgresRepository) Deactivate(ctx context.Context, id string) error {
	return r.exec(ctx, id, `UPDATE users SET is_active = FALSE, updated_at = $2 WHERE id = $1;`, r.nowFunc().UTC())
}

func (r *PostgresRepository) exec(ctx context.Context, id, query string, args ...any) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, query, append([]any{parsed}, args...)...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg any) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	u, err := r.scan(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) scan(row pgx.Row) (User, error) {
	var (
		id                            uuid.UUID
		rec                           record
		name, picture, hash, googleID *string
		accessToken, refreshToken     *string
		tokenExpiry                   *time.Time
	)
	if err := row.Scan(
		&id,
		&rec.Email,
		&name,
		&picture,
		&hash,
		&googleID,
		&accessToken,
		&refreshToken,
		&tokenExpiry,
		&rec.IsActive,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return User{}, err
	}

	rec.Name = deref(name)
	rec.Picture = deref(picture)
	rec.PasswordHash = deref(hash)
	rec.GoogleID = deref(googleID)
	rec.AccessToken = deref(accessToken)
	rec.RefreshToken = deref(refreshToken)
	if tokenExpiry != nil {
		rec.TokenExpiry = *tokenExpiry
	}
	return rec.toUser(id.String(), r.sealer)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
