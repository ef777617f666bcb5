package user

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps users in process. It stores the same encrypted
// records as the database backends.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]record
	sealer  Sealer
	nowFunc func() time.Time
}

// NewMemoryRepository returns an empty in-process repository.
func NewMemoryRepository(sealer Sealer) *MemoryRepository {
	return &MemoryRepository{
		records: make(map[string]record),
		sealer:  sealer,
		nowFunc: time.Now,
	}
}

func (r *MemoryRepository) Create(_ context.Context, u User) (User, error) {
	now := r.nowFunc().UTC()
	u.Active = true
	u.CreatedAt = now
	u.UpdatedAt = now

	rec, err := toRecord(u, r.sealer)
	if err != nil {
		return User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.records {
		if existing.Email == rec.Email {
			return User{}, ErrEmailExists
		}
		if rec.GoogleID != "" && existing.GoogleID == rec.GoogleID {
			return User{}, ErrEmailExists
		}
	}

	id := uuid.NewString()
	r.records[id] = rec
	return rec.toUser(id, r.sealer)
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	rec, ok := r.records[id]
	r.mu.RUnlock()
	if !ok {
		return User{}, ErrNotFound
	}
	return rec.toUser(id, r.sealer)
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
	email = NormalizeEmail(email)
	return r.findActive(func(rec record) bool { return rec.Email == email })
}

func (r *MemoryRepository) FindByGoogleID(_ context.Context, subject string) (User, error) {
	if subject == "" {
		return User{}, ErrNotFound
	}
	return r.findActive(func(rec record) bool { return rec.GoogleID == subject })
}

func (r *MemoryRepository) UpdateTokens(_ context.Context, id string, tokens OAuthTokens) error {
	access, refresh, err := sealTokens(r.sealer, tokens)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.AccessToken = access
	rec.RefreshToken = refresh
	rec.TokenExpiry = tokens.Expiry.UTC()
	rec.UpdatedAt = r.nowFunc().UTC()
	r.records[id] = rec
	return nil
}

func (r *MemoryRepository) Deactivate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.IsActive = false
	rec.UpdatedAt = r.nowFunc().UTC()
	r.records[id] = rec
	return nil
}

func (r *MemoryRepository) findActive(match func(record) bool) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, rec := range r.records {
		if rec.IsActive && match(rec) {
			return rec.toUser(id, r.sealer)
		}
	}
	return User{}, ErrNotFound
}
