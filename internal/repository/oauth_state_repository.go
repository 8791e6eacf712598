package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	oauthStatePrefix = "oauth:state:"
	oauthTokenKey    = "oauth:dribbble:access_token"
)

// OAuthStateRepository keeps short-lived authorization states and the access token
// obtained from the code exchange.
type OAuthStateRepository interface {
	// SaveState stores state until ttl elapses.
	SaveState(ctx context.Context, state string, ttl time.Duration) error
	// ConsumeState deletes state and reports whether it was present and unexpired.
	ConsumeState(ctx context.Context, state string) (bool, error)
	SaveAccessToken(ctx context.Context, token string, ttl time.Duration) error
	// AccessToken returns the stored token, empty when none.
	AccessToken(ctx context.Context) (string, error)
}

type redisOAuthStateRepository struct {
	client *redis.Client
}

// NewRedisOAuthStateRepository stores states in Redis with a key expiry.
func NewRedisOAuthStateRepository(client *redis.Client) OAuthStateRepository {
	return &redisOAuthStateRepository{client: client}
}

func (r *redisOAuthStateRepository) SaveState(ctx context.Context, state string, ttl time.Duration) error {
	return r.client.Set(ctx, oauthStatePrefix+state, "1", ttl).Err()
}

func (r *redisOAuthStateRepository) ConsumeState(ctx context.Context, state string) (bool, error) {
	err := r.client.GetDel(ctx, oauthStatePrefix+state).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *redisOAuthStateRepository) SaveAccessToken(ctx context.Context, token string, ttl time.Duration) error {
	return r.client.Set(ctx, oauthTokenKey, token, ttl).Err()
}

func (r *redisOAuthStateRepository) AccessToken(ctx context.Context) (string, error) {
	token, err := r.client.Get(ctx, oauthTokenKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return token, err
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryOAuthStateRepository is the single-process fallback used when Redis is not
// reachable.
type MemoryOAuthStateRepository struct {
	mu     sync.Mutex
	states map[string]memoryEntry
	token  memoryEntry
	now    func() time.Time
}

// NewMemoryOAuthStateRepository constructs repository.
func NewMemoryOAuthStateRepository() *MemoryOAuthStateRepository {
	return &MemoryOAuthStateRepository{states: make(map[string]memoryEntry), now: time.Now}
}

func (r *MemoryOAuthStateRepository) SaveState(_ context.Context, state string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for k, v := range r.states {
		if v.expired(now) {
			delete(r.states, k)
		}
	}
	r.states[state] = memoryEntry{expiresAt: expiry(now, ttl)}
	return nil
}

func (r *MemoryOAuthStateRepository) ConsumeState(_ context.Context, state string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.states[state]
	if !ok {
		return false, nil
	}
	delete(r.states, state)
	return !entry.expired(r.now()), nil
}

func (r *MemoryOAuthStateRepository) SaveAccessToken(_ context.Context, token string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = memoryEntry{value: token, expiresAt: expiry(r.now(), ttl)}
	return nil
}

func (r *MemoryOAuthStateRepository) AccessToken(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.token.expired(r.now()) {
		return "", nil
	}
	return r.token.value, nil
}

// expiry maps a non-positive ttl to no expiry.
func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
