package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTTL       = 24 * time.Hour
	sessionKeyPrefix = "fitdash-session||"
	tokensSetKey     = "fitdash-sessions"
)

var _ Registry = (*RedisRegistry)(nil)
var _ Registry = (*MemoryRegistry)(nil)

// Registry keeps track of the sessions the dashboard was logged in with.
type Registry interface {
	Register(ctx context.Context, token string, createdAt time.Time) error
	IsActive(ctx context.Context, token string) (bool, error)
	Forget(ctx context.Context, token string) error
}

type RedisRegistry struct {
	ttl         time.Duration
	redisClient *redis.Client
	nowFunc     func() time.Time
}

func NewRedisRegistry(ttl time.Duration, redisClient *redis.Client) *RedisRegistry {
	return &RedisRegistry{
		ttl:         ttl,
		redisClient: redisClient,
		nowFunc:     time.Now,
	}
}

func (r *RedisRegistry) Register(ctx context.Context, token string, createdAt time.Time) error {
	sessionKey := sessionKeyPrefix + token
	if err := r.redisClient.Set(ctx, sessionKey, createdAt.Unix(), r.ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}

	if err := r.redisClient.SAdd(ctx, tokensSetKey, token).Err(); err != nil {
		return fmt.Errorf("add session to set: %w", err)
	}

	return nil
}

func (r *RedisRegistry) IsActive(ctx context.Context, token string) (bool, error) {
	sessionKey := sessionKeyPrefix + token
	cmd := r.redisClient.Get(ctx, sessionKey)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}

	createdAtUnix, err := strconv.ParseInt(cmd.Val(), 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse session created at: %w", err)
	}

	createdAt := time.Unix(createdAtUnix, 0)
	return r.nowFunc().Sub(createdAt) <= r.ttl, nil
}

func (r *RedisRegistry) Forget(ctx context.Context, token string) error {
	sessionKey := sessionKeyPrefix + token
	if err := r.redisClient.Del(ctx, sessionKey).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if err := r.redisClient.SRem(ctx, tokensSetKey, token).Err(); err != nil {
		return fmt.Errorf("remove session from set: %w", err)
	}

	return nil
}

// ScanAndClean drops the tokens whose session key already expired from the
// set of known sessions.
func (r *RedisRegistry) ScanAndClean(ctx context.Context) {
	cmd := r.redisClient.SMembers(ctx, tokensSetKey)
	if err := cmd.Err(); err != nil {
		log.Errorf("session registry, scan and clean, get sessions: %s", err)
		return
	}

	sessionTokens := cmd.Val()
	if len(sessionTokens) == 0 {
		log.Debugln("session registry, scan and clean: no sessions")
		return
	}

	for _, token := range sessionTokens {
		active, err := r.IsActive(ctx, token)
		if err != nil {
			log.Errorf("session registry, scan and clean token: %s", err)
			continue
		}
		if active {
			continue
		}

		log.Debugf("session registry: cleaning stale session")
		if err := r.Forget(ctx, token); err != nil {
			log.Errorf("session registry, clean token: %s", err)
		}
	}
}

// MemoryRegistry is a Registry for running without redis.
type MemoryRegistry struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]time.Time
	nowFunc  func() time.Time
}

func NewMemoryRegistry(ttl time.Duration) *MemoryRegistry {
	return &MemoryRegistry{
		ttl:      ttl,
		sessions: map[string]time.Time{},
		nowFunc:  time.Now,
	}
}

func (r *MemoryRegistry) Register(_ context.Context, token string, createdAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[token] = createdAt
	return nil
}

func (r *MemoryRegistry) IsActive(_ context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	createdAt, ok := r.sessions[token]
	if !ok {
		return false, nil
	}
	return r.nowFunc().Sub(createdAt) <= r.ttl, nil
}

func (r *MemoryRegistry) Forget(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
	return nil
}
