package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/2beens/fitdash/internal/telemetry/metrics"

	log "github.com/sirupsen/logrus"
)

// Store holds the credential of the single dashboard session and tells its
// subscribers about every change. Subscribers only ever see the latest value.
type Store struct {
	registry       Registry
	metricsManager *metrics.Manager
	nowFunc        func() time.Time

	mu          sync.Mutex
	token       string
	subscribers map[int]chan string
	nextSubID   int
}

func NewStore(registry Registry, metricsManager *metrics.Manager) *Store {
	return &Store{
		registry:       registry,
		metricsManager: metricsManager,
		nowFunc:        time.Now,
		subscribers:    map[int]chan string{},
	}
}

func (s *Store) Credential() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" || TokenExpired(s.token, s.nowFunc()) {
		return ""
	}
	return s.token
}

func (s *Store) Subscribe() (<-chan string, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan string, 1)
	s.subscribers[id] = ch

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if ch, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(ch)
		}
	}

	return ch, unsubscribe
}

// Login replaces the current credential with token. Logging in with the
// current token again is a no-op.
func (s *Store) Login(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}

	now := s.nowFunc()
	if TokenExpired(token, now) {
		return ErrTokenExpired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if token == s.token {
		return nil
	}

	if err := s.registry.Register(ctx, token, now); err != nil {
		return fmt.Errorf("register session: %w", err)
	}
	if s.token != "" {
		if err := s.registry.Forget(ctx, s.token); err != nil {
			log.Errorf("session store: forget replaced session: %s", err)
		}
	}

	s.setToken(token, "login")
	return nil
}

// Logout clears the credential. It reports false if nobody was logged in.
func (s *Store) Logout(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		return false, nil
	}

	if err := s.registry.Forget(ctx, s.token); err != nil {
		return false, fmt.Errorf("forget session: %w", err)
	}

	s.setToken("", "logout")
	return true, nil
}

// CheckExpiry logs the session out when its token expired or the registry no
// longer knows it. It reports whether that happened.
func (s *Store) CheckExpiry(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		return false, nil
	}

	expired := TokenExpired(s.token, s.nowFunc())
	if !expired {
		active, err := s.registry.IsActive(ctx, s.token)
		if err != nil {
			return false, fmt.Errorf("check session: %w", err)
		}
		expired = !active
	}
	if !expired {
		return false, nil
	}

	if err := s.registry.Forget(ctx, s.token); err != nil {
		log.Errorf("session store: forget expired session: %s", err)
	}

	log.Println("session store: session expired")
	s.setToken("", "expired")
	return true, nil
}

// RunExpiryCheck calls CheckExpiry every interval until ctx is done.
func (s *Store) RunExpiryCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.CheckExpiry(ctx); err != nil {
				log.Errorf("session store: %s", err)
			}
		}
	}
}

// setToken must be called with s.mu held.
func (s *Store) setToken(token, kind string) {
	s.token = token
	if s.metricsManager != nil {
		s.metricsManager.CounterSessionChanges.WithLabelValues(kind).Inc()
	}

	for _, ch := range s.subscribers {
		// drop the value nobody read yet, the new one replaces it
		select {
		case <-ch:
		default:
		}
		ch <- token
	}
}
