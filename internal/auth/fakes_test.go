package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(unix int64) *fakeClock {
	return &fakeClock{now: time.Unix(unix, 0).UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(unix int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.Unix(unix, 0).UTC()
}

type sequenceIDs struct {
	mu  sync.Mutex
	ids []string
	n   int
}

func (s *sequenceIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.n < len(s.ids) {
		id := s.ids[s.n]
		s.n++
		return id, nil
	}
	s.n++
	return fmt.Sprintf("generated-%d", s.n), nil
}

// memoryTokens is a map-backed TokenRepository.
type memoryTokens struct {
	mu      sync.Mutex
	access  map[string]AccessToken
	refresh map[string]RefreshToken
}

func newMemoryTokens() *memoryTokens {
	return &memoryTokens{
		access:  make(map[string]AccessToken),
		refresh: make(map[string]RefreshToken),
	}
}

func (s *memoryTokens) CreateAccessToken(_ context.Context, t *AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.access[t.ID]; ok {
		return ErrDuplicateID
	}
	s.access[t.ID] = *t
	return nil
}

func (s *memoryTokens) FindAccessToken(_ context.Context, id string) (*AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.access[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (s *memoryTokens) DeleteAccessToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.access, id)
	return nil
}

func (s *memoryTokens) CreateRefreshToken(_ context.Context, t *RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.refresh[t.ID]; ok {
		return ErrDuplicateID
	}
	s.refresh[t.ID] = *t
	return nil
}

func (s *memoryTokens) FindRefreshToken(_ context.Context, id string) (*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.refresh[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (s *memoryTokens) DeleteRefreshToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refresh, id)
	return nil
}

func (s *memoryTokens) ShortenRefreshTokenExpiry(_ context.Context, id string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.refresh[id]
	if !ok || !t.ExpiresAt.After(expiresAt) {
		return nil
	}
	t.ExpiresAt = expiresAt
	s.refresh[id] = t
	return nil
}

func (s *memoryTokens) RefreshTokenExistsAfter(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.refresh[id]
	return ok && t.ExpiresAt.After(at), nil
}

func (s *memoryTokens) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, t := range s.access {
		if !t.ExpiresAt.After(before) {
			delete(s.access, id)
			n++
		}
	}
	for id, t := range s.refresh {
		if !t.ExpiresAt.After(before) {
			delete(s.refresh, id)
			n++
		}
	}
	return n, nil
}

// mockTokens lets tests script store failures.
type mockTokens struct {
	mock.Mock
}

func (m *mockTokens) CreateAccessToken(ctx context.Context, t *AccessToken) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockTokens) FindAccessToken(ctx context.Context, id string) (*AccessToken, error) {
	args := m.Called(ctx, id)
	t, _ := args.Get(0).(*AccessToken)
	return t, args.Error(1)
}

func (m *mockTokens) DeleteAccessToken(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockTokens) CreateRefreshToken(ctx context.Context, t *RefreshToken) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockTokens) FindRefreshToken(ctx context.Context, id string) (*RefreshToken, error) {
	args := m.Called(ctx, id)
	t, _ := args.Get(0).(*RefreshToken)
	return t, args.Error(1)
}

func (m *mockTokens) DeleteRefreshToken(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockTokens) ShortenRefreshTokenExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	return m.Called(ctx, id, expiresAt).Error(0)
}

func (m *mockTokens) RefreshTokenExistsAfter(ctx context.Context, id string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockTokens) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type memoryClients map[string]*Client

func (c memoryClients) FindClient(_ context.Context, id string) (*Client, error) {
	client, ok := c[id]
	if !ok {
		return nil, ErrNotFound
	}
	return client, nil
}

type countingRecorder struct {
	mu       sync.Mutex
	issued   map[TokenKind]int
	revoked  map[TokenKind]int
	rejected map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		issued:   make(map[TokenKind]int),
		revoked:  make(map[TokenKind]int),
		rejected: make(map[string]int),
	}
}

func (r *countingRecorder) TokenIssued(kind TokenKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued[kind]++
}

func (r *countingRecorder) TokenRevoked(kind TokenKind, _ bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[kind]++
}

func (r *countingRecorder) ClientRejected(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected[reason]++
}

type failingNotifier struct {
	calls int
}

func (n *failingNotifier) TokenRevoked(context.Context, TokenKind, string) error {
	n.calls++
	return fmt.Errorf("broker unavailable")
}

type mutableSettings struct {
	mu sync.Mutex
	s  Settings
}

func (m *mutableSettings) Settings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s
}

func (m *mutableSettings) SetGracePeriod(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.RefreshTokenGracePeriod = d
}
