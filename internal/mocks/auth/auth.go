package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	domainauth "github.com/target/ssogate/internal/domain/auth"
	apperrors "github.com/target/ssogate/internal/errors"
	"github.com/target/ssogate/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.NonceStore        = (*MemoryNonceStore)(nil)
	_ ports.SessionStore      = (*MemorySessionStore)(nil)
	_ ports.RoleMapper        = (*PassthroughRoleMapper)(nil)
	_ ports.UserRepository    = (*MemoryUserRepository)(nil)
	_ ports.RoleRepository    = (*MemoryRoleRepository)(nil)
	_ ports.HomepageRefresher = (*CountingMaintenance)(nil)
	_ ports.StatsProcessor    = (*CountingMaintenance)(nil)
)

// ErrNotFound is returned by MemorySessionStore for unknown sessions.
type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }

func (notFoundError) Is(target error) bool { return target == domainauth.ErrSessionInvalid }

var ErrNotFound error = notFoundError{}

// MemoryNonceStore issues deterministic nonces ("nonce-1", "nonce-2", ...) held in memory.
type MemoryNonceStore struct {
	TTL time.Duration
	Now func() time.Time

	mu      sync.Mutex
	count   int
	pending map[string]domainauth.Nonce
}

// NewMemoryNonceStore creates a MemoryNonceStore with a ten minute TTL.
func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{TTL: 10 * time.Minute, pending: make(map[string]domainauth.Nonce)}
}

func (m *MemoryNonceStore) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *MemoryNonceStore) Issue(_ context.Context, purpose domainauth.Purpose) (domainauth.Nonce, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		m.pending = make(map[string]domainauth.Nonce)
	}
	m.count++
	now := m.now()
	n := domainauth.Nonce{
		Value:     fmt.Sprintf("nonce-%d", m.count),
		Purpose:   purpose,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.TTL),
	}
	m.pending[n.Value] = n
	return n, nil
}

func (m *MemoryNonceStore) Consume(_ context.Context, value string, purpose domainauth.Purpose) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.pending[value]
	if !ok || n.Consumed || n.Purpose != purpose || n.Expired(m.now()) {
		return false, nil
	}
	n.Consumed = true
	m.pending[value] = n
	return true, nil
}

// Put stores a pending nonce directly, bypassing Issue.
func (m *MemoryNonceStore) Put(n domainauth.Nonce) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		m.pending = make(map[string]domainauth.Nonce)
	}
	m.pending[n.Value] = n
}

// MemorySessionStore is an in-memory session store for unit tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domainauth.Session),
	}
}

func (m *MemorySessionStore) Save(_ context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if id == "" || !ok {
		return domainauth.Session{}, ErrNotFound
	}
	return sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len reports the number of stored sessions.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// PassthroughRoleMapper returns grants unchanged.
type PassthroughRoleMapper struct{}

func (PassthroughRoleMapper) Map(grants []domainauth.RoleGrant) []domainauth.RoleGrant {
	return grants
}

// MemoryUserRepository stores users by username with sequential ids.
type MemoryUserRepository struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]domainauth.User
}

// NewMemoryUserRepository creates an empty repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]domainauth.User)}
}

func (m *MemoryUserRepository) GetByUsername(_ context.Context, username string) (domainauth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return domainauth.User{}, apperrors.NotFoundf("user %q not found", username)
	}
	return u, nil
}

func (m *MemoryUserRepository) CreateIfAbsent(_ context.Context, u domainauth.User) (domainauth.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.users[u.Username]; ok {
		return existing, false, nil
	}
	m.nextID++
	u.ID = m.nextID
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	m.users[u.Username] = u
	return u, true, nil
}

// Len reports the number of stored users.
func (m *MemoryUserRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// MemoryRoleRepository stores global grants per user id.
type MemoryRoleRepository struct {
	mu     sync.Mutex
	grants map[int64][]domainauth.RoleGrant
}

// NewMemoryRoleRepository creates an empty repository.
func NewMemoryRoleRepository() *MemoryRoleRepository {
	return &MemoryRoleRepository{grants: make(map[int64][]domainauth.RoleGrant)}
}

func (m *MemoryRoleRepository) ReplaceGlobalRoles(_ context.Context, userID int64, grants []domainauth.RoleGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]domainauth.RoleGrant, len(grants))
	copy(cp, grants)
	m.grants[userID] = cp
	return nil
}

func (m *MemoryRoleRepository) ListGlobalRoles(_ context.Context, userID int64) ([]domainauth.RoleGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domainauth.RoleGrant, len(m.grants[userID]))
	copy(out, m.grants[userID])
	sort.Slice(out, func(i, j int) bool { return out[i].RoleID < out[j].RoleID })
	return out, nil
}

// CountingMaintenance records calls to the maintenance ports and returns Err.
type CountingMaintenance struct {
	Err error

	mu        sync.Mutex
	Homepage  int
	Views     int
	Downloads int
}

func (c *CountingMaintenance) RefreshHomeProjects(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Homepage++
	return c.Err
}

func (c *CountingMaintenance) ProcessProjectViews(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Views++
	return c.Err
}

func (c *CountingMaintenance) ProcessVersionDownloads(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Downloads++
	return c.Err
}

// Counts returns a snapshot of call counts.
func (c *CountingMaintenance) Counts() (homepage, views, downloads int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Homepage, c.Views, c.Downloads
}
