package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	domainauth "github.com/target/ssogate/internal/domain/auth"
	"github.com/target/ssogate/internal/ports"
)

// DefaultSessionTTL is used when SessionManagerOptions.TTL is zero.
const DefaultSessionTTL = 8 * time.Hour

// SessionManagerOptions groups dependencies for SessionManager.
type SessionManagerOptions struct {
	Sessions ports.SessionStore // Required
	TTL      time.Duration      // Optional, defaults to DefaultSessionTTL
	Now      func() time.Time   // Optional, for tests
	Logger   *slog.Logger       // Optional
}

// SessionManager creates, resolves and ends authenticated sessions.
type SessionManager struct {
	sessions ports.SessionStore
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(opts SessionManagerOptions) (*SessionManager, error) {
	if opts.Sessions == nil {
		return nil, errors.New("SessionStore is required")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		sessions: opts.Sessions,
		ttl:      ttl,
		now:      now,
		logger:   logger.With("component", "session_manager"),
	}, nil
}

// TTL reports the lifetime given to new sessions.
func (m *SessionManager) TTL() time.Duration { return m.ttl }

// Login persists a new session for user carrying the accepted roles in grants.
func (m *SessionManager) Login(
	ctx context.Context,
	user domainauth.User,
	grants []domainauth.RoleGrant,
) (domainauth.Session, error) {
	sess := domainauth.Session{
		ID:        generateSessionID(),
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Roles:     domainauth.AcceptedRoles(grants),
		ExpiresAt: m.now().Add(m.ttl),
	}
	if err := m.sessions.Save(ctx, sess); err != nil {
		return domainauth.Session{}, fmt.Errorf("save session: %w", err)
	}
	m.logger.DebugContext(ctx, "session created", "user_id", user.ID)
	return sess, nil
}

// Get resolves a session id. Unknown, expired and logged-out sessions all
// yield ErrSessionInvalid.
func (m *SessionManager) Get(ctx context.Context, id string) (domainauth.Session, error) {
	if id == "" {
		return domainauth.Session{}, domainauth.ErrSessionInvalid
	}
	sess, err := m.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domainauth.ErrSessionInvalid) {
			return domainauth.Session{}, domainauth.ErrSessionInvalid
		}
		return domainauth.Session{}, fmt.Errorf("get session: %w", err)
	}
	if !m.now().Before(sess.ExpiresAt) {
		if err := m.sessions.Delete(ctx, id); err != nil {
			m.logger.WarnContext(ctx, "failed to delete expired session", "error", err)
		}
		return domainauth.Session{}, domainauth.ErrSessionInvalid
	}
	return sess, nil
}

// Logout ends the session. Ending an unknown session is not an error.
func (m *SessionManager) Logout(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := m.sessions.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// generateSessionID creates a cryptographically secure random session ID.
func generateSessionID() string {
	return uuid.New().String()
}
