package redis

import (
	"context"
	"testing"
	"time"

	domainauth "github.com/target/ssogate/internal/domain/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(id string, ttl time.Duration) domainauth.Session {
	return domainauth.Session{
		ID:        id,
		UserID:    42,
		Username:  "alice",
		Email:     "alice@example.com",
		Roles:     []domainauth.Role{domainauth.RoleAdmin},
		ExpiresAt: time.Now().Add(ttl),
	}
}

func TestSessionStore_SaveAndGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	session := testSession("test-session-1", 30*time.Minute)
	require.NoError(t, store.Save(ctx, session))

	retrieved, err := store.Get(ctx, "test-session-1")
	require.NoError(t, err)
	assert.Equal(t, session.ID, retrieved.ID)
	assert.Equal(t, session.UserID, retrieved.UserID)
	assert.Equal(t, session.Username, retrieved.Username)
	assert.Equal(t, session.Roles, retrieved.Roles)
	assert.WithinDuration(t, session.ExpiresAt, retrieved.ExpiresAt, time.Second)

	ttl := mr.TTL("session:test-session-1")
	assert.True(t, ttl > 29*time.Minute && ttl <= 30*time.Minute, "ttl=%s", ttl)
}

func TestSessionStore_GetNonExistent(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewSessionStore(client)

	_, err := store.Get(context.Background(), "non-existent")
	assert.Equal(t, ErrNotFound, err)

	_, err = store.Get(context.Background(), "")
	assert.Equal(t, ErrNotFound, err)
}

func TestSessionStore_Delete(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("s-del", time.Hour)))
	require.NoError(t, store.Delete(ctx, "s-del"))

	_, err := store.Get(ctx, "s-del")
	assert.Equal(t, ErrNotFound, err)

	assert.NoError(t, store.Delete(ctx, ""))
}

func TestSessionStore_RejectsInvalid(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	assert.Error(t, store.Save(ctx, domainauth.Session{ExpiresAt: time.Now().Add(time.Hour)}))
	assert.Error(t, store.Save(ctx, testSession("old", -time.Minute)))
}

func TestSessionStore_KeyExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("short", time.Minute)))
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "short")
	assert.Equal(t, ErrNotFound, err)
}

func TestSessionStore_StaleRecordCleanedUp(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewSessionStoreWithPrefix(client, "custom:")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("stale", time.Hour)))
	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err := store.Get(ctx, "stale")
	assert.Equal(t, ErrNotFound, err)
	assert.False(t, mr.Exists("custom:stale"))
}
