package service

import (
	"context"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/ssogate/internal/adapters/devauth"
	"github.com/target/ssogate/internal/adapters/sso"
	domainauth "github.com/target/ssogate/internal/domain/auth"
	authmocks "github.com/target/ssogate/internal/mocks/auth"
	"github.com/target/ssogate/internal/observability/metrics"
	"github.com/target/ssogate/internal/ports"
)

const (
	testBaseURL     = "https://hangar.example.org"
	testProviderURL = "https://auth.example.org"
	testSecret      = "changeme"
)

type flowHarness struct {
	svc      *AuthService
	nonces   *authmocks.MemoryNonceStore
	verifier *sso.Verifier
	users    *authmocks.MemoryUserRepository
	roles    *authmocks.MemoryRoleRepository
	sessions *authmocks.MemorySessionStore
	metrics  *metrics.Metrics
}

type flowOption func(*AuthServiceOptions)

func withFakeUser(p ports.FakeUserProvider) flowOption {
	return func(o *AuthServiceOptions) { o.FakeUser = p }
}

func withNonces(n ports.NonceStore) flowOption {
	return func(o *AuthServiceOptions) { o.Nonces = n }
}

func newFlowHarness(t *testing.T, cfg AuthFlowConfig, opts ...flowOption) *flowHarness {
	t.Helper()

	h := &flowHarness{
		nonces:   authmocks.NewMemoryNonceStore(),
		users:    authmocks.NewMemoryUserRepository(),
		roles:    authmocks.NewMemoryRoleRepository(),
		sessions: authmocks.NewMemorySessionStore(),
		metrics:  metrics.New(nil),
	}

	verifier, err := sso.NewVerifier(sso.Config{
		ProviderURL: testProviderURL,
		Secret:      testSecret,
		Nonces:      h.nonces,
	})
	require.NoError(t, err)
	h.verifier = verifier

	users, err := NewUserProvisioner(UserProvisionerOptions{Users: h.users})
	require.NoError(t, err)
	roles, err := NewRoleSynchronizer(RoleSynchronizerOptions{Roles: h.roles})
	require.NoError(t, err)
	sessions, err := NewSessionManager(SessionManagerOptions{Sessions: h.sessions})
	require.NoError(t, err)

	o := AuthServiceOptions{
		Config:    cfg,
		Verifier:  verifier,
		Nonces:    h.nonces,
		Redirects: domainauth.NewRedirectResolver(testBaseURL),
		Users:     users,
		Roles:     roles,
		Sessions:  sessions,
		Mapper:    authmocks.PassthroughRoleMapper{},
		Metrics:   h.metrics,
	}
	for _, opt := range opts {
		opt(&o)
	}

	h.svc, err = NewAuthService(o)
	require.NoError(t, err)
	return h
}

// callback simulates the provider redirecting back with a signed payload.
func (h *flowHarness) callback(t *testing.T, user domainauth.AuthUser) (string, string) {
	t.Helper()
	n, err := h.nonces.Issue(context.Background(), domainauth.PurposeLogin)
	require.NoError(t, err)
	payload := sso.EncodeClaims(n.Value, user)
	return payload, h.verifier.Sign(payload)
}

func decodeProviderPayload(t *testing.T, target string) url.Values {
	t.Helper()
	u, err := url.Parse(target)
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(u.Query().Get("sso"))
	require.NoError(t, err)
	vals, err := url.ParseQuery(string(raw))
	require.NoError(t, err)
	return vals
}

func enabledConfig() AuthFlowConfig {
	return AuthFlowConfig{SSOEnabled: true, ProviderURL: testProviderURL}
}

func alice(roles ...domainauth.RoleGrant) domainauth.AuthUser {
	return domainauth.AuthUser{
		ExternalID: "42",
		Username:   "alice",
		Email:      "alice@example.org",
		Name:       "Alice",
		Roles:      roles,
	}
}

func TestNewAuthService_Validation(t *testing.T) {
	_, err := NewAuthService(AuthServiceOptions{})
	require.Error(t, err)

	h := newFlowHarness(t, enabledConfig())
	_, err = NewAuthService(AuthServiceOptions{
		Config:    enabledConfig(),
		Redirects: h.svc.redirects,
		Users:     h.svc.users,
		Roles:     h.svc.roles,
		Sessions:  h.svc.sessions,
	})
	require.Error(t, err, "SSO enabled without verifier must be rejected")

	_, err = NewAuthService(AuthServiceOptions{
		Redirects: h.svc.redirects,
		Users:     h.svc.users,
		Roles:     h.svc.roles,
		Sessions:  h.svc.sessions,
	})
	require.NoError(t, err, "SSO disabled needs no verifier")
}

func TestAuthService_BeginLogin(t *testing.T) {
	h := newFlowHarness(t, enabledConfig())

	res := h.svc.Login(context.Background(), LoginInput{ReturnURL: "/projects/new", RequestPath: "/login"})

	require.Nil(t, res.Alert)
	assert.Nil(t, res.Session)
	assert.True(t, strings.HasPrefix(res.URL, testProviderURL+"/sso/?"), res.URL)
	assert.Equal(t, "/projects/new", res.RememberPath)

	payload := decodeProviderPayload(t, res.URL)
	assert.Equal(t, "nonce-1", payload.Get(sso.FieldNonce))
	assert.Equal(t, testBaseURL+"/login", payload.Get(sso.FieldReturnURL))
	assert.Equal(t, "login", payload.Get(sso.FieldPurpose))

	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.LoginAttemptsTotal.WithLabelValues(outcomeRedirect)), 0)
}

func TestAuthService_BeginLogin_DefaultsToRequestPath(t *testing.T) {
	h := newFlowHarness(t, enabledConfig())

	res := h.svc.Login(context.Background(), LoginInput{RequestPath: "/projects/foo"})

	require.Nil(t, res.Alert)
	assert.Equal(t, "/projects/foo", res.RememberPath)
}

func TestAuthService_BeginLogin_LoginRouteFallsBackToHome(t *testing.T) {
	tests := []struct {
		name string
		in   LoginInput
	}{
		{"login route", LoginInput{RequestPath: "/login"}},
		{"no path", LoginInput{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newFlowHarness(t, enabledConfig())

			res := h.svc.Login(context.Background(), tt.in)

			require.Nil(t, res.Alert)
			assert.Equal(t, "/", res.RememberPath)
		})
	}
}

func TestAuthService_BeginLogin_Disabled(t *testing.T) {
	h := newFlowHarness(t, AuthFlowConfig{ProviderURL: testProviderURL})

	res := h.svc.Login(context.Background(), LoginInput{ReturnURL: "/x"})

	require.NotNil(t, res.Alert)
	assert.Equal(t, domainauth.MsgNoLogin, res.Alert.MessageKey)
	assert.Equal(t, testBaseURL+"/", res.URL)
	assert.Empty(t, res.RememberPath)
}

type failingNonceStore struct{}

func (failingNonceStore) Issue(context.Context, domainauth.Purpose) (domainauth.Nonce, error) {
	return domainauth.Nonce{}, errors.New("redis: connection refused")
}

func (failingNonceStore) Consume(context.Context, string, domainauth.Purpose) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func TestAuthService_BeginLogin_StoreFailure(t *testing.T) {
	h := newFlowHarness(t, enabledConfig(), withNonces(failingNonceStore{}))

	res := h.svc.Login(context.Background(), LoginInput{ReturnURL: "/x"})

	require.NotNil(t, res.Alert)
	assert.Equal(t, domainauth.MsgLoginFailed, res.Alert.MessageKey)
	assert.Equal(t, testBaseURL+"/", res.URL)
}

func TestAuthService_Callback_Success(t *testing.T) {
	h := newFlowHarness(t, enabledConfig())
	ctx := context.Background()

	payload, sig := h.callback(t, alice(
		domainauth.RoleGrant{RoleID: domainauth.RoleAdmin, Accepted: true},
		domainauth.RoleGrant{RoleID: domainauth.RoleUser, Accepted: false},
	))

	res := h.svc.Login(ctx, LoginInput{SSO: payload, Sig: sig, ReturnCookie: "/projects"})

	require.Nil(t, res.Alert)
	require.NotNil(t, res.Session)
	assert.Equal(t, testBaseURL+"/projects", res.URL)
	assert.True(t, res.ForgetPath)
	assert.Equal(t, []domainauth.Role{domainauth.RoleAdmin}, res.Session.Roles)
	assert.Equal(t, "alice", res.Session.Username)
	assert.Equal(t, 1, h.sessions.Len())

	user, err := h.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "42", user.ExternalID)

	grants, err := h.roles.ListGlobalRoles(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []domainauth.RoleGrant{
		{RoleID: domainauth.RoleAdmin, Accepted: true},
		{RoleID: domainauth.RoleUser, Accepted: false},
	}, grants)

	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.LoginAttemptsTotal.WithLabelValues(outcomeSuccess)), 0)
}

func TestAuthService_Callback_NoCookieGoesHome(t *testing.T) {
	h := newFlowHarness(t, enabledConfig())
	payload, sig := h.callback(t, alice())

	res := h.svc.Login(context.Background(), LoginInput{SSO: payload, Sig: sig})

	require.NotNil(t, res.Session)
	assert.Equal(t, testBaseURL+"/", res.URL)
}

func TestAuthService_Callback_OffSiteCookieGoesHome(t *testing.T) {
	h := newFlowHarness(t, enabledConfig())
	payload, sig := h.callback(t, alice())

	res := h.svc.Login(context.Background(), LoginInput{
		SSO:          payload,
		Sig:          sig,
		ReturnCookie: "https://evil.example.com/steal",
	})

	require.NotNil(t, res.Session)
	assert.Equal(t, testBaseURL+"/", res.URL)
}

func TestAuthService_Callback_Replay(t *testing.T) {
	h := newFlowHarness(t, enabledConfig())
	ctx := context.Background()
	payload, sig := h.callback(t, alice())

	first := h.svc.Login(ctx, LoginInput{SSO: payload, Sig: sig})
	require.NotNil(t, first.Session)

	second := h.svc.Login(ctx, LoginInput{SSO: payload, Sig: sig})
	assert.Nil(t, second.Session)
	require.NotNil(t, second.Alert)
	assert.Equal(t, domainauth.MsgLoginFailed, second.Alert.MessageKey)
	assert.Equal(t, testBaseURL+"/", second.URL)
	assert.Equal(t, 1, h.sessions.Len())
}

func TestAuthService_Callback_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(payload, sig string) (string, string)
	}{
		{
			name: "tampered signature",
			mutate: func(p, s string) (string, string) {
				return p, strings.Repeat("0", len(s))
			},
		},
		{
			name: "missing signature",
			mutate: func(p, _ string) (string, string) {
				return p, ""
			},
		},
		{
			name: "tampered payload",
			mutate: func(p, s string) (string, string) {
				return base64.StdEncoding.EncodeToString([]byte("nonce=nonce-1&username=mallory")), s
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newFlowHarness(t, enabledConfig())
			payload, sig := h.callback(t, alice())
			payload, sig = tt.mutate(payload, sig)

			res := h.svc.Login(context.Background(), LoginInput{SSO: payload, Sig: sig, ReturnCookie: "/p"})

			assert.Nil(t, res.Session)
			require.NotNil(t, res.Alert)
			assert.Equal(t, domainauth.MsgLoginFailed, res.Alert.MessageKey)
			assert.Equal(t, testBaseURL+"/", res.URL)
			assert.Equal(t, 0, h.users.Len())
		})
	}
}

func TestAuthService_Callback_SessionUsesStoredGrants(t *testing.T) {
	h := newFlowHarness(t, enabledConfig())
	ctx := context.Background()

	payload, sig := h.callback(t, alice(
		domainauth.RoleGrant{RoleID: domainauth.RoleUser, Accepted: true},
		domainauth.RoleGrant{RoleID: domainauth.RoleAdmin, Accepted: false},
		domainauth.RoleGrant{RoleID: domainauth.RoleAdmin, Accepted: true},
	))

	res := h.svc.Login(ctx, LoginInput{SSO: payload, Sig: sig})

	require.NotNil(t, res.Session)
	assert.Equal(t, []domainauth.Role{domainauth.RoleAdmin, domainauth.RoleUser}, res.Session.Roles)

	user, err := h.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	grants, err := h.roles.ListGlobalRoles(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []domainauth.RoleGrant{
		{RoleID: domainauth.RoleAdmin, Accepted: true},
		{RoleID: domainauth.RoleUser, Accepted: true},
	}, grants)
}

func TestAuthService_Callback_ExistingUserRolesReplaced(t *testing.T) {
	h := newFlowHarness(t, enabledConfig())
	ctx := context.Background()

	payload, sig := h.callback(t, alice(domainauth.RoleGrant{RoleID: domainauth.RoleAdmin, Accepted: true}))
	require.NotNil(t, h.svc.Login(ctx, LoginInput{SSO: payload, Sig: sig}).Session)

	renamed := alice(domainauth.RoleGrant{RoleID: domainauth.RoleModerator, Accepted: true})
	renamed.Email = "changed@example.org"
	payload, sig = h.callback(t, renamed)
	res := h.svc.Login(ctx, LoginInput{SSO: payload, Sig: sig})
	require.NotNil(t, res.Session)

	assert.Equal(t, 1, h.users.Len())
	user, err := h.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.org", user.Email, "existing users are not updated")

	grants, err := h.roles.ListGlobalRoles(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []domainauth.RoleGrant{{RoleID: domainauth.RoleModerator, Accepted: true}}, grants)
}

func TestAuthService_FakeUser(t *testing.T) {
	fake, err := devauth.NewProvider(devauth.Config{
		Username: "paper",
		Email:    "paper@example.org",
		Roles:    []string{"admin"},
	})
	require.NoError(t, err)

	t.Run("dev mode", func(t *testing.T) {
		cfg := enabledConfig()
		cfg.DevMode = true
		cfg.FakeUserEnabled = true
		h := newFlowHarness(t, cfg, withFakeUser(fake))

		res := h.svc.Login(context.Background(), LoginInput{ReturnURL: "/admin"})

		require.Nil(t, res.Alert)
		require.NotNil(t, res.Session)
		assert.Equal(t, testBaseURL+"/admin", res.URL)
		assert.Equal(t, "paper", res.Session.Username)
		assert.True(t, res.Session.HasRole(domainauth.RoleAdmin))
	})

	t.Run("refused outside dev mode", func(t *testing.T) {
		cfg := enabledConfig()
		cfg.FakeUserEnabled = true
		h := newFlowHarness(t, cfg, withFakeUser(fake))

		res := h.svc.Login(context.Background(), LoginInput{ReturnURL: "/admin"})

		assert.Nil(t, res.Session)
		require.NotNil(t, res.Alert)
		assert.Equal(t, domainauth.MsgNoLogin, res.Alert.MessageKey)
		assert.Equal(t, 0, h.sessions.Len())
	})
}

func TestAuthService_Verify(t *testing.T) {
	h := newFlowHarness(t, enabledConfig())
	ctx := context.Background()

	res := h.svc.Verify(ctx, "")
	require.NotNil(t, res.Alert)
	assert.Equal(t, domainauth.MsgInvalidReturnPath, res.Alert.MessageKey)
	assert.Equal(t, testBaseURL+"/", res.URL)

	res = h.svc.Verify(ctx, "/settings/security")
	require.Nil(t, res.Alert)
	assert.True(t, strings.HasPrefix(res.URL, testProviderURL+"/sso/verify/?"), res.URL)
	payload := decodeProviderPayload(t, res.URL)
	assert.Equal(t, testBaseURL+"/settings/security", payload.Get(sso.FieldReturnURL))
	assert.Equal(t, "verify", payload.Get(sso.FieldPurpose))
}

func TestAuthService_Signup(t *testing.T) {
	h := newFlowHarness(t, enabledConfig())

	res := h.svc.Signup(context.Background(), "//evil.example.com")

	require.Nil(t, res.Alert)
	assert.True(t, strings.HasPrefix(res.URL, testProviderURL+"/sso/signup/?"), res.URL)
	payload := decodeProviderPayload(t, res.URL)
	assert.Equal(t, testBaseURL+"/", payload.Get(sso.FieldReturnURL))
}

func TestAuthService_Logout(t *testing.T) {
	h := newFlowHarness(t, enabledConfig())
	ctx := context.Background()
	payload, sig := h.callback(t, alice())
	login := h.svc.Login(ctx, LoginInput{SSO: payload, Sig: sig})
	require.NotNil(t, login.Session)

	res := h.svc.Logout(ctx, login.Session.ID)

	assert.Equal(t, testProviderURL+"/accounts/logout/", res.URL)
	assert.Nil(t, res.Alert)
	_, err := h.svc.Session(ctx, login.Session.ID)
	assert.ErrorIs(t, err, domainauth.ErrSessionInvalid)
}
