package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	domainauth "github.com/target/ssogate/internal/domain/auth"
	"github.com/target/ssogate/internal/observability/metrics"
	"github.com/target/ssogate/internal/ports"
)

// Login outcome labels.
const (
	outcomeRedirect = "redirect"
	outcomeSuccess  = "success"
	outcomeFailed   = "failed"
	outcomeDisabled = "disabled"
	outcomeFake     = "fake"
)

// AuthFlowConfig carries the switches that pick a login branch.
type AuthFlowConfig struct {
	SSOEnabled      bool
	ProviderURL     string
	DevMode         bool
	FakeUserEnabled bool
}

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Config    AuthFlowConfig
	Verifier  ports.SsoVerifier           // Required when SSO is enabled
	Nonces    ports.NonceStore            // Required when SSO is enabled
	Redirects *domainauth.RedirectResolver // Required
	Users     *UserProvisioner            // Required
	Roles     *RoleSynchronizer           // Required
	Sessions  *SessionManager             // Required
	Mapper    ports.RoleMapper            // Optional, grants pass through unchanged when nil
	FakeUser  ports.FakeUserProvider      // Optional
	Metrics   *metrics.Metrics            // Optional
	Logger    *slog.Logger                // Optional
}

// AuthService orchestrates the SSO login, verify, signup and logout flows.
// Every flow ends in a RedirectResult; failures never escape as errors, they
// become an alert on the home page.
type AuthService struct {
	cfg       AuthFlowConfig
	verifier  ports.SsoVerifier
	nonces    ports.NonceStore
	redirects *domainauth.RedirectResolver
	users     *UserProvisioner
	roles     *RoleSynchronizer
	sessions  *SessionManager
	mapper    ports.RoleMapper
	fakeUser  ports.FakeUserProvider
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	if err := validateAuthServiceOptions(opts); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		cfg:       opts.Config,
		verifier:  opts.Verifier,
		nonces:    opts.Nonces,
		redirects: opts.Redirects,
		users:     opts.Users,
		roles:     opts.Roles,
		sessions:  opts.Sessions,
		mapper:    opts.Mapper,
		fakeUser:  opts.FakeUser,
		metrics:   opts.Metrics,
		logger:    logger.With("component", "auth_service"),
	}, nil
}

func validateAuthServiceOptions(opts AuthServiceOptions) error {
	if opts.Redirects == nil {
		return errors.New("RedirectResolver is required")
	}
	if opts.Users == nil || opts.Roles == nil || opts.Sessions == nil {
		return errors.New("UserProvisioner, RoleSynchronizer and SessionManager are required")
	}
	if opts.Config.SSOEnabled && (opts.Verifier == nil || opts.Nonces == nil) {
		return errors.New("SsoVerifier and NonceStore are required when SSO is enabled")
	}
	return nil
}

// LoginInput is the browser state relevant to GET /login.
type LoginInput struct {
	SSO          string // signed payload from the provider callback
	Sig          string // hex HMAC of SSO
	ReturnURL    string // returnUrl query parameter
	ReturnCookie string // value remembered in the url cookie
	RequestPath  string // path of the login request itself
}

// LoginResult is the outcome of GET /login.
type LoginResult struct {
	domainauth.RedirectResult

	// Session is set when the browser is now authenticated.
	Session *domainauth.Session
	// RememberPath, when non-empty, is stored in the url cookie until the callback.
	RememberPath string
	// ForgetPath clears the url cookie.
	ForgetPath bool
}

// Login runs whichever login branch applies: the development identity, the
// start of a provider round trip, or the provider callback.
func (s *AuthService) Login(ctx context.Context, in LoginInput) LoginResult {
	if s.cfg.FakeUserEnabled {
		return s.loginFakeUser(ctx, in.ReturnURL)
	}
	if in.SSO == "" {
		return s.beginLogin(ctx, in)
	}
	return s.completeLogin(ctx, in)
}

func (s *AuthService) loginFakeUser(ctx context.Context, returnURL string) LoginResult {
	if !s.cfg.DevMode || s.fakeUser == nil {
		s.logger.WarnContext(ctx, "fake user login refused",
			"error", domainauth.ErrConfigurationDisabled,
			"dev_mode", s.cfg.DevMode,
		)
		s.metrics.LoginAttempt(outcomeDisabled)
		return LoginResult{RedirectResult: s.failure(domainauth.MsgNoLogin)}
	}

	sess, err := s.establish(ctx, s.fakeUser.Identity())
	if err != nil {
		s.logger.ErrorContext(ctx, "fake user login failed", "error", err)
		s.metrics.LoginAttempt(outcomeFailed)
		return LoginResult{RedirectResult: s.failure(domainauth.MsgLoginFailed)}
	}

	s.metrics.LoginAttempt(outcomeFake)
	return LoginResult{
		RedirectResult: domainauth.RedirectResult{URL: s.redirects.Resolve(returnURL)},
		Session:        &sess,
	}
}

// loginPath is where the provider sends callbacks.
const loginPath = "/login"

func (s *AuthService) beginLogin(ctx context.Context, in LoginInput) LoginResult {
	if !s.cfg.SSOEnabled {
		s.metrics.LoginAttempt(outcomeDisabled)
		return LoginResult{RedirectResult: s.failure(domainauth.MsgNoLogin)}
	}

	returnPath := in.ReturnURL
	if returnPath == "" {
		returnPath = in.RequestPath
	}
	// Returning to the login route would start another round trip.
	if returnPath == "" || returnPath == loginPath {
		returnPath = "/"
	}

	target, err := s.providerURL(ctx, s.redirects.BaseURL()+loginPath, domainauth.PurposeLogin)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to start login", "error", err)
		s.metrics.LoginAttempt(outcomeFailed)
		return LoginResult{RedirectResult: s.failure(domainauth.MsgLoginFailed)}
	}

	s.metrics.LoginAttempt(outcomeRedirect)
	return LoginResult{
		RedirectResult: domainauth.RedirectResult{URL: target},
		RememberPath:   returnPath,
	}
}

func (s *AuthService) completeLogin(ctx context.Context, in LoginInput) LoginResult {
	if !s.cfg.SSOEnabled {
		s.metrics.LoginAttempt(outcomeDisabled)
		return LoginResult{RedirectResult: s.failure(domainauth.MsgNoLogin)}
	}

	identity, err := s.verifier.Verify(ctx, in.SSO, in.Sig)
	if err != nil {
		if domainauth.IsVerificationError(err) {
			s.logger.WarnContext(ctx, "sso callback rejected", "error", err)
		} else {
			s.logger.ErrorContext(ctx, "sso callback could not be verified", "error", err)
		}
		s.metrics.LoginAttempt(outcomeFailed)
		return LoginResult{RedirectResult: s.failure(domainauth.MsgLoginFailed)}
	}

	sess, err := s.establish(ctx, identity)
	if err != nil {
		s.logger.ErrorContext(ctx, "login failed after verification",
			"username", identity.Username,
			"error", err,
		)
		s.metrics.LoginAttempt(outcomeFailed)
		return LoginResult{RedirectResult: s.failure(domainauth.MsgLoginFailed)}
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", sess.UserID, "username", sess.Username)
	s.metrics.LoginAttempt(outcomeSuccess)
	return LoginResult{
		RedirectResult: domainauth.RedirectResult{URL: s.redirects.Resolve(in.ReturnCookie)},
		Session:        &sess,
		ForgetPath:     true,
	}
}

// establish provisions the user, synchronizes roles and opens a session.
func (s *AuthService) establish(ctx context.Context, identity domainauth.AuthUser) (domainauth.Session, error) {
	user, err := s.users.GetOrCreate(ctx, identity.Username, identity)
	if err != nil {
		return domainauth.Session{}, err
	}

	grants := identity.Roles
	if s.mapper != nil {
		grants = s.mapper.Map(grants)
	}
	if err := s.roles.Sync(ctx, user.ID, grants); err != nil {
		return domainauth.Session{}, err
	}

	// The session carries the stored grants, not the asserted ones.
	stored, err := s.roles.GlobalRoles(ctx, user.ID)
	if err != nil {
		return domainauth.Session{}, err
	}
	return s.sessions.Login(ctx, user, stored)
}

// Verify sends the browser to the provider's verification page, returning to returnPath.
func (s *AuthService) Verify(ctx context.Context, returnPath string) domainauth.RedirectResult {
	if strings.TrimSpace(returnPath) == "" {
		return s.failure(domainauth.MsgInvalidReturnPath)
	}
	return s.providerRedirect(ctx, returnPath, domainauth.PurposeVerify)
}

// Signup sends the browser to the provider's signup page, returning to returnURL.
func (s *AuthService) Signup(ctx context.Context, returnURL string) domainauth.RedirectResult {
	return s.providerRedirect(ctx, returnURL, domainauth.PurposeSignup)
}

func (s *AuthService) providerRedirect(
	ctx context.Context,
	returnPath string,
	purpose domainauth.Purpose,
) domainauth.RedirectResult {
	if !s.cfg.SSOEnabled {
		return s.failure(domainauth.MsgNoLogin)
	}
	target, err := s.providerURL(ctx, s.redirects.Resolve(returnPath), purpose)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to build provider redirect", "purpose", purpose, "error", err)
		return s.failure(domainauth.MsgLoginFailed)
	}
	return domainauth.RedirectResult{URL: target}
}

func (s *AuthService) providerURL(ctx context.Context, returnURL string, purpose domainauth.Purpose) (string, error) {
	nonce, err := s.nonces.Issue(ctx, purpose)
	if err != nil {
		return "", fmt.Errorf("issue %s nonce: %w", purpose, err)
	}
	return s.verifier.BuildSignedURL(returnURL, purpose, nonce.Value)
}

// Logout ends the session and sends the browser to the provider's logout page.
func (s *AuthService) Logout(ctx context.Context, sessionID string) domainauth.RedirectResult {
	if err := s.sessions.Logout(ctx, sessionID); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete session on logout", "error", err)
	}
	provider := strings.TrimRight(s.cfg.ProviderURL, "/")
	if provider == "" {
		return domainauth.RedirectResult{URL: s.redirects.Home()}
	}
	return domainauth.RedirectResult{URL: provider + "/accounts/logout/"}
}

// Session resolves an authenticated session by id.
func (s *AuthService) Session(ctx context.Context, id string) (domainauth.Session, error) {
	return s.sessions.Get(ctx, id)
}

func (s *AuthService) failure(key string) domainauth.RedirectResult {
	return domainauth.RedirectResult{
		URL:   s.redirects.Home(),
		Alert: domainauth.ErrorAlert(key),
	}
}
