package httpx

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/target/ssogate/internal/domain/auth"
	"github.com/target/ssogate/internal/service"
)

// Cookie names shared with the frontend.
const (
	sessionCookieName = "session_id"
	returnCookieName  = "url"
	alertCookieName   = "alert"
)

const (
	returnCookiePath  = "/login"
	alertCookieMaxAge = 60
)

// AuthServiceInterface defines the interface for auth service operations.
type AuthServiceInterface interface {
	Login(ctx context.Context, in service.LoginInput) service.LoginResult
	Verify(ctx context.Context, returnPath string) domainauth.RedirectResult
	Signup(ctx context.Context, returnURL string) domainauth.RedirectResult
	Logout(ctx context.Context, sessionID string) domainauth.RedirectResult
	Session(ctx context.Context, id string) (domainauth.Session, error)
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc          AuthServiceInterface
	CookieDomain string
	// ReturnCookieTTL bounds how long the remembered return path survives; it
	// matches the nonce lifetime.
	ReturnCookieTTL time.Duration
	Logger          *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Login handles both the start of a login and the provider callback.
// GET /login?sso=<payload>&sig=<hmac>&returnUrl=<path>.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := service.LoginInput{
		SSO:         q.Get("sso"),
		Sig:         q.Get("sig"),
		ReturnURL:   q.Get("returnUrl"),
		RequestPath: r.URL.Path,
	}
	if c, err := r.Cookie(returnCookieName); err == nil {
		in.ReturnCookie = c.Value
	}

	res := h.Svc.Login(r.Context(), in)

	if res.RememberPath != "" {
		h.setReturnCookie(w, r, res.RememberPath)
	}
	if res.ForgetPath {
		h.clearCookie(w, r, returnCookieName, returnCookiePath)
	}
	if res.Session != nil {
		h.setSessionCookie(w, r, *res.Session)
	}
	h.writeRedirect(w, r, res.RedirectResult)
}

// Verify sends the browser to the provider's verification page.
// POST /verify with form field returnPath.
func (h *AuthHandlers) Verify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.logger().DebugContext(r.Context(), "verify form unreadable", "error", err)
	}
	h.writeRedirect(w, r, h.Svc.Verify(r.Context(), r.PostFormValue("returnPath")))
}

// Signup sends the browser to the provider's signup page.
// GET /signup?returnUrl=<path>.
func (h *AuthHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	h.writeRedirect(w, r, h.Svc.Signup(r.Context(), r.URL.Query().Get("returnUrl")))
}

// Logout ends the session and sends the browser to the provider's logout page.
// GET /logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	var sessionID string
	if c, err := r.Cookie(sessionCookieName); err == nil {
		sessionID = c.Value
	}
	res := h.Svc.Logout(r.Context(), sessionID)
	h.clearCookie(w, r, sessionCookieName, "/")
	h.writeRedirect(w, r, res)
}

// Status returns the current authentication status.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	sessionCookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	session, err := h.Svc.Session(r.Context(), sessionCookie.Value)
	if err != nil {
		if !isInvalidSession(err) {
			h.logger().ErrorContext(r.Context(), "session lookup failed", "error", err)
		}
		h.clearCookie(w, r, sessionCookieName, "/")
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	roles := session.Roles
	if roles == nil {
		roles = []domainauth.Role{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user": map[string]any{
			"id":       session.UserID,
			"username": session.Username,
			"email":    session.Email,
			"roles":    roles,
		},
		"expires_at": session.ExpiresAt,
	})
}

// writeRedirect is the single exit for every login flow branch: it attaches
// the alert, if any, and issues a 302.
func (h *AuthHandlers) writeRedirect(w http.ResponseWriter, r *http.Request, res domainauth.RedirectResult) {
	if res.Alert != nil {
		if value, err := encodeAlert(res.Alert); err == nil {
			http.SetCookie(w, &http.Cookie{
				Name:     alertCookieName,
				Value:    value,
				Path:     "/",
				Domain:   h.CookieDomain,
				Secure:   isSecureRequest(r),
				SameSite: http.SameSiteLaxMode,
				MaxAge:   alertCookieMaxAge,
			})
		} else {
			h.logger().WarnContext(r.Context(), "failed to encode alert", "error", err)
		}
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, res.URL, http.StatusFound)
}

// encodeAlert renders an alert as a cookie-safe value.
func encodeAlert(a *domainauth.Alert) (string, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// decodeAlert parses an alert cookie value.
func decodeAlert(value string) (*domainauth.Alert, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, err
	}
	var a domainauth.Alert
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (h *AuthHandlers) setReturnCookie(w http.ResponseWriter, r *http.Request, path string) {
	maxAge := int(h.ReturnCookieTTL.Seconds())
	if maxAge <= 0 {
		maxAge = 600
	}
	http.SetCookie(w, &http.Cookie{
		Name:     returnCookieName,
		Value:    path,
		Path:     returnCookiePath,
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// setSessionCookie writes the session cookie based on the session's expiry.
func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, r *http.Request, s domainauth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    s.ID,
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(time.Until(s.ExpiresAt).Seconds()),
	})
}

// clearCookie clears a cookie by setting it to expire immediately. Path must
// match the one the cookie was set with.
func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
