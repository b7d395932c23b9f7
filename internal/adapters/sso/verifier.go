package sso

// Package sso implements the HMAC-signed single sign-on handshake with the identity provider.

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	domainauth "github.com/target/ssogate/internal/domain/auth"
	"github.com/target/ssogate/internal/ports"
)

// Payload field names shared with the provider.
const (
	FieldNonce        = "nonce"
	FieldReturnURL    = "return_sso_url"
	FieldPurpose      = "purpose"
	FieldExternalID   = "external_id"
	FieldUsername     = "username"
	FieldEmail        = "email"
	FieldName         = "name"
	FieldAvatarURL    = "avatar_url"
	FieldLanguage     = "language"
	FieldRoles        = "roles"
	notAcceptedSuffix = ":false"
)

var purposePaths = map[domainauth.Purpose]string{
	domainauth.PurposeLogin:  "/sso/",
	domainauth.PurposeSignup: "/sso/signup/",
	domainauth.PurposeVerify: "/sso/verify/",
}

// Config holds the verifier's immutable settings.
type Config struct {
	// ProviderURL is the identity provider's base URL.
	ProviderURL string
	// Secret is the shared HMAC key.
	Secret string
	Nonces ports.NonceStore
	Logger *slog.Logger
}

// Verifier builds signed provider URLs and validates signed callbacks.
type Verifier struct {
	providerURL string
	secret      []byte
	nonces      ports.NonceStore
	logger      *slog.Logger
}

var _ ports.SsoVerifier = (*Verifier)(nil)

// NewVerifier constructs a Verifier. The secret and nonce store are required.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, errors.New("sso: secret is required")
	}
	if cfg.Nonces == nil {
		return nil, errors.New("sso: nonce store is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.ProviderURL), "/")
	if base == "" {
		return nil, errors.New("sso: provider URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("sso: parse provider URL: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		providerURL: base,
		secret:      []byte(cfg.Secret),
		nonces:      cfg.Nonces,
		logger:      logger.With("component", "sso_verifier"),
	}, nil
}

// BuildSignedURL returns the provider URL for purpose carrying the nonce and
// the URL the provider should send the browser back to.
func (v *Verifier) BuildSignedURL(returnURL string, purpose domainauth.Purpose, nonce string) (string, error) {
	path, ok := purposePaths[purpose]
	if !ok {
		return "", fmt.Errorf("sso: unknown purpose %q", purpose)
	}
	if nonce == "" {
		return "", errors.New("sso: nonce is required")
	}

	form := url.Values{}
	form.Set(FieldNonce, nonce)
	form.Set(FieldReturnURL, returnURL)
	form.Set(FieldPurpose, string(purpose))
	payload := base64.StdEncoding.EncodeToString([]byte(form.Encode()))

	q := url.Values{}
	q.Set("sso", payload)
	q.Set("sig", v.Sign(payload))
	return v.providerURL + path + "?" + q.Encode(), nil
}

// Sign returns the hex HMAC-SHA256 of payload under the shared secret.
func (v *Verifier) Sign(payload string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the signature, decodes the claims, and redeems the nonce.
func (v *Verifier) Verify(ctx context.Context, payload, signature string) (domainauth.AuthUser, error) {
	if !v.validSignature(payload, signature) {
		return domainauth.AuthUser{}, domainauth.ErrInvalidSignature
	}

	nonce, user, err := DecodeClaims(payload)
	if err != nil {
		return domainauth.AuthUser{}, err
	}

	// Provider callbacks land on /login only, so only login nonces redeem.
	ok, err := v.nonces.Consume(ctx, nonce, domainauth.PurposeLogin)
	if err != nil {
		return domainauth.AuthUser{}, fmt.Errorf("consume nonce: %w", err)
	}
	if !ok {
		return domainauth.AuthUser{}, domainauth.ErrNonceRejected
	}

	v.logger.DebugContext(ctx, "sso callback verified", "username", user.Username)
	return user, nil
}

func (v *Verifier) validSignature(payload, signature string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) != sha256.Size {
		return false
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(payload))
	return hmac.Equal(got, mac.Sum(nil))
}

// DecodeClaims strictly decodes a callback payload into its nonce and claims.
// Any structural problem yields ErrMalformedPayload.
func DecodeClaims(payload string) (string, domainauth.AuthUser, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", domainauth.AuthUser{}, fmt.Errorf("%w: base64: %v", domainauth.ErrMalformedPayload, err)
	}
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return "", domainauth.AuthUser{}, fmt.Errorf("%w: query: %v", domainauth.ErrMalformedPayload, err)
	}

	required := func(key string) (string, error) {
		vs := values[key]
		if len(vs) != 1 || strings.TrimSpace(vs[0]) == "" {
			return "", fmt.Errorf("%w: %s must appear exactly once", domainauth.ErrMalformedPayload, key)
		}
		return strings.TrimSpace(vs[0]), nil
	}
	optional := func(key string) (string, error) {
		vs := values[key]
		if len(vs) > 1 {
			return "", fmt.Errorf("%w: %s repeated", domainauth.ErrMalformedPayload, key)
		}
		if len(vs) == 0 {
			return "", nil
		}
		return strings.TrimSpace(vs[0]), nil
	}

	var user domainauth.AuthUser
	nonce, err := required(FieldNonce)
	if err != nil {
		return "", domainauth.AuthUser{}, err
	}
	for _, f := range []struct {
		key string
		dst *string
		req bool
	}{
		{FieldExternalID, &user.ExternalID, true},
		{FieldUsername, &user.Username, true},
		{FieldEmail, &user.Email, true},
		{FieldName, &user.Name, false},
		{FieldAvatarURL, &user.AvatarURL, false},
		{FieldLanguage, &user.Language, false},
	} {
		get := optional
		if f.req {
			get = required
		}
		if *f.dst, err = get(f.key); err != nil {
			return "", domainauth.AuthUser{}, err
		}
	}

	rolesRaw, err := optional(FieldRoles)
	if err != nil {
		return "", domainauth.AuthUser{}, err
	}
	if user.Roles, err = parseRoles(rolesRaw); err != nil {
		return "", domainauth.AuthUser{}, err
	}
	return nonce, user, nil
}

func parseRoles(raw string) ([]domainauth.RoleGrant, error) {
	if raw == "" {
		return []domainauth.RoleGrant{}, nil
	}
	parts := strings.Split(raw, ",")
	grants := make([]domainauth.RoleGrant, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		accepted := true
		if strings.HasSuffix(p, notAcceptedSuffix) {
			accepted = false
			p = strings.TrimSuffix(p, notAcceptedSuffix)
		}
		role, ok := domainauth.ParseRole(p)
		if !ok {
			return nil, fmt.Errorf("%w: invalid role %q", domainauth.ErrMalformedPayload, p)
		}
		grants = append(grants, domainauth.RoleGrant{RoleID: role, Accepted: accepted})
	}
	return grants, nil
}

// EncodeClaims renders claims as a provider callback payload.
// Used by tests and local tooling to stand in for the provider.
func EncodeClaims(nonce string, user domainauth.AuthUser) string {
	form := url.Values{}
	form.Set(FieldNonce, nonce)
	form.Set(FieldExternalID, user.ExternalID)
	form.Set(FieldUsername, user.Username)
	form.Set(FieldEmail, user.Email)
	if user.Name != "" {
		form.Set(FieldName, user.Name)
	}
	if user.AvatarURL != "" {
		form.Set(FieldAvatarURL, user.AvatarURL)
	}
	if user.Language != "" {
		form.Set(FieldLanguage, user.Language)
	}
	if len(user.Roles) > 0 {
		roles := make([]string, 0, len(user.Roles))
		for _, g := range user.Roles {
			r := string(g.RoleID)
			if !g.Accepted {
				r += notAcceptedSuffix
			}
			roles = append(roles, r)
		}
		form.Set(FieldRoles, strings.Join(roles, ","))
	}
	return base64.StdEncoding.EncodeToString([]byte(form.Encode()))
}
