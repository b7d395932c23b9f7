package auth

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// RedirectResolver turns a caller-supplied return path into an absolute
// redirect target rooted at the application's base URL.
//
// Absolute targets are only honoured when they share the base URL's
// registrable domain (eTLD+1); anything else resolves to the home page.
type RedirectResolver struct {
	base     string
	baseHost string
	baseSite string
}

// NewRedirectResolver binds a resolver to baseURL. A trailing slash is ignored.
func NewRedirectResolver(baseURL string) *RedirectResolver {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	r := &RedirectResolver{base: base}
	if u, err := url.Parse(base); err == nil {
		r.baseHost = strings.ToLower(u.Hostname())
		r.baseSite = registrableDomain(r.baseHost)
	}
	return r
}

// BaseURL returns the base URL without a trailing slash.
func (r *RedirectResolver) BaseURL() string { return r.base }

// Home returns the application's home page URL.
func (r *RedirectResolver) Home() string { return r.base + "/" }

// Resolve maps rawPath to an absolute URL.
func (r *RedirectResolver) Resolve(rawPath string) string {
	p := strings.TrimSpace(rawPath)
	if p == "" {
		return r.Home()
	}
	// Browsers treat "/\host" and "\\host" like "//host".
	if strings.HasPrefix(p, `/\`) || strings.HasPrefix(p, `\`) {
		return r.Home()
	}
	if isAbsolute(p) {
		if r.sameSite(p) {
			return p
		}
		return r.Home()
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return r.base + p
}

func (r *RedirectResolver) sameSite(target string) bool {
	if strings.HasPrefix(target, "//") {
		return false
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || r.baseHost == "" {
		return false
	}
	if host == r.baseHost {
		return true
	}
	site := registrableDomain(host)
	return site != "" && site == r.baseSite
}

func isAbsolute(p string) bool {
	if strings.HasPrefix(p, "//") {
		return true
	}
	u, err := url.Parse(p)
	if err != nil {
		// unparseable input with a colon before any slash looks like a scheme
		i := strings.IndexByte(p, ':')
		return i > 0 && !strings.Contains(p[:i], "/")
	}
	return u.Scheme != ""
}

func registrableDomain(host string) string {
	if host == "" {
		return ""
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return etld1
}
