package middleware

import (
	"net/http"
	"time"
)

// Options names the cookies and the pages used by the middleware.
type Options struct {
	IdentityCookie     string
	SessionCookie      string
	LoginPath          string
	ChangePasswordPath string
	CookiePath         string
	Secure             bool
	SameSite           http.SameSite
}

func DefaultOptions() Options {
	return Options{
		IdentityCookie:     "goguard_auth",
		SessionCookie:      "goguard_session",
		LoginPath:          "/login",
		ChangePasswordPath: "/account/password",
		CookiePath:         "/",
		Secure:             true,
		SameSite:           http.SameSiteLaxMode,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.IdentityCookie == "" {
		o.IdentityCookie = d.IdentityCookie
	}
	if o.SessionCookie == "" {
		o.SessionCookie = d.SessionCookie
	}
	if o.LoginPath == "" {
		o.LoginPath = d.LoginPath
	}
	if o.ChangePasswordPath == "" {
		o.ChangePasswordPath = d.ChangePasswordPath
	}
	if o.CookiePath == "" {
		o.CookiePath = d.CookiePath
	}
	if o.SameSite == 0 {
		o.SameSite = d.SameSite
	}
	return o
}

// SetSessionCookies writes the identity and session cookies after a login.
// The session cookie has no expiry of its own so it outlives an expired
// identity until the browser closes.
func SetSessionCookies(w http.ResponseWriter, opts Options, identity string, ttl time.Duration, sessionToken string) {
	opts = opts.withDefaults()
	http.SetCookie(w, &http.Cookie{
		Name:     opts.IdentityCookie,
		Value:    identity,
		Path:     opts.CookiePath,
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     opts.SessionCookie,
		Value:    sessionToken,
		Path:     opts.CookiePath,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

// ClearSessionCookies expires both cookies.
func ClearSessionCookies(w http.ResponseWriter, opts Options) {
	opts = opts.withDefaults()
	for _, name := range []string{opts.IdentityCookie, opts.SessionCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     opts.CookiePath,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   opts.Secure,
			SameSite: opts.SameSite,
		})
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
