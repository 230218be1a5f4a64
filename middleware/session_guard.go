package middleware

import (
	"errors"
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/session"
)

type guardOutcome uint8

const (
	guardAllow guardOutcome = iota
	guardConcurrent
	guardExpired
	guardAnonymous
	guardUnavailable
	guardUnknownUser
)

func evaluate(engine *goGuard.Engine, opts Options, r *http.Request) guardOutcome {
	if engine == nil {
		return guardUnavailable
	}
	presented := cookieValue(r, opts.SessionCookie)
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		if presented != "" {
			engine.RecordSessionExpired(r.Context(), r.URL.Path)
			return guardExpired
		}
		return guardAnonymous
	}

	verdict, err := engine.CheckSession(r.Context(), userID, presented)
	if errors.Is(err, goGuard.ErrUserNotFound) {
		return guardUnknownUser
	}
	if err != nil {
		return guardUnavailable
	}
	if verdict == session.VerdictMismatch {
		return guardConcurrent
	}
	return guardAllow
}

func loginRedirect(opts Options, outcome guardOutcome) string {
	switch outcome {
	case guardConcurrent:
		return opts.LoginPath + "?concurrent=1"
	case guardExpired:
		return opts.LoginPath + "?sessionExpired=1"
	default:
		return opts.LoginPath
	}
}

// SessionGuard must run after Authenticate.
func SessionGuard(engine *goGuard.Engine, opts Options) func(http.Handler) http.Handler {
	opts = opts.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			outcome := evaluate(engine, opts, r)
			switch outcome {
			case guardAllow:
				next.ServeHTTP(w, r)
			case guardUnavailable:
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			default:
				if outcome != guardAnonymous {
					ClearSessionCookies(w, opts)
				}
				http.Redirect(w, r, loginRedirect(opts, outcome), http.StatusFound)
			}
		})
	}
}
