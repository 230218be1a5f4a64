package middleware

import (
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/gin-gonic/gin"
)

type expiryOutcome uint8

const (
	passwordCurrent expiryOutcome = iota
	passwordExpired
	expiryUnavailable
)

func checkExpiry(engine *goGuard.Engine, r *http.Request) (expiryOutcome, string) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok || engine == nil {
		return expiryUnavailable, ""
	}
	status, err := engine.PasswordStatus(r.Context(), userID)
	if err != nil {
		return expiryUnavailable, ""
	}
	if status.Expired {
		return passwordExpired, status.Message
	}
	return passwordCurrent, ""
}

// RequirePasswordChange must run after SessionGuard. While the user's
// password is past its maximum age every request except ChangePasswordPath
// is redirected there with ?expired=1.
func RequirePasswordChange(engine *goGuard.Engine, opts Options) func(http.Handler) http.Handler {
	opts = opts.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == opts.ChangePasswordPath {
				next.ServeHTTP(w, r)
				return
			}
			switch outcome, _ := checkExpiry(engine, r); outcome {
			case passwordCurrent:
				next.ServeHTTP(w, r)
			case passwordExpired:
				http.Redirect(w, r, opts.ChangePasswordPath+"?expired=1", http.StatusFound)
			default:
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			}
		})
	}
}

// GinRequirePasswordChange is the JSON variant of RequirePasswordChange. Mount
// it on the routes that stay closed until the password is changed; it
// answers 403 with passwordExpired set.
func GinRequirePasswordChange(engine *goGuard.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		outcome, message := checkExpiry(engine, c.Request)
		switch outcome {
		case passwordCurrent:
			c.Next()
		case passwordExpired:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": message, "passwordExpired": true})
		default:
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
		}
	}
}
