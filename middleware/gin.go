package middleware

import (
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/gin-gonic/gin"
)

// GinUserIDKey is the gin context key holding the authenticated user id.
const GinUserIDKey = "goguard.user_id"

func GinAuthenticate(engine *goGuard.Engine, opts Options) gin.HandlerFunc {
	opts = opts.withDefaults()
	return func(c *gin.Context) {
		ctx := authenticate(engine, opts, c.Request)
		c.Request = c.Request.WithContext(ctx)
		if id, ok := UserIDFromContext(ctx); ok {
			c.Set(GinUserIDKey, id)
		}
		c.Next()
	}
}

func GinSessionGuard(engine *goGuard.Engine, opts Options) gin.HandlerFunc {
	opts = opts.withDefaults()
	return func(c *gin.Context) {
		outcome := evaluate(engine, opts, c.Request)
		switch outcome {
		case guardAllow:
			c.Next()
		case guardUnavailable:
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
		default:
			if outcome != guardAnonymous {
				ClearSessionCookies(c.Writer, opts)
			}
			c.Redirect(http.StatusFound, loginRedirect(opts, outcome))
			c.Abort()
		}
	}
}
