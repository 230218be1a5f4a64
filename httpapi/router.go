package httpapi

import (
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Options configures the router.
type Options struct {
	Cookies middleware.Options
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
	Logger  *zap.Logger
}

type Server struct {
	engine  *goGuard.Engine
	cookies middleware.Options
	logger  *zap.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(engine *goGuard.Engine, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cookies := opts.Cookies
	if cookies.IdentityCookie == "" {
		cookies = middleware.DefaultOptions()
	}
	s := &Server{engine: engine, cookies: cookies, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger), middleware.GinAuthenticate(engine, cookies))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	api := r.Group("/api")
	api.POST("/register", s.register)
	api.POST("/login", s.login)
	api.POST("/login/2fa", s.completeTwoFactor)
	api.POST("/password/forgot", s.forgotPassword)
	api.POST("/password/reset", s.resetPassword)

	guarded := api.Group("", middleware.GinSessionGuard(engine, cookies))
	guarded.POST("/logout", s.logout)
	guarded.GET("/account/password-status", s.passwordStatus)
	guarded.POST("/account/password", s.changePassword)

	// closed while the password is expired
	fresh := guarded.Group("", middleware.GinRequirePasswordChange(engine))
	fresh.POST("/account/2fa/setup", s.beginTwoFactorSetup)
	fresh.POST("/account/2fa/enable", s.enableTwoFactor)
	fresh.POST("/account/2fa/disable", s.disableTwoFactor)
	fresh.GET("/account/audit", s.auditHistory)

	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
		)
	}
}
