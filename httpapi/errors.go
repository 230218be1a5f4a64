package httpapi

import (
	"errors"
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorBody struct {
	Error             string `json:"error"`
	Kind              string `json:"kind,omitempty"`
	RemainingAttempts int    `json:"remainingAttempts,omitempty"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
}

// writeError maps engine errors onto status codes. Only messages the engine
// marks as user-safe reach the client.
func (s *Server) writeError(c *gin.Context, err error) {
	var loginErr *goGuard.LoginError
	var policyErr *goGuard.PasswordPolicyError

	switch {
	case errors.As(err, &loginErr):
		body := errorBody{Error: loginErr.Message, Kind: loginErr.Kind.String(), RemainingAttempts: loginErr.RemainingAttempts}
		status := http.StatusUnauthorized
		switch loginErr.Kind {
		case goGuard.FailureInvalidInput:
			status = http.StatusBadRequest
		case goGuard.FailureHumanCheck:
			status = http.StatusForbidden
		case goGuard.FailureLockedOut, goGuard.FailureLockoutTriggered:
			status = http.StatusLocked
			body.RetryAfterSeconds = int(loginErr.LockedFor.Seconds())
		case goGuard.FailureUnavailable:
			status = http.StatusServiceUnavailable
		}
		c.AbortWithStatusJSON(status, body)
	case errors.As(err, &policyErr):
		body := errorBody{Error: policyErr.Message}
		if policyErr.Wait > 0 {
			body.RetryAfterSeconds = int(policyErr.Wait.Seconds())
		}
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, body)
	case errors.Is(err, goGuard.ErrInvalidInput):
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "Invalid request."})
	case errors.Is(err, goGuard.ErrEmailTaken):
		c.AbortWithStatusJSON(http.StatusConflict, errorBody{Error: "An account with this email already exists."})
	case errors.Is(err, goGuard.ErrInvalidCredentials):
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "Current password is incorrect."})
	case errors.Is(err, goGuard.ErrTwoFactorInvalidCode):
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "Invalid authenticator code."})
	case errors.Is(err, goGuard.ErrTwoFactorAlreadyEnabled),
		errors.Is(err, goGuard.ErrTwoFactorNotEnabled),
		errors.Is(err, goGuard.ErrTwoFactorSetupMissing):
		c.AbortWithStatusJSON(http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, goGuard.ErrUserNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, errorBody{Error: "Account not found."})
	case errors.Is(err, goGuard.ErrStoreUnavailable):
		s.logger.Warn("store unavailable", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorBody{Error: "Service temporarily unavailable."})
	default:
		s.logger.Error("unhandled error", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: "Internal error."})
	}
}
