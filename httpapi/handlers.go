package httpapi

import (
	"net/http"
	"strconv"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/middleware"
	"github.com/gin-gonic/gin"
)

type credentialsRequest struct {
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	HumanToken string `json:"humanToken"`
	RememberMe bool   `json:"rememberMe"`
}

type twoFactorRequest struct {
	Continuation string `json:"continuation" binding:"required"`
	Code         string `json:"code" binding:"required"`
}

type codeRequest struct {
	Code string `json:"code" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type resetPasswordRequest struct {
	UserID      string `json:"userId" binding:"required"`
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type passwordStatusResponse struct {
	Expired         bool   `json:"expired"`
	Warning         bool   `json:"warning"`
	DaysUntilExpiry int    `json:"daysUntilExpiry"`
	Message         string `json:"message,omitempty"`
}

type loginResponse struct {
	State        string                  `json:"state"`
	UserID       string                  `json:"userId,omitempty"`
	Continuation string                  `json:"continuation,omitempty"`
	Password     *passwordStatusResponse `json:"passwordStatus,omitempty"`
}

func toPasswordStatus(ps goGuard.PasswordStatus) *passwordStatusResponse {
	if !ps.Known {
		return nil
	}
	return &passwordStatusResponse{
		Expired:         ps.Expired,
		Warning:         ps.Warning,
		DaysUntilExpiry: ps.DaysUntilExpiry,
		Message:         ps.Message,
	}
}

func badRequest(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "Invalid request."})
}

func currentUser(c *gin.Context) string {
	return c.GetString(middleware.GinUserIDKey)
}

// signIn sets cookies for an issued session and writes the login response.
func (s *Server) signIn(c *gin.Context, status int, res *goGuard.LoginResult) {
	if res.State == goGuard.StateTwoFactorPending {
		c.JSON(http.StatusOK, loginResponse{State: res.State.String(), Continuation: res.Continuation})
		return
	}
	identity, ttl, err := s.engine.IssueIdentity(res.UserID, res.RememberMe)
	if err != nil {
		s.writeError(c, err)
		return
	}
	middleware.SetSessionCookies(c.Writer, s.cookies, identity, ttl, res.SessionToken)
	c.JSON(status, loginResponse{
		State:    res.State.String(),
		UserID:   res.UserID,
		Password: toPasswordStatus(res.Password),
	})
}

func (s *Server) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	res, err := s.engine.Register(c.Request.Context(), goGuard.RegisterRequest{
		Email: req.Email, Password: req.Password, HumanToken: req.HumanToken,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.signIn(c, http.StatusCreated, res)
}

func (s *Server) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	res, err := s.engine.Login(c.Request.Context(), goGuard.LoginRequest{
		Email: req.Email, Password: req.Password, HumanToken: req.HumanToken, RememberMe: req.RememberMe,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.signIn(c, http.StatusOK, res)
}

func (s *Server) completeTwoFactor(c *gin.Context) {
	var req twoFactorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	res, err := s.engine.CompleteTwoFactor(c.Request.Context(), req.Continuation, req.Code)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.signIn(c, http.StatusOK, res)
}

func (s *Server) logout(c *gin.Context) {
	if err := s.engine.Logout(c.Request.Context(), currentUser(c)); err != nil {
		s.writeError(c, err)
		return
	}
	middleware.ClearSessionCookies(c.Writer, s.cookies)
	c.Status(http.StatusNoContent)
}

func (s *Server) passwordStatus(c *gin.Context) {
	ps, err := s.engine.PasswordStatus(c.Request.Context(), currentUser(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := toPasswordStatus(ps)
	if out == nil {
		out = &passwordStatusResponse{}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	err := s.engine.ChangePassword(c.Request.Context(), goGuard.ChangePasswordRequest{
		UserID: currentUser(c), CurrentPassword: req.CurrentPassword, NewPassword: req.NewPassword,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) forgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	if err := s.engine.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"message": "If an account exists for this email, a password reset link has been sent.",
	})
}

func (s *Server) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	if err := s.engine.ConfirmPasswordReset(c.Request.Context(), req.UserID, req.Token, req.NewPassword); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) beginTwoFactorSetup(c *gin.Context) {
	setup, err := s.engine.BeginTwoFactorSetup(c.Request.Context(), currentUser(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"secret": setup.Secret, "url": setup.URL})
}

func (s *Server) enableTwoFactor(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	if err := s.engine.EnableTwoFactor(c.Request.Context(), currentUser(c), req.Code); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) disableTwoFactor(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	if err := s.engine.DisableTwoFactor(c.Request.Context(), currentUser(c), req.Code); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) auditHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c)
			return
		}
		limit = n
	}
	events, err := s.engine.AuditHistory(c.Request.Context(), currentUser(c), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
