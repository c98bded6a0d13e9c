package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/blog-backend/internal/apperr"
	"github.com/yourusername/blog-backend/internal/metrics"
)

const msgInvalidBody = "Invalid request body"

// Handler は /api/auth/* のハンドラーです。
type Handler struct {
	service  *Service
	sessions *SessionManager
}

// NewHandler は Handler を作成します。
func NewHandler(service *Service, sessions *SessionManager) *Handler {
	return &Handler{
		service:  service,
		sessions: sessions,
	}
}

// RegisterRoutes は認証 API をルーターグループに登録します。
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/register", h.Register)
	rg.POST("/verify", h.Verify)
	rg.POST("/login", h.Login)
	rg.POST("/forgot", h.ForgotPassword)
	rg.POST("/reset", h.ResetPassword)
	rg.POST("/logout", h.Logout)
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// Register は POST /api/auth/register のハンドラーです。
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.service.Register(c.Request.Context(), RegisterInput(req))
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.sessions.SetCookie(c, session.Token)
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "User registered successfully. Verification email sent.",
		"user":    session.Account,
	})
}

type verifyRequest struct {
	Code string `json:"code"`
}

// Verify は POST /api/auth/verify のハンドラーです。
func (h *Handler) Verify(c *gin.Context) {
	var req verifyRequest
	if !bindJSON(c, &req) {
		return
	}

	acc, err := h.service.Verify(c.Request.Context(), req.Code)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User verified successfully",
		"user":    acc,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login は POST /api/auth/login のハンドラーです。
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.service.Login(c.Request.Context(), LoginInput(req))
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.sessions.SetCookie(c, session.Token)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User logged in successfully",
		"user":    session.Account,
	})
}

type forgotRequest struct {
	Email string `json:"email"`
}

// ForgotPassword は POST /api/auth/forgot のハンドラーです。
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req forgotRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.service.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Reset token sent successfully on your registered email!",
	})
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResetPassword は POST /api/auth/reset のハンドラーです。
func (h *Handler) ResetPassword(c *gin.Context) {
	var req resetRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.service.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Password changed successfully",
	})
}

// Logout は POST /api/auth/logout のハンドラーです。セッションが無くても成功します。
func (h *Handler) Logout(c *gin.Context) {
	h.sessions.ClearCookie(c)
	h.service.metrics.ObserveAuth("logout", metrics.OutcomeSuccess)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logged out successfully",
	})
}

// bindJSON はリクエストボディを読み込みます。失敗時は 400 を返して false を返します。
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		apperr.Respond(c, apperr.BadRequest(msgInvalidBody))
		return false
	}
	return true
}
