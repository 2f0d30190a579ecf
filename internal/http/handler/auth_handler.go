package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	autherr "github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain/auth"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/service"
)

// AuthHandler exposes registration and every login flow.
type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /users.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", autherr.ErrValidation, "malformed request body"))
		return
	}
	user, err := h.auth.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /users/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", autherr.ErrValidation, "malformed request body"))
		return
	}
	pair, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh handles POST /users/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", autherr.ErrValidation, "malformed request body"))
		return
	}
	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

// Logout handles POST /users/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", autherr.ErrValidation, "malformed request body"))
		return
	}
	if err := h.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

type sendEmailOTPRequest struct {
	Email string `json:"email"`
}

// SendEmailOTP handles POST /auth/email/send-otp.
func (h *AuthHandler) SendEmailOTP(c *gin.Context) {
	var req sendEmailOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", autherr.ErrValidation, "malformed request body"))
		return
	}
	if err := h.auth.SendEmailOTP(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "otp sent"})
}

type verifyEmailOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// VerifyEmailOTP handles POST /auth/email/verify-otp.
func (h *AuthHandler) VerifyEmailOTP(c *gin.Context) {
	var req verifyEmailOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", autherr.ErrValidation, "malformed request body"))
		return
	}
	pair, err := h.auth.VerifyEmailOTP(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

type sendPhoneOTPRequest struct {
	Phone string `json:"phone"`
}

// SendPhoneOTP handles POST /auth/phone/send-otp.
func (h *AuthHandler) SendPhoneOTP(c *gin.Context) {
	var req sendPhoneOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", autherr.ErrValidation, "malformed request body"))
		return
	}
	if err := h.auth.SendPhoneOTP(c.Request.Context(), req.Phone); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "otp sent"})
}

type verifyPhoneOTPRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

// VerifyPhoneOTP handles POST /auth/phone/verify-otp.
func (h *AuthHandler) VerifyPhoneOTP(c *gin.Context) {
	var req verifyPhoneOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", autherr.ErrValidation, "malformed request body"))
		return
	}
	pair, err := h.auth.VerifyPhoneOTP(c.Request.Context(), req.Phone, req.OTP)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

type externalTokenRequest struct {
	IDToken string `json:"id_token"`
}

// VerifyExternal handles POST /auth/google and POST /auth/phone/verify,
// both of which exchange a provider-issued token for a session.
func (h *AuthHandler) VerifyExternal(c *gin.Context) {
	var req externalTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", autherr.ErrValidation, "malformed request body"))
		return
	}
	pair, err := h.auth.VerifyExternal(c.Request.Context(), req.IDToken)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}
