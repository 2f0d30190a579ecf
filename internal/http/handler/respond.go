package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	autherr "github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain/auth"
)

// respondError maps domain failures to HTTP status codes and the shared
// error body shape.
func respondError(c *gin.Context, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": code, "error_description": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": code, "error_description": err.Error()})
}

func classify(err error) (int, string) {
	var delivery *autherr.DeliveryError
	switch {
	case errors.Is(err, autherr.ErrValidation):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, autherr.ErrIdentityIncomplete):
		return http.StatusBadRequest, "incomplete_identity"
	case errors.Is(err, autherr.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, autherr.ErrInvalidOrExpiredOTP):
		return http.StatusUnauthorized, "invalid_otp"
	case errors.Is(err, autherr.ErrExpiredToken),
		errors.Is(err, autherr.ErrMalformedToken),
		errors.Is(err, autherr.ErrWrongTokenType),
		errors.Is(err, autherr.ErrInvalidToken),
		errors.Is(err, autherr.ErrTokenNotFoundOrRevoked):
		return http.StatusUnauthorized, "invalid_token"
	case errors.Is(err, autherr.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, autherr.ErrUserNotFound), errors.Is(err, autherr.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, autherr.ErrEmailTaken),
		errors.Is(err, autherr.ErrPhoneTaken),
		errors.Is(err, autherr.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, autherr.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.As(err, &delivery):
		return http.StatusBadGateway, "delivery_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
