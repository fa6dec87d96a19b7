package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/htams/backend/internal/apperrors"
)

// respondError maps service errors to HTTP responses. Every failure carries
// a retryable hint so clients can tell the user what to do next instead of
// showing a bare failure.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrInsufficientBalance):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     err.Error(),
			"retryable": false,
			"action":    "check your wallet balance and request a smaller amount",
		})
	case errors.Is(err, apperrors.ErrBelowMinimum),
		errors.Is(err, apperrors.ErrInvalidInput),
		errors.Is(err, apperrors.ErrPayoutNotFound):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"retryable": false,
			"action":    "correct the request and try again",
		})
	case errors.Is(err, apperrors.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{
			"error":     err.Error(),
			"retryable": false,
			"action":    "refresh the request status, it was already processed",
		})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{
			"error":     err.Error(),
			"retryable": false,
			"action":    "verify your credentials",
		})
	case errors.Is(err, apperrors.ErrRequestNotFound),
		errors.Is(err, apperrors.ErrWalletNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":     err.Error(),
			"retryable": false,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "operation failed, no changes were committed",
			"retryable": true,
			"action":    "retry, and contact support if the problem persists",
		})
	}
}
