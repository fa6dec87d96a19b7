package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/htams/backend/internal/models"
	"github.com/htams/backend/internal/services/kyc"
	"gorm.io/gorm"
)

// KYCHandler proxies the external Aadhaar-OTP verifier for registration
type KYCHandler struct {
	db        *gorm.DB
	kycClient *kyc.KYCClient
}

// NewKYCHandler creates a new KYC handler
func NewKYCHandler(db *gorm.DB, kycClient *kyc.KYCClient) *KYCHandler {
	return &KYCHandler{
		db:        db,
		kycClient: kycClient,
	}
}

// GenerateOTP starts an identity verification
func (h *KYCHandler) GenerateOTP(c *gin.Context) {
	var input struct {
		IdentityNumber string `json:"identity_number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.kycClient.GenerateOTP(input.IdentityNumber)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     "identity verification service unavailable",
			"retryable": true,
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// VerifyOTP completes a verification and records the result on the user
func (h *KYCHandler) VerifyOTP(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}

	var input struct {
		RequestID string `json:"request_id" binding:"required"`
		OTP       string `json:"otp" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity, err := h.kycClient.VerifyOTP(input.RequestID, input.OTP)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     "identity verification failed",
			"retryable": true,
		})
		return
	}

	if err := h.db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"kyc_verified": true,
		"kyc_name":     identity.Name,
	}).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, identity)
}
