package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/htams/backend/internal/models"
	"github.com/htams/backend/internal/services/withdrawal"
	"gorm.io/gorm"
)

// WithdrawalHandler handles user-facing withdrawal requests
type WithdrawalHandler struct {
	db                *gorm.DB
	withdrawalService *withdrawal.WithdrawalService
}

// NewWithdrawalHandler creates a new withdrawal handler
func NewWithdrawalHandler(db *gorm.DB, withdrawalService *withdrawal.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{
		db:                db,
		withdrawalService: withdrawalService,
	}
}

// CreateWithdrawal opens a new withdrawal request for the authenticated user
func (h *WithdrawalHandler) CreateWithdrawal(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}

	var input struct {
		Amount float64           `json:"amount" binding:"required"`
		Mode   models.PayoutMode `json:"mode" binding:"required"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request, err := h.withdrawalService.Create(userID, input.Amount, input.Mode)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, request)
}

// CancelWithdrawal cancels the authenticated user's own pending request and
// refunds the reserved amount
func (h *WithdrawalHandler) CancelWithdrawal(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request ID"})
		return
	}

	request, err := h.withdrawalService.Cancel(requestID, userID, false)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// ListWithdrawals lists the authenticated user's requests from the per-user
// view
func (h *WithdrawalHandler) ListWithdrawals(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	entries, total, err := h.withdrawalService.ListForUser(userID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"withdrawals": entries,
		"pagination": gin.H{
			"total":     total,
			"page":      page,
			"page_size": pageSize,
		},
	})
}

// GetWithdrawal gets one of the authenticated user's requests
func (h *WithdrawalHandler) GetWithdrawal(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request ID"})
		return
	}

	request, err := h.withdrawalService.Get(requestID)
	if err != nil {
		respondError(c, err)
		return
	}

	if request.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}

	c.JSON(http.StatusOK, request)
}
