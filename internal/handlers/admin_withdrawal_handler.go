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

// AdminWithdrawalHandler is the admin review surface over the global
// withdrawal view
type AdminWithdrawalHandler struct {
	db                *gorm.DB
	withdrawalService *withdrawal.WithdrawalService
}

// NewAdminWithdrawalHandler creates a new admin withdrawal handler
func NewAdminWithdrawalHandler(db *gorm.DB, withdrawalService *withdrawal.WithdrawalService) *AdminWithdrawalHandler {
	return &AdminWithdrawalHandler{
		db:                db,
		withdrawalService: withdrawalService,
	}
}

// filterFromQuery builds a review filter from the request's query parameters
func filterFromQuery(c *gin.Context) withdrawal.ReviewFilter {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	return withdrawal.ReviewFilter{
		Status:     models.WithdrawalStatus(c.Query("status")),
		Mode:       models.PayoutMode(c.Query("mode")),
		DateBucket: withdrawal.DateBucket(c.Query("date_bucket")),
		Search:     c.Query("search"),
		Page:       page,
		PageSize:   pageSize,
	}
}

// ListWithdrawals lists requests matching the filters
func (h *AdminWithdrawalHandler) ListWithdrawals(c *gin.Context) {
	filter := filterFromQuery(c)

	requests, total, err := h.withdrawalService.List(filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"withdrawals": requests,
		"pagination": gin.H{
			"total":     total,
			"page":      filter.Page,
			"page_size": filter.PageSize,
		},
	})
}

// GetStats returns aggregate statistics over the filtered view
func (h *AdminWithdrawalHandler) GetStats(c *gin.Context) {
	stats, err := h.withdrawalService.Stats(filterFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ApproveWithdrawal finalizes a pending request
func (h *AdminWithdrawalHandler) ApproveWithdrawal(c *gin.Context) {
	adminID, ok := authedUserID(c)
	if !ok {
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request ID"})
		return
	}

	request, err := h.withdrawalService.Approve(requestID, adminID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// RejectWithdrawal declines a pending request with a reason and refunds the
// gross amount
func (h *AdminWithdrawalHandler) RejectWithdrawal(c *gin.Context) {
	adminID, ok := authedUserID(c)
	if !ok {
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request ID"})
		return
	}

	var input struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request, err := h.withdrawalService.Reject(requestID, adminID, input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// CancelWithdrawal cancels any pending request on a user's behalf
func (h *AdminWithdrawalHandler) CancelWithdrawal(c *gin.Context) {
	adminID, ok := authedUserID(c)
	if !ok {
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request ID"})
		return
	}

	request, err := h.withdrawalService.Cancel(requestID, adminID, true)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// ExportCSV streams the filtered view as a CSV download
func (h *AdminWithdrawalHandler) ExportCSV(c *gin.Context) {
	filename, body, err := h.withdrawalService.ExportCSV(filterFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "text/csv", body)
}
