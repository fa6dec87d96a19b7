package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/htams/backend/internal/services/wallet"
	"gorm.io/gorm"
)

// WalletHandler handles wallet-related requests
type WalletHandler struct {
	db            *gorm.DB
	walletService *wallet.WalletService
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(db *gorm.DB, walletService *wallet.WalletService) *WalletHandler {
	return &WalletHandler{
		db:            db,
		walletService: walletService,
	}
}

// GetWallet gets the authenticated user's wallet. The balance already
// reflects pending reservations, so it is the withdrawable amount.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}

	w, err := h.walletService.GetOrCreateWallet(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"wallet":              w,
		"withdrawable_amount": w.Balance,
	})
}

// GetLedger gets the authenticated user's ledger history
func (h *WalletHandler) GetLedger(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	entries, total, err := h.walletService.GetLedger(userID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"pagination": gin.H{
			"total":     total,
			"page":      page,
			"page_size": pageSize,
		},
	})
}

// authedUserID pulls the authenticated user's id out of the request context
func authedUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr := c.GetString("user_id")
	if userIDStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return uuid.Nil, false
	}

	return userID, true
}
