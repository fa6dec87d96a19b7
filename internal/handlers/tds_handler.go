package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/htams/backend/internal/events"
	"github.com/htams/backend/internal/services/tds"
	"gorm.io/gorm"
)

// TDSHandler exposes the TDS policy singleton
type TDSHandler struct {
	db         *gorm.DB
	tdsService *tds.TDSService
	publisher  events.Publisher
}

// NewTDSHandler creates a new TDS handler
func NewTDSHandler(db *gorm.DB, tdsService *tds.TDSService, publisher events.Publisher) *TDSHandler {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &TDSHandler{
		db:         db,
		tdsService: tdsService,
		publisher:  publisher,
	}
}

// GetPolicy returns the current policy. Readable by any authenticated user
// so the withdrawal form can preview the deduction.
func (h *TDSHandler) GetPolicy(c *gin.Context) {
	policy, err := h.tdsService.GetPolicy()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, policy)
}

// UpdatePolicy changes the percentage. Admin-only route, with an operator
// passphrase and optional TOTP code checked in the service. Existing
// requests keep the amounts captured when they were created.
func (h *TDSHandler) UpdatePolicy(c *gin.Context) {
	adminID, ok := authedUserID(c)
	if !ok {
		return
	}

	var input struct {
		Percentage *float64 `json:"percentage" binding:"required"`
		Passphrase string   `json:"passphrase"`
		TOTPCode   string   `json:"totp_code"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	policy, err := h.tdsService.UpdatePolicy(*input.Percentage, adminID, input.Passphrase, input.TOTPCode)
	if err != nil {
		respondError(c, err)
		return
	}

	h.publisher.Publish(events.TDSPolicyUpdated, policy)
	c.JSON(http.StatusOK, policy)
}
