package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/htams/backend/internal/config"
	"github.com/htams/backend/internal/events"
	"github.com/htams/backend/internal/handlers"
	"github.com/htams/backend/internal/middleware"
	"github.com/htams/backend/internal/services/kyc"
	"github.com/htams/backend/internal/services/tds"
	"github.com/htams/backend/internal/services/wallet"
	"github.com/htams/backend/internal/services/withdrawal"
)

// RegisterRoutes configures all API routes
func RegisterRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config, publisher events.Publisher) {
	walletSvc := wallet.NewWalletService(db)
	tdsSvc := tds.NewTDSService(db, cfg.Withdrawal)
	withdrawalSvc := withdrawal.NewWithdrawalService(db, cfg.Withdrawal, walletSvc, tdsSvc, publisher)
	kycClient := kyc.NewKYCClient(cfg.KYC)

	walletHandler := handlers.NewWalletHandler(db, walletSvc)
	withdrawalHandler := handlers.NewWithdrawalHandler(db, withdrawalSvc)
	adminHandler := handlers.NewAdminWithdrawalHandler(db, withdrawalSvc)
	tdsHandler := handlers.NewTDSHandler(db, tdsSvc, publisher)
	kycHandler := handlers.NewKYCHandler(db, kycClient)

	// 30 requests per second per IP with a small burst
	rateLimiter := middleware.NewRateLimiter(30, 10)
	router.Use(rateLimiter.Middleware())

	// User-facing routes
	userGroup := router.Group("/api")
	userGroup.Use(middleware.AuthMiddleware())
	{
		userGroup.GET("/wallet", walletHandler.GetWallet)
		userGroup.GET("/wallet/ledger", walletHandler.GetLedger)

		userGroup.POST("/withdrawals", withdrawalHandler.CreateWithdrawal)
		userGroup.GET("/withdrawals", withdrawalHandler.ListWithdrawals)
		userGroup.GET("/withdrawals/:id", withdrawalHandler.GetWithdrawal)
		userGroup.POST("/withdrawals/:id/cancel", withdrawalHandler.CancelWithdrawal)

		userGroup.GET("/tds", tdsHandler.GetPolicy)

		userGroup.POST("/kyc/verify-otp", kycHandler.VerifyOTP)
	}

	// KYC OTP generation happens during registration, before a session exists
	router.POST("/api/kyc/generate-otp", kycHandler.GenerateOTP)

	// Admin review surface
	adminGroup := router.Group("/api/admin")
	adminGroup.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		adminGroup.GET("/withdrawals", adminHandler.ListWithdrawals)
		adminGroup.GET("/withdrawals/stats", adminHandler.GetStats)
		adminGroup.GET("/withdrawals/export", adminHandler.ExportCSV)
		adminGroup.POST("/withdrawals/:id/approve", adminHandler.ApproveWithdrawal)
		adminGroup.POST("/withdrawals/:id/reject", adminHandler.RejectWithdrawal)
		adminGroup.POST("/withdrawals/:id/cancel", adminHandler.CancelWithdrawal)

		adminGroup.PUT("/tds", tdsHandler.UpdatePolicy)
	}
}
