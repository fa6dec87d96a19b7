package wallet

import (
	"testing"

	"github.com/google/uuid"
	"github.com/htams/backend/internal/apperrors"
	"github.com/htams/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory database with the ledger schema
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A pooled connection would get its own empty :memory: database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&models.User{}, &models.Wallet{}, &models.LedgerEntry{})
	require.NoError(t, err)

	return db
}

// seedWallet creates a user with a wallet holding the given balance
func seedWallet(t *testing.T, db *gorm.DB, balance float64) uuid.UUID {
	user := models.User{
		Name:   "Asha Verma",
		Email:  uuid.NewString() + "@example.com",
		Mobile: "9876543210",
	}
	require.NoError(t, db.Create(&user).Error)

	wallet := models.Wallet{UserID: user.ID, Balance: balance}
	require.NoError(t, db.Create(&wallet).Error)

	return user.ID
}

func TestCredit(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	userID := seedWallet(t, db, 100)

	result, err := svc.Credit(userID, 250, models.LedgerTypeCredit, "REF1", "commission payout", nil)

	require.NoError(t, err)
	assert.Equal(t, 100.0, result.BalanceBefore)
	assert.Equal(t, 350.0, result.BalanceAfter)

	wallet, err := svc.GetWallet(userID)
	require.NoError(t, err)
	assert.Equal(t, 350.0, wallet.Balance)

	var entry models.LedgerEntry
	require.NoError(t, db.First(&entry, "reference = ?", "REF1").Error)
	assert.Equal(t, 250.0, entry.Amount)
	assert.Equal(t, 100.0, entry.BalanceBefore)
	assert.Equal(t, 350.0, entry.BalanceAfter)
}

func TestDebit(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	userID := seedWallet(t, db, 500)

	result, err := svc.Debit(userID, 200, models.LedgerTypeWithdrawalReserve, "REF2", "reservation", nil)

	require.NoError(t, err)
	assert.Equal(t, 500.0, result.BalanceBefore)
	assert.Equal(t, 300.0, result.BalanceAfter)

	var entry models.LedgerEntry
	require.NoError(t, db.First(&entry, "reference = ?", "REF2").Error)
	assert.Equal(t, -200.0, entry.Amount)
}

func TestDebitInsufficientBalance(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	userID := seedWallet(t, db, 150)

	_, err := svc.Debit(userID, 200, models.LedgerTypeWithdrawalReserve, "REF3", "reservation", nil)

	assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)

	// The failed debit must not have mutated anything
	wallet, err := svc.GetWallet(userID)
	require.NoError(t, err)
	assert.Equal(t, 150.0, wallet.Balance)

	var entries int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).Count(&entries).Error)
	assert.Zero(t, entries)
}

func TestDebitExactBalance(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	userID := seedWallet(t, db, 200)

	_, err := svc.Debit(userID, 200, models.LedgerTypeWithdrawalReserve, "REF4", "reservation", nil)
	require.NoError(t, err)

	wallet, err := svc.GetWallet(userID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, wallet.Balance)
}

func TestMutationRejectsInvalidAmount(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	userID := seedWallet(t, db, 100)

	_, err := svc.Debit(userID, 0, models.LedgerTypeAdjustment, "REF5", "noop", nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.Credit(userID, -10, models.LedgerTypeAdjustment, "REF6", "noop", nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDebitMissingWallet(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)

	_, err := svc.Debit(uuid.New(), 50, models.LedgerTypeAdjustment, "REF7", "noop", nil)
	assert.ErrorIs(t, err, apperrors.ErrWalletNotFound)
}

func TestGetOrCreateWallet(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)

	user := models.User{Name: "Ravi", Email: "ravi@example.com"}
	require.NoError(t, db.Create(&user).Error)

	created, err := svc.GetOrCreateWallet(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, created.Balance)

	again, err := svc.GetOrCreateWallet(user.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
}

func TestGetLedger(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	userID := seedWallet(t, db, 1000)

	_, err := svc.Debit(userID, 100, models.LedgerTypeWithdrawalReserve, "L1", "reservation", nil)
	require.NoError(t, err)
	_, err = svc.Credit(userID, 100, models.LedgerTypeWithdrawalRefund, "L1", "refund", nil)
	require.NoError(t, err)

	entries, total, err := svc.GetLedger(userID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, entries, 2)
}
