package withdrawal

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/htams/backend/internal/apperrors"
	"github.com/htams/backend/internal/config"
	"github.com/htams/backend/internal/models"
	"github.com/htams/backend/internal/services/tds"
	"github.com/htams/backend/internal/services/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	db        *gorm.DB
	walletSvc *wallet.WalletService
	tdsSvc    *tds.TDSService
	svc       *WithdrawalService
	admin     models.User
}

func setupTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A pooled connection would get its own empty :memory: database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{}, &models.Wallet{}, &models.LedgerEntry{},
		&models.BankAccount{}, &models.UPIHandle{}, &models.TDSPolicy{},
		&models.WithdrawalRequest{}, &models.UserWithdrawalIndex{},
	)
	require.NoError(t, err)

	cfg := config.WithdrawalConfig{MinimumAmount: 100}

	walletSvc := wallet.NewWalletService(db)
	tdsSvc := tds.NewTDSService(db, cfg)
	svc := NewWithdrawalService(db, cfg, walletSvc, tdsSvc, nil)

	admin := models.User{Name: "Admin", Email: "admin@example.com", IsAdmin: true, Role: models.RoleAdmin}
	require.NoError(t, db.Create(&admin).Error)

	return &testEnv{db: db, walletSvc: walletSvc, tdsSvc: tdsSvc, svc: svc, admin: admin}
}

// seedUser creates a user with a funded wallet and a bank account
func (e *testEnv) seedUser(t *testing.T, balance float64) uuid.UUID {
	user := models.User{
		Name:   "Asha Verma",
		Email:  uuid.NewString() + "@example.com",
		Mobile: "9876543210",
	}
	require.NoError(t, e.db.Create(&user).Error)

	require.NoError(t, e.db.Create(&models.Wallet{UserID: user.ID, Balance: balance}).Error)
	require.NoError(t, e.db.Create(&models.BankAccount{
		UserID:        user.ID,
		AccountHolder: user.Name,
		AccountNumber: "123456789012",
		IFSCCode:      "HDFC0001234",
		BankName:      "HDFC Bank",
	}).Error)

	return user.ID
}

func (e *testEnv) setTDS(t *testing.T, percentage float64) {
	_, err := e.tdsSvc.UpdatePolicy(percentage, e.admin.ID, "", "")
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, userID uuid.UUID) float64 {
	w, err := e.walletSvc.GetWallet(userID)
	require.NoError(t, err)
	return w.Balance
}

// Scenario: balance=1000, TDS=10%, create(500) then approve
func TestCreateAndApprove(t *testing.T) {
	env := setupTestEnv(t)
	env.setTDS(t, 10)
	userID := env.seedUser(t, 1000)

	request, err := env.svc.Create(userID, 500, models.PayoutModeBank)
	require.NoError(t, err)

	assert.Equal(t, models.WithdrawalStatusPending, request.Status)
	assert.Equal(t, 500.0, request.GrossAmount)
	assert.True(t, request.TDSApplied)
	assert.Equal(t, 10.0, request.TDSPercentage)
	assert.Equal(t, 50.0, request.TDSAmount)
	assert.Equal(t, 450.0, request.NetAmount)
	assert.Equal(t, 500.0, env.balance(t, userID))

	approved, err := env.svc.Approve(request.ID, env.admin.ID)
	require.NoError(t, err)

	assert.Equal(t, models.WithdrawalStatusApproved, approved.Status)
	assert.NotNil(t, approved.ApprovedAt)
	assert.NotNil(t, approved.ProcessedAt)
	assert.False(t, approved.RefundedToWallet)
	// Approval finalizes the debit without touching the wallet again
	assert.Equal(t, 500.0, env.balance(t, userID))
}

// Scenario: balance=1000, create(300) then reject refunds the gross amount
func TestCreateAndReject(t *testing.T) {
	env := setupTestEnv(t)
	env.setTDS(t, 10)
	userID := env.seedUser(t, 1000)

	request, err := env.svc.Create(userID, 300, models.PayoutModeBank)
	require.NoError(t, err)
	assert.Equal(t, 700.0, env.balance(t, userID))

	rejected, err := env.svc.Reject(request.ID, env.admin.ID, "bank details invalid")
	require.NoError(t, err)

	assert.Equal(t, models.WithdrawalStatusRejected, rejected.Status)
	assert.Equal(t, "bank details invalid", rejected.RejectionReason)
	assert.True(t, rejected.RefundedToWallet)
	assert.NotNil(t, rejected.RejectedAt)
	// The TDS portion was never remitted: the refund is gross, not net
	assert.Equal(t, 1000.0, env.balance(t, userID))
}

// Scenario: balance=200, create(250) fails and leaves no trace
func TestCreateInsufficientBalance(t *testing.T) {
	env := setupTestEnv(t)
	userID := env.seedUser(t, 200)

	_, err := env.svc.Create(userID, 250, models.PayoutModeBank)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)

	assert.Equal(t, 200.0, env.balance(t, userID))

	var requests, indexRows, ledgerRows int64
	require.NoError(t, env.db.Model(&models.WithdrawalRequest{}).Count(&requests).Error)
	require.NoError(t, env.db.Model(&models.UserWithdrawalIndex{}).Count(&indexRows).Error)
	require.NoError(t, env.db.Model(&models.LedgerEntry{}).Count(&ledgerRows).Error)
	assert.Zero(t, requests)
	assert.Zero(t, indexRows)
	assert.Zero(t, ledgerRows)
}

func TestMinimumAmountEnforcement(t *testing.T) {
	env := setupTestEnv(t)
	userID := env.seedUser(t, 1000)

	_, err := env.svc.Create(userID, 99, models.PayoutModeBank)
	assert.ErrorIs(t, err, apperrors.ErrBelowMinimum)

	request, err := env.svc.Create(userID, 100, models.PayoutModeBank)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusPending, request.Status)
}

func TestCreateWithoutPayoutDetails(t *testing.T) {
	env := setupTestEnv(t)
	userID := env.seedUser(t, 1000)

	// The user has a bank account but no UPI handle
	_, err := env.svc.Create(userID, 200, models.PayoutModeUPI)
	assert.ErrorIs(t, err, apperrors.ErrPayoutNotFound)
	assert.Equal(t, 1000.0, env.balance(t, userID))
}

func TestCancelRefunds(t *testing.T) {
	env := setupTestEnv(t)
	userID := env.seedUser(t, 500)

	request, err := env.svc.Create(userID, 200, models.PayoutModeBank)
	require.NoError(t, err)
	assert.Equal(t, 300.0, env.balance(t, userID))

	cancelled, err := env.svc.Cancel(request.ID, userID, false)
	require.NoError(t, err)

	assert.Equal(t, models.WithdrawalStatusCancelled, cancelled.Status)
	assert.True(t, cancelled.RefundedToWallet)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Empty(t, cancelled.RejectionReason)
	assert.Equal(t, 500.0, env.balance(t, userID))
}

func TestCancelByNonOwnerDenied(t *testing.T) {
	env := setupTestEnv(t)
	owner := env.seedUser(t, 500)
	stranger := env.seedUser(t, 500)

	request, err := env.svc.Create(owner, 200, models.PayoutModeBank)
	require.NoError(t, err)

	_, err = env.svc.Cancel(request.ID, stranger, false)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	// An admin may cancel on the user's behalf
	_, err = env.svc.Cancel(request.ID, env.admin.ID, true)
	require.NoError(t, err)
}

// A second reject/cancel must fail with InvalidState and credit at most once
func TestNoDoubleRefund(t *testing.T) {
	env := setupTestEnv(t)
	userID := env.seedUser(t, 1000)

	request, err := env.svc.Create(userID, 400, models.PayoutModeBank)
	require.NoError(t, err)

	_, err = env.svc.Reject(request.ID, env.admin.ID, "first")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, env.balance(t, userID))

	_, err = env.svc.Reject(request.ID, env.admin.ID, "second")
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	_, err = env.svc.Cancel(request.ID, env.admin.ID, true)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	assert.Equal(t, 1000.0, env.balance(t, userID))
}

func TestApproveOnlyFromPending(t *testing.T) {
	env := setupTestEnv(t)
	userID := env.seedUser(t, 1000)

	request, err := env.svc.Create(userID, 200, models.PayoutModeBank)
	require.NoError(t, err)

	_, err = env.svc.Approve(request.ID, env.admin.ID)
	require.NoError(t, err)

	_, err = env.svc.Approve(request.ID, env.admin.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	_, err = env.svc.Reject(request.ID, env.admin.ID, "too late")
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	_, err = env.svc.Approve(uuid.New(), env.admin.ID)
	assert.ErrorIs(t, err, apperrors.ErrRequestNotFound)
}

// Changing the TDS policy must not alter amounts captured on existing
// requests
func TestTDSSnapshotImmutable(t *testing.T) {
	env := setupTestEnv(t)
	env.setTDS(t, 10)
	userID := env.seedUser(t, 1000)

	request, err := env.svc.Create(userID, 500, models.PayoutModeBank)
	require.NoError(t, err)
	assert.Equal(t, 50.0, request.TDSAmount)

	env.setTDS(t, 25)

	reloaded, err := env.svc.Get(request.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, reloaded.TDSPercentage)
	assert.Equal(t, 50.0, reloaded.TDSAmount)
	assert.Equal(t, 450.0, reloaded.NetAmount)

	// Approval after the policy change keeps the captured amounts too
	approved, err := env.svc.Approve(request.ID, env.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, approved.TDSAmount)
	assert.Equal(t, 450.0, approved.NetAmount)
}

func TestTDSDisabledByDefault(t *testing.T) {
	env := setupTestEnv(t)
	userID := env.seedUser(t, 1000)

	request, err := env.svc.Create(userID, 500, models.PayoutModeBank)
	require.NoError(t, err)

	assert.False(t, request.TDSApplied)
	assert.Equal(t, 0.0, request.TDSAmount)
	assert.Equal(t, 500.0, request.NetAmount)
}

// Both views must always agree after any committed transition
func TestDualWriteConsistency(t *testing.T) {
	env := setupTestEnv(t)
	env.setTDS(t, 5)
	userID := env.seedUser(t, 2000)

	request, err := env.svc.Create(userID, 600, models.PayoutModeBank)
	require.NoError(t, err)

	assertViewsAgree := func() {
		global, err := env.svc.Get(request.ID)
		require.NoError(t, err)
		userView, err := env.svc.GetUserView(request.ID)
		require.NoError(t, err)

		assert.Equal(t, global.Status, userView.Status)
		assert.Equal(t, global.GrossAmount, userView.GrossAmount)
		assert.Equal(t, global.TDSAmount, userView.TDSAmount)
		assert.Equal(t, global.NetAmount, userView.NetAmount)
		if global.ProcessedAt == nil {
			assert.Nil(t, userView.ProcessedAt)
		} else {
			require.NotNil(t, userView.ProcessedAt)
			assert.WithinDuration(t, *global.ProcessedAt, *userView.ProcessedAt, time.Second)
		}
	}

	assertViewsAgree()

	_, err = env.svc.Reject(request.ID, env.admin.ID, "mismatched account holder")
	require.NoError(t, err)
	assertViewsAgree()
}

// Conservation: initialBalance - sum(gross of pending+approved) == balance
func TestConservation(t *testing.T) {
	env := setupTestEnv(t)
	env.setTDS(t, 10)
	userID := env.seedUser(t, 2000)

	r1, err := env.svc.Create(userID, 300, models.PayoutModeBank) // will approve
	require.NoError(t, err)
	r2, err := env.svc.Create(userID, 400, models.PayoutModeBank) // will reject
	require.NoError(t, err)
	r3, err := env.svc.Create(userID, 500, models.PayoutModeBank) // will cancel
	require.NoError(t, err)
	_, err = env.svc.Create(userID, 200, models.PayoutModeBank) // stays pending
	require.NoError(t, err)

	_, err = env.svc.Approve(r1.ID, env.admin.ID)
	require.NoError(t, err)
	_, err = env.svc.Reject(r2.ID, env.admin.ID, "invalid details")
	require.NoError(t, err)
	_, err = env.svc.Cancel(r3.ID, userID, false)
	require.NoError(t, err)

	// 2000 - 300 (approved) - 200 (pending) = 1500
	assert.Equal(t, 1500.0, env.balance(t, userID))
}

func TestPayoutDetailsSnapshotted(t *testing.T) {
	env := setupTestEnv(t)
	userID := env.seedUser(t, 1000)

	request, err := env.svc.Create(userID, 200, models.PayoutModeBank)
	require.NoError(t, err)
	assert.Equal(t, "123456789012", request.PayoutDetails["account_number"])

	// Editing the account afterwards must not change the snapshot
	require.NoError(t, env.db.Model(&models.BankAccount{}).
		Where("user_id = ?", userID).
		Update("account_number", "999999999999").Error)

	reloaded, err := env.svc.Get(request.ID)
	require.NoError(t, err)
	assert.Equal(t, "123456789012", reloaded.PayoutDetails["account_number"])
}

func TestUserDetailsSnapshotTotals(t *testing.T) {
	env := setupTestEnv(t)
	userID := env.seedUser(t, 2000)

	r1, err := env.svc.Create(userID, 300, models.PayoutModeBank)
	require.NoError(t, err)
	_, err = env.svc.Approve(r1.ID, env.admin.ID)
	require.NoError(t, err)

	r2, err := env.svc.Create(userID, 400, models.PayoutModeBank)
	require.NoError(t, err)

	r3, err := env.svc.Create(userID, 100, models.PayoutModeBank)
	require.NoError(t, err)

	_ = r2
	assert.Equal(t, 300.0, r3.UserDetails["previous_withdrawn"])
	assert.Equal(t, 400.0, r3.UserDetails["previous_pending"])
	assert.Equal(t, "Asha Verma", r3.UserDetails["name"])
}

func TestListForUser(t *testing.T) {
	env := setupTestEnv(t)
	userID := env.seedUser(t, 2000)
	other := env.seedUser(t, 2000)

	_, err := env.svc.Create(userID, 200, models.PayoutModeBank)
	require.NoError(t, err)
	_, err = env.svc.Create(userID, 300, models.PayoutModeBank)
	require.NoError(t, err)
	_, err = env.svc.Create(other, 400, models.PayoutModeBank)
	require.NoError(t, err)

	entries, total, err := env.svc.ListForUser(userID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, entries, 2)
}
