package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/htams/backend/internal/models"
	"github.com/htams/backend/internal/queue"
	"github.com/htams/backend/internal/services/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupJob(t *testing.T) (*ReconciliationJob, *gorm.DB, *wallet.WalletService) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A pooled connection would get its own empty :memory: database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Wallet{}, &models.LedgerEntry{},
		&models.WithdrawalRequest{}, &queue.Job{},
	))

	walletSvc := wallet.NewWalletService(db)
	job := NewReconciliationJob(db, walletSvc, queue.NewQueue(db))
	job.GracePeriod = 0

	return job, db, walletSvc
}

func seedWalletWithDebit(t *testing.T, db *gorm.DB, svc *wallet.WalletService, reference string) (*models.User, float64) {
	user := models.User{Name: "Ravi", Email: reference + "@example.com"}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, db.Create(&models.Wallet{UserID: user.ID, Balance: 1000}).Error)

	_, err := svc.Debit(user.ID, 250, models.LedgerTypeWithdrawalReserve, reference, "withdrawal reservation", nil)
	require.NoError(t, err)

	w, err := svc.GetWallet(user.ID)
	require.NoError(t, err)
	return &user, w.Balance
}

// A reservation with no matching request record gets credited back
func TestRunRefundsOrphanedReservation(t *testing.T) {
	job, db, svc := setupJob(t)
	user, balance := seedWalletWithDebit(t, db, svc, "WD_ORPHAN_1")
	assert.Equal(t, 750.0, balance)

	result, err := job.Run(context.Background(), queue.Job{})
	require.NoError(t, err)

	summary := result.(map[string]interface{})
	assert.Equal(t, 1, summary["orphans_found"])
	assert.Equal(t, 1, summary["orphans_refunded"])

	w, err := svc.GetWallet(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, w.Balance)

	var refunds int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).
		Where("type = ? AND reference = ?", models.LedgerTypeWithdrawalRefund, "WD_ORPHAN_1").
		Count(&refunds).Error)
	assert.Equal(t, int64(1), refunds)
}

// A reservation backed by a request record is not an orphan
func TestRunSkipsBackedReservation(t *testing.T) {
	job, db, svc := setupJob(t)
	user, _ := seedWalletWithDebit(t, db, svc, "WD_BACKED_1")

	require.NoError(t, db.Create(&models.WithdrawalRequest{
		UserID:      user.ID,
		GrossAmount: 250,
		NetAmount:   250,
		Mode:        models.PayoutModeBank,
		Status:      models.WithdrawalStatusPending,
		Reference:   "WD_BACKED_1",
		RequestedAt: time.Now(),
	}).Error)

	result, err := job.Run(context.Background(), queue.Job{})
	require.NoError(t, err)

	summary := result.(map[string]interface{})
	assert.Equal(t, 0, summary["orphans_found"])

	w, err := svc.GetWallet(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 750.0, w.Balance)
}

// A second pass must not refund the same reservation again
func TestRunIsIdempotent(t *testing.T) {
	job, db, svc := setupJob(t)
	user, _ := seedWalletWithDebit(t, db, svc, "WD_ORPHAN_2")

	_, err := job.Run(context.Background(), queue.Job{})
	require.NoError(t, err)

	result, err := job.Run(context.Background(), queue.Job{})
	require.NoError(t, err)

	summary := result.(map[string]interface{})
	assert.Equal(t, 0, summary["orphans_found"])

	w, err := svc.GetWallet(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, w.Balance)
}

// Reservations younger than the grace period are left alone
func TestRunHonorsGracePeriod(t *testing.T) {
	job, _, svc := setupJob(t)
	job.GracePeriod = 10 * time.Minute

	user, _ := seedWalletWithDebit(t, job.db, svc, "WD_FRESH_1")

	result, err := job.Run(context.Background(), queue.Job{})
	require.NoError(t, err)

	summary := result.(map[string]interface{})
	assert.Equal(t, 0, summary["orphans_found"])

	w, err := svc.GetWallet(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 750.0, w.Balance)
}
