package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/htams/backend/internal/models"
	"github.com/htams/backend/internal/queue"
	"github.com/htams/backend/internal/services/wallet"
	"gorm.io/gorm"
)

// ReconciliationJob sweeps the ledger for orphaned withdrawal reservations:
// a debit entry whose reference matches no request record. Request creation
// writes both in one transaction so this should find nothing; the sweep is
// the safety net that turns a hypothetical partial write into a refund
// instead of silently lost funds.
type ReconciliationJob struct {
	db        *gorm.DB
	walletSvc *wallet.WalletService
	queue     *queue.Queue
	// GracePeriod keeps the sweep away from reservations still being written
	GracePeriod time.Duration
}

// NewReconciliationJob creates the job and registers its handler
func NewReconciliationJob(db *gorm.DB, walletSvc *wallet.WalletService, q *queue.Queue) *ReconciliationJob {
	job := &ReconciliationJob{
		db:          db,
		walletSvc:   walletSvc,
		queue:       q,
		GracePeriod: 10 * time.Minute,
	}

	q.RegisterHandler(queue.JobTypeReconcileLedger, job.Run)

	return job
}

// Schedule enqueues a reconciliation pass
func (j *ReconciliationJob) Schedule() (string, error) {
	return j.queue.EnqueueJob(queue.JobTypeReconcileLedger, map[string]interface{}{
		"scheduled_at": time.Now(),
	})
}

// Run executes one reconciliation pass
func (j *ReconciliationJob) Run(ctx context.Context, job queue.Job) (interface{}, error) {
	orphans, err := j.findOrphans()
	if err != nil {
		return nil, err
	}

	refunded := 0
	for _, entry := range orphans {
		if err := j.refundOrphan(entry); err != nil {
			log.Printf("Error refunding orphaned reservation %s: %v", entry.Reference, err)
			continue
		}
		refunded++
	}

	if refunded > 0 {
		log.Printf("Reconciliation refunded %d orphaned reservations", refunded)
	}

	return map[string]interface{}{
		"orphans_found":    len(orphans),
		"orphans_refunded": refunded,
	}, nil
}

// findOrphans returns reservation debits past the grace period with no
// matching withdrawal request and no refund already written
func (j *ReconciliationJob) findOrphans() ([]models.LedgerEntry, error) {
	cutoff := time.Now().Add(-j.GracePeriod)

	var orphans []models.LedgerEntry
	err := j.db.
		Where("type = ? AND created_at < ?", models.LedgerTypeWithdrawalReserve, cutoff).
		Where("reference NOT IN (?)", j.db.Model(&models.WithdrawalRequest{}).Select("reference")).
		Where("reference NOT IN (?)", j.db.Model(&models.LedgerEntry{}).
			Select("reference").Where("type = ?", models.LedgerTypeWithdrawalRefund)).
		Find(&orphans).Error
	if err != nil {
		return nil, fmt.Errorf("error finding orphaned reservations: %w", err)
	}

	return orphans, nil
}

// refundOrphan credits the reserved amount back to the owning wallet
func (j *ReconciliationJob) refundOrphan(entry models.LedgerEntry) error {
	var w models.Wallet
	if err := j.db.First(&w, "id = ?", entry.WalletID).Error; err != nil {
		return fmt.Errorf("error finding wallet: %w", err)
	}

	amount := -entry.Amount // reservation debits are stored negative
	if amount <= 0 {
		return fmt.Errorf("reservation %s has non-debit amount %.2f", entry.Reference, entry.Amount)
	}

	_, err := j.walletSvc.Credit(w.UserID, amount,
		models.LedgerTypeWithdrawalRefund, entry.Reference,
		"reconciliation refund for orphaned reservation",
		map[string]interface{}{"orphaned_entry_id": entry.ID.String()})
	return err
}
