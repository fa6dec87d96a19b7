package jobs

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/htams/backend/internal/queue"
	"github.com/htams/backend/internal/services/wallet"
	"gorm.io/gorm"
)

// RegisterAllJobHandlers registers all job handlers with the queue
func RegisterAllJobHandlers(q *queue.Queue, db *gorm.DB, walletSvc *wallet.WalletService) *ReconciliationJob {
	return NewReconciliationJob(db, walletSvc, q)
}

// StartScheduler starts the cron scheduler for recurring jobs and returns it
// so the caller can stop it on shutdown
func StartScheduler(reconciliation *ReconciliationJob) *gocron.Scheduler {
	scheduler := gocron.NewScheduler(time.UTC)

	if _, err := scheduler.Every(1).Hour().Do(func() {
		if _, err := reconciliation.Schedule(); err != nil {
			log.Printf("Error scheduling reconciliation pass: %v", err)
		}
	}); err != nil {
		log.Printf("Error registering reconciliation schedule: %v", err)
	}

	scheduler.StartAsync()
	return scheduler
}
