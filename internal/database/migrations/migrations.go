package migrations

import (
	"log"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/htams/backend/internal/models"
	"github.com/htams/backend/internal/queue"
	"gorm.io/gorm"
)

// migrationsList holds all migrations in order
var migrationsList = []*gormigrate.Migration{
	createCoreTables(),
	createLedgerTables(),
	createJobsTable(),
}

// RunMigrations runs all database migrations
func RunMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrationsList)

	if err := m.Migrate(); err != nil {
		log.Printf("Could not migrate: %v", err)
		return err
	}
	log.Printf("Migrations ran successfully")
	return nil
}

// createCoreTables creates users, payout details and the TDS policy singleton
func createCoreTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_core_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.User{},
				&models.BankAccount{},
				&models.UPIHandle{},
				&models.TDSPolicy{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&models.TDSPolicy{},
				&models.UPIHandle{},
				&models.BankAccount{},
				&models.User{},
			)
		},
	}
}

// createLedgerTables creates wallets, ledger entries and both withdrawal views
func createLedgerTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_ledger_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.Wallet{},
				&models.LedgerEntry{},
				&models.WithdrawalRequest{},
				&models.UserWithdrawalIndex{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&models.UserWithdrawalIndex{},
				&models.WithdrawalRequest{},
				&models.LedgerEntry{},
				&models.Wallet{},
			)
		},
	}
}

// createJobsTable creates the background job queue table
func createJobsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_jobs_table",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&queue.Job{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&queue.Job{})
		},
	}
}
