package database

import (
	"database/sql"
	"log"
	"sync"

	"github.com/centraledger/centra/cache"
	"github.com/centraledger/centra/config"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		newCache, errCache := cache.NewCache()
		if errCache != nil {
			log.Printf("cache unavailable, reads fall through to postgres: %v", errCache)
		}
		instance = &Datasource{Conn: con, Cache: newCache}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	err = createSchema(db)
	if err != nil {
		return nil, err
	}
	err = createBalanceTable(db)
	if err != nil {
		return nil, err
	}
	err = createLedgerEntryTable(db)
	if err != nil {
		return nil, err
	}
	err = createAllocationTable(db)
	if err != nil {
		return nil, err
	}
	err = createExternalTransactionTable(db)
	if err != nil {
		return nil, err
	}
	err = createExpenseEntryTable(db)
	if err != nil {
		return nil, err
	}
	err = createReconciliationTables(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS centra`)
	return err
}

func createBalanceTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS centra.balances (
			id BIGSERIAL PRIMARY KEY,
			entity_id TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			balance BIGINT NOT NULL DEFAULT 0,
			currency TEXT NOT NULL,
			total_deposits BIGINT NOT NULL DEFAULT 0,
			total_withdrawals BIGINT NOT NULL DEFAULT 0,
			total_allocations BIGINT NOT NULL DEFAULT 0,
			total_received BIGINT NOT NULL DEFAULT 0,
			total_sent BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			last_updated TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (entity_id, entity_type)
		)
	`)
	return err
}

func createLedgerEntryTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS centra.ledger_entries (
			id BIGSERIAL PRIMARY KEY,
			entry_id TEXT NOT NULL UNIQUE,
			reference TEXT NOT NULL UNIQUE,
			entity_id TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			transaction_type TEXT NOT NULL,
			amount BIGINT NOT NULL,
			fee BIGINT NOT NULL DEFAULT 0,
			net_amount BIGINT NOT NULL,
			currency TEXT NOT NULL,
			balance_before BIGINT NOT NULL,
			balance_after BIGINT NOT NULL,
			purpose TEXT,
			processed_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_entries_entity ON centra.ledger_entries (entity_id, entity_type, processed_at DESC)
	`)
	return err
}

func createAllocationTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS centra.budget_allocations (
			id BIGSERIAL PRIMARY KEY,
			allocation_id TEXT NOT NULL UNIQUE,
			reference TEXT NOT NULL UNIQUE,
			company_id TEXT NOT NULL,
			employee_id TEXT NOT NULL,
			amount BIGINT NOT NULL,
			currency TEXT NOT NULL,
			budget_type TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			allocated_by TEXT,
			allocated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			accepted_at TIMESTAMP,
			rejected_at TIMESTAMP,
			expiry_date TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_budget_allocations_employee ON centra.budget_allocations (employee_id, status);
		CREATE INDEX IF NOT EXISTS idx_budget_allocations_expiry ON centra.budget_allocations (status, expiry_date)
	`)
	return err
}

func createExternalTransactionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS centra.external_transactions (
			id BIGSERIAL PRIMARY KEY,
			transaction_id TEXT NOT NULL UNIQUE,
			reference TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			entity_type TEXT NOT NULL DEFAULT 'employee',
			amount BIGINT NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			description TEXT,
			paid_at TIMESTAMP,
			reconciled BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_external_transactions_user ON centra.external_transactions (user_id, reconciled, status)
	`)
	return err
}

func createExpenseEntryTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS centra.expense_entries (
			id BIGSERIAL PRIMARY KEY,
			entry_id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			expense_type TEXT,
			amount BIGINT NOT NULL,
			currency TEXT NOT NULL,
			title TEXT,
			note TEXT,
			entry_date TIMESTAMP NOT NULL,
			is_reconciled BOOLEAN NOT NULL DEFAULT FALSE,
			reconciled_transaction_id TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_expense_entries_user ON centra.expense_entries (user_id, is_reconciled)
	`)
	return err
}

func createReconciliationTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS centra.reconciliation_matches (
			id BIGSERIAL PRIMARY KEY,
			match_id TEXT NOT NULL UNIQUE,
			transaction_id TEXT NOT NULL,
			entry_id TEXT NOT NULL,
			confidence_score DOUBLE PRECISION NOT NULL,
			amount_match BOOLEAN NOT NULL DEFAULT FALSE,
			time_match BOOLEAN NOT NULL DEFAULT FALSE,
			location_match BOOLEAN NOT NULL DEFAULT FALSE,
			description_match BOOLEAN NOT NULL DEFAULT FALSE,
			reconciliation_type TEXT NOT NULL,
			reconciled_by TEXT,
			notes TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS centra.reconciliation_runs (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL,
			processed_pairs INT NOT NULL DEFAULT 0,
			auto_matched INT NOT NULL DEFAULT 0,
			manual_review INT NOT NULL DEFAULT 0,
			failed INT NOT NULL DEFAULT 0,
			started_at TIMESTAMP NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMP
		)
	`)
	return err
}
