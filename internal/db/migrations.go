package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'contract_type') THEN
			CREATE TYPE contract_type AS ENUM ('nanny', 'maternity_nurse', 'nanny_trial', 'external_substitution');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'signing_status') THEN
			CREATE TYPE signing_status AS ENUM ('UNSIGNED', 'CUSTOMER_SIGNED', 'EMPLOYEE_SIGNED', 'SIGNED');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS customers (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		name VARCHAR(128) NOT NULL,
		phone_number VARCHAR(32) NOT NULL DEFAULT '',
		id_card_number VARCHAR(32) NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS employees (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		name VARCHAR(128) NOT NULL,
		phone_number VARCHAR(32) NOT NULL DEFAULT '',
		id_card_number VARCHAR(32) NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS contracts (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		contract_type contract_type NOT NULL,
		customer_id UUID NOT NULL REFERENCES customers(id),
		employee_id UUID NOT NULL REFERENCES employees(id),
		employee_level NUMERIC(18,2) NOT NULL DEFAULT 0,
		daily_rate NUMERIC(18,2) NOT NULL DEFAULT 0,
		management_fee_rate NUMERIC NOT NULL DEFAULT 0,
		management_fee_amount NUMERIC(18,2) NOT NULL DEFAULT 0,
		deposit_rate NUMERIC NOT NULL DEFAULT 0,
		security_deposit_paid NUMERIC(18,2) NOT NULL DEFAULT 0,
		introduction_fee NUMERIC(18,2) NOT NULL DEFAULT 0,
		deposit_amount NUMERIC(18,2) NOT NULL DEFAULT 3000,
		start_date TIMESTAMPTZ NOT NULL,
		end_date TIMESTAMPTZ NOT NULL,
		provisional_start_date TIMESTAMPTZ,
		is_monthly_auto_renew BOOLEAN NOT NULL DEFAULT FALSE,
		overrides TEXT NOT NULL DEFAULT '',
		status VARCHAR(32) NOT NULL DEFAULT 'unsigned',
		signing_status signing_status NOT NULL DEFAULT 'UNSIGNED',
		customer_signature BYTEA,
		employee_signature BYTEA,
		customer_signed_at TIMESTAMPTZ,
		employee_signed_at TIMESTAMPTZ,
		customer_info TEXT,
		employee_info TEXT,
		converted_to_id UUID REFERENCES contracts(id),
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT chk_contract_dates CHECK (end_date >= start_date)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_customer_id ON contracts (customer_id);`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_status ON contracts (status);`,
	`CREATE TABLE IF NOT EXISTS bills (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		contract_id UUID NOT NULL REFERENCES contracts(id),
		cycle_start DATE NOT NULL,
		cycle_end DATE NOT NULL,
		amount NUMERIC(18,2) NOT NULL DEFAULT 0,
		status VARCHAR(16) NOT NULL DEFAULT 'unpaid'
	);`,
	`CREATE INDEX IF NOT EXISTS idx_bills_contract_cycle ON bills (contract_id, cycle_start);`,
	`CREATE TABLE IF NOT EXISTS financial_adjustments (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		kind VARCHAR(32) NOT NULL,
		amount NUMERIC(18,2) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		target_bill_id UUID NOT NULL REFERENCES bills(id),
		target_contract_id UUID NOT NULL REFERENCES contracts(id),
		source_trial_contract_id UUID NOT NULL REFERENCES contracts(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_adjustment_source_kind ON financial_adjustments (source_trial_contract_id, kind);`,
	`CREATE INDEX IF NOT EXISTS idx_adjustments_target_contract ON financial_adjustments (target_contract_id);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
