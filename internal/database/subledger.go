/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"database/sql"
)

// SubledgerService owns the earnings balances, the immutable earnings ledger
// and its double-entry journal.
type SubledgerService struct {
	db *sql.DB
}

func NewSubledgerService(db *sql.DB) *SubledgerService {
	return &SubledgerService{
		db: db,
	}
}

func (s *SubledgerService) InitSchema() error {
	schema := `
	-- Earnings balances (materialized cache of the ledger)
	CREATE TABLE IF NOT EXISTS account_earnings (
		account_id TEXT PRIMARY KEY REFERENCES accounts(id),
		level1_earnings TEXT NOT NULL DEFAULT '0',
		level2_earnings TEXT NOT NULL DEFAULT '0',
		last_earnings_id TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Earnings ledger (append-only, one row per credited level)
	CREATE TABLE IF NOT EXISTS earnings (
		id TEXT PRIMARY KEY,
		purchase_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		referral_user_id TEXT NOT NULL,
		level INTEGER NOT NULL CHECK (level IN (1, 2)),
		amount TEXT NOT NULL,
		purchase_amount TEXT NOT NULL,
		balance_before TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		transaction_date TIMESTAMP NOT NULL,
		UNIQUE(purchase_id, level)
	);

	CREATE INDEX IF NOT EXISTS idx_earnings_user_id ON earnings(user_id);
	CREATE INDEX IF NOT EXISTS idx_earnings_referral_user_id ON earnings(referral_user_id);
	CREATE INDEX IF NOT EXISTS idx_earnings_transaction_date ON earnings(transaction_date);

	-- Double-entry journal for every earnings row
	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		earnings_id TEXT NOT NULL,
		account_type TEXT NOT NULL,
		account_id TEXT NOT NULL,
		debit_amount TEXT NOT NULL DEFAULT '0',
		credit_amount TEXT NOT NULL DEFAULT '0',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_journal_earnings_id ON journal_entries(earnings_id);
	CREATE INDEX IF NOT EXISTS idx_journal_account ON journal_entries(account_type, account_id);

	-- Ledger rows are never rewritten
	CREATE TRIGGER IF NOT EXISTS earnings_no_update BEFORE UPDATE ON earnings
	BEGIN
		SELECT RAISE(ABORT, 'earnings records are immutable');
	END;
	CREATE TRIGGER IF NOT EXISTS earnings_no_delete BEFORE DELETE ON earnings
	BEGIN
		SELECT RAISE(ABORT, 'earnings records are immutable');
	END;
	`

	_, err := s.db.Exec(schema)
	return err
}
