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

const (
	// Account queries
	queryListAccounts = `
		SELECT a.id, a.name, a.email, COALESCE(a.referred_by, ''),
		       COALESCE(e.level1_earnings, '0'), COALESCE(e.level2_earnings, '0'), COALESCE(e.version, 0),
		       a.created_at, a.updated_at
		FROM accounts a
		LEFT JOIN account_earnings e ON e.account_id = a.id
		ORDER BY a.created_at, a.id`

	queryGetAccountById = `
		SELECT a.id, a.name, a.email, COALESCE(a.referred_by, ''),
		       COALESCE(e.level1_earnings, '0'), COALESCE(e.level2_earnings, '0'), COALESCE(e.version, 0),
		       a.created_at, a.updated_at
		FROM accounts a
		LEFT JOIN account_earnings e ON e.account_id = a.id
		WHERE a.id = ?`

	queryGetAccountByEmail = `
		SELECT a.id, a.name, a.email, COALESCE(a.referred_by, ''),
		       COALESCE(e.level1_earnings, '0'), COALESCE(e.level2_earnings, '0'), COALESCE(e.version, 0),
		       a.created_at, a.updated_at
		FROM accounts a
		LEFT JOIN account_earnings e ON e.account_id = a.id
		WHERE a.email = ?`

	queryGetReferrals = `
		SELECT a.id, a.name, a.email, COALESCE(a.referred_by, ''),
		       COALESCE(e.level1_earnings, '0'), COALESCE(e.level2_earnings, '0'), COALESCE(e.version, 0),
		       a.created_at, a.updated_at
		FROM accounts a
		LEFT JOIN account_earnings e ON e.account_id = a.id
		WHERE a.referred_by = ?
		ORDER BY a.created_at, a.id`

	queryGetReferralIds = `
		SELECT id FROM accounts WHERE referred_by = ? ORDER BY created_at, id`

	queryAccountExists = `
		SELECT id FROM accounts WHERE id = ?`

	queryInsertAccount = `
		INSERT OR IGNORE INTO accounts (id, name, email, referred_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	// Earnings balance queries
	queryInsertEarningsBalance = `
		INSERT OR IGNORE INTO account_earnings (account_id, level1_earnings, level2_earnings, version)
		VALUES (?, '0', '0', 1)`

	queryGetEarningsBalance = `
		SELECT account_id, level1_earnings, level2_earnings, COALESCE(last_earnings_id, ''), version, updated_at
		FROM account_earnings
		WHERE account_id = ?`

	queryUpdateEarningsBalance = `
		UPDATE account_earnings
		SET level1_earnings = ?, level2_earnings = ?, last_earnings_id = ?, version = version + 1, updated_at = ?
		WHERE account_id = ? AND version = ?`

	// Earnings ledger queries
	queryCheckDuplicatePurchase = `
		SELECT id FROM earnings WHERE purchase_id = ? LIMIT 1`

	queryInsertEarnings = `
		INSERT INTO earnings (
			id, purchase_id, user_id, referral_user_id, level, amount, purchase_amount,
			balance_before, balance_after, transaction_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, earnings_id, account_type, account_id, debit_amount, credit_amount)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryGetEarningsByPurchaser = `
		SELECT id, purchase_id, user_id, referral_user_id, level, amount, purchase_amount, transaction_date
		FROM earnings
		WHERE user_id = ?
		ORDER BY transaction_date, purchase_id, level`

	queryGetEarningsByBeneficiary = `
		SELECT id, purchase_id, user_id, referral_user_id, level, amount, purchase_amount, transaction_date
		FROM earnings
		WHERE referral_user_id = ?
		ORDER BY transaction_date, purchase_id, level`

	queryGetJournalTotals = `
		SELECT debit_amount, credit_amount
		FROM journal_entries
		WHERE earnings_id IN (SELECT id FROM earnings WHERE purchase_id = ?)`
)
