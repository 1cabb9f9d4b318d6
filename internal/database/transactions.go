package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"referral-earnings-go/internal/models"
	"referral-earnings-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// platformCommissionsAccount is the journal counterparty for every credit.
const platformCommissionsAccount = "platform_commissions"

// ApplyCommissions credits every commission of one purchase and appends one
// ledger row per credited level inside a single database transaction.
func (s *SubledgerService) ApplyCommissions(ctx context.Context, params store.ApplyCommissionsParams) ([]models.EarningsRecord, error) {
	credits := make([]models.Commission, 0, len(params.Commissions))
	for _, c := range params.Commissions {
		if c.Amount.IsPositive() {
			credits = append(credits, c)
		}
	}
	if len(credits) == 0 {
		return nil, nil
	}

	// Fixed lock order across concurrent purchases.
	sort.SliceStable(credits, func(i, j int) bool {
		if credits[i].Beneficiary.Id != credits[j].Beneficiary.Id {
			return credits[i].Beneficiary.Id < credits[j].Beneficiary.Id
		}
		return credits[i].Level < credits[j].Level
	})

	zap.L().Info("Applying commissions",
		zap.String("purchase_id", params.PurchaseId),
		zap.String("purchaser_id", params.PurchaserId),
		zap.String("purchase_amount", params.PurchaseAmount.String()),
		zap.Int("credits", len(credits)))

	var existingId string
	err := s.db.QueryRowContext(ctx, queryCheckDuplicatePurchase, params.PurchaseId).Scan(&existingId)
	if err == nil {
		zap.L().Warn("Duplicate purchase detected, skipping",
			zap.String("purchase_id", params.PurchaseId),
			zap.String("existing_earnings_id", existingId))
		return nil, fmt.Errorf("%w: purchase %s already credited", store.ErrDuplicateTransaction, params.PurchaseId)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: failed to check for duplicate purchase: %v", store.ErrStorageFailure, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %v", store.ErrStorageFailure, err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	records := make([]models.EarningsRecord, 0, len(credits))
	for _, c := range credits {
		record, err := s.creditInTx(ctx, tx, params, c, now)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: failed to commit transaction: %v", store.ErrStorageFailure, err)
	}

	zap.L().Info("Commissions applied successfully",
		zap.String("purchase_id", params.PurchaseId),
		zap.Int("records", len(records)))

	return records, nil
}

// creditInTx is the single-account credit primitive: read the balance row,
// append the ledger row, then write the new balance only if the version is
// still the one that was read.
func (s *SubledgerService) creditInTx(ctx context.Context, tx *sql.Tx, params store.ApplyCommissionsParams, c models.Commission, now time.Time) (*models.EarningsRecord, error) {
	accountId := c.Beneficiary.Id

	balance, err := getEarningsBalanceTx(ctx, tx, accountId)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := tx.ExecContext(ctx, queryInsertEarningsBalance, accountId); err != nil {
			return nil, fmt.Errorf("%w: failed to create earnings balance: %v", store.ErrStorageFailure, err)
		}
		balance = &models.EarningsBalance{AccountId: accountId, Level1Earnings: decimal.Zero, Level2Earnings: decimal.Zero, Version: 1}
	} else if err != nil {
		return nil, fmt.Errorf("%w: failed to get earnings balance: %v", store.ErrStorageFailure, err)
	}

	newLevel1, newLevel2 := balance.Level1Earnings, balance.Level2Earnings
	switch c.Level {
	case 1:
		newLevel1 = newLevel1.Add(c.Amount)
	case 2:
		newLevel2 = newLevel2.Add(c.Amount)
	default:
		return nil, fmt.Errorf("%w: unsupported commission level %d", store.ErrInvalidInput, c.Level)
	}
	before := balance.Total()
	after := newLevel1.Add(newLevel2)

	record := &models.EarningsRecord{
		Id:              uuid.New().String(),
		PurchaseId:      params.PurchaseId,
		UserId:          params.PurchaserId,
		ReferralUserId:  accountId,
		Level:           c.Level,
		Amount:          c.Amount,
		PurchaseAmount:  params.PurchaseAmount,
		TransactionDate: now,
	}
	_, err = tx.ExecContext(ctx, queryInsertEarnings,
		record.Id, record.PurchaseId, record.UserId, record.ReferralUserId, record.Level,
		record.Amount.String(), record.PurchaseAmount.String(), before.String(), after.String(), record.TransactionDate)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: purchase %s level %d already credited", store.ErrDuplicateTransaction, params.PurchaseId, c.Level)
		}
		return nil, fmt.Errorf("%w: failed to insert earnings record: %v", store.ErrStorageFailure, err)
	}

	result, err := tx.ExecContext(ctx, queryUpdateEarningsBalance,
		newLevel1.String(), newLevel2.String(), record.Id, now, accountId, balance.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to update earnings balance: %v", store.ErrStorageFailure, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to check rows affected: %v", store.ErrStorageFailure, err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("earnings update for %s failed - %w", accountId, store.ErrConcurrentModification)
	}

	if err := addJournalEntries(ctx, tx, record); err != nil {
		return nil, fmt.Errorf("%w: failed to add journal entries: %v", store.ErrStorageFailure, err)
	}

	zap.L().Debug("Credited commission",
		zap.String("account_id", accountId),
		zap.Int("level", c.Level),
		zap.String("amount", c.Amount.String()),
		zap.String("old_total", before.String()),
		zap.String("new_total", after.String()))

	return record, nil
}

// addJournalEntries debits the platform commission expense and credits the
// beneficiary's payable for the same amount.
func addJournalEntries(ctx context.Context, tx *sql.Tx, record *models.EarningsRecord) error {
	entries := []struct {
		accountType  string
		accountId    string
		debitAmount  decimal.Decimal
		creditAmount decimal.Decimal
	}{
		{"platform_expense", platformCommissionsAccount, record.Amount, decimal.Zero},
		{"referral_payable", fmt.Sprintf("%s_level%d", record.ReferralUserId, record.Level), decimal.Zero, record.Amount},
	}

	for _, entry := range entries {
		_, err := tx.ExecContext(ctx, queryInsertJournalEntry,
			uuid.New().String(), record.Id, entry.accountType, entry.accountId, entry.debitAmount.String(), entry.creditAmount.String())
		if err != nil {
			return err
		}
	}
	return nil
}

// GetEarningsByPurchaser returns every record generated by the purchaser's purchases.
func (s *SubledgerService) GetEarningsByPurchaser(ctx context.Context, purchaserId string) ([]models.EarningsRecord, error) {
	zap.L().Debug("Getting earnings by purchaser", zap.String("user_id", purchaserId))
	return queryEarnings(ctx, s.db, queryGetEarningsByPurchaser, purchaserId)
}

// GetEarningsByBeneficiary returns every record credited to the account.
func (s *SubledgerService) GetEarningsByBeneficiary(ctx context.Context, beneficiaryId string) ([]models.EarningsRecord, error) {
	zap.L().Debug("Getting earnings by beneficiary", zap.String("referral_user_id", beneficiaryId))
	return queryEarnings(ctx, s.db, queryGetEarningsByBeneficiary, beneficiaryId)
}

func queryEarnings(ctx context.Context, q rowsQueryer, query, id string) ([]models.EarningsRecord, error) {
	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query earnings: %v", store.ErrStorageFailure, err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	records := []models.EarningsRecord{}
	for rows.Next() {
		var r models.EarningsRecord
		var amountStr, purchaseAmountStr string
		err := rows.Scan(&r.Id, &r.PurchaseId, &r.UserId, &r.ReferralUserId, &r.Level,
			&amountStr, &purchaseAmountStr, &r.TransactionDate)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan earnings record: %v", store.ErrStorageFailure, err)
		}

		r.Amount, err = decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse amount '%s': %v", store.ErrStorageFailure, amountStr, err)
		}
		r.PurchaseAmount, err = decimal.NewFromString(purchaseAmountStr)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse purchase amount '%s': %v", store.ErrStorageFailure, purchaseAmountStr, err)
		}

		records = append(records, r)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during earnings row iteration", zap.Error(err))
		return nil, fmt.Errorf("%w: error iterating earnings rows: %v", store.ErrStorageFailure, err)
	}

	return records, nil
}

// journalBalanced reports whether debits equal credits for a purchase.
func (s *SubledgerService) journalBalanced(ctx context.Context, purchaseId string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, queryGetJournalTotals, purchaseId)
	if err != nil {
		return false, fmt.Errorf("failed to query journal: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	debits, credits := decimal.Zero, decimal.Zero
	for rows.Next() {
		var debitStr, creditStr string
		if err := rows.Scan(&debitStr, &creditStr); err != nil {
			return false, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		debit, err := decimal.NewFromString(debitStr)
		if err != nil {
			return false, err
		}
		credit, err := decimal.NewFromString(creditStr)
		if err != nil {
			return false, err
		}
		debits = debits.Add(debit)
		credits = credits.Add(credit)
	}
	if err := rows.Err(); err != nil {
		return false, err
	}
	return debits.Equal(credits), nil
}
