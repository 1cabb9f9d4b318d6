package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"referral-earnings-go/internal/models"
	"referral-earnings-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// rowQueryer is satisfied by both *sql.DB and *sql.Tx.
type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowsQueryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func getEarningsBalanceTx(ctx context.Context, q rowQueryer, accountId string) (*models.EarningsBalance, error) {
	var balance models.EarningsBalance
	var level1Str, level2Str string
	var updatedAt sql.NullTime
	err := q.QueryRowContext(ctx, queryGetEarningsBalance, accountId).Scan(
		&balance.AccountId, &level1Str, &level2Str, &balance.LastEarningsId, &balance.Version, &updatedAt)
	if err != nil {
		return nil, err
	}

	if balance.Level1Earnings, err = decimal.NewFromString(level1Str); err != nil {
		return nil, fmt.Errorf("failed to parse level1 earnings '%s': %w", level1Str, err)
	}
	if balance.Level2Earnings, err = decimal.NewFromString(level2Str); err != nil {
		return nil, fmt.Errorf("failed to parse level2 earnings '%s': %w", level2Str, err)
	}
	if updatedAt.Valid {
		balance.UpdatedAt = updatedAt.Time
	}
	return &balance, nil
}

// GetEarningsBalance returns the materialized balance row (O(1) lookup).
// A missing row is a zero balance.
func (s *SubledgerService) GetEarningsBalance(ctx context.Context, accountId string) (*models.EarningsBalance, error) {
	zap.L().Debug("Getting earnings balance", zap.String("account_id", accountId))

	balance, err := getEarningsBalanceTx(ctx, s.db, accountId)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.EarningsBalance{AccountId: accountId, Level1Earnings: decimal.Zero, Level2Earnings: decimal.Zero}, nil
	}
	if err != nil {
		zap.L().Error("Failed to get earnings balance", zap.String("account_id", accountId), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to get earnings balance: %v", store.ErrStorageFailure, err)
	}
	return balance, nil
}

// ReconcileEarnings verifies that the balance cache matches the ledger sums.
// Both are read in one transaction so a concurrent purchase cannot land
// between them.
func (s *SubledgerService) ReconcileEarnings(ctx context.Context, accountId string) (*models.ReconciliationReport, error) {
	zap.L().Info("Reconciling earnings", zap.String("account_id", accountId))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin reconciliation: %v", store.ErrStorageFailure, err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			zap.L().Warn("Failed to end reconciliation transaction", zap.Error(err))
		}
	}()

	balance, err := getEarningsBalanceTx(ctx, tx, accountId)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		balance = &models.EarningsBalance{AccountId: accountId, Level1Earnings: decimal.Zero, Level2Earnings: decimal.Zero}
	case err != nil:
		return nil, fmt.Errorf("%w: failed to get current balance: %v", store.ErrStorageFailure, err)
	}

	records, err := queryEarnings(ctx, tx, queryGetEarningsByBeneficiary, accountId)
	if err != nil {
		return nil, fmt.Errorf("failed to load earnings records: %w", err)
	}
	summary := store.SummarizeEarnings(records)

	report := &models.ReconciliationReport{
		AccountId:     accountId,
		BalanceLevel1: balance.Level1Earnings,
		BalanceLevel2: balance.Level2Earnings,
		LedgerLevel1:  summary.Level1,
		LedgerLevel2:  summary.Level2,
		Matched:       balance.Level1Earnings.Equal(summary.Level1) && balance.Level2Earnings.Equal(summary.Level2),
	}

	if !report.Matched {
		zap.L().Error("Earnings reconciliation failed",
			zap.String("account_id", accountId),
			zap.String("balance_level1", balance.Level1Earnings.String()),
			zap.String("ledger_level1", summary.Level1.String()),
			zap.String("balance_level2", balance.Level2Earnings.String()),
			zap.String("ledger_level2", summary.Level2.String()))
		return report, nil
	}

	zap.L().Info("Earnings reconciliation successful",
		zap.String("account_id", accountId),
		zap.String("total", balance.Total().String()))
	return report, nil
}
