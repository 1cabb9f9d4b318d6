package formance

import (
	"context"
	"fmt"
	"math/big"

	"referral-earnings-go/internal/models"
	"referral-earnings-go/internal/store"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// accountBalance returns the earnings-currency balance of one ledger address.
// An address that was never posted to has a zero balance.
func (s *Service) accountBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	resp, err := s.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  s.ledger,
		Address: address,
		Expand:  v3.Pointer("volumes"),
	})
	if err != nil {
		if isNotFoundError(err) {
			return decimal.Zero, nil
		}
		return decimal.Zero, storageError("get account volumes", err)
	}

	fAsset := formanceAsset(earningsCurrency)
	if bal := volumeBalance(resp.V2AccountResponse.Data.Volumes, fAsset); bal != nil {
		return bigIntToDecimal(bal, earningsCurrency), nil
	}
	return decimal.Zero, nil
}

// ReconcileAccountEarnings compares the earnings sub-account volumes with the
// sum of the commission postings recorded for the account. Formance keeps
// both from the same postings, so a mismatch means postings were written
// outside this service.
func (s *Service) ReconcileAccountEarnings(ctx context.Context, accountId string) (*models.ReconciliationReport, error) {
	zap.L().Info("Reconciling earnings in Formance", zap.String("account_id", accountId))

	account := &models.Account{Id: accountId}
	if err := s.loadEarnings(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to get current balance: %w", err)
	}

	records, err := s.GetEarningsByBeneficiary(ctx, accountId)
	if err != nil {
		return nil, fmt.Errorf("failed to load earnings records: %w", err)
	}
	summary := store.SummarizeEarnings(records)

	report := &models.ReconciliationReport{
		AccountId:     accountId,
		BalanceLevel1: account.Level1Earnings,
		BalanceLevel2: account.Level2Earnings,
		LedgerLevel1:  summary.Level1,
		LedgerLevel2:  summary.Level2,
		Matched:       account.Level1Earnings.Equal(summary.Level1) && account.Level2Earnings.Equal(summary.Level2),
	}
	if !report.Matched {
		zap.L().Error("Earnings reconciliation failed",
			zap.String("account_id", accountId),
			zap.String("balance_level1", report.BalanceLevel1.String()),
			zap.String("ledger_level1", report.LedgerLevel1.String()),
			zap.String("balance_level2", report.BalanceLevel2.String()),
			zap.String("ledger_level2", report.LedgerLevel2.String()))
	}
	return report, nil
}

// ---------- helpers ----------

// volumeBalance extracts the balance for a specific asset from volumes.
func volumeBalance(vols map[string]shared.V2Volume, fAsset string) *big.Int {
	vol, ok := vols[fAsset]
	if !ok {
		return nil
	}
	if vol.Balance != nil {
		return vol.Balance
	}
	if vol.Input == nil {
		return nil
	}
	result := new(big.Int).Set(vol.Input)
	if vol.Output != nil {
		result.Sub(result, vol.Output)
	}
	return result
}

// bigIntToDecimal converts a *big.Int in smallest-unit to a human-readable decimal.
func bigIntToDecimal(raw *big.Int, symbol string) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(precisionFor(symbol)))
}

// toMinorUnits converts an amount to the asset's smallest unit. Amounts with
// more decimals than the asset carries are rejected rather than truncated.
func toMinorUnits(amount decimal.Decimal, symbol string) (string, error) {
	shifted := amount.Shift(int32(precisionFor(symbol)))
	if !shifted.Equal(shifted.Truncate(0)) {
		return "", fmt.Errorf("%w: amount %s exceeds %s precision", store.ErrInvalidInput, amount.String(), symbol)
	}
	return shifted.BigInt().String(), nil
}

// assetSymbol extracts the symbol from a Formance asset like "INR/18".
func assetSymbol(fAsset string) string {
	for i, c := range fAsset {
		if c == '/' {
			return fAsset[:i]
		}
	}
	return fAsset
}
