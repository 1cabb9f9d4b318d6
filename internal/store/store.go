package store

import (
	"context"
	"errors"

	"referral-earnings-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrAccountNotFound        = errors.New("account not found")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrStorageFailure         = errors.New("storage failure")
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
)

// CreateAccountParams contains the parameters for registering an account.
type CreateAccountParams struct {
	Id         string
	Name       string
	Email      string
	ReferredBy string
}

// ApplyCommissionsParams is one purchase's worth of commissions, applied as a
// single unit: every balance changes and every record is written, or none.
type ApplyCommissionsParams struct {
	PurchaseId     string
	PurchaserId    string
	PurchaseAmount decimal.Decimal
	Commissions    []models.Commission
}

// AccountReader is the read side the referral walk needs.
type AccountReader interface {
	GetAccount(ctx context.Context, accountId string) (*models.Account, error)
}

// AccountStore is the account half of a backend.
type AccountStore interface {
	AccountReader
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)
	GetReferrals(ctx context.Context, accountId string) ([]models.Account, error)
	CreateAccount(ctx context.Context, params CreateAccountParams) (*models.Account, error)
}

// EarningsLedger is the append-only commission ledger.
type EarningsLedger interface {
	ApplyCommissions(ctx context.Context, params ApplyCommissionsParams) ([]models.EarningsRecord, error)
	GetEarningsByPurchaser(ctx context.Context, purchaserId string) ([]models.EarningsRecord, error)
	GetEarningsByBeneficiary(ctx context.Context, beneficiaryId string) ([]models.EarningsRecord, error)
	ReconcileAccountEarnings(ctx context.Context, accountId string) (*models.ReconciliationReport, error)
}

// LedgerStore defines the contract that every backend (SQLite, Formance, ...) must satisfy.
type LedgerStore interface {
	AccountStore
	EarningsLedger

	// --- Lifecycle ---
	Close()
}

// SummarizeEarnings groups records by level and sums them.
func SummarizeEarnings(records []models.EarningsRecord) models.EarningsSummary {
	summary := models.EarningsSummary{
		Level1:  decimal.Zero,
		Level2:  decimal.Zero,
		Records: records,
	}
	for _, r := range records {
		switch r.Level {
		case 1:
			summary.Level1 = summary.Level1.Add(r.Amount)
		case 2:
			summary.Level2 = summary.Level2.Add(r.Amount)
		}
	}
	summary.Total = summary.Level1.Add(summary.Level2)
	if summary.Records == nil {
		summary.Records = []models.EarningsRecord{}
	}
	return summary
}
