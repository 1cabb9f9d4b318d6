package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a participant in the referral graph. Earnings are mutated only
// by the ledger writer; the total is always derived from the two level sums.
type Account struct {
	Id             string          `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	Email          string          `db:"email" json:"email"`
	ReferredBy     string          `db:"referred_by" json:"referredBy,omitempty"`
	Referrals      []string        `db:"-" json:"referrals"`
	Level1Earnings decimal.Decimal `db:"level1_earnings" json:"level1Earnings"`
	Level2Earnings decimal.Decimal `db:"level2_earnings" json:"level2Earnings"`
	Version        int64           `db:"version" json:"-"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`
}

// TotalEarnings returns Level1Earnings + Level2Earnings.
func (a Account) TotalEarnings() decimal.Decimal {
	return a.Level1Earnings.Add(a.Level2Earnings)
}

// HasReferrer reports whether the account was referred by someone.
func (a Account) HasReferrer() bool {
	return a.ReferredBy != ""
}

// EarningsBalance is the materialized per-account earnings state (hot data).
type EarningsBalance struct {
	AccountId      string          `db:"account_id"`
	Level1Earnings decimal.Decimal `db:"level1_earnings"`
	Level2Earnings decimal.Decimal `db:"level2_earnings"`
	LastEarningsId string          `db:"last_earnings_id"`
	Version        int64           `db:"version"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// Total returns Level1Earnings + Level2Earnings.
func (b EarningsBalance) Total() decimal.Decimal {
	return b.Level1Earnings.Add(b.Level2Earnings)
}

// EarningsRecord is an immutable ledger entry: one per credited level of a
// purchase. UserId is the purchaser, ReferralUserId the credited upline.
type EarningsRecord struct {
	Id              string          `db:"id" json:"id"`
	PurchaseId      string          `db:"purchase_id" json:"purchaseId"`
	UserId          string          `db:"user_id" json:"userId"`
	ReferralUserId  string          `db:"referral_user_id" json:"referralUserId"`
	Level           int             `db:"level" json:"level"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	PurchaseAmount  decimal.Decimal `db:"purchase_amount" json:"purchaseAmount"`
	TransactionDate time.Time       `db:"transaction_date" json:"transactionDate"`
}

// Commission is a computed, not yet persisted, credit for one upline level.
type Commission struct {
	Beneficiary Account
	Level       int
	Amount      decimal.Decimal
}
