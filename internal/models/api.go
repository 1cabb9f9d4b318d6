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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseState tracks a purchase through the commission pipeline.
type PurchaseState string

const (
	PurchaseReceived  PurchaseState = "received"
	PurchaseValidated PurchaseState = "validated"
	PurchaseResolved  PurchaseState = "resolved"
	PurchaseComputed  PurchaseState = "computed"
	PurchaseCommitted PurchaseState = "committed"
	PurchasePublished PurchaseState = "published"
	PurchaseRejected  PurchaseState = "rejected"
	PurchaseFailed    PurchaseState = "failed"
)

// Terminal reports whether no further transition is possible.
func (s PurchaseState) Terminal() bool {
	return s == PurchasePublished || s == PurchaseRejected || s == PurchaseFailed
}

// PurchaseResult is returned by the purchase entry point. The earnings fields
// are what this purchase distributed, not the beneficiaries' running totals.
type PurchaseResult struct {
	PurchaseId     string           `json:"purchaseId"`
	PurchaserId    string           `json:"userId"`
	PurchaseAmount decimal.Decimal  `json:"purchaseAmount"`
	Level1Earnings decimal.Decimal  `json:"level1Earnings"`
	Level2Earnings decimal.Decimal  `json:"level2Earnings"`
	TotalEarnings  decimal.Decimal  `json:"totalEarnings"`
	Records        []EarningsRecord `json:"records"`
	State          PurchaseState    `json:"state"`
}

// EarningsSummary aggregates ledger records grouped by level.
type EarningsSummary struct {
	Level1  decimal.Decimal  `json:"level1Earnings"`
	Level2  decimal.Decimal  `json:"level2Earnings"`
	Total   decimal.Decimal  `json:"totalEarnings"`
	Records []EarningsRecord `json:"details"`
}

// ReferralEarning is one line of a purchaser's breakdown.
type ReferralEarning struct {
	ReferralUserId   string          `json:"referralUserId"`
	ReferralUserName string          `json:"referralUserName,omitempty"`
	Level            int             `json:"level"`
	Amount           decimal.Decimal `json:"amount"`
	TransactionDate  time.Time       `json:"transactionDate"`
}

// AccountDetails is an account together with its direct neighbours.
type AccountDetails struct {
	Account       Account         `json:"user"`
	TotalEarnings decimal.Decimal `json:"totalEarnings"`
	Referrer      *Account        `json:"referrer,omitempty"`
	Referrals     []Account       `json:"referrals"`
}

// ReconciliationReport compares the balance cache with ledger sums.
type ReconciliationReport struct {
	AccountId     string          `json:"userId"`
	BalanceLevel1 decimal.Decimal `json:"balanceLevel1"`
	BalanceLevel2 decimal.Decimal `json:"balanceLevel2"`
	LedgerLevel1  decimal.Decimal `json:"ledgerLevel1"`
	LedgerLevel2  decimal.Decimal `json:"ledgerLevel2"`
	Matched       bool            `json:"matched"`
}

// EarningsEvent is published after a commission commits.
type EarningsEvent struct {
	BeneficiaryId string          `json:"userId"`
	Amount        decimal.Decimal `json:"earnings"`
	Level         int             `json:"level"`
	PurchaseId    string          `json:"purchaseId"`
	PurchaserId   string          `json:"purchaserId"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// ReferralType labels the level the way realtime clients expect it.
func (e EarningsEvent) ReferralType() string {
	switch e.Level {
	case 1:
		return "Level 1"
	case 2:
		return "Level 2"
	default:
		return "Unknown"
	}
}
