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

package api

import (
	"context"
	"errors"

	"referral-earnings-go/internal/models"
	"referral-earnings-go/internal/store"

	"go.uber.org/zap"
)

// GetEarningsByPurchaser aggregates the commissions generated by one
// purchaser's purchases, straight from the ledger records.
func (s *LedgerService) GetEarningsByPurchaser(ctx context.Context, purchaserId string) (models.EarningsSummary, error) {
	if err := validateAccountId(purchaserId); err != nil {
		return store.SummarizeEarnings(nil), err
	}

	records, err := s.store.GetEarningsByPurchaser(ctx, purchaserId)
	if err != nil {
		zap.L().Error("Failed to get earnings by purchaser",
			zap.String("purchaser_id", purchaserId),
			zap.Error(err))
		return store.SummarizeEarnings(nil), classify(err)
	}
	return store.SummarizeEarnings(records), nil
}

// GetEarningsByBeneficiary aggregates everything credited to one account.
func (s *LedgerService) GetEarningsByBeneficiary(ctx context.Context, beneficiaryId string) (models.EarningsSummary, error) {
	if err := validateAccountId(beneficiaryId); err != nil {
		return store.SummarizeEarnings(nil), err
	}

	records, err := s.store.GetEarningsByBeneficiary(ctx, beneficiaryId)
	if err != nil {
		zap.L().Error("Failed to get earnings by beneficiary",
			zap.String("beneficiary_id", beneficiaryId),
			zap.Error(err))
		return store.SummarizeEarnings(nil), classify(err)
	}
	return store.SummarizeEarnings(records), nil
}

// GetEarningsReport is what an account has earned from its downline.
func (s *LedgerService) GetEarningsReport(ctx context.Context, accountId string) (models.EarningsSummary, error) {
	return s.GetEarningsByBeneficiary(ctx, accountId)
}

// GetReferralEarningsBreakdown lists, for a purchaser, who was credited by
// each of their purchases and how much.
func (s *LedgerService) GetReferralEarningsBreakdown(ctx context.Context, purchaserId string) ([]models.ReferralEarning, error) {
	if err := validateAccountId(purchaserId); err != nil {
		return nil, err
	}

	records, err := s.store.GetEarningsByPurchaser(ctx, purchaserId)
	if err != nil {
		return nil, classify(err)
	}

	names := make(map[string]string)
	breakdown := make([]models.ReferralEarning, 0, len(records))
	for _, r := range records {
		name, ok := names[r.ReferralUserId]
		if !ok {
			account, err := s.store.GetAccount(ctx, r.ReferralUserId)
			switch {
			case err == nil:
				name = account.Name
			case errors.Is(err, store.ErrAccountNotFound):
				name = ""
			default:
				return nil, classify(err)
			}
			names[r.ReferralUserId] = name
		}

		breakdown = append(breakdown, models.ReferralEarning{
			ReferralUserId:   r.ReferralUserId,
			ReferralUserName: name,
			Level:            r.Level,
			Amount:           r.Amount,
			TransactionDate:  r.TransactionDate,
		})
	}
	return breakdown, nil
}

// ReconcileAccount compares an account's balance cache with its ledger sums.
func (s *LedgerService) ReconcileAccount(ctx context.Context, accountId string) (*models.ReconciliationReport, error) {
	if err := validateAccountId(accountId); err != nil {
		return nil, err
	}
	if _, err := s.store.GetAccount(ctx, accountId); err != nil {
		return nil, classify(err)
	}

	report, err := s.store.ReconcileAccountEarnings(ctx, accountId)
	if err != nil {
		return nil, classify(err)
	}
	return report, nil
}
