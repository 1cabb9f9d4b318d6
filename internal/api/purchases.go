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
	"fmt"
	"math"
	"strconv"
	"time"

	"referral-earnings-go/internal/commission"
	"referral-earnings-go/internal/metrics"
	"referral-earnings-go/internal/models"
	"referral-earnings-go/internal/referral"
	"referral-earnings-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// purchase carries one request through the pipeline states.
type purchase struct {
	id          string
	purchaserId string
	amount      decimal.Decimal
	state       models.PurchaseState
	started     time.Time
}

func (p *purchase) transition(state models.PurchaseState, fields ...zap.Field) {
	p.state = state
	metrics.PurchaseTransitions.WithLabelValues(string(state)).Inc()

	fields = append([]zap.Field{
		zap.String("purchase_id", p.id),
		zap.String("purchaser_id", p.purchaserId),
		zap.String("state", string(state)),
	}, fields...)

	switch state {
	case models.PurchaseRejected:
		zap.L().Warn("Purchase rejected", fields...)
	case models.PurchaseFailed:
		zap.L().Error("Purchase failed", fields...)
	default:
		zap.L().Debug("Purchase state changed", fields...)
	}

	if state.Terminal() {
		metrics.PurchaseDuration.WithLabelValues(string(state)).Observe(time.Since(p.started).Seconds())
	}
}

// ProcessPurchase validates a purchase, resolves the purchaser's upline,
// credits level 1 and level 2 commissions in one ledger commit and hands one
// event per credited commission to the publisher.
//
// A rejected or failed purchase changes nothing. Publishing happens after the
// commit and never fails the purchase.
func (s *LedgerService) ProcessPurchase(ctx context.Context, purchaserId string, purchaseAmount float64) (*models.PurchaseResult, error) {
	p := &purchase{
		id:          s.newId(),
		purchaserId: purchaserId,
		started:     time.Now(),
	}
	p.transition(models.PurchaseReceived, zap.Float64("purchase_amount", purchaseAmount))

	amount, err := validatePurchase(purchaserId, purchaseAmount)
	if err != nil {
		p.transition(models.PurchaseRejected, zap.Error(err))
		return nil, err
	}
	p.amount = amount
	p.transition(models.PurchaseValidated, zap.String("amount", amount.String()))

	resolveCtx, cancel := context.WithTimeout(ctx, s.cfg.PurchaseTimeout)
	upline, err := referral.ResolveUpline(resolveCtx, s.store, purchaserId, commission.MaxDepth)
	cancel()
	if err != nil {
		p.transition(models.PurchaseFailed, zap.Error(err))
		return nil, err
	}
	p.transition(models.PurchaseResolved, zap.Int("upline", len(upline)))

	commissions := commission.Compute(amount, upline)
	p.transition(models.PurchaseComputed, zap.Int("commissions", len(commissions)))

	var records []models.EarningsRecord
	if len(commissions) > 0 {
		records, err = s.commit(ctx, store.ApplyCommissionsParams{
			PurchaseId:     p.id,
			PurchaserId:    purchaserId,
			PurchaseAmount: amount,
			Commissions:    commissions,
		})
		if err != nil {
			p.transition(models.PurchaseFailed, zap.Error(err))
			return nil, err
		}
	}
	if records == nil {
		records = []models.EarningsRecord{}
	}
	p.transition(models.PurchaseCommitted, zap.Int("records", len(records)))

	for _, r := range records {
		metrics.CommissionsCredited.WithLabelValues(strconv.Itoa(r.Level)).Inc()
		s.publisher.Publish(models.EarningsEvent{
			BeneficiaryId: r.ReferralUserId,
			Amount:        r.Amount,
			Level:         r.Level,
			PurchaseId:    r.PurchaseId,
			PurchaserId:   r.UserId,
			OccurredAt:    r.TransactionDate,
		})
	}
	p.transition(models.PurchasePublished)

	summary := store.SummarizeEarnings(records)
	zap.L().Info("Purchase processed successfully",
		zap.String("purchase_id", p.id),
		zap.String("purchaser_id", purchaserId),
		zap.String("purchase_amount", amount.String()),
		zap.String("level1_earnings", summary.Level1.String()),
		zap.String("level2_earnings", summary.Level2.String()))

	return &models.PurchaseResult{
		PurchaseId:     p.id,
		PurchaserId:    purchaserId,
		PurchaseAmount: amount,
		Level1Earnings: summary.Level1,
		Level2Earnings: summary.Level2,
		TotalEarnings:  summary.Total,
		Records:        records,
		State:          p.state,
	}, nil
}

// validatePurchase checks the purchaser id first, then the amount.
func validatePurchase(purchaserId string, purchaseAmount float64) (decimal.Decimal, error) {
	if err := validateAccountId(purchaserId); err != nil {
		return decimal.Zero, err
	}
	if math.IsNaN(purchaseAmount) || math.IsInf(purchaseAmount, 0) {
		return decimal.Zero, fmt.Errorf("%w: purchase amount must be a valid number", store.ErrInvalidInput)
	}
	amount := decimal.NewFromFloat(purchaseAmount)
	if !amount.GreaterThan(commission.MinimumPurchase) {
		return decimal.Zero, fmt.Errorf("%w: purchase amount must be greater than %s",
			store.ErrInvalidInput, commission.MinimumPurchase.String())
	}
	return amount, nil
}

// commit applies the commissions, retrying on optimistic version conflicts
// with linear backoff. The ledger call itself is detached from caller
// cancellation so an attempt in flight always completes or rolls back whole.
func (s *LedgerService) commit(ctx context.Context, params store.ApplyCommissionsParams) ([]models.EarningsRecord, error) {
	commitCtx := context.WithoutCancel(ctx)

	for attempt := 1; ; attempt++ {
		records, err := s.store.ApplyCommissions(commitCtx, params)
		if err == nil {
			metrics.CommitAttempts.WithLabelValues("committed").Inc()
			return records, nil
		}

		if !errors.Is(err, store.ErrConcurrentModification) {
			metrics.CommitAttempts.WithLabelValues("error").Inc()
			return nil, classify(err)
		}
		metrics.CommitAttempts.WithLabelValues("conflict").Inc()

		if attempt >= s.cfg.MaxCommitAttempts {
			return nil, fmt.Errorf("purchase %s: giving up after %d attempts: %w",
				params.PurchaseId, attempt, err)
		}

		zap.L().Info("Version conflict, retrying commit",
			zap.String("purchase_id", params.PurchaseId),
			zap.Int("attempt", attempt))

		if err := s.sleep(ctx, s.cfg.RetryBackoff*time.Duration(attempt)); err != nil {
			return nil, fmt.Errorf("%w: retry abandoned: %v", store.ErrConcurrentModification, err)
		}
	}
}
