package referral

import (
	"context"
	"errors"
	"fmt"

	"referral-earnings-go/internal/models"
	"referral-earnings-go/internal/store"

	"go.uber.org/zap"
)

// ResolveUpline walks referredBy links from the purchaser and returns at most
// depth accounts, nearest first. The walk stops early at an account without
// a referrer, at a referrer that no longer exists, or at a cycle.
func ResolveUpline(ctx context.Context, reader store.AccountReader, purchaserId string, depth int) ([]models.Account, error) {
	purchaser, err := reader.GetAccount(ctx, purchaserId)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, fmt.Errorf("purchaser %s: %w", purchaserId, err)
		}
		return nil, storageError(err)
	}

	upline := make([]models.Account, 0, max(depth, 0))
	visited := map[string]bool{purchaser.Id: true}
	current := purchaser

	for len(upline) < depth && current.HasReferrer() {
		referrerId := current.ReferredBy
		if visited[referrerId] {
			zap.L().Error("Referral cycle detected, truncating upline",
				zap.String("purchaser_id", purchaserId),
				zap.String("account_id", current.Id),
				zap.String("referred_by", referrerId),
				zap.Int("resolved", len(upline)))
			break
		}

		referrer, err := reader.GetAccount(ctx, referrerId)
		if err != nil {
			if errors.Is(err, store.ErrAccountNotFound) {
				zap.L().Warn("Referrer not found, treating chain as shorter",
					zap.String("account_id", current.Id),
					zap.String("referred_by", referrerId))
				break
			}
			return nil, storageError(err)
		}

		visited[referrer.Id] = true
		upline = append(upline, *referrer)
		current = referrer
	}

	return upline, nil
}

func storageError(err error) error {
	if errors.Is(err, store.ErrStorageFailure) {
		return err
	}
	return fmt.Errorf("%w: %v", store.ErrStorageFailure, err)
}
