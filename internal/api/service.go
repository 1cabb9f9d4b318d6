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
	"time"

	"referral-earnings-go/internal/models"
	"referral-earnings-go/internal/store"

	"github.com/google/uuid"
)

const (
	defaultMaxCommitAttempts = 5
	defaultRetryBackoff      = 20 * time.Millisecond
	defaultPurchaseTimeout   = 10 * time.Second
)

// EventPublisher accepts committed earnings for asynchronous delivery.
// Publish must not block.
type EventPublisher interface {
	Publish(event models.EarningsEvent) bool
}

type noopPublisher struct{}

func (noopPublisher) Publish(models.EarningsEvent) bool { return true }

// LedgerService is the purchase entry point and query surface
type LedgerService struct {
	store     store.LedgerStore
	publisher EventPublisher
	cfg       models.EngineConfig

	newId func() string
	sleep func(ctx context.Context, d time.Duration) error
}

func NewLedgerService(db store.LedgerStore, publisher EventPublisher, cfg models.EngineConfig) *LedgerService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if cfg.MaxCommitAttempts < 1 {
		cfg.MaxCommitAttempts = defaultMaxCommitAttempts
	}
	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if cfg.PurchaseTimeout <= 0 {
		cfg.PurchaseTimeout = defaultPurchaseTimeout
	}
	return &LedgerService{
		store:     db,
		publisher: publisher,
		cfg:       cfg,
		newId:     func() string { return uuid.New().String() },
		sleep:     sleepContext,
	}
}

func (s *LedgerService) HealthCheck(ctx context.Context) error {
	_, err := s.store.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func validateAccountId(accountId string) error {
	if _, err := uuid.Parse(accountId); err != nil {
		return fmt.Errorf("%w: invalid user id %q", store.ErrInvalidInput, accountId)
	}
	return nil
}

// classify keeps sentinel-tagged errors as they are and tags anything else
// as a storage failure.
func classify(err error) error {
	for _, sentinel := range []error{
		store.ErrInvalidInput,
		store.ErrAccountNotFound,
		store.ErrConcurrentModification,
		store.ErrStorageFailure,
		store.ErrDuplicateTransaction,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", store.ErrStorageFailure, err)
}
