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

package common

import (
	"context"
	"fmt"

	"referral-earnings-go/internal/models"
	"referral-earnings-go/internal/store"

	"go.uber.org/zap"
)

// InitializeAccounts retrieves accounts based on an optional email filter.
// If emailFilter is provided, returns the single account with that email.
// If emailFilter is empty, returns all accounts.
func InitializeAccounts(ctx context.Context, accounts store.AccountStore, emailFilter string, logger *zap.Logger) ([]models.Account, error) {
	var result []models.Account

	if emailFilter != "" {
		logger.Info("Looking up account by email", zap.String("email", emailFilter))
		account, err := accounts.GetAccountByEmail(ctx, emailFilter)
		if err != nil {
			return nil, fmt.Errorf("account not found: %w", err)
		}
		result = append(result, *account)
	} else {
		all, err := accounts.ListAccounts(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get accounts: %w", err)
		}
		result = all
	}

	logger.Info("Retrieved accounts", zap.Int("count", len(result)))
	return result, nil
}

// AccountNames maps account ids to display names for report output.
func AccountNames(accounts []models.Account) map[string]string {
	names := make(map[string]string, len(accounts))
	for _, a := range accounts {
		names[a.Id] = a.Name
	}
	return names
}
