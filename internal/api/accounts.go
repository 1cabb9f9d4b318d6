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
	"regexp"
	"strings"

	"referral-earnings-go/internal/models"
	"referral-earnings-go/internal/store"

	"go.uber.org/zap"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateAccountInput checks a name and email before an account is created.
func ValidateAccountInput(name, email string) error {
	if len(strings.TrimSpace(name)) < 2 {
		return fmt.Errorf("%w: name must be at least 2 characters long", store.ErrInvalidInput)
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("%w: invalid email format %q", store.ErrInvalidInput, email)
	}
	return nil
}

// CreateAccount registers a new account, optionally under an existing referrer
func (s *LedgerService) CreateAccount(ctx context.Context, name, email, referredBy string) (*models.Account, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	referredBy = strings.TrimSpace(referredBy)

	if err := ValidateAccountInput(name, email); err != nil {
		return nil, err
	}
	if referredBy != "" {
		if err := validateAccountId(referredBy); err != nil {
			return nil, err
		}
	}

	account, err := s.store.CreateAccount(ctx, store.CreateAccountParams{
		Id:         s.newId(),
		Name:       name,
		Email:      email,
		ReferredBy: referredBy,
	})
	if err != nil {
		zap.L().Error("Failed to create account",
			zap.String("email", email),
			zap.String("referred_by", referredBy),
			zap.Error(err))
		return nil, classify(err)
	}

	zap.L().Info("Account created",
		zap.String("user_id", account.Id),
		zap.String("name", account.Name),
		zap.String("referred_by", account.ReferredBy))
	return account, nil
}

// GetAccountDetails returns an account with its referrer and direct referrals
func (s *LedgerService) GetAccountDetails(ctx context.Context, accountId string) (*models.AccountDetails, error) {
	if err := validateAccountId(accountId); err != nil {
		return nil, err
	}

	account, err := s.store.GetAccount(ctx, accountId)
	if err != nil {
		return nil, classify(err)
	}

	details := &models.AccountDetails{
		Account:       *account,
		TotalEarnings: account.TotalEarnings(),
	}

	if account.HasReferrer() {
		referrer, err := s.store.GetAccount(ctx, account.ReferredBy)
		switch {
		case err == nil:
			details.Referrer = referrer
		case errors.Is(err, store.ErrAccountNotFound):
			zap.L().Warn("Referrer no longer exists",
				zap.String("user_id", accountId),
				zap.String("referred_by", account.ReferredBy))
		default:
			return nil, classify(err)
		}
	}

	referrals, err := s.store.GetReferrals(ctx, accountId)
	if err != nil {
		return nil, classify(err)
	}
	if referrals == nil {
		referrals = []models.Account{}
	}
	details.Referrals = referrals

	return details, nil
}
