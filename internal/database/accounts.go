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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"referral-earnings-go/internal/models"
	"referral-earnings-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var account models.Account
	var level1Str, level2Str string
	err := row.Scan(&account.Id, &account.Name, &account.Email, &account.ReferredBy,
		&level1Str, &level2Str, &account.Version, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if account.Level1Earnings, err = decimal.NewFromString(level1Str); err != nil {
		return nil, fmt.Errorf("failed to parse level1 earnings '%s': %w", level1Str, err)
	}
	if account.Level2Earnings, err = decimal.NewFromString(level2Str); err != nil {
		return nil, fmt.Errorf("failed to parse level2 earnings '%s': %w", level2Str, err)
	}
	return &account, nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]models.Account, error) {
	zap.L().Debug("Querying accounts")
	return s.queryAccounts(ctx, queryListAccounts)
}

func (s *Service) GetReferrals(ctx context.Context, accountId string) ([]models.Account, error) {
	zap.L().Debug("Querying referrals", zap.String("account_id", accountId))
	return s.queryAccounts(ctx, queryGetReferrals, accountId)
}

func (s *Service) queryAccounts(ctx context.Context, query string, args ...any) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		zap.L().Error("Failed to query accounts", zap.Error(err))
		return nil, fmt.Errorf("%w: unable to query accounts: %v", store.ErrStorageFailure, err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	accounts := []models.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			zap.L().Error("Failed to scan account row", zap.Error(err))
			return nil, fmt.Errorf("%w: unable to scan account row: %v", store.ErrStorageFailure, err)
		}
		accounts = append(accounts, *account)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during account row iteration", zap.Error(err))
		return nil, fmt.Errorf("%w: error iterating account rows: %v", store.ErrStorageFailure, err)
	}

	return accounts, nil
}

func (s *Service) GetAccount(ctx context.Context, accountId string) (*models.Account, error) {
	zap.L().Debug("Querying account by ID", zap.String("account_id", accountId))

	account, err := scanAccount(s.db.QueryRowContext(ctx, queryGetAccountById, accountId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrAccountNotFound, accountId)
		}
		zap.L().Error("Failed to query account by ID", zap.String("account_id", accountId), zap.Error(err))
		return nil, fmt.Errorf("%w: unable to query account by ID: %v", store.ErrStorageFailure, err)
	}

	if account.Referrals, err = s.getReferralIds(ctx, accountId); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	zap.L().Debug("Querying account by email", zap.String("email", email))

	account, err := scanAccount(s.db.QueryRowContext(ctx, queryGetAccountByEmail, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrAccountNotFound, email)
		}
		zap.L().Error("Failed to query account by email", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("%w: unable to query account by email: %v", store.ErrStorageFailure, err)
	}

	if account.Referrals, err = s.getReferralIds(ctx, account.Id); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) getReferralIds(ctx context.Context, accountId string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, queryGetReferralIds, accountId)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to query referral ids: %v", store.ErrStorageFailure, err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: unable to scan referral id: %v", store.ErrStorageFailure, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating referral ids: %v", store.ErrStorageFailure, err)
	}
	return ids, nil
}

// CreateAccount inserts the account and its zero earnings row together. The
// referrer, when given, must already exist.
func (s *Service) CreateAccount(ctx context.Context, params store.CreateAccountParams) (*models.Account, error) {
	zap.L().Info("Creating account",
		zap.String("id", params.Id),
		zap.String("name", params.Name),
		zap.String("email", params.Email),
		zap.String("referred_by", params.ReferredBy))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %v", store.ErrStorageFailure, err)
	}
	defer tx.Rollback()

	var referredBy sql.NullString
	if params.ReferredBy != "" {
		if params.ReferredBy == params.Id {
			return nil, fmt.Errorf("%w: account cannot refer itself", store.ErrInvalidInput)
		}
		var existing string
		err := tx.QueryRowContext(ctx, queryAccountExists, params.ReferredBy).Scan(&existing)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: referrer %s", store.ErrAccountNotFound, params.ReferredBy)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: unable to look up referrer: %v", store.ErrStorageFailure, err)
		}
		referredBy = sql.NullString{String: params.ReferredBy, Valid: true}
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, queryInsertAccount, params.Id, params.Name, params.Email, referredBy, now, now)
	if err != nil {
		zap.L().Error("Failed to insert account", zap.String("email", params.Email), zap.Error(err))
		return nil, fmt.Errorf("%w: unable to insert account: %v", store.ErrStorageFailure, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		zap.L().Error("Failed to get rows affected", zap.Error(err))
		return nil, fmt.Errorf("%w: unable to get rows affected: %v", store.ErrStorageFailure, err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("%w: account with email %s already exists", store.ErrInvalidInput, params.Email)
	}

	if _, err := tx.ExecContext(ctx, queryInsertEarningsBalance, params.Id); err != nil {
		return nil, fmt.Errorf("%w: unable to create earnings balance: %v", store.ErrStorageFailure, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: failed to commit account: %v", store.ErrStorageFailure, err)
	}

	zap.L().Info("Account created successfully", zap.String("id", params.Id), zap.String("email", params.Email))

	return s.GetAccount(ctx, params.Id)
}
