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

	"referral-earnings-go/internal/models"
	"referral-earnings-go/internal/store"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

type Service struct {
	db        *sql.DB
	subledger *SubledgerService
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	subledger := NewSubledgerService(db)
	service := &Service{db: db, subledger: subledger}
	if err := service.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	// Initialize subledger schema
	if err := subledger.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to initialize subledger schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

// dsn builds the connection string. Writers take the lock at BEGIN and wait
// on a busy database instead of failing.
func dsn(cfg models.DatabaseConfig) string {
	busyMs := cfg.BusyTimeout.Milliseconds()
	if busyMs <= 0 {
		busyMs = 5000
	}
	return fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_busy_timeout=%d&_txlock=immediate&_foreign_keys=on",
		cfg.Path, busyMs)
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema() error {
	schema := `
	-- Create accounts table
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		referred_by TEXT REFERENCES accounts(id),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		CHECK (referred_by IS NULL OR referred_by != id)
	);

	-- Create index on email for faster lookups
	CREATE INDEX IF NOT EXISTS idx_accounts_email ON accounts(email);
	-- Create index for downline lookups
	CREATE INDEX IF NOT EXISTS idx_accounts_referred_by ON accounts(referred_by);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Subledger convenience methods

func (s *Service) ApplyCommissions(ctx context.Context, params store.ApplyCommissionsParams) ([]models.EarningsRecord, error) {
	return s.subledger.ApplyCommissions(ctx, params)
}

func (s *Service) GetEarningsByPurchaser(ctx context.Context, purchaserId string) ([]models.EarningsRecord, error) {
	return s.subledger.GetEarningsByPurchaser(ctx, purchaserId)
}

func (s *Service) GetEarningsByBeneficiary(ctx context.Context, beneficiaryId string) ([]models.EarningsRecord, error) {
	return s.subledger.GetEarningsByBeneficiary(ctx, beneficiaryId)
}

func (s *Service) GetEarningsBalance(ctx context.Context, accountId string) (*models.EarningsBalance, error) {
	return s.subledger.GetEarningsBalance(ctx, accountId)
}

func (s *Service) ReconcileAccountEarnings(ctx context.Context, accountId string) (*models.ReconciliationReport, error) {
	return s.subledger.ReconcileEarnings(ctx, accountId)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
