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

package main

import (
	"context"
	"flag"
	"fmt"

	"referral-earnings-go/internal/api"
	"referral-earnings-go/internal/common"
	"referral-earnings-go/internal/config"
	"referral-earnings-go/internal/models"

	"go.uber.org/zap"
)

type earningsStats struct {
	totalUsers       int
	usersWithEarning int
	mismatches       int
}

func printAccountHeader(account models.Account) {
	fmt.Printf("\n┌─ User: %s (%s)\n", account.Name, account.Email)
	fmt.Printf("│  ID: %s\n", account.Id)
	if account.HasReferrer() {
		fmt.Printf("│  Referred by: %s\n", account.ReferredBy)
	}
	common.PrintSeparator("─", 78)
}

func printSummary(summary models.EarningsSummary, names map[string]string) {
	fmt.Printf("%sLevel 1: %15s\n", common.BoxPrefix(false), common.FormatAmount(summary.Level1))
	fmt.Printf("%sLevel 2: %15s\n", common.BoxPrefix(false), common.FormatAmount(summary.Level2))
	fmt.Printf("%sTotal:   %15s (%d records)\n", common.BoxPrefix(true), common.FormatAmount(summary.Total), len(summary.Records))
	for i, record := range summary.Records {
		isLast := i == len(summary.Records)-1
		purchaser := names[record.UserId]
		if purchaser == "" {
			purchaser = record.UserId
		}
		fmt.Printf("   %sL%d from %-20s %15s  %s\n",
			common.BoxPrefix(isLast),
			record.Level,
			purchaser,
			common.FormatAmount(record.Amount),
			record.TransactionDate.Format("2006-01-02 15:04:05"))
	}
}

func printReconciliation(report *models.ReconciliationReport) {
	fmt.Printf("   Reconcile: %s (balance %s/%s, ledger %s/%s)\n",
		common.MatchMark(report.Matched),
		report.BalanceLevel1.StringFixed(2),
		report.BalanceLevel2.StringFixed(2),
		report.LedgerLevel1.StringFixed(2),
		report.LedgerLevel2.StringFixed(2))
}

func generateReport(ctx context.Context, ledger *api.LedgerService, accounts []models.Account, reconcile bool, logger *zap.Logger) earningsStats {
	stats := earningsStats{}
	names := common.AccountNames(accounts)

	for _, account := range accounts {
		stats.totalUsers++

		summary, err := ledger.GetEarningsReport(ctx, account.Id)
		if err != nil {
			logger.Error("Failed to load earnings",
				zap.String("user_id", account.Id),
				zap.String("user_name", account.Name),
				zap.Error(err))
			continue
		}

		if len(summary.Records) == 0 && !reconcile {
			continue
		}
		if len(summary.Records) > 0 {
			stats.usersWithEarning++
		}

		printAccountHeader(account)
		printSummary(summary, names)

		if !reconcile {
			continue
		}
		report, err := ledger.ReconcileAccount(ctx, account.Id)
		if err != nil {
			logger.Error("Failed to reconcile", zap.String("user_id", account.Id), zap.Error(err))
			continue
		}
		printReconciliation(report)
		if !report.Matched {
			stats.mismatches++
		}
	}

	return stats
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	reconcileFlag := flag.Bool("reconcile", false, "Compare cached balances with ledger sums")
	flag.Parse()

	logger.Info("Starting earnings report")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	accounts, err := common.InitializeAccounts(ctx, services.Store, *emailFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize accounts", zap.Error(err))
	}

	common.PrintHeader("REFERRAL EARNINGS REPORT", common.WideWidth)

	stats := generateReport(ctx, services.Ledger, accounts, *reconcileFlag, logger)

	summary := fmt.Sprintf("SUMMARY: %d users with earnings (%d users queried)",
		stats.usersWithEarning, stats.totalUsers)
	if *reconcileFlag {
		summary += fmt.Sprintf(", %d reconciliation mismatches", stats.mismatches)
	}
	common.PrintFooter(summary, common.WideWidth)

	logger.Info("Earnings report completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("users_with_earnings", stats.usersWithEarning),
		zap.Int("mismatches", stats.mismatches))
}
