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

	"referral-earnings-go/internal/common"
	"referral-earnings-go/internal/config"
	"referral-earnings-go/internal/models"

	"go.uber.org/zap"
)

func printRecords(records []models.EarningsRecord, names map[string]string) {
	for i, record := range records {
		isLast := i == len(records)-1
		name := names[record.ReferralUserId]
		if name == "" {
			name = record.ReferralUserId
		}
		fmt.Printf("%sLevel %d: %-20s %15s\n", common.BoxPrefix(isLast), record.Level, name, common.FormatAmount(record.Amount))
		fmt.Printf("%s  record: %s\n", common.BoxDetailPrefix(isLast), record.Id)
	}
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userIdFlag := flag.String("user-id", "", "Purchaser's user id (required)")
	amountFlag := flag.Float64("amount", 0, "Purchase amount, must exceed 1000 (required)")
	flag.Parse()

	if *userIdFlag == "" {
		zap.L().Fatal("Flag --user-id is required")
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	result, err := services.Ledger.ProcessPurchase(ctx, *userIdFlag, *amountFlag)
	if err != nil {
		zap.L().Fatal("Purchase failed",
			zap.String("user_id", *userIdFlag),
			zap.Float64("amount", *amountFlag),
			zap.Error(err))
	}

	accounts, err := services.Store.ListAccounts(ctx)
	if err != nil {
		zap.L().Warn("Unable to load account names", zap.Error(err))
	}

	fmt.Println()
	common.PrintHeader("PURCHASE PROCESSED", common.DefaultWidth)
	fmt.Printf("Purchase:  %s\n", result.PurchaseId)
	fmt.Printf("Purchaser: %s\n", result.PurchaserId)
	fmt.Printf("Amount:    %s\n", common.FormatAmount(result.PurchaseAmount))
	fmt.Printf("State:     %s\n", result.State)
	common.PrintSeparator("-", common.DefaultWidth)
	if len(result.Records) == 0 {
		fmt.Println("No upline; no commissions were credited")
	} else {
		printRecords(result.Records, common.AccountNames(accounts))
	}
	common.PrintFooter(fmt.Sprintf("Distributed %s (level 1: %s, level 2: %s)",
		common.FormatAmount(result.TotalEarnings),
		common.FormatAmount(result.Level1Earnings),
		common.FormatAmount(result.Level2Earnings)), common.DefaultWidth)
}
