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
	"errors"
	"flag"
	"fmt"

	"referral-earnings-go/internal/api"
	"referral-earnings-go/internal/common"
	"referral-earnings-go/internal/config"
	"referral-earnings-go/internal/store"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	nameFlag := flag.String("name", "", "User's full name (required)")
	emailFlag := flag.String("email", "", "User's email address (required)")
	referredByFlag := flag.String("referred-by", "", "Id of the referring user (optional)")
	flag.Parse()

	if *nameFlag == "" || *emailFlag == "" {
		zap.L().Fatal("Both flags are required: --name and --email")
	}

	if err := api.ValidateAccountInput(*nameFlag, *emailFlag); err != nil {
		zap.L().Fatal("Invalid input", zap.Error(err))
	}

	zap.L().Info("Starting user creation process",
		zap.String("name", *nameFlag),
		zap.String("email", *emailFlag),
		zap.String("referred_by", *referredByFlag))

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	account, err := services.Ledger.CreateAccount(ctx, *nameFlag, *emailFlag, *referredByFlag)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrAccountNotFound):
			zap.L().Fatal("Referrer does not exist", zap.String("referred_by", *referredByFlag))
		case errors.Is(err, store.ErrInvalidInput):
			zap.L().Fatal("User rejected", zap.String("email", *emailFlag), zap.Error(err))
		}
		zap.L().Fatal("Failed to create user", zap.Error(err))
	}

	fmt.Println()
	common.PrintHeader("USER CREATED", common.DefaultWidth)
	fmt.Printf("ID:          %s\n", account.Id)
	fmt.Printf("Name:        %s\n", account.Name)
	fmt.Printf("Email:       %s\n", account.Email)
	if account.HasReferrer() {
		fmt.Printf("Referred by: %s\n", account.ReferredBy)
	}
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()

	zap.L().Info("User created successfully", zap.String("id", account.Id))
}
