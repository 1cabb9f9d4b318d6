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

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"referral-earnings-go/internal/models"
)

const (
	BackendSQLite   = "sqlite"
	BackendFormance = "formance"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	busyTimeout, err := getEnvDuration("DB_BUSY_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	retryBackoff, err := getEnvDuration("ENGINE_RETRY_BACKOFF", 20*time.Millisecond)
	if err != nil {
		return nil, err
	}

	purchaseTimeout, err := getEnvDuration("ENGINE_PURCHASE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	deliveryTimeout, err := getEnvDuration("NOTIFIER_DELIVERY_TIMEOUT", 2*time.Second)
	if err != nil {
		return nil, err
	}

	backend := strings.ToLower(getEnvString("LEDGER_BACKEND", BackendSQLite))
	if backend != BackendSQLite && backend != BackendFormance {
		return nil, fmt.Errorf("invalid LEDGER_BACKEND %q: expected %s or %s", backend, BackendSQLite, BackendFormance)
	}

	maxAttempts := getEnvInt("ENGINE_MAX_COMMIT_ATTEMPTS", 5)
	if maxAttempts < 1 {
		return nil, fmt.Errorf("ENGINE_MAX_COMMIT_ATTEMPTS must be at least 1, got %d", maxAttempts)
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "referrals.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
			BusyTimeout:     busyTimeout,
		},
		Backend: backend,
		Formance: models.FormanceConfig{
			StackURL:     getEnvString("FORMANCE_STACK_URL", ""),
			ClientID:     getEnvString("FORMANCE_CLIENT_ID", ""),
			ClientSecret: getEnvString("FORMANCE_CLIENT_SECRET", ""),
			LedgerName:   getEnvString("FORMANCE_LEDGER", "referral-earnings"),
		},
		Engine: models.EngineConfig{
			MaxCommitAttempts: maxAttempts,
			RetryBackoff:      retryBackoff,
			PurchaseTimeout:   purchaseTimeout,
		},
		Notifier: models.NotifierConfig{
			QueueSize:       getEnvInt("NOTIFIER_QUEUE_SIZE", 1024),
			DeliveryTimeout: deliveryTimeout,
		},
		Redis: models.RedisConfig{
			URL:     getEnvString("REDIS_URL", ""),
			Channel: getEnvString("REDIS_CHANNEL", "earningsUpdate"),
		},
		Kafka: models.KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS"),
			Topic:   getEnvString("KAFKA_TOPIC", "referral.earnings.updated"),
		},
		Http: models.HttpConfig{
			Addr:           getEnvString("HTTP_ADDR", ":3000"),
			AllowedOrigins: getEnvListDefault("HTTP_ALLOWED_ORIGINS", []string{"*"}),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvListDefault(key string, defaultValue []string) []string {
	if list := getEnvList(key); len(list) > 0 {
		return list
	}
	return defaultValue
}
