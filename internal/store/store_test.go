package store

import (
	"errors"
	"fmt"
	"testing"

	"referral-earnings-go/internal/models"

	"github.com/shopspring/decimal"
)

func TestSentinelErrorsWrap(t *testing.T) {
	for _, sentinel := range []error{
		ErrInvalidInput,
		ErrAccountNotFound,
		ErrConcurrentModification,
		ErrStorageFailure,
		ErrDuplicateTransaction,
	} {
		wrapped := fmt.Errorf("outer: %w", sentinel)
		if !errors.Is(wrapped, sentinel) {
			t.Errorf("expected wrapped error to match %v", sentinel)
		}
	}
}

func TestSummarizeEarnings(t *testing.T) {
	records := []models.EarningsRecord{
		{Level: 1, Amount: decimal.RequireFromString("100")},
		{Level: 2, Amount: decimal.RequireFromString("20")},
		{Level: 1, Amount: decimal.RequireFromString("250")},
	}

	summary := SummarizeEarnings(records)

	if !summary.Level1.Equal(decimal.RequireFromString("350")) {
		t.Errorf("Expected level1 350, got %s", summary.Level1)
	}
	if !summary.Level2.Equal(decimal.RequireFromString("20")) {
		t.Errorf("Expected level2 20, got %s", summary.Level2)
	}
	if !summary.Total.Equal(decimal.RequireFromString("370")) {
		t.Errorf("Expected total 370, got %s", summary.Total)
	}
	if len(summary.Records) != 3 {
		t.Errorf("Expected 3 records, got %d", len(summary.Records))
	}
}

func TestSummarizeEarnings_Empty(t *testing.T) {
	summary := SummarizeEarnings(nil)
	if !summary.Total.IsZero() {
		t.Errorf("Expected zero total, got %s", summary.Total)
	}
	if summary.Records == nil {
		t.Error("Expected non-nil empty records slice")
	}
}
