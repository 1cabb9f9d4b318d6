package server

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"referral-earnings-go/internal/models"

	"github.com/shopspring/decimal"
)

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type CreateUserRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	ReferredBy string `json:"referredBy,omitempty"`
}

// PurchaseRequest accepts the amount as a JSON number or a numeric string.
type PurchaseRequest struct {
	UserId         string          `json:"userId"`
	PurchaseAmount json.RawMessage `json:"purchaseAmount"`
}

// Amount returns the purchase amount, NaN when it is not numeric and 0 when
// it is missing, so validation rejects both.
func (r PurchaseRequest) Amount() float64 {
	raw := strings.TrimSpace(string(r.PurchaseAmount))
	if raw == "" || raw == "null" {
		return 0
	}

	var number float64
	if err := json.Unmarshal(r.PurchaseAmount, &number); err == nil {
		return number
	}

	var text string
	if err := json.Unmarshal(r.PurchaseAmount, &text); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
			return parsed
		}
	}
	return math.NaN()
}

type EarningsReportResponse struct {
	UserId         string                  `json:"userId"`
	Message        string                  `json:"message,omitempty"`
	Level1Earnings decimal.Decimal         `json:"level1Earnings"`
	Level2Earnings decimal.Decimal         `json:"level2Earnings"`
	TotalEarnings  decimal.Decimal         `json:"totalEarnings"`
	Details        []models.EarningsRecord `json:"details"`
}

type ReferralBreakdownResponse struct {
	UserId           string                   `json:"userId"`
	ReferralEarnings []models.ReferralEarning `json:"referralEarnings"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
