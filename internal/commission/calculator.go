package commission

import (
	"referral-earnings-go/internal/models"

	"github.com/shopspring/decimal"
)

// MaxDepth is how many upline levels earn from a purchase.
const MaxDepth = 2

// MinimumPurchase is the exclusive lower bound for a commissionable purchase.
var MinimumPurchase = decimal.NewFromInt(1000)

var rates = [MaxDepth]decimal.Decimal{
	decimal.RequireFromString("0.05"),
	decimal.RequireFromString("0.01"),
}

// Rate returns the commission rate for a 1-based level, zero outside the table.
func Rate(level int) decimal.Decimal {
	if level < 1 || level > len(rates) {
		return decimal.Zero
	}
	return rates[level-1]
}

// Compute maps upline[i] to level i+1 and returns one commission per entry
// with a positive amount. Entries beyond the rate table are ignored.
func Compute(purchaseAmount decimal.Decimal, upline []models.Account) []models.Commission {
	commissions := make([]models.Commission, 0, len(upline))
	for i, beneficiary := range upline {
		level := i + 1
		if level > len(rates) {
			break
		}
		amount := purchaseAmount.Mul(Rate(level))
		if !amount.IsPositive() {
			continue
		}
		commissions = append(commissions, models.Commission{
			Beneficiary: beneficiary,
			Level:       level,
			Amount:      amount,
		})
	}
	return commissions
}
