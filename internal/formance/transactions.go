package formance

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"referral-earnings-go/internal/models"
	"referral-earnings-go/internal/store"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const commissionEventType = "referral_commission"

// commissionScript renders one Numscript transaction that pays every level
// from the platform account. All metadata is set inside the script via
// set_tx_meta() so the transaction is self-describing.
func commissionScript(levels []int) string {
	var b strings.Builder

	b.WriteString("vars {\n")
	b.WriteString("  asset $asset\n")
	b.WriteString("  string $purchase_id\n")
	b.WriteString("  string $purchaser_id\n")
	b.WriteString("  string $purchase_amount\n")
	for _, level := range levels {
		fmt.Fprintf(&b, "  account $level%d_user\n", level)
		fmt.Fprintf(&b, "  number $level%d_amount\n", level)
	}
	b.WriteString("}\n")

	for _, level := range levels {
		fmt.Fprintf(&b, "\nsend [$asset $level%d_amount] (\n", level)
		fmt.Fprintf(&b, "  source = @%s allowing unbounded overdraft\n", platformAccount)
		fmt.Fprintf(&b, "  destination = @users:$level%d_user:level%d\n", level, level)
		b.WriteString(")\n")
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "set_tx_meta(\"event_type\", %q)\n", commissionEventType)
	b.WriteString("set_tx_meta(\"purchase_id\", $purchase_id)\n")
	b.WriteString("set_tx_meta(\"purchaser_id\", $purchaser_id)\n")
	b.WriteString("set_tx_meta(\"purchase_amount\", $purchase_amount)\n")
	return b.String()
}

// ApplyCommissions posts all of a purchase's commissions as one Formance
// transaction referenced by the purchase id, so they land together or not at
// all and a replay is rejected as a duplicate.
func (s *Service) ApplyCommissions(ctx context.Context, params store.ApplyCommissionsParams) ([]models.EarningsRecord, error) {
	var commissions []models.Commission
	for _, c := range params.Commissions {
		if c.Amount.IsPositive() {
			commissions = append(commissions, c)
		}
	}
	if len(commissions) == 0 {
		return nil, nil
	}
	sort.Slice(commissions, func(i, j int) bool { return commissions[i].Level < commissions[j].Level })

	vars := map[string]string{
		"asset":           formanceAsset(earningsCurrency),
		"purchase_id":     params.PurchaseId,
		"purchaser_id":    params.PurchaserId,
		"purchase_amount": params.PurchaseAmount.String(),
	}
	levels := make([]int, 0, len(commissions))
	for i, c := range commissions {
		if c.Level < 1 || c.Level > 2 {
			return nil, fmt.Errorf("%w: unsupported commission level %d", store.ErrInvalidInput, c.Level)
		}
		if i > 0 && commissions[i-1].Level == c.Level {
			return nil, fmt.Errorf("%w: level %d credited twice", store.ErrInvalidInput, c.Level)
		}
		minor, err := toMinorUnits(c.Amount, earningsCurrency)
		if err != nil {
			return nil, err
		}
		vars[fmt.Sprintf("level%d_user", c.Level)] = c.Beneficiary.Id
		vars[fmt.Sprintf("level%d_amount", c.Level)] = minor
		levels = append(levels, c.Level)
	}

	now := time.Now().UTC()
	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger: s.ledger,
		V2PostTransaction: shared.V2PostTransaction{
			Reference: strPtr(params.PurchaseId),
			Timestamp: &now,
			Script: &shared.V2PostTransactionScript{
				Plain: commissionScript(levels),
				Vars:  vars,
			},
		},
	})
	if err != nil {
		if isConflictError(err) {
			return nil, fmt.Errorf("%w: purchase %s already recorded", store.ErrDuplicateTransaction, params.PurchaseId)
		}
		return nil, storageError("create commission transaction", err)
	}

	records := make([]models.EarningsRecord, 0, len(commissions))
	for _, c := range commissions {
		records = append(records, models.EarningsRecord{
			Id:              recordId(params.PurchaseId, c.Level),
			PurchaseId:      params.PurchaseId,
			UserId:          params.PurchaserId,
			ReferralUserId:  c.Beneficiary.Id,
			Level:           c.Level,
			Amount:          c.Amount,
			PurchaseAmount:  params.PurchaseAmount,
			TransactionDate: now,
		})
	}

	zap.L().Info("Commissions recorded in Formance",
		zap.String("purchase_id", params.PurchaseId),
		zap.String("purchaser_id", params.PurchaserId),
		zap.Int("postings", len(records)))
	return records, nil
}

func (s *Service) GetEarningsByPurchaser(ctx context.Context, purchaserId string) ([]models.EarningsRecord, error) {
	txs, err := s.listTransactions(ctx, map[string]any{
		"$match": map[string]any{"metadata[purchaser_id]": purchaserId},
	})
	if err != nil {
		return nil, err
	}

	var records []models.EarningsRecord
	for _, tx := range txs {
		records = append(records, transactionToRecords(tx, "")...)
	}
	sortRecords(records)
	return records, nil
}

func (s *Service) GetEarningsByBeneficiary(ctx context.Context, beneficiaryId string) ([]models.EarningsRecord, error) {
	txs, err := s.listTransactions(ctx, map[string]any{
		"$or": []any{
			map[string]any{"$match": map[string]any{"destination": earningsAddress(beneficiaryId, 1)}},
			map[string]any{"$match": map[string]any{"destination": earningsAddress(beneficiaryId, 2)}},
		},
	})
	if err != nil {
		return nil, err
	}

	var records []models.EarningsRecord
	for _, tx := range txs {
		records = append(records, transactionToRecords(tx, beneficiaryId)...)
	}
	sortRecords(records)
	return records, nil
}

// listTransactions pages through every commission transaction matching the filter.
func (s *Service) listTransactions(ctx context.Context, filter map[string]any) ([]shared.V2Transaction, error) {
	var txs []shared.V2Transaction
	var cursor *string
	for {
		resp, err := s.client.Ledger.V2.ListTransactions(ctx, operations.V2ListTransactionsRequest{
			Ledger:      s.ledger,
			PageSize:    ptrInt64(listPageSize),
			Cursor:      cursor,
			RequestBody: filter,
		})
		if err != nil {
			return nil, storageError("list transactions", err)
		}

		page := resp.V2TransactionsCursorResponse.Cursor
		for _, tx := range page.Data {
			if tx.Metadata["event_type"] == commissionEventType {
				txs = append(txs, tx)
			}
		}

		if !page.HasMore || page.Next == nil {
			break
		}
		cursor = page.Next
	}
	return txs, nil
}

// ---------- helpers ----------

// transactionToRecords turns each commission posting into a ledger record.
// A non-empty beneficiaryId keeps only that account's postings.
func transactionToRecords(tx shared.V2Transaction, beneficiaryId string) []models.EarningsRecord {
	purchaseId := tx.Metadata["purchase_id"]
	if purchaseId == "" && tx.Reference != nil {
		purchaseId = *tx.Reference
	}
	purchaseAmount, err := decimal.NewFromString(tx.Metadata["purchase_amount"])
	if err != nil {
		purchaseAmount = decimal.Zero
	}

	var records []models.EarningsRecord
	for _, p := range tx.Postings {
		if p.Source != platformAccount {
			continue
		}
		userId, level, ok := parseEarningsAddress(p.Destination)
		if !ok || (beneficiaryId != "" && userId != beneficiaryId) {
			continue
		}
		records = append(records, models.EarningsRecord{
			Id:              recordId(purchaseId, level),
			PurchaseId:      purchaseId,
			UserId:          tx.Metadata["purchaser_id"],
			ReferralUserId:  userId,
			Level:           level,
			Amount:          bigIntToDecimal(p.Amount, assetSymbol(p.Asset)),
			PurchaseAmount:  purchaseAmount,
			TransactionDate: tx.Timestamp,
		})
	}
	return records
}

// earningsAddress is the sub-account holding one level of a user's earnings.
func earningsAddress(userId string, level int) string {
	return fmt.Sprintf("%s%s:level%d", userPrefix, userId, level)
}

// parseEarningsAddress is the inverse of earningsAddress.
func parseEarningsAddress(address string) (string, int, bool) {
	rest, ok := strings.CutPrefix(address, userPrefix)
	if !ok {
		return "", 0, false
	}
	userId, suffix, ok := strings.Cut(rest, ":")
	if !ok || userId == "" {
		return "", 0, false
	}
	levelText, ok := strings.CutPrefix(suffix, "level")
	if !ok {
		return "", 0, false
	}
	level, err := strconv.Atoi(levelText)
	if err != nil || level < 1 || level > 2 {
		return "", 0, false
	}
	return userId, level, true
}

func recordId(purchaseId string, level int) string {
	return fmt.Sprintf("%s:%d", purchaseId, level)
}

func sortRecords(records []models.EarningsRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].TransactionDate.Equal(records[j].TransactionDate) {
			return records[i].TransactionDate.Before(records[j].TransactionDate)
		}
		return records[i].Level < records[j].Level
	})
}
