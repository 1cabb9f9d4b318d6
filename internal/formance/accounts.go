package formance

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"referral-earnings-go/internal/models"
	"referral-earnings-go/internal/store"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ---------- Account CRUD ----------

// CreateAccount stores the account as metadata on users:{id}. The referrer
// and duplicate-email checks are separate reads, so two concurrent
// registrations with the same email can both succeed here.
func (s *Service) CreateAccount(ctx context.Context, params store.CreateAccountParams) (*models.Account, error) {
	if params.Id == "" || params.Name == "" || params.Email == "" {
		return nil, fmt.Errorf("%w: id, name and email are required", store.ErrInvalidInput)
	}
	if params.ReferredBy == params.Id {
		return nil, fmt.Errorf("%w: account cannot refer itself", store.ErrInvalidInput)
	}

	// Check if an account with this email already exists -- reject to prevent duplicates.
	if existing, err := s.GetAccountByEmail(ctx, params.Email); err == nil && existing != nil {
		zap.L().Info("Account with this email already exists in Formance",
			zap.String("existing_id", existing.Id),
			zap.String("email", params.Email))
		return nil, fmt.Errorf("%w: account with email %s already exists", store.ErrInvalidInput, params.Email)
	}

	if params.ReferredBy != "" {
		if _, err := s.GetAccount(ctx, params.ReferredBy); err != nil {
			return nil, fmt.Errorf("referrer %s: %w", params.ReferredBy, err)
		}
	}

	addr := userPrefix + params.Id
	zap.L().Info("Creating account in Formance", zap.String("address", addr), zap.String("email", params.Email))

	now := time.Now().UTC()
	_, err := s.client.Ledger.V2.AddMetadataToAccount(ctx, operations.V2AddMetadataToAccountRequest{
		Ledger:  s.ledger,
		Address: addr,
		RequestBody: map[string]string{
			"entity_type": userEntityType,
			"name":        params.Name,
			"email":       params.Email,
			"referred_by": params.ReferredBy,
			"created_at":  now.Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return nil, storageError("create account", err)
	}

	return s.GetAccount(ctx, params.Id)
}

func (s *Service) GetAccount(ctx context.Context, accountId string) (*models.Account, error) {
	resp, err := s.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  s.ledger,
		Address: userPrefix + accountId,
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", store.ErrAccountNotFound, accountId)
		}
		return nil, storageError("get account", err)
	}

	acct := resp.V2AccountResponse.Data
	if acct.Metadata["entity_type"] != userEntityType {
		return nil, fmt.Errorf("%w: %s", store.ErrAccountNotFound, accountId)
	}

	account := accountFromMetadata(&acct)
	if err := s.loadEarnings(ctx, account); err != nil {
		return nil, err
	}

	referrals, err := s.listUserAccounts(ctx, map[string]any{"metadata[referred_by]": accountId})
	if err != nil {
		return nil, err
	}
	account.Referrals = make([]string, 0, len(referrals))
	for _, r := range referrals {
		account.Referrals = append(account.Referrals, r.Id)
	}
	return account, nil
}

func (s *Service) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	accounts, err := s.listUserAccounts(ctx, map[string]any{"metadata[email]": email})
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("%w: %s", store.ErrAccountNotFound, email)
	}
	return s.GetAccount(ctx, accounts[0].Id)
}

func (s *Service) ListAccounts(ctx context.Context) ([]models.Account, error) {
	return s.listWithEarnings(ctx, map[string]any{"metadata[entity_type]": userEntityType})
}

func (s *Service) GetReferrals(ctx context.Context, accountId string) ([]models.Account, error) {
	return s.listWithEarnings(ctx, map[string]any{"metadata[referred_by]": accountId})
}

// ---------- helpers ----------

func (s *Service) listWithEarnings(ctx context.Context, match map[string]any) ([]models.Account, error) {
	accounts, err := s.listUserAccounts(ctx, match)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		if err := s.loadEarnings(ctx, &accounts[i]); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}

// listUserAccounts pages through accounts matching the metadata filter and
// keeps only top-level users:{id} addresses.
func (s *Service) listUserAccounts(ctx context.Context, match map[string]any) ([]models.Account, error) {
	var accounts []models.Account
	var cursor *string
	for {
		resp, err := s.client.Ledger.V2.ListAccounts(ctx, operations.V2ListAccountsRequest{
			Ledger:      s.ledger,
			PageSize:    ptrInt64(listPageSize),
			Cursor:      cursor,
			RequestBody: map[string]any{"$match": match},
		})
		if err != nil {
			return nil, storageError("list accounts", err)
		}

		page := resp.V2AccountsCursorResponse.Cursor
		for i := range page.Data {
			acct := &page.Data[i]
			if _, ok := userIdFromAddress(acct.Address); !ok {
				continue
			}
			if acct.Metadata["entity_type"] != userEntityType {
				continue
			}
			accounts = append(accounts, *accountFromMetadata(acct))
		}

		if !page.HasMore || page.Next == nil {
			break
		}
		cursor = page.Next
	}

	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}

// loadEarnings fills the level sums from the two earnings sub-accounts.
func (s *Service) loadEarnings(ctx context.Context, account *models.Account) error {
	level1, err := s.accountBalance(ctx, earningsAddress(account.Id, 1))
	if err != nil {
		return err
	}
	level2, err := s.accountBalance(ctx, earningsAddress(account.Id, 2))
	if err != nil {
		return err
	}
	account.Level1Earnings = level1
	account.Level2Earnings = level2
	return nil
}

// userIdFromAddress returns the id of a top-level users:{id} address.
func userIdFromAddress(address string) (string, bool) {
	if !strings.HasPrefix(address, userPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(address, userPrefix)
	if id == "" || strings.Contains(id, ":") {
		return "", false
	}
	return id, true
}

func accountFromMetadata(acct *shared.V2Account) *models.Account {
	meta := acct.Metadata
	userId, _ := userIdFromAddress(acct.Address)

	created := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339Nano, meta["created_at"]); err == nil {
		created = t
	} else if acct.FirstUsage != nil {
		created = *acct.FirstUsage
	}
	updated := created
	if acct.UpdatedAt != nil {
		updated = *acct.UpdatedAt
	}

	return &models.Account{
		Id:             userId,
		Name:           meta["name"],
		Email:          meta["email"],
		ReferredBy:     meta["referred_by"],
		Referrals:      []string{},
		Level1Earnings: decimal.Zero,
		Level2Earnings: decimal.Zero,
		CreatedAt:      created,
		UpdatedAt:      updated,
	}
}
