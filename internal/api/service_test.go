package api

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"referral-earnings-go/internal/models"
	"referral-earnings-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory LedgerStore with injectable commit failures.
type fakeStore struct {
	mu         sync.Mutex
	accounts   map[string]*models.Account
	records    []models.EarningsRecord
	conflicts  int
	applyErr   error
	applyCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{accounts: make(map[string]*models.Account)}
}

func (f *fakeStore) add(name, referredBy string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New().String()
	f.accounts[id] = &models.Account{
		Id:             id,
		Name:           name,
		Email:          name + "@example.com",
		ReferredBy:     referredBy,
		Level1Earnings: decimal.Zero,
		Level2Earnings: decimal.Zero,
	}
	if parent, ok := f.accounts[referredBy]; ok {
		parent.Referrals = append(parent.Referrals, id)
	}
	return id
}

func (f *fakeStore) account(id string) models.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.accounts[id]
}

func (f *fakeStore) GetAccount(_ context.Context, id string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrAccountNotFound, id)
	}
	copied := *a
	return &copied, nil
}

func (f *fakeStore) GetAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.Email == email {
			copied := *a
			return &copied, nil
		}
	}
	return nil, store.ErrAccountNotFound
}

func (f *fakeStore) ListAccounts(_ context.Context) ([]models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Account, 0, len(f.accounts))
	for _, a := range f.accounts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out, nil
}

func (f *fakeStore) GetReferrals(_ context.Context, id string) ([]models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Account
	for _, a := range f.accounts {
		if a.ReferredBy == id {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateAccount(_ context.Context, params store.CreateAccountParams) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.Email == params.Email {
			return nil, fmt.Errorf("%w: email already registered", store.ErrInvalidInput)
		}
	}
	if params.ReferredBy != "" {
		parent, ok := f.accounts[params.ReferredBy]
		if !ok {
			return nil, fmt.Errorf("%w: referrer %s", store.ErrAccountNotFound, params.ReferredBy)
		}
		parent.Referrals = append(parent.Referrals, params.Id)
	}
	a := &models.Account{
		Id:             params.Id,
		Name:           params.Name,
		Email:          params.Email,
		ReferredBy:     params.ReferredBy,
		Level1Earnings: decimal.Zero,
		Level2Earnings: decimal.Zero,
	}
	f.accounts[a.Id] = a
	copied := *a
	return &copied, nil
}

func (f *fakeStore) ApplyCommissions(_ context.Context, params store.ApplyCommissionsParams) ([]models.EarningsRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyCalls++
	if f.conflicts > 0 {
		f.conflicts--
		return nil, fmt.Errorf("%w: version moved", store.ErrConcurrentModification)
	}
	if f.applyErr != nil {
		return nil, f.applyErr
	}

	now := time.Now().UTC()
	var records []models.EarningsRecord
	for _, c := range params.Commissions {
		a := f.accounts[c.Beneficiary.Id]
		if c.Level == 1 {
			a.Level1Earnings = a.Level1Earnings.Add(c.Amount)
		} else {
			a.Level2Earnings = a.Level2Earnings.Add(c.Amount)
		}
		records = append(records, models.EarningsRecord{
			Id:              uuid.New().String(),
			PurchaseId:      params.PurchaseId,
			UserId:          params.PurchaserId,
			ReferralUserId:  c.Beneficiary.Id,
			Level:           c.Level,
			Amount:          c.Amount,
			PurchaseAmount:  params.PurchaseAmount,
			TransactionDate: now,
		})
	}
	f.records = append(f.records, records...)
	return records, nil
}

func (f *fakeStore) filter(match func(models.EarningsRecord) bool) []models.EarningsRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EarningsRecord
	for _, r := range f.records {
		if match(r) {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeStore) GetEarningsByPurchaser(_ context.Context, id string) ([]models.EarningsRecord, error) {
	return f.filter(func(r models.EarningsRecord) bool { return r.UserId == id }), nil
}

func (f *fakeStore) GetEarningsByBeneficiary(_ context.Context, id string) ([]models.EarningsRecord, error) {
	return f.filter(func(r models.EarningsRecord) bool { return r.ReferralUserId == id }), nil
}

func (f *fakeStore) ReconcileAccountEarnings(ctx context.Context, id string) (*models.ReconciliationReport, error) {
	records, _ := f.GetEarningsByBeneficiary(ctx, id)
	summary := store.SummarizeEarnings(records)
	a := f.account(id)
	return &models.ReconciliationReport{
		AccountId:     id,
		BalanceLevel1: a.Level1Earnings,
		BalanceLevel2: a.Level2Earnings,
		LedgerLevel1:  summary.Level1,
		LedgerLevel2:  summary.Level2,
		Matched:       a.Level1Earnings.Equal(summary.Level1) && a.Level2Earnings.Equal(summary.Level2),
	}, nil
}

func (f *fakeStore) Close() {}

var _ store.LedgerStore = (*fakeStore)(nil)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.EarningsEvent
}

func (p *recordingPublisher) Publish(event models.EarningsEvent) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return true
}

func (p *recordingPublisher) published() []models.EarningsEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.EarningsEvent(nil), p.events...)
}

func newTestService(db store.LedgerStore, maxAttempts int) (*LedgerService, *recordingPublisher) {
	publisher := &recordingPublisher{}
	service := NewLedgerService(db, publisher, models.EngineConfig{
		MaxCommitAttempts: maxAttempts,
		PurchaseTimeout:   time.Second,
	})
	return service, publisher
}

var errDiskFull = errors.New("database or disk is full")
