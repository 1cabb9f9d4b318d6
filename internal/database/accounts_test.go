package database

import (
	"context"
	"errors"
	"testing"

	"referral-earnings-go/internal/store"

	"github.com/google/uuid"
)

func TestCreateAccount_LinksReferrer(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	a := createTestAccount(t, service, "alice", "")
	b := createTestAccount(t, service, "bob", a.Id)
	c := createTestAccount(t, service, "carol", a.Id)

	if b.ReferredBy != a.Id {
		t.Errorf("Expected bob referred by %s, got %q", a.Id, b.ReferredBy)
	}

	alice, err := service.GetAccount(ctx, a.Id)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if len(alice.Referrals) != 2 {
		t.Fatalf("Expected 2 referrals, got %d", len(alice.Referrals))
	}
	found := map[string]bool{}
	for _, id := range alice.Referrals {
		found[id] = true
	}
	if !found[b.Id] || !found[c.Id] {
		t.Errorf("Expected referrals to contain %s and %s, got %v", b.Id, c.Id, alice.Referrals)
	}

	referrals, err := service.GetReferrals(ctx, a.Id)
	if err != nil {
		t.Fatalf("GetReferrals failed: %v", err)
	}
	if len(referrals) != 2 {
		t.Errorf("Expected 2 referral accounts, got %d", len(referrals))
	}
}

func TestCreateAccount_DuplicateEmail(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	params := store.CreateAccountParams{Id: uuid.New().String(), Name: "Alice", Email: "alice@example.com"}
	if _, err := service.CreateAccount(ctx, params); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	params.Id = uuid.New().String()
	_, err := service.CreateAccount(ctx, params)
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("Expected invalid input for duplicate email, got: %v", err)
	}
}

func TestCreateAccount_UnknownReferrer(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	_, err := service.CreateAccount(context.Background(), store.CreateAccountParams{
		Id:         uuid.New().String(),
		Name:       "Bob",
		Email:      "bob@example.com",
		ReferredBy: uuid.New().String(),
	})
	if !errors.Is(err, store.ErrAccountNotFound) {
		t.Fatalf("Expected account not found for unknown referrer, got: %v", err)
	}
}

func TestGetAccount_NotFound(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	_, err := service.GetAccount(context.Background(), uuid.New().String())
	if !errors.Is(err, store.ErrAccountNotFound) {
		t.Fatalf("Expected account not found, got: %v", err)
	}
}

func TestGetAccountByEmail(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	a := createTestAccount(t, service, "alice", "")

	found, err := service.GetAccountByEmail(ctx, a.Email)
	if err != nil {
		t.Fatalf("GetAccountByEmail failed: %v", err)
	}
	if found.Id != a.Id {
		t.Errorf("Expected id %s, got %s", a.Id, found.Id)
	}

	accounts, err := service.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("ListAccounts failed: %v", err)
	}
	if len(accounts) != 1 {
		t.Errorf("Expected 1 account, got %d", len(accounts))
	}
}
