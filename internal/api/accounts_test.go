package api

import (
	"context"
	"testing"

	"referral-earnings-go/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAccount_Validation(t *testing.T) {
	service, _ := newTestService(newFakeStore(), 5)

	tests := []struct {
		name       string
		userName   string
		email      string
		referredBy string
	}{
		{"ShortName", "a", "a@example.com", ""},
		{"BlankName", "   ", "blank@example.com", ""},
		{"MissingAt", "Alice", "alice.example.com", ""},
		{"MissingTld", "Alice", "alice@example", ""},
		{"MalformedReferrer", "Alice", "alice@example.com", "12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CreateAccount(context.Background(), tt.userName, tt.email, tt.referredBy)
			assert.ErrorIs(t, err, store.ErrInvalidInput)
		})
	}
}

func TestCreateAccount_LinksReferrer(t *testing.T) {
	db := newFakeStore()
	service, _ := newTestService(db, 5)
	ctx := context.Background()

	alice, err := service.CreateAccount(ctx, "Alice", " Alice@Example.com ", "")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", alice.Email)

	bob, err := service.CreateAccount(ctx, "Bob", "bob@example.com", alice.Id)
	require.NoError(t, err)
	assert.Equal(t, alice.Id, bob.ReferredBy)

	details, err := service.GetAccountDetails(ctx, alice.Id)
	require.NoError(t, err)
	assert.Nil(t, details.Referrer)
	require.Len(t, details.Referrals, 1)
	assert.Equal(t, bob.Id, details.Referrals[0].Id)

	details, err = service.GetAccountDetails(ctx, bob.Id)
	require.NoError(t, err)
	require.NotNil(t, details.Referrer)
	assert.Equal(t, alice.Id, details.Referrer.Id)
	assert.Empty(t, details.Referrals)
}

func TestCreateAccount_UnknownReferrer(t *testing.T) {
	service, _ := newTestService(newFakeStore(), 5)

	_, err := service.CreateAccount(context.Background(), "Bob", "bob@example.com", uuid.New().String())
	assert.ErrorIs(t, err, store.ErrAccountNotFound)
}

func TestGetAccountDetails_NotFound(t *testing.T) {
	service, _ := newTestService(newFakeStore(), 5)

	_, err := service.GetAccountDetails(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, store.ErrAccountNotFound)

	_, err = service.GetAccountDetails(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestHealthCheck(t *testing.T) {
	service, _ := newTestService(newFakeStore(), 5)
	assert.NoError(t, service.HealthCheck(context.Background()))
}
