package api

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"referral-earnings-go/internal/database"
	"referral-earnings-go/internal/models"
	"referral-earnings-go/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEarningsQueries_AggregateFromLedger(t *testing.T) {
	db := newFakeStore()
	_, b, c, d := chainABCD(db)
	service, _ := newTestService(db, 5)
	ctx := context.Background()

	_, err := service.ProcessPurchase(ctx, d, 2000)
	require.NoError(t, err)
	_, err = service.ProcessPurchase(ctx, c, 3000)
	require.NoError(t, err)

	// dave's purchase paid carol 100 and bob 20; carol's paid bob 150
	byPurchaser, err := service.GetEarningsByPurchaser(ctx, d)
	require.NoError(t, err)
	assertDecimal(t, "100", byPurchaser.Level1, "dave level 1")
	assertDecimal(t, "20", byPurchaser.Level2, "dave level 2")
	assertDecimal(t, "120", byPurchaser.Total, "dave total")
	assert.Len(t, byPurchaser.Records, 2)

	report, err := service.GetEarningsReport(ctx, b)
	require.NoError(t, err)
	assertDecimal(t, "150", report.Level1, "bob level 1")
	assertDecimal(t, "20", report.Level2, "bob level 2")
	assertDecimal(t, "170", report.Total, "bob total")

	breakdown, err := service.GetReferralEarningsBreakdown(ctx, d)
	require.NoError(t, err)
	require.Len(t, breakdown, 2)
	names := map[int]string{}
	for _, line := range breakdown {
		names[line.Level] = line.ReferralUserName
	}
	assert.Equal(t, "carol", names[1])
	assert.Equal(t, "bob", names[2])

	reconciled, err := service.ReconcileAccount(ctx, b)
	require.NoError(t, err)
	assert.True(t, reconciled.Matched)
}

func TestEarningsQueries_EmptyAndInvalid(t *testing.T) {
	db := newFakeStore()
	a := db.add("alice", "")
	service, _ := newTestService(db, 5)
	ctx := context.Background()

	report, err := service.GetEarningsReport(ctx, a)
	require.NoError(t, err)
	assert.NotNil(t, report.Records)
	assert.Empty(t, report.Records)
	assertDecimal(t, "0", report.Total, "total")

	_, err = service.GetEarningsByBeneficiary(ctx, "not-an-id")
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = service.ReconcileAccount(ctx, uuid.New().String())
	assert.ErrorIs(t, err, store.ErrAccountNotFound)
}

func setupSQLiteService(t *testing.T) (*LedgerService, *database.Service) {
	t.Helper()
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:            filepath.Join(t.TempDir(), "api_test.db"),
		MaxOpenConns:    8,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
		PingTimeout:     time.Second,
		BusyTimeout:     10 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	service := NewLedgerService(db, nil, models.EngineConfig{
		MaxCommitAttempts: 20,
		RetryBackoff:      time.Millisecond,
		PurchaseTimeout:   5 * time.Second,
	})
	return service, db
}

func TestProcessPurchase_ConcurrentPurchasesOnSQLite(t *testing.T) {
	// GIVEN: A <- B <- C and many purchases by C running at once
	// WHEN: they all commit
	// THEN: B holds exactly N*5% and A exactly N*1%, with no lost update
	service, db := setupSQLiteService(t)
	ctx := context.Background()

	a, err := service.CreateAccount(ctx, "Alice", "alice@example.com", "")
	require.NoError(t, err)
	b, err := service.CreateAccount(ctx, "Bob", "bob@example.com", a.Id)
	require.NoError(t, err)
	c, err := service.CreateAccount(ctx, "Carol", "carol@example.com", b.Id)
	require.NoError(t, err)

	const purchases = 16
	var wg sync.WaitGroup
	errs := make(chan error, purchases)
	for i := 0; i < purchases; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := service.ProcessPurchase(ctx, c.Id, 2000); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("purchase failed: %v", err)
	}

	bob, err := db.GetAccount(ctx, b.Id)
	require.NoError(t, err)
	assertDecimal(t, "1600", bob.Level1Earnings, "bob level 1")

	alice, err := db.GetAccount(ctx, a.Id)
	require.NoError(t, err)
	assertDecimal(t, "320", alice.Level2Earnings, "alice level 2")

	for _, id := range []string{a.Id, b.Id} {
		report, err := service.ReconcileAccount(ctx, id)
		require.NoError(t, err)
		assert.True(t, report.Matched, "balance cache drifted from ledger for %s", id)
	}
}
