package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/pharmacore/pharmacore-backend/internal/inventory/repository"
	"github.com/pharmacore/pharmacore-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertLedgerEntry(t *testing.T, ctx context.Context, repo *repository.TransactionRepository, batch *repository.InventoryBatch, txType string, delta, prev, next int) *repository.StockTransaction {
	t.Helper()
	entry := &repository.StockTransaction{
		OwnerID:          batch.OwnerID,
		BatchID:          batch.ID,
		MedicineID:       batch.MedicineID,
		TransactionType:  txType,
		QuantityDelta:    delta,
		PreviousQuantity: prev,
		NewQuantity:      next,
		PerformedBy:      "test-user",
	}
	require.NoError(t, repo.Insert(ctx, entry))
	return entry
}

func TestTransactionRepository_InsertAndList(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	ownerID := testutil.NewOwnerID()
	batchRepo := repository.NewBatchRepository(suite.DB)
	txRepo := repository.NewTransactionRepository(suite.DB)

	batch := createTestBatch(t, ctx, batchRepo, newTestBatch(ownerID))

	insertLedgerEntry(t, ctx, txRepo, batch, repository.TxTypePurchase, 100, 0, 100)
	insertLedgerEntry(t, ctx, txRepo, batch, repository.TxTypeSale, 30, 0, 30)
	insertLedgerEntry(t, ctx, txRepo, batch, repository.TxTypeDamage, 5, 0, 5)

	entries, total, err := txRepo.List(ctx, ownerID, repository.TransactionFilter{Page: 1, PerPage: 20})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, entries, 3)

	sales, total, err := txRepo.List(ctx, ownerID, repository.TransactionFilter{
		TransactionType: repository.TxTypeSale,
		Page:            1,
		PerPage:         20,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, sales, 1)
	assert.Equal(t, 30, sales[0].QuantityDelta)

	// Time range filter excludes everything when the window is in the past
	past := time.Now().Add(-time.Hour)
	none, total, err := txRepo.List(ctx, ownerID, repository.TransactionFilter{
		To:      &past,
		Page:    1,
		PerPage: 20,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
	assert.Empty(t, none)
}

// The ledger replayed in order must reconstruct the batch counters exactly.
func TestTransactionRepository_ReplayReconstructsCounters(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	ownerID := testutil.NewOwnerID()
	batchRepo := repository.NewBatchRepository(suite.DB)
	txRepo := repository.NewTransactionRepository(suite.DB)

	batch := createTestBatch(t, ctx, batchRepo, newTestBatch(ownerID))

	insertLedgerEntry(t, ctx, txRepo, batch, repository.TxTypePurchase, 100, 0, 100)
	insertLedgerEntry(t, ctx, txRepo, batch, repository.TxTypeSale, 40, 0, 40)
	insertLedgerEntry(t, ctx, txRepo, batch, repository.TxTypeReturn, -10, 40, 30)
	insertLedgerEntry(t, ctx, txRepo, batch, repository.TxTypeDamage, 5, 0, 5)
	insertLedgerEntry(t, ctx, txRepo, batch, repository.TxTypeAdjustment, -20, 100, 80)

	entries, err := txRepo.ListByBatch(ctx, ownerID, batch.ID)
	require.NoError(t, err)
	require.Len(t, entries, 5)

	var received, sold, damaged int
	for _, e := range entries {
		switch e.TransactionType {
		case repository.TxTypePurchase, repository.TxTypeAdjustment:
			received += e.QuantityDelta
		case repository.TxTypeSale, repository.TxTypeReturn:
			sold += e.QuantityDelta
		case repository.TxTypeDamage:
			damaged += e.QuantityDelta
		}
	}
	assert.Equal(t, 80, received)
	assert.Equal(t, 30, sold)
	assert.Equal(t, 5, damaged)
}

func TestMedicineCacheRepository_SetGetSearch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	repo := repository.NewMedicineCacheRepository(suite.DB)

	med := suite.Fixtures.Medicine(
		testutil.WithMedicineName("Crocin Advance"),
		testutil.WithCategory("antipyretic"))
	cached := &repository.CachedMedicine{
		ID:          med.ID,
		Name:        med.Name,
		GenericName: testutil.PtrString("acetaminophen"),
		Category:    testutil.PtrString(med.Category),
	}
	require.NoError(t, repo.Set(ctx, cached))

	got, err := repo.Get(ctx, med.ID)
	require.NoError(t, err)
	assert.Equal(t, "Crocin Advance", got.Name)

	// Upsert replaces the existing row
	cached.Name = "Crocin Advance 500"
	require.NoError(t, repo.Set(ctx, cached))
	got, err = repo.Get(ctx, med.ID)
	require.NoError(t, err)
	assert.Equal(t, "Crocin Advance 500", got.Name)

	byGeneric, err := repo.Search(ctx, "acetamino", 10)
	require.NoError(t, err)
	require.NotEmpty(t, byGeneric)

	require.NoError(t, repo.Delete(ctx, med.ID))
	_, err = repo.Get(ctx, med.ID)
	require.Error(t, err)
}
