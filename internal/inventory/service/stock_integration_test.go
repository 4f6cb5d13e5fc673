package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pharmacore/pharmacore-backend/internal/inventory/repository"
	"github.com/pharmacore/pharmacore-backend/pkg/errors"
	"github.com/pharmacore/pharmacore-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCreateBatchInput(quantity int) *CreateBatchInput {
	return &CreateBatchInput{
		MedicineID:    uuid.New().String(),
		MedicineName:  "Azithromycin 250mg",
		BatchNumber:   "BN-" + uuid.New().String()[:8],
		ExpiryDate:    time.Now().AddDate(1, 0, 0),
		Quantity:      quantity,
		PurchasePrice: 12.00,
		SellingPrice:  18.00,
	}
}

func TestStockService_CreateBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	ownerID := testutil.NewOwnerID()
	svc := newTestStockService()

	batch, err := svc.CreateBatch(ctx, ownerID, "user-1", newCreateBatchInput(100))
	require.NoError(t, err)
	assert.Equal(t, repository.StatusActive, batch.Status)
	assert.Equal(t, 100, batch.AvailableQty)
	assert.Equal(t, 10, batch.ReorderLevel, "policy default applies when unset")
	assert.Equal(t, 30, batch.ExpiryAlertDays)

	// The initial stock lands in the ledger as a purchase
	entries, _, err := svc.ListTransactions(ctx, ownerID, repository.TransactionFilter{BatchID: batch.ID, Page: 1, PerPage: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, repository.TxTypePurchase, entries[0].TransactionType)
	assert.Equal(t, 100, entries[0].QuantityDelta)
	assert.Equal(t, "user-1", entries[0].PerformedBy)
}

func TestStockService_CreateBatchValidation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	ownerID := testutil.NewOwnerID()
	svc := newTestStockService()

	past := newCreateBatchInput(100)
	past.ExpiryDate = time.Now().Add(-time.Hour)
	_, err := svc.CreateBatch(ctx, ownerID, "user-1", past)
	require.Error(t, err)

	future := newCreateBatchInput(100)
	manufacture := time.Now().Add(24 * time.Hour)
	future.ManufactureDate = &manufacture
	_, err = svc.CreateBatch(ctx, ownerID, "user-1", future)
	require.Error(t, err)

	// Unknown medicine with no name cannot be resolved cache-only
	unnamed := newCreateBatchInput(100)
	unnamed.MedicineName = ""
	_, err = svc.CreateBatch(ctx, ownerID, "user-1", unnamed)
	assert.True(t, errors.IsNotFound(err))
}

func TestStockService_AdjustLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	ownerID := testutil.NewOwnerID()
	svc := newTestStockService()

	batch, err := svc.CreateBatch(ctx, ownerID, "user-1", newCreateBatchInput(100))
	require.NoError(t, err)

	// Sell down close to the reorder level
	updated, entry, err := svc.Adjust(ctx, ownerID, batch.ID, &AdjustInput{
		Type:        repository.TxTypeSale,
		Quantity:    88,
		PerformedBy: "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 12, updated.AvailableQty)
	assert.Equal(t, repository.StatusActive, updated.Status)
	assert.Equal(t, 88, entry.NewQuantity)

	// Damage crosses the threshold, status flips to low stock
	updated, _, err = svc.Adjust(ctx, ownerID, batch.ID, &AdjustInput{
		Type:        repository.TxTypeDamage,
		Quantity:    3,
		PerformedBy: "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 9, updated.AvailableQty)
	assert.Equal(t, repository.StatusLowStock, updated.Status)

	// Selling the rest empties the batch
	updated, _, err = svc.Adjust(ctx, ownerID, batch.ID, &AdjustInput{
		Type:        repository.TxTypeSale,
		Quantity:    9,
		PerformedBy: "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, repository.StatusOutOfStock, updated.Status)

	// A return brings it back
	updated, _, err = svc.Adjust(ctx, ownerID, batch.ID, &AdjustInput{
		Type:        repository.TxTypeReturn,
		Quantity:    50,
		PerformedBy: "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 50, updated.AvailableQty)
	assert.Equal(t, repository.StatusActive, updated.Status)

	entries, _, err := svc.ListTransactions(ctx, ownerID, repository.TransactionFilter{BatchID: batch.ID, Page: 1, PerPage: 20})
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

// Two concurrent oversells of the same batch: row locking must let exactly
// one through when together they exceed what is available.
func TestStockService_ConcurrentSales(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	ownerID := testutil.NewOwnerID()
	svc := newTestStockService()

	batch, err := svc.CreateBatch(ctx, ownerID, "user-1", newCreateBatchInput(100))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Adjust(ctx, ownerID, batch.ID, &AdjustInput{
				Type:        repository.TxTypeSale,
				Quantity:    60,
				PerformedBy: "user-1",
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var failures int
	for err := range results {
		if err != nil {
			failures++
			assert.ErrorIs(t, err, errors.ErrInsufficientStock)
		}
	}
	assert.Equal(t, 1, failures, "exactly one of the two sales must fail")

	got, err := svc.GetBatch(ctx, ownerID, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, got.SoldQuantity)
	assert.Equal(t, 40, got.AvailableQty)
}

func TestStockService_Alerts(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	ownerID := testutil.NewOwnerID()
	svc := newTestStockService()

	low := newCreateBatchInput(100)
	createdLow, err := svc.CreateBatch(ctx, ownerID, "user-1", low)
	require.NoError(t, err)
	_, _, err = svc.Adjust(ctx, ownerID, createdLow.ID, &AdjustInput{
		Type:        repository.TxTypeSale,
		Quantity:    95,
		PerformedBy: "user-1",
	})
	require.NoError(t, err)

	soon := newCreateBatchInput(100)
	soon.ExpiryDate = time.Now().AddDate(0, 0, 15)
	createdSoon, err := svc.CreateBatch(ctx, ownerID, "user-1", soon)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusNearExpiry, createdSoon.Status)

	lowStock, err := svc.LowStock(ctx, ownerID)
	require.NoError(t, err)
	require.Len(t, lowStock, 1)
	assert.Equal(t, createdLow.ID, lowStock[0].ID)

	nearExpiry, err := svc.NearExpiry(ctx, ownerID, 0)
	require.NoError(t, err)
	require.Len(t, nearExpiry, 1)
	assert.Equal(t, createdSoon.ID, nearExpiry[0].ID)

	// A wider window catches the year-out batch too
	within, err := svc.NearExpiry(ctx, ownerID, 400)
	require.NoError(t, err)
	assert.Len(t, within, 2)

	summary, err := svc.StockSummary(ctx, ownerID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, summary.TotalBatches)
	assert.EqualValues(t, 1, summary.LowStockCount)
	assert.EqualValues(t, 1, summary.NearExpiryCount)
}
