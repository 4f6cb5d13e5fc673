package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pharmacore/pharmacore-backend/internal/inventory/repository"
	"github.com/pharmacore/pharmacore-backend/pkg/errors"
	"github.com/pharmacore/pharmacore-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestBatch builds an unsaved batch from the fixture factory. Options
// tweak the fixture before it is converted for repo.Create.
func newTestBatch(ownerID string, opts ...func(*testutil.BatchFixture)) *repository.InventoryBatch {
	fx := suite.Fixtures.Batch(ownerID, opts...)
	return &repository.InventoryBatch{
		OwnerID:          fx.OwnerID,
		MedicineID:       fx.MedicineID,
		MedicineName:     fx.MedicineName,
		BatchNumber:      fx.BatchNumber,
		ExpiryDate:       fx.ExpiryDate,
		ReceivedQuantity: fx.QuantityReceived,
		SoldQuantity:     fx.QuantitySold,
		DamagedQuantity:  fx.QuantityDamaged,
		PurchasePrice:    fx.PurchasePrice,
		SellingPrice:     fx.SellingPrice,
		ReorderLevel:     fx.ReorderLevel,
		ExpiryAlertDays:  fx.ExpiryAlertDays,
		Status:           fx.Status,
		Supplier:         testutil.PtrString(fx.Supplier),
		IsActive:         true,
	}
}

func createTestBatch(t *testing.T, ctx context.Context, repo *repository.BatchRepository, batch *repository.InventoryBatch) *repository.InventoryBatch {
	t.Helper()
	batch.Status = batch.DeriveStatus(time.Now())
	require.NoError(t, repo.Create(ctx, batch))
	return batch
}

func TestBatchDeriveStatus(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		batch    repository.InventoryBatch
		expected string
	}{
		{
			name: "healthy batch is active",
			batch: repository.InventoryBatch{
				ReceivedQuantity: 100,
				ExpiryDate:       now.AddDate(1, 0, 0),
				ReorderLevel:     10,
				ExpiryAlertDays:  30,
			},
			expected: repository.StatusActive,
		},
		{
			name: "everything sold is out of stock",
			batch: repository.InventoryBatch{
				ReceivedQuantity: 100,
				SoldQuantity:     100,
				ExpiryDate:       now.AddDate(1, 0, 0),
				ReorderLevel:     10,
				ExpiryAlertDays:  30,
			},
			expected: repository.StatusOutOfStock,
		},
		{
			name: "sold plus damaged consumes everything",
			batch: repository.InventoryBatch{
				ReceivedQuantity: 100,
				SoldQuantity:     97,
				DamagedQuantity:  3,
				ExpiryDate:       now.AddDate(1, 0, 0),
				ReorderLevel:     10,
				ExpiryAlertDays:  30,
			},
			expected: repository.StatusOutOfStock,
		},
		{
			name: "out of stock wins over expired",
			batch: repository.InventoryBatch{
				ReceivedQuantity: 50,
				SoldQuantity:     50,
				ExpiryDate:       now.AddDate(0, -1, 0),
				ReorderLevel:     10,
				ExpiryAlertDays:  30,
			},
			expected: repository.StatusOutOfStock,
		},
		{
			name: "past expiry date with stock remaining",
			batch: repository.InventoryBatch{
				ReceivedQuantity: 100,
				SoldQuantity:     20,
				ExpiryDate:       now.Add(-time.Hour),
				ReorderLevel:     10,
				ExpiryAlertDays:  30,
			},
			expected: repository.StatusExpired,
		},
		{
			name: "inside the expiry alert window",
			batch: repository.InventoryBatch{
				ReceivedQuantity: 100,
				ExpiryDate:       now.AddDate(0, 0, 20),
				ReorderLevel:     10,
				ExpiryAlertDays:  30,
			},
			expected: repository.StatusNearExpiry,
		},
		{
			name: "near expiry wins over low stock",
			batch: repository.InventoryBatch{
				ReceivedQuantity: 100,
				SoldQuantity:     95,
				ExpiryDate:       now.AddDate(0, 0, 10),
				ReorderLevel:     10,
				ExpiryAlertDays:  30,
			},
			expected: repository.StatusNearExpiry,
		},
		{
			name: "available at the reorder level is low stock",
			batch: repository.InventoryBatch{
				ReceivedQuantity: 100,
				SoldQuantity:     92,
				DamagedQuantity:  3,
				ExpiryDate:       now.AddDate(1, 0, 0),
				ReorderLevel:     5,
				ExpiryAlertDays:  30,
			},
			expected: repository.StatusLowStock,
		},
		{
			name: "one above the reorder level stays active",
			batch: repository.InventoryBatch{
				ReceivedQuantity: 100,
				SoldQuantity:     89,
				ExpiryDate:       now.AddDate(1, 0, 0),
				ReorderLevel:     10,
				ExpiryAlertDays:  30,
			},
			expected: repository.StatusActive,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.batch.DeriveStatus(now))
		})
	}
}

func TestBatchDaysUntilExpiry(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	b := repository.InventoryBatch{ExpiryDate: now.AddDate(0, 0, 10)}
	assert.Equal(t, 10, b.DaysUntilExpiry(now))

	// Partial days round up, expiring tomorrow morning still counts as a day
	b.ExpiryDate = now.Add(18 * time.Hour)
	assert.Equal(t, 1, b.DaysUntilExpiry(now))

	b.ExpiryDate = now.Add(-30 * time.Hour)
	assert.Equal(t, -1, b.DaysUntilExpiry(now))
	assert.True(t, b.IsExpired(now))
}

func TestBatchEnrich(t *testing.T) {
	now := time.Now()
	b := repository.InventoryBatch{
		ReceivedQuantity: 100,
		SoldQuantity:     30,
		DamagedQuantity:  5,
		ExpiryDate:       now.AddDate(0, 0, 45),
	}
	b.Enrich(now)

	assert.Equal(t, 65, b.AvailableQty)
	assert.Equal(t, 45, b.DaysToExpiry)
}

func TestBatchRepository_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	ownerID := testutil.NewOwnerID()
	repo := repository.NewBatchRepository(suite.DB)

	batch := createTestBatch(t, ctx, repo, newTestBatch(ownerID))
	require.NotEmpty(t, batch.ID)
	require.False(t, batch.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, ownerID, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.BatchNumber, got.BatchNumber)
	assert.Equal(t, 100, got.ReceivedQuantity)
	assert.Equal(t, repository.StatusActive, got.Status)

	byIdentity, err := repo.GetByIdentity(ctx, ownerID, batch.MedicineID, batch.BatchNumber)
	require.NoError(t, err)
	assert.Equal(t, batch.ID, byIdentity.ID)

	_, err = repo.GetByID(ctx, ownerID, uuid.New().String())
	assert.True(t, errors.IsNotFound(err))

	// Another owner cannot see the batch
	_, err = repo.GetByID(ctx, testutil.NewOwnerID(), batch.ID)
	assert.True(t, errors.IsNotFound(err))
}

func TestBatchRepository_CreateDuplicateIdentity(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	ownerID := testutil.NewOwnerID()
	repo := repository.NewBatchRepository(suite.DB)

	first := createTestBatch(t, ctx, repo, newTestBatch(ownerID))

	dup := newTestBatch(ownerID,
		testutil.WithMedicine(first.MedicineID, first.MedicineName),
		testutil.WithBatchNumber(first.BatchNumber))
	dup.Status = dup.DeriveStatus(time.Now())
	err := repo.Create(ctx, dup)
	require.Error(t, err)

	// Same identity under a different owner is fine
	other := newTestBatch(testutil.NewOwnerID(),
		testutil.WithMedicine(first.MedicineID, first.MedicineName),
		testutil.WithBatchNumber(first.BatchNumber))
	createTestBatch(t, ctx, repo, other)
}

func TestBatchRepository_UpdateCountersGuard(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	ownerID := testutil.NewOwnerID()
	repo := repository.NewBatchRepository(suite.DB)

	batch := createTestBatch(t, ctx, repo, newTestBatch(ownerID))

	batch.SoldQuantity = 40
	batch.Status = batch.DeriveStatus(time.Now())
	require.NoError(t, repo.UpdateCounters(ctx, batch))

	got, err := repo.GetByID(ctx, ownerID, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.SoldQuantity)

	// Counters that no longer add up are rejected at the database
	batch.SoldQuantity = 90
	batch.DamagedQuantity = 20
	err = repo.UpdateCounters(ctx, batch)
	require.Error(t, err)

	got, err = repo.GetByID(ctx, ownerID, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.SoldQuantity)
	assert.Equal(t, 0, got.DamagedQuantity)
}

func TestBatchRepository_ListAndFilter(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	ownerID := testutil.NewOwnerID()
	repo := repository.NewBatchRepository(suite.DB)

	a := newTestBatch(ownerID,
		testutil.WithMedicine(uuid.New().String(), "Amoxicillin 250mg"))
	createTestBatch(t, ctx, repo, a)

	// 20 available against a raised reorder threshold reads as low stock
	b := newTestBatch(ownerID,
		testutil.WithMedicine(uuid.New().String(), "Ibuprofen 400mg"),
		testutil.WithQuantities(100, 80, 0),
		testutil.WithReorderLevel(25))
	createTestBatch(t, ctx, repo, b)

	all, total, err := repo.List(ctx, ownerID, repository.BatchFilter{Page: 1, PerPage: 20})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 2)

	low, total, err := repo.List(ctx, ownerID, repository.BatchFilter{Status: repository.StatusLowStock, Page: 1, PerPage: 20})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, low, 1)
	assert.Equal(t, "Ibuprofen 400mg", low[0].MedicineName)

	found, _, err := repo.List(ctx, ownerID, repository.BatchFilter{Search: "amoxi", Page: 1, PerPage: 20})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Amoxicillin 250mg", found[0].MedicineName)
}

func TestBatchRepository_DeactivateHidesBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	ownerID := testutil.NewOwnerID()
	repo := repository.NewBatchRepository(suite.DB)

	batch := createTestBatch(t, ctx, repo, newTestBatch(ownerID))
	require.NoError(t, repo.Deactivate(ctx, ownerID, batch.ID))

	_, total, err := repo.List(ctx, ownerID, repository.BatchFilter{Page: 1, PerPage: 20})
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)

	_, total, err = repo.List(ctx, ownerID, repository.BatchFilter{IncludeInactive: true, Page: 1, PerPage: 20})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestBatchRepository_RefreshExpiredStatuses(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	ownerID := testutil.NewOwnerID()
	repo := repository.NewBatchRepository(suite.DB)

	// Stored as active but the expiry date has since passed
	stale := newTestBatch(ownerID,
		testutil.WithExpiry(time.Now().Add(-time.Hour)),
		testutil.WithBatchStatus(repository.StatusActive))
	require.NoError(t, repo.Create(ctx, stale))

	fresh := createTestBatch(t, ctx, repo, newTestBatch(ownerID))

	changed, err := repo.RefreshExpiredStatuses(ctx)
	require.NoError(t, err)

	var found bool
	for _, b := range changed {
		if b.ID == stale.ID {
			found = true
			assert.Equal(t, repository.StatusExpired, b.Status)
		}
		assert.NotEqual(t, fresh.ID, b.ID)
	}
	assert.True(t, found, "stale batch should be flipped to expired")

	got, err := repo.GetByID(ctx, ownerID, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusExpired, got.Status)
}

func TestBatchRepository_Summary(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	ownerID := testutil.NewOwnerID()
	repo := repository.NewBatchRepository(suite.DB)

	active := newTestBatch(ownerID)
	createTestBatch(t, ctx, repo, active)

	low := newTestBatch(ownerID,
		testutil.WithQuantities(100, 95, 0),
		testutil.WithSellingPrice(8.00))
	createTestBatch(t, ctx, repo, low)

	empty := newTestBatch(ownerID, testutil.WithQuantities(100, 100, 0))
	createTestBatch(t, ctx, repo, empty)

	summary, err := repo.Summary(ctx, ownerID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, summary.TotalBatches)
	assert.EqualValues(t, 3, summary.TotalMedicines)
	assert.EqualValues(t, 1, summary.LowStockCount)
	assert.EqualValues(t, 1, summary.OutOfStockCount)
	// 100 available at 10.00 plus 5 available at 8.00
	assert.InDelta(t, 100*10.00+5*8.00, summary.TotalStockValue, 0.01)
}
