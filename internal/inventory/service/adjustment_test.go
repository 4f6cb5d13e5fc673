package service

import (
	"testing"
	"time"

	"github.com/pharmacore/pharmacore-backend/internal/inventory/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBatch() *repository.InventoryBatch {
	return &repository.InventoryBatch{
		ID:               "batch-1",
		OwnerID:          "owner-1",
		MedicineID:       "med-1",
		MedicineName:     "Paracetamol 500mg",
		ExpiryDate:       time.Now().AddDate(1, 0, 0),
		ReceivedQuantity: 100,
		SoldQuantity:     40,
		DamagedQuantity:  5,
		ReorderLevel:     10,
		ExpiryAlertDays:  30,
	}
}

func TestApplyAdjustment_Purchase(t *testing.T) {
	batch := testBatch()
	entry, err := applyAdjustment(batch, &AdjustInput{Type: repository.TxTypePurchase, Quantity: 50})
	require.NoError(t, err)

	assert.Equal(t, 150, batch.ReceivedQuantity)
	assert.Equal(t, 100, entry.PreviousQuantity)
	assert.Equal(t, 150, entry.NewQuantity)
	assert.Equal(t, 50, entry.QuantityDelta)

	_, err = applyAdjustment(batch, &AdjustInput{Type: repository.TxTypePurchase, Quantity: -5})
	require.Error(t, err)
}

func TestApplyAdjustment_Sale(t *testing.T) {
	batch := testBatch() // 55 available

	entry, err := applyAdjustment(batch, &AdjustInput{Type: repository.TxTypeSale, Quantity: 55})
	require.NoError(t, err)
	assert.Equal(t, 95, batch.SoldQuantity)
	assert.Equal(t, 40, entry.PreviousQuantity)
	assert.Equal(t, 95, entry.NewQuantity)
	assert.Equal(t, 0, batch.Available())

	_, err = applyAdjustment(batch, &AdjustInput{Type: repository.TxTypeSale, Quantity: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient stock")
	assert.Equal(t, 95, batch.SoldQuantity)
}

func TestApplyAdjustment_SaleOverAvailable(t *testing.T) {
	batch := testBatch()
	_, err := applyAdjustment(batch, &AdjustInput{Type: repository.TxTypeSale, Quantity: 56})
	require.Error(t, err)
	assert.Equal(t, 40, batch.SoldQuantity, "failed adjustment must not mutate the batch")
}

func TestApplyAdjustment_Damage(t *testing.T) {
	batch := testBatch()
	entry, err := applyAdjustment(batch, &AdjustInput{Type: repository.TxTypeDamage, Quantity: 10})
	require.NoError(t, err)
	assert.Equal(t, 15, batch.DamagedQuantity)
	assert.Equal(t, 5, entry.PreviousQuantity)
	assert.Equal(t, 15, entry.NewQuantity)

	// Damaging more than what is physically left must fail
	_, err = applyAdjustment(batch, &AdjustInput{Type: repository.TxTypeDamage, Quantity: 50})
	require.Error(t, err)
	assert.Equal(t, 15, batch.DamagedQuantity)
}

func TestApplyAdjustment_ReturnClampsAtZero(t *testing.T) {
	batch := testBatch()

	entry, err := applyAdjustment(batch, &AdjustInput{Type: repository.TxTypeReturn, Quantity: 10})
	require.NoError(t, err)
	assert.Equal(t, 30, batch.SoldQuantity)
	assert.Equal(t, -10, entry.QuantityDelta)

	// Returning more than was ever sold clamps, and the ledger records
	// the delta actually applied
	entry, err = applyAdjustment(batch, &AdjustInput{Type: repository.TxTypeReturn, Quantity: 99})
	require.NoError(t, err)
	assert.Equal(t, 0, batch.SoldQuantity)
	assert.Equal(t, -30, entry.QuantityDelta)
	assert.Equal(t, 30, entry.PreviousQuantity)
	assert.Equal(t, 0, entry.NewQuantity)
}

func TestApplyAdjustment_Correction(t *testing.T) {
	batch := testBatch()

	entry, err := applyAdjustment(batch, &AdjustInput{Type: repository.TxTypeAdjustment, Quantity: -20})
	require.NoError(t, err)
	assert.Equal(t, 80, batch.ReceivedQuantity)
	assert.Equal(t, -20, entry.QuantityDelta)

	// Cannot correct below sold plus damaged
	_, err = applyAdjustment(batch, &AdjustInput{Type: repository.TxTypeAdjustment, Quantity: -40})
	require.Error(t, err)
	assert.Equal(t, 80, batch.ReceivedQuantity)

	_, err = applyAdjustment(batch, &AdjustInput{Type: repository.TxTypeAdjustment, Quantity: 0})
	require.Error(t, err)
}

func TestApplyAdjustment_UnknownType(t *testing.T) {
	_, err := applyAdjustment(testBatch(), &AdjustInput{Type: "transfer", Quantity: 5})
	require.Error(t, err)
}
