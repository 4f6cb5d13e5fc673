package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	invrepo "github.com/pharmacore/pharmacore-backend/internal/inventory/repository"
	"github.com/pharmacore/pharmacore-backend/internal/sales/repository"
	"github.com/pharmacore/pharmacore-backend/pkg/errors"
	"github.com/pharmacore/pharmacore-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "BILL-202608-0007", repository.FormatNumber(repository.NumberKindBill, "202608", 7))
	assert.Equal(t, "RET-202612-0123", repository.FormatNumber(repository.NumberKindReturn, "202612", 123))
	// Width grows past four digits instead of truncating
	assert.Equal(t, "BILL-202608-12345", repository.FormatNumber(repository.NumberKindBill, "202608", 12345))
}

func TestSalesService_CreateSale(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	ownerID := testutil.NewOwnerID()
	env := newSalesTestEnv()

	batch := env.createStockedBatch(t, ctx, ownerID, 100)

	customer := "Asha Rao"
	sale, err := env.sales.CreateSale(ctx, ownerID, &CreateSaleInput{
		CustomerName: &customer,
		Items: []SaleLineInput{
			{BatchID: batch.ID, Quantity: 10, DiscountPercent: 10, TaxPercent: 5},
		},
		AmountPaid:    33.08,
		PaymentMethod: "cash",
		SoldBy:        "clerk-1",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sale.BillNumber, "BILL-"), "bill number %q", sale.BillNumber)
	assert.Equal(t, repository.SaleStatusCompleted, sale.Status)
	assert.Equal(t, repository.PaymentStatusCompleted, sale.PaymentStatus)
	require.Len(t, sale.Items, 1)

	// 10 x 3.50 = 35.00, minus 10% discount, plus 5% tax on the rest
	assert.InDelta(t, 35.00, sale.Subtotal, 0.001)
	assert.InDelta(t, 3.50, sale.DiscountAmount, 0.001)
	assert.InDelta(t, 1.58, sale.TaxAmount, 0.001)
	assert.InDelta(t, 33.08, sale.Total, 0.001)

	// Stock was consumed and the ledger links back to the sale
	got, err := env.stock.GetBatch(ctx, ownerID, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 90, got.AvailableQty)

	entries, _, err := env.stock.ListTransactions(ctx, ownerID, invrepo.TransactionFilter{BatchID: batch.ID, Page: 1, PerPage: 20})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	var saleEntry *invrepo.StockTransaction
	for _, e := range entries {
		if e.TransactionType == invrepo.TxTypeSale {
			saleEntry = e
		}
	}
	require.NotNil(t, saleEntry)
	require.NotNil(t, saleEntry.SaleID)
	assert.Equal(t, sale.ID, *saleEntry.SaleID)

	byBill, err := env.sales.GetSaleByBillNumber(ctx, ownerID, sale.BillNumber)
	require.NoError(t, err)
	assert.Equal(t, sale.ID, byBill.ID)
}

func TestSalesService_CreateSaleInsufficientStock(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	ownerID := testutil.NewOwnerID()
	env := newSalesTestEnv()

	batch := env.createStockedBatch(t, ctx, ownerID, 5)

	_, err := env.sales.CreateSale(ctx, ownerID, &CreateSaleInput{
		Items:  []SaleLineInput{{BatchID: batch.ID, Quantity: 6}},
		SoldBy: "clerk-1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInsufficientStock)

	// Nothing was consumed and no sale was written
	got, err := env.stock.GetBatch(ctx, ownerID, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.AvailableQty)

	_, total, err := env.sales.ListSales(ctx, ownerID, repository.SaleFilter{Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)

	// Exactly what is available goes through
	sale, err := env.sales.CreateSale(ctx, ownerID, &CreateSaleInput{
		Items:  []SaleLineInput{{BatchID: batch.ID, Quantity: 5}},
		SoldBy: "clerk-1",
	})
	require.NoError(t, err)
	assert.Len(t, sale.Items, 1)
}

func TestSalesService_CreateSaleCumulativeLines(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	ownerID := testutil.NewOwnerID()
	env := newSalesTestEnv()

	batch := env.createStockedBatch(t, ctx, ownerID, 10)

	// Two lines on the same batch are validated together
	_, err := env.sales.CreateSale(ctx, ownerID, &CreateSaleInput{
		Items: []SaleLineInput{
			{BatchID: batch.ID, Quantity: 6},
			{BatchID: batch.ID, Quantity: 6},
		},
		SoldBy: "clerk-1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInsufficientStock)
}

func TestSalesService_CreateSaleExpiredBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	ownerID := testutil.NewOwnerID()
	env := newSalesTestEnv()

	batch := env.createStockedBatch(t, ctx, ownerID, 100)

	// Age the batch past its expiry date behind the service's back
	_, err := suite.RawDB.ExecContext(ctx,
		"UPDATE inventory_batches SET expiry_date = NOW() - INTERVAL '1 day' WHERE id = $1", batch.ID)
	require.NoError(t, err)

	_, err = env.sales.CreateSale(ctx, ownerID, &CreateSaleInput{
		Items:  []SaleLineInput{{BatchID: batch.ID, Quantity: 1}},
		SoldBy: "clerk-1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBatchExpired)
}

// Concurrent sales against one batch must never oversell, and every sale
// must get its own bill number.
func TestSalesService_ConcurrentSales(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	ownerID := testutil.NewOwnerID()
	env := newSalesTestEnv()

	batch := env.createStockedBatch(t, ctx, ownerID, 100)

	type result struct {
		sale *repository.Sale
		err  error
	}

	const workers = 4
	var wg sync.WaitGroup
	results := make(chan result, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sale, err := env.sales.CreateSale(ctx, ownerID, &CreateSaleInput{
				Items:  []SaleLineInput{{BatchID: batch.ID, Quantity: 30}},
				SoldBy: "clerk-1",
			})
			results <- result{sale, err}
		}()
	}
	wg.Wait()
	close(results)

	bills := make(map[string]bool)
	var succeeded, failed int
	for r := range results {
		if r.err != nil {
			failed++
			assert.ErrorIs(t, r.err, errors.ErrInsufficientStock)
			continue
		}
		succeeded++
		assert.False(t, bills[r.sale.BillNumber], "duplicate bill number %s", r.sale.BillNumber)
		bills[r.sale.BillNumber] = true
	}
	assert.Equal(t, 3, succeeded, "only 90 of 100 units can be sold in 30s")
	assert.Equal(t, 1, failed)

	got, err := env.stock.GetBatch(ctx, ownerID, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 90, got.SoldQuantity)
}

func TestSalesService_ConcurrentCancelAndCreate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	ownerID := testutil.NewOwnerID()
	env := newSalesTestEnv()

	// Cancellations and new sales contend for the same two batch rows.
	// Both paths lock in sorted batch ID order, so none of these may
	// fail with a deadlock abort.
	b1 := env.createStockedBatch(t, ctx, ownerID, 1000)
	b2 := env.createStockedBatch(t, ctx, ownerID, 1000)

	newInput := func() *CreateSaleInput {
		return &CreateSaleInput{
			Items: []SaleLineInput{
				{BatchID: b2.ID, Quantity: 10},
				{BatchID: b1.ID, Quantity: 10},
			},
			SoldBy: "clerk-1",
		}
	}

	const rounds = 5
	existing := make([]*repository.Sale, rounds)
	for i := range existing {
		sale, err := env.sales.CreateSale(ctx, ownerID, newInput())
		require.NoError(t, err)
		existing[i] = sale
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2*rounds)
	for i := 0; i < rounds; i++ {
		saleID := existing[i].ID
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := env.sales.CancelSale(ctx, ownerID, saleID, "clerk-1", "customer changed mind")
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := env.sales.CreateSale(ctx, ownerID, newInput())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	// Five sales cancelled, five new ones sold 10 units from each batch
	for _, id := range []string{b1.ID, b2.ID} {
		got, err := env.stock.GetBatch(ctx, ownerID, id)
		require.NoError(t, err)
		assert.Equal(t, 50, got.SoldQuantity)
	}
}

func TestSalesService_CancelSale(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	ownerID := testutil.NewOwnerID()
	env := newSalesTestEnv()

	batch := env.createStockedBatch(t, ctx, ownerID, 100)

	sale, err := env.sales.CreateSale(ctx, ownerID, &CreateSaleInput{
		Items:  []SaleLineInput{{BatchID: batch.ID, Quantity: 25}},
		SoldBy: "clerk-1",
	})
	require.NoError(t, err)

	cancelled, err := env.sales.CancelSale(ctx, ownerID, sale.ID, "manager-1", "entered by mistake")
	require.NoError(t, err)
	assert.Equal(t, repository.SaleStatusCancelled, cancelled.Status)
	assert.Equal(t, repository.PaymentStatusCancelled, cancelled.PaymentStatus)

	// Stock is credited back in full
	got, err := env.stock.GetBatch(ctx, ownerID, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.AvailableQty)

	// Cancelling twice conflicts
	_, err = env.sales.CancelSale(ctx, ownerID, sale.ID, "manager-1", "again")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConflict)
}

func TestSalesService_CreateReturn(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	ownerID := testutil.NewOwnerID()
	env := newSalesTestEnv()

	batch := env.createStockedBatch(t, ctx, ownerID, 100)

	sale, err := env.sales.CreateSale(ctx, ownerID, &CreateSaleInput{
		Items:      []SaleLineInput{{BatchID: batch.ID, Quantity: 10}},
		AmountPaid: 35.00,
		SoldBy:     "clerk-1",
	})
	require.NoError(t, err)
	item := sale.Items[0]

	// Partial return of 4 units
	ret, err := env.sales.CreateReturn(ctx, ownerID, sale.ID, &CreateReturnInput{
		Items:       []ReturnLineInput{{SaleItemID: item.ID, Quantity: 4}},
		ProcessedBy: "clerk-1",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ret.ReturnNumber, "RET-"))
	assert.False(t, ret.FullReturn)
	// 4 of 10 units at the 35.00 line total
	assert.InDelta(t, 14.00, ret.RefundAmount, 0.001)

	got, err := env.stock.GetBatch(ctx, ownerID, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 94, got.AvailableQty)

	// Returning 7 more exceeds what is left on the line
	_, err = env.sales.CreateReturn(ctx, ownerID, sale.ID, &CreateReturnInput{
		Items:       []ReturnLineInput{{SaleItemID: item.ID, Quantity: 7}},
		ProcessedBy: "clerk-1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidReturn)

	// Returning the remaining 6 completes the return
	ret, err = env.sales.CreateReturn(ctx, ownerID, sale.ID, &CreateReturnInput{
		Items:       []ReturnLineInput{{SaleItemID: item.ID, Quantity: 6}},
		ProcessedBy: "clerk-1",
	})
	require.NoError(t, err)
	assert.True(t, ret.FullReturn)

	final, err := env.sales.GetSale(ctx, ownerID, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.SaleStatusReturned, final.Status)
	assert.Equal(t, repository.PaymentStatusRefunded, final.PaymentStatus)

	got, err = env.stock.GetBatch(ctx, ownerID, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.AvailableQty)

	returns, err := env.sales.ListReturnsBySale(ctx, ownerID, sale.ID)
	require.NoError(t, err)
	assert.Len(t, returns, 2)
}

func TestSalesService_ReturnFromCancelledSale(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	ownerID := testutil.NewOwnerID()
	env := newSalesTestEnv()

	batch := env.createStockedBatch(t, ctx, ownerID, 100)

	sale, err := env.sales.CreateSale(ctx, ownerID, &CreateSaleInput{
		Items:  []SaleLineInput{{BatchID: batch.ID, Quantity: 5}},
		SoldBy: "clerk-1",
	})
	require.NoError(t, err)

	_, err = env.sales.CancelSale(ctx, ownerID, sale.ID, "manager-1", "wrong customer")
	require.NoError(t, err)

	_, err = env.sales.CreateReturn(ctx, ownerID, sale.ID, &CreateReturnInput{
		Items:       []ReturnLineInput{{SaleItemID: sale.Items[0].ID, Quantity: 1}},
		ProcessedBy: "clerk-1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConflict)
}

func TestSalesService_Summary(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	ownerID := testutil.NewOwnerID()
	env := newSalesTestEnv()

	batch := env.createStockedBatch(t, ctx, ownerID, 100)

	_, err := env.sales.CreateSale(ctx, ownerID, &CreateSaleInput{
		Items:      []SaleLineInput{{BatchID: batch.ID, Quantity: 10}},
		AmountPaid: 35.00,
		SoldBy:     "clerk-1",
	})
	require.NoError(t, err)

	_, err = env.sales.CreateSale(ctx, ownerID, &CreateSaleInput{
		Items:  []SaleLineInput{{BatchID: batch.ID, Quantity: 4}},
		SoldBy: "clerk-1",
	})
	require.NoError(t, err)

	cancelledSale, err := env.sales.CreateSale(ctx, ownerID, &CreateSaleInput{
		Items:  []SaleLineInput{{BatchID: batch.ID, Quantity: 2}},
		SoldBy: "clerk-1",
	})
	require.NoError(t, err)
	_, err = env.sales.CancelSale(ctx, ownerID, cancelledSale.ID, "manager-1", "test")
	require.NoError(t, err)

	summary, err := env.sales.Summary(ctx, ownerID, nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, summary.SaleCount, "cancelled sales do not count")
	assert.EqualValues(t, 1, summary.CancelledCount)
	// 10 + 4 units at 3.50
	assert.InDelta(t, 49.00, summary.TotalRevenue, 0.001)
	assert.InDelta(t, 35.00, summary.TotalCollected, 0.001)
	assert.InDelta(t, 14.00, summary.TotalBalance, 0.001)

	// A window entirely in the past is empty
	summary, err = env.sales.Summary(ctx, ownerID,
		testutil.PtrTime(time.Now().Add(-2*time.Hour)),
		testutil.PtrTime(time.Now().Add(-time.Hour)))
	require.NoError(t, err)
	assert.EqualValues(t, 0, summary.SaleCount)
}
