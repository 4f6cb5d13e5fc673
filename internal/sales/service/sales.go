package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	invrepo "github.com/pharmacore/pharmacore-backend/internal/inventory/repository"
	invservice "github.com/pharmacore/pharmacore-backend/internal/inventory/service"
	"github.com/pharmacore/pharmacore-backend/internal/sales/events"
	"github.com/pharmacore/pharmacore-backend/internal/sales/repository"
	"github.com/pharmacore/pharmacore-backend/pkg/database"
	"github.com/pharmacore/pharmacore-backend/pkg/errors"
	"github.com/pharmacore/pharmacore-backend/pkg/logger"
)

// SalesService implements sale fulfillment: validate every line against its
// batch, then consume stock and persist the sale in one transaction. Any
// failure rolls the whole sale back, no batch is left partially consumed.
type SalesService struct {
	db         *database.DB
	saleRepo   *repository.SaleRepository
	returnRepo *repository.SaleReturnRepository
	batchRepo  *invrepo.BatchRepository
	stock      *invservice.StockService
	publisher  *events.SaleEventPublisher
	logger     *logger.Logger
}

// NewSalesService creates a new sales service
func NewSalesService(
	db *database.DB,
	saleRepo *repository.SaleRepository,
	returnRepo *repository.SaleReturnRepository,
	batchRepo *invrepo.BatchRepository,
	stock *invservice.StockService,
	publisher *events.SaleEventPublisher,
	log *logger.Logger,
) *SalesService {
	return &SalesService{
		db:         db,
		saleRepo:   saleRepo,
		returnRepo: returnRepo,
		batchRepo:  batchRepo,
		stock:      stock,
		publisher:  publisher,
		logger:     log,
	}
}

// SaleLineInput is one requested sale line
type SaleLineInput struct {
	BatchID         string   `json:"batch_id" validate:"required,uuid"`
	Quantity        int      `json:"quantity" validate:"required,gt=0"`
	UnitPrice       *float64 `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
	DiscountPercent float64  `json:"discount_percent" validate:"gte=0,lte=100"`
	TaxPercent      float64  `json:"tax_percent" validate:"gte=0,lte=100"`
}

// CreateSaleInput carries a sale request
type CreateSaleInput struct {
	CustomerName   *string         `json:"customer_name,omitempty"`
	CustomerPhone  *string         `json:"customer_phone,omitempty"`
	CustomerEmail  *string         `json:"customer_email,omitempty" validate:"omitempty,email"`
	DoctorName     *string         `json:"doctor_name,omitempty"`
	Items          []SaleLineInput `json:"items" validate:"required,min=1,dive"`
	ShippingCharge float64         `json:"shipping_charge" validate:"gte=0"`
	OtherCharge    float64         `json:"other_charge" validate:"gte=0"`
	AmountPaid     float64         `json:"amount_paid" validate:"gte=0"`
	PaymentMethod  string          `json:"payment_method" validate:"omitempty,oneof=cash card upi credit"`
	Notes          *string         `json:"notes,omitempty"`
	SoldBy         string          `json:"-"`
}

// ReturnLineInput is one requested return line
type ReturnLineInput struct {
	SaleItemID string `json:"sale_item_id" validate:"required,uuid"`
	Quantity   int    `json:"quantity" validate:"required,gt=0"`
}

// CreateReturnInput carries a return request against an existing sale
type CreateReturnInput struct {
	Items        []ReturnLineInput `json:"items" validate:"required,min=1,dive"`
	Reason       *string           `json:"reason,omitempty"`
	RefundMethod string            `json:"refund_method" validate:"omitempty,oneof=cash card upi credit"`
	ProcessedBy  string            `json:"-"`
}

// CreateSale validates every line, then consumes stock and persists the
// sale atomically. Batches are locked in sorted ID order so two concurrent
// sales touching the same batches cannot deadlock.
func (s *SalesService) CreateSale(ctx context.Context, ownerID string, input *CreateSaleInput) (*repository.Sale, error) {
	now := time.Now()

	var sale *repository.Sale

	err := s.db.WithTx(ctx, func(ctx context.Context) error {
		// Phase 1: lock and validate every referenced batch before any
		// mutation.
		batchIDs := make([]string, 0, len(input.Items))
		seen := make(map[string]bool)
		for _, line := range input.Items {
			if !seen[line.BatchID] {
				seen[line.BatchID] = true
				batchIDs = append(batchIDs, line.BatchID)
			}
		}
		sort.Strings(batchIDs)

		batches := make(map[string]*invrepo.InventoryBatch, len(batchIDs))
		for _, id := range batchIDs {
			batch, err := s.batchRepo.GetForUpdate(ctx, ownerID, id)
			if err != nil {
				return err
			}
			batches[id] = batch
		}

		requested := make(map[string]int)
		for _, line := range input.Items {
			batch := batches[line.BatchID]
			if batch.IsExpired(now) {
				return errors.BatchExpired(batch.MedicineName, batch.BatchNumber)
			}

			requested[line.BatchID] += line.Quantity
			if requested[line.BatchID] > batch.Available() {
				return errors.InsufficientStock(batch.MedicineName, requested[line.BatchID], batch.Available())
			}
		}

		// Phase 2: price lines and build the sale snapshot.
		items := make([]*repository.SaleItem, len(input.Items))
		pricings := make([]LinePricing, len(input.Items))
		for i, line := range input.Items {
			batch := batches[line.BatchID]

			unitPrice := batch.SellingPrice
			if line.UnitPrice != nil {
				unitPrice = *line.UnitPrice
			}
			pricing := PriceLine(unitPrice, line.Quantity, line.DiscountPercent, line.TaxPercent)
			pricings[i] = pricing

			batchNumber := batch.BatchNumber
			expiryDate := batch.ExpiryDate
			items[i] = &repository.SaleItem{
				BatchID:         batch.ID,
				MedicineID:      batch.MedicineID,
				MedicineName:    batch.MedicineName,
				BatchNumber:     &batchNumber,
				ExpiryDate:      &expiryDate,
				Quantity:        line.Quantity,
				UnitPrice:       unitPrice,
				DiscountPercent: line.DiscountPercent,
				TaxPercent:      line.TaxPercent,
				Subtotal:        pricing.Subtotal,
				DiscountAmount:  pricing.DiscountAmount,
				TaxAmount:       pricing.TaxAmount,
				LineTotal:       pricing.LineTotal,
			}
		}

		totals := ComputeTotals(pricings, input.ShippingCharge, input.OtherCharge, input.AmountPaid)

		period := now.Format("200601")
		seq, err := s.saleRepo.NextNumber(ctx, ownerID, repository.NumberKindBill, period)
		if err != nil {
			return err
		}

		paymentMethod := input.PaymentMethod
		if paymentMethod == "" {
			paymentMethod = "cash"
		}

		sale = &repository.Sale{
			OwnerID:        ownerID,
			BillNumber:     repository.FormatNumber(repository.NumberKindBill, period, seq),
			CustomerName:   input.CustomerName,
			CustomerPhone:  input.CustomerPhone,
			CustomerEmail:  input.CustomerEmail,
			DoctorName:     input.DoctorName,
			Subtotal:       totals.Subtotal,
			DiscountAmount: totals.DiscountAmount,
			TaxAmount:      totals.TaxAmount,
			ShippingCharge: input.ShippingCharge,
			OtherCharge:    input.OtherCharge,
			Total:          totals.Total,
			AmountPaid:     input.AmountPaid,
			BalanceDue:     totals.BalanceDue,
			PaymentMethod:  paymentMethod,
			PaymentStatus:  totals.PaymentStatus,
			Status:         repository.SaleStatusCompleted,
			Notes:          input.Notes,
			SaleDate:       now,
			Items:          items,
		}
		if input.SoldBy != "" {
			soldBy := input.SoldBy
			sale.SoldBy = &soldBy
		}

		if err := s.saleRepo.Create(ctx, sale); err != nil {
			return database.MapPQError(err)
		}

		// Phase 3: consume stock line by line through the adjustment
		// service. Validation already passed under the same locks, so a
		// failure here rolls back the whole sale.
		reason := "sale " + sale.BillNumber
		for _, item := range items {
			_, _, err := s.stock.Adjust(ctx, ownerID, item.BatchID, &invservice.AdjustInput{
				Type:        invrepo.TxTypeSale,
				Quantity:    item.Quantity,
				Reason:      &reason,
				SaleID:      &sale.ID,
				PerformedBy: input.SoldBy,
			})
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishSaleCompleted(ctx, sale)

	s.logger.Info().
		Str("sale_id", sale.ID).
		Str("bill_number", sale.BillNumber).
		Int("items", len(sale.Items)).
		Float64("total", sale.Total).
		Msg("sale completed")

	return sale, nil
}

// GetSale gets a sale with its items
func (s *SalesService) GetSale(ctx context.Context, ownerID, saleID string) (*repository.Sale, error) {
	return s.saleRepo.GetByID(ctx, ownerID, saleID)
}

// GetSaleByBillNumber gets a sale by its bill number
func (s *SalesService) GetSaleByBillNumber(ctx context.Context, ownerID, billNumber string) (*repository.Sale, error) {
	return s.saleRepo.GetByBillNumber(ctx, ownerID, billNumber)
}

// ListSales lists sales with filters and pagination
func (s *SalesService) ListSales(ctx context.Context, ownerID string, filter repository.SaleFilter) ([]*repository.Sale, int64, error) {
	return s.saleRepo.List(ctx, ownerID, filter)
}

// Summary aggregates sale totals over an optional date range
func (s *SalesService) Summary(ctx context.Context, ownerID string, from, to *time.Time) (*repository.SalesSummary, error) {
	return s.saleRepo.Summary(ctx, ownerID, from, to)
}

// lockSaleBatches acquires the row locks for every batch the sale touched,
// in sorted ID order. Sale creation locks in the same order, so concurrent
// create/cancel/return traffic over shared batches cannot deadlock.
func (s *SalesService) lockSaleBatches(ctx context.Context, ownerID string, sale *repository.Sale) error {
	ids := make([]string, 0, len(sale.Items))
	seen := make(map[string]bool)
	for _, item := range sale.Items {
		if !seen[item.BatchID] {
			seen[item.BatchID] = true
			ids = append(ids, item.BatchID)
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		if _, err := s.batchRepo.GetForUpdate(ctx, ownerID, id); err != nil {
			return err
		}
	}
	return nil
}

// CancelSale reverses a sale: every unreturned unit is credited back to the
// batch it was consumed from, and the sale flips to cancelled.
func (s *SalesService) CancelSale(ctx context.Context, ownerID, saleID, userID, reason string) (*repository.Sale, error) {
	var sale *repository.Sale

	err := s.db.WithTx(ctx, func(ctx context.Context) error {
		var err error
		sale, err = s.saleRepo.GetForUpdate(ctx, ownerID, saleID)
		if err != nil {
			return err
		}

		if sale.Status == repository.SaleStatusCancelled {
			return errors.Conflict("sale is already cancelled")
		}

		if err := s.lockSaleBatches(ctx, ownerID, sale); err != nil {
			return err
		}

		adjustReason := "sale " + sale.BillNumber + " cancelled"
		for _, item := range sale.Items {
			remaining := item.Quantity - item.QuantityReturned
			if remaining <= 0 {
				continue
			}

			_, _, err := s.stock.Adjust(ctx, ownerID, item.BatchID, &invservice.AdjustInput{
				Type:        invrepo.TxTypeReturn,
				Quantity:    remaining,
				Reason:      &adjustReason,
				SaleID:      &sale.ID,
				PerformedBy: userID,
			})
			if err != nil {
				return err
			}
		}

		if err := s.saleRepo.UpdateStatus(ctx, ownerID, sale.ID, repository.SaleStatusCancelled, repository.PaymentStatusCancelled); err != nil {
			return err
		}

		sale.Status = repository.SaleStatusCancelled
		sale.PaymentStatus = repository.PaymentStatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishSaleCancelled(ctx, sale, userID, reason)

	s.logger.Info().
		Str("sale_id", sale.ID).
		Str("bill_number", sale.BillNumber).
		Msg("sale cancelled")

	return sale, nil
}

// CreateReturn records a partial or full return against a sale, bounded per
// line by the quantity originally sold, and credits stock back to the
// originating batches.
func (s *SalesService) CreateReturn(ctx context.Context, ownerID, saleID string, input *CreateReturnInput) (*repository.SaleReturn, error) {
	now := time.Now()

	var (
		sale *repository.Sale
		ret  *repository.SaleReturn
	)

	err := s.db.WithTx(ctx, func(ctx context.Context) error {
		var err error
		sale, err = s.saleRepo.GetForUpdate(ctx, ownerID, saleID)
		if err != nil {
			return err
		}

		if sale.Status == repository.SaleStatusCancelled {
			return errors.Conflict("cannot return items from a cancelled sale")
		}

		if err := s.lockSaleBatches(ctx, ownerID, sale); err != nil {
			return err
		}

		itemsByID := make(map[string]*repository.SaleItem, len(sale.Items))
		for _, item := range sale.Items {
			itemsByID[item.ID] = item
		}

		adjustReason := "return against sale " + sale.BillNumber
		returnItems := make([]*repository.SaleReturnItem, 0, len(input.Items))
		var refundTotal float64

		for _, line := range input.Items {
			item, ok := itemsByID[line.SaleItemID]
			if !ok {
				return errors.NotFound("sale item")
			}

			returnable := item.Quantity - item.QuantityReturned
			if line.Quantity > returnable {
				return errors.InvalidReturn(fmt.Sprintf(
					"cannot return %d units of %s: %d sold, %d already returned",
					line.Quantity, item.MedicineName, item.Quantity, item.QuantityReturned))
			}

			if err := s.saleRepo.IncrementItemReturned(ctx, item.ID, line.Quantity); err != nil {
				return err
			}
			item.QuantityReturned += line.Quantity

			_, _, err := s.stock.Adjust(ctx, ownerID, item.BatchID, &invservice.AdjustInput{
				Type:        invrepo.TxTypeReturn,
				Quantity:    line.Quantity,
				Reason:      &adjustReason,
				SaleID:      &sale.ID,
				PerformedBy: input.ProcessedBy,
			})
			if err != nil {
				return err
			}

			// Refund at the effective per-unit price the customer paid.
			perUnit := item.LineTotal / float64(item.Quantity)
			refund := round2(perUnit * float64(line.Quantity))
			refundTotal = round2(refundTotal + refund)

			returnItems = append(returnItems, &repository.SaleReturnItem{
				SaleItemID:   item.ID,
				BatchID:      item.BatchID,
				MedicineID:   item.MedicineID,
				MedicineName: item.MedicineName,
				Quantity:     line.Quantity,
				UnitPrice:    item.UnitPrice,
				RefundAmount: refund,
			})
		}

		fullReturn := true
		for _, item := range sale.Items {
			if item.QuantityReturned < item.Quantity {
				fullReturn = false
				break
			}
		}

		period := now.Format("200601")
		seq, err := s.saleRepo.NextNumber(ctx, ownerID, repository.NumberKindReturn, period)
		if err != nil {
			return err
		}

		refundMethod := input.RefundMethod
		if refundMethod == "" {
			refundMethod = "cash"
		}

		ret = &repository.SaleReturn{
			OwnerID:      ownerID,
			ReturnNumber: repository.FormatNumber(repository.NumberKindReturn, period, seq),
			SaleID:       sale.ID,
			BillNumber:   sale.BillNumber,
			Reason:       input.Reason,
			RefundAmount: refundTotal,
			RefundMethod: refundMethod,
			FullReturn:   fullReturn,
			Items:        returnItems,
		}
		if input.ProcessedBy != "" {
			processedBy := input.ProcessedBy
			ret.ProcessedBy = &processedBy
		}

		if err := s.returnRepo.Create(ctx, ret); err != nil {
			return database.MapPQError(err)
		}

		if fullReturn {
			if err := s.saleRepo.UpdateStatus(ctx, ownerID, sale.ID, repository.SaleStatusReturned, repository.PaymentStatusRefunded); err != nil {
				return err
			}
			sale.Status = repository.SaleStatusReturned
			sale.PaymentStatus = repository.PaymentStatusRefunded
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishSaleReturned(ctx, sale, ret)

	s.logger.Info().
		Str("return_id", ret.ID).
		Str("return_number", ret.ReturnNumber).
		Str("sale_id", sale.ID).
		Bool("full_return", ret.FullReturn).
		Msg("sale return recorded")

	return ret, nil
}

// GetReturn gets a sale return with its items
func (s *SalesService) GetReturn(ctx context.Context, ownerID, returnID string) (*repository.SaleReturn, error) {
	return s.returnRepo.GetByID(ctx, ownerID, returnID)
}

// ListReturns lists returns for an owner
func (s *SalesService) ListReturns(ctx context.Context, ownerID string, page, perPage int) ([]*repository.SaleReturn, int64, error) {
	return s.returnRepo.List(ctx, ownerID, page, perPage)
}

// ListReturnsBySale lists returns recorded against one sale
func (s *SalesService) ListReturnsBySale(ctx context.Context, ownerID, saleID string) ([]*repository.SaleReturn, error) {
	return s.returnRepo.ListBySale(ctx, ownerID, saleID)
}
