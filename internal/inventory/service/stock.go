package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pharmacore/pharmacore-backend/internal/catalog"
	"github.com/pharmacore/pharmacore-backend/internal/inventory/events"
	"github.com/pharmacore/pharmacore-backend/internal/inventory/repository"
	"github.com/pharmacore/pharmacore-backend/pkg/config"
	"github.com/pharmacore/pharmacore-backend/pkg/database"
	"github.com/pharmacore/pharmacore-backend/pkg/errors"
	"github.com/pharmacore/pharmacore-backend/pkg/logger"
)

// StockService owns batch lifecycle and the stock adjustment path. Every
// counter mutation goes through Adjust so the ledger stays complete.
type StockService struct {
	db        *database.DB
	batchRepo *repository.BatchRepository
	txRepo    *repository.TransactionRepository
	resolver  *catalog.Resolver
	publisher *events.StockEventPublisher
	policy    config.InventoryConfig
	logger    *logger.Logger
}

// NewStockService creates a new stock service
func NewStockService(
	db *database.DB,
	batchRepo *repository.BatchRepository,
	txRepo *repository.TransactionRepository,
	resolver *catalog.Resolver,
	publisher *events.StockEventPublisher,
	policy config.InventoryConfig,
	log *logger.Logger,
) *StockService {
	return &StockService{
		db:        db,
		batchRepo: batchRepo,
		txRepo:    txRepo,
		resolver:  resolver,
		publisher: publisher,
		policy:    policy,
		logger:    log,
	}
}

// CreateBatchInput carries the attributes for registering a new batch
type CreateBatchInput struct {
	MedicineID      string     `json:"medicine_id" validate:"required,uuid"`
	MedicineName    string     `json:"medicine_name"`
	BatchNumber     string     `json:"batch_number" validate:"required,max=100"`
	ExpiryDate      time.Time  `json:"expiry_date" validate:"required"`
	ManufactureDate *time.Time `json:"manufacture_date,omitempty"`
	Quantity        int        `json:"quantity" validate:"required,gt=0"`
	PurchasePrice   float64    `json:"purchase_price" validate:"gte=0"`
	SellingPrice    float64    `json:"selling_price" validate:"gte=0"`
	MRP             *float64   `json:"mrp,omitempty"`
	ReorderLevel    *int       `json:"reorder_level,omitempty" validate:"omitempty,gte=0"`
	ExpiryAlertDays *int       `json:"expiry_alert_days,omitempty" validate:"omitempty,gt=0"`
	Supplier        *string    `json:"supplier,omitempty"`
	Location        *string    `json:"location,omitempty"`
	ReferenceNumber *string    `json:"reference_number,omitempty"`
}

// UpdateBatchInput carries the editable batch attributes. Counters are not
// editable here, only Adjust changes them.
type UpdateBatchInput struct {
	ExpiryDate      *time.Time `json:"expiry_date,omitempty"`
	ManufactureDate *time.Time `json:"manufacture_date,omitempty"`
	PurchasePrice   *float64   `json:"purchase_price,omitempty" validate:"omitempty,gte=0"`
	SellingPrice    *float64   `json:"selling_price,omitempty" validate:"omitempty,gte=0"`
	MRP             *float64   `json:"mrp,omitempty"`
	ReorderLevel    *int       `json:"reorder_level,omitempty" validate:"omitempty,gte=0"`
	ExpiryAlertDays *int       `json:"expiry_alert_days,omitempty" validate:"omitempty,gt=0"`
	Supplier        *string    `json:"supplier,omitempty"`
	Location        *string    `json:"location,omitempty"`
}

// AdjustInput describes one stock adjustment
type AdjustInput struct {
	Type            string  `json:"type" validate:"required,oneof=purchase sale damage return adjustment"`
	Quantity        int     `json:"quantity" validate:"required"`
	Reason          *string `json:"reason,omitempty"`
	ReferenceNumber *string `json:"reference_number,omitempty"`
	SaleID          *string `json:"-"`
	PerformedBy     string  `json:"-"`
}

// CreateBatch registers a new batch and records the initial stock as a
// purchase ledger entry.
func (s *StockService) CreateBatch(ctx context.Context, ownerID, userID string, input *CreateBatchInput) (*repository.InventoryBatch, error) {
	now := time.Now()

	if !input.ExpiryDate.After(now) {
		return nil, errors.BadRequest("expiry date must be in the future")
	}
	if input.ManufactureDate != nil {
		if input.ManufactureDate.After(now) {
			return nil, errors.BadRequest("manufacture date cannot be in the future")
		}
		if !input.ManufactureDate.Before(input.ExpiryDate) {
			return nil, errors.BadRequest("manufacture date must be before expiry date")
		}
	}

	medicineName := input.MedicineName
	if medicineName == "" {
		medicine, err := s.resolver.Resolve(ctx, input.MedicineID)
		if err != nil {
			return nil, err
		}
		medicineName = medicine.Name
	}

	reorderLevel := s.policy.DefaultReorderLevel
	if input.ReorderLevel != nil {
		reorderLevel = *input.ReorderLevel
	}
	alertDays := s.policy.DefaultExpiryAlertDays
	if input.ExpiryAlertDays != nil {
		alertDays = *input.ExpiryAlertDays
	}

	batch := &repository.InventoryBatch{
		OwnerID:          ownerID,
		MedicineID:       input.MedicineID,
		MedicineName:     medicineName,
		BatchNumber:      input.BatchNumber,
		ExpiryDate:       input.ExpiryDate,
		ManufactureDate:  input.ManufactureDate,
		ReceivedQuantity: input.Quantity,
		PurchasePrice:    input.PurchasePrice,
		SellingPrice:     input.SellingPrice,
		MRP:              input.MRP,
		ReorderLevel:     reorderLevel,
		ExpiryAlertDays:  alertDays,
		IsActive:         true,
	}
	batch.Status = batch.DeriveStatus(now)
	batch.Supplier = input.Supplier
	batch.Location = input.Location

	var entry *repository.StockTransaction
	err := s.db.WithTx(ctx, func(ctx context.Context) error {
		if err := s.batchRepo.Create(ctx, batch); err != nil {
			return database.MapPQError(err)
		}

		entry = &repository.StockTransaction{
			OwnerID:          ownerID,
			BatchID:          batch.ID,
			MedicineID:       batch.MedicineID,
			TransactionType:  repository.TxTypePurchase,
			QuantityDelta:    input.Quantity,
			PreviousQuantity: 0,
			NewQuantity:      input.Quantity,
			ReferenceNumber:  input.ReferenceNumber,
			PerformedBy:      userID,
		}
		return s.txRepo.Insert(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	batch.Enrich(now)

	database.AfterCommit(ctx, func() {
		s.publisher.PublishBatchCreated(ctx, batch)
	})

	s.logger.Info().
		Str("batch_id", batch.ID).
		Str("medicine_id", batch.MedicineID).
		Int("quantity", input.Quantity).
		Msg("batch created")

	return batch, nil
}

// GetBatch gets a batch by ID
func (s *StockService) GetBatch(ctx context.Context, ownerID, batchID string) (*repository.InventoryBatch, error) {
	batch, err := s.batchRepo.GetByID(ctx, ownerID, batchID)
	if err != nil {
		return nil, err
	}
	batch.Enrich(time.Now())
	return batch, nil
}

// ListBatches lists batches with filters and pagination
func (s *StockService) ListBatches(ctx context.Context, ownerID string, filter repository.BatchFilter) ([]*repository.InventoryBatch, int64, error) {
	batches, total, err := s.batchRepo.List(ctx, ownerID, filter)
	if err != nil {
		return nil, 0, err
	}

	now := time.Now()
	for _, batch := range batches {
		batch.Enrich(now)
	}
	return batches, total, nil
}

// UpdateBatch updates the editable batch attributes and recomputes status,
// since reorder level and expiry changes can move the batch across alert
// thresholds.
func (s *StockService) UpdateBatch(ctx context.Context, ownerID, batchID string, input *UpdateBatchInput) (*repository.InventoryBatch, error) {
	var batch *repository.InventoryBatch

	err := s.db.WithTx(ctx, func(ctx context.Context) error {
		var err error
		batch, err = s.batchRepo.GetForUpdate(ctx, ownerID, batchID)
		if err != nil {
			return err
		}

		if input.ExpiryDate != nil {
			batch.ExpiryDate = *input.ExpiryDate
		}
		if input.ManufactureDate != nil {
			batch.ManufactureDate = input.ManufactureDate
		}
		if batch.ManufactureDate != nil && !batch.ManufactureDate.Before(batch.ExpiryDate) {
			return errors.BadRequest("manufacture date must be before expiry date")
		}
		if input.PurchasePrice != nil {
			batch.PurchasePrice = *input.PurchasePrice
		}
		if input.SellingPrice != nil {
			batch.SellingPrice = *input.SellingPrice
		}
		if input.MRP != nil {
			batch.MRP = input.MRP
		}
		if input.ReorderLevel != nil {
			batch.ReorderLevel = *input.ReorderLevel
		}
		if input.ExpiryAlertDays != nil {
			batch.ExpiryAlertDays = *input.ExpiryAlertDays
		}
		if input.Supplier != nil {
			batch.Supplier = input.Supplier
		}
		if input.Location != nil {
			batch.Location = input.Location
		}

		batch.Status = batch.DeriveStatus(time.Now())
		return s.batchRepo.Update(ctx, batch)
	})
	if err != nil {
		return nil, err
	}

	batch.Enrich(time.Now())
	return batch, nil
}

// DeleteBatch soft-deletes a batch
func (s *StockService) DeleteBatch(ctx context.Context, ownerID, batchID string) error {
	return s.batchRepo.Deactivate(ctx, ownerID, batchID)
}

// Adjust applies one stock adjustment to a batch. The batch row is locked,
// the per-type rule is validated against the locked counters, and the
// counter update, status recompute and ledger append commit together.
// Returns the updated batch and the appended ledger entry.
func (s *StockService) Adjust(ctx context.Context, ownerID, batchID string, input *AdjustInput) (*repository.InventoryBatch, *repository.StockTransaction, error) {
	var (
		batch *repository.InventoryBatch
		entry *repository.StockTransaction
	)

	err := s.db.WithTx(ctx, func(ctx context.Context) error {
		var err error
		batch, err = s.batchRepo.GetForUpdate(ctx, ownerID, batchID)
		if err != nil {
			return err
		}

		entry, err = applyAdjustment(batch, input)
		if err != nil {
			return err
		}

		batch.Status = batch.DeriveStatus(time.Now())

		if err := s.batchRepo.UpdateCounters(ctx, batch); err != nil {
			return err
		}
		return s.txRepo.Insert(ctx, entry)
	})
	if err != nil {
		return nil, nil, err
	}

	batch.Enrich(time.Now())

	// When Adjust joined a caller's transaction the publish waits for that
	// outer commit, so a later rollback cannot leave a phantom event.
	database.AfterCommit(ctx, func() {
		s.publisher.PublishStockAdjusted(ctx, batch, entry)
	})

	s.logger.Info().
		Str("batch_id", batch.ID).
		Str("type", input.Type).
		Int("quantity", input.Quantity).
		Str("status", batch.Status).
		Msg("stock adjusted")

	return batch, entry, nil
}

// applyAdjustment validates one adjustment against the batch counters and
// mutates them in memory. Each type touches exactly one counter, and the
// returned ledger entry records that counter's before and after values.
func applyAdjustment(batch *repository.InventoryBatch, input *AdjustInput) (*repository.StockTransaction, error) {
	entry := &repository.StockTransaction{
		OwnerID:         batch.OwnerID,
		BatchID:         batch.ID,
		MedicineID:      batch.MedicineID,
		TransactionType: input.Type,
		Reason:          input.Reason,
		ReferenceNumber: input.ReferenceNumber,
		SaleID:          input.SaleID,
		PerformedBy:     input.PerformedBy,
	}

	switch input.Type {
	case repository.TxTypePurchase:
		if input.Quantity <= 0 {
			return nil, errors.InvalidAdjustment("purchase quantity must be positive")
		}
		entry.PreviousQuantity = batch.ReceivedQuantity
		batch.ReceivedQuantity += input.Quantity
		entry.QuantityDelta = input.Quantity
		entry.NewQuantity = batch.ReceivedQuantity

	case repository.TxTypeSale:
		if input.Quantity <= 0 {
			return nil, errors.InvalidAdjustment("sale quantity must be positive")
		}
		if input.Quantity > batch.Available() {
			return nil, errors.InsufficientStock(batch.MedicineName, input.Quantity, batch.Available())
		}
		entry.PreviousQuantity = batch.SoldQuantity
		batch.SoldQuantity += input.Quantity
		entry.QuantityDelta = input.Quantity
		entry.NewQuantity = batch.SoldQuantity

	case repository.TxTypeDamage:
		if input.Quantity <= 0 {
			return nil, errors.InvalidAdjustment("damage quantity must be positive")
		}
		if batch.DamagedQuantity+input.Quantity > batch.ReceivedQuantity-batch.SoldQuantity {
			return nil, errors.InsufficientStock(batch.MedicineName, input.Quantity, batch.Available())
		}
		entry.PreviousQuantity = batch.DamagedQuantity
		batch.DamagedQuantity += input.Quantity
		entry.QuantityDelta = input.Quantity
		entry.NewQuantity = batch.DamagedQuantity

	case repository.TxTypeReturn:
		if input.Quantity <= 0 {
			return nil, errors.InvalidAdjustment("return quantity must be positive")
		}
		// Free-form returns clamp soldQuantity at zero. The ledger records
		// the delta actually applied so replay stays exact.
		applied := input.Quantity
		if applied > batch.SoldQuantity {
			applied = batch.SoldQuantity
		}
		entry.PreviousQuantity = batch.SoldQuantity
		batch.SoldQuantity -= applied
		entry.QuantityDelta = -applied
		entry.NewQuantity = batch.SoldQuantity

	case repository.TxTypeAdjustment:
		if input.Quantity == 0 {
			return nil, errors.InvalidAdjustment("adjustment quantity cannot be zero")
		}
		next := batch.ReceivedQuantity + input.Quantity
		if next < 0 {
			return nil, errors.InvalidAdjustment("adjustment would make received quantity negative")
		}
		if next < batch.SoldQuantity+batch.DamagedQuantity {
			return nil, errors.InvalidAdjustment(fmt.Sprintf(
				"adjustment would leave received quantity %d below sold plus damaged %d",
				next, batch.SoldQuantity+batch.DamagedQuantity))
		}
		entry.PreviousQuantity = batch.ReceivedQuantity
		batch.ReceivedQuantity = next
		entry.QuantityDelta = input.Quantity
		entry.NewQuantity = batch.ReceivedQuantity

	default:
		return nil, errors.BadRequest("unknown adjustment type: " + input.Type)
	}

	return entry, nil
}

// ListTransactions lists ledger entries
func (s *StockService) ListTransactions(ctx context.Context, ownerID string, filter repository.TransactionFilter) ([]*repository.StockTransaction, int64, error) {
	return s.txRepo.List(ctx, ownerID, filter)
}

// Alert projections. Status is maintained on every write, so these read
// the stored column directly.

// LowStock returns batches at or under their reorder level
func (s *StockService) LowStock(ctx context.Context, ownerID string) ([]*repository.InventoryBatch, error) {
	return s.listByStatus(ctx, ownerID, repository.StatusLowStock)
}

// NearExpiry returns batches inside their expiry alert window. When days is
// positive the stored window is overridden with an explicit horizon.
func (s *StockService) NearExpiry(ctx context.Context, ownerID string, days int) ([]*repository.InventoryBatch, error) {
	if days > 0 {
		batches, err := s.batchRepo.ListExpiringWithin(ctx, ownerID, days)
		if err != nil {
			return nil, err
		}
		now := time.Now()
		for _, batch := range batches {
			batch.Enrich(now)
		}
		return batches, nil
	}
	return s.listByStatus(ctx, ownerID, repository.StatusNearExpiry)
}

// Expired returns batches past their expiry date with stock remaining
func (s *StockService) Expired(ctx context.Context, ownerID string) ([]*repository.InventoryBatch, error) {
	return s.listByStatus(ctx, ownerID, repository.StatusExpired)
}

// OutOfStock returns batches with nothing left to sell
func (s *StockService) OutOfStock(ctx context.Context, ownerID string) ([]*repository.InventoryBatch, error) {
	return s.listByStatus(ctx, ownerID, repository.StatusOutOfStock)
}

func (s *StockService) listByStatus(ctx context.Context, ownerID, status string) ([]*repository.InventoryBatch, error) {
	batches, err := s.batchRepo.ListByStatus(ctx, ownerID, status)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for _, batch := range batches {
		batch.Enrich(now)
	}
	return batches, nil
}

// StockSummary aggregates inventory counts and value for dashboards
func (s *StockService) StockSummary(ctx context.Context, ownerID string) (*repository.StockSummary, error) {
	return s.batchRepo.Summary(ctx, ownerID)
}
