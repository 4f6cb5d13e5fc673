package service

import (
	"context"
	"time"

	"github.com/pharmacore/pharmacore-backend/internal/catalog"
	"github.com/pharmacore/pharmacore-backend/internal/intake/events"
	"github.com/pharmacore/pharmacore-backend/internal/intake/repository"
	invrepo "github.com/pharmacore/pharmacore-backend/internal/inventory/repository"
	invservice "github.com/pharmacore/pharmacore-backend/internal/inventory/service"
	"github.com/pharmacore/pharmacore-backend/pkg/database"
	"github.com/pharmacore/pharmacore-backend/pkg/errors"
	"github.com/pharmacore/pharmacore-backend/pkg/logger"
)

// IntakeService manages supplier purchase orders. Lines enter as ordered,
// are marked received and verified by a human, and only verified received
// lines are posted to stock. Anything unverified never reaches the ledger.
type IntakeService struct {
	db        *database.DB
	orderRepo *repository.OrderRepository
	batchRepo *invrepo.BatchRepository
	stock     *invservice.StockService
	resolver  *catalog.Resolver
	publisher *events.IntakeEventPublisher
	logger    *logger.Logger
}

// NewIntakeService creates a new intake service
func NewIntakeService(
	db *database.DB,
	orderRepo *repository.OrderRepository,
	batchRepo *invrepo.BatchRepository,
	stock *invservice.StockService,
	resolver *catalog.Resolver,
	publisher *events.IntakeEventPublisher,
	log *logger.Logger,
) *IntakeService {
	return &IntakeService{
		db:        db,
		orderRepo: orderRepo,
		batchRepo: batchRepo,
		stock:     stock,
		resolver:  resolver,
		publisher: publisher,
		logger:    log,
	}
}

// OrderLineInput is one requested order line
type OrderLineInput struct {
	MedicineID   string    `json:"medicine_id" validate:"required,uuid"`
	MedicineName string    `json:"medicine_name"`
	BatchNumber  string    `json:"batch_number" validate:"required,max=100"`
	ExpiryDate   time.Time `json:"expiry_date" validate:"required"`
	Quantity     int       `json:"quantity" validate:"required,gt=0"`
	UnitPrice    float64   `json:"unit_price" validate:"gte=0"`
	CostPrice    *float64  `json:"cost_price,omitempty" validate:"omitempty,gte=0"`
}

// CreateOrderInput carries a purchase order request
type CreateOrderInput struct {
	Supplier     string           `json:"supplier" validate:"required,max=255"`
	Notes        *string          `json:"notes,omitempty"`
	ExpectedDate *time.Time       `json:"expected_date,omitempty"`
	Lines        []OrderLineInput `json:"lines" validate:"required,min=1,dive"`
	CreatedBy    string           `json:"-"`
}

// ReceiptLineInput records what actually arrived for one line
type ReceiptLineInput struct {
	LineID           string `json:"line_id" validate:"required,uuid"`
	QuantityReceived int    `json:"quantity_received" validate:"gte=0"`
	Verified         bool   `json:"verified"`
}

// ReceiveOrderInput carries a delivery receipt
type ReceiveOrderInput struct {
	Lines []ReceiptLineInput `json:"lines" validate:"required,min=1,dive"`
}

// CreateOrder creates a draft purchase order
func (s *IntakeService) CreateOrder(ctx context.Context, ownerID string, input *CreateOrderInput) (*repository.PurchaseOrder, error) {
	now := time.Now()

	lines := make([]*repository.PurchaseOrderLine, len(input.Lines))
	for i, line := range input.Lines {
		if !line.ExpiryDate.After(now) {
			return nil, errors.BadRequest("line expiry date must be in the future")
		}

		medicineName := line.MedicineName
		if medicineName == "" {
			medicine, err := s.resolver.Resolve(ctx, line.MedicineID)
			if err != nil {
				return nil, err
			}
			medicineName = medicine.Name
		}

		lines[i] = &repository.PurchaseOrderLine{
			MedicineID:      line.MedicineID,
			MedicineName:    medicineName,
			BatchNumber:     line.BatchNumber,
			ExpiryDate:      line.ExpiryDate,
			QuantityOrdered: line.Quantity,
			UnitPrice:       line.UnitPrice,
			CostPrice:       line.CostPrice,
		}
	}

	var order *repository.PurchaseOrder
	err := s.db.WithTx(ctx, func(ctx context.Context) error {
		period := now.Format("200601")
		seq, err := s.orderRepo.NextNumber(ctx, ownerID, period)
		if err != nil {
			return err
		}

		order = &repository.PurchaseOrder{
			OwnerID:      ownerID,
			OrderNumber:  repository.FormatOrderNumber(period, seq),
			Supplier:     input.Supplier,
			Status:       repository.OrderStatusDraft,
			Notes:        input.Notes,
			ExpectedDate: input.ExpectedDate,
			Lines:        lines,
		}
		if input.CreatedBy != "" {
			createdBy := input.CreatedBy
			order.CreatedBy = &createdBy
		}

		if err := s.orderRepo.Create(ctx, order); err != nil {
			return database.MapPQError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_id", order.ID).
		Str("order_number", order.OrderNumber).
		Int("lines", len(order.Lines)).
		Msg("purchase order created")

	return order, nil
}

// GetOrder gets an order with its lines
func (s *IntakeService) GetOrder(ctx context.Context, ownerID, orderID string) (*repository.PurchaseOrder, error) {
	return s.orderRepo.GetByID(ctx, ownerID, orderID)
}

// ListOrders lists orders with filters and pagination
func (s *IntakeService) ListOrders(ctx context.Context, ownerID string, filter repository.OrderFilter) ([]*repository.PurchaseOrder, int64, error) {
	return s.orderRepo.List(ctx, ownerID, filter)
}

// ReceiveOrder records delivered quantities and per-line verification for a
// draft or previously received order.
func (s *IntakeService) ReceiveOrder(ctx context.Context, ownerID, orderID string, input *ReceiveOrderInput) (*repository.PurchaseOrder, error) {
	var order *repository.PurchaseOrder

	err := s.db.WithTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orderRepo.GetForUpdate(ctx, ownerID, orderID)
		if err != nil {
			return err
		}

		if order.Status == repository.OrderStatusPosted {
			return errors.Conflict("order has already been posted to stock")
		}
		if order.Status == repository.OrderStatusCancelled {
			return errors.Conflict("order is cancelled")
		}

		linesByID := make(map[string]*repository.PurchaseOrderLine, len(order.Lines))
		for _, line := range order.Lines {
			linesByID[line.ID] = line
		}

		for _, receipt := range input.Lines {
			line, ok := linesByID[receipt.LineID]
			if !ok {
				return errors.NotFound("order line")
			}

			if err := s.orderRepo.UpdateLineReceipt(ctx, order.ID, line.ID, receipt.QuantityReceived, receipt.Verified); err != nil {
				return err
			}
			line.QuantityReceived = receipt.QuantityReceived
			line.Verified = receipt.Verified
		}

		now := time.Now()
		if err := s.orderRepo.UpdateStatus(ctx, ownerID, order.ID, repository.OrderStatusReceived, &now, nil); err != nil {
			return err
		}
		order.Status = repository.OrderStatusReceived
		order.ReceivedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishIntakeReceived(ctx, order)

	return order, nil
}

// PostOrder posts the verified received lines of an order to stock. A line
// whose batch identity already exists becomes a purchase adjustment on that
// batch, otherwise a new batch is registered. Unverified lines are skipped
// and never touch the ledger.
func (s *IntakeService) PostOrder(ctx context.Context, ownerID, orderID, userID string) (*repository.PurchaseOrder, error) {
	var (
		order    *repository.PurchaseOrder
		batchIDs []string
	)

	err := s.db.WithTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orderRepo.GetForUpdate(ctx, ownerID, orderID)
		if err != nil {
			return err
		}

		if order.Status != repository.OrderStatusReceived {
			return errors.Conflict("only received orders can be posted to stock")
		}

		reference := order.OrderNumber

		for _, line := range order.Lines {
			if !line.Verified || line.QuantityReceived <= 0 {
				continue
			}

			batch, err := s.batchRepo.GetByIdentity(ctx, ownerID, line.MedicineID, line.BatchNumber)
			switch {
			case err == nil:
				reason := "purchase order " + order.OrderNumber
				_, _, err := s.stock.Adjust(ctx, ownerID, batch.ID, &invservice.AdjustInput{
					Type:            invrepo.TxTypePurchase,
					Quantity:        line.QuantityReceived,
					Reason:          &reason,
					ReferenceNumber: &reference,
					PerformedBy:     userID,
				})
				if err != nil {
					return err
				}

			case errors.IsNotFound(err):
				purchasePrice := line.UnitPrice
				if line.CostPrice != nil {
					purchasePrice = *line.CostPrice
				}

				batch, err = s.stock.CreateBatch(ctx, ownerID, userID, &invservice.CreateBatchInput{
					MedicineID:      line.MedicineID,
					MedicineName:    line.MedicineName,
					BatchNumber:     line.BatchNumber,
					ExpiryDate:      line.ExpiryDate,
					Quantity:        line.QuantityReceived,
					PurchasePrice:   purchasePrice,
					SellingPrice:    line.UnitPrice,
					Supplier:        &order.Supplier,
					ReferenceNumber: &reference,
				})
				if err != nil {
					return err
				}

			default:
				return err
			}

			if err := s.orderRepo.SetLineBatch(ctx, line.ID, batch.ID); err != nil {
				return err
			}
			lineBatchID := batch.ID
			line.BatchID = &lineBatchID
			batchIDs = append(batchIDs, batch.ID)
		}

		if len(batchIDs) == 0 {
			return errors.BadRequest("order has no verified received lines to post")
		}

		now := time.Now()
		if err := s.orderRepo.UpdateStatus(ctx, ownerID, order.ID, repository.OrderStatusPosted, nil, &now); err != nil {
			return err
		}
		order.Status = repository.OrderStatusPosted
		order.PostedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishIntakePosted(ctx, order, batchIDs, userID)

	s.logger.Info().
		Str("order_id", order.ID).
		Str("order_number", order.OrderNumber).
		Int("batches", len(batchIDs)).
		Msg("purchase order posted to stock")

	return order, nil
}

// CancelOrder cancels an unposted order
func (s *IntakeService) CancelOrder(ctx context.Context, ownerID, orderID string) (*repository.PurchaseOrder, error) {
	var order *repository.PurchaseOrder

	err := s.db.WithTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orderRepo.GetForUpdate(ctx, ownerID, orderID)
		if err != nil {
			return err
		}

		if order.Status == repository.OrderStatusPosted {
			return errors.Conflict("a posted order cannot be cancelled")
		}
		if order.Status == repository.OrderStatusCancelled {
			return errors.Conflict("order is already cancelled")
		}

		if err := s.orderRepo.UpdateStatus(ctx, ownerID, order.ID, repository.OrderStatusCancelled, nil, nil); err != nil {
			return err
		}
		order.Status = repository.OrderStatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}
