package events

import (
	"context"
	"time"

	"github.com/pharmacore/pharmacore-backend/internal/inventory/repository"
	"github.com/pharmacore/pharmacore-backend/pkg/logger"
	"github.com/pharmacore/pharmacore-backend/pkg/messaging"
)

// StockEventPublisher publishes stock-related events
type StockEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewStockEventPublisher creates a new stock event publisher
func NewStockEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*StockEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeStockEvents, "pharmacy-service", log)
	if err != nil {
		return nil, err
	}

	return &StockEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishStockAdjusted publishes a stock adjusted event
func (p *StockEventPublisher) PublishStockAdjusted(ctx context.Context, batch *repository.InventoryBatch, tx *repository.StockTransaction) {
	if p == nil {
		return
	}

	reason := ""
	if tx.Reason != nil {
		reason = *tx.Reason
	}

	data := messaging.StockAdjustedEvent{
		OwnerID:          batch.OwnerID,
		BatchID:          batch.ID,
		MedicineID:       batch.MedicineID,
		MedicineName:     batch.MedicineName,
		TransactionID:    tx.ID,
		TransactionType:  tx.TransactionType,
		Quantity:         tx.QuantityDelta,
		PreviousQuantity: tx.PreviousQuantity,
		NewQuantity:      tx.NewQuantity,
		NewStatus:        batch.Status,
		PerformedBy:      tx.PerformedBy,
		Reason:           reason,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockAdjusted, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to publish stock adjusted event")
	}
}

// PublishBatchCreated publishes a batch created event
func (p *StockEventPublisher) PublishBatchCreated(ctx context.Context, batch *repository.InventoryBatch) {
	if p == nil {
		return
	}

	data := messaging.BatchCreatedEvent{
		OwnerID:      batch.OwnerID,
		BatchID:      batch.ID,
		MedicineID:   batch.MedicineID,
		MedicineName: batch.MedicineName,
		BatchNumber:  batch.BatchNumber,
		Quantity:     batch.ReceivedQuantity,
		ExpiryDate:   batch.ExpiryDate,
	}

	if err := p.publisher.Publish(ctx, messaging.EventBatchCreated, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to publish batch created event")
	}
}

// PublishBatchExpiring publishes a batch expiring event
func (p *StockEventPublisher) PublishBatchExpiring(ctx context.Context, batch *repository.InventoryBatch, now time.Time) {
	if p == nil {
		return
	}

	data := messaging.BatchExpiringEvent{
		OwnerID:      batch.OwnerID,
		BatchID:      batch.ID,
		MedicineID:   batch.MedicineID,
		MedicineName: batch.MedicineName,
		BatchNumber:  batch.BatchNumber,
		ExpiryDate:   batch.ExpiryDate,
		DaysUntil:    batch.DaysUntilExpiry(now),
		Available:    batch.Available(),
	}

	if err := p.publisher.Publish(ctx, messaging.EventBatchExpiring, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to publish batch expiring event")
	}
}

// PublishAlertGenerated publishes an alert generated event
func (p *StockEventPublisher) PublishAlertGenerated(ctx context.Context, batch *repository.InventoryBatch, alertType, message string) {
	if p == nil {
		return
	}

	data := messaging.AlertGeneratedEvent{
		OwnerID:      batch.OwnerID,
		BatchID:      batch.ID,
		MedicineID:   batch.MedicineID,
		MedicineName: batch.MedicineName,
		AlertType:    alertType,
		Message:      message,
		Available:    batch.Available(),
	}

	if err := p.publisher.Publish(ctx, messaging.EventAlertGenerated, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to publish alert generated event")
	}
}
