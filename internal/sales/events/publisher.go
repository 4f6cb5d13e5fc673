package events

import (
	"context"

	"github.com/pharmacore/pharmacore-backend/internal/sales/repository"
	"github.com/pharmacore/pharmacore-backend/pkg/logger"
	"github.com/pharmacore/pharmacore-backend/pkg/messaging"
)

// SaleEventPublisher publishes sale lifecycle events
type SaleEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewSaleEventPublisher creates a new sale event publisher
func NewSaleEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*SaleEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeSaleEvents, "pharmacy-service", log)
	if err != nil {
		return nil, err
	}

	return &SaleEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

func itemSummaries(items []*repository.SaleItem) []messaging.SaleItemSummary {
	summaries := make([]messaging.SaleItemSummary, len(items))
	for i, item := range items {
		summaries[i] = messaging.SaleItemSummary{
			BatchID:      item.BatchID,
			MedicineID:   item.MedicineID,
			MedicineName: item.MedicineName,
			Quantity:     item.Quantity,
			LineTotal:    item.LineTotal,
		}
	}
	return summaries
}

// PublishSaleCompleted publishes a sale completed event
func (p *SaleEventPublisher) PublishSaleCompleted(ctx context.Context, sale *repository.Sale) {
	if p == nil {
		return
	}

	customerName := ""
	if sale.CustomerName != nil {
		customerName = *sale.CustomerName
	}
	soldBy := ""
	if sale.SoldBy != nil {
		soldBy = *sale.SoldBy
	}

	data := messaging.SaleCompletedEvent{
		OwnerID:       sale.OwnerID,
		SaleID:        sale.ID,
		BillNumber:    sale.BillNumber,
		CustomerName:  customerName,
		Items:         itemSummaries(sale.Items),
		Total:         sale.Total,
		AmountPaid:    sale.AmountPaid,
		BalanceDue:    sale.BalanceDue,
		PaymentStatus: sale.PaymentStatus,
		SoldBy:        soldBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventSaleCompleted, data); err != nil {
		p.logger.Error().Err(err).Str("sale_id", sale.ID).Msg("failed to publish sale completed event")
	}
}

// PublishSaleCancelled publishes a sale cancelled event
func (p *SaleEventPublisher) PublishSaleCancelled(ctx context.Context, sale *repository.Sale, cancelledBy, reason string) {
	if p == nil {
		return
	}

	data := messaging.SaleCancelledEvent{
		OwnerID:     sale.OwnerID,
		SaleID:      sale.ID,
		BillNumber:  sale.BillNumber,
		CancelledBy: cancelledBy,
		Reason:      reason,
	}

	if err := p.publisher.Publish(ctx, messaging.EventSaleCancelled, data); err != nil {
		p.logger.Error().Err(err).Str("sale_id", sale.ID).Msg("failed to publish sale cancelled event")
	}
}

// PublishSaleReturned publishes a sale returned event
func (p *SaleEventPublisher) PublishSaleReturned(ctx context.Context, sale *repository.Sale, ret *repository.SaleReturn) {
	if p == nil {
		return
	}

	items := make([]messaging.SaleItemSummary, len(ret.Items))
	for i, item := range ret.Items {
		items[i] = messaging.SaleItemSummary{
			BatchID:      item.BatchID,
			MedicineID:   item.MedicineID,
			MedicineName: item.MedicineName,
			Quantity:     item.Quantity,
			LineTotal:    item.RefundAmount,
		}
	}

	processedBy := ""
	if ret.ProcessedBy != nil {
		processedBy = *ret.ProcessedBy
	}

	data := messaging.SaleReturnedEvent{
		OwnerID:      ret.OwnerID,
		ReturnID:     ret.ID,
		ReturnNumber: ret.ReturnNumber,
		SaleID:       sale.ID,
		BillNumber:   sale.BillNumber,
		Items:        items,
		RefundAmount: ret.RefundAmount,
		FullReturn:   ret.FullReturn,
		ProcessedBy:  processedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventSaleReturned, data); err != nil {
		p.logger.Error().Err(err).Str("return_id", ret.ID).Msg("failed to publish sale returned event")
	}
}
