package events

import (
	"context"

	"github.com/pharmacore/pharmacore-backend/internal/intake/repository"
	"github.com/pharmacore/pharmacore-backend/pkg/logger"
	"github.com/pharmacore/pharmacore-backend/pkg/messaging"
)

// IntakeEventPublisher publishes purchase order lifecycle events
type IntakeEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewIntakeEventPublisher creates a new intake event publisher
func NewIntakeEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*IntakeEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeIntakeEvents, "pharmacy-service", log)
	if err != nil {
		return nil, err
	}

	return &IntakeEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishIntakeReceived publishes an intake received event
func (p *IntakeEventPublisher) PublishIntakeReceived(ctx context.Context, order *repository.PurchaseOrder) {
	if p == nil {
		return
	}

	data := messaging.IntakeReceivedEvent{
		OwnerID:     order.OwnerID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Supplier:    order.Supplier,
		LineCount:   len(order.Lines),
	}

	if err := p.publisher.Publish(ctx, messaging.EventIntakeReceived, data); err != nil {
		p.logger.Error().Err(err).Str("order_id", order.ID).Msg("failed to publish intake received event")
	}
}

// PublishIntakePosted publishes an intake posted event
func (p *IntakeEventPublisher) PublishIntakePosted(ctx context.Context, order *repository.PurchaseOrder, batchIDs []string, postedBy string) {
	if p == nil {
		return
	}

	data := messaging.IntakePostedEvent{
		OwnerID:     order.OwnerID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		BatchIDs:    batchIDs,
		PostedBy:    postedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventIntakePosted, data); err != nil {
		p.logger.Error().Err(err).Str("order_id", order.ID).Msg("failed to publish intake posted event")
	}
}
