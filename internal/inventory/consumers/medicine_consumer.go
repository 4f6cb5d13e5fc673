package consumers

import (
	"context"

	"github.com/pharmacore/pharmacore-backend/internal/inventory/repository"
	"github.com/pharmacore/pharmacore-backend/pkg/logger"
	"github.com/pharmacore/pharmacore-backend/pkg/messaging"
)

// MedicineEventConsumer mirrors catalog medicine events into the local cache
type MedicineEventConsumer struct {
	consumer  *messaging.Consumer
	cacheRepo *repository.MedicineCacheRepository
	logger    *logger.Logger
}

// NewMedicineEventConsumer creates a new medicine event consumer
func NewMedicineEventConsumer(rmq *messaging.RabbitMQ, cacheRepo *repository.MedicineCacheRepository, log *logger.Logger) (*MedicineEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "pharmacy-service.catalog-events", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeCatalogEvents, "catalog.medicine.#"); err != nil {
		return nil, err
	}

	c := &MedicineEventConsumer{
		consumer:  consumer,
		cacheRepo: cacheRepo,
		logger:    log,
	}

	// Created and updated carry the same payload and both upsert
	consumer.RegisterHandler(messaging.EventMedicineCreated, c.handleMedicineUpserted)
	consumer.RegisterHandler(messaging.EventMedicineUpdated, c.handleMedicineUpserted)
	consumer.RegisterHandler(messaging.EventMedicineDeleted, c.handleMedicineDeleted)

	return c, nil
}

// Start starts consuming messages
func (c *MedicineEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *MedicineEventConsumer) handleMedicineUpserted(ctx context.Context, event *messaging.Event) error {
	var data messaging.MedicineUpsertedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("medicine_id", data.MedicineID).
		Str("name", data.Name).
		Msg("received medicine upserted event")

	medicine := &repository.CachedMedicine{
		ID:   data.MedicineID,
		Name: data.Name,
	}
	if data.GenericName != "" {
		medicine.GenericName = &data.GenericName
	}
	if data.Manufacturer != "" {
		medicine.Manufacturer = &data.Manufacturer
	}
	if data.Category != "" {
		medicine.Category = &data.Category
	}
	if data.Unit != "" {
		medicine.Unit = &data.Unit
	}
	if data.DefaultPrice > 0 {
		medicine.DefaultPrice = &data.DefaultPrice
	}

	return c.cacheRepo.Set(ctx, medicine)
}

func (c *MedicineEventConsumer) handleMedicineDeleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.MedicineDeletedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("medicine_id", data.MedicineID).
		Msg("received medicine deleted event")

	return c.cacheRepo.Delete(ctx, data.MedicineID)
}
