package catalog

import (
	"context"

	"github.com/pharmacore/pharmacore-backend/internal/inventory/repository"
	"github.com/pharmacore/pharmacore-backend/pkg/errors"
	"github.com/pharmacore/pharmacore-backend/pkg/logger"
)

// Resolver resolves medicine identities, preferring the local cache and
// falling back to the catalog service. Remote hits are written through to
// the cache so the next lookup stays local.
type Resolver struct {
	cache  *repository.MedicineCacheRepository
	client *Client
	logger *logger.Logger
}

// NewResolver creates a new medicine resolver. The client may be nil, in
// which case resolution is cache-only.
func NewResolver(cache *repository.MedicineCacheRepository, client *Client, log *logger.Logger) *Resolver {
	return &Resolver{
		cache:  cache,
		client: client,
		logger: log,
	}
}

// Resolve returns the medicine for the given ID
func (r *Resolver) Resolve(ctx context.Context, medicineID string) (*repository.CachedMedicine, error) {
	cached, err := r.cache.Get(ctx, medicineID)
	if err == nil {
		return cached, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}

	if r.client == nil {
		return nil, errors.NotFound("medicine")
	}

	medicine, err := r.client.GetMedicine(ctx, medicineID)
	if err != nil {
		return nil, err
	}

	cached = &repository.CachedMedicine{
		ID:   medicine.ID,
		Name: medicine.Name,
	}
	if medicine.GenericName != "" {
		cached.GenericName = &medicine.GenericName
	}
	if medicine.Manufacturer != "" {
		cached.Manufacturer = &medicine.Manufacturer
	}
	if medicine.Category != "" {
		cached.Category = &medicine.Category
	}
	if medicine.Unit != "" {
		cached.Unit = &medicine.Unit
	}
	if medicine.DefaultPrice > 0 {
		cached.DefaultPrice = &medicine.DefaultPrice
	}

	if err := r.cache.Set(ctx, cached); err != nil {
		r.logger.Warn().Err(err).Str("medicine_id", medicineID).Msg("failed to write medicine to cache")
	}

	return cached, nil
}

// Search searches the local cache
func (r *Resolver) Search(ctx context.Context, term string, limit int) ([]*repository.CachedMedicine, error) {
	return r.cache.Search(ctx, term, limit)
}
