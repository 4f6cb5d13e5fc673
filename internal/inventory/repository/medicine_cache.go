package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pharmacore/pharmacore-backend/pkg/database"
	"github.com/pharmacore/pharmacore-backend/pkg/errors"
)

// CachedMedicine is a local projection of the catalog service's medicine
// record, kept fresh by the catalog event consumer.
type CachedMedicine struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	GenericName  *string   `db:"generic_name" json:"generic_name,omitempty"`
	Manufacturer *string   `db:"manufacturer" json:"manufacturer,omitempty"`
	Category     *string   `db:"category" json:"category,omitempty"`
	Unit         *string   `db:"unit" json:"unit,omitempty"`
	DefaultPrice *float64  `db:"default_price" json:"default_price,omitempty"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// MedicineCacheRepository handles medicine cache persistence
type MedicineCacheRepository struct {
	db *database.DB
}

// NewMedicineCacheRepository creates a new medicine cache repository
func NewMedicineCacheRepository(db *database.DB) *MedicineCacheRepository {
	return &MedicineCacheRepository{db: db}
}

// Set creates or updates a cached medicine
func (r *MedicineCacheRepository) Set(ctx context.Context, medicine *CachedMedicine) error {
	query := `
		INSERT INTO medicine_cache (id, name, generic_name, manufacturer, category, unit, default_price, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (id)
		DO UPDATE SET name = $2, generic_name = $3, manufacturer = $4, category = $5, unit = $6, default_price = $7, updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		medicine.ID, medicine.Name, medicine.GenericName, medicine.Manufacturer,
		medicine.Category, medicine.Unit, medicine.DefaultPrice,
	)
	return err
}

// Get gets a cached medicine by ID
func (r *MedicineCacheRepository) Get(ctx context.Context, medicineID string) (*CachedMedicine, error) {
	var medicine CachedMedicine
	query := `SELECT * FROM medicine_cache WHERE id = $1`
	if err := r.db.GetContext(ctx, &medicine, query, medicineID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("medicine")
		}
		return nil, err
	}
	return &medicine, nil
}

// Search finds cached medicines by name prefix or substring
func (r *MedicineCacheRepository) Search(ctx context.Context, term string, limit int) ([]*CachedMedicine, error) {
	if limit < 1 {
		limit = 20
	}

	medicines := make([]*CachedMedicine, 0)
	query := `
		SELECT * FROM medicine_cache
		WHERE name ILIKE $1 OR generic_name ILIKE $1
		ORDER BY name
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &medicines, query, "%"+term+"%", limit); err != nil {
		return nil, err
	}
	return medicines, nil
}

// Delete deletes a cached medicine
func (r *MedicineCacheRepository) Delete(ctx context.Context, medicineID string) error {
	query := `DELETE FROM medicine_cache WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, medicineID)
	return err
}
