package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pharmacore/pharmacore-backend/pkg/database"
	"github.com/pharmacore/pharmacore-backend/pkg/errors"
)

// Batch statuses, in derivation precedence order
const (
	StatusOutOfStock = "out_of_stock"
	StatusExpired    = "expired"
	StatusNearExpiry = "near_expiry"
	StatusLowStock   = "low_stock"
	StatusActive     = "active"
)

// InventoryBatch represents one purchased lot of one medicine
type InventoryBatch struct {
	ID               string     `db:"id" json:"id"`
	OwnerID          string     `db:"owner_id" json:"owner_id"`
	MedicineID       string     `db:"medicine_id" json:"medicine_id"`
	MedicineName     string     `db:"medicine_name" json:"medicine_name"`
	BatchNumber      string     `db:"batch_number" json:"batch_number"`
	ExpiryDate       time.Time  `db:"expiry_date" json:"expiry_date"`
	ManufactureDate  *time.Time `db:"manufacture_date" json:"manufacture_date,omitempty"`
	ReceivedQuantity int        `db:"received_quantity" json:"received_quantity"`
	SoldQuantity     int        `db:"sold_quantity" json:"sold_quantity"`
	DamagedQuantity  int        `db:"damaged_quantity" json:"damaged_quantity"`
	PurchasePrice    float64    `db:"purchase_price" json:"purchase_price"`
	SellingPrice     float64    `db:"selling_price" json:"selling_price"`
	MRP              *float64   `db:"mrp" json:"mrp,omitempty"`
	ReorderLevel     int        `db:"reorder_level" json:"reorder_level"`
	ExpiryAlertDays  int        `db:"expiry_alert_days" json:"expiry_alert_days"`
	Status           string     `db:"status" json:"status"`
	Supplier         *string    `db:"supplier" json:"supplier,omitempty"`
	Location         *string    `db:"location" json:"location,omitempty"`
	IsActive         bool       `db:"is_active" json:"is_active"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`

	// AvailableQty is recomputed on read, never stored
	AvailableQty int `db:"-" json:"available_quantity"`
	DaysToExpiry int `db:"-" json:"days_until_expiry"`
}

// Available returns received minus sold minus damaged
func (b *InventoryBatch) Available() int {
	return b.ReceivedQuantity - b.SoldQuantity - b.DamagedQuantity
}

// DaysUntilExpiry returns whole days until the expiry date, rounded up.
// Negative when the batch is already expired.
func (b *InventoryBatch) DaysUntilExpiry(now time.Time) int {
	return int(math.Ceil(b.ExpiryDate.Sub(now).Hours() / 24))
}

// IsExpired reports whether the expiry date has passed
func (b *InventoryBatch) IsExpired(now time.Time) bool {
	return now.After(b.ExpiryDate)
}

// DeriveStatus computes the batch lifecycle status from counters and dates.
// Evaluated in precedence order, first match wins.
func (b *InventoryBatch) DeriveStatus(now time.Time) string {
	available := b.Available()
	switch {
	case available <= 0:
		return StatusOutOfStock
	case b.IsExpired(now):
		return StatusExpired
	case b.withinExpiryWindow(now):
		return StatusNearExpiry
	case available <= b.ReorderLevel:
		return StatusLowStock
	default:
		return StatusActive
	}
}

func (b *InventoryBatch) withinExpiryWindow(now time.Time) bool {
	days := b.DaysUntilExpiry(now)
	return days > 0 && days <= b.ExpiryAlertDays
}

// Enrich fills the derived read-side fields
func (b *InventoryBatch) Enrich(now time.Time) {
	b.AvailableQty = b.Available()
	b.DaysToExpiry = b.DaysUntilExpiry(now)
}

// BatchFilter narrows batch listings
type BatchFilter struct {
	MedicineID      string
	Status          string
	Search          string
	IncludeInactive bool
	Page            int
	PerPage         int
}

// StockSummary aggregates the owner's inventory for dashboards
type StockSummary struct {
	TotalBatches    int64   `db:"total_batches" json:"total_batches"`
	TotalMedicines  int64   `db:"total_medicines" json:"total_medicines"`
	TotalStockValue float64 `db:"total_stock_value" json:"total_stock_value"`
	LowStockCount   int64   `db:"low_stock_count" json:"low_stock_count"`
	NearExpiryCount int64   `db:"near_expiry_count" json:"near_expiry_count"`
	ExpiredCount    int64   `db:"expired_count" json:"expired_count"`
	OutOfStockCount int64   `db:"out_of_stock_count" json:"out_of_stock_count"`
}

// BatchRepository handles batch persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create creates a new batch
func (r *BatchRepository) Create(ctx context.Context, batch *InventoryBatch) error {
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}

	query := `
		INSERT INTO inventory_batches (
			id, owner_id, medicine_id, medicine_name, batch_number,
			expiry_date, manufacture_date, received_quantity, sold_quantity, damaged_quantity,
			purchase_price, selling_price, mrp, reorder_level, expiry_alert_days,
			status, supplier, location, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING created_at, updated_at
	`

	return r.db.QueryRowxContext(ctx, query,
		batch.ID, batch.OwnerID, batch.MedicineID, batch.MedicineName, batch.BatchNumber,
		batch.ExpiryDate, batch.ManufactureDate, batch.ReceivedQuantity, batch.SoldQuantity, batch.DamagedQuantity,
		batch.PurchasePrice, batch.SellingPrice, batch.MRP, batch.ReorderLevel, batch.ExpiryAlertDays,
		batch.Status, batch.Supplier, batch.Location, batch.IsActive,
	).Scan(&batch.CreatedAt, &batch.UpdatedAt)
}

// GetByID gets a batch by ID scoped to an owner
func (r *BatchRepository) GetByID(ctx context.Context, ownerID, id string) (*InventoryBatch, error) {
	var batch InventoryBatch
	query := `SELECT * FROM inventory_batches WHERE id = $1 AND owner_id = $2`
	if err := r.db.GetContext(ctx, &batch, query, id, ownerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// GetForUpdate locks the batch row for the duration of the enclosing
// transaction. Callers must run inside DB.WithTx.
func (r *BatchRepository) GetForUpdate(ctx context.Context, ownerID, id string) (*InventoryBatch, error) {
	var batch InventoryBatch
	query := `SELECT * FROM inventory_batches WHERE id = $1 AND owner_id = $2 FOR UPDATE`
	if err := r.db.GetContext(ctx, &batch, query, id, ownerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// GetByIdentity looks a batch up by its natural key
func (r *BatchRepository) GetByIdentity(ctx context.Context, ownerID, medicineID, batchNumber string) (*InventoryBatch, error) {
	var batch InventoryBatch
	query := `
		SELECT * FROM inventory_batches
		WHERE owner_id = $1 AND medicine_id = $2 AND batch_number = $3
	`
	if err := r.db.GetContext(ctx, &batch, query, ownerID, medicineID, batchNumber); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// List lists batches for an owner with optional filters and pagination
func (r *BatchRepository) List(ctx context.Context, ownerID string, filter BatchFilter) ([]*InventoryBatch, int64, error) {
	where := []string{"owner_id = $1"}
	args := []interface{}{ownerID}

	if !filter.IncludeInactive {
		where = append(where, "is_active = true")
	}
	if filter.MedicineID != "" {
		args = append(args, filter.MedicineID)
		where = append(where, fmt.Sprintf("medicine_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(medicine_name ILIKE $%d OR batch_number ILIKE $%d)", len(args), len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM inventory_batches WHERE " + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 {
		perPage = 20
	}

	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`
		SELECT * FROM inventory_batches
		WHERE %s
		ORDER BY expiry_date, medicine_name
		LIMIT $%d OFFSET $%d
	`, whereClause, len(args)-1, len(args))

	batches := make([]*InventoryBatch, 0)
	if err := r.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, 0, err
	}
	return batches, total, nil
}

// Update updates the editable batch attributes. Counters are never touched
// here, UpdateCounters is the only write path for them.
func (r *BatchRepository) Update(ctx context.Context, batch *InventoryBatch) error {
	query := `
		UPDATE inventory_batches SET
			expiry_date = $3, manufacture_date = $4, purchase_price = $5, selling_price = $6,
			mrp = $7, reorder_level = $8, expiry_alert_days = $9, supplier = $10,
			location = $11, status = $12, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		batch.ID, batch.OwnerID, batch.ExpiryDate, batch.ManufactureDate,
		batch.PurchasePrice, batch.SellingPrice, batch.MRP, batch.ReorderLevel,
		batch.ExpiryAlertDays, batch.Supplier, batch.Location, batch.Status,
	)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}

	return nil
}

// UpdateCounters persists new counter values and the recomputed status.
// The WHERE clause repeats the counter invariant so a racing write can never
// drive available quantity negative even outside a row lock. Zero affected
// rows means the invariant would have been violated.
func (r *BatchRepository) UpdateCounters(ctx context.Context, batch *InventoryBatch) error {
	query := `
		UPDATE inventory_batches SET
			received_quantity = $3, sold_quantity = $4, damaged_quantity = $5,
			status = $6, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
			AND $3 >= 0 AND $4 >= 0 AND $5 >= 0
			AND $3 >= $4 + $5
	`

	result, err := r.db.ExecContext(ctx, query,
		batch.ID, batch.OwnerID,
		batch.ReceivedQuantity, batch.SoldQuantity, batch.DamagedQuantity,
		batch.Status,
	)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.InvalidAdjustment("adjustment would make batch counters inconsistent")
	}

	return nil
}

// Deactivate soft-deletes a batch
func (r *BatchRepository) Deactivate(ctx context.Context, ownerID, id string) error {
	query := `UPDATE inventory_batches SET is_active = false, updated_at = NOW() WHERE id = $1 AND owner_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}

	return nil
}

// ListByStatus returns active batches carrying the given stored status
func (r *BatchRepository) ListByStatus(ctx context.Context, ownerID, status string) ([]*InventoryBatch, error) {
	batches := make([]*InventoryBatch, 0)
	query := `
		SELECT * FROM inventory_batches
		WHERE owner_id = $1 AND is_active = true AND status = $2
		ORDER BY medicine_name, expiry_date
	`
	if err := r.db.SelectContext(ctx, &batches, query, ownerID, status); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListExpiringWithin returns batches with remaining stock whose expiry date
// falls inside the given window, soonest first.
func (r *BatchRepository) ListExpiringWithin(ctx context.Context, ownerID string, days int) ([]*InventoryBatch, error) {
	batches := make([]*InventoryBatch, 0)
	query := `
		SELECT * FROM inventory_batches
		WHERE owner_id = $1 AND is_active = true
			AND received_quantity - sold_quantity - damaged_quantity > 0
			AND expiry_date > NOW()
			AND expiry_date <= NOW() + INTERVAL '1 day' * $2
		ORDER BY expiry_date
	`
	if err := r.db.SelectContext(ctx, &batches, query, ownerID, days); err != nil {
		return nil, err
	}
	return batches, nil
}

// RefreshExpiredStatuses flips batches whose expiry date has passed since
// their last write to expired, across all owners. Returns the batches that
// changed. Out of stock keeps precedence over expired.
func (r *BatchRepository) RefreshExpiredStatuses(ctx context.Context) ([]*InventoryBatch, error) {
	batches := make([]*InventoryBatch, 0)
	query := `
		UPDATE inventory_batches SET status = 'expired', updated_at = NOW()
		WHERE is_active = true
			AND expiry_date < NOW()
			AND received_quantity - sold_quantity - damaged_quantity > 0
			AND status <> 'expired'
		RETURNING *
	`
	if err := r.db.SelectContext(ctx, &batches, query); err != nil {
		return nil, err
	}
	return batches, nil
}

// RefreshNearExpiryStatuses flips batches that have entered their expiry
// alert window since their last write, across all owners. Returns the
// batches that changed.
func (r *BatchRepository) RefreshNearExpiryStatuses(ctx context.Context) ([]*InventoryBatch, error) {
	batches := make([]*InventoryBatch, 0)
	query := `
		UPDATE inventory_batches SET status = 'near_expiry', updated_at = NOW()
		WHERE is_active = true
			AND expiry_date > NOW()
			AND expiry_date <= NOW() + INTERVAL '1 day' * expiry_alert_days
			AND received_quantity - sold_quantity - damaged_quantity > 0
			AND status IN ('active', 'low_stock')
		RETURNING *
	`
	if err := r.db.SelectContext(ctx, &batches, query); err != nil {
		return nil, err
	}
	return batches, nil
}

// Summary aggregates batch counts and stock value for an owner
func (r *BatchRepository) Summary(ctx context.Context, ownerID string) (*StockSummary, error) {
	var summary StockSummary
	query := `
		SELECT
			COUNT(*) AS total_batches,
			COUNT(DISTINCT medicine_id) AS total_medicines,
			COALESCE(SUM((received_quantity - sold_quantity - damaged_quantity) * selling_price), 0) AS total_stock_value,
			COUNT(*) FILTER (WHERE status = 'low_stock') AS low_stock_count,
			COUNT(*) FILTER (WHERE status = 'near_expiry') AS near_expiry_count,
			COUNT(*) FILTER (WHERE status = 'expired') AS expired_count,
			COUNT(*) FILTER (WHERE status = 'out_of_stock') AS out_of_stock_count
		FROM inventory_batches
		WHERE owner_id = $1 AND is_active = true
	`
	if err := r.db.GetContext(ctx, &summary, query, ownerID); err != nil {
		return nil, err
	}
	return &summary, nil
}
