package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pharmacore/pharmacore-backend/pkg/database"
	"github.com/pharmacore/pharmacore-backend/pkg/errors"
)

// SaleReturn is a partial or full reversal of a sale
type SaleReturn struct {
	ID           string    `db:"id" json:"id"`
	OwnerID      string    `db:"owner_id" json:"owner_id"`
	ReturnNumber string    `db:"return_number" json:"return_number"`
	SaleID       string    `db:"sale_id" json:"sale_id"`
	BillNumber   string    `db:"bill_number" json:"bill_number"`
	Reason       *string   `db:"reason" json:"reason,omitempty"`
	RefundAmount float64   `db:"refund_amount" json:"refund_amount"`
	RefundMethod string    `db:"refund_method" json:"refund_method"`
	FullReturn   bool      `db:"full_return" json:"full_return"`
	ProcessedBy  *string   `db:"processed_by" json:"processed_by,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`

	Items []*SaleReturnItem `db:"-" json:"items,omitempty"`
}

// SaleReturnItem is one returned line
type SaleReturnItem struct {
	ID           string  `db:"id" json:"id"`
	ReturnID     string  `db:"return_id" json:"return_id"`
	SaleItemID   string  `db:"sale_item_id" json:"sale_item_id"`
	BatchID      string  `db:"batch_id" json:"batch_id"`
	MedicineID   string  `db:"medicine_id" json:"medicine_id"`
	MedicineName string  `db:"medicine_name" json:"medicine_name"`
	Quantity     int     `db:"quantity" json:"quantity"`
	UnitPrice    float64 `db:"unit_price" json:"unit_price"`
	RefundAmount float64 `db:"refund_amount" json:"refund_amount"`
}

// SaleReturnRepository handles sale return persistence
type SaleReturnRepository struct {
	db *database.DB
}

// NewSaleReturnRepository creates a new sale return repository
func NewSaleReturnRepository(db *database.DB) *SaleReturnRepository {
	return &SaleReturnRepository{db: db}
}

// Create creates a sale return with its items
func (r *SaleReturnRepository) Create(ctx context.Context, ret *SaleReturn) error {
	if ret.ID == "" {
		ret.ID = uuid.New().String()
	}

	query := `
		INSERT INTO sale_returns (
			id, owner_id, return_number, sale_id, bill_number,
			reason, refund_amount, refund_method, full_return, processed_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		ret.ID, ret.OwnerID, ret.ReturnNumber, ret.SaleID, ret.BillNumber,
		ret.Reason, ret.RefundAmount, ret.RefundMethod, ret.FullReturn, ret.ProcessedBy,
	).Scan(&ret.CreatedAt)
	if err != nil {
		return err
	}

	itemQuery := `
		INSERT INTO sale_return_items (
			id, return_id, sale_item_id, batch_id, medicine_id, medicine_name,
			quantity, unit_price, refund_amount
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for _, item := range ret.Items {
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.ReturnID = ret.ID

		_, err := r.db.ExecContext(ctx, itemQuery,
			item.ID, item.ReturnID, item.SaleItemID, item.BatchID, item.MedicineID, item.MedicineName,
			item.Quantity, item.UnitPrice, item.RefundAmount,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// GetByID gets a sale return with its items
func (r *SaleReturnRepository) GetByID(ctx context.Context, ownerID, id string) (*SaleReturn, error) {
	var ret SaleReturn
	query := `SELECT * FROM sale_returns WHERE id = $1 AND owner_id = $2`
	if err := r.db.GetContext(ctx, &ret, query, id, ownerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("sale return")
		}
		return nil, err
	}

	items := make([]*SaleReturnItem, 0)
	itemQuery := `SELECT * FROM sale_return_items WHERE return_id = $1 ORDER BY medicine_name`
	if err := r.db.SelectContext(ctx, &items, itemQuery, ret.ID); err != nil {
		return nil, err
	}
	ret.Items = items

	return &ret, nil
}

// ListBySale lists returns recorded against one sale
func (r *SaleReturnRepository) ListBySale(ctx context.Context, ownerID, saleID string) ([]*SaleReturn, error) {
	returns := make([]*SaleReturn, 0)
	query := `SELECT * FROM sale_returns WHERE owner_id = $1 AND sale_id = $2 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &returns, query, ownerID, saleID); err != nil {
		return nil, err
	}
	return returns, nil
}

// List lists returns for an owner, newest first
func (r *SaleReturnRepository) List(ctx context.Context, ownerID string, page, perPage int) ([]*SaleReturn, int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM sale_returns WHERE owner_id = $1`, ownerID); err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	returns := make([]*SaleReturn, 0)
	query := `
		SELECT * FROM sale_returns
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &returns, query, ownerID, perPage, (page-1)*perPage); err != nil {
		return nil, 0, err
	}
	return returns, total, nil
}
