package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pharmacore/pharmacore-backend/pkg/database"
)

// Stock transaction types. Each type mutates exactly one counter:
// purchase and adjustment write received_quantity, sale and return write
// sold_quantity, damage writes damaged_quantity.
const (
	TxTypePurchase   = "purchase"
	TxTypeSale       = "sale"
	TxTypeDamage     = "damage"
	TxTypeReturn     = "return"
	TxTypeAdjustment = "adjustment"
)

// StockTransaction is one append-only ledger entry. PreviousQuantity and
// NewQuantity are the before and after values of the mutated counter,
// QuantityDelta is the applied change (signed).
type StockTransaction struct {
	ID               string    `db:"id" json:"id"`
	OwnerID          string    `db:"owner_id" json:"owner_id"`
	BatchID          string    `db:"batch_id" json:"batch_id"`
	MedicineID       string    `db:"medicine_id" json:"medicine_id"`
	TransactionType  string    `db:"transaction_type" json:"transaction_type"`
	QuantityDelta    int       `db:"quantity_delta" json:"quantity_delta"`
	PreviousQuantity int       `db:"previous_quantity" json:"previous_quantity"`
	NewQuantity      int       `db:"new_quantity" json:"new_quantity"`
	Reason           *string   `db:"reason" json:"reason,omitempty"`
	ReferenceNumber  *string   `db:"reference_number" json:"reference_number,omitempty"`
	SaleID           *string   `db:"sale_id" json:"sale_id,omitempty"`
	PerformedBy      string    `db:"performed_by" json:"performed_by"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// TransactionFilter narrows ledger listings
type TransactionFilter struct {
	BatchID         string
	MedicineID      string
	TransactionType string
	From            *time.Time
	To              *time.Time
	Page            int
	PerPage         int
}

// TransactionRepository handles the stock transaction ledger. Entries are
// insert-only, there is no update or delete path.
type TransactionRepository struct {
	db *database.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *database.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Insert appends a ledger entry
func (r *TransactionRepository) Insert(ctx context.Context, tx *StockTransaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_transactions (
			id, owner_id, batch_id, medicine_id, transaction_type,
			quantity_delta, previous_quantity, new_quantity,
			reason, reference_number, sale_id, performed_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`

	return r.db.QueryRowxContext(ctx, query,
		tx.ID, tx.OwnerID, tx.BatchID, tx.MedicineID, tx.TransactionType,
		tx.QuantityDelta, tx.PreviousQuantity, tx.NewQuantity,
		tx.Reason, tx.ReferenceNumber, tx.SaleID, tx.PerformedBy,
	).Scan(&tx.CreatedAt)
}

// List lists ledger entries for an owner, newest first
func (r *TransactionRepository) List(ctx context.Context, ownerID string, filter TransactionFilter) ([]*StockTransaction, int64, error) {
	where := []string{"owner_id = $1"}
	args := []interface{}{ownerID}

	if filter.BatchID != "" {
		args = append(args, filter.BatchID)
		where = append(where, fmt.Sprintf("batch_id = $%d", len(args)))
	}
	if filter.MedicineID != "" {
		args = append(args, filter.MedicineID)
		where = append(where, fmt.Sprintf("medicine_id = $%d", len(args)))
	}
	if filter.TransactionType != "" {
		args = append(args, filter.TransactionType)
		where = append(where, fmt.Sprintf("transaction_type = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM stock_transactions WHERE " + whereClause
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
		SELECT * FROM stock_transactions
		WHERE %s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d
	`, whereClause, len(args)-1, len(args))

	transactions := make([]*StockTransaction, 0)
	if err := r.db.SelectContext(ctx, &transactions, query, args...); err != nil {
		return nil, 0, err
	}
	return transactions, total, nil
}

// ListByBatch returns the full ledger of one batch in insertion order,
// used to replay counters.
func (r *TransactionRepository) ListByBatch(ctx context.Context, ownerID, batchID string) ([]*StockTransaction, error) {
	transactions := make([]*StockTransaction, 0)
	query := `
		SELECT * FROM stock_transactions
		WHERE owner_id = $1 AND batch_id = $2
		ORDER BY created_at, id
	`
	if err := r.db.SelectContext(ctx, &transactions, query, ownerID, batchID); err != nil {
		return nil, err
	}
	return transactions, nil
}

// ListBySale returns all ledger entries recorded against one sale
func (r *TransactionRepository) ListBySale(ctx context.Context, ownerID, saleID string) ([]*StockTransaction, error) {
	transactions := make([]*StockTransaction, 0)
	query := `
		SELECT * FROM stock_transactions
		WHERE owner_id = $1 AND sale_id = $2
		ORDER BY created_at, id
	`
	if err := r.db.SelectContext(ctx, &transactions, query, ownerID, saleID); err != nil {
		return nil, err
	}
	return transactions, nil
}
