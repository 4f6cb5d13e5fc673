package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pharmacore/pharmacore-backend/pkg/database"
	"github.com/pharmacore/pharmacore-backend/pkg/errors"
)

// Purchase order statuses
const (
	OrderStatusDraft     = "draft"
	OrderStatusReceived  = "received"
	OrderStatusPosted    = "posted"
	OrderStatusCancelled = "cancelled"
)

// PurchaseOrder is a supplier order. Lines start unverified; only verified
// lines are posted to stock.
type PurchaseOrder struct {
	ID           string     `db:"id" json:"id"`
	OwnerID      string     `db:"owner_id" json:"owner_id"`
	OrderNumber  string     `db:"order_number" json:"order_number"`
	Supplier     string     `db:"supplier" json:"supplier"`
	Status       string     `db:"status" json:"status"`
	Notes        *string    `db:"notes" json:"notes,omitempty"`
	ExpectedDate *time.Time `db:"expected_date" json:"expected_date,omitempty"`
	ReceivedAt   *time.Time `db:"received_at" json:"received_at,omitempty"`
	PostedAt     *time.Time `db:"posted_at" json:"posted_at,omitempty"`
	CreatedBy    *string    `db:"created_by" json:"created_by,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`

	Lines []*PurchaseOrderLine `db:"-" json:"lines,omitempty"`
}

// PurchaseOrderLine is one ordered medicine lot
type PurchaseOrderLine struct {
	ID               string    `db:"id" json:"id"`
	OrderID          string    `db:"order_id" json:"order_id"`
	MedicineID       string    `db:"medicine_id" json:"medicine_id"`
	MedicineName     string    `db:"medicine_name" json:"medicine_name"`
	BatchNumber      string    `db:"batch_number" json:"batch_number"`
	ExpiryDate       time.Time `db:"expiry_date" json:"expiry_date"`
	QuantityOrdered  int       `db:"quantity_ordered" json:"quantity_ordered"`
	QuantityReceived int       `db:"quantity_received" json:"quantity_received"`
	UnitPrice        float64   `db:"unit_price" json:"unit_price"`
	CostPrice        *float64  `db:"cost_price" json:"cost_price,omitempty"`
	Verified         bool      `db:"verified" json:"verified"`
	BatchID          *string   `db:"batch_id" json:"batch_id,omitempty"`
}

// OrderFilter narrows order listings
type OrderFilter struct {
	Status   string
	Supplier string
	Page     int
	PerPage  int
}

// OrderRepository handles purchase order persistence
type OrderRepository struct {
	db *database.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// NextNumber allocates the next purchase order sequence value for the
// owner and period, using the shared document sequence table.
func (r *OrderRepository) NextNumber(ctx context.Context, ownerID, period string) (int, error) {
	var value int
	query := `
		INSERT INTO bill_sequences (owner_id, kind, period, last_value)
		VALUES ($1, 'PO', $2, 1)
		ON CONFLICT (owner_id, kind, period)
		DO UPDATE SET last_value = bill_sequences.last_value + 1
		RETURNING last_value
	`
	if err := r.db.QueryRowxContext(ctx, query, ownerID, period).Scan(&value); err != nil {
		return 0, err
	}
	return value, nil
}

// FormatOrderNumber renders a sequence value as an order number, for
// example PO-202608-0007.
func FormatOrderNumber(period string, value int) string {
	return fmt.Sprintf("PO-%s-%04d", period, value)
}

// Create creates a purchase order with its lines
func (r *OrderRepository) Create(ctx context.Context, order *PurchaseOrder) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}

	query := `
		INSERT INTO purchase_orders (
			id, owner_id, order_number, supplier, status, notes, expected_date, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		order.ID, order.OwnerID, order.OrderNumber, order.Supplier,
		order.Status, order.Notes, order.ExpectedDate, order.CreatedBy,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return err
	}

	for _, line := range order.Lines {
		line.OrderID = order.ID
		if err := r.InsertLine(ctx, line); err != nil {
			return err
		}
	}

	return nil
}

// InsertLine adds one line to an order
func (r *OrderRepository) InsertLine(ctx context.Context, line *PurchaseOrderLine) error {
	if line.ID == "" {
		line.ID = uuid.New().String()
	}

	query := `
		INSERT INTO purchase_order_lines (
			id, order_id, medicine_id, medicine_name, batch_number, expiry_date,
			quantity_ordered, quantity_received, unit_price, cost_price, verified
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		line.ID, line.OrderID, line.MedicineID, line.MedicineName, line.BatchNumber, line.ExpiryDate,
		line.QuantityOrdered, line.QuantityReceived, line.UnitPrice, line.CostPrice, line.Verified,
	)
	return err
}

// GetByID gets an order with its lines
func (r *OrderRepository) GetByID(ctx context.Context, ownerID, id string) (*PurchaseOrder, error) {
	var order PurchaseOrder
	query := `SELECT * FROM purchase_orders WHERE id = $1 AND owner_id = $2`
	if err := r.db.GetContext(ctx, &order, query, id, ownerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("purchase order")
		}
		return nil, err
	}

	lines, err := r.GetLines(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Lines = lines

	return &order, nil
}

// GetForUpdate locks the order row for the duration of the enclosing
// transaction and loads its lines.
func (r *OrderRepository) GetForUpdate(ctx context.Context, ownerID, id string) (*PurchaseOrder, error) {
	var order PurchaseOrder
	query := `SELECT * FROM purchase_orders WHERE id = $1 AND owner_id = $2 FOR UPDATE`
	if err := r.db.GetContext(ctx, &order, query, id, ownerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("purchase order")
		}
		return nil, err
	}

	lines, err := r.GetLines(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Lines = lines

	return &order, nil
}

// GetLines gets the lines of an order
func (r *OrderRepository) GetLines(ctx context.Context, orderID string) ([]*PurchaseOrderLine, error) {
	lines := make([]*PurchaseOrderLine, 0)
	query := `SELECT * FROM purchase_order_lines WHERE order_id = $1 ORDER BY medicine_name`
	if err := r.db.SelectContext(ctx, &lines, query, orderID); err != nil {
		return nil, err
	}
	return lines, nil
}

// List lists orders for an owner, newest first
func (r *OrderRepository) List(ctx context.Context, ownerID string, filter OrderFilter) ([]*PurchaseOrder, int64, error) {
	where := []string{"owner_id = $1"}
	args := []interface{}{ownerID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Supplier != "" {
		args = append(args, "%"+filter.Supplier+"%")
		where = append(where, fmt.Sprintf("supplier ILIKE $%d", len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM purchase_orders WHERE " + whereClause
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
		SELECT * FROM purchase_orders
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, len(args)-1, len(args))

	orders := make([]*PurchaseOrder, 0)
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateStatus updates the order status and lifecycle timestamps
func (r *OrderRepository) UpdateStatus(ctx context.Context, ownerID, id, status string, receivedAt, postedAt *time.Time) error {
	query := `
		UPDATE purchase_orders SET
			status = $3,
			received_at = COALESCE($4, received_at),
			posted_at = COALESCE($5, posted_at),
			updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
	`
	result, err := r.db.ExecContext(ctx, query, id, ownerID, status, receivedAt, postedAt)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("purchase order")
	}

	return nil
}

// UpdateLineReceipt records the received quantity and verification state of
// one line.
func (r *OrderRepository) UpdateLineReceipt(ctx context.Context, orderID, lineID string, quantityReceived int, verified bool) error {
	query := `
		UPDATE purchase_order_lines SET quantity_received = $3, verified = $4
		WHERE id = $2 AND order_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, orderID, lineID, quantityReceived, verified)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("order line")
	}

	return nil
}

// SetLineBatch links a posted line to the batch it created or replenished
func (r *OrderRepository) SetLineBatch(ctx context.Context, lineID, batchID string) error {
	query := `UPDATE purchase_order_lines SET batch_id = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, lineID, batchID)
	return err
}
