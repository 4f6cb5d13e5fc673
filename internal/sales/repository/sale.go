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

// Sale statuses
const (
	SaleStatusCompleted = "completed"
	SaleStatusCancelled = "cancelled"
	SaleStatusReturned  = "returned"
)

// Payment statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusPartial   = "partial"
	PaymentStatusCompleted = "completed"
	PaymentStatusCancelled = "cancelled"
	PaymentStatusRefunded  = "refunded"
)

// Number sequence kinds
const (
	NumberKindBill   = "BILL"
	NumberKindReturn = "RET"
)

// Sale represents a completed point-of-sale transaction
type Sale struct {
	ID             string    `db:"id" json:"id"`
	OwnerID        string    `db:"owner_id" json:"owner_id"`
	BillNumber     string    `db:"bill_number" json:"bill_number"`
	CustomerName   *string   `db:"customer_name" json:"customer_name,omitempty"`
	CustomerPhone  *string   `db:"customer_phone" json:"customer_phone,omitempty"`
	CustomerEmail  *string   `db:"customer_email" json:"customer_email,omitempty"`
	DoctorName     *string   `db:"doctor_name" json:"doctor_name,omitempty"`
	Subtotal       float64   `db:"subtotal" json:"subtotal"`
	DiscountAmount float64   `db:"discount_amount" json:"discount_amount"`
	TaxAmount      float64   `db:"tax_amount" json:"tax_amount"`
	ShippingCharge float64   `db:"shipping_charge" json:"shipping_charge"`
	OtherCharge    float64   `db:"other_charge" json:"other_charge"`
	Total          float64   `db:"total" json:"total"`
	AmountPaid     float64   `db:"amount_paid" json:"amount_paid"`
	BalanceDue     float64   `db:"balance_due" json:"balance_due"`
	PaymentMethod  string    `db:"payment_method" json:"payment_method"`
	PaymentStatus  string    `db:"payment_status" json:"payment_status"`
	Status         string    `db:"status" json:"status"`
	Notes          *string   `db:"notes" json:"notes,omitempty"`
	SoldBy         *string   `db:"sold_by" json:"sold_by,omitempty"`
	SaleDate       time.Time `db:"sale_date" json:"sale_date"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`

	Items []*SaleItem `db:"-" json:"items,omitempty"`
}

// SaleItem is one line of a sale, a snapshot of the batch at sale time
type SaleItem struct {
	ID               string     `db:"id" json:"id"`
	SaleID           string     `db:"sale_id" json:"sale_id"`
	BatchID          string     `db:"batch_id" json:"batch_id"`
	MedicineID       string     `db:"medicine_id" json:"medicine_id"`
	MedicineName     string     `db:"medicine_name" json:"medicine_name"`
	BatchNumber      *string    `db:"batch_number" json:"batch_number,omitempty"`
	ExpiryDate       *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	Quantity         int        `db:"quantity" json:"quantity"`
	UnitPrice        float64    `db:"unit_price" json:"unit_price"`
	DiscountPercent  float64    `db:"discount_percent" json:"discount_percent"`
	TaxPercent       float64    `db:"tax_percent" json:"tax_percent"`
	Subtotal         float64    `db:"subtotal" json:"subtotal"`
	DiscountAmount   float64    `db:"discount_amount" json:"discount_amount"`
	TaxAmount        float64    `db:"tax_amount" json:"tax_amount"`
	LineTotal        float64    `db:"line_total" json:"line_total"`
	QuantityReturned int        `db:"quantity_returned" json:"quantity_returned"`
}

// SaleFilter narrows sale listings
type SaleFilter struct {
	Status        string
	PaymentStatus string
	Search        string
	From          *time.Time
	To            *time.Time
	Page          int
	PerPage       int
}

// SalesSummary aggregates sale totals over a period
type SalesSummary struct {
	SaleCount      int64   `db:"sale_count" json:"sale_count"`
	TotalRevenue   float64 `db:"total_revenue" json:"total_revenue"`
	TotalDiscount  float64 `db:"total_discount" json:"total_discount"`
	TotalTax       float64 `db:"total_tax" json:"total_tax"`
	TotalCollected float64 `db:"total_collected" json:"total_collected"`
	TotalBalance   float64 `db:"total_balance" json:"total_balance"`
	CancelledCount int64   `db:"cancelled_count" json:"cancelled_count"`
	ReturnedCount  int64   `db:"returned_count" json:"returned_count"`
}

// SaleRepository handles sale persistence
type SaleRepository struct {
	db *database.DB
}

// NewSaleRepository creates a new sale repository
func NewSaleRepository(db *database.DB) *SaleRepository {
	return &SaleRepository{db: db}
}

// NextNumber allocates the next value of the (owner, kind, period) sequence.
// The upsert increments atomically, so concurrent callers always observe
// distinct values.
func (r *SaleRepository) NextNumber(ctx context.Context, ownerID, kind, period string) (int, error) {
	var value int
	query := `
		INSERT INTO bill_sequences (owner_id, kind, period, last_value)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (owner_id, kind, period)
		DO UPDATE SET last_value = bill_sequences.last_value + 1
		RETURNING last_value
	`
	if err := r.db.QueryRowxContext(ctx, query, ownerID, kind, period).Scan(&value); err != nil {
		return 0, err
	}
	return value, nil
}

// FormatNumber renders a sequence value as a document number, for example
// BILL-202608-0042.
func FormatNumber(kind, period string, value int) string {
	return fmt.Sprintf("%s-%s-%04d", kind, period, value)
}

// Create creates a sale with its line items
func (r *SaleRepository) Create(ctx context.Context, sale *Sale) error {
	if sale.ID == "" {
		sale.ID = uuid.New().String()
	}

	query := `
		INSERT INTO sales (
			id, owner_id, bill_number, customer_name, customer_phone, customer_email, doctor_name,
			subtotal, discount_amount, tax_amount, shipping_charge, other_charge,
			total, amount_paid, balance_due,
			payment_method, payment_status, status, notes, sold_by, sale_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		sale.ID, sale.OwnerID, sale.BillNumber, sale.CustomerName, sale.CustomerPhone, sale.CustomerEmail, sale.DoctorName,
		sale.Subtotal, sale.DiscountAmount, sale.TaxAmount, sale.ShippingCharge, sale.OtherCharge,
		sale.Total, sale.AmountPaid, sale.BalanceDue,
		sale.PaymentMethod, sale.PaymentStatus, sale.Status, sale.Notes, sale.SoldBy, sale.SaleDate,
	).Scan(&sale.CreatedAt, &sale.UpdatedAt)
	if err != nil {
		return err
	}

	itemQuery := `
		INSERT INTO sale_items (
			id, sale_id, batch_id, medicine_id, medicine_name, batch_number, expiry_date,
			quantity, unit_price, discount_percent, tax_percent,
			subtotal, discount_amount, tax_amount, line_total
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	for _, item := range sale.Items {
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.SaleID = sale.ID

		_, err := r.db.ExecContext(ctx, itemQuery,
			item.ID, item.SaleID, item.BatchID, item.MedicineID, item.MedicineName, item.BatchNumber, item.ExpiryDate,
			item.Quantity, item.UnitPrice, item.DiscountPercent, item.TaxPercent,
			item.Subtotal, item.DiscountAmount, item.TaxAmount, item.LineTotal,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// GetByID gets a sale with its items
func (r *SaleRepository) GetByID(ctx context.Context, ownerID, id string) (*Sale, error) {
	var sale Sale
	query := `SELECT * FROM sales WHERE id = $1 AND owner_id = $2`
	if err := r.db.GetContext(ctx, &sale, query, id, ownerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("sale")
		}
		return nil, err
	}

	items, err := r.GetItems(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	sale.Items = items

	return &sale, nil
}

// GetByBillNumber gets a sale by its bill number with line items
func (r *SaleRepository) GetByBillNumber(ctx context.Context, ownerID, billNumber string) (*Sale, error) {
	var sale Sale
	query := `SELECT * FROM sales WHERE bill_number = $1 AND owner_id = $2`
	if err := r.db.GetContext(ctx, &sale, query, billNumber, ownerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("sale")
		}
		return nil, err
	}

	items, err := r.GetItems(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	sale.Items = items

	return &sale, nil
}

// GetForUpdate locks the sale row for the duration of the enclosing
// transaction and loads its items.
func (r *SaleRepository) GetForUpdate(ctx context.Context, ownerID, id string) (*Sale, error) {
	var sale Sale
	query := `SELECT * FROM sales WHERE id = $1 AND owner_id = $2 FOR UPDATE`
	if err := r.db.GetContext(ctx, &sale, query, id, ownerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("sale")
		}
		return nil, err
	}

	items, err := r.GetItems(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	sale.Items = items

	return &sale, nil
}

// GetItems gets the line items of a sale
func (r *SaleRepository) GetItems(ctx context.Context, saleID string) ([]*SaleItem, error) {
	items := make([]*SaleItem, 0)
	query := `SELECT * FROM sale_items WHERE sale_id = $1 ORDER BY medicine_name`
	if err := r.db.SelectContext(ctx, &items, query, saleID); err != nil {
		return nil, err
	}
	return items, nil
}

// List lists sales for an owner, newest first
func (r *SaleRepository) List(ctx context.Context, ownerID string, filter SaleFilter) ([]*Sale, int64, error) {
	where := []string{"owner_id = $1"}
	args := []interface{}{ownerID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.PaymentStatus != "" {
		args = append(args, filter.PaymentStatus)
		where = append(where, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(bill_number ILIKE $%d OR customer_name ILIKE $%d OR customer_phone ILIKE $%d)", len(args), len(args), len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("sale_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("sale_date <= $%d", len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM sales WHERE " + whereClause
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
		SELECT * FROM sales
		WHERE %s
		ORDER BY sale_date DESC, bill_number DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, len(args)-1, len(args))

	sales := make([]*Sale, 0)
	if err := r.db.SelectContext(ctx, &sales, query, args...); err != nil {
		return nil, 0, err
	}
	return sales, total, nil
}

// UpdateStatus updates the sale and payment status
func (r *SaleRepository) UpdateStatus(ctx context.Context, ownerID, id, status, paymentStatus string) error {
	query := `UPDATE sales SET status = $3, payment_status = $4, updated_at = NOW() WHERE id = $1 AND owner_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, ownerID, status, paymentStatus)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("sale")
	}

	return nil
}

// IncrementItemReturned adds to a line item's returned quantity. The WHERE
// clause bounds the result by the sold quantity, zero affected rows means
// the return would exceed what was sold.
func (r *SaleRepository) IncrementItemReturned(ctx context.Context, saleItemID string, quantity int) error {
	query := `
		UPDATE sale_items SET quantity_returned = quantity_returned + $2
		WHERE id = $1 AND quantity_returned + $2 <= quantity
	`
	result, err := r.db.ExecContext(ctx, query, saleItemID, quantity)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.InvalidReturn("return quantity exceeds the quantity originally sold")
	}

	return nil
}

// Summary aggregates sale totals for an owner over an optional date range.
// Cancelled sales are excluded from the money totals but counted.
func (r *SaleRepository) Summary(ctx context.Context, ownerID string, from, to *time.Time) (*SalesSummary, error) {
	where := []string{"owner_id = $1"}
	args := []interface{}{ownerID}

	if from != nil {
		args = append(args, *from)
		where = append(where, fmt.Sprintf("sale_date >= $%d", len(args)))
	}
	if to != nil {
		args = append(args, *to)
		where = append(where, fmt.Sprintf("sale_date <= $%d", len(args)))
	}

	var summary SalesSummary
	query := fmt.Sprintf(`
		SELECT
			COUNT(*) FILTER (WHERE status <> 'cancelled') AS sale_count,
			COALESCE(SUM(total) FILTER (WHERE status <> 'cancelled'), 0) AS total_revenue,
			COALESCE(SUM(discount_amount) FILTER (WHERE status <> 'cancelled'), 0) AS total_discount,
			COALESCE(SUM(tax_amount) FILTER (WHERE status <> 'cancelled'), 0) AS total_tax,
			COALESCE(SUM(amount_paid) FILTER (WHERE status <> 'cancelled'), 0) AS total_collected,
			COALESCE(SUM(balance_due) FILTER (WHERE status <> 'cancelled'), 0) AS total_balance,
			COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled_count,
			COUNT(*) FILTER (WHERE status = 'returned') AS returned_count
		FROM sales
		WHERE %s
	`, strings.Join(where, " AND "))

	if err := r.db.GetContext(ctx, &summary, query, args...); err != nil {
		return nil, err
	}
	return &summary, nil
}
