package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	// Stock events
	EventStockAdjusted  = "stock.adjusted"
	EventBatchCreated   = "stock.batch.created"
	EventBatchExpiring  = "stock.batch.expiring"
	EventAlertGenerated = "stock.alert.generated"

	// Sale events
	EventSaleCompleted = "sale.completed"
	EventSaleCancelled = "sale.cancelled"
	EventSaleReturned  = "sale.returned"

	// Purchase intake events
	EventIntakeReceived = "intake.received"
	EventIntakePosted   = "intake.posted"

	// Catalog events (published by the medicine catalog service)
	EventMedicineCreated = "catalog.medicine.created"
	EventMedicineUpdated = "catalog.medicine.updated"
	EventMedicineDeleted = "catalog.medicine.deleted"
)

// Exchange names
const (
	ExchangeStockEvents   = "stock.events"
	ExchangeSaleEvents    = "sale.events"
	ExchangeIntakeEvents  = "intake.events"
	ExchangeCatalogEvents = "catalog.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Stock Events

// StockAdjustedEvent is published after every committed stock adjustment
type StockAdjustedEvent struct {
	OwnerID          string `json:"owner_id"`
	BatchID          string `json:"batch_id"`
	MedicineID       string `json:"medicine_id"`
	MedicineName     string `json:"medicine_name"`
	TransactionID    string `json:"transaction_id"`
	TransactionType  string `json:"transaction_type"`
	Quantity         int    `json:"quantity"`
	PreviousQuantity int    `json:"previous_quantity"`
	NewQuantity      int    `json:"new_quantity"`
	NewStatus        string `json:"new_status"`
	PerformedBy      string `json:"performed_by"`
	Reason           string `json:"reason,omitempty"`
}

// BatchCreatedEvent is published when a new inventory batch is registered
type BatchCreatedEvent struct {
	OwnerID      string    `json:"owner_id"`
	BatchID      string    `json:"batch_id"`
	MedicineID   string    `json:"medicine_id"`
	MedicineName string    `json:"medicine_name"`
	BatchNumber  string    `json:"batch_number"`
	Quantity     int       `json:"quantity"`
	ExpiryDate   time.Time `json:"expiry_date"`
}

// BatchExpiringEvent is published when a batch enters its expiry alert window
type BatchExpiringEvent struct {
	OwnerID      string    `json:"owner_id"`
	BatchID      string    `json:"batch_id"`
	MedicineID   string    `json:"medicine_id"`
	MedicineName string    `json:"medicine_name"`
	BatchNumber  string    `json:"batch_number"`
	ExpiryDate   time.Time `json:"expiry_date"`
	DaysUntil    int       `json:"days_until"`
	Available    int       `json:"available"`
}

// AlertGeneratedEvent is published when a batch crosses an alert threshold
type AlertGeneratedEvent struct {
	OwnerID      string `json:"owner_id"`
	BatchID      string `json:"batch_id"`
	MedicineID   string `json:"medicine_id"`
	MedicineName string `json:"medicine_name"`
	AlertType    string `json:"alert_type"`
	Message      string `json:"message"`
	Available    int    `json:"available"`
}

// Sale Events

// SaleItemSummary is a line item snapshot carried inside sale events
type SaleItemSummary struct {
	BatchID      string  `json:"batch_id"`
	MedicineID   string  `json:"medicine_id"`
	MedicineName string  `json:"medicine_name"`
	Quantity     int     `json:"quantity"`
	LineTotal    float64 `json:"line_total"`
}

// SaleCompletedEvent is published when a sale commits
type SaleCompletedEvent struct {
	OwnerID       string            `json:"owner_id"`
	SaleID        string            `json:"sale_id"`
	BillNumber    string            `json:"bill_number"`
	CustomerName  string            `json:"customer_name,omitempty"`
	Items         []SaleItemSummary `json:"items"`
	Total         float64           `json:"total"`
	AmountPaid    float64           `json:"amount_paid"`
	BalanceDue    float64           `json:"balance_due"`
	PaymentStatus string            `json:"payment_status"`
	SoldBy        string            `json:"sold_by"`
}

// SaleCancelledEvent is published when a sale is cancelled and stock restored
type SaleCancelledEvent struct {
	OwnerID     string `json:"owner_id"`
	SaleID      string `json:"sale_id"`
	BillNumber  string `json:"bill_number"`
	CancelledBy string `json:"cancelled_by"`
	Reason      string `json:"reason,omitempty"`
}

// SaleReturnedEvent is published when a return against a sale commits
type SaleReturnedEvent struct {
	OwnerID      string            `json:"owner_id"`
	ReturnID     string            `json:"return_id"`
	ReturnNumber string            `json:"return_number"`
	SaleID       string            `json:"sale_id"`
	BillNumber   string            `json:"bill_number"`
	Items        []SaleItemSummary `json:"items"`
	RefundAmount float64           `json:"refund_amount"`
	FullReturn   bool              `json:"full_return"`
	ProcessedBy  string            `json:"processed_by"`
}

// Intake Events

// IntakeReceivedEvent is published when a purchase order delivery is recorded
type IntakeReceivedEvent struct {
	OwnerID     string `json:"owner_id"`
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Supplier    string `json:"supplier"`
	LineCount   int    `json:"line_count"`
}

// IntakePostedEvent is published when verified intake lines are posted to stock
type IntakePostedEvent struct {
	OwnerID     string   `json:"owner_id"`
	OrderID     string   `json:"order_id"`
	OrderNumber string   `json:"order_number"`
	BatchIDs    []string `json:"batch_ids"`
	PostedBy    string   `json:"posted_by"`
}

// Catalog Events

// MedicineUpsertedEvent carries the catalog fields mirrored into the local cache.
// Both catalog.medicine.created and catalog.medicine.updated use this payload.
type MedicineUpsertedEvent struct {
	MedicineID   string  `json:"medicine_id"`
	Name         string  `json:"name"`
	GenericName  string  `json:"generic_name,omitempty"`
	Manufacturer string  `json:"manufacturer,omitempty"`
	Category     string  `json:"category,omitempty"`
	Unit         string  `json:"unit,omitempty"`
	DefaultPrice float64 `json:"default_price,omitempty"`
}

// MedicineDeletedEvent is published when a medicine is removed from the catalog
type MedicineDeletedEvent struct {
	MedicineID string `json:"medicine_id"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
