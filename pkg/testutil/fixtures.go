package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MedicineFixture represents test medicine catalog data
type MedicineFixture struct {
	ID           string
	Name         string
	GenericName  string
	Manufacturer string
	Category     string
	Unit         string
	DefaultPrice float64
}

// BatchFixture represents test inventory batch data
type BatchFixture struct {
	ID               string
	OwnerID          string
	MedicineID       string
	MedicineName     string
	BatchNumber      string
	ExpiryDate       time.Time
	QuantityReceived int
	QuantitySold     int
	QuantityDamaged  int
	SellingPrice     float64
	PurchasePrice    float64
	ReorderLevel     int
	ExpiryAlertDays  int
	Status           string
	Supplier         string
	CreatedAt        time.Time
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Medicine creates a medicine fixture with defaults
func (f *FixtureFactory) Medicine(opts ...func(*MedicineFixture)) MedicineFixture {
	seq := f.nextSeq()

	med := MedicineFixture{
		ID:           uuid.New().String(),
		Name:         fmt.Sprintf("Test Medicine %d", seq),
		GenericName:  fmt.Sprintf("generic-%d", seq),
		Manufacturer: "Acme Pharma",
		Category:     "analgesic",
		Unit:         "tablet",
		DefaultPrice: 5.50,
	}

	for _, opt := range opts {
		opt(&med)
	}

	return med
}

// WithMedicineName sets the medicine name
func WithMedicineName(name string) func(*MedicineFixture) {
	return func(m *MedicineFixture) {
		m.Name = name
	}
}

// WithCategory sets the medicine category
func WithCategory(category string) func(*MedicineFixture) {
	return func(m *MedicineFixture) {
		m.Category = category
	}
}

// Batch creates an inventory batch fixture with defaults. The batch starts
// fully stocked with 100 units received and nothing sold or damaged.
func (f *FixtureFactory) Batch(ownerID string, opts ...func(*BatchFixture)) BatchFixture {
	seq := f.nextSeq()

	batch := BatchFixture{
		ID:               uuid.New().String(),
		OwnerID:          ownerID,
		MedicineID:       uuid.New().String(),
		MedicineName:     fmt.Sprintf("Test Medicine %d", seq),
		BatchNumber:      fmt.Sprintf("BN-%04d", seq),
		ExpiryDate:       time.Now().AddDate(1, 0, 0),
		QuantityReceived: 100,
		QuantitySold:     0,
		QuantityDamaged:  0,
		SellingPrice:     10.00,
		PurchasePrice:    7.50,
		ReorderLevel:     10,
		ExpiryAlertDays:  30,
		Status:           "active",
		Supplier:         "Test Supplier",
		CreatedAt:        time.Now(),
	}

	for _, opt := range opts {
		opt(&batch)
	}

	return batch
}

// WithBatchNumber sets the batch number
func WithBatchNumber(number string) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.BatchNumber = number
	}
}

// WithMedicine ties the batch to a specific medicine
func WithMedicine(medicineID, name string) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.MedicineID = medicineID
		b.MedicineName = name
	}
}

// WithQuantities sets the received/sold/damaged counters
func WithQuantities(received, sold, damaged int) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.QuantityReceived = received
		b.QuantitySold = sold
		b.QuantityDamaged = damaged
	}
}

// WithExpiry sets the expiry date
func WithExpiry(expiry time.Time) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.ExpiryDate = expiry
	}
}

// WithSellingPrice sets the selling price
func WithSellingPrice(price float64) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.SellingPrice = price
	}
}

// WithReorderLevel sets the reorder threshold
func WithReorderLevel(level int) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.ReorderLevel = level
	}
}

// WithBatchStatus sets the stored status
func WithBatchStatus(status string) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.Status = status
	}
}
