package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/pharmacore/pharmacore-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Errors that are not a recognized pq.Error pass through unchanged.
func MapPQError(err error) error {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return err
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return err
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "counters_consistent"):
		return errors.InvalidAdjustment("stock counters would become inconsistent")

	case strings.Contains(constraint, "quantity_positive"):
		return errors.Validation(map[string]string{
			"quantity": "must be greater than zero",
		})

	case strings.Contains(constraint, "price_non_negative"):
		return errors.Validation(map[string]string{
			"unit_price": "must not be negative",
		})

	case strings.Contains(constraint, "percent_range"):
		return errors.Validation(map[string]string{
			"percentage": "must be between 0 and 100",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "batch_number"):
		return "a batch with this batch number already exists for this medicine"
	case strings.Contains(constraint, "bill_number"):
		return "a sale with this bill number already exists"
	case strings.Contains(constraint, "return_number"):
		return "a return with this return number already exists"
	default:
		return "a record with these values already exists"
	}
}
