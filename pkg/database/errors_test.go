package database_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmacore/pharmacore-backend/pkg/database"
	"github.com/pharmacore/pharmacore-backend/pkg/errors"
)

func TestMapPQErrorPassesThroughNonPQErrors(t *testing.T) {
	cases := []error{
		context.Canceled,
		context.DeadlineExceeded,
		fmt.Errorf("driver: bad connection"),
	}

	for _, cause := range cases {
		err := database.MapPQError(cause)
		require.Error(t, err)
		assert.Equal(t, cause, err)

		var appErr *errors.AppError
		assert.False(t, errors.As(err, &appErr))
	}
}

func TestMapPQErrorPassesThroughUnmappedCodes(t *testing.T) {
	cause := &pq.Error{Code: "40001", Message: "serialization failure"}

	err := database.MapPQError(cause)
	require.Error(t, err)
	assert.Same(t, cause, err)
}

func TestMapPQErrorUniqueViolation(t *testing.T) {
	err := database.MapPQError(&pq.Error{
		Code:       "23505",
		Constraint: "inventory_batches_owner_medicine_batch_number_key",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	assert.Contains(t, err.Error(), "batch number")
}

func TestMapPQErrorCheckConstraint(t *testing.T) {
	err := database.MapPQError(&pq.Error{
		Code:       "23514",
		Constraint: "inventory_batches_counters_consistent",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidAdjustment))
}

func TestMapPQErrorForeignKeyViolation(t *testing.T) {
	err := database.MapPQError(&pq.Error{Code: "23503"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}
