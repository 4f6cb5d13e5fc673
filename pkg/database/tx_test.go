package database_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmacore/pharmacore-backend/pkg/database"
	"github.com/pharmacore/pharmacore-backend/pkg/logger"
)

func newMockDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })

	conn := sqlx.NewDb(raw, "sqlmock")
	return database.NewFromConn(conn, logger.New("test", "test")), mock
}

func TestAfterCommitRunsAfterOutermostCommit(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	var fired []string
	err := db.WithTx(context.Background(), func(ctx context.Context) error {
		// Joining the ambient transaction must defer to the same queue
		return db.WithTx(ctx, func(ctx context.Context) error {
			database.AfterCommit(ctx, func() { fired = append(fired, "inner") })
			database.AfterCommit(ctx, func() { fired = append(fired, "outer") })
			assert.Empty(t, fired, "hooks must not run inside the open transaction")
			return nil
		})
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"inner", "outer"}, fired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAfterCommitSkippedOnRollback(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	var fired bool
	err := db.WithTx(context.Background(), func(ctx context.Context) error {
		database.AfterCommit(ctx, func() { fired = true })
		return fmt.Errorf("late failure")
	})
	require.Error(t, err)

	assert.False(t, fired, "rolled back transaction must not publish")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAfterCommitWithoutTransactionRunsImmediately(t *testing.T) {
	var fired bool
	database.AfterCommit(context.Background(), func() { fired = true })
	assert.True(t, fired)
}
