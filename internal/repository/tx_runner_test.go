package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestRetryableTxError(t *testing.T) {
	assert.True(t, retryableTxError(&pgconn.PgError{Code: "40001"}))
	assert.True(t, retryableTxError(fmt.Errorf("failed to replace chunks: %w", &pgconn.PgError{Code: "40P01"})))
	assert.False(t, retryableTxError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, retryableTxError(errors.New("conn closed")))
	assert.False(t, retryableTxError(nil))
}
