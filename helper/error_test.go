package helper

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewError(t *testing.T) {
	t.Run("Wraps with operation", func(t *testing.T) {
		err := NewError("insert entities", ErrInvalidInput)
		assert.EqualError(t, err, "insert entities: invalid input")
		assert.ErrorIs(t, err, ErrInvalidInput, "Expected sentinel to be reachable through Unwrap")
	})

	t.Run("Nil stays nil", func(t *testing.T) {
		assert.NoError(t, NewError("noop", nil))
	})
}

func TestReferentialIntegrityError(t *testing.T) {
	err := NewReferentialIntegrityError([]string{"mit", "chen", "mit"})
	assert.Equal(t, []string{"chen", "mit"}, err.MissingIDs, "Expected sorted distinct ids")
	assert.ErrorIs(t, err, ErrReferentialIntegrity)
	assert.Contains(t, err.Error(), "2 missing entities [chen, mit]")

	var target *ReferentialIntegrityError
	wrapped := NewError("build edges", err)
	require.True(t, errors.As(wrapped, &target), "Expected structured error through wrapping")
	assert.Equal(t, err.MissingIDs, target.MissingIDs)
}

func TestIsUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"Nil", nil, false},
		{"Sentinel", ErrDatastoreUnavailable, true},
		{"Bad connection", driver.ErrBadConn, true},
		{"Connection done", fmt.Errorf("commit: %w", sql.ErrConnDone), true},
		{"Connection exception", &pq.Error{Code: "08006"}, true},
		{"Admin shutdown", &pq.Error{Code: "57P01"}, true},
		{"Closed pool", errors.New("sql: database is closed"), true},
		{"Check violation", &pq.Error{Code: "23514"}, false},
		{"No rows", sql.ErrNoRows, false},
		{"Plain error", errors.New("boom"), false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, IsUnavailable(test.err))
		})
	}
}

func TestClassifyError(t *testing.T) {
	t.Run("Nil", func(t *testing.T) {
		assert.NoError(t, ClassifyError("select", nil))
	})

	t.Run("Connection failure becomes unavailable", func(t *testing.T) {
		err := ClassifyError("select", driver.ErrBadConn)
		assert.ErrorIs(t, err, ErrDatastoreUnavailable)
		assert.ErrorIs(t, err, driver.ErrBadConn, "Expected the cause to be kept")
	})

	t.Run("Context errors are kept as they are", func(t *testing.T) {
		err := ClassifyError("select", context.Canceled)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrDatastoreUnavailable)
	})

	t.Run("Item errors are only wrapped", func(t *testing.T) {
		err := ClassifyError("insert", &pq.Error{Code: "23514"})
		assert.NotErrorIs(t, err, ErrDatastoreUnavailable)
		assert.Contains(t, err.Error(), "insert:")
	})
}
