package dbretry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryableError(t *testing.T) {
	t.Parallel()

	assert.False(t, IsRetryableError(nil))
	assert.False(t, IsRetryableError(errors.New("duplicate key value violates unique constraint")))

	assert.True(t, IsRetryableError(errors.New("read tcp: connection reset by peer")))
	assert.True(t, IsRetryableError(errors.New("write: broken pipe")))
	assert.True(t, IsRetryableError(errors.New("dial tcp: connection refused")))
	assert.True(t, IsRetryableError(errors.New("unexpected EOF")))
	assert.True(t, IsRetryableError(context.DeadlineExceeded))
}

func TestOperationStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	calls := 0

	_, err := Operation(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("syntax error at or near")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestOperationRetriesTransientError(t *testing.T) {
	t.Parallel()

	calls := 0

	result, err := Operation(context.Background(), func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("connection refused")
		}

		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)
}

func TestNoResult(t *testing.T) {
	t.Parallel()

	err := NoResult(context.Background(), func(context.Context) error {
		return nil
	})
	require.NoError(t, err)
}
