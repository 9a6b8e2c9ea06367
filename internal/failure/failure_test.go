package failure_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/coldbell/candyshop/internal/failure"
	"github.com/stretchr/testify/assert"
)

func TestKindUnwrapsContext(t *testing.T) {
	err := fmt.Errorf("make bid: %w: minimum is 110", failure.ErrBidTooLow)
	assert.Equal(t, "BidTooLow", failure.Kind(err))
	assert.False(t, failure.Retryable(err))
}

func TestKindUnknown(t *testing.T) {
	assert.Equal(t, "", failure.Kind(nil))
	assert.Equal(t, "", failure.Kind(errors.New("boom")))
}

func TestRetryable(t *testing.T) {
	assert.True(t, failure.Retryable(fmt.Errorf("confirm: %w", failure.ErrTimeout)))
	assert.True(t, failure.Retryable(fmt.Errorf("%w: custom program error 0x1", failure.ErrTransactionFailed)))
	assert.Equal(t, "Timeout", failure.Kind(failure.ErrTimeout))
}
