package market_test

import (
	"testing"

	"github.com/coldbell/candyshop/internal/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	units, err := market.ToBaseUnits("1.25", 9)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_250_000_000), units)

	units, err = market.ToBaseUnits("42", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), units)

	for _, bad := range []string{"10.5", "-1", "abc", "18446744073709551616"} {
		_, err := market.ToBaseUnits(bad, 0)
		assert.Error(t, err, bad)
	}
}

func TestFromBaseUnits(t *testing.T) {
	assert.Equal(t, "1.25", market.FromBaseUnits(1_250_000_000, 9))
	assert.Equal(t, "0.000000001", market.FromBaseUnits(1, 9))
	assert.Equal(t, "7", market.FromBaseUnits(7, 0))
}
