package pda

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestU64LE(t *testing.T) {
	assert.Equal(t, []byte{0x00, 0xca, 0x9a, 0x3b, 0, 0, 0, 0}, u64LE(1_000_000_000))
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, u64LE(^uint64(0)))
}
