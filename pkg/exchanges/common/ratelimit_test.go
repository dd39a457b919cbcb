package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottleBurst(t *testing.T) {
	th := NewThrottle(0.001, 2)

	assert.True(t, th.Allow())
	assert.True(t, th.Allow())
	assert.False(t, th.Allow())
	assert.Equal(t, uint64(1), th.Denied())
}

func TestThrottleDisabled(t *testing.T) {
	th := NewThrottle(0, 0)
	for i := 0; i < 1000; i++ {
		require.True(t, th.Allow())
	}
	assert.Zero(t, th.Denied())
}
