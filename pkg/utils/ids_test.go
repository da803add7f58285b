package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenUniqueIDIsPositive(t *testing.T) {
	id, err := GenUniqueID("042", 123456789, 7)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))
}

func TestGeneratorProducesDistinctIDs(t *testing.T) {
	g := NewGenerator()
	seen := make(map[int64]bool)
	for i := 0; i < 1000; i++ {
		id, err := g.NextID()
		require.NoError(t, err)
		assert.False(t, seen[id], "id %d generated twice", id)
		seen[id] = true
	}
}

func TestCounterAdvancesWithinSameMillisecond(t *testing.T) {
	g := NewGenerator()
	const ts = int64(123456789)
	prev := int64(0)
	for i := 0; i < 5; i++ {
		c, err := g.nextCounter(ts)
		require.NoError(t, err)
		assert.Greater(t, c, prev, "call %d must not repeat a counter value", i)
		prev = c
	}
}

func TestHashMacAddressPidWidth(t *testing.T) {
	for _, mac := range []string{"", "aa:bb:cc:dd:ee:ff", "01:02:03:04:05:06"} {
		assert.Len(t, HashMacAddressPid(mac), 3)
	}
}
