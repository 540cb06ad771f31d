package rng

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestXorShift64Deterministic(t *testing.T) {
	a := New(1337)
	b := New(1337)
	for i := 0; i < 64; i++ {
		require.Equal(t, a.NextU32(), b.NextU32())
	}
}

func TestXorShift64ZeroSeedRemapped(t *testing.T) {
	r := New(0)
	require.NotEqual(t, uint64(0), r.State())
}

func TestFloat32InUnitInterval(t *testing.T) {
	r := New(42)
	for i := 0; i < 1000; i++ {
		v := r.Float32()
		require.GreaterOrEqual(t, v, float32(0))
		require.Less(t, v, float32(1))
	}
}
