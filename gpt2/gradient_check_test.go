package gpt2

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// lossAt runs a forward+backward cycle and returns the mean loss, used as
// the finite-difference probe below.
func lossAt(t *testing.T, m *Model, inputs, targets []int32, B, T int) float32 {
	t.Helper()
	require.NoError(t, m.Forward(inputs, targets, B, T))
	return m.MeanLoss
}

// TestGradientCheckFiniteDifference spot-checks a handful of parameters
// spread over the flat buffer (two in wte, one in the middle of the
// buffer, the last element of lnfb) against central finite differences. Run at
// float32 precision, so the tolerance is the loosened 1e-2 relative bound
// a single-precision build can actually meet, not the tight bound a
// float64 reference build would allow.
func TestGradientCheckFiniteDifference(t *testing.T) {
	m, err := NewModel(tinyConfig(), 0)
	require.NoError(t, err)
	for i := range m.ParamsMemory {
		m.ParamsMemory[i] = float32((i%11)-5) * 0.07
	}

	B, T := 1, 3
	inputs := []int32{1, 4, 7}
	targets := []int32{2, 5, 8}

	m.ZeroGrad()
	_ = lossAt(t, m, inputs, targets, B, T)
	require.NoError(t, m.Backward())
	analytic := append([]float32(nil), m.GradsMemory...)

	const h = float32(1e-2)
	probe := []int{0, 17, len(m.ParamsMemory) / 2, len(m.ParamsMemory) - 1}

	for _, idx := range probe {
		orig := m.ParamsMemory[idx]

		m.ParamsMemory[idx] = orig + h
		lossPlus := lossAt(t, m, inputs, targets, B, T)

		m.ParamsMemory[idx] = orig - h
		lossMinus := lossAt(t, m, inputs, targets, B, T)

		m.ParamsMemory[idx] = orig

		numeric := (lossPlus - lossMinus) / (2 * h)
		want := analytic[idx]

		scale := float32(1.0)
		if abs32(want) > 1 {
			scale = abs32(want)
		}
		require.InDelta(t, float64(want)/float64(scale), float64(numeric)/float64(scale), 1e-2,
			"gradient mismatch at param index %d: analytic=%v numeric=%v", idx, want, numeric)
	}
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
