package gpt2

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSoftmaxForwardRowsSumToOne(t *testing.T) {
	B, T, V := 2, 3, 5
	logits := make([]float32, B*T*V)
	for i := range logits {
		logits[i] = float32(i%7) - 3
	}
	probs := make([]float32, B*T*V)

	softmaxForward(probs, logits, B, T, V, 0)

	for row := 0; row < B*T; row++ {
		var sum float32
		for _, p := range probs[row*V : row*V+V] {
			require.GreaterOrEqual(t, p, float32(0))
			sum += p
		}
		require.InDelta(t, 1.0, float64(sum), 1e-5)
	}
}

func TestSoftmaxForwardIsShiftInvariant(t *testing.T) {
	V := 4
	logits := []float32{1, 2, 3, 4}
	shifted := []float32{101, 102, 103, 104}

	out1 := make([]float32, V)
	out2 := make([]float32, V)
	softmaxForward(out1, logits, 1, 1, V, 0)
	softmaxForward(out2, shifted, 1, 1, V, 0)

	for i := range out1 {
		require.InDelta(t, float64(out1[i]), float64(out2[i]), 1e-4)
	}
}
