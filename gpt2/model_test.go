package gpt2

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/juliusm254/llm.c/errs"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	m, err := NewModel(tinyConfig(), 0)
	require.NoError(t, err)
	for i := range m.ParamsMemory {
		// deterministic, non-degenerate weights
		m.ParamsMemory[i] = float32((i%13)-6) * 0.05
	}
	return m
}

func TestForwardBackwardSmoke(t *testing.T) {
	m := newTestModel(t)
	B, T := 2, 3
	inputs := []int32{1, 2, 3, 4, 5, 6}
	targets := []int32{2, 3, 4, 5, 6, 7}

	require.NoError(t, m.Forward(inputs, targets, B, T))
	require.NotEqual(t, float32(-1.0), m.MeanLoss)

	require.NoError(t, m.Backward())
	require.NotNil(t, m.GradsMemory)

	var gradNormSq float32
	for _, g := range m.GradsMemory {
		gradNormSq += g * g
	}
	require.Greater(t, gradNormSq, float32(0))
}

func TestForwardWithoutTargetsSetsSentinelLoss(t *testing.T) {
	m := newTestModel(t)
	require.NoError(t, m.Forward([]int32{1, 2, 3}, nil, 1, 3))
	require.Equal(t, float32(-1.0), m.MeanLoss)
}

func TestBackwardWithoutTargetedForwardIsStateViolation(t *testing.T) {
	m := newTestModel(t)
	require.NoError(t, m.Forward([]int32{1, 2, 3}, nil, 1, 3))
	err := m.Backward()
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrStateViolation))
}

func TestForwardExceedingFirstShapeIsShapeOverflow(t *testing.T) {
	m := newTestModel(t)
	require.NoError(t, m.Forward([]int32{1, 2}, []int32{2, 3}, 1, 2))
	err := m.Forward([]int32{1, 2, 3, 4}, []int32{2, 3, 4, 5}, 2, 2)
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrShapeOverflow))
}

func TestZeroGradIsIdempotentAndNoOpBeforeBackward(t *testing.T) {
	m := newTestModel(t)
	m.ZeroGrad() // no grads allocated yet: must not panic

	require.NoError(t, m.Forward([]int32{1, 2, 3}, []int32{2, 3, 4}, 1, 3))
	require.NoError(t, m.Backward())

	snapshot := append([]float32(nil), m.GradsMemory...)
	m.ZeroGrad()
	for _, g := range m.GradsMemory {
		require.Equal(t, float32(0), g)
	}
	m.ZeroGrad()
	for _, g := range m.GradsMemory {
		require.Equal(t, float32(0), g)
	}
	require.NotEqual(t, snapshot, m.GradsMemory)
}

func TestTiedEmbeddingGradientAccumulatesFromBothPaths(t *testing.T) {
	// grads.Wte receives a contribution from the logits-matmul backward
	// (every position, through the tied output projection) and a second,
	// independent contribution from encoderBackward (every position,
	// through the input embedding). A repeated token id also accumulates
	// twice within encoderBackward alone, across its two occurrences.
	m := newTestModel(t)
	C := m.Config.Channels

	repeated := int32(3)
	require.NoError(t, m.Forward([]int32{repeated, repeated, 5}, []int32{5, 5, 3}, 1, 3))
	require.NoError(t, m.Backward())

	repeatedRow := m.Grads.Wte[int(repeated)*C : int(repeated)*C+C]
	var repeatedNormSq float32
	for _, g := range repeatedRow {
		repeatedNormSq += g * g
	}
	require.Greater(t, repeatedNormSq, float32(0), "tied embedding row for a token used twice must receive gradient")

	var totalNormSq float32
	for _, g := range m.Grads.Wte {
		totalNormSq += g * g
	}
	require.Greater(t, totalNormSq, repeatedNormSq*0.5)

	// Recompute each path's contribution into fresh buffers from the
	// activation gradients Backward left behind: grads.Wte must be their sum.
	B, T, V := 1, 3, m.Config.VocabSize
	logitsPath := make([]float32, len(m.Grads.Wte))
	scratchDlnf := make([]float32, B*T*C)
	matmulBackward(scratchDlnf, logitsPath, nil, m.GradActs.Logits[:B*T*V], m.Acts.Lnf[:B*T*C], m.Params.Wte, B, T, C, V, 0)
	encoderPath := make([]float32, len(m.Grads.Wte))
	scratchDwpe := make([]float32, len(m.Grads.Wpe))
	encoderBackward(encoderPath, scratchDwpe, m.GradActs.Encoded[:B*T*C], m.Inputs[:B*T], B, T, C)
	for i, g := range m.Grads.Wte {
		require.InDelta(t, float64(logitsPath[i]+encoderPath[i]), float64(g), 1e-5)
	}
}

func TestForwardLogitsLastPosMatchesVocabSize(t *testing.T) {
	m := newTestModel(t)
	logits, err := m.ForwardLogitsLastPos([]int32{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, logits, m.Config.VocabSize)
}

func TestForwardLogitsLastPosGrowsUpToMaxSeqLenOnAFreshModel(t *testing.T) {
	// ForwardLogitsLastPos is what a generation loop calls once per
	// emitted token, each time with one more token of input than the
	// last. On a model that has never been forwarded before, the very
	// first of these calls must not fix the activation ceiling at its own
	// short length; every length up to MaxSeqLen must keep succeeding.
	m := newTestModel(t)
	prompt := []int32{1, 2, 3}
	inp := append([]int32(nil), prompt...)
	for len(inp) <= m.Config.MaxSeqLen {
		logits, err := m.ForwardLogitsLastPos(inp)
		require.NoError(t, err)
		require.Len(t, logits, m.Config.VocabSize)
		inp = append(inp, 1)
	}

	_, err := m.ForwardLogitsLastPos(inp)
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrShapeOverflow))
}
