package sampler

import (
	"testing"

	"github.com/juliusm254/llm.c/rng"
	"github.com/stretchr/testify/require"
)

func TestMultinomialDeterministic(t *testing.T) {
	probs := []float32{0.1, 0.2, 0.3, 0.4}
	r1 := rng.New(1337)
	r2 := rng.New(1337)
	for i := 0; i < 16; i++ {
		require.Equal(t, Multinomial(probs, r1), Multinomial(probs, r2))
	}
}

func TestMultinomialFallsBackToLastIndex(t *testing.T) {
	// An all-zero vector keeps the cumulative sum at 0, so no coin in
	// [0,1) satisfies coin < cumulative and the walk must fall through to
	// the last index rather than panic.
	probs := []float32{0, 0, 0}
	idx := Multinomial(probs, rng.New(1))
	require.Equal(t, 2, idx)
}

type fakeForwarder struct {
	vocab, maxT int
	logits      []float32
}

func (f *fakeForwarder) ForwardLogitsLastPos(inp []int32) ([]float32, error) {
	return f.logits, nil
}
func (f *fakeForwarder) VocabSize() int { return f.vocab }
func (f *fakeForwarder) MaxSeqLen() int { return f.maxT }

func TestGenerateGreedyCDFRespectsMaxSeqLen(t *testing.T) {
	f := &fakeForwarder{vocab: 4, maxT: 3, logits: []float32{0, 0, 0, 10}}
	out, err := GenerateGreedyCDF(f, []int32{1}, 10, rng.New(7))
	require.NoError(t, err)
	require.LessOrEqual(t, len(out), f.maxT)
}
