// Package sampler turns a probability vector into a chosen token id, and
// drives the token-by-token generation loop against a forward-only model.
//
// Sampling draws a coin in [0,1), walks the cumulative sum of the
// probability vector, and returns the first index whose cumulative sum
// exceeds the coin.
package sampler

import "github.com/juliusm254/llm.c/rng"

// Multinomial samples one index from probs using inverse-CDF sampling.
// probs need not be perfectly normalized; floating-point rounding can
// leave the cumulative sum just short of the coin for every index, in
// which case the last index is returned rather than panicking.
func Multinomial(probs []float32, r *rng.XorShift64) int {
	coin := r.Float32()
	cumulative := float32(0)
	for i, p := range probs {
		cumulative += p
		if coin < cumulative {
			return i
		}
	}
	return len(probs) - 1
}

// Forwarder is the subset of *gpt2.Model a generation loop needs: run a
// forward pass with no targets over the first T positions of inp and
// return the row-V logits of the last position.
type Forwarder interface {
	ForwardLogitsLastPos(inp []int32) ([]float32, error)
	VocabSize() int
	MaxSeqLen() int
}

// GenerateGreedyCDF extends prompt by n tokens, one at a time, each chosen
// by Multinomial over the model's softmax output. It stops early if the
// model's context window (MaxSeqLen) would be exceeded.
func GenerateGreedyCDF(m Forwarder, prompt []int32, n int, r *rng.XorShift64) ([]int32, error) {
	out := append([]int32(nil), prompt...)
	for step := 0; step < n; step++ {
		if len(out) >= m.MaxSeqLen() {
			break
		}
		logits, err := m.ForwardLogitsLastPos(out)
		if err != nil {
			return out, err
		}
		probs := softmaxRow(logits)
		next := Multinomial(probs, r)
		out = append(out, int32(next))
	}
	return out, nil
}

// softmaxRow is a small, self-contained stable softmax used only to turn
// the last-position logits into a probability row for sampling; the
// engine's own softmax op (package gpt2) is used everywhere a
// differentiable forward pass is required.
func softmaxRow(logits []float32) []float32 {
	maxv := logits[0]
	for _, v := range logits[1:] {
		if v > maxv {
			maxv = v
		}
	}
	probs := make([]float32, len(logits))
	var sum float32
	for i, v := range logits {
		e := expf(v - maxv)
		probs[i] = e
		sum += e
	}
	if sum == 0 {
		sum = 1
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
