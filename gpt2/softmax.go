package gpt2

import (
	"github.com/chewxy/math32"
	"github.com/juliusm254/llm.c/internal/parallel"
)

// softmaxForward computes a numerically-stable softmax over the last axis
// (length V) of a (B,T,V) logits buffer, writing probs. Parallel over
// the flattened (B,T) outer tuple: every row is independent.
//
// There is deliberately no exported softmaxBackward: the engine only ever
// differentiates softmax fused with cross-entropy (see
// crossentropySoftmaxBackward in crossentropy.go). A plain
// softmax-alone backward is not needed by the forward/backward driver and
// is not provided.
func softmaxForward(probs, logits []float32, B, T, V int, workers int) {
	parallel.For(B*T, workers, func(idx int) {
		row := logits[idx*V : idx*V+V]
		out := probs[idx*V : idx*V+V]

		maxval := row[0]
		for _, v := range row[1:] {
			if v > maxval {
				maxval = v
			}
		}

		var sum float32
		for i, v := range row {
			e := math32.Exp(v - maxval)
			out[i] = e
			sum += e
		}
		invSum := float32(1)
		if sum != 0 {
			invSum = 1.0 / sum
		}
		for i := range out {
			out[i] *= invSum
		}
	})
}
