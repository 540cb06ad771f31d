package gpt2

import "github.com/juliusm254/llm.c/internal/parallel"

// matmulForward computes out(B,T,OC) = inp(B,T,C) . weight^T(OC,C) [+ bias(OC)].
// weight is stored row-major (OC,C): row o holds the contribution for
// output channel o. bias may be nil (the tied logits projection has none).
// Parallel over the flattened (B,T) outer index: every output row is
// independent.
func matmulForward(out, inp, weight, bias []float32, B, T, C, OC int, workers int) {
	parallel.For(B*T, workers, func(idx int) {
		x := inp[idx*C : idx*C+C]
		o := out[idx*OC : idx*OC+OC]
		for oc := 0; oc < OC; oc++ {
			var sum float32
			if bias != nil {
				sum = bias[oc]
			}
			w := weight[oc*C : oc*C+C]
			for i := 0; i < C; i++ {
				sum += x[i] * w[i]
			}
			o[oc] = sum
		}
	})
}

// matmulBackward accumulates dinp, dweight, and dbias from dout. This is
// split into two independent parallel passes: a single fused loop would
// race multiple (B,T) workers writing the same dweight row. The first
// pass parallelizes over (B,T) for dinp; the second parallelizes over
// output channel o for dweight/dbias, where each worker owns disjoint
// rows of dweight and disjoint elements of dbias.
func matmulBackward(dinp, dweight, dbias []float32, dout, inp, weight []float32, B, T, C, OC int, workers int) {
	parallel.For(B*T, workers, func(idx int) {
		do := dout[idx*OC : idx*OC+OC]
		di := dinp[idx*C : idx*C+C]
		for oc := 0; oc < OC; oc++ {
			g := do[oc]
			if g == 0 {
				continue
			}
			w := weight[oc*C : oc*C+C]
			for i := 0; i < C; i++ {
				di[i] += g * w[i]
			}
		}
	})

	parallel.For(OC, workers, func(oc int) {
		dw := dweight[oc*C : oc*C+C]
		for idx := 0; idx < B*T; idx++ {
			g := dout[idx*OC+oc]
			if dbias != nil {
				dbias[oc] += g
			}
			x := inp[idx*C : idx*C+C]
			for i := 0; i < C; i++ {
				dw[i] += g * x[i]
			}
		}
	})
}
