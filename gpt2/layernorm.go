package gpt2

import (
	"github.com/chewxy/math32"
	"github.com/juliusm254/llm.c/internal/parallel"
)

const layerNormEps = 1e-5

// layernormForward normalizes each length-C row of inp independently:
// mean m, population variance v, rstd s = 1/sqrt(v+eps),
// out = (x-m)*s*weight + bias. mean and rstd are cached per (b,t) for the
// backward pass. Rows are independent, so this is parallel over (B,T).
func layernormForward(out, mean, rstd []float32, inp, weight, bias []float32, B, T, C int, workers int) {
	parallel.For(B*T, workers, func(idx int) {
		x := inp[idx*C : idx*C+C]

		var m float32
		for _, v := range x {
			m += v
		}
		m /= float32(C)

		var v float32
		for _, xi := range x {
			d := xi - m
			v += d * d
		}
		v /= float32(C)

		s := 1.0 / math32.Sqrt(v+layerNormEps)

		o := out[idx*C : idx*C+C]
		for i := 0; i < C; i++ {
			n := (x[i] - m) * s
			o[i] = n*weight[i] + bias[i]
		}

		mean[idx] = m
		rstd[idx] = s
	})
}

// layernormBackward accumulates dweight, dbias, and dinp given the
// cached mean/rstd from the forward pass. dweight and dbias are shared
// across every (b,t) row, so this runs serially: parallelizing the
// accumulation would race on those two buffers.
func layernormBackward(dinp, dweight, dbias []float32, dout, inp, weight, mean, rstd []float32, B, T, C int) {
	for idx := 0; idx < B*T; idx++ {
		x := inp[idx*C : idx*C+C]
		do := dout[idx*C : idx*C+C]
		di := dinp[idx*C : idx*C+C]
		m := mean[idx]
		s := rstd[idx]

		var dnormMean, dnormNormMean float32
		for i := 0; i < C; i++ {
			normI := (x[i] - m) * s
			dnormI := weight[i] * do[i]
			dnormMean += dnormI
			dnormNormMean += dnormI * normI
		}
		dnormMean /= float32(C)
		dnormNormMean /= float32(C)

		for i := 0; i < C; i++ {
			normI := (x[i] - m) * s
			dnormI := weight[i] * do[i]

			dbias[i] += do[i]
			dweight[i] += normI * do[i]

			dval := dnormI - dnormMean - normI*dnormNormMean
			di[i] += s * dval
		}
	}
}
