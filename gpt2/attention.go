package gpt2

import (
	"github.com/chewxy/math32"
	"github.com/juliusm254/llm.c/internal/parallel"
)

// negInfSentinel stands in for -infinity in the attention max-shift. It
// is deliberately not math32.Inf(-1): a finite sentinel keeps every
// subsequent exp() call well-defined even if no in-range score ever beats
// it. At logits far in excess of ~1e4 this sentinel stops being a safe
// lower bound and the max-shift can fail; that limitation is accepted
// rather than switching to a true running max seeded from preatt[0].
const negInfSentinel = -1e4

// attentionForward computes causal multi-head scaled dot-product
// attention. qkv holds the concatenation of Q, K, V along the last axis,
// each (B,T,C); within each of Q/K/V, head h occupies channels
// [h*hs, (h+1)*hs). preatt and att are (B,NH,T,T); out is (B,T,C).
//
// Parallel over the flattened (b,h,t) outer tuple: every query position
// writes its own disjoint preatt/att row and its own disjoint slice of
// out.
func attentionForward(out, preatt, att, qkv []float32, B, T, C, NH int, workers int) {
	hs := C / NH
	scale := 1.0 / math32.Sqrt(float32(hs))
	C3 := 3 * C

	parallel.For(B*NH*T, workers, func(idx int) {
		t := idx % T
		h := (idx / T) % NH
		b := idx / (T * NH)

		qOff := b*T*C3 + t*C3 + h*hs
		queryT := qkv[qOff : qOff+hs]

		preattRow := preatt[(b*NH+h)*T*T+t*T : (b*NH+h)*T*T+t*T+T]
		attRow := att[(b*NH+h)*T*T+t*T : (b*NH+h)*T*T+t*T+T]

		maxval := float32(negInfSentinel)
		for t2 := 0; t2 <= t; t2++ {
			kOff := b*T*C3 + t2*C3 + h*hs + C
			keyT2 := qkv[kOff : kOff+hs]
			var dot float32
			for i := 0; i < hs; i++ {
				dot += queryT[i] * keyT2[i]
			}
			dot *= scale
			if dot > maxval {
				maxval = dot
			}
			preattRow[t2] = dot
		}

		var expsum float32
		for t2 := 0; t2 <= t; t2++ {
			e := math32.Exp(preattRow[t2] - maxval)
			expsum += e
			attRow[t2] = e
		}
		expsumInv := float32(0)
		if expsum != 0 {
			expsumInv = 1.0 / expsum
		}
		for t2 := 0; t2 <= t; t2++ {
			attRow[t2] *= expsumInv
		}
		for t2 := t + 1; t2 < T; t2++ {
			attRow[t2] = 0
		}

		outRow := out[b*T*C+t*C+h*hs : b*T*C+t*C+h*hs+hs]
		for i := range outRow {
			outRow[i] = 0
		}
		for t2 := 0; t2 <= t; t2++ {
			vOff := b*T*C3 + t2*C3 + h*hs + 2*C
			valueT2 := qkv[vOff : vOff+hs]
			a := attRow[t2]
			for i := 0; i < hs; i++ {
				outRow[i] += a * valueT2[i]
			}
		}
	})
}

// attentionBackward is serial: for a fixed (b,h), different query
// positions t write into overlapping dK/dV rows (every t2 <= t), so
// parallelizing over t would race without per-thread shadow buffers.
func attentionBackward(dqkv, dpreatt, datt []float32, dout, qkv, att []float32, B, T, C, NH int) {
	hs := C / NH
	scale := 1.0 / math32.Sqrt(float32(hs))
	C3 := 3 * C

	for b := 0; b < B; b++ {
		for h := 0; h < NH; h++ {
			for t := 0; t < T; t++ {
				attRow := att[(b*NH+h)*T*T+t*T : (b*NH+h)*T*T+t*T+T]
				dattRow := datt[(b*NH+h)*T*T+t*T : (b*NH+h)*T*T+t*T+T]
				dpreattRow := dpreatt[(b*NH+h)*T*T+t*T : (b*NH+h)*T*T+t*T+T]

				qOff := b*T*C3 + t*C3 + h*hs
				queryT := qkv[qOff : qOff+hs]
				dqueryT := dqkv[qOff : qOff+hs]

				doutRow := dout[b*T*C+t*C+h*hs : b*T*C+t*C+h*hs+hs]

				// value path
				for t2 := 0; t2 <= t; t2++ {
					vOff := b*T*C3 + t2*C3 + h*hs + 2*C
					valueT2 := qkv[vOff : vOff+hs]
					dvalueT2 := dqkv[vOff : vOff+hs]
					for i := 0; i < hs; i++ {
						dattRow[t2] += valueT2[i] * doutRow[i]
						dvalueT2[i] += attRow[t2] * doutRow[i]
					}
				}

				// softmax Jacobian, restricted to the causal triangle
				for t2 := 0; t2 <= t; t2++ {
					for t3 := 0; t3 <= t; t3++ {
						indicator := float32(0)
						if t2 == t3 {
							indicator = 1
						}
						local := attRow[t2] * (indicator - attRow[t3])
						dpreattRow[t3] += local * dattRow[t2]
					}
				}

				// QK path
				for t2 := 0; t2 <= t; t2++ {
					kOff := b*T*C3 + t2*C3 + h*hs + C
					keyT2 := qkv[kOff : kOff+hs]
					dkeyT2 := dqkv[kOff : kOff+hs]
					for i := 0; i < hs; i++ {
						dqueryT[i] += keyT2[i] * dpreattRow[t2] * scale
						dkeyT2[i] += queryT[i] * dpreattRow[t2] * scale
					}
				}
			}
		}
	}
}
