package gpt2

import "github.com/chewxy/math32"

const geluScalingFactor = 0.7978845608028654 // sqrt(2/pi)

// geluForward applies the tanh approximation of GELU elementwise:
// 0.5*x*(1 + tanh(sqrt(2/pi)*(x + 0.044715*x^3))).
func geluForward(out, inp []float32) {
	for i, x := range inp {
		cube := 0.044715 * x * x * x
		out[i] = 0.5 * x * (1.0 + math32.Tanh(geluScalingFactor*(x+cube)))
	}
}

// geluBackward differentiates the tanh approximation exactly (no further
// approximation) and accumulates into dinp.
func geluBackward(dinp, inp, dout []float32) {
	for i, x := range inp {
		cube := 0.044715 * x * x * x
		tanhArg := geluScalingFactor * (x + cube)
		tanhOut := math32.Tanh(tanhArg)
		coshOut := math32.Cosh(tanhArg)
		sechOut := 1.0 / (coshOut * coshOut)
		localGrad := 0.5*(1.0+tanhOut) + x*0.5*sechOut*geluScalingFactor*(1.0+3.0*0.044715*x*x)
		dinp[i] += localGrad * dout[i]
	}
}
