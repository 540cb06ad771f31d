package gpt2

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/juliusm254/llm.c/errs"
)

// Update applies one AdamW step to every parameter, using the gradient
// buffer accumulated since the last ZeroGrad. Moments are allocated and
// zero-initialized lazily on the first call. Weight decay is decoupled:
// it is applied directly to the parameter, not folded into the gradient
// before the moment update.
func (m *Model) Update(lr, beta1, beta2, eps, weightDecay float32) error {
	if m.GradsMemory == nil {
		return fmt.Errorf("gpt2: Update called before any Backward: %w", errs.ErrStateViolation)
	}
	if m.AdamM == nil {
		m.AdamM = make([]float32, len(m.ParamsMemory))
		m.AdamV = make([]float32, len(m.ParamsMemory))
	}
	m.Step++
	t := float32(m.Step)
	bc1 := 1 - math32.Pow(beta1, t)
	bc2 := 1 - math32.Pow(beta2, t)

	params := m.ParamsMemory
	grads := m.GradsMemory
	for i, g := range grads {
		m.AdamM[i] = beta1*m.AdamM[i] + (1-beta1)*g
		m.AdamV[i] = beta2*m.AdamV[i] + (1-beta2)*g*g

		mHat := m.AdamM[i] / bc1
		vHat := m.AdamV[i] / bc2

		params[i] -= lr * (mHat/(math32.Sqrt(vHat)+eps) + weightDecay*params[i])
	}
	return nil
}
