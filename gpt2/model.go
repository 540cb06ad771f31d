package gpt2

import (
	"fmt"

	"github.com/juliusm254/llm.c/errs"
)

// sentinelNoLoss is the "no loss available" marker MeanLoss holds after a
// forward call with no targets.
const sentinelNoLoss = -1.0

// Model owns the flat parameter buffer plus the lazily-allocated
// parameter-gradient, activation, activation-gradient, and AdamW moment
// buffers, and drives the forward/backward/update cycle over them.
//
// The 16 named parameter tensors and 23 named activation tensors are
// never represented as raw pointers; each is a slice view into one of
// the four flat allocations (params, grads, acts, grad-acts), carved out
// once by allocParamTensors / allocActTensors.
type Model struct {
	Config Config
	Step   int // AdamW step index; 0 before the first Update

	Params       ParamTensors
	ParamsMemory []float32
	paramSizes   [NumParamTensors]int

	Grads       ParamTensors
	GradsMemory []float32

	AdamM []float32 // AdamW first moment
	AdamV []float32 // AdamW second moment

	Acts       ActTensors
	ActsMemory []float32
	actSizes   [NumActTensors]int

	GradActs       ActTensors
	GradActsMemory []float32

	allocB, allocT int // B fixed by the first forward call; T fixed at Config.MaxSeqLen
	lastB, lastT   int // batch shape used by the most recent forward call
	hasTargets     bool

	Inputs  []int32
	Targets []int32

	MeanLoss float32

	Workers int // bound on intra-op goroutine fan-out; 0 means GOMAXPROCS
}

// NewModel allocates the parameter buffer for cfg and returns an
// otherwise-empty model: activations, gradients, and moments are all
// allocated lazily by Forward/Backward/Update respectively.
func NewModel(cfg Config, workers int) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	params, buf, sizes := allocParamTensors(cfg)
	return &Model{
		Config:       cfg,
		Params:       params,
		ParamsMemory: buf,
		paramSizes:   sizes,
		MeanLoss:     sentinelNoLoss,
		Workers:      workers,
	}, nil
}

// NumParameters returns the total element count of the flat parameter
// buffer.
func (m *Model) NumParameters() int { return len(m.ParamsMemory) }

// VocabSize and MaxSeqLen satisfy sampler.Forwarder.
func (m *Model) VocabSize() int { return m.Config.VocabSize }
func (m *Model) MaxSeqLen() int { return m.Config.MaxSeqLen }

// ensureActs allocates the activation buffer on the first call and
// validates B,T against that allocation's ceiling on every later call.
//
// The T ceiling is fixed at Config.MaxSeqLen, not the literal T of the
// first call: a single Model is routinely forwarded first at some
// training (B,T) and later, for sampling, at growing T within the same
// process (each generated token re-forwards the whole prefix so far, one
// token longer than the last). Sizing the allocation to the literal first
// T would fix that ceiling at whatever the first call happened to pass,
// and break every later call past it. MaxSeqLen is the one number the
// model guarantees it will never be asked to exceed, so it is the only
// safe ceiling to allocate against up front. B has no equivalent
// model-wide ceiling, so it is still taken from the first call literally.
func (m *Model) ensureActs(B, T int) error {
	if T > m.Config.MaxSeqLen {
		return fmt.Errorf("gpt2: forward T=%d exceeds MaxSeqLen=%d: %w", T, m.Config.MaxSeqLen, errs.ErrShapeOverflow)
	}
	if m.ActsMemory == nil {
		allocT := m.Config.MaxSeqLen
		acts, buf, sizes := allocActTensors(m.Config, B, allocT)
		m.Acts, m.ActsMemory, m.actSizes = acts, buf, sizes
		m.allocB, m.allocT = B, allocT
		m.Inputs = make([]int32, B*allocT)
		m.Targets = make([]int32, B*allocT)
		return nil
	}
	if B > m.allocB || T > m.allocT {
		return fmt.Errorf("gpt2: forward (B=%d,T=%d) exceeds first-forward allocation (B=%d,T=%d): %w",
			B, T, m.allocB, m.allocT, errs.ErrShapeOverflow)
	}
	return nil
}

// Forward runs the full encoder -> N transformer blocks -> final
// layernorm -> tied logits -> softmax -> (optional) cross-entropy
// pipeline. targets may be nil; if so,
// MeanLoss is set to the sentinel and backward is not callable until a
// subsequent targeted forward.
func (m *Model) Forward(inputs []int32, targets []int32, B, T int) error {
	if err := m.ensureActs(B, T); err != nil {
		return err
	}
	if len(inputs) < B*T {
		return fmt.Errorf("gpt2: Forward: inputs shorter than B*T=%d", B*T)
	}

	cfg := m.Config
	C, L, NH, V := cfg.Channels, cfg.NumLayers, cfg.NumHeads, cfg.VocabSize

	copy(m.Inputs[:B*T], inputs[:B*T])
	m.hasTargets = targets != nil
	if m.hasTargets {
		if len(targets) < B*T {
			return fmt.Errorf("gpt2: Forward: targets shorter than B*T=%d", B*T)
		}
		copy(m.Targets[:B*T], targets[:B*T])
	}

	acts := &m.Acts
	params := &m.Params

	encoderForward(acts.Encoded[:B*T*C], m.Inputs[:B*T], params.Wte, params.Wpe, B, T, C)

	residual := acts.Encoded[:B*T*C]
	for l := 0; l < L; l++ {
		ln1w := layerSlice(params.Ln1w, l, C)
		ln1b := layerSlice(params.Ln1b, l, C)
		qkvw := layerSlice(params.Qkvw, l, 3*C*C)
		qkvb := layerSlice(params.Qkvb, l, 3*C)
		attprojw := layerSlice(params.Attprojw, l, C*C)
		attprojb := layerSlice(params.Attprojb, l, C)
		ln2w := layerSlice(params.Ln2w, l, C)
		ln2b := layerSlice(params.Ln2b, l, C)
		fcw := layerSlice(params.Fcw, l, 4*C*C)
		fcb := layerSlice(params.Fcb, l, 4*C)
		fcprojw := layerSlice(params.Fcprojw, l, C*4*C)
		fcprojb := layerSlice(params.Fcprojb, l, C)

		ln1 := layerSlice(acts.Ln1, l, B*T*C)
		ln1Mean := layerSlice(acts.Ln1Mean, l, B*T)
		ln1Rstd := layerSlice(acts.Ln1Rstd, l, B*T)
		qkv := layerSlice(acts.Qkv, l, B*T*3*C)
		atty := layerSlice(acts.Atty, l, B*T*C)
		preatt := layerSlice(acts.Preatt, l, B*NH*T*T)
		att := layerSlice(acts.Att, l, B*NH*T*T)
		attproj := layerSlice(acts.Attproj, l, B*T*C)
		residual2 := layerSlice(acts.Residual2, l, B*T*C)
		ln2 := layerSlice(acts.Ln2, l, B*T*C)
		ln2Mean := layerSlice(acts.Ln2Mean, l, B*T)
		ln2Rstd := layerSlice(acts.Ln2Rstd, l, B*T)
		fch := layerSlice(acts.Fch, l, B*T*4*C)
		fchGelu := layerSlice(acts.FchGelu, l, B*T*4*C)
		fcproj := layerSlice(acts.Fcproj, l, B*T*C)
		residual3 := layerSlice(acts.Residual3, l, B*T*C)

		layernormForward(ln1, ln1Mean, ln1Rstd, residual, ln1w, ln1b, B, T, C, m.Workers)
		matmulForward(qkv, ln1, qkvw, qkvb, B, T, C, 3*C, m.Workers)
		attentionForward(atty, preatt, att, qkv, B, T, C, NH, m.Workers)
		matmulForward(attproj, atty, attprojw, attprojb, B, T, C, C, m.Workers)
		residualForward(residual2, residual, attproj)
		layernormForward(ln2, ln2Mean, ln2Rstd, residual2, ln2w, ln2b, B, T, C, m.Workers)
		matmulForward(fch, ln2, fcw, fcb, B, T, C, 4*C, m.Workers)
		geluForward(fchGelu, fch)
		matmulForward(fcproj, fchGelu, fcprojw, fcprojb, B, T, 4*C, C, m.Workers)
		residualForward(residual3, residual2, fcproj)

		residual = residual3
	}

	lnf := acts.Lnf[:B*T*C]
	lnfMean := acts.LnfMean[:B*T]
	lnfRstd := acts.LnfRstd[:B*T]
	logits := acts.Logits[:B*T*V]
	probs := acts.Probs[:B*T*V]

	layernormForward(lnf, lnfMean, lnfRstd, residual, params.Lnfw, params.Lnfb, B, T, C, m.Workers)
	matmulForward(logits, lnf, params.Wte, nil, B, T, C, V, m.Workers)
	softmaxForward(probs, logits, B, T, V, m.Workers)

	if m.hasTargets {
		losses := acts.Losses[:B*T]
		crossentropyForward(losses, probs, m.Targets[:B*T], B, T, V)
		var sum float32
		for _, l := range losses {
			sum += l
		}
		m.MeanLoss = sum / float32(B*T)
	} else {
		m.MeanLoss = sentinelNoLoss
	}

	m.lastB, m.lastT = B, T
	return nil
}

// ForwardLogitsLastPos runs a targets-less forward over inp and returns
// the V-length logit row of the final position, for the sampler.
func (m *Model) ForwardLogitsLastPos(inp []int32) ([]float32, error) {
	T := len(inp)
	if err := m.Forward(inp, nil, 1, T); err != nil {
		return nil, err
	}
	V := m.Config.VocabSize
	last := T - 1
	row := m.Acts.Logits[last*V : last*V+V]
	out := make([]float32, V)
	copy(out, row)
	return out, nil
}

// ensureGrads allocates the parameter-gradient and activation-gradient
// buffers on first use, mirroring the parameter and activation layouts
// exactly, and zeroes them.
func (m *Model) ensureGrads() {
	if m.GradsMemory == nil {
		grads, buf, _ := allocParamTensors(m.Config)
		m.Grads, m.GradsMemory = grads, buf
	}
	if m.GradActsMemory == nil {
		gacts, buf, _ := allocActTensors(m.Config, m.allocB, m.allocT)
		m.GradActs, m.GradActsMemory = gacts, buf
	}
}

// ZeroGrad zeroes both gradient buffers. It is a no-op if they have not
// been allocated yet (i.e. Backward has never run); calling it twice in a
// row leaves the buffers identical to calling it once.
func (m *Model) ZeroGrad() {
	for i := range m.GradsMemory {
		m.GradsMemory[i] = 0
	}
	for i := range m.GradActsMemory {
		m.GradActsMemory[i] = 0
	}
}

// Backward runs the exact reverse of Forward over the most recent
// targeted forward call's (B,T), accumulating into the gradient buffers
// with +=. It requires a prior forward that was given targets; a
// forward with targets=nil leaves MeanLoss at the sentinel, and Backward
// rejects that state.
func (m *Model) Backward() error {
	if m.MeanLoss == sentinelNoLoss {
		return fmt.Errorf("gpt2: Backward called without a prior targeted forward: %w", errs.ErrStateViolation)
	}
	m.ensureGrads()

	cfg := m.Config
	C, L, NH, V := cfg.Channels, cfg.NumLayers, cfg.NumHeads, cfg.VocabSize
	B, T := m.lastB, m.lastT

	acts := &m.Acts
	params := &m.Params
	grads := &m.Grads
	gacts := &m.GradActs

	dlosses := gacts.Losses[:B*T]
	for i := range dlosses {
		dlosses[i] = 1.0 / float32(B*T)
	}

	dlogits := gacts.Logits[:B*T*V]
	crossentropySoftmaxBackward(dlogits, dlosses, acts.Probs[:B*T*V], m.Targets[:B*T], B, T, V)

	// Logits matmul backward: tied weight is wte, no bias. This is the
	// first of the two backward contributions into grads.Wte; the
	// second comes from encoderBackward at the very end. Both must
	// accumulate (+=), never overwrite.
	dlnf := gacts.Lnf[:B*T*C]
	matmulBackward(dlnf, grads.Wte, nil, dlogits, acts.Lnf[:B*T*C], params.Wte, B, T, C, V, m.Workers)

	// The stream feeding the final layernorm is the last layer's
	// residual3 (or, with zero layers, the raw encoder output). Its
	// gradient slot is that same tensor's gradient buffer: the per-layer
	// loop below, on its first (highest-l) iteration, finds its
	// dresidual3 already populated by this call.
	var finalResidual, finalResidualGrad []float32
	if L > 0 {
		finalResidual = layerSlice(acts.Residual3, L-1, B*T*C)
		finalResidualGrad = layerSlice(gacts.Residual3, L-1, B*T*C)
	} else {
		finalResidual = acts.Encoded[:B*T*C]
		finalResidualGrad = gacts.Encoded[:B*T*C]
	}
	layernormBackward(finalResidualGrad, grads.Lnfw, grads.Lnfb, dlnf, finalResidual, params.Lnfw, acts.LnfMean[:B*T], acts.LnfRstd[:B*T], B, T, C)

	for l := L - 1; l >= 0; l-- {
		ln1w := layerSlice(params.Ln1w, l, C)
		qkvw := layerSlice(params.Qkvw, l, 3*C*C)
		attprojw := layerSlice(params.Attprojw, l, C*C)
		ln2w := layerSlice(params.Ln2w, l, C)
		fcw := layerSlice(params.Fcw, l, 4*C*C)
		fcprojw := layerSlice(params.Fcprojw, l, C*4*C)

		dln1w := layerSlice(grads.Ln1w, l, C)
		dln1b := layerSlice(grads.Ln1b, l, C)
		dqkvw := layerSlice(grads.Qkvw, l, 3*C*C)
		dqkvb := layerSlice(grads.Qkvb, l, 3*C)
		dattprojw := layerSlice(grads.Attprojw, l, C*C)
		dattprojb := layerSlice(grads.Attprojb, l, C)
		dln2w := layerSlice(grads.Ln2w, l, C)
		dln2b := layerSlice(grads.Ln2b, l, C)
		dfcw := layerSlice(grads.Fcw, l, 4*C*C)
		dfcb := layerSlice(grads.Fcb, l, 4*C)
		dfcprojw := layerSlice(grads.Fcprojw, l, C*4*C)
		dfcprojb := layerSlice(grads.Fcprojb, l, C)

		ln1 := layerSlice(acts.Ln1, l, B*T*C)
		ln1Mean := layerSlice(acts.Ln1Mean, l, B*T)
		ln1Rstd := layerSlice(acts.Ln1Rstd, l, B*T)
		qkv := layerSlice(acts.Qkv, l, B*T*3*C)
		atty := layerSlice(acts.Atty, l, B*T*C)
		att := layerSlice(acts.Att, l, B*NH*T*T)
		ln2 := layerSlice(acts.Ln2, l, B*T*C)
		ln2Mean := layerSlice(acts.Ln2Mean, l, B*T)
		ln2Rstd := layerSlice(acts.Ln2Rstd, l, B*T)
		fch := layerSlice(acts.Fch, l, B*T*4*C)
		fchGelu := layerSlice(acts.FchGelu, l, B*T*4*C)
		residual2 := layerSlice(acts.Residual2, l, B*T*C)
		var residualIn []float32
		if l > 0 {
			residualIn = layerSlice(acts.Residual3, l-1, B*T*C)
		} else {
			residualIn = acts.Encoded[:B*T*C]
		}

		dln1 := layerSlice(gacts.Ln1, l, B*T*C)
		dqkv := layerSlice(gacts.Qkv, l, B*T*3*C)
		datty := layerSlice(gacts.Atty, l, B*T*C)
		dpreatt := layerSlice(gacts.Preatt, l, B*NH*T*T)
		datt := layerSlice(gacts.Att, l, B*NH*T*T)
		dattproj := layerSlice(gacts.Attproj, l, B*T*C)
		dresidual2 := layerSlice(gacts.Residual2, l, B*T*C)
		dln2 := layerSlice(gacts.Ln2, l, B*T*C)
		dfch := layerSlice(gacts.Fch, l, B*T*4*C)
		dfchGelu := layerSlice(gacts.FchGelu, l, B*T*4*C)
		dfcproj := layerSlice(gacts.Fcproj, l, B*T*C)
		dresidual3 := layerSlice(gacts.Residual3, l, B*T*C)
		var dresidualIn []float32
		if l > 0 {
			dresidualIn = layerSlice(gacts.Residual3, l-1, B*T*C)
		} else {
			dresidualIn = gacts.Encoded[:B*T*C]
		}

		// dresidual3 already holds the gradient flowing back from
		// whatever consumed this layer's residual3 (either the next
		// layer's dresidualIn write, or the final layernorm backward
		// above for l == L-1).
		residualBackward(dresidual2, dfcproj, dresidual3)
		matmulBackward(dfchGelu, dfcprojw, dfcprojb, dfcproj, fchGelu, fcprojw, B, T, 4*C, C, m.Workers)
		geluBackward(dfch, fch, dfchGelu)
		matmulBackward(dln2, dfcw, dfcb, dfch, ln2, fcw, B, T, C, 4*C, m.Workers)
		layernormBackward(dresidual2, dln2w, dln2b, dln2, residual2, ln2w, ln2Mean, ln2Rstd, B, T, C)

		residualBackward(dresidualIn, dattproj, dresidual2)
		matmulBackward(datty, dattprojw, dattprojb, dattproj, atty, attprojw, B, T, C, C, m.Workers)
		attentionBackward(dqkv, dpreatt, datt, datty, qkv, att, B, T, C, NH)
		matmulBackward(dln1, dqkvw, dqkvb, dqkv, ln1, qkvw, B, T, C, 3*C, m.Workers)
		layernormBackward(dresidualIn, dln1w, dln1b, dln1, residualIn, ln1w, ln1Mean, ln1Rstd, B, T, C)
	}

	// Encoder backward: second contribution into grads.Wte (+=), plus
	// grads.Wpe. dresidualIn for l==0 above wrote into gacts.Encoded,
	// which is exactly dout for the encoder.
	encoderBackward(grads.Wte, grads.Wpe, gacts.Encoded[:B*T*C], m.Inputs[:B*T], B, T, C)

	return nil
}
