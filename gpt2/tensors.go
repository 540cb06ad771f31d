package gpt2

// NumParamTensors and NumActTensors are the two fixed tensor counts the
// design names: 16 parameter tensors in one flat buffer, 23 activation
// tensors in another, both laid out as a concatenation of the per-tensor
// slabs computed by paramSizes / actSizes below.
const (
	NumParamTensors = 16
	NumActTensors   = 23
)

// ParamTensors is a set of named, non-overlapping views into one flat
// []float32 allocation, in a fixed tensor order. The
// same struct shape is reused for the parameter-gradient buffer; the AdamW
// first/second moment buffers are plain flat slices in the same layout.
type ParamTensors struct {
	Wte      []float32 // (V, C)
	Wpe      []float32 // (maxT, C)
	Ln1w     []float32 // (L, C)
	Ln1b     []float32 // (L, C)
	Qkvw     []float32 // (L, 3C, C)
	Qkvb     []float32 // (L, 3C)
	Attprojw []float32 // (L, C, C)
	Attprojb []float32 // (L, C)
	Ln2w     []float32 // (L, C)
	Ln2b     []float32 // (L, C)
	Fcw      []float32 // (L, 4C, C)
	Fcb      []float32 // (L, 4C)
	Fcprojw  []float32 // (L, C, 4C)
	Fcprojb  []float32 // (L, C)
	Lnfw     []float32 // (C)
	Lnfb     []float32 // (C)
}

// paramSizes returns the element count of each of the 16 parameter
// tensors, in the fixed tensor order.
func paramSizes(c Config) [NumParamTensors]int {
	V, C, maxT, L := c.VocabSize, c.Channels, c.MaxSeqLen, c.NumLayers
	return [NumParamTensors]int{
		V * C,         // wte
		maxT * C,      // wpe
		L * C,         // ln1w
		L * C,         // ln1b
		L * 3 * C * C, // qkvw
		L * 3 * C,     // qkvb
		L * C * C,     // attprojw
		L * C,         // attprojb
		L * C,         // ln2w
		L * C,         // ln2b
		L * 4 * C * C, // fcw
		L * 4 * C,     // fcb
		L * C * 4 * C, // fcprojw
		L * C,         // fcprojb
		C,             // lnfw
		C,             // lnfb
	}
}

// allocParamTensors allocates one flat buffer sized to hold all 16
// parameter tensors back to back, and returns both the buffer and a
// ParamTensors whose fields are slice views into it. The returned sizes
// array is the per-tensor element count, which viewParamTensors accepts to
// slice another buffer of the same total length.
func allocParamTensors(c Config) (ParamTensors, []float32, [NumParamTensors]int) {
	sizes := paramSizes(c)
	total := 0
	for _, s := range sizes {
		total += s
	}
	buf := make([]float32, total)
	return viewParamTensors(buf, sizes), buf, sizes
}

// viewParamTensors slices an existing flat buffer (already sized to
// sum(sizes)) into the 16 named views, without allocating.
func viewParamTensors(buf []float32, sizes [NumParamTensors]int) ParamTensors {
	off := 0
	next := func(n int) []float32 {
		s := buf[off : off+n]
		off += n
		return s
	}
	return ParamTensors{
		Wte:      next(sizes[0]),
		Wpe:      next(sizes[1]),
		Ln1w:     next(sizes[2]),
		Ln1b:     next(sizes[3]),
		Qkvw:     next(sizes[4]),
		Qkvb:     next(sizes[5]),
		Attprojw: next(sizes[6]),
		Attprojb: next(sizes[7]),
		Ln2w:     next(sizes[8]),
		Ln2b:     next(sizes[9]),
		Fcw:      next(sizes[10]),
		Fcb:      next(sizes[11]),
		Fcprojw:  next(sizes[12]),
		Fcprojb:  next(sizes[13]),
		Lnfw:     next(sizes[14]),
		Lnfb:     next(sizes[15]),
	}
}

// layerSlice returns the l-th per-layer chunk of a (L, ...) buffer whose
// per-layer element count is perLayer.
func layerSlice(buf []float32, l, perLayer int) []float32 {
	return buf[l*perLayer : (l+1)*perLayer]
}

// ActTensors is the activation-side counterpart of ParamTensors: 23 named
// views into one flat buffer, sized by the batch size B of the first
// forward call and T = Config.MaxSeqLen. The same shape is reused for the
// activation-gradient buffer.
type ActTensors struct {
	Encoded []float32 // (B, T, C)

	Ln1      []float32 // (L, B, T, C)
	Ln1Mean  []float32 // (L, B, T)
	Ln1Rstd  []float32 // (L, B, T)
	Qkv      []float32 // (L, B, T, 3C)
	Atty     []float32 // (L, B, T, C)
	Preatt   []float32 // (L, B, NH, T, T)
	Att      []float32 // (L, B, NH, T, T)
	Attproj  []float32 // (L, B, T, C)
	Residual2 []float32 // (L, B, T, C)
	Ln2      []float32 // (L, B, T, C)
	Ln2Mean  []float32 // (L, B, T)
	Ln2Rstd  []float32 // (L, B, T)
	Fch      []float32 // (L, B, T, 4C)
	FchGelu  []float32 // (L, B, T, 4C)
	Fcproj   []float32 // (L, B, T, C)
	Residual3 []float32 // (L, B, T, C)

	Lnf     []float32 // (B, T, C)
	LnfMean []float32 // (B, T)
	LnfRstd []float32 // (B, T)
	Logits  []float32 // (B, T, V)
	Probs   []float32 // (B, T, V)
	Losses  []float32 // (B, T)
}

// actSizes returns the element count of each of the 23 activation
// tensors for a given (B, T) batch shape.
func actSizes(c Config, B, T int) [NumActTensors]int {
	C, L, NH, V := c.Channels, c.NumLayers, c.NumHeads, c.VocabSize
	return [NumActTensors]int{
		B * T * C,          // encoded
		L * B * T * C,      // ln1
		L * B * T,          // ln1_mean
		L * B * T,          // ln1_rstd
		L * B * T * 3 * C,  // qkv
		L * B * T * C,      // atty
		L * B * NH * T * T, // preatt
		L * B * NH * T * T, // att
		L * B * T * C,      // attproj
		L * B * T * C,      // residual2
		L * B * T * C,      // ln2
		L * B * T,          // ln2_mean
		L * B * T,          // ln2_rstd
		L * B * T * 4 * C,  // fch
		L * B * T * 4 * C,  // fch_gelu
		L * B * T * C,      // fcproj
		L * B * T * C,      // residual3
		B * T * C,          // lnf
		B * T,              // lnf_mean
		B * T,              // lnf_rstd
		B * T * V,          // logits
		B * T * V,          // probs
		B * T,              // losses
	}
}

func allocActTensors(c Config, B, T int) (ActTensors, []float32, [NumActTensors]int) {
	sizes := actSizes(c, B, T)
	total := 0
	for _, s := range sizes {
		total += s
	}
	buf := make([]float32, total)
	return viewActTensors(buf, sizes), buf, sizes
}

func viewActTensors(buf []float32, sizes [NumActTensors]int) ActTensors {
	off := 0
	next := func(n int) []float32 {
		s := buf[off : off+n]
		off += n
		return s
	}
	return ActTensors{
		Encoded:   next(sizes[0]),
		Ln1:       next(sizes[1]),
		Ln1Mean:   next(sizes[2]),
		Ln1Rstd:   next(sizes[3]),
		Qkv:       next(sizes[4]),
		Atty:      next(sizes[5]),
		Preatt:    next(sizes[6]),
		Att:       next(sizes[7]),
		Attproj:   next(sizes[8]),
		Residual2: next(sizes[9]),
		Ln2:       next(sizes[10]),
		Ln2Mean:   next(sizes[11]),
		Ln2Rstd:   next(sizes[12]),
		Fch:       next(sizes[13]),
		FchGelu:   next(sizes[14]),
		Fcproj:    next(sizes[15]),
		Residual3: next(sizes[16]),
		Lnf:       next(sizes[17]),
		LnfMean:   next(sizes[18]),
		LnfRstd:   next(sizes[19]),
		Logits:    next(sizes[20]),
		Probs:     next(sizes[21]),
		Losses:    next(sizes[22]),
	}
}
