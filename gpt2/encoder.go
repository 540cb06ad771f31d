package gpt2

// encoderForward computes out[b,t,:] = wte[inp[b,t],:] + wpe[t,:] for
// every (b,t). out has shape (B,T,C); wte has shape (V,C); wpe has shape
// (maxT,C); inp holds B*T token ids.
func encoderForward(out []float32, inp []int32, wte, wpe []float32, B, T, C int) {
	for b := 0; b < B; b++ {
		for t := 0; t < T; t++ {
			outBT := out[(b*T+t)*C : (b*T+t)*C+C]
			tok := int(inp[b*T+t])
			wteRow := wte[tok*C : tok*C+C]
			wpeRow := wpe[t*C : t*C+C]
			for i := 0; i < C; i++ {
				outBT[i] = wteRow[i] + wpeRow[i]
			}
		}
	}
}

// encoderBackward scatters dout[b,t,:] into row inp[b,t] of dwte and row
// t of dwpe, accumulating (+=). Multiple (b,t) pairs can touch the same
// wte row (a repeated token) and the same wpe row (same position across
// batch elements), so this is deliberately serial: parallelizing it
// correctly would require per-thread accumulators reduced at the end.
func encoderBackward(dwte, dwpe []float32, dout []float32, inp []int32, B, T, C int) {
	for b := 0; b < B; b++ {
		for t := 0; t < T; t++ {
			doutBT := dout[(b*T+t)*C : (b*T+t)*C+C]
			tok := int(inp[b*T+t])
			dwteRow := dwte[tok*C : tok*C+C]
			dwpeRow := dwpe[t*C : t*C+C]
			for i := 0; i < C; i++ {
				dwteRow[i] += doutBT[i]
				dwpeRow[i] += doutBT[i]
			}
		}
	}
}
