package gpt2

// residualForward computes out = a + b elementwise.
func residualForward(out, a, b []float32) {
	for i := range out {
		out[i] = a[i] + b[i]
	}
}

// residualBackward accumulates dout into both branches: da += dout,
// db += dout.
func residualBackward(da, db, dout []float32) {
	for i, d := range dout {
		da[i] += d
		db[i] += d
	}
}
