// Package tokendata reads token-id files for training and validation: a
// flat sequence of little-endian int32 token ids, read batch by batch with
// wraparound at end of file.
package tokendata

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/juliusm254/llm.c/errs"
)

// Loader serves fixed-shape (B,T) batches from a token file, scanning
// linearly and wrapping back to the start once it runs out of room for a
// full batch.
type Loader struct {
	f      *os.File
	tokens []int32
	cursor int
	b, t   int
}

// NewLoader reads path entirely into memory (token files for a CPU-only
// engine are expected to be small) and validates it holds at least one
// B*T+1 window (the +1 is the next-token target for the final position).
func NewLoader(path string, b, t int) (*Loader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tokendata: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("tokendata: stat %s: %w", path, err)
	}
	n := info.Size() / 4
	need := int64(b*t + 1)
	if n < need {
		return nil, fmt.Errorf("tokendata: %s: has %d tokens, need at least %d: %w", path, n, need, errs.ErrTokenFileTooSmall)
	}

	tokens := make([]int32, n)
	if err := binary.Read(f, binary.LittleEndian, tokens); err != nil {
		return nil, fmt.Errorf("tokendata: %s: read: %w", path, err)
	}

	return &Loader{tokens: tokens, b: b, t: t}, nil
}

// NextBatch fills inputs and targets (each length B*T) by reading B
// consecutive windows of T+1 tokens starting at the internal cursor,
// advancing the cursor by B*T per call. The wraparound check is made once
// per batch, before any row is read: if the whole B*T+1 span would run
// past the end of the file, the cursor resets to 0 first, so every row in
// a single batch comes from one contiguous, uninterrupted run of the file.
func (l *Loader) NextBatch() (inputs, targets []int32, err error) {
	if l.cursor+l.b*l.t+1 > len(l.tokens) {
		l.cursor = 0
	}

	inputs = make([]int32, l.b*l.t)
	targets = make([]int32, l.b*l.t)

	for row := 0; row < l.b; row++ {
		window := l.tokens[l.cursor : l.cursor+l.t+1]
		copy(inputs[row*l.t:row*l.t+l.t], window[:l.t])
		copy(targets[row*l.t:row*l.t+l.t], window[1:l.t+1])
		l.cursor += l.t
	}
	return inputs, targets, nil
}

// Reset rewinds the read cursor to the beginning of the file, used before
// a fresh validation pass.
func (l *Loader) Reset() { l.cursor = 0 }
