// Package checkpoint reads and writes the binary model-checkpoint format:
// a 256 x int32 header followed by a flat float32 parameter dump in the
// fixed 16-tensor order gpt2.ParamTensors defines.
package checkpoint

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/juliusm254/llm.c/errs"
	"github.com/juliusm254/llm.c/gpt2"
)

const (
	headerInts  = 256
	magicNumber = 20240326
	formatVersion = 1

	headerMagicIdx   = 0
	headerVersionIdx = 1
	headerMaxSeqIdx  = 2
	headerVocabIdx   = 3
	headerLayersIdx  = 4
	headerHeadsIdx   = 5
	headerChannelIdx = 6
)

// Load reads a checkpoint file and builds a *gpt2.Model from it.
func Load(path string, workers int) (*gpt2.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open %s: %v: %w", path, err, errs.ErrCheckpointInvalid)
	}
	defer f.Close()

	header := make([]int32, headerInts)
	if err := binary.Read(f, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("checkpoint: %s: short header: %w", path, errs.ErrCheckpointInvalid)
	}
	if header[headerMagicIdx] != magicNumber {
		return nil, fmt.Errorf("checkpoint: %s: bad magic %d: %w", path, header[headerMagicIdx], errs.ErrCheckpointInvalid)
	}
	if header[headerVersionIdx] != formatVersion {
		return nil, fmt.Errorf("checkpoint: %s: unsupported version %d: %w", path, header[headerVersionIdx], errs.ErrCheckpointInvalid)
	}

	cfg := gpt2.Config{
		MaxSeqLen: int(header[headerMaxSeqIdx]),
		VocabSize: int(header[headerVocabIdx]),
		NumLayers: int(header[headerLayersIdx]),
		NumHeads:  int(header[headerHeadsIdx]),
		Channels:  int(header[headerChannelIdx]),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("checkpoint: %s: %v: %w", path, err, errs.ErrCheckpointInvalid)
	}

	m, err := gpt2.NewModel(cfg, workers)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %s: %v: %w", path, err, errs.ErrCheckpointInvalid)
	}

	if err := binary.Read(f, binary.LittleEndian, m.ParamsMemory); err != nil {
		return nil, fmt.Errorf("checkpoint: %s: short parameter payload (want %d floats): %w", path, len(m.ParamsMemory), errs.ErrCheckpointInvalid)
	}

	// A short file would have errored above; reject any trailing garbage
	// too, since it signals a header/payload mismatch.
	var probe [1]byte
	if _, err := io.ReadFull(f, probe[:]); err != io.EOF {
		return nil, fmt.Errorf("checkpoint: %s: trailing bytes after payload: %w", path, errs.ErrCheckpointInvalid)
	}

	return m, nil
}

// Save writes m's configuration and flat parameter buffer to path in the
// format Load expects.
func Save(path string, m *gpt2.Model) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("checkpoint: create %s: %w", path, err)
	}
	defer f.Close()

	header := make([]int32, headerInts)
	header[headerMagicIdx] = magicNumber
	header[headerVersionIdx] = formatVersion
	header[headerMaxSeqIdx] = int32(m.Config.MaxSeqLen)
	header[headerVocabIdx] = int32(m.Config.VocabSize)
	header[headerLayersIdx] = int32(m.Config.NumLayers)
	header[headerHeadsIdx] = int32(m.Config.NumHeads)
	header[headerChannelIdx] = int32(m.Config.Channels)

	if err := binary.Write(f, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("checkpoint: %s: write header: %w", path, err)
	}
	if err := binary.Write(f, binary.LittleEndian, m.ParamsMemory); err != nil {
		return fmt.Errorf("checkpoint: %s: write parameters: %w", path, err)
	}
	return nil
}
