// Package data turns raw text lines into next-token training batches.
package data

import (
	"errors"
	"fmt"

	"github.com/cognito-lm/cognito/internal/tensor"
	"github.com/cognito-lm/cognito/internal/tokenizer"
)

// DefaultPadID is the reserved padding id. Loss ignores it.
const DefaultPadID int32 = 0

// ErrEmptyBatch is returned when no line in a batch encodes to at least
// two tokens. The dataset must be fixed; training cannot continue on it.
var ErrEmptyBatch = errors.New("every sequence in the batch is shorter than 2 tokens")

// TokenRangeError reports a token id outside the model vocabulary,
// which means the tokenizer and model do not match.
type TokenRangeError struct {
	Row       int
	Position  int
	ID        int32
	VocabSize int
}

// Error implements the error interface.
func (e *TokenRangeError) Error() string {
	return fmt.Sprintf("token id %d at row %d position %d outside vocabulary of %d",
		e.ID, e.Row, e.Position, e.VocabSize)
}

// Batch is a padded next-token batch in row-major order. Row i of Inputs
// and Targets has SeqLen entries; Targets is Inputs shifted left by one.
type Batch struct {
	Inputs  []int32
	Targets []int32
	Size    int
	SeqLen  int
}

// ToTensors builds [Size, SeqLen] int32 tensors on backend.
func ToTensors[B tensor.Backend](b *Batch, backend B) (inputs, targets *tensor.Tensor[int32, B], err error) {
	shape := tensor.Shape{b.Size, b.SeqLen}
	inputs, err = tensor.FromSlice(b.Inputs, shape, backend)
	if err != nil {
		return nil, nil, fmt.Errorf("inputs: %w", err)
	}
	targets, err = tensor.FromSlice(b.Targets, shape, backend)
	if err != nil {
		return nil, nil, fmt.Errorf("targets: %w", err)
	}
	return inputs, targets, nil
}

// Batcher encodes lines and lays them out as a Batch.
type Batcher struct {
	Tokenizer tokenizer.Tokenizer
	MaxSeqLen int
	VocabSize int
	PadID     int32

	// AppendEOS appends EOSID to every sequence before truncation, keeping
	// room for it, so the model learns where text ends.
	AppendEOS bool
	EOSID     int32
}

// Batch builds one batch from lines:
//
//   - sequences shorter than 2 ids are dropped
//   - width = min(longest survivor, MaxSeqLen+1)
//   - each survivor is truncated to width, split into input [0, n-1) and
//     target [1, n), and right-padded with PadID to width-1
//
// Output rows follow the input order of the surviving lines.
func (b *Batcher) Batch(lines []string) (*Batch, error) {
	encoded, err := b.Tokenizer.EncodeBatch(lines, true)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}

	extra := 0
	if b.AppendEOS {
		extra = 1
	}

	survivors := make([][]int32, 0, len(encoded))
	longest := 0
	for _, ids := range encoded {
		if len(ids) < 2 {
			continue
		}
		survivors = append(survivors, ids)
		longest = max(longest, len(ids)+extra)
	}
	if len(survivors) == 0 {
		return nil, fmt.Errorf("%w (%d lines)", ErrEmptyBatch, len(lines))
	}

	width := min(longest, b.MaxSeqLen+1)
	seqLen := width - 1
	out := &Batch{
		Inputs:  make([]int32, len(survivors)*seqLen),
		Targets: make([]int32, len(survivors)*seqLen),
		Size:    len(survivors),
		SeqLen:  seqLen,
	}

	seq := make([]int32, 0, width)
	for row, ids := range survivors {
		seq = append(seq[:0], ids[:min(len(ids), width-extra)]...)
		if b.AppendEOS {
			seq = append(seq, b.EOSID)
		}
		for pos, id := range seq {
			if id < 0 || int(id) >= b.VocabSize {
				return nil, &TokenRangeError{Row: row, Position: pos, ID: id, VocabSize: b.VocabSize}
			}
		}

		inputs := out.Inputs[row*seqLen : (row+1)*seqLen]
		targets := out.Targets[row*seqLen : (row+1)*seqLen]
		n := copy(inputs, seq[:len(seq)-1])
		copy(targets, seq[1:])
		for i := n; i < seqLen; i++ {
			inputs[i] = b.PadID
			targets[i] = b.PadID
		}
	}
	return out, nil
}
