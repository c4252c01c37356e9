// Package model defines the cognito decoder-only transformer: its
// configuration, the pre-norm transformer block and the full language
// model that maps token ids to next-token logits.
package model

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when a Config cannot describe a model.
var ErrInvalidConfig = errors.New("invalid model config")

// Config describes the model architecture.
type Config struct {
	NumHeads  int     `json:"num_heads"`
	DModel    int     `json:"d_model"`
	NumLayers int     `json:"num_layers"`
	VocabSize int     `json:"vocab_size"`
	MaxSeqLen int     `json:"max_seq_len"`
	Dropout   float64 `json:"dropout"`
}

// DefaultConfig returns the reference architecture: 24 layers of width
// 1024 with 8 heads over a 102400-token vocabulary.
func DefaultConfig() Config {
	return Config{
		NumHeads:  8,
		DModel:    1024,
		NumLayers: 24,
		VocabSize: 102400,
		MaxSeqLen: 1024,
		Dropout:   0.1,
	}
}

// HeadDim returns DModel / NumHeads.
func (c Config) HeadDim() int {
	return c.DModel / c.NumHeads
}

// FFNDim returns the feed-forward hidden width, 4 × DModel.
func (c Config) FFNDim() int {
	return 4 * c.DModel
}

// Validate checks that every dimension is positive, DModel divides evenly
// into heads and Dropout is a probability below 1.
func (c Config) Validate() error {
	switch {
	case c.NumHeads <= 0:
		return fmt.Errorf("%w: num_heads must be positive, got %d", ErrInvalidConfig, c.NumHeads)
	case c.DModel <= 0:
		return fmt.Errorf("%w: d_model must be positive, got %d", ErrInvalidConfig, c.DModel)
	case c.DModel%c.NumHeads != 0:
		return fmt.Errorf("%w: d_model (%d) must be divisible by num_heads (%d)", ErrInvalidConfig, c.DModel, c.NumHeads)
	case c.NumLayers <= 0:
		return fmt.Errorf("%w: num_layers must be positive, got %d", ErrInvalidConfig, c.NumLayers)
	case c.VocabSize <= 0:
		return fmt.Errorf("%w: vocab_size must be positive, got %d", ErrInvalidConfig, c.VocabSize)
	case c.MaxSeqLen <= 0:
		return fmt.Errorf("%w: max_seq_len must be positive, got %d", ErrInvalidConfig, c.MaxSeqLen)
	case c.Dropout < 0 || c.Dropout >= 1:
		return fmt.Errorf("%w: dropout must be in [0, 1), got %v", ErrInvalidConfig, c.Dropout)
	}
	return nil
}
