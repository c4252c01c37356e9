// Package train runs the next-token training loop: forward, loss,
// backward, AdamW step, with a checkpoint after every epoch.
package train

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when a Config cannot drive training.
var ErrInvalidConfig = errors.New("invalid training config")

// Config holds training hyperparameters.
type Config struct {
	BatchSize        int
	NumEpochs        int
	LearningRate     float32
	WeightDecay      float32
	MaxStepsPerEpoch int
	LogEvery         int
	Seed             uint64
	Prefetch         int
	MaxSeqLen        int
	ArtifactName     string

	// Progress draws a progress bar on stderr.
	Progress bool
}

// DefaultConfig returns the reference training settings.
func DefaultConfig() Config {
	return Config{
		BatchSize:        2,
		NumEpochs:        1,
		LearningRate:     1e-4,
		WeightDecay:      1e-5,
		MaxStepsPerEpoch: 10000,
		LogEvery:         10,
		Seed:             42,
		Prefetch:         2,
		MaxSeqLen:        128,
		ArtifactName:     "cognito_model",
		Progress:         true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	case c.NumEpochs <= 0:
		return fmt.Errorf("%w: num epochs must be positive, got %d", ErrInvalidConfig, c.NumEpochs)
	case c.LearningRate <= 0:
		return fmt.Errorf("%w: learning rate must be positive, got %g", ErrInvalidConfig, c.LearningRate)
	case c.WeightDecay < 0:
		return fmt.Errorf("%w: weight decay must be non-negative, got %g", ErrInvalidConfig, c.WeightDecay)
	case c.MaxStepsPerEpoch <= 0:
		return fmt.Errorf("%w: max steps per epoch must be positive, got %d", ErrInvalidConfig, c.MaxStepsPerEpoch)
	case c.LogEvery <= 0:
		return fmt.Errorf("%w: log interval must be positive, got %d", ErrInvalidConfig, c.LogEvery)
	case c.MaxSeqLen <= 0:
		return fmt.Errorf("%w: max sequence length must be positive, got %d", ErrInvalidConfig, c.MaxSeqLen)
	case c.ArtifactName == "":
		return fmt.Errorf("%w: artifact name is empty", ErrInvalidConfig)
	}
	return nil
}
