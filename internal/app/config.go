// Package app wires the cognito subcommands: configuration, logging and
// the train and interact pipelines.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/cognito-lm/cognito/internal/data"
	"github.com/cognito-lm/cognito/internal/generate"
	"github.com/cognito-lm/cognito/internal/model"
	"github.com/cognito-lm/cognito/internal/parallel"
	"github.com/cognito-lm/cognito/internal/train"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "COGNITO_"

// Config is the complete runtime configuration.
type Config struct {
	DatasetPath   string
	CheckpointDir string
	Tokenizer     string
	MinLineChars  int
	AppendEOS     bool
	LogLevel      slog.Level
	Workers       int

	Model    model.Config
	Train    train.Config
	Generate generate.Config
}

// DefaultConfig returns the reference configuration: dataset.txt in the
// working directory, the cl100k tokenizer and the default model.
func DefaultConfig() Config {
	return Config{
		DatasetPath:   "dataset.txt",
		CheckpointDir: ".",
		Tokenizer:     "tiktoken",
		MinLineChars:  data.DefaultMinChars,
		AppendEOS:     true,
		LogLevel:      slog.LevelInfo,
		Workers:       parallel.DefaultConfig().NumWorkers,
		Model:         model.DefaultConfig(),
		Train:         train.DefaultConfig(),
		Generate:      generate.DefaultConfig(),
	}
}

// Validate checks the combined configuration.
func (c Config) Validate() error {
	if err := c.Model.Validate(); err != nil {
		return err
	}
	if err := c.Train.Validate(); err != nil {
		return err
	}
	if c.Train.MaxSeqLen > c.Model.MaxSeqLen {
		return fmt.Errorf("training max_seq_len %d exceeds model max_seq_len %d", c.Train.MaxSeqLen, c.Model.MaxSeqLen)
	}
	if c.Generate.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.Generate.MaxTokens)
	}
	return nil
}

// Parallel returns the kernel parallelism settings.
func (c Config) Parallel() parallel.Config {
	p := parallel.DefaultConfig()
	p.NumWorkers = c.Workers
	p.Enabled = c.Workers > 1
	return p
}

// FromEnv returns DefaultConfig with COGNITO_* overrides from the process
// environment.
func FromEnv() (Config, error) {
	return Load(os.Getenv)
}

// Load returns DefaultConfig with COGNITO_* overrides read through
// getenv. Empty values are ignored.
func Load(getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()
	e := envReader{getenv: getenv}

	e.str("DATASET", &cfg.DatasetPath)
	e.str("CHECKPOINT_DIR", &cfg.CheckpointDir)
	e.str("TOKENIZER", &cfg.Tokenizer)
	e.integer("MIN_LINE_CHARS", &cfg.MinLineChars)
	e.boolean("APPEND_EOS", &cfg.AppendEOS)
	e.integer("WORKERS", &cfg.Workers)
	if v := e.get("LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			e.fail("LOG_LEVEL", err)
		}
	}

	e.integer("HEADS", &cfg.Model.NumHeads)
	e.integer("D_MODEL", &cfg.Model.DModel)
	e.integer("LAYERS", &cfg.Model.NumLayers)
	e.integer("VOCAB_SIZE", &cfg.Model.VocabSize)
	e.integer("MAX_SEQ_LEN", &cfg.Model.MaxSeqLen)
	e.float64("DROPOUT", &cfg.Model.Dropout)

	e.integer("BATCH_SIZE", &cfg.Train.BatchSize)
	e.integer("EPOCHS", &cfg.Train.NumEpochs)
	e.float32("LEARNING_RATE", &cfg.Train.LearningRate)
	e.float32("WEIGHT_DECAY", &cfg.Train.WeightDecay)
	e.integer("MAX_STEPS", &cfg.Train.MaxStepsPerEpoch)
	e.integer("LOG_EVERY", &cfg.Train.LogEvery)
	e.uint64("SEED", &cfg.Train.Seed)
	e.integer("PREFETCH", &cfg.Train.Prefetch)
	e.integer("TRAIN_SEQ_LEN", &cfg.Train.MaxSeqLen)
	e.str("ARTIFACT", &cfg.Train.ArtifactName)
	e.boolean("PROGRESS", &cfg.Train.Progress)

	e.integer("MAX_TOKENS", &cfg.Generate.MaxTokens)
	e.boolean("STOP_ON_NEWLINE", &cfg.Generate.StopOnNewline)
	if v := e.get("POLICY"); v != "" {
		p, err := generate.ParsePolicy(v)
		if err != nil {
			e.fail("POLICY", err)
		}
		cfg.Generate.Sampling.Policy = p
	}
	e.float32("TEMPERATURE", &cfg.Generate.Sampling.Temperature)
	e.float32("REPETITION_PENALTY", &cfg.Generate.Sampling.RepetitionPenalty)
	e.integer("REPETITION_WINDOW", &cfg.Generate.Sampling.RepetitionWindow)
	e.integer("TOP_K", &cfg.Generate.Sampling.TopK)
	e.float32("NOISE_SCALE", &cfg.Generate.Sampling.NoiseScale)
	e.uint64("SAMPLING_SEED", &cfg.Generate.Sampling.Seed)

	if e.err != nil {
		return Config{}, e.err
	}
	return cfg, nil
}

// envReader parses overrides, keeping the first error.
type envReader struct {
	getenv func(string) string
	err    error
}

func (e *envReader) get(key string) string {
	return strings.TrimSpace(e.getenv(EnvPrefix + key))
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
}

func (e *envReader) str(key string, dst *string) {
	if v := e.get(key); v != "" {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	if v := e.get(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) uint64(key string, dst *uint64) {
	if v := e.get(key); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) float32(key string, dst *float32) {
	if v := e.get(key); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = float32(f)
	}
}

func (e *envReader) float64(key string, dst *float64) {
	if v := e.get(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) boolean(key string, dst *bool) {
	if v := e.get(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = b
	}
}
