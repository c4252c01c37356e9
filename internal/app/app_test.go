package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognito-lm/cognito/internal/checkpoint"
	"github.com/cognito-lm/cognito/internal/data"
	"github.com/cognito-lm/cognito/internal/generate"
	"github.com/cognito-lm/cognito/internal/model"
	"github.com/cognito-lm/cognito/internal/tokenizer"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, "dataset.txt", cfg.DatasetPath)
	assert.Equal(t, model.DefaultConfig(), cfg.Model)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(envMap(map[string]string{
		"COGNITO_DATASET":         "corpus.txt",
		"COGNITO_TOKENIZER":       "byte",
		"COGNITO_LAYERS":          "2",
		"COGNITO_DROPOUT":         "0",
		"COGNITO_LEARNING_RATE":   "0.001",
		"COGNITO_SEED":            "7",
		"COGNITO_PROGRESS":        "false",
		"COGNITO_POLICY":          "perturbed",
		"COGNITO_STOP_ON_NEWLINE": "true",
		"COGNITO_LOG_LEVEL":       "debug",
		"COGNITO_APPEND_EOS":      "false",
	}))
	require.NoError(t, err)

	assert.Equal(t, "corpus.txt", cfg.DatasetPath)
	assert.Equal(t, "byte", cfg.Tokenizer)
	assert.Equal(t, 2, cfg.Model.NumLayers)
	assert.Equal(t, 0.0, cfg.Model.Dropout)
	assert.InDelta(t, 0.001, cfg.Train.LearningRate, 1e-9)
	assert.Equal(t, uint64(7), cfg.Train.Seed)
	assert.False(t, cfg.Train.Progress)
	assert.Equal(t, generate.PerturbedSoftmax, cfg.Generate.Sampling.Policy)
	assert.True(t, cfg.Generate.StopOnNewline)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.False(t, cfg.AppendEOS)
}

func TestLoadRejectsBadValues(t *testing.T) {
	for _, kv := range [][2]string{
		{"COGNITO_LAYERS", "many"},
		{"COGNITO_PROGRESS", "maybe"},
		{"COGNITO_POLICY", "beam"},
		{"COGNITO_LOG_LEVEL", "loud"},
	} {
		_, err := Load(envMap(map[string]string{kv[0]: kv[1]}))
		assert.Error(t, err, kv[0])
		assert.Contains(t, err.Error(), kv[0])
	}
}

func TestValidateSeqLen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Train.MaxSeqLen = cfg.Model.MaxSeqLen + 1
	assert.Error(t, cfg.Validate())
}

func tinyConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	dataset := filepath.Join(dir, "dataset.txt")
	lines := []string{
		strings.Repeat("the cat sat on the mat. ", 3),
		strings.Repeat("a dog ran in the park. ", 3),
		"too short",
		strings.Repeat("birds sing in the morning. ", 3),
	}
	require.NoError(t, os.WriteFile(dataset, []byte(strings.Join(lines, "\n")), 0o600))

	cfg := DefaultConfig()
	cfg.DatasetPath = dataset
	cfg.CheckpointDir = dir
	cfg.Tokenizer = "byte"
	cfg.Workers = 1
	cfg.Model = model.Config{NumHeads: 2, DModel: 8, NumLayers: 1, VocabSize: tokenizer.ByteVocabSize, MaxSeqLen: 32, Dropout: 0}
	cfg.Train.MaxSeqLen = 16
	cfg.Train.Progress = false
	cfg.Generate.MaxTokens = 4
	return cfg
}

func quietLogger() *slog.Logger {
	return NewLogger(io.Discard, slog.LevelError)
}

func TestTrainThenInteract(t *testing.T) {
	cfg := tinyConfig(t)
	require.NoError(t, Train(context.Background(), cfg, quietLogger()))

	ckpt, err := checkpoint.NewFileStore(cfg.CheckpointDir).Load(cfg.Train.ArtifactName)
	require.NoError(t, err)
	assert.Equal(t, 1, ckpt.Epoch)
	assert.Equal(t, int64(2), ckpt.Step)
	assert.Equal(t, "byte", ckpt.Metadata["tokenizer"])

	var out bytes.Buffer
	err = Interact(context.Background(), cfg, strings.NewReader("the\nquit\n"), &out, quietLogger())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "> the")
	assert.Contains(t, out.String(), "tokens,")

	// A second run resumes and continues the epoch count.
	require.NoError(t, Train(context.Background(), cfg, quietLogger()))
	ckpt, err = checkpoint.NewFileStore(cfg.CheckpointDir).Load(cfg.Train.ArtifactName)
	require.NoError(t, err)
	assert.Equal(t, 2, ckpt.Epoch)
	assert.Equal(t, int64(4), ckpt.Step)
}

func TestInteractWithoutArtifact(t *testing.T) {
	cfg := tinyConfig(t)
	err := Interact(context.Background(), cfg, strings.NewReader("quit\n"), io.Discard, quietLogger())
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func TestTrainMissingDataset(t *testing.T) {
	cfg := tinyConfig(t)
	cfg.DatasetPath = filepath.Join(t.TempDir(), "absent.txt")
	err := Train(context.Background(), cfg, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.txt")
}

// lastTargets returns the final non-pad target of every batch row.
func lastTargets(b *data.Batch) []int32 {
	out := make([]int32, 0, b.Size)
	for row := range b.Size {
		targets := b.Targets[row*b.SeqLen : (row+1)*b.SeqLen]
		last := int32(data.DefaultPadID)
		for _, id := range targets {
			if id != data.DefaultPadID {
				last = id
			}
		}
		out = append(out, last)
	}
	return out
}

func TestTrainingBatcherEndsRowsInEOS(t *testing.T) {
	cfg := tinyConfig(t)
	require.True(t, cfg.AppendEOS)
	tok := tokenizer.NewByteTokenizer()

	lines := []string{"a short line", strings.Repeat("a line far longer than the window ", 2)}
	batch, err := trainingBatcher(cfg, tok, quietLogger()).Batch(lines)
	require.NoError(t, err)
	for row, id := range lastTargets(batch) {
		assert.Equal(t, tok.EosToken(), id, "row %d", row)
	}

	cfg.AppendEOS = false
	batch, err = trainingBatcher(cfg, tok, quietLogger()).Batch(lines)
	require.NoError(t, err)
	for row, id := range lastTargets(batch) {
		assert.NotEqual(t, tok.EosToken(), id, "row %d", row)
	}
}

type noEOSTokenizer struct{ tokenizer.Tokenizer }

func (noEOSTokenizer) EosToken() int32 { return -1 }

func TestTrainingBatcherWithoutEOSToken(t *testing.T) {
	var logs bytes.Buffer
	b := trainingBatcher(tinyConfig(t), noEOSTokenizer{tokenizer.NewByteTokenizer()}, NewLogger(&logs, slog.LevelWarn))
	assert.False(t, b.AppendEOS)
	assert.Contains(t, logs.String(), "no EOS token")
}
