package generate

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognito-lm/cognito/internal/backend/cpu"
	"github.com/cognito-lm/cognito/internal/model"
	"github.com/cognito-lm/cognito/internal/nn"
	"github.com/cognito-lm/cognito/internal/tokenizer"
)

// zeroModel returns a byte-vocabulary model whose parameters are all
// zero, so every logit equals the output bias.
func zeroModel(t *testing.T, maxSeqLen int) *model.Model[*cpu.CPUBackend] {
	t.Helper()
	cfg := model.Config{
		NumHeads:  2,
		DModel:    8,
		NumLayers: 1,
		VocabSize: tokenizer.ByteVocabSize,
		MaxSeqLen: maxSeqLen,
	}
	m, err := model.New(cfg, cpu.New())
	require.NoError(t, err)
	m.SetTraining(false)
	for _, p := range m.Parameters() {
		clear(p.Tensor().Data())
	}
	return m
}

func favour(m *model.Model[*cpu.CPUBackend], id int32) {
	m.Output.Bias().Tensor().Data()[id] = 1
}

func newSession(m *model.Model[*cpu.CPUBackend]) *Session[*cpu.CPUBackend] {
	return NewSession(m, tokenizer.NewByteTokenizer(), nil)
}

func greedyConfig(maxTokens int) Config {
	cfg := DefaultConfig()
	cfg.MaxTokens = maxTokens
	cfg.Sampling.Policy = Greedy
	return cfg
}

func TestGenerate_GreedyDeterministic(t *testing.T) {
	s := newSession(zeroModel(t, 64))

	first, err := s.Generate(context.Background(), "A", greedyConfig(5), nil)
	require.NoError(t, err)
	second, err := s.Generate(context.Background(), "A", greedyConfig(5), nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first.TokenIDs, 5)
	assert.Equal(t, StopMaxTokens, first.Reason)
}

func TestGenerate_StopsAtEOS(t *testing.T) {
	m := zeroModel(t, 64)
	favour(m, tokenizer.ByteEos)

	res, err := newSession(m).Generate(context.Background(), "A", greedyConfig(10), nil)
	require.NoError(t, err)
	assert.Equal(t, StopEOS, res.Reason)
	assert.Equal(t, []int32{tokenizer.ByteEos}, res.TokenIDs)
	assert.Equal(t, "", res.Text)
}

func TestGenerate_StreamsAndStripsPrompt(t *testing.T) {
	m := zeroModel(t, 64)
	favour(m, 'z'+3)

	var out bytes.Buffer
	res, err := newSession(m).Generate(context.Background(), "Hi", greedyConfig(3), &out)
	require.NoError(t, err)
	assert.Equal(t, "zzz", res.Text)
	assert.Equal(t, "zzz", out.String())
}

func TestGenerate_StopOnNewline(t *testing.T) {
	m := zeroModel(t, 64)
	favour(m, '\n'+3)

	cfg := greedyConfig(10)
	cfg.StopOnNewline = true
	res, err := newSession(m).Generate(context.Background(), "A", cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, StopNewline, res.Reason)
	assert.Equal(t, "\n", res.Text)
}

func TestGenerate_ContextWindow(t *testing.T) {
	m := zeroModel(t, 8)
	favour(m, 'z'+3)

	res, err := newSession(m).Generate(context.Background(), "A", greedyConfig(100), nil)
	require.NoError(t, err)
	assert.Equal(t, StopContextWindow, res.Reason)
	// BOS + "A" + 6 generated = 8 = MaxSeqLen.
	assert.Len(t, res.TokenIDs, 6)
}

func TestGenerate_PromptFillsContext(t *testing.T) {
	s := newSession(zeroModel(t, 4))
	res, err := s.Generate(context.Background(), "long prompt", greedyConfig(10), nil)
	require.NoError(t, err)
	assert.Equal(t, StopContextWindow, res.Reason)
	assert.Empty(t, res.TokenIDs)
}

func TestGenerate_PromptOutOfVocab(t *testing.T) {
	cfg := model.Config{NumHeads: 2, DModel: 8, NumLayers: 1, VocabSize: 16, MaxSeqLen: 8}
	m, err := model.New(cfg, cpu.New())
	require.NoError(t, err)

	_, err = newSession(m).Generate(context.Background(), "A", greedyConfig(3), nil)
	assert.ErrorIs(t, err, ErrPromptOutOfVocab)
}

func TestGenerate_Cancelled(t *testing.T) {
	s := newSession(zeroModel(t, 64))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.Generate(ctx, "A", greedyConfig(5), nil)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Empty(t, res.TokenIDs)
}

func TestGeneration_States(t *testing.T) {
	s := newSession(zeroModel(t, 64))
	g, err := s.Start("A", greedyConfig(2))
	require.NoError(t, err)
	assert.Equal(t, StateDecoding, g.State())
	assert.Len(t, g.Tokens(), 2)

	_, err = g.Step()
	require.NoError(t, err)
	assert.Equal(t, StateDecoding, g.State())
	_, err = g.Step()
	require.NoError(t, err)
	assert.Equal(t, StateStopped, g.State())

	fragment, err := g.Step()
	require.NoError(t, err)
	assert.Empty(t, fragment)
	assert.Len(t, g.Tokens(), 4)
}

func TestRunREPL(t *testing.T) {
	m := zeroModel(t, 64)
	favour(m, 'z'+3)

	in := strings.NewReader("Hello\n\nquit\nnever\n")
	var out bytes.Buffer
	require.NoError(t, RunREPL(context.Background(), in, &out, newSession(m), greedyConfig(2)))

	assert.Contains(t, out.String(), "> Hellozz")
	assert.Contains(t, out.String(), "[2 tokens, max_tokens]")
	assert.NotContains(t, out.String(), "never")
}

func TestRunREPL_EOF(t *testing.T) {
	s := newSession(zeroModel(t, 64))
	var out bytes.Buffer
	assert.NoError(t, RunREPL(context.Background(), strings.NewReader(""), &out, s, greedyConfig(1)))
}

func TestNewSession_DisablesDropout(t *testing.T) {
	nn.Seed(3)
	cfg := model.Config{
		NumHeads:  2,
		DModel:    8,
		NumLayers: 1,
		VocabSize: tokenizer.ByteVocabSize,
		MaxSeqLen: 32,
		Dropout:   0.5,
	}
	m, err := model.New(cfg, cpu.New())
	require.NoError(t, err)
	m.SetTraining(true)

	s := newSession(m)
	assert.False(t, m.Training())

	first, err := s.Generate(context.Background(), "A", greedyConfig(8), nil)
	require.NoError(t, err)
	for range 4 {
		again, err := s.Generate(context.Background(), "A", greedyConfig(8), nil)
		require.NoError(t, err)
		assert.Equal(t, first.TokenIDs, again.TokenIDs)
	}
}

func TestNewSession_WarnsOnVocabMismatch(t *testing.T) {
	cfg := model.Config{
		NumHeads:  2,
		DModel:    8,
		NumLayers: 1,
		VocabSize: 300,
		MaxSeqLen: 8,
	}
	m, err := model.New(cfg, cpu.New())
	require.NoError(t, err)

	var logs bytes.Buffer
	NewSession(m, tokenizer.NewByteTokenizer(), slog.New(slog.NewTextHandler(&logs, nil)))
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "model_vocab=300")
	assert.Contains(t, logs.String(), "tokenizer_vocab=259")

	logs.Reset()
	NewSession(zeroModel(t, 8), tokenizer.NewByteTokenizer(), slog.New(slog.NewTextHandler(&logs, nil)))
	assert.Empty(t, logs.String())
}
