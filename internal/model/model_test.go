package model

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognito-lm/cognito/internal/backend/cpu"
	"github.com/cognito-lm/cognito/internal/nn"
	"github.com/cognito-lm/cognito/internal/tensor"
)

func smallConfig() Config {
	return Config{NumHeads: 2, DModel: 8, NumLayers: 1, VocabSize: 16, MaxSeqLen: 8, Dropout: 0.1}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"indivisible heads", func(c *Config) { c.DModel, c.NumHeads = 10, 3 }, true},
		{"zero layers", func(c *Config) { c.NumLayers = 0 }, true},
		{"dropout one", func(c *Config) { c.Dropout = 1 }, true},
		{"zero vocab", func(c *Config) { c.VocabSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 128, cfg.HeadDim())
	assert.Equal(t, 4096, cfg.FFNDim())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.NumHeads = 3
	_, err := New(cfg, cpu.New())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestForwardShapeAndFinite(t *testing.T) {
	backend := cpu.New()
	m, err := New(smallConfig(), backend)
	require.NoError(t, err)

	tokens, err := tensor.FromSlice([]int32{1, 5, 9, 15}, tensor.Shape{1, 4}, backend)
	require.NoError(t, err)

	logits, err := m.Forward(tokens)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 4, 16}, logits.Shape())
	for _, v := range logits.Data() {
		require.False(t, math.IsNaN(float64(v)) || math.IsInf(float64(v), 0), "non-finite logit %v", v)
	}
}

func TestForwardErrors(t *testing.T) {
	backend := cpu.New()
	m, err := New(smallConfig(), backend)
	require.NoError(t, err)

	tooLong := tensor.Zeros[int32](tensor.Shape{1, 9}, backend)
	_, err = m.Forward(tooLong)
	assert.True(t, errors.Is(err, ErrSequenceTooLong))

	bad, _ := tensor.FromSlice([]int32{1, 16}, tensor.Shape{1, 2}, backend)
	_, err = m.Forward(bad)
	assert.ErrorIs(t, err, ErrTokenOutOfRange)
}

func TestForwardIsCausal(t *testing.T) {
	backend := cpu.New()
	m, err := New(smallConfig(), backend)
	require.NoError(t, err)
	m.SetTraining(false)

	a, _ := tensor.FromSlice([]int32{3, 4, 5}, tensor.Shape{1, 3}, backend)
	b, _ := tensor.FromSlice([]int32{3, 4, 11}, tensor.Shape{1, 3}, backend)
	la, err := m.Forward(a)
	require.NoError(t, err)
	lb, err := m.Forward(b)
	require.NoError(t, err)

	for pos := 0; pos < 2; pos++ {
		for v := 0; v < 16; v++ {
			assert.InDelta(t, la.At(0, pos, v), lb.At(0, pos, v), 1e-5)
		}
	}
}

func TestInferenceIsDeterministic(t *testing.T) {
	backend := cpu.New()
	m, err := New(smallConfig(), backend)
	require.NoError(t, err)
	m.SetTraining(false)

	tokens, _ := tensor.FromSlice([]int32{1, 2, 3}, tensor.Shape{1, 3}, backend)
	first, err := m.Forward(tokens)
	require.NoError(t, err)
	second, err := m.Forward(tokens)
	require.NoError(t, err)
	assert.Equal(t, first.Data(), second.Data())
}

func TestStateDictRoundTrip(t *testing.T) {
	backend := cpu.New()
	nn.Seed(1)
	src, err := New(smallConfig(), backend)
	require.NoError(t, err)
	nn.Seed(2)
	dst, err := New(smallConfig(), backend)
	require.NoError(t, err)

	state := src.StateDict()
	assert.Contains(t, state, "blocks.0.attention.wq.weight")
	assert.Contains(t, state, "blocks.0.ffn.up.bias")
	assert.Contains(t, state, "output.weight")
	require.NoError(t, dst.LoadStateDict(state))

	src.SetTraining(false)
	dst.SetTraining(false)
	tokens, _ := tensor.FromSlice([]int32{1, 2}, tensor.Shape{1, 2}, backend)
	a, _ := src.Forward(tokens)
	b, _ := dst.Forward(tokens)
	assert.Equal(t, a.Data(), b.Data())

	delete(state, "norm.gamma")
	assert.Error(t, dst.LoadStateDict(state))
}

func TestParameterOrder(t *testing.T) {
	cfg := smallConfig()
	cfg.NumLayers = 2
	m, err := New(cfg, cpu.New())
	require.NoError(t, err)

	params := m.Parameters()
	assert.Equal(t, "token_embedding.weight", params[0].Name())
	assert.Equal(t, "pos_embedding.weight", params[1].Name())
	assert.Equal(t, "blocks.0.attn_norm.gamma", params[2].Name())
	assert.Equal(t, "output.bias", params[len(params)-1].Name())

	perBlock := 2*4 + 2 + 4 // attention projections, two norms, ffn
	assert.Len(t, params, 2+2*perBlock+1+2)

	d := cfg.DModel
	want := cfg.VocabSize*d + cfg.MaxSeqLen*d +
		2*(4*(d*d+d)+2*d+(d*4*d+4*d)+(4*d*d+d)) +
		d + d*cfg.VocabSize + cfg.VocabSize
	assert.Equal(t, want, m.NumParams())
}

func TestLoadStateDictRejectsBeforeCopying(t *testing.T) {
	backend := cpu.New()
	nn.Seed(1)
	src, err := New(smallConfig(), backend)
	require.NoError(t, err)
	nn.Seed(2)
	dst, err := New(smallConfig(), backend)
	require.NoError(t, err)

	before := append([]float32(nil), dst.Parameters()[0].Tensor().Data()...)

	state := make(map[string]*tensor.RawTensor)
	for name, raw := range src.StateDict() {
		state[name] = raw
	}
	state["output.bias"] = tensor.MustRaw(tensor.Shape{3}, tensor.Float32, tensor.CPU)

	err = dst.LoadStateDict(state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output.bias")
	assert.Equal(t, before, dst.Parameters()[0].Tensor().Data())
}

func TestExclusiveScopesTrainingMode(t *testing.T) {
	cfg := smallConfig()
	cfg.Dropout = 0.5
	backend := cpu.New()
	m, err := New(cfg, backend)
	require.NoError(t, err)
	assert.False(t, m.Training())

	tokens, _ := tensor.FromSlice([]int32{1, 2, 3, 4}, tensor.Shape{1, 4}, backend)
	var first, second []float32
	err = m.Exclusive(true, func(forward ForwardFunc[*cpu.CPUBackend]) error {
		a, err := forward(tokens)
		if err != nil {
			return err
		}
		b, err := forward(tokens)
		if err != nil {
			return err
		}
		first, second = a.Data(), b.Data()
		return nil
	})
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "dropout should be active inside a training section")
	assert.False(t, m.Training())

	a, err := m.Forward(tokens)
	require.NoError(t, err)
	b, err := m.Forward(tokens)
	require.NoError(t, err)
	assert.Equal(t, a.Data(), b.Data())
}

func TestExclusivePropagatesError(t *testing.T) {
	m, err := New(smallConfig(), cpu.New())
	require.NoError(t, err)
	m.SetTraining(true)

	boom := errors.New("boom")
	err = m.Exclusive(false, func(ForwardFunc[*cpu.CPUBackend]) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.True(t, m.Training())
}
