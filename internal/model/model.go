package model

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cognito-lm/cognito/internal/nn"
	"github.com/cognito-lm/cognito/internal/tensor"
)

var (
	// ErrSequenceTooLong is returned when the input is longer than MaxSeqLen.
	ErrSequenceTooLong = errors.New("sequence exceeds max_seq_len")

	// ErrTokenOutOfRange is returned for ids outside [0, VocabSize).
	ErrTokenOutOfRange = errors.New("token id outside vocabulary")
)

// Model is the decoder-only language model:
//
//	tokens → token embedding + positional embedding
//	       → Block × NumLayers → RMSNorm → Linear → logits
//
// Forward may run concurrently with other Forward calls. Work that
// mutates shared state, such as gradient recording and optimizer steps,
// goes through Exclusive, which excludes readers. A forward pass therefore never sees a half-applied
// optimizer step and never records onto a tape another caller owns.
type Model[B tensor.Backend] struct {
	Config         Config
	TokenEmbedding *nn.Embedding[B]
	PosEmbedding   *nn.Embedding[B]
	Blocks         []*Block[B]
	Norm           *nn.RMSNorm[B]
	Output         *nn.Linear[B]

	backend  B
	mu       sync.RWMutex
	params   []*nn.Parameter[B]
	training bool
}

// ForwardFunc is a forward pass that runs under a lock its caller holds.
type ForwardFunc[B tensor.Backend] func(tokens *tensor.Tensor[int32, B]) (*tensor.Tensor[float32, B], error)

// New builds a randomly initialized model.
func New[B tensor.Backend](cfg Config, backend B) (*Model[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Model[B]{
		Config:         cfg,
		TokenEmbedding: nn.NewEmbedding(cfg.VocabSize, cfg.DModel, backend),
		PosEmbedding:   nn.NewEmbedding(cfg.MaxSeqLen, cfg.DModel, backend),
		Blocks:         make([]*Block[B], cfg.NumLayers),
		Norm:           nn.NewRMSNorm(cfg.DModel, normEps, backend),
		Output:         nn.NewLinear(cfg.DModel, cfg.VocabSize, backend),
		backend:        backend,
	}
	for i := range m.Blocks {
		m.Blocks[i] = NewBlock(cfg, backend)
	}
	m.params = m.collectParameters()
	m.setTraining(false)
	return m, nil
}

// Backend returns the backend the model computes on.
func (m *Model[B]) Backend() B {
	return m.backend
}

// Forward maps tokens [B, T] to logits [B, T, VocabSize]. The causal mask
// is built once per call and shared by every block.
func (m *Model[B]) Forward(tokens *tensor.Tensor[int32, B]) (*tensor.Tensor[float32, B], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.forward(tokens)
}

func (m *Model[B]) forward(tokens *tensor.Tensor[int32, B]) (*tensor.Tensor[float32, B], error) {
	shape := tokens.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("forward: expected tokens [batch, seq], got shape %v", shape)
	}
	batch, seq := shape[0], shape[1]
	if seq > m.Config.MaxSeqLen {
		return nil, fmt.Errorf("%w: %d > %d", ErrSequenceTooLong, seq, m.Config.MaxSeqLen)
	}
	for i, id := range tokens.Data() {
		if id < 0 || int(id) >= m.Config.VocabSize {
			return nil, fmt.Errorf("%w: id %d at position %d (vocab %d)", ErrTokenOutOfRange, id, i, m.Config.VocabSize)
		}
	}

	positions := tensor.Arange(0, int32(seq), m.backend).Reshape(1, seq)
	x := m.TokenEmbedding.Forward(tokens).Add(m.PosEmbedding.Forward(positions))

	mask := nn.CausalMask(batch, seq, m.backend)
	for _, block := range m.Blocks {
		x = block.Forward(x, mask)
	}
	return m.Output.Forward(m.Norm.Forward(x)), nil
}

// SetTraining toggles dropout throughout the model. New models start in
// inference mode.
func (m *Model[B]) SetTraining(training bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setTraining(training)
}

// Training reports whether dropout is active.
func (m *Model[B]) Training() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.training
}

func (m *Model[B]) setTraining(training bool) {
	m.training = training
	for _, block := range m.Blocks {
		block.SetTraining(training)
	}
}

// Exclusive runs fn while holding the exclusive lock, with dropout in the
// given mode; the previous mode is restored afterwards. fn must run its
// forward passes through forward: calling Forward from fn deadlocks.
func (m *Model[B]) Exclusive(training bool, fn func(forward ForwardFunc[B]) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.training
	m.setTraining(training)
	defer m.setTraining(prev)
	return fn(m.forward)
}

// Parameters returns all trainable parameters: embeddings, blocks in
// stack order, final norm, output projection.
func (m *Model[B]) Parameters() []*nn.Parameter[B] {
	return m.params
}

func (m *Model[B]) collectParameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	params = append(params, nn.Prefixed("token_embedding", m.TokenEmbedding.Parameters())...)
	params = append(params, nn.Prefixed("pos_embedding", m.PosEmbedding.Parameters())...)
	for i, block := range m.Blocks {
		params = append(params, nn.Prefixed(fmt.Sprintf("blocks.%d", i), block.Parameters())...)
	}
	params = append(params, nn.Prefixed("norm", m.Norm.Parameters())...)
	params = append(params, nn.Prefixed("output", m.Output.Parameters())...)
	return params
}

// NumParams returns the total number of trainable scalars.
func (m *Model[B]) NumParams() int {
	n := 0
	for _, p := range m.params {
		n += p.Tensor().NumElements()
	}
	return n
}

// StateDict maps parameter names to their tensors. The tensors are live;
// copy them before mutating.
func (m *Model[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor, len(m.params))
	for _, p := range m.params {
		state[p.Name()] = p.Tensor().Raw()
	}
	return state
}

// LoadStateDict copies every named tensor into the model. All parameters
// must be present with matching shapes; extra entries are ignored. The
// whole state is checked first, so on error the model is unchanged.
func (m *Model[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.params {
		src, ok := state[p.Name()]
		if !ok {
			return fmt.Errorf("load state: missing parameter %q", p.Name())
		}
		if err := p.Check(src); err != nil {
			return fmt.Errorf("load state: %w", err)
		}
	}
	for _, p := range m.params {
		p.Tensor().Raw().CopyFrom(state[p.Name()])
	}
	return nil
}
