package nn

import (
	"fmt"
	"math"

	"github.com/cognito-lm/cognito/internal/tensor"
)

// CausalMask returns a [batch, seqLen, seqLen] bool mask where
// mask[b, i, j] is true when position i may attend to position j (j ≤ i).
func CausalMask[B tensor.Backend](batch, seqLen int, backend B) *tensor.Tensor[bool, B] {
	return tensor.Tril(seqLen, backend).Reshape(1, seqLen, seqLen).Expand(tensor.Shape{batch, seqLen, seqLen})
}

// MultiHeadAttention is causal self-attention with learned Q, K, V and
// output projections.
//
//	MHA(x) = Concat(head_1, ..., head_h) W_O
//	head_i = softmax(mask(Q_i K_iᵀ / √d_head)) V_i
//
// Dropout is applied to the attention weights.
type MultiHeadAttention[B tensor.Backend] struct {
	WQ, WK, WV, WO *Linear[B]
	NumHeads       int
	HeadDim        int
	EmbedDim       int
	dropout        *Dropout[B]
}

// NewMultiHeadAttention creates an attention layer. embedDim must be
// divisible by numHeads.
func NewMultiHeadAttention[B tensor.Backend](embedDim, numHeads int, dropout float64, backend B) *MultiHeadAttention[B] {
	if numHeads <= 0 || embedDim%numHeads != 0 {
		panic(fmt.Sprintf("MultiHeadAttention: embed_dim (%d) must be divisible by num_heads (%d)", embedDim, numHeads))
	}
	return &MultiHeadAttention[B]{
		WQ:       NewLinear(embedDim, embedDim, backend),
		WK:       NewLinear(embedDim, embedDim, backend),
		WV:       NewLinear(embedDim, embedDim, backend),
		WO:       NewLinear(embedDim, embedDim, backend),
		NumHeads: numHeads,
		HeadDim:  embedDim / numHeads,
		EmbedDim: embedDim,
		dropout:  NewDropout(dropout, backend),
	}
}

// Forward attends x [B, T, D] to itself. mask is [B, T, T] with true
// marking allowed positions; disallowed scores become -Inf before softmax.
func (m *MultiHeadAttention[B]) Forward(x *tensor.Tensor[float32, B], mask *tensor.Tensor[bool, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 3 || shape[2] != m.EmbedDim {
		panic(fmt.Sprintf("MultiHeadAttention.Forward: expected [batch, seq, %d], got %v", m.EmbedDim, shape))
	}
	batch, seq := shape[0], shape[1]
	if !mask.Shape().Equal(tensor.Shape{batch, seq, seq}) {
		panic(fmt.Sprintf("MultiHeadAttention.Forward: mask shape %v, want [%d %d %d]", mask.Shape(), batch, seq, seq))
	}

	q := m.splitHeads(m.WQ.Forward(x), batch, seq)
	k := m.splitHeads(m.WK.Forward(x), batch, seq)
	v := m.splitHeads(m.WV.Forward(x), batch, seq)

	scores := q.BatchMatMul(k.T()).MulScalar(float32(1 / math.Sqrt(float64(m.HeadDim))))
	blocked := mask.Not().Reshape(batch, 1, seq, seq)
	weights := scores.MaskedFill(blocked, float32(math.Inf(-1))).Softmax(-1)
	weights = m.dropout.Forward(weights)

	ctx := weights.BatchMatMul(v).Transpose(0, 2, 1, 3).Reshape(batch, seq, m.EmbedDim)
	return m.WO.Forward(ctx)
}

// splitHeads turns [B, T, D] into [B, H, T, d_head].
func (m *MultiHeadAttention[B]) splitHeads(x *tensor.Tensor[float32, B], batch, seq int) *tensor.Tensor[float32, B] {
	return x.Reshape(batch, seq, m.NumHeads, m.HeadDim).Transpose(0, 2, 1, 3)
}

// SetTraining toggles attention dropout.
func (m *MultiHeadAttention[B]) SetTraining(training bool) {
	m.dropout.SetTraining(training)
}

// Parameters returns the projection parameters in Q, K, V, O order.
func (m *MultiHeadAttention[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	params = append(params, Prefixed("wq", m.WQ.Parameters())...)
	params = append(params, Prefixed("wk", m.WK.Parameters())...)
	params = append(params, Prefixed("wv", m.WV.Parameters())...)
	params = append(params, Prefixed("wo", m.WO.Parameters())...)
	return params
}
