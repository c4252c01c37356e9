package ops

import "github.com/cognito-lm/cognito/internal/tensor"

// SoftmaxOp is softmax over the last dimension.
//
//	∂L/∂x_j = s_j · (∂L/∂s_j − Σ_i ∂L/∂s_i · s_i)
type SoftmaxOp struct{ node }

// NewSoftmaxOp creates a SoftmaxOp. output must be the softmax result.
func NewSoftmaxOp(x, output *tensor.RawTensor) *SoftmaxOp {
	return &SoftmaxOp{newNode(output, x)}
}

// Backward applies the softmax Jacobian row by row.
func (op *SoftmaxOp) Backward(g *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	shape := op.output.Shape()
	cols := shape[len(shape)-1]
	rows := op.output.NumElements() / cols

	in := newLike(op.output)
	s, gd, out := op.output.AsFloat32(), g.AsFloat32(), in.AsFloat32()
	for r := 0; r < rows; r++ {
		base := r * cols
		var dot float32
		for j := 0; j < cols; j++ {
			dot += gd[base+j] * s[base+j]
		}
		for j := 0; j < cols; j++ {
			out[base+j] = s[base+j] * (gd[base+j] - dot)
		}
	}
	return grads(in)
}
