package ops

import "github.com/cognito-lm/cognito/internal/tensor"

// MaskedFillOp writes a constant where mask is true. Filled positions
// receive no gradient.
type MaskedFillOp struct {
	node
	mask *tensor.RawTensor
}

// NewMaskedFillOp creates a MaskedFillOp.
func NewMaskedFillOp(x, mask, output *tensor.RawTensor) *MaskedFillOp {
	return &MaskedFillOp{node: newNode(output, x), mask: mask}
}

// Backward zeroes the gradient at masked positions.
func (op *MaskedFillOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return grads(backend.MaskedFill(g, op.mask, 0))
}
