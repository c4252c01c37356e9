package ops

import "github.com/cognito-lm/cognito/internal/tensor"

// MulScalarOp is output = x * s.
type MulScalarOp struct {
	node
	scalar float32
}

// NewMulScalarOp creates a MulScalarOp.
func NewMulScalarOp(x, output *tensor.RawTensor, scalar float32) *MulScalarOp {
	return &MulScalarOp{node: newNode(output, x), scalar: scalar}
}

// Backward scales the gradient by s.
func (op *MulScalarOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return grads(backend.MulScalar(g, op.scalar))
}

// AddScalarOp is output = x + s.
type AddScalarOp struct{ node }

// NewAddScalarOp creates an AddScalarOp.
func NewAddScalarOp(x, output *tensor.RawTensor) *AddScalarOp {
	return &AddScalarOp{newNode(output, x)}
}

// Backward passes the gradient through.
func (op *AddScalarOp) Backward(g *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return grads(g)
}
