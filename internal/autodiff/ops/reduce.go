package ops

import "github.com/cognito-lm/cognito/internal/tensor"

// SumOp reduces every element to a scalar.
type SumOp struct{ node }

// NewSumOp creates a SumOp.
func NewSumOp(x, output *tensor.RawTensor) *SumOp {
	return &SumOp{newNode(output, x)}
}

// Backward broadcasts the scalar gradient to the input shape.
func (op *SumOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return grads(backend.Expand(g, op.inputs[0].Shape()))
}

// SumDimOp sums along one dimension. MeanDim records the same op with
// scale 1/n.
type SumDimOp struct {
	node
	dim   int
	scale float32
}

// NewSumDimOp creates a SumDimOp.
func NewSumDimOp(x, output *tensor.RawTensor, dim int, scale float32) *SumDimOp {
	return &SumDimOp{node: newNode(output, x), dim: dim, scale: scale}
}

// Backward restores the reduced dimension and broadcasts over it.
func (op *SumDimOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inShape := op.inputs[0].Shape()
	g = backend.Reshape(g, keepDimShape(inShape, op.dim))
	grad := backend.Expand(g, inShape)
	if op.scale != 1 {
		grad = backend.MulScalar(grad, op.scale)
	}
	return grads(grad)
}
