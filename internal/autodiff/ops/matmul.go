package ops

import "github.com/cognito-lm/cognito/internal/tensor"

// MatMulOp is output = a @ b for 2-D matrices.
//
//	dL/da = g @ bᵀ, dL/db = aᵀ @ g
type MatMulOp struct{ node }

// NewMatMulOp creates a MatMulOp.
func NewMatMulOp(a, b, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{newNode(output, a, b)}
}

// Backward computes both matrix gradients.
func (op *MatMulOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return grads(
		backend.MatMul(g, backend.Transpose(b, 1, 0)),
		backend.MatMul(backend.Transpose(a, 1, 0), g),
	)
}

// BatchMatMulOp is the batched form over the trailing two dimensions.
type BatchMatMulOp struct{ node }

// NewBatchMatMulOp creates a BatchMatMulOp.
func NewBatchMatMulOp(a, b, output *tensor.RawTensor) *BatchMatMulOp {
	return &BatchMatMulOp{newNode(output, a, b)}
}

// Backward computes both gradients batch by batch.
func (op *BatchMatMulOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	axes := swapLast(len(a.Shape()))
	return grads(
		backend.BatchMatMul(g, backend.Transpose(b, axes...)),
		backend.BatchMatMul(backend.Transpose(a, axes...), g),
	)
}
