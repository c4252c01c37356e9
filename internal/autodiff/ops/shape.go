package ops

import "github.com/cognito-lm/cognito/internal/tensor"

// ReshapeOp changes shape without moving data.
type ReshapeOp struct{ node }

// NewReshapeOp creates a ReshapeOp.
func NewReshapeOp(input, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{newNode(output, input)}
}

// Backward reshapes the gradient back to the input shape.
func (op *ReshapeOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return grads(backend.Reshape(g, op.inputs[0].Shape()))
}

// TransposeOp permutes axes. Its gradient applies the inverse permutation.
type TransposeOp struct {
	node
	axes []int
}

// NewTransposeOp creates a TransposeOp for the resolved permutation axes.
func NewTransposeOp(input, output *tensor.RawTensor, axes []int) *TransposeOp {
	return &TransposeOp{node: newNode(output, input), axes: axes}
}

// Backward transposes the gradient with the inverse permutation.
func (op *TransposeOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inverse := make([]int, len(op.axes))
	for i, ax := range op.axes {
		inverse[ax] = i
	}
	return grads(backend.Transpose(g, inverse...))
}

// ExpandOp broadcasts input to a larger shape.
type ExpandOp struct{ node }

// NewExpandOp creates an ExpandOp.
func NewExpandOp(input, output *tensor.RawTensor) *ExpandOp {
	return &ExpandOp{newNode(output, input)}
}

// Backward sums the gradient over the broadcast dimensions.
func (op *ExpandOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return grads(reduceBroadcast(g, op.inputs[0].Shape(), backend))
}
