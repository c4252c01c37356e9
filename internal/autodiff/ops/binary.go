package ops

import "github.com/cognito-lm/cognito/internal/tensor"

// AddOp is output = a + b with broadcasting.
type AddOp struct{ node }

// NewAddOp creates an AddOp.
func NewAddOp(a, b, output *tensor.RawTensor) *AddOp {
	return &AddOp{newNode(output, a, b)}
}

// Backward passes the gradient through to both operands.
func (op *AddOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return grads(reduceBroadcast(g, a.Shape(), backend), reduceBroadcast(g, b.Shape(), backend))
}

// SubOp is output = a - b with broadcasting.
type SubOp struct{ node }

// NewSubOp creates a SubOp.
func NewSubOp(a, b, output *tensor.RawTensor) *SubOp {
	return &SubOp{newNode(output, a, b)}
}

// Backward returns g for a and -g for b.
func (op *SubOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return grads(reduceBroadcast(g, a.Shape(), backend), reduceBroadcast(backend.MulScalar(g, -1), b.Shape(), backend))
}

// MulOp is output = a * b with broadcasting.
//
//	d(a*b)/da = b, d(a*b)/db = a
type MulOp struct{ node }

// NewMulOp creates a MulOp.
func NewMulOp(a, b, output *tensor.RawTensor) *MulOp {
	return &MulOp{newNode(output, a, b)}
}

// Backward computes g*b and g*a.
func (op *MulOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return grads(
		reduceBroadcast(backend.Mul(g, b), a.Shape(), backend),
		reduceBroadcast(backend.Mul(g, a), b.Shape(), backend),
	)
}

// DivOp is output = a / b with broadcasting.
//
//	d(a/b)/da = 1/b, d(a/b)/db = -a/b²
type DivOp struct{ node }

// NewDivOp creates a DivOp.
func NewDivOp(a, b, output *tensor.RawTensor) *DivOp {
	return &DivOp{newNode(output, a, b)}
}

// Backward computes g/b and -g·out/b.
func (op *DivOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	gradA := backend.Div(g, b)
	gradB := backend.MulScalar(backend.Div(backend.Mul(g, op.output), b), -1)
	return grads(reduceBroadcast(gradA, a.Shape(), backend), reduceBroadcast(gradB, b.Shape(), backend))
}
