package ops

import (
	"math"

	"github.com/cognito-lm/cognito/internal/tensor"
)

// ExpOp is output = e^x; d/dx = output.
type ExpOp struct{ node }

// NewExpOp creates an ExpOp.
func NewExpOp(x, output *tensor.RawTensor) *ExpOp {
	return &ExpOp{newNode(output, x)}
}

// Backward returns g * e^x.
func (op *ExpOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return grads(backend.Mul(g, op.output))
}

// LogOp is output = ln x; d/dx = 1/x.
type LogOp struct{ node }

// NewLogOp creates a LogOp.
func NewLogOp(x, output *tensor.RawTensor) *LogOp {
	return &LogOp{newNode(output, x)}
}

// Backward returns g / x.
func (op *LogOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return grads(backend.Div(g, op.inputs[0]))
}

// SqrtOp is output = √x; d/dx = 1/(2√x).
type SqrtOp struct{ node }

// NewSqrtOp creates a SqrtOp.
func NewSqrtOp(x, output *tensor.RawTensor) *SqrtOp {
	return &SqrtOp{newNode(output, x)}
}

// Backward returns g * 0.5 / √x.
func (op *SqrtOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return grads(backend.MulScalar(backend.Div(g, op.output), 0.5))
}

// RsqrtOp is output = x^(-1/2); d/dx = -0.5·output³.
type RsqrtOp struct{ node }

// NewRsqrtOp creates an RsqrtOp.
func NewRsqrtOp(x, output *tensor.RawTensor) *RsqrtOp {
	return &RsqrtOp{newNode(output, x)}
}

// Backward returns g * -0.5 * output³.
func (op *RsqrtOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	cube := backend.Mul(backend.Mul(op.output, op.output), op.output)
	return grads(backend.Mul(g, backend.MulScalar(cube, -0.5)))
}

// GELUOp is output = x·Φ(x) with Φ the standard normal CDF.
//
//	d/dx = Φ(x) + x·φ(x)
type GELUOp struct{ node }

// NewGELUOp creates a GELUOp.
func NewGELUOp(x, output *tensor.RawTensor) *GELUOp {
	return &GELUOp{newNode(output, x)}
}

// Backward evaluates the exact derivative element-wise.
func (op *GELUOp) Backward(g *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]
	out := newLike(x)
	xd, gd, od := x.AsFloat32(), g.AsFloat32(), out.AsFloat32()
	invSqrt2Pi := 1 / math.Sqrt(2*math.Pi)
	for i, v := range xd {
		f := float64(v)
		cdf := 0.5 * (1 + math.Erf(f/math.Sqrt2))
		pdf := invSqrt2Pi * math.Exp(-0.5*f*f)
		od[i] = gd[i] * float32(cdf+f*pdf)
	}
	return grads(out)
}
