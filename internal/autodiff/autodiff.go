// Package autodiff adds reverse-mode differentiation to any tensor.Backend.
//
// AutodiffBackend decorates an inner backend: every differentiable call is
// forwarded to the inner backend and, while the tape is recording, the
// matching ops.Operation is appended to a GradientTape.
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	loss := model.Forward(tokens) ...
//	grads := autodiff.Backward(loss, backend)
package autodiff

import (
	"github.com/cognito-lm/cognito/internal/autodiff/ops"
	"github.com/cognito-lm/cognito/internal/tensor"
)

// AutodiffBackend wraps a Backend and records operations on a tape.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

var _ BackwardCapable = (*AutodiffBackend[tensor.Backend])(nil)

// New wraps backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{inner: backend, tape: NewGradientTape()}
}

// Tape returns the gradient tape.
func (b *AutodiffBackend[B]) Tape() *GradientTape { return b.tape }

// Inner returns the wrapped backend.
func (b *AutodiffBackend[B]) Inner() B { return b.inner }

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string { return "Autodiff(" + b.inner.Name() + ")" }

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device { return b.inner.Device() }

func (b *AutodiffBackend[B]) record(op ops.Operation) {
	b.tape.Record(op)
}

// Add records ops.AddOp.
func (b *AutodiffBackend[B]) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Add(x, y)
	if b.tape.IsRecording() {
		b.record(ops.NewAddOp(x, y, out))
	}
	return out
}

// Sub records ops.SubOp.
func (b *AutodiffBackend[B]) Sub(x, y *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Sub(x, y)
	if b.tape.IsRecording() {
		b.record(ops.NewSubOp(x, y, out))
	}
	return out
}

// Mul records ops.MulOp.
func (b *AutodiffBackend[B]) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Mul(x, y)
	if b.tape.IsRecording() {
		b.record(ops.NewMulOp(x, y, out))
	}
	return out
}

// Div records ops.DivOp.
func (b *AutodiffBackend[B]) Div(x, y *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Div(x, y)
	if b.tape.IsRecording() {
		b.record(ops.NewDivOp(x, y, out))
	}
	return out
}

// MatMul records ops.MatMulOp.
func (b *AutodiffBackend[B]) MatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.MatMul(x, y)
	if b.tape.IsRecording() {
		b.record(ops.NewMatMulOp(x, y, out))
	}
	return out
}

// BatchMatMul records ops.BatchMatMulOp.
func (b *AutodiffBackend[B]) BatchMatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.BatchMatMul(x, y)
	if b.tape.IsRecording() {
		b.record(ops.NewBatchMatMulOp(x, y, out))
	}
	return out
}

// Reshape records ops.ReshapeOp.
func (b *AutodiffBackend[B]) Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	out := b.inner.Reshape(x, shape)
	if b.tape.IsRecording() {
		b.record(ops.NewReshapeOp(x, out))
	}
	return out
}

// Transpose records ops.TransposeOp with the resolved permutation.
func (b *AutodiffBackend[B]) Transpose(x *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	out := b.inner.Transpose(x, axes...)
	if b.tape.IsRecording() {
		if len(axes) == 0 {
			rank := len(x.Shape())
			axes = make([]int, rank)
			for i := range axes {
				axes[i] = rank - 1 - i
			}
		}
		b.record(ops.NewTransposeOp(x, out, append([]int(nil), axes...)))
	}
	return out
}

// Expand records ops.ExpandOp.
func (b *AutodiffBackend[B]) Expand(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	out := b.inner.Expand(x, shape)
	if b.tape.IsRecording() {
		b.record(ops.NewExpandOp(x, out))
	}
	return out
}

// MulScalar records ops.MulScalarOp.
func (b *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, s float32) *tensor.RawTensor {
	out := b.inner.MulScalar(x, s)
	if b.tape.IsRecording() {
		b.record(ops.NewMulScalarOp(x, out, s))
	}
	return out
}

// AddScalar records ops.AddScalarOp.
func (b *AutodiffBackend[B]) AddScalar(x *tensor.RawTensor, s float32) *tensor.RawTensor {
	out := b.inner.AddScalar(x, s)
	if b.tape.IsRecording() {
		b.record(ops.NewAddScalarOp(x, out))
	}
	return out
}

// Exp records ops.ExpOp.
func (b *AutodiffBackend[B]) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Exp(x)
	if b.tape.IsRecording() {
		b.record(ops.NewExpOp(x, out))
	}
	return out
}

// Log records ops.LogOp.
func (b *AutodiffBackend[B]) Log(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Log(x)
	if b.tape.IsRecording() {
		b.record(ops.NewLogOp(x, out))
	}
	return out
}

// Sqrt records ops.SqrtOp.
func (b *AutodiffBackend[B]) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Sqrt(x)
	if b.tape.IsRecording() {
		b.record(ops.NewSqrtOp(x, out))
	}
	return out
}

// Rsqrt records ops.RsqrtOp.
func (b *AutodiffBackend[B]) Rsqrt(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Rsqrt(x)
	if b.tape.IsRecording() {
		b.record(ops.NewRsqrtOp(x, out))
	}
	return out
}

// GELU records ops.GELUOp.
func (b *AutodiffBackend[B]) GELU(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.GELU(x)
	if b.tape.IsRecording() {
		b.record(ops.NewGELUOp(x, out))
	}
	return out
}

// Softmax records ops.SoftmaxOp.
func (b *AutodiffBackend[B]) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	out := b.inner.Softmax(x, dim)
	if b.tape.IsRecording() {
		b.record(ops.NewSoftmaxOp(x, out))
	}
	return out
}

// Sum records ops.SumOp.
func (b *AutodiffBackend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Sum(x)
	if b.tape.IsRecording() {
		b.record(ops.NewSumOp(x, out))
	}
	return out
}

// SumDim records ops.SumDimOp.
func (b *AutodiffBackend[B]) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	out := b.inner.SumDim(x, dim, keepDim)
	if b.tape.IsRecording() {
		b.record(ops.NewSumDimOp(x, out, dim, 1))
	}
	return out
}

// MeanDim records ops.SumDimOp scaled by 1/n.
func (b *AutodiffBackend[B]) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	out := b.inner.MeanDim(x, dim, keepDim)
	if b.tape.IsRecording() {
		b.record(ops.NewSumDimOp(x, out, dim, 1/float32(x.Shape()[dim])))
	}
	return out
}

// Argmax is not differentiable and is never recorded.
func (b *AutodiffBackend[B]) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return b.inner.Argmax(x, dim)
}

// Embedding records ops.EmbeddingOp.
func (b *AutodiffBackend[B]) Embedding(weight, indices *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Embedding(weight, indices)
	if b.tape.IsRecording() {
		b.record(ops.NewEmbeddingOp(weight, indices, out))
	}
	return out
}

// MaskedFill records ops.MaskedFillOp.
func (b *AutodiffBackend[B]) MaskedFill(x, mask *tensor.RawTensor, value float32) *tensor.RawTensor {
	out := b.inner.MaskedFill(x, mask, value)
	if b.tape.IsRecording() {
		b.record(ops.NewMaskedFillOp(x, mask, out))
	}
	return out
}

// Not is not differentiable and is never recorded.
func (b *AutodiffBackend[B]) Not(x *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.Not(x)
}

// CrossEntropy records ops.CrossEntropyOp.
func (b *AutodiffBackend[B]) CrossEntropy(logits, targets *tensor.RawTensor, ignoreIndex int32) *tensor.RawTensor {
	out := b.inner.CrossEntropy(logits, targets, ignoreIndex)
	if b.tape.IsRecording() {
		b.record(ops.NewCrossEntropyOp(logits, targets, out, ignoreIndex))
	}
	return out
}
