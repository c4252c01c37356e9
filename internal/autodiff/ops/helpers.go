package ops

import (
	"fmt"

	"github.com/cognito-lm/cognito/internal/tensor"
)

// reduceBroadcast sums grad down to target, undoing forward broadcasting.
//
//	Forward:  a[3,1] + b[3,4] -> c[3,4]
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, target tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(target) {
		return grad
	}
	for len(grad.Shape()) > len(target) {
		grad = backend.SumDim(grad, 0, false)
	}
	for d, size := range target {
		if size == 1 && grad.Shape()[d] != 1 {
			grad = backend.SumDim(grad, d, true)
		}
	}
	if !grad.Shape().Equal(target) {
		if grad.NumElements() != target.NumElements() {
			panic(fmt.Sprintf("reduceBroadcast: cannot reduce %v to %v", grad.Shape(), target))
		}
		grad = backend.Reshape(grad, target)
	}
	return grad
}

// keepDimShape returns shape with dim set to 1.
func keepDimShape(shape tensor.Shape, dim int) tensor.Shape {
	out := shape.Clone()
	out[dim] = 1
	return out
}

// swapLast returns the permutation that swaps the last two axes.
func swapLast(rank int) []int {
	axes := make([]int, rank)
	for i := range axes {
		axes[i] = i
	}
	axes[rank-1], axes[rank-2] = axes[rank-2], axes[rank-1]
	return axes
}

func newLike(t *tensor.RawTensor) *tensor.RawTensor {
	return tensor.MustRaw(t.Shape(), t.DType(), t.Device())
}
