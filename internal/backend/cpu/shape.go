package cpu

import (
	"fmt"

	"github.com/cognito-lm/cognito/internal/tensor"
)

// Reshape returns a view with a new shape. Storage is shared.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	if newShape.NumElements() != t.NumElements() {
		panic(fmt.Sprintf("reshape: cannot reshape %v (%d elements) to %v (%d elements)",
			t.Shape(), t.NumElements(), newShape, newShape.NumElements()))
	}
	return t.View(newShape)
}

// Transpose permutes dimensions. With no axes the order is reversed.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	rank := len(shape)
	if len(axes) == 0 {
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = rank - 1 - i
		}
	}
	if len(axes) != rank {
		panic(fmt.Sprintf("transpose: expected %d axes, got %d", rank, len(axes)))
	}
	seen := make([]bool, rank)
	outShape := make(tensor.Shape, rank)
	srcStrides := shape.Strides()
	permStrides := make([]int, rank)
	for i, ax := range axes {
		if ax < 0 || ax >= rank || seen[ax] {
			panic(fmt.Sprintf("transpose: invalid permutation %v", axes))
		}
		seen[ax] = true
		outShape[i] = shape[ax]
		permStrides[i] = srcStrides[ax]
	}

	result := cpu.alloc("transpose", outShape, t.DType())
	switch t.DType() {
	case tensor.Float32:
		gatherStrided(result.AsFloat32(), t.AsFloat32(), outShape, permStrides)
	case tensor.Int32:
		gatherStrided(result.AsInt32(), t.AsInt32(), outShape, permStrides)
	case tensor.Bool:
		gatherStrided(result.AsBool(), t.AsBool(), outShape, permStrides)
	}
	return result
}

// Expand broadcasts t to shape, materializing the copy.
func (cpu *CPUBackend) Expand(t *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	got, err := tensor.BroadcastShapes(t.Shape(), shape)
	if err != nil || !got.Equal(shape) {
		panic(fmt.Sprintf("expand: cannot expand %v to %v", t.Shape(), shape))
	}
	strides := broadcastStrides(t.Shape(), shape)
	result := cpu.alloc("expand", shape, t.DType())
	switch t.DType() {
	case tensor.Float32:
		gatherStrided(result.AsFloat32(), t.AsFloat32(), shape, strides)
	case tensor.Int32:
		gatherStrided(result.AsInt32(), t.AsInt32(), shape, strides)
	case tensor.Bool:
		gatherStrided(result.AsBool(), t.AsBool(), shape, strides)
	}
	return result
}

// gatherStrided fills dst (row-major over shape) by reading src at the
// given per-dimension strides.
func gatherStrided[T any](dst, src []T, shape tensor.Shape, strides []int) {
	zero := make([]int, len(strides))
	forEachBroadcast(shape, strides, zero, func(i, si, _ int) {
		dst[i] = src[si]
	})
}
