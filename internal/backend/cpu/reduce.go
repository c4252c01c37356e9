package cpu

import (
	"fmt"
	"math"

	"github.com/cognito-lm/cognito/internal/parallel"
	"github.com/cognito-lm/cognito/internal/tensor"
)

// Softmax normalizes along the last dimension with max subtraction.
// A row that is entirely -Inf yields zeros rather than NaN.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	requireFloat32("softmax", x)
	shape := x.Shape()
	if dim != len(shape)-1 {
		panic(fmt.Sprintf("softmax: only the last dimension is supported, got dim %d for %v", dim, shape))
	}
	cols := shape[dim]
	rows := x.NumElements() / cols
	result := cpu.alloc("softmax", shape, tensor.Float32)
	in, out := x.AsFloat32(), result.AsFloat32()

	parallel.For(rows, func(r int) {
		softmaxRow(out[r*cols:(r+1)*cols], in[r*cols:(r+1)*cols])
	}, cpu.par)
	return result
}

func softmaxRow(out, in []float32) {
	maxVal := float32(math.Inf(-1))
	for _, v := range in {
		if v > maxVal {
			maxVal = v
		}
	}
	if math.IsInf(float64(maxVal), -1) {
		for i := range out {
			out[i] = 0
		}
		return
	}
	var sum float64
	for i, v := range in {
		e := math.Exp(float64(v - maxVal))
		out[i] = float32(e)
		sum += e
	}
	inv := float32(1 / sum)
	for i := range out {
		out[i] *= inv
	}
}

// Sum reduces all elements to a scalar.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("sum", x)
	var s float64
	for _, v := range x.AsFloat32() {
		s += float64(v)
	}
	result := cpu.alloc("sum", tensor.Shape{}, tensor.Float32)
	result.AsFloat32()[0] = float32(s)
	return result
}

// SumDim sums along dim.
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim("sum_dim", x, dim, keepDim, 1)
}

// MeanDim averages along dim.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	if dim < 0 || dim >= len(x.Shape()) {
		panic(fmt.Sprintf("mean_dim: dim %d out of range for %v", dim, x.Shape()))
	}
	return cpu.reduceDim("mean_dim", x, dim, keepDim, 1/float32(x.Shape()[dim]))
}

func (cpu *CPUBackend) reduceDim(op string, x *tensor.RawTensor, dim int, keepDim bool, scale float32) *tensor.RawTensor {
	requireFloat32(op, x)
	shape := x.Shape()
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("%s: dim %d out of range for %v", op, dim, shape))
	}
	outer, size, inner := splitAt(shape, dim)
	result := cpu.alloc(op, reducedShape(shape, dim, keepDim), tensor.Float32)
	in, out := x.AsFloat32(), result.AsFloat32()
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			var s float32
			for k := 0; k < size; k++ {
				s += in[(o*size+k)*inner+i]
			}
			out[o*inner+i] = s * scale
		}
	}
	return result
}

// Argmax returns int32 indices of the first maximum along dim.
func (cpu *CPUBackend) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	requireFloat32("argmax", x)
	shape := x.Shape()
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("argmax: dim %d out of range for %v", dim, shape))
	}
	outer, size, inner := splitAt(shape, dim)
	result := cpu.alloc("argmax", reducedShape(shape, dim, false), tensor.Int32)
	in, out := x.AsFloat32(), result.AsInt32()
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			best := 0
			bestVal := in[o*size*inner+i]
			for k := 1; k < size; k++ {
				if v := in[(o*size+k)*inner+i]; v > bestVal {
					best, bestVal = k, v
				}
			}
			out[o*inner+i] = int32(best)
		}
	}
	return result
}

// splitAt returns the element counts before, at, and after dim.
func splitAt(shape tensor.Shape, dim int) (outer, size, inner int) {
	outer, inner = 1, 1
	for d := 0; d < dim; d++ {
		outer *= shape[d]
	}
	for d := dim + 1; d < len(shape); d++ {
		inner *= shape[d]
	}
	return outer, shape[dim], inner
}

func reducedShape(shape tensor.Shape, dim int, keepDim bool) tensor.Shape {
	out := make(tensor.Shape, 0, len(shape))
	for d, s := range shape {
		switch {
		case d != dim:
			out = append(out, s)
		case keepDim:
			out = append(out, 1)
		}
	}
	return out
}
