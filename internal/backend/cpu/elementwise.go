package cpu

import (
	"fmt"
	"math"

	"github.com/cognito-lm/cognito/internal/tensor"
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, func(x, y float32) float32 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, func(x, y float32) float32 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, func(x, y float32) float32 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("div", a, b, func(x, y float32) float32 { return x / y })
}

func (cpu *CPUBackend) binary(op string, a, b *tensor.RawTensor, f func(x, y float32) float32) *tensor.RawTensor {
	requireFloat32(op, a, b)
	outShape, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	result := cpu.alloc(op, outShape, tensor.Float32)
	out, ad, bd := result.AsFloat32(), a.AsFloat32(), b.AsFloat32()

	switch {
	case a.Shape().Equal(b.Shape()):
		for i := range out {
			out[i] = f(ad[i], bd[i])
		}
	case len(bd) == 1 && len(ad) == len(out):
		s := bd[0]
		for i := range out {
			out[i] = f(ad[i], s)
		}
	default:
		aStr := broadcastStrides(a.Shape(), outShape)
		bStr := broadcastStrides(b.Shape(), outShape)
		forEachBroadcast(outShape, aStr, bStr, func(i, ai, bi int) {
			out[i] = f(ad[ai], bd[bi])
		})
	}
	return result
}

// broadcastStrides returns src strides aligned to out's rank, with zero
// stride on broadcast dimensions.
func broadcastStrides(src, out tensor.Shape) []int {
	st := make([]int, len(out))
	srcStrides := src.Strides()
	off := len(out) - len(src)
	for d := range out {
		if sd := d - off; sd >= 0 && src[sd] != 1 {
			st[d] = srcStrides[sd]
		}
	}
	return st
}

// forEachBroadcast walks out in row-major order, tracking the matching
// offsets into two broadcast operands.
func forEachBroadcast(out tensor.Shape, aStr, bStr []int, f func(i, ai, bi int)) {
	n := out.NumElements()
	rank := len(out)
	coord := make([]int, rank)
	ai, bi := 0, 0
	for i := 0; i < n; i++ {
		f(i, ai, bi)
		for d := rank - 1; d >= 0; d-- {
			coord[d]++
			ai += aStr[d]
			bi += bStr[d]
			if coord[d] < out[d] {
				break
			}
			ai -= aStr[d] * coord[d]
			bi -= bStr[d] * coord[d]
			coord[d] = 0
		}
	}
}

// MulScalar multiplies every element by s.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, s float32) *tensor.RawTensor {
	return cpu.unary("mul_scalar", x, func(v float32) float32 { return v * s })
}

// AddScalar adds s to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, s float32) *tensor.RawTensor {
	return cpu.unary("add_scalar", x, func(v float32) float32 { return v + s })
}

// Exp computes e^x.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("exp", x, func(v float32) float32 { return float32(math.Exp(float64(v))) })
}

// Log computes the natural logarithm.
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("log", x, func(v float32) float32 { return float32(math.Log(float64(v))) })
}

// Sqrt computes the square root.
func (cpu *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("sqrt", x, func(v float32) float32 { return float32(math.Sqrt(float64(v))) })
}

// Rsqrt computes 1/sqrt(x).
func (cpu *CPUBackend) Rsqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("rsqrt", x, func(v float32) float32 { return float32(1 / math.Sqrt(float64(v))) })
}

// GELU applies the exact erf form: 0.5·x·(1 + erf(x/√2)).
func (cpu *CPUBackend) GELU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("gelu", x, func(v float32) float32 {
		f := float64(v)
		return float32(0.5 * f * (1 + math.Erf(f/math.Sqrt2)))
	})
}

func (cpu *CPUBackend) unary(op string, x *tensor.RawTensor, f func(float32) float32) *tensor.RawTensor {
	requireFloat32(op, x)
	result := cpu.alloc(op, x.Shape(), tensor.Float32)
	out, in := result.AsFloat32(), x.AsFloat32()
	for i, v := range in {
		out[i] = f(v)
	}
	return result
}

// MaskedFill copies x and writes value wherever mask is true. The mask
// broadcasts to x's shape.
func (cpu *CPUBackend) MaskedFill(x, mask *tensor.RawTensor, value float32) *tensor.RawTensor {
	requireFloat32("masked_fill", x)
	if mask.DType() != tensor.Bool {
		panic(fmt.Sprintf("masked_fill: mask must be bool, got %s", mask.DType()))
	}
	outShape, err := tensor.BroadcastShapes(x.Shape(), mask.Shape())
	if err != nil || !outShape.Equal(x.Shape()) {
		panic(fmt.Sprintf("masked_fill: mask %v does not broadcast to %v", mask.Shape(), x.Shape()))
	}
	result := cpu.alloc("masked_fill", x.Shape(), tensor.Float32)
	out, in, m := result.AsFloat32(), x.AsFloat32(), mask.AsBool()
	forEachBroadcast(x.Shape(), x.Shape().Strides(), broadcastStrides(mask.Shape(), x.Shape()), func(i, xi, mi int) {
		if m[mi] {
			out[i] = value
		} else {
			out[i] = in[xi]
		}
	})
	return result
}

// Not negates a bool tensor.
func (cpu *CPUBackend) Not(x *tensor.RawTensor) *tensor.RawTensor {
	if x.DType() != tensor.Bool {
		panic(fmt.Sprintf("not: expected bool, got %s", x.DType()))
	}
	result := cpu.alloc("not", x.Shape(), tensor.Bool)
	out := result.AsBool()
	for i, v := range x.AsBool() {
		out[i] = !v
	}
	return result
}
