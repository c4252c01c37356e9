package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/cognito-lm/cognito/internal/parallel"
	"github.com/cognito-lm/cognito/internal/tensor"
)

// MatMul performs (M, K) @ (K, N) -> (M, N) with SGEMM.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("matmul", a, b)
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}
	m, k := aShape[0], aShape[1]
	if bShape[0] != k {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, bShape[0], bShape[1]))
	}
	n := bShape[1]

	result := cpu.alloc("matmul", tensor.Shape{m, n}, tensor.Float32)
	sgemm(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n)
	return result
}

// BatchMatMul multiplies the trailing matrices of 3-D or 4-D tensors.
// Leading dimensions must match exactly.
func (cpu *CPUBackend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("batch_matmul", a, b)
	aShape, bShape := a.Shape(), b.Shape()
	rank := len(aShape)
	if rank < 3 || rank > 4 || len(bShape) != rank {
		panic(fmt.Sprintf("batch_matmul: expected matching 3D or 4D tensors, got %v and %v", aShape, bShape))
	}
	for d := 0; d < rank-2; d++ {
		if aShape[d] != bShape[d] {
			panic(fmt.Sprintf("batch_matmul: batch dims differ: %v vs %v", aShape, bShape))
		}
	}
	m, k := aShape[rank-2], aShape[rank-1]
	if bShape[rank-2] != k {
		panic(fmt.Sprintf("batch_matmul: inner dims differ: %v @ %v", aShape, bShape))
	}
	n := bShape[rank-1]

	outShape := aShape.Clone()
	outShape[rank-1] = n
	result := cpu.alloc("batch_matmul", outShape, tensor.Float32)

	batch := 1
	for d := 0; d < rank-2; d++ {
		batch *= aShape[d]
	}
	out, ad, bd := result.AsFloat32(), a.AsFloat32(), b.AsFloat32()
	cfg := cpu.par
	cfg.MinChunkSize = 1
	parallel.For(batch, func(i int) {
		sgemm(out[i*m*n:(i+1)*m*n], ad[i*m*k:(i+1)*m*k], bd[i*k*n:(i+1)*k*n], m, k, n)
	}, cfg)
	return result
}

// sgemm computes c = a·b for row-major a (m×k) and b (k×n).
func sgemm(c, a, b []float32, m, k, n int) {
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		blas32.General{Rows: m, Cols: k, Stride: k, Data: a},
		blas32.General{Rows: k, Cols: n, Stride: n, Data: b},
		0,
		blas32.General{Rows: m, Cols: n, Stride: n, Data: c},
	)
}
