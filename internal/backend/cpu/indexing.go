package cpu

import (
	"fmt"
	"math"

	"github.com/cognito-lm/cognito/internal/tensor"
)

// Embedding gathers rows of weight [V, D] for every int32 index.
func (cpu *CPUBackend) Embedding(weight, indices *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("embedding", weight)
	if indices.DType() != tensor.Int32 {
		panic(fmt.Sprintf("embedding: indices must be int32, got %s", indices.DType()))
	}
	ws := weight.Shape()
	if len(ws) != 2 {
		panic(fmt.Sprintf("embedding: weight must be 2D, got %v", ws))
	}
	vocab, dim := ws[0], ws[1]

	outShape := append(indices.Shape().Clone(), dim)
	result := cpu.alloc("embedding", outShape, tensor.Float32)
	w, out := weight.AsFloat32(), result.AsFloat32()
	for i, id := range indices.AsInt32() {
		if id < 0 || int(id) >= vocab {
			panic(fmt.Sprintf("embedding: index %d out of range [0, %d)", id, vocab))
		}
		copy(out[i*dim:(i+1)*dim], w[int(id)*dim:(int(id)+1)*dim])
	}
	return result
}

// CrossEntropy computes the mean negative log-likelihood over rows whose
// target is not ignoreIndex.
func (cpu *CPUBackend) CrossEntropy(logits, targets *tensor.RawTensor, ignoreIndex int32) *tensor.RawTensor {
	requireFloat32("cross_entropy", logits)
	ls := logits.Shape()
	if len(ls) != 2 || targets.DType() != tensor.Int32 || targets.NumElements() != ls[0] {
		panic(fmt.Sprintf("cross_entropy: expected logits [N, C] and int32 targets [N], got %v and %s%v",
			ls, targets.DType(), targets.Shape()))
	}
	n, c := ls[0], ls[1]
	in, tgt := logits.AsFloat32(), targets.AsInt32()

	var total float64
	counted := 0
	for r := 0; r < n; r++ {
		t := tgt[r]
		if t == ignoreIndex {
			continue
		}
		if t < 0 || int(t) >= c {
			panic(fmt.Sprintf("cross_entropy: target %d out of range [0, %d)", t, c))
		}
		total += -LogSoftmaxAt(in[r*c:(r+1)*c], int(t))
		counted++
	}

	result := cpu.alloc("cross_entropy", tensor.Shape{}, tensor.Float32)
	if counted > 0 {
		result.AsFloat32()[0] = float32(total / float64(counted))
	}
	return result
}

// LogSoftmaxAt returns log(softmax(row)[k]) computed with log-sum-exp.
func LogSoftmaxAt(row []float32, k int) float64 {
	maxVal := math.Inf(-1)
	for _, v := range row {
		maxVal = math.Max(maxVal, float64(v))
	}
	var sum float64
	for _, v := range row {
		sum += math.Exp(float64(v) - maxVal)
	}
	return float64(row[k]) - maxVal - math.Log(sum)
}
