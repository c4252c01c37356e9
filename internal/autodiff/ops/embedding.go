package ops

import (
	"fmt"

	"github.com/cognito-lm/cognito/internal/tensor"
)

// EmbeddingOp is a row lookup weight[indices]. Only weight is differentiable.
//
// Backward scatter-adds each output row into the weight row it came from,
// so repeated ids accumulate.
type EmbeddingOp struct {
	node
	indices *tensor.RawTensor
}

// NewEmbeddingOp creates an EmbeddingOp.
func NewEmbeddingOp(weight, indices, output *tensor.RawTensor) *EmbeddingOp {
	return &EmbeddingOp{node: newNode(output, weight), indices: indices}
}

// Backward scatter-adds the output gradient into a weight-shaped gradient.
func (op *EmbeddingOp) Backward(g *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	weight := op.inputs[0]
	vocab, dim := weight.Shape()[0], weight.Shape()[1]
	gw := newLike(weight)
	gwd, gd := gw.AsFloat32(), g.AsFloat32()
	for i, id := range op.indices.AsInt32() {
		if id < 0 || int(id) >= vocab {
			panic(fmt.Sprintf("embedding backward: index %d out of range [0, %d)", id, vocab))
		}
		row := gwd[int(id)*dim : (int(id)+1)*dim]
		for j, v := range gd[i*dim : (i+1)*dim] {
			row[j] += v
		}
	}
	return grads(gw)
}
