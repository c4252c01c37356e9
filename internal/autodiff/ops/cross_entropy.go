package ops

import (
	"math"

	"github.com/cognito-lm/cognito/internal/tensor"
)

// CrossEntropyOp is the mean NLL of targets under logits [N, C], skipping
// rows whose target is the ignore index.
//
//	∂L/∂logits[r] = (softmax(logits[r]) − onehot(target[r])) / counted
//
// Ignored rows get zero gradient.
type CrossEntropyOp struct {
	node
	targets     *tensor.RawTensor
	ignoreIndex int32
}

// NewCrossEntropyOp creates a CrossEntropyOp.
func NewCrossEntropyOp(logits, targets, output *tensor.RawTensor, ignoreIndex int32) *CrossEntropyOp {
	return &CrossEntropyOp{node: newNode(output, logits), targets: targets, ignoreIndex: ignoreIndex}
}

// Backward computes the fused softmax-minus-onehot gradient.
func (op *CrossEntropyOp) Backward(g *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	logits := op.inputs[0]
	n, c := logits.Shape()[0], logits.Shape()[1]
	tgt := op.targets.AsInt32()

	counted := 0
	for _, t := range tgt {
		if t != op.ignoreIndex {
			counted++
		}
	}
	grad := newLike(logits)
	if counted == 0 {
		return grads(grad)
	}

	scale := float64(g.AsFloat32()[0]) / float64(counted)
	in, out := logits.AsFloat32(), grad.AsFloat32()
	for r := 0; r < n; r++ {
		if tgt[r] == op.ignoreIndex {
			continue
		}
		row := in[r*c : (r+1)*c]
		maxVal := math.Inf(-1)
		for _, v := range row {
			maxVal = math.Max(maxVal, float64(v))
		}
		var sum float64
		for _, v := range row {
			sum += math.Exp(float64(v) - maxVal)
		}
		for j, v := range row {
			p := math.Exp(float64(v)-maxVal) / sum
			if j == int(tgt[r]) {
				p--
			}
			out[r*c+j] = float32(p * scale)
		}
	}
	return grads(grad)
}
