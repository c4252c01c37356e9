package nn

import (
	"fmt"

	"github.com/cognito-lm/cognito/internal/tensor"
)

// CrossEntropyLoss is the next-token loss. Positions whose target equals
// IgnoreIndex (the pad id) are excluded; the result is the mean over the
// remaining positions, or 0 if none remain.
type CrossEntropyLoss[B tensor.Backend] struct {
	IgnoreIndex int32
	backend     B
}

// NewCrossEntropyLoss creates the loss.
func NewCrossEntropyLoss[B tensor.Backend](ignoreIndex int32, backend B) *CrossEntropyLoss[B] {
	return &CrossEntropyLoss[B]{IgnoreIndex: ignoreIndex, backend: backend}
}

// Forward takes logits [B, T, V] (or [N, V]) and targets [B, T] (or [N])
// and returns a scalar.
func (c *CrossEntropyLoss[B]) Forward(logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	ls := logits.Shape()
	vocab := ls[len(ls)-1]
	rows := logits.NumElements() / vocab
	if targets.NumElements() != rows {
		panic(fmt.Sprintf("CrossEntropyLoss: %d target positions for logits %v", targets.NumElements(), ls))
	}
	flatLogits := logits.Reshape(rows, vocab)
	flatTargets := targets.Reshape(rows)
	raw := c.backend.CrossEntropy(flatLogits.Raw(), flatTargets.Raw(), c.IgnoreIndex)
	return tensor.New[float32, B](raw, c.backend)
}
