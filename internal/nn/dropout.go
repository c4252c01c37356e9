package nn

import (
	"fmt"

	"github.com/cognito-lm/cognito/internal/tensor"
)

// Dropout zeroes each element with probability P during training and
// scales survivors by 1/(1-P). Outside training it is the identity.
type Dropout[B tensor.Backend] struct {
	P        float64
	training bool
	backend  B
}

// NewDropout creates a Dropout layer in training mode.
func NewDropout[B tensor.Backend](p float64, backend B) *Dropout[B] {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("Dropout: probability must be in [0, 1), got %v", p))
	}
	return &Dropout[B]{P: p, training: true, backend: backend}
}

// SetTraining switches between training and inference behaviour.
func (d *Dropout[B]) SetTraining(training bool) {
	d.training = training
}

// Forward applies the random mask in training mode.
func (d *Dropout[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.training || d.P == 0 {
		return x
	}
	return x.Mul(bernoulliMask(d.P, x.Shape(), d.backend))
}

// Parameters returns nil.
func (d *Dropout[B]) Parameters() []*Parameter[B] {
	return nil
}
