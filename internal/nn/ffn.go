package nn

import "github.com/cognito-lm/cognito/internal/tensor"

// FFN is the position-wise feed-forward network Linear → GELU → Linear.
type FFN[B tensor.Backend] struct {
	Up   *Linear[B]
	Down *Linear[B]
}

// NewFFN creates an FFN with hidden width ffnDim.
func NewFFN[B tensor.Backend](embedDim, ffnDim int, backend B) *FFN[B] {
	return &FFN[B]{
		Up:   NewLinear(embedDim, ffnDim, backend),
		Down: NewLinear(ffnDim, embedDim, backend),
	}
}

// Forward maps [..., embedDim] to [..., embedDim].
func (f *FFN[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return f.Down.Forward(f.Up.Forward(x).GELU())
}

// Parameters returns up then down projection parameters.
func (f *FFN[B]) Parameters() []*Parameter[B] {
	return append(Prefixed("up", f.Up.Parameters()), Prefixed("down", f.Down.Parameters())...)
}
