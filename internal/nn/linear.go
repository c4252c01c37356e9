package nn

import (
	"fmt"

	"github.com/cognito-lm/cognito/internal/tensor"
)

// Linear is y = x @ Wᵀ + b over the last dimension of x.
//
// W has shape [out, in] and is Xavier-initialized; b is zero-initialized.
// Inputs of any rank ≥ 2 are flattened to [rows, in] for the product.
//
//	layer := nn.NewLinear(512, 2048, backend)
//	y := layer.Forward(x) // [B, T, 512] -> [B, T, 2048]
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter[B]
	bias        *Parameter[B]
}

// NewLinear creates a Linear layer with bias.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, backend)),
		bias:        NewParameter("bias", tensor.Zeros[float32](tensor.Shape{outFeatures}, backend)),
	}
}

// Forward applies the projection to the last dimension.
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) < 2 || shape[len(shape)-1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input [..., %d], got shape %v", l.inFeatures, shape))
	}

	rows := input.NumElements() / l.inFeatures
	flat := input.Reshape(rows, l.inFeatures)
	out := flat.MatMul(l.weight.Tensor().T()).Add(l.bias.Tensor())

	outShape := shape.Clone()
	outShape[len(outShape)-1] = l.outFeatures
	return out.Reshape(outShape...)
}

// Parameters returns [weight, bias].
func (l *Linear[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] { return l.weight }

// Bias returns the bias parameter.
func (l *Linear[B]) Bias() *Parameter[B] { return l.bias }
