package nn

import "github.com/cognito-lm/cognito/internal/tensor"

// RMSNorm normalizes the last dimension by its root mean square and scales
// by a learned gamma:
//
//	y = x / sqrt(mean(x²) + eps) * gamma
type RMSNorm[B tensor.Backend] struct {
	Gamma   *Parameter[B]
	Epsilon float32
}

// NewRMSNorm creates an RMSNorm with gamma initialized to ones.
func NewRMSNorm[B tensor.Backend](dModel int, epsilon float32, backend B) *RMSNorm[B] {
	return &RMSNorm[B]{
		Gamma:   NewParameter("gamma", tensor.Ones[float32](tensor.Shape{dModel}, backend)),
		Epsilon: epsilon,
	}
}

// Forward normalizes [..., dModel] input.
func (r *RMSNorm[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	meanSq := x.Mul(x).MeanDim(-1, true)
	return x.Mul(meanSq.AddScalar(r.Epsilon).Rsqrt()).Mul(r.Gamma.Tensor())
}

// Parameters returns [gamma].
func (r *RMSNorm[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{r.Gamma}
}
