package nn

import (
	"fmt"

	"github.com/cognito-lm/cognito/internal/tensor"
)

// Parameter is a named trainable tensor.
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float32, B]
}

// NewParameter creates a trainable parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{name: name, tensor: t}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// GradFrom looks up this parameter's gradient in the map returned by
// autodiff.Backward. It returns nil when no gradient reached it.
func (p *Parameter[B]) GradFrom(grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	return grads[p.tensor.Raw()]
}

// Load copies src into the parameter after checking shape and dtype.
func (p *Parameter[B]) Load(src *tensor.RawTensor) error {
	if err := p.Check(src); err != nil {
		return err
	}
	p.tensor.Raw().CopyFrom(src)
	return nil
}

// Check reports whether src could be loaded into p.
func (p *Parameter[B]) Check(src *tensor.RawTensor) error {
	if src.DType() != tensor.Float32 {
		return fmt.Errorf("%s: dtype mismatch: expected float32, got %v", p.name, src.DType())
	}
	if !src.Shape().Equal(p.tensor.Shape()) {
		return fmt.Errorf("%s: shape mismatch: expected %v, got %v", p.name, p.tensor.Shape(), src.Shape())
	}
	return nil
}

// Prefixed returns parameters renamed under prefix, sharing tensors.
func Prefixed[B tensor.Backend](prefix string, params []*Parameter[B]) []*Parameter[B] {
	out := make([]*Parameter[B], len(params))
	for i, p := range params {
		out[i] = NewParameter(prefix+"."+p.name, p.tensor)
	}
	return out
}
