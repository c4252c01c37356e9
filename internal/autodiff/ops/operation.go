// Package ops holds the differentiable operations recorded on a gradient
// tape. Each operation keeps the tensors its backward pass needs and maps
// the gradient of its output to gradients of its differentiable inputs.
package ops

import "github.com/cognito-lm/cognito/internal/tensor"

// Operation is one recorded step of the forward pass.
type Operation interface {
	// Backward returns one gradient per tensor in Inputs, in order.
	// A nil entry means no gradient flows to that input.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the differentiable inputs. Integer and bool operands
	// (token ids, masks) are never listed.
	Inputs() []*tensor.RawTensor

	// Output returns the tensor the operation produced.
	Output() *tensor.RawTensor
}

// node carries the bookkeeping shared by every operation.
type node struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

func newNode(output *tensor.RawTensor, inputs ...*tensor.RawTensor) node {
	return node{inputs: inputs, output: output}
}

// Inputs returns the differentiable inputs.
func (n node) Inputs() []*tensor.RawTensor { return n.inputs }

// Output returns the produced tensor.
func (n node) Output() *tensor.RawTensor { return n.output }

func grads(gs ...*tensor.RawTensor) []*tensor.RawTensor { return gs }
