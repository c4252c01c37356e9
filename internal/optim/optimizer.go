// Package optim implements the optimizer used to train the model.
//
//	opt := optim.NewAdamW(model.Parameters(), optim.DefaultAdamWConfig())
//
//	model.Exclusive(true, func(forward model.ForwardFunc[B]) error {
//		backend.Tape().StartRecording()
//		defer backend.Tape().Clear()
//		loss := ...
//		opt.Step(autodiff.Backward(loss, backend))
//		return nil
//	})
package optim

import "github.com/cognito-lm/cognito/internal/tensor"

// Optimizer updates parameters from a gradient map produced by
// autodiff.Backward.
type Optimizer interface {
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)
	GetLR() float32
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(state map[string]*tensor.RawTensor) error
}
