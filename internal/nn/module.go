// Package nn implements the neural network layers the cognito model is
// built from: Linear, Embedding, RMSNorm, Dropout, causal multi-head
// attention and the GELU feed-forward network.
//
// Layers are generic over the backend so the same model runs under the
// plain CPU backend for inference and under autodiff for training.
package nn

import "github.com/cognito-lm/cognito/internal/tensor"

// Module is a layer with float32 input and output and trainable parameters.
type Module[B tensor.Backend] interface {
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
	Parameters() []*Parameter[B]
}

// Trainable is implemented by layers whose behaviour differs between
// training and inference.
type Trainable interface {
	SetTraining(training bool)
}
