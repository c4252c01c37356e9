package autodiff

import (
	"fmt"

	"github.com/cognito-lm/cognito/internal/tensor"
)

// BackwardCapable is a backend that exposes a gradient tape.
type BackwardCapable interface {
	tensor.Backend
	GetTape() *GradientTape
}

// GetTape returns the gradient tape.
func (b *AutodiffBackend[B]) GetTape() *GradientTape {
	return b.tape
}

// Backward differentiates t, which must be the last recorded result, with a
// seed gradient of ones.
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	y := x.Mul(x)
//	gradients := autodiff.Backward(y.Sum(), backend)
//	dx := gradients[x.Raw()]
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.GetTape()
	if tape.NumOps() == 0 {
		panic("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")
	}
	if t.DType() != tensor.Float32 {
		panic(fmt.Sprintf("backward: unsupported dtype %s", t.DType()))
	}

	seed := tensor.MustRaw(t.Shape(), tensor.Float32, backend.Device())
	for i := range seed.AsFloat32() {
		seed.AsFloat32()[i] = 1
	}
	return tape.Backward(seed, backend)
}
