package autodiff

import (
	"github.com/cognito-lm/cognito/internal/autodiff/ops"
	"github.com/cognito-lm/cognito/internal/tensor"
)

// GradientTape records operations during the forward pass and replays them
// in reverse to compute gradients.
//
//	tape := NewGradientTape()
//	tape.StartRecording()
//	// ... forward pass ...
//	gradients := tape.Backward(outputGrad, backend)
type GradientTape struct {
	operations []ops.Operation
	recording  bool
}

// NewGradientTape creates an idle tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{operations: make([]ops.Operation, 0, 256)}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() { t.recording = true }

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() { t.recording = false }

// IsRecording reports whether operations are being recorded.
func (t *GradientTape) IsRecording() bool { return t.recording }

// Record appends op if the tape is recording.
func (t *GradientTape) Record(op ops.Operation) {
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// Clear drops all recorded operations. Recording state is unchanged.
func (t *GradientTape) Clear() {
	clear(t.operations)
	t.operations = t.operations[:0]
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int { return len(t.operations) }

// Backward seeds the last recorded output with outputGrad and walks the
// tape backwards, accumulating gradients for tensors used more than once.
// The returned map is keyed by the tensors seen during the forward pass.
func (t *GradientTape) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := make(map[*tensor.RawTensor]*tensor.RawTensor)
	if len(t.operations) == 0 {
		return grads
	}

	wasRecording := t.recording
	t.recording = false
	defer func() { t.recording = wasRecording }()

	grads[t.operations[len(t.operations)-1].Output()] = outputGrad
	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		g, ok := grads[op.Output()]
		if !ok {
			continue
		}
		for j, inGrad := range op.Backward(g, backend) {
			if inGrad == nil {
				continue
			}
			input := op.Inputs()[j]
			if existing, ok := grads[input]; ok {
				grads[input] = backend.Add(existing, inGrad)
			} else {
				grads[input] = inGrad
			}
		}
	}
	return grads
}
