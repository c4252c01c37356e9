package optim

import (
	"math"
	"testing"

	"github.com/cognito-lm/cognito/internal/backend/cpu"
	"github.com/cognito-lm/cognito/internal/nn"
	"github.com/cognito-lm/cognito/internal/tensor"
)

func gradFor(p *nn.Parameter[*cpu.CPUBackend], values ...float32) map[*tensor.RawTensor]*tensor.RawTensor {
	g := tensor.MustRaw(p.Tensor().Shape(), tensor.Float32, tensor.CPU)
	copy(g.AsFloat32(), values)
	return map[*tensor.RawTensor]*tensor.RawTensor{p.Tensor().Raw(): g}
}

func TestAdamWFirstStep(t *testing.T) {
	backend := cpu.New()
	w, _ := tensor.FromSlice([]float32{1, -1}, tensor.Shape{2}, backend)
	p := nn.NewParameter("w", w)

	opt := NewAdamW([]*nn.Parameter[*cpu.CPUBackend]{p}, AdamWConfig{LR: 0.1, Eps: 1e-8})
	opt.Step(gradFor(p, 0.5, -2))

	// The first bias-corrected step moves each weight by lr·sign(g).
	got := p.Tensor().Data()
	if math.Abs(float64(got[0]-0.9)) > 1e-5 || math.Abs(float64(got[1]+0.9)) > 1e-5 {
		t.Errorf("after one step got %v, want [0.9 -0.9]", got)
	}
	if opt.Timestep() != 1 {
		t.Errorf("Timestep = %d", opt.Timestep())
	}
}

func TestAdamWWeightDecay(t *testing.T) {
	backend := cpu.New()
	w, _ := tensor.FromSlice([]float32{2}, tensor.Shape{1}, backend)
	p := nn.NewParameter("w", w)

	opt := NewAdamW([]*nn.Parameter[*cpu.CPUBackend]{p}, AdamWConfig{LR: 0.1, WeightDecay: 0.5})
	opt.Step(gradFor(p, 0))

	if got := p.Tensor().Data()[0]; math.Abs(float64(got)-1.9) > 1e-5 {
		t.Errorf("decayed weight = %v, want 1.9", got)
	}
}

func TestAdamWSkipsMissingGradients(t *testing.T) {
	backend := cpu.New()
	p := nn.NewParameter("w", tensor.Ones[float32](tensor.Shape{3}, backend))
	opt := NewAdamW([]*nn.Parameter[*cpu.CPUBackend]{p}, DefaultAdamWConfig())

	opt.Step(map[*tensor.RawTensor]*tensor.RawTensor{})
	for _, v := range p.Tensor().Data() {
		if v != 1 {
			t.Fatalf("parameter changed without a gradient: %v", p.Tensor().Data())
		}
	}
}

func TestAdamWStateDictRoundTrip(t *testing.T) {
	backend := cpu.New()
	p := nn.NewParameter("w", tensor.Ones[float32](tensor.Shape{2}, backend))
	opt := NewAdamW([]*nn.Parameter[*cpu.CPUBackend]{p}, DefaultAdamWConfig())
	opt.Step(gradFor(p, 1, 2))
	opt.Step(gradFor(p, 1, 2))

	q := nn.NewParameter("w", tensor.Ones[float32](tensor.Shape{2}, backend))
	restored := NewAdamW([]*nn.Parameter[*cpu.CPUBackend]{q}, DefaultAdamWConfig())
	if err := restored.LoadStateDict(opt.StateDict()); err != nil {
		t.Fatal(err)
	}
	if restored.Timestep() != 2 {
		t.Errorf("restored timestep = %d, want 2", restored.Timestep())
	}

	copy(q.Tensor().Data(), p.Tensor().Data())
	opt.Step(gradFor(p, 3, 4))
	restored.Step(gradFor(q, 3, 4))
	for i := range p.Tensor().Data() {
		if p.Tensor().Data()[i] != q.Tensor().Data()[i] {
			t.Fatalf("restored optimizer diverged: %v vs %v", p.Tensor().Data(), q.Tensor().Data())
		}
	}

	if err := restored.LoadStateDict(map[string]*tensor.RawTensor{}); err == nil {
		t.Error("expected error for missing step")
	}
}
