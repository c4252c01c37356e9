package nn

import (
	"math"
	"testing"

	"github.com/cognito-lm/cognito/internal/backend/cpu"
	"github.com/cognito-lm/cognito/internal/tensor"
)

func TestLinearShape(t *testing.T) {
	backend := cpu.New()
	layer := NewLinear(4, 6, backend)

	x := tensor.Ones[float32](tensor.Shape{2, 3, 4}, backend)
	y := layer.Forward(x)
	if !y.Shape().Equal(tensor.Shape{2, 3, 6}) {
		t.Fatalf("shape = %v, want [2 3 6]", y.Shape())
	}
	if len(layer.Parameters()) != 2 {
		t.Errorf("expected weight and bias")
	}
}

func TestLinearKnownValues(t *testing.T) {
	backend := cpu.New()
	layer := NewLinear(2, 1, backend)
	copy(layer.Weight().Tensor().Data(), []float32{2, 3})
	layer.Bias().Tensor().Data()[0] = 1

	x, _ := tensor.FromSlice([]float32{1, 1, 2, 0}, tensor.Shape{2, 2}, backend)
	got := layer.Forward(x).Data()
	if got[0] != 6 || got[1] != 5 {
		t.Errorf("got %v, want [6 5]", got)
	}
}

func TestRMSNorm(t *testing.T) {
	backend := cpu.New()
	norm := NewRMSNorm(4, 1e-5, backend)

	x, _ := tensor.FromSlice([]float32{2, 2, 2, 2}, tensor.Shape{1, 4}, backend)
	for _, v := range norm.Forward(x).Data() {
		if math.Abs(float64(v)-1) > 1e-4 {
			t.Fatalf("normalized value %v, want 1", v)
		}
	}
}

func TestDropoutModes(t *testing.T) {
	backend := cpu.New()
	Seed(7)
	d := NewDropout(0.5, backend)
	x := tensor.Ones[float32](tensor.Shape{1000}, backend)

	zeros := 0
	for _, v := range d.Forward(x).Data() {
		switch v {
		case 0:
			zeros++
		case 2:
		default:
			t.Fatalf("unexpected value %v, want 0 or 2", v)
		}
	}
	if zeros < 350 || zeros > 650 {
		t.Errorf("dropped %d of 1000 at p=0.5", zeros)
	}

	d.SetTraining(false)
	if d.Forward(x) != x {
		t.Error("inference dropout should be the identity")
	}
}

func TestCausalMask(t *testing.T) {
	backend := cpu.New()
	mask := CausalMask(2, 3, backend)
	if !mask.Shape().Equal(tensor.Shape{2, 3, 3}) {
		t.Fatalf("shape = %v", mask.Shape())
	}
	for b := 0; b < 2; b++ {
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				if mask.At(b, i, j) != (j <= i) {
					t.Errorf("mask[%d,%d,%d] = %v", b, i, j, mask.At(b, i, j))
				}
			}
		}
	}
}

func TestAttentionIsCausal(t *testing.T) {
	backend := cpu.New()
	Seed(1)
	mha := NewMultiHeadAttention(8, 2, 0, backend)
	mask := CausalMask(1, 4, backend)

	x := Normal(0, 1, tensor.Shape{1, 4, 8}, backend)
	before := mha.Forward(x, mask).Clone()

	// Perturb only the last position.
	for d := 0; d < 8; d++ {
		x.Set(x.At(0, 3, d)+5, 0, 3, d)
	}
	after := mha.Forward(x, mask)

	for i := 0; i < 3; i++ {
		for d := 0; d < 8; d++ {
			if math.Abs(float64(before.At(0, i, d)-after.At(0, i, d))) > 1e-5 {
				t.Fatalf("position %d changed after editing a later position", i)
			}
		}
	}
	changed := false
	for d := 0; d < 8; d++ {
		if before.At(0, 3, d) != after.At(0, 3, d) {
			changed = true
		}
	}
	if !changed {
		t.Error("last position should depend on its own input")
	}
}

func TestFFNShape(t *testing.T) {
	backend := cpu.New()
	ffn := NewFFN(4, 16, backend)
	y := ffn.Forward(tensor.Ones[float32](tensor.Shape{2, 5, 4}, backend))
	if !y.Shape().Equal(tensor.Shape{2, 5, 4}) {
		t.Errorf("shape = %v", y.Shape())
	}
	if n := len(ffn.Parameters()); n != 4 {
		t.Errorf("parameters = %d, want 4", n)
	}
	if ffn.Parameters()[0].Name() != "up.weight" {
		t.Errorf("first parameter = %q", ffn.Parameters()[0].Name())
	}
}

func TestCrossEntropyLossIgnoresPad(t *testing.T) {
	backend := cpu.New()
	loss := NewCrossEntropyLoss(0, backend)

	logits := tensor.Zeros[float32](tensor.Shape{1, 2, 4}, backend)
	targets, _ := tensor.FromSlice([]int32{3, 0}, tensor.Shape{1, 2}, backend)
	got := loss.Forward(logits, targets).Item()
	if math.Abs(float64(got)-math.Log(4)) > 1e-5 {
		t.Errorf("loss = %v, want ln 4", got)
	}

	allPad, _ := tensor.FromSlice([]int32{0, 0}, tensor.Shape{1, 2}, backend)
	if got := loss.Forward(logits, allPad).Item(); got != 0 {
		t.Errorf("all-pad loss = %v, want 0", got)
	}
}

func TestParameterLoad(t *testing.T) {
	backend := cpu.New()
	p := NewParameter("w", tensor.Zeros[float32](tensor.Shape{2}, backend))

	src := tensor.MustRaw(tensor.Shape{2}, tensor.Float32, tensor.CPU)
	copy(src.AsFloat32(), []float32{1, 2})
	if err := p.Load(src); err != nil {
		t.Fatal(err)
	}
	if p.Tensor().Data()[1] != 2 {
		t.Error("Load did not copy data")
	}
	if err := p.Load(tensor.MustRaw(tensor.Shape{3}, tensor.Float32, tensor.CPU)); err == nil {
		t.Error("expected shape mismatch error")
	}
}
