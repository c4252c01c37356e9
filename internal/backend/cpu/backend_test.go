package cpu

import (
	"math"
	"testing"

	"github.com/cognito-lm/cognito/internal/tensor"
)

func float32SliceEqual(a, b []float32) bool {
	const epsilon = 1e-5
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(float64(a[i]-b[i])) > epsilon {
			return false
		}
	}
	return true
}

func raw(t *testing.T, data []float32, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(tensor.Shape(shape), tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatal(err)
	}
	copy(r.AsFloat32(), data)
	return r
}

func TestCPUBackend_New(t *testing.T) {
	backend := New()
	if backend.Name() != "CPU" {
		t.Errorf("Expected name 'CPU', got '%s'", backend.Name())
	}
	if backend.Device() != tensor.CPU {
		t.Errorf("Expected CPU device, got %v", backend.Device())
	}
}

func TestAddBroadcast(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	bias := raw(t, []float32{10, 20, 30}, 3)
	col := raw(t, []float32{100, 200}, 2, 1)

	got := b.Add(a, bias).AsFloat32()
	if !float32SliceEqual(got, []float32{11, 22, 33, 14, 25, 36}) {
		t.Errorf("row broadcast: got %v", got)
	}
	got = b.Add(a, col).AsFloat32()
	if !float32SliceEqual(got, []float32{101, 102, 103, 204, 205, 206}) {
		t.Errorf("column broadcast: got %v", got)
	}
	got = b.Mul(a, raw(t, []float32{2}, 1)).AsFloat32()
	if !float32SliceEqual(got, []float32{2, 4, 6, 8, 10, 12}) {
		t.Errorf("scalar broadcast: got %v", got)
	}
}

func TestMatMul(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	m := raw(t, []float32{7, 8, 9, 10, 11, 12}, 3, 2)

	got := b.MatMul(a, m)
	if !got.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("shape = %v", got.Shape())
	}
	if !float32SliceEqual(got.AsFloat32(), []float32{58, 64, 139, 154}) {
		t.Errorf("got %v", got.AsFloat32())
	}
}

func TestBatchMatMul(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, 0, 0, 1, 2, 0, 0, 2}, 2, 2, 2)
	m := raw(t, []float32{1, 2, 3, 4, 1, 2, 3, 4}, 2, 2, 2)

	got := b.BatchMatMul(a, m).AsFloat32()
	if !float32SliceEqual(got, []float32{1, 2, 3, 4, 2, 4, 6, 8}) {
		t.Errorf("got %v", got)
	}
}

func TestTranspose(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)

	got := b.Transpose(a)
	if !got.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("shape = %v", got.Shape())
	}
	if !float32SliceEqual(got.AsFloat32(), []float32{1, 4, 2, 5, 3, 6}) {
		t.Errorf("got %v", got.AsFloat32())
	}

	x := raw(t, []float32{0, 1, 2, 3, 4, 5, 6, 7}, 2, 2, 2)
	got = b.Transpose(x, 1, 0, 2)
	if !float32SliceEqual(got.AsFloat32(), []float32{0, 1, 4, 5, 2, 3, 6, 7}) {
		t.Errorf("3D permute: got %v", got.AsFloat32())
	}
}

func TestSoftmax(t *testing.T) {
	b := New()
	inf := float32(math.Inf(-1))
	x := raw(t, []float32{1, 2, 3, 0, inf, inf}, 2, 3)

	got := b.Softmax(x, 1).AsFloat32()
	var sum float32
	for _, v := range got[:3] {
		sum += v
	}
	if math.Abs(float64(sum-1)) > 1e-5 {
		t.Errorf("row sum = %v", sum)
	}
	if !float32SliceEqual(got[3:], []float32{1, 0, 0}) {
		t.Errorf("masked row = %v", got[3:])
	}
}

func TestReduceDims(t *testing.T) {
	b := New()
	x := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)

	if got := b.SumDim(x, 0, false); !float32SliceEqual(got.AsFloat32(), []float32{5, 7, 9}) {
		t.Errorf("SumDim(0) = %v", got.AsFloat32())
	}
	got := b.MeanDim(x, 1, true)
	if !got.Shape().Equal(tensor.Shape{2, 1}) || !float32SliceEqual(got.AsFloat32(), []float32{2, 5}) {
		t.Errorf("MeanDim(1) = %v %v", got.Shape(), got.AsFloat32())
	}
	if s := b.Sum(x).AsFloat32()[0]; s != 21 {
		t.Errorf("Sum = %v", s)
	}
	idx := b.Argmax(raw(t, []float32{1, 9, 9, 7, 0, 3}, 2, 3), 1).AsInt32()
	if idx[0] != 1 || idx[1] != 0 {
		t.Errorf("Argmax = %v", idx)
	}
}

func TestEmbeddingAndMaskedFill(t *testing.T) {
	b := New()
	w := raw(t, []float32{0, 0, 1, 1, 2, 2}, 3, 2)
	ids, _ := tensor.NewRaw(tensor.Shape{1, 2}, tensor.Int32, tensor.CPU)
	copy(ids.AsInt32(), []int32{2, 0})

	emb := b.Embedding(w, ids)
	if !emb.Shape().Equal(tensor.Shape{1, 2, 2}) || !float32SliceEqual(emb.AsFloat32(), []float32{2, 2, 0, 0}) {
		t.Errorf("Embedding = %v %v", emb.Shape(), emb.AsFloat32())
	}

	mask, _ := tensor.NewRaw(tensor.Shape{2}, tensor.Bool, tensor.CPU)
	mask.AsBool()[1] = true
	filled := b.MaskedFill(raw(t, []float32{1, 2, 3, 4}, 2, 2), mask, -1)
	if !float32SliceEqual(filled.AsFloat32(), []float32{1, -1, 3, -1}) {
		t.Errorf("MaskedFill = %v", filled.AsFloat32())
	}
}

func TestCrossEntropyIgnoresPad(t *testing.T) {
	b := New()
	logits := raw(t, []float32{0, 0, 0, 0, 5, 1, 1, 1}, 2, 4)
	targets, _ := tensor.NewRaw(tensor.Shape{2}, tensor.Int32, tensor.CPU)
	copy(targets.AsInt32(), []int32{2, 0})

	loss := b.CrossEntropy(logits, targets, 0).AsFloat32()[0]
	if math.Abs(float64(loss)-math.Log(4)) > 1e-5 {
		t.Errorf("loss = %v, want ln 4", loss)
	}

	copy(targets.AsInt32(), []int32{0, 0})
	if loss := b.CrossEntropy(logits, targets, 0).AsFloat32()[0]; loss != 0 {
		t.Errorf("all-ignored loss = %v, want 0", loss)
	}
}
