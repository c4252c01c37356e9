package tensor

import "testing"

func TestDataTypeSize(t *testing.T) {
	tests := []struct {
		dtype DataType
		size  int
	}{
		{Float32, 4},
		{Int32, 4},
		{Bool, 1},
	}

	for _, tt := range tests {
		if got := tt.dtype.Size(); got != tt.size {
			t.Errorf("%s.Size() = %d, want %d", tt.dtype, got, tt.size)
		}
		parsed, ok := ParseDataType(tt.dtype.String())
		if !ok || parsed != tt.dtype {
			t.Errorf("ParseDataType(%q) = %v, %v", tt.dtype.String(), parsed, ok)
		}
	}
}

func TestShapeStrides(t *testing.T) {
	got := Shape{2, 3, 4}.Strides()
	want := []int{12, 4, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Strides() = %v, want %v", got, want)
		}
	}
	if n := (Shape{}).NumElements(); n != 1 {
		t.Errorf("scalar NumElements() = %d, want 1", n)
	}
}

func TestShapeValidate(t *testing.T) {
	if err := (Shape{2, 0}).Validate(); err == nil {
		t.Error("expected error for zero dimension")
	}
	if err := (Shape{2, 3}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b    Shape
		want    Shape
		wantErr bool
	}{
		{Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, false},
		{Shape{4, 1, 5}, Shape{3, 1}, Shape{4, 3, 5}, false},
		{Shape{5}, Shape{2, 3, 5}, Shape{2, 3, 5}, false},
		{Shape{3, 4}, Shape{3, 5}, nil, true},
	}

	for _, tt := range tests {
		got, err := BroadcastShapes(tt.a, tt.b)
		if tt.wantErr {
			if err == nil {
				t.Errorf("BroadcastShapes(%v, %v) expected error", tt.a, tt.b)
			}
			continue
		}
		if err != nil {
			t.Errorf("BroadcastShapes(%v, %v) error: %v", tt.a, tt.b, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("BroadcastShapes(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestRawViewAndClone(t *testing.T) {
	r := MustRaw(Shape{2, 3}, Float32, CPU)
	r.AsFloat32()[4] = 7

	v := r.View(Shape{6})
	if v.AsFloat32()[4] != 7 {
		t.Error("view should share storage")
	}

	c := r.Clone()
	c.AsFloat32()[4] = 1
	if r.AsFloat32()[4] != 7 {
		t.Error("clone should not share storage")
	}
}
