package tensor

import "fmt"

// Device represents the compute device for tensor operations.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
)

// String returns a human-readable device name.
func (d Device) String() string {
	if d == CPU {
		return "CPU"
	}
	return "Unknown"
}

// RawTensor is the untyped, backend-facing tensor representation.
// Storage is contiguous and row-major; exactly one of the typed slices is set.
type RawTensor struct {
	shape  Shape
	dtype  DataType
	device Device

	f32 []float32
	i32 []int32
	b   []bool
}

// NewRaw allocates a zero-filled RawTensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	r := &RawTensor{shape: shape.Clone(), dtype: dtype, device: device}
	n := shape.NumElements()
	switch dtype {
	case Float32:
		r.f32 = make([]float32, n)
	case Int32:
		r.i32 = make([]int32, n)
	case Bool:
		r.b = make([]bool, n)
	default:
		return nil, fmt.Errorf("unsupported dtype %d", dtype)
	}
	return r, nil
}

// MustRaw is NewRaw for shapes already known to be valid.
func MustRaw(shape Shape, dtype DataType, device Device) *RawTensor {
	r, err := NewRaw(shape, dtype, device)
	if err != nil {
		panic(err)
	}
	return r
}

// Shape returns the tensor's shape. Callers must not modify it.
func (r *RawTensor) Shape() Shape { return r.shape }

// DType returns the element type.
func (r *RawTensor) DType() DataType { return r.dtype }

// Device returns the compute device.
func (r *RawTensor) Device() Device { return r.device }

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int { return r.shape.NumElements() }

// ByteSize returns the serialized size in bytes.
func (r *RawTensor) ByteSize() int { return r.NumElements() * r.dtype.Size() }

// AsFloat32 returns the backing storage. Panics if the dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	return r.f32
}

// AsInt32 returns the backing storage. Panics if the dtype is not Int32.
func (r *RawTensor) AsInt32() []int32 {
	if r.dtype != Int32 {
		panic(fmt.Sprintf("tensor dtype is %s, not int32", r.dtype))
	}
	return r.i32
}

// AsBool returns the backing storage. Panics if the dtype is not Bool.
func (r *RawTensor) AsBool() []bool {
	if r.dtype != Bool {
		panic(fmt.Sprintf("tensor dtype is %s, not bool", r.dtype))
	}
	return r.b
}

// View returns a tensor sharing storage with r under a new shape.
// The element count must match.
func (r *RawTensor) View(shape Shape) *RawTensor {
	if shape.NumElements() != r.NumElements() {
		panic(fmt.Sprintf("view: cannot view %v as %v", r.shape, shape))
	}
	return &RawTensor{shape: shape.Clone(), dtype: r.dtype, device: r.device, f32: r.f32, i32: r.i32, b: r.b}
}

// Clone returns a deep copy.
func (r *RawTensor) Clone() *RawTensor {
	c := &RawTensor{shape: r.shape.Clone(), dtype: r.dtype, device: r.device}
	switch r.dtype {
	case Float32:
		c.f32 = append([]float32(nil), r.f32...)
	case Int32:
		c.i32 = append([]int32(nil), r.i32...)
	case Bool:
		c.b = append([]bool(nil), r.b...)
	}
	return c
}

// CopyFrom overwrites r's elements with src's. Shapes must have the same
// element count and dtypes must match.
func (r *RawTensor) CopyFrom(src *RawTensor) {
	if r.dtype != src.dtype || r.NumElements() != src.NumElements() {
		panic(fmt.Sprintf("copy: incompatible tensors %s%v <- %s%v", r.dtype, r.shape, src.dtype, src.shape))
	}
	switch r.dtype {
	case Float32:
		copy(r.f32, src.f32)
	case Int32:
		copy(r.i32, src.i32)
	case Bool:
		copy(r.b, src.b)
	}
}
