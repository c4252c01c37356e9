package tensor

import "fmt"

// Shape holds the dimensions of a tensor, outermost first.
type Shape []int

// NumElements returns the product of all dimensions. A scalar has one element.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate reports the first non-positive dimension.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal reports whether both shapes have identical dimensions.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	return append(Shape(nil), s...)
}

// Strides returns row-major strides: stride[i] is the product of dims after i.
func (s Shape) Strides() []int {
	strides := make([]int, len(s))
	acc := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= s[i]
	}
	return strides
}

// BroadcastShapes applies NumPy broadcasting rules right to left and returns
// the result shape. Missing leading dimensions count as 1.
//
//	(3, 1) + (3, 5) -> (3, 5)
//	(4, 1, 5) + (3, 1) -> (4, 3, 5)
//	(3, 4) + (3, 5) -> error
func BroadcastShapes(a, b Shape) (Shape, error) {
	n := max(len(a), len(b))
	out := make(Shape, n)
	for i := 0; i < n; i++ {
		ad, bd := 1, 1
		if j := len(a) - 1 - i; j >= 0 {
			ad = a[j]
		}
		if j := len(b) - 1 - i; j >= 0 {
			bd = b[j]
		}
		switch {
		case ad == bd, bd == 1:
			out[n-1-i] = ad
		case ad == 1:
			out[n-1-i] = bd
		default:
			return nil, fmt.Errorf("shapes not compatible for broadcasting: %v vs %v (dimension %d: %d vs %d)",
				a, b, n-1-i, ad, bd)
		}
	}
	return out, nil
}
