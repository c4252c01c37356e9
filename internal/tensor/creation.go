package tensor

// Zeros creates a zero-filled tensor.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	return New[T, B](MustRaw(shape, inferDataType(dummy), b.Device()), b)
}

// Ones creates a tensor filled with ones (true for bool).
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var one T
	switch p := any(&one).(type) {
	case *float32:
		*p = 1
	case *int32:
		*p = 1
	case *bool:
		*p = true
	}
	return Full[T, B](shape, one, b)
}

// Full creates a tensor filled with value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Arange returns the int32 sequence [start, end).
func Arange[B Backend](start, end int32, b B) *Tensor[int32, B] {
	t := Zeros[int32, B](Shape{int(end - start)}, b)
	data := t.Data()
	for i := range data {
		data[i] = start + int32(i)
	}
	return t
}

// Tril returns an n×n bool matrix that is true on and below the diagonal.
func Tril[B Backend](n int, b B) *Tensor[bool, B] {
	t := Zeros[bool, B](Shape{n, n}, b)
	data := t.Data()
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			data[i*n+j] = true
		}
	}
	return t
}
