package tensor

// Backend is the compute contract every tensor operation is dispatched to.
// Shape errors are programmer errors and panic.
type Backend interface {
	// Element-wise binary operations with NumPy broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// MatMul multiplies 2-D matrices: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	// BatchMatMul multiplies along the last two dims of 3-D or 4-D tensors
	// with equal leading dims: [..., M, K] @ [..., K, N] -> [..., M, N].
	BatchMatMul(a, b *RawTensor) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor
	Expand(t *RawTensor, shape Shape) *RawTensor

	// Scalar operations.
	MulScalar(x *RawTensor, s float32) *RawTensor
	AddScalar(x *RawTensor, s float32) *RawTensor

	// Element-wise math.
	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor
	Sqrt(x *RawTensor) *RawTensor
	Rsqrt(x *RawTensor) *RawTensor
	GELU(x *RawTensor) *RawTensor

	// Softmax along dim (only the last dim is supported).
	Softmax(x *RawTensor, dim int) *RawTensor

	// Reductions.
	Sum(x *RawTensor) *RawTensor
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	Argmax(x *RawTensor, dim int) *RawTensor

	// Embedding gathers rows of weight [V, D] by int32 indices of any shape,
	// returning [indices..., D].
	Embedding(weight, indices *RawTensor) *RawTensor

	// MaskedFill returns x with value written where the bool mask is true.
	// The mask broadcasts to x.
	MaskedFill(x, mask *RawTensor, value float32) *RawTensor

	// Not is element-wise logical negation of a bool tensor.
	Not(x *RawTensor) *RawTensor

	// CrossEntropy returns the scalar mean negative log-likelihood of
	// targets [N] under logits [N, C], skipping rows whose target equals
	// ignoreIndex. With no counted rows the result is 0.
	CrossEntropy(logits, targets *RawTensor, ignoreIndex int32) *RawTensor

	Name() string
	Device() Device
}
