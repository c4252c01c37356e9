// Package tensor provides the tensor types and backend contract used by the
// cognito model, trainer and generation engine.
package tensor

// DType is a constraint for supported tensor element types.
type DType interface {
	~float32 | ~int32 | ~bool
}

// DataType is runtime type information for tensors.
type DataType int

// Supported data types.
const (
	Float32 DataType = iota
	Int32
	Bool
)

// Size returns the byte size of one element when serialized.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Bool:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Int32:
		return "int32"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// ParseDataType is the inverse of DataType.String.
func ParseDataType(s string) (DataType, bool) {
	switch s {
	case "float32":
		return Float32, true
	case "int32":
		return Int32, true
	case "bool":
		return Bool, true
	default:
		return 0, false
	}
}

func inferDataType[T DType](dummy T) DataType {
	switch any(dummy).(type) {
	case float32:
		return Float32
	case int32:
		return Int32
	case bool:
		return Bool
	default:
		panic("unsupported type")
	}
}
