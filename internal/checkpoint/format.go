// Package checkpoint persists trained model state.
//
// A checkpoint file (<name>.ckpt) is laid out as
//
//	magic "CGTO" | version u32 | header length u64 | JSON header
//	| tensor data | xxhash64(header ‖ data) u64
//
// All integers are little-endian. Tensor data is stored contiguously in
// header table order; the table records each tensor's offset, byte size,
// dtype and shape.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/cognito-lm/cognito/internal/model"
	"github.com/cognito-lm/cognito/internal/tensor"
)

// Format constants.
const (
	MagicBytes    = "CGTO"
	FormatVersion = 1
	FileExt       = ".ckpt"

	fixedHeaderSize = 4 + 4 + 8
	checksumSize    = 8
	maxHeaderSize   = 64 << 20
)

const (
	modelPrefix = "model."
	optimPrefix = "optim."
)

// Checkpoint is a complete training snapshot.
type Checkpoint struct {
	Config    model.Config
	Epoch     int
	Step      int64
	Loss      float64
	CreatedAt time.Time
	Model     map[string]*tensor.RawTensor
	Optimizer map[string]*tensor.RawTensor
	Metadata  map[string]string
}

// Header is the JSON header of a checkpoint file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	CreatedAt     time.Time         `json:"created_at"`
	Config        model.Config      `json:"config"`
	Epoch         int               `json:"epoch"`
	Step          int64             `json:"step"`
	Loss          Loss              `json:"loss"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// TensorMeta describes one tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
}

// Loss is a loss value that survives JSON even when training diverged:
// finite values are numbers, NaN and the infinities are the strings
// "NaN", "+Inf" and "-Inf".
type Loss float64

// MarshalJSON implements json.Marshaler.
func (l Loss) MarshalJSON() ([]byte, error) {
	v := float64(l)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(v)
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Loss) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		switch s {
		case "NaN":
			*l = Loss(math.NaN())
		case "+Inf":
			*l = Loss(math.Inf(1))
		case "-Inf":
			*l = Loss(math.Inf(-1))
		default:
			return fmt.Errorf("invalid loss %q", s)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*l = Loss(v)
	return nil
}
