package checkpoint

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/cognito-lm/cognito/internal/tensor"
)

// Encode writes ckpt to w.
func Encode(w io.Writer, ckpt *Checkpoint) error {
	named := make(map[string]*tensor.RawTensor, len(ckpt.Model)+len(ckpt.Optimizer))
	for k, v := range ckpt.Model {
		named[modelPrefix+k] = v
	}
	for k, v := range ckpt.Optimizer {
		named[optimPrefix+k] = v
	}
	names := make([]string, 0, len(named))
	for name := range named {
		names = append(names, name)
	}
	sort.Strings(names)

	header := Header{
		FormatVersion: FormatVersion,
		CreatedAt:     ckpt.CreatedAt,
		Config:        ckpt.Config,
		Epoch:         ckpt.Epoch,
		Step:          ckpt.Step,
		Loss:          Loss(ckpt.Loss),
		Metadata:      ckpt.Metadata,
		Tensors:       make([]TensorMeta, 0, len(names)),
	}
	var offset int64
	for _, name := range names {
		raw := named[name]
		size := int64(raw.ByteSize())
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  raw.DType().String(),
			Shape:  []int(raw.Shape()),
			Offset: offset,
			Size:   size,
		})
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	h := xxhash.New()
	body := io.MultiWriter(w, h)

	fixed := make([]byte, fixedHeaderSize)
	copy(fixed, MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:], FormatVersion)
	binary.LittleEndian.PutUint64(fixed[8:], uint64(len(headerJSON)))
	if _, err := w.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := body.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, name := range names {
		if _, err := body.Write(encodeTensor(named[name])); err != nil {
			return fmt.Errorf("failed to write tensor %q: %w", name, err)
		}
	}

	sum := make([]byte, checksumSize)
	binary.LittleEndian.PutUint64(sum, h.Sum64())
	if _, err := w.Write(sum); err != nil {
		return fmt.Errorf("failed to write checksum: %w", err)
	}
	return nil
}

func encodeTensor(raw *tensor.RawTensor) []byte {
	buf := make([]byte, raw.ByteSize())
	switch raw.DType() {
	case tensor.Float32:
		for i, v := range raw.AsFloat32() {
			binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
		}
	case tensor.Int32:
		for i, v := range raw.AsInt32() {
			binary.LittleEndian.PutUint32(buf[4*i:], uint32(v))
		}
	case tensor.Bool:
		for i, v := range raw.AsBool() {
			if v {
				buf[i] = 1
			}
		}
	}
	return buf
}

// Decode parses a complete checkpoint file image.
func Decode(data []byte) (*Checkpoint, error) {
	if len(data) < fixedHeaderSize+checksumSize {
		return nil, ErrTruncated
	}
	if string(data[:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(data[4:]); v != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	headerLen := binary.LittleEndian.Uint64(data[8:])
	if headerLen > maxHeaderSize || uint64(len(data)) < fixedHeaderSize+headerLen+checksumSize {
		return nil, ErrTruncated
	}

	body := data[fixedHeaderSize : len(data)-checksumSize]
	want := binary.LittleEndian.Uint64(data[len(data)-checksumSize:])
	if xxhash.Sum64(body) != want {
		return nil, ErrChecksumMismatch
	}

	var header Header
	dec := json.NewDecoder(bytes.NewReader(body[:headerLen]))
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	tensorData := body[headerLen:]

	ckpt := &Checkpoint{
		Config:    header.Config,
		Epoch:     header.Epoch,
		Step:      header.Step,
		Loss:      float64(header.Loss),
		CreatedAt: header.CreatedAt,
		Metadata:  header.Metadata,
		Model:     make(map[string]*tensor.RawTensor),
		Optimizer: make(map[string]*tensor.RawTensor),
	}
	for _, meta := range header.Tensors {
		raw, err := decodeTensor(meta, tensorData)
		if err != nil {
			return nil, err
		}
		switch {
		case len(meta.Name) > len(modelPrefix) && meta.Name[:len(modelPrefix)] == modelPrefix:
			ckpt.Model[meta.Name[len(modelPrefix):]] = raw
		case len(meta.Name) > len(optimPrefix) && meta.Name[:len(optimPrefix)] == optimPrefix:
			ckpt.Optimizer[meta.Name[len(optimPrefix):]] = raw
		default:
			return nil, &ValidationError{Type: "invalid_name", Tensor: meta.Name, Details: "unknown section"}
		}
	}
	return ckpt, nil
}

func decodeTensor(meta TensorMeta, data []byte) (*tensor.RawTensor, error) {
	dtype, ok := tensor.ParseDataType(meta.DType)
	if !ok {
		return nil, &ValidationError{Type: "invalid_dtype", Tensor: meta.Name, Details: meta.DType}
	}
	raw, err := tensor.NewRaw(tensor.Shape(meta.Shape), dtype, tensor.CPU)
	if err != nil {
		return nil, &ValidationError{Type: "invalid_shape", Tensor: meta.Name, Details: err.Error()}
	}
	if int64(raw.ByteSize()) != meta.Size {
		return nil, &ValidationError{Type: "size_mismatch", Tensor: meta.Name,
			Details: fmt.Sprintf("shape %v needs %d bytes, table says %d", meta.Shape, raw.ByteSize(), meta.Size)}
	}
	if meta.Offset < 0 || meta.Offset+meta.Size > int64(len(data)) {
		return nil, &ValidationError{Type: "out_of_bounds", Tensor: meta.Name,
			Details: fmt.Sprintf("[%d, %d) beyond %d data bytes", meta.Offset, meta.Offset+meta.Size, len(data))}
	}

	buf := data[meta.Offset : meta.Offset+meta.Size]
	switch dtype {
	case tensor.Float32:
		out := raw.AsFloat32()
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
		}
	case tensor.Int32:
		out := raw.AsInt32()
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint32(buf[4*i:]))
		}
	case tensor.Bool:
		out := raw.AsBool()
		for i := range out {
			out[i] = buf[i] != 0
		}
	}
	return raw, nil
}
