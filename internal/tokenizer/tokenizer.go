package tokenizer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTokenizer is returned by New for an unrecognized selector.
var ErrUnknownTokenizer = errors.New("unknown tokenizer")

// Tokenizer is the core interface for text tokenization.
type Tokenizer interface {
	// Encode converts text to token ids. With addSpecials the tokenizer's
	// special markers are recognized and inserted where the encoding
	// defines them.
	Encode(text string, addSpecials bool) ([]int32, error)

	// EncodeBatch encodes every text, preserving order.
	EncodeBatch(texts []string, addSpecials bool) ([][]int32, error)

	// Decode converts token ids back to text, optionally dropping
	// special tokens.
	Decode(ids []int32, skipSpecials bool) (string, error)

	// VocabSize returns the number of ids the tokenizer can produce.
	VocabSize() int

	// BosToken returns the beginning-of-sequence id, or -1.
	BosToken() int32

	// EosToken returns the end-of-sequence id, or -1.
	EosToken() int32
}

// New builds a tokenizer from selector: "tiktoken[:encoding]", "hf:<path>"
// or "byte".
func New(selector string) (Tokenizer, error) {
	kind, arg, _ := strings.Cut(selector, ":")
	switch kind {
	case "tiktoken", "":
		if arg == "" {
			arg = encodingCL100kBase
		}
		return NewTikToken(arg)
	case "hf":
		if arg == "" {
			return nil, fmt.Errorf("%w: %q needs a tokenizer.json path", ErrUnknownTokenizer, selector)
		}
		return NewHFTokenizer(arg)
	case "byte":
		return NewByteTokenizer(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTokenizer, selector)
	}
}

func encodeAll(tok Tokenizer, texts []string, addSpecials bool) ([][]int32, error) {
	out := make([][]int32, len(texts))
	for i, text := range texts {
		ids, err := tok.Encode(text, addSpecials)
		if err != nil {
			return nil, fmt.Errorf("encode text %d: %w", i, err)
		}
		out[i] = ids
	}
	return out, nil
}

func toInt32(ids []int) []int32 {
	out := make([]int32, len(ids))
	for i, id := range ids {
		out[i] = int32(id) //nolint:gosec // G115: vocabulary ids fit in int32.
	}
	return out
}

func toInt(ids []int32) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}
