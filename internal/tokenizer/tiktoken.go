package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// encodingCL100kBase is the encoding name for GPT-4 and GPT-3.5-turbo.
	encodingCL100kBase = "cl100k_base"
	// encodingP50kBase is the encoding name for GPT-3.
	encodingP50kBase = "p50k_base"
	// encodingR50kBase is the encoding name for older GPT-3 models.
	encodingR50kBase = "r50k_base"
)

// TikToken wraps the pkoukk/tiktoken-go library for OpenAI tokenizers.
//
// Supported encodings:
//   - cl100k_base: GPT-4, GPT-3.5-turbo (<|endoftext|> = 100257)
//   - p50k_base: GPT-3, Codex (<|endoftext|> = 50256)
//   - r50k_base: GPT-3, davinci-002 (<|endoftext|> = 50256)
type TikToken struct {
	encoding *tiktoken.Tiktoken
	name     string
}

var _ Tokenizer = (*TikToken)(nil)

// NewTikToken creates a TikToken tokenizer with the named encoding.
func NewTikToken(encodingName string) (*TikToken, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encodingName, err)
	}

	return &TikToken{
		encoding: encoding,
		name:     encodingName,
	}, nil
}

// Encode converts text to token ids. With addSpecials, special markers
// such as <|endoftext|> written in the text map to their special ids;
// without it they are encoded as ordinary text.
func (t *TikToken) Encode(text string, addSpecials bool) ([]int32, error) {
	var allowed []string
	if addSpecials {
		allowed = []string{"all"}
	}
	return toInt32(t.encoding.Encode(text, allowed, nil)), nil
}

// EncodeBatch encodes every text.
func (t *TikToken) EncodeBatch(texts []string, addSpecials bool) ([][]int32, error) {
	return encodeAll(t, texts, addSpecials)
}

// Decode converts token ids back to text.
func (t *TikToken) Decode(ids []int32, skipSpecials bool) (string, error) {
	if skipSpecials {
		kept := make([]int32, 0, len(ids))
		for _, id := range ids {
			if !t.IsSpecialToken(id) {
				kept = append(kept, id)
			}
		}
		ids = kept
	}
	for _, id := range ids {
		if id < 0 || int(id) >= t.VocabSize() {
			return "", fmt.Errorf("decode: id %d outside %s vocabulary", id, t.name)
		}
	}
	return t.encoding.Decode(toInt(ids)), nil
}

// VocabSize returns the vocabulary size including special tokens.
func (t *TikToken) VocabSize() int {
	switch t.name {
	case encodingCL100kBase:
		return 100277
	case encodingP50kBase:
		return 50281
	case encodingR50kBase:
		return 50257
	default:
		return 100277
	}
}

// BosToken returns -1; tiktoken encodings have no BOS token.
func (t *TikToken) BosToken() int32 {
	return -1
}

// EosToken returns the <|endoftext|> id.
func (t *TikToken) EosToken() int32 {
	if t.name == encodingCL100kBase {
		return 100257
	}
	return 50256
}

// IsSpecialToken reports whether id is one of the encoding's special
// tokens.
func (t *TikToken) IsSpecialToken(id int32) bool {
	if t.name == encodingCL100kBase {
		return id >= 100256
	}
	return id >= 50256
}

// Name returns the encoding name.
func (t *TikToken) Name() string {
	return t.name
}
