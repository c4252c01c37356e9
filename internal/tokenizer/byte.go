package tokenizer

import (
	"fmt"
	"strings"
)

// Byte-level ids.
const (
	BytePad    int32 = 0
	ByteBos    int32 = 1
	ByteEos    int32 = 2
	byteOffset int32 = 3

	// ByteVocabSize is 3 special ids plus 256 byte values.
	ByteVocabSize = 259
)

// ByteTokenizer maps every byte b to id b+3. It needs no vocabulary
// file, so it suits small models and tests. Encoding with addSpecials
// prepends BOS.
type ByteTokenizer struct{}

var _ Tokenizer = ByteTokenizer{}

// NewByteTokenizer returns a ByteTokenizer.
func NewByteTokenizer() ByteTokenizer {
	return ByteTokenizer{}
}

// Encode converts text to byte ids.
func (ByteTokenizer) Encode(text string, addSpecials bool) ([]int32, error) {
	ids := make([]int32, 0, len(text)+1)
	if addSpecials {
		ids = append(ids, ByteBos)
	}
	for i := 0; i < len(text); i++ {
		ids = append(ids, int32(text[i])+byteOffset)
	}
	return ids, nil
}

// EncodeBatch encodes every text.
func (b ByteTokenizer) EncodeBatch(texts []string, addSpecials bool) ([][]int32, error) {
	return encodeAll(b, texts, addSpecials)
}

// Decode converts byte ids back to text. Special ids are dropped when
// skipSpecials is set and rejected otherwise.
func (ByteTokenizer) Decode(ids []int32, skipSpecials bool) (string, error) {
	var sb strings.Builder
	sb.Grow(len(ids))
	for _, id := range ids {
		switch {
		case id >= byteOffset && id < ByteVocabSize:
			sb.WriteByte(byte(id - byteOffset))
		case id >= 0 && id < byteOffset && skipSpecials:
		default:
			return "", fmt.Errorf("decode: id %d is not a byte token", id)
		}
	}
	return sb.String(), nil
}

// VocabSize returns ByteVocabSize.
func (ByteTokenizer) VocabSize() int { return ByteVocabSize }

// BosToken returns ByteBos.
func (ByteTokenizer) BosToken() int32 { return ByteBos }

// EosToken returns ByteEos.
func (ByteTokenizer) EosToken() int32 { return ByteEos }
