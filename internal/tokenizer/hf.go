package tokenizer

import (
	"fmt"

	hf "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// Marker strings tried, in order, for the BOS and EOS ids of a
// tokenizer.json.
var (
	bosCandidates = []string{"<s>", "<bos>", "<|begin_of_text|>", "<|startoftext|>", "[CLS]"}
	eosCandidates = []string{"</s>", "<eos>", "<|endoftext|>", "<|end_of_text|>", "[SEP]"}
)

// HFTokenizer loads a HuggingFace tokenizer.json through
// github.com/sugarme/tokenizer.
type HFTokenizer struct {
	tk   *hf.Tokenizer
	path string
	bos  int32
	eos  int32
}

var _ Tokenizer = (*HFTokenizer)(nil)

// NewHFTokenizer loads the tokenizer.json at path.
func NewHFTokenizer(path string) (*HFTokenizer, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer.json %q: %w", path, err)
	}
	return &HFTokenizer{
		tk:   tk,
		path: path,
		bos:  lookupFirst(tk, bosCandidates),
		eos:  lookupFirst(tk, eosCandidates),
	}, nil
}

func lookupFirst(tk *hf.Tokenizer, candidates []string) int32 {
	for _, token := range candidates {
		if id, ok := tk.TokenToId(token); ok {
			return int32(id) //nolint:gosec // G115: vocabulary ids fit in int32.
		}
	}
	return -1
}

// Encode converts text to token ids; addSpecials runs the tokenizer's
// post-processor (BOS/EOS templates).
func (h *HFTokenizer) Encode(text string, addSpecials bool) ([]int32, error) {
	enc, err := h.tk.EncodeSingle(text, addSpecials)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return toInt32(enc.Ids), nil
}

// EncodeBatch encodes every text.
func (h *HFTokenizer) EncodeBatch(texts []string, addSpecials bool) ([][]int32, error) {
	return encodeAll(h, texts, addSpecials)
}

// Decode converts token ids back to text.
func (h *HFTokenizer) Decode(ids []int32, skipSpecials bool) (string, error) {
	return h.tk.Decode(toInt(ids), skipSpecials), nil
}

// VocabSize returns the vocabulary size including added tokens.
func (h *HFTokenizer) VocabSize() int {
	return h.tk.GetVocabSize(true)
}

// BosToken returns the beginning-of-sequence id, or -1.
func (h *HFTokenizer) BosToken() int32 { return h.bos }

// EosToken returns the end-of-sequence id, or -1.
func (h *HFTokenizer) EosToken() int32 { return h.eos }

// Path returns the tokenizer.json location.
func (h *HFTokenizer) Path() string { return h.path }
