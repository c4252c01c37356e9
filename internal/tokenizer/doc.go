// Package tokenizer converts between text and token ids.
//
// Three implementations are provided:
//   - TikToken: OpenAI BPE encodings (cl100k_base by default)
//   - HFTokenizer: a HuggingFace tokenizer.json
//   - ByteTokenizer: one token per byte, for small local runs
//
// New selects one from a short selector string:
//
//	tok, err := tokenizer.New("tiktoken")        // cl100k_base
//	tok, err := tokenizer.New("tiktoken:p50k_base")
//	tok, err := tokenizer.New("hf:./tokenizer.json")
//	tok, err := tokenizer.New("byte")
package tokenizer
