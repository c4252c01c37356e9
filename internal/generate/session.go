package generate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cognito-lm/cognito/internal/model"
	"github.com/cognito-lm/cognito/internal/tensor"
	"github.com/cognito-lm/cognito/internal/tokenizer"
)

// ErrPromptOutOfVocab is returned when the prompt encodes to an id the
// model cannot embed, which means tokenizer and model do not match.
var ErrPromptOutOfVocab = errors.New("prompt token outside model vocabulary")

// DefaultStopTokens are the GPT-2 and cl100k <|endoftext|> ids.
var DefaultStopTokens = []int32{50256, 100257}

// State is the phase of one generation.
type State int

// Generation states.
const (
	StateEncoding State = iota
	StateDecoding
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateEncoding:
		return "encoding"
	case StateDecoding:
		return "decoding"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StopReason records why decoding ended.
type StopReason int

// Stop reasons.
const (
	StopNone StopReason = iota
	StopEOS
	StopNewline
	StopMaxTokens
	StopContextWindow
)

// String returns the reason name.
func (r StopReason) String() string {
	switch r {
	case StopNone:
		return "none"
	case StopEOS:
		return "eos"
	case StopNewline:
		return "newline"
	case StopMaxTokens:
		return "max_tokens"
	case StopContextWindow:
		return "context_window"
	default:
		return fmt.Sprintf("StopReason(%d)", int(r))
	}
}

// Config configures one generation.
type Config struct {
	// MaxTokens bounds the number of generated tokens.
	MaxTokens int

	// StopOnNewline ends generation at the first fragment containing a
	// newline, for prose continuation.
	StopOnNewline bool

	// StopTokens end generation in addition to the tokenizer's EOS id.
	StopTokens []int32

	Sampling SamplingConfig
}

// DefaultConfig returns MaxTokens 100, the default stop tokens and
// DefaultSamplingConfig.
func DefaultConfig() Config {
	return Config{
		MaxTokens:  100,
		StopTokens: DefaultStopTokens,
		Sampling:   DefaultSamplingConfig(),
	}
}

// Result is the outcome of a generation.
type Result struct {
	// Text is the generated continuation with the prompt removed.
	Text string

	// TokenIDs are the generated ids, stop token included.
	TokenIDs []int32

	Reason StopReason
}

// Session bundles the model, tokenizer and backend used for generation.
// A Session may serve several generations at once; each Generation has
// its own sampler state.
type Session[B tensor.Backend] struct {
	model   *model.Model[B]
	tok     tokenizer.Tokenizer
	backend B
	logger  *slog.Logger
}

// NewSession creates a session and switches the model to inference mode,
// so dropout is the identity while decoding.
func NewSession[B tensor.Backend](m *model.Model[B], tok tokenizer.Tokenizer, logger *slog.Logger) *Session[B] {
	if logger == nil {
		logger = slog.Default()
	}
	m.SetTraining(false)
	if mv, tv := m.Config.VocabSize, tok.VocabSize(); mv != tv {
		logger.Warn("model and tokenizer vocabularies differ; sampling only ids both cover",
			"model_vocab", mv, "tokenizer_vocab", tv, "selectable", min(mv, tv))
	}
	return &Session[B]{model: m, tok: tok, backend: m.Backend(), logger: logger}
}

// Tokenizer returns the session tokenizer.
func (s *Session[B]) Tokenizer() tokenizer.Tokenizer { return s.tok }

// Generate runs a full generation, writing each decoded fragment to out
// (if non-nil) as soon as it is produced. ctx is checked between decode
// steps; on cancellation the partial result is returned with ctx.Err().
func (s *Session[B]) Generate(ctx context.Context, prompt string, cfg Config, out io.Writer) (*Result, error) {
	g, err := s.Start(prompt, cfg)
	if err != nil {
		return nil, err
	}
	for g.State() != StateStopped {
		if err := ctx.Err(); err != nil {
			return g.Result(), err
		}
		fragment, err := g.Step()
		if err != nil {
			return nil, err
		}
		if out != nil && fragment != "" {
			if _, err := io.WriteString(out, fragment); err != nil {
				return nil, fmt.Errorf("stream: %w", err)
			}
		}
	}
	res := g.Result()
	s.logger.Debug("generation finished", "tokens", len(res.TokenIDs), "reason", res.Reason)
	return res, nil
}

// Generation is one prompt being decoded.
type Generation[B tensor.Backend] struct {
	session   *Session[B]
	cfg       Config
	sampler   *Sampler
	prompt    string
	promptLen int
	tokens    []int32
	stopIDs   map[int32]struct{}
	limit     int
	state     State
	reason    StopReason
}

// Start encodes prompt and returns a generation ready to decode.
func (s *Session[B]) Start(prompt string, cfg Config) (*Generation[B], error) {
	g := &Generation[B]{
		session: s,
		cfg:     cfg,
		sampler: NewSampler(cfg.Sampling),
		prompt:  prompt,
		stopIDs: make(map[int32]struct{}, len(cfg.StopTokens)+1),
		limit:   min(s.model.Config.VocabSize, s.tok.VocabSize()),
		state:   StateEncoding,
	}
	for _, id := range cfg.StopTokens {
		g.stopIDs[id] = struct{}{}
	}
	if eos := s.tok.EosToken(); eos >= 0 {
		g.stopIDs[eos] = struct{}{}
	}

	ids, err := s.tok.Encode(prompt, true)
	if err != nil {
		return nil, fmt.Errorf("encode prompt: %w", err)
	}
	for i, id := range ids {
		if id < 0 || int(id) >= s.model.Config.VocabSize {
			return nil, fmt.Errorf("%w: id %d at position %d (vocab %d)",
				ErrPromptOutOfVocab, id, i, s.model.Config.VocabSize)
		}
	}
	g.tokens = ids
	g.promptLen = len(ids)
	g.state = StateDecoding

	switch {
	case len(ids) == 0:
		return nil, errors.New("encode prompt: no tokens")
	case cfg.MaxTokens <= 0:
		g.stop(StopMaxTokens)
	case len(ids) >= s.model.Config.MaxSeqLen:
		g.stop(StopContextWindow)
	}
	return g, nil
}

// State returns the current state.
func (g *Generation[B]) State() State { return g.state }

// Tokens returns the running sequence, prompt included.
func (g *Generation[B]) Tokens() []int32 { return g.tokens }

func (g *Generation[B]) stop(reason StopReason) {
	g.state = StateStopped
	g.reason = reason
}

// Step produces one token and returns its decoded text. It is a no-op
// once the generation has stopped.
func (g *Generation[B]) Step() (string, error) {
	if g.state != StateDecoding {
		return "", nil
	}
	s := g.session

	input, err := tensor.FromSlice(g.tokens, tensor.Shape{1, len(g.tokens)}, s.backend)
	if err != nil {
		return "", err
	}
	logits, err := s.model.Forward(input)
	if err != nil {
		return "", fmt.Errorf("forward: %w", err)
	}

	host := hostLogits(logits)
	next := g.sampler.Sample(host[:g.limit], g.tokens)

	fragment, err := s.tok.Decode([]int32{next}, true)
	if err != nil {
		return "", fmt.Errorf("decode token %d: %w", next, err)
	}
	g.tokens = append(g.tokens, next)

	generated := len(g.tokens) - g.promptLen
	_, isStop := g.stopIDs[next]
	switch {
	case isStop:
		g.stop(StopEOS)
	case g.cfg.StopOnNewline && strings.Contains(fragment, "\n"):
		g.stop(StopNewline)
	case generated >= g.cfg.MaxTokens:
		g.stop(StopMaxTokens)
	case len(g.tokens) >= s.model.Config.MaxSeqLen:
		g.stop(StopContextWindow)
	}
	return fragment, nil
}

// hostLogits copies the last position of logits [1, T, V] into a fresh
// host slice. The copy is explicit: the sampler mutates it, and on a
// device backend this is the point where data leaves the device.
func hostLogits[B tensor.Backend](logits *tensor.Tensor[float32, B]) []float32 {
	shape := logits.Shape()
	seq, vocab := shape[1], shape[2]
	data := logits.Data()
	out := make([]float32, vocab)
	copy(out, data[(seq-1)*vocab:seq*vocab])
	return out
}

// Result decodes the generated text. The prompt is stripped from the
// decoded sequence; if the decoded text does not start with it, only
// the generated ids are decoded.
func (g *Generation[B]) Result() *Result {
	generated := append([]int32(nil), g.tokens[g.promptLen:]...)
	res := &Result{TokenIDs: generated, Reason: g.reason}

	tok := g.session.tok
	if full, err := tok.Decode(g.tokens, true); err == nil && strings.HasPrefix(full, g.prompt) {
		res.Text = full[len(g.prompt):]
		return res
	}
	if text, err := tok.Decode(generated, true); err == nil {
		res.Text = text
	}
	return res
}
