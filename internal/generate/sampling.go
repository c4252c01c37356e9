// Package generate runs autoregressive text generation over a trained
// model.
package generate

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// Policy selects the next token from adjusted logits.
type Policy int

const (
	// Greedy picks the argmax.
	Greedy Policy = iota

	// PerturbedSoftmax softmaxes the logits, adds independent
	// Uniform[0,1)·NoiseScale noise to every probability and picks the
	// argmax of the result. It is reproducible for a fixed seed but is
	// not a draw from the softmax distribution.
	PerturbedSoftmax

	// Multinomial draws from the softmax distribution.
	Multinomial
)

// String returns the policy name accepted by ParsePolicy.
func (p Policy) String() string {
	switch p {
	case Greedy:
		return "greedy"
	case PerturbedSoftmax:
		return "perturbed"
	case Multinomial:
		return "multinomial"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses "greedy", "perturbed" or "multinomial".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "greedy":
		return Greedy, nil
	case "perturbed", "perturbed_softmax":
		return PerturbedSoftmax, nil
	case "multinomial":
		return Multinomial, nil
	default:
		return 0, fmt.Errorf("unknown sampling policy %q", s)
	}
}

// SamplingConfig configures token selection.
type SamplingConfig struct {
	Policy Policy

	// Temperature divides the logits. Values ≤ 0 or equal to 1 leave
	// them unchanged.
	Temperature float32

	// RepetitionPenalty is subtracted from the logit of every id seen in
	// the last RepetitionWindow tokens. 0 disables it.
	RepetitionPenalty float32
	RepetitionWindow  int

	// TopK keeps only the K largest logits. 0 disables it.
	TopK int

	// NoiseScale scales the uniform noise of PerturbedSoftmax.
	NoiseScale float32

	// Seed makes PerturbedSoftmax and Multinomial reproducible.
	Seed uint64
}

// DefaultSamplingConfig returns greedy selection with the perturbed
// policy's noise scale and repetition window preset.
func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{
		Policy:           Greedy,
		Temperature:      1.0,
		RepetitionWindow: 64,
		NoiseScale:       0.05,
		Seed:             42,
	}
}

// Sampler applies a SamplingConfig to host logits. A Sampler carries a
// random stream and is not safe for concurrent use.
type Sampler struct {
	config SamplingConfig
	src    rand.Source
	noise  distuv.Uniform
}

// NewSampler creates a sampler seeded from config.Seed.
func NewSampler(config SamplingConfig) *Sampler {
	src := rand.NewPCG(config.Seed, config.Seed^0xda3e39cb94b95bdb)
	return &Sampler{
		config: config,
		src:    src,
		noise:  distuv.Uniform{Min: 0, Max: 1, Src: src},
	}
}

// Sample returns the next token id. logits is modified in place;
// history is the running sequence, used for the repetition penalty.
func (s *Sampler) Sample(logits []float32, history []int32) int32 {
	if s.config.RepetitionPenalty != 0 {
		s.applyRepetitionPenalty(logits, history)
	}

	if t := s.config.Temperature; t > 0 && t != 1 {
		for i := range logits {
			logits[i] /= t
		}
	}

	if s.config.TopK > 0 && s.config.TopK < len(logits) {
		s.topKFilter(logits)
	}

	switch s.config.Policy {
	case PerturbedSoftmax:
		probs := softmax(logits)
		for i := range probs {
			probs[i] += float32(s.noise.Rand()) * s.config.NoiseScale
		}
		return argmax(probs)
	case Multinomial:
		return s.multinomial(softmax(logits))
	default:
		return argmax(logits)
	}
}

// applyRepetitionPenalty subtracts the penalty once per distinct id in
// the window.
func (s *Sampler) applyRepetitionPenalty(logits []float32, history []int32) {
	recent := history
	if w := s.config.RepetitionWindow; w > 0 && len(history) > w {
		recent = history[len(history)-w:]
	}

	seen := make(map[int32]struct{}, len(recent))
	for _, id := range recent {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if id >= 0 && int(id) < len(logits) {
			logits[id] -= s.config.RepetitionPenalty
		}
	}
}

// topKFilter sets every logit below the K-th largest to -Inf.
func (s *Sampler) topKFilter(logits []float32) {
	sorted := append([]float32(nil), logits...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })
	threshold := sorted[s.config.TopK-1]

	for i := range logits {
		if logits[i] < threshold {
			logits[i] = float32(math.Inf(-1))
		}
	}
}

func (s *Sampler) multinomial(probs []float32) int32 {
	weights := make([]float64, len(probs))
	for i, p := range probs {
		weights[i] = float64(p)
	}
	return int32(distuv.NewCategorical(weights, s.src).Rand()) //nolint:gosec // G115: index is below the vocabulary size.
}

// argmax returns the index of the first maximum.
func argmax(values []float32) int32 {
	maxIdx := 0
	maxVal := values[0]
	for i, v := range values[1:] {
		if v > maxVal {
			maxVal = v
			maxIdx = i + 1
		}
	}
	return int32(maxIdx) //nolint:gosec // G115: vocab size is bounded by model architecture.
}

// softmax converts logits to probabilities.
func softmax(logits []float32) []float32 {
	maxVal := logits[0]
	for _, v := range logits[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	probs := make([]float32, len(logits))
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - maxVal))
		probs[i] = float32(e)
		sum += e
	}
	for i := range probs {
		probs[i] = float32(float64(probs[i]) / sum)
	}
	return probs
}
