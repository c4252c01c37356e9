package optim

import (
	"fmt"
	"math"

	"github.com/cognito-lm/cognito/internal/nn"
	"github.com/cognito-lm/cognito/internal/tensor"
)

// AdamWConfig holds AdamW hyperparameters.
type AdamWConfig struct {
	LR          float32
	Betas       [2]float32
	Eps         float32
	WeightDecay float32
}

// DefaultAdamWConfig returns LR 1e-4, betas (0.9, 0.999), eps 1e-5 and
// weight decay 1e-5.
func DefaultAdamWConfig() AdamWConfig {
	return AdamWConfig{
		LR:          1e-4,
		Betas:       [2]float32{0.9, 0.999},
		Eps:         1e-5,
		WeightDecay: 1e-5,
	}
}

// AdamW is Adam with decoupled weight decay:
//
//	m_t = β1·m + (1-β1)·g
//	v_t = β2·v + (1-β2)·g²
//	θ  -= lr·(m̂ / (√v̂ + ε) + λ·θ)
//
// with m̂, v̂ the bias-corrected moments. Decay is applied only to
// parameters that received a gradient.
type AdamW[B tensor.Backend] struct {
	params []*nn.Parameter[B]
	cfg    AdamWConfig
	t      int
	m      [][]float32
	v      [][]float32
}

var _ Optimizer = (*AdamW[tensor.Backend])(nil)

// NewAdamW creates an optimizer over params. Zero fields in cfg fall back
// to DefaultAdamWConfig, except WeightDecay which may be zero.
func NewAdamW[B tensor.Backend](params []*nn.Parameter[B], cfg AdamWConfig) *AdamW[B] {
	def := DefaultAdamWConfig()
	if cfg.LR == 0 {
		cfg.LR = def.LR
	}
	if cfg.Betas[0] == 0 {
		cfg.Betas[0] = def.Betas[0]
	}
	if cfg.Betas[1] == 0 {
		cfg.Betas[1] = def.Betas[1]
	}
	if cfg.Eps == 0 {
		cfg.Eps = def.Eps
	}
	return &AdamW[B]{
		params: params,
		cfg:    cfg,
		m:      make([][]float32, len(params)),
		v:      make([][]float32, len(params)),
	}
}

// Step applies one update. Parameters without a gradient are skipped.
func (a *AdamW[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++
	b1, b2 := a.cfg.Betas[0], a.cfg.Betas[1]
	bc1 := float32(1 - math.Pow(float64(b1), float64(a.t)))
	bc2 := float32(1 - math.Pow(float64(b2), float64(a.t)))

	for i, p := range a.params {
		grad := p.GradFrom(grads)
		if grad == nil {
			continue
		}
		data := p.Tensor().Raw().AsFloat32()
		if a.m[i] == nil {
			a.m[i] = make([]float32, len(data))
			a.v[i] = make([]float32, len(data))
		}
		m, v, g := a.m[i], a.v[i], grad.AsFloat32()
		for j := range data {
			m[j] = b1*m[j] + (1-b1)*g[j]
			v[j] = b2*v[j] + (1-b2)*g[j]*g[j]
			mHat := m[j] / bc1
			vHat := v[j] / bc2
			data[j] -= a.cfg.LR * (mHat/(float32(math.Sqrt(float64(vHat)))+a.cfg.Eps) + a.cfg.WeightDecay*data[j])
		}
	}
}

// GetLR returns the learning rate.
func (a *AdamW[B]) GetLR() float32 {
	return a.cfg.LR
}

// Timestep returns the number of steps taken.
func (a *AdamW[B]) Timestep() int {
	return a.t
}

// StateDict returns the step count and both moment buffers, keyed
// "step", "m.<param>" and "v.<param>". Parameters never updated are omitted.
func (a *AdamW[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor, 1+2*len(a.params))
	step := tensor.MustRaw(tensor.Shape{1}, tensor.Int32, tensor.CPU)
	step.AsInt32()[0] = int32(a.t)
	state["step"] = step
	for i, p := range a.params {
		if a.m[i] == nil {
			continue
		}
		state["m."+p.Name()] = moment(a.m[i], p)
		state["v."+p.Name()] = moment(a.v[i], p)
	}
	return state
}

func moment[B tensor.Backend](buf []float32, p *nn.Parameter[B]) *tensor.RawTensor {
	r := tensor.MustRaw(p.Tensor().Shape(), tensor.Float32, tensor.CPU)
	copy(r.AsFloat32(), buf)
	return r
}

// LoadStateDict restores state saved by StateDict.
func (a *AdamW[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	step, ok := state["step"]
	if !ok || step.DType() != tensor.Int32 || step.NumElements() != 1 {
		return fmt.Errorf("adamw: missing or malformed step")
	}
	a.t = int(step.AsInt32()[0])
	for i, p := range a.params {
		m, okM := state["m."+p.Name()]
		v, okV := state["v."+p.Name()]
		if !okM || !okV {
			a.m[i], a.v[i] = nil, nil
			continue
		}
		n := p.Tensor().NumElements()
		if m.DType() != tensor.Float32 || v.DType() != tensor.Float32 || m.NumElements() != n || v.NumElements() != n {
			return fmt.Errorf("adamw: moment shape mismatch for %s", p.Name())
		}
		a.m[i] = append([]float32(nil), m.AsFloat32()...)
		a.v[i] = append([]float32(nil), v.AsFloat32()...)
	}
	return nil
}
