package nn

import (
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/cognito-lm/cognito/internal/tensor"
)

var (
	rngMu sync.Mutex
	rng   = rand.NewPCG(42, 1)
)

// Seed resets the generator used for weight initialization and dropout.
func Seed(seed uint64) {
	rngMu.Lock()
	defer rngMu.Unlock()
	rng.Seed(seed, seed^0x9e3779b97f4a7c15)
}

// fill draws len(dst) samples from dist under the package lock.
func fill(dst []float32, rand func() float64) {
	rngMu.Lock()
	defer rngMu.Unlock()
	for i := range dst {
		dst[i] = float32(rand())
	}
}

// Xavier draws from U(-√(6/(fanIn+fanOut)), √(6/(fanIn+fanOut))).
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	dist := distuv.Uniform{Min: -bound, Max: bound, Src: rng}
	t := tensor.Zeros[float32](shape, backend)
	fill(t.Data(), dist.Rand)
	return t
}

// Normal draws from N(mean, std²).
func Normal[B tensor.Backend](mean, std float64, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	dist := distuv.Normal{Mu: mean, Sigma: std, Src: rng}
	t := tensor.Zeros[float32](shape, backend)
	fill(t.Data(), dist.Rand)
	return t
}

// bernoulliMask returns a keep-mask scaled by 1/(1-p): each element is
// 1/(1-p) with probability 1-p and 0 otherwise.
func bernoulliMask[B tensor.Backend](p float64, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	dist := distuv.Bernoulli{P: 1 - p, Src: rng}
	t := tensor.Zeros[float32](shape, backend)
	scale := 1 / (1 - p)
	fill(t.Data(), func() float64 { return dist.Rand() * scale })
	return t
}
