// Package cpu implements the tensor.Backend contract in pure Go. Matrix
// products run through gonum's BLAS; row-wise kernels fan out with
// internal/parallel.
package cpu

import (
	"fmt"

	"github.com/cognito-lm/cognito/internal/parallel"
	"github.com/cognito-lm/cognito/internal/tensor"
)

// CPUBackend computes tensor operations on the host.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

var _ tensor.Backend = (*CPUBackend)(nil)

// New creates a CPU backend using all available cores.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    parallel.DefaultConfig(),
	}
}

// WithParallel returns a copy of the backend using cfg for row-parallel kernels.
func (cpu *CPUBackend) WithParallel(cfg parallel.Config) *CPUBackend {
	c := *cpu
	c.par = cfg
	return &c
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

func (cpu *CPUBackend) alloc(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	r, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return r
}

func requireFloat32(op string, ts ...*tensor.RawTensor) {
	for _, t := range ts {
		if t.DType() != tensor.Float32 {
			panic(fmt.Sprintf("%s: unsupported dtype %s", op, t.DType()))
		}
	}
}
