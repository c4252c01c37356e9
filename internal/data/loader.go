package data

import (
	"context"
	"io"
	"math/rand/v2"
)

// Loader produces the batches of one epoch on a background goroutine.
// Lines are shuffled with a fixed seed so every run sees the same order.
type Loader struct {
	Lines     []string
	Batcher   *Batcher
	BatchSize int
	Seed      uint64

	// Prefetch bounds the number of ready batches held ahead of the
	// consumer. Values below 1 mean 1.
	Prefetch int
}

type loaded struct {
	batch *Batch
	err   error
}

// Stream is one pass over the loader's lines.
type Stream struct {
	ch     <-chan loaded
	cancel context.CancelFunc
}

// NumBatches returns the number of batches one epoch yields.
func (l *Loader) NumBatches() int {
	if l.BatchSize <= 0 {
		return 0
	}
	return (len(l.Lines) + l.BatchSize - 1) / l.BatchSize
}

// Start begins producing batches. The producer stops when the epoch is
// exhausted, a batch fails, ctx is cancelled or the stream is closed.
func (l *Loader) Start(ctx context.Context) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan loaded, max(l.Prefetch, 1))

	order := make([]int, len(l.Lines))
	for i := range order {
		order[i] = i
	}
	rng := rand.New(rand.NewPCG(l.Seed, l.Seed))
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	go func() {
		defer close(ch)

		size := max(l.BatchSize, 1)
		chunk := make([]string, 0, size)
		for start := 0; start < len(order); start += size {
			chunk = chunk[:0]
			for _, idx := range order[start:min(start+size, len(order))] {
				chunk = append(chunk, l.Lines[idx])
			}
			batch, err := l.Batcher.Batch(chunk)

			select {
			case ch <- loaded{batch: batch, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	return &Stream{ch: ch, cancel: cancel}
}

// Next returns the next batch, io.EOF once the epoch is done, or the
// error that stopped the producer.
func (s *Stream) Next() (*Batch, error) {
	item, ok := <-s.ch
	if !ok {
		return nil, io.EOF
	}
	if item.err != nil {
		return nil, item.err
	}
	return item.batch, nil
}

// Close stops the producer. It is safe to call more than once.
func (s *Stream) Close() {
	s.cancel()
	for range s.ch {
	}
}
