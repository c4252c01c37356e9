package train

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/cognito-lm/cognito/internal/autodiff"
	"github.com/cognito-lm/cognito/internal/checkpoint"
	"github.com/cognito-lm/cognito/internal/data"
	"github.com/cognito-lm/cognito/internal/model"
	"github.com/cognito-lm/cognito/internal/nn"
	"github.com/cognito-lm/cognito/internal/optim"
)

// Report is a periodic loss sample.
type Report struct {
	Epoch     int
	Iteration int
	Step      int64
	Loss      float32
	Elapsed   time.Duration
}

// Option configures a Trainer.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	metadata map[string]string
	output   io.Writer
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetadata attaches key/value pairs to every checkpoint.
func WithMetadata(md map[string]string) Option {
	return func(o *options) { o.metadata = md }
}

// WithProgressOutput redirects the progress bar. The default is stderr.
func WithProgressOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

// Trainer owns the model, optimizer and checkpoint store for one run.
// It is not safe for concurrent use. Other goroutines may call Forward on
// the model while it trains: each Step runs under model.Exclusive.
type Trainer[B autodiff.BackwardCapable] struct {
	model   *model.Model[B]
	opt     optim.Optimizer
	loss    *nn.CrossEntropyLoss[B]
	backend B
	store   checkpoint.Store
	cfg     Config
	opts    options
	reports chan Report

	epoch    int
	step     int64
	lastLoss float32
}

// New creates a trainer. padID is the target id excluded from the loss.
func New[B autodiff.BackwardCapable](m *model.Model[B], store checkpoint.Store, padID int32, cfg Config, opts ...Option) (*Trainer[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: slog.Default(), output: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	backend := m.Backend()
	return &Trainer[B]{
		model: m,
		opt: optim.NewAdamW(m.Parameters(), optim.AdamWConfig{
			LR:          cfg.LearningRate,
			WeightDecay: cfg.WeightDecay,
		}),
		loss:    nn.NewCrossEntropyLoss(padID, backend),
		backend: backend,
		store:   store,
		cfg:     cfg,
		opts:    o,
		reports: make(chan Report, 16),
	}, nil
}

// Reports returns loss samples. Sends never block: samples are dropped
// when nobody is reading.
func (t *Trainer[B]) Reports() <-chan Report {
	return t.reports
}

// Epoch returns the number of completed epochs, including resumed ones.
func (t *Trainer[B]) Epoch() int { return t.epoch }

// Steps returns the number of optimizer steps taken, including resumed ones.
func (t *Trainer[B]) Steps() int64 { return t.step }

// Loss evaluates the loss on batch in inference mode without recording
// gradients. The model's dropout mode is restored afterwards.
func (t *Trainer[B]) Loss(batch *data.Batch) (float32, error) {
	inputs, targets, err := data.ToTensors(batch, t.backend)
	if err != nil {
		return 0, err
	}

	var value float32
	err = t.model.Exclusive(false, func(forward model.ForwardFunc[B]) error {
		t.backend.GetTape().StopRecording()
		logits, err := forward(inputs)
		if err != nil {
			return err
		}
		value = t.loss.Forward(logits, targets).Item()
		return nil
	})
	return value, err
}

// Step runs one forward/backward/update iteration and returns the loss
// measured before the update. The whole iteration holds the model's
// exclusive lock, so concurrent Forward calls neither record onto the
// tape nor observe a partial update.
func (t *Trainer[B]) Step(batch *data.Batch) (float32, error) {
	inputs, targets, err := data.ToTensors(batch, t.backend)
	if err != nil {
		return 0, err
	}

	var value float32
	err = t.model.Exclusive(true, func(forward model.ForwardFunc[B]) error {
		tape := t.backend.GetTape()
		tape.Clear()
		tape.StartRecording()
		defer func() {
			tape.StopRecording()
			tape.Clear()
		}()

		logits, err := forward(inputs)
		if err != nil {
			return fmt.Errorf("forward: %w", err)
		}
		loss := t.loss.Forward(logits, targets)
		value = loss.Item()
		t.opt.Step(autodiff.Backward(loss, t.backend))
		return nil
	})
	if err != nil {
		return 0, err
	}

	t.step++
	t.lastLoss = value
	return value, nil
}

// Resume restores model and optimizer state from the stored artifact.
// It reports false, with no error, when there is nothing to resume.
func (t *Trainer[B]) Resume() (bool, error) {
	ckpt, err := t.store.Load(t.cfg.ArtifactName)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("resume: %w", err)
	}
	if ckpt.Config != t.model.Config {
		return false, fmt.Errorf("resume: checkpoint config %+v does not match model config %+v", ckpt.Config, t.model.Config)
	}
	if err := t.model.LoadStateDict(ckpt.Model); err != nil {
		return false, fmt.Errorf("resume: %w", err)
	}
	if err := t.opt.LoadStateDict(ckpt.Optimizer); err != nil {
		return false, fmt.Errorf("resume: %w", err)
	}
	t.epoch = ckpt.Epoch
	t.step = ckpt.Step
	t.lastLoss = float32(ckpt.Loss)
	t.opts.logger.Info("resumed from checkpoint",
		"artifact", t.cfg.ArtifactName, "epoch", ckpt.Epoch, "step", ckpt.Step, "loss", ckpt.Loss)
	return true, nil
}

// Run trains for cfg.NumEpochs epochs over loader, saving a checkpoint
// after each. Cancellation is observed between iterations; the model is
// checkpointed before ctx.Err() is returned. A failed save is fatal.
func (t *Trainer[B]) Run(ctx context.Context, loader *data.Loader) error {
	log := t.opts.logger
	log.Info("starting training",
		"params", t.model.NumParams(), "lines", len(loader.Lines),
		"batches_per_epoch", loader.NumBatches(), "epochs", t.cfg.NumEpochs)

	first := t.epoch + 1
	for epoch := first; epoch < first+t.cfg.NumEpochs; epoch++ {
		log.Info("epoch started", "epoch", epoch)
		runErr := t.runEpoch(ctx, loader, epoch)
		if runErr != nil && ctx.Err() == nil {
			return fmt.Errorf("epoch %d: %w", epoch, runErr)
		}

		if err := t.save(epoch); err != nil {
			return fmt.Errorf("epoch %d: save checkpoint: %w", epoch, err)
		}
		t.epoch = epoch
		log.Info("epoch complete", "epoch", epoch, "step", t.step, "loss", t.lastLoss,
			"artifact", t.cfg.ArtifactName)

		if err := ctx.Err(); err != nil {
			log.Warn("training interrupted", "epoch", epoch, "step", t.step)
			return err
		}
	}

	log.Info("training complete", "steps", t.step)
	return nil
}

func (t *Trainer[B]) runEpoch(ctx context.Context, loader *data.Loader, epoch int) error {
	stream := loader.Start(ctx)
	defer stream.Close()

	bar := t.newBar(min(loader.NumBatches(), t.cfg.MaxStepsPerEpoch), epoch)
	defer func() {
		if bar != nil {
			_ = bar.Finish()
		}
	}()

	start := time.Now()
	for iter := 0; ; iter++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if iter >= t.cfg.MaxStepsPerEpoch {
			t.opts.logger.Info("step limit reached, stopping epoch early",
				"epoch", epoch, "max_steps", t.cfg.MaxStepsPerEpoch)
			return nil
		}

		batch, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("iteration %d: %w", iter, err)
		}

		loss, err := t.Step(batch)
		if err != nil {
			return fmt.Errorf("iteration %d: %w", iter, err)
		}

		if iter%t.cfg.LogEvery == 0 {
			t.report(Report{Epoch: epoch, Iteration: iter, Step: t.step, Loss: loss, Elapsed: time.Since(start)})
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
}

func (t *Trainer[B]) report(r Report) {
	t.opts.logger.Info("training loss",
		"epoch", r.Epoch, "iter", r.Iteration, "step", r.Step,
		"loss", fmt.Sprintf("%.4f", r.Loss), "elapsed", r.Elapsed.Round(time.Millisecond))
	select {
	case t.reports <- r:
	default:
	}
}

func (t *Trainer[B]) newBar(total, epoch int) *progressbar.ProgressBar {
	if !t.cfg.Progress {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(t.opts.output),
		progressbar.OptionSetDescription(fmt.Sprintf("Epoch %d", epoch)),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func (t *Trainer[B]) save(epoch int) error {
	ckpt := &checkpoint.Checkpoint{
		Config:    t.model.Config,
		Epoch:     epoch,
		Step:      t.step,
		Loss:      float64(t.lastLoss),
		CreatedAt: time.Now().UTC(),
		Model:     t.model.StateDict(),
		Optimizer: t.opt.StateDict(),
		Metadata:  t.opts.metadata,
	}
	return t.store.Save(t.cfg.ArtifactName, ckpt)
}
