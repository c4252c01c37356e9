package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cognito-lm/cognito/internal/autodiff"
	"github.com/cognito-lm/cognito/internal/backend/cpu"
	"github.com/cognito-lm/cognito/internal/checkpoint"
	"github.com/cognito-lm/cognito/internal/data"
	"github.com/cognito-lm/cognito/internal/generate"
	"github.com/cognito-lm/cognito/internal/model"
	"github.com/cognito-lm/cognito/internal/nn"
	"github.com/cognito-lm/cognito/internal/tokenizer"
	"github.com/cognito-lm/cognito/internal/train"
)

// metadataTokenizer is the checkpoint metadata key naming the tokenizer.
const metadataTokenizer = "tokenizer"

// Train loads the dataset, resumes from the stored artifact when one
// exists and trains until done, early-stopped or cancelled.
func Train(ctx context.Context, cfg Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	tok, err := tokenizer.New(cfg.Tokenizer)
	if err != nil {
		return err
	}
	logger.Info("tokenizer loaded", "tokenizer", cfg.Tokenizer, "vocab_size", tok.VocabSize())

	lines, err := data.LoadLines(cfg.DatasetPath, cfg.MinLineChars)
	if err != nil {
		return err
	}
	logger.Info("dataset loaded", "path", cfg.DatasetPath, "samples", len(lines))

	nn.Seed(cfg.Train.Seed)
	backend := autodiff.New(cpu.New().WithParallel(cfg.Parallel()))
	m, err := model.New(cfg.Model, backend)
	if err != nil {
		return err
	}

	store := checkpoint.NewFileStore(cfg.CheckpointDir)
	trainer, err := train.New(m, store, data.DefaultPadID, cfg.Train,
		train.WithLogger(logger),
		train.WithMetadata(map[string]string{metadataTokenizer: cfg.Tokenizer}))
	if err != nil {
		return err
	}
	if _, err := trainer.Resume(); err != nil {
		return err
	}

	loader := &data.Loader{
		Lines: lines,
		Batcher:   trainingBatcher(cfg, tok, logger),
		BatchSize: cfg.Train.BatchSize,
		Seed:      cfg.Train.Seed,
		Prefetch:  cfg.Train.Prefetch,
	}
	return trainer.Run(ctx, loader)
}

// trainingBatcher builds the batcher for Train. Sequences end in the
// tokenizer's EOS id unless disabled, so a trained model learns to stop.
func trainingBatcher(cfg Config, tok tokenizer.Tokenizer, logger *slog.Logger) *data.Batcher {
	b := &data.Batcher{
		Tokenizer: tok,
		MaxSeqLen: cfg.Train.MaxSeqLen,
		VocabSize: cfg.Model.VocabSize,
		PadID:     data.DefaultPadID,
	}
	if !cfg.AppendEOS {
		return b
	}
	if eos := tok.EosToken(); eos >= 0 {
		b.AppendEOS = true
		b.EOSID = eos
	} else {
		logger.Warn("tokenizer has no EOS token; training sequences will not mark their end")
	}
	return b
}

// Interact loads the stored artifact and runs the prompt loop on in/out.
// A missing artifact is an error: there is nothing to generate with.
func Interact(ctx context.Context, cfg Config, in io.Reader, out io.Writer, logger *slog.Logger) error {
	store := checkpoint.NewFileStore(cfg.CheckpointDir)
	ckpt, err := store.Load(cfg.Train.ArtifactName)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return fmt.Errorf("no trained model: %w (run `cognito train` first)", err)
	}
	if err != nil {
		return err
	}

	selector := cfg.Tokenizer
	if saved := ckpt.Metadata[metadataTokenizer]; saved != "" && saved != selector {
		logger.Warn("tokenizer differs from the one used in training; using the training tokenizer",
			"configured", selector, "trained_with", saved)
		selector = saved
	}
	tok, err := tokenizer.New(selector)
	if err != nil {
		return err
	}

	m, err := model.New(ckpt.Config, cpu.New().WithParallel(cfg.Parallel()))
	if err != nil {
		return err
	}
	if err := m.LoadStateDict(ckpt.Model); err != nil {
		return err
	}
	logger.Info("model loaded", "artifact", store.Path(cfg.Train.ArtifactName),
		"epoch", ckpt.Epoch, "step", ckpt.Step, "loss", ckpt.Loss, "params", m.NumParams())

	session := generate.NewSession(m, tok, logger)
	return generate.RunREPL(ctx, in, out, session, cfg.Generate)
}
