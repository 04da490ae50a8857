package main

import (
	"fmt"
	"os"
	"time"

	"github.com/go-go-golems/mldash/pkg/callbacks"
	"github.com/go-go-golems/mldash/pkg/session"
	"github.com/go-go-golems/mldash/pkg/state"
	"github.com/go-go-golems/mldash/pkg/train"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var demoFlags struct {
	config       string
	record       string
	headless     bool
	saveDir      string
	resume       string
	epochs       int
	batchSize    int
	learningRate float64
	samples      int
	noise        float64
	seed         int64
	delay        time.Duration
	batchUpdates bool
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Train a small glyph classifier while the dashboard watches",
	Long: `Train a softmax classifier on synthetic 8x8 digit glyphs and feed every
epoch into the dashboard. Stop and save from the controls panel; saved models
land under <save-dir>/models.

Examples:
  mldash demo --epochs 50 --delay 200ms
  mldash demo --headless --record run.jsonl
  mldash demo --resume ./models/best.json`,
	Args: cobra.NoArgs,
	RunE: runDemo,
}

func init() {
	f := demoCmd.Flags()
	f.StringVarP(&demoFlags.config, "config", "c", "", "dashboard layout (yaml, json or toml); built-in layout when empty")
	f.StringVar(&demoFlags.record, "record", "", "write every dispatched message to this JSONL file")
	f.BoolVar(&demoFlags.headless, "headless", false, "no terminal UI; print the final frame")
	f.StringVar(&demoFlags.saveDir, "save-dir", ".", "directory for saved models")
	f.StringVar(&demoFlags.resume, "resume", "", "start from a saved model snapshot")
	f.IntVar(&demoFlags.epochs, "epochs", 30, "training epochs")
	f.IntVar(&demoFlags.batchSize, "batch-size", 32, "mini-batch size")
	f.Float64Var(&demoFlags.learningRate, "lr", 0.1, "learning rate")
	f.IntVar(&demoFlags.samples, "samples", 2000, "training samples; the test set is a quarter of that")
	f.Float64Var(&demoFlags.noise, "noise", 0.08, "pixel flip probability")
	f.Int64Var(&demoFlags.seed, "seed", 1, "random seed")
	f.DurationVar(&demoFlags.delay, "delay", 150*time.Millisecond, "pause after each epoch")
	f.BoolVar(&demoFlags.batchUpdates, "batch-updates", false, "send per-batch losses to the dashboard")
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	doc, err := loadLayout(demoFlags.config)
	if err != nil {
		return err
	}

	trainSet := train.Glyphs(train.GlyphOptions{Samples: demoFlags.samples, Noise: demoFlags.noise, Shift: 1, Seed: demoFlags.seed})
	testSet := train.Glyphs(train.GlyphOptions{Samples: demoFlags.samples / 4, Noise: demoFlags.noise, Shift: 1, Seed: demoFlags.seed + 1})

	model, err := newDemoModel()
	if err != nil {
		return err
	}

	tty := interactive(demoFlags.headless)
	opts := session.Options{
		Logger:       &logger,
		Headless:     !tty,
		WaitForStart: true,
	}
	if demoFlags.record != "" {
		f, err := os.Create(demoFlags.record)
		if err != nil {
			return errors.Wrap(err, "create recording")
		}
		defer f.Close()
		opts.Record = f
	}
	if tty {
		holdLogs()
		defer flushLogs()
	}

	sess, err := session.Launch(ctx, doc, opts)
	if err != nil {
		return err
	}

	cbOpts := callbacks.Options{
		Model:        model,
		Train:        trainSet,
		Test:         testSet,
		Queues:       sess.Queues,
		Logger:       &logger,
		SendBatchEnd: demoFlags.batchUpdates,
	}
	if !tty {
		cbOpts.Prompter = &callbacks.LinePrompter{In: os.Stdin, Out: os.Stderr}
	}
	cb, err := callbacks.New(cbOpts)
	if err != nil {
		sess.Stop()
		_ = sess.Wait()
		return err
	}

	cfg := train.DefaultConfig()
	cfg.Epochs = demoFlags.epochs
	cfg.BatchSize = demoFlags.batchSize
	cfg.LearningRate = demoFlags.learningRate
	cfg.Seed = demoFlags.seed
	cfg.EpochDelay = demoFlags.delay

	go func() {
		select {
		case <-sess.Done():
			// no one is watching anymore
			model.StopTraining()
		case <-ctx.Done():
		}
	}()

	logger.Info().Int("train", trainSet.Len()).Int("test", testSet.Len()).Int("epochs", cfg.Epochs).Msg("training started")
	fitErr := model.Fit(ctx, trainSet, testSet, cfg, cb)
	if fitErr != nil {
		logger.Error().Err(fitErr).Msg("training failed")
	} else if results, err := model.Evaluate(testSet); err != nil {
		logger.Warn().Err(err).Msg("final evaluation")
	} else {
		logger.Info().Float64("loss", results["loss"]).Float64("accuracy", results["accuracy"]).Msg("final evaluation")
		if err := cb.Evaluate(results); err != nil {
			logger.Warn().Err(err).Msg("push evaluation")
		}
	}
	if err := cb.Finish(); err != nil {
		logger.Warn().Err(err).Msg("push end")
	}

	waitErr := sess.Wait()
	if leftover := cb.HandleRemaining(); len(leftover) > 0 {
		logger.Debug().Int("messages", len(leftover)).Msg("requests left after the dashboard closed")
	}
	if sess.Recorder != nil {
		fmt.Fprintf(os.Stderr, "recorded %d messages to %s\n", sess.Recorder.Records(), demoFlags.record)
	}
	if fitErr != nil {
		return fitErr
	}
	return waitErr
}

func newDemoModel() (*train.Softmax, error) {
	if demoFlags.resume == "" {
		return train.NewSoftmax(train.GlyphClasses, train.GlyphSize*train.GlyphSize, demoFlags.saveDir)
	}
	snap, err := state.Load(demoFlags.resume)
	if err != nil {
		return nil, err
	}
	if snap.Classes != train.GlyphClasses || snap.Features != train.GlyphSize*train.GlyphSize {
		return nil, errors.Errorf("snapshot %s has shape %dx%d, the demo needs %dx%d",
			demoFlags.resume, snap.Classes, snap.Features, train.GlyphClasses, train.GlyphSize*train.GlyphSize)
	}
	logger.Info().Str("snapshot", demoFlags.resume).Int("epoch", snap.Epoch).Msg("resuming")
	return train.FromSnapshot(snap, demoFlags.saveDir)
}
