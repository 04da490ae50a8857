package train

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-go-golems/mldash/pkg/callbacks"
	"github.com/go-go-golems/mldash/pkg/protocol"
	"github.com/go-go-golems/mldash/pkg/queue"
	"github.com/go-go-golems/mldash/pkg/state"
	"github.com/stretchr/testify/require"
)

type recordingHooks struct {
	begins   []int
	ends     []map[string]float64
	batches  int
	trainEnd int
	stopAt   int
	model    *Softmax
}

func (h *recordingHooks) OnEpochBegin(epoch int) error {
	h.begins = append(h.begins, epoch)
	return nil
}

func (h *recordingHooks) OnEpochEnd(epoch int, logs map[string]float64) error {
	h.ends = append(h.ends, logs)
	if h.model != nil && epoch == h.stopAt {
		h.model.StopTraining()
	}
	return nil
}

func (h *recordingHooks) OnBatchEnd(batch int, logs map[string]float64) error {
	h.batches++
	return nil
}

func (h *recordingHooks) OnTrainEnd() { h.trainEnd++ }

func TestGlyphs_Deterministic(t *testing.T) {
	a := Glyphs(GlyphOptions{Samples: 50, Noise: 0.05, Shift: 1, Seed: 7})
	b := Glyphs(GlyphOptions{Samples: 50, Noise: 0.05, Shift: 1, Seed: 7})
	require.Equal(t, a, b)
	require.Equal(t, 50, a.Len())
	require.Len(t, a.X[0], GlyphSize*GlyphSize)
	for _, y := range a.Y {
		require.GreaterOrEqual(t, y, 0)
		require.Less(t, y, GlyphClasses)
	}
}

func TestSoftmax_LearnsCleanGlyphs(t *testing.T) {
	trainSet := Glyphs(GlyphOptions{Samples: 300, Seed: 1})
	testSet := Glyphs(GlyphOptions{Samples: 100, Seed: 2})

	m, err := NewSoftmax(GlyphClasses, GlyphSize*GlyphSize, t.TempDir())
	require.NoError(t, err)
	h := &recordingHooks{stopAt: -1}
	cfg := DefaultConfig()
	cfg.Epochs = 15
	cfg.LearningRate = 0.5
	require.NoError(t, m.Fit(context.Background(), trainSet, testSet, cfg, h))

	require.Len(t, h.begins, 15)
	require.Len(t, h.ends, 15)
	require.Equal(t, 1, h.trainEnd)
	require.Equal(t, 15*((300+cfg.BatchSize-1)/cfg.BatchSize), h.batches)
	require.Less(t, h.ends[14]["loss"], h.ends[0]["loss"])
	require.Contains(t, h.ends[0], "val_accuracy")

	res, err := m.Evaluate(testSet)
	require.NoError(t, err)
	require.Greater(t, res["accuracy"], 0.9)
}

func TestSoftmax_StopTraining(t *testing.T) {
	trainSet := Glyphs(GlyphOptions{Samples: 40, Seed: 3})
	m, err := NewSoftmax(GlyphClasses, GlyphSize*GlyphSize, t.TempDir())
	require.NoError(t, err)
	h := &recordingHooks{stopAt: 2, model: m}

	cfg := DefaultConfig()
	cfg.Epochs = 10
	require.NoError(t, m.Fit(context.Background(), trainSet, callbacks.Dataset{}, cfg, h))
	require.Len(t, h.ends, 3)
	require.Equal(t, 1, h.trainEnd)
}

func TestSoftmax_CancelledContext(t *testing.T) {
	trainSet := Glyphs(GlyphOptions{Samples: 10, Seed: 3})
	m, err := NewSoftmax(GlyphClasses, GlyphSize*GlyphSize, t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, m.Fit(ctx, trainSet, callbacks.Dataset{}, DefaultConfig(), &recordingHooks{}), context.Canceled)
}

func TestSoftmax_RejectsBadInput(t *testing.T) {
	_, err := NewSoftmax(1, 4, "")
	require.Error(t, err)

	m, err := NewSoftmax(2, 2, "")
	require.NoError(t, err)
	_, err = m.Predict([][]float64{{1, 2, 3}})
	require.Error(t, err)

	bad := callbacks.Dataset{X: [][]float64{{1, 2}}, Y: []int{5}}
	require.Error(t, m.Fit(context.Background(), bad, callbacks.Dataset{}, DefaultConfig(), &recordingHooks{}))
	require.Error(t, m.Fit(context.Background(), callbacks.Dataset{}, callbacks.Dataset{}, DefaultConfig(), &recordingHooks{}))
}

func TestSoftmax_EvaluateRejectsBadLabels(t *testing.T) {
	m, err := NewSoftmax(2, 2, "")
	require.NoError(t, err)

	for _, y := range []int{7, -1} {
		_, err = m.Evaluate(callbacks.Dataset{X: [][]float64{{1, 2}, {0, 1}}, Y: []int{0, y}})
		require.Error(t, err)
		require.Contains(t, err.Error(), "out of range at row 1")
	}

	good := callbacks.Dataset{X: [][]float64{{1, 0}, {0, 1}}, Y: []int{0, 1}}
	badVal := callbacks.Dataset{X: [][]float64{{1, 0}}, Y: []int{2}}
	cfg := DefaultConfig()
	cfg.Epochs = 1
	hooks := &recordingHooks{}
	require.Error(t, m.Fit(context.Background(), good, badVal, cfg, hooks))
	require.Empty(t, hooks.ends)
}

func TestSoftmax_SaveAndRestore(t *testing.T) {
	dir := t.TempDir()
	trainSet := Glyphs(GlyphOptions{Samples: 100, Seed: 4})
	m, err := NewSoftmax(GlyphClasses, GlyphSize*GlyphSize, dir)
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.Epochs = 3
	require.NoError(t, m.Fit(context.Background(), trainSet, callbacks.Dataset{}, cfg, &recordingHooks{stopAt: -1}))

	require.NoError(t, m.Save("checkpoint"))
	snap, err := state.Load(filepath.Join(dir, state.SnapshotDirName, "checkpoint.json"))
	require.NoError(t, err)
	require.Equal(t, 2, snap.Epoch)
	require.Contains(t, snap.Metrics, "accuracy")

	restored, err := FromSnapshot(snap, dir)
	require.NoError(t, err)
	want, err := m.Predict(trainSet.X)
	require.NoError(t, err)
	got, err := restored.Predict(trainSet.X)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

// The callbacks drive a real training run end to end: requests pushed by the
// dashboard get answered and a stop command ends training early.
func TestSoftmax_WithCallbacks(t *testing.T) {
	q := queue.NewPair()
	trainSet := Glyphs(GlyphOptions{Samples: 60, Seed: 5})
	testSet := Glyphs(GlyphOptions{Samples: 30, Seed: 6})
	m, err := NewSoftmax(GlyphClasses, GlyphSize*GlyphSize, t.TempDir())
	require.NoError(t, err)

	require.NoError(t, q.Returns.Push(protocol.SampleRequest(protocol.KindPredSample, 4)))
	cb, err := callbacks.New(callbacks.Options{Model: m, Train: trainSet, Test: testSet, Queues: q})
	require.NoError(t, err)
	require.NoError(t, q.Returns.Push(protocol.CommandMessage(protocol.CommandStop, nil)))

	cfg := DefaultConfig()
	cfg.Epochs = 10
	require.NoError(t, m.Fit(context.Background(), trainSet, testSet, cfg, cb))
	require.True(t, cb.Stopped())

	var epochEnds int
	for _, msg := range q.Updates.Drain() {
		if msg.Kind == protocol.KindEpochEnd {
			epochEnds++
		}
	}
	require.Equal(t, 1, epochEnds)
	require.Empty(t, cb.HandleRemaining())
}
