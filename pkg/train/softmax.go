// Package train holds a small softmax classifier used by the demo command to
// drive a dashboard with real training progress.
package train

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-go-golems/mldash/pkg/callbacks"
	"github.com/go-go-golems/mldash/pkg/state"
	"github.com/pkg/errors"
)

type Config struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	// L2 is the weight decay factor.
	L2   float64
	Seed int64
	// EpochDelay slows training down so the dashboard is watchable.
	EpochDelay time.Duration
}

func DefaultConfig() Config {
	return Config{Epochs: 30, BatchSize: 32, LearningRate: 0.1, L2: 1e-4, Seed: 1}
}

// Hooks receives training progress. *callbacks.Callbacks implements it.
type Hooks interface {
	OnEpochBegin(epoch int) error
	OnEpochEnd(epoch int, logs map[string]float64) error
	OnBatchEnd(batch int, logs map[string]float64) error
	OnTrainEnd()
}

// Softmax is a multinomial logistic regression classifier.
type Softmax struct {
	classes  int
	features int

	mu    sync.RWMutex
	w     [][]float64
	b     []float64
	epoch int
	last  map[string]float64

	stop    atomic.Bool
	saveDir string
}

func NewSoftmax(classes, features int, saveDir string) (*Softmax, error) {
	if classes < 2 || features < 1 {
		return nil, errors.Errorf("invalid classifier shape %dx%d", classes, features)
	}
	m := &Softmax{classes: classes, features: features, saveDir: saveDir}
	m.w = make([][]float64, classes)
	for i := range m.w {
		m.w[i] = make([]float64, features)
	}
	m.b = make([]float64, classes)
	return m, nil
}

// FromSnapshot restores a saved classifier.
func FromSnapshot(s *state.Snapshot, saveDir string) (*Softmax, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	m, err := NewSoftmax(s.Classes, s.Features, saveDir)
	if err != nil {
		return nil, err
	}
	for i := range s.Weights {
		copy(m.w[i], s.Weights[i])
	}
	copy(m.b, s.Bias)
	m.epoch = s.Epoch
	return m, nil
}

func (m *Softmax) StopTraining() { m.stop.Store(true) }

func (m *Softmax) Stopping() bool { return m.stop.Load() }

// Predict returns the arg-max class of each row.
func (m *Softmax) Predict(x [][]float64) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int, len(x))
	logits := make([]float64, m.classes)
	for i, row := range x {
		if len(row) != m.features {
			return nil, errors.Errorf("row %d has %d features, expected %d", i, len(row), m.features)
		}
		m.logitsLocked(row, logits)
		best := 0
		for c := 1; c < m.classes; c++ {
			if logits[c] > logits[best] {
				best = c
			}
		}
		out[i] = best
	}
	return out, nil
}

// Save writes a snapshot named name under the model's save directory.
func (m *Softmax) Save(name string) error {
	m.mu.RLock()
	s := &state.Snapshot{
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Epoch:     m.epoch,
		Classes:   m.classes,
		Features:  m.features,
		Weights:   make([][]float64, m.classes),
		Bias:      append([]float64{}, m.b...),
		Metrics:   map[string]float64{},
	}
	for i := range m.w {
		s.Weights[i] = append([]float64{}, m.w[i]...)
	}
	for k, v := range m.last {
		s.Metrics[k] = v
	}
	m.mu.RUnlock()

	_, err := state.Save(m.saveDir, name, s)
	return errors.Wrap(err, "save model")
}

// Evaluate returns loss and accuracy over d.
func (m *Softmax) Evaluate(d callbacks.Dataset) (map[string]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := d.Len()
	if n == 0 {
		return nil, errors.New("empty data set")
	}
	probs := make([]float64, m.classes)
	loss, correct := 0.0, 0
	for i := 0; i < n; i++ {
		if len(d.X[i]) != m.features {
			return nil, errors.Errorf("row %d has %d features, expected %d", i, len(d.X[i]), m.features)
		}
		if y := d.Y[i]; y < 0 || y >= m.classes {
			return nil, errors.Errorf("label %d out of range at row %d", y, i)
		}
		m.probsLocked(d.X[i], probs)
		loss -= math.Log(math.Max(probs[d.Y[i]], 1e-12))
		if argmax(probs) == d.Y[i] {
			correct++
		}
	}
	return map[string]float64{
		"loss":     loss / float64(n),
		"accuracy": float64(correct) / float64(n),
	}, nil
}

// Fit trains with mini-batch gradient descent until cfg.Epochs is reached,
// the context ends or StopTraining was called.
func (m *Softmax) Fit(ctx context.Context, trainSet, valSet callbacks.Dataset, cfg Config, hooks Hooks) error {
	if trainSet.Len() == 0 {
		return errors.New("empty training set")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.LearningRate <= 0 {
		return errors.Errorf("learning rate must be positive, got %g", cfg.LearningRate)
	}
	for i := 0; i < trainSet.Len(); i++ {
		if len(trainSet.X[i]) != m.features {
			return errors.Errorf("training row %d has %d features, expected %d", i, len(trainSet.X[i]), m.features)
		}
		if y := trainSet.Y[i]; y < 0 || y >= m.classes {
			return errors.Errorf("training label %d out of range at row %d", y, i)
		}
	}
	defer hooks.OnTrainEnd()

	rng := rand.New(rand.NewSource(cfg.Seed))
	order := rng.Perm(trainSet.Len())
	batch := 0
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.Stopping() {
			return nil
		}
		if err := hooks.OnEpochBegin(epoch); err != nil {
			return errors.Wrapf(err, "epoch %d begin", epoch)
		}

		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for start := 0; start < len(order); start += cfg.BatchSize {
			end := start + cfg.BatchSize
			if end > len(order) {
				end = len(order)
			}
			loss := m.step(trainSet, order[start:end], cfg)
			if err := hooks.OnBatchEnd(batch, map[string]float64{"loss": loss}); err != nil {
				return errors.Wrapf(err, "batch %d end", batch)
			}
			batch++
		}

		logs, err := m.Evaluate(trainSet)
		if err != nil {
			return err
		}
		if valSet.Len() > 0 {
			val, err := m.Evaluate(valSet)
			if err != nil {
				return errors.Wrap(err, "validation")
			}
			logs["val_loss"] = val["loss"]
			logs["val_accuracy"] = val["accuracy"]
		}
		m.mu.Lock()
		m.epoch = epoch
		m.last = logs
		m.mu.Unlock()

		if err := hooks.OnEpochEnd(epoch, logs); err != nil {
			return errors.Wrapf(err, "epoch %d end", epoch)
		}
		if cfg.EpochDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.EpochDelay):
			}
		}
	}
	return nil
}

// step applies one gradient update over rows idx and returns the batch loss.
func (m *Softmax) step(d callbacks.Dataset, idx []int, cfg Config) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	gw := make([][]float64, m.classes)
	for c := range gw {
		gw[c] = make([]float64, m.features)
	}
	gb := make([]float64, m.classes)
	probs := make([]float64, m.classes)
	loss := 0.0

	for _, i := range idx {
		x, y := d.X[i], d.Y[i]
		m.probsLocked(x, probs)
		loss -= math.Log(math.Max(probs[y], 1e-12))
		for c := 0; c < m.classes; c++ {
			g := probs[c]
			if c == y {
				g -= 1
			}
			gb[c] += g
			for f, v := range x {
				gw[c][f] += g * v
			}
		}
	}

	scale := cfg.LearningRate / float64(len(idx))
	for c := 0; c < m.classes; c++ {
		m.b[c] -= scale * gb[c]
		for f := 0; f < m.features; f++ {
			m.w[c][f] -= scale*gw[c][f] + cfg.LearningRate*cfg.L2*m.w[c][f]
		}
	}
	return loss / float64(len(idx))
}

func (m *Softmax) logitsLocked(x []float64, out []float64) {
	for c := 0; c < m.classes; c++ {
		s := m.b[c]
		for f, v := range x {
			s += m.w[c][f] * v
		}
		out[c] = s
	}
}

func (m *Softmax) probsLocked(x []float64, out []float64) {
	m.logitsLocked(x, out)
	peak := out[0]
	for _, v := range out[1:] {
		if v > peak {
			peak = v
		}
	}
	sum := 0.0
	for c := range out {
		out[c] = math.Exp(out[c] - peak)
		sum += out[c]
	}
	for c := range out {
		out[c] /= sum
	}
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
