// Package callbacks is the producer side of a dashboard session: it feeds
// training progress into the update queue, answers the panels' data requests
// at epoch boundaries and executes stop/save commands.
package callbacks

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/go-go-golems/mldash/pkg/protocol"
	"github.com/go-go-golems/mldash/pkg/queue"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Model is the trainable model the callbacks drive.
type Model interface {
	// Predict returns one class label per row of x.
	Predict(x [][]float64) ([]int, error)
	// StopTraining asks the training loop to finish after the current epoch.
	StopTraining()
	Save(name string) error
}

type Dataset struct {
	X [][]float64
	Y []int
}

func (d Dataset) Len() int {
	if len(d.Y) < len(d.X) {
		return len(d.Y)
	}
	return len(d.X)
}

// Head returns the first n rows, clamped to the data set size.
func (d Dataset) Head(n int) Dataset {
	if n > d.Len() {
		n = d.Len()
	}
	if n < 0 {
		n = 0
	}
	return Dataset{X: d.X[:n], Y: d.Y[:n]}
}

// Prompter asks the user for a line of input.
type Prompter interface {
	Prompt(question string) (string, error)
}

// LinePrompter reads answers line by line from In.
type LinePrompter struct {
	In  io.Reader
	Out io.Writer

	once sync.Once
	r    *bufio.Reader
}

func (p *LinePrompter) Prompt(question string) (string, error) {
	p.once.Do(func() { p.r = bufio.NewReader(p.In) })
	if p.Out != nil {
		_, _ = fmt.Fprint(p.Out, question)
	}
	line, err := p.r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", errors.Wrap(err, "read answer")
	}
	return strings.TrimSpace(line), nil
}

type Options struct {
	Model  Model
	Train  Dataset
	Test   Dataset
	Queues queue.Pair
	// Prompter supplies save names for save commands without one.
	Prompter Prompter
	Logger   *zerolog.Logger
	// SendBatchEnd forwards per-batch logs. Off by default: it can flood
	// the dashboard.
	SendBatchEnd bool
}

type Callbacks struct {
	model    Model
	train    Dataset
	test     Dataset
	queues   queue.Pair
	prompter Prompter
	log      zerolog.Logger
	batchEnd bool

	stopped bool
	ended   bool
}

// New validates the options and answers the requests the dashboard pushed
// while it was starting.
func New(opts Options) (*Callbacks, error) {
	if opts.Model == nil {
		return nil, errors.New("missing model")
	}
	if opts.Queues.Updates == nil || opts.Queues.Returns == nil {
		return nil, errors.New("missing queues")
	}
	c := &Callbacks{
		model:    opts.Model,
		train:    opts.Train,
		test:     opts.Test,
		queues:   opts.Queues,
		prompter: opts.Prompter,
		batchEnd: opts.SendBatchEnd,
	}
	if opts.Logger != nil {
		c.log = opts.Logger.With().Str("component", "callbacks").Logger()
	} else {
		c.log = zerolog.Nop()
	}
	if err := c.SatisfyRequests(); err != nil {
		return nil, err
	}
	return c, nil
}

// Stopped reports whether a stop command was executed.
func (c *Callbacks) Stopped() bool { return c.stopped }

func (c *Callbacks) OnEpochBegin(epoch int) error {
	return c.SatisfyRequests()
}

// OnEpochEnd publishes the epoch logs, forces a redraw and runs pending
// commands.
func (c *Callbacks) OnEpochEnd(epoch int, logs map[string]float64) error {
	if err := c.queues.Updates.Push(protocol.EpochEnd(epoch, logs), protocol.ForceUpdate()); err != nil {
		return errors.Wrap(err, "push epoch end")
	}
	c.HandleCommands(true)
	return nil
}

func (c *Callbacks) OnBatchEnd(batch int, logs map[string]float64) error {
	if !c.batchEnd {
		return nil
	}
	payload := make(map[string]any, len(logs)+1)
	for k, v := range logs {
		payload[k] = v
	}
	payload[protocol.KeyBatch] = batch
	if err := c.queues.Updates.Push(protocol.New(protocol.KindTrainBatchEnd, payload)); err != nil {
		return errors.Wrap(err, "push batch end")
	}
	return nil
}

// OnTrainEnd marks training as finished; later stop commands only warn.
func (c *Callbacks) OnTrainEnd() {
	c.ended = true
}

// Evaluate pushes final evaluation results.
func (c *Callbacks) Evaluate(results map[string]float64) error {
	payload := make(map[string]any, len(results))
	for k, v := range results {
		payload[k] = v
	}
	return errors.Wrap(c.queues.Updates.Push(protocol.New(protocol.KindEvaluation, payload)), "push evaluation")
}

// Finish marks training as finished and tells the dashboard to switch to
// the post-training view.
func (c *Callbacks) Finish() error {
	c.ended = true
	return errors.Wrap(c.queues.Updates.Push(protocol.End()), "push end")
}

// SatisfyRequests takes every pending data request from the return queue
// and answers each with a message of the same kind. Malformed requests and
// prediction failures are logged and dropped.
func (c *Callbacks) SatisfyRequests() error {
	requests := c.queues.Returns.TakeMatching(func(m protocol.Message) bool {
		return m.Kind.IsDataRequest()
	})
	for _, req := range requests {
		resp, err := c.answer(req)
		if err != nil {
			c.log.Warn().Err(err).Str("kind", req.Kind.String()).Msg("dropping data request")
			continue
		}
		if err := c.queues.Updates.Push(resp); err != nil {
			return errors.Wrap(err, "push data response")
		}
	}
	return nil
}

func (c *Callbacks) dataset(kind protocol.Kind) Dataset {
	if kind.UsesTrainSet() {
		return c.train
	}
	return c.test
}

func (c *Callbacks) answer(req protocol.Message) (protocol.Message, error) {
	set := c.dataset(req.Kind)

	if req.Kind.IsWrongPrediction() {
		maxNum, err := req.Int(protocol.KeyMaxNum)
		if err != nil {
			return protocol.Message{}, err
		}
		attempts, err := req.Int(protocol.KeyAttempts)
		if err != nil {
			return protocol.Message{}, err
		}
		return c.wrongPredictions(req.Kind, set, maxNum, attempts)
	}

	num, err := req.Int(protocol.KeyNum)
	if err != nil {
		return protocol.Message{}, err
	}
	head := set.Head(num)
	payload := map[string]any{protocol.KeyX: head.X, protocol.KeyY: head.Y}
	if req.Kind.IsPrediction() {
		pred, err := c.predict(head.X)
		if err != nil {
			return protocol.Message{}, err
		}
		payload[protocol.KeyPred] = pred
	}
	return protocol.New(req.Kind.ResponseKind(), payload), nil
}

// wrongPredictions predicts over the first attempts rows and keeps at most
// maxNum rows whose prediction differs from the label.
func (c *Callbacks) wrongPredictions(kind protocol.Kind, set Dataset, maxNum, attempts int) (protocol.Message, error) {
	window := set.Head(attempts)
	x := [][]float64{}
	y := []int{}
	pred := []int{}
	if maxNum > 0 && window.Len() > 0 {
		preds, err := c.predict(window.X)
		if err != nil {
			return protocol.Message{}, err
		}
		for i := 0; i < window.Len(); i++ {
			if preds[i] != window.Y[i] {
				x = append(x, window.X[i])
				y = append(y, window.Y[i])
				pred = append(pred, preds[i])
			}
			if len(x) >= maxNum {
				break
			}
		}
	}
	return protocol.New(kind.ResponseKind(), map[string]any{
		protocol.KeyX:    x,
		protocol.KeyY:    y,
		protocol.KeyPred: pred,
	}), nil
}

func (c *Callbacks) predict(x [][]float64) ([]int, error) {
	if len(x) == 0 {
		return []int{}, nil
	}
	pred, err := c.model.Predict(x)
	if err != nil {
		return nil, errors.Wrap(err, "predict")
	}
	if len(pred) != len(x) {
		return nil, errors.Errorf("model returned %d predictions for %d rows", len(pred), len(x))
	}
	return pred, nil
}

// HandleCommands takes every command from the return queue. Stop flips the
// model's stop flag once when allowStop is set and training is still
// running; otherwise it only warns. Save persists the model.
func (c *Callbacks) HandleCommands(allowStop bool) {
	for _, cmd := range c.queues.Returns.TakeMatching(queue.OfKind(protocol.KindCommand)) {
		name := cmd.StringOr(protocol.KeyCommand, "")
		switch name {
		case protocol.CommandStop:
			switch {
			case !allowStop || c.ended:
				c.log.Warn().Msg("stop requested but training has already finished")
			case c.stopped:
				c.log.Info().Msg("stop already requested")
			default:
				c.log.Info().Msg("training stopped by user")
				c.stopped = true
				c.model.StopTraining()
			}
		case protocol.CommandSave:
			c.save(cmd)
		default:
			c.log.Warn().Str("command", name).Msg("unhandled command")
		}
	}
}

func (c *Callbacks) save(cmd protocol.Message) {
	name := strings.TrimSpace(cmd.StringOr(protocol.KeyName, ""))
	if name == "" {
		if c.prompter == nil {
			c.log.Warn().Msg("save requested without a name and no prompter")
			return
		}
		answer, err := c.prompter.Prompt("File name: ")
		if err != nil {
			c.log.Warn().Err(err).Msg("save cancelled")
			return
		}
		name = answer
	}
	if name == "" {
		c.log.Warn().Msg("save cancelled: empty name")
		return
	}
	if err := c.model.Save(name); err != nil {
		c.log.Error().Err(err).Str("name", name).Msg("save model")
		return
	}
	c.log.Info().Str("name", name).Msg("model saved")
}

// HandleRemaining runs after the dashboard exited: it executes leftover
// commands (stop only warns) and logs and returns everything it could not
// handle.
func (c *Callbacks) HandleRemaining() []protocol.Message {
	c.ended = true
	c.HandleCommands(false)
	rest := c.queues.Returns.Drain()
	for _, m := range rest {
		c.log.Warn().Str("kind", m.Kind.String()).Str("message", m.String()).Msg("unhandled request")
	}
	return rest
}
