// Package dashboard runs the render side of a training session: it pops
// update messages, fans them out to the panels and forwards the panels'
// requests to the return queue.
package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/go-go-golems/mldash/pkg/config"
	"github.com/go-go-golems/mldash/pkg/panels"
	"github.com/go-go-golems/mldash/pkg/protocol"
	"github.com/go-go-golems/mldash/pkg/queue"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Notifier receives render-side events. Implementations must not call back
// into the Dashboard synchronously.
type Notifier interface {
	Redraw(reason string)
	ModeChanged(mode string)
	Dispatched(msg protocol.Message, elapsed time.Duration, requests int)
}

type nopNotifier struct{}

func (nopNotifier) Redraw(string)                                   {}
func (nopNotifier) ModeChanged(string)                              {}
func (nopNotifier) Dispatched(protocol.Message, time.Duration, int) {}

type Options struct {
	Registry *panels.Registry
	Notifier Notifier
	Logger   *zerolog.Logger
	// MaxLatency overrides the document's redraw interval when > 0.
	MaxLatency time.Duration
}

type Dashboard struct {
	title      string
	rows, cols int
	queues     queue.Pair
	notifier   Notifier
	log        zerolog.Logger
	maxLatency time.Duration

	mu         sync.Mutex
	instances  []panels.Instance
	mode       string
	loop       time.Duration
	timers     []time.Duration
	dispatched int
	focus      int
}

// New builds every panel of doc and pushes their initial requests to the
// return queue. Configuration errors are returned before anything is pushed.
func New(doc *config.Document, queues queue.Pair, opts Options) (*Dashboard, error) {
	if doc == nil {
		return nil, errors.New("missing dashboard config")
	}
	if queues.Updates == nil || queues.Returns == nil {
		return nil, errors.New("missing queues")
	}
	reg := opts.Registry
	if reg == nil {
		reg = panels.Default()
	}
	instances, err := reg.Build(doc)
	if err != nil {
		return nil, errors.Wrap(err, "build dashboard")
	}

	d := &Dashboard{
		title:      doc.Title,
		rows:       doc.Height(),
		cols:       doc.Width(),
		queues:     queues,
		notifier:   opts.Notifier,
		maxLatency: doc.MaxLatency,
		instances:  instances,
		mode:       protocol.ModeLive,
		timers:     make([]time.Duration, len(instances)),
		focus:      -1,
	}
	if d.notifier == nil {
		d.notifier = nopNotifier{}
	}
	if opts.Logger != nil {
		d.log = opts.Logger.With().Str("component", "dashboard").Logger()
	} else {
		d.log = zerolog.Nop()
	}
	if opts.MaxLatency > 0 {
		d.maxLatency = opts.MaxLatency
	}
	if d.maxLatency <= 0 {
		d.maxLatency = config.DefaultMaxLatency
	}
	for i, inst := range instances {
		if _, ok := inst.Panel.(panels.KeyHandler); ok && d.focus < 0 {
			d.focus = i
		}
	}

	var initial []protocol.Message
	for _, inst := range instances {
		if in, ok := inst.Panel.(panels.Initializer); ok {
			initial = append(initial, in.Init()...)
		}
	}
	if err := queues.Returns.Push(initial...); err != nil {
		return nil, errors.Wrap(err, "push initial requests")
	}
	return d, nil
}

func (d *Dashboard) Title() string { return d.title }

func (d *Dashboard) Mode() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// Dispatched counts the messages fanned out to the panels so far.
func (d *Dashboard) Dispatched() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dispatched
}

func (d *Dashboard) PanelNames() []string {
	out := make([]string, 0, len(d.instances))
	for _, inst := range d.instances {
		out = append(out, inst.Descriptor.Name)
	}
	return out
}

// Run announces readiness with a Start message, then dispatches updates until
// an End message arrives or the update queue is closed. It returns after the
// panels have seen the terminal End. A cancelled context returns ctx.Err()
// without the terminal delivery.
func (d *Dashboard) Run(ctx context.Context) error {
	if err := d.queues.Returns.Push(protocol.Start()); err != nil {
		return errors.Wrap(err, "announce start")
	}
	d.notifier.Redraw("start")

	for {
		msg, ok, err := d.queues.Updates.Pop(ctx, d.maxLatency)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				d.log.Warn().Msg("update queue closed without end message")
				break
			}
			return err
		}
		if !ok {
			d.notifier.Redraw("tick")
			continue
		}
		if msg.Kind == protocol.KindForceUpdate {
			d.notifier.Redraw("force")
			continue
		}
		if msg.Kind == protocol.KindEnd {
			break
		}
		d.dispatch(msg)
	}

	d.finish()
	return nil
}

func (d *Dashboard) dispatch(msg protocol.Message) {
	backlog := d.queues.Updates.Len()

	d.mu.Lock()
	start := time.Now()
	status := d.statusMessageLocked(backlog)
	var requests []protocol.Message
	for i, inst := range d.instances {
		in := msg
		if inst.Descriptor.Has(panels.CapStatus) {
			in = status
		}
		t0 := time.Now()
		requests = append(requests, d.updatePanel(inst, in)...)
		d.timers[i] = time.Since(t0)
	}
	d.loop = time.Since(start)
	d.dispatched++
	elapsed := d.loop
	d.mu.Unlock()

	d.forward(requests)
	d.notifier.Dispatched(msg, elapsed, len(requests))
}

// finish switches to post-training and delivers the one terminal End.
func (d *Dashboard) finish() {
	d.mu.Lock()
	d.mode = protocol.ModePostTraining
	status := d.statusMessageLocked(d.queues.Updates.Len())
	end := protocol.End()
	var requests []protocol.Message
	for _, inst := range d.instances {
		if inst.Descriptor.Has(panels.CapStatus) {
			requests = append(requests, d.updatePanel(inst, status)...)
		}
		requests = append(requests, d.updatePanel(inst, end)...)
	}
	d.mu.Unlock()

	d.forward(requests)
	d.log.Info().Int("dispatched", d.Dispatched()).Msg("training finished, post-training view")
	d.notifier.ModeChanged(protocol.ModePostTraining)
	d.notifier.Redraw("end")
}

func (d *Dashboard) forward(requests []protocol.Message) {
	if len(requests) == 0 {
		return
	}
	if err := d.queues.Returns.Push(requests...); err != nil {
		d.log.Warn().Err(err).Int("requests", len(requests)).Msg("dropping panel requests")
	}
}

// updatePanel calls one panel and keeps a failing panel from taking the loop
// down with it.
func (d *Dashboard) updatePanel(inst panels.Instance, msg protocol.Message) (reqs []protocol.Message) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().
				Str("panel", inst.Descriptor.Name).
				Int("index", inst.Surface.Index).
				Str("kind", msg.Kind.String()).
				Interface("panic", r).
				Msg("panel panicked")
			reqs = nil
		}
	}()

	var err error
	reqs, err = inst.Panel.Update(msg)
	if err != nil {
		ev := d.log.Warn()
		var mm *protocol.MalformedMessageError
		if errors.As(err, &mm) {
			ev = ev.Str("key", mm.Key)
		}
		ev.Err(err).
			Str("panel", inst.Descriptor.Name).
			Int("index", inst.Surface.Index).
			Str("kind", msg.Kind.String()).
			Msg("panel update failed")
		return nil
	}
	return reqs
}

func (d *Dashboard) statusMessageLocked(backlog int) protocol.Message {
	timers := make([]float64, len(d.timers))
	for i, t := range d.timers {
		timers[i] = t.Seconds()
	}
	names := make([]string, len(d.instances))
	for i, inst := range d.instances {
		names[i] = inst.Descriptor.Name
	}
	return protocol.New(protocol.KindCustomData, map[string]any{
		protocol.KeyAutoRendering: backlog <= 1,
		protocol.KeyCurrentMode:   d.mode,
		protocol.KeyTimer:         d.loop.Seconds(),
		protocol.KeyModulesTimer:  timers,
		protocol.KeyModuleNames:   names,
		protocol.KeyWidth:         d.cols,
		protocol.KeyHeight:        d.rows,
	})
}
