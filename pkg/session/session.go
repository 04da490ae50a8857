// Package session wires a dashboard to its event bus and UI and runs it next
// to a training loop.
package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/mldash/pkg/config"
	"github.com/go-go-golems/mldash/pkg/dashboard"
	"github.com/go-go-golems/mldash/pkg/panels"
	"github.com/go-go-golems/mldash/pkg/protocol"
	"github.com/go-go-golems/mldash/pkg/queue"
	"github.com/go-go-golems/mldash/pkg/tui"
	"github.com/go-go-golems/mldash/pkg/tui/models"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultFrameWidth  = 100
	DefaultFrameHeight = 30
	DefaultRedrawRate  = 20
)

type Options struct {
	Registry *panels.Registry
	Logger   *zerolog.Logger
	// Queues defaults to a fresh pair.
	Queues queue.Pair

	// Headless skips the terminal UI. Without a terminal on Output the
	// session is headless regardless.
	Headless bool
	Input    io.Reader
	Output   io.Writer
	// FrameWidth and FrameHeight size the frame written to Output after a
	// headless run.
	FrameWidth  int
	FrameHeight int

	// Record receives one JSON line per dispatched message.
	Record io.Writer

	MaxLatency time.Duration
	// RedrawRate caps UI redraws per second.
	RedrawRate float64
	// DepthInterval is how often queue depths are published.
	DepthInterval time.Duration

	// WaitForStart makes Launch return only after the dashboard announced
	// itself on the return queue.
	WaitForStart bool
}

// Session is a running dashboard.
type Session struct {
	Queues    queue.Pair
	Dashboard *dashboard.Dashboard
	Recorder  *tui.Recorder

	bus      *tui.Bus
	program  *tea.Program
	headless bool
	g        *errgroup.Group
	cancel   context.CancelFunc
	done     chan struct{}
	log      zerolog.Logger

	waitOnce sync.Once
	err      error
}

// Launch builds the dashboard for doc and starts it in the background.
func Launch(ctx context.Context, doc *config.Document, opts Options) (*Session, error) {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = opts.Logger.With().Str("component", "session").Logger()
	}
	queues := opts.Queues
	if queues.Updates == nil || queues.Returns == nil {
		queues = queue.NewPair()
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}

	bus, err := tui.NewInMemoryBus(log)
	if err != nil {
		return nil, err
	}
	tui.RegisterDomainToUITransformer(bus)

	d, err := dashboard.New(doc, queues, dashboard.Options{
		Registry:   opts.Registry,
		Notifier:   &tui.BusNotifier{Pub: bus.Publisher(), Log: log},
		Logger:     opts.Logger,
		MaxLatency: opts.MaxLatency,
	})
	if err != nil {
		_ = bus.Close()
		return nil, err
	}

	s := &Session{
		Queues:    queues,
		Dashboard: d,
		bus:       bus,
		headless:  opts.Headless || !isTerminal(opts.Output),
		done:      make(chan struct{}),
		log:       log,
	}
	if opts.Record != nil {
		s.Recorder = tui.NewRecorder(opts.Record)
		s.Recorder.Register(bus)
	}

	var sender tui.Sender = tui.LogSender{Log: log}
	if !s.headless {
		s.program = tea.NewProgram(models.NewDashboardModel(d),
			tea.WithAltScreen(),
			tea.WithInput(opts.Input),
			tea.WithOutput(opts.Output),
		)
		sender = s.program
	}
	redrawRate := opts.RedrawRate
	if redrawRate <= 0 {
		redrawRate = DefaultRedrawRate
	}
	tui.RegisterUIForwarder(bus, sender, rate.NewLimiter(rate.Limit(redrawRate), 1))

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	busCtx, stopBus := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(runCtx)
	s.g = g

	g.Go(func() error {
		return bus.Run(busCtx)
	})
	g.Go(func() error {
		defer close(s.done)
		defer stopBus()
		return s.runDashboard(ctx, gctx, opts)
	})
	if s.program != nil {
		g.Go(func() error {
			_, err := s.program.Run()
			// closing the UI ends the dashboard, not the training
			cancel()
			return errors.Wrap(err, "run ui")
		})
	}

	if opts.WaitForStart {
		if err := waitForStart(ctx, queues.Returns, s.done); err != nil {
			s.Stop()
			if werr := s.Wait(); werr != nil {
				err = werr
			}
			return nil, errors.Wrap(err, "wait for dashboard start")
		}
	}
	return s, nil
}

// errExitedBeforeStart is returned when the dashboard goroutine ends without
// ever announcing itself, for example because the UI failed to start.
var errExitedBeforeStart = errors.New("dashboard exited before it started")

// waitForStart takes the Start announcement off returns. It gives up once
// done is closed and no Start was pushed.
func waitForStart(ctx context.Context, returns *queue.Queue, done <-chan struct{}) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-done:
			cancel()
		case <-waitCtx.Done():
		}
	}()

	_, err := returns.WaitMatching(waitCtx, queue.OfKind(protocol.KindStart))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	select {
	case <-done:
		// the dashboard may have started and finished in one go
		if _, ok := returns.TakeFirst(queue.OfKind(protocol.KindStart)); ok {
			return nil
		}
		return errExitedBeforeStart
	default:
		return err
	}
}

func (s *Session) runDashboard(parent, ctx context.Context, opts Options) error {
	select {
	case <-s.bus.Running():
	case <-ctx.Done():
		if s.program != nil {
			s.program.Quit()
		}
		return nil
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	watcher := &tui.QueueWatcher{Queues: s.Queues, Interval: opts.DepthInterval, Pub: s.bus.Publisher()}
	watchErr := make(chan error, 1)
	go func() { watchErr <- watcher.Run(watchCtx) }()

	err := s.Dashboard.Run(ctx)
	stopWatch()
	if werr := <-watchErr; werr != nil {
		s.log.Warn().Err(werr).Msg("queue watcher stopped")
	}

	if err != nil {
		if s.program != nil {
			s.program.Quit()
		}
		if errors.Is(err, context.Canceled) && parent.Err() == nil {
			s.log.Info().Msg("dashboard closed before training finished")
			return nil
		}
		return err
	}

	if s.headless {
		w, h := opts.FrameWidth, opts.FrameHeight
		if w <= 0 {
			w = DefaultFrameWidth
		}
		if h <= 0 {
			h = DefaultFrameHeight
		}
		if _, err := fmt.Fprintln(opts.Output, s.Dashboard.Render(w, h)); err != nil {
			return errors.Wrap(err, "write final frame")
		}
	}
	return nil
}

// Headless reports whether the session runs without a terminal UI.
func (s *Session) Headless() bool { return s.headless }

// Done is closed once the dashboard stopped dispatching, either after the
// End message or because it was closed early.
func (s *Session) Done() <-chan struct{} { return s.done }

// Stop ends the dashboard without waiting for an End message.
func (s *Session) Stop() { s.cancel() }

// Wait blocks until the dashboard finished and, with a terminal UI, the user
// closed it.
func (s *Session) Wait() error {
	s.waitOnce.Do(func() {
		s.err = s.g.Wait()
		s.cancel()
		if err := s.bus.Close(); err != nil {
			s.log.Debug().Err(err).Msg("close bus")
		}
	})
	return s.err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
