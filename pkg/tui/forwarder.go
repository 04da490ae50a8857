package tui

import (
	"github.com/ThreeDotsLabs/watermill/message"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/mldash/pkg/protocol"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Sender is what the forwarder delivers to; *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// RegisterUIForwarder delivers UI messages to s. Redraw and dispatch
// notifications beyond limiter's rate are dropped: the next tick redraws
// anyway. Mode changes are always delivered. A nil limiter forwards
// everything.
func RegisterUIForwarder(bus *Bus, s Sender, limiter *rate.Limiter) {
	bus.AddHandler("mldash-ui-forward", TopicUIMessages, func(msg *message.Message) error {
		env, err := ParseEnvelope(msg.Payload)
		if err != nil {
			return nil
		}
		throttled := func() bool { return limiter != nil && !limiter.Allow() }

		switch env.Type {
		case UITypeRedraw:
			var ev RedrawRequested
			if err := env.Decode(&ev); err != nil {
				return nil
			}
			if ev.Reason != "end" && throttled() {
				return nil
			}
			s.Send(RedrawMsg{Reason: ev.Reason})
		case UITypeMode:
			var ev ModeChanged
			if err := env.Decode(&ev); err != nil {
				return nil
			}
			s.Send(ModeChangedMsg{Mode: ev.Mode})
		case UITypeDispatched:
			var ev dispatchedSummary
			if err := env.Decode(&ev); err != nil {
				return nil
			}
			if throttled() {
				return nil
			}
			kind, err := protocol.ParseKind(ev.Kind)
			if err != nil {
				return nil
			}
			s.Send(DispatchedMsg{Kind: kind, ElapsedMs: ev.ElapsedMs, Requests: ev.Requests})
		case UITypeQueueDepth:
			var ev QueueDepth
			if err := env.Decode(&ev); err != nil {
				return nil
			}
			s.Send(QueueDepthMsg{Depth: ev})
		}
		return nil
	})
}

// LogSender stands in for the program when running headless.
type LogSender struct {
	Log zerolog.Logger
}

func (l LogSender) Send(msg tea.Msg) {
	switch v := msg.(type) {
	case ModeChangedMsg:
		l.Log.Info().Str("mode", v.Mode).Msg("dashboard mode changed")
	case DispatchedMsg:
		l.Log.Debug().Str("kind", v.Kind.String()).Float64("elapsed_ms", v.ElapsedMs).Int("requests", v.Requests).Msg("dispatched")
	case QueueDepthMsg:
		l.Log.Trace().Int("updates", v.Depth.Updates).Int("returns", v.Depth.Returns).Msg("queue depth")
	}
}
