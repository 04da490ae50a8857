package tui

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/mldash/pkg/protocol"
	"github.com/rs/zerolog"
)

// BusNotifier publishes dashboard events as domain envelopes on
// TopicDashboardEvents.
type BusNotifier struct {
	Pub message.Publisher
	Log zerolog.Logger
}

func (n *BusNotifier) Redraw(reason string) {
	n.publish(DomainTypeRedraw, RedrawRequested{Reason: reason})
}

func (n *BusNotifier) ModeChanged(mode string) {
	n.publish(DomainTypeMode, ModeChanged{Mode: mode})
}

func (n *BusNotifier) Dispatched(msg protocol.Message, elapsed time.Duration, requests int) {
	n.publish(DomainTypeDispatched, MessageDispatched{
		Record:    protocol.NewRecord(msg, time.Now()),
		ElapsedMs: float64(elapsed) / float64(time.Millisecond),
		Requests:  requests,
	})
}

func (n *BusNotifier) publish(typ string, payload any) {
	if err := publishEnvelope(n.Pub, TopicDashboardEvents, typ, payload); err != nil {
		n.Log.Warn().Err(err).Str("type", typ).Msg("publish dashboard event")
	}
}

func publishEnvelope(pub message.Publisher, topic, typ string, payload any) error {
	env, err := NewEnvelope(typ, payload)
	if err != nil {
		return err
	}
	b, err := env.MarshalJSONBytes()
	if err != nil {
		return err
	}
	return pub.Publish(topic, message.NewMessage(watermill.NewUUID(), b))
}
