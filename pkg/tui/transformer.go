package tui

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
)

// dispatchedSummary is the UI-side view of MessageDispatched, without the
// (possibly large) payload.
type dispatchedSummary struct {
	Kind      string  `json:"kind"`
	ElapsedMs float64 `json:"elapsed_ms"`
	Requests  int     `json:"requests"`
}

// RegisterDomainToUITransformer maps dashboard events to UI messages.
// Unknown event types are acked and dropped.
func RegisterDomainToUITransformer(bus *Bus) {
	bus.AddTransformer("mldash-domain-to-ui", TopicDashboardEvents, TopicUIMessages, func(msg *message.Message) ([]*message.Message, error) {
		env, err := ParseEnvelope(msg.Payload)
		if err != nil {
			return nil, nil
		}

		var out Envelope
		switch env.Type {
		case DomainTypeRedraw:
			out, err = retype(env, UITypeRedraw, &RedrawRequested{})
		case DomainTypeMode:
			out, err = retype(env, UITypeMode, &ModeChanged{})
		case DomainTypeQueueDepth:
			out, err = retype(env, UITypeQueueDepth, &QueueDepth{})
		case DomainTypeDispatched:
			var ev MessageDispatched
			if err := env.Decode(&ev); err != nil {
				return nil, err
			}
			out, err = NewEnvelope(UITypeDispatched, dispatchedSummary{
				Kind:      ev.Record.Kind.String(),
				ElapsedMs: ev.ElapsedMs,
				Requests:  ev.Requests,
			})
		default:
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		b, err := out.MarshalJSONBytes()
		if err != nil {
			return nil, err
		}
		return []*message.Message{message.NewMessage(watermill.NewUUID(), b)}, nil
	})
}

// retype validates the payload against v and re-wraps it under a UI type.
func retype(env Envelope, typ string, v any) (Envelope, error) {
	if err := env.Decode(v); err != nil {
		return Envelope{}, errors.Wrap(err, "transform")
	}
	out, err := NewEnvelope(typ, v)
	if err != nil {
		return Envelope{}, err
	}
	out.At = env.At
	return out, nil
}
