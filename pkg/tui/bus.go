package tui

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Bus is the in-process event bus between the dashboard and its sinks (UI
// forwarder, recorder). Publishing blocks until every subscriber acked, which
// keeps events in order.
type Bus struct {
	PubSub *gochannel.GoChannel
	Router *message.Router
}

func NewInMemoryBus(log zerolog.Logger) (*Bus, error) {
	wlog := NewZerologAdapter(log)
	ps := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            64,
		BlockPublishUntilSubscriberAck: true,
	}, wlog)

	r, err := message.NewRouter(message.RouterConfig{CloseTimeout: 2 * time.Second}, wlog)
	if err != nil {
		_ = ps.Close()
		return nil, errors.Wrap(err, "create router")
	}
	return &Bus{PubSub: ps, Router: r}, nil
}

func (b *Bus) Publisher() message.Publisher { return b.PubSub }

// AddHandler consumes topic without publishing.
func (b *Bus) AddHandler(name, topic string, fn message.NoPublishHandlerFunc) {
	b.Router.AddNoPublisherHandler(name, topic, b.PubSub, fn)
}

// AddTransformer consumes in and publishes what fn returns to out.
func (b *Bus) AddTransformer(name, in, out string, fn message.HandlerFunc) {
	b.Router.AddHandler(name, in, b.PubSub, out, b.PubSub, fn)
}

// Run blocks until ctx is done or the router is closed.
func (b *Bus) Run(ctx context.Context) error {
	if err := b.Router.Run(ctx); err != nil {
		return errors.Wrap(err, "run bus")
	}
	return nil
}

// Running is closed once every handler is subscribed.
func (b *Bus) Running() chan struct{} { return b.Router.Running() }

func (b *Bus) Close() error {
	rerr := b.Router.Close()
	perr := b.PubSub.Close()
	if rerr != nil {
		return errors.Wrap(rerr, "close router")
	}
	if perr != nil {
		return errors.Wrap(perr, "close pubsub")
	}
	return nil
}
