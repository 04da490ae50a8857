package tui

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/mldash/pkg/queue"
	"github.com/pkg/errors"
)

// QueueWatcher periodically publishes the depth of both queues. Unchanged
// depths are not republished.
type QueueWatcher struct {
	Queues   queue.Pair
	Interval time.Duration
	Pub      message.Publisher

	last    QueueDepth
	emitted bool
}

func (w *QueueWatcher) Run(ctx context.Context) error {
	if w.Queues.Updates == nil || w.Queues.Returns == nil {
		return errors.New("missing queues")
	}
	if w.Pub == nil {
		return errors.New("missing Publisher")
	}
	if w.Interval <= 0 {
		w.Interval = 500 * time.Millisecond
	}

	t := time.NewTicker(w.Interval)
	defer t.Stop()

	for {
		if err := w.emit(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func (w *QueueWatcher) emit() error {
	depth := QueueDepth{
		At:      time.Now(),
		Updates: w.Queues.Updates.Len(),
		Returns: w.Queues.Returns.Len(),
	}
	if w.emitted && depth.Updates == w.last.Updates && depth.Returns == w.last.Returns {
		return nil
	}
	if err := publishEnvelope(w.Pub, TopicDashboardEvents, DomainTypeQueueDepth, depth); err != nil {
		return errors.Wrap(err, "publish queue depth")
	}
	w.last, w.emitted = depth, true
	return nil
}
