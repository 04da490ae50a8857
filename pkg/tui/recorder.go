package tui

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
)

// Recorder appends every dispatched message to w as one JSON line. The
// output can be fed back with the replay command.
type Recorder struct {
	mu      sync.Mutex
	w       io.Writer
	records int
}

func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{w: w}
}

func (r *Recorder) Register(bus *Bus) {
	bus.AddHandler("mldash-recorder", TopicDashboardEvents, r.handle)
}

func (r *Recorder) handle(msg *message.Message) error {
	env, err := ParseEnvelope(msg.Payload)
	if err != nil || env.Type != DomainTypeDispatched {
		return nil
	}
	var ev MessageDispatched
	if err := env.Decode(&ev); err != nil {
		return nil
	}
	b, err := json.Marshal(ev.Record)
	if err != nil {
		return errors.Wrap(err, "marshal record")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.w.Write(append(b, '\n')); err != nil {
		return errors.Wrap(err, "write record")
	}
	r.records++
	return nil
}

func (r *Recorder) Records() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records
}
