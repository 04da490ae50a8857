package tui

import (
	"time"

	"github.com/go-go-golems/mldash/pkg/protocol"
)

type RedrawRequested struct {
	Reason string `json:"reason"`
}

type ModeChanged struct {
	Mode string `json:"mode"`
}

// MessageDispatched carries the full message so the recorder can persist it.
type MessageDispatched struct {
	Record    protocol.Record `json:"record"`
	ElapsedMs float64         `json:"elapsed_ms"`
	Requests  int             `json:"requests"`
}

type QueueDepth struct {
	At      time.Time `json:"at"`
	Updates int       `json:"updates"`
	Returns int       `json:"returns"`
}
