package tui

import "github.com/go-go-golems/mldash/pkg/protocol"

// RedrawMsg asks the program to re-render the dashboard.
type RedrawMsg struct {
	Reason string
}

type ModeChangedMsg struct {
	Mode string
}

type DispatchedMsg struct {
	Kind      protocol.Kind
	ElapsedMs float64
	Requests  int
}

type QueueDepthMsg struct {
	Depth QueueDepth
}
