// Package panels holds the pluggable dashboard modules and their registry.
//
// A panel is bound to one cell of the dashboard grid. It receives every
// dispatched message through Update, ignores kinds it does not know, and may
// answer with request messages that the dispatcher forwards to the return
// queue. Panels never share state.
package panels

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/mldash/pkg/config"
	"github.com/go-go-golems/mldash/pkg/protocol"
	"github.com/go-go-golems/mldash/pkg/tui/widgets"
)

// Surface is the grid cell a panel draws into.
type Surface struct {
	Index int
	Row   int
	Col   int
}

type Panel interface {
	Title() string
	// Update handles one message. Unknown kinds return nil, nil.
	Update(msg protocol.Message) ([]protocol.Message, error)
	View(width, height int) string
}

// Initializer panels emit requests once, right after construction.
type Initializer interface {
	Init() []protocol.Message
}

// KeyHandler panels react to key presses. While Capturing reports true the
// dashboard sends every key to that panel only.
type KeyHandler interface {
	HandleKey(msg tea.KeyMsg) []protocol.Message
	Capturing() bool
	Keybinds() []widgets.Keybind
}

// Capability is a declared need of a panel that changes how the dispatcher
// feeds it.
type Capability string

const (
	// CapStatus panels receive a CustomData status message (timers, mode,
	// backlog) instead of the dispatched message.
	CapStatus Capability = "status"
)

type Constructor func(s Surface, opts config.Options) (Panel, error)

type Descriptor struct {
	Name         string
	Description  string
	Schema       config.Schema
	Capabilities []Capability
	New          Constructor
}

func (d Descriptor) Has(c Capability) bool {
	for _, have := range d.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Instance is a constructed panel together with its registration.
type Instance struct {
	Descriptor Descriptor
	Spec       config.PanelSpec
	Surface    Surface
	Panel      Panel
}
