package widgets

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/go-go-golems/mldash/pkg/tui/styles"
)

// Keybind is one entry of a help bar.
type Keybind struct {
	Key  string
	Help string
}

// FromBinding converts a bubbles key binding into a help bar entry.
func FromBinding(b key.Binding) Keybind {
	h := b.Help()
	return Keybind{Key: h.Key, Help: h.Desc}
}

func RenderKeybinds(binds []Keybind, theme styles.Theme) string {
	parts := make([]string, 0, len(binds))
	for _, kb := range binds {
		parts = append(parts, theme.KeybindKey.Render("["+kb.Key+"]")+" "+theme.KeybindDesc.Render(kb.Help))
	}
	return strings.Join(parts, "  ")
}
