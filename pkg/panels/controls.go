package panels

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/mldash/pkg/config"
	"github.com/go-go-golems/mldash/pkg/protocol"
	"github.com/go-go-golems/mldash/pkg/tui/styles"
	"github.com/go-go-golems/mldash/pkg/tui/widgets"
)

type controlKeys struct {
	Stop   key.Binding
	Save   key.Binding
	Submit key.Binding
	Cancel key.Binding
}

func defaultControlKeys() controlKeys {
	return controlKeys{
		Stop:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop training")),
		Save:   key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "save model")),
		Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

// ControlButtons sends stop and save commands back to the training loop.
// Saving asks for a file name inline.
type ControlButtons struct {
	title    string
	keys     controlKeys
	prompt   bool
	input    textinput.Model
	finished bool
	history  []string
	theme    styles.Theme
}

func controlButtonsDescriptor() Descriptor {
	return Descriptor{
		Name:        "ControlButtons",
		Description: "stop/save controls",
		Schema: config.Schema{
			{Key: "title", Type: config.TypeString, Default: "Controls"},
			{Key: "defaultname", Type: config.TypeString, Default: "model.json", Help: "prefilled save name"},
		},
		New: func(s Surface, opts config.Options) (Panel, error) {
			in := textinput.New()
			in.Prompt = "name: "
			in.Placeholder = opts.String("defaultname")
			in.CharLimit = 200
			return &ControlButtons{
				title: opts.String("title"),
				keys:  defaultControlKeys(),
				input: in,
				theme: styles.DefaultTheme(),
			}, nil
		},
	}
}

func (p *ControlButtons) Title() string { return p.title }

func (p *ControlButtons) Update(msg protocol.Message) ([]protocol.Message, error) {
	if msg.Kind == protocol.KindEnd {
		p.finished = true
	}
	return nil, nil
}

func (p *ControlButtons) Capturing() bool { return p.prompt }

func (p *ControlButtons) Keybinds() []widgets.Keybind {
	if p.prompt {
		return []widgets.Keybind{widgets.FromBinding(p.keys.Submit), widgets.FromBinding(p.keys.Cancel)}
	}
	return []widgets.Keybind{widgets.FromBinding(p.keys.Stop), widgets.FromBinding(p.keys.Save)}
}

func (p *ControlButtons) HandleKey(msg tea.KeyMsg) []protocol.Message {
	if p.prompt {
		switch {
		case key.Matches(msg, p.keys.Cancel):
			p.prompt = false
			p.input.Blur()
			p.note("save cancelled")
			return nil
		case key.Matches(msg, p.keys.Submit):
			name := strings.TrimSpace(p.input.Value())
			if name == "" {
				name = p.input.Placeholder
			}
			p.prompt = false
			p.input.Blur()
			p.note(fmt.Sprintf("save requested: %s", name))
			return []protocol.Message{protocol.CommandMessage(protocol.CommandSave, map[string]any{protocol.KeyName: name})}
		}
		p.input, _ = p.input.Update(msg)
		return nil
	}

	switch {
	case key.Matches(msg, p.keys.Stop):
		if p.finished {
			p.note("stop requested after training ended")
		} else {
			p.note("stop requested")
		}
		return []protocol.Message{protocol.CommandMessage(protocol.CommandStop, nil)}
	case key.Matches(msg, p.keys.Save):
		p.prompt = true
		p.input.SetValue("")
		p.input.Focus()
		return nil
	}
	return nil
}

func (p *ControlButtons) note(s string) {
	p.history = append(p.history, s)
	if len(p.history) > 5 {
		p.history = p.history[len(p.history)-5:]
	}
}

func (p *ControlButtons) View(width, height int) string {
	theme := p.theme
	var lines []string
	stop := widgets.RenderKeybinds([]widgets.Keybind{widgets.FromBinding(p.keys.Stop)}, theme)
	if p.finished {
		stop = theme.TitleMuted.Render("[s] stop training (finished)")
	}
	lines = append(lines, stop, widgets.RenderKeybinds([]widgets.Keybind{widgets.FromBinding(p.keys.Save)}, theme))
	if p.prompt {
		lines = append(lines, "", p.input.View())
	}
	if len(p.history) > 0 {
		lines = append(lines, "")
		for _, h := range p.history {
			lines = append(lines, theme.TitleMuted.Render(styles.IconBullet+" "+h))
		}
	}
	return strings.Join(lines, "\n")
}
