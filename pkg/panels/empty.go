package panels

import (
	"github.com/go-go-golems/mldash/pkg/config"
	"github.com/go-go-golems/mldash/pkg/protocol"
)

// Empty fills a grid cell with nothing.
type Empty struct {
	title string
}

func emptyDescriptor() Descriptor {
	return Descriptor{
		Name:        "EmptyModule",
		Description: "blank placeholder",
		Schema: config.Schema{
			{Key: "title", Type: config.TypeString, Default: ""},
		},
		New: func(s Surface, opts config.Options) (Panel, error) {
			return &Empty{title: opts.String("title")}, nil
		},
	}
}

func (p *Empty) Title() string { return p.title }

func (p *Empty) Update(protocol.Message) ([]protocol.Message, error) { return nil, nil }

func (p *Empty) View(width, height int) string { return "" }
