package panels

import (
	"fmt"

	"github.com/go-go-golems/mldash/pkg/config"
	"github.com/go-go-golems/mldash/pkg/protocol"
	"github.com/go-go-golems/mldash/pkg/tui/styles"
	"github.com/pkg/errors"
)

func imageSchema(extra ...config.Option) config.Schema {
	s := config.Schema{
		{Key: "width", Type: config.TypeInt, Required: true, Help: "image width in pixels"},
		{Key: "height", Type: config.TypeInt, Required: true, Help: "image height in pixels"},
		{Key: "rows", Type: config.TypeInt, Required: true, Help: "grid rows"},
		{Key: "cols", Type: config.TypeInt, Required: true, Help: "grid columns"},
		{Key: "title", Type: config.TypeString},
	}
	return append(s, extra...)
}

type imagePanel struct {
	title string
	grid  *ImageGrid
	imgW  int
	imgH  int
}

func newImagePanel(opts config.Options, defaultTitle string) (imagePanel, error) {
	w, h := opts.Int("width"), opts.Int("height")
	rows, cols := opts.Int("rows"), opts.Int("cols")
	if w <= 0 || h <= 0 {
		return imagePanel{}, errors.Errorf("image size must be positive, got %dx%d", w, h)
	}
	if rows <= 0 || cols <= 0 {
		return imagePanel{}, errors.Errorf("grid size must be positive, got %dx%d", rows, cols)
	}
	title := opts.String("title")
	if title == "" {
		title = defaultTitle
	}
	return imagePanel{title: title, grid: NewImageGrid(w, h, rows, cols), imgW: w, imgH: h}, nil
}

func (p *imagePanel) Title() string { return p.title }

func (p *imagePanel) View(width, height int) string {
	return p.grid.Render(width, height)
}

// readSamples extracts x and y from a sample response and checks that the
// features match the configured image size.
func (p *imagePanel) readSamples(msg protocol.Message) ([][]float64, []int, error) {
	x, err := msg.Matrix(protocol.KeyX)
	if err != nil {
		return nil, nil, err
	}
	y, err := msg.Ints(protocol.KeyY)
	if err != nil {
		return nil, nil, err
	}
	if len(y) < len(x) {
		return nil, nil, &protocol.MalformedMessageError{Kind: msg.Kind, Key: protocol.KeyY,
			Reason: fmt.Sprintf("has %d labels for %d samples", len(y), len(x))}
	}
	for i, row := range x {
		if len(row) != p.imgW*p.imgH {
			return nil, nil, &protocol.MalformedMessageError{Kind: msg.Kind, Key: protocol.KeyX,
				Reason: fmt.Sprintf("sample %d has %d values, expected %dx%d", i, len(row), p.imgW, p.imgH)}
		}
	}
	return x, y, nil
}

// SampleImages shows raw samples from the training or test set.
type SampleImages struct {
	imagePanel
	kind protocol.Kind
}

func sampleImagesDescriptor(name, title string, train bool) Descriptor {
	kind := protocol.KindTestSetSample
	if train {
		kind = protocol.KindTrainSetSample
	}
	return Descriptor{
		Name:        name,
		Description: "grid of " + title,
		Schema:      imageSchema(),
		New: func(s Surface, opts config.Options) (Panel, error) {
			base, err := newImagePanel(opts, title)
			if err != nil {
				return nil, err
			}
			return &SampleImages{imagePanel: base, kind: kind}, nil
		},
	}
}

func (p *SampleImages) Init() []protocol.Message {
	return []protocol.Message{protocol.SampleRequest(p.kind, p.grid.Capacity())}
}

func (p *SampleImages) Update(msg protocol.Message) ([]protocol.Message, error) {
	if msg.Kind != p.kind {
		return nil, nil
	}
	x, y, err := p.readSamples(msg)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(x))
	for i := range x {
		texts[i] = fmt.Sprint(y[i])
	}
	p.grid.Set(x, texts, nil)
	return nil, nil
}

// PredImages shows predictions next to ground truth, coloured by correctness.
// It re-requests a fresh sample at every epoch end.
type PredImages struct {
	imagePanel
	kind           protocol.Kind
	correctColor   string
	incorrectColor string
}

func colorOptions() []config.Option {
	return []config.Option{
		{Key: "correctcolor", Type: config.TypeString, Default: "green"},
		{Key: "incorrectcolor", Type: config.TypeString, Default: "red"},
		{Key: "train", Type: config.TypeBool, Default: false, Help: "sample the training set"},
	}
}

func predImagesDescriptor() Descriptor {
	return Descriptor{
		Name:        "PredImages",
		Description: "sample predictions (pred : truth)",
		Schema:      imageSchema(colorOptions()...),
		New: func(s Surface, opts config.Options) (Panel, error) {
			title := "Sample Predictions"
			kind := protocol.KindPredSample
			if opts.Bool("train") {
				title = "Sample Predictions (train)"
				kind = protocol.KindPredSampleTrain
			}
			base, err := newImagePanel(opts, title)
			if err != nil {
				return nil, err
			}
			return &PredImages{
				imagePanel:     base,
				kind:           kind,
				correctColor:   opts.String("correctcolor"),
				incorrectColor: opts.String("incorrectcolor"),
			}, nil
		},
	}
}

func (p *PredImages) Update(msg protocol.Message) ([]protocol.Message, error) {
	switch msg.Kind {
	case p.kind:
		x, y, err := p.readSamples(msg)
		if err != nil {
			return nil, err
		}
		pred, err := msg.Ints(protocol.KeyPred)
		if err != nil {
			return nil, err
		}
		if len(pred) < len(x) {
			return nil, &protocol.MalformedMessageError{Kind: msg.Kind, Key: protocol.KeyPred,
				Reason: fmt.Sprintf("has %d predictions for %d samples", len(pred), len(x))}
		}
		texts := make([]string, len(x))
		colors := make([]string, len(x))
		for i := range x {
			ok := pred[i] == y[i]
			texts[i] = fmt.Sprintf("%s %d : %d", styles.PredictionIcon(ok), pred[i], y[i])
			colors[i] = p.correctColor
			if !ok {
				colors[i] = p.incorrectColor
			}
		}
		p.grid.Set(x, texts, colors)
	case protocol.KindEpochEnd:
		return []protocol.Message{protocol.SampleRequest(p.kind, p.grid.Capacity())}, nil
	}
	return nil, nil
}

// WrongPredImages shows only mispredicted samples.
type WrongPredImages struct {
	imagePanel
	kind           protocol.Kind
	attempts       int
	incorrectColor string
}

func wrongPredImagesDescriptor() Descriptor {
	extra := append(colorOptions(),
		config.Option{Key: "attempts", Type: config.TypeInt, Default: 1000, Help: "rows scanned for mistakes"})
	return Descriptor{
		Name:        "WrongPredImages",
		Description: "incorrect predictions (pred : truth)",
		Schema:      imageSchema(extra...),
		New: func(s Surface, opts config.Options) (Panel, error) {
			title := "Incorrect Predictions"
			kind := protocol.KindWrongPredSample
			if opts.Bool("train") {
				title = "Incorrect Predictions (train)"
				kind = protocol.KindWrongPredSampleTrain
			}
			if opts.Int("attempts") <= 0 {
				return nil, errors.Errorf("attempts must be positive, got %d", opts.Int("attempts"))
			}
			base, err := newImagePanel(opts, title)
			if err != nil {
				return nil, err
			}
			return &WrongPredImages{
				imagePanel:     base,
				kind:           kind,
				attempts:       opts.Int("attempts"),
				incorrectColor: opts.String("incorrectcolor"),
			}, nil
		},
	}
}

func (p *WrongPredImages) Update(msg protocol.Message) ([]protocol.Message, error) {
	switch msg.Kind {
	case p.kind:
		x, y, err := p.readSamples(msg)
		if err != nil {
			return nil, err
		}
		pred, err := msg.Ints(protocol.KeyPred)
		if err != nil {
			return nil, err
		}
		if len(pred) < len(x) {
			return nil, &protocol.MalformedMessageError{Kind: msg.Kind, Key: protocol.KeyPred,
				Reason: fmt.Sprintf("has %d predictions for %d samples", len(pred), len(x))}
		}
		texts := make([]string, len(x))
		colors := make([]string, len(x))
		for i := range x {
			texts[i] = fmt.Sprintf("%d : %d", pred[i], y[i])
			colors[i] = p.incorrectColor
		}
		p.grid.Set(x, texts, colors)
	case protocol.KindEpochEnd:
		return []protocol.Message{protocol.WrongPredRequest(p.kind, p.grid.Capacity(), p.attempts)}, nil
	}
	return nil, nil
}
