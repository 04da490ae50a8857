package panels

import (
	"sort"
	"strings"

	"github.com/go-go-golems/mldash/pkg/config"
	"github.com/pkg/errors"
)

type Registry struct {
	byName map[string]Descriptor
}

func NewRegistry(ds ...Descriptor) (*Registry, error) {
	r := &Registry{byName: map[string]Descriptor{}}
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Default returns a registry holding every built-in panel.
func Default() *Registry {
	r, err := NewRegistry(
		lossMetricsGraphDescriptor(),
		lossMetricsNumericalDescriptor(),
		statusDescriptor(),
		controlButtonsDescriptor(),
		sampleImagesDescriptor("TrainingSetSampleImages", "Training Set Sample Images", true),
		sampleImagesDescriptor("TestSetSampleImages", "Test Set Sample Images", false),
		predImagesDescriptor(),
		wrongPredImagesDescriptor(),
		eventLogDescriptor(),
		emptyDescriptor(),
	)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return errors.New("panel descriptor without name")
	}
	if d.New == nil {
		return errors.Errorf("panel %s has no constructor", d.Name)
	}
	if _, ok := r.byName[d.Name]; ok {
		return errors.Errorf("panel %s registered twice", d.Name)
	}
	r.byName[d.Name] = d
	return nil
}

func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Validate checks module names and options without constructing panels.
func (r *Registry) Validate(doc *config.Document) error {
	for _, spec := range doc.Panels() {
		d, ok := r.byName[spec.Name]
		if !ok {
			return r.unknown(spec)
		}
		if _, err := d.Schema.Resolve(spec.Options); err != nil {
			return errors.Wrapf(err, "module %s at row %d column %d", spec.Name, spec.Row, spec.Col)
		}
	}
	return nil
}

// Build constructs one panel per grid cell in row-major order. Either every
// panel is built or an error is returned.
func (r *Registry) Build(doc *config.Document) ([]Instance, error) {
	if err := r.Validate(doc); err != nil {
		return nil, err
	}
	specs := doc.Panels()
	out := make([]Instance, 0, len(specs))
	for i, spec := range specs {
		d := r.byName[spec.Name]
		opts, err := d.Schema.Resolve(spec.Options)
		if err != nil {
			return nil, errors.Wrapf(err, "module %s", spec.Name)
		}
		s := Surface{Index: i, Row: spec.Row, Col: spec.Col}
		p, err := d.New(s, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "create module %s at row %d column %d", spec.Name, spec.Row, spec.Col)
		}
		out = append(out, Instance{Descriptor: d, Spec: spec, Surface: s, Panel: p})
	}
	return out, nil
}

func (r *Registry) unknown(spec config.PanelSpec) error {
	return errors.Errorf("module %q at row %d column %d is not valid (known: %s)",
		spec.Name, spec.Row, spec.Col, strings.Join(r.Names(), ", "))
}
