package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTitle      = "Training Dashboard"
	DefaultMaxLatency = 250 * time.Millisecond
)

type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// PanelSpec is one cell of the dashboard grid.
type PanelSpec struct {
	Name    string
	Options map[string]any
	Row     int
	Col     int
}

// Document is a parsed dashboard layout. Rows is rectangular.
type Document struct {
	Title      string
	MaxLatency time.Duration
	Rows       [][]PanelSpec
}

func (d *Document) Height() int { return len(d.Rows) }

func (d *Document) Width() int {
	if len(d.Rows) == 0 {
		return 0
	}
	return len(d.Rows[0])
}

// Panels returns the grid cells in row-major order.
func (d *Document) Panels() []PanelSpec {
	out := make([]PanelSpec, 0, d.Width()*d.Height())
	for _, row := range d.Rows {
		out = append(out, row...)
	}
	return out
}

func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	case ".json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

func Load(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read dashboard config")
	}
	doc, err := Parse(b, FormatFromPath(path))
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return doc, nil
}

// Parse decodes a layout document. JSON is read by the YAML decoder.
func Parse(b []byte, format Format) (*Document, error) {
	raw := map[string]any{}
	switch format {
	case FormatTOML:
		if _, err := toml.NewDecoder(bytes.NewReader(b)).Decode(&raw); err != nil {
			return nil, errors.Wrap(err, "parse toml")
		}
	case FormatYAML, FormatJSON, "":
		if err := yaml.Unmarshal(b, &raw); err != nil {
			return nil, errors.Wrapf(err, "parse %s", format)
		}
	default:
		return nil, errors.Errorf("unsupported config format %q", format)
	}
	return FromMap(raw)
}

// FromMap builds a Document from a decoded generic document.
func FromMap(raw map[string]any) (*Document, error) {
	doc := &Document{Title: DefaultTitle, MaxLatency: DefaultMaxLatency}

	if v, ok := raw["title"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, errors.Errorf("title must be a string, got %T", v)
		}
		doc.Title = s
	}
	if v, ok := raw["maxLatency"]; ok {
		d, err := parseDuration(v)
		if err != nil {
			return nil, errors.Wrap(err, "maxLatency")
		}
		doc.MaxLatency = d
	}

	modules, ok := raw["modules"]
	if !ok {
		return nil, errors.New("modules key missing in dashboard config")
	}
	rows, ok := modules.([]any)
	if !ok {
		return nil, errors.Errorf("modules must be a list of rows, got %T", modules)
	}
	if len(rows) == 0 {
		return nil, errors.New("no modules found in dashboard config")
	}

	width := -1
	for r, rowv := range rows {
		row, ok := rowv.([]any)
		if !ok {
			return nil, errors.Errorf("modules row %d must be a list, got %T", r, rowv)
		}
		if width < 0 {
			width = len(row)
			if width == 0 {
				return nil, errors.New("no modules found in dashboard config: first row is empty")
			}
		}
		if len(row) != width {
			return nil, errors.Errorf("modules do not form a grid: row %d has %d modules, row 0 has %d", r, len(row), width)
		}
		specs := make([]PanelSpec, 0, len(row))
		for c, cell := range row {
			spec, err := parseCell(cell)
			if err != nil {
				return nil, errors.Wrapf(err, "module at row %d column %d", r, c)
			}
			spec.Row, spec.Col = r, c
			specs = append(specs, spec)
		}
		doc.Rows = append(doc.Rows, specs)
	}
	return doc, nil
}

// parseCell accepts "Name", ["Name", {options}] or {module: Name, options: {...}}.
func parseCell(v any) (PanelSpec, error) {
	switch t := v.(type) {
	case string:
		return PanelSpec{Name: t, Options: map[string]any{}}, nil
	case []any:
		if len(t) == 0 || len(t) > 2 {
			return PanelSpec{}, errors.Errorf("expected [name, options], got %d elements", len(t))
		}
		name, ok := t[0].(string)
		if !ok {
			return PanelSpec{}, errors.Errorf("module name must be a string, got %T", t[0])
		}
		opts := map[string]any{}
		if len(t) == 2 && t[1] != nil {
			m, err := asMap(t[1])
			if err != nil {
				return PanelSpec{}, errors.Wrapf(err, "options of %s", name)
			}
			opts = m
		}
		return PanelSpec{Name: name, Options: opts}, nil
	case map[string]any:
		name, _ := t["module"].(string)
		if name == "" {
			name, _ = t["name"].(string)
		}
		if name == "" {
			return PanelSpec{}, errors.New("module entry has no module name")
		}
		opts := map[string]any{}
		if o, ok := t["options"]; ok && o != nil {
			m, err := asMap(o)
			if err != nil {
				return PanelSpec{}, errors.Wrapf(err, "options of %s", name)
			}
			opts = m
		}
		return PanelSpec{Name: name, Options: opts}, nil
	}
	return PanelSpec{}, errors.Errorf("unsupported module entry %T", v)
}

func asMap(v any) (map[string]any, error) {
	switch t := v.(type) {
	case map[string]any:
		return t, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = val
		}
		return out, nil
	}
	return nil, errors.Errorf("expected a mapping, got %T", v)
}

func parseDuration(v any) (time.Duration, error) {
	switch t := v.(type) {
	case string:
		d, err := time.ParseDuration(t)
		if err != nil {
			return 0, errors.Wrap(err, "parse duration")
		}
		return d, nil
	case int:
		return time.Duration(t) * time.Millisecond, nil
	case int64:
		return time.Duration(t) * time.Millisecond, nil
	case float64:
		return time.Duration(t * float64(time.Millisecond)), nil
	}
	return 0, errors.Errorf("expected a duration string or milliseconds, got %T", v)
}
