package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const gridYAML = `
title: Demo
maxLatency: 100ms
modules:
  - - [LossMetricsGraph, {metrics: [loss, accuracy]}]
    - [StatusModule, {}]
  - - [PredImages, {width: 8, height: 8, rows: 2, cols: 3}]
    - EmptyModule
`

func TestParseYAMLGrid(t *testing.T) {
	doc, err := Parse([]byte(gridYAML), FormatYAML)
	require.NoError(t, err)
	require.Equal(t, "Demo", doc.Title)
	require.Equal(t, 100*time.Millisecond, doc.MaxLatency)
	require.Equal(t, 2, doc.Width())
	require.Equal(t, 2, doc.Height())

	panels := doc.Panels()
	require.Len(t, panels, 4)
	names := []string{}
	for _, p := range panels {
		names = append(names, p.Name)
	}
	require.Equal(t, []string{"LossMetricsGraph", "StatusModule", "PredImages", "EmptyModule"}, names)
	require.Equal(t, 1, panels[2].Row)
	require.Equal(t, 0, panels[2].Col)
	require.Equal(t, 3, panels[2].Options["cols"])
}

func TestParseJSONOriginalLayout(t *testing.T) {
	js := `{"modules": [[["LossMetricsGraph", {}], ["ControlButtons", {}]]]}`
	doc, err := Parse([]byte(js), FormatJSON)
	require.NoError(t, err)
	require.Equal(t, DefaultTitle, doc.Title)
	require.Equal(t, DefaultMaxLatency, doc.MaxLatency)
	require.Equal(t, 2, doc.Width())
	require.Equal(t, 1, doc.Height())
}

func TestParseTOML(t *testing.T) {
	src := `
title = "toml"
maxLatency = 50

[[modules]]
[[modules]]
`
	_, err := Parse([]byte(src), FormatTOML)
	require.Error(t, err)

	src = `
title = "toml"
maxLatency = 50
modules = [
  [ ["StatusModule", {}], ["EmptyModule", {}] ],
]
`
	doc, err := Parse([]byte(src), FormatTOML)
	require.NoError(t, err)
	require.Equal(t, 50*time.Millisecond, doc.MaxLatency)
	require.Equal(t, 2, doc.Width())
}

func TestParseMapCells(t *testing.T) {
	src := `
modules:
  - - module: WrongPredImages
      options: {width: 4, height: 4, rows: 1, cols: 1}
`
	doc, err := Parse([]byte(src), FormatYAML)
	require.NoError(t, err)
	require.Equal(t, "WrongPredImages", doc.Rows[0][0].Name)
	require.Equal(t, 4, doc.Rows[0][0].Options["width"])
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"missing modules", `title: x`, "modules key missing"},
		{"empty modules", `modules: []`, "no modules found"},
		{"ragged", "modules:\n  - [StatusModule, EmptyModule]\n  - [StatusModule]\n", "do not form a grid"},
		{"bad cell", "modules:\n  - [[1, {}]]\n", "module name must be a string"},
		{"bad options", "modules:\n  - [[StatusModule, 3]]\n", "expected a mapping"},
		{"bad latency", "maxLatency: soon\nmodules:\n  - [StatusModule]\n", "maxLatency"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.src), FormatYAML)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dash.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"modules": [["StatusModule"]]}`), 0o644))
	doc, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "StatusModule", doc.Rows[0][0].Name)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestSchemaResolve(t *testing.T) {
	s := Schema{
		{Key: "width", Type: TypeInt, Required: true},
		{Key: "color", Type: TypeString, Default: "green"},
		{Key: "metrics", Type: TypeStringList, Default: []string{"loss"}},
		{Key: "scale", Type: TypeFloat},
	}

	opts, err := s.Resolve(map[string]any{"width": int64(8), "scale": 2})
	require.NoError(t, err)
	require.Equal(t, 8, opts.Int("width"))
	require.Equal(t, "green", opts.String("color"))
	require.Equal(t, []string{"loss"}, opts.Strings("metrics"))
	require.Equal(t, 2.0, opts.Float("scale"))

	_, err = s.Resolve(map[string]any{})
	require.ErrorContains(t, err, `missing required option "width"`)

	_, err = s.Resolve(map[string]any{"width": 2.5})
	require.ErrorContains(t, err, "expected int")

	_, err = s.Resolve(map[string]any{"width": 1, "colour": "red"})
	require.ErrorContains(t, err, "unknown options: colour")

	require.Len(t, s.Describe(), 4)
}
