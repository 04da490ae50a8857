package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLayouts(t *testing.T) {
	doc, err := loadLayout("")
	require.NoError(t, err)
	require.Equal(t, 3, doc.Height())
	require.Equal(t, 3, doc.Width())

	for _, path := range []string{"../../examples/dashboard.yaml", "../../examples/dashboard.toml"} {
		_, err := loadLayout(path)
		require.NoError(t, err, path)
	}

	_, err = loadLayout("../../examples/missing.yaml")
	require.Error(t, err)
}

func TestHeldWriter(t *testing.T) {
	var out bytes.Buffer
	w := &heldWriter{out: &out}

	_, _ = w.Write([]byte("a\n"))
	w.hold()
	_, _ = w.Write([]byte("b\n"))
	require.Equal(t, "a\n", out.String())

	w.release()
	require.Equal(t, "a\nb\n", out.String())
}

func TestFormatMetrics(t *testing.T) {
	require.Equal(t, "accuracy=0.5000 loss=0.2500", formatMetrics(map[string]float64{"loss": 0.25, "accuracy": 0.5}))
	require.Empty(t, formatMetrics(nil))
}
