package main

import (
	_ "embed"
	"os"

	"github.com/go-go-golems/mldash/pkg/config"
	"github.com/go-go-golems/mldash/pkg/panels"
	"github.com/mattn/go-isatty"
)

//go:embed default_dashboard.yaml
var defaultLayout []byte

// loadLayout reads and validates a dashboard layout; an empty path selects
// the built-in one.
func loadLayout(path string) (*config.Document, error) {
	var (
		doc *config.Document
		err error
	)
	if path == "" {
		doc, err = config.Parse(defaultLayout, config.FormatYAML)
	} else {
		doc, err = config.Load(path)
	}
	if err != nil {
		return nil, err
	}
	if err := panels.Default().Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func interactive(headless bool) bool {
	if headless {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
