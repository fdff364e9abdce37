package routing

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Dialogue is the configuration supplied alongside a process diagram.
type Dialogue struct {
	// Hooks binds node ids or names to registered hook names.
	Hooks map[string]string `mapstructure:"hooks"`
	// Routes holds the per-node overrides.
	Routes []Rule `mapstructure:"routes"`
}

// Table builds a routing table from the configured routes.
func (d *Dialogue) Table() *Table {
	if d == nil {
		return NewTable()
	}
	return NewTable(d.Routes...)
}

// LoadFile reads a dialogue file.
func LoadFile(path string) (*Dialogue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dialogue file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a YAML dialogue document. An empty document yields an empty dialogue.
func Load(r io.Reader) (*Dialogue, error) {
	var raw map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse dialogue yaml: %w", err)
	}

	var d Dialogue
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &d,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid dialogue: %w", err)
	}

	for i, rule := range d.Routes {
		if strings.TrimSpace(rule.Node) == "" {
			return nil, fmt.Errorf("invalid dialogue: route %d has no node", i)
		}
		if rule.Capture != nil && rule.Capture.Key == "" {
			return nil, fmt.Errorf("invalid dialogue: capture on %q has no key", rule.Node)
		}
		if rule.OnNegative != nil && rule.OnNegative.ResetTo == "" {
			return nil, fmt.Errorf("invalid dialogue: on_negative on %q has no reset_to", rule.Node)
		}
	}
	return &d, nil
}
