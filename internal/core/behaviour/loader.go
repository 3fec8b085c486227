package behaviour

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk form of a set of behaviour templates, in priority
// order.
type Document struct {
	Behaviours []Spec `json:"behaviours" yaml:"behaviours"`
}

// Spec describes one template. Enabled defaults to true when omitted.
type Spec struct {
	Name       string     `json:"name" yaml:"name"`
	Enabled    *bool      `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Action     NodeSpec   `json:"action" yaml:"action"`
	Conditions []NodeSpec `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// NodeSpec names a registered condition or action kind and its parameters.
type NodeSpec struct {
	Type   string         `json:"type" yaml:"type"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// LoadJSON loads a document from JSON.
func LoadJSON(r io.Reader) (*Document, error) {
	var d Document
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadYAML loads a document from YAML.
func LoadYAML(r io.Reader) (*Document, error) {
	var d Document
	if err := yaml.NewDecoder(r).Decode(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadFile picks the decoder from the file extension.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(f)
	case ".yaml", ".yml":
		return LoadYAML(f)
	default:
		return nil, fmt.Errorf("unsupported behaviour asset extension: %s", path)
	}
}

// Build instantiates templates through the registry. All problems are
// reported together.
func (d *Document) Build(r Registry) ([]*Template, error) {
	seen := make(map[string]struct{}, len(d.Behaviours))
	out := make([]*Template, 0, len(d.Behaviours))
	var errs error
	for i, spec := range d.Behaviours {
		if spec.Name == "" {
			errs = errors.Join(errs, fmt.Errorf("%w: behaviour %d has no name", ErrInvalidConfig, i))
			continue
		}
		if _, dup := seen[spec.Name]; dup {
			errs = errors.Join(errs, fmt.Errorf("%w: duplicate behaviour %q", ErrInvalidConfig, spec.Name))
			continue
		}
		seen[spec.Name] = struct{}{}

		t, err := spec.build(r)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("behaviour %q: %w", spec.Name, err))
			continue
		}
		out = append(out, t)
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

func (s Spec) build(r Registry) (*Template, error) {
	if s.Action.Type == "" {
		return nil, fmt.Errorf("%w: action type is required", ErrInvalidConfig)
	}
	action, err := r.NewAction(s.Action.Type, s.Action.Params)
	if err != nil {
		return nil, err
	}
	conds := make([]Condition, 0, len(s.Conditions))
	for i, cs := range s.Conditions {
		c, err := r.NewCondition(cs.Type, cs.Params)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}
		conds = append(conds, c)
	}
	enabled := true
	if s.Enabled != nil {
		enabled = *s.Enabled
	}
	t := NewTemplate(s.Name, action, enabled, conds...)
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
