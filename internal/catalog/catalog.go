// Package catalog describes the reason kinds offered to classifiers and reviewers.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sprite-ai/reqevo/internal/model"
)

//go:embed reasons.yaml
var defaultYAML []byte

// Entry describes one reason kind.
type Entry struct {
	Kind        model.ReasonKind `yaml:"kind" json:"kind"`
	Label       string           `yaml:"label" json:"label"`
	Description string           `yaml:"description" json:"description"`
	Aliases     []string         `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// Catalog is an ordered list of reason entries.
type Catalog struct {
	Reasons []Entry `yaml:"reasons"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in reason catalog: %v", err))
	}
	return c
}

// Parse decodes a catalog and checks that every entry names a selectable
// kind exactly once.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	if len(c.Reasons) == 0 {
		return nil, fmt.Errorf("catalog has no reasons")
	}

	seen := make(map[model.ReasonKind]bool, len(c.Reasons))
	for _, e := range c.Reasons {
		if !e.Kind.Valid() {
			return nil, fmt.Errorf("catalog entry %q is not a selectable reason", e.Kind)
		}
		if seen[e.Kind] {
			return nil, fmt.Errorf("catalog lists %q twice", e.Kind)
		}
		seen[e.Kind] = true
	}
	return &c, nil
}

// Lookup returns the entry for a kind.
func (c *Catalog) Lookup(kind model.ReasonKind) (Entry, bool) {
	for _, e := range c.Reasons {
		if e.Kind == kind {
			return e, true
		}
	}
	return Entry{}, false
}

// Kinds returns the catalog kinds in order.
func (c *Catalog) Kinds() []model.ReasonKind {
	out := make([]model.ReasonKind, len(c.Reasons))
	for i, e := range c.Reasons {
		out[i] = e.Kind
	}
	return out
}

// Labels returns the display labels in order, for prompts and JSON schemas.
func (c *Catalog) Labels() []string {
	out := make([]string, len(c.Reasons))
	for i, e := range c.Reasons {
		out[i] = e.Label
	}
	return out
}

// PromptList renders the catalog as a bulleted list for a classifier prompt.
func (c *Catalog) PromptList() string {
	var b strings.Builder
	for _, e := range c.Reasons {
		fmt.Fprintf(&b, "- %s: %s\n", e.Label, e.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}
