package aggregation

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mind-engage/cityprosperity/internal/band"
	"github.com/mind-engage/cityprosperity/internal/indicator"
)

//go:embed hierarchy.yaml
var hierarchyYAML []byte

type SubDimension struct {
	Key        string   `yaml:"key" json:"key"`
	Name       string   `yaml:"name" json:"name"`
	Indicators []string `yaml:"indicators" json:"indicators"`
}

type Dimension struct {
	Key           string         `yaml:"key" json:"key"`
	Name          string         `yaml:"name" json:"name"`
	SubDimensions []SubDimension `yaml:"sub_dimensions" json:"sub_dimensions"`
}

// Hierarchy is the fixed Dimension -> Sub-Dimension -> Indicator tree.
type Hierarchy struct {
	Dimensions []Dimension `json:"dimensions"`

	banding map[string]band.Banding
}

var (
	defaultOnce      sync.Once
	defaultHierarchy *Hierarchy
)

// Default returns the embedded hierarchy checked against indicator.Default().
func Default() *Hierarchy {
	defaultOnce.Do(func() {
		h, err := LoadHierarchy(hierarchyYAML, indicator.Default())
		if err != nil {
			panic("aggregation: embedded hierarchy: " + err.Error())
		}
		defaultHierarchy = h
	})
	return defaultHierarchy
}

// LoadHierarchy parses a YAML tree and checks it against cat: every key must be
// known, every catalog indicator must sit in exactly one sub-dimension and no
// group may be empty.
func LoadHierarchy(data []byte, cat *indicator.Catalog) (*Hierarchy, error) {
	var h Hierarchy
	var doc struct {
		Dimensions []Dimension `yaml:"dimensions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse hierarchy: %w", err)
	}
	if len(doc.Dimensions) == 0 {
		return nil, errors.New("hierarchy has no dimensions")
	}
	h.Dimensions = doc.Dimensions
	h.banding = map[string]band.Banding{}

	groups := map[string]bool{}
	for _, d := range h.Dimensions {
		if d.Key == "" || groups[d.Key] {
			return nil, fmt.Errorf("dimension key %q is empty or repeated", d.Key)
		}
		groups[d.Key] = true
		if len(d.SubDimensions) == 0 {
			return nil, fmt.Errorf("dimension %q has no sub-dimensions", d.Key)
		}
		for _, sd := range d.SubDimensions {
			if sd.Key == "" || groups[sd.Key] {
				return nil, fmt.Errorf("sub-dimension key %q is empty or repeated", sd.Key)
			}
			groups[sd.Key] = true
			if len(sd.Indicators) == 0 {
				return nil, fmt.Errorf("sub-dimension %q has no indicators", sd.Key)
			}
			for _, key := range sd.Indicators {
				def, ok := cat.Get(key)
				if !ok {
					return nil, fmt.Errorf("sub-dimension %q: %w: %s", sd.Key, indicator.ErrUnknownIndicator, key)
				}
				if _, dup := h.banding[key]; dup {
					return nil, fmt.Errorf("indicator %q placed twice", key)
				}
				h.banding[key] = def.Banding
			}
		}
	}
	for _, def := range cat.List() {
		if _, ok := h.banding[def.Key]; !ok {
			return nil, fmt.Errorf("indicator %q not placed in any sub-dimension", def.Key)
		}
	}
	return &h, nil
}

// SubDimensionOf returns the dimension and sub-dimension holding key.
func (h *Hierarchy) SubDimensionOf(key string) (dim, sub string, ok bool) {
	for _, d := range h.Dimensions {
		for _, sd := range d.SubDimensions {
			for _, k := range sd.Indicators {
				if k == key {
					return d.Key, sd.Key, true
				}
			}
		}
	}
	return "", "", false
}
