package indicator

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mind-engage/cityprosperity/internal/band"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Input is one named raw measurement. Rule is a validator tag checked before
// any arithmetic, e.g. "gt=0" for denominators.
type Input struct {
	Name string `yaml:"name" json:"name"`
	Rule string `yaml:"rule" json:"rule,omitempty"`
}

// RawFormula derives the raw indicator value from the inputs.
type RawFormula struct {
	Kind    string  `yaml:"kind" json:"kind"` // direct|ratio|land_use_efficiency
	Input   string  `yaml:"input" json:"input,omitempty"`
	Num     string  `yaml:"num" json:"num,omitempty"`
	Den     string  `yaml:"den" json:"den,omitempty"`
	Scale   float64 `yaml:"scale" json:"scale,omitempty"`
	Bounded bool    `yaml:"bounded" json:"bounded,omitempty"` // num must not exceed den
}

// Definition is the static description of one indicator.
type Definition struct {
	Key             string       `yaml:"key" json:"key"`
	Name            string       `yaml:"name" json:"name"`
	Unit            string       `yaml:"unit" json:"unit"`
	Inputs          []Input      `yaml:"inputs" json:"inputs"`
	Raw             RawFormula   `yaml:"raw" json:"raw"`
	Standardization Params       `yaml:"standardization" json:"standardization"`
	Banding         band.Banding `yaml:"banding" json:"banding"`
}

// Catalog is the read-only indicator table.
type Catalog struct {
	defs     []Definition
	byKey    map[string]int
	validate *validator.Validate
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the embedded catalog. The embedded table is checked by the
// package tests, so a load failure here is a programming error.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := LoadCatalog(catalogYAML)
		if err != nil {
			panic("indicator: embedded catalog: " + err.Error())
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// LoadCatalog parses and validates a YAML catalog.
func LoadCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Indicators []Definition `yaml:"indicators"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(doc.Indicators) == 0 {
		return nil, errors.New("catalog has no indicators")
	}
	c := &Catalog{
		defs:     doc.Indicators,
		byKey:    make(map[string]int, len(doc.Indicators)),
		validate: validator.New(),
	}
	for i := range c.defs {
		d := &c.defs[i]
		if err := c.check(d); err != nil {
			return nil, fmt.Errorf("indicator %q: %w", d.Key, err)
		}
		if _, dup := c.byKey[d.Key]; dup {
			return nil, fmt.Errorf("duplicate indicator key %q", d.Key)
		}
		c.byKey[d.Key] = i
	}
	return c, nil
}

func (c *Catalog) check(d *Definition) error {
	if strings.TrimSpace(d.Key) == "" {
		return errors.New("key is required")
	}
	if strings.HasSuffix(d.Key, StandardizedSuffix) || strings.HasSuffix(d.Key, CommentSuffix) {
		return errors.New("key collides with derived field suffix")
	}
	if len(d.Inputs) == 0 {
		return errors.New("no inputs")
	}
	names := map[string]bool{}
	for _, in := range d.Inputs {
		if in.Name == "" {
			return errors.New("input name is required")
		}
		if names[in.Name] {
			return fmt.Errorf("duplicate input %q", in.Name)
		}
		names[in.Name] = true
		if err := c.checkRule(in.Rule); err != nil {
			return fmt.Errorf("input %q: %w", in.Name, err)
		}
	}
	if err := checkRaw(d.Raw, names); err != nil {
		return err
	}
	s, ok := shapes[d.Standardization.Shape]
	if !ok {
		return fmt.Errorf("unknown shape %q", d.Standardization.Shape)
	}
	if err := s.check(d.Standardization); err != nil {
		return fmt.Errorf("shape %s: %w", d.Standardization.Shape, err)
	}
	b, ok := band.ParseBanding(string(d.Banding))
	if !ok {
		return fmt.Errorf("unknown banding %q", d.Banding)
	}
	d.Banding = b
	return nil
}

// checkRule rejects tags the validator does not know; Var panics on those.
func (c *Catalog) checkRule(rule string) (err error) {
	if rule == "" {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bad rule %q: %v", rule, r)
		}
	}()
	_ = c.validate.Var(1.0, rule)
	return nil
}

// List returns the definitions in catalog order.
func (c *Catalog) List() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Get looks up a definition by key.
func (c *Catalog) Get(key string) (Definition, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}

// Has reports whether key is in the catalog.
func (c *Catalog) Has(key string) bool {
	_, ok := c.byKey[key]
	return ok
}
