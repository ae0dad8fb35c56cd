package indicator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mind-engage/cityprosperity/internal/band"
)

// Derived record field suffixes: {key}, {key}_standardized, {key}_comment.
const (
	StandardizedSuffix = "_standardized"
	CommentSuffix      = "_comment"
)

// Result is the outcome of standardizing one indicator.
type Result struct {
	Raw          float64    `json:"raw"`
	Standardized float64    `json:"standardized"`
	Comment      band.Label `json:"comment"`
}

// Fields returns the three record fields derived from r.
func (r Result) Fields(key string) map[string]any {
	return map[string]any{
		key:                      r.Raw,
		key + StandardizedSuffix: r.Standardized,
		key + CommentSuffix:      string(r.Comment),
	}
}

// Standardize validates the inputs, derives the raw value and maps it onto
// [0,100]. It is pure: identical inputs give identical results.
func (c *Catalog) Standardize(key string, inputs map[string]float64) (Result, error) {
	i, ok := c.byKey[key]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownIndicator, key)
	}
	d := c.defs[i]
	if err := c.validateInputs(d, inputs); err != nil {
		return Result{}, err
	}
	raw, err := rawValue(d.Key, d.Raw, inputs)
	if err != nil {
		return Result{}, err
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return Result{}, invalid(d.Key, "raw", "derived value is not finite")
	}
	s := Clamp(shapes[d.Standardization.Shape].eval(raw, d.Standardization))
	return Result{
		Raw:          raw,
		Standardized: s,
		Comment:      d.Banding.Apply(s),
	}, nil
}

func (c *Catalog) validateInputs(d Definition, inputs map[string]float64) error {
	for _, in := range d.Inputs {
		v, ok := inputs[in.Name]
		if !ok {
			return invalid(d.Key, in.Name, "is required")
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalid(d.Key, in.Name, "must be a finite number")
		}
		if in.Rule == "" {
			continue
		}
		if err := c.validate.Var(v, in.Rule); err != nil {
			return invalid(d.Key, in.Name, ruleReason(err, in.Rule))
		}
	}
	return nil
}

func ruleReason(err error, rule string) string {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		fe := ves[0]
		if fe.Param() != "" {
			return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
		}
		return "failed " + fe.Tag()
	}
	return "failed " + rule
}

// NumericInputs converts JSON-decoded values into float64 inputs. Strings,
// booleans, nulls and nested values fail with a ValidationError naming the
// field, as do two keys that are equal once trimmed. Keys are checked in
// sorted order so the reported field is stable.
func NumericInputs(indicator string, raw map[string]any) (map[string]float64, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]float64, len(raw))
	for _, k := range keys {
		name := strings.TrimSpace(k)
		if _, dup := out[name]; dup {
			return nil, invalid(indicator, name, "given more than once")
		}
		switch v := raw[k].(type) {
		case float64:
			out[name] = v
		case float32:
			out[name] = float64(v)
		case int:
			out[name] = float64(v)
		case int64:
			out[name] = float64(v)
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return nil, invalid(indicator, name, "is not numeric")
			}
			out[name] = f
		default:
			return nil, invalid(indicator, name, "is not numeric")
		}
	}
	return out, nil
}
