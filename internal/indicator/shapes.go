package indicator

import (
	"errors"
	"fmt"
	"math"
)

// Params holds the benchmarks of one standardization curve. Which fields are
// read depends on Shape.
type Params struct {
	Shape    string  `yaml:"shape" json:"shape"`
	Min      float64 `yaml:"min" json:"min,omitempty"`
	Max      float64 `yaml:"max" json:"max,omitempty"`
	Target   float64 `yaml:"target" json:"target,omitempty"`
	Span     float64 `yaml:"span" json:"span,omitempty"`
	Abs      *bool   `yaml:"abs" json:"abs,omitempty"`
	Exponent float64 `yaml:"exponent" json:"exponent,omitempty"`
	Lower    float64 `yaml:"lower" json:"lower,omitempty"`
	Upper    float64 `yaml:"upper" json:"upper,omitempty"`
	Invert   bool    `yaml:"invert" json:"invert,omitempty"`
}

// Shape maps a raw value to a score. eval may leave [0,100]; the caller clamps.
type Shape interface {
	check(p Params) error
	eval(raw float64, p Params) float64
}

var shapes = map[string]Shape{
	"linear":         linearShape{},
	"inverse_linear": inverseLinearShape{},
	"deviation":      deviationShape{},
	"power":          powerShape{},
	"log":            logShape{},
	"three_zone":     threeZoneShape{},
}

// ShapeNames lists the supported shapes.
func ShapeNames() []string {
	return []string{"linear", "inverse_linear", "deviation", "power", "log", "three_zone"}
}

var errZeroSpan = errors.New("benchmark span is zero")

// Clamp pins s to [0,100]. NaN maps to 0.
func Clamp(s float64) float64 {
	switch {
	case math.IsNaN(s):
		return 0
	case s < 0:
		return 0
	case s > 100:
		return 100
	default:
		return s
	}
}

// between scores x on the segment [lo,hi]; invert flips the direction.
// Values outside the segment are flat.
func between(x, lo, hi float64, invert bool) float64 {
	if x <= lo {
		if invert {
			return 100
		}
		return 0
	}
	if x >= hi {
		if invert {
			return 0
		}
		return 100
	}
	if invert {
		return 100 * (hi - x) / (hi - lo)
	}
	return 100 * (x - lo) / (hi - lo)
}

func checkMinMax(p Params) error {
	if p.Max == p.Min {
		return errZeroSpan
	}
	if p.Max < p.Min {
		return fmt.Errorf("max %v below min %v", p.Max, p.Min)
	}
	return nil
}

// --- linear ---

type linearShape struct{}

func (linearShape) check(p Params) error { return checkMinMax(p) }

func (linearShape) eval(raw float64, p Params) float64 {
	return 100 * (raw - p.Min) / (p.Max - p.Min)
}

type inverseLinearShape struct{}

func (inverseLinearShape) check(p Params) error { return checkMinMax(p) }

func (inverseLinearShape) eval(raw float64, p Params) float64 {
	return 100 * (p.Max - raw) / (p.Max - p.Min)
}

// --- deviation around a target ---

type deviationShape struct{}

func (deviationShape) check(p Params) error {
	if deviationSpan(p) == 0 {
		return errZeroSpan
	}
	return nil
}

func deviationSpan(p Params) float64 {
	if p.Span != 0 {
		return p.Span
	}
	return p.Target
}

// Without abs the published formula only penalizes overshoot; undershoot
// scores above 100 and is clamped.
func (deviationShape) eval(raw float64, p Params) float64 {
	d := raw - p.Target
	if p.Abs == nil || *p.Abs {
		d = math.Abs(d)
	}
	return 100 * (1 - d/deviationSpan(p))
}

// --- transformed thresholds ---

// powerShape compares raw^exponent against min/max given in transformed space.
type powerShape struct{}

func (powerShape) check(p Params) error {
	if p.Exponent <= 0 {
		return fmt.Errorf("exponent must be positive, got %v", p.Exponent)
	}
	return checkMinMax(p)
}

func (powerShape) eval(raw float64, p Params) float64 {
	if raw <= 0 {
		return between(0, p.Min, p.Max, p.Invert)
	}
	return between(math.Pow(raw, p.Exponent), p.Min, p.Max, p.Invert)
}

// logShape applies ln to raw and to the min/max benchmarks.
type logShape struct{}

func (logShape) check(p Params) error {
	if p.Min <= 0 {
		return fmt.Errorf("log benchmark min must be positive, got %v", p.Min)
	}
	return checkMinMax(p)
}

func (logShape) eval(raw float64, p Params) float64 {
	if raw <= p.Min {
		return between(p.Min, p.Min, p.Max, p.Invert)
	}
	if raw >= p.Max {
		return between(p.Max, p.Min, p.Max, p.Invert)
	}
	lo, hi := math.Log(p.Min), math.Log(p.Max)
	return between(math.Log(raw), lo, hi, p.Invert)
}

// --- three zones ---

// threeZoneShape is flat below lower and above upper, linear in between.
type threeZoneShape struct{}

func (threeZoneShape) check(p Params) error {
	if p.Upper == p.Lower {
		return errZeroSpan
	}
	if p.Upper < p.Lower {
		return fmt.Errorf("upper %v below lower %v", p.Upper, p.Lower)
	}
	return nil
}

func (threeZoneShape) eval(raw float64, p Params) float64 {
	return between(raw, p.Lower, p.Upper, p.Invert)
}
