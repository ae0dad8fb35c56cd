package indicator

import (
	"fmt"
	"math"
)

const (
	rawDirect            = "direct"
	rawRatio             = "ratio"
	rawLandUseEfficiency = "land_use_efficiency"
)

// land use efficiency reads these fixed inputs
var luInputs = []string{"urb_t", "urb_tn", "pop_t", "pop_tn", "years"}

func checkRaw(r RawFormula, inputs map[string]bool) error {
	switch r.Kind {
	case rawDirect:
		if !inputs[r.Input] {
			return fmt.Errorf("direct input %q not declared", r.Input)
		}
	case rawRatio:
		if !inputs[r.Num] || !inputs[r.Den] {
			return fmt.Errorf("ratio inputs %q/%q not declared", r.Num, r.Den)
		}
		if r.Scale < 0 {
			return fmt.Errorf("negative scale %v", r.Scale)
		}
	case rawLandUseEfficiency:
		for _, n := range luInputs {
			if !inputs[n] {
				return fmt.Errorf("land use efficiency needs input %q", n)
			}
		}
	default:
		return fmt.Errorf("unknown raw kind %q", r.Kind)
	}
	return nil
}

// rawValue evaluates the formula. Inputs are already checked against their rules.
func rawValue(key string, r RawFormula, in map[string]float64) (float64, error) {
	switch r.Kind {
	case rawDirect:
		return in[r.Input], nil
	case rawRatio:
		num, den := in[r.Num], in[r.Den]
		if den == 0 {
			return 0, invalid(key, r.Den, "must not be zero")
		}
		if den < 0 {
			return 0, invalid(key, r.Den, "must not be negative")
		}
		if r.Bounded && num > den {
			return 0, invalid(key, r.Num, fmt.Sprintf("must not exceed %s", r.Den))
		}
		scale := r.Scale
		if scale == 0 {
			scale = 1
		}
		return scale * num / den, nil
	case rawLandUseEfficiency:
		return landUseEfficiency(key, in)
	}
	return 0, fmt.Errorf("%s: unknown raw kind %q", key, r.Kind)
}

// landUseEfficiency is the ratio of the urban land growth rate to the
// population growth rate over the same period, each taken as
// ((x_tn - x_t) / x_t)^(1/years).
func landUseEfficiency(key string, in map[string]float64) (float64, error) {
	urbT, urbTn := in["urb_t"], in["urb_tn"]
	popT, popTn := in["pop_t"], in["pop_tn"]
	years := in["years"]

	for _, f := range luInputs {
		if in[f] <= 0 {
			return 0, invalid(key, f, "must be positive")
		}
	}
	if urbTn < urbT {
		return 0, invalid(key, "urb_tn", "must not be below urb_t")
	}
	// a flat or shrinking population leaves the ratio undefined
	if popTn <= popT {
		return 0, invalid(key, "pop_tn", "must exceed pop_t")
	}

	urbRate := math.Pow((urbTn-urbT)/urbT, 1/years)
	popRate := math.Pow((popTn-popT)/popT, 1/years)
	return urbRate / popRate, nil
}
