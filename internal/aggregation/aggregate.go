package aggregation

import (
	"encoding/json"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/mind-engage/cityprosperity/internal/band"
	"github.com/mind-engage/cityprosperity/internal/indicator"
)

// Fields is a city record's flat field map.
type Fields map[string]any

type IndicatorScore struct {
	Key          string     `json:"key"`
	Standardized float64    `json:"standardized"`
	Comment      band.Label `json:"comment"`
}

type SubDimensionResult struct {
	Key        string           `json:"key"`
	Name       string           `json:"name"`
	Score      Score            `json:"score"`
	Indicators []IndicatorScore `json:"indicators"`
}

type DimensionResult struct {
	Key           string               `json:"key"`
	Name          string               `json:"name"`
	Score         Score                `json:"score"`
	SubDimensions []SubDimensionResult `json:"sub_dimensions"`
}

// Composite is the aggregated view of one record. Dimensions and
// sub-dimensions without present members are left out of the lists and their
// keys collected in NoData.
type Composite struct {
	Index      Score             `json:"index"`
	Dimensions []DimensionResult `json:"dimensions"`
	NoData     []string          `json:"no_data"`
}

// Aggregate rolls the record's standardized scores up the hierarchy. It keeps
// no state between calls; a stored "cpi" field is not consulted.
func Aggregate(fields Fields, h *Hierarchy) Composite {
	out := Composite{Dimensions: []DimensionResult{}, NoData: []string{}}
	var dimAvgs []float64

	for _, d := range h.Dimensions {
		dr := DimensionResult{Key: d.Key, Name: d.Name, SubDimensions: []SubDimensionResult{}}
		var subAvgs []float64

		for _, sd := range d.SubDimensions {
			sr := SubDimensionResult{Key: sd.Key, Name: sd.Name, Indicators: []IndicatorScore{}}
			var vals []float64
			for _, key := range sd.Indicators {
				v, ok := StandardizedValue(fields, key)
				if !ok {
					continue
				}
				vals = append(vals, v)
				sr.Indicators = append(sr.Indicators, IndicatorScore{
					Key:          key,
					Standardized: v,
					Comment:      h.banding[key].Apply(v),
				})
			}
			if len(vals) == 0 {
				out.NoData = append(out.NoData, sd.Key)
				continue
			}
			sr.Score = Scored(mean(vals))
			subAvgs = append(subAvgs, mean(vals))
			dr.SubDimensions = append(dr.SubDimensions, sr)
		}

		if len(subAvgs) == 0 {
			out.NoData = append(out.NoData, d.Key)
			continue
		}
		dr.Score = Scored(mean(subAvgs))
		dimAvgs = append(dimAvgs, mean(subAvgs))
		out.Dimensions = append(out.Dimensions, dr)
	}

	if len(dimAvgs) > 0 {
		out.Index = Scored(mean(dimAvgs))
	}
	return out
}

func mean(xs []float64) float64 { return stat.Mean(xs, nil) }

// StandardizedValue reads {key}_standardized from fields. Any finite number is
// present, 0 included; nil, non-numeric and non-finite values are absent.
func StandardizedValue(fields Fields, key string) (float64, bool) {
	raw, ok := fields[key+indicator.StandardizedSuffix]
	if !ok || raw == nil {
		return 0, false
	}
	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int32:
		v = float64(n)
	case int64:
		v = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
