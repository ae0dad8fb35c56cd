package aggregation

import (
	"encoding/json"
	"errors"

	"github.com/mind-engage/cityprosperity/internal/band"
)

const (
	statusScored = "scored"
	statusNoData = "no_data"
)

// Score is either a scored mean with its label or no data. The zero value is
// no data, which is distinct from a score of 0.
type Score struct {
	average float64
	label   band.Label
	present bool
}

// Scored returns a present score banded with the default table.
func Scored(avg float64) Score {
	return Score{average: avg, label: band.Band(avg), present: true}
}

// NoData is the aggregation gap.
func NoData() Score { return Score{} }

func (s Score) Present() bool { return s.present }

// Average returns the mean and whether it exists.
func (s Score) Average() (float64, bool) { return s.average, s.present }

func (s Score) Label() band.Label { return s.label }

type scoreJSON struct {
	Status  string     `json:"status"`
	Average *float64   `json:"average,omitempty"`
	Comment band.Label `json:"comment,omitempty"`
}

func (s Score) MarshalJSON() ([]byte, error) {
	if !s.present {
		return json.Marshal(scoreJSON{Status: statusNoData})
	}
	avg := s.average
	return json.Marshal(scoreJSON{Status: statusScored, Average: &avg, Comment: s.label})
}

func (s *Score) UnmarshalJSON(b []byte) error {
	var v scoreJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v.Status {
	case statusNoData:
		*s = NoData()
	case statusScored:
		if v.Average == nil {
			return errors.New("scored value without average")
		}
		*s = Scored(*v.Average)
	default:
		return errors.New("unknown score status " + v.Status)
	}
	return nil
}
