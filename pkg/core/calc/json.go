package calc

import (
	"encoding/json"
	"math"
)

// scoreRecordJSON is the wire form of ScoreRecord. Undefined numbers and
// classifications are null.
type scoreRecordJSON struct {
	Entity         string          `json:"company,omitempty"`
	Period         int             `json:"year"`
	DSRI           *float64        `json:"dsri"`
	GMI            *float64        `json:"gmi"`
	AQI            *float64        `json:"aqi"`
	SGI            *float64        `json:"sgi"`
	DEPI           *float64        `json:"depi"`
	SGAI           *float64        `json:"sgai"`
	TATA           *float64        `json:"tata"`
	LVGI           *float64        `json:"lvgi"`
	MScore         *float64        `json:"m_score"`
	Classification *Classification `json:"classification"`
}

// MarshalJSON encodes NaN and infinite values as null.
func (s ScoreRecord) MarshalJSON() ([]byte, error) {
	w := scoreRecordJSON{
		Entity: s.Entity,
		Period: s.Period,
		DSRI:   nullable(s.DSRI),
		GMI:    nullable(s.GMI),
		AQI:    nullable(s.AQI),
		SGI:    nullable(s.SGI),
		DEPI:   nullable(s.DEPI),
		SGAI:   nullable(s.SGAI),
		TATA:   nullable(s.TATA),
		LVGI:   nullable(s.LVGI),
		MScore: nullable(s.MScore),
	}
	if s.Classification != Undefined {
		c := s.Classification
		w.Classification = &c
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes null numbers back to NaN.
func (s *ScoreRecord) UnmarshalJSON(data []byte) error {
	var w scoreRecordJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = ScoreRecord{
		Entity: w.Entity,
		Period: w.Period,
		Indices: Indices{
			DSRI: orNaN(w.DSRI),
			GMI:  orNaN(w.GMI),
			AQI:  orNaN(w.AQI),
			SGI:  orNaN(w.SGI),
			DEPI: orNaN(w.DEPI),
			SGAI: orNaN(w.SGAI),
			TATA: orNaN(w.TATA),
			LVGI: orNaN(w.LVGI),
		},
		MScore: orNaN(w.MScore),
	}
	if w.Classification != nil {
		s.Classification = *w.Classification
	}
	return nil
}

func nullable(v float64) *float64 {
	if !isDefined(v) {
		return nil
	}
	return &v
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
