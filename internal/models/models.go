package models

import (
	"strconv"

	"github.com/goccy/go-json"
)

// Value is a nullable observation. WEO sheets leave plenty of cells blank.
type Value struct {
	Float float64
	Valid bool
}

func Some(f float64) Value { return Value{Float: f, Valid: true} }

// String renders the value for delimited output. Absent values are empty.
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float, 'f', -1, 64)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Value{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Some(f)
	return nil
}

// Record is one observation: country x indicator x year x vintage.
type Record struct {
	Country     string `json:"country"`
	Code        string `json:"code,omitempty"`
	Region      string `json:"region"`
	IncomeGroup string `json:"income_group"`
	Indicator   string `json:"indicator"`
	Year        int    `json:"year"`
	Vintage     string `json:"vintage"`
	Value       Value  `json:"value"`
}

// YearRange is an inclusive [Min, Max] bound.
type YearRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// FilterSelection holds the active dashboard filters.
// Empty sets, a nil YearRange and an empty Indicator all mean "no restriction".
type FilterSelection struct {
	Countries    []string   `json:"countries,omitempty"`
	Regions      []string   `json:"regions,omitempty"`
	IncomeGroups []string   `json:"income_groups,omitempty"`
	YearRange    *YearRange `json:"year_range,omitempty"`
	Indicator    string     `json:"indicator,omitempty"`
}

// ExportColumns is the fixed column order of every export.
var ExportColumns = []string{"country", "region", "income_group", "indicator", "year", "vintage", "value"}

// ExportRow is one flat, already-formatted export line.
type ExportRow [7]string

// Options lists the distinct values available to each filter control.
type Options struct {
	Countries    []string `json:"countries"`
	Regions      []string `json:"regions"`
	IncomeGroups []string `json:"income_groups"`
	Indicators   []string `json:"indicators"`
	Vintages     []string `json:"vintages"`
	MinYear      int      `json:"min_year"`
	MaxYear      int      `json:"max_year"`
}

// PairKey identifies a forecast/actual comparison.
type PairKey struct {
	Country   string `json:"country"`
	Year      int    `json:"year"`
	Indicator string `json:"indicator"`
}

// Pair is one scatter point: X is the forecast, Y the realized value.
type Pair struct {
	PairKey
	Vintage string  `json:"vintage"`
	X       float64 `json:"forecast"`
	Y       float64 `json:"actual"`
}

// PairGroup is the ordered set of pairs sharing one axis key.
type PairGroup struct {
	Key   string `json:"key"`
	Pairs []Pair `json:"pairs"`
}

// SeriesPoint is one (year, value) sample of a line series.
type SeriesPoint struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// Series is the time line of one country (and vintage) for the line chart.
type Series struct {
	Name   string        `json:"name"`
	Points []SeriesPoint `json:"points"`
}

// GroupMean is one bar of the comparison chart.
type GroupMean struct {
	Name  string  `json:"name"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}
