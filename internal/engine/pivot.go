package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"weodash/internal/models"
)

// VintageKind is what a vintage label stands for.
type VintageKind int

const (
	VintageOther VintageKind = iota
	VintageForecast
	VintageActual
)

// VintageRule decides which vintage labels are forecasts and which are
// realized values. Patterns match case-insensitively; a trailing "*" turns a
// pattern into a prefix match. Forecast patterns are checked first.
type VintageRule struct {
	Forecast []string `yaml:"forecast" json:"forecast"`
	Actual   []string `yaml:"actual" json:"actual"`
}

// DefaultVintageRule matches the labels the loader writes by default.
func DefaultVintageRule() VintageRule {
	return VintageRule{
		Forecast: []string{"forecast*"},
		Actual:   []string{"actual*", "realized*"},
	}
}

func (k VintageKind) String() string {
	switch k {
	case VintageForecast:
		return "forecast"
	case VintageActual:
		return "actual"
	}
	return "all"
}

// ParseVintageKind reads "forecast" or "actual". An empty string yields
// VintageOther, which OnlyKind takes as "keep everything".
func ParseVintageKind(s string) (VintageKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return VintageOther, nil
	case "forecast":
		return VintageForecast, nil
	case "actual", "realized":
		return VintageActual, nil
	}
	return VintageOther, fmt.Errorf("unknown kind %q (forecast or actual)", s)
}

// OnlyKind keeps the records whose vintage the rule classifies as kind.
// VintageOther returns v unchanged.
func OnlyKind(v View, rule VintageRule, kind VintageKind) View {
	if kind == VintageOther {
		return v
	}
	out := make(View, 0, len(v))
	for _, r := range v {
		if rule.Classify(r.Vintage) == kind {
			out = append(out, r)
		}
	}
	return out
}

func (vr VintageRule) Classify(vintage string) VintageKind {
	switch {
	case matchAny(vr.Forecast, vintage):
		return VintageForecast
	case matchAny(vr.Actual, vintage):
		return VintageActual
	}
	return VintageOther
}

func matchAny(patterns []string, s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(s, prefix) {
				return true
			}
		} else if s == p {
			return true
		}
	}
	return false
}

// Axis picks the key the comparison pairs are grouped under.
type Axis string

const (
	AxisKey       Axis = "key" // country/year/indicator
	AxisCountry   Axis = "country"
	AxisYear      Axis = "year"
	AxisIndicator Axis = "indicator"
)

func ParseAxis(s string) (Axis, error) {
	switch a := Axis(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return AxisKey, nil
	case AxisKey, AxisCountry, AxisYear, AxisIndicator:
		return a, nil
	}
	return "", fmt.Errorf("unknown comparison axis %q", s)
}

// KeyString renders a pair key as "country/year/indicator".
func KeyString(k models.PairKey) string {
	return k.Country + "/" + strconv.Itoa(k.Year) + "/" + k.Indicator
}

type pairBucket struct {
	forecasts []models.Record
	actual    *models.Record
}

// PivotForComparison pairs forecast and realized values sharing a
// (country, year, indicator) key. A key yields pairs only when it has at
// least one forecast and one actual record with a value; each forecast is
// paired with the first actual seen. Pairs are ordered by country, then
// year, then indicator, and grouped under the requested axis.
func PivotForComparison(v View, axis Axis, rule VintageRule) []models.PairGroup {
	buckets := make(map[models.PairKey]*pairBucket)
	var keys []models.PairKey

	for i := range v {
		r := v[i]
		if !r.Value.Valid {
			continue
		}
		kind := rule.Classify(r.Vintage)
		if kind == VintageOther {
			continue
		}

		k := models.PairKey{Country: r.Country, Year: r.Year, Indicator: r.Indicator}
		b, ok := buckets[k]
		if !ok {
			b = &pairBucket{}
			buckets[k] = b
			keys = append(keys, k)
		}
		if kind == VintageForecast {
			b.forecasts = append(b.forecasts, r)
		} else if b.actual == nil {
			b.actual = &r
		}
	}

	sort.SliceStable(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Country != b.Country {
			return a.Country < b.Country
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Indicator < b.Indicator
	})

	groups := make([]models.PairGroup, 0)
	index := make(map[string]int)
	for _, k := range keys {
		b := buckets[k]
		if b.actual == nil || len(b.forecasts) == 0 {
			continue
		}

		gk := axisKey(axis, k)
		gi, ok := index[gk]
		if !ok {
			gi = len(groups)
			index[gk] = gi
			groups = append(groups, models.PairGroup{Key: gk})
		}
		for _, f := range b.forecasts {
			groups[gi].Pairs = append(groups[gi].Pairs, models.Pair{
				PairKey: k,
				Vintage: f.Vintage,
				X:       f.Value.Float,
				Y:       b.actual.Value.Float,
			})
		}
	}

	if axis == AxisYear {
		sort.SliceStable(groups, func(i, j int) bool {
			return groups[i].Pairs[0].Year < groups[j].Pairs[0].Year
		})
	}
	return groups
}

func axisKey(axis Axis, k models.PairKey) string {
	switch axis {
	case AxisCountry:
		return k.Country
	case AxisYear:
		return strconv.Itoa(k.Year)
	case AxisIndicator:
		return k.Indicator
	}
	return KeyString(k)
}
