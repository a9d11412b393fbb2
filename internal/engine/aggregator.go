package engine

import (
	"fmt"
	"sort"

	"weodash/internal/models"
)

// GroupBy is the dimension the comparison bars are averaged over.
type GroupBy string

const (
	GroupByCountry GroupBy = "country"
	GroupByRegion  GroupBy = "region"
)

func ParseGroupBy(s string) (GroupBy, error) {
	switch g := GroupBy(s); g {
	case "":
		return GroupByCountry, nil
	case GroupByCountry, GroupByRegion:
		return g, nil
	}
	return "", fmt.Errorf("unknown group_by %q", s)
}

type aggStats struct {
	Sum   float64
	Count int
}

func (a aggStats) mean() float64 {
	if a.Count == 0 {
		return 0
	}
	return a.Sum / float64(a.Count)
}

// LineSeries builds one time line per country. When the view mixes
// vintages, every (country, vintage) pair gets its own line. Duplicate
// samples for a year are averaged; absent values are skipped.
func LineSeries(v View) []models.Series {
	// 1. Decide naming: one vintage -> plain country names
	vintages := make(map[string]struct{})
	for _, r := range v {
		vintages[r.Vintage] = struct{}{}
	}
	split := len(vintages) > 1

	// 2. Accumulate per series per year
	type seriesAgg struct {
		years map[int]*aggStats
	}
	acc := make(map[string]*seriesAgg)
	for _, r := range v {
		if !r.Value.Valid {
			continue
		}
		name := r.Country
		if split {
			name = fmt.Sprintf("%s (%s)", r.Country, r.Vintage)
		}
		s, ok := acc[name]
		if !ok {
			s = &seriesAgg{years: make(map[int]*aggStats)}
			acc[name] = s
		}
		st, ok := s.years[r.Year]
		if !ok {
			st = &aggStats{}
			s.years[r.Year] = st
		}
		st.Sum += r.Value.Float
		st.Count++
	}

	// 3. Build result, sorted by name then year
	out := make([]models.Series, 0, len(acc))
	for name, s := range acc {
		pts := make([]models.SeriesPoint, 0, len(s.years))
		for y, st := range s.years {
			pts = append(pts, models.SeriesPoint{Year: y, Value: st.mean()})
		}
		sort.Slice(pts, func(i, j int) bool { return pts[i].Year < pts[j].Year })
		out = append(out, models.Series{Name: name, Points: pts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GroupMeans averages the values of one year by country or region, for the
// comparison bar chart. Groups are sorted by name.
func GroupMeans(v View, year int, by GroupBy) []models.GroupMean {
	acc := make(map[string]*aggStats)
	for _, r := range v {
		if r.Year != year || !r.Value.Valid {
			continue
		}
		key := r.Country
		if by == GroupByRegion {
			key = r.Region
		}
		st, ok := acc[key]
		if !ok {
			st = &aggStats{}
			acc[key] = st
		}
		st.Sum += r.Value.Float
		st.Count++
	}

	out := make([]models.GroupMean, 0, len(acc))
	for name, st := range acc {
		out = append(out, models.GroupMean{Name: name, Mean: st.mean(), Count: st.Count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Years lists the distinct years of a view in ascending order.
func Years(v View) []int {
	seen := make(map[int]struct{})
	out := make([]int, 0)
	for _, r := range v {
		if _, ok := seen[r.Year]; !ok {
			seen[r.Year] = struct{}{}
			out = append(out, r.Year)
		}
	}
	sort.Ints(out)
	return out
}
