package engine

import (
	"fmt"
	"sort"

	"weodash/internal/models"
)

// InvalidRangeError rejects a year range whose lower bound exceeds its upper bound.
type InvalidRangeError struct {
	Min, Max int
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid year range: min %d is greater than max %d", e.Min, e.Max)
}

// Validate checks a selection without touching any data.
func Validate(sel models.FilterSelection) error {
	if r := sel.YearRange; r != nil && r.Min > r.Max {
		return &InvalidRangeError{Min: r.Min, Max: r.Max}
	}
	return nil
}

// ApplyFilters returns the records of table matching every active constraint
// of sel, in table order. Dimensions are AND-combined; values within a
// dimension are OR-combined. An empty result is not an error.
func ApplyFilters(table *Table, sel models.FilterSelection) (View, error) {
	if err := Validate(sel); err != nil {
		return nil, err
	}

	countries := toSet(sel.Countries)
	regions := toSet(sel.Regions)
	incomes := toSet(sel.IncomeGroups)

	out := make(View, 0, table.Len())
	if table == nil {
		return out, nil
	}

	// Single pass, every constraint checked per record
	for _, r := range table.records {
		if !inSet(countries, r.Country) || !inSet(regions, r.Region) || !inSet(incomes, r.IncomeGroup) {
			continue
		}
		if yr := sel.YearRange; yr != nil && (r.Year < yr.Min || r.Year > yr.Max) {
			continue
		}
		if sel.Indicator != "" && r.Indicator != sel.Indicator {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// SortForTable returns a copy of v ordered by country, then year, as the
// data table displays it. v itself keeps its filter order.
func SortForTable(v View) View {
	out := make(View, len(v))
	copy(out, v)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Country != out[j].Country {
			return out[i].Country < out[j].Country
		}
		return out[i].Year < out[j].Year
	})
	return out
}

// nil set means the dimension is unconstrained
func toSet(items []string) map[string]struct{} {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

func inSet(set map[string]struct{}, v string) bool {
	if set == nil {
		return true
	}
	_, ok := set[v]
	return ok
}
