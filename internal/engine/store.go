package engine

import (
	"sort"

	"weodash/internal/models"
)

// Table holds one session's records in file order, plus the dictionaries
// (distinct values per dimension) the filter controls are built from.
// It is never modified after NewTable returns.
type Table struct {
	records []models.Record

	// Dictionaries (sorted, blanks dropped)
	countryDict     []string
	regionDict      []string
	incomeGroupDict []string
	indicatorDict   []string
	vintageDict     []string

	minYear, maxYear int
}

// View is the filtered, order-preserving subset of a Table.
type View []models.Record

// NewTable copies records into a new immutable Table.
func NewTable(records []models.Record) *Table {
	t := &Table{records: make([]models.Record, len(records))}
	copy(t.records, records)

	countries := make(map[string]struct{})
	regions := make(map[string]struct{})
	incomes := make(map[string]struct{})
	indicators := make(map[string]struct{})
	vintages := make(map[string]struct{})

	for i, r := range t.records {
		addKey(countries, r.Country)
		addKey(regions, r.Region)
		addKey(incomes, r.IncomeGroup)
		addKey(indicators, r.Indicator)
		addKey(vintages, r.Vintage)

		if i == 0 || r.Year < t.minYear {
			t.minYear = r.Year
		}
		if i == 0 || r.Year > t.maxYear {
			t.maxYear = r.Year
		}
	}

	t.countryDict = sortedKeys(countries)
	t.regionDict = sortedKeys(regions)
	t.incomeGroupDict = sortedKeys(incomes)
	t.indicatorDict = sortedKeys(indicators)
	t.vintageDict = sortedKeys(vintages)
	return t
}

// Len is safe on a nil Table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.records)
}

// Records returns a copy of every record in load order.
func (t *Table) Records() []models.Record {
	out := make([]models.Record, t.Len())
	if t != nil {
		copy(out, t.records)
	}
	return out
}

// Options lists the values each filter control can take.
func (t *Table) Options() models.Options {
	if t == nil {
		return models.Options{}
	}
	return models.Options{
		Countries:    cloneStrings(t.countryDict),
		Regions:      cloneStrings(t.regionDict),
		IncomeGroups: cloneStrings(t.incomeGroupDict),
		Indicators:   cloneStrings(t.indicatorDict),
		Vintages:     cloneStrings(t.vintageDict),
		MinYear:      t.minYear,
		MaxYear:      t.maxYear,
	}
}

func addKey(m map[string]struct{}, k string) {
	if k != "" {
		m[k] = struct{}{}
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func cloneStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
