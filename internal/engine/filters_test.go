package engine

import (
	"errors"
	"reflect"
	"testing"

	"weodash/internal/models"
)

func rec(country, region, income, indicator string, year int, vintage string, value models.Value) models.Record {
	return models.Record{
		Country: country, Region: region, IncomeGroup: income,
		Indicator: indicator, Year: year, Vintage: vintage, Value: value,
	}
}

func sampleTable() *Table {
	return NewTable([]models.Record{
		rec("Brazil", "Latin America", "Upper middle income", "inflation", 2023, "forecast", models.Some(5.0)),
		rec("Brazil", "Latin America", "Upper middle income", "inflation", 2024, "forecast", models.Some(4.0)),
		rec("Brazil", "Latin America", "Upper middle income", "inflation", 2024, "actual", models.Some(4.5)),
		rec("Brazil", "Latin America", "Upper middle income", "gdp_growth", 2024, "forecast", models.Some(2.1)),
		rec("Germany", "Europe", "High income", "inflation", 2024, "forecast", models.Some(2.0)),
		rec("Germany", "Europe", "High income", "inflation", 2025, "forecast", models.Value{}),
		rec("India", "South Asia", "Lower middle income", "inflation", 2020, "actual", models.Some(6.2)),
	})
}

func TestApplyFiltersEmptySelectionIsIdentity(t *testing.T) {
	table := sampleTable()

	view, err := ApplyFilters(table, models.FilterSelection{})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual([]models.Record(view), table.Records()) {
		t.Errorf("Expected the whole table in order, got %+v", view)
	}
}

func TestApplyFiltersCombinesWithAnd(t *testing.T) {
	table := sampleTable()
	sel := models.FilterSelection{
		Countries: []string{"Brazil", "Germany"},
		YearRange: &models.YearRange{Min: 2024, Max: 2024},
		Indicator: "inflation",
	}

	view, err := ApplyFilters(table, sel)
	if err != nil {
		t.Fatal(err)
	}
	if len(view) != 3 {
		t.Fatalf("Expected 3 records, got %d: %+v", len(view), view)
	}

	// Subset property: every record satisfies every constraint, order kept
	wantValues := []float64{4.0, 4.5, 2.0}
	for i, r := range view {
		if r.Indicator != "inflation" || r.Year != 2024 || (r.Country != "Brazil" && r.Country != "Germany") {
			t.Errorf("Record %d violates selection: %+v", i, r)
		}
		if r.Value.Float != wantValues[i] {
			t.Errorf("Record %d: expected %v, got %v", i, wantValues[i], r.Value.Float)
		}
	}
}

func TestApplyFiltersRegionAndIncome(t *testing.T) {
	table := sampleTable()

	view, err := ApplyFilters(table, models.FilterSelection{Regions: []string{"Europe"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(view) != 2 || view[0].Country != "Germany" {
		t.Errorf("Expected 2 German records, got %+v", view)
	}

	view, err = ApplyFilters(table, models.FilterSelection{
		Regions:      []string{"Europe"},
		IncomeGroups: []string{"Lower middle income"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(view) != 0 {
		t.Errorf("Expected empty view, got %+v", view)
	}
	if view == nil {
		t.Error("Expected an empty, non-nil view")
	}
}

func TestApplyFiltersIsIdempotent(t *testing.T) {
	table := sampleTable()
	sel := models.FilterSelection{IncomeGroups: []string{"Upper middle income"}, Indicator: "inflation"}

	a, err := ApplyFilters(table, sel)
	if err != nil {
		t.Fatal(err)
	}
	b, err := ApplyFilters(table, sel)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Expected identical views, got %+v and %+v", a, b)
	}
}

func TestApplyFiltersRejectsInvertedRange(t *testing.T) {
	view, err := ApplyFilters(sampleTable(), models.FilterSelection{YearRange: &models.YearRange{Min: 2025, Max: 2020}})

	var re *InvalidRangeError
	if !errors.As(err, &re) {
		t.Fatalf("Expected InvalidRangeError, got %v", err)
	}
	if re.Min != 2025 || re.Max != 2020 {
		t.Errorf("Unexpected bounds in error: %+v", re)
	}
	if view != nil {
		t.Errorf("Expected no view on error, got %+v", view)
	}
}

func TestApplyFiltersNilTable(t *testing.T) {
	view, err := ApplyFilters(nil, models.FilterSelection{})
	if err != nil {
		t.Fatal(err)
	}
	if len(view) != 0 {
		t.Errorf("Expected empty view, got %+v", view)
	}
}

func TestSortForTable(t *testing.T) {
	view := View{
		rec("Germany", "", "", "inflation", 2024, "", models.Value{}),
		rec("Brazil", "", "", "inflation", 2024, "", models.Value{}),
		rec("Brazil", "", "", "inflation", 2023, "", models.Value{}),
	}

	sorted := SortForTable(view)
	if sorted[0].Year != 2023 || sorted[1].Country != "Brazil" || sorted[2].Country != "Germany" {
		t.Errorf("Unexpected table order: %+v", sorted)
	}
	if view[0].Country != "Germany" {
		t.Error("SortForTable must not reorder its input")
	}
}
