package engine

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"weodash/internal/models"
)

func TestToExportRows(t *testing.T) {
	view := View{
		rec("Brazil", "Latin America", "Upper middle income", "inflation", 2024, "forecast", models.Some(4.0)),
		rec("Germany", "Europe", "High income", "inflation", 2025, "forecast", models.Value{}),
	}

	rows := ToExportRows(view)
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}

	want0 := models.ExportRow{"Brazil", "Latin America", "Upper middle income", "inflation", "2024", "forecast", "4"}
	if rows[0] != want0 {
		t.Errorf("Expected %v, got %v", want0, rows[0])
	}
	if rows[1][6] != "" {
		t.Errorf("Expected empty value field, got %q", rows[1][6])
	}
}

func TestWriteCSV(t *testing.T) {
	view := View{
		rec("Korea, Republic of", "East Asia", "High income", "inflation", 2024, "forecast", models.Some(2.25)),
		rec("Germany", "Europe", "High income", "inflation", 2025, "forecast", models.Value{}),
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, view); err != nil {
		t.Fatal(err)
	}

	want := "country,region,income_group,indicator,year,vintage,value\n" +
		"\"Korea, Republic of\",East Asia,High income,inflation,2024,forecast,2.25\n" +
		"Germany,Europe,High income,inflation,2025,forecast,\n"
	if buf.String() != want {
		t.Errorf("Unexpected CSV:\n%s\nwant:\n%s", buf.String(), want)
	}

	// Round trip: 7 fields per row
	parsed, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	for i, row := range parsed {
		if len(row) != 7 {
			t.Errorf("Row %d: expected 7 fields, got %d", i, len(row))
		}
	}
}

func TestWriteCSVEmptyView(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, View{}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "country,region,income_group,indicator,year,vintage,value\n" {
		t.Errorf("Expected header only, got %q", buf.String())
	}
}
