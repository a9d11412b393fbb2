package charts

import (
	"bytes"
	"errors"
	"testing"

	"weodash/internal/models"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestLine(t *testing.T) {
	series := []models.Series{
		{Name: "Brazil", Points: []models.SeriesPoint{{Year: 2022, Value: 9.3}, {Year: 2023, Value: 4.6}, {Year: 2024, Value: 4.4}}},
		{Name: "Germany", Points: []models.SeriesPoint{{Year: 2022, Value: 8.7}, {Year: 2023, Value: 6.0}}},
	}

	var buf bytes.Buffer
	if err := Line(&buf, "Inflation", series); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
		t.Error("Expected PNG output")
	}
}

func TestLineSinglePoint(t *testing.T) {
	series := []models.Series{{Name: "Brazil", Points: []models.SeriesPoint{{Year: 2024, Value: 4.4}}}}

	var buf bytes.Buffer
	if err := Line(&buf, "Inflation", series); err != nil {
		t.Fatalf("Expected single point to render, got %v", err)
	}
}

func TestBar(t *testing.T) {
	groups := []models.GroupMean{{Name: "Europe", Mean: 2.0}, {Name: "Latin America", Mean: 3.5}}

	var buf bytes.Buffer
	if err := Bar(&buf, "Inflation 2024", groups); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
		t.Error("Expected PNG output")
	}
}

func TestScatter(t *testing.T) {
	groups := []models.PairGroup{
		{Key: "Brazil", Pairs: []models.Pair{{X: 4.0, Y: 4.5}, {X: 5.0, Y: 4.6}}},
		{Key: "Germany", Pairs: []models.Pair{{X: 2.0, Y: 2.4}}},
	}

	var buf bytes.Buffer
	if err := Scatter(&buf, "Forecast vs realized", groups); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
		t.Error("Expected PNG output")
	}
}

func TestNoData(t *testing.T) {
	var buf bytes.Buffer
	if err := Line(&buf, "", []models.Series{{Name: "empty"}}); !errors.Is(err, ErrNoData) {
		t.Errorf("Line: expected ErrNoData, got %v", err)
	}
	if err := Bar(&buf, "", nil); !errors.Is(err, ErrNoData) {
		t.Errorf("Bar: expected ErrNoData, got %v", err)
	}
	if err := Scatter(&buf, "", nil); !errors.Is(err, ErrNoData) {
		t.Errorf("Scatter: expected ErrNoData, got %v", err)
	}
	if buf.Len() != 0 {
		t.Error("Nothing should be written without data")
	}
}
