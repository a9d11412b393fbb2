package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"weodash/internal/models"
)

// ToExportRows flattens a view into fixed-order string rows
// (see models.ExportColumns). Absent values become empty fields.
func ToExportRows(v View) []models.ExportRow {
	rows := make([]models.ExportRow, 0, len(v))
	for _, r := range v {
		rows = append(rows, models.ExportRow{
			r.Country,
			r.Region,
			r.IncomeGroup,
			r.Indicator,
			strconv.Itoa(r.Year),
			r.Vintage,
			r.Value.String(),
		})
	}
	return rows
}

// WriteCSV writes the header and one line per record. encoding/csv quotes a
// field only when it has to (delimiter, quote, line break, leading space).
func WriteCSV(w io.Writer, v View) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.ExportColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range ToExportRows(v) {
		if err := cw.Write(row[:]); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
