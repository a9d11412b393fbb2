package engine

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"
)

// ExportSchema mirrors the CSV export columns. Only value is nullable.
var ExportSchema = arrow.NewSchema([]arrow.Field{
	{Name: "country", Type: arrow.BinaryTypes.String},
	{Name: "region", Type: arrow.BinaryTypes.String},
	{Name: "income_group", Type: arrow.BinaryTypes.String},
	{Name: "indicator", Type: arrow.BinaryTypes.String},
	{Name: "year", Type: arrow.PrimitiveTypes.Int32},
	{Name: "vintage", Type: arrow.BinaryTypes.String},
	{Name: "value", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
}, nil)

// WriteArrow streams the view as a single Arrow IPC record batch.
func WriteArrow(w io.Writer, v View) error {
	mem := memory.NewGoAllocator()

	b := array.NewRecordBuilder(mem, ExportSchema)
	defer b.Release()

	country := b.Field(0).(*array.StringBuilder)
	region := b.Field(1).(*array.StringBuilder)
	income := b.Field(2).(*array.StringBuilder)
	indicator := b.Field(3).(*array.StringBuilder)
	year := b.Field(4).(*array.Int32Builder)
	vintage := b.Field(5).(*array.StringBuilder)
	value := b.Field(6).(*array.Float64Builder)

	for _, r := range v {
		country.Append(r.Country)
		region.Append(r.Region)
		income.Append(r.IncomeGroup)
		indicator.Append(r.Indicator)
		year.Append(int32(r.Year))
		vintage.Append(r.Vintage)
		if r.Value.Valid {
			value.Append(r.Value.Float)
		} else {
			value.AppendNull()
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	iw := ipc.NewWriter(w, ipc.WithSchema(ExportSchema), ipc.WithAllocator(mem))
	if err := iw.Write(rec); err != nil {
		iw.Close()
		return fmt.Errorf("write arrow batch: %w", err)
	}
	return iw.Close()
}
