package engine

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"weodash/internal/models"
)

// Layout is the shape of the source sheet.
type Layout string

const (
	// LayoutLong has one column per record attribute.
	LayoutLong Layout = "long"
	// LayoutWide has one row per country/year/edition and one column per
	// (indicator, vintage) measure, as the WEO forecast files ship.
	LayoutWide Layout = "wide"
)

// Columns maps record attributes to sheet headers. Headers match
// case-insensitively. Empty entries are not read.
type Columns struct {
	Country     string `yaml:"country"`
	Code        string `yaml:"code"`
	Region      string `yaml:"region"`
	IncomeGroup string `yaml:"income_group"`
	Year        string `yaml:"year"`

	// long layout only
	Indicator string `yaml:"indicator"`
	Vintage   string `yaml:"vintage"`
	Value     string `yaml:"value"`

	// wide layout only: columns naming the forecast edition (e.g. weo_year, exercise)
	Edition []string `yaml:"edition"`
}

// Measure is one wide-layout value column.
// With PerEdition set, the edition label is appended to the vintage
// ("forecast 2019 Oct"); realized values leave it unset.
type Measure struct {
	Column     string `yaml:"column"`
	Indicator  string `yaml:"indicator"`
	Vintage    string `yaml:"vintage"`
	PerEdition bool   `yaml:"per_edition"`
}

// Bounds clips an indicator's values into [Min, Max].
type Bounds struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

type LoaderConfig struct {
	Sheet    string            `yaml:"sheet"`
	Layout   Layout            `yaml:"layout"`
	Columns  Columns           `yaml:"columns"`
	Measures []Measure         `yaml:"measures"`
	Clip     map[string]Bounds `yaml:"clip"`
}

// DefaultLoaderConfig reads the WEO forecast-evaluation workbook.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		Layout: LayoutWide,
		Columns: Columns{
			Country:     "Country",
			Code:        "CCode",
			Region:      "Region",
			IncomeGroup: "incomegroup",
			Year:        "year",
			Edition:     []string{"weo_year", "exercise"},
		},
		Measures: []Measure{
			{Column: "Fngdp_rpc", Indicator: "gdp_growth", Vintage: "forecast", PerEdition: true},
			{Column: "pcpi_pch", Indicator: "inflation", Vintage: "forecast", PerEdition: true},
			{Column: "bca_gdp", Indicator: "current_account", Vintage: "forecast", PerEdition: true},
			{Column: "Rngdp_rpc", Indicator: "gdp_growth", Vintage: "actual"},
			{Column: "Rpcpi_pch", Indicator: "inflation", Vintage: "actual"},
			{Column: "Rbca_gdp", Indicator: "current_account", Vintage: "actual"},
		},
		// hyperinflation episodes (Zimbabwe) swamp every chart otherwise
		Clip: map[string]Bounds{"inflation": {Min: -100, Max: 100}},
	}
}

// DefaultLongColumns are the headers a long-layout file is expected to use.
func DefaultLongColumns() Columns {
	return Columns{
		Country:     "country",
		Region:      "region",
		IncomeGroup: "income_group",
		Indicator:   "indicator",
		Year:        "year",
		Vintage:     "vintage",
		Value:       "value",
	}
}

// LoadError reports a sheet that could not be read or does not have the
// expected shape.
type LoadError struct {
	Path    string
	Missing []string
	Err     error
}

func (e *LoadError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("load %s: missing columns %v", e.Path, e.Missing)
	}
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load reads path (xlsx or csv, by extension) into a new Table.
func Load(ctx context.Context, path string, cfg LoaderConfig) (*Table, error) {
	start := time.Now()

	rows, err := ReadRows(path, cfg.Sheet)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	records, err := Decode(ctx, rows, cfg)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
			return nil, le
		}
		return nil, &LoadError{Path: path, Err: err}
	}

	log.Infof("Load complete. File: %s. Rows: %d. Records: %d. Time: %v", path, len(rows), len(records), time.Since(start))
	return NewTable(records), nil
}

// ReadRows returns every row of the sheet, header first.
func ReadRows(path, sheet string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return readCSV(path)
	case ".xlsx", ".xlsm", ".xltx":
		return readXLSX(path, sheet)
	}
	return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func readXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	return f.GetRows(sheet)
}

// Decode turns raw rows (header first) into records, keeping row order.
// Rows are decoded in parallel chunks; each chunk writes its own slot so the
// concatenation is in file order.
func Decode(ctx context.Context, rows [][]string, cfg LoaderConfig) ([]models.Record, error) {
	if len(rows) == 0 {
		return nil, &LoadError{Err: fmt.Errorf("empty sheet")}
	}

	dec, err := newRowDecoder(rows[0], cfg)
	if err != nil {
		return nil, err
	}
	body := rows[1:]

	numWorkers := runtime.NumCPU()
	chunkSize := (len(body) + numWorkers - 1) / numWorkers
	if chunkSize == 0 {
		chunkSize = 1
	}
	numChunks := (len(body) + chunkSize - 1) / chunkSize
	parts := make([][]models.Record, numChunks)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < numChunks; i++ {
		start := i * chunkSize
		end := min(start+chunkSize, len(body))

		g.Go(func() error {
			out := make([]models.Record, 0, (end-start)*dec.perRow())
			for j := start; j < end; j++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				// +2: 1-based, plus the header line
				recs, err := dec.decode(body[j], j+2)
				if err != nil {
					return err
				}
				out = append(out, recs...)
			}
			parts[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	records := make([]models.Record, 0, total)
	for _, p := range parts {
		records = append(records, p...)
	}
	return records, nil
}

type measureCol struct {
	idx int
	Measure
}

type rowDecoder struct {
	cfg LoaderConfig

	country, code, region, income, year int
	indicator, vintage, value           int
	edition                             []int
	measures                            []measureCol
}

func (d *rowDecoder) perRow() int {
	if d.cfg.Layout == LayoutWide {
		return len(d.measures)
	}
	return 1
}

func newRowDecoder(header []string, cfg LoaderConfig) (*rowDecoder, error) {
	if cfg.Layout == "" {
		cfg.Layout = LayoutWide
	}
	if cfg.Layout != LayoutWide && cfg.Layout != LayoutLong {
		return nil, &LoadError{Err: fmt.Errorf("unknown layout %q", cfg.Layout)}
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	var missing []string
	resolve := func(name string) int {
		if name == "" {
			return -1
		}
		i, ok := index[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			missing = append(missing, name)
			return -1
		}
		return i
	}

	c := cfg.Columns
	d := &rowDecoder{
		cfg:       cfg,
		country:   resolve(c.Country),
		code:      resolve(c.Code),
		region:    resolve(c.Region),
		income:    resolve(c.IncomeGroup),
		year:      resolve(c.Year),
		indicator: -1,
		vintage:   -1,
		value:     -1,
	}
	if c.Country == "" || c.Year == "" {
		return nil, &LoadError{Err: fmt.Errorf("country and year columns must be configured")}
	}

	if cfg.Layout == LayoutLong {
		d.indicator = resolve(c.Indicator)
		d.vintage = resolve(c.Vintage)
		d.value = resolve(c.Value)
		if c.Indicator == "" || c.Value == "" {
			return nil, &LoadError{Err: fmt.Errorf("long layout needs indicator and value columns")}
		}
	} else {
		for _, e := range c.Edition {
			d.edition = append(d.edition, resolve(e))
		}
		if len(cfg.Measures) == 0 {
			return nil, &LoadError{Err: fmt.Errorf("wide layout needs at least one measure")}
		}
		for _, m := range cfg.Measures {
			d.measures = append(d.measures, measureCol{idx: resolve(m.Column), Measure: m})
		}
	}

	if len(missing) > 0 {
		return nil, &LoadError{Missing: missing}
	}
	return d, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (d *rowDecoder) decode(row []string, line int) ([]models.Record, error) {
	if isBlank(row) {
		return nil, nil
	}

	yearStr := cell(row, d.year)
	y, err := strconv.ParseFloat(yearStr, 64)
	if err != nil || y != math.Trunc(y) {
		return nil, &LoadError{Err: fmt.Errorf("row %d: invalid year %q", line, yearStr)}
	}

	base := models.Record{
		Country:     cell(row, d.country),
		Code:        cell(row, d.code),
		Region:      cell(row, d.region),
		IncomeGroup: cell(row, d.income),
		Year:        int(y),
	}

	if d.cfg.Layout == LayoutLong {
		r := base
		r.Indicator = cell(row, d.indicator)
		r.Vintage = cell(row, d.vintage)
		r.Value = d.clip(r.Indicator, parseValue(cell(row, d.value)))
		return []models.Record{r}, nil
	}

	edition := d.editionLabel(row)
	out := make([]models.Record, 0, len(d.measures))
	for _, m := range d.measures {
		r := base
		r.Indicator = m.Indicator
		r.Vintage = m.Vintage
		if edition != "" && m.PerEdition {
			r.Vintage = m.Vintage + " " + edition
		}
		r.Value = d.clip(m.Indicator, parseValue(cell(row, m.idx)))
		out = append(out, r)
	}
	return out, nil
}

// editionLabel joins the edition cells, e.g. "2019 Oct". Excel stores the
// year as a float, so integral numbers are printed without decimals.
func (d *rowDecoder) editionLabel(row []string) string {
	parts := make([]string, 0, len(d.edition))
	for _, i := range d.edition {
		s := cell(row, i)
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
			s = strconv.Itoa(int(f))
		}
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func (d *rowDecoder) clip(indicator string, v models.Value) models.Value {
	b, ok := d.cfg.Clip[indicator]
	if !ok || !v.Valid {
		return v
	}
	v.Float = math.Max(b.Min, math.Min(b.Max, v.Float))
	return v
}

// parseValue treats blanks, placeholders such as "n/a" or "--", NaN and
// infinities as absent.
func parseValue(s string) models.Value {
	if s == "" {
		return models.Value{}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return models.Value{}
	}
	return models.Some(f)
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
