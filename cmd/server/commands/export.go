package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"

	"weodash/internal/engine"
	"weodash/internal/models"
)

func exportCmd() *cobra.Command {
	var (
		sel     models.FilterSelection
		yearMin int
		yearMax int
		kind    string
		format  string
		out     string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered data as CSV or Arrow",
		Example: `  weodash export --country Brazil --country "United States" --indicator inflation --out weo.csv
  weodash export --region Europe --year-min 2000 --year-max 2020 --format arrow --out weo.arrow`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("year-min") || flags.Changed("year-max") {
				sel.YearRange = &models.YearRange{Min: yearMin, Max: yearMax}
			}

			vk, err := engine.ParseVintageKind(kind)
			if err != nil {
				return err
			}

			table, err := loadTable(cmd.Context())
			if err != nil {
				return err
			}
			view, err := engine.ApplyFilters(table, sel)
			if err != nil {
				return err
			}
			view = engine.OnlyKind(view, conf.Vintages, vk)
			if len(view) == 0 {
				log.Warn("no records match the selection")
			}

			if out == "" {
				if err := write(cmd.OutOrStdout(), format, view); err != nil {
					return err
				}
			} else {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				if err := write(f, format, view); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("failed to close output file: %w", err)
				}
			}

			log.Infof("exported %d records", len(view))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringArrayVar(&sel.Countries, "country", nil, "country to include (repeatable)")
	f.StringArrayVar(&sel.Regions, "region", nil, "region to include (repeatable)")
	f.StringArrayVar(&sel.IncomeGroups, "income-group", nil, "income group to include (repeatable)")
	f.StringVar(&sel.Indicator, "indicator", "", "indicator, e.g. inflation (default all)")
	f.IntVar(&yearMin, "year-min", -1<<31, "first year")
	f.IntVar(&yearMax, "year-max", 1<<31-1, "last year")
	f.StringVar(&kind, "kind", "", "forecast or actual (default both)")
	f.StringVar(&format, "format", "csv", "csv or arrow")
	f.StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func write(w io.Writer, format string, v engine.View) error {
	switch format {
	case "csv":
		return engine.WriteCSV(w, v)
	case "arrow":
		return engine.WriteArrow(w, v)
	}
	return fmt.Errorf("unknown format %q (csv or arrow)", format)
}
