package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/02loveslollipop/nuclear-outages/services/connector/models"
	"github.com/02loveslollipop/nuclear-outages/services/modeler/schema"
	"github.com/02loveslollipop/nuclear-outages/services/modeler/tables"
)

type options struct {
	input        string
	outputDir    string
	printRaw     bool
	printModeled bool
	head         int
	maxCols      int
}

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		log.Fatalf("modeler failed: %v", err)
	}
}

func newRootCommand(stdout io.Writer) *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:           "modeler",
		Short:         "Build star-schema model tables from the raw outage dataset.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(stdout, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.input, "input", "raw_data.parquet", "Path to raw parquet produced by the connector")
	flags.StringVar(&opts.outputDir, "output-dir", "modeled", "Directory to write modeled parquet files")
	flags.BoolVar(&opts.printRaw, "print-raw", false, "Print a preview of the raw input")
	flags.BoolVar(&opts.printModeled, "print-modeled", false, "Print a preview of the modeled tables")
	flags.IntVar(&opts.head, "head", 20, "Number of rows to print with --print-raw/--print-modeled")
	flags.IntVar(&opts.maxCols, "print-max-cols", 50, "Max columns to display when printing")
	return cmd
}

func run(stdout io.Writer, opts options) error {
	if opts.head < 0 {
		return fmt.Errorf("invalid --head: %d", opts.head)
	}

	raw, err := schema.LoadRaw(opts.input)
	if err != nil {
		return err
	}
	if opts.printRaw {
		fmt.Fprintln(stdout, "\n=== RAW DATA (preview) ===")
		fmt.Fprintf(stdout, "rows=%d cols=%d\n", len(raw), len(schema.RequiredColumns))
		printRaw(stdout, raw[:min(opts.head, len(raw))], opts.maxCols)
	}

	t, err := schema.Build(raw)
	if err != nil {
		return err
	}
	if err := tables.Write(opts.outputDir, t); err != nil {
		return err
	}

	if opts.printModeled {
		printModeled(stdout, t.Head(opts.head), t.Counts(), opts.maxCols)
	}

	c := t.Counts()
	fmt.Fprintf(stdout, "Wrote modeled tables: dim_plant=%d rows, dim_date=%d rows, fact_outage=%d rows\n",
		c.DimPlant, c.DimDate, c.FactOutage)
	return nil
}

func printRaw(w io.Writer, rows []models.RawObservation, maxCols int) {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{r.Period.Format(models.DateLayout), r.Facility, r.FacilityName, r.Generator})
	}
	printTable(w, []string{"period", "facility", "facilityName", "generator"}, out, maxCols)
}

func printModeled(w io.Writer, t tables.Tables, counts tables.Counts, maxCols int) {
	fmt.Fprintln(w, "\n=== DIM_PLANT (preview) ===")
	fmt.Fprintf(w, "rows=%d cols=5\n", counts.DimPlant)
	plants := make([][]string, 0, len(t.Plants))
	for _, p := range t.Plants {
		plants = append(plants, []string{fmt.Sprint(p.PlantKey), p.EIAFacilityID, p.PlantName, p.UnitName, p.Generator})
	}
	printTable(w, []string{"PlantKey", "EIA_FacilityID", "PlantName", "UnitName", "Generator"}, plants, maxCols)

	fmt.Fprintln(w, "\n=== DIM_DATE (preview) ===")
	fmt.Fprintf(w, "rows=%d cols=6\n", counts.DimDate)
	dates := make([][]string, 0, len(t.Dates))
	for _, d := range t.Dates {
		dates = append(dates, []string{fmt.Sprint(d.DateKey), d.Date.Format(models.DateLayout), fmt.Sprint(d.Year),
			fmt.Sprint(d.Month), d.DayOfWeek, fmt.Sprint(d.IsWeekend)})
	}
	printTable(w, []string{"DateKey", "Date", "Year", "Month", "DayOfWeek", "IsWeekend"}, dates, maxCols)

	fmt.Fprintln(w, "\n=== FACT_OUTAGE (preview) ===")
	fmt.Fprintf(w, "rows=%d cols=7\n", counts.FactOutage)
	facts := make([][]string, 0, len(t.Facts))
	for _, f := range t.Facts {
		facts = append(facts, []string{fmt.Sprint(f.OutageKey), fmt.Sprint(f.PlantKey), fmt.Sprint(f.DateKey),
			f.OutageStartTimestamp.Format(time.DateTime), f.OutageEndTimestamp.Format(time.DateTime),
			fmt.Sprintf("%.1f", f.OutageDurationHours), f.EIAOutageID})
	}
	printTable(w, []string{"OutageKey", "PlantKey", "DateKey", "OutageStartTimestamp", "OutageEndTimestamp",
		"OutageDurationHours", "EIA_OutageID"}, facts, maxCols)
}

func printTable(w io.Writer, header []string, rows [][]string, maxCols int) {
	if maxCols > 0 && len(header) > maxCols {
		header = header[:maxCols]
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	writeRow(tw, header)
	for _, row := range rows {
		writeRow(tw, row[:len(header)])
	}
	_ = tw.Flush()
}

func writeRow(w io.Writer, cells []string) {
	for i, c := range cells {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, c)
	}
	fmt.Fprintln(w)
}
