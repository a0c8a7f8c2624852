package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"allocation-dashboard/internal/aggregate"
	"allocation-dashboard/internal/export"
	"allocation-dashboard/internal/models"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func formatUnits(v float64) string {
	return export.FormatKPI(v)
}

func newReportCmd(load loader) *cobra.Command {
	var (
		asJSON bool
		top    string
		sort   string
	)

	cmd := &cobra.Command{
		Use:   "report <file.csv>",
		Short: "Print summary KPIs and the top stores and products",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := aggregate.ParseLimit(top)
			if err != nil {
				return err
			}
			dir, err := aggregate.ParseDirection(sort)
			if err != nil {
				return err
			}

			analytics, err := load(cmd, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(analytics.Report())
			}

			printSummary(out, analytics.Summary())
			printTotals(out, fmt.Sprintf("Units per Location (%s, %s)", limit, dir), "Store ID", analytics.Locations(dir, limit))
			printTotals(out, fmt.Sprintf("Units per Product (%s, %s)", limit, dir), "Product ID", analytics.Products(dir, limit))

			zero := analytics.ZeroUnitProducts()
			fmt.Fprintf(out, "\nProducts with 0 units: %s\n", export.FormatCount(len(zero)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	cmd.Flags().StringVar(&top, "top", "10", "rows per table: a positive integer or All")
	cmd.Flags().StringVar(&sort, "sort", "desc", "sort direction: asc or desc")
	return cmd
}

func printSummary(w io.Writer, s models.SummaryStatistics) {
	tw := newTable(w)
	fmt.Fprintln(w, "Summary")
	rows := []struct {
		label string
		value string
	}{
		{"Total Units", export.FormatKPI(s.TotalUnits)},
		{"Stores", export.FormatCount(s.StoreCount)},
		{"Products", export.FormatCount(s.ProductCount)},
		{"Avg/Store", export.FormatKPI(s.AvgPerStore)},
		{"Median/Store", export.FormatKPI(s.MedianPerStore)},
		{"Avg/Product", export.FormatKPI(s.AvgPerProduct)},
		{"Median/Product", export.FormatKPI(s.MedianPerProduct)},
		{"Prod-Loc w/o 0", export.FormatCount(s.NonzeroPairCount)},
		{"Avg Gap", export.FormatKPI(s.AvgGap)},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", r.label, r.value)
	}
	tw.Flush()
}
