package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"allocation-dashboard/internal/export"
)

func newExportCmd(load loader) *cobra.Command {
	var (
		view string
		out  string
		bom  bool
	)

	cmd := &cobra.Command{
		Use:   "export <file.csv>",
		Short: "Write one report view as CSV, or every view as an XLSX workbook",
		Long: "Writes the view named by --view to --out. An --out ending in .xlsx gets every view,\n" +
			"one sheet each. Views: " + strings.Join(export.Views, ", "),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			xlsx := strings.EqualFold(filepath.Ext(out), ".xlsx")
			if !xlsx && !slices.Contains(export.Views, view) {
				return fmt.Errorf("%w %q", export.ErrUnknownView, view)
			}

			analytics, err := load(cmd, args[0])
			if err != nil {
				return err
			}
			report := analytics.Report()

			if out == "" {
				out = export.FileName(view)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()

			if xlsx {
				err = export.WriteXLSX(f, export.ReportTables(report)...)
			} else {
				var table export.Table
				table, err = export.ReportTable(report, view)
				if err == nil {
					err = export.WriteCSV(f, table, export.WriteOptions{BOMPrefix: bom})
				}
			}
			if err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			if err := f.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&view, "view", "gap", "report view to export")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (.csv or .xlsx), defaults to the view's file name")
	cmd.Flags().BoolVar(&bom, "bom", false, "prefix CSV output with a UTF-8 byte order mark")
	return cmd
}
