// Command allocstat computes the dashboard report for an allocation CSV without starting
// the web server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"allocation-dashboard/internal/config"
	"allocation-dashboard/internal/models"
	"allocation-dashboard/internal/observability"
	"allocation-dashboard/internal/services"
)

var errNoRecords = errors.New("csv has a header but no records")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "allocstat",
		Short:         "Aggregate allocation CSV files from the command line",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "error", "log level (debug, info, warn, error)")

	load := func(cmd *cobra.Command, path string) (*services.Analytics, error) {
		return loadDataset(cmd.Context(), cmd.ErrOrStderr(), logLevel, path)
	}

	root.AddCommand(
		newReportCmd(load),
		newExportCmd(load),
		newDrillCmd(load),
	)
	return root
}

type loader func(cmd *cobra.Command, path string) (*services.Analytics, error)

// loadDataset parses path with the engine settings from the environment. Logs go to
// stderr so stdout stays clean for piping.
func loadDataset(ctx context.Context, logOut io.Writer, logLevel, path string) (*services.Analytics, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	logger := observability.NewLoggerTo(logOut, config.LoggerConfig{Level: logLevel, Format: "text"})
	analytics := services.NewAnalytics(
		services.WithLogger(logger),
		services.WithEngine(cfg.Engine),
	)

	ds, err := analytics.LoadFromCSV(ctx, path)
	if err != nil {
		return nil, err
	}
	if ds == nil {
		return nil, fmt.Errorf("%s: %w", path, errNoRecords)
	}
	logger.Debug("dataset loaded", slog.String("version", ds.Version), slog.Int("records", len(ds.Records)))
	return analytics, nil
}

func printTotals(w io.Writer, title, keyLabel string, totals []models.GroupTotal) {
	tw := newTable(w)
	fmt.Fprintf(w, "\n%s\n", title)
	fmt.Fprintf(tw, "%s\tUnits\n", keyLabel)
	for _, t := range totals {
		fmt.Fprintf(tw, "%s\t%s\n", t.Key, formatUnits(t.Total))
	}
	tw.Flush()
}
