// Package ingest turns allocation CSV files into records.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"allocation-dashboard/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	batchSize  = 10000
	maxWorkers = 10

	ColumnProduct  = "product_id"
	ColumnLocation = "location_id"
	ColumnUnits    = "units"
	ColumnGap      = "gap"
)

// ErrMalformedCSV is the single error reported for any structural parse failure.
var ErrMalformedCSV = errors.New("malformed csv")

type columns struct {
	product, location, units, gap int
}

// Parse reads a header row followed by allocation rows. Columns are matched by name.
// Numeric fields that are missing or unparseable become 0.
func Parse(ctx context.Context, r io.Reader) ([]models.Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: missing header", ErrMalformedCSV)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCSV, err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCSV, err)
	}

	records := make([]models.Record, len(rows))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			for i := start; i < end; i++ {
				records[i] = parseRecord(rows[i], cols)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return records, nil
}

func mapColumns(header []string) (columns, error) {
	cols := columns{product: -1, location: -1, units: -1, gap: -1}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		switch name {
		case ColumnProduct:
			cols.product = i
		case ColumnLocation:
			cols.location = i
		case ColumnUnits:
			cols.units = i
		case ColumnGap:
			cols.gap = i
		}
	}

	if cols.product < 0 || cols.location < 0 {
		return cols, fmt.Errorf("%w: header must contain %s and %s", ErrMalformedCSV, ColumnProduct, ColumnLocation)
	}
	return cols, nil
}

func parseRecord(row []string, cols columns) models.Record {
	return models.Record{
		ProductID:  field(row, cols.product),
		LocationID: field(row, cols.location),
		Units:      ParseQuantity(field(row, cols.units)),
		Gap:        ParseQuantity(field(row, cols.gap)),
	}
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ParseQuantity parses a numeric cell, returning 0 for anything that is not a finite number.
func ParseQuantity(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
