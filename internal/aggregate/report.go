package aggregate

import (
	"context"
	"errors"
	"slices"

	"allocation-dashboard/internal/models"
)

// ErrEmptyDataset is returned when there is nothing to aggregate. Callers should show
// their initial state instead of a report.
var ErrEmptyDataset = errors.New("dataset has no records")

// Options controls sharded aggregation.
type Options struct {
	ShardSize int
	Workers   int
}

// Compute derives every report view from records.
func Compute(records []models.Record) (*models.Report, error) {
	if len(records) == 0 {
		return nil, ErrEmptyDataset
	}
	return build(records,
		GroupBySum(records, ByLocation, Units),
		GroupBySum(records, ByProduct, Units),
		GroupBySum(records, ByPair, Units),
	), nil
}

// ComputeSharded is Compute with the key groupings split across workers.
func ComputeSharded(ctx context.Context, records []models.Record, opts Options) (*models.Report, error) {
	if len(records) == 0 {
		return nil, ErrEmptyDataset
	}

	locations, err := GroupBySumSharded(ctx, records, ByLocation, Units, opts.ShardSize, opts.Workers)
	if err != nil {
		return nil, err
	}
	products, err := GroupBySumSharded(ctx, records, ByProduct, Units, opts.ShardSize, opts.Workers)
	if err != nil {
		return nil, err
	}
	pairs, err := GroupBySumSharded(ctx, records, ByPair, Units, opts.ShardSize, opts.Workers)
	if err != nil {
		return nil, err
	}
	return build(records, locations, products, pairs), nil
}

func build(records []models.Record, locations, products []models.GroupTotal, pairs []models.PairTotal) *models.Report {
	return &models.Report{
		LocationTotals:    locations,
		ProductTotals:     products,
		PairTotals:        pairs,
		UnitsDistribution: SortByKey(GroupByCount(records, ByUnits)),
		Summary:           summarize(records, locations, products, pairs),
		ZeroUnitProducts:  zeroUnitProducts(products),
		GapAnalysis:       gapAnalysis(records, products),
	}
}

func summarize(records []models.Record, locations, products []models.GroupTotal, pairs []models.PairTotal) models.SummaryStatistics {
	totalUnits := sumOf(records, Units)

	nonzero := 0
	for _, p := range pairs {
		if p.Total > 0 {
			nonzero++
		}
	}

	return models.SummaryStatistics{
		TotalUnits:       totalUnits,
		StoreCount:       len(locations),
		ProductCount:     len(products),
		AvgPerStore:      Mean(totalUnits, len(locations)),
		MedianPerStore:   Median(totalsOf(locations)),
		AvgPerProduct:    Mean(totalUnits, len(products)),
		MedianPerProduct: Median(totalsOf(products)),
		NonzeroPairCount: nonzero,
		AvgGap:           Mean(sumOf(records, Gap), len(records)),
		RecordCount:      len(records),
	}
}

func zeroUnitProducts(products []models.GroupTotal) []string {
	zero := make([]string, 0)
	for _, p := range products {
		if p.Total == 0 {
			zero = append(zero, p.Key)
		}
	}
	return zero
}

func gapAnalysis(records []models.Record, products []models.GroupTotal) []models.GapRow {
	units := make(map[string]float64, len(products))
	for _, p := range products {
		units[p.Key] = p.Total
	}

	gaps := GroupBySum(records, ByProduct, Gap)
	rows := make([]models.GapRow, 0, len(gaps))
	for _, g := range gaps {
		u := units[g.Key]
		rows = append(rows, models.GapRow{
			Product:     g.Key,
			Units:       u,
			Gap:         g.Total,
			FillPercent: FillPercent(u, g.Total),
		})
	}

	slices.SortStableFunc(rows, func(a, b models.GapRow) int {
		switch {
		case a.Gap > b.Gap:
			return -1
		case a.Gap < b.Gap:
			return 1
		default:
			return 0
		}
	})
	return rows
}
