package aggregate

import (
	"math"
	"slices"

	"allocation-dashboard/internal/models"
	"github.com/shopspring/decimal"
)

// Median returns the middle value of a sorted copy of values, or the mean of the two
// middle values for an even count. It returns NaN for empty input.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Mean is sum/count, NaN when count is zero.
func Mean(sum float64, count int) float64 {
	if count == 0 {
		return math.NaN()
	}
	return sum / float64(count)
}

var hundred = decimal.NewFromInt(100)

// FillPercent is units/(units+gap) as a percentage rounded to one decimal.
// A product with no units and no gap reports 0.
func FillPercent(units, gap float64) float64 {
	demand := units + gap
	if demand == 0 || math.IsNaN(demand) || math.IsInf(demand, 0) {
		return 0
	}
	pct := decimal.NewFromFloat(units).
		Div(decimal.NewFromFloat(demand)).
		Mul(hundred).
		Round(1)
	return pct.InexactFloat64()
}

func totalsOf[K comparable](totals []models.Total[K]) []float64 {
	out := make([]float64, len(totals))
	for i, t := range totals {
		out[i] = t.Total
	}
	return out
}
