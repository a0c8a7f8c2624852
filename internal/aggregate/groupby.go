// Package aggregate turns a flat list of allocation records into the derived dashboard views.
//
// Every function is pure: inputs are never mutated and no state survives a call.
package aggregate

import (
	"allocation-dashboard/internal/models"
)

// KeyFunc extracts the grouping key of a record. It must be deterministic.
type KeyFunc[K comparable] func(models.Record) K

// ValueFunc extracts the value summed per group.
type ValueFunc func(models.Record) float64

func Units(r models.Record) float64 { return r.Units }

func Gap(r models.Record) float64 { return r.Gap }

func ByLocation(r models.Record) string { return r.LocationID }

func ByProduct(r models.Record) string { return r.ProductID }

func ByPair(r models.Record) models.PairKey {
	return models.PairKey{ProductID: r.ProductID, LocationID: r.LocationID}
}

func ByUnits(r models.Record) float64 { return r.Units }

// orderedSums is a hash map that remembers first insertion order.
type orderedSums[K comparable] struct {
	index  map[K]int
	totals []models.Total[K]
}

func newOrderedSums[K comparable](capacity int) *orderedSums[K] {
	return &orderedSums[K]{
		index:  make(map[K]int, capacity),
		totals: make([]models.Total[K], 0, capacity),
	}
}

func (o *orderedSums[K]) add(key K, v float64) {
	if i, ok := o.index[key]; ok {
		o.totals[i].Total += v
		return
	}
	o.index[key] = len(o.totals)
	o.totals = append(o.totals, models.Total[K]{Key: key, Total: v})
}

func (o *orderedSums[K]) merge(other *orderedSums[K]) {
	for _, t := range other.totals {
		o.add(t.Key, t.Total)
	}
}

// GroupBySum partitions records by keyOf and sums valueOf per partition.
// Groups are returned in first-seen key order. Empty input yields an empty slice.
func GroupBySum[K comparable](records []models.Record, keyOf KeyFunc[K], valueOf ValueFunc) []models.Total[K] {
	if valueOf == nil {
		valueOf = Units
	}
	sums := newOrderedSums[K](0)
	for _, r := range records {
		sums.add(keyOf(r), valueOf(r))
	}
	return sums.totals
}

// GroupByCount partitions records by keyOf and counts records per partition.
func GroupByCount[K comparable](records []models.Record, keyOf KeyFunc[K]) []models.Total[K] {
	return GroupBySum(records, keyOf, func(models.Record) float64 { return 1 })
}

// Filter returns the records matching keep, in input order.
func Filter(records []models.Record, keep func(models.Record) bool) []models.Record {
	out := make([]models.Record, 0)
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func sumOf(records []models.Record, valueOf ValueFunc) float64 {
	var total float64
	for _, r := range records {
		total += valueOf(r)
	}
	return total
}
