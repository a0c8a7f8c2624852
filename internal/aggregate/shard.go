package aggregate

import (
	"context"

	"allocation-dashboard/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultShardSize = 10000
	DefaultWorkers   = 10
)

// GroupBySumSharded is GroupBySum over contiguous shards summed in parallel.
// Partial maps are merged in shard order, so the group order matches GroupBySum.
func GroupBySumSharded[K comparable](ctx context.Context, records []models.Record, keyOf KeyFunc[K], valueOf ValueFunc, shardSize, workers int) ([]models.Total[K], error) {
	if valueOf == nil {
		valueOf = Units
	}
	if shardSize <= 0 {
		shardSize = DefaultShardSize
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if len(records) <= shardSize {
		return GroupBySum(records, keyOf, valueOf), nil
	}

	shards := (len(records) + shardSize - 1) / shardSize
	partials := make([]*orderedSums[K], shards)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range shards {
		start := i * shardSize
		end := min(start+shardSize, len(records))
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			local := newOrderedSums[K](0)
			for _, r := range records[start:end] {
				local.add(keyOf(r), valueOf(r))
			}
			partials[i] = local
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := newOrderedSums[K](len(partials[0].totals))
	for _, p := range partials {
		merged.merge(p)
	}
	return merged.totals, nil
}
