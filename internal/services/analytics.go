package services

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"allocation-dashboard/internal/aggregate"
	"allocation-dashboard/internal/config"
	"allocation-dashboard/internal/ingest"
	"allocation-dashboard/internal/models"
	"allocation-dashboard/internal/observability"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// ErrSuperseded is returned by Replace when a newer dataset, or a reset, arrived while the
// report was being computed. The newer state stays in place.
var ErrSuperseded = errors.New("dataset superseded by a newer load")

const (
	modeSequential = "sequential"
	modeSharded    = "sharded"
)

type Option func(*Analytics)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Analytics) { a.logger = logger }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(a *Analytics) { a.metrics = m }
}

func WithEngine(cfg config.EngineConfig) Option {
	return func(a *Analytics) { a.engine = cfg }
}

// Analytics owns the current dataset and the report computed from it. Reads never
// recompute; they sort or truncate the cached views.
type Analytics struct {
	mu      sync.RWMutex
	dataset *models.Dataset
	report  *models.Report
	// pending is the digest of the most recent Replace, or empty after a Reset.
	pending string

	flight    singleflight.Group
	computeFn func(context.Context, []models.Record) (*models.Report, error)
	loads     atomic.Int64
	discarded atomic.Int64
	inflight  atomic.Int64

	engine  config.EngineConfig
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewAnalytics(opts ...Option) *Analytics {
	a := &Analytics{
		report: emptyReport(),
		engine: config.Default().Engine,
		logger: slog.Default(),
	}
	a.computeFn = a.compute
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func emptyReport() *models.Report {
	return &models.Report{
		LocationTotals:    []models.GroupTotal{},
		ProductTotals:     []models.GroupTotal{},
		PairTotals:        []models.PairTotal{},
		UnitsDistribution: []models.UnitsBucket{},
		ZeroUnitProducts:  []string{},
		GapAnalysis:       []models.GapRow{},
	}
}

func (a *Analytics) LoadFromCSV(ctx context.Context, filename string) (*models.Dataset, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	return a.LoadFromReader(ctx, file, filename)
}

func (a *Analytics) LoadFromReader(ctx context.Context, r io.Reader, source string) (*models.Dataset, error) {
	start := time.Now()
	a.logger.Info("processing CSV", "source", source)

	records, err := ingest.Parse(ctx, r)
	if err != nil {
		a.countLoad("parse_error")
		return nil, fmt.Errorf("parse %s: %w", source, err)
	}

	ds, err := a.Replace(ctx, records, source)
	if err != nil {
		return nil, err
	}

	duration := time.Since(start)
	a.logger.Info("csv processing complete",
		"source", source,
		"records", len(records),
		"duration", duration,
		"rate", fmt.Sprintf("%.0f records/sec", float64(len(records))/duration.Seconds()))

	return ds, nil
}

// Replace installs records as the current dataset. An empty slice resets to the initial
// state and returns a nil dataset. Concurrent calls with identical records share one
// aggregation. If a Replace with different records, or a Reset, happens before the
// aggregation finishes, this result is dropped and ErrSuperseded is returned.
func (a *Analytics) Replace(ctx context.Context, records []models.Record, source string) (*models.Dataset, error) {
	if len(records) == 0 {
		a.logger.Info("empty dataset, resetting", "source", source)
		a.Reset()
		a.countLoad("empty")
		return nil, nil
	}

	digest := recordsDigest(records)
	a.mu.Lock()
	a.pending = digest
	a.mu.Unlock()

	a.inflight.Add(1)
	v, err, shared := a.flight.Do(digest, func() (any, error) {
		// Joined callers must not fail because the first caller went away.
		return a.computeFn(context.WithoutCancel(ctx), records)
	})
	a.inflight.Add(-1)
	if err != nil {
		a.countLoad("error")
		return nil, fmt.Errorf("aggregate %s: %w", source, err)
	}
	if shared {
		a.logger.Debug("shared in-flight aggregation", "digest", digest[:12], "source", source)
	}
	report := v.(*models.Report)

	version := uuid.NewString()
	ds := &models.Dataset{
		Version:  version,
		Source:   source,
		LoadedAt: time.Now().UTC(),
		Records:  records,
	}

	a.mu.Lock()
	if a.pending != digest {
		a.mu.Unlock()
		a.discarded.Add(1)
		if a.metrics != nil {
			a.metrics.DiscardedResults.Inc()
		}
		a.countLoad("superseded")
		a.logger.Warn("discarding superseded aggregation", "version", version, "source", source)
		return nil, ErrSuperseded
	}
	a.dataset = ds
	a.report = report
	a.mu.Unlock()

	a.loads.Add(1)
	a.countLoad("ok")
	if a.metrics != nil {
		a.metrics.DatasetRecords.Set(float64(len(records)))
	}
	a.logger.Info("dataset replaced",
		"version", version,
		"source", source,
		"records", len(records),
		"locations", len(report.LocationTotals),
		"products", len(report.ProductTotals))

	return ds, nil
}

// recordsDigest identifies a record slice by content, in order.
func recordsDigest(records []models.Record) string {
	h := sha256.New()
	var buf [8]byte
	for _, rec := range records {
		h.Write([]byte(rec.ProductID))
		h.Write([]byte{0})
		h.Write([]byte(rec.LocationID))
		h.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(rec.Units))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(rec.Gap))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (a *Analytics) compute(ctx context.Context, records []models.Record) (*models.Report, error) {
	ctx, span := observability.StartSpan(ctx, "aggregate")
	defer span.End(ctx, a.logger)

	mode := modeSequential
	if a.engine.ShardThreshold > 0 && len(records) > a.engine.ShardThreshold {
		mode = modeSharded
	}
	span.SetTag("mode", mode)
	span.SetTag("records", fmt.Sprint(len(records)))

	start := time.Now()
	var (
		report *models.Report
		err    error
	)
	if mode == modeSharded {
		report, err = aggregate.ComputeSharded(ctx, records, aggregate.Options{
			ShardSize: a.engine.ShardSize,
			Workers:   a.engine.Workers,
		})
	} else {
		report, err = aggregate.Compute(records)
	}
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	if a.metrics != nil {
		a.metrics.AggregationDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}
	return report, nil
}

func (a *Analytics) countLoad(outcome string) {
	if a.metrics != nil {
		a.metrics.DatasetLoads.WithLabelValues(outcome).Inc()
	}
}

// Reset drops the current dataset. Aggregations still in flight are discarded when
// they finish.
func (a *Analytics) Reset() {
	a.mu.Lock()
	a.dataset = nil
	a.report = emptyReport()
	a.pending = ""
	a.mu.Unlock()

	if a.metrics != nil {
		a.metrics.DatasetRecords.Set(0)
	}
}

func (a *Analytics) HasData() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dataset != nil
}

// Dataset returns the current dataset, or nil before the first load.
func (a *Analytics) Dataset() *models.Dataset {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.dataset == nil {
		return nil
	}
	ds := *a.dataset
	return &ds
}

// Snapshot is the dataset and summary as of one instant.
type Snapshot struct {
	Dataset *models.Dataset
	Summary models.SummaryStatistics
}

func (s Snapshot) HasData() bool { return s.Dataset != nil }

// Snapshot reads the dataset and its summary under one lock, so a concurrent Reset or
// Replace cannot pair one state's dataset with another state's summary.
func (a *Analytics) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	snap := Snapshot{Summary: a.report.Summary}
	if a.dataset != nil {
		ds := *a.dataset
		snap.Dataset = &ds
	}
	return snap
}

// Report returns the cached report. Callers must treat it as read-only.
func (a *Analytics) Report() *models.Report {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.report
}

func (a *Analytics) Locations(dir aggregate.Direction, limit aggregate.Limit) []models.GroupTotal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return aggregate.Select(a.report.LocationTotals, dir, limit)
}

func (a *Analytics) Products(dir aggregate.Direction, limit aggregate.Limit) []models.GroupTotal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return aggregate.Select(a.report.ProductTotals, dir, limit)
}

// Pairs keeps first-seen order.
func (a *Analytics) Pairs(limit aggregate.Limit) []models.PairTotal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return aggregate.Head(a.report.PairTotals, limit)
}

// Distribution is ordered by units ascending.
func (a *Analytics) Distribution(limit aggregate.Limit) []models.UnitsBucket {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return aggregate.Head(a.report.UnitsDistribution, limit)
}

func (a *Analytics) Summary() models.SummaryStatistics {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.report.Summary
}

func (a *Analytics) ZeroUnitProducts() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return aggregate.Head(a.report.ZeroUnitProducts, aggregate.Unbounded)
}

// GapAnalysis is ordered by gap descending.
func (a *Analytics) GapAnalysis(limit aggregate.Limit) []models.GapRow {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return aggregate.Head(a.report.GapAnalysis, limit)
}

func (a *Analytics) DrillLocation(location string) []models.GroupTotal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.dataset == nil {
		return []models.GroupTotal{}
	}
	return aggregate.ProductsAtLocation(a.dataset.Records, location)
}

func (a *Analytics) DrillProduct(product string) []models.GroupTotal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.dataset == nil {
		return []models.GroupTotal{}
	}
	return aggregate.LocationsForProduct(a.dataset.Records, product)
}

// Stats is for monitoring.
func (a *Analytics) Stats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := map[string]any{
		"has_data":           a.dataset != nil,
		"record_count":       a.report.Summary.RecordCount,
		"locations":          len(a.report.LocationTotals),
		"products":           len(a.report.ProductTotals),
		"pairs":              len(a.report.PairTotals),
		"loads":              a.loads.Load(),
		"superseded_results": a.discarded.Load(),
		"inflight_loads":     a.inflight.Load(),
	}
	if a.dataset != nil {
		stats["version"] = a.dataset.Version
		stats["source"] = a.dataset.Source
		stats["loaded_at"] = a.dataset.LoadedAt
	}
	return stats
}
