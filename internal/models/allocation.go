package models

import "time"

type Record struct {
	ProductID  string  `json:"product_id"`
	LocationID string  `json:"location_id"`
	Units      float64 `json:"units"`
	Gap        float64 `json:"gap"`
}

type Dataset struct {
	Version  string    `json:"version"`
	Source   string    `json:"source"`
	LoadedAt time.Time `json:"loaded_at"`
	Records  []Record  `json:"-"`
}

// Total is one aggregated group. Keys keep first-seen order unless a caller sorts them.
type Total[K comparable] struct {
	Key   K       `json:"key"`
	Total float64 `json:"total"`
}

type GroupTotal = Total[string]

// PairKey identifies a product/location pair without joining the ids into one string.
type PairKey struct {
	ProductID  string `json:"product_id"`
	LocationID string `json:"location_id"`
}

type PairTotal = Total[PairKey]

type UnitsBucket = Total[float64]

type SummaryStatistics struct {
	TotalUnits       float64 `json:"total_units"`
	StoreCount       int     `json:"store_count"`
	ProductCount     int     `json:"product_count"`
	AvgPerStore      float64 `json:"avg_per_store"`
	MedianPerStore   float64 `json:"median_per_store"`
	AvgPerProduct    float64 `json:"avg_per_product"`
	MedianPerProduct float64 `json:"median_per_product"`
	NonzeroPairCount int     `json:"nonzero_pair_count"`
	AvgGap           float64 `json:"avg_gap"`
	RecordCount      int     `json:"record_count"`
}

type GapRow struct {
	Product     string  `json:"product"`
	Units       float64 `json:"units"`
	Gap         float64 `json:"gap"`
	FillPercent float64 `json:"fill_percent"`
}

type Report struct {
	LocationTotals    []GroupTotal      `json:"location_totals"`
	ProductTotals     []GroupTotal      `json:"product_totals"`
	PairTotals        []PairTotal       `json:"pair_totals"`
	UnitsDistribution []UnitsBucket     `json:"units_distribution"`
	Summary           SummaryStatistics `json:"summary"`
	ZeroUnitProducts  []string          `json:"zero_unit_products"`
	GapAnalysis       []GapRow          `json:"gap_analysis"`
}
