// Package export serializes report views as CSV or XLSX.
package export

import (
	"errors"
	"fmt"
	"strconv"

	"allocation-dashboard/internal/models"
)

const (
	ZeroUnitsFile = "zero_units.csv"
	GapFile       = "gap.csv"
)

// Table is a uniform header-plus-rows view.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func FormatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func TotalsTable(name, keyColumn string, totals []models.GroupTotal) Table {
	rows := make([][]string, 0, len(totals))
	for _, t := range totals {
		rows = append(rows, []string{t.Key, formatNumber(t.Total)})
	}
	return Table{Name: name, Header: []string{keyColumn, "total"}, Rows: rows}
}

func PairsTable(pairs []models.PairTotal) Table {
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{p.Key.ProductID, p.Key.LocationID, formatNumber(p.Total)})
	}
	return Table{Name: "pairs", Header: []string{"product", "location", "total"}, Rows: rows}
}

func DistributionTable(buckets []models.UnitsBucket) Table {
	rows := make([][]string, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, []string{formatNumber(b.Key), formatNumber(b.Total)})
	}
	return Table{Name: "distribution", Header: []string{"units", "pairs"}, Rows: rows}
}

func ZeroUnitsTable(products []string) Table {
	rows := make([][]string, 0, len(products))
	for _, p := range products {
		rows = append(rows, []string{p})
	}
	return Table{Name: "zero_units", Header: []string{"product"}, Rows: rows}
}

func GapTable(gaps []models.GapRow) Table {
	rows := make([][]string, 0, len(gaps))
	for _, g := range gaps {
		rows = append(rows, []string{g.Product, formatNumber(g.Units), formatNumber(g.Gap), FormatPercent(g.FillPercent)})
	}
	return Table{Name: "gap", Header: []string{"product", "units", "gap", "fill"}, Rows: rows}
}

func SummaryTable(s models.SummaryStatistics) Table {
	return Table{
		Name:   "summary",
		Header: []string{"metric", "value"},
		Rows: [][]string{
			{"total_units", formatNumber(s.TotalUnits)},
			{"stores", strconv.Itoa(s.StoreCount)},
			{"products", strconv.Itoa(s.ProductCount)},
			{"avg_per_store", formatNumber(s.AvgPerStore)},
			{"median_per_store", formatNumber(s.MedianPerStore)},
			{"avg_per_product", formatNumber(s.AvgPerProduct)},
			{"median_per_product", formatNumber(s.MedianPerProduct)},
			{"nonzero_pairs", strconv.Itoa(s.NonzeroPairCount)},
			{"avg_gap", formatNumber(s.AvgGap)},
			{"records", strconv.Itoa(s.RecordCount)},
		},
	}
}

var ErrUnknownView = errors.New("unknown view")

// Views lists the table names ReportTable accepts.
var Views = []string{"summary", "locations", "products", "pairs", "distribution", "zero_units", "gap"}

// FileName is the download name for a view.
func FileName(view string) string {
	switch view {
	case "zero_units":
		return ZeroUnitsFile
	case "gap":
		return GapFile
	default:
		return view + ".csv"
	}
}

// ReportTable builds one named view of a report.
func ReportTable(report *models.Report, view string) (Table, error) {
	switch view {
	case "summary":
		return SummaryTable(report.Summary), nil
	case "locations":
		return TotalsTable("locations", "location", report.LocationTotals), nil
	case "products":
		return TotalsTable("products", "product", report.ProductTotals), nil
	case "pairs":
		return PairsTable(report.PairTotals), nil
	case "distribution":
		return DistributionTable(report.UnitsDistribution), nil
	case "zero_units":
		return ZeroUnitsTable(report.ZeroUnitProducts), nil
	case "gap":
		return GapTable(report.GapAnalysis), nil
	default:
		return Table{}, fmt.Errorf("%w %q", ErrUnknownView, view)
	}
}

// ReportTables returns every view of a report in display order.
func ReportTables(report *models.Report) []Table {
	tables := make([]Table, 0, len(Views))
	for _, v := range Views {
		t, _ := ReportTable(report, v)
		tables = append(tables, t)
	}
	return tables
}
