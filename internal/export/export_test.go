package export

import (
	"bytes"
	"encoding/csv"
	"math"
	"strconv"
	"strings"
	"testing"

	"allocation-dashboard/internal/aggregate"
	"allocation-dashboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testReport(t *testing.T) *models.Report {
	t.Helper()
	report, err := aggregate.Compute([]models.Record{
		{ProductID: "P1", LocationID: "L1", Units: 10, Gap: 2},
		{ProductID: "P1", LocationID: "L2", Units: 0, Gap: 5},
		{ProductID: "P2", LocationID: "L1", Units: 5, Gap: 0},
		{ProductID: "P3", LocationID: "L3", Units: 0, Gap: 0},
	})
	require.NoError(t, err)
	return report
}

func TestWriteCSV_GapTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, GapTable(testReport(t).GapAnalysis), WriteOptions{}))

	assert.Equal(t, "product,units,gap,fill\nP1,10,7,58.8\nP2,5,0,100.0\nP3,0,0,0.0\n", buf.String())
}

func TestWriteCSV_ZeroUnits(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ZeroUnitsTable(testReport(t).ZeroUnitProducts), WriteOptions{}))

	assert.Equal(t, "product\nP3\n", buf.String())
}

func TestWriteCSV_QuotesDelimiters(t *testing.T) {
	table := TotalsTable("products", "product", []models.GroupTotal{
		{Key: `Widget, large`, Total: 3},
		{Key: `12" pipe`, Total: 1.5},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table, WriteOptions{}))

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"product", "total"},
		{"Widget, large", "3"},
		{`12" pipe`, "1.5"},
	}, rows)
}

func TestWriteCSV_BOM(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ZeroUnitsTable(nil), WriteOptions{BOMPrefix: true}))
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, buf.Bytes()[:3])
	assert.Equal(t, "product\n", buf.String()[3:])
}

func TestReportTable(t *testing.T) {
	report := testReport(t)

	for _, view := range Views {
		table, err := ReportTable(report, view)
		require.NoError(t, err, view)
		assert.Equal(t, view, table.Name)
		assert.NotEmpty(t, table.Header)
		for _, row := range table.Rows {
			assert.Len(t, row, len(table.Header), view)
		}
	}

	_, err := ReportTable(report, "nope")
	assert.Error(t, err)
}

func TestPairsAndDistributionTables(t *testing.T) {
	report := testReport(t)

	pairs := PairsTable(report.PairTotals)
	assert.Equal(t, []string{"P1", "L1", "10"}, pairs.Rows[0])

	dist := DistributionTable(report.UnitsDistribution)
	assert.Equal(t, [][]string{{"0", "2"}, {"5", "1"}, {"10", "1"}}, dist.Rows)
}

func TestWriteXLSX(t *testing.T) {
	report := testReport(t)

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, ReportTables(report)...))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, Views, f.GetSheetList())

	rows, err := f.GetRows("gap")
	require.NoError(t, err)
	assert.Equal(t, []string{"product", "units", "gap", "fill"}, rows[0])
	assert.Equal(t, []string{"P1", "10", "7", "58.8"}, rows[1])
}

func TestWriteXLSX_NoTables(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteXLSX(&buf))
}

func TestFormatKPI(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{15, "15"},
		{1234567, "1,234,567"},
		{7.5, "7.50"},
		{2.333333, "2.33"},
		{-1200.5, "-1,200.50"},
		{math.NaN(), "-"},
		{math.Inf(1), "-"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatKPI(tt.in), "FormatKPI(%v)", tt.in)
	}
	assert.Equal(t, "12,000", FormatCount(12000))
}

func TestFormatKPI_BeyondInt64(t *testing.T) {
	for _, v := range []float64{1e19, -1e19} {
		got := strings.ReplaceAll(FormatKPI(v), ",", "")
		assert.Equal(t, strconv.FormatFloat(v, 'f', 0, 64), got, "FormatKPI(%g)", v)
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "zero_units.csv", FileName("zero_units"))
	assert.Equal(t, "gap.csv", FileName("gap"))
	assert.Equal(t, "locations.csv", FileName("locations"))
}

func TestReportTable_UnknownView(t *testing.T) {
	_, err := ReportTable(testReport(t), "bogus")
	assert.ErrorIs(t, err, ErrUnknownView)
}
