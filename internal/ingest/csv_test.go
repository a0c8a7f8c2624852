package ingest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"allocation-dashboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ValidData(t *testing.T) {
	input := "product_id,location_id,units,gap\nP1,L1,10,2\nP1,L2,0,5\nP2,L1,5,0\n"

	records, err := Parse(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []models.Record{
		{ProductID: "P1", LocationID: "L1", Units: 10, Gap: 2},
		{ProductID: "P1", LocationID: "L2", Units: 0, Gap: 5},
		{ProductID: "P2", LocationID: "L1", Units: 5, Gap: 0},
	}, records)
}

func TestParse_ColumnOrderAndBOM(t *testing.T) {
	input := "\ufeffGAP, Units ,location_id,product_id,extra\n1,2,L9,P9,x\n"

	records, err := Parse(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.Record{ProductID: "P9", LocationID: "L9", Units: 2, Gap: 1}, records[0])
}

func TestParse_CoercesBadNumbers(t *testing.T) {
	input := "product_id,location_id,units,gap\nP1,L1,abc,\nP2,L1,NaN,Inf\nP3,L1, 4.5 ,1e2\n"

	records, err := Parse(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, 0.0, records[0].Units)
	assert.Equal(t, 0.0, records[0].Gap)
	assert.Equal(t, 0.0, records[1].Units)
	assert.Equal(t, 0.0, records[1].Gap)
	assert.Equal(t, 4.5, records[2].Units)
	assert.Equal(t, 100.0, records[2].Gap)
}

func TestParse_MissingNumericColumns(t *testing.T) {
	records, err := Parse(context.Background(), strings.NewReader("product_id,location_id\nP1,L1\n"))
	require.NoError(t, err)
	assert.Equal(t, []models.Record{{ProductID: "P1", LocationID: "L1"}}, records)
}

func TestParse_SkipsBlankLines(t *testing.T) {
	input := "product_id,location_id,units,gap\n\nP1,L1,1,0\n\n"
	records, err := Parse(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestParse_HeaderOnly(t *testing.T) {
	records, err := Parse(context.Background(), strings.NewReader("product_id,location_id,units,gap\n"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"empty file", ""},
		{"missing id columns", "sku,store,units\nA,B,1\n"},
		{"ragged row", "product_id,location_id,units,gap\nP1,L1,1\n"},
		{"bad quoting", "product_id,location_id,units,gap\n\"P1,L1,1,0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(context.Background(), strings.NewReader(tt.csv))
			assert.ErrorIs(t, err, ErrMalformedCSV)
		})
	}
}

func TestParse_LargeInputKeepsOrder(t *testing.T) {
	var b strings.Builder
	b.WriteString("product_id,location_id,units,gap\n")
	n := batchSize*2 + 17
	for i := range n {
		fmt.Fprintf(&b, "P%d,L%d,%d,0\n", i, i%5, i%3)
	}

	records, err := Parse(context.Background(), strings.NewReader(b.String()))
	require.NoError(t, err)
	require.Len(t, records, n)
	assert.Equal(t, "P0", records[0].ProductID)
	assert.Equal(t, fmt.Sprintf("P%d", n-1), records[n-1].ProductID)
	assert.Equal(t, fmt.Sprintf("P%d", batchSize), records[batchSize].ProductID)
}

func TestParseQuantity(t *testing.T) {
	assert.Equal(t, 12.0, ParseQuantity("12"))
	assert.Equal(t, 0.0, ParseQuantity(""))
	assert.Equal(t, 0.0, ParseQuantity("n/a"))
	assert.Equal(t, -3.0, ParseQuantity("-3"))
}
