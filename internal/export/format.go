package export

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Above 2^53 every float64 is a whole number and int64 may not hold it.
const maxExactInt = 1 << 53

// FormatKPI renders v with thousands separators, as whole numbers when v has no fraction
// and with two decimals otherwise. Non-finite values render as "-".
func FormatKPI(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	if math.Abs(v) >= maxExactInt {
		return printer.Sprintf("%.0f", v)
	}
	rounded := math.Round(v*100) / 100
	if rounded == math.Trunc(rounded) {
		return printer.Sprintf("%d", int64(rounded))
	}
	return printer.Sprintf("%.2f", rounded)
}

func FormatCount(n int) string {
	return printer.Sprintf("%d", n)
}
