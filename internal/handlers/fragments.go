package handlers

import (
	"html/template"
	"net/url"
	"strings"

	"allocation-dashboard/internal/export"
	"allocation-dashboard/internal/models"
)

var fragmentFuncs = template.FuncMap{
	"kpi":        export.FormatKPI,
	"percent":    export.FormatPercent,
	"pathEscape": url.PathEscape,
}

var kpiTemplate = template.Must(template.New("kpi").Funcs(fragmentFuncs).Parse(`
<section id="kpi-ribbon" class="kpi-ribbon">
{{if .HasData}}{{range .Cards}}<div class="kpi-card">
<h3>{{.Label}}</h3>
<p>{{.Value}}</p>
</div>{{end}}{{else}}<p class="empty-state">No dataset loaded. Upload a CSV to begin.</p>{{end}}
</section>`))

var totalsTableTemplate = template.Must(template.New("totals").Funcs(fragmentFuncs).Parse(`
<div id="{{.ID}}">
<table class="modern-table">
<thead><tr><th>{{.KeyLabel}}</th><th>Units</th></tr></thead>
<tbody>
{{range .Rows}}<tr class="drillable" data-url="{{$.DrillPath}}{{pathEscape .Key}}" data-on:click="@get(el.dataset.url)">
<td>{{.Key}}</td>
<td>{{kpi .Total}}</td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var distributionTemplate = template.Must(template.New("distribution").Funcs(fragmentFuncs).Parse(`
<div id="distribution-content">
<table class="modern-table">
<thead><tr><th>Units</th><th># Pairs</th></tr></thead>
<tbody>
{{range .}}<tr><td>{{kpi .Key}}</td><td>{{kpi .Total}}</td></tr>{{end}}
</tbody>
</table>
</div>`))

var zeroUnitsTemplate = template.Must(template.New("zeroUnits").Parse(`
<div id="zero-units-content">
<p class="count">{{len .}} products</p>
<ul class="zero-list">
{{range .}}<li>{{.}}</li>{{end}}
</ul>
</div>`))

var gapTableTemplate = template.Must(template.New("gap").Funcs(fragmentFuncs).Parse(`
<div id="gap-content">
<table class="modern-table">
<thead><tr><th>Product</th><th>Units</th><th>Gap</th><th>Fill%</th></tr></thead>
<tbody>
{{range .}}<tr>
<td>{{.Product}}</td>
<td>{{kpi .Units}}</td>
<td>{{kpi .Gap}}</td>
<td>{{percent .FillPercent}}</td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var drillTemplate = template.Must(template.New("drill").Funcs(fragmentFuncs).Parse(`
<div id="drill-content">
<h2>{{.Title}}</h2>
<table class="modern-table">
<thead><tr><th>{{.KeyLabel}}</th><th>Units</th></tr></thead>
<tbody>
{{range .Items}}<tr><td>{{.Key}}</td><td>{{kpi .Total}}</td></tr>{{end}}
</tbody>
</table>
</div>`))

type kpiCard struct {
	Label string
	Value string
}

type kpiData struct {
	HasData bool
	Cards   []kpiCard
}

func kpiCards(s models.SummaryStatistics) []kpiCard {
	return []kpiCard{
		{"Total Units", export.FormatKPI(s.TotalUnits)},
		{"Stores", export.FormatCount(s.StoreCount)},
		{"Products", export.FormatCount(s.ProductCount)},
		{"Avg/Store", export.FormatKPI(s.AvgPerStore)},
		{"Median/Store", export.FormatKPI(s.MedianPerStore)},
		{"Avg/Product", export.FormatKPI(s.AvgPerProduct)},
		{"Median/Product", export.FormatKPI(s.MedianPerProduct)},
		{"Prod-Loc w/o 0", export.FormatCount(s.NonzeroPairCount)},
		{"Avg Gap", export.FormatKPI(s.AvgGap)},
	}
}

type totalsTableData struct {
	ID        string
	KeyLabel  string
	DrillPath string
	Rows      []models.GroupTotal
}

type drillData struct {
	Title    string
	KeyLabel string
	Items    []models.GroupTotal
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf strings.Builder
	err := tmpl.Execute(&buf, data)
	return buf.String(), err
}
