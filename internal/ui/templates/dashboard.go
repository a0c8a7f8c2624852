// Package templates renders the dashboard shell. Panels start empty and are filled by the
// datastar SSE endpoints once the page loads. Components live in dashboard.templ; run
// `templ generate` after editing it.
package templates

import "encoding/json"

type DashboardProps struct {
	Title        string
	LimitOptions []string
	DefaultTop   string
	DefaultDist  string
}

// initialSignals seeds the datastar store. Keys match what the SSE handlers read and patch.
func initialSignals(p DashboardProps) string {
	b, _ := json.Marshal(map[string]any{
		"sortLoc":          "desc",
		"topLoc":           p.DefaultTop,
		"sortProd":         "desc",
		"topProd":          p.DefaultTop,
		"topDist":          p.DefaultDist,
		"distView":         "sku",
		"hasData":          false,
		"datasetSource":    "",
		"locationsData":    []any{},
		"productsData":     []any{},
		"distributionData": []any{},
		"drillOpen":        false,
		"drillTitle":       "",
		"drillData":        []any{},
	})
	return string(b)
}

// chart is one bar chart card. TitleExpr, when set, is a datastar expression that
// replaces the static Title in the browser.
type chart struct {
	Name      string
	Title     string
	TitleExpr string
	Signal    string
	XLabel    string
	YLabel    string
}

func (c chart) effect() string {
	title := "'" + c.Title + "'"
	if c.TitleExpr != "" {
		title = "(" + c.TitleExpr + ")"
	}
	return "window.renderChart('" + c.Name + "', " + c.Signal + ", " + title + ", '" + c.XLabel + "', '" + c.YLabel + "')"
}

const distTitleExpr = "$distView === 'prod' ? 'Product-Location Distribution' : 'SKU-Location Distribution'"

var charts = []chart{
	{Name: "locations", Title: "Units per Location", Signal: "$locationsData", XLabel: "Store ID", YLabel: "Units"},
	{Name: "products", Title: "Units per Product", Signal: "$productsData", XLabel: "Product ID", YLabel: "Units"},
	{
		Name:      "distribution",
		Title:     "SKU-Location Distribution",
		TitleExpr: distTitleExpr,
		Signal:    "$distributionData",
		XLabel:    "Units",
		YLabel:    "# Pairs",
	},
}

const styles = `
body{font-family:system-ui,sans-serif;margin:0;padding:1.5rem;background:linear-gradient(135deg,#fff7ed,#eff6ff)}
.topbar{display:flex;justify-content:space-between;align-items:center}
.upload{display:flex;flex-direction:column;align-items:center;padding:4rem}
.dropzone{border:2px dashed #6b7280;border-radius:1rem;padding:2rem;cursor:pointer}
.dropzone input{display:none}
.error{color:#dc2626}
.kpi-ribbon{display:grid;grid-template-columns:repeat(auto-fit,minmax(140px,1fr));gap:1rem}
.kpi-card,.card{background:#fff;border-radius:.75rem;box-shadow:0 1px 3px rgba(0,0,0,.1);padding:1rem;margin:1rem 0}
.kpi-card h3{font-size:.8rem;color:#6b7280;margin:0}
.kpi-card p{font-size:1.8rem;font-weight:700;margin:.25rem 0 0}
.filters{display:flex;flex-wrap:wrap;gap:1rem;position:sticky;top:0;background:#fff;padding:.5rem;z-index:10}
.card-header{display:flex;justify-content:space-between;align-items:center}
.grid-2{display:grid;grid-template-columns:repeat(auto-fit,minmax(320px,1fr));gap:1rem}
.modern-table{width:100%;border-collapse:collapse;font-size:.8rem}
.modern-table td,.modern-table th{padding:.25rem .5rem;border-bottom:1px solid #e5e7eb;text-align:left}
#gap-content,#zero-units-content{max-height:15rem;overflow-y:auto}
.drillable{cursor:pointer}
.modal{position:fixed;inset:0;background:rgba(0,0,0,.4);display:flex;align-items:center;justify-content:center}
.modal-content{background:#fff;border-radius:.75rem;padding:1rem;width:min(90vw,48rem);max-height:90vh;overflow:auto}
.close{float:right;border:none;background:none;font-size:1.5rem;cursor:pointer}
`

const script = `
const charts = {};
window.renderChart = function(name, data, title, xLabel, yLabel) {
  const el = document.getElementById('chart-' + name);
  if (!el || !window.Chart) return;
  const rows = data || [];
  const cfg = {
    type: 'bar',
    data: {
      labels: rows.map(r => r.key),
      datasets: [{label: title || 'Units', data: rows.map(r => r.total), backgroundColor: '#3b82f6'}]
    },
    options: {
      animation: false,
      scales: {
        x: {title: {display: !!xLabel, text: xLabel}},
        y: {title: {display: !!yLabel, text: yLabel}, beginAtZero: true}
      }
    }
  };
  if (charts[name]) charts[name].destroy();
  charts[name] = new Chart(el, cfg);
};
async function uploadDataset(input) {
  if (!input.files.length) return;
  const body = new FormData();
  body.append('file', input.files[0]);
  const res = await fetch('/api/dataset', {method: 'POST', body});
  if (!res.ok) {
    const payload = await res.json().catch(() => null);
    document.getElementById('upload-error').textContent =
      payload && payload.error ? payload.error.message : 'Upload failed';
    return;
  }
  location.reload();
}
async function resetDataset() {
  await fetch('/api/dataset', {method: 'DELETE'});
  location.reload();
}
`
