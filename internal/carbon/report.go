package carbon

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"sort"
	"time"

	"carbonweaver/internal/config"
	"carbonweaver/internal/raster"
)

const (
	carbonUnits   = "metric tons"
	currencyUnits = "currency units"
)

// SummaryRow is one line of the aggregate results table.
type SummaryRow struct {
	Key         string  `json:"key"`
	Description string  `json:"description"`
	Value       float64 `json:"value"`
	Units       string  `json:"units"`
	Path        string  `json:"path"`
}

var summaryRows = []struct {
	key, description, units string
}{
	{KeyTotalBas, "Total bas", carbonUnits},
	{KeyTotalAlt, "Total alt", carbonUnits},
	{KeyDelta, "Change in C for alt", carbonUnits},
	{KeyNPV, "Net present value from bas to alt", currencyUnits},
}

// SummaryStat converts the pixel sum of a per-hectare density raster into a
// total: sum * |px * py| / 10000.
func SummaryStat(path string) (float64, error) {
	total, err := Accumulate(path)
	if err != nil {
		return 0, err
	}
	info, err := raster.ReadInfo(path)
	if err != nil {
		return 0, err
	}
	return total * info.PixelArea() / 10000, nil
}

// Summarize computes the summary rows for the given registry keys, in report
// order. Keys that are not summarizable are ignored.
func Summarize(reg *Registry, keys []string) ([]SummaryRow, error) {
	want := map[string]bool{}
	for _, k := range keys {
		want[k] = true
	}
	var rows []SummaryRow
	for _, r := range summaryRows {
		if !want[r.key] {
			continue
		}
		path := reg.Path(r.key)
		v, err := SummaryStat(path)
		if err != nil {
			return nil, fmt.Errorf("summarizing %s: %w", r.key, err)
		}
		rows = append(rows, SummaryRow{Key: r.key, Description: r.description, Value: v, Units: r.units, Path: path})
	}
	return rows, nil
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Carbon Results</title>
<style>
body { font-family: sans-serif; }
table { border-collapse: collapse; }
th, td { border: 1px solid #148f68; padding: 0.375rem 0.5rem; text-align: left; }
.number { text-align: right; font-family: monospace; }
</style>
</head>
<body>
<h1>Carbon Model Results</h1>
<p>This document summarizes the results from running the carbon model with the following data.</p>
<p>Report generated at {{.Generated}}</p>
<h2>Inputs</h2>
<table><thead><tr><th>arg id</th><th>arg value</th></tr></thead><tbody>
{{- range .Inputs}}
<tr><td>{{.Key}}</td><td>{{.Value}}</td></tr>
{{- end}}
</tbody></table>
<h2>Aggregate Results</h2>
<table><thead><tr><th>Description</th><th>Value</th><th>Units</th><th>Raw File</th></tr></thead><tbody>
{{- range .Rows}}
<tr><td>{{.Description}}</td><td class="number" data-summary-stat="{{.Description}}">{{printf "%.2f" .Value}}</td><td>{{.Units}}</td><td>{{.Path}}</td></tr>
{{- end}}
</tbody></table>
</body>
</html>
`))

type reportInput struct {
	Key   string
	Value string
}

// WriteReport renders the HTML report to path.
func WriteReport(path string, args config.Args, rows []SummaryRow, generated time.Time) error {
	fields := args.Fields()
	inputs := make([]reportInput, 0, len(fields))
	for k, v := range fields {
		inputs = append(inputs, reportInput{Key: k, Value: fmt.Sprint(v)})
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Key < inputs[j].Key })

	var buf bytes.Buffer
	err := reportTemplate.Execute(&buf, map[string]any{
		"Generated": generated.Format("2006-01-02 15:04"),
		"Inputs":    inputs,
		"Rows":      rows,
	})
	if err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
