// Package report renders competition performance as an echarts page and,
// through headless Chrome, as a PNG suitable for chat attachments.
package report

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"ludus/internal/pkg/format"
	"ludus/internal/store/gormstore"
)

// ChartInput carries everything the equity page needs. Series maps model
// name to its per-cycle snapshots, oldest first.
type ChartInput struct {
	Competition string
	Symbol      string
	Series      map[string][]gormstore.PerformanceSnapshotRecord
}

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"

	chartWidthPx   = 1360
	equityHeightPx = 560
	returnHeightPx = 340
)

// seriesPalette cycles when a competition fields more models than colors.
var seriesPalette = []string{
	"#3b82f6", "#34d399", "#fbbf24", "#f472b6",
	"#22d3ee", "#a78bfa", "#fb7185", "#f87171",
}

// RenderHTML builds the standalone chart page: an equity curve per model
// plus a return-percent companion chart sharing the same cycle axis.
func RenderHTML(input ChartInput) ([]byte, error) {
	cycles := cycleAxis(input.Series)
	if len(cycles) == 0 {
		return nil, fmt.Errorf("no performance snapshots to chart")
	}

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.PageTitle = pageTitle(input)

	page.AddCharts(
		buildEquityChart(input, cycles),
		buildReturnChart(input, cycles),
	)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func pageTitle(input ChartInput) string {
	name := strings.TrimSpace(input.Competition)
	if name == "" {
		name = "Arena"
	}
	if input.Symbol != "" {
		return fmt.Sprintf("%s %s", name, input.Symbol)
	}
	return name
}

func buildEquityChart(input ChartInput, cycles []int) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", equityHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         fmt.Sprintf("%s equity", pageTitle(input)),
			Subtitle:      "account value per model, marked to the cycle quote",
			Left:          "left",
			Top:           "10",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "44", TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			Name:      "cycle",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)
	line.SetXAxis(axisLabels(cycles))
	for i, name := range sortedModels(input.Series) {
		line.AddSeries(name,
			alignSeries(cycles, input.Series[name], func(rec gormstore.PerformanceSnapshotRecord) float64 {
				return round(rec.Equity, 2)
			}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: seriesPalette[i%len(seriesPalette)], Width: 2}),
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		)
	}
	return line
}

func buildReturnChart(input ChartInput, cycles []int) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", returnHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:      "Return %",
			Left:       "left",
			TitleStyle: &opts.TextStyle{Color: colorTextPrimary},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSecondary, Formatter: "{value}%"},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)
	line.SetXAxis(axisLabels(cycles))
	for i, name := range sortedModels(input.Series) {
		line.AddSeries(name,
			alignSeries(cycles, input.Series[name], func(rec gormstore.PerformanceSnapshotRecord) float64 {
				return round(rec.ReturnPct*100, 2)
			}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: seriesPalette[i%len(seriesPalette)], Width: 2}),
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		)
	}
	return line
}

// cycleAxis unions the cycle numbers of every model so models that joined
// late still align on the shared x axis.
func cycleAxis(series map[string][]gormstore.PerformanceSnapshotRecord) []int {
	seen := make(map[int]struct{})
	for _, recs := range series {
		for _, rec := range recs {
			seen[rec.Cycle] = struct{}{}
		}
	}
	cycles := make([]int, 0, len(seen))
	for c := range seen {
		cycles = append(cycles, c)
	}
	sort.Ints(cycles)
	return cycles
}

func axisLabels(cycles []int) []string {
	labels := make([]string, len(cycles))
	for i, c := range cycles {
		labels[i] = fmt.Sprintf("%d", c)
	}
	return labels
}

func sortedModels(series map[string][]gormstore.PerformanceSnapshotRecord) []string {
	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func alignSeries(cycles []int, recs []gormstore.PerformanceSnapshotRecord, value func(gormstore.PerformanceSnapshotRecord) float64) []opts.LineData {
	byCycle := make(map[int]float64, len(recs))
	for _, rec := range recs {
		byCycle[rec.Cycle] = value(rec)
	}
	data := make([]opts.LineData, len(cycles))
	for i, c := range cycles {
		if v, ok := byCycle[c]; ok {
			data[i] = opts.LineData{Value: v}
		} else {
			data[i] = opts.LineData{Value: nil}
		}
	}
	return data
}

// Describe summarizes final standings for captions and logs, best first.
func Describe(input ChartInput) string {
	type standing struct {
		name   string
		equity float64
		ret    float64
	}
	standings := make([]standing, 0, len(input.Series))
	for name, recs := range input.Series {
		if len(recs) == 0 {
			continue
		}
		last := recs[len(recs)-1]
		standings = append(standings, standing{name: name, equity: last.Equity, ret: last.ReturnPct})
	}
	if len(standings) == 0 {
		return pageTitle(input)
	}
	sort.SliceStable(standings, func(i, j int) bool { return standings[i].equity > standings[j].equity })
	parts := make([]string, 0, len(standings))
	for _, s := range standings {
		parts = append(parts, fmt.Sprintf("%s $%s (%s)", s.name, format.Money(s.equity), format.Percent(s.ret)))
	}
	return fmt.Sprintf("%s | %s", pageTitle(input), strings.Join(parts, " | "))
}

func round(val float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(val)
	}
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}
