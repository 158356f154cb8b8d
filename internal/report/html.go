package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/raman-lab/fcpr/internal/search"
)

// maxHTMLAxis caps cells per axis in the browser heat map; denser surfaces
// are decimated.
const maxHTMLAxis = 181

// HTMLOptions configures an HTML page.
type HTMLOptions struct {
	Title string
	// AssetsHost overrides where the echarts javascript is loaded from.
	// Empty uses the go-echarts default CDN.
	AssetsHost string
}

func axisStride(n int) int {
	if n <= maxHTMLAxis {
		return 1
	}
	return (n + maxHTMLAxis - 1) / maxHTMLAxis
}

// HTML renders an interactive log10 residual heat map of s, followed by a
// scatter of sols when there are any, as a standalone page.
func HTML(w io.Writer, s *search.Surface, sols []search.Solution, o HTMLOptions) error {
	if err := checkSurface(s); err != nil {
		return err
	}

	ts, cs := axisStride(len(s.Theta)), axisStride(len(s.Chi))
	var thetas, chis []string
	for i := 0; i < len(s.Theta); i += ts {
		thetas = append(thetas, fmt.Sprintf("%g", s.Theta[i]))
	}
	for j := 0; j < len(s.Chi); j += cs {
		chis = append(chis, fmt.Sprintf("%g", s.Chi[j]))
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	data := make([]opts.HeatMapData, 0, len(thetas)*len(chis))
	for xi, i := 0, 0; i < len(s.Theta); xi, i = xi+1, i+ts {
		for yi, j := 0, 0; j < len(s.Chi); yi, j = yi+1, j+cs {
			z := LogResidual(s.Residual[i][j])
			if math.IsNaN(z) {
				continue
			}
			lo, hi = math.Min(lo, z), math.Max(hi, z)
			data = append(data, opts.HeatMapData{Value: [3]interface{}{xi, yi, z}})
		}
	}
	if len(data) == 0 {
		return ErrSurfaceTooSmall
	}

	title := o.Title
	init := opts.Initialization{PageTitle: title, Width: "900px", Height: "800px", AssetsHost: o.AssetsHost}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(init),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("log10 residual, %dx%d cells", len(thetas), len(chis))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "θ (deg)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: chis, Name: "χ (deg)", NameLocation: "middle", NameGap: 40}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			InRange:    &opts.VisualMapInRange{Color: HexRamp(10)},
		}),
	)
	hm.SetXAxis(thetas).AddSeries("residual", data)

	page := components.NewPage()
	page.PageTitle = title
	if o.AssetsHost != "" {
		page.AssetsHost = o.AssetsHost
	}
	page.AddCharts(hm)

	if len(sols) > 0 {
		pts := make([]opts.ScatterData, len(sols))
		for i, sol := range sols {
			pts[i] = opts.ScatterData{Value: []interface{}{sol.ThetaDeg, sol.ChiDeg, sol.Residual}}
		}
		scatter := charts.NewScatter()
		scatter.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "500px", AssetsHost: o.AssetsHost}),
			charts.WithTitleOpts(opts.Title{Title: "Solutions", Subtitle: fmt.Sprintf("count=%d", len(sols))}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Name: "θ (deg)", NameLocation: "middle", NameGap: 25}),
			charts.WithYAxisOpts(opts.YAxis{Name: "χ (deg)", NameLocation: "middle", NameGap: 30}),
		)
		scatter.AddSeries("solutions", pts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
		page.AddCharts(scatter)
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
