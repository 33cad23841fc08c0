// Package plot renders the pipeline's diagnostic figures as SVG: whitened
// strain with template overlays, posterior marginal histograms, and 2-D
// posterior scatter.
package plot

import (
	"fmt"
	"math"
	"os"
	"strings"
)

// Series is one line or point set.
type Series struct {
	X, Y  []float64
	Label string
	Color string
	// Points draws markers instead of a connected line.
	Points bool
}

// Figure is a single-axes SVG figure.
type Figure struct {
	Width, Height float64
	Title         string
	XLabel        string
	YLabel        string

	series []Series
	bars   *barData
}

type barData struct {
	edges  []float64
	counts []float64
	color  string
}

const (
	marginLeft   = 64.0
	marginRight  = 24.0
	marginTop    = 40.0
	marginBottom = 48.0
)

var palette = []string{"#1f77b4", "#d62728", "#2ca02c", "#9467bd", "#ff7f0e", "#8c564b"}

// NewFigure creates a figure with the given pixel dimensions.
func NewFigure(width, height float64) *Figure {
	return &Figure{Width: width, Height: height}
}

// AddSeries appends a line series; an empty color picks from a palette.
func (f *Figure) AddSeries(s Series) *Figure {
	if s.Color == "" {
		s.Color = palette[len(f.series)%len(palette)]
	}
	f.series = append(f.series, s)
	return f
}

// SetHistogram renders counts over bin edges as filled bars. edges must be
// one longer than counts.
func (f *Figure) SetHistogram(edges, counts []float64, color string) error {
	if len(edges) != len(counts)+1 {
		return fmt.Errorf("plot: need len(edges) == len(counts)+1: %d vs %d", len(edges), len(counts))
	}
	if color == "" {
		color = palette[0]
	}
	f.bars = &barData{edges: edges, counts: counts, color: color}
	return nil
}

// Render returns the figure as an SVG document.
func (f *Figure) Render() (string, error) {
	if len(f.series) == 0 && f.bars == nil {
		return "", fmt.Errorf("plot: figure has no data")
	}

	xmin, xmax, ymin, ymax := f.dataRange()

	plotW := f.Width - marginLeft - marginRight
	plotH := f.Height - marginTop - marginBottom
	sx := func(x float64) float64 {
		return marginLeft + (x-xmin)/(xmax-xmin)*plotW
	}
	sy := func(y float64) float64 {
		return marginTop + plotH - (y-ymin)/(ymax-ymin)*plotH
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d">`,
		int(f.Width), int(f.Height))
	fmt.Fprintf(&sb, `<rect width="%d" height="%d" fill="#ffffff"/>`, int(f.Width), int(f.Height))

	if f.Title != "" {
		fmt.Fprintf(&sb, `<text x="%g" y="24" text-anchor="middle" font-family="sans-serif" font-size="15">%s</text>`,
			f.Width/2, escape(f.Title))
	}

	f.renderAxes(&sb, xmin, xmax, ymin, ymax, sx, sy, plotW, plotH)

	if f.bars != nil {
		base := sy(math.Max(ymin, 0))
		for i, c := range f.bars.counts {
			x0 := sx(f.bars.edges[i])
			x1 := sx(f.bars.edges[i+1])
			top := sy(c)
			fmt.Fprintf(&sb, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s" fill-opacity="0.6" stroke="%s"/>`,
				x0, top, x1-x0, base-top, f.bars.color, f.bars.color)
		}
	}

	for _, s := range f.series {
		if len(s.X) == 0 || len(s.X) != len(s.Y) {
			continue
		}
		if s.Points {
			for i := range s.X {
				fmt.Fprintf(&sb, `<circle cx="%.2f" cy="%.2f" r="1.5" fill="%s" fill-opacity="0.5"/>`,
					sx(s.X[i]), sy(s.Y[i]), s.Color)
			}
			continue
		}
		var path strings.Builder
		for i := range s.X {
			if i == 0 {
				fmt.Fprintf(&path, "M%.2f,%.2f", sx(s.X[i]), sy(s.Y[i]))
			} else {
				fmt.Fprintf(&path, " L%.2f,%.2f", sx(s.X[i]), sy(s.Y[i]))
			}
		}
		fmt.Fprintf(&sb, `<path d="%s" stroke="%s" stroke-width="1.5" fill="none"/>`,
			path.String(), s.Color)
	}

	f.renderLegend(&sb)

	sb.WriteString(`</svg>`)
	return sb.String(), nil
}

// WriteFile renders the figure to path.
func (f *Figure) WriteFile(path string) error {
	text, err := f.Render()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("plot: write figure %q: %w", path, err)
	}
	return nil
}

func (f *Figure) dataRange() (xmin, xmax, ymin, ymax float64) {
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)

	consider := func(x, y float64) {
		xmin = math.Min(xmin, x)
		xmax = math.Max(xmax, x)
		ymin = math.Min(ymin, y)
		ymax = math.Max(ymax, y)
	}
	for _, s := range f.series {
		for i := range s.X {
			consider(s.X[i], s.Y[i])
		}
	}
	if f.bars != nil {
		for i, c := range f.bars.counts {
			consider(f.bars.edges[i], 0)
			consider(f.bars.edges[i+1], c)
		}
	}

	if math.IsInf(xmin, 1) {
		xmin, xmax = 0, 1
	}
	if math.IsInf(ymin, 1) {
		ymin, ymax = 0, 1
	}
	if xmax == xmin {
		xmax = xmin + 1
	}
	if ymax == ymin {
		ymax = ymin + 1
	}

	// Breathing room.
	xr, yr := xmax-xmin, ymax-ymin
	return xmin - 0.05*xr, xmax + 0.05*xr, ymin - 0.08*yr, ymax + 0.08*yr
}

func (f *Figure) renderAxes(sb *strings.Builder, xmin, xmax, ymin, ymax float64,
	sx, sy func(float64) float64, plotW, plotH float64) {

	fmt.Fprintf(sb, `<line x1="%g" y1="%g" x2="%g" y2="%g" stroke="#000" stroke-width="1"/>`,
		marginLeft, marginTop, marginLeft, marginTop+plotH)
	fmt.Fprintf(sb, `<line x1="%g" y1="%g" x2="%g" y2="%g" stroke="#000" stroke-width="1"/>`,
		marginLeft, marginTop+plotH, marginLeft+plotW, marginTop+plotH)

	const ticks = 5
	for i := 0; i <= ticks; i++ {
		x := xmin + (xmax-xmin)*float64(i)/ticks
		px := sx(x)
		fmt.Fprintf(sb, `<line x1="%.2f" y1="%g" x2="%.2f" y2="%g" stroke="#000"/>`,
			px, marginTop+plotH, px, marginTop+plotH+4)
		fmt.Fprintf(sb, `<text x="%.2f" y="%g" text-anchor="middle" font-family="sans-serif" font-size="10">%s</text>`,
			px, marginTop+plotH+18, tickLabel(x))

		y := ymin + (ymax-ymin)*float64(i)/ticks
		py := sy(y)
		fmt.Fprintf(sb, `<line x1="%g" y1="%.2f" x2="%g" y2="%.2f" stroke="#000"/>`,
			marginLeft-4, py, marginLeft, py)
		fmt.Fprintf(sb, `<text x="%g" y="%.2f" text-anchor="end" font-family="sans-serif" font-size="10">%s</text>`,
			marginLeft-8, py+3, tickLabel(y))
	}

	if f.XLabel != "" {
		fmt.Fprintf(sb, `<text x="%g" y="%g" text-anchor="middle" font-family="sans-serif" font-size="12">%s</text>`,
			marginLeft+plotW/2, f.Height-10, escape(f.XLabel))
	}
	if f.YLabel != "" {
		cy := marginTop + plotH/2
		fmt.Fprintf(sb, `<text x="14" y="%g" text-anchor="middle" font-family="sans-serif" font-size="12" transform="rotate(-90, 14, %g)">%s</text>`,
			cy, cy, escape(f.YLabel))
	}
}

func (f *Figure) renderLegend(sb *strings.Builder) {
	y := marginTop + 12.0
	for _, s := range f.series {
		if s.Label == "" {
			continue
		}
		x := f.Width - marginRight - 120
		fmt.Fprintf(sb, `<line x1="%g" y1="%g" x2="%g" y2="%g" stroke="%s" stroke-width="2"/>`,
			x, y, x+18, y, s.Color)
		fmt.Fprintf(sb, `<text x="%g" y="%g" font-family="sans-serif" font-size="11">%s</text>`,
			x+24, y+4, escape(s.Label))
		y += 16
	}
}

func tickLabel(v float64) string {
	av := math.Abs(v)
	switch {
	case av != 0 && (av < 1e-3 || av >= 1e5):
		return fmt.Sprintf("%.1e", v)
	case av >= 100:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.3g", v)
	}
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
