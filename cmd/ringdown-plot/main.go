// Command ringdown-plot renders posterior plots from a ringdown result
// container.
//
// Usage:
//
//	ringdown-plot --input-file result.sqlite --output-file posterior.svg [flags] [expr:label ...]
//
// Parameters are given as expression:label pairs after --parameters. Besides
// the sampled columns, the expressions final_mass and final_spin are derived
// from the 220-mode frequency and damping time.
//
// Examples:
//
//	ringdown-plot --input-file r.sqlite --output-file f.svg --plot-marginal --parameters f_220:'Frequency (Hz)'
//	ringdown-plot --input-file r.sqlite --output-file m.svg --plot-scatter --parameters final_mass:Mass final_spin:Spin
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gwkit/ringdown/plot"
	"github.com/gwkit/ringdown/posterior"
	"github.com/gwkit/ringdown/qnm"
	"github.com/gwkit/ringdown/results"
)

const histogramBins = 40

type parameter struct {
	expression string
	label      string
}

func main() {
	input := flag.String("input-file", "", "result container to read")
	output := flag.String("output-file", "", "image file to write (SVG)")
	marginal := flag.Bool("plot-marginal", false, "render a marginal histogram of the first parameter")
	scatter := flag.Bool("plot-scatter", false, "render a scatter of the first two parameters")
	firstParam := flag.String("parameters", "", "first expression:label pair; further pairs follow as arguments")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ringdown-plot --input-file result.sqlite --output-file out.svg [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Renders posterior plots from a ringdown result container.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	params, err := parseParameters(*firstParam, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "ringdown-plot: %v\n", err)
		os.Exit(2)
	}

	if err := run(*input, *output, *marginal, *scatter, params, logger); err != nil {
		fmt.Fprintf(os.Stderr, "ringdown-plot: %v\n", err)
		os.Exit(1)
	}
}

func parseParameters(first string, rest []string) ([]parameter, error) {
	raw := rest
	if first != "" {
		raw = append([]string{first}, rest...)
	}
	params := make([]parameter, 0, len(raw))
	for _, r := range raw {
		expr, label, ok := strings.Cut(r, ":")
		if !ok || expr == "" {
			return nil, fmt.Errorf("malformed parameter %q, want expression:label", r)
		}
		if label == "" {
			label = expr
		}
		params = append(params, parameter{expression: expr, label: label})
	}
	return params, nil
}

func run(input, output string, marginal, scatter bool, params []parameter, logger *slog.Logger) error {
	if input == "" || output == "" {
		return fmt.Errorf("both --input-file and --output-file are required")
	}
	if len(params) == 0 {
		return fmt.Errorf("at least one --parameters expression is required")
	}

	f, err := results.Open(input)
	if err != nil {
		return err
	}
	defer f.Close()

	samples, err := posterior.FromFile(f)
	if err != nil {
		return err
	}
	logger.Debug("loaded posterior", "samples", samples.Len())

	switch {
	case scatter:
		if len(params) < 2 {
			return fmt.Errorf("--plot-scatter needs two parameters, got %d", len(params))
		}
		return plotScatter(samples, params[0], params[1], output)
	case marginal:
		return plotMarginal(samples, params[0], output)
	default:
		return fmt.Errorf("one of --plot-marginal or --plot-scatter is required")
	}
}

// column resolves a parameter expression against the posterior. Sampled
// columns resolve directly; final_mass and final_spin are derived from the
// fundamental mode.
func column(s *posterior.Samples, expr string) ([]float64, error) {
	if vals, ok := s.Params[expr]; ok {
		return vals, nil
	}
	if expr != "final_mass" && expr != "final_spin" {
		return nil, fmt.Errorf("unknown parameter %q", expr)
	}

	freqs, ok := s.Params["f_220"]
	taus := s.Params["tau_220"]
	if !ok || taus == nil {
		return nil, fmt.Errorf("deriving %s needs f_220 and tau_220 columns", expr)
	}
	mode := qnm.Mode{L: 2, M: 2, N: 0}
	out := make([]float64, len(freqs))
	for i := range freqs {
		mass, spin, err := qnm.MassSpinFromFTau(mode, freqs[i], taus[i])
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		if expr == "final_mass" {
			out[i] = mass
		} else {
			out[i] = spin
		}
	}
	return out, nil
}

func plotMarginal(s *posterior.Samples, p parameter, output string) error {
	vals, err := column(s, p.expression)
	if err != nil {
		return err
	}
	edges, counts, err := posterior.Histogram(vals, histogramBins)
	if err != nil {
		return err
	}
	lo, median, hi, err := posterior.CredibleInterval(vals, 0.9)
	if err != nil {
		return err
	}

	fig := plot.NewFigure(640, 480)
	fig.Title = fmt.Sprintf("%s: %.4g [%.4g, %.4g]", p.label, median, lo, hi)
	fig.XLabel = p.label
	fig.YLabel = "Samples"
	if err := fig.SetHistogram(edges, counts, ""); err != nil {
		return err
	}
	return fig.WriteFile(output)
}

func plotScatter(s *posterior.Samples, px, py parameter, output string) error {
	x, err := column(s, px.expression)
	if err != nil {
		return err
	}
	y, err := column(s, py.expression)
	if err != nil {
		return err
	}

	fig := plot.NewFigure(640, 480)
	fig.Title = fmt.Sprintf("%s vs %s", py.label, px.label)
	fig.XLabel = px.label
	fig.YLabel = py.label
	fig.AddSeries(plot.Series{X: x, Y: y, Points: true})
	return fig.WriteFile(output)
}
