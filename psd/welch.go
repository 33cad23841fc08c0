package psd

import (
	"fmt"
	"math"
	"sort"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-dsp/dsp/window"
	"github.com/cwbudde/algo-vecmath"

	"github.com/gwkit/ringdown/strain"
)

// Estimate is a one-sided PSD on a uniform frequency grid starting at DC.
type Estimate struct {
	DeltaF float64
	Power  []float64 // bin i covers frequency i*DeltaF
}

// FrequencyAt returns the frequency of bin i.
func (e *Estimate) FrequencyAt(i int) float64 {
	return float64(i) * e.DeltaF
}

// Nyquist returns the highest frequency on the grid.
func (e *Estimate) Nyquist() float64 {
	return float64(len(e.Power)-1) * e.DeltaF
}

// Average selects how Welch combines per-segment periodograms.
type Average int

const (
	// AverageMean is the classic Welch estimate.
	AverageMean Average = iota
	// AverageMedian is robust against loud transients in single segments.
	// The estimate is corrected for the median bias of the underlying
	// exponential statistics.
	AverageMedian
)

type config struct {
	overlap float64
	avg     Average
	winType window.Type
}

// Option configures Welch estimation.
type Option func(*config)

// WithOverlap sets the fractional segment overlap in [0, 1).
func WithOverlap(frac float64) Option {
	return func(c *config) {
		c.overlap = frac
	}
}

// WithAverage selects the averaging method.
func WithAverage(a Average) Option {
	return func(c *config) {
		c.avg = a
	}
}

// WithWindow selects the segment window.
func WithWindow(t window.Type) Option {
	return func(c *config) {
		c.winType = t
	}
}

// Welch estimates the one-sided PSD of s from overlapping windowed segments
// of segLen samples. segLen must be an even power of two not longer than the
// series.
func Welch(s *strain.Series, segLen int, opts ...Option) (*Estimate, error) {
	if s == nil || len(s.Data) == 0 {
		return nil, fmt.Errorf("psd: series must not be empty")
	}
	if segLen <= 1 || segLen&(segLen-1) != 0 {
		return nil, fmt.Errorf("psd: segment length must be a power of two > 1: %d", segLen)
	}
	if segLen > len(s.Data) {
		return nil, fmt.Errorf("psd: segment length %d exceeds series length %d", segLen, len(s.Data))
	}

	cfg := config{overlap: 0.5, avg: AverageMean, winType: window.TypeHann}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.overlap < 0 || cfg.overlap >= 1 {
		return nil, fmt.Errorf("psd: overlap must be in [0,1): %v", cfg.overlap)
	}

	stride := int(float64(segLen) * (1 - cfg.overlap))
	if stride < 1 {
		stride = 1
	}

	coeffs := window.Generate(cfg.winType, segLen, window.WithPeriodic())
	winPower := 0.0
	for _, w := range coeffs {
		winPower += w * w
	}
	if winPower == 0 {
		return nil, fmt.Errorf("psd: window has zero power")
	}

	plan, err := algofft.NewPlan64(segLen)
	if err != nil {
		return nil, fmt.Errorf("psd: create FFT plan: %w", err)
	}

	binCount := segLen/2 + 1
	var periodograms [][]float64

	seg := make([]float64, segLen)
	in := make([]complex128, segLen)
	out := make([]complex128, segLen)

	for start := 0; start+segLen <= len(s.Data); start += stride {
		copy(seg, s.Data[start:start+segLen])
		vecmath.MulBlockInPlace(seg, coeffs)

		for i, v := range seg {
			in[i] = complex(v, 0)
		}
		if err := plan.Forward(out, in); err != nil {
			return nil, fmt.Errorf("psd: FFT: %w", err)
		}

		// One-sided periodogram: 2 |X|^2 / (fs * sum w^2); DC and
		// Nyquist bins are not doubled.
		p := make([]float64, binCount)
		norm := 2 / (s.SampleRate * winPower)
		for i := 0; i < binCount; i++ {
			x := out[i]
			v := (real(x)*real(x) + imag(x)*imag(x)) * norm
			if i == 0 || i == binCount-1 {
				v /= 2
			}
			p[i] = v
		}
		periodograms = append(periodograms, p)
	}

	power := make([]float64, binCount)
	switch cfg.avg {
	case AverageMean:
		for _, p := range periodograms {
			vecmath.AddBlockInPlace(power, p)
		}
		vecmath.ScaleBlock(power, power, 1/float64(len(periodograms)))
	case AverageMedian:
		vals := make([]float64, len(periodograms))
		for i := range power {
			for j, p := range periodograms {
				vals[j] = p[i]
			}
			power[i] = median(vals) / math.Ln2
		}
	default:
		return nil, fmt.Errorf("psd: unknown averaging method: %d", cfg.avg)
	}

	return &Estimate{
		DeltaF: s.SampleRate / float64(segLen),
		Power:  power,
	}, nil
}

func median(vals []float64) float64 {
	tmp := append([]float64(nil), vals...)
	sort.Float64s(tmp)
	n := len(tmp)
	if n%2 == 1 {
		return tmp[n/2]
	}
	return (tmp[n/2-1] + tmp[n/2]) / 2
}

// Interpolate resamples the estimate onto a grid of n bins spaced deltaF,
// clamping to the edge values outside the estimated band.
func Interpolate(e *Estimate, deltaF float64, n int) ([]float64, error) {
	if e == nil || len(e.Power) < 2 {
		return nil, fmt.Errorf("psd: estimate needs at least 2 bins")
	}
	if deltaF <= 0 || n <= 0 {
		return nil, fmt.Errorf("psd: interpolation grid must have deltaF > 0 and n > 0: %v, %d", deltaF, n)
	}

	out := make([]float64, n)
	last := len(e.Power) - 1
	for i := range out {
		pos := float64(i) * deltaF / e.DeltaF
		j := int(pos)
		switch {
		case j >= last:
			out[i] = e.Power[last]
		default:
			frac := pos - float64(j)
			out[i] = e.Power[j]*(1-frac) + e.Power[j+1]*frac
		}
	}
	return out, nil
}
