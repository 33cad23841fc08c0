// Package snr computes matched-filter signal-to-noise ratios of ringdown
// templates against strain data over an estimated noise PSD.
package snr

import (
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/MeKo-Christian/algo-fft"

	"github.com/gwkit/ringdown/psd"
	"github.com/gwkit/ringdown/strain"
)

// Config holds matched-filter parameters.
type Config struct {
	// PSD is the one-sided noise estimate. Required.
	PSD *psd.Estimate
	// LowFrequency and HighFrequency bound the integration band in Hz.
	// HighFrequency <= 0 means the Nyquist frequency.
	LowFrequency  float64
	HighFrequency float64
}

// Result holds the matched-filter output.
type Result struct {
	// Series is the SNR magnitude time series, aligned with the data.
	Series []float64
	// Peak is the maximum of Series and PeakTime its GPS time.
	Peak     float64
	PeakTime float64
	// Sigma is the template normalization sqrt(<h|h>), the optimal SNR
	// for a template of this amplitude.
	Sigma float64

	SampleRate float64
	Epoch      float64
}

// MatchedFilter correlates tmpl against data, weighting by the inverse PSD.
// Both series must share a sample rate; the template is zero-padded to the
// data length.
func MatchedFilter(data, tmpl *strain.Series, cfg Config) (*Result, error) {
	if data == nil || len(data.Data) == 0 || tmpl == nil || len(tmpl.Data) == 0 {
		return nil, fmt.Errorf("snr: data and template must not be empty")
	}
	if data.SampleRate != tmpl.SampleRate {
		return nil, fmt.Errorf("snr: sample rates must match: %v vs %v", data.SampleRate, tmpl.SampleRate)
	}
	if len(tmpl.Data) > len(data.Data) {
		return nil, fmt.Errorf("snr: template longer than data: %d > %d", len(tmpl.Data), len(data.Data))
	}
	if cfg.PSD == nil || len(cfg.PSD.Power) < 2 {
		return nil, fmt.Errorf("snr: PSD estimate required")
	}

	nyquist := data.SampleRate / 2
	high := cfg.HighFrequency
	if high <= 0 {
		high = nyquist
	}
	if cfg.LowFrequency < 0 || cfg.LowFrequency >= high || high > nyquist {
		return nil, fmt.Errorf("snr: invalid band [%v, %v] for Nyquist %v", cfg.LowFrequency, high, nyquist)
	}

	n := len(data.Data)
	fftSize := nextPowerOf2(n)

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("snr: create FFT plan: %w", err)
	}

	dataFreq, err := forwardReal(plan, data.Data, fftSize)
	if err != nil {
		return nil, err
	}
	tmplFreq, err := forwardReal(plan, tmpl.Data, fftSize)
	if err != nil {
		return nil, err
	}

	deltaF := data.SampleRate / float64(fftSize)
	spec, err := psd.Interpolate(cfg.PSD, deltaF, fftSize/2+1)
	if err != nil {
		return nil, err
	}

	dt := 1 / data.SampleRate

	// One-sided integrand 4 * d~(f) h~*(f) / S(f); the inverse FFT of the
	// positive-frequency half gives the complex (phase-maximized) SNR
	// numerator, scaled below by N*deltaF = fs.
	integrand := make([]complex128, fftSize)
	sigmaSq := 0.0
	for k := 1; k < fftSize/2; k++ {
		f := float64(k) * deltaF
		if f < cfg.LowFrequency || f > high || spec[k] <= 0 {
			continue
		}
		d := dataFreq[k] * complex(dt, 0)
		h := tmplFreq[k] * complex(dt, 0)
		integrand[k] = 4 * d * cmplx.Conj(h) / complex(spec[k], 0)
		hh := real(h)*real(h) + imag(h)*imag(h)
		sigmaSq += 4 * deltaF * hh / spec[k]
	}
	if sigmaSq <= 0 {
		return nil, fmt.Errorf("snr: template has no power in band [%v, %v]", cfg.LowFrequency, high)
	}
	sigma := math.Sqrt(sigmaSq)

	z := make([]complex128, fftSize)
	if err := plan.Inverse(z, integrand); err != nil {
		return nil, fmt.Errorf("snr: inverse FFT: %w", err)
	}

	scale := float64(fftSize) * deltaF / sigma
	series := make([]float64, n)
	peak := 0.0
	peakIdx := 0
	for i := range series {
		v := cmplx.Abs(z[i]) * scale
		series[i] = v
		if v > peak {
			peak = v
			peakIdx = i
		}
	}

	return &Result{
		Series:     series,
		Peak:       peak,
		PeakTime:   data.TimeAt(peakIdx),
		Sigma:      sigma,
		SampleRate: data.SampleRate,
		Epoch:      data.Epoch,
	}, nil
}

// PeakWithin returns the maximum SNR inside the GPS interval [start, end].
func (r *Result) PeakWithin(start, end float64) (snr, at float64, err error) {
	if end <= start {
		return 0, 0, fmt.Errorf("snr: window end %v must be after start %v", end, start)
	}
	found := false
	for i, v := range r.Series {
		t := r.Epoch + float64(i)/r.SampleRate
		if t < start || t > end {
			continue
		}
		found = true
		if v > snr {
			snr = v
			at = t
		}
	}
	if !found {
		return 0, 0, fmt.Errorf("snr: window [%v, %v] outside series", start, end)
	}
	return snr, at, nil
}

// Overlap returns the normalized inner product of two series of equal rate,
// a number in [-1, 1] for identically shaped signals.
func Overlap(a, b *strain.Series) (float64, error) {
	if a == nil || b == nil || len(a.Data) == 0 || len(b.Data) == 0 {
		return 0, fmt.Errorf("snr: overlap inputs must not be empty")
	}
	if a.SampleRate != b.SampleRate {
		return 0, fmt.Errorf("snr: sample rates must match: %v vs %v", a.SampleRate, b.SampleRate)
	}

	n := len(a.Data)
	if len(b.Data) < n {
		n = len(b.Data)
	}
	var ab, aa, bb float64
	for i := 0; i < n; i++ {
		ab += a.Data[i] * b.Data[i]
		aa += a.Data[i] * a.Data[i]
		bb += b.Data[i] * b.Data[i]
	}
	if aa == 0 || bb == 0 {
		return 0, fmt.Errorf("snr: overlap undefined for all-zero input")
	}
	return ab / math.Sqrt(aa*bb), nil
}

func forwardReal(plan *algofft.Plan[complex128], data []float64, fftSize int) ([]complex128, error) {
	in := make([]complex128, fftSize)
	for i, v := range data {
		in[i] = complex(v, 0)
	}
	out := make([]complex128, fftSize)
	if err := plan.Forward(out, in); err != nil {
		return nil, fmt.Errorf("snr: FFT: %w", err)
	}
	return out, nil
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
