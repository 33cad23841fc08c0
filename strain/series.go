package strain

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/window"
	"github.com/cwbudde/algo-vecmath"
)

// Series is a uniformly sampled strain time series.
type Series struct {
	Data       []float64
	SampleRate float64 // samples per second
	Epoch      float64 // GPS time of Data[0] in seconds
}

// New creates a Series after validating sample rate and data length.
func New(data []float64, sampleRate, epoch float64) (*Series, error) {
	if len(data) == 0 {
		return nil, errEmptySeries
	}
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("strain: sample rate must be > 0: %v", sampleRate)
	}
	return &Series{Data: data, SampleRate: sampleRate, Epoch: epoch}, nil
}

// Duration returns the covered time span in seconds.
func (s *Series) Duration() float64 {
	return float64(len(s.Data)) / s.SampleRate
}

// EndTime returns the GPS time one sample past the last one.
func (s *Series) EndTime() float64 {
	return s.Epoch + s.Duration()
}

// TimeAt returns the GPS time of sample i.
func (s *Series) TimeAt(i int) float64 {
	return s.Epoch + float64(i)/s.SampleRate
}

// IndexOf returns the sample index closest to GPS time t.
// The result may lie outside [0, len(Data)).
func (s *Series) IndexOf(t float64) int {
	return int(math.Round((t - s.Epoch) * s.SampleRate))
}

// Copy returns a deep copy.
func (s *Series) Copy() *Series {
	out := &Series{
		Data:       append([]float64(nil), s.Data...),
		SampleRate: s.SampleRate,
		Epoch:      s.Epoch,
	}
	return out
}

// Slice returns a copy of the samples in the GPS interval [start, end).
func (s *Series) Slice(start, end float64) (*Series, error) {
	if end <= start {
		return nil, fmt.Errorf("strain: slice end %v must be after start %v", end, start)
	}
	i0 := s.IndexOf(start)
	i1 := s.IndexOf(end)
	if i0 < 0 || i1 > len(s.Data) || i0 >= i1 {
		return nil, fmt.Errorf("strain: slice [%v, %v) outside series [%v, %v)", start, end, s.Epoch, s.EndTime())
	}
	return &Series{
		Data:       append([]float64(nil), s.Data[i0:i1]...),
		SampleRate: s.SampleRate,
		Epoch:      s.TimeAt(i0),
	}, nil
}

// Detrend removes the least-squares linear trend (including the mean) in place.
func (s *Series) Detrend() {
	n := len(s.Data)
	if n < 2 {
		return
	}

	// Fit y = a + b*x with x = 0..n-1.
	var sumY, sumXY float64
	for i, v := range s.Data {
		sumY += v
		sumXY += float64(i) * v
	}
	fn := float64(n)
	sumX := fn * (fn - 1) / 2
	sumXX := (fn - 1) * fn * (2*fn - 1) / 6

	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return
	}
	b := (fn*sumXY - sumX*sumY) / denom
	a := (sumY - b*sumX) / fn

	for i := range s.Data {
		s.Data[i] -= a + b*float64(i)
	}
}

// Taper applies a Tukey window in place to soften the segment edges before
// an FFT. alpha is the total tapered fraction in [0, 1].
func (s *Series) Taper(alpha float64) error {
	if alpha < 0 || alpha > 1 {
		return fmt.Errorf("strain: taper alpha must be in [0,1]: %v", alpha)
	}
	coeffs := window.Generate(window.TypeTukey, len(s.Data), window.WithAlpha(alpha))
	if len(coeffs) != len(s.Data) {
		return errEmptySeries
	}
	vecmath.MulBlockInPlace(s.Data, coeffs)
	return nil
}

// Inject adds tmpl into the series at the template's own epoch and returns
// the number of samples that overlapped. Non-overlapping parts are clipped.
func (s *Series) Inject(tmpl *Series) (int, error) {
	if tmpl == nil || len(tmpl.Data) == 0 {
		return 0, errEmptySeries
	}
	if tmpl.SampleRate != s.SampleRate {
		return 0, fmt.Errorf("%w: %v vs %v", errRateMismatch, s.SampleRate, tmpl.SampleRate)
	}

	offset := s.IndexOf(tmpl.Epoch)
	count := 0
	for i, v := range tmpl.Data {
		j := offset + i
		if j < 0 || j >= len(s.Data) {
			continue
		}
		s.Data[j] += v
		count++
	}
	return count, nil
}

// Decimate reduces the sample rate by an integer factor, applying a
// windowed-sinc anti-alias lowpass before picking every factor-th sample.
func (s *Series) Decimate(factor int) (*Series, error) {
	if factor <= 0 {
		return nil, fmt.Errorf("strain: decimation factor must be > 0: %d", factor)
	}
	if factor == 1 {
		return s.Copy(), nil
	}
	if len(s.Data) < factor {
		return nil, fmt.Errorf("strain: series too short to decimate by %d: %d samples", factor, len(s.Data))
	}

	taps := lowpassTaps(0.8/(2*float64(factor)), 10*factor+1)
	half := len(taps) / 2

	outLen := len(s.Data) / factor
	out := make([]float64, outLen)
	for i := range out {
		center := i * factor
		acc := 0.0
		for k, h := range taps {
			j := center + k - half
			if j < 0 || j >= len(s.Data) {
				continue
			}
			acc += h * s.Data[j]
		}
		out[i] = acc
	}

	return &Series{
		Data:       out,
		SampleRate: s.SampleRate / float64(factor),
		Epoch:      s.Epoch,
	}, nil
}

// lowpassTaps designs a Hann-windowed sinc FIR lowpass with the given
// normalized cutoff (cycles per sample) and odd tap count.
func lowpassTaps(cutoff float64, n int) []float64 {
	if n%2 == 0 {
		n++
	}
	taps := make([]float64, n)
	half := n / 2
	for i := range taps {
		x := float64(i - half)
		if x == 0 {
			taps[i] = 2 * cutoff
		} else {
			taps[i] = math.Sin(2*math.Pi*cutoff*x) / (math.Pi * x)
		}
	}
	window.Apply(window.TypeHann, taps)

	sum := 0.0
	for _, v := range taps {
		sum += v
	}
	if sum != 0 {
		vecmath.ScaleBlock(taps, taps, 1/sum)
	}
	return taps
}
