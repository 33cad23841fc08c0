package psd

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"

	"github.com/gwkit/ringdown/strain"
)

// Whiten flattens the noise spectrum of s: each frequency bin is scaled by
// sqrt(2*dt/S(f)), so stationary noise following the estimate comes out with
// unit variance. Bins outside [lowCut, highCut] are zeroed; highCut <= 0
// means the Nyquist frequency.
func Whiten(s *strain.Series, e *Estimate, lowCut, highCut float64) (*strain.Series, error) {
	if s == nil || len(s.Data) == 0 {
		return nil, fmt.Errorf("psd: series must not be empty")
	}
	if e == nil || len(e.Power) < 2 {
		return nil, fmt.Errorf("psd: estimate needs at least 2 bins")
	}
	nyquist := s.SampleRate / 2
	if highCut <= 0 {
		highCut = nyquist
	}
	if lowCut < 0 || lowCut >= highCut || highCut > nyquist {
		return nil, fmt.Errorf("psd: invalid whitening band [%v, %v] for Nyquist %v", lowCut, highCut, nyquist)
	}

	n := len(s.Data)
	fftSize := nextPowerOf2(n)

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("psd: create FFT plan: %w", err)
	}

	in := make([]complex128, fftSize)
	for i, v := range s.Data {
		in[i] = complex(v, 0)
	}
	freq := make([]complex128, fftSize)
	if err := plan.Forward(freq, in); err != nil {
		return nil, fmt.Errorf("psd: FFT: %w", err)
	}

	deltaF := s.SampleRate / float64(fftSize)
	spec, err := Interpolate(e, deltaF, fftSize/2+1)
	if err != nil {
		return nil, err
	}

	dt := 1 / s.SampleRate
	for i := 0; i <= fftSize/2; i++ {
		f := float64(i) * deltaF
		var scale float64
		if f >= lowCut && f <= highCut && spec[i] > 0 {
			scale = math.Sqrt(2 * dt / spec[i])
		}
		freq[i] *= complex(scale, 0)
		if i > 0 && i < fftSize/2 {
			// Mirror bin keeps the output real.
			freq[fftSize-i] *= complex(scale, 0)
		}
	}

	if err := plan.Inverse(in, freq); err != nil {
		return nil, fmt.Errorf("psd: inverse FFT: %w", err)
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = real(in[i])
	}
	return strain.New(out, s.SampleRate, s.Epoch)
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
