// Package psd estimates detector noise power spectral densities and applies
// them: Welch averaging over windowed segments, interpolation onto FFT bin
// grids, and frequency-domain whitening of strain series.
//
// Estimates are one-sided (DC to Nyquist) with units of 1/Hz for
// dimensionless strain input.
package psd
