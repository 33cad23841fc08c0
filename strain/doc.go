// Package strain provides detector strain time series and the conditioning
// steps applied to them before spectral analysis: slicing by GPS interval,
// detrending, edge tapering, anti-aliased decimation, and injection of
// synthetic templates.
//
// A Series is a plain float64 buffer annotated with a sample rate and a GPS
// epoch. All operations validate their inputs and return errors instead of
// panicking on malformed data.
package strain
