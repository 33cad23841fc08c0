// Package results reads and writes inference result containers.
//
// A container is a single SQLite file holding named float64 datasets
// (posterior samples per parameter, log-likelihoods, per-detector PSDs),
// string attributes, and the configuration text the run was started with.
// Consumers access it strictly by named-key lookup; no further schema is
// assumed beyond the dataset names a given sampler writes.
package results
