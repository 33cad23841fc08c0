// Package inference builds the INI configuration consumed by the external
// Bayesian-inference executable and drives its invocation, plus that of the
// companion plotting executable.
//
// The package emits configuration, launches the tools, and passes their
// output and exit codes through untouched. It does not interpret sampler
// behavior; the executables are opaque collaborators.
package inference
