// Command mock-sampler stands in for the real inference executable. It
// accepts the same command line, reads the prior bounds from the emitted
// configuration files, and writes a result container filled with samples
// drawn uniformly from those bounds. Useful for exercising the pipeline
// without a sampler installation.
//
// Usage:
//
//	mock-sampler --seed 7 --config-file prior.ini [more.ini ...] --output-file result.sqlite
package main

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/gwkit/ringdown/inference"
	"github.com/gwkit/ringdown/results"
)

const sampleCount = 2000

type invocation struct {
	configFiles []string
	outputFile  string
	seed        int64
}

func main() {
	inv, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "mock-sampler: %v\n", err)
		os.Exit(2)
	}
	if err := run(inv); err != nil {
		fmt.Fprintf(os.Stderr, "mock-sampler: %v\n", err)
		os.Exit(1)
	}
}

// parseArgs mirrors the inference tool's interface, where --config-file
// swallows every following value up to the next flag.
func parseArgs(args []string) (*invocation, error) {
	inv := &invocation{seed: 1}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--verbose", "--force":
			// accepted, no effect
		case "--seed":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("--seed needs a value")
			}
			seed, err := strconv.ParseInt(args[i], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad --seed %q: %w", args[i], err)
			}
			inv.seed = seed
		case "--nprocesses":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("--nprocesses needs a value")
			}
		case "--config-file":
			for i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
				i++
				inv.configFiles = append(inv.configFiles, args[i])
			}
		case "--output-file":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("--output-file needs a value")
			}
			inv.outputFile = args[i]
		default:
			return nil, fmt.Errorf("unknown argument %q", args[i])
		}
	}
	if len(inv.configFiles) == 0 {
		return nil, fmt.Errorf("at least one --config-file is required")
	}
	if inv.outputFile == "" {
		return nil, fmt.Errorf("--output-file is required")
	}
	return inv, nil
}

func run(inv *invocation) error {
	sections, text, err := loadConfig(inv.configFiles)
	if err != nil {
		return err
	}

	modes, err := modesFrom(sections)
	if err != nil {
		return err
	}

	f, err := results.Open(inv.outputFile)
	if err != nil {
		return err
	}
	defer f.Close()

	rng := rand.New(rand.NewSource(inv.seed))
	for _, mode := range modes {
		for _, param := range []string{"f_" + mode, "tau_" + mode, "amp_" + mode, "phi_" + mode} {
			lo, hi, err := bounds(sections, param)
			if err != nil {
				return err
			}
			vals := make([]float64, sampleCount)
			for i := range vals {
				vals[i] = lo + rng.Float64()*(hi-lo)
			}
			if err := f.PutDataset(results.SamplePrefix+param, vals); err != nil {
				return err
			}
		}
	}

	logl := make([]float64, sampleCount)
	for i := range logl {
		logl[i] = rng.NormFloat64() * 10
	}
	if err := f.PutDataset(results.LoglikelihoodKey, logl); err != nil {
		return err
	}
	return f.PutConfigText(text)
}

// loadConfig concatenates and parses every configuration file, the way the
// inference tool merges its inputs.
func loadConfig(paths []string) (map[string]map[string]string, string, error) {
	var sb strings.Builder
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, "", err
		}
		sb.Write(b)
		sb.WriteByte('\n')
	}
	text := sb.String()
	sections, err := inference.Parse(text)
	if err != nil {
		return nil, "", err
	}
	return sections, text, nil
}

func modesFrom(sections map[string]map[string]string) ([]string, error) {
	static, ok := sections["static_params"]
	if !ok {
		return nil, fmt.Errorf("config has no [static_params] section")
	}
	lmns := strings.Fields(static["lmns"])
	if len(lmns) == 0 {
		return nil, fmt.Errorf("config has no lmns modes")
	}
	return lmns, nil
}

// bounds reads the [prior-<param>] section. Angle priors have no explicit
// bounds and default to [0, 2pi).
func bounds(sections map[string]map[string]string, param string) (lo, hi float64, err error) {
	sec, ok := sections["prior-"+param]
	if !ok {
		return 0, 0, fmt.Errorf("config has no [prior-%s] section", param)
	}
	if sec["name"] == "uniform_angle" {
		return 0, 2 * math.Pi, nil
	}
	lo, err = strconv.ParseFloat(sec["min-"+param], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("prior-%s: bad min: %w", param, err)
	}
	hi, err = strconv.ParseFloat(sec["max-"+param], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("prior-%s: bad max: %w", param, err)
	}
	return lo, hi, nil
}
