// Command ringdown runs a black-hole ringdown analysis end to end: it
// fetches strain frames, emits the sampler configuration, invokes the
// inference executable under a wall-clock cutoff, and summarizes the
// resulting posterior.
//
// Usage:
//
//	ringdown -config run.yaml [flags]
//
// Examples:
//
//	ringdown -config gw150914.yaml
//	ringdown -config gw150914.yaml -timeout 2h -nprocesses 8
//	ringdown -config gw150914.yaml -dry-run
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/gwkit/ringdown/pipeline"
)

func main() {
	configPath := flag.String("config", "", "run configuration file (YAML)")
	timeout := flag.Duration("timeout", 0, "override the wall-clock cutoff from the config")
	nprocesses := flag.Int("nprocesses", 0, "override the sampler worker count from the config")
	dryRun := flag.Bool("dry-run", false, "emit configuration files and exit without sampling")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ringdown -config run.yaml [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a black-hole ringdown analysis end to end.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *configPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(*configPath, *timeout, *nprocesses, *dryRun, logger); err != nil {
		fmt.Fprintf(os.Stderr, "ringdown: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, timeout time.Duration, nprocesses int, dryRun bool, logger *slog.Logger) error {
	cfg, err := pipeline.Load(configPath)
	if err != nil {
		return err
	}
	if timeout > 0 {
		cfg.Run.Timeout = timeout
	}
	if nprocesses > 0 {
		cfg.Run.NProcesses = nprocesses
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(cfg, logger)

	if dryRun {
		info, err := p.Prepare(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("run directory: %s\n", info.Dir)
		for _, f := range info.ConfigFiles {
			fmt.Printf("wrote %s\n", f)
		}
		return nil
	}

	start := time.Now()
	info, err := p.Run(ctx)
	if err != nil {
		return err
	}
	printSummary(info, time.Since(start))
	return nil
}

func printSummary(info *pipeline.RunInfo, elapsed time.Duration) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)

	bold.Printf("run %s finished in %s\n", info.ID, elapsed.Round(time.Second))
	fmt.Printf("  results: %s\n", info.ResultFile)

	if len(info.MaxLikelihood) > 0 {
		bold.Println("  max-likelihood sample:")
		for _, name := range sortedKeys(info.MaxLikelihood) {
			fmt.Printf("    %-24s %.6g\n", name, info.MaxLikelihood[name])
		}
	}
	for _, s := range info.SNRs {
		green.Printf("  %s SNR %.2f", s.Detector, s.Peak)
		fmt.Printf(" at GPS %.4f\n", s.PeakTime)
	}
	for _, f := range info.PlotFiles {
		fmt.Printf("  plot: %s\n", f)
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
