// Command segalloc drives the segregated-free-list allocator from the
// command line: a scripted demo, a concurrent stress test, a config
// hot-reload watcher, and version reporting.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/errgroup"

	"github.com/orizon-lang/segalloc/internal/allocator"
	"github.com/orizon-lang/segalloc/internal/cli"
	"github.com/orizon-lang/segalloc/internal/config"
	"github.com/orizon-lang/segalloc/internal/errors"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	sub := os.Args[1]
	args := os.Args[2:]

	switch sub {
	case "help", "-h", "--help":
		usage()
	case "version", "-v", "--version":
		jsonOutput := false

		for _, a := range args {
			if a == "--json" || a == "-j" {
				jsonOutput = true

				break
			}
		}

		runVersion(jsonOutput)
	case "demo":
		must(runDemo(args))
	case "stress":
		must(runStress(args))
	case "watch":
		must(runWatch(args))
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n", sub)
		usage()
		os.Exit(2)
	}
}

func usage() {
	cli.PrintUsage("segalloc", []cli.CommandInfo{
		{Name: "demo", Description: "Run the scripted alloc/free walkthrough"},
		{Name: "stress", Description: "Hammer the allocator from concurrent workers"},
		{Name: "watch", Description: "Reload allocator settings when a config file changes"},
		{Name: "version", Description: "Print version information"},
	})
}

// runVersion mirrors internal/cli.PrintVersion, additionally parsing the
// reported version through semver so a malformed build tag fails loudly
// instead of printing silently.
func runVersion(jsonOutput bool) {
	v, err := semver.NewVersion(cli.Version)
	if err != nil {
		cli.ExitWithError("malformed build version %q: %v", cli.Version, err)
	}

	if !jsonOutput {
		fmt.Printf("semver: %s (major=%d minor=%d patch=%d)\n", v, v.Major(), v.Minor(), v.Patch())
	}

	cli.PrintVersion("segalloc", jsonOutput)
}

func must(err error) {
	if err != nil {
		cli.ExitWithError("%v", err)
	}
}

// runDemo runs a scripted walkthrough: a single alloc/write/free, then an
// increasing-size alloc/free loop.
func runDemo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	iterations := fs.Int("iterations", 1000, "number of increasing-size alloc/free iterations")

	if err := fs.Parse(args); err != nil {
		return err
	}

	al := allocator.New(allocator.DefaultConfig())

	p, err := al.Alloc(500)
	if err != nil {
		return fmt.Errorf("demo: initial alloc: %w", err)
	}

	msg := []byte("Hello!")
	copy(al.Bytes(p, uintptr(len(msg))), msg)
	fmt.Println(string(al.Bytes(p, uintptr(len(msg)))))

	if err := al.Free(p); err != nil {
		return fmt.Errorf("demo: initial free: %w", err)
	}

	for i := 0; i < *iterations; i++ {
		n := uintptr(i * 1000)

		q, err := al.Alloc(n)
		if err != nil {
			return fmt.Errorf("demo: alloc(%d) at iteration %d: %w", n, i, err)
		}

		label := fmt.Appendf(nil, "%d", i)
		copy(al.Bytes(q, uintptr(len(label))), label)
		fmt.Println(string(al.Bytes(q, uintptr(len(label)))))

		if err := al.Free(q); err != nil {
			return fmt.Errorf("demo: free at iteration %d: %w", i, err)
		}
	}

	return nil
}

// runStress fans out N workers hammering a single shared allocator via
// errgroup: bounded worker count, first error wins.
func runStress(args []string) error {
	fs := flag.NewFlagSet("stress", flag.ExitOnError)
	workers := fs.Int("workers", 8, "number of concurrent workers")
	iters := fs.Int("iters", 10000, "alloc/free iterations per worker")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *workers < 1 {
		return errors.InvalidSize(int64(*workers), "stress --workers")
	}

	if *iters < 1 {
		return errors.InvalidSize(int64(*iters), "stress --iters")
	}

	al := allocator.NewSafe(allocator.New(allocator.DefaultConfig()))

	g, _ := errgroup.WithContext(context.Background())

	for w := 0; w < *workers; w++ {
		w := w

		g.Go(func() error {
			for i := 0; i < *iters; i++ {
				n := uintptr((w*31 + i) % 4096)

				p, err := al.Alloc(n)
				if err != nil {
					return fmt.Errorf("worker %d: alloc: %w", w, err)
				}

				if err := al.Free(p); err != nil {
					return fmt.Errorf("worker %d: free: %w", w, err)
				}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	stats := al.Stats()
	slog.Info("stress complete",
		"workers", *workers,
		"iterations_per_worker", *iters,
		"heap_start", fmt.Sprintf("%#x", stats.HeapStart),
		"heap_end", fmt.Sprintf("%#x", stats.HeapEnd),
	)

	return nil
}

// runWatch loads a config file and reloads it on every write, logging the
// effective allocator configuration each time.
func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	path := fs.String("config", "segalloc.json", "path to a JSON config file to watch")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*path)
	if err != nil {
		return fmt.Errorf("watch: initial load: %w", err)
	}

	slog.Info("config loaded", "path", *path, "config", cfg)

	stop := make(chan struct{})
	defer close(stop)

	return config.Watch(*path, stop, func(cfg config.Config, err error) {
		if err != nil {
			slog.Error("config reload failed", "path", *path, "error", err)

			return
		}

		slog.Info("config reloaded", "path", *path, "config", cfg)
	})
}
