// Command boundedbuffer runs a producer/consumer simulation on a protected
// buffer and verifies that every value is delivered exactly once.
//
// Usage:
//
//	go run ./cmd/boundedbuffer -impl semaphore -mode timed -producers 4 -consumers 2
//	go run ./cmd/boundedbuffer -config sim.yaml -debug
//
// Flags given on the command line override values from the config file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/randomizedcoder/protected-buffer/internal/buffer"
	"github.com/randomizedcoder/protected-buffer/internal/sim"
)

func main() {
	def := sim.Default()

	configPath := flag.String("config", "", "YAML config file")
	impl := def.Implementation
	flag.TextVar(&impl, "impl", def.Implementation, "buffer implementation (cond|semaphore)")
	mode := def.Mode
	flag.TextVar(&mode, "mode", def.Mode, "access mode (blocking|non-blocking|timed)")
	size := flag.Int("size", def.BufferSize, "buffer capacity")
	producers := flag.Int("producers", def.Producers, "number of producers")
	consumers := flag.Int("consumers", def.Consumers, "number of consumers")
	values := flag.Int("values", def.Values, "values inserted by each producer")
	timeout := flag.Duration("timeout", def.Timeout, "timed-op deadline / non-blocking retry pause")
	producerRate := flag.Float64("rate", def.ProducerRate, "max inserts per second per producer (0 = unlimited)")
	consumerDelay := flag.Duration("delay", def.ConsumerDelay, "max random pause after each removal")
	progress := flag.Duration("progress", def.ProgressInterval, "interval between progress log lines (0 = off)")
	debug := flag.Bool("debug", def.Debug, "trace every buffer operation")
	flag.Parse()

	cfg := def
	if *configPath != "" {
		loaded, err := sim.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "impl":
			cfg.Implementation = impl
		case "mode":
			cfg.Mode = mode
		case "size":
			cfg.BufferSize = *size
		case "producers":
			cfg.Producers = *producers
		case "consumers":
			cfg.Consumers = *consumers
		case "values":
			cfg.Values = *values
		case "timeout":
			cfg.Timeout = *timeout
		case "rate":
			cfg.ProducerRate = *producerRate
		case "delay":
			cfg.ConsumerDelay = *consumerDelay
		case "progress":
			cfg.ProgressInterval = *progress
		case "debug":
			cfg.Debug = *debug
		}
	})

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := sim.Run(ctx, cfg, logger)
	printReport(cfg, report)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if !report.OK() {
		os.Exit(2)
	}
}

func printReport(cfg sim.Config, r sim.Report) {
	fmt.Printf("Simulation %s\n", r.RunID)
	fmt.Println("─────────────────────────────────────────────────")
	fmt.Printf("  Implementation: %s\n", implName(cfg.Implementation))
	fmt.Printf("  Mode:           %s\n", cfg.Mode)
	fmt.Printf("  Buffer size:    %d\n", cfg.BufferSize)
	fmt.Printf("  Producers:      %d x %d values\n", cfg.Producers, cfg.Values)
	fmt.Printf("  Consumers:      %d\n", cfg.Consumers)
	fmt.Println()
	fmt.Printf("  Produced:       %d\n", r.Produced)
	fmt.Printf("  Consumed:       %d\n", r.Consumed)
	fmt.Printf("  Would-block:    %d\n", r.WouldBlock)
	fmt.Printf("  Timeouts:       %d\n", r.Timeouts)
	fmt.Printf("  Missing:        %d\n", r.Missing)
	fmt.Printf("  Duplicates:     %d\n", r.Duplicates)
	fmt.Printf("  Unexpected:     %d\n", r.Unexpected)
	fmt.Printf("  Elapsed:        %v\n", r.Elapsed.Round(time.Microsecond))

	if r.Consumed > 0 {
		perOp := float64(r.Elapsed.Nanoseconds()) / float64(r.Consumed)
		fmt.Printf("  Per value:      %.2f ns\n", perOp)
	}

	if r.OK() {
		fmt.Println("\n  Result: every value delivered exactly once")
	} else {
		fmt.Println("\n  Result: DELIVERY MISMATCH")
	}
}

func implName(k buffer.Kind) string {
	switch k {
	case buffer.KindCond:
		return "cond (mutex + condition variables)"
	case buffer.KindSemaphore:
		return "semaphore (mutex + counting semaphores)"
	default:
		return k.String()
	}
}
