// Package sim runs producer/consumer workloads against a protected buffer
// and checks that every produced value is consumed exactly once.
//
// Producers insert distinct integers; consumers claim one unit of the total
// before each removal, so together they remove exactly what was produced.
// The access mode decides which buffer operations are used:
//   - blocking: Put / Get
//   - non-blocking: Add / Remove, pausing Timeout after ErrWouldBlock
//   - timed: Offer / Poll with a Timeout deadline, retried after ErrTimeout
//
// Cancelling the context stops non-blocking and timed runs between
// attempts. Blocking runs always complete: a blocked Put or Get cannot be
// cancelled.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fastrand"
	"golang.org/x/time/rate"

	"github.com/randomizedcoder/protected-buffer/internal/buffer"
)

// Report summarises a run.
type Report struct {
	RunID          uuid.UUID
	Implementation buffer.Kind
	Mode           Mode
	Produced       int64
	Consumed       int64
	WouldBlock     int64 // failed Add/Remove attempts
	Timeouts       int64 // failed Offer/Poll attempts
	Duplicates     int   // values consumed more than once
	Missing        int   // expected values never consumed
	Unexpected     int   // consumed values no producer inserted
	Elapsed        time.Duration
}

// OK reports whether every value was delivered exactly once.
func (r Report) OK() bool {
	return r.Duplicates == 0 && r.Missing == 0 && r.Unexpected == 0
}

type runner struct {
	cfg    Config
	buf    buffer.Buffer[int]
	logger *slog.Logger
	total  int
	stop   stopFlag
	ticker *progressTicker

	remaining  atomic.Int64 // consumer claims left
	produced   atomic.Int64
	consumed   atomic.Int64
	wouldBlock atomic.Int64
	timeouts   atomic.Int64
	seen       []atomic.Int32
	unexpected atomic.Int32
}

// Run executes one simulation described by cfg.
// The returned error is non-nil if cfg is invalid, the buffer cannot be
// built, or ctx ended the run early; the Report is filled in either way.
func Run(ctx context.Context, cfg Config, logger *slog.Logger) (Report, error) {
	report := Report{
		RunID:          uuid.New(),
		Implementation: cfg.Implementation,
		Mode:           cfg.Mode,
	}
	if err := cfg.Validate(); err != nil {
		return report, err
	}
	// Validate accepted the spelling; from here on only canonical modes
	// are compared.
	cfg.Mode, _ = ParseMode(string(cfg.Mode))
	report.Mode = cfg.Mode
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(slog.String("run", report.RunID.String()))

	var opts []buffer.Option
	if cfg.Debug {
		opts = append(opts, buffer.WithLogger(logger))
	}
	buf, err := buffer.New[int](cfg.Implementation, cfg.BufferSize, opts...)
	if err != nil {
		return report, fmt.Errorf("sim: create buffer: %w", err)
	}

	if cfg.Mode == ModeBlocking {
		// Blocking operations cannot be interrupted; stopping producers
		// early would strand consumers in Get.
		ctx = context.WithoutCancel(ctx)
	}

	r := &runner{
		cfg:    cfg,
		buf:    buf,
		logger: logger,
		total:  cfg.Producers * cfg.Values,
		ticker: newProgressTicker(cfg.ProgressInterval),
		seen:   make([]atomic.Int32, cfg.Producers*cfg.Values),
	}
	r.remaining.Store(int64(r.total))
	defer r.stop.watch(ctx)()

	logger.Info("simulation started",
		slog.String("implementation", cfg.Implementation.String()),
		slog.String("mode", string(cfg.Mode)),
		slog.Int("buffer_size", cfg.BufferSize),
		slog.Int("producers", cfg.Producers),
		slog.Int("consumers", cfg.Consumers),
		slog.Int("values", cfg.Values),
	)

	start := time.Now()
	errs := make(chan error, cfg.Producers+cfg.Consumers)
	var wg sync.WaitGroup
	for id := range cfg.Producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.produce(ctx, id)
		}()
	}
	for id := range cfg.Consumers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.consume(ctx, id)
		}()
	}
	wg.Wait()
	close(errs)

	var runErr error
	for err := range errs {
		if err != nil && runErr == nil {
			runErr = err
		}
	}

	report.Elapsed = time.Since(start)
	report.Produced = r.produced.Load()
	report.Consumed = r.consumed.Load()
	report.WouldBlock = r.wouldBlock.Load()
	report.Timeouts = r.timeouts.Load()
	report.Unexpected = int(r.unexpected.Load())
	for i := range r.seen {
		switch n := r.seen[i].Load(); {
		case n == 0:
			report.Missing++
		case n > 1:
			report.Duplicates += int(n - 1)
		}
	}

	logger.Info("simulation finished",
		slog.Int64("produced", report.Produced),
		slog.Int64("consumed", report.Consumed),
		slog.Int64("would_block", report.WouldBlock),
		slog.Int64("timeouts", report.Timeouts),
		slog.Int("missing", report.Missing),
		slog.Int("duplicates", report.Duplicates),
		slog.Duration("elapsed", report.Elapsed),
	)

	if runErr != nil {
		return report, fmt.Errorf("sim: run interrupted: %w", runErr)
	}
	return report, nil
}

func (r *runner) produce(ctx context.Context, id int) error {
	var limiter *rate.Limiter
	if r.cfg.ProducerRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.cfg.ProducerRate), 1)
	}

	base := id * r.cfg.Values
	for i := range r.cfg.Values {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := r.insert(ctx, base+i); err != nil {
			return err
		}
		r.produced.Add(1)
	}
	r.logger.Debug("producer done", slog.Int("producer", id))
	return nil
}

func (r *runner) consume(ctx context.Context, id int) error {
	n := 0
	for r.remaining.Add(-1) >= 0 {
		v, err := r.extract(ctx)
		if err != nil {
			return err
		}
		r.record(v)
		n++
		if r.ticker.Tick() {
			r.logProgress()
		}
		if err := r.pause(ctx); err != nil {
			return err
		}
	}
	r.logger.Debug("consumer done", slog.Int("consumer", id), slog.Int("consumed", n))
	return nil
}

func (r *runner) insert(ctx context.Context, v int) error {
	switch r.cfg.Mode {
	case ModeNonBlocking:
		for {
			err := r.buf.Add(v)
			if !errors.Is(err, buffer.ErrWouldBlock) {
				return err
			}
			r.wouldBlock.Add(1)
			if err := sleep(ctx, r.cfg.Timeout); err != nil {
				return err
			}
		}
	case ModeTimed:
		for {
			err := r.buf.Offer(v, time.Now().Add(r.cfg.Timeout))
			if !errors.Is(err, buffer.ErrTimeout) {
				return err
			}
			r.timeouts.Add(1)
			if r.stop.stopped() {
				return ctx.Err()
			}
		}
	default:
		r.buf.Put(v)
		return nil
	}
}

func (r *runner) extract(ctx context.Context) (int, error) {
	switch r.cfg.Mode {
	case ModeNonBlocking:
		for {
			v, err := r.buf.Remove()
			if !errors.Is(err, buffer.ErrWouldBlock) {
				return v, err
			}
			r.wouldBlock.Add(1)
			if err := sleep(ctx, r.cfg.Timeout); err != nil {
				return 0, err
			}
		}
	case ModeTimed:
		for {
			v, err := r.buf.Poll(time.Now().Add(r.cfg.Timeout))
			if !errors.Is(err, buffer.ErrTimeout) {
				return v, err
			}
			r.timeouts.Add(1)
			if r.stop.stopped() {
				return 0, ctx.Err()
			}
		}
	default:
		return r.buf.Get(), nil
	}
}

func (r *runner) logProgress() {
	r.logger.Info("simulation progress",
		slog.Int64("produced", r.produced.Load()),
		slog.Int64("consumed", r.consumed.Load()),
		slog.Int64("would_block", r.wouldBlock.Load()),
		slog.Int64("timeouts", r.timeouts.Load()),
	)
}

func (r *runner) record(v int) {
	r.consumed.Add(1)
	if v < 0 || v >= r.total {
		r.unexpected.Add(1)
		return
	}
	r.seen[v].Add(1)
}

// pause sleeps for a random duration up to ConsumerDelay.
func (r *runner) pause(ctx context.Context) error {
	if r.cfg.ConsumerDelay <= 0 {
		return nil
	}
	limit := min(int64(r.cfg.ConsumerDelay), math.MaxUint32)
	return sleep(ctx, time.Duration(fastrand.Uint32n(uint32(limit))))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
