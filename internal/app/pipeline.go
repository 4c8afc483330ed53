package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ayusman/mudra/internal/lgr"
	"github.com/ayusman/mudra/internal/tracking"
)

// ErrSourceDone is returned by ProcessTick once a finite source, such as a
// non-looping replay, has no frames left.
var ErrSourceDone = errors.New("tracking source exhausted")

type finiteSource interface {
	Done() bool
}

// Latch freezes the source's current frame and reports ErrSourceDone when
// a finite source has run out.
func Latch(src tracking.Source) error {
	if l, ok := src.(tracking.Latcher); ok {
		l.Latch()
	}
	if f, ok := src.(finiteSource); ok && f.Done() {
		return ErrSourceDone
	}
	return nil
}

// ProcessTick runs one frame of the pipeline: latch the source, step every
// detector, then feed joint watchers. The source is asked for each joint at
// most once per tick.
func (a *App) ProcessTick(elapsed time.Duration) error {
	a.tick.Lock()
	defer a.tick.Unlock()

	if err := Latch(a.source); err != nil {
		return err
	}
	a.cache.Reset()

	var errs []error
	for _, d := range a.detectors {
		if err := d.ProcessTick(elapsed); err != nil {
			errs = append(errs, err)
		}
	}

	a.watchMu.RLock()
	if len(a.watchers) > 0 {
		if js, ok := a.sampler.Sample(); ok {
			for _, fn := range a.watchers {
				fn(js)
			}
		}
	}
	a.watchMu.RUnlock()

	return errors.Join(errs...)
}

// Run ticks the pipeline at the configured rate until ctx is cancelled or
// the source is exhausted.
func (a *App) Run(ctx context.Context) error {
	lgr.Logger.Info("recognition loop started", slog.Int("fps", a.config.TickFPS), slog.String("source", a.config.Source))
	defer lgr.Logger.Info("recognition loop stopped")
	return Loop(ctx, a.config.TickFPS, a.ProcessTick)
}

// Loop calls step at fps ticks per second with the wall time elapsed since
// the previous tick. Step errors are logged and the loop continues, except
// ErrSourceDone, which ends it. Loop returns nil when ctx is cancelled.
func Loop(ctx context.Context, fps int, step func(elapsed time.Duration) error) error {
	if fps <= 0 {
		fps = 60
	}

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now

			err := step(elapsed)
			if errors.Is(err, ErrSourceDone) {
				lgr.Logger.Info("tracking source finished")
				return nil
			}
			if err != nil {
				lgr.Logger.Warn("tick failed", slog.Any("error", err))
			}
		}
	}
}
