// Package app wires tracking, recognition and the event listeners into the
// running mudra service.
package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/inference"
	"github.com/ayusman/mudra/internal/lgr"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tracking"
)

// dispatchQueue is the number of events waiting for plugin execution.
const dispatchQueue = 16

// Options configures New. Only Config is required.
type Options struct {
	Config *config.Config

	// Store enables the detection log and plugin bindings.
	Store *store.Store

	// Source overrides the tracking source selected by Config.
	Source tracking.Source

	// Engines overrides model loading per detector kind.
	Engines map[gesture.Kind]inference.Engine

	// Display shows detection text.
	Display gesture.Display
}

// App owns the tracking source, the detectors and the event listeners.
type App struct {
	config     *config.Config
	store      *store.Store
	source     tracking.Source
	cache      *tracking.TickCache
	bus        *gesture.Bus
	detectors  []*gesture.Detector
	sampler    *gesture.Sampler
	plugins    *plugin.Manager
	dispatcher *plugin.Dispatcher
	logSub     *gesture.Subscription
	closers    []io.Closer

	// tick serializes ProcessTick, Detectors and Close.
	tick sync.Mutex

	watchMu   sync.RWMutex
	watchers  map[int]func(tracking.JointSet)
	nextWatch int

	enabled   atomic.Bool
	closeOnce sync.Once
}

// New builds the pipeline. A detector is created for each kind that has a
// model path or an engine override.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}

	a := &App{
		config:   cfg,
		store:    opts.Store,
		bus:      gesture.NewBus(),
		watchers: make(map[int]func(tracking.JointSet)),
	}

	a.source = opts.Source
	if a.source == nil {
		src, closer, err := OpenSource(cfg)
		if err != nil {
			return nil, err
		}
		a.source = src
		if closer != nil {
			a.closers = append(a.closers, closer)
		}
	}
	a.cache = tracking.NewTickCache(a.source)
	a.sampler = gesture.NewSampler(a.cache, cfg.Hand)

	profiles := []struct {
		profile gesture.Profile
		model   string
	}{
		{cfg.MotionProfile(), cfg.MotionModel},
		{cfg.StaticProfile(), cfg.StaticModel},
	}
	for _, p := range profiles {
		engine, ok := opts.Engines[p.profile.Kind]
		if !ok {
			if p.model == "" {
				continue
			}
			var err error
			engine, err = inference.Load(p.model, p.profile.Shape())
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("app: %s model: %w", p.profile.Kind, err)
			}
		}

		d, err := gesture.NewDetector(p.profile, a.cache, engine, a.bus, opts.Display)
		if err != nil {
			engine.Close()
			a.Close()
			return nil, fmt.Errorf("app: %w", err)
		}
		a.detectors = append(a.detectors, d)
		lgr.Logger.Info("detector ready",
			slog.String("name", p.profile.Name),
			slog.String("engine", engineName(engine)),
			slog.Int("fps", p.profile.FPS),
		)
	}
	if len(a.detectors) == 0 {
		a.Close()
		return nil, errors.New("app: no detector configured")
	}

	if a.store != nil {
		a.logSub = a.bus.Subscribe(a.logDetection)

		a.plugins = plugin.NewManager(cfg.PluginDir)
		if err := a.plugins.Discover(); err != nil {
			lgr.Logger.Warn("plugin discovery failed", slog.String("dir", cfg.PluginDir), slog.Any("error", err))
		}
		a.dispatcher = plugin.NewDispatcher(a.store.Bindings(), a.plugins, plugin.NewExecutor(cfg.PluginTimeout), dispatchQueue)
		a.dispatcher.Attach(a.bus)
	}

	a.enabled.Store(true)
	return a, nil
}

// OpenSource creates the tracking source selected by cfg.Source. The
// closer is nil when the source holds no resources.
func OpenSource(cfg *config.Config) (tracking.Source, io.Closer, error) {
	switch cfg.Source {
	case config.SourceMock:
		return tracking.NewMockSource(cfg.Hand), nil, nil
	case config.SourceReplay:
		src, err := tracking.NewReplaySource(cfg.TrackingConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("app: %w", err)
		}
		return src, nil, nil
	case config.SourceProcess:
		src, err := tracking.NewProcessSource(cfg.TrackingConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("app: %w", err)
		}
		return src, src, nil
	}
	return nil, nil, fmt.Errorf("app: unknown tracking source %q", cfg.Source)
}

func engineName(e inference.Engine) string {
	if n, ok := e.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", e)
}

func (a *App) logDetection(e gesture.Event) {
	if e.Repeat {
		return
	}
	err := a.store.Detections().Create(&store.Detection{
		Gesture:    e.Gesture,
		Detector:   e.Detector,
		Class:      e.Class,
		Score:      float64(e.Score),
		DetectedAt: e.At,
	})
	if err != nil {
		lgr.Logger.Error("failed to log detection", slog.String("gesture", e.Gesture), slog.Any("error", err))
	}
}

// Bus returns the event bus every detector publishes to.
func (a *App) Bus() *gesture.Bus {
	return a.bus
}

// Source returns the tracking source.
func (a *App) Source() tracking.Source {
	return a.source
}

// Plugins returns the plugin manager, or nil without a store.
func (a *App) Plugins() *plugin.Manager {
	return a.plugins
}

// Gestures returns the class names the detectors can emit.
func (a *App) Gestures() []string {
	var names []string
	for _, d := range a.detectors {
		p := d.Profile()
		for i, name := range p.Classes {
			if p.Kind == gesture.KindStatic && i == p.None {
				continue
			}
			if p.Kind == gesture.KindMotion && i != p.Positive {
				continue
			}
			names = append(names, name)
		}
	}
	return names
}

// SetEnabled turns recognition on or off for every detector.
func (a *App) SetEnabled(on bool) {
	a.enabled.Store(on)
	for _, d := range a.detectors {
		d.SetEnabled(on)
	}
	lgr.Logger.Info("recognition state changed", slog.Bool("enabled", on))
}

// Enabled reports whether recognition is on.
func (a *App) Enabled() bool {
	return a.enabled.Load()
}

// Detectors returns a status snapshot of every detector.
func (a *App) Detectors() []gesture.Status {
	a.tick.Lock()
	defer a.tick.Unlock()

	out := make([]gesture.Status, 0, len(a.detectors))
	for _, d := range a.detectors {
		out = append(out, d.Status())
	}
	return out
}

// WatchJoints calls fn with the sampled joints on every tick the hand is
// visible. fn runs on the tick goroutine and must not block.
func (a *App) WatchJoints(fn func(tracking.JointSet)) (cancel func()) {
	a.watchMu.Lock()
	id := a.nextWatch
	a.nextWatch++
	a.watchers[id] = fn
	a.watchMu.Unlock()

	return func() {
		a.watchMu.Lock()
		delete(a.watchers, id)
		a.watchMu.Unlock()
	}
}

// Close stops the listeners, the detectors and the tracking source.
func (a *App) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		if a.dispatcher != nil {
			a.dispatcher.Close()
		}
		if a.logSub != nil {
			a.logSub.Cancel()
		}
		a.tick.Lock()
		for _, d := range a.detectors {
			if err := d.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		a.tick.Unlock()
		for _, c := range a.closers {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
