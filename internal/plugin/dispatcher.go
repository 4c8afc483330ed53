package plugin

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/lgr"
	"github.com/ayusman/mudra/internal/store"
)

// Bindings looks up the enabled bindings of a gesture.
// *store.BindingRepository satisfies it.
type Bindings interface {
	ListByGesture(gesture string) ([]*store.Binding, error)
}

// Dispatcher runs the plugin actions bound to published gestures.
//
// Bus handlers run on the tick goroutine, so events are queued and executed
// by a single worker. When the queue is full the event is dropped.
type Dispatcher struct {
	bindings Bindings
	plugins  *Manager
	executor *Executor

	queue   chan gesture.Event
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	sub     *gesture.Subscription
	dropped atomic.Uint64
	ran     atomic.Uint64

	closeOnce sync.Once
}

// NewDispatcher starts a dispatcher worker with room for queueSize events.
func NewDispatcher(bindings Bindings, plugins *Manager, executor *Executor, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 16
	}
	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		bindings: bindings,
		plugins:  plugins,
		executor: executor,
		queue:    make(chan gesture.Event, queueSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	d.wg.Add(1)
	go d.worker()
	return d
}

// Attach subscribes the dispatcher to bus.
func (d *Dispatcher) Attach(bus *gesture.Bus) {
	d.sub = bus.Subscribe(d.Enqueue)
}

// Enqueue queues e for execution. Repeat events are ignored.
func (d *Dispatcher) Enqueue(e gesture.Event) {
	if e.Repeat {
		return
	}

	select {
	case <-d.ctx.Done():
		return
	default:
	}

	select {
	case d.queue <- e:
	default:
		d.dropped.Add(1)
		lgr.Logger.Warn("dispatch queue full, dropping event", slog.String("gesture", e.Gesture))
	}
}

// Dropped returns how many events were dropped on a full queue.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Executed returns how many plugin actions completed successfully.
func (d *Dispatcher) Executed() uint64 {
	return d.ran.Load()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case e := <-d.queue:
			d.dispatch(e)
		}
	}
}

func (d *Dispatcher) dispatch(e gesture.Event) {
	bindings, err := d.bindings.ListByGesture(e.Gesture)
	if err != nil {
		lgr.Logger.Error("failed to load bindings", slog.String("gesture", e.Gesture), slog.Any("error", err))
		return
	}

	for _, b := range bindings {
		plugin, err := d.plugins.Resolve(b.PluginName, b.ActionName)
		if err != nil {
			lgr.Logger.Warn("binding skipped", slog.String("binding", b.ID), slog.Any("error", err))
			continue
		}

		resp, err := d.executor.Execute(d.ctx, plugin, &Request{
			Action:   b.ActionName,
			Gesture:  e.Gesture,
			Detector: e.Detector,
			Class:    e.Class,
			Score:    e.Score,
			At:       e.At,
			Config:   b.Config,
		})
		if err != nil {
			lgr.Logger.Error("plugin action failed", slog.String("plugin", b.PluginName), slog.String("action", b.ActionName), slog.Any("error", err))
			continue
		}
		if !resp.Success {
			lgr.Logger.Warn("plugin reported failure", slog.String("plugin", b.PluginName), slog.String("action", b.ActionName), slog.String("error", resp.Error))
			continue
		}

		d.ran.Add(1)
		lgr.Logger.Info("plugin action executed", slog.String("plugin", b.PluginName), slog.String("action", b.ActionName), slog.String("gesture", e.Gesture))
	}
}

// Close detaches from the bus and stops the worker. Queued events that
// have not started are discarded; a running action is cancelled.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		if d.sub != nil {
			d.sub.Cancel()
		}
		d.cancel()
		d.wg.Wait()
	})
}
