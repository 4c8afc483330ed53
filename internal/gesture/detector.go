package gesture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/mudra/internal/inference"
	"github.com/ayusman/mudra/internal/lgr"
	"github.com/ayusman/mudra/internal/tracking"
)

// Display shows detection text. The detector owns the countdown and calls
// Clear when the text expires; d is only a hint for the surface.
type Display interface {
	Show(text string, d time.Duration)
	Clear()
}

type nopDisplay struct{}

func (nopDisplay) Show(string, time.Duration) {}
func (nopDisplay) Clear()                     {}

// DetectionState holds the timers driven by elapsed time.
type DetectionState struct {
	CooldownRemaining time.Duration `json:"cooldown_remaining"`
	DisplayRemaining  time.Duration `json:"display_remaining"`
	WindowArmed       bool          `json:"window_armed"`
}

// Status is a snapshot of a detector.
type Status struct {
	Name       string         `json:"name"`
	Kind       Kind           `json:"kind"`
	Enabled    bool           `json:"enabled"`
	Visible    bool           `json:"visible"`
	State      DetectionState `json:"state"`
	WindowLen  int            `json:"window_len"`
	Ticks      uint64         `json:"ticks"`
	Steps      uint64         `json:"steps"`
	Inferences uint64         `json:"inferences"`
	Detections uint64         `json:"detections"`
	LastEvent  *Event         `json:"last_event,omitempty"`
}

// Detector runs the recognition pipeline for one profile.
//
// ProcessTick must be called from a single goroutine. SetEnabled and
// Enabled may be called from any goroutine.
type Detector struct {
	profile Profile
	sampler *Sampler
	engine  inference.Engine
	bus     *Bus
	display Display
	gate    *Gate
	policy  Policy
	window  *Window
	pose    PoseEncoder

	state     DetectionState
	visible   bool
	shown     string
	showing   bool
	lastClass int
	lastEvent *Event

	ticks, steps, inferences, detections uint64

	enabled   atomic.Bool
	now       func() time.Time
	closeOnce sync.Once
}

// NewDetector wires a detector. The engine's widths must match the
// profile; the detector takes ownership of the engine and closes it in
// Close. A nil bus or display is replaced by an unused one.
func NewDetector(profile Profile, source tracking.Source, engine inference.Engine, bus *Bus, display Display) (*Detector, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, errors.New("inference engine is required")
	}
	if err := inference.CheckShape(engine.Shape(), profile.Shape()); err != nil {
		return nil, fmt.Errorf("detector %s: %w", profile.Name, err)
	}

	if bus == nil {
		bus = NewBus()
	}
	if display == nil {
		display = nopDisplay{}
	}

	d := &Detector{
		profile:   profile,
		sampler:   NewSampler(source, profile.Hand),
		engine:    engine,
		bus:       bus,
		display:   display,
		gate:      NewGate(profile.FPS),
		policy:    profile.Policy(),
		lastClass: -1,
		now:       time.Now,
	}
	if profile.Kind == KindMotion {
		d.window = NewWindow(profile.Window, DeltaEncoder{Joints: profile.Joints})
	} else {
		d.pose = PoseEncoder{Joints: profile.Joints}
	}
	d.enabled.Store(true)

	return d, nil
}

// Profile returns the detector's configuration.
func (d *Detector) Profile() Profile {
	return d.profile
}

// Bus returns the bus events are published on.
func (d *Detector) Bus() *Bus {
	return d.bus
}

// SetEnabled starts or stops recognition. Timers keep running while
// recognition is stopped.
func (d *Detector) SetEnabled(on bool) {
	d.enabled.Store(on)
}

// Enabled reports whether recognition is running.
func (d *Detector) Enabled() bool {
	return d.enabled.Load()
}

// ProcessTick advances the detector by elapsed wall time, samples the hand
// and, when it is visible and the detector is due, scores it.
// Errors come from inference only; the detector stays usable after one.
func (d *Detector) ProcessTick(elapsed time.Duration) error {
	if elapsed < 0 {
		elapsed = 0
	}
	d.ticks++
	d.countDown(elapsed)

	js, visible := d.sampler.Sample()
	d.visible = visible
	if !visible {
		d.lost()
		return nil
	}

	if !d.gate.Allow(elapsed) || d.state.CooldownRemaining > 0 {
		return nil
	}
	if !d.enabled.Load() {
		// A stale baseline would turn the first tick after re-enabling
		// into one large delta.
		if d.window != nil {
			d.window.Reset()
		}
		return nil
	}

	d.steps++

	if d.window != nil {
		return d.stepMotion(js)
	}
	return d.stepStatic(js)
}

func (d *Detector) countDown(elapsed time.Duration) {
	if d.state.DisplayRemaining > 0 {
		d.state.DisplayRemaining -= elapsed
		if d.state.DisplayRemaining <= 0 {
			d.clearDisplay()
		}
	}
	if d.state.CooldownRemaining > 0 {
		d.state.CooldownRemaining = max(d.state.CooldownRemaining-elapsed, 0)
	}
}

// lost handles a tick without the hand. Timers are left running.
func (d *Detector) lost() {
	if d.window != nil {
		d.window.Reset()
		return
	}
	d.lastClass = -1
	d.clearDisplay()
}

func (d *Detector) stepMotion(js tracking.JointSet) error {
	if !d.window.Push(js) || !d.window.Ready() {
		return nil
	}

	input, err := d.window.Flatten()
	if err != nil {
		return err
	}

	scores, err := d.infer(input)
	if err != nil {
		d.window.Slide(false)
		return err
	}

	dec := d.policy.Decide(scores)
	d.window.Slide(dec.Fire)
	if !dec.Fire {
		return nil
	}

	d.state.CooldownRemaining = d.profile.Cooldown
	d.show(d.profile.Text(dec.Class))
	d.publish(dec, false)
	return nil
}

func (d *Detector) stepStatic(js tracking.JointSet) error {
	scores, err := d.infer(d.pose.Encode(&js))
	if err != nil {
		return err
	}

	lgr.Logger.Debug("pose scores",
		slog.String("detector", d.profile.Name),
		slog.Any("scores", scores),
	)

	dec := d.policy.Decide(scores)
	if !dec.Fire {
		d.lastClass = -1
		d.clearDisplay()
		return nil
	}

	repeat := dec.Class == d.lastClass
	d.lastClass = dec.Class
	d.show(d.profile.Text(dec.Class))
	d.publish(dec, repeat)
	return nil
}

func (d *Detector) infer(input []float32) ([]float32, error) {
	d.inferences++
	scores, err := d.engine.Infer(input)
	if err != nil {
		return nil, fmt.Errorf("detector %s: infer: %w", d.profile.Name, err)
	}
	return scores, nil
}

func (d *Detector) show(text string) {
	if text == "" {
		return
	}
	d.state.DisplayRemaining = d.profile.DisplayFor
	if d.showing && d.shown == text {
		return
	}
	d.display.Show(text, d.profile.DisplayFor)
	d.shown = text
	d.showing = true
}

func (d *Detector) clearDisplay() {
	d.state.DisplayRemaining = 0
	if !d.showing {
		return
	}
	d.display.Clear()
	d.shown = ""
	d.showing = false
}

func (d *Detector) publish(dec Decision, repeat bool) {
	name := ""
	if dec.Class < len(d.profile.Classes) {
		name = d.profile.Classes[dec.Class]
	}

	e := Event{
		Gesture:  name,
		Detector: d.profile.Name,
		Class:    dec.Class,
		Score:    dec.Score,
		Repeat:   repeat,
		At:       d.now(),
	}
	d.detections++
	d.lastEvent = &e

	if !repeat {
		lgr.Logger.Info("gesture detected",
			slog.String("detector", e.Detector),
			slog.String("gesture", e.Gesture),
			slog.Float64("score", float64(e.Score)),
		)
	}

	d.bus.Publish(e)
}

// Status returns a snapshot. Like ProcessTick it must not run concurrently
// with other calls that advance the detector.
func (d *Detector) Status() Status {
	s := Status{
		Name:       d.profile.Name,
		Kind:       d.profile.Kind,
		Enabled:    d.enabled.Load(),
		Visible:    d.visible,
		State:      d.state,
		Ticks:      d.ticks,
		Steps:      d.steps,
		Inferences: d.inferences,
		Detections: d.detections,
	}
	if d.window != nil {
		s.WindowLen = d.window.Len()
		s.State.WindowArmed = d.window.Primed()
	}
	if d.lastEvent != nil {
		e := *d.lastEvent
		s.LastEvent = &e
	}
	return s
}

// Close clears the display and releases the engine.
func (d *Detector) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.clearDisplay()
		err = d.engine.Close()
	})
	return err
}
