package gesture

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/inference"
	"github.com/ayusman/mudra/internal/tracking"
)

const tick = 20 * time.Millisecond

type fakeEngine struct {
	shape  inference.Shape
	scores []float32
	err    error
	calls  int
	last   []float32
	closed int
}

func (e *fakeEngine) Infer(input []float32) ([]float32, error) {
	e.calls++
	e.last = input
	if e.err != nil {
		return nil, e.err
	}
	return append([]float32(nil), e.scores...), nil
}

func (e *fakeEngine) Shape() inference.Shape { return e.shape }

func (e *fakeEngine) Close() error {
	e.closed++
	return nil
}

type fakeDisplay struct {
	text  string
	shows int
}

func (d *fakeDisplay) Show(text string, _ time.Duration) {
	d.text = text
	d.shows++
}

func (d *fakeDisplay) Clear() { d.text = "" }

type harness struct {
	det     *Detector
	src     *tracking.MockSource
	engine  *fakeEngine
	display *fakeDisplay
	events  []Event
	frame   int
}

func newHarness(t *testing.T, profile Profile, scores []float32) *harness {
	t.Helper()

	h := &harness{
		src:     tracking.NewMockSource(profile.Hand),
		engine:  &fakeEngine{shape: profile.Shape(), scores: scores},
		display: &fakeDisplay{},
	}
	bus := NewBus()
	bus.Subscribe(func(e Event) { h.events = append(h.events, e) })

	det, err := NewDetector(profile, h.src, h.engine, bus, h.display)
	if err != nil {
		t.Fatalf("NewDetector() error = %v", err)
	}
	h.det = det
	return h
}

// run moves the hand a little and ticks n times.
func (h *harness) run(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		h.frame++
		h.src.SetJoints(tracking.Translate(tracking.OpenHand(tracking.Vec3{}), tracking.Vec3{X: float32(h.frame) * 0.005}))
		h.tick(t)
	}
}

// tick advances the detector once without moving the hand.
func (h *harness) tick(t *testing.T) {
	t.Helper()
	if err := h.det.ProcessTick(tick); err != nil {
		t.Fatalf("ProcessTick() error = %v", err)
	}
}

func (h *harness) wantEvents(t *testing.T, n int) {
	t.Helper()
	if len(h.events) != n {
		t.Fatalf("expected %d events, got %d", n, len(h.events))
	}
}

func (h *harness) wantCalls(t *testing.T, n int) {
	t.Helper()
	if h.engine.calls != n {
		t.Errorf("expected %d inferences, got %d", n, h.engine.calls)
	}
}

func (h *harness) wantDisplay(t *testing.T, text string) {
	t.Helper()
	if h.display.text != text {
		t.Errorf("display = %q, want %q", h.display.text, text)
	}
}

func motionProfile() Profile {
	p := MotionProfile()
	p.FPS = 0
	return p
}

func TestNewDetector_DimensionMismatch(t *testing.T) {
	engine := &fakeEngine{shape: inference.Shape{In: 857, Out: 2}}
	if _, err := NewDetector(MotionProfile(), tracking.NewMockSource(tracking.Right), engine, nil, nil); !errors.Is(err, inference.ErrDimensionMismatch) {
		t.Errorf("motion: error = %v, want %v", err, inference.ErrDimensionMismatch)
	}

	engine = &fakeEngine{shape: inference.Shape{In: 129, Out: 2}}
	if _, err := NewDetector(StaticProfile(), tracking.NewMockSource(tracking.Right), engine, nil, nil); !errors.Is(err, inference.ErrDimensionMismatch) {
		t.Errorf("static: error = %v, want %v", err, inference.ErrDimensionMismatch)
	}
}

func TestNewDetector_InvalidProfile(t *testing.T) {
	p := MotionProfile()
	p.Window = 0
	p.Hand = "both"

	_, err := NewDetector(p, nil, &fakeEngine{}, nil, nil)
	if err == nil {
		t.Fatal("expected an error for an invalid profile")
	}
	for _, field := range []string{"window", "hand"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not mention %s", err, field)
		}
	}
}

func TestProfileShapes(t *testing.T) {
	if got, want := MotionProfile().Shape(), (inference.Shape{In: 858, Out: 2}); got != want {
		t.Errorf("motion shape = %v, want %v", got, want)
	}
	if got, want := StaticProfile().Shape(), (inference.Shape{In: 129, Out: 4}); got != want {
		t.Errorf("static shape = %v, want %v", got, want)
	}
}

func TestMotionDetector_FiresOnReadyWindow(t *testing.T) {
	h := newHarness(t, motionProfile(), []float32{0.1, 0.85})

	// Priming tick plus ten frames
	h.run(t, 11)
	h.wantCalls(t, 0)

	h.run(t, 1)
	h.wantCalls(t, 1)
	if len(h.engine.last) != 858 {
		t.Errorf("input width = %d, want 858", len(h.engine.last))
	}

	h.wantEvents(t, 1)
	e := h.events[0]
	if e.Gesture != "NotOkGesture" || e.Detector != "motion" || e.Repeat {
		t.Errorf("unexpected event %+v", e)
	}
	if !near(e.Score, 0.85) {
		t.Errorf("score = %v, want 0.85", e.Score)
	}

	h.wantDisplay(t, "NOT OK GESTURE!")

	st := h.det.Status()
	if st.State.CooldownRemaining != 500*time.Millisecond {
		t.Errorf("cooldown = %v, want 500ms", st.State.CooldownRemaining)
	}
	if st.State.DisplayRemaining != 2*time.Second {
		t.Errorf("display = %v, want 2s", st.State.DisplayRemaining)
	}
	if st.WindowLen != 0 || st.State.WindowArmed {
		t.Errorf("window not cleared: len %d, armed %v", st.WindowLen, st.State.WindowArmed)
	}
}

func TestMotionDetector_CooldownBlocksRefire(t *testing.T) {
	h := newHarness(t, motionProfile(), []float32{0.1, 0.85})
	h.run(t, 12)
	h.wantEvents(t, 1)

	// 500ms of cooldown at 20ms per tick ends on the 25th tick, which
	// primes. Ten more frames leave the window one short.
	h.run(t, 35)
	h.wantEvents(t, 1)
	h.wantCalls(t, 1)

	h.run(t, 1)
	h.wantEvents(t, 2)
}

func TestMotionDetector_BelowThresholdSlides(t *testing.T) {
	h := newHarness(t, motionProfile(), []float32{0.4, 0.59})

	h.run(t, 12)
	h.wantCalls(t, 1)
	h.wantEvents(t, 0)
	if n := h.det.Status().WindowLen; n != 10 {
		t.Errorf("window len = %d, want 10", n)
	}

	// One inference per tick once full
	h.run(t, 5)
	h.wantCalls(t, 6)
	h.wantEvents(t, 0)
}

func TestMotionDetector_HandLossResetsWindow(t *testing.T) {
	h := newHarness(t, motionProfile(), []float32{0.1, 0.85})

	h.run(t, 6)
	if n := h.det.Status().WindowLen; n != 5 {
		t.Fatalf("window len = %d, want 5", n)
	}

	h.src.Hide()
	h.tick(t)
	st := h.det.Status()
	if st.WindowLen != 0 || st.State.WindowArmed || st.Visible {
		t.Errorf("after hand loss: len %d, armed %v, visible %v", st.WindowLen, st.State.WindowArmed, st.Visible)
	}

	// A full window is rebuilt from scratch
	h.run(t, 11)
	h.wantCalls(t, 0)
	h.run(t, 1)
	h.wantCalls(t, 1)
}

func TestMotionDetector_HandLossKeepsTimers(t *testing.T) {
	h := newHarness(t, motionProfile(), []float32{0.1, 0.85})
	h.run(t, 12)
	h.wantEvents(t, 1)

	h.src.Hide()
	h.tick(t)

	st := h.det.Status()
	if st.State.CooldownRemaining != 480*time.Millisecond {
		t.Errorf("cooldown = %v, want 480ms", st.State.CooldownRemaining)
	}
	if st.State.DisplayRemaining != 1980*time.Millisecond {
		t.Errorf("display = %v, want 1.98s", st.State.DisplayRemaining)
	}
	h.wantDisplay(t, "NOT OK GESTURE!")
}

func TestMotionDetector_DisplayExpires(t *testing.T) {
	h := newHarness(t, motionProfile(), []float32{0.4, 0.59})
	h.engine.scores = []float32{0.1, 0.85}
	h.run(t, 12)
	h.engine.scores = []float32{0.4, 0.59}

	h.src.Hide()
	for i := 0; i < 99; i++ {
		h.tick(t)
	}
	h.wantDisplay(t, "NOT OK GESTURE!")

	h.tick(t)
	h.wantDisplay(t, "")
	if r := h.det.Status().State.DisplayRemaining; r != 0 {
		t.Errorf("display remaining = %v, want 0", r)
	}
}

func TestMotionDetector_FrameRateGate(t *testing.T) {
	p := MotionProfile()
	p.FPS = 25 // 40ms period, two 20ms ticks per step
	h := newHarness(t, p, []float32{0.4, 0.59})

	h.run(t, 22)
	h.wantCalls(t, 0)
	if steps := h.det.Status().Steps; steps != 11 {
		t.Errorf("steps = %d, want 11", steps)
	}

	h.run(t, 2)
	h.wantCalls(t, 1)
}

func TestMotionDetector_InferenceError(t *testing.T) {
	h := newHarness(t, motionProfile(), nil)
	h.engine.err = errors.New("boom")

	h.run(t, 11)
	h.frame++
	h.src.SetJoints(tracking.OpenHand(tracking.Vec3{X: 1}))
	err := h.det.ProcessTick(tick)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("ProcessTick() error = %v, want the engine error", err)
	}
	if n := h.det.Status().WindowLen; n != 10 {
		t.Errorf("window len = %d, want 10", n)
	}
	h.wantEvents(t, 0)
}

func TestDetector_Disabled(t *testing.T) {
	h := newHarness(t, motionProfile(), []float32{0.1, 0.85})
	h.det.SetEnabled(false)
	if h.det.Enabled() {
		t.Fatal("Enabled() = true after SetEnabled(false)")
	}

	h.run(t, 30)
	h.wantCalls(t, 0)
	if ticks := h.det.Status().Ticks; ticks != 30 {
		t.Errorf("ticks = %d, want 30", ticks)
	}

	h.det.SetEnabled(true)
	h.run(t, 12)
	h.wantEvents(t, 1)
}

func TestStaticDetector(t *testing.T) {
	t.Run("publishes class and repeats", func(t *testing.T) {
		h := newHarness(t, StaticProfile(), []float32{0.1, 0.7, 0.1, 0.1})

		h.run(t, 1)
		h.wantEvents(t, 1)
		if e := h.events[0]; e.Gesture != "ThumbsUp" || e.Repeat {
			t.Errorf("unexpected event %+v", e)
		}
		h.wantDisplay(t, "Thumbs Up!")
		if len(h.engine.last) != 129 {
			t.Errorf("input width = %d, want 129", len(h.engine.last))
		}

		h.run(t, 2)
		h.wantEvents(t, 3)
		if !h.events[2].Repeat {
			t.Error("expected a repeat event")
		}
		if h.display.shows != 1 {
			t.Errorf("display shown %d times, want 1", h.display.shows)
		}
		if r := h.det.Status().State.CooldownRemaining; r != 0 {
			t.Errorf("cooldown = %v, want 0", r)
		}
	})

	t.Run("none class clears display", func(t *testing.T) {
		h := newHarness(t, StaticProfile(), []float32{0.1, 0.1, 0.7, 0.1})
		h.run(t, 1)
		h.wantDisplay(t, "Thumbs Down!")

		h.engine.scores = []float32{0.8, 0.1, 0.05, 0.05}
		h.run(t, 1)
		h.wantDisplay(t, "")
		h.wantEvents(t, 1)

		h.engine.scores = []float32{0.1, 0.1, 0.7, 0.1}
		h.run(t, 1)
		h.wantEvents(t, 2)
		if h.events[1].Repeat {
			t.Error("expected a fresh event after the none class")
		}
	})

	t.Run("hand loss clears display", func(t *testing.T) {
		h := newHarness(t, StaticProfile(), []float32{0.1, 0.1, 0.1, 0.7})
		h.run(t, 1)
		h.wantDisplay(t, "Two Fingers!")

		h.src.Hide()
		h.tick(t)
		h.wantDisplay(t, "")
	})

	t.Run("tie goes to none", func(t *testing.T) {
		h := newHarness(t, StaticProfile(), []float32{0.55, 0.55, 0.3, 0.1})
		h.run(t, 1)
		h.wantEvents(t, 0)
	})
}

func TestDetector_Close(t *testing.T) {
	h := newHarness(t, StaticProfile(), []float32{0.1, 0.7, 0.1, 0.1})
	h.run(t, 1)

	for i := 0; i < 2; i++ {
		if err := h.det.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	}
	if h.engine.closed != 1 {
		t.Errorf("engine closed %d times, want 1", h.engine.closed)
	}
	h.wantDisplay(t, "")
}

func TestDetector_OneLookupPerJoint(t *testing.T) {
	h := newHarness(t, motionProfile(), []float32{0.4, 0.59})

	h.run(t, 1)
	if got := h.src.Queries(); got != tracking.NumJoints {
		t.Errorf("visible tick made %d lookups, want %d", got, tracking.NumJoints)
	}

	h.src.Hide()
	before := h.src.Queries()
	h.tick(t)
	if got := h.src.Queries() - before; got != 1 {
		t.Errorf("hidden tick made %d lookups, want 1", got)
	}
}
