package gesture

import (
	"errors"

	"github.com/ayusman/mudra/internal/tracking"
)

// ErrWindowNotReady is returned by Flatten before the window is full.
var ErrWindowNotReady = errors.New("window not ready")

// Window is a bounded sequence of delta frames, newest first.
//
// The first push after a reset only records the baseline joints; each later
// push encodes the change since the previous push and inserts it at the front.
type Window struct {
	capacity int
	encoder  DeltaEncoder

	frames   [][]float32
	baseline tracking.JointSet
	primed   bool
}

// NewWindow creates an empty, unprimed window.
func NewWindow(capacity int, encoder DeltaEncoder) *Window {
	return &Window{
		capacity: capacity,
		encoder:  encoder,
		frames:   make([][]float32, 0, capacity),
	}
}

// Capacity returns the number of frames in a full window.
func (w *Window) Capacity() int {
	return w.capacity
}

// Len returns the number of frames held.
func (w *Window) Len() int {
	return len(w.frames)
}

// Primed reports whether a baseline has been recorded since the last reset.
func (w *Window) Primed() bool {
	return w.primed
}

// Ready reports whether the window holds exactly Capacity frames.
func (w *Window) Ready() bool {
	return len(w.frames) == w.capacity
}

// Push adds the joints of one tick. It returns false when the joints were
// only used as the priming baseline.
func (w *Window) Push(js tracking.JointSet) bool {
	if !w.primed {
		w.baseline = js
		w.primed = true
		return false
	}

	frame := w.encoder.Encode(&w.baseline, &js)
	w.baseline = js

	// A full window is slid by the caller before the next push; drop the
	// oldest frame if it was not.
	if len(w.frames) == w.capacity {
		w.frames = w.frames[:w.capacity-1]
	}
	w.frames = append(w.frames, nil)
	copy(w.frames[1:], w.frames)
	w.frames[0] = frame
	return true
}

// Flatten concatenates the frames newest first. Element (f, j, c) is at
// f*joints*3 + j*3 + c.
func (w *Window) Flatten() ([]float32, error) {
	if !w.Ready() {
		return nil, ErrWindowNotReady
	}

	width := w.encoder.FrameWidth()
	out := make([]float32, w.encoder.InputWidth(w.capacity))
	for f, frame := range w.frames {
		copy(out[f*width:], frame)
	}
	return out, nil
}

// Slide advances the window after an inference. A firing clears it and
// requires a new baseline; otherwise the oldest frame is dropped.
func (w *Window) Slide(fired bool) {
	if fired {
		w.Reset()
		return
	}
	if len(w.frames) > 0 {
		w.frames[len(w.frames)-1] = nil
		w.frames = w.frames[:len(w.frames)-1]
	}
}

// Reset empties the window and forgets the baseline.
func (w *Window) Reset() {
	clear(w.frames)
	w.frames = w.frames[:0]
	w.baseline = tracking.JointSet{}
	w.primed = false
}
