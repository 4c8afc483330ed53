package gesture

import "time"

// Gate limits processing to a target rate. Elapsed time accumulates across
// ticks; each permitted step consumes exactly one period so that the rate
// does not drift.
type Gate struct {
	period time.Duration
	acc    time.Duration
}

// NewGate creates a Gate for fps steps per second. With fps <= 0 every
// tick is permitted.
func NewGate(fps int) *Gate {
	g := &Gate{}
	if fps > 0 {
		g.period = time.Second / time.Duration(fps)
	}
	return g
}

// Period returns the target step period, or zero when ungated.
func (g *Gate) Period() time.Duration {
	return g.period
}

// Allow adds elapsed to the accumulator and reports whether a step may run.
func (g *Gate) Allow(elapsed time.Duration) bool {
	if g.period <= 0 {
		return true
	}
	g.acc += elapsed
	if g.acc >= g.period {
		g.acc -= g.period
		return true
	}
	return false
}

// Accumulated returns the time carried toward the next step.
func (g *Gate) Accumulated() time.Duration {
	return g.acc
}

// Reset drops any accumulated time.
func (g *Gate) Reset() {
	g.acc = 0
}
