// Package gesture turns streamed hand-joint poses into gesture events.
package gesture

import "github.com/ayusman/mudra/internal/tracking"

// Sampler reads one hand's joints from a tracking source.
type Sampler struct {
	source tracking.Source
	hand   tracking.Handedness
}

// NewSampler creates a Sampler for the given hand. A nil source never
// reports a hand.
func NewSampler(source tracking.Source, hand tracking.Handedness) *Sampler {
	return &Sampler{source: source, hand: hand}
}

// Hand returns the sampled hand.
func (s *Sampler) Hand() tracking.Handedness {
	return s.hand
}

// Sample returns the current joints, or false when the hand is not visible.
// The liveness joint is queried first; when it resolves, every other tracked
// joint is queried once. Joints that do not resolve are left zero valued and
// unresolved in the returned set.
func (s *Sampler) Sample() (tracking.JointSet, bool) {
	var js tracking.JointSet
	if s.source == nil {
		return js, false
	}

	live, ok := s.source.TryGetJointPose(tracking.Liveness, s.hand)
	if !ok {
		return js, false
	}
	js.Set(tracking.Liveness, live)

	for j := tracking.Wrist; j <= tracking.PinkyTip; j++ {
		if j == tracking.Liveness {
			continue
		}
		if p, ok := s.source.TryGetJointPose(j, s.hand); ok {
			js.Set(j, p)
		}
	}
	return js, true
}
