package tracking

import "sync"

// MockSource is a test implementation of the Source interface.
// It allows tests to control which joints are visible and where they are.
type MockSource struct {
	mu      sync.RWMutex
	hand    Handedness
	joints  JointSet
	visible bool
	queries int
}

// NewMockSource creates a MockSource with no hand visible.
func NewMockSource(hand Handedness) *MockSource {
	return &MockSource{hand: hand}
}

// SetJoints makes the hand visible with the given joint poses.
func (m *MockSource) SetJoints(js JointSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joints = js
	m.visible = true
}

// Hide makes the hand invisible.
func (m *MockSource) Hide() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visible = false
}

// Queries returns how many joint lookups have been made.
func (m *MockSource) Queries() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queries
}

// TryGetJointPose returns the configured pose for the mock's hand.
func (m *MockSource) TryGetJointPose(j Joint, hand Handedness) (Pose, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++

	if !m.visible || hand != m.hand {
		return Pose{}, false
	}
	return m.joints.Get(j)
}

// OpenHand returns a complete JointSet of an open right hand at the given
// wrist position. Fingers point along +Y, spaced along X.
func OpenHand(wrist Vec3) JointSet {
	var js JointSet

	js.Set(Wrist, Pose{Position: wrist, Rotation: Identity})
	js.Set(Palm, Pose{Position: Vec3{X: wrist.X, Y: wrist.Y + 0.04, Z: wrist.Z}, Rotation: Identity})

	fingers := [][]Joint{
		{ThumbMetacarpal, ThumbProximal, ThumbDistal, ThumbTip},
		{IndexMetacarpal, IndexKnuckle, IndexMiddle, IndexDistal, IndexTip},
		{MiddleMetacarpal, MiddleKnuckle, MiddleMiddle, MiddleDistal, MiddleTip},
		{RingMetacarpal, RingKnuckle, RingMiddle, RingDistal, RingTip},
		{PinkyMetacarpal, PinkyKnuckle, PinkyMiddle, PinkyDistal, PinkyTip},
	}
	for f, chain := range fingers {
		x := wrist.X + 0.03 - float32(f)*0.018
		for k, j := range chain {
			js.Set(j, Pose{
				Position: Vec3{X: x, Y: wrist.Y + 0.02 + float32(k)*0.025, Z: wrist.Z},
				Rotation: Quat{X: 0, Y: 0, Z: 0.0436, W: 0.9990},
			})
		}
	}

	return js
}

// ThumbsUp returns a complete JointSet with the thumb extended and the
// other fingers curled toward the palm.
func ThumbsUp(wrist Vec3) JointSet {
	js := OpenHand(wrist)
	curled := [][]Joint{
		{IndexKnuckle, IndexMiddle, IndexDistal, IndexTip},
		{MiddleKnuckle, MiddleMiddle, MiddleDistal, MiddleTip},
		{RingKnuckle, RingMiddle, RingDistal, RingTip},
		{PinkyKnuckle, PinkyMiddle, PinkyDistal, PinkyTip},
	}
	for _, chain := range curled {
		for k, j := range chain {
			p, _ := js.Get(j)
			p.Position.Y = wrist.Y + 0.05 - float32(k)*0.01
			p.Position.Z = wrist.Z - 0.02
			p.Rotation = Quat{X: 0.7071, Y: 0, Z: 0, W: 0.7071}
			js.Set(j, p)
		}
	}
	return js
}

// Translate returns a copy of js with every resolved joint moved by d.
func Translate(js JointSet, d Vec3) JointSet {
	out := js
	for i := range out.Poses {
		if !out.Resolved[i] {
			continue
		}
		p := &out.Poses[i].Position
		p.X += d.X
		p.Y += d.Y
		p.Z += d.Z
	}
	return out
}
