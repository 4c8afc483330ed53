// Package tracking provides hand-joint pose types and the tracking sources that supply them.
package tracking

import (
	"fmt"
	"math"
	"strings"
)

// Joint identifies a tracked hand joint.
// Indices follow the mixed-reality hand-tracking convention: 0 is reserved,
// 1..26 are the tracked joints.
type Joint int

// Tracked hand joints.
const (
	None Joint = iota
	Wrist
	Palm
	ThumbMetacarpal
	ThumbProximal
	ThumbDistal
	ThumbTip
	IndexMetacarpal
	IndexKnuckle
	IndexMiddle
	IndexDistal
	IndexTip
	MiddleMetacarpal
	MiddleKnuckle
	MiddleMiddle
	MiddleDistal
	MiddleTip
	RingMetacarpal
	RingKnuckle
	RingMiddle
	RingDistal
	RingTip
	PinkyMetacarpal
	PinkyKnuckle
	PinkyMiddle
	PinkyDistal
	PinkyTip
)

// NumJoints is the number of tracked joints (None excluded).
const NumJoints = int(PinkyTip)

// Liveness is the joint whose presence means the hand is currently tracked.
const Liveness = Palm

var jointNames = [...]string{
	"None", "Wrist", "Palm",
	"ThumbMetacarpal", "ThumbProximal", "ThumbDistal", "ThumbTip",
	"IndexMetacarpal", "IndexKnuckle", "IndexMiddle", "IndexDistal", "IndexTip",
	"MiddleMetacarpal", "MiddleKnuckle", "MiddleMiddle", "MiddleDistal", "MiddleTip",
	"RingMetacarpal", "RingKnuckle", "RingMiddle", "RingDistal", "RingTip",
	"PinkyMetacarpal", "PinkyKnuckle", "PinkyMiddle", "PinkyDistal", "PinkyTip",
}

func (j Joint) String() string {
	if j < 0 || int(j) >= len(jointNames) {
		return fmt.Sprintf("Joint(%d)", int(j))
	}
	return jointNames[j]
}

// Index returns the zero-based slot of a tracked joint in a JointSet.
func (j Joint) Index() int {
	return int(j) - 1
}

// Handedness selects which hand is tracked.
type Handedness string

const (
	Left  Handedness = "left"
	Right Handedness = "right"
)

// ParseHandedness parses "left" or "right" (case-insensitive).
func ParseHandedness(s string) (Handedness, error) {
	switch Handedness(strings.ToLower(strings.TrimSpace(s))) {
	case Left:
		return Left, nil
	case Right:
		return Right, nil
	}
	return "", fmt.Errorf("invalid hand %q", s)
}

// Vec3 is a 3-D position.
type Vec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Vec3) float32 {
	d := a.Sub(b)
	return float32(math.Sqrt(float64(d.X*d.X + d.Y*d.Y + d.Z*d.Z)))
}

// Quat is a rotation quaternion stored as x, y, z, w.
type Quat struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
	W float32 `json:"w"`
}

// Identity is the identity rotation.
var Identity = Quat{W: 1}

// Pose is the position and rotation of one joint.
type Pose struct {
	Position Vec3 `json:"position"`
	Rotation Quat `json:"rotation"`
}

// JointSet holds the poses of every tracked joint for a single tick.
// Slot i holds joint i+1. Unresolved joints keep the zero Pose.
type JointSet struct {
	Poses    [NumJoints]Pose `json:"poses"`
	Resolved [NumJoints]bool `json:"resolved"`
}

// Set stores the pose of a tracked joint and marks it resolved.
func (s *JointSet) Set(j Joint, p Pose) {
	if j <= None || int(j) > NumJoints {
		return
	}
	s.Poses[j.Index()] = p
	s.Resolved[j.Index()] = true
}

// Get returns the pose of a tracked joint and whether it was resolved.
func (s *JointSet) Get(j Joint) (Pose, bool) {
	if j <= None || int(j) > NumJoints {
		return Pose{}, false
	}
	return s.Poses[j.Index()], s.Resolved[j.Index()]
}

// Complete reports whether every tracked joint was resolved.
func (s *JointSet) Complete() bool {
	for _, ok := range s.Resolved {
		if !ok {
			return false
		}
	}
	return true
}
