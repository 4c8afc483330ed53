package gesture

import (
	"fmt"

	"github.com/ayusman/mudra/internal/tracking"
)

// Per-joint feature widths.
const (
	positionWidth = 3
	rotationWidth = 4
)

func checkJoints(joints int) error {
	if joints < 2 || joints > tracking.NumJoints {
		return fmt.Errorf("joint count %d out of range [2, %d]", joints, tracking.NumJoints)
	}
	return nil
}

// DeltaEncoder encodes the per-joint position change between two ticks.
// A frame holds x, y, z for each of the first Joints joints.
type DeltaEncoder struct {
	Joints int
}

// FrameWidth returns the length of one encoded frame.
func (e DeltaEncoder) FrameWidth() int {
	return e.Joints * positionWidth
}

// InputWidth returns the flattened width of a window of the given capacity.
func (e DeltaEncoder) InputWidth(window int) int {
	return window * e.FrameWidth()
}

// Encode returns cur minus prev for every joint. Unresolved joints hold
// zero positions, so a joint that drops out encodes as a jump to the origin.
func (e DeltaEncoder) Encode(prev, cur *tracking.JointSet) []float32 {
	frame := make([]float32, e.FrameWidth())
	for j := 0; j < e.Joints; j++ {
		d := cur.Poses[j].Position.Sub(prev.Poses[j].Position)
		frame[j*3] = d.X
		frame[j*3+1] = d.Y
		frame[j*3+2] = d.Z
	}
	return frame
}

// PoseEncoder encodes a single hand pose: the distance of every joint from
// the root joint (slot 0), followed by every joint's rotation quaternion.
type PoseEncoder struct {
	Joints int
}

// InputWidth returns Joints-1 distances plus four values per joint.
func (e PoseEncoder) InputWidth() int {
	return e.distances() + rotationWidth*e.Joints
}

func (e PoseEncoder) distances() int {
	return e.Joints - 1
}

// Encode returns the static pose features for js.
func (e PoseEncoder) Encode(js *tracking.JointSet) []float32 {
	out := make([]float32, e.InputWidth())

	root := js.Poses[0].Position
	for j := 1; j < e.Joints; j++ {
		out[j-1] = tracking.Distance(root, js.Poses[j].Position)
	}

	offset := e.distances()
	for j := 0; j < e.Joints; j++ {
		q := js.Poses[j].Rotation
		i := offset + j*rotationWidth
		out[i] = q.X
		out[i+1] = q.Y
		out[i+2] = q.Z
		out[i+3] = q.W
	}
	return out
}
