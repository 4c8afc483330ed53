package tracking

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrBadRecord is returned when a recorded line cannot be parsed.
var ErrBadRecord = errors.New("malformed joint record")

// poseFields is the number of values written per joint: position x,y,z and rotation x,y,z,w.
const poseFields = 7

// AppendRecord appends one recorder line for js to buf:
//
//	<timestamp_ms> | px py pz rx ry rz rw, px py pz rx ry rz rw, ...\n
//
// Joints are written in index order with four decimals. Unresolved joints
// are written as nan so that positions stay aligned with joint indices.
func AppendRecord(buf []byte, timestampMs float64, js *JointSet) []byte {
	buf = strconv.AppendFloat(buf, timestampMs, 'f', -1, 64)
	buf = append(buf, " | "...)

	for i := 0; i < NumJoints; i++ {
		if i > 0 {
			buf = append(buf, ", "...)
		}
		if !js.Resolved[i] {
			buf = append(buf, "nan nan nan nan nan nan nan"...)
			continue
		}
		p := js.Poses[i]
		vals := [poseFields]float32{
			p.Position.X, p.Position.Y, p.Position.Z,
			p.Rotation.X, p.Rotation.Y, p.Rotation.Z, p.Rotation.W,
		}
		for k, v := range vals {
			if k > 0 {
				buf = append(buf, ' ')
			}
			buf = strconv.AppendFloat(buf, float64(v), 'f', 4, 32)
		}
	}

	return append(buf, '\n')
}

// ParseRecord parses a line produced by AppendRecord.
// A trailing comma after the last joint is accepted.
func ParseRecord(line string) (float64, JointSet, error) {
	var js JointSet

	head, body, ok := strings.Cut(strings.TrimSpace(line), "|")
	if !ok {
		return 0, js, fmt.Errorf("%w: missing separator", ErrBadRecord)
	}

	ts, err := strconv.ParseFloat(strings.TrimSpace(head), 64)
	if err != nil {
		return 0, js, fmt.Errorf("%w: timestamp: %v", ErrBadRecord, err)
	}

	slot := 0
	for _, chunk := range strings.Split(body, ",") {
		fields := strings.Fields(chunk)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != poseFields {
			return 0, js, fmt.Errorf("%w: joint %d has %d values", ErrBadRecord, slot+1, len(fields))
		}
		if slot >= NumJoints {
			return 0, js, fmt.Errorf("%w: more than %d joints", ErrBadRecord, NumJoints)
		}

		var vals [poseFields]float32
		resolved := true
		for k, f := range fields {
			v, err := strconv.ParseFloat(f, 32)
			if err != nil {
				return 0, js, fmt.Errorf("%w: joint %d: %v", ErrBadRecord, slot+1, err)
			}
			if math.IsNaN(v) {
				resolved = false
			}
			vals[k] = float32(v)
		}

		if resolved {
			js.Set(Joint(slot+1), Pose{
				Position: Vec3{X: vals[0], Y: vals[1], Z: vals[2]},
				Rotation: Quat{X: vals[3], Y: vals[4], Z: vals[5], W: vals[6]},
			})
		}
		slot++
	}

	return ts, js, nil
}
