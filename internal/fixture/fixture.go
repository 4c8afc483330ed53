// Package fixture builds models and joint recordings for tests.
package fixture

import (
	"os"
	"path/filepath"

	"github.com/ayusman/mudra/internal/inference"
	"github.com/ayusman/mudra/internal/tracking"
)

// BiasModel returns a one-layer softmax classifier whose output ignores
// its input: every inference yields softmax(bias).
func BiasModel(name string, in int, bias []float32) *inference.Asset {
	return &inference.Asset{
		Name:   name,
		Input:  in,
		Output: len(bias),
		Layers: []inference.LayerAsset{{
			In:         in,
			Out:        len(bias),
			Activation: "softmax",
			DType:      inference.DTypeFloat32,
			Weights:    make([]float32, in*len(bias)),
			Bias:       bias,
		}},
	}
}

// WriteModel writes asset to dir/name and returns the path.
func WriteModel(dir, name string, asset *inference.Asset) (string, error) {
	path := filepath.Join(dir, name)
	if err := inference.WriteAsset(path, asset); err != nil {
		return "", err
	}
	return path, nil
}

// Sweep returns n frames of an open hand moving along +X by step metres
// per frame.
func Sweep(n int, step float32) []tracking.JointSet {
	frames := make([]tracking.JointSet, n)
	base := tracking.OpenHand(tracking.Vec3{Y: 1.2, Z: 0.4})
	for i := range frames {
		frames[i] = tracking.Translate(base, tracking.Vec3{X: float32(i) * step})
	}
	return frames
}

// WriteRecording writes frames in the recorder format, stepMs apart.
func WriteRecording(path string, frames []tracking.JointSet, stepMs float64) error {
	var buf []byte
	for i := range frames {
		buf = tracking.AppendRecord(buf, float64(i)*stepMs, &frames[i])
	}
	return os.WriteFile(path, buf, 0644)
}
