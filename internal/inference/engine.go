// Package inference loads pretrained gesture classifiers and runs them.
package inference

import (
	"errors"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"
)

var (
	// ErrModelLoad is returned when a model asset is missing or malformed.
	ErrModelLoad = errors.New("model load failed")

	// ErrDimensionMismatch is returned when a model's declared input or
	// output width differs from the width the caller expects.
	ErrDimensionMismatch = errors.New("model dimension mismatch")

	// ErrClosed is returned by Infer after Close.
	ErrClosed = errors.New("engine closed")
)

// Shape is the input and output width of a classifier.
type Shape struct {
	In  int
	Out int
}

// Engine runs a loaded classifier.
type Engine interface {
	// Infer scores one flat feature vector. The call is synchronous.
	Infer(input []float32) ([]float32, error)

	// Shape returns the widths fixed when the model was loaded.
	Shape() Shape

	// Close releases the model. It is safe to call more than once.
	Close() error
}

// Load opens the model at path and checks it against the expected shape.
// Files ending in .onnx run on the OpenCV DNN module; .json files hold a
// dense network evaluated in Go.
func Load(path string, want Shape) (Engine, error) {
	var (
		engine Engine
		err    error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		engine, err = LoadDense(path)
	case ".onnx":
		engine, err = LoadONNX(path, want)
	default:
		return nil, xerrors.Errorf("%w: unsupported model format %q", ErrModelLoad, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	if err := CheckShape(engine.Shape(), want); err != nil {
		engine.Close()
		return nil, xerrors.Errorf("%s: %w", path, err)
	}

	return engine, nil
}

// CheckShape returns ErrDimensionMismatch when got differs from want.
func CheckShape(got, want Shape) error {
	if got.In != want.In {
		return xerrors.Errorf("%w: input width %d, expected %d", ErrDimensionMismatch, got.In, want.In)
	}
	if got.Out != want.Out {
		return xerrors.Errorf("%w: output width %d, expected %d", ErrDimensionMismatch, got.Out, want.Out)
	}
	return nil
}
