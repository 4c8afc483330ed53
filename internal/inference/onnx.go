package inference

import (
	"log/slog"
	"sync"

	"github.com/ayusman/mudra/internal/lgr"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

// ONNX runs an exported classifier on the OpenCV DNN module.
type ONNX struct {
	path  string
	shape Shape

	// gocv.Net is not safe for concurrent use
	mu        sync.Mutex
	net       gocv.Net
	closed    bool
	closeOnce sync.Once
}

// LoadONNX reads an ONNX model. ONNX files carry no declared widths that
// OpenCV exposes, so the model is run once on a zero vector of want.In
// values and the output width is taken from the result.
func LoadONNX(path string, want Shape) (*ONNX, error) {
	if want.In <= 0 {
		return nil, xerrors.Errorf("%w: input width %d", ErrModelLoad, want.In)
	}

	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, xerrors.Errorf("%w: read onnx model %s", ErrModelLoad, path)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, xerrors.Errorf("%w: set backend: %v", ErrModelLoad, err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, xerrors.Errorf("%w: set target: %v", ErrModelLoad, err)
	}

	o := &ONNX{path: path, net: net, shape: Shape{In: want.In}}

	zero, err := o.forward(make([]float32, want.In))
	if err != nil {
		net.Close()
		return nil, xerrors.Errorf("%w: zero input %s: %v", ErrDimensionMismatch, path, err)
	}
	o.shape.Out = len(zero)

	lgr.Logger.Info("onnx model loaded",
		slog.String("path", path),
		slog.String("openCV", gocv.Version()),
		slog.Int("input", o.shape.In),
		slog.Int("output", o.shape.Out),
	)

	return o, nil
}

// Shape returns the input width requested at load and the output width measured at load.
func (o *ONNX) Shape() Shape {
	return o.shape
}

// Infer scores one feature vector.
func (o *ONNX) Infer(input []float32) ([]float32, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, ErrClosed
	}
	if len(input) != o.shape.In {
		return nil, xerrors.Errorf("%w: got %d values, expected %d", ErrDimensionMismatch, len(input), o.shape.In)
	}
	return o.forward(input)
}

// forward copies input into a 1×N blob and returns a copy of the output.
func (o *ONNX) forward(input []float32) ([]float32, error) {
	blob := gocv.NewMatWithSize(1, len(input), gocv.MatTypeCV32F)
	defer blob.Close()

	for i, v := range input {
		blob.SetFloatAt(0, i, v)
	}

	o.net.SetInput(blob, "")
	output := o.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return nil, xerrors.New("empty output")
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, xerrors.Errorf("read output: %w", err)
	}

	scores := make([]float32, len(data))
	copy(scores, data)
	return scores, nil
}

// Close releases the network.
func (o *ONNX) Close() error {
	var err error
	o.closeOnce.Do(func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.closed = true
		err = o.net.Close()
	})
	return err
}
