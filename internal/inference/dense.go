package inference

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/mat"
)

type activation int

const (
	linear activation = iota
	relu
	sigmoid
	tanh
	softmax
)

func parseActivation(name string) (activation, error) {
	switch name {
	case "", "linear":
		return linear, nil
	case "relu":
		return relu, nil
	case "sigmoid":
		return sigmoid, nil
	case "tanh":
		return tanh, nil
	case "softmax":
		return softmax, nil
	}
	return linear, fmt.Errorf("unknown activation %q", name)
}

// apply transforms v in place.
func (a activation) apply(v []float64) {
	switch a {
	case relu:
		for i, x := range v {
			if x < 0 {
				v[i] = 0
			}
		}
	case sigmoid:
		for i, x := range v {
			v[i] = 1 / (1 + math.Exp(-x))
		}
	case tanh:
		for i, x := range v {
			v[i] = math.Tanh(x)
		}
	case softmax:
		peak := math.Inf(-1)
		for _, x := range v {
			peak = math.Max(peak, x)
		}
		var sum float64
		for i, x := range v {
			v[i] = math.Exp(x - peak)
			sum += v[i]
		}
		for i := range v {
			v[i] /= sum
		}
	}
}

type denseLayer struct {
	weights *mat.Dense
	bias    *mat.VecDense
	act     activation
}

// workspace holds the vectors used by one forward pass.
type workspace struct {
	input   *mat.VecDense
	outputs []*mat.VecDense
}

// Dense is a fully connected feed-forward classifier evaluated with gonum.
type Dense struct {
	name   string
	shape  Shape
	layers []denseLayer

	buffers   sync.Pool
	closed    atomic.Bool
	closeOnce sync.Once
}

// LoadDense reads a dense asset from disk.
func LoadDense(path string) (*Dense, error) {
	asset, err := ReadAsset(path)
	if err != nil {
		return nil, err
	}
	return NewDense(asset)
}

// NewDense builds a classifier from a validated asset.
func NewDense(asset *Asset) (*Dense, error) {
	if err := asset.Validate(); err != nil {
		return nil, err
	}

	d := &Dense{
		name:   asset.Name,
		shape:  Shape{In: asset.Input, Out: asset.Output},
		layers: make([]denseLayer, len(asset.Layers)),
	}

	for i, l := range asset.Layers {
		w, b, _ := l.values()
		act, _ := parseActivation(l.Activation)
		d.layers[i] = denseLayer{
			weights: mat.NewDense(l.Out, l.In, widen(w)),
			bias:    mat.NewVecDense(l.Out, widen(b)),
			act:     act,
		}
	}

	d.buffers.New = func() any {
		ws := &workspace{
			input:   mat.NewVecDense(d.shape.In, nil),
			outputs: make([]*mat.VecDense, len(d.layers)),
		}
		for i, l := range d.layers {
			rows, _ := l.weights.Dims()
			ws.outputs[i] = mat.NewVecDense(rows, nil)
		}
		return ws
	}

	return d, nil
}

// Name returns the model name recorded in the asset.
func (d *Dense) Name() string {
	return d.name
}

// Shape returns the input and output widths.
func (d *Dense) Shape() Shape {
	return d.shape
}

// Infer runs a forward pass. The workspace is returned to the pool on
// every path, including a panic inside gonum.
func (d *Dense) Infer(input []float32) ([]float32, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	if len(input) != d.shape.In {
		return nil, xerrors.Errorf("%w: got %d values, expected %d", ErrDimensionMismatch, len(input), d.shape.In)
	}

	ws := d.buffers.Get().(*workspace)
	defer d.buffers.Put(ws)

	x := ws.input.RawVector().Data
	for i, v := range input {
		x[i] = float64(v)
	}

	var current mat.Vector = ws.input
	for i, l := range d.layers {
		y := ws.outputs[i]
		y.MulVec(l.weights, current)
		y.AddVec(y, l.bias)
		l.act.apply(y.RawVector().Data)
		current = y
	}

	scores := make([]float32, d.shape.Out)
	for i := range scores {
		scores[i] = float32(current.AtVec(i))
	}
	return scores, nil
}

// Close drops the weights. Later calls to Infer return ErrClosed.
func (d *Dense) Close() error {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		d.layers = nil
	})
	return nil
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
