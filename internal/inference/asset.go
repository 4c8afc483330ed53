package inference

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"os"

	"github.com/x448/float16"
	"golang.org/x/xerrors"
)

// Weight encodings accepted in a dense asset.
const (
	DTypeFloat32 = "float32"
	DTypeFloat16 = "float16"
)

// Asset is the serialized form of a dense feed-forward classifier.
type Asset struct {
	Name   string       `json:"name"`
	Input  int          `json:"input"`
	Output int          `json:"output"`
	Layers []LayerAsset `json:"layers"`
}

// LayerAsset is one fully connected layer. Weights are row-major with
// Out rows and In columns.
//
// With dtype float32 the values are JSON numbers in Weights and Bias.
// With dtype float16 they are base64 strings of little-endian IEEE 754
// half-precision values in WeightsF16 and BiasF16.
type LayerAsset struct {
	In         int       `json:"in"`
	Out        int       `json:"out"`
	Activation string    `json:"activation"`
	DType      string    `json:"dtype,omitempty"`
	Weights    []float32 `json:"weights,omitempty"`
	Bias       []float32 `json:"bias,omitempty"`
	WeightsF16 string    `json:"weights_f16,omitempty"`
	BiasF16    string    `json:"bias_f16,omitempty"`
}

// ReadAsset reads and validates a dense asset file.
func ReadAsset(path string) (*Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("%w: %v", ErrModelLoad, err)
	}

	var asset Asset
	if err := json.Unmarshal(data, &asset); err != nil {
		return nil, xerrors.Errorf("%w: parse %s: %v", ErrModelLoad, path, err)
	}

	if err := asset.Validate(); err != nil {
		return nil, xerrors.Errorf("%s: %w", path, err)
	}

	return &asset, nil
}

// WriteAsset writes a dense asset as JSON.
func WriteAsset(path string, asset *Asset) error {
	data, err := json.Marshal(asset)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks that the layers chain from Input to Output and that
// every weight block has the declared size.
func (a *Asset) Validate() error {
	if len(a.Layers) == 0 {
		return xerrors.Errorf("%w: no layers", ErrModelLoad)
	}
	if a.Input <= 0 || a.Output <= 0 {
		return xerrors.Errorf("%w: input %d, output %d", ErrModelLoad, a.Input, a.Output)
	}

	width := a.Input
	for i, l := range a.Layers {
		if l.In != width {
			return xerrors.Errorf("%w: layer %d takes %d inputs, previous width is %d", ErrModelLoad, i, l.In, width)
		}
		if l.Out <= 0 {
			return xerrors.Errorf("%w: layer %d has %d outputs", ErrModelLoad, i, l.Out)
		}
		if _, err := parseActivation(l.Activation); err != nil {
			return xerrors.Errorf("%w: layer %d: %v", ErrModelLoad, i, err)
		}

		w, b, err := l.values()
		if err != nil {
			return xerrors.Errorf("%w: layer %d: %v", ErrModelLoad, i, err)
		}
		if len(w) != l.In*l.Out {
			return xerrors.Errorf("%w: layer %d has %d weights, expected %d", ErrModelLoad, i, len(w), l.In*l.Out)
		}
		if len(b) != l.Out {
			return xerrors.Errorf("%w: layer %d has %d biases, expected %d", ErrModelLoad, i, len(b), l.Out)
		}
		width = l.Out
	}

	if width != a.Output {
		return xerrors.Errorf("%w: last layer yields %d values, declared output is %d", ErrModelLoad, width, a.Output)
	}

	return nil
}

// values decodes the layer's weights and biases.
func (l LayerAsset) values() (weights, bias []float32, err error) {
	switch l.DType {
	case "", DTypeFloat32:
		return l.Weights, l.Bias, nil
	case DTypeFloat16:
		if weights, err = decodeHalf(l.WeightsF16); err != nil {
			return nil, nil, xerrors.Errorf("weights: %w", err)
		}
		if bias, err = decodeHalf(l.BiasF16); err != nil {
			return nil, nil, xerrors.Errorf("bias: %w", err)
		}
		return weights, bias, nil
	}
	return nil, nil, xerrors.Errorf("unknown dtype %q", l.DType)
}

// decodeHalf converts a base64 blob of little-endian float16 values.
func decodeHalf(s string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(raw)%2 != 0 {
		return nil, xerrors.Errorf("odd byte count %d", len(raw))
	}

	out := make([]float32, len(raw)/2)
	for i := range out {
		bits := binary.LittleEndian.Uint16(raw[2*i:])
		out[i] = float16.Frombits(bits).Float32()
	}
	return out, nil
}

// EncodeHalf is the inverse of the float16 decoding used by dense assets.
func EncodeHalf(values []float32) string {
	raw := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(raw[2*i:], float16.Fromfloat32(v).Bits())
	}
	return base64.StdEncoding.EncodeToString(raw)
}
