// Package inference - This file maps layer precisions onto tensor element types.
package inference

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Precision represents the floating point precision the layer runs at.
type Precision string

// Precision constants are the supported precisions for the detection output layer.
const (
	PrecisionFP32 Precision = "FP32"
	PrecisionFP64 Precision = "FP64"
)

// ErrUnsupportedDtype is returned for tensors whose element type the layer cannot run on.
var ErrUnsupportedDtype = errors.New("unsupported tensor dtype")

// Dtype returns the tensor element type of the precision.
func (p Precision) Dtype() (tensor.Dtype, error) {
	switch p {
	case PrecisionFP32:
		return tensor.Float32, nil
	case PrecisionFP64:
		return tensor.Float64, nil
	}
	return tensor.Dtype{}, errors.Wrapf(ErrUnsupportedDtype, "precision %q", string(p))
}

// Validate reports whether the precision is supported.
func (p Precision) Validate() error {
	_, err := p.Dtype()
	return err
}

// PrecisionOf returns the precision matching a tensor element type.
func PrecisionOf(dt tensor.Dtype) (Precision, error) {
	switch dt {
	case tensor.Float32:
		return PrecisionFP32, nil
	case tensor.Float64:
		return PrecisionFP64, nil
	}
	return "", errors.Wrapf(ErrUnsupportedDtype, "dtype %v", dt)
}

// Convert returns t with its elements converted to the precision p.
// The tensor is returned unchanged when it already has the requested element type.
//
// Arguments:
//   - t: A float32 or float64 tensor.
//   - p: The target precision.
//
// Returns:
//   - A tensor of the same shape holding p's element type.
func Convert(t *tensor.Dense, p Precision) (*tensor.Dense, error) {
	want, err := p.Dtype()
	if err != nil {
		return nil, err
	}
	if t.Dtype() == want {
		return t, nil
	}

	shape := t.Shape().Clone()
	switch src := t.Data().(type) {
	case []float32:
		dst := make([]float64, len(src))
		for i, v := range src {
			dst[i] = float64(v)
		}
		return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(dst)), nil
	case []float64:
		dst := make([]float32, len(src))
		for i, v := range src {
			dst[i] = float32(v)
		}
		return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(dst)), nil
	}
	return nil, errors.Wrapf(ErrUnsupportedDtype, "dtype %v", t.Dtype())
}
