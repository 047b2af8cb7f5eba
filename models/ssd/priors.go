// Package ssd - decodes SSD location and confidence tensors into final detections.
package ssd

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detection-output/common"
)

// PriorBoxes holds the anchor boxes of a network together with their variances.
// Both slices have one entry per prior and are shared by every image of a batch.
type PriorBoxes[T common.Float] struct {
	Boxes     []common.NormalizedBox[T]
	Variances [][4]T
}

// Len returns the number of priors.
func (p PriorBoxes[T]) Len() int {
	return len(p.Boxes)
}

// GetPriorBoxes splits a flat prior tensor into boxes and variances.
//
// The first numPriors*4 values are the boxes (xmin, ymin, xmax, ymax), the next numPriors*4
// values the matching variances.
//
// Arguments:
//   - data: The prior tensor data, at least 2*numPriors*4 values long.
//   - numPriors: The number of priors.
//
// Returns:
//   - The priors, or an error wrapping ErrShapeMismatch when data is too short.
func GetPriorBoxes[T common.Float](data []T, numPriors int) (PriorBoxes[T], error) {
	if numPriors < 0 || len(data) < 2*numPriors*4 {
		return PriorBoxes[T]{}, errors.Wrapf(ErrShapeMismatch,
			"prior data has %d values, need %d for %d priors", len(data), 2*numPriors*4, numPriors)
	}

	priors := PriorBoxes[T]{
		Boxes:     make([]common.NormalizedBox[T], numPriors),
		Variances: make([][4]T, numPriors),
	}
	variances := data[numPriors*4:]
	for i := 0; i < numPriors; i++ {
		b := data[i*4 : i*4+4]
		priors.Boxes[i] = common.NormalizedBox[T]{XMin: b[0], YMin: b[1], XMax: b[2], YMax: b[3]}
		copy(priors.Variances[i][:], variances[i*4:i*4+4])
	}
	return priors, nil
}

// DecodeBox recovers an absolute box from an offset encoded against prior.
//
// The center moves by variance[0..1] * offset[0..1] * prior size and the size scales by
// exp(variance[2..3] * offset[2..3]). The corners are computed relative to the prior's own
// corners, so a zero offset reproduces the prior exactly.
func DecodeBox[T common.Float](prior common.NormalizedBox[T], variance [4]T, offset common.NormalizedBox[T]) common.NormalizedBox[T] {
	priorWidth := prior.Width()
	priorHeight := prior.Height()

	shiftX := variance[0] * offset.XMin * priorWidth
	shiftY := variance[1] * offset.YMin * priorHeight
	width := priorWidth * exp(variance[2]*offset.XMax)
	height := priorHeight * exp(variance[3]*offset.YMax)

	growX := (priorWidth - width) / 2
	growY := (priorHeight - height) / 2

	return common.NormalizedBox[T]{
		XMin: prior.XMin + shiftX + growX,
		YMin: prior.YMin + shiftY + growY,
		XMax: prior.XMax + shiftX - growX,
		YMax: prior.YMax + shiftY - growY,
	}
}

// DecodeBoxes decodes one offset per prior.
//
// Returns:
//   - The decoded boxes, or an error wrapping ErrShapeMismatch when the number of offsets does
//     not match the number of priors.
func DecodeBoxes[T common.Float](priors PriorBoxes[T], offsets []common.NormalizedBox[T]) ([]common.NormalizedBox[T], error) {
	if len(offsets) != priors.Len() || len(priors.Variances) != priors.Len() {
		return nil, errors.Wrapf(ErrShapeMismatch,
			"%d location offsets for %d priors", len(offsets), priors.Len())
	}

	decoded := make([]common.NormalizedBox[T], len(offsets))
	for i, offset := range offsets {
		decoded[i] = DecodeBox(priors.Boxes[i], priors.Variances[i], offset)
	}
	return decoded, nil
}

func exp[T common.Float](v T) T {
	if x, ok := any(v).(float32); ok {
		return T(math32.Exp(x))
	}
	return T(math.Exp(float64(v)))
}
