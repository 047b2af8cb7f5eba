// Package postprocess - Postprocessing utilities for detection outputs.
package postprocess

import (
	"fmt"

	"github.com/nvr-ai/go-detection-output/common"
)

// RowSize is the number of values in one emitted detection row:
// [image_id, label, confidence, xmin, ymin, xmax, ymax].
const RowSize = 7

// Detection represents a single detection result.
type Detection[T common.Float] struct {
	// The index of the image within the batch.
	ImageID int
	// The class label of the detection.
	Label int
	// The raw confidence score produced by the network.
	Score T
	// The box in normalized [0, 1] coordinates.
	Box common.NormalizedBox[T]
}

// Row flattens the detection into the 7-value output layout.
func (d Detection[T]) Row() [RowSize]T {
	return [RowSize]T{
		T(d.ImageID),
		T(d.Label),
		d.Score,
		d.Box.XMin,
		d.Box.YMin,
		d.Box.XMax,
		d.Box.YMax,
	}
}

func (d Detection[T]) String() string {
	return fmt.Sprintf("Image %d label %d (confidence %f): %s",
		d.ImageID, d.Label, float64(d.Score), d.Box)
}
