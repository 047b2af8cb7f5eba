package ssd

import (
	"github.com/nvr-ai/go-detection-output/common"
	"github.com/nvr-ai/go-detection-output/models/postprocess"
)

// Sink receives the detections of each image as they are emitted.
//
// WriteImage is called once per image, in image order, including images without detections.
// The detections slice belongs to the Output being built and must not be modified. A non-nil
// error aborts the batch.
type Sink[T common.Float] interface {
	WriteImage(imageID int, detections []postprocess.Detection[T]) error
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc[T common.Float] func(imageID int, detections []postprocess.Detection[T]) error

// WriteImage calls f.
func (f SinkFunc[T]) WriteImage(imageID int, detections []postprocess.Detection[T]) error {
	return f(imageID, detections)
}
