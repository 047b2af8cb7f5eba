// Package model - Parameters of the SSD detection-output layer.
package model

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detection-output/models/postprocess"
)

// Family is the family of label sets a model was trained on.
type Family string

const (
	// ModelFamilyCOCO is the COCO model family.
	ModelFamilyCOCO Family = "coco"
	// ModelFamilyVOC is the Pascal VOC model family.
	ModelFamilyVOC Family = "voc"
)

// NoBackground is the background label meaning that every class is a real object class.
const NoBackground = -1

// ErrInvalidParams is returned when layer parameters cannot describe a working layer.
var ErrInvalidParams = errors.New("invalid detection output parameters")

// Params configures the detection-output layer.
type Params struct {
	// NumClasses is the number of confidence classes, background included.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
	// ShareLocation is true when one set of box offsets is shared by all classes.
	ShareLocation bool `json:"share_location" yaml:"share_location"`
	// BackgroundLabelID is the class label that never produces detections, or NoBackground.
	BackgroundLabelID int `json:"background_label_id" yaml:"background_label_id"`
	// Family names the label set of the model. Export falls back to it when neither a label map
	// file nor a label map family is configured.
	Family Family `json:"family" yaml:"family"`
	// NMS configures the per-class suppression.
	NMS *postprocess.NMSConfig `json:"nms" yaml:"nms"`
}

// LocClasses returns the number of location label sets the network predicts.
func (p Params) LocClasses() int {
	if p.ShareLocation {
		return 1
	}
	return p.NumClasses
}

// IsBackground reports whether label is the configured background class.
func (p Params) IsBackground(label int) bool {
	return p.BackgroundLabelID != NoBackground && label == p.BackgroundLabelID
}

// Validate checks the parameters at setup time.
//
// Returns:
//   - An error wrapping ErrInvalidParams describing the first problem found, nil otherwise.
func (p Params) Validate() error {
	if p.NumClasses <= 0 {
		return errors.Wrapf(ErrInvalidParams, "num_classes must be positive, got %d", p.NumClasses)
	}
	if p.BackgroundLabelID < NoBackground || p.BackgroundLabelID >= p.NumClasses {
		return errors.Wrapf(ErrInvalidParams, "background_label_id %d out of range [-1, %d)",
			p.BackgroundLabelID, p.NumClasses)
	}
	if err := p.NMS.Validate(); err != nil {
		return errors.Wrap(ErrInvalidParams, err.Error())
	}
	switch p.Family {
	case "", ModelFamilyCOCO, ModelFamilyVOC:
	default:
		return errors.Wrapf(ErrInvalidParams, "unknown model family %q", p.Family)
	}
	return nil
}
