// Package models - label maps translating class labels to names.
package models

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detection-output/models/model"
)

// ErrDuplicateLabel is returned when a label map assigns two names to one label.
var ErrDuplicateLabel = errors.New("duplicate label in label map")

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer label produced by the model.
	Index int
	// The name used for export files.
	Name string
	// The human-readable label, empty when the label map does not carry one.
	DisplayName string
}

// OutputClassSet ties a family to its full list of labels.
type OutputClassSet struct {
	// Class set identifier.
	Style model.Family
	// Classes that are supported and mappable.
	Classes []OutputClass
	// labelToIdx for lookup by label, since labels need not be dense.
	labelToIdx map[int]int
}

// NewOutputClassSet builds a set from classes, rejecting duplicate labels.
func NewOutputClassSet(style model.Family, classes []OutputClass) (*OutputClassSet, error) {
	set := &OutputClassSet{Style: style, Classes: classes}
	if err := set.buildLabelIndex(); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *OutputClassSet) buildLabelIndex() error {
	index := make(map[int]int, len(s.Classes))
	for i, c := range s.Classes {
		if _, ok := index[c.Index]; ok {
			return errors.Wrapf(ErrDuplicateLabel, "label %d (%q)", c.Index, c.Name)
		}
		index[c.Index] = i
	}
	s.labelToIdx = index
	return nil
}

// Name returns the export name for label.
func (s *OutputClassSet) Name(label int) (string, bool) {
	if s.labelToIdx == nil {
		if err := s.buildLabelIndex(); err != nil {
			return "", false
		}
	}
	i, ok := s.labelToIdx[label]
	if !ok {
		return "", false
	}
	return s.Classes[i].Name, true
}

// Labels returns every label of the set in ascending order.
func (s *OutputClassSet) Labels() []int {
	labels := make([]int, 0, len(s.Classes))
	for _, c := range s.Classes {
		labels = append(labels, c.Index)
	}
	sort.Ints(labels)
	return labels
}

// LookupSet returns a copy of the built-in class set of family.
func LookupSet(family model.Family) (*OutputClassSet, error) {
	for _, set := range AllClassSets {
		if set.Style == family {
			return NewOutputClassSet(set.Style, append([]OutputClass(nil), set.Classes...))
		}
	}
	return nil, errors.Errorf("no built-in label set for family %q", family)
}

// COCOClasses is the 80 COCO classes plus "__background__" at label 0.
var COCOClasses = OutputClassSet{
	Style: model.ModelFamilyCOCO,
	Classes: []OutputClass{
		{Index: 0, Name: "__background__"},
		{Index: 1, Name: "person"},
		{Index: 2, Name: "bicycle"},
		{Index: 3, Name: "car"},
		{Index: 4, Name: "motorcycle"},
		{Index: 5, Name: "airplane"},
		{Index: 6, Name: "bus"},
		{Index: 7, Name: "train"},
		{Index: 8, Name: "truck"},
		{Index: 9, Name: "boat"},
		{Index: 10, Name: "traffic light"},
		{Index: 11, Name: "fire hydrant"},
		{Index: 12, Name: "stop sign"},
		{Index: 13, Name: "parking meter"},
		{Index: 14, Name: "bench"},
		{Index: 15, Name: "bird"},
		{Index: 16, Name: "cat"},
		{Index: 17, Name: "dog"},
		{Index: 18, Name: "horse"},
		{Index: 19, Name: "sheep"},
		{Index: 20, Name: "cow"},
		{Index: 21, Name: "elephant"},
		{Index: 22, Name: "bear"},
		{Index: 23, Name: "zebra"},
		{Index: 24, Name: "giraffe"},
		{Index: 25, Name: "backpack"},
		{Index: 26, Name: "umbrella"},
		{Index: 27, Name: "handbag"},
		{Index: 28, Name: "tie"},
		{Index: 29, Name: "suitcase"},
		{Index: 30, Name: "frisbee"},
		{Index: 31, Name: "skis"},
		{Index: 32, Name: "snowboard"},
		{Index: 33, Name: "sports ball"},
		{Index: 34, Name: "kite"},
		{Index: 35, Name: "baseball bat"},
		{Index: 36, Name: "baseball glove"},
		{Index: 37, Name: "skateboard"},
		{Index: 38, Name: "surfboard"},
		{Index: 39, Name: "tennis racket"},
		{Index: 40, Name: "bottle"},
		{Index: 41, Name: "wine glass"},
		{Index: 42, Name: "cup"},
		{Index: 43, Name: "fork"},
		{Index: 44, Name: "knife"},
		{Index: 45, Name: "spoon"},
		{Index: 46, Name: "bowl"},
		{Index: 47, Name: "banana"},
		{Index: 48, Name: "apple"},
		{Index: 49, Name: "sandwich"},
		{Index: 50, Name: "orange"},
		{Index: 51, Name: "broccoli"},
		{Index: 52, Name: "carrot"},
		{Index: 53, Name: "hot dog"},
		{Index: 54, Name: "pizza"},
		{Index: 55, Name: "donut"},
		{Index: 56, Name: "cake"},
		{Index: 57, Name: "chair"},
		{Index: 58, Name: "couch"},
		{Index: 59, Name: "potted plant"},
		{Index: 60, Name: "bed"},
		{Index: 61, Name: "dining table"},
		{Index: 62, Name: "toilet"},
		{Index: 63, Name: "tv"},
		{Index: 64, Name: "laptop"},
		{Index: 65, Name: "mouse"},
		{Index: 66, Name: "remote"},
		{Index: 67, Name: "keyboard"},
		{Index: 68, Name: "cell phone"},
		{Index: 69, Name: "microwave"},
		{Index: 70, Name: "oven"},
		{Index: 71, Name: "toaster"},
		{Index: 72, Name: "sink"},
		{Index: 73, Name: "refrigerator"},
		{Index: 74, Name: "book"},
		{Index: 75, Name: "clock"},
		{Index: 76, Name: "vase"},
		{Index: 77, Name: "scissors"},
		{Index: 78, Name: "teddy bear"},
		{Index: 79, Name: "hair drier"},
		{Index: 80, Name: "toothbrush"},
	},
}

// PascalVOCClasses is the 20 Pascal VOC classes plus "__background__" at label 0.
var PascalVOCClasses = OutputClassSet{
	Style: model.ModelFamilyVOC,
	Classes: []OutputClass{
		{Index: 0, Name: "__background__"},
		{Index: 1, Name: "aeroplane"},
		{Index: 2, Name: "bicycle"},
		{Index: 3, Name: "bird"},
		{Index: 4, Name: "boat"},
		{Index: 5, Name: "bottle"},
		{Index: 6, Name: "bus"},
		{Index: 7, Name: "car"},
		{Index: 8, Name: "cat"},
		{Index: 9, Name: "chair"},
		{Index: 10, Name: "cow"},
		{Index: 11, Name: "diningtable"},
		{Index: 12, Name: "dog"},
		{Index: 13, Name: "horse"},
		{Index: 14, Name: "motorbike"},
		{Index: 15, Name: "person"},
		{Index: 16, Name: "pottedplant"},
		{Index: 17, Name: "sheep"},
		{Index: 18, Name: "sofa"},
		{Index: 19, Name: "train"},
		{Index: 20, Name: "tvmonitor"},
	},
}

// AllClassSets collects every built-in OutputClassSet in one place.
var AllClassSets = []OutputClassSet{
	COCOClasses,
	PascalVOCClasses,
}
