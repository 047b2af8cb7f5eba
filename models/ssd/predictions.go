package ssd

import (
	"github.com/nvr-ai/go-detection-output/common"
)

// LocLabel identifies a set of location predictions. It is a separate namespace from class
// labels: with shared location every class reads the single SharedLocLabel set.
type LocLabel int

// SharedLocLabel is the location label used when boxes are shared across classes.
const SharedLocLabel LocLabel = -1

// LocPredictions maps a location label to one encoded offset per prior.
type LocPredictions[T common.Float] map[LocLabel][]common.NormalizedBox[T]

// GetLocPredictions reshapes a flat location tensor into per-image offset sets.
//
// Within an image the data is prior-major: for each prior, numLocClasses groups of four
// values follow each other.
//
// Arguments:
//   - data: numImages*numPriors*numLocClasses*4 values.
//   - numImages: Number of images in the batch.
//   - numPriors: Number of priors per image.
//   - numLocClasses: 1 when shareLocation is set, otherwise the number of classes.
//   - shareLocation: Whether the single set is stored under SharedLocLabel.
//
// Returns:
//   - One LocPredictions per image.
func GetLocPredictions[T common.Float](data []T, numImages, numPriors, numLocClasses int, shareLocation bool) []LocPredictions[T] {
	perImage := numPriors * numLocClasses * 4
	all := make([]LocPredictions[T], numImages)
	for i := 0; i < numImages; i++ {
		image := data[i*perImage : (i+1)*perImage]
		preds := make(LocPredictions[T], numLocClasses)
		for c := 0; c < numLocClasses; c++ {
			label := LocLabel(c)
			if shareLocation {
				label = SharedLocLabel
			}
			offsets := make([]common.NormalizedBox[T], numPriors)
			for p := 0; p < numPriors; p++ {
				v := image[(p*numLocClasses+c)*4:]
				offsets[p] = common.NormalizedBox[T]{XMin: v[0], YMin: v[1], XMax: v[2], YMax: v[3]}
			}
			preds[label] = offsets
		}
		all[i] = preds
	}
	return all
}

// GetConfidenceScores reshapes a flat confidence tensor into per-image, per-class score
// vectors. Within an image the data is prior-major and interleaved by class. The scores are
// copied unchanged.
//
// Returns:
//   - scores[image][class][prior].
func GetConfidenceScores[T common.Float](data []T, numImages, numPriors, numClasses int) [][][]T {
	perImage := numPriors * numClasses
	all := make([][][]T, numImages)
	for i := 0; i < numImages; i++ {
		image := data[i*perImage : (i+1)*perImage]
		scores := make([][]T, numClasses)
		for c := range scores {
			scores[c] = make([]T, numPriors)
		}
		for p := 0; p < numPriors; p++ {
			for c := 0; c < numClasses; c++ {
				scores[c][p] = image[p*numClasses+c]
			}
		}
		all[i] = scores
	}
	return all
}
