package ssd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detection-output/common"
)

func TestGetConfidenceScores(t *testing.T) {
	// 2 images, 3 priors, 2 classes; value = image*100 + prior*10 + class.
	var data []float64
	for i := 0; i < 2; i++ {
		for p := 0; p < 3; p++ {
			for c := 0; c < 2; c++ {
				data = append(data, float64(i*100+p*10+c))
			}
		}
	}

	scores := GetConfidenceScores(data, 2, 3, 2)
	require.Len(t, scores, 2)
	for i := 0; i < 2; i++ {
		require.Len(t, scores[i], 2)
		for c := 0; c < 2; c++ {
			require.Len(t, scores[i][c], 3)
			for p := 0; p < 3; p++ {
				assert.Equal(t, float64(i*100+p*10+c), scores[i][c][p])
			}
		}
	}
}

func TestGetLocPredictions(t *testing.T) {
	tests := []struct {
		name          string
		numLocClasses int
		shareLocation bool
		labels        []LocLabel
	}{
		{name: "shared", numLocClasses: 1, shareLocation: true, labels: []LocLabel{SharedLocLabel}},
		{name: "per class", numLocClasses: 3, shareLocation: false, labels: []LocLabel{0, 1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const numImages, numPriors = 2, 2
			// Each 4-tuple is filled with image*1000 + prior*100 + class*10 + coordinate.
			var data []float32
			for i := 0; i < numImages; i++ {
				for p := 0; p < numPriors; p++ {
					for c := 0; c < tt.numLocClasses; c++ {
						for k := 0; k < 4; k++ {
							data = append(data, float32(i*1000+p*100+c*10+k))
						}
					}
				}
			}

			preds := GetLocPredictions(data, numImages, numPriors, tt.numLocClasses, tt.shareLocation)
			require.Len(t, preds, numImages)
			for i, image := range preds {
				require.Len(t, image, len(tt.labels))
				for c, label := range tt.labels {
					offsets, ok := image[label]
					require.True(t, ok, "label %d", label)
					require.Len(t, offsets, numPriors)
					for p, offset := range offsets {
						base := float32(i*1000 + p*100 + c*10)
						assert.Equal(t, common.NormalizedBox[float32]{
							XMin: base, YMin: base + 1, XMax: base + 2, YMax: base + 3,
						}, offset)
					}
				}
			}
		})
	}
}
