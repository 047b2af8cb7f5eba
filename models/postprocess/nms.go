// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detection-output/common"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// Overlap threshold for suppression. A candidate is dropped when its IoU with a kept box
	// is strictly greater than this value.
	IoUThreshold float64 `json:"nms_threshold" yaml:"nms_threshold"`
	// Maximum number of candidates considered per class. Zero or negative means unbounded.
	TopK int `json:"top_k" yaml:"top_k"`
	// Number of goroutines used to sweep suppressed candidates. Values below 2 run serially.
	NumWorkers int `json:"num_workers" yaml:"num_workers"`
}

// Validate checks the configuration for values that can never produce a sensible result.
func (c *NMSConfig) Validate() error {
	if c == nil {
		return errors.New("nms config is nil")
	}
	if c.IoUThreshold < 0 {
		return errors.Errorf("nms_threshold must be non negative, got %v", c.IoUThreshold)
	}
	return nil
}

// minParallelSweep is the smallest number of remaining candidates worth splitting across
// goroutines.
const minParallelSweep = 256

// ApplyNMS performs greedy Non-Maximum Suppression over the boxes of a single class.
//
// Candidates are ordered by descending score; equal scores keep their original order. When
// TopK is positive only the first TopK candidates take part. Walking that list, each kept box
// suppresses every later candidate whose IoU with it exceeds the threshold.
//
// Arguments:
//   - boxes: Decoded boxes, one per prior.
//   - scores: Confidence scores aligned with boxes.
//   - config: NMS configuration.
//
// Returns:
//   - Indices into boxes of the kept detections, in selection (descending score) order.
//     Returns nil when no boxes are provided or when boxes and scores differ in length.
func ApplyNMS[T common.Float](boxes []common.NormalizedBox[T], scores []T, config *NMSConfig) []int {
	if len(boxes) == 0 || len(boxes) != len(scores) {
		return nil
	}

	order := SortByScore(scores, config.TopK)
	threshold := T(config.IoUThreshold)

	suppressed := make([]bool, len(order))
	kept := make([]int, 0, len(order))

	for i, idx := range order {
		if suppressed[i] {
			continue
		}
		kept = append(kept, idx)

		anchor := boxes[idx]
		rest := order[i+1:]
		if config.NumWorkers > 1 && len(rest) >= minParallelSweep {
			sweepParallel(anchor, boxes, rest, suppressed[i+1:], threshold, config.NumWorkers)
			continue
		}
		for j, other := range rest {
			if suppressed[i+1+j] {
				continue
			}
			if anchor.IoU(boxes[other]) > threshold {
				suppressed[i+1+j] = true
			}
		}
	}

	return kept
}

// sweepParallel marks the candidates in rest that overlap anchor. Each worker owns a
// contiguous block of suppressed, so no two goroutines write the same element.
func sweepParallel[T common.Float](
	anchor common.NormalizedBox[T],
	boxes []common.NormalizedBox[T],
	rest []int,
	suppressed []bool,
	threshold T,
	numWorkers int,
) {
	chunk := (len(rest) + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for start := 0; start < len(rest); start += chunk {
		end := min(start+chunk, len(rest))
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for j := start; j < end; j++ {
				if suppressed[j] {
					continue
				}
				if anchor.IoU(boxes[rest[j]]) > threshold {
					suppressed[j] = true
				}
			}
		}(start, end)
	}
	wg.Wait()
}

// SortByScore returns candidate indices ordered by descending score, ties broken by ascending
// index, truncated to topK entries when topK is positive.
func SortByScore[T common.Float](scores []T, topK int) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	if topK > 0 && topK < len(order) {
		order = order[:topK]
	}
	return order
}
