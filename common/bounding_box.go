// Package common - normalized bounding box geometry shared by the decoder, NMS and export.
package common

import (
	"fmt"
)

// Float is the set of tensor element types the detection pipeline runs on.
type Float interface {
	~float32 | ~float64
}

// NormalizedBox is a rectangle in normalized [0, 1] image space.
//
// The same type carries encoded location offsets before decoding, in which case the four
// fields hold the raw deltas in (xmin, ymin, xmax, ymax) order.
type NormalizedBox[T Float] struct {
	XMin, YMin, XMax, YMax T
}

func (b NormalizedBox[T]) String() string {
	return fmt.Sprintf("(%f, %f), (%f, %f)", float64(b.XMin), float64(b.YMin), float64(b.XMax), float64(b.YMax))
}

// Width returns the horizontal extent of the box. Inverted boxes have negative width.
func (b NormalizedBox[T]) Width() T {
	return b.XMax - b.XMin
}

// Height returns the vertical extent of the box. Inverted boxes have negative height.
func (b NormalizedBox[T]) Height() T {
	return b.YMax - b.YMin
}

// Center returns the center point of the box.
func (b NormalizedBox[T]) Center() (x, y T) {
	return (b.XMin + b.XMax) / 2, (b.YMin + b.YMax) / 2
}

// Area returns the area of the box, or 0 when the box is inverted on either axis.
//
// Returns:
//   - The area in normalized units. Degenerate (zero-width or zero-height) boxes yield 0.
//
// @example
// box := NormalizedBox[float32]{XMin: 0.1, YMin: 0.1, XMax: 0.3, YMax: 0.5}
// area := box.Area() // 0.08
func (b NormalizedBox[T]) Area() T {
	if b.XMax < b.XMin || b.YMax < b.YMin {
		return 0
	}
	return b.Width() * b.Height()
}

// Intersect returns the overlapping region of b and other.
//
// When the boxes do not overlap the zero box is returned, whose area is 0. Boxes that only
// touch along an edge produce a zero-area intersection.
func (b NormalizedBox[T]) Intersect(other NormalizedBox[T]) NormalizedBox[T] {
	if other.XMin > b.XMax || other.XMax < b.XMin ||
		other.YMin > b.YMax || other.YMax < b.YMin {
		return NormalizedBox[T]{}
	}
	return NormalizedBox[T]{
		XMin: max(b.XMin, other.XMin),
		YMin: max(b.YMin, other.YMin),
		XMax: min(b.XMax, other.XMax),
		YMax: min(b.YMax, other.YMax),
	}
}

// IoU calculates the Intersection over Union (Jaccard overlap) between two boxes.
//
// This metric is used by Non-Maximum Suppression to decide whether a candidate duplicates a
// box that has already been kept.
//
// Arguments:
//   - other: The other box to compare against.
//
// Returns:
//   - A value in [0, 1]. The result is 0 when the union area is 0, so two identical
//     zero-area boxes do not suppress each other.
//
// @example
// a := NormalizedBox[float64]{XMin: 0, YMin: 0, XMax: 0.5, YMax: 0.5}
// b := NormalizedBox[float64]{XMin: 0.25, YMin: 0.25, XMax: 0.75, YMax: 0.75}
// iou := a.IoU(b) // 0.0625 / 0.4375 ≈ 0.142857
func (b NormalizedBox[T]) IoU(other NormalizedBox[T]) T {
	inter := b.Intersect(other).Area()
	if inter <= 0 {
		return 0
	}
	union := b.Area() + other.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Clip clamps every coordinate independently into [0, 1]. It does not rescale the box.
func (b NormalizedBox[T]) Clip() NormalizedBox[T] {
	return NormalizedBox[T]{
		XMin: clamp01(b.XMin),
		YMin: clamp01(b.YMin),
		XMax: clamp01(b.XMax),
		YMax: clamp01(b.YMax),
	}
}

// Scale converts a normalized box to pixel space for an image of the given size.
func (b NormalizedBox[T]) Scale(height, width int) NormalizedBox[T] {
	w, h := T(width), T(height)
	return NormalizedBox[T]{
		XMin: b.XMin * w,
		YMin: b.YMin * h,
		XMax: b.XMax * w,
		YMax: b.YMax * h,
	}
}

func clamp01[T Float](v T) T {
	return max(min(v, 1), 0)
}
