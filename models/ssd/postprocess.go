package ssd

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-detection-output/common"
	"github.com/nvr-ai/go-detection-output/models/model"
	"github.com/nvr-ai/go-detection-output/models/postprocess"
	"github.com/nvr-ai/go-detection-output/profiler"
)

var (
	// ErrShapeMismatch is returned when the input tensors disagree with the layer parameters
	// or with each other.
	ErrShapeMismatch = errors.New("input shape mismatch")
	// ErrMissingPredictions is returned when a class has no matching location or confidence
	// predictions.
	ErrMissingPredictions = errors.New("missing predictions")
)

// Stage names recorded on an attached profiler.
const (
	StageDecode = "decode"
	StageNMS    = "nms"
	StageEmit   = "emit"

	// MetricDetections is the number of rows emitted per batch.
	MetricDetections = "detections"
)

// Inputs are the flat network outputs for one batch.
type Inputs[T common.Float] struct {
	// NumImages is the batch size shared by Loc and Conf.
	NumImages int
	// Loc holds NumImages*numPriors*locClasses*4 encoded offsets.
	Loc []T
	// Conf holds NumImages*numPriors*numClasses scores.
	Conf []T
	// Prior holds numPriors*4 boxes followed by numPriors*4 variances.
	Prior []T
}

// Output is the detection table of one batch.
type Output[T common.Float] struct {
	NumImages  int
	Detections []postprocess.Detection[T]
}

// Rows flattens the detections into RowSize values each.
func (o *Output[T]) Rows() []T {
	rows := make([]T, 0, len(o.Detections)*postprocess.RowSize)
	for _, d := range o.Detections {
		row := d.Row()
		rows = append(rows, row[:]...)
	}
	return rows
}

// Options configures a DetectionOutput.
type Options struct {
	// Workers bounds the number of images processed concurrently (default: 1).
	Workers int
	// Logger receives per-batch summaries at debug level (default: no-op).
	Logger *zap.Logger
	// Profiler records stage timings and detection counts when set.
	Profiler *profiler.Profiler
}

// DetectionOutput turns SSD location, confidence and prior tensors into final detections.
// It holds no per-batch state and is safe for concurrent use.
type DetectionOutput[T common.Float] struct {
	params   model.Params
	nms      postprocess.NMSConfig
	workers  int
	logger   *zap.Logger
	profiler *profiler.Profiler
}

// New creates a detection-output layer.
//
// Arguments:
//   - params: The layer parameters, validated here.
//   - opts: Worker count, logger and profiler; zero values take the defaults.
//
// Returns:
//   - The layer, or an error wrapping model.ErrInvalidParams.
//
// @example
//
//	layer, err := ssd.New[float32](params, ssd.Options{Workers: 4, Logger: logger})
//	if err != nil {
//		return err
//	}
//	out, err := layer.Forward(ctx, inputs, nil)
func New[T common.Float](params model.Params, opts Options) (*DetectionOutput[T], error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &DetectionOutput[T]{
		params:   params,
		nms:      *params.NMS,
		workers:  opts.Workers,
		logger:   opts.Logger,
		profiler: opts.Profiler,
	}, nil
}

// Params returns the layer parameters.
func (d *DetectionOutput[T]) Params() model.Params {
	return d.params
}

// imageResult is the per-image outcome of decoding and suppression.
type imageResult[T common.Float] struct {
	decoded map[LocLabel][]common.NormalizedBox[T]
	kept    [][]int
	numKept int
}

// Forward runs the layer over one batch.
//
// Images are processed concurrently, bounded by the worker count. Detections are emitted
// image by image, class by class in ascending label order, and within a class in descending
// score order. Boxes are clipped to [0, 1]. When sink is non-nil it receives every image's
// detections in that order.
//
// Arguments:
//   - ctx: Cancels the batch.
//   - in: The network outputs.
//   - sink: Optional export side channel.
//
// Returns:
//   - The detection table, or an error. No output is returned on error.
func (d *DetectionOutput[T]) Forward(ctx context.Context, in Inputs[T], sink Sink[T]) (*Output[T], error) {
	numPriors, err := d.checkShapes(in)
	if err != nil {
		return nil, err
	}

	priors, err := GetPriorBoxes(in.Prior, numPriors)
	if err != nil {
		return nil, err
	}
	locPreds := GetLocPredictions(in.Loc, in.NumImages, numPriors, d.params.LocClasses(), d.params.ShareLocation)
	confScores := GetConfidenceScores(in.Conf, in.NumImages, numPriors, d.params.NumClasses)

	results := make([]imageResult[T], in.NumImages)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i := range results {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := d.processImage(i, priors, locPreds[i], confScores[i])
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	numKept := 0
	for _, r := range results {
		numKept += r.numKept
	}

	done := d.track(StageEmit)
	out := &Output[T]{
		NumImages:  in.NumImages,
		Detections: make([]postprocess.Detection[T], 0, numKept),
	}
	for i, r := range results {
		start := len(out.Detections)
		for label, indices := range r.kept {
			boxes := r.decoded[d.locLabel(label)]
			scores := confScores[i][label]
			for _, idx := range indices {
				out.Detections = append(out.Detections, postprocess.Detection[T]{
					ImageID: i,
					Label:   label,
					Score:   scores[idx],
					Box:     boxes[idx].Clip(),
				})
			}
		}
		if sink != nil {
			if err := sink.WriteImage(i, out.Detections[start:]); err != nil {
				return nil, errors.Wrapf(err, "export image %d", i)
			}
		}
	}
	done()

	if d.profiler != nil {
		d.profiler.RecordMetric(MetricDetections, float64(numKept))
	}
	d.logger.Debug("detection output",
		zap.Int("images", in.NumImages),
		zap.Int("priors", numPriors),
		zap.Int("kept", numKept),
	)

	return out, nil
}

// checkShapes validates the input sizes against the parameters and returns the number of priors.
func (d *DetectionOutput[T]) checkShapes(in Inputs[T]) (int, error) {
	if in.NumImages < 0 {
		return 0, errors.Wrapf(ErrShapeMismatch, "negative number of images %d", in.NumImages)
	}
	if len(in.Prior) == 0 || len(in.Prior)%8 != 0 {
		return 0, errors.Wrapf(ErrShapeMismatch,
			"prior data has %d values, want a positive multiple of 8", len(in.Prior))
	}
	numPriors := len(in.Prior) / 8

	if want := in.NumImages * numPriors * d.params.LocClasses() * 4; len(in.Loc) != want {
		return 0, errors.Wrapf(ErrShapeMismatch,
			"location data has %d values, want %d (%d images, %d priors, %d location classes)",
			len(in.Loc), want, in.NumImages, numPriors, d.params.LocClasses())
	}
	if want := in.NumImages * numPriors * d.params.NumClasses; len(in.Conf) != want {
		return 0, errors.Wrapf(ErrShapeMismatch,
			"confidence data has %d values, want %d (%d images, %d priors, %d classes)",
			len(in.Conf), want, in.NumImages, numPriors, d.params.NumClasses)
	}
	return numPriors, nil
}

// processImage decodes the location sets of one image and suppresses every non-background class.
func (d *DetectionOutput[T]) processImage(
	imageID int,
	priors PriorBoxes[T],
	locPreds LocPredictions[T],
	scores [][]T,
) (imageResult[T], error) {
	done := d.track(StageDecode)
	decoded := make(map[LocLabel][]common.NormalizedBox[T], d.params.LocClasses())
	for c := 0; c < d.params.LocClasses(); c++ {
		label := d.locLabel(c)
		if !d.params.ShareLocation && d.params.IsBackground(c) {
			continue
		}
		offsets, ok := locPreds[label]
		if !ok {
			return imageResult[T]{}, errors.Wrapf(ErrMissingPredictions,
				"image %d: no location predictions for label %d", imageID, label)
		}
		boxes, err := DecodeBoxes(priors, offsets)
		if err != nil {
			return imageResult[T]{}, errors.Wrapf(err, "image %d", imageID)
		}
		decoded[label] = boxes
	}
	done()

	done = d.track(StageNMS)
	defer done()

	result := imageResult[T]{
		decoded: decoded,
		kept:    make([][]int, d.params.NumClasses),
	}
	for c := 0; c < d.params.NumClasses; c++ {
		if d.params.IsBackground(c) {
			continue
		}
		if c >= len(scores) {
			return imageResult[T]{}, errors.Wrapf(ErrMissingPredictions,
				"image %d: no confidence scores for label %d", imageID, c)
		}
		boxes, ok := decoded[d.locLabel(c)]
		if !ok {
			return imageResult[T]{}, errors.Wrapf(ErrMissingPredictions,
				"image %d: no decoded boxes for label %d", imageID, c)
		}
		result.kept[c] = postprocess.ApplyNMS(boxes, scores[c], &d.nms)
		result.numKept += len(result.kept[c])
	}
	return result, nil
}

func (d *DetectionOutput[T]) locLabel(class int) LocLabel {
	if d.params.ShareLocation {
		return SharedLocLabel
	}
	return LocLabel(class)
}

func (d *DetectionOutput[T]) track(stage string) func() {
	if d.profiler == nil {
		return func() {}
	}
	return d.profiler.StartOperation(stage)
}
