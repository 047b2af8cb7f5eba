package inference

import (
	"os"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detection-output/common"
	"github.com/nvr-ai/go-detection-output/models/postprocess"
	"github.com/nvr-ai/go-detection-output/models/ssd"
)

// ErrNoDetections is returned when a batch produced no detections and therefore no output
// tensor.
var ErrNoDetections = errors.New("no detections")

// ReadNpy loads a tensor from a NumPy .npy file.
func ReadNpy(path string) (*tensor.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open tensor file")
	}
	defer f.Close()

	t := new(tensor.Dense)
	if err := t.ReadNpy(f); err != nil {
		return nil, errors.Wrapf(err, "read npy %s", path)
	}
	return t, nil
}

// WriteNpy stores a tensor as a NumPy .npy file, replacing any existing file.
func WriteNpy(path string, t *tensor.Dense) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create tensor file")
	}
	if err := t.WriteNpy(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "write npy %s", path)
	}
	return errors.Wrap(f.Close(), "close tensor file")
}

// NewInputs views the three network output tensors as layer inputs.
//
// The first axis of the location and confidence tensors is the batch. The prior tensor may
// have any shape; when it is 3-D its second axis must hold the boxes and the variances.
//
// Arguments:
//   - loc: Location tensor [num_images, num_priors*loc_classes*4].
//   - conf: Confidence tensor [num_images, num_priors*num_classes].
//   - prior: Prior tensor [1, 2, num_priors*4].
//
// Returns:
//   - Inputs sharing the tensors' backing data, or an error wrapping ErrUnsupportedDtype or
//     ssd.ErrShapeMismatch.
func NewInputs[T common.Float](loc, conf, prior *tensor.Dense) (ssd.Inputs[T], error) {
	locData, err := backing[T]("location", loc)
	if err != nil {
		return ssd.Inputs[T]{}, err
	}
	confData, err := backing[T]("confidence", conf)
	if err != nil {
		return ssd.Inputs[T]{}, err
	}
	priorData, err := backing[T]("prior", prior)
	if err != nil {
		return ssd.Inputs[T]{}, err
	}

	locShape, confShape, priorShape := loc.Shape(), conf.Shape(), prior.Shape()
	if len(locShape) == 0 || len(confShape) == 0 {
		return ssd.Inputs[T]{}, errors.Wrap(ssd.ErrShapeMismatch, "location and confidence tensors need a batch axis")
	}
	if locShape[0] != confShape[0] {
		return ssd.Inputs[T]{}, errors.Wrapf(ssd.ErrShapeMismatch,
			"location batch %d != confidence batch %d", locShape[0], confShape[0])
	}
	if len(priorShape) == 3 && priorShape[1] != 2 {
		return ssd.Inputs[T]{}, errors.Wrapf(ssd.ErrShapeMismatch,
			"prior tensor %v must hold boxes and variances on axis 1", priorShape)
	}

	return ssd.Inputs[T]{
		NumImages: locShape[0],
		Loc:       locData,
		Conf:      confData,
		Prior:     priorData,
	}, nil
}

// OutputTensor packs the detections into a [1, 1, num_detections, 7] tensor.
//
// Returns:
//   - The tensor, or ErrNoDetections when the batch kept nothing.
func OutputTensor[T common.Float](out *ssd.Output[T]) (*tensor.Dense, error) {
	if out == nil || len(out.Detections) == 0 {
		return nil, ErrNoDetections
	}
	return tensor.New(
		tensor.WithShape(1, 1, len(out.Detections), postprocess.RowSize),
		tensor.WithBacking(out.Rows()),
	), nil
}

func backing[T common.Float](name string, t *tensor.Dense) ([]T, error) {
	if t == nil {
		return nil, errors.Errorf("%s tensor is nil", name)
	}
	data, ok := t.Data().([]T)
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedDtype, "%s tensor has dtype %v", name, t.Dtype())
	}
	return data, nil
}
