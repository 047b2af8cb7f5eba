// Package export - writes detections to disk in evaluation formats.
package export

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detection-output/common"
	"github.com/nvr-ai/go-detection-output/models"
	"github.com/nvr-ai/go-detection-output/models/model"
	"github.com/nvr-ai/go-detection-output/models/postprocess"
	"github.com/nvr-ai/go-detection-output/util"
)

// FormatVOC is the Pascal VOC per-class results format.
const FormatVOC = "VOC"

var (
	// ErrNameListExhausted is returned when more images carry detections than the name/size
	// file lists.
	ErrNameListExhausted = errors.New("image name list exhausted")
	// ErrUnknownLabel is returned for a label that the label map does not name.
	ErrUnknownLabel = errors.New("label not in label map")
)

// VOCConfig configures a VOCWriter.
type VOCConfig struct {
	// OutputDirectory receives one results file per class.
	OutputDirectory string
	// OutputNamePrefix is prepended to every class file name.
	OutputNamePrefix string
	// BackgroundLabelID is skipped when resetting files, or model.NoBackground.
	BackgroundLabelID int
}

// VOCWriter appends detections to per-class Pascal VOC results files.
//
// Each file is named <prefix><class name>.txt and holds one line per detection:
//
//	<image name> <score> <xmin> <ymin> <xmax> <ymax>
//
// with pixel coordinates. Images are named from the name/size list in call order; the name
// counter advances once per image, with or without detections. Calls are serialized.
type VOCWriter[T common.Float] struct {
	config VOCConfig
	labels *models.OutputClassSet
	images []util.ImageSize
	logger *zap.Logger

	mu        sync.Mutex
	nameCount int
}

// NewVOCWriter creates a writer. It does not touch the filesystem; call ResetFiles once before
// the first batch.
func NewVOCWriter[T common.Float](
	config VOCConfig,
	labels *models.OutputClassSet,
	images []util.ImageSize,
	logger *zap.Logger,
) *VOCWriter[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VOCWriter[T]{
		config: config,
		labels: labels,
		images: images,
		logger: logger,
	}
}

// Path returns the results file of the class called name.
func (w *VOCWriter[T]) Path(name string) string {
	return filepath.Join(w.config.OutputDirectory, w.config.OutputNamePrefix+name+".txt")
}

// ResetFiles truncates the results file of every non-background label in the label map and
// rewinds the image name counter.
func (w *VOCWriter[T]) ResetFiles() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, label := range w.labels.Labels() {
		if w.config.BackgroundLabelID != model.NoBackground && label == w.config.BackgroundLabelID {
			continue
		}
		name, _ := w.labels.Name(label)
		f, err := os.Create(w.Path(name))
		if err != nil {
			return errors.Wrapf(err, "reset results file for label %d", label)
		}
		if err := f.Close(); err != nil {
			return errors.Wrapf(err, "reset results file for label %d", label)
		}
	}
	w.nameCount = 0
	return nil
}

// NameCount returns the number of images written so far.
func (w *VOCWriter[T]) NameCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nameCount
}

// WriteImage appends the detections of one image. Detections of the same label must be
// contiguous, as the detection output layer emits them.
func (w *VOCWriter[T]) WriteImage(imageID int, detections []postprocess.Detection[T]) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for start := 0; start < len(detections); {
		end := start + 1
		for end < len(detections) && detections[end].Label == detections[start].Label {
			end++
		}
		if err := w.writeClass(detections[start:end]); err != nil {
			return errors.Wrapf(err, "image %d", imageID)
		}
		start = end
	}

	w.nameCount++
	return nil
}

func (w *VOCWriter[T]) writeClass(detections []postprocess.Detection[T]) error {
	label := detections[0].Label
	name, ok := w.labels.Name(label)
	if !ok {
		return errors.Wrapf(ErrUnknownLabel, "label %d", label)
	}
	if w.nameCount >= len(w.images) {
		return errors.Wrapf(ErrNameListExhausted, "%d names", len(w.images))
	}
	image := w.images[w.nameCount]

	f, err := os.OpenFile(w.Path(name), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open results file for %q", name)
	}

	buf := bufio.NewWriter(f)
	for _, d := range detections {
		box := d.Box.Clip().Scale(image.Height, image.Width)
		buf.WriteString(image.Name)
		buf.WriteByte(' ')
		buf.WriteString(strconv.FormatFloat(float64(d.Score), 'g', 6, 64))
		for _, v := range [4]T{box.XMin, box.YMin, box.XMax, box.YMax} {
			buf.WriteByte(' ')
			buf.WriteString(strconv.Itoa(int(v)))
		}
		buf.WriteByte('\n')
	}
	if err := buf.Flush(); err != nil {
		f.Close()
		return errors.Wrapf(err, "write results for %q", name)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close results file for %q", name)
	}

	w.logger.Debug("exported detections",
		zap.String("image", image.Name),
		zap.String("class", name),
		zap.Int("count", len(detections)),
	)
	return nil
}
