// Package config - YAML configuration of the detection output tool.
package config

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-detection-output/common"
	"github.com/nvr-ai/go-detection-output/export"
	"github.com/nvr-ai/go-detection-output/inference"
	"github.com/nvr-ai/go-detection-output/logging"
	"github.com/nvr-ai/go-detection-output/models"
	"github.com/nvr-ai/go-detection-output/models/model"
	"github.com/nvr-ai/go-detection-output/models/postprocess"
	"github.com/nvr-ai/go-detection-output/util"
)

// DefaultNMSThreshold is used when nms_threshold is omitted.
const DefaultNMSThreshold = 0.3

// Config represents the application configuration.
type Config struct {
	// Precision selects the element type the layer runs at; input tensors are converted.
	Precision inference.Precision `yaml:"precision"`
	// Workers bounds the number of images processed concurrently.
	Workers         int                   `yaml:"workers"`
	Log             logging.LogConfig     `yaml:"log"`
	DetectionOutput DetectionOutputConfig `yaml:"detection_output"`
}

// DetectionOutputConfig contains the layer parameters.
type DetectionOutputConfig struct {
	NumClasses        int                    `yaml:"num_classes"`
	ShareLocation     *bool                  `yaml:"share_location"`
	BackgroundLabelID *int                   `yaml:"background_label_id"`
	Family            model.Family           `yaml:"family"`
	NMS               *postprocess.NMSConfig `yaml:"nms"`
	SaveOutput        SaveOutputConfig       `yaml:"save_output"`
}

// SaveOutputConfig contains the optional export settings.
type SaveOutputConfig struct {
	OutputDirectory  string       `yaml:"output_directory"`
	OutputNamePrefix string       `yaml:"output_name_prefix"`
	OutputFormat     string       `yaml:"output_format"`
	LabelMapFile     string       `yaml:"label_map_file"`
	LabelMapFamily   model.Family `yaml:"label_map_family"`
	NameSizeFile     string       `yaml:"name_size_file"`
}

// Load reads, defaults and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read configuration file")
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a configuration document. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	// Seeded so a partial nms section keeps the default threshold.
	cfg := Config{DetectionOutput: DetectionOutputConfig{
		NMS: &postprocess.NMSConfig{IoUThreshold: DefaultNMSThreshold},
	}}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "failed to parse configuration")
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Precision == "" {
		c.Precision = inference.PrecisionFP32
	}
	if c.Workers == 0 {
		c.Workers = 1
	}

	defaults := logging.DefaultLogConfig()
	if c.Log.Level == "" {
		c.Log.Level = defaults.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Format
	}
	if c.Log.Output == "" {
		c.Log.Output = defaults.Output
	}

	d := &c.DetectionOutput
	if d.ShareLocation == nil {
		share := true
		d.ShareLocation = &share
	}
	if d.BackgroundLabelID == nil {
		background := model.NoBackground
		d.BackgroundLabelID = &background
	}
	if d.NMS == nil {
		d.NMS = &postprocess.NMSConfig{IoUThreshold: DefaultNMSThreshold}
	}
	if d.SaveOutput.OutputDirectory != "" && d.SaveOutput.OutputFormat == "" {
		d.SaveOutput.OutputFormat = export.FormatVOC
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := c.Precision.Validate(); err != nil {
		return err
	}
	if c.Workers < 1 {
		return errors.Errorf("workers must be positive, got %d", c.Workers)
	}
	if err := c.Params().Validate(); err != nil {
		return err
	}

	save := c.DetectionOutput.SaveOutput
	if save.OutputDirectory != "" && save.OutputFormat != export.FormatVOC {
		return errors.Errorf("unsupported output_format %q", save.OutputFormat)
	}
	switch save.LabelMapFamily {
	case "", model.ModelFamilyCOCO, model.ModelFamilyVOC:
	default:
		return errors.Errorf("unknown label_map_family %q", save.LabelMapFamily)
	}
	return nil
}

// Params returns the layer parameters. Call it on a defaulted configuration.
func (c *Config) Params() model.Params {
	d := c.DetectionOutput
	params := model.Params{
		NumClasses:        d.NumClasses,
		ShareLocation:     d.ShareLocation == nil || *d.ShareLocation,
		BackgroundLabelID: model.NoBackground,
		Family:            d.Family,
		NMS:               d.NMS,
	}
	if d.BackgroundLabelID != nil {
		params.BackgroundLabelID = *d.BackgroundLabelID
	}
	return params
}

// Prepare performs the setup-time I/O of the export side channel.
//
// It creates the output directory, loads the label map and the name/size file and truncates
// the per-class results files. The label set comes from label_map_file, then label_map_family,
// then the model family. VOC export needs both a label set and a name/size file; when
// either is missing a warning is logged and saving is disabled.
//
// Arguments:
//   - cfg: A loaded configuration.
//   - logger: Receives the warnings.
//
// Returns:
//   - The writer to pass to Forward, nil when saving is disabled, or an error.
func Prepare[T common.Float](cfg *Config, logger *zap.Logger) (*export.VOCWriter[T], error) {
	save := cfg.DetectionOutput.SaveOutput
	if save.OutputDirectory == "" {
		return nil, nil
	}
	if err := os.MkdirAll(save.OutputDirectory, 0o755); err != nil {
		return nil, errors.Wrap(err, "create output directory")
	}

	enabled := true
	var labels *models.OutputClassSet
	var err error
	switch {
	case save.LabelMapFile != "":
		if labels, err = models.LoadLabelMap(save.LabelMapFile); err != nil {
			return nil, err
		}
	case save.LabelMapFamily != "":
		if labels, err = models.LookupSet(save.LabelMapFamily); err != nil {
			return nil, err
		}
	case cfg.DetectionOutput.Family != "":
		if labels, err = models.LookupSet(cfg.DetectionOutput.Family); err != nil {
			return nil, err
		}
	default:
		logger.Warn("provide label_map_file, label_map_family or family if output results for VOC; saving disabled")
		enabled = false
	}

	var images []util.ImageSize
	if save.NameSizeFile == "" {
		logger.Warn("provide name_size_file if output results for VOC; saving disabled")
		enabled = false
	} else if images, err = util.LoadNameSizeFile(save.NameSizeFile); err != nil {
		return nil, err
	}

	if !enabled {
		return nil, nil
	}

	writer := export.NewVOCWriter[T](export.VOCConfig{
		OutputDirectory:   save.OutputDirectory,
		OutputNamePrefix:  save.OutputNamePrefix,
		BackgroundLabelID: cfg.Params().BackgroundLabelID,
	}, labels, images, logger)
	if err := writer.ResetFiles(); err != nil {
		return nil, err
	}

	logger.Info("saving detections",
		zap.String("directory", save.OutputDirectory),
		zap.String("format", save.OutputFormat),
		zap.Int("labels", len(labels.Classes)),
		zap.Int("images", len(images)),
	)
	return writer, nil
}
