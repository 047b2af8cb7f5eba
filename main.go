package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/akamensky/argparse"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detection-output/common"
	"github.com/nvr-ai/go-detection-output/config"
	"github.com/nvr-ai/go-detection-output/inference"
	"github.com/nvr-ai/go-detection-output/logging"
	"github.com/nvr-ai/go-detection-output/models/ssd"
	"github.com/nvr-ai/go-detection-output/profiler"
)

// DefaultOutputPath is where the detection table is written when -o is not given.
const DefaultOutputPath = "detections.npy"

// networkOutputs are the three tensors the layer consumes.
type networkOutputs struct {
	loc, conf, prior *tensor.Dense
}

func main() {
	parser := argparse.NewParser("detection-output", "Turn SSD location, confidence and prior tensors into detections")
	configPath := parser.String("c", "config", &argparse.Options{Help: "Configuration file", Required: true})
	locPath := parser.String("l", "loc", &argparse.Options{Help: "Location tensor (.npy)", Required: true})
	confPath := parser.String("s", "conf", &argparse.Options{Help: "Confidence tensor (.npy)", Required: true})
	priorPath := parser.String("p", "prior", &argparse.Options{Help: "Prior box tensor (.npy)", Required: true})
	outPath := parser.String("o", "output", &argparse.Options{Help: "Detection table (.npy)", Default: DefaultOutputPath})
	workers := parser.Int("w", "workers", &argparse.Options{Help: "Images processed concurrently, overrides the configuration"})
	profile := parser.Flag("t", "timing", &argparse.Options{Help: "Log per-stage timing when done"})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Fprint(os.Stderr, parser.Usage(err))
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var prof *profiler.Profiler
	if *profile {
		prof = profiler.New(profiler.ProfilingOptions{})
	}

	if err := execute(ctx, cfg, logger, prof, *locPath, *confPath, *priorPath, *outPath); err != nil {
		logger.Error("detection output failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	if prof != nil {
		prof.Log(logger)
	}
}

// execute loads the tensors at the configured precision and runs the layer.
func execute(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	prof *profiler.Profiler,
	locPath, confPath, priorPath, outPath string,
) error {
	var outputs networkOutputs
	for _, t := range []struct {
		path string
		dst  **tensor.Dense
	}{
		{path: locPath, dst: &outputs.loc},
		{path: confPath, dst: &outputs.conf},
		{path: priorPath, dst: &outputs.prior},
	} {
		dense, err := inference.ReadNpy(t.path)
		if err != nil {
			return err
		}
		if *t.dst, err = inference.Convert(dense, cfg.Precision); err != nil {
			return errors.Wrap(err, t.path)
		}
	}

	switch cfg.Precision {
	case inference.PrecisionFP64:
		return run[float64](ctx, cfg, logger, prof, outputs, outPath)
	default:
		return run[float32](ctx, cfg, logger, prof, outputs, outPath)
	}
}

func run[T common.Float](
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	prof *profiler.Profiler,
	outputs networkOutputs,
	outPath string,
) error {
	layer, err := ssd.New[T](cfg.Params(), ssd.Options{
		Workers:  cfg.Workers,
		Logger:   logger,
		Profiler: prof,
	})
	if err != nil {
		return err
	}

	writer, err := config.Prepare[T](cfg, logger)
	if err != nil {
		return err
	}
	var sink ssd.Sink[T]
	if writer != nil {
		sink = writer
	}

	in, err := inference.NewInputs[T](outputs.loc, outputs.conf, outputs.prior)
	if err != nil {
		return err
	}
	out, err := layer.Forward(ctx, in, sink)
	if err != nil {
		return err
	}

	dense, err := inference.OutputTensor(out)
	if errors.Is(err, inference.ErrNoDetections) {
		logger.Warn("no detections kept, output not written", zap.Int("images", out.NumImages))
		return nil
	}
	if err != nil {
		return err
	}
	if err := inference.WriteNpy(outPath, dense); err != nil {
		return err
	}

	logger.Info("wrote detections",
		zap.String("path", outPath),
		zap.Int("images", out.NumImages),
		zap.Int("detections", len(out.Detections)),
	)
	return nil
}
