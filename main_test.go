package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detection-output/config"
	"github.com/nvr-ai/go-detection-output/inference"
	"github.com/nvr-ai/go-detection-output/profiler"
)

func writeTensor(t *testing.T, dir, name string, shape []int, data []float32) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, inference.WriteNpy(path, tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))))
	return path
}

func TestExecute(t *testing.T) {
	dir := t.TempDir()
	loc := writeTensor(t, dir, "loc.npy", []int{1, 8}, make([]float32, 8))
	conf := writeTensor(t, dir, "conf.npy", []int{1, 6}, []float32{
		0.1, 0.9, 0.3,
		0.2, 0.8, 0.6,
	})
	prior := writeTensor(t, dir, "prior.npy", []int{1, 2, 8}, []float32{
		0, 0, 0.5, 0.5,
		0.5, 0.5, 1, 1,
		0.1, 0.1, 0.2, 0.2,
		0.1, 0.1, 0.2, 0.2,
	})
	nameSize := filepath.Join(dir, "name_size.txt")
	require.NoError(t, os.WriteFile(nameSize, []byte("img 10 20\n"), 0o644))

	tests := []struct {
		name      string
		precision string
		dtype     tensor.Dtype
	}{
		{name: "float32", precision: "FP32", dtype: tensor.Float32},
		{name: "float64", precision: "FP64", dtype: tensor.Float64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resultsDir := filepath.Join(t.TempDir(), "results")
			cfg, err := config.Parse(strings.NewReader(`
precision: ` + tt.precision + `
workers: 2
detection_output:
  num_classes: 3
  background_label_id: 0
  nms: {nms_threshold: 0.5}
  save_output:
    output_directory: ` + resultsDir + `
    label_map_family: voc
    name_size_file: ` + nameSize + `
`))
			require.NoError(t, err)

			outPath := filepath.Join(t.TempDir(), "detections.npy")
			prof := profiler.New(profiler.ProfilingOptions{})
			require.NoError(t, execute(context.Background(), cfg, zap.NewNop(), prof, loc, conf, prior, outPath))

			out, err := inference.ReadNpy(outPath)
			require.NoError(t, err)
			assert.Equal(t, tt.dtype, out.Dtype())
			assert.Equal(t, tensor.Shape{1, 1, 4, 7}, out.Shape())

			bicycle, err := os.ReadFile(filepath.Join(resultsDir, "bicycle.txt"))
			require.NoError(t, err)
			assert.Equal(t, "img 0.6 10 5 20 10\nimg 0.3 0 0 10 5\n", string(bicycle))

			assert.NotEmpty(t, prof.Stats().Operations)
		})
	}
}

func TestExecuteMissingTensor(t *testing.T) {
	cfg, err := config.Parse(strings.NewReader("detection_output: {num_classes: 2}"))
	require.NoError(t, err)

	dir := t.TempDir()
	err = execute(context.Background(), cfg, zap.NewNop(), nil,
		filepath.Join(dir, "loc.npy"), filepath.Join(dir, "conf.npy"), filepath.Join(dir, "prior.npy"),
		filepath.Join(dir, "out.npy"))
	assert.Error(t, err)
}
