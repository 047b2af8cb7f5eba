package inference

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detection-output/common"
	"github.com/nvr-ai/go-detection-output/models/model"
	"github.com/nvr-ai/go-detection-output/models/postprocess"
	"github.com/nvr-ai/go-detection-output/models/ssd"
)

func TestPrecision(t *testing.T) {
	tests := []struct {
		precision Precision
		dtype     tensor.Dtype
		wantErr   bool
	}{
		{precision: PrecisionFP32, dtype: tensor.Float32},
		{precision: PrecisionFP64, dtype: tensor.Float64},
		{precision: "FP16", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.precision), func(t *testing.T) {
			dt, err := tt.precision.Dtype()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnsupportedDtype))
				assert.Error(t, tt.precision.Validate())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.dtype, dt)

			p, err := PrecisionOf(dt)
			require.NoError(t, err)
			assert.Equal(t, tt.precision, p)
		})
	}

	_, err := PrecisionOf(tensor.Int)
	assert.True(t, errors.Is(err, ErrUnsupportedDtype))
}

func TestConvert(t *testing.T) {
	src := tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]float32{0.5, 1, 1.5, 2}))

	same, err := Convert(src, PrecisionFP32)
	require.NoError(t, err)
	assert.Same(t, src, same)

	wide, err := Convert(src, PrecisionFP64)
	require.NoError(t, err)
	assert.Equal(t, tensor.Float64, wide.Dtype())
	assert.Equal(t, tensor.Shape{2, 2}, wide.Shape())
	assert.Equal(t, []float64{0.5, 1, 1.5, 2}, wide.Data())

	narrow, err := Convert(wide, PrecisionFP32)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 1, 1.5, 2}, narrow.Data())

	ints := tensor.New(tensor.WithShape(2), tensor.WithBacking([]int{1, 2}))
	_, err = Convert(ints, PrecisionFP32)
	assert.True(t, errors.Is(err, ErrUnsupportedDtype))
}

func TestNpyFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.npy")
	want := tensor.New(tensor.WithShape(1, 6), tensor.WithBacking([]float32{0.1, 0.9, 0.2, 0.8, 0.3, 0.7}))

	require.NoError(t, WriteNpy(path, want))
	got, err := ReadNpy(path)
	require.NoError(t, err)

	assert.Equal(t, want.Shape(), got.Shape())
	assert.Equal(t, want.Data(), got.Data())

	_, err = ReadNpy(filepath.Join(t.TempDir(), "missing.npy"))
	assert.Error(t, err)
}

func TestNewInputs(t *testing.T) {
	loc := func(n int) *tensor.Dense {
		return tensor.New(tensor.WithShape(n, 8), tensor.WithBacking(make([]float32, n*8)))
	}
	conf := func(n int) *tensor.Dense {
		return tensor.New(tensor.WithShape(n, 4), tensor.WithBacking(make([]float32, n*4)))
	}
	prior := tensor.New(tensor.WithShape(1, 2, 8), tensor.WithBacking(make([]float32, 16)))

	t.Run("valid", func(t *testing.T) {
		in, err := NewInputs[float32](loc(3), conf(3), prior)
		require.NoError(t, err)
		assert.Equal(t, 3, in.NumImages)
		assert.Len(t, in.Loc, 24)
		assert.Len(t, in.Conf, 12)
		assert.Len(t, in.Prior, 16)
	})

	t.Run("batch mismatch", func(t *testing.T) {
		_, err := NewInputs[float32](loc(3), conf(2), prior)
		assert.True(t, errors.Is(err, ssd.ErrShapeMismatch))
	})

	t.Run("prior axis", func(t *testing.T) {
		bad := tensor.New(tensor.WithShape(1, 4, 4), tensor.WithBacking(make([]float32, 16)))
		_, err := NewInputs[float32](loc(1), conf(1), bad)
		assert.True(t, errors.Is(err, ssd.ErrShapeMismatch))
	})

	t.Run("dtype", func(t *testing.T) {
		_, err := NewInputs[float64](loc(1), conf(1), prior)
		assert.True(t, errors.Is(err, ErrUnsupportedDtype))
	})

	t.Run("nil tensor", func(t *testing.T) {
		_, err := NewInputs[float32](nil, conf(1), prior)
		assert.Error(t, err)
	})
}

func TestOutputTensor(t *testing.T) {
	out := &ssd.Output[float32]{
		NumImages: 1,
		Detections: []postprocess.Detection[float32]{
			{ImageID: 0, Label: 1, Score: 0.9, Box: common.NormalizedBox[float32]{XMin: 0.1, YMin: 0.2, XMax: 0.3, YMax: 0.4}},
			{ImageID: 0, Label: 2, Score: 0.5, Box: common.NormalizedBox[float32]{XMax: 1, YMax: 1}},
		},
	}

	dense, err := OutputTensor(out)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 1, 2, postprocess.RowSize}, dense.Shape())
	assert.Equal(t, []float32{
		0, 1, 0.9, 0.1, 0.2, 0.3, 0.4,
		0, 2, 0.5, 0, 0, 1, 1,
	}, dense.Data())

	_, err = OutputTensor(&ssd.Output[float32]{NumImages: 1})
	assert.True(t, errors.Is(err, ErrNoDetections))
}

func TestTensorsThroughLayer(t *testing.T) {
	loc := tensor.New(tensor.WithShape(1, 8), tensor.WithBacking(make([]float64, 8)))
	conf := tensor.New(tensor.WithShape(1, 4), tensor.WithBacking([]float64{0.1, 0.9, 0.2, 0.8}))
	prior := tensor.New(tensor.WithShape(1, 2, 8), tensor.WithBacking([]float64{
		0.1, 0.1, 0.5, 0.5,
		0.1, 0.1, 0.5, 0.38,
		0.1, 0.1, 0.2, 0.2,
		0.1, 0.1, 0.2, 0.2,
	}))

	layer, err := ssd.New[float64](model.Params{
		NumClasses:        2,
		ShareLocation:     true,
		BackgroundLabelID: 0,
		NMS:               &postprocess.NMSConfig{IoUThreshold: 0.5},
	}, ssd.Options{})
	require.NoError(t, err)

	in, err := NewInputs[float64](loc, conf, prior)
	require.NoError(t, err)
	out, err := layer.Forward(context.Background(), in, nil)
	require.NoError(t, err)

	dense, err := OutputTensor(out)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0.9, 0.1, 0.1, 0.5, 0.5}, dense.Data())
}
