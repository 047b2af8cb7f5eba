package model

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/nvr-ai/go-detection-output/models/postprocess"
)

func validParams() Params {
	return Params{
		NumClasses:        21,
		ShareLocation:     true,
		BackgroundLabelID: 0,
		Family:            ModelFamilyVOC,
		NMS:               &postprocess.NMSConfig{IoUThreshold: 0.45, TopK: 400},
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Params)
		wantErr bool
	}{
		{name: "valid", mutate: func(p *Params) {}},
		{name: "no background", mutate: func(p *Params) { p.BackgroundLabelID = NoBackground }},
		{name: "no family", mutate: func(p *Params) { p.Family = "" }},
		{name: "zero classes", mutate: func(p *Params) { p.NumClasses = 0 }, wantErr: true},
		{name: "background past last class", mutate: func(p *Params) { p.BackgroundLabelID = 21 }, wantErr: true},
		{name: "background below sentinel", mutate: func(p *Params) { p.BackgroundLabelID = -2 }, wantErr: true},
		{name: "missing nms", mutate: func(p *Params) { p.NMS = nil }, wantErr: true},
		{name: "negative threshold", mutate: func(p *Params) { p.NMS.IoUThreshold = -1 }, wantErr: true},
		{name: "unknown family", mutate: func(p *Params) { p.Family = "yolo" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidParams), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParamsLocClasses(t *testing.T) {
	p := validParams()
	assert.Equal(t, 1, p.LocClasses())

	p.ShareLocation = false
	assert.Equal(t, 21, p.LocClasses())
}

func TestParamsIsBackground(t *testing.T) {
	p := validParams()
	assert.True(t, p.IsBackground(0))
	assert.False(t, p.IsBackground(1))

	p.BackgroundLabelID = NoBackground
	assert.False(t, p.IsBackground(-1), "the sentinel is never a class label")
	assert.False(t, p.IsBackground(0))
}
