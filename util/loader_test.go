package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test_name_size.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadNameSizeFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []ImageSize
		wantErr bool
	}{
		{
			name:    "lines",
			content: "000001 500 353\n000002 375 500\n",
			want: []ImageSize{
				{Name: "000001", Height: 500, Width: 353},
				{Name: "000002", Height: 375, Width: 500},
			},
		},
		{
			name:    "free whitespace",
			content: "  a 10\t20 b\n30 40",
			want: []ImageSize{
				{Name: "a", Height: 10, Width: 20},
				{Name: "b", Height: 30, Width: 40},
			},
		},
		{name: "empty", content: ""},
		{name: "incomplete", content: "a 10 20 b 30", wantErr: true},
		{name: "non numeric", content: "a ten 20", wantErr: true},
		{name: "zero size", content: "a 0 20", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadNameSizeFile(writeFile(t, tt.content))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadNameSizeFileMissing(t *testing.T) {
	_, err := LoadNameSizeFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
