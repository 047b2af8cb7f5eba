package util

import (
	"bufio"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// ImageSize is one entry of a name/size file.
type ImageSize struct {
	// Name is the image name written to exported detections.
	Name string
	// Height is the image height in pixels.
	Height int
	// Width is the image width in pixels.
	Width int
}

// LoadNameSizeFile reads whitespace separated "name height width" triples.
//
// Arguments:
// - path: Path to the name/size file.
//
// Returns:
// - []ImageSize: The entries in file order.
// - error: Error if the file cannot be read or holds an incomplete or non-numeric entry.
func LoadNameSizeFile(path string) ([]ImageSize, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open name size file")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Split(bufio.ScanWords)

	var sizes []ImageSize
	var fields []string
	for scanner.Scan() {
		fields = append(fields, scanner.Text())
		if len(fields) < 3 {
			continue
		}

		height, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errors.Wrapf(err, "%s: height of %q", path, fields[0])
		}
		width, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, errors.Wrapf(err, "%s: width of %q", path, fields[0])
		}
		if height <= 0 || width <= 0 {
			return nil, errors.Errorf("%s: %q has non positive size %dx%d", path, fields[0], width, height)
		}

		sizes = append(sizes, ImageSize{Name: fields[0], Height: height, Width: width})
		fields = fields[:0]
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	if len(fields) != 0 {
		return nil, errors.Errorf("%s: incomplete entry %v", path, fields)
	}

	return sizes, nil
}
