package models

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// labelMapItem mirrors one entry of a label map file.
type labelMapItem struct {
	Name        string `yaml:"name"`
	Label       *int   `yaml:"label"`
	DisplayName string `yaml:"display_name"`
}

// LoadLabelMap reads a label map file.
//
// Files ending in .yaml or .yml hold a list of {name, label, display_name} entries; anything
// else is read as a text-format LabelMap:
//
//	item {
//	  name: "aeroplane"
//	  label: 1
//	  display_name: "aeroplane"
//	}
//
// Arguments:
//   - path: Path to the label map file.
//
// Returns:
//   - The class set keyed by label, with Name taken from the name field.
//   - An error if the file cannot be read, an entry lacks a label or name, or a label repeats.
func LoadLabelMap(path string) (*OutputClassSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read label map file %s", path)
	}
	defer f.Close()

	var items []labelMapItem
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		items, err = decodeYAMLLabelMap(f)
	default:
		items, err = parseLabelMap(f)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse label map file %s", path)
	}

	classes := make([]OutputClass, 0, len(items))
	for i, item := range items {
		if item.Label == nil {
			return nil, errors.Errorf("label map %s: item %d has no label", path, i)
		}
		if item.Name == "" {
			return nil, errors.Errorf("label map %s: label %d has no name", path, *item.Label)
		}
		classes = append(classes, OutputClass{
			Index:       *item.Label,
			Name:        item.Name,
			DisplayName: item.DisplayName,
		})
	}

	return NewOutputClassSet("", classes)
}

func decodeYAMLLabelMap(r io.Reader) ([]labelMapItem, error) {
	var items []labelMapItem
	if err := yaml.NewDecoder(r).Decode(&items); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return items, nil
}

// parseLabelMap parses the text format of a LabelMap message. Only the item, name, label and
// display_name fields are understood; '#' starts a comment.
func parseLabelMap(r io.Reader) ([]labelMapItem, error) {
	tokens, err := tokenizeLabelMap(r)
	if err != nil {
		return nil, err
	}

	var items []labelMapItem
	var current *labelMapItem
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case tok == "item" && current == nil:
			if i+1 >= len(tokens) || tokens[i+1] != "{" {
				return nil, errors.New("expected '{' after item")
			}
			current = &labelMapItem{}
			i++
		case tok == "}" && current != nil:
			items = append(items, *current)
			current = nil
		case current != nil:
			if i+2 >= len(tokens) || tokens[i+1] != ":" {
				return nil, errors.Errorf("expected 'field: value' at %q", tok)
			}
			value := tokens[i+2]
			i += 2
			switch tok {
			case "name":
				current.Name = value
			case "display_name":
				current.DisplayName = value
			case "label":
				label, err := strconv.Atoi(value)
				if err != nil {
					return nil, errors.Wrapf(err, "invalid label %q", value)
				}
				current.Label = &label
			default:
				return nil, errors.Errorf("unknown field %q", tok)
			}
		default:
			return nil, errors.Errorf("unexpected token %q", tok)
		}
	}
	if current != nil {
		return nil, errors.New("unterminated item")
	}
	return items, nil
}

// tokenizeLabelMap splits text-format input into identifiers, punctuation and unquoted
// string values.
func tokenizeLabelMap(r io.Reader) ([]string, error) {
	var tokens []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		for len(line) > 0 {
			c := line[0]
			switch {
			case c == '#':
				line = ""
			case c == ' ' || c == '\t' || c == '\r':
				line = line[1:]
			case c == '{' || c == '}' || c == ':':
				tokens = append(tokens, string(c))
				line = line[1:]
			case c == '"' || c == '\'':
				value, rest, err := unquote(line, c)
				if err != nil {
					return nil, err
				}
				tokens = append(tokens, value)
				line = rest
			default:
				end := strings.IndexAny(line, " \t\r{}:#\"'")
				if end < 0 {
					end = len(line)
				}
				tokens = append(tokens, line[:end])
				line = line[end:]
			}
		}
	}
	return tokens, scanner.Err()
}

// unquote reads the quoted string at the start of line and returns its value and the text after
// the closing quote. Backslash escapes the next character; \n and \t map to newline and tab.
func unquote(line string, quote byte) (string, string, error) {
	var b strings.Builder
	for i := 1; i < len(line); i++ {
		switch c := line[i]; c {
		case quote:
			return b.String(), line[i+1:], nil
		case '\\':
			i++
			if i == len(line) {
				return "", "", errors.Errorf("unterminated string in %q", line)
			}
			switch line[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(line[i])
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", "", errors.Errorf("unterminated string in %q", line)
}
