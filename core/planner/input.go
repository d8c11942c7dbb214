package planner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Input formats understood by DecodeInput.
const (
	FormatJSON  = "json"
	FormatJSONC = "jsonc"
	FormatYAML  = "yaml"
)

// FormatFor guesses the input format from a file extension.
func FormatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".jsonc":
		return FormatJSONC
	default:
		return FormatJSON
	}
}

// DecodeInput parses an input snapshot. JSON input may carry comments and
// trailing commas.
func DecodeInput(data []byte, format string) (Input, error) {
	var in Input
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &in); err != nil {
			return Input{}, fmt.Errorf("%w: decode yaml: %v", ErrInvalidInput, err)
		}
	case FormatJSON, FormatJSONC, "":
		if err := json.Unmarshal(jsonc.ToJSON(data), &in); err != nil {
			return Input{}, fmt.Errorf("%w: decode json: %v", ErrInvalidInput, err)
		}
	default:
		return Input{}, fmt.Errorf("unknown input format %q", format)
	}
	return in, nil
}

// LoadInput reads and decodes an input file.
func LoadInput(path string) (Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Input{}, fmt.Errorf("read input: %w", err)
	}
	return DecodeInput(data, FormatFor(path))
}
