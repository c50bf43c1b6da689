package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ReadJSON decodes a JSON input file into out.
func ReadJSON(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", path)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "failed to parse %s", path)
	}
	return nil
}

// ReadFile decodes JSON or YAML depending on the file extension.
func ReadFile(path string, out interface{}) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "failed to read %s", path)
		}
		if err := yaml.Unmarshal(data, out); err != nil {
			return errors.Wrapf(err, "failed to parse %s", path)
		}
		return nil
	default:
		return ReadJSON(path, out)
	}
}
