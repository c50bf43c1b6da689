package settlementConfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadBidDistributionConfig reads a YAML or JSON settlement config and validates it.
// Files ending in .json are decoded as JSON, anything else as YAML.
func LoadBidDistributionConfig(path string) (*BidDistributionConfig, error) {
	cfg := &BidDistributionConfig{}
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid settlement config %s", path)
	}
	return cfg, nil
}

func LoadInstitutionalDistributionConfig(path string) (*InstitutionalDistributionConfig, error) {
	cfg := &InstitutionalDistributionConfig{}
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid institutional config %s", path)
	}
	return cfg, nil
}

func decodeFile(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read config %s", path)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.Wrapf(err, "failed to parse config %s", path)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "failed to parse config %s", path)
	}
	return nil
}
