package config

import (
	"encoding/json"
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"os"
	"path/filepath"
	"strings"
)

// LoadRPNTargetParams reads target generation parameters from a .json or
// .toml file and validates them.
func LoadRPNTargetParams(path string) (*RPNTargetParams, error) {
	params := &RPNTargetParams{}
	err := decodeFile(path, params)
	if err != nil {
		return nil, err
	}
	err = params.Validate()
	if err != nil {
		return nil, err
	}
	return params, nil
}

func LoadProposalParams(path string) (*ProposalParams, error) {
	params := &ProposalParams{}
	err := decodeFile(path, params)
	if err != nil {
		return nil, err
	}
	err = params.Validate()
	if err != nil {
		return nil, err
	}
	return params, nil
}

func LoadPipelineParams(path string) (*PipelineParams, error) {
	params := &PipelineParams{}
	err := decodeFile(path, params)
	if err != nil {
		return nil, err
	}
	err = params.Validate()
	if err != nil {
		return nil, err
	}
	return params, nil
}

func LoadClassCatalog(path string) (*ClassCatalog, error) {
	catalog := &ClassCatalog{}
	err := decodeFile(path, catalog)
	if err != nil {
		return nil, err
	}
	err = catalog.Validate()
	if err != nil {
		return nil, err
	}
	return catalog, nil
}

func decodeFile(path string, dst interface{}) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		content, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "failed to read config file %s", path)
		}
		err = json.Unmarshal(content, dst)
		if err != nil {
			return errors.Wrapf(err, "failed to decode config file %s", path)
		}
	case ".toml":
		_, err := toml.DecodeFile(path, dst)
		if err != nil {
			return errors.Wrapf(err, "failed to decode config file %s", path)
		}
	default:
		return errors.Errorf("unsupported config file extension %s", filepath.Ext(path))
	}
	return nil
}
