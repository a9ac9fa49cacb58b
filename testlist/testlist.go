// Package testlist loads the list of scripts to run from a YAML manifest.
//
// A manifest lists scripts either as plain paths or with options:
//
//	scripts:
//	  - tests/smoke.sh
//	  - path: tests/upgrade.sh
//	    name: upgrade
//	    timeout: 5m
//
// Relative paths are resolved against the working directory, the same as script
// paths given on the command line.
package testlist

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-shunit/types"
)

// Manifest is the top-level document of a scripts file
type Manifest struct {
	Scripts []Entry `yaml:"scripts"`
}

// Entry is a single script of a manifest
type Entry struct {
	types.Script `yaml:",inline"`
}

// UnmarshalYAML accepts either a plain path or a mapping.
func (e *Entry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		e.Path = node.Value
		return nil
	}
	type plain Entry
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*e = Entry(p)
	return nil
}

// Load reads and validates a manifest file
func Load(path string) ([]types.Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scripts file: %w", err)
	}
	scripts, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scripts file %s: %w", path, err)
	}
	return scripts, nil
}

// Parse decodes and validates a manifest document
func Parse(data []byte) ([]types.Script, error) {
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	scripts := make([]types.Script, 0, len(manifest.Scripts))
	var errs []error
	for i, entry := range manifest.Scripts {
		if entry.Path == "" {
			errs = append(errs, fmt.Errorf("script %d: path is required", i+1))
			continue
		}
		if entry.Timeout != nil && *entry.Timeout < 0 {
			errs = append(errs, fmt.Errorf("script %d (%s): timeout cannot be negative", i+1, entry.Path))
			continue
		}
		scripts = append(scripts, entry.Script)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return scripts, nil
}
