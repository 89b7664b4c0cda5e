package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// sectionKey nests the settings inside a larger application document.
const sectionKey = "statebus"

// FromFile loads statebus settings from a .yaml, .yml, or .json file.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read statebus config %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Config{}, fmt.Errorf("statebus config %s: unsupported extension %q", path, ext)
	}
}

// FromYAML parses settings from a YAML document.
func FromYAML(data []byte) (Config, error) {
	return decode(data, "yaml", yaml.Unmarshal)
}

// FromJSON parses settings from a JSON document.
func FromJSON(data []byte) (Config, error) {
	return decode(data, "json", json.Unmarshal)
}

// decode expands ${VAR} references from the environment, parses the
// document, and selects its "statebus" section when there is one.
func decode(data []byte, format string, unmarshal func([]byte, any) error) (Config, error) {
	expanded := os.ExpandEnv(string(data))

	var doc map[string]any
	if err := unmarshal([]byte(expanded), &doc); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", format, err)
	}
	if section, ok := doc[sectionKey].(map[string]any); ok {
		doc = section
	}
	return New(doc), nil
}
