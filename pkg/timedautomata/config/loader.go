package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Load reads settings from a YAML or JSON file, then applies environment
// overrides. An empty path skips the file and only applies the environment.
//
// The file may hold the settings at its root or under an "engine" key.
func Load(path string) (Settings, error) {
	s := Default()
	if path != "" {
		var doc struct {
			Engine yaml.Node `yaml:"engine"`
		}
		if err := LoadFile(path, &doc); err != nil {
			return Settings{}, err
		}
		if doc.Engine.Kind != 0 {
			if err := doc.Engine.Decode(&s); err != nil {
				return Settings{}, fmt.Errorf("parse engine settings: %w", err)
			}
		} else if err := LoadFile(path, &s); err != nil {
			return Settings{}, err
		}
	}
	if err := ApplyEnv(&s); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// LoadFile decodes a file into target, auto-detecting format by extension.
// Supported extensions: .yaml, .yml, .json
func LoadFile(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml", ".json":
		// JSON is a subset of YAML; one decoder keeps duration parsing identical.
		return Decode(data, target)
	default:
		return fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// Decode parses YAML (or JSON) data into target.
// Fields absent from data keep their current values. Empty input leaves target unchanged.
func Decode(data []byte, target any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields of s from TIMEDAUTOMATA_* environment variables.
func ApplyEnv(s *Settings) error {
	if err := env.Parse(s); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
