// Package file reads the optional runner configuration.
package file

import (
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"
)

// Config mirrors midicorrect.yml. Empty fields fall back to defaults or
// command line flags.
type Config struct {
	InputDir      string `yaml:"input_dir"`
	OutputDir     string `yaml:"output_dir"`
	OperationsLog string `yaml:"operations_log"`
	Jobs          int    `yaml:"jobs"`
}

// ReadConfig loads a YAML configuration file.
func ReadConfig(fsys fs.FS, configFile string) (*Config, error) {
	f, err := fsys.Open(configFile)
	if err != nil {
		return nil, fmt.Errorf("could not open %v: %w", configFile, err)
	}
	defer f.Close()
	var config Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	err = dec.Decode(&config)
	if err != nil {
		return nil, fmt.Errorf("could not decode %v: %v", configFile, err)
	}
	return &config, nil
}

// Merge overlays b on a: every field set in b wins.
func Merge(a, b Config) Config {
	out := a
	if b.InputDir != "" {
		out.InputDir = b.InputDir
	}
	if b.OutputDir != "" {
		out.OutputDir = b.OutputDir
	}
	if b.OperationsLog != "" {
		out.OperationsLog = b.OperationsLog
	}
	if b.Jobs != 0 {
		out.Jobs = b.Jobs
	}
	return out
}
