// Package config provides configuration loading and management for mrireg.
// It replaces process-wide settings with an explicit value handed to each
// workflow builder, loaded from YAML files with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Standard template suffixes, relative to FSLDIR.
const (
	DefaultBrainRef     = "/data/standard/MNI152_T1_2mm_brain.nii.gz"
	DefaultHeadRef      = "/data/standard/MNI152_T1_2mm.nii.gz"
	DefaultBrainRefMask = "/data/standard/MNI152_T1_2mm_brain_mask_dil.nii.gz"

	// DefaultFNIRTConfig is resolved by fnirt under $FSLDIR/etc/flirtsch
	DefaultFNIRTConfig = "T1_2_MNI152_2mm"
)

// Environment variables consulted by ApplyEnv and LoadConfig.
const (
	EnvFSLDir  = "FSLDIR"
	EnvSinkDir = "MRIREG_SINK_DIR"
	EnvWorkDir = "MRIREG_WORK_DIR"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Paths locates reference templates and output roots
	Paths struct {
		// SinkDir is the root under which each workflow's sink tag directory is created
		SinkDir string `yaml:"sinkDir"`

		// WorkDir is the root of per-node working directories in resolved plans
		WorkDir string `yaml:"workDir"`

		// FSLDir is the FSL installation prefix the template suffixes are appended to
		FSLDir string `yaml:"fslDir"`

		// BrainRef is the brain-extracted MNI template, relative to FSLDir
		BrainRef string `yaml:"brainRef"`

		// HeadRef is the whole-head MNI template, relative to FSLDir
		HeadRef string `yaml:"headRef"`

		// BrainRefMask is the dilated brain mask of the template, relative to FSLDir
		BrainRefMask string `yaml:"brainRefMask"`

		// FNIRTConfig is the fnirt configuration name or path
		FNIRTConfig string `yaml:"fnirtConfig"`
	} `yaml:"paths"`

	// Logging parameters
	Logging struct {
		// Level is a logrus level name
		Level string `yaml:"level"`

		// Format is "text" or "json"
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values. FSLDir is
// taken from the environment, as FSL itself does.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Paths.SinkDir = "."
	cfg.Paths.WorkDir = "work"
	cfg.Paths.FSLDir = os.Getenv(EnvFSLDir)
	cfg.Paths.BrainRef = DefaultBrainRef
	cfg.Paths.HeadRef = DefaultHeadRef
	cfg.Paths.BrainRefMask = DefaultBrainRefMask
	cfg.Paths.FNIRTConfig = DefaultFNIRTConfig

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	return cfg
}

// ReferenceBrain returns FSLDir joined with the brain template suffix.
func (c *Config) ReferenceBrain() string {
	return c.Paths.FSLDir + c.Paths.BrainRef
}

// ReferenceSkull returns FSLDir joined with the whole-head template suffix.
func (c *Config) ReferenceSkull() string {
	return c.Paths.FSLDir + c.Paths.HeadRef
}

// ReferenceMask returns FSLDir joined with the brain mask suffix.
func (c *Config) ReferenceMask() string {
	return c.Paths.FSLDir + c.Paths.BrainRefMask
}

// LoadConfig reads configPath over the defaults, then applies envFile and
// environment overrides (see ApplyEnv) and validates the result. A missing
// or empty file yields the defaults. Unknown keys are rejected so a
// misspelt template path does not silently fall back to MNI152.
func LoadConfig(configPath, envFile string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("error reading config file: %w", err)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("error parsing config file %s: %w", configPath, err)
		}
	}

	if err := cfg.ApplyEnv(envFile); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return cfg, nil
}

// Validate checks that every template suffix is set and that the logging
// section names a known level and format.
func (c *Config) Validate() error {
	required := []struct{ key, value string }{
		{"paths.brainRef", c.Paths.BrainRef},
		{"paths.headRef", c.Paths.HeadRef},
		{"paths.brainRefMask", c.Paths.BrainRefMask},
		{"paths.fnirtConfig", c.Paths.FNIRTConfig},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s must not be empty", r.key)
		}
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// ApplyEnv loads envFile when it exists and then applies environment
// overrides. FSLDIR only fills an empty FSLDir; the MRIREG_* variables
// always win over file values.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("error loading env file: %w", err)
			}
		}
	}

	if v := os.Getenv(EnvFSLDir); v != "" && c.Paths.FSLDir == "" {
		c.Paths.FSLDir = v
	}
	if v := os.Getenv(EnvSinkDir); v != "" {
		c.Paths.SinkDir = v
	}
	if v := os.Getenv(EnvWorkDir); v != "" {
		c.Paths.WorkDir = v
	}
	return nil
}

// SaveConfig writes cfg to configPath through a temporary file in the same
// directory, so readers never observe a partial file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".mrireg-*.yaml")
	if err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), configPath); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// CreateDefaultConfigFile writes the defaults to configPath. An existing
// file is left untouched and reported with fs.ErrExist.
func CreateDefaultConfigFile(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file %s: %w", configPath, fs.ErrExist)
	}
	return SaveConfig(DefaultConfig(), configPath)
}
