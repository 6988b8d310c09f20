// Package config loads the cohort CLI settings from a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config file location relative to the user's home.
const (
	DirName  = ".cohort"
	FileName = "config.yaml"
)

// Config holds the settings shared by the CLI commands.
type Config struct {
	// DatabasePath is the SQLite copy of the clinical database.
	DatabasePath string `yaml:"database_path" json:"database_path" validate:"required"`
	// OutputPath is the directory CSV exports are written to.
	OutputPath string `yaml:"output_path" json:"output_path" validate:"required"`
	// Context is the default diagnosis context for requests that set none.
	Context string `yaml:"context" json:"context" validate:"omitempty,oneof=hospital ed"`
	// ChunkSize is how many rows are fetched per round trip when exporting.
	ChunkSize  int    `yaml:"chunk_size" json:"chunk_size" validate:"gte=1"`
	Dialect    string `yaml:"dialect" json:"dialect" validate:"oneof=sqlite postgres"`
	ListenAddr string `yaml:"listen_addr" json:"listen_addr" validate:"required"`
	// History records each run in the database when set.
	History bool `yaml:"history" json:"history"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the settings used when no config file exists.
func Default() Config {
	return Config{
		DatabasePath: "cohort.db",
		OutputPath:   "output",
		ChunkSize:    1000,
		Dialect:      "sqlite",
		ListenAddr:   "127.0.0.1:8080",
		History:      true,
	}
}

// DefaultPath returns $HOME/.cohort/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, DirName, FileName), nil
}

// Load reads the config at path. A missing file yields Default().
// Keys absent from the file keep their default values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML config over the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", yamlName(fe.StructField()), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Save writes cfg to path, creating parent directories.
func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func yamlName(field string) string {
	switch field {
	case "DatabasePath":
		return "database_path"
	case "OutputPath":
		return "output_path"
	case "ChunkSize":
		return "chunk_size"
	case "ListenAddr":
		return "listen_addr"
	default:
		return strings.ToLower(field)
	}
}
