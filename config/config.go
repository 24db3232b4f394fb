// Package config loads oaskema settings from a YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/reoring/oaskema"
	"github.com/reoring/oaskema/openapi"
)

// Config is the file-level configuration shared by the CLI and the HTTP
// middleware.
type Config struct {
	// Spec is the OpenAPI document path. A relative path is resolved against
	// the directory of the config file.
	Spec                   string `mapstructure:"spec"`
	Watch                  bool   `mapstructure:"watch"`
	AllowExternalRefs      bool   `mapstructure:"allow_external_refs"`
	SkipDocumentValidation bool   `mapstructure:"skip_document_validation"`
	// Language selects the error title dictionary ("en" or "ja").
	Language string `mapstructure:"language"`

	Validation Validation `mapstructure:"validation"`
	Decode     Decode     `mapstructure:"decode"`
	Middleware Middleware `mapstructure:"middleware"`
	Log        Log        `mapstructure:"log"`
}

type Validation struct {
	MaxDepth                     int  `mapstructure:"max_depth"`
	CollectAll                   bool `mapstructure:"collect_all"`
	ValidateAdditionalProperties bool `mapstructure:"validate_additional_properties"`
}

type Decode struct {
	RejectDuplicateKeys bool  `mapstructure:"reject_duplicate_keys"`
	MaxDepth            int   `mapstructure:"max_depth"`
	MaxBytes            int64 `mapstructure:"max_bytes"`
}

type Middleware struct {
	ValidateParameters bool `mapstructure:"validate_parameters"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Language:   "en",
		Validation: Validation{MaxDepth: oaskema.DefaultMaxDepth},
		Decode:     Decode{RejectDuplicateKeys: true, MaxDepth: oaskema.DefaultMaxDepth, MaxBytes: 1 << 20},
		Middleware: Middleware{ValidateParameters: true},
		Log:        Log{Level: "info"},
	}
}

// Load reads path and overlays it on Default. Unknown keys are rejected and
// scalar values are converted where unambiguous ("true", "10").
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if cfg.Spec != "" && !filepath.IsAbs(cfg.Spec) {
		cfg.Spec = filepath.Join(filepath.Dir(path), cfg.Spec)
	}
	return cfg, nil
}

// Parse decodes YAML config bytes over Default.
func Parse(data []byte) (Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	cfg := Default()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("decode: %w", err)
	}
	return cfg, nil
}

// OpenAPIOptions converts the config into loader options.
func (c Config) OpenAPIOptions() openapi.Options {
	return openapi.Options{
		AllowExternalRefs:      c.AllowExternalRefs,
		SkipDocumentValidation: c.SkipDocumentValidation,
		Validation: oaskema.Options{
			MaxDepth:                     c.Validation.MaxDepth,
			CollectAll:                   c.Validation.CollectAll,
			ValidateAdditionalProperties: c.Validation.ValidateAdditionalProperties,
		},
		Decode: oaskema.DecodeOptions{
			RejectDuplicateKeys: c.Decode.RejectDuplicateKeys,
			MaxDepth:            c.Decode.MaxDepth,
			MaxBytes:            c.Decode.MaxBytes,
		},
	}
}
