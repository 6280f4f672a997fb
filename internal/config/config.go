// Copyright 2019 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the query server configuration.
//
// Settings are layered: built in defaults, then an optional YAML file, then
// GFFGRAPH_* environment variables.  Command line flags are applied last by
// the server binary.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/googlegenomics/gffgraph/source"
	"gopkg.in/yaml.v3"
)

const envPrefix = "GFFGRAPH_"

// Dataset names one annotation file served under /datasets/{name}.
type Dataset struct {
	Name string `yaml:"name" validate:"required,excludesall=/?#%"`
	URI  string `yaml:"uri" validate:"required"`
	// Types restricts ingestion to the listed feature types.
	Types []string `yaml:"types,omitempty"`
}

// Config holds every server setting.
type Config struct {
	Port     int    `yaml:"port" validate:"min=1,max=65535"`
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	HTTPSCert string `yaml:"https_cert" validate:"required_with=HTTPSKey"`
	HTTPSKey  string `yaml:"https_key" validate:"required_with=HTTPSCert"`

	Datasets []Dataset `yaml:"datasets" validate:"required,min=1,unique=Name,dive"`

	// RateLimit is the sustained number of requests per second allowed for
	// each client address; zero disables limiting.
	RateLimit float64 `yaml:"rate_limit" validate:"min=0"`
	RateBurst int     `yaml:"rate_burst" validate:"min=0"`

	// MaxRadius bounds the radius accepted by nearest queries.
	MaxRadius int64 `yaml:"max_radius" validate:"min=0"`
	// MaxLimit bounds the number of identifiers returned by type queries.
	MaxLimit int `yaml:"max_limit" validate:"min=1"`

	// Watch reloads local datasets when their files change.
	Watch      bool `yaml:"watch"`
	TrackUsage bool `yaml:"track_usage"`

	// Public reads gs:// datasets without credentials.
	Public bool            `yaml:"public"`
	S3     source.S3Config `yaml:"s3"`
}

// Default returns the default configuration.  It has no datasets and so does
// not validate on its own.
func Default() *Config {
	return &Config{
		Port:      8080,
		LogLevel:  "info",
		RateLimit: 50,
		RateBurst: 100,
		MaxRadius: 1 << 30,
		MaxLimit:  10000,
	}
}

// Load returns the configuration read from the YAML file at path (if path is
// not empty) with environment overrides applied.  The result is not
// validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides settings from GFFGRAPH_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	parse := func(name string, set func(string) error) {
		if v, ok := lookup(envPrefix + name); ok {
			if err := set(v); err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			}
		}
	}

	parse("PORT", func(v string) (err error) { c.Port, err = strconv.Atoi(v); return })
	str("LOG_LEVEL", &c.LogLevel)
	str("HTTPS_CERT", &c.HTTPSCert)
	str("HTTPS_KEY", &c.HTTPSKey)
	parse("DATASETS", func(v string) error {
		datasets, err := ParseDatasets(v)
		c.Datasets = datasets
		return err
	})
	parse("RATE_LIMIT", func(v string) (err error) { c.RateLimit, err = strconv.ParseFloat(v, 64); return })
	parse("RATE_BURST", func(v string) (err error) { c.RateBurst, err = strconv.Atoi(v); return })
	parse("MAX_RADIUS", func(v string) (err error) { c.MaxRadius, err = strconv.ParseInt(v, 10, 64); return })
	parse("MAX_LIMIT", func(v string) (err error) { c.MaxLimit, err = strconv.Atoi(v); return })
	parse("WATCH", func(v string) (err error) { c.Watch, err = strconv.ParseBool(v); return })
	parse("TRACK_USAGE", func(v string) (err error) { c.TrackUsage, err = strconv.ParseBool(v); return })
	parse("PUBLIC", func(v string) (err error) { c.Public, err = strconv.ParseBool(v); return })
	str("S3_ENDPOINT", &c.S3.Endpoint)
	str("S3_ACCESS_KEY", &c.S3.AccessKey)
	str("S3_SECRET_KEY", &c.S3.SecretKey)
	str("S3_REGION", &c.S3.Region)
	parse("S3_INSECURE", func(v string) (err error) { c.S3.Insecure, err = strconv.ParseBool(v); return })

	return errors.Join(errs...)
}

var validate = validator.New()

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var invalid validator.ValidationErrors
		if !errors.As(err, &invalid) {
			return err
		}
		messages := make([]string, len(invalid))
		for i, fe := range invalid {
			messages[i] = fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(messages, "; "))
	}
	return nil
}

// ParseDataset parses a "name=uri" pair.
func ParseDataset(s string) (Dataset, error) {
	name, uri, ok := strings.Cut(s, "=")
	if !ok || name == "" || uri == "" {
		return Dataset{}, fmt.Errorf("invalid dataset %q: want name=uri", s)
	}
	return Dataset{Name: name, URI: uri}, nil
}

// ParseDatasets parses a comma separated list of "name=uri" pairs.
func ParseDatasets(s string) ([]Dataset, error) {
	var datasets []Dataset
	for _, pair := range strings.Split(s, ",") {
		if pair = strings.TrimSpace(pair); pair == "" {
			continue
		}
		dataset, err := ParseDataset(pair)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, dataset)
	}
	return datasets, nil
}
