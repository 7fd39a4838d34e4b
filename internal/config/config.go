// Package config resolves run settings from defaults, an optional YAML
// preset and REHASH_* environment variables. Command line flags are applied
// on top by the cmd package.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"rehash/internal/encode"
	"rehash/internal/perturb"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "REHASH_"

type Config struct {
	Params  perturb.Params `yaml:"params"`
	Quality float64        `yaml:"quality"`
	Encoder string         `yaml:"encoder"`
	Workers int            `yaml:"workers"`
	// Seed makes runs reproducible when set.
	Seed *uint64 `yaml:"seed,omitempty"`
}

// Default mirrors the initial state of the controls: one pixel of canvas
// growth, light noise and the metadata trailer on.
func Default() Config {
	return Config{
		Params: perturb.Params{
			PixelShift:     1,
			NoiseLevel:     2,
			ModifyMetadata: true,
			Profile:        perturb.ProfileStandard.Name,
		},
		Quality: encode.DefaultQuality,
		Encoder: string(encode.BackendStd),
	}
}

// Load returns Default overlaid with the preset at path (if any) and the
// process environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decodeYAML(bytes.NewReader(data)); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) decodeYAML(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from REHASH_* variables that are set.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	var errs []error
	lookup := func(name string) (string, bool) {
		v := strings.TrimSpace(getenv(EnvPrefix + name))
		return v, v != ""
	}
	float := func(name string, dst *float64) {
		if v, ok := lookup(name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = f
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	float("BRIGHTNESS", &c.Params.Brightness)
	float("CONTRAST", &c.Params.Contrast)
	integer("PIXEL_SHIFT", &c.Params.PixelShift)
	integer("NOISE", &c.Params.NoiseLevel)
	boolean("WATERMARK", &c.Params.Watermark)
	boolean("MODIFY_METADATA", &c.Params.ModifyMetadata)
	if v, ok := lookup("PROFILE"); ok {
		c.Params.Profile = v
	}
	float("QUALITY", &c.Quality)
	if v, ok := lookup("ENCODER"); ok {
		c.Encoder = v
	}
	integer("WORKERS", &c.Workers)
	if v, ok := lookup("SEED"); ok {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSEED: %w", EnvPrefix, err))
		} else {
			c.Seed = &seed
		}
	}

	return errors.Join(errs...)
}

func (c Config) Validate() error {
	if err := c.Params.Validate(); err != nil {
		return err
	}
	if _, err := c.EncoderOptions(); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

func (c Config) EncoderOptions() (encode.Options, error) {
	backend, err := encode.ParseBackend(c.Encoder)
	if err != nil {
		return encode.Options{}, err
	}
	if c.Quality <= 0 || c.Quality > 1 {
		return encode.Options{}, fmt.Errorf("quality %v outside (0,1]", c.Quality)
	}
	return encode.Options{Quality: c.Quality, Backend: backend}, nil
}

// RandSource returns the per-image generator factory for the configured
// seed, or nil for fresh randomness on every call.
func (c Config) RandSource() func(index int) *rand.Rand {
	if c.Seed == nil {
		return nil
	}
	seed := *c.Seed
	return func(index int) *rand.Rand {
		return perturb.SeededRand(seed + uint64(index))
	}
}
