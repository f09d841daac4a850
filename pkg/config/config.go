// Package config loads layered YAML configuration with environment variable
// expansion.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by configs that check themselves after loading.
type Validator interface {
	Validate() error
}

// Load reads one YAML file into target and validates it.
func Load[T any](filename string, target *T) error {
	return LoadLayered(target, filename)
}

// LoadLayered decodes base and then every overlay that exists on top of
// target, so later files only need the keys they change. base must exist;
// missing overlays are skipped. Unknown keys are rejected in every file.
// Validation runs once, after the last layer.
func LoadLayered[T any](target *T, base string, overlays ...string) error {
	if err := decodeFile(base, target); err != nil {
		return err
	}
	for _, name := range overlays {
		if name == "" {
			continue
		}
		if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := decodeFile(name, target); err != nil {
			return err
		}
	}

	if v, ok := any(target).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

func decodeFile(filename string, target any) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	dec := yaml.NewDecoder(strings.NewReader(ExpandEnv(string(data))))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return nil
}

// ExpandEnv replaces ${VAR}, ${VAR:-default} and $VAR in s. The default is
// used when VAR is unset or empty.
func ExpandEnv(s string) string {
	return os.Expand(s, func(key string) string {
		name, def, hasDefault := strings.Cut(key, ":-")
		if v := os.Getenv(name); v != "" || !hasDefault {
			return v
		}
		return def
	})
}
