package config

import (
	"bytes"
	"encoding"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes the environment override of every field without an explicit env tag.
const EnvPrefix = "PLANRELAY_"

// EnvConfigPath names the config file when --config is not given.
const EnvConfigPath = "PLANRELAY_CONFIG"

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads the YAML file at path (optional; empty means environment only), substitutes
// ${VAR} placeholders, applies environment overrides and defaults, and validates the result.
// A missing API key is not an error.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Replace environment variable placeholders.
		dataStr := envVarRegex.ReplaceAllStringFunc(string(data), func(match string) string {
			envVar := match[2 : len(match)-1]
			if value := os.Getenv(envVar); value != "" {
				return value
			}
			return match
		})

		dec := yaml.NewDecoder(bytes.NewBufferString(dataStr))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// EnvKey returns the environment variable that overrides the field with the given yaml name.
func EnvKey(field reflect.StructField) string {
	if key := field.Tag.Get("env"); key != "" {
		return key
	}
	name := strings.Split(field.Tag.Get("yaml"), ",")[0]
	if name == "" || name == "-" {
		return ""
	}
	return EnvPrefix + strings.ToUpper(name)
}

func applyEnvOverrides(cfg *Config) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		key := EnvKey(t.Field(i))
		if key == "" {
			continue
		}
		envValue, ok := os.LookupEnv(key)
		if !ok || envValue == "" {
			continue
		}
		if err := setFieldFromEnv(v.Field(i), envValue); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	return nil
}

func setFieldFromEnv(field reflect.Value, envValue string) error {
	if !field.CanSet() {
		return nil
	}

	if u, ok := field.Addr().Interface().(encoding.TextUnmarshaler); ok {
		return u.UnmarshalText([]byte(envValue)) //nolint:wrapcheck // wrapped by caller
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int, reflect.Int64:
		val, err := strconv.ParseInt(strings.TrimSpace(envValue), 10, 64)
		if err != nil {
			return fmt.Errorf("failed to parse int from '%s': %w", envValue, err)
		}
		field.SetInt(val)
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}

// applyDefaults sets default values for missing configuration.
func applyDefaults(cfg *Config) {
	// An unresolved ${VAR} is not a credential.
	if envVarRegex.MatchString(cfg.APIKey) {
		cfg.APIKey = ""
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.LogVerbosity == "" {
		cfg.LogVerbosity = DefaultVerbosity
	}
	if !cfg.AllowedOrigins.IsSet() {
		cfg.AllowedOrigins = AnyOrigin()
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.ShutdownTimeoutSec == 0 {
		cfg.ShutdownTimeoutSec = DefaultShutdownTimeout
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port %d out of range", cfg.Port)
	}
	if !cfg.LogVerbosity.Valid() {
		return fmt.Errorf("log_verbosity must be quiet, normal or verbose, got %q", cfg.LogVerbosity)
	}
	if cfg.MaxBodyBytes < 0 {
		return fmt.Errorf("max_body_bytes must not be negative")
	}
	if cfg.ShutdownTimeoutSec < 0 {
		return fmt.Errorf("shutdown_timeout_sec must not be negative")
	}
	if cfg.PromptTemplate != "" && cfg.PromptTemplateFile != "" {
		return fmt.Errorf("prompt_template and prompt_template_file are mutually exclusive")
	}
	return nil
}

// LoadPromptTemplate returns the configured template source, reading prompt_template_file
// when set. An empty result selects the built-in template.
func (c *Config) LoadPromptTemplate() (string, error) {
	if c.PromptTemplateFile == "" {
		return c.PromptTemplate, nil
	}
	data, err := os.ReadFile(c.PromptTemplateFile)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt template file: %w", err)
	}
	return string(data), nil
}
