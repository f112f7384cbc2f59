// Package config loads the relay configuration from an optional YAML file and the environment.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"planrelay/pkg/logx"
)

// Defaults.
const (
	DefaultPort               = 8080
	DefaultMaxBodyBytes int64 = 100 * 1024
	DefaultShutdownTimeout    = 5
	DefaultVerbosity          = VerbosityNormal
)

// Config is constructed once at startup and read-only afterwards.
type Config struct {
	Host               string    `yaml:"host"`
	APIKey             string    `yaml:"api_key" env:"GEMINI_API_KEY"`
	Model              string    `yaml:"model"`
	UpstreamBaseURL    string    `yaml:"upstream_base_url"`
	LogVerbosity       Verbosity `yaml:"log_verbosity"`
	PromptTemplate     string    `yaml:"prompt_template"`
	PromptTemplateFile string    `yaml:"prompt_template_file"`
	AllowedOrigins     Origins   `yaml:"allowed_origins"`
	MaxBodyBytes       int64     `yaml:"max_body_bytes"`
	Port               int       `yaml:"port" env:"PORT"`
	ShutdownTimeoutSec int       `yaml:"shutdown_timeout_sec"`
}

// HasAPIKey reports whether the upstream credential is present.
func (c *Config) HasAPIKey() bool {
	return c.APIKey != ""
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Verbosity selects how much the relay logs.
type Verbosity string

const (
	VerbosityQuiet   Verbosity = "quiet"
	VerbosityNormal  Verbosity = "normal"
	VerbosityVerbose Verbosity = "verbose"
)

// Level maps verbosity onto the minimum logx level.
func (v Verbosity) Level() logx.Level {
	switch v {
	case VerbosityQuiet:
		return logx.LevelWarn
	case VerbosityVerbose:
		return logx.LevelDebug
	default:
		return logx.LevelInfo
	}
}

// Valid reports whether v is a known verbosity.
func (v Verbosity) Valid() bool {
	switch v {
	case VerbosityQuiet, VerbosityNormal, VerbosityVerbose:
		return true
	default:
		return false
	}
}

// Origins is the CORS allow-list: either any origin or an explicit set.
// The zero value is unset and becomes AnyOrigin during loading.
type Origins struct {
	list []string
	all  bool
}

// AnyOrigin allows every origin.
func AnyOrigin() Origins {
	return Origins{all: true}
}

// NewOrigins allows exactly the given origins.
func NewOrigins(origins ...string) Origins {
	var o Origins
	for _, origin := range origins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			o.list = append(o.list, origin)
		}
	}
	return o
}

// IsAny reports whether every origin is allowed.
func (o Origins) IsAny() bool {
	return o.all
}

// IsSet reports whether the allow-list was configured.
func (o Origins) IsSet() bool {
	return o.all || len(o.list) > 0
}

// List returns a copy of the explicit origins. Empty when IsAny.
func (o Origins) List() []string {
	return append([]string(nil), o.list...)
}

// Allows reports whether origin may call the relay.
func (o Origins) Allows(origin string) bool {
	if o.all {
		return true
	}
	for _, allowed := range o.list {
		if allowed == origin {
			return true
		}
	}
	return false
}

func (o Origins) String() string {
	if o.all {
		return "any"
	}
	return strings.Join(o.list, ",")
}

// UnmarshalText parses "any" (or "*") or a comma-separated list.
func (o *Origins) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if strings.EqualFold(s, "any") || s == "*" {
		*o = AnyOrigin()
		return nil
	}
	parsed := NewOrigins(strings.Split(s, ",")...)
	if !parsed.IsSet() {
		return fmt.Errorf("allowed_origins must be \"any\" or a list of origins, got %q", s)
	}
	*o = parsed
	return nil
}

// UnmarshalYAML accepts a scalar ("any" or comma list) or a sequence of origins.
func (o *Origins) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return o.UnmarshalText([]byte(node.Value))
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return fmt.Errorf("failed to decode allowed_origins: %w", err)
		}
		if len(list) == 1 && (strings.EqualFold(list[0], "any") || list[0] == "*") {
			*o = AnyOrigin()
			return nil
		}
		*o = NewOrigins(list...)
		return nil
	default:
		return fmt.Errorf("allowed_origins must be a string or a list")
	}
}
