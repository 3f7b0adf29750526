// Package config loads the proxy configuration from an optional YAML file
// and CHATPROXY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override. Nested keys are separated
// by a double underscore, e.g. CHATPROXY_SERVER__PORT.
const EnvPrefix = "CHATPROXY_"

// DefaultFile is read when no path is given. Its absence is not an error.
const DefaultFile = "config.yaml"

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	OpenAI    OpenAIConfig    `koanf:"openai"`
	Gateway   GatewayConfig   `koanf:"gateway"`
	Chat      ChatConfig      `koanf:"chat"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port           int           `koanf:"port" validate:"min=1,max=65535"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gte=0"`
	CORSOrigins    []string      `koanf:"cors_origins"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
}

// SlogLevel converts the configured level name.
func (c LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

type OpenAIConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url" validate:"omitempty,url"`
}

type GatewayConfig struct {
	MaxTokens    int               `koanf:"max_tokens" validate:"gt=0"`
	ModelAliases map[string]string `koanf:"model_aliases"`
}

// ChatConfig holds the defaults applied to payloads that omit a field.
type ChatConfig struct {
	DefaultModel        string  `koanf:"default_model" validate:"required"`
	DefaultSystemPrompt string  `koanf:"default_system_prompt"`
	DefaultTemperature  float32 `koanf:"default_temperature" validate:"gte=0,lte=1"`
	TestModel           string  `koanf:"test_model" validate:"required"`
}

type TelemetryConfig struct {
	Tracing bool `koanf:"tracing"`
	Metrics bool `koanf:"metrics"`
}

func defaults() map[string]any {
	return map[string]any{
		"server.port":                5001,
		"server.request_timeout":     "0s",
		"server.cors_origins":        []string{"*"},
		"log.level":                  "info",
		"openai.api_key":             "${OPENAI_API_KEY}",
		"openai.base_url":            "https://api.openai.com/v1",
		"gateway.max_tokens":         4000,
		"gateway.model_aliases":      map[string]any{"gemini": "gpt-4o-mini"},
		"chat.default_model":         "gpt-4o-mini",
		"chat.default_system_prompt": "You are a helpful AI assistant.",
		"chat.default_temperature":   0.7,
		"chat.test_model":            "response-test",
		"telemetry.tracing":          false,
		"telemetry.metrics":          true,
	}
}

// Load reads defaults, then the YAML file at path (DefaultFile when empty),
// then environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// A missing default file is fine, we'll use env vars
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)
	cfg.OpenAI.APIKey = substituteEnvVars(cfg.OpenAI.APIKey)
	cfg.OpenAI.BaseURL = substituteEnvVars(cfg.OpenAI.BaseURL)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// splitList flattens comma-separated entries, as env overrides arrive as a
// single string.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
