package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"time"
)

// Load resolves configuration from, in increasing priority: built-in
// defaults, an optional JSON file (STEPFLOW_CONFIG_PATH or
// ~/.stepflow/config.json), then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := configFilePath(); path != "" {
		if err := loadFromFile(cfg, path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	return cfg, nil
}

// LoadFromFile loads configuration starting from defaults and a specific
// file path, ignoring environment variables.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if err := loadFromFile(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

func loadFromEnv(cfg *Config) error {
	return loadStructFromEnv(reflect.ValueOf(cfg).Elem())
}

func loadStructFromEnv(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)
		if !field.CanSet() {
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			if field.Kind() == reflect.Struct {
				if err := loadStructFromEnv(field); err != nil {
					return err
				}
			}
			continue
		}

		if value := os.Getenv(envTag); value != "" {
			if err := setField(field, value); err != nil {
				return fmt.Errorf("setting %s: %w", envTag, err)
			}
		}
	}
	return nil
}

func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("parsing duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing int: %w", err)
		}
		field.SetInt(n)
	case reflect.Int32:
		n, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return fmt.Errorf("parsing int32: %w", err)
		}
		field.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("parsing bool: %w", err)
		}
		field.SetBool(b)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("parsing float64: %w", err)
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}

func configFilePath() string {
	if path := os.Getenv("STEPFLOW_CONFIG_PATH"); path != "" {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	paths := []string{
		filepath.Join(home, ".stepflow", "config.json"),
		filepath.Join(home, ".stepflow.json"),
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Save writes cfg to path as indented JSON, creating parent directories
// as needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// GetEnvDocs returns a human-readable description for every environment
// variable Config honors.
func GetEnvDocs() map[string]string {
	return map[string]string{
		"STEPFLOW_APP_ID":               "Application identifier sent with every registration",
		"STEPFLOW_ENV":                  "Environment name, e.g. production or branch name (default: production)",
		"STEPFLOW_SIGNING_KEY":          "Primary signing key used to verify and sign requests",
		"STEPFLOW_SIGNING_KEY_FALLBACK": "Fallback signing key tried during key rotation",
		"STEPFLOW_SIGNING_DISABLED":     "Disable signature verification, local development only (default: false)",
		"STEPFLOW_SERVE_ORIGIN":         "Public origin the serve handler is reachable at",
		"STEPFLOW_SERVE_PATH":           "Path the serve handler is mounted at (default: /api/stepflow)",
		"STEPFLOW_MAX_BODY_BYTES":       "Maximum accepted request body size in bytes (default: 5242880)",
		"STEPFLOW_STREAMING_ENABLED":    "Streaming responses with heartbeat keep-alive; loaded but not read, the serve handler never streams (default: true)",
		"STEPFLOW_STREAM_HEARTBEAT":     "Heartbeat interval for streaming responses; loaded but not read, the serve handler never streams (default: 10s)",
		"STEPFLOW_LOG_LEVEL":            "Log level: debug, info, warn, error (default: info)",
		"STEPFLOW_API_BASE_URL":         "Base URL for outbound event sends (default: https://api.stepflow.dev)",
		"STEPFLOW_EVENT_KEY":            "Key used to authenticate outbound event sends",
		"STEPFLOW_REQUEST_TIMEOUT":      "Timeout for outbound dispatch requests (default: 10s)",
		"STEPFLOW_MAX_RETRIES":          "Max retries for outbound dispatch requests; loaded but not read, the event sender always makes three attempts per batch (default: 3)",
		"STEPFLOW_RATE_LIMIT_RPS":       "Outbound dispatch rate limit, requests per second (default: 20)",
		"STEPFLOW_CONFIG_PATH":          "Path to a config file, overriding the default search path",
	}
}
