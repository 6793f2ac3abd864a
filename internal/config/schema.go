// Package config is the client's configuration tree: signing keys, serve
// limits, and telemetry settings, resolved from built-in defaults, an
// optional JSON file, and environment variables, in that priority order.
package config

import "time"

// Config is the root configuration object a Client is built from.
type Config struct {
	AppID string `json:"appId" env:"STEPFLOW_APP_ID"`
	Env   string `json:"env" env:"STEPFLOW_ENV" default:"production"`

	Signing   SigningConfig   `json:"signing"`
	Serve     ServeConfig     `json:"serve"`
	Telemetry TelemetryConfig `json:"telemetry"`
	Dispatch  DispatchConfig  `json:"dispatch"`
}

// SigningConfig controls request/response signature verification.
type SigningConfig struct {
	// SigningKey is the primary key used to verify inbound requests and
	// sign outbound responses. Carries the "signkey-<env>-" prefix as
	// issued by the platform; the prefix is stripped before use.
	SigningKey string `json:"signingKey" env:"STEPFLOW_SIGNING_KEY"`
	// FallbackSigningKey is tried if SigningKey fails verification,
	// supporting zero-downtime key rotation.
	FallbackSigningKey string `json:"fallbackSigningKey" env:"STEPFLOW_SIGNING_KEY_FALLBACK"`
	// Disabled skips signature verification entirely. Only ever set
	// true for local development.
	Disabled bool `json:"disabled" env:"STEPFLOW_SIGNING_DISABLED" default:"false"`
}

// ServeConfig bounds the HTTP comm handler.
type ServeConfig struct {
	ServeOrigin string        `json:"serveOrigin" env:"STEPFLOW_SERVE_ORIGIN"`
	ServePath   string        `json:"servePath" env:"STEPFLOW_SERVE_PATH" default:"/api/stepflow"`
	MaxBodyBytes int64        `json:"maxBodyBytes" env:"STEPFLOW_MAX_BODY_BYTES" default:"5242880"`
	StreamingEnabled bool     `json:"streamingEnabled" env:"STEPFLOW_STREAMING_ENABLED" default:"true"`
	StreamHeartbeat  time.Duration `json:"streamHeartbeat" env:"STEPFLOW_STREAM_HEARTBEAT" default:"10s"`
}

// TelemetryConfig controls the structured logger.
type TelemetryConfig struct {
	LogLevel string `json:"logLevel" env:"STEPFLOW_LOG_LEVEL" default:"info"`
}

// DispatchConfig controls outbound calls back to the platform API (event
// sends and out-of-band function registration).
type DispatchConfig struct {
	APIBaseURL     string        `json:"apiBaseUrl" env:"STEPFLOW_API_BASE_URL" default:"https://api.stepflow.dev"`
	EventKey       string        `json:"eventKey" env:"STEPFLOW_EVENT_KEY"`
	RequestTimeout time.Duration `json:"requestTimeout" env:"STEPFLOW_REQUEST_TIMEOUT" default:"10s"`
	MaxRetries     int           `json:"maxRetries" env:"STEPFLOW_MAX_RETRIES" default:"3"`
	RateLimitRPS   int           `json:"rateLimitRps" env:"STEPFLOW_RATE_LIMIT_RPS" default:"20"`
}

// Default returns a Config populated with built-in defaults, the same
// values documented by GetEnvDocs.
func Default() *Config {
	return &Config{
		Env: "production",
		Signing: SigningConfig{
			Disabled: false,
		},
		Serve: ServeConfig{
			ServePath:        "/api/stepflow",
			MaxBodyBytes:     5 * 1024 * 1024,
			StreamingEnabled: true,
			StreamHeartbeat:  10 * time.Second,
		},
		Telemetry: TelemetryConfig{
			LogLevel: "info",
		},
		Dispatch: DispatchConfig{
			APIBaseURL:     "https://api.stepflow.dev",
			RequestTimeout: 10 * time.Second,
			MaxRetries:     3,
			RateLimitRPS:   20,
		},
	}
}
