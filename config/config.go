// Package config loads process configuration from an optional YAML file
// and environment variables. Every field has a default, so the binary runs
// locally without any setup.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/hephaestus/server"
)

// Config holds runtime configuration for every sub-command.
type Config struct {
	HTTP           HTTPConfig      `yaml:"http"`
	WebSocket      WebSocketConfig `yaml:"websocket"`
	Provider       ProviderConfig  `yaml:"provider"`
	Log            LogConfig       `yaml:"log"`
	Limits         LimitsConfig    `yaml:"limits"`
	Protocol       ProtocolConfig  `yaml:"protocol"`
	RequestTimeout time.Duration   `yaml:"request_timeout"` // 0 = none
}

// HTTPConfig configures the HTTP listener.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	DrainDelay      time.Duration `yaml:"drain_delay"` // keep accepting after shutdown starts
	CORSOrigins     []string      `yaml:"cors_origins"`
}

// WebSocketConfig configures the optional WebSocket listener.
type WebSocketConfig struct {
	Addr string `yaml:"addr"` // empty = disabled
}

// ProviderConfig selects the remote provider the daemon proxies to.
// Command, when set, wins over URL.
type ProviderConfig struct {
	URL     string        `yaml:"url"`
	Command string        `yaml:"command"`
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LimitsConfig bounds message size and request rate.
type LimitsConfig struct {
	MaxMessageBytes int64 `yaml:"max_message_bytes"`
	Rate            int   `yaml:"rate"`  // requests per second, 0 = unlimited
	Burst           int   `yaml:"burst"` // 0 = same as rate
}

// ProtocolConfig tunes request validation.
type ProtocolConfig struct {
	IDPolicy       string `yaml:"id_policy"`
	LegacyToolName bool   `yaml:"legacy_tool_name"`
}

// Environment variable names.
const (
	EnvConfigFile      = "HEPHAESTUS_CONFIG"
	EnvHTTPAddr        = "HEPHAESTUS_HTTP_ADDR"
	EnvWebSocketAddr   = "HEPHAESTUS_WS_ADDR"
	EnvCORSOrigins     = "HEPHAESTUS_CORS_ORIGINS"
	EnvDrainDelay      = "HEPHAESTUS_DRAIN_DELAY"
	EnvProviderURL     = "HEPHAESTUS_PROVIDER_URL"
	EnvBlenderURL      = "BLENDER_MCP_HTTP_URL"
	EnvProviderCommand = "HEPHAESTUS_PROVIDER_COMMAND"
	EnvProviderTimeout = "HEPHAESTUS_PROVIDER_TIMEOUT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogFormat       = "HEPHAESTUS_LOG_FORMAT"
	EnvMaxMessageBytes = "HEPHAESTUS_MAX_MESSAGE_BYTES"
	EnvRateLimit       = "HEPHAESTUS_RATE_LIMIT"
	EnvRateBurst       = "HEPHAESTUS_RATE_BURST"
	EnvRequestTimeout  = "HEPHAESTUS_REQUEST_TIMEOUT"
	EnvIDPolicy        = "HEPHAESTUS_ID_POLICY"
	EnvLegacyToolName  = "HEPHAESTUS_LEGACY_TOOL_NAME"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            "127.0.0.1:8765",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Provider: ProviderConfig{
			URL:     "http://127.0.0.1:8765/mcp",
			Timeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Limits: LimitsConfig{
			MaxMessageBytes: 1 << 20,
		},
		Protocol: ProtocolConfig{
			IDPolicy: server.IDPolicyString.String(),
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path,
// then environment overrides. An empty path falls back to
// HEPHAESTUS_CONFIG; with neither no file is read. The result is
// validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeYAML overlays data onto cfg, rejecting unknown keys.
func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	env := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	var errs []error
	setString := func(key string, dst *string) {
		if v, ok := env(key); ok {
			*dst = v
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v, ok := env(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := env(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	setString(EnvHTTPAddr, &c.HTTP.Addr)
	setString(EnvWebSocketAddr, &c.WebSocket.Addr)
	setDuration(EnvDrainDelay, &c.HTTP.DrainDelay)
	if v, ok := env(EnvCORSOrigins); ok {
		c.HTTP.CORSOrigins = splitList(v)
	}

	setString(EnvBlenderURL, &c.Provider.URL)
	setString(EnvProviderURL, &c.Provider.URL)
	setString(EnvProviderCommand, &c.Provider.Command)
	setDuration(EnvProviderTimeout, &c.Provider.Timeout)

	setString(EnvLogLevel, &c.Log.Level)
	setString(EnvLogFormat, &c.Log.Format)

	if v, ok := env(EnvMaxMessageBytes); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvMaxMessageBytes, err))
		} else {
			c.Limits.MaxMessageBytes = n
		}
	}
	setInt(EnvRateLimit, &c.Limits.Rate)
	setInt(EnvRateBurst, &c.Limits.Burst)
	setDuration(EnvRequestTimeout, &c.RequestTimeout)

	setString(EnvIDPolicy, &c.Protocol.IDPolicy)
	if v, ok := env(EnvLegacyToolName); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvLegacyToolName, err))
		} else {
			c.Protocol.LegacyToolName = b
		}
	}

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error

	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr must not be empty"))
	}
	for name, d := range map[string]time.Duration{
		"http.read_timeout":     c.HTTP.ReadTimeout,
		"http.write_timeout":    c.HTTP.WriteTimeout,
		"http.shutdown_timeout": c.HTTP.ShutdownTimeout,
		"http.drain_delay":      c.HTTP.DrainDelay,
		"provider.timeout":      c.Provider.Timeout,
		"request_timeout":       c.RequestTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}

	if c.Provider.Command == "" {
		u, err := url.Parse(c.Provider.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("provider.url %q must be an http(s) URL", c.Provider.URL))
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q must be debug, info, warn or error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be json or text", c.Log.Format))
	}

	if c.Limits.MaxMessageBytes <= 0 {
		errs = append(errs, errors.New("limits.max_message_bytes must be positive"))
	}
	if c.Limits.Rate < 0 || c.Limits.Burst < 0 {
		errs = append(errs, errors.New("limits.rate and limits.burst must not be negative"))
	}

	if _, err := server.ParseIDPolicy(c.Protocol.IDPolicy); err != nil {
		errs = append(errs, fmt.Errorf("protocol.id_policy: %w", err))
	}

	return errors.Join(errs...)
}

// IDPolicy returns the parsed id policy. Call Validate first.
func (c Config) IDPolicy() server.IDPolicy {
	p, _ := server.ParseIDPolicy(c.Protocol.IDPolicy)
	return p
}

// ProviderCommand splits Provider.Command into a program and its
// arguments. ok is false when no command is configured.
func (c Config) ProviderCommand() (name string, args []string, ok bool) {
	fields := strings.Fields(c.Provider.Command)
	if len(fields) == 0 {
		return "", nil, false
	}
	return fields[0], fields[1:], true
}
