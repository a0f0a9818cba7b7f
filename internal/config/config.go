// internal/config/config.go
package config

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Default addresses. The log listener and the generation backend sit on
// fixed loopback ports; the env vars below only override them.
const (
	DefaultLogAddr    = "127.0.0.1:9999"
	DefaultBackendURL = "http://localhost:8888/generate"
	DefaultUIAddr     = "127.0.0.1:9998"
)

// Config
//
// Every value the shell needs at runtime. Load() fills it once at process
// start; after that it is read-only and passed by value.
type Config struct {

	// ---------------------------
	// Identity / logging
	// ---------------------------

	ServiceName string // "service" field on every log line
	InstanceID  string // hostname, random hex if unavailable
	LogLevel    string // zerolog level name (debug, info, warn, ...)
	LogPretty   bool   // console writer instead of JSON
	LogSampleN  uint32 // keep 1/N debug+info lines, 0 or 1 disables sampling

	// ---------------------------
	// Network (loopback only)
	// ---------------------------

	LogAddr     string // log ingest listener bind address
	BackendURL  string // generation backend endpoint for the proxy call
	UIAddr      string // UI bridge websocket bind address
	MetricsAddr string // prometheus listener, empty disables it

	// ---------------------------
	// Ingest parameters
	// ---------------------------

	MaxBodySize  int64         // upper bound for a /log body, after decompression
	ChannelSize  int           // dispatcher queue length
	EchoBanner   bool          // print each banner to stdout as well
	ReadTimeout  time.Duration // per-connection read timeout on the log listener
	WriteTimeout time.Duration // per-connection write timeout on the log listener
}

// Default returns the configuration used when no env var is set.
func Default() Config {
	return Config{
		ServiceName: "agentlog-shell",
		InstanceID:  fallbackInstanceID(),
		LogLevel:    "info",
		LogPretty:   true,

		LogAddr:    DefaultLogAddr,
		BackendURL: DefaultBackendURL,
		UIAddr:     DefaultUIAddr,

		MaxBodySize:  1 << 20,
		ChannelSize:  256,
		EchoBanner:   true,
		ReadTimeout:  8 * time.Second,
		WriteTimeout: 8 * time.Second,
	}
}

// Load
//
// Starts from Default() and applies env overrides. A malformed value or a
// non-loopback listen address is fatal: the shell must never expose the
// ingest port beyond the local machine.
func Load() Config {
	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	return cfg
}

// FromEnv is Load without the fatal exit, reading values through getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()
	p := parser{getenv: getenv}

	cfg.ServiceName = p.str("SERVICE_NAME", cfg.ServiceName)
	cfg.InstanceID = p.str("INSTANCE_ID", cfg.InstanceID)
	cfg.LogLevel = p.str("LOG_LEVEL", cfg.LogLevel)
	cfg.LogPretty = p.boolean("LOG_PRETTY", cfg.LogPretty)
	cfg.LogSampleN = uint32(p.integer("LOG_SAMPLE_N", int(cfg.LogSampleN)))

	cfg.LogAddr = p.str("LOG_ADDR", cfg.LogAddr)
	cfg.BackendURL = p.str("BACKEND_URL", cfg.BackendURL)
	cfg.UIAddr = p.str("UI_ADDR", cfg.UIAddr)
	cfg.MetricsAddr = p.str("METRICS_ADDR", cfg.MetricsAddr)

	cfg.MaxBodySize = p.int64("MAX_BODY_SIZE", cfg.MaxBodySize)
	cfg.ChannelSize = p.integer("CHANNEL_SIZE", cfg.ChannelSize)
	cfg.EchoBanner = p.boolean("ECHO_BANNER", cfg.EchoBanner)
	cfg.ReadTimeout = p.duration("READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = p.duration("WRITE_TIMEOUT", cfg.WriteTimeout)

	if p.err != nil {
		return Config{}, p.err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants Load relies on.
func (c Config) Validate() error {
	if err := requireLoopback("LOG_ADDR", c.LogAddr); err != nil {
		return err
	}
	if err := requireLoopback("UI_ADDR", c.UIAddr); err != nil {
		return err
	}
	if c.MetricsAddr != "" {
		if err := requireLoopback("METRICS_ADDR", c.MetricsAddr); err != nil {
			return err
		}
	}
	if _, err := url.ParseRequestURI(c.BackendURL); err != nil {
		return &FieldError{Key: "BACKEND_URL", Value: c.BackendURL, Err: err}
	}
	if c.MaxBodySize <= 0 {
		return &FieldError{Key: "MAX_BODY_SIZE", Value: strconv.FormatInt(c.MaxBodySize, 10), Err: errNotPositive}
	}
	if c.ChannelSize <= 0 {
		return &FieldError{Key: "CHANNEL_SIZE", Value: strconv.Itoa(c.ChannelSize), Err: errNotPositive}
	}
	return nil
}

// requireLoopback accepts "127.0.0.1:port", "[::1]:port" and "localhost:port".
func requireLoopback(key, addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return &FieldError{Key: key, Value: addr, Err: err}
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return &FieldError{Key: key, Value: addr, Err: errNotLoopback}
	}
	return nil
}

// fallbackInstanceID
//
// Identifies this shell process in logs.
//   - default: hostname
//   - fallback: 12 random hex chars
func fallbackInstanceID() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	var b [6]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}
