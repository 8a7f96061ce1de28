package redisstream

import (
	"fmt"
	"time"

	"github.com/trickstertwo/xdispatch"
)

// Config for the Redis Streams notification sink.
type Config struct {
	// Connection
	Addr          string
	Username      string
	Password      string
	DB            int
	TLS           bool
	TLSServerName string

	// Stream management
	Stream       string
	MaxLenApprox int64

	// Encoding and writes
	Codec   string
	Timeout time.Duration

	// Types restricts exported notifications; empty exports everything.
	Types []xdispatch.NotificationType
}

// Defaults returns a Config with production-safe defaults.
func Defaults() Config {
	return Config{
		Addr:         "127.0.0.1:6379",
		Stream:       "xdispatch:notifications",
		MaxLenApprox: 10000,
		Codec:        "json",
		Timeout:      2 * time.Second,
	}
}

// Validate checks Config for production readiness.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: addr required")
	}
	if c.Stream == "" {
		return fmt.Errorf("config: stream required")
	}
	if c.MaxLenApprox < 0 {
		return fmt.Errorf("config: max_len_approx must be >= 0, got %d", c.MaxLenApprox)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be > 0, got %v", c.Timeout)
	}
	if _, err := xdispatch.NewCodec(c.Codec); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ConfigFromMap safely converts cfg into Config with defaults.
func ConfigFromMap(cfg map[string]any) Config {
	d := Defaults()

	getString := func(k, def string) string {
		if v, ok := cfg[k].(string); ok && v != "" {
			return v
		}
		return def
	}
	getInt64 := func(k string, def int64) int64 {
		switch v := cfg[k].(type) {
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
		return def
	}
	getBool := func(k string, def bool) bool {
		if v, ok := cfg[k].(bool); ok {
			return v
		}
		return def
	}
	getDur := func(k string, def time.Duration) time.Duration {
		switch v := cfg[k].(type) {
		case time.Duration:
			return v
		case string:
			if p, err := time.ParseDuration(v); err == nil {
				return p
			}
		case float64:
			return time.Duration(v)
		}
		return def
	}

	var types []xdispatch.NotificationType
	switch v := cfg["types"].(type) {
	case []string:
		for _, s := range v {
			types = append(types, xdispatch.NotificationType(s))
		}
	case []any:
		for _, s := range v {
			if str, ok := s.(string); ok {
				types = append(types, xdispatch.NotificationType(str))
			}
		}
	case []xdispatch.NotificationType:
		types = append(types, v...)
	}

	return Config{
		Addr:          getString("addr", d.Addr),
		Username:      getString("username", ""),
		Password:      getString("password", ""),
		DB:            int(getInt64("db", 0)),
		TLS:           getBool("tls", false),
		TLSServerName: getString("tls_server_name", ""),

		Stream:       getString("stream", d.Stream),
		MaxLenApprox: getInt64("max_len_approx", d.MaxLenApprox),

		Codec:   getString("codec", d.Codec),
		Timeout: getDur("timeout", d.Timeout),

		Types: types,
	}
}
