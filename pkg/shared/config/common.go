package config

import (
	"crypto/tls"
	"time"
)

// BaseHTTPConfig holds common HTTP client configuration settings.
type BaseHTTPConfig struct {
	RetryCount       int
	RetryWaitTime    time.Duration
	RetryMaxWaitTime time.Duration
	Timeout          time.Duration
	TLSClientConfig  *tls.Config
	Proxy            string
}

// RestyHTTPClientConfig holds additional configuration settings for the resty http client.
type RestyHTTPClientConfig struct {
	BaseHTTPConfig
	Debug bool
}

// DefaultHTTPConfig returns the base configuration applicable to all HTTP clients.
// Retries are disabled: a failed request aborts the enclosing operation.
func DefaultHTTPConfig() BaseHTTPConfig {
	return BaseHTTPConfig{
		RetryCount:       0,
		RetryWaitTime:    1 * time.Second,
		RetryMaxWaitTime: 5 * time.Second,
		Timeout:          30 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12, // Enforce a minimum TLS version
		},
		Proxy: "",
	}
}

// DefaultRestyConfig returns a specific http config to Resty.
func DefaultRestyConfig() RestyHTTPClientConfig {
	return RestyHTTPClientConfig{
		BaseHTTPConfig: DefaultHTTPConfig(),
		Debug:          false,
	}
}

const (
	DefaultMaxResults = 10000
	DefaultPageSize   = 500
	DefaultThreads    = 8
	MaxThreads        = 32
)

// SearchLimits returns the search settings with defaults applied.
func SearchLimits(cfg *Config) Search {
	var s Search
	if cfg != nil {
		s = cfg.Search
	}
	return Search{
		MaxResults: SetThen(s.MaxResults, DefaultMaxResults),
		PageSize:   SetThen(s.PageSize, DefaultPageSize),
		Threads:    SetThen(s.Threads, DefaultThreads),
	}
}
