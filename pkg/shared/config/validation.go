package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DateLayout is the day-granularity layout used by the since option and search date bounds.
const DateLayout = "2006-01-02"

// ValidateConfig checks if the global configurations have valid values.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("YAML global config: configuration object is nil")
	}
	if err := ValidateHTTPConfig(&cfg.HTTPClient); err != nil {
		return fmt.Errorf("YAML global config: http_client directive is invalid: %w", err)
	}
	if err := ValidateSearchConfig(&cfg.Search); err != nil {
		return fmt.Errorf("YAML global config: search directive is invalid: %w", err)
	}
	if err := ValidateSyncConfig(&cfg.Sync); err != nil {
		return fmt.Errorf("YAML global config: sync directive is invalid: %w", err)
	}
	return nil
}

// ValidateHTTPConfig checks if the HTTP configurations have valid values.
func ValidateHTTPConfig(httpConfig *HTTPClient) error {
	if httpConfig == nil {
		return fmt.Errorf("HTTP configuration is nil")
	}
	if httpConfig.RetryCount < 0 || httpConfig.RetryCount > 20 {
		return fmt.Errorf("retry_count must be between 0 and 20: %d", httpConfig.RetryCount)
	}

	durations := map[string]time.Duration{
		"RetryMaxWaitTime": httpConfig.RetryMaxWaitTime,
		"RetryWaitTime":    httpConfig.RetryWaitTime,
		"Timeout":          httpConfig.Timeout,
	}
	for name, duration := range durations {
		if err := validateDuration(duration, name, 300*time.Second); err != nil {
			return err
		}
	}

	if err := validateProxy(&httpConfig.Proxy); err != nil {
		return err
	}

	return nil
}

// ValidateSearchConfig checks the limits of the search endpoint.
func ValidateSearchConfig(s *Search) error {
	if s == nil {
		return fmt.Errorf("search configuration is nil")
	}
	if s.MaxResults < 0 {
		return fmt.Errorf("max_results cannot be negative: %d", s.MaxResults)
	}
	if s.PageSize < 0 || s.PageSize > DefaultPageSize {
		return fmt.Errorf("page_size must be between 1 and %d: %d", DefaultPageSize, s.PageSize)
	}
	if s.MaxResults > 0 && s.PageSize > 0 && s.MaxResults < s.PageSize {
		return fmt.Errorf("max_results (%d) must not be lower than page_size (%d)", s.MaxResults, s.PageSize)
	}
	return validateThreads(s.Threads)
}

// ValidateSyncConfig checks the sync options.
func ValidateSyncConfig(s *Sync) error {
	if s == nil {
		return fmt.Errorf("sync configuration is nil")
	}
	if s.Since != "" {
		if _, err := time.Parse(DateLayout, s.Since); err != nil {
			return fmt.Errorf("since must use the %s layout: %w", DateLayout, err)
		}
	}
	for _, dim := range s.Ignore {
		if !isKnownDimension(dim) {
			return fmt.Errorf("unknown ignore dimension %q", dim)
		}
	}
	for _, login := range s.ServiceAccounts {
		if strings.TrimSpace(login) == "" {
			return fmt.Errorf("service_accounts cannot contain empty logins")
		}
	}
	return validateThreads(s.Threads)
}

// ValidateEndpoint checks that an endpoint names a reachable server and a single population.
func ValidateEndpoint(name string, e *Endpoint) error {
	if e == nil {
		return fmt.Errorf("%s endpoint is nil", name)
	}
	if strings.TrimSpace(e.URL) == "" {
		return fmt.Errorf("%s url is required", name)
	}
	u, err := url.Parse(e.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s url %q is invalid", name, e.URL)
	}
	if strings.TrimSpace(e.Project) == "" {
		return fmt.Errorf("%s project is required", name)
	}
	if e.Branch != "" && e.PullRequest != "" {
		return fmt.Errorf("%s cannot set both branch and pull_request", name)
	}
	return nil
}

func isKnownDimension(dim string) bool {
	switch strings.ToLower(dim) {
	case "message", "file", "line", "component", "author", "type", "severity":
		return true
	}
	return false
}

func validateThreads(n int) error {
	if n < 0 || n > MaxThreads {
		return fmt.Errorf("threads must be between 1 and %d: %d", MaxThreads, n)
	}
	return nil
}

// validateDuration checks that a time.Duration is valid and within a specified maximum duration.
func validateDuration(d time.Duration, name string, max time.Duration) error {
	if d < 0 {
		return fmt.Errorf("invalid duration for %s: %v cannot be negative", name, d)
	}
	if d > max {
		return fmt.Errorf("%s duration is too long: %v exceeds maximum of %v", name, d, max)
	}
	return nil
}

// validateProxy checks if the given Proxy settings are valid.
func validateProxy(proxy *Proxy) error {
	if proxy == nil {
		return fmt.Errorf("proxy configuration is nil")
	}

	// If host or port is not set, skip further validation
	if proxy.Host == "" || proxy.Port == 0 {
		return nil
	}

	if err := validateHost(&proxy.Host); err != nil {
		return err
	}

	return validatePort(proxy.Port)
}

// validateHost ensures the host includes a scheme; adds "http" if missing.
func validateHost(host *string) error {
	if host == nil {
		return fmt.Errorf("host string pointer is nil")
	}

	if !strings.Contains(*host, "://") {
		*host = "http://" + *host
	}
	*host = strings.TrimRight(*host, "/")

	if _, err := url.Parse(*host); err != nil {
		return fmt.Errorf("invalid host URL: %w", err)
	}

	return nil
}

// validatePort checks if the port part of the proxy configuration is valid.
func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}
