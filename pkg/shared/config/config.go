package config

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// Config is the global YAML configuration of the tool.
type Config struct {
	Logger     Logger     `yaml:"logger"`
	HTTPClient HTTPClient `yaml:"http_client"`
	Source     Endpoint   `yaml:"source"`
	Target     Endpoint   `yaml:"target"`
	Sync       Sync       `yaml:"sync"`
	Search     Search     `yaml:"search"`
}

type Logger struct {
	Level           string `yaml:"level"`
	JSONFormat      *bool  `yaml:"json_format"`
	DisableTime     *bool  `yaml:"disable_time"`
	IncludeLocation *bool  `yaml:"include_location"`
}

type HTTPClient struct {
	Debug            *bool           `yaml:"debug"`
	RetryCount       int             `yaml:"retry_count"`
	RetryWaitTime    time.Duration   `yaml:"retry_wait_time"`
	RetryMaxWaitTime time.Duration   `yaml:"retry_max_wait_time"`
	Timeout          time.Duration   `yaml:"timeout"`
	TLSClientConfig  TLSClientConfig `yaml:"tls_client_config"`
	Proxy            Proxy           `yaml:"proxy"`
}

type TLSClientConfig struct {
	Verify *bool `yaml:"verify"`
}

type Proxy struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Endpoint describes one finding population: a server, a project and an optional branch or pull request.
type Endpoint struct {
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	Project     string `yaml:"project"`
	Branch      string `yaml:"branch"`
	PullRequest string `yaml:"pull_request"`
}

// Sync holds the options controlling how source history is replayed on the target.
type Sync struct {
	AddSyncComments  *bool    `yaml:"add_sync_comments"`
	AddSyncLink      *bool    `yaml:"add_sync_link"`
	SyncAssignments  *bool    `yaml:"sync_assignments"`
	ServiceAccounts  []string `yaml:"service_accounts"`
	IgnoreComponents bool     `yaml:"ignore_components"`
	Since            string   `yaml:"since"`
	Ignore           []string `yaml:"ignore"`
	Threads          int      `yaml:"threads"`
}

// Search holds the limits of the remote search endpoint.
type Search struct {
	MaxResults int `yaml:"max_results"`
	PageSize   int `yaml:"page_size"`
	Threads    int `yaml:"threads"`
}

const (
	envConfigPath  = "FINDINGSYNC_CONFIG"
	envSourceToken = "FINDINGSYNC_SOURCE_TOKEN"
	envTargetToken = "FINDINGSYNC_TARGET_TOKEN"
)

// ValidateConfigPath checks that the path exists and is a regular file.
func ValidateConfigPath(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a file", path)
	}
	return nil
}

// LoadYAML decodes the YAML file at configPath into data.
func LoadYAML(configPath string, data interface{}) error {
	if err := ValidateConfigPath(configPath); err != nil {
		return err
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	if err := d.Decode(data); err != nil {
		return err
	}

	return nil
}

// ResolveConfigPath returns the config path to use, honoring the environment override.
func ResolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(envConfigPath); env != "" {
		return env
	}
	return "config.yml"
}

// LoadConfig reads the configuration file and applies environment overrides.
// A missing file at the default location yields an empty configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{}

	if err := LoadYAML(configPath, cfg); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config %q: %w", configPath, err)
		}
	}
	applyEnvironmentOverrides(cfg)

	return cfg, nil
}

func applyEnvironmentOverrides(cfg *Config) {
	if token := os.Getenv(envSourceToken); token != "" {
		cfg.Source.Token = token
	}
	if token := os.Getenv(envTargetToken); token != "" {
		cfg.Target.Token = token
	}
}
